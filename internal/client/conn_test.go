package client

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probelab/ldapprobe/internal/filter"
	"github.com/probelab/ldapprobe/internal/ldap"
	"github.com/probelab/ldapprobe/internal/logging"
)

// stubServer answers scripted responses over an in-memory pipe.
type stubServer struct {
	nc  net.Conn
	br  *bufio.Reader
	got chan *ldap.Message
}

// startStub wires a Conn to a stub server. The handler is invoked for
// every message the client sends; its return values are written back.
func startStub(t *testing.T, handler func(*ldap.Message) []*ldap.Message) (*Conn, *stubServer) {
	t.Helper()

	clientSide, serverSide := net.Pipe()
	s := &stubServer{
		nc:  serverSide,
		br:  bufio.NewReader(serverSide),
		got: make(chan *ldap.Message, 32),
	}
	go s.serve(handler)

	c := NewConn(clientSide, logging.NewNop())
	t.Cleanup(func() {
		_ = c.Close()
		_ = serverSide.Close()
	})
	return c, s
}

func (s *stubServer) serve(handler func(*ldap.Message) []*ldap.Message) {
	for {
		msg, err := s.read()
		if err != nil {
			return
		}
		select {
		case s.got <- msg:
		default:
		}
		if handler == nil {
			continue
		}
		for _, reply := range handler(msg) {
			data, err := reply.Encode()
			if err != nil {
				return
			}
			if _, err := s.nc.Write(data); err != nil {
				return
			}
		}
	}
}

func (s *stubServer) read() (*ldap.Message, error) {
	tag, err := s.br.ReadByte()
	if err != nil {
		return nil, err
	}

	first, err := s.br.ReadByte()
	if err != nil {
		return nil, err
	}

	header := []byte{tag, first}
	length := 0
	if first&0x80 == 0 {
		length = int(first)
	} else {
		lenBytes := make([]byte, int(first&0x7F))
		if _, err := io.ReadFull(s.br, lenBytes); err != nil {
			return nil, err
		}
		for _, b := range lenBytes {
			length = (length << 8) | int(b)
		}
		header = append(header, lenBytes...)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(s.br, body); err != nil {
		return nil, err
	}

	return ldap.ParseMessage(append(header, body...))
}

// Response builders

func bindOKMsg(t *testing.T, id int) *ldap.Message {
	t.Helper()
	op, err := (&ldap.BindResponse{Result: ldap.Result{ResultCode: ldap.ResultSuccess}}).Encode()
	require.NoError(t, err)
	return &ldap.Message{MessageID: id, Operation: op}
}

func bindErrMsg(t *testing.T, id int, code ldap.ResultCode, diag string) *ldap.Message {
	t.Helper()
	op, err := (&ldap.BindResponse{Result: ldap.Result{ResultCode: code, DiagnosticMessage: diag}}).Encode()
	require.NoError(t, err)
	return &ldap.Message{MessageID: id, Operation: op}
}

func entryMsg(t *testing.T, id int, dn string) *ldap.Message {
	t.Helper()
	op, err := (&ldap.SearchResultEntry{
		ObjectName: dn,
		Attributes: []ldap.PartialAttribute{{Type: "cn", Values: [][]byte{[]byte("x")}}},
	}).Encode()
	require.NoError(t, err)
	return &ldap.Message{MessageID: id, Operation: op}
}

func refMsg(t *testing.T, id int, uris ...string) *ldap.Message {
	t.Helper()
	op, err := (&ldap.SearchResultReference{URIs: uris}).Encode()
	require.NoError(t, err)
	return &ldap.Message{MessageID: id, Operation: op}
}

func doneMsg(t *testing.T, id int, code ldap.ResultCode) *ldap.Message {
	t.Helper()
	op, err := (&ldap.SearchResultDone{Result: ldap.Result{ResultCode: code}}).Encode()
	require.NoError(t, err)
	return &ldap.Message{MessageID: id, Operation: op}
}

func testSearchRequest(t *testing.T, base string) *ldap.SearchRequest {
	t.Helper()
	flt, err := filter.Parse("(objectclass=*)")
	require.NoError(t, err)
	return &ldap.SearchRequest{
		BaseObject:   base,
		Scope:        ldap.ScopeSingleLevel,
		DerefAliases: ldap.DerefAlways,
		Filter:       flt,
	}
}

func TestBindSuccess(t *testing.T) {
	c, s := startStub(t, func(msg *ldap.Message) []*ldap.Message {
		return []*ldap.Message{bindOKMsg(t, msg.MessageID)}
	})

	err := c.Bind(context.Background(), "cn=admin,dc=example,dc=com", []byte("secret"))
	require.NoError(t, err)

	sent := <-s.got
	assert.Equal(t, ldap.OperationType(ldap.ApplicationBindRequest), sent.OperationType())
	req, err := ldap.ParseBindRequest(sent.Operation)
	require.NoError(t, err)
	assert.Equal(t, "cn=admin,dc=example,dc=com", req.Name)
	assert.Equal(t, []byte("secret"), req.Password)
	assert.Equal(t, 3, req.Version)

	assert.Equal(t, 0, c.Outstanding())
}

func TestBindInvalidCredentials(t *testing.T) {
	c, _ := startStub(t, func(msg *ldap.Message) []*ldap.Message {
		return []*ldap.Message{bindErrMsg(t, msg.MessageID, ldap.ResultInvalidCredentials, "invalid credentials")}
	})

	err := c.Bind(context.Background(), "cn=admin", []byte("wrong"))
	require.Error(t, err)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, ldap.ResultInvalidCredentials, authErr.Code)
	assert.Equal(t, "invalid credentials", authErr.Diagnostic)
}

func TestBindTimeout(t *testing.T) {
	c, _ := startStub(t, nil) // never answers

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.Bind(ctx, "cn=admin", []byte("secret"))
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestSearchCollectsResponses(t *testing.T) {
	c, s := startStub(t, func(msg *ldap.Message) []*ldap.Message {
		if msg.OperationType() != ldap.ApplicationSearchRequest {
			return nil
		}
		return []*ldap.Message{
			entryMsg(t, msg.MessageID, "uid=a,ou=people"),
			entryMsg(t, msg.MessageID, "uid=b,ou=people"),
			refMsg(t, msg.MessageID, "ldap://other/ou=people"),
			doneMsg(t, msg.MessageID, ldap.ResultSuccess),
		}
	})

	h, err := c.Search(testSearchRequest(t, "ou=people"), time.Now().Add(time.Second))
	require.NoError(t, err)

	result, err := h.Await(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Entries, 2)
	assert.Equal(t, "uid=a,ou=people", result.Entries[0].ObjectName)
	assert.Equal(t, "uid=b,ou=people", result.Entries[1].ObjectName)
	require.Len(t, result.References, 1)
	assert.Equal(t, []string{"ldap://other/ou=people"}, result.References[0].URIs)
	require.NotNil(t, result.Done)
	assert.Equal(t, ldap.ResultSuccess, result.Done.ResultCode)

	// The sent request carried the configured parameters
	sent := <-s.got
	req, err := ldap.ParseSearchRequest(sent.Operation)
	require.NoError(t, err)
	assert.Equal(t, "ou=people", req.BaseObject)
	assert.Equal(t, ldap.ScopeSingleLevel, req.Scope)
	assert.Equal(t, ldap.DerefAlways, req.DerefAliases)

	assert.Equal(t, 0, c.Outstanding())
}

func TestSearchTimeoutThenAbandon(t *testing.T) {
	c, s := startStub(t, nil) // never answers

	h, err := c.Search(testSearchRequest(t, "cn=fds,ou=tre"), time.Now().Add(50*time.Millisecond))
	require.NoError(t, err)

	_, err = h.Await(context.Background())
	require.ErrorIs(t, err, ErrTimeout)

	require.NoError(t, h.Abandon())

	// The stub saw the search, then the abandon naming its message ID
	search := <-s.got
	assert.Equal(t, ldap.OperationType(ldap.ApplicationSearchRequest), search.OperationType())

	abandon := <-s.got
	require.Equal(t, ldap.OperationType(ldap.ApplicationAbandonRequest), abandon.OperationType())
	req, err := ldap.ParseAbandonRequest(abandon.Operation)
	require.NoError(t, err)
	assert.Equal(t, search.MessageID, req.MessageID)

	// Abandon released everything
	assert.Equal(t, 0, c.Outstanding())

	// Abandon is idempotent
	require.NoError(t, h.Abandon())
	select {
	case extra := <-s.got:
		t.Fatalf("unexpected extra message: %s", extra.OperationType())
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAbandonAfterCompletionSendsNothing(t *testing.T) {
	c, s := startStub(t, func(msg *ldap.Message) []*ldap.Message {
		if msg.OperationType() != ldap.ApplicationSearchRequest {
			return nil
		}
		return []*ldap.Message{doneMsg(t, msg.MessageID, ldap.ResultSuccess)}
	})

	h, err := c.Search(testSearchRequest(t, "ou=done"), time.Now().Add(time.Second))
	require.NoError(t, err)

	_, err = h.Await(context.Background())
	require.NoError(t, err)

	// Drain the search request the stub saw
	search := <-s.got
	assert.Equal(t, ldap.OperationType(ldap.ApplicationSearchRequest), search.OperationType())

	// Abandoning a finished search is a no-op on the wire
	require.NoError(t, h.Abandon())
	select {
	case extra := <-s.got:
		t.Fatalf("unexpected message after completed search: %s", extra.OperationType())
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 0, c.Outstanding())
}

func TestLateResponsesAfterAbandonAreDropped(t *testing.T) {
	c, s := startStub(t, nil)

	h, err := c.Search(testSearchRequest(t, "ou=slow"), time.Now().Add(20*time.Millisecond))
	require.NoError(t, err)

	_, err = h.Await(context.Background())
	require.ErrorIs(t, err, ErrTimeout)
	require.NoError(t, h.Abandon())

	// A straggler entry for the abandoned ID must not disturb anything
	data, err := entryMsg(t, h.ID(), "uid=late").Encode()
	require.NoError(t, err)
	_, err = s.nc.Write(data)
	require.NoError(t, err)

	// The connection is still usable afterwards
	h2, err := c.Search(testSearchRequest(t, "ou=next"), time.Now().Add(time.Second))
	require.NoError(t, err)
	require.NoError(t, h2.Abandon())
	assert.Equal(t, 0, c.Outstanding())
}

func TestPipelinedSearchesAnsweredOutOfOrder(t *testing.T) {
	// Collect both searches, then answer the second before the first.
	requests := make(chan *ldap.Message, 2)
	c, s := startStub(t, func(msg *ldap.Message) []*ldap.Message {
		requests <- msg
		if len(requests) < 2 {
			return nil
		}
		first := <-requests
		second := <-requests
		return []*ldap.Message{
			entryMsg(t, second.MessageID, "uid=second"),
			doneMsg(t, second.MessageID, ldap.ResultSuccess),
			entryMsg(t, first.MessageID, "uid=first"),
			doneMsg(t, first.MessageID, ldap.ResultSuccess),
		}
	})
	_ = s

	deadline := time.Now().Add(time.Second)
	h1, err := c.Search(testSearchRequest(t, "ou=one"), deadline)
	require.NoError(t, err)
	h2, err := c.Search(testSearchRequest(t, "ou=two"), deadline)
	require.NoError(t, err)

	r1, err := h1.Await(context.Background())
	require.NoError(t, err)
	r2, err := h2.Await(context.Background())
	require.NoError(t, err)

	require.Len(t, r1.Entries, 1)
	assert.Equal(t, "uid=first", r1.Entries[0].ObjectName)
	require.Len(t, r2.Entries, 1)
	assert.Equal(t, "uid=second", r2.Entries[0].ObjectName)
}

func TestCloseFailsPendingSearches(t *testing.T) {
	c, s := startStub(t, nil)

	h, err := c.Search(testSearchRequest(t, "ou=pending"), time.Now().Add(time.Minute))
	require.NoError(t, err)

	awaitErr := make(chan error, 1)
	go func() {
		_, err := h.Await(context.Background())
		awaitErr <- err
	}()

	// Give Await a moment to start waiting
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, c.Close())

	select {
	case err := <-awaitErr:
		assert.ErrorIs(t, err, ErrConnectionClosed)
	case <-time.After(time.Second):
		t.Fatal("Await did not return after Close")
	}

	// The close sent an unbind on the way out
	assert.Eventually(t, func() bool {
		for len(s.got) > 0 {
			if msg := <-s.got; msg.OperationType() == ldap.ApplicationUnbindRequest {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond, "expected an unbind request before close")

	// Operations after close fail immediately
	_, err = c.Search(testSearchRequest(t, "ou=after"), time.Time{})
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestServerDisconnectFailsPending(t *testing.T) {
	c, s := startStub(t, nil)

	h, err := c.Search(testSearchRequest(t, "ou=gone"), time.Now().Add(time.Minute))
	require.NoError(t, err)

	awaitErr := make(chan error, 1)
	go func() {
		_, err := h.Await(context.Background())
		awaitErr <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, s.nc.Close())

	select {
	case err := <-awaitErr:
		assert.ErrorIs(t, err, ErrConnectionClosed)
	case <-time.After(time.Second):
		t.Fatal("Await did not return after server disconnect")
	}
}

func TestDialRefused(t *testing.T) {
	// A listener that is immediately closed yields a refused port.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	_, err = Dial(context.Background(), addr, logging.NewNop())
	require.Error(t, err)

	var connErr *ConnectError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, addr, connErr.Addr)
}

func TestAwaitCanceledContext(t *testing.T) {
	c, _ := startStub(t, nil)

	h, err := c.Search(testSearchRequest(t, "ou=cancel"), time.Now().Add(time.Minute))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = h.Await(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
