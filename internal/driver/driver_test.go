package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probelab/ldapprobe/internal/client"
	"github.com/probelab/ldapprobe/internal/config"
	"github.com/probelab/ldapprobe/internal/ldap"
	"github.com/probelab/ldapprobe/internal/logging"
)

// fakeOp scripts one search outcome.
type fakeOp struct {
	id         int
	result     *client.SearchResult
	err        error
	abandoned  bool
	abandonErr error
}

func (f *fakeOp) ID() int { return f.id }

func (f *fakeOp) Await(_ context.Context) (*client.SearchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeOp) Abandon() error {
	f.abandoned = true
	return f.abandonErr
}

// fakeConn records the searches the driver issues and hands back
// scripted outcomes in order.
type fakeConn struct {
	bindErr error
	bindDN  string
	bindPW  string

	bases  []string
	reqs   []*ldap.SearchRequest
	ops    []*fakeOp
	nextOp int
	closed bool
}

func (f *fakeConn) Bind(_ context.Context, dn string, password []byte) error {
	f.bindDN = dn
	f.bindPW = string(password)
	return f.bindErr
}

func (f *fakeConn) Search(req *ldap.SearchRequest, _ time.Time) (SearchOp, error) {
	f.bases = append(f.bases, req.BaseObject)
	f.reqs = append(f.reqs, req)
	if f.nextOp >= len(f.ops) {
		return nil, errors.New("fake: no scripted op left")
	}
	op := f.ops[f.nextOp]
	f.nextOp++
	return op, nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func testConfig(bases []string, rounds int) *config.Config {
	cfg := config.Default()
	cfg.Search.BaseDNs = bases
	cfg.Search.Rounds = rounds
	cfg.Server.Password = "secret"
	return cfg
}

func newTestDriver(cfg *config.Config, conn *fakeConn) *Driver {
	d := New(cfg, logging.NewNop())
	d.dial = func(_ context.Context, _ string) (Connection, error) {
		return conn, nil
	}
	return d
}

func timeoutOps(n int) []*fakeOp {
	ops := make([]*fakeOp, n)
	for i := range ops {
		ops[i] = &fakeOp{id: i + 2, err: client.ErrTimeout}
	}
	return ops
}

func successOp(id int, entries int, refs int) *fakeOp {
	result := &client.SearchResult{
		Done: &ldap.SearchResultDone{Result: ldap.Result{ResultCode: ldap.ResultSuccess}},
	}
	for i := 0; i < entries; i++ {
		result.Entries = append(result.Entries, &ldap.SearchResultEntry{ObjectName: "uid=x"})
	}
	for i := 0; i < refs; i++ {
		result.References = append(result.References, &ldap.SearchResultReference{URIs: []string{"ldap://other/"}})
	}
	return &fakeOp{id: id, result: result}
}

func TestRunAllSearchesTimeOut(t *testing.T) {
	cfg := testConfig([]string{"ou=one", "ou=two"}, 2)
	conn := &fakeConn{ops: timeoutOps(4)}
	d := newTestDriver(cfg, conn)

	stats, err := d.Run(context.Background())
	require.NoError(t, err, "timeouts are not failures")

	assert.Equal(t, 4, stats.Searches)
	assert.Equal(t, 4, stats.Timeouts)
	assert.Equal(t, 4, stats.Abandons)
	assert.Equal(t, 0, stats.Entries)
	assert.Equal(t, 2, stats.Rounds)

	// Bases are swept in order, once per round
	assert.Equal(t, []string{"ou=one", "ou=two", "ou=one", "ou=two"}, conn.bases)

	for _, op := range conn.ops {
		assert.True(t, op.abandoned, "every timed out search must be abandoned")
	}
	assert.True(t, conn.closed)
}

func TestRunCountsEntriesAndReferences(t *testing.T) {
	cfg := testConfig([]string{"ou=people"}, 1)
	conn := &fakeConn{ops: []*fakeOp{successOp(2, 3, 1)}}
	d := newTestDriver(cfg, conn)

	stats, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Searches)
	assert.Equal(t, 3, stats.Entries)
	assert.Equal(t, 1, stats.References)
	assert.Equal(t, 0, stats.Timeouts)
	assert.Equal(t, 1, stats.Rounds)
}

func TestRunMixedTimeoutAndSuccess(t *testing.T) {
	cfg := testConfig([]string{"ou=slow", "ou=fast"}, 1)
	conn := &fakeConn{ops: []*fakeOp{
		{id: 2, err: client.ErrTimeout},
		successOp(3, 1, 0),
	}}
	d := newTestDriver(cfg, conn)

	stats, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Searches)
	assert.Equal(t, 1, stats.Timeouts)
	assert.Equal(t, 1, stats.Abandons)
	assert.Equal(t, 1, stats.Entries)
	assert.True(t, conn.ops[0].abandoned)
	assert.False(t, conn.ops[1].abandoned)
}

func TestRunSearchRequestCarriesTimeLimit(t *testing.T) {
	cfg := testConfig([]string{"ou=one"}, 1)
	cfg.Search.Timeout = config.Duration(5 * time.Second)
	conn := &fakeConn{ops: []*fakeOp{successOp(2, 0, 0)}}
	d := newTestDriver(cfg, conn)

	_, err := d.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, conn.reqs, 1)
	req := conn.reqs[0]
	assert.Equal(t, 5, req.TimeLimit, "timeLimit must mirror the per-search timeout")
	assert.Equal(t, ldap.ScopeSingleLevel, req.Scope)
	assert.Equal(t, ldap.DerefAlways, req.DerefAliases)
}

func TestRunSubSecondTimeoutRoundsUp(t *testing.T) {
	cfg := testConfig([]string{"ou=one"}, 1)
	cfg.Search.Timeout = config.Duration(250 * time.Millisecond)
	conn := &fakeConn{ops: []*fakeOp{successOp(2, 0, 0)}}
	d := newTestDriver(cfg, conn)

	_, err := d.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, conn.reqs, 1)
	assert.Equal(t, 1, conn.reqs[0].TimeLimit, "sub-second timeouts must not become an unbounded limit")
}

func TestRunBindFailure(t *testing.T) {
	cfg := testConfig([]string{"ou=one"}, 1)
	authErr := &client.AuthError{Code: ldap.ResultInvalidCredentials}
	conn := &fakeConn{bindErr: authErr}
	d := newTestDriver(cfg, conn)

	stats, err := d.Run(context.Background())
	require.Error(t, err)

	var got *client.AuthError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, ldap.ResultInvalidCredentials, got.Code)

	assert.Equal(t, 0, stats.Searches)
	assert.Empty(t, conn.bases)
	assert.True(t, conn.closed, "connection must be closed after a failed bind")

	// The configured credentials were presented
	assert.Equal(t, cfg.Server.BindDN, conn.bindDN)
	assert.Equal(t, "secret", conn.bindPW)
}

func TestRunDialFailure(t *testing.T) {
	cfg := testConfig([]string{"ou=one"}, 1)
	d := New(cfg, logging.NewNop())
	dialErr := &client.ConnectError{Addr: "127.0.0.1:10389", Err: errors.New("connection refused")}
	d.dial = func(_ context.Context, _ string) (Connection, error) {
		return nil, dialErr
	}

	stats, err := d.Run(context.Background())
	require.Error(t, err)

	var got *client.ConnectError
	assert.ErrorAs(t, err, &got)
	assert.Equal(t, 0, stats.Searches)
}

func TestRunFatalSearchError(t *testing.T) {
	cfg := testConfig([]string{"ou=one", "ou=two"}, 1)
	protoErr := &client.ProtocolError{Message: "malformed search result entry"}
	conn := &fakeConn{ops: []*fakeOp{{id: 2, err: protoErr}}}
	d := newTestDriver(cfg, conn)

	stats, err := d.Run(context.Background())
	require.Error(t, err)

	var got *client.ProtocolError
	assert.ErrorAs(t, err, &got)

	// The sweep stopped at the failure
	assert.Equal(t, 1, stats.Searches)
	assert.Equal(t, 0, stats.Abandons)
	assert.Equal(t, []string{"ou=one"}, conn.bases)
	assert.True(t, conn.closed)
}

func TestRunContextCanceled(t *testing.T) {
	cfg := testConfig([]string{"ou=one"}, 1)
	conn := &fakeConn{ops: timeoutOps(1)}
	d := newTestDriver(cfg, conn)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunInvalidAddress(t *testing.T) {
	cfg := testConfig([]string{"ou=one"}, 1)
	cfg.Server.URL = "ldaps://wrong:636"
	d := New(cfg, logging.NewNop())

	_, err := d.Run(context.Background())
	assert.ErrorIs(t, err, config.ErrBadScheme)
}
