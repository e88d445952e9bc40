package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/probelab/ldapprobe/internal/ber"
	"github.com/probelab/ldapprobe/internal/ldap"
	"github.com/probelab/ldapprobe/internal/logging"
)

// MaxMessageSize is the maximum accepted LDAP message size (16MB).
const MaxMessageSize = 16 * 1024 * 1024

// responseBuffer is the per-operation channel capacity. A search can have
// this many undelivered responses before the reader starts dropping.
const responseBuffer = 32

// Conn is an asynchronous LDAP client connection. A single reader
// goroutine demultiplexes responses to the operations that requested
// them, so searches can be pipelined and awaited independently.
type Conn struct {
	nc      net.Conn
	br      *bufio.Reader
	log     logging.Logger
	tracker *Tracker

	// writeMu serializes whole messages onto the wire
	writeMu sync.Mutex

	mu       sync.Mutex
	pending  map[int]chan *ldap.Message
	closed   bool
	closeErr error
}

// Dial connects to the LDAP server at addr and starts the reader.
func Dial(ctx context.Context, addr string, log logging.Logger) (*Conn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectError{Addr: addr, Err: err}
	}
	return NewConn(nc, log), nil
}

// NewConn wraps an established connection and starts the reader.
func NewConn(nc net.Conn, log logging.Logger) *Conn {
	if log == nil {
		log = logging.NewNop()
	}
	c := &Conn{
		nc:      nc,
		br:      bufio.NewReader(nc),
		log:     log,
		tracker: NewTracker(),
		pending: make(map[int]chan *ldap.Message),
	}
	go c.readLoop()
	return c
}

// Outstanding returns the number of operations awaiting responses.
func (c *Conn) Outstanding() int {
	return c.tracker.Len()
}

// Bind performs a simple bind and waits for the response. A failed bind
// is reported as an *AuthError carrying the server's result code.
func (c *Conn) Bind(ctx context.Context, dn string, password []byte) error {
	op, err := ldap.NewBindRequest(dn, password).Encode()
	if err != nil {
		return err
	}

	id, ch, err := c.register(time.Time{})
	if err != nil {
		return err
	}
	defer c.unregister(id)

	if err := c.send(id, op); err != nil {
		return err
	}

	select {
	case msg, ok := <-ch:
		if !ok {
			return c.closedErr()
		}
		if msg.OperationType() != ldap.ApplicationBindResponse {
			return &ProtocolError{Message: fmt.Sprintf("unexpected %s in response to bind", msg.OperationType())}
		}
		resp, err := ldap.ParseBindResponse(msg.Operation)
		if err != nil {
			return &ProtocolError{Message: "malformed bind response", Err: err}
		}
		if !resp.Success() {
			return &AuthError{Code: resp.ResultCode, Diagnostic: resp.DiagnosticMessage}
		}
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ctx.Err()
	}
}

// Search sends a search request and returns a handle for collecting its
// responses. A non-zero deadline bounds the later Await. The request is
// pipelined; it does not wait for earlier searches to finish.
func (c *Conn) Search(req *ldap.SearchRequest, deadline time.Time) (*SearchHandle, error) {
	op, err := req.Encode()
	if err != nil {
		return nil, err
	}

	id, ch, err := c.register(deadline)
	if err != nil {
		return nil, err
	}

	if err := c.send(id, op); err != nil {
		c.unregister(id)
		return nil, err
	}

	return &SearchHandle{id: id, conn: c, ch: ch}, nil
}

// Close sends a best-effort unbind, fails all pending operations with
// ErrConnectionClosed and closes the connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	// The server never answers an unbind; failure to send it is not
	// worth reporting.
	if op, err := (&ldap.UnbindRequest{}).Encode(); err == nil {
		if id, err := c.tracker.Allocate(time.Time{}); err == nil {
			_ = c.send(id, op)
			c.tracker.Release(id)
		}
	}

	c.fail(ErrConnectionClosed)
	return c.nc.Close()
}

// register allocates a message ID and a response channel for it.
func (c *Conn) register(deadline time.Time) (int, chan *ldap.Message, error) {
	id, err := c.tracker.Allocate(deadline)
	if err != nil {
		return 0, nil, err
	}

	ch := make(chan *ldap.Message, responseBuffer)

	c.mu.Lock()
	if c.closed {
		err := c.closeErr
		c.mu.Unlock()
		c.tracker.Release(id)
		if err == nil {
			err = ErrConnectionClosed
		}
		return 0, nil, err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	return id, ch, nil
}

// unregister drops the response channel and frees the message ID.
func (c *Conn) unregister(id int) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
	c.tracker.Release(id)
}

// send encodes and writes one message. Writes are serialized so
// concurrent operations never interleave bytes.
func (c *Conn) send(id int, op *ldap.RawOperation) error {
	msg := &ldap.Message{MessageID: id, Operation: op}
	data, err := msg.Encode()
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		err := c.closeErr
		c.mu.Unlock()
		if err == nil {
			err = ErrConnectionClosed
		}
		return err
	}
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.nc.Write(data); err != nil {
		return fmt.Errorf("client: write failed: %w", err)
	}
	return nil
}

// closedErr returns the error that closed the connection.
func (c *Conn) closedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeErr != nil {
		return c.closeErr
	}
	return ErrConnectionClosed
}

// fail marks the connection closed and wakes every pending operation.
func (c *Conn) fail(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.closeErr = err
	pending := c.pending
	c.pending = make(map[int]chan *ldap.Message)
	c.mu.Unlock()

	for id, ch := range pending {
		close(ch)
		c.tracker.Release(id)
	}
}

// readLoop reads messages off the wire and routes them by message ID.
func (c *Conn) readLoop() {
	for {
		data, err := c.readPacket()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if closed {
				return
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				c.fail(ErrConnectionClosed)
			} else {
				c.log.Error("read failed", "error", err)
				c.fail(&ProtocolError{Message: "read failed", Err: err})
			}
			_ = c.nc.Close()
			return
		}

		msg, err := ldap.ParseMessage(data)
		if err != nil {
			c.log.Error("malformed message from server", "error", err)
			c.fail(&ProtocolError{Message: "malformed message", Err: err})
			_ = c.nc.Close()
			return
		}

		c.dispatch(msg)
	}
}

// dispatch routes one message to the operation that owns its message ID.
func (c *Conn) dispatch(msg *ldap.Message) {
	if msg.MessageID == 0 {
		// Unsolicited notification, typically notice of disconnection
		c.log.Warn("unsolicited notification from server", "op", msg.OperationType().String())
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[msg.MessageID]
	if ok {
		select {
		case ch <- msg:
		default:
			c.log.Warn("dropping response, receiver too slow",
				"msgid", msg.MessageID, "op", msg.OperationType().String())
		}
	}
	c.mu.Unlock()

	if !ok {
		// Late responses for abandoned searches land here
		c.log.Debug("response for unknown message ID",
			"msgid", msg.MessageID, "op", msg.OperationType().String())
	}
}

// readPacket reads one complete BER message from the wire, returning the
// raw bytes including tag and length header.
func (c *Conn) readPacket() ([]byte, error) {
	tag, err := c.br.ReadByte()
	if err != nil {
		return nil, err
	}
	if tag != ber.ClassUniversal|ber.TypeConstructed|ber.TagSequence {
		return nil, fmt.Errorf("unexpected message tag 0x%02X", tag)
	}

	first, err := c.br.ReadByte()
	if err != nil {
		return nil, err
	}

	header := []byte{tag, first}
	length := 0

	if first&ber.LengthLongFormBit == 0 {
		length = int(first)
	} else {
		numBytes := int(first & 0x7F)
		if numBytes == 0 {
			return nil, errors.New("indefinite length encoding")
		}
		if numBytes > 4 {
			return nil, fmt.Errorf("length encoding too long (%d bytes)", numBytes)
		}
		lenBytes := make([]byte, numBytes)
		if _, err := io.ReadFull(c.br, lenBytes); err != nil {
			return nil, err
		}
		for _, b := range lenBytes {
			length = (length << 8) | int(b)
		}
		header = append(header, lenBytes...)
	}

	if length > MaxMessageSize {
		return nil, fmt.Errorf("message size %d exceeds limit", length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(c.br, body); err != nil {
		return nil, err
	}

	return append(header, body...), nil
}
