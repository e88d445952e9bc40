package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/probelab/ldapprobe/internal/ldap"
)

// SearchHandle tracks one outstanding search. Await collects responses
// until the search completes; Abandon tells the server to stop early.
type SearchHandle struct {
	id   int
	conn *Conn
	ch   chan *ldap.Message

	mu        sync.Mutex
	abandoned bool
	completed bool
}

// ID returns the message ID of the search.
func (h *SearchHandle) ID() int {
	return h.id
}

// SearchResult holds everything a completed search returned.
type SearchResult struct {
	Entries    []*ldap.SearchResultEntry
	References []*ldap.SearchResultReference
	Done       *ldap.SearchResultDone
}

// Await collects entries and references until the search result done
// message arrives. It returns ErrTimeout when the search deadline or the
// context deadline passes first; the search stays outstanding so the
// caller can abandon it.
func (h *SearchHandle) Await(ctx context.Context) (*SearchResult, error) {
	var expire <-chan time.Time
	if deadline, ok := h.conn.tracker.Deadline(h.id); ok {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		expire = timer.C
	}

	result := &SearchResult{}

	for {
		select {
		case msg, ok := <-h.ch:
			if !ok {
				return nil, h.conn.closedErr()
			}

			switch msg.OperationType() {
			case ldap.ApplicationSearchResultEntry:
				entry, err := ldap.ParseSearchResultEntry(msg.Operation)
				if err != nil {
					return nil, &ProtocolError{Message: "malformed search result entry", Err: err}
				}
				result.Entries = append(result.Entries, entry)

			case ldap.ApplicationSearchResultReference:
				ref, err := ldap.ParseSearchResultReference(msg.Operation)
				if err != nil {
					return nil, &ProtocolError{Message: "malformed search result reference", Err: err}
				}
				result.References = append(result.References, ref)

			case ldap.ApplicationSearchResultDone:
				done, err := ldap.ParseSearchResultDone(msg.Operation)
				if err != nil {
					return nil, &ProtocolError{Message: "malformed search result done", Err: err}
				}
				result.Done = done
				h.mu.Lock()
				h.completed = true
				h.mu.Unlock()
				h.conn.unregister(h.id)
				return result, nil

			default:
				return nil, &ProtocolError{
					Message: fmt.Sprintf("unexpected %s in response to search", msg.OperationType()),
				}
			}

		case <-expire:
			h.conn.tracker.Expire(time.Now())
			return nil, ErrTimeout

		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrTimeout
			}
			return nil, ctx.Err()
		}
	}
}

// Abandon tells the server to stop processing the search and frees its
// message ID. The abandon request is fire and forget; the server never
// answers it. Calling Abandon more than once, or after the search has
// completed, is a no-op.
func (h *SearchHandle) Abandon() error {
	h.mu.Lock()
	if h.abandoned || h.completed {
		h.mu.Unlock()
		return nil
	}
	h.abandoned = true
	h.mu.Unlock()

	h.conn.unregister(h.id)

	op, err := (&ldap.AbandonRequest{MessageID: h.id}).Encode()
	if err != nil {
		return err
	}

	// The abandon request carries its own message ID, released
	// immediately because no response will ever arrive.
	id, err := h.conn.tracker.Allocate(time.Time{})
	if err != nil {
		return err
	}
	defer h.conn.tracker.Release(id)

	return h.conn.send(id, op)
}
