package client

import (
	"sync"
	"time"

	"github.com/probelab/ldapprobe/internal/ldap"
)

// Tracker allocates LDAP message IDs and tracks which are outstanding.
// IDs are handed out monotonically starting at 1, wrap around after
// reaching the protocol maximum, and are never reused while outstanding.
// ID 0 is reserved for unsolicited notifications and never allocated.
type Tracker struct {
	mu          sync.Mutex
	next        int
	outstanding map[int]time.Time // id -> deadline (zero time if none)
}

// NewTracker creates a tracker whose first allocation is message ID 1.
func NewTracker() *Tracker {
	return &Tracker{
		next:        1,
		outstanding: make(map[int]time.Time),
	}
}

// Allocate reserves the next free message ID. A non-zero deadline is
// recorded for later Expire sweeps. Returns ErrIDExhausted when every
// valid ID is outstanding.
func (t *Tracker) Allocate(deadline time.Time) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.outstanding) >= ldap.MaxMessageID {
		return 0, ErrIDExhausted
	}

	id := t.next
	for {
		if _, taken := t.outstanding[id]; !taken {
			break
		}
		id++
		if id > ldap.MaxMessageID {
			id = 1
		}
	}

	t.outstanding[id] = deadline
	t.next = id + 1
	if t.next > ldap.MaxMessageID {
		t.next = 1
	}

	return id, nil
}

// Release frees a message ID for future reuse. Releasing an ID that is
// not outstanding is a no-op.
func (t *Tracker) Release(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.outstanding, id)
}

// Outstanding reports whether the given ID is currently in use.
func (t *Tracker) Outstanding(id int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.outstanding[id]
	return ok
}

// Deadline returns the deadline recorded for an outstanding ID. The second
// return is false when the ID is not outstanding or has no deadline.
func (t *Tracker) Deadline(id int) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	deadline, ok := t.outstanding[id]
	if !ok || deadline.IsZero() {
		return time.Time{}, false
	}
	return deadline, true
}

// Len returns the number of outstanding IDs.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.outstanding)
}

// Expire returns the IDs whose deadline has passed at the given instant.
// Each expired ID is reported once; it stays outstanding until released.
func (t *Tracker) Expire(now time.Time) []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []int
	for id, deadline := range t.outstanding {
		if !deadline.IsZero() && !deadline.After(now) {
			expired = append(expired, id)
			t.outstanding[id] = time.Time{}
		}
	}
	return expired
}
