// Package driver runs the probe sequence: connect, bind, then sweep the
// configured base DNs with one-level searches for the configured number
// of rounds, abandoning any search that outlives its timeout.
package driver

import (
	"context"
	"errors"
	"time"

	"github.com/probelab/ldapprobe/internal/client"
	"github.com/probelab/ldapprobe/internal/config"
	"github.com/probelab/ldapprobe/internal/filter"
	"github.com/probelab/ldapprobe/internal/ldap"
	"github.com/probelab/ldapprobe/internal/logging"
)

// Connection is the slice of the client connection the driver uses.
type Connection interface {
	Bind(ctx context.Context, dn string, password []byte) error
	Search(req *ldap.SearchRequest, deadline time.Time) (SearchOp, error)
	Close() error
}

// SearchOp is one outstanding search.
type SearchOp interface {
	ID() int
	Await(ctx context.Context) (*client.SearchResult, error)
	Abandon() error
}

// connAdapter narrows *client.Conn to the Connection interface.
type connAdapter struct {
	*client.Conn
}

func (a connAdapter) Search(req *ldap.SearchRequest, deadline time.Time) (SearchOp, error) {
	return a.Conn.Search(req, deadline)
}

// Stats counts what the probe did and saw.
type Stats struct {
	// Searches is the number of search requests issued
	Searches int
	// Entries is the total number of entries received
	Entries int
	// References is the total number of continuation references received
	References int
	// Timeouts is the number of searches that exceeded their deadline
	Timeouts int
	// Abandons is the number of abandon requests sent
	Abandons int
	// Rounds is the number of completed passes over the base DN list
	Rounds int
}

// Driver executes the probe sequence.
type Driver struct {
	cfg  *config.Config
	log  logging.Logger
	dial func(ctx context.Context, addr string) (Connection, error)
}

// New creates a driver for the given configuration.
func New(cfg *config.Config, log logging.Logger) *Driver {
	if log == nil {
		log = logging.NewNop()
	}
	d := &Driver{cfg: cfg, log: log}
	d.dial = func(ctx context.Context, addr string) (Connection, error) {
		c, err := client.Dial(ctx, addr, log)
		if err != nil {
			return nil, err
		}
		return connAdapter{c}, nil
	}
	return d
}

// Run executes the full probe sequence. Timed-out searches are abandoned
// and counted, not treated as failures; the returned error is non-nil
// only for connect, bind, or fatal protocol failures.
func (d *Driver) Run(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	addr, err := d.cfg.Address()
	if err != nil {
		return stats, err
	}

	flt, err := filter.Parse(d.cfg.Search.Filter)
	if err != nil {
		return stats, err
	}

	d.log.Info("connecting", "addr", addr)
	conn, err := d.dial(ctx, addr)
	if err != nil {
		return stats, err
	}
	defer conn.Close()

	bindCtx, cancel := context.WithTimeout(ctx, d.cfg.Server.BindTimeout.Std())
	defer cancel()
	if err := conn.Bind(bindCtx, d.cfg.Server.BindDN, []byte(d.cfg.Server.Password)); err != nil {
		return stats, err
	}
	d.log.Info("bound", "dn", d.cfg.Server.BindDN)

	for round := 1; round <= d.cfg.Search.Rounds; round++ {
		for _, base := range d.cfg.Search.BaseDNs {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			if err := d.probe(ctx, conn, flt, base, round, stats); err != nil {
				return stats, err
			}
		}
		stats.Rounds = round
	}

	d.log.Info("probe finished",
		"searches", stats.Searches,
		"entries", stats.Entries,
		"timeouts", stats.Timeouts,
		"abandons", stats.Abandons,
		"rounds", stats.Rounds)

	return stats, nil
}

// timeLimitSeconds converts the per-search timeout into the request's
// timeLimit in whole seconds. Sub-second timeouts round up to 1 so the
// server never reads the limit as "unbounded".
func timeLimitSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// probe runs a single search against one base DN.
func (d *Driver) probe(ctx context.Context, conn Connection, flt *filter.Filter, base string, round int, stats *Stats) error {
	req := &ldap.SearchRequest{
		BaseObject:   base,
		Scope:        ldap.ScopeSingleLevel,
		DerefAliases: ldap.DerefAlways,
		TimeLimit:    timeLimitSeconds(d.cfg.Search.Timeout.Std()),
		Filter:       flt,
		Attributes:   d.cfg.Search.Attributes,
	}

	deadline := time.Now().Add(d.cfg.Search.Timeout.Std())
	op, err := conn.Search(req, deadline)
	if err != nil {
		return err
	}
	stats.Searches++

	log := d.log.WithFields("base", base, "round", round, "msgid", op.ID())
	log.Debug("search sent")

	result, err := op.Await(ctx)
	switch {
	case err == nil:
		stats.Entries += len(result.Entries)
		stats.References += len(result.References)
		log.Info("search completed",
			"entries", len(result.Entries),
			"references", len(result.References),
			"code", result.Done.ResultCode.String())
		return nil

	case errors.Is(err, client.ErrTimeout):
		stats.Timeouts++
		log.Warn("search timed out, abandoning")
		if err := op.Abandon(); err != nil {
			return err
		}
		stats.Abandons++
		return nil

	default:
		return err
	}
}
