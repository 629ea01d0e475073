// Package poller runs one sync cycle: read the ticket and account sheets
// and reconcile them into the cache.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"leakdesk/internal/apperr"
	"leakdesk/internal/cache"
	"leakdesk/internal/metrics"
	"leakdesk/internal/models"
	"leakdesk/internal/reconcile"
)

type Source interface {
	Tickets(ctx context.Context) ([]models.Ticket, error)
	Accounts(ctx context.Context) ([]models.Account, error)
}

// Status describes the most recent cycle for the sync status endpoint.
type Status struct {
	LastAttempt time.Time `json:"lastAttempt"`
	LastSuccess time.Time `json:"lastSuccess"`
	LastError   string    `json:"lastError,omitempty"`
	Confirmed   int       `json:"confirmed"`
	LocalOnly   int       `json:"localOnly"`
	Cached      int       `json:"cached"`
}

type Poller struct {
	src   Source
	cache *cache.Cache
	clock clockwork.Clock
	log   zerolog.Logger

	mu     sync.Mutex
	status Status
}

func New(src Source, c *cache.Cache, clock clockwork.Clock, log zerolog.Logger) *Poller {
	return &Poller{src: src, cache: c, clock: clock, log: log.With().Str("component", "poller").Logger()}
}

// Poll fetches both sheets and applies them together. Any failure leaves
// the cache untouched.
func (p *Poller) Poll(ctx context.Context) error {
	epoch := p.cache.Epoch()
	started := p.clock.Now()

	res, accounts, err := p.fetchAndApply(ctx, epoch)
	switch {
	case errors.Is(err, apperr.ErrStaleEpoch):
		metrics.PollsTotal.WithLabelValues("stale").Inc()
		p.log.Debug().Msg("poll result dropped, cache epoch moved")
		return err
	case err != nil:
		metrics.PollsTotal.WithLabelValues("failed").Inc()
		p.finish(started, err, reconcile.Result{})
		p.log.Warn().Err(err).Msg("poll failed, cache kept")
		return err
	}

	p.finish(started, nil, res)
	metrics.PollsTotal.WithLabelValues("applied").Inc()
	metrics.LastSyncTimestamp.Set(float64(p.clock.Now().Unix()))
	p.log.Debug().
		Int("tickets", len(res.Tickets)).
		Int("local_only", res.LocalOnly).
		Int("accounts", accounts).
		Dur("took", p.clock.Since(started)).
		Msg("snapshot applied")
	return nil
}

func (p *Poller) fetchAndApply(ctx context.Context, epoch uint64) (reconcile.Result, int, error) {
	tickets, err := p.src.Tickets(ctx)
	if err != nil {
		return reconcile.Result{}, 0, err
	}
	accounts, err := p.src.Accounts(ctx)
	if err != nil {
		return reconcile.Result{}, 0, err
	}
	res, err := p.cache.Apply(epoch, tickets, accounts, p.clock.Now())
	return res, len(accounts), err
}

func (p *Poller) finish(at time.Time, err error, res reconcile.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.LastAttempt = at
	if err != nil {
		p.status.LastError = err.Error()
		return
	}
	p.status.LastSuccess = at
	p.status.LastError = ""
	p.status.Confirmed = res.Confirmed
	p.status.LocalOnly = res.LocalOnly
	p.status.Cached = len(res.Tickets)
}

func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}
