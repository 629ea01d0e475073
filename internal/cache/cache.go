// Package cache owns the in-memory ticket collection and account directory
// for one running client. Writers are limited to Apply (reconciliation
// after a poll) and the optimistic paths Prepend, Update and Remove used
// by the lifecycle machine; everything else reads copies.
package cache

import (
	"sync"
	"time"

	"leakdesk/internal/apperr"
	"leakdesk/internal/identity"
	"leakdesk/internal/metrics"
	"leakdesk/internal/models"
	"leakdesk/internal/reconcile"
)

type Cache struct {
	mu       sync.RWMutex
	tickets  []models.Ticket
	accounts []models.Account
	// epoch changes whenever the cache is detached from in-flight polls
	// (shutdown, reset). A poll result tagged with an older epoch is dropped.
	epoch    uint64
	lastSync time.Time
}

func New() *Cache { return &Cache{} }

func (c *Cache) Epoch() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch
}

// Invalidate bumps the epoch so that polls already in flight cannot
// write their result. Contents are kept.
func (c *Cache) Invalidate() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	return c.epoch
}

// Reset empties the cache and bumps the epoch.
func (c *Cache) Reset() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tickets = nil
	c.accounts = nil
	c.lastSync = time.Time{}
	c.epoch++
	metrics.CachedTickets.Set(0)
	return c.epoch
}

// Apply reconciles a full poll result into the cache. It is all or
// nothing: either tickets and accounts are both replaced, or, when the
// epoch moved since the poll started, nothing is touched and
// apperr.ErrStaleEpoch is returned. A nil accounts slice keeps the
// current directory.
func (c *Cache) Apply(epoch uint64, snapshot []models.Ticket, accounts []models.Account, at time.Time) (reconcile.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return reconcile.Result{}, apperr.ErrStaleEpoch
	}
	res := reconcile.Merge(c.tickets, snapshot)
	c.tickets = res.Tickets
	if accounts != nil {
		c.accounts = append([]models.Account(nil), accounts...)
	}
	c.lastSync = at
	metrics.CachedTickets.Set(float64(len(c.tickets)))
	return res, nil
}

// Prepend inserts an optimistic local creation at the top. An entry with
// the same normalized ID is replaced in place instead.
func (c *Cache) Prepend(t models.Ticket) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := t.Key()
	for i := range c.tickets {
		if c.tickets[i].Key() == key {
			c.tickets[i] = t.Clone()
			return
		}
	}
	c.tickets = append([]models.Ticket{t.Clone()}, c.tickets...)
	metrics.CachedTickets.Set(float64(len(c.tickets)))
}

// Update runs fn against a copy of the ticket under the write lock and
// stores the copy only if fn succeeds, so a failed validation leaves the
// cache untouched.
func (c *Cache) Update(id string, fn func(t *models.Ticket) error) (models.Ticket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := identity.Normalize(id)
	for i := range c.tickets {
		if c.tickets[i].Key() != key {
			continue
		}
		next := c.tickets[i].Clone()
		if err := fn(&next); err != nil {
			return c.tickets[i].Clone(), err
		}
		c.tickets[i] = next
		return next.Clone(), nil
	}
	return models.Ticket{}, apperr.ErrNotFound
}

// Remove drops a ticket that was prepended but never accepted by the
// store.
func (c *Cache) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := identity.Normalize(id)
	for i := range c.tickets {
		if c.tickets[i].Key() == key {
			c.tickets = append(c.tickets[:i:i], c.tickets[i+1:]...)
			metrics.CachedTickets.Set(float64(len(c.tickets)))
			return true
		}
	}
	return false
}

func (c *Cache) Tickets() []models.Ticket {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Ticket, len(c.tickets))
	for i, t := range c.tickets {
		out[i] = t.Clone()
	}
	return out
}

func (c *Cache) Ticket(id string) (models.Ticket, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	key := identity.Normalize(id)
	for _, t := range c.tickets {
		if t.Key() == key {
			return t.Clone(), true
		}
	}
	return models.Ticket{}, false
}

// ForStore returns the tickets owned by storeID.
func (c *Cache) ForStore(storeID string) []models.Ticket {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []models.Ticket
	for _, t := range c.tickets {
		if t.BelongsTo(storeID) {
			out = append(out, t.Clone())
		}
	}
	return out
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tickets)
}

func (c *Cache) LastSync() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSync
}

func (c *Cache) Accounts() []models.Account {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Account(nil), c.accounts...)
}

func (c *Cache) Account(id string) (models.Account, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, a := range c.accounts {
		if a.Is(id) {
			return a, true
		}
	}
	return models.Account{}, false
}
