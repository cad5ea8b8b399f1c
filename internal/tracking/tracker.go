// Package tracking layers a cached, advisory view of a user's credit balance
// over the authoritative ledger. Callers use it to pre-check affordability
// before launching expensive generation work; the ledger remains the only
// source of truth and every deduction still goes through it.
package tracking

import (
	"context"
	"sync"

	"github.com/brandforge/creditd/internal/ledger"
)

// Ledger is the subset of ledger operations the tracker depends on.
type Ledger interface {
	GetBalance(ctx context.Context, userID string) (ledger.Balance, error)
	ConsumeCredits(ctx context.Context, p ledger.ConsumeParams) (bool, error)
}

// Tracker caches per-user balances and exposes advisory affordability checks.
// The cache may lag the ledger; only the conditional deduction inside the
// ledger decides whether a consume succeeds.
type Tracker struct {
	ledger Ledger

	mu    sync.RWMutex
	cache map[string]ledger.Balance

	onInsufficient func(userID string, required, available int64)
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithInsufficientCallback registers a hook invoked whenever a consume is
// rejected for lack of credits. Used to surface upsell prompts.
func WithInsufficientCallback(fn func(userID string, required, available int64)) Option {
	return func(t *Tracker) {
		t.onInsufficient = fn
	}
}

// NewTracker constructs a Tracker over the given ledger.
func NewTracker(l Ledger, opts ...Option) *Tracker {
	t := &Tracker{
		ledger: l,
		cache:  make(map[string]ledger.Balance),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Refresh reloads a user's balance from the ledger and updates the cache.
func (t *Tracker) Refresh(ctx context.Context, userID string) (ledger.Balance, error) {
	balance, err := t.ledger.GetBalance(ctx, userID)
	if err != nil {
		return ledger.Balance{}, err
	}
	t.mu.Lock()
	t.cache[userID] = balance
	t.mu.Unlock()
	return balance, nil
}

// Balance returns the cached balance, falling back to the ledger on a miss.
func (t *Tracker) Balance(ctx context.Context, userID string) (ledger.Balance, error) {
	t.mu.RLock()
	cached, ok := t.cache[userID]
	t.mu.RUnlock()
	if ok {
		return cached, nil
	}
	return t.Refresh(ctx, userID)
}

// HasCredits reports whether the cached balance covers the required amount.
// The answer is advisory: a stale cache can say yes while the ledger says no,
// and the ledger's conditional deduction settles it.
func (t *Tracker) HasCredits(ctx context.Context, userID string, required int64) (bool, error) {
	balance, err := t.Balance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance.Balance >= required, nil
}

// Consume deducts credits through the ledger and keeps the cache in step.
// On success the cached balance is decremented optimistically; on an
// insufficient-balance rejection the cache is refreshed and the callback
// fires with the authoritative shortfall.
func (t *Tracker) Consume(ctx context.Context, p ledger.ConsumeParams) (bool, error) {
	consumed, err := t.ledger.ConsumeCredits(ctx, p)
	if err != nil {
		return false, err
	}

	if consumed {
		t.mu.Lock()
		if cached, ok := t.cache[p.UserID]; ok {
			cached.Balance -= p.Amount
			cached.TotalUsed += p.Amount
			t.cache[p.UserID] = cached
		}
		t.mu.Unlock()
		return true, nil
	}

	balance, errRefresh := t.Refresh(ctx, p.UserID)
	if errRefresh == nil && t.onInsufficient != nil {
		t.onInsufficient(p.UserID, p.Amount, balance.Balance)
	}
	return false, nil
}

// Invalidate drops a user's cached balance, forcing the next read to hit the
// ledger. Called after out-of-band grants.
func (t *Tracker) Invalidate(userID string) {
	t.mu.Lock()
	delete(t.cache, userID)
	t.mu.Unlock()
}
