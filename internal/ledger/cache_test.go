package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/congo-pay/walletledger/internal/logging"
)

type mapCache struct {
	mu      sync.Mutex
	values  map[string]decimal.Decimal
	failGet bool
	removed []string
}

func newMapCache() *mapCache {
	return &mapCache{values: make(map[string]decimal.Decimal)}
}

func (c *mapCache) Get(_ context.Context, key string) (decimal.Decimal, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return decimal.Zero, false, errors.New("cache down")
	}
	v, ok := c.values[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, v decimal.Decimal, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = v
	return nil
}

func (c *mapCache) Remove(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	c.removed = append(c.removed, key)
	return nil
}

func TestBalance_ReadThroughCache(t *testing.T) {
	store := NewInMemory()
	cache := newMapCache()
	e := NewEngine(store, cache, nil, logging.Discard(), DefaultOptions())
	ctx := context.Background()
	w := mustWallet(t, store, "XAF")

	if err := e.Credit(ctx, w.ID, dec("40"), "c1"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	assertBalance(t, e, w.ID, "40")
	if v, ok := cache.values[BalanceKey(w.ID)]; !ok || !v.Equal(dec("40")) {
		t.Fatalf("expected cached balance 40, got %v (%v)", v, ok)
	}

	// Writes that bypass the engine are invisible until the entry expires.
	if _, err := SeedEntry(ctx, store, w.ID, Credit, dec("1"), "direct", time.Now()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	assertBalance(t, e, w.ID, "40")

	if err := e.Credit(ctx, w.ID, dec("10"), "c2"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	assertBalance(t, e, w.ID, "51")
}

func TestTransfer_InvalidatesBothWallets(t *testing.T) {
	store := NewInMemory()
	cache := newMapCache()
	e := NewEngine(store, cache, nil, logging.Discard(), DefaultOptions())
	ctx := context.Background()
	a := mustWallet(t, store, "XAF")
	b := mustWallet(t, store, "XAF")

	if err := e.Credit(ctx, a.ID, dec("10"), "fund"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	assertBalance(t, e, a.ID, "10")
	assertBalance(t, e, b.ID, "0")

	if _, err := e.Transfer(ctx, TransferInput{FromWalletID: a.ID, ToWalletID: b.ID, Amount: dec("4"), Reference: "t"}); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	assertBalance(t, e, a.ID, "6")
	assertBalance(t, e, b.ID, "4")
}

func TestBalance_CacheFailureFallsBackToStore(t *testing.T) {
	store := NewInMemory()
	cache := newMapCache()
	cache.failGet = true
	e := NewEngine(store, cache, nil, logging.Discard(), DefaultOptions())
	ctx := context.Background()
	w := mustWallet(t, store, "XAF")

	if err := e.Credit(ctx, w.ID, dec("3"), "c1"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	assertBalance(t, e, w.ID, "3")
}

func TestReplay_DoesNotInvalidate(t *testing.T) {
	store := NewInMemory()
	cache := newMapCache()
	e := NewEngine(store, cache, nil, logging.Discard(), DefaultOptions())
	ctx := context.Background()
	w := mustWallet(t, store, "XAF")

	if err := e.Credit(ctx, w.ID, dec("3"), "c1"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	before := len(cache.removed)
	if err := e.Credit(ctx, w.ID, dec("3"), "c1"); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(cache.removed) != before {
		t.Fatalf("replay should not touch the cache")
	}
}

// racingStore runs hook once, right after the first debit sum of a read
// outside a transaction, to commit a mutation mid-computation.
type racingStore struct {
	Store
	hook func()
}

func (s *racingStore) SumEntries(ctx context.Context, walletID string, typ EntryType, cutoff *time.Time) (decimal.Decimal, error) {
	v, err := s.Store.SumEntries(ctx, walletID, typ, cutoff)
	if typ == Debit && s.hook != nil {
		hook := s.hook
		s.hook = nil
		hook()
	}
	return v, err
}

func TestBalance_SkipsCacheWriteAfterConcurrentInvalidation(t *testing.T) {
	store := &racingStore{Store: NewInMemory()}
	cache := newMapCache()
	e := NewEngine(store, cache, nil, logging.Discard(), DefaultOptions())
	ctx := context.Background()
	w := mustWallet(t, store, "XAF")

	if err := e.Credit(ctx, w.ID, dec("40"), "c1"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	store.hook = func() {
		if err := e.Credit(ctx, w.ID, dec("10"), "c2"); err != nil {
			t.Errorf("concurrent credit: %v", err)
		}
	}

	stale, err := e.Balance(ctx, w.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !stale.Equal(dec("40")) {
		t.Fatalf("expected the pre-credit balance 40, got %s", stale)
	}
	if _, ok, _ := cache.Get(ctx, BalanceKey(w.ID)); ok {
		t.Fatal("stale balance must not be cached after a concurrent invalidation")
	}
	assertBalance(t, e, w.ID, "50")
}
