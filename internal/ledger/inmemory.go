package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type memState struct {
	wallets   map[string]Wallet
	entries   []Entry
	snapshots []Snapshot
}

func newMemState() memState {
	return memState{wallets: make(map[string]Wallet)}
}

// inMemoryStore serialises transactions behind one lock and stages writes
// until commit, so a failed transaction leaves nothing behind.
type inMemoryStore struct {
	mu    sync.RWMutex
	state memState
}

// NewInMemory creates a concurrency-safe in-memory store useful for unit
// tests and local development.
func NewInMemory() Store {
	return &inMemoryStore{state: newMemState()}
}

func (s *inMemoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{memView: memView{base: &s.state, staged: &memState{wallets: make(map[string]Wallet)}}}
	if err := fn(tx); err != nil {
		return err
	}

	for id, w := range tx.staged.wallets {
		s.state.wallets[id] = w
	}
	s.state.entries = append(s.state.entries, tx.staged.entries...)
	s.state.snapshots = append(s.state.snapshots, tx.staged.snapshots...)
	return nil
}

func (s *inMemoryStore) read() memView {
	return memView{base: &s.state}
}

func (s *inMemoryStore) GetWallet(ctx context.Context, id string) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetWallet(ctx, id)
}

func (s *inMemoryStore) ListWallets(ctx context.Context, ownerID, currency string) ([]Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListWallets(ctx, ownerID, currency)
}

func (s *inMemoryStore) SumEntries(ctx context.Context, walletID string, typ EntryType, cutoff *time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().SumEntries(ctx, walletID, typ, cutoff)
}

func (s *inMemoryStore) CountEntriesSince(ctx context.Context, walletID string, typ EntryType, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().CountEntriesSince(ctx, walletID, typ, since)
}

func (s *inMemoryStore) EntryExists(ctx context.Context, walletID, reference string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().EntryExists(ctx, walletID, reference)
}

func (s *inMemoryStore) GetEntry(ctx context.Context, id string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetEntry(ctx, id)
}

func (s *inMemoryStore) GetEntryByReference(ctx context.Context, walletID, reference string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetEntryByReference(ctx, walletID, reference)
}

func (s *inMemoryStore) LastEntryAt(ctx context.Context, walletID string) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().LastEntryAt(ctx, walletID)
}

func (s *inMemoryStore) ListEntries(ctx context.Context, walletID string, q EntryQuery) ([]Entry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListEntries(ctx, walletID, q)
}

func (s *inMemoryStore) ListSnapshots(ctx context.Context, walletID string, q SnapshotQuery) ([]Snapshot, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListSnapshots(ctx, walletID, q)
}

// memView reads committed state overlaid with a transaction's staged writes.
type memView struct {
	base   *memState
	staged *memState
}

func (v memView) wallet(id string) (Wallet, bool) {
	if v.staged != nil {
		if w, ok := v.staged.wallets[id]; ok {
			return w, true
		}
	}
	w, ok := v.base.wallets[id]
	return w, ok
}

func (v memView) eachEntry(fn func(Entry) bool) {
	for _, e := range v.base.entries {
		if !fn(e) {
			return
		}
	}
	if v.staged != nil {
		for _, e := range v.staged.entries {
			if !fn(e) {
				return
			}
		}
	}
}

func (v memView) GetWallet(_ context.Context, id string) (Wallet, error) {
	w, ok := v.wallet(id)
	if !ok {
		return Wallet{}, fmt.Errorf("wallet %s: %w", id, ErrNotFound)
	}
	return w, nil
}

func (v memView) ListWallets(_ context.Context, ownerID, currency string) ([]Wallet, error) {
	seen := make(map[string]bool)
	var out []Wallet
	collect := func(wallets map[string]Wallet) {
		for id, w := range wallets {
			if seen[id] {
				continue
			}
			seen[id] = true
			if w.OwnerID != ownerID || (currency != "" && w.Currency != currency) {
				continue
			}
			out = append(out, w)
		}
	}
	if v.staged != nil {
		collect(v.staged.wallets)
	}
	collect(v.base.wallets)

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v memView) SumEntries(_ context.Context, walletID string, typ EntryType, cutoff *time.Time) (decimal.Decimal, error) {
	sum := decimal.Zero
	v.eachEntry(func(e Entry) bool {
		if e.WalletID != walletID || e.Type != typ || e.Status != EntryCompleted {
			return true
		}
		if cutoff != nil && e.CreatedAt.After(*cutoff) {
			return true
		}
		sum = sum.Add(e.Amount)
		return true
	})
	return sum, nil
}

func (v memView) CountEntriesSince(_ context.Context, walletID string, typ EntryType, since time.Time) (int, error) {
	count := 0
	v.eachEntry(func(e Entry) bool {
		if e.WalletID == walletID && e.Type == typ && e.CreatedAt.After(since) {
			count++
		}
		return true
	})
	return count, nil
}

func (v memView) EntryExists(ctx context.Context, walletID, reference string) (bool, error) {
	_, err := v.GetEntryByReference(ctx, walletID, reference)
	return err == nil, nil
}

func (v memView) GetEntry(_ context.Context, id string) (Entry, error) {
	var found *Entry
	v.eachEntry(func(e Entry) bool {
		if e.ID == id {
			found = &e
			return false
		}
		return true
	})
	if found == nil {
		return Entry{}, fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	return *found, nil
}

func (v memView) GetEntryByReference(_ context.Context, walletID, reference string) (Entry, error) {
	var found *Entry
	v.eachEntry(func(e Entry) bool {
		if e.WalletID == walletID && e.Reference == reference {
			found = &e
			return false
		}
		return true
	})
	if found == nil {
		return Entry{}, fmt.Errorf("entry %q in wallet %s: %w", reference, walletID, ErrNotFound)
	}
	return *found, nil
}

func (v memView) LastEntryAt(_ context.Context, walletID string) (*time.Time, error) {
	var last *time.Time
	v.eachEntry(func(e Entry) bool {
		if e.WalletID == walletID && (last == nil || e.CreatedAt.After(*last)) {
			at := e.CreatedAt
			last = &at
		}
		return true
	})
	return last, nil
}

func (v memView) ListEntries(_ context.Context, walletID string, q EntryQuery) ([]Entry, int, error) {
	var matched []Entry
	v.eachEntry(func(e Entry) bool {
		if matchesEntry(e, walletID, q) {
			matched = append(matched, e)
		}
		return true
	})

	sort.SliceStable(matched, func(i, j int) bool {
		return entryLess(matched[i], matched[j], q.SortBy, q.Ascending)
	})
	return paginate(matched, q.Offset(), q.PageSize), len(matched), nil
}

func (v memView) ListSnapshots(_ context.Context, walletID string, q SnapshotQuery) ([]Snapshot, int, error) {
	var matched []Snapshot
	collect := func(snaps []Snapshot) {
		for _, s := range snaps {
			if s.WalletID != walletID {
				continue
			}
			if q.From != nil && s.SnapshotAt.Before(*q.From) {
				continue
			}
			if q.To != nil && s.SnapshotAt.After(*q.To) {
				continue
			}
			matched = append(matched, s)
		}
	}
	collect(v.base.snapshots)
	if v.staged != nil {
		collect(v.staged.snapshots)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].SnapshotAt.Equal(matched[j].SnapshotAt) {
			return matched[i].SnapshotAt.After(matched[j].SnapshotAt)
		}
		return matched[i].ID < matched[j].ID
	})
	return paginate(matched, q.Offset(), q.PageSize), len(matched), nil
}

func matchesEntry(e Entry, walletID string, q EntryQuery) bool {
	if e.WalletID != walletID {
		return false
	}
	if q.From != nil && e.CreatedAt.Before(*q.From) {
		return false
	}
	if q.To != nil && e.CreatedAt.After(*q.To) {
		return false
	}
	if q.Type != nil && e.Type != *q.Type {
		return false
	}
	if q.MinAmount != nil && e.Amount.LessThan(*q.MinAmount) {
		return false
	}
	if q.MaxAmount != nil && e.Amount.GreaterThan(*q.MaxAmount) {
		return false
	}
	return true
}

// entryLess orders by the sort key, then newest first, then by ID; the
// Postgres store uses the same tie-breakers.
func entryLess(a, b Entry, by SortField, asc bool) bool {
	cmp := 0
	switch by {
	case SortByAmount:
		cmp = a.Amount.Cmp(b.Amount)
	case SortByType:
		cmp = compareStrings(string(a.Type), string(b.Type))
	default:
		cmp = a.CreatedAt.Compare(b.CreatedAt)
	}
	if cmp != 0 {
		if asc {
			return cmp < 0
		}
		return cmp > 0
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c > 0
	}
	return a.ID < b.ID
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func paginate[T any](items []T, offset, size int) []T {
	if offset < 0 || offset >= len(items) {
		return []T{}
	}
	end := offset + size
	if end > len(items) || end < offset {
		end = len(items)
	}
	return items[offset:end]
}

type memTx struct {
	memView
}

// LockWallet needs no extra locking: the store lock is held for the whole
// transaction.
func (t *memTx) LockWallet(ctx context.Context, id string) (Wallet, error) {
	return t.GetWallet(ctx, id)
}

func (t *memTx) InsertWallet(ctx context.Context, w Wallet) error {
	if _, ok := t.wallet(w.ID); ok {
		return fmt.Errorf("wallet %s: %w", w.ID, ErrWalletExists)
	}
	existing, err := t.ListWallets(ctx, w.OwnerID, w.Currency)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return fmt.Errorf("owner %s currency %s: %w", w.OwnerID, w.Currency, ErrWalletExists)
	}
	t.staged.wallets[w.ID] = w
	return nil
}

func (t *memTx) UpdateWalletStatus(_ context.Context, id string, status WalletStatus) error {
	w, ok := t.wallet(id)
	if !ok {
		return fmt.Errorf("wallet %s: %w", id, ErrNotFound)
	}
	w.Status = status
	t.staged.wallets[id] = w
	return nil
}

func (t *memTx) InsertEntry(ctx context.Context, e Entry) error {
	if _, ok := t.wallet(e.WalletID); !ok {
		return fmt.Errorf("wallet %s: %w", e.WalletID, ErrNotFound)
	}
	if !e.Amount.IsPositive() {
		return fmt.Errorf("%w: entry amount must be positive", ErrInvalidArgument)
	}
	if exists, _ := t.EntryExists(ctx, e.WalletID, e.Reference); exists {
		return fmt.Errorf("wallet %s reference %q: %w", e.WalletID, e.Reference, ErrDuplicateReference)
	}
	t.staged.entries = append(t.staged.entries, e)
	return nil
}

func (t *memTx) InsertSnapshot(_ context.Context, s Snapshot) error {
	if _, ok := t.wallet(s.WalletID); !ok {
		return fmt.Errorf("wallet %s: %w", s.WalletID, ErrNotFound)
	}
	t.staged.snapshots = append(t.staged.snapshots, s)
	return nil
}
