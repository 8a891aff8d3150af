package ledger

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultEntryPageSize    = 20
	defaultSnapshotPageSize = 50
	maxPageSize             = 100
)

// SortField selects the ordering key for entry history.
type SortField string

const (
	SortByCreatedAt SortField = "createdAt"
	SortByAmount    SortField = "amount"
	SortByType      SortField = "type"
)

// ParseSortField maps user input onto a sort key. Unknown or empty input
// falls back to SortByCreatedAt.
func ParseSortField(s string) SortField {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "amount":
		return SortByAmount
	case "type":
		return SortByType
	default:
		return SortByCreatedAt
	}
}

// EntryQuery filters, sorts and paginates entry history. Nil filters are
// not applied.
type EntryQuery struct {
	From      *time.Time
	To        *time.Time
	Type      *EntryType
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
	SortBy    SortField
	Ascending bool
	Page      int
	PageSize  int
}

// Offset is the number of matching rows skipped before the page.
func (q EntryQuery) Offset() int {
	return pageOffset(q.Page, q.PageSize)
}

func (q EntryQuery) normalize() EntryQuery {
	if q.SortBy == "" {
		q.SortBy = SortByCreatedAt
	}
	q.Page, q.PageSize = normalizePage(q.Page, q.PageSize, defaultEntryPageSize)
	return q
}

// SnapshotQuery filters snapshot history by snapshot time.
type SnapshotQuery struct {
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// Offset is the number of matching rows skipped before the page.
func (q SnapshotQuery) Offset() int {
	return pageOffset(q.Page, q.PageSize)
}

func (q SnapshotQuery) normalize() SnapshotQuery {
	q.Page, q.PageSize = normalizePage(q.Page, q.PageSize, defaultSnapshotPageSize)
	return q
}

// pageOffset saturates at math.MaxInt so huge page numbers read past the end
// instead of wrapping negative.
func pageOffset(page, size int) int {
	if page <= 1 || size <= 0 {
		return 0
	}
	if page-1 > math.MaxInt/size {
		return math.MaxInt
	}
	return (page - 1) * size
}

func normalizePage(page, size, def int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = def
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

// PageInfo describes a page of results.
type PageInfo struct {
	TotalCount int
	Page       int
	PageSize   int
	TotalPages int
}

func newPageInfo(total, page, size int) PageInfo {
	pages := 0
	if size > 0 {
		pages = (total + size - 1) / size
	}
	return PageInfo{TotalCount: total, Page: page, PageSize: size, TotalPages: pages}
}

// EntryPage is one page of entry history.
type EntryPage struct {
	Entries []Entry
	PageInfo
}

// SnapshotPage is one page of balance snapshots.
type SnapshotPage struct {
	Snapshots []Snapshot
	PageInfo
}

// ListEntries returns a page of the wallet's entries.
func (e *Engine) ListEntries(ctx context.Context, walletID string, q EntryQuery) (EntryPage, error) {
	if _, err := e.store.GetWallet(ctx, walletID); err != nil {
		return EntryPage{}, err
	}
	q = q.normalize()
	for _, bound := range []*decimal.Decimal{q.MinAmount, q.MaxAmount} {
		if bound != nil && !WithinAmountBounds(*bound) {
			return EntryPage{}, fmt.Errorf("%w: amount filter out of range", ErrInvalidArgument)
		}
	}
	if q.MinAmount != nil && q.MaxAmount != nil && q.MinAmount.GreaterThan(*q.MaxAmount) {
		return EntryPage{}, fmt.Errorf("%w: min amount exceeds max amount", ErrInvalidArgument)
	}

	entries, total, err := e.store.ListEntries(ctx, walletID, q)
	if err != nil {
		return EntryPage{}, fmt.Errorf("list entries: %w", err)
	}
	return EntryPage{Entries: entries, PageInfo: newPageInfo(total, q.Page, q.PageSize)}, nil
}

// GetEntry loads a single entry by ID.
func (e *Engine) GetEntry(ctx context.Context, id string) (Entry, error) {
	return e.store.GetEntry(ctx, id)
}

// GetEntryByReference loads the entry a wallet recorded for reference.
func (e *Engine) GetEntryByReference(ctx context.Context, walletID, reference string) (Entry, error) {
	return e.store.GetEntryByReference(ctx, walletID, strings.TrimSpace(reference))
}

// Snapshot computes the current balance and persists it.
func (e *Engine) Snapshot(ctx context.Context, walletID string) (Snapshot, error) {
	var snap Snapshot
	err := e.store.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.LockWallet(ctx, walletID); err != nil {
			return err
		}
		balance, err := sumBalance(ctx, tx, walletID, nil)
		if err != nil {
			return err
		}
		now := e.timestamp()
		snap = Snapshot{
			ID:         uuid.NewString(),
			WalletID:   walletID,
			Balance:    balance,
			SnapshotAt: now,
			CreatedAt:  now,
		}
		return tx.InsertSnapshot(ctx, snap)
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// BalanceHistory returns snapshots newest first.
func (e *Engine) BalanceHistory(ctx context.Context, walletID string, q SnapshotQuery) (SnapshotPage, error) {
	if _, err := e.store.GetWallet(ctx, walletID); err != nil {
		return SnapshotPage{}, err
	}
	q = q.normalize()

	snaps, total, err := e.store.ListSnapshots(ctx, walletID, q)
	if err != nil {
		return SnapshotPage{}, fmt.Errorf("list snapshots: %w", err)
	}
	return SnapshotPage{Snapshots: snaps, PageInfo: newPageInfo(total, q.Page, q.PageSize)}, nil
}
