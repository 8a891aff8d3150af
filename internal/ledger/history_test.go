package ledger

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

type seeded struct {
	typ    EntryType
	amount string
	ref    string
	at     time.Time
}

func seedHistory(t *testing.T, store Store, walletID string, base time.Time) {
	t.Helper()
	rows := []seeded{
		{Credit, "100", "c1", base},
		{Debit, "20", "d1", base.Add(1 * time.Hour)},
		{Credit, "50.50", "c2", base.Add(2 * time.Hour)},
		{Debit, "5", "d2", base.Add(3 * time.Hour)},
		{Credit, "20", "c3", base.Add(4 * time.Hour)},
	}
	for _, r := range rows {
		if _, err := SeedEntry(context.Background(), store, walletID, r.typ, dec(r.amount), r.ref, r.at); err != nil {
			t.Fatalf("seed %s: %v", r.ref, err)
		}
	}
}

func refs(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Reference
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestListEntries_DefaultsNewestFirst(t *testing.T) {
	e, store := newTestEngine(t, DefaultOptions())
	w := mustWallet(t, store, "XAF")
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	seedHistory(t, store, w.ID, base)

	page, err := e.ListEntries(context.Background(), w.ID, EntryQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got, want := refs(page.Entries), []string{"c3", "d2", "c2", "d1", "c1"}; !equalStrings(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if page.Page != 1 || page.PageSize != 20 || page.TotalCount != 5 || page.TotalPages != 1 {
		t.Fatalf("unexpected page info %+v", page.PageInfo)
	}
}

func TestListEntries_FiltersAndSorts(t *testing.T) {
	e, store := newTestEngine(t, DefaultOptions())
	ctx := context.Background()
	w := mustWallet(t, store, "XAF")
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	seedHistory(t, store, w.ID, base)

	credit := Credit
	floor := dec("20")
	page, err := e.ListEntries(ctx, w.ID, EntryQuery{Type: &credit, MinAmount: &floor, SortBy: SortByAmount, Ascending: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got, want := refs(page.Entries), []string{"c3", "c2", "c1"}; !equalStrings(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	from, to := base.Add(time.Hour), base.Add(3*time.Hour)
	page, err = e.ListEntries(ctx, w.ID, EntryQuery{From: &from, To: &to, SortBy: SortByType, Ascending: true})
	if err != nil {
		t.Fatalf("list range: %v", err)
	}
	// Ties within a type fall back to newest first.
	if got, want := refs(page.Entries), []string{"c2", "d2", "d1"}; !equalStrings(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestListEntries_Pagination(t *testing.T) {
	e, store := newTestEngine(t, DefaultOptions())
	ctx := context.Background()
	w := mustWallet(t, store, "XAF")
	seedHistory(t, store, w.ID, time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC))

	page, err := e.ListEntries(ctx, w.ID, EntryQuery{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got, want := refs(page.Entries), []string{"c2", "d1"}; !equalStrings(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if page.TotalPages != 3 || page.TotalCount != 5 {
		t.Fatalf("unexpected page info %+v", page.PageInfo)
	}

	page, err = e.ListEntries(ctx, w.ID, EntryQuery{Page: 9, PageSize: 2})
	if err != nil {
		t.Fatalf("list past end: %v", err)
	}
	if len(page.Entries) != 0 || page.TotalCount != 5 {
		t.Fatalf("expected empty page with total 5, got %+v", page)
	}

	page, err = e.ListEntries(ctx, w.ID, EntryQuery{Page: -1, PageSize: 1000})
	if err != nil {
		t.Fatalf("list clamped: %v", err)
	}
	if page.Page != 1 || page.PageSize != 100 {
		t.Fatalf("expected clamped paging, got %+v", page.PageInfo)
	}
}

func TestListEntries_HugePageIsPastTheEnd(t *testing.T) {
	e, store := newTestEngine(t, DefaultOptions())
	ctx := context.Background()
	w := mustWallet(t, store, "XAF")
	seedHistory(t, store, w.ID, time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC))

	for _, size := range []int{0, 1, 2, 100} {
		page, err := e.ListEntries(ctx, w.ID, EntryQuery{Page: math.MaxInt, PageSize: size})
		if err != nil {
			t.Fatalf("list page MaxInt size %d: %v", size, err)
		}
		if len(page.Entries) != 0 || page.TotalCount != 5 || page.Page != math.MaxInt {
			t.Fatalf("expected empty page with total 5, got %+v", page)
		}
	}

	if _, err := e.Snapshot(ctx, w.ID); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	hist, err := e.BalanceHistory(ctx, w.ID, SnapshotQuery{Page: math.MaxInt})
	if err != nil {
		t.Fatalf("history page MaxInt: %v", err)
	}
	if len(hist.Snapshots) != 0 || hist.TotalCount != 1 {
		t.Fatalf("expected empty snapshot page with total 1, got %+v", hist)
	}
}

func TestPageOffsetSaturates(t *testing.T) {
	cases := []struct {
		page, size, want int
	}{
		{1, 20, 0},
		{3, 20, 40},
		{-4, 20, 0},
		{math.MaxInt, 2, math.MaxInt},
		{math.MaxInt/100 + 2, 100, math.MaxInt},
	}
	for _, tc := range cases {
		if got := pageOffset(tc.page, tc.size); got != tc.want {
			t.Fatalf("pageOffset(%d, %d) = %d, want %d", tc.page, tc.size, got, tc.want)
		}
	}
}

func TestListEntries_Errors(t *testing.T) {
	e, store := newTestEngine(t, DefaultOptions())
	ctx := context.Background()
	w := mustWallet(t, store, "XAF")

	if _, err := e.ListEntries(ctx, "missing", EntryQuery{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	lo, hi := dec("10"), dec("1")
	if _, err := e.ListEntries(ctx, w.ID, EntryQuery{MinAmount: &lo, MaxAmount: &hi}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	huge := dec("1e3000000")
	if _, err := e.ListEntries(ctx, w.ID, EntryQuery{MinAmount: &huge}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for oversized filter, got %v", err)
	}
}

func TestBalanceAt(t *testing.T) {
	e, store := newTestEngine(t, DefaultOptions())
	ctx := context.Background()
	w := mustWallet(t, store, "XAF")
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	seedHistory(t, store, w.ID, base)

	cases := []struct {
		at   time.Time
		want string
	}{
		{base.Add(-time.Minute), "0"},
		{base, "100"},
		{base.Add(90 * time.Minute), "80"},
		{base.Add(3 * time.Hour), "125.5"},
		{base.Add(24 * time.Hour), "145.5"},
	}
	for _, tc := range cases {
		got, err := e.BalanceAt(ctx, w.ID, tc.at)
		if err != nil {
			t.Fatalf("balance at %s: %v", tc.at, err)
		}
		if !got.Equal(dec(tc.want)) {
			t.Fatalf("balance at %s: expected %s, got %s", tc.at, tc.want, got)
		}
	}
	assertBalance(t, e, w.ID, "145.5")
}

func TestSnapshotsAndBalanceHistory(t *testing.T) {
	e, store := newTestEngine(t, DefaultOptions())
	ctx := context.Background()
	w := mustWallet(t, store, "XAF")

	clock := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return clock }

	if err := e.Credit(ctx, w.ID, dec("30"), "c1"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	first, err := e.Snapshot(ctx, w.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !first.Balance.Equal(dec("30")) {
		t.Fatalf("expected snapshot balance 30, got %s", first.Balance)
	}

	clock = clock.Add(time.Hour)
	if err := e.Debit(ctx, w.ID, dec("10"), "d1"); err != nil {
		t.Fatalf("debit: %v", err)
	}
	second, err := e.Snapshot(ctx, w.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	page, err := e.BalanceHistory(ctx, w.ID, SnapshotQuery{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if page.TotalCount != 2 || page.PageSize != 50 {
		t.Fatalf("unexpected page info %+v", page.PageInfo)
	}
	if page.Snapshots[0].ID != second.ID || !page.Snapshots[0].Balance.Equal(dec("20")) {
		t.Fatalf("expected newest snapshot first, got %+v", page.Snapshots)
	}

	from := clock.Add(-time.Minute)
	page, err = e.BalanceHistory(ctx, w.ID, SnapshotQuery{From: &from})
	if err != nil {
		t.Fatalf("history from: %v", err)
	}
	if len(page.Snapshots) != 1 || page.Snapshots[0].ID != second.ID {
		t.Fatalf("expected only the latest snapshot, got %+v", page.Snapshots)
	}

	if _, err := e.Snapshot(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestParseSortField(t *testing.T) {
	cases := map[string]SortField{
		"":          SortByCreatedAt,
		"createdAt": SortByCreatedAt,
		"AMOUNT":    SortByAmount,
		" type ":    SortByType,
		"bogus":     SortByCreatedAt,
	}
	for in, want := range cases {
		if got := ParseSortField(in); got != want {
			t.Fatalf("ParseSortField(%q) = %s, want %s", in, got, want)
		}
	}
}
