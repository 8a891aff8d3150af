package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestInMemoryStore_RollbackDiscardsStagedWrites(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	w := mustWallet(t, s, "XAF")

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx Tx) error {
		if err := tx.InsertEntry(ctx, Entry{
			ID: uuid.NewString(), WalletID: w.ID, Amount: dec("5"),
			Type: Credit, Reference: "r1", Status: EntryCompleted, CreatedAt: time.Now(),
		}); err != nil {
			return err
		}
		// Staged writes are visible inside the transaction.
		if ok, _ := tx.EntryExists(ctx, w.ID, "r1"); !ok {
			t.Fatalf("staged entry not visible in tx")
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if ok, _ := s.EntryExists(ctx, w.ID, "r1"); ok {
		t.Fatal("rolled back entry is visible")
	}
}

func TestInMemoryStore_UniqueConstraints(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	owner := uuid.NewString()

	if _, err := SeedWallet(ctx, s, owner, "XAF"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := SeedWallet(ctx, s, owner, "XAF"); !errors.Is(err, ErrWalletExists) {
		t.Fatalf("expected wallet exists, got %v", err)
	}
	usd, err := SeedWallet(ctx, s, owner, "USD")
	if err != nil {
		t.Fatalf("second currency: %v", err)
	}

	if _, err := SeedEntry(ctx, s, usd.ID, Credit, dec("1"), "ref", time.Now()); err != nil {
		t.Fatalf("seed entry: %v", err)
	}
	if _, err := SeedEntry(ctx, s, usd.ID, Debit, dec("1"), "ref", time.Now()); !errors.Is(err, ErrDuplicateReference) {
		t.Fatalf("expected duplicate reference, got %v", err)
	}

	wallets, err := s.ListWallets(ctx, owner, "")
	if err != nil || len(wallets) != 2 {
		t.Fatalf("expected 2 wallets, got %d (%v)", len(wallets), err)
	}
}

func TestInMemoryStore_StatusUpdate(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	w := mustWallet(t, s, "XAF")

	if err := SetWalletStatus(ctx, s, w.ID, StatusSuspended); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := s.GetWallet(ctx, w.ID)
	if err != nil || got.Status != StatusSuspended {
		t.Fatalf("expected suspended, got %+v (%v)", got, err)
	}
	if err := SetWalletStatus(ctx, s, "missing", StatusActive); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestInMemoryStore_LastEntryAt(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	w := mustWallet(t, s, "XAF")

	last, err := s.LastEntryAt(ctx, w.ID)
	if err != nil || last != nil {
		t.Fatalf("expected no entries, got %v (%v)", last, err)
	}
	at := time.Date(2024, 2, 2, 2, 2, 2, 0, time.UTC)
	if _, err := SeedEntry(ctx, s, w.ID, Credit, dec("1"), "r", at); err != nil {
		t.Fatalf("seed: %v", err)
	}
	last, err = s.LastEntryAt(ctx, w.ID)
	if err != nil || last == nil || !last.Equal(at) {
		t.Fatalf("expected %s, got %v (%v)", at, last, err)
	}
}
