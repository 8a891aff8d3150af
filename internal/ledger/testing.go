package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SeedWallet is a test helper that creates an active wallet directly in the store.
func SeedWallet(ctx context.Context, s Store, ownerID, currency string) (Wallet, error) {
	w := Wallet{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Currency:  currency,
		Status:    StatusActive,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	err := s.WithTx(ctx, func(tx Tx) error {
		return tx.InsertWallet(ctx, w)
	})
	return w, err
}

// SeedEntry is a test helper that writes a completed entry with an explicit
// timestamp, bypassing the engine's guards.
func SeedEntry(ctx context.Context, s Store, walletID string, typ EntryType, amount decimal.Decimal, reference string, at time.Time) (Entry, error) {
	e := Entry{
		ID:        uuid.NewString(),
		WalletID:  walletID,
		Amount:    amount,
		Type:      typ,
		Reference: reference,
		Status:    EntryCompleted,
		CreatedAt: at.UTC().Truncate(time.Microsecond),
	}
	err := s.WithTx(ctx, func(tx Tx) error {
		return tx.InsertEntry(ctx, e)
	})
	return e, err
}

// SetWalletStatus is a test helper that changes a wallet's status directly.
func SetWalletStatus(ctx context.Context, s Store, walletID string, status WalletStatus) error {
	return s.WithTx(ctx, func(tx Tx) error {
		return tx.UpdateWalletStatus(ctx, walletID, status)
	})
}
