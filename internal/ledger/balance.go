package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ComputeBalance sums completed credits minus completed debits for a wallet,
// restricted to entries created at or before cutoff when it is non-nil.
// Pass the write transaction as r when the result guards a debit.
func ComputeBalance(ctx context.Context, r Reader, walletID string, cutoff *time.Time) (decimal.Decimal, error) {
	if _, err := r.GetWallet(ctx, walletID); err != nil {
		return decimal.Zero, err
	}
	return sumBalance(ctx, r, walletID, cutoff)
}

// sumBalance skips the existence check for callers that already hold the wallet.
func sumBalance(ctx context.Context, r Reader, walletID string, cutoff *time.Time) (decimal.Decimal, error) {
	credits, err := r.SumEntries(ctx, walletID, Credit, cutoff)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum credits: %w", err)
	}
	debits, err := r.SumEntries(ctx, walletID, Debit, cutoff)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum debits: %w", err)
	}
	return credits.Sub(debits), nil
}

// Balance returns the current balance, served from the balance cache when
// possible. Cache failures fall back to the store.
func (e *Engine) Balance(ctx context.Context, walletID string) (decimal.Decimal, error) {
	if cached, ok := e.cachedBalance(ctx, walletID); ok {
		return cached, nil
	}

	var gen uint64
	if e.cache != nil {
		gen = e.generation(walletID).Load()
	}
	balance, err := ComputeBalance(ctx, e.store, walletID, nil)
	if err != nil {
		return decimal.Zero, err
	}

	e.storeBalance(ctx, walletID, balance, gen)
	return balance, nil
}

// BalanceAt reconstructs the balance as of asOf. Never cached.
func (e *Engine) BalanceAt(ctx context.Context, walletID string, asOf time.Time) (decimal.Decimal, error) {
	cutoff := asOf.UTC()
	return ComputeBalance(ctx, e.store, walletID, &cutoff)
}
