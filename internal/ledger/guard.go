package ledger

import (
	"context"
	"fmt"
	"time"
)

// NotOperableError reports a wallet whose status blocks new entries.
type NotOperableError struct {
	WalletID string
	Status   WalletStatus
	// Side is "source" or "destination" for transfers, empty otherwise.
	Side string
}

func (e *NotOperableError) Error() string {
	reason := "temporarily blocked"
	if e.Status == StatusClosed {
		reason = "permanently closed"
	}
	if e.Side != "" {
		return fmt.Sprintf("%s wallet %s is %s (%s)", e.Side, e.WalletID, e.Status, reason)
	}
	return fmt.Sprintf("wallet %s is %s (%s)", e.WalletID, e.Status, reason)
}

// Is lets errors.Is(err, ErrWalletNotOperable) match.
func (e *NotOperableError) Is(target error) bool {
	return target == ErrWalletNotOperable
}

// CheckOperable is the wallet status gate.
func CheckOperable(w Wallet) error {
	switch w.Status {
	case StatusActive:
		return nil
	case StatusSuspended, StatusFrozen, StatusClosed:
		return &NotOperableError{WalletID: w.ID, Status: w.Status}
	default:
		return fmt.Errorf("wallet %s has unknown status %q", w.ID, w.Status)
	}
}

func checkSide(w Wallet, side string) error {
	err := CheckOperable(w)
	if noe, ok := err.(*NotOperableError); ok {
		noe.Side = side
	}
	return err
}

// allowDebit counts debits from the durable entry log. Concurrent debits may
// each see a count under the limit before either commits; this only loosens
// the throttle, never the balance invariant.
func (e *Engine) allowDebit(ctx context.Context, r Reader, walletID string, now time.Time) error {
	if e.opts.DebitLimit <= 0 {
		return nil
	}
	count, err := r.CountEntriesSince(ctx, walletID, Debit, now.Add(-e.opts.DebitWindow))
	if err != nil {
		return fmt.Errorf("count recent debits: %w", err)
	}
	if count >= e.opts.DebitLimit {
		return ErrRateLimited
	}
	return nil
}

// alreadyProcessed is the idempotency guard. The unique index on
// (wallet, reference) remains the final arbiter; see ErrDuplicateReference.
func alreadyProcessed(ctx context.Context, r Reader, walletID, reference string) (bool, error) {
	exists, err := r.EntryExists(ctx, walletID, reference)
	if err != nil {
		return false, fmt.Errorf("check reference: %w", err)
	}
	return exists, nil
}
