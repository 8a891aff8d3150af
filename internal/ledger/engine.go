package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/walletledger/internal/notification"
)

const (
	maxReferenceLength = 100

	// maxAmountIntegerDigits matches the NUMERIC(20,2) column.
	maxAmountIntegerDigits = 18
	maxAmountScale         = 2
)

// errReplayed rolls back a credit/debit whose reference was already used.
var errReplayed = errors.New("replayed reference")

// Options tunes the engine's throttling and caching.
type Options struct {
	// DebitLimit is the number of debits allowed per wallet within
	// DebitWindow. Zero disables the throttle.
	DebitLimit   int
	DebitWindow  time.Duration
	BalanceTTL   time.Duration
	CacheTimeout time.Duration
}

// DefaultOptions mirrors the production defaults.
func DefaultOptions() Options {
	return Options{
		DebitLimit:   5,
		DebitWindow:  time.Minute,
		BalanceTTL:   time.Minute,
		CacheTimeout: 2 * time.Second,
	}
}

// Engine performs credits, debits and transfers against a Store.
// Concurrency safety comes from the store's transactions; the engine holds
// no locks of its own.
type Engine struct {
	store    Store
	cache    BalanceCache
	notifier notification.Notifier
	logger   *slog.Logger
	opts     Options
	now      func() time.Time

	// gens counts invalidations per wallet (walletID -> *atomic.Uint64).
	gens sync.Map
}

// NewEngine builds an engine. cache and notifier may be nil.
func NewEngine(store Store, cache BalanceCache, notifier notification.Notifier, logger *slog.Logger, opts Options) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DebitWindow <= 0 {
		opts.DebitWindow = time.Minute
	}
	if opts.BalanceTTL <= 0 {
		opts.BalanceTTL = time.Minute
	}
	if opts.CacheTimeout <= 0 {
		opts.CacheTimeout = 2 * time.Second
	}
	return &Engine{
		store:    store,
		cache:    cache,
		notifier: notifier,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
	}
}

// Store exposes the underlying store for collaborating services.
func (e *Engine) Store() Store {
	return e.store
}

func (e *Engine) timestamp() time.Time {
	// Postgres keeps microseconds; truncating keeps both stores comparable.
	return e.now().UTC().Truncate(time.Microsecond)
}

// Credit adds amount to the wallet. Replaying a reference is a silent no-op.
func (e *Engine) Credit(ctx context.Context, walletID string, amount decimal.Decimal, reference string) error {
	return e.Apply(ctx, walletID, amount, reference, Credit)
}

// Debit removes amount from the wallet. Replaying a reference is a silent no-op.
func (e *Engine) Debit(ctx context.Context, walletID string, amount decimal.Decimal, reference string) error {
	return e.Apply(ctx, walletID, amount, reference, Debit)
}

// Apply writes a single credit or debit entry atomically.
func (e *Engine) Apply(ctx context.Context, walletID string, amount decimal.Decimal, reference string, typ EntryType) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	reference, err := normalizeReference(reference)
	if err != nil {
		return err
	}
	if typ != Credit && typ != Debit {
		return fmt.Errorf("%w: unknown entry type %q", ErrInvalidArgument, typ)
	}

	now := e.timestamp()
	err = e.store.WithTx(ctx, func(tx Tx) error {
		if typ == Debit {
			if err := e.allowDebit(ctx, tx, walletID, now); err != nil {
				return err
			}
		}

		w, err := tx.LockWallet(ctx, walletID)
		if err != nil {
			return err
		}
		if err := CheckOperable(w); err != nil {
			return err
		}

		done, err := alreadyProcessed(ctx, tx, walletID, reference)
		if err != nil {
			return err
		}
		if done {
			return errReplayed
		}

		if typ == Debit {
			balance, err := sumBalance(ctx, tx, walletID, nil)
			if err != nil {
				return err
			}
			if balance.LessThan(amount) {
				return ErrInsufficientBalance
			}
		}

		err = tx.InsertEntry(ctx, Entry{
			ID:        uuid.NewString(),
			WalletID:  walletID,
			Amount:    amount,
			Type:      typ,
			Reference: reference,
			Status:    EntryCompleted,
			CreatedAt: now,
		})
		if errors.Is(err, ErrDuplicateReference) {
			// Lost the race to a concurrent writer with the same reference.
			return errReplayed
		}
		return err
	})
	if errors.Is(err, errReplayed) {
		e.logger.Debug("ledger reference replayed",
			slog.String("wallet_id", walletID),
			slog.String("reference", reference),
			slog.String("type", string(typ)),
		)
		return nil
	}
	if err != nil {
		return err
	}

	e.invalidate(ctx, walletID)
	return nil
}

// TransferInput captures a wallet-to-wallet movement.
type TransferInput struct {
	FromWalletID string
	ToWalletID   string
	Amount       decimal.Decimal
	Reference    string
}

// TransferResult identifies the two entries written by a transfer.
type TransferResult struct {
	DebitEntryID  string
	CreditEntryID string
	FromWalletID  string
	ToWalletID    string
	Amount        decimal.Decimal
	Reference     string
	CreatedAt     time.Time
}

// Transfer debits the source and credits the destination in one
// transaction. Unlike Credit and Debit, a reused reference is reported as
// ErrAlreadyProcessed rather than absorbed.
func (e *Engine) Transfer(ctx context.Context, in TransferInput) (TransferResult, error) {
	if err := validateAmount(in.Amount); err != nil {
		return TransferResult{}, err
	}
	reference, err := normalizeReference(in.Reference)
	if err != nil {
		return TransferResult{}, err
	}
	if in.FromWalletID == in.ToWalletID {
		return TransferResult{}, fmt.Errorf("%w: source and destination wallets must differ", ErrInvalidArgument)
	}

	now := e.timestamp()
	res := TransferResult{
		DebitEntryID:  uuid.NewString(),
		CreditEntryID: uuid.NewString(),
		FromWalletID:  in.FromWalletID,
		ToWalletID:    in.ToWalletID,
		Amount:        in.Amount,
		Reference:     reference,
		CreatedAt:     now,
	}

	var from, to Wallet
	err = e.store.WithTx(ctx, func(tx Tx) error {
		var err error
		from, to, err = lockPair(ctx, tx, in.FromWalletID, in.ToWalletID)
		if err != nil {
			return err
		}

		if from.Currency != to.Currency {
			return fmt.Errorf("%w: %s to %s", ErrCurrencyMismatch, from.Currency, to.Currency)
		}
		if err := checkSide(from, "source"); err != nil {
			return err
		}
		if err := checkSide(to, "destination"); err != nil {
			return err
		}

		done, err := alreadyProcessed(ctx, tx, from.ID, reference)
		if err != nil {
			return err
		}
		if done {
			return ErrAlreadyProcessed
		}

		balance, err := sumBalance(ctx, tx, from.ID, nil)
		if err != nil {
			return err
		}
		if balance.LessThan(in.Amount) {
			return ErrInsufficientBalance
		}

		if err := tx.InsertEntry(ctx, Entry{
			ID:        res.DebitEntryID,
			WalletID:  from.ID,
			Amount:    in.Amount,
			Type:      Debit,
			Reference: reference,
			Status:    EntryCompleted,
			CreatedAt: now,
		}); err != nil {
			if errors.Is(err, ErrDuplicateReference) {
				return ErrAlreadyProcessed
			}
			return fmt.Errorf("insert debit entry: %w", err)
		}

		if err := tx.InsertEntry(ctx, Entry{
			ID:        res.CreditEntryID,
			WalletID:  to.ID,
			Amount:    in.Amount,
			Type:      Credit,
			Reference: reference,
			Status:    EntryCompleted,
			CreatedAt: now,
		}); err != nil {
			if errors.Is(err, ErrDuplicateReference) {
				return fmt.Errorf("%w: destination wallet already holds reference %q", ErrAlreadyProcessed, reference)
			}
			return fmt.Errorf("insert credit entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return TransferResult{}, err
	}

	e.invalidate(ctx, from.ID, to.ID)
	e.notifyTransfer(ctx, to, res)
	return res, nil
}

// lockPair locks both wallets in ascending ID order so two opposite
// transfers cannot deadlock.
func lockPair(ctx context.Context, tx Tx, fromID, toID string) (Wallet, Wallet, error) {
	lock := func(id, side string) (Wallet, error) {
		w, err := tx.LockWallet(ctx, id)
		if err != nil {
			return Wallet{}, fmt.Errorf("%s wallet: %w", side, err)
		}
		return w, nil
	}

	var from, to Wallet
	var err error
	if fromID < toID {
		if from, err = lock(fromID, "source"); err != nil {
			return Wallet{}, Wallet{}, err
		}
		if to, err = lock(toID, "destination"); err != nil {
			return Wallet{}, Wallet{}, err
		}
	} else {
		if to, err = lock(toID, "destination"); err != nil {
			return Wallet{}, Wallet{}, err
		}
		if from, err = lock(fromID, "source"); err != nil {
			return Wallet{}, Wallet{}, err
		}
	}
	return from, to, nil
}

func (e *Engine) notifyTransfer(ctx context.Context, to Wallet, res TransferResult) {
	if e.notifier == nil {
		return
	}
	nctx, cancel := e.detached(ctx)
	defer cancel()

	err := e.notifier.Send(nctx, notification.Message{
		Kind:        notification.KindTransferReceived,
		Destination: to.OwnerID,
		Body:        fmt.Sprintf("You received %s %s from wallet %s", res.Amount.StringFixed(2), to.Currency, res.FromWalletID),
	})
	if err != nil {
		e.logger.Warn("transfer notification failed", slog.String("reference", res.Reference), slog.Any("error", err))
	}
}

// WithinAmountBounds reports whether d has at most 18 integer digits and no
// more than 20 fractional digits. It inspects the coefficient and exponent
// only, so hostile exponents are rejected without rescaling.
func WithinAmountBounds(d decimal.Decimal) bool {
	exp := int(d.Exponent())
	if exp > maxAmountIntegerDigits || exp < -(maxAmountIntegerDigits+maxAmountScale) {
		return false
	}
	if d.IsZero() {
		return true
	}
	// 2^128 > 10^38, the widest coefficient the exponent range allows.
	if d.Coefficient().BitLen() > 128 {
		return false
	}
	return d.NumDigits()+exp <= maxAmountIntegerDigits
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidArgument)
	}
	if !WithinAmountBounds(amount) {
		return fmt.Errorf("%w: amount out of range (at most %d integer digits)", ErrInvalidArgument, maxAmountIntegerDigits)
	}
	if !amount.Equal(amount.Round(maxAmountScale)) {
		return fmt.Errorf("%w: amount supports at most 2 decimal places", ErrInvalidArgument)
	}
	return nil
}

func normalizeReference(reference string) (string, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return "", fmt.Errorf("%w: reference is required", ErrInvalidArgument)
	}
	if len(reference) > maxReferenceLength {
		return "", fmt.Errorf("%w: reference exceeds %d characters", ErrInvalidArgument, maxReferenceLength)
	}
	return reference, nil
}
