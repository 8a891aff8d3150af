package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidArgument covers non-positive amounts, missing references and
	// same-wallet transfers. Never worth retrying.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound indicates a wallet or entry is absent.
	ErrNotFound = errors.New("not found")

	// ErrWalletNotOperable is matched by every *NotOperableError.
	ErrWalletNotOperable = errors.New("wallet not operable")

	// ErrInsufficientBalance occurs when a debit or transfer exceeds the
	// source wallet balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrRateLimited is returned when a wallet exceeded its debit budget for
	// the current window. Callers may retry later.
	ErrRateLimited = errors.New("too many debit attempts, try again later")

	// ErrAlreadyProcessed is surfaced by Transfer when the source wallet
	// already holds an entry with the same reference.
	ErrAlreadyProcessed = errors.New("reference already processed")

	// ErrCurrencyMismatch rejects transfers between wallets of different currencies.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrDuplicateReference is reported by stores when the (wallet, reference)
	// uniqueness constraint rejects an insert.
	ErrDuplicateReference = errors.New("duplicate reference")

	// ErrWalletExists is reported by stores when an owner already holds a
	// wallet in the requested currency.
	ErrWalletExists = errors.New("wallet already exists")

	// ErrNotOwner rejects access to a wallet held by another owner.
	ErrNotOwner = errors.New("wallet does not belong to caller")
)

// WalletStatus is the lifecycle gate of a wallet.
type WalletStatus string

const (
	StatusActive    WalletStatus = "active"
	StatusSuspended WalletStatus = "suspended"
	StatusFrozen    WalletStatus = "frozen"
	StatusClosed    WalletStatus = "closed"
)

// ParseWalletStatus accepts any casing of a known status.
func ParseWalletStatus(s string) (WalletStatus, error) {
	switch WalletStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusActive:
		return StatusActive, nil
	case StatusSuspended:
		return StatusSuspended, nil
	case StatusFrozen:
		return StatusFrozen, nil
	case StatusClosed:
		return StatusClosed, nil
	}
	return "", fmt.Errorf("%w: unknown wallet status %q", ErrInvalidArgument, s)
}

// EntryType is the direction of a ledger entry.
type EntryType string

const (
	Credit EntryType = "credit"
	Debit  EntryType = "debit"
)

// ParseEntryType accepts any casing of credit or debit.
func ParseEntryType(s string) (EntryType, error) {
	switch EntryType(strings.ToLower(strings.TrimSpace(s))) {
	case Credit:
		return Credit, nil
	case Debit:
		return Debit, nil
	}
	return "", fmt.Errorf("%w: unknown entry type %q", ErrInvalidArgument, s)
}

// EntryStatus is the processing status of a ledger entry.
type EntryStatus string

const (
	EntryCompleted EntryStatus = "completed"
	EntryFailed    EntryStatus = "failed"
)

// Wallet is a single-currency balance holder owned by one user.
type Wallet struct {
	ID        string
	OwnerID   string
	Currency  string
	Status    WalletStatus
	CreatedAt time.Time
}

// Entry is an immutable credit or debit against a wallet.
type Entry struct {
	ID        string
	WalletID  string
	Amount    decimal.Decimal
	Type      EntryType
	Reference string
	Status    EntryStatus
	CreatedAt time.Time
}

// Snapshot is a persisted balance taken at SnapshotAt.
type Snapshot struct {
	ID         string
	WalletID   string
	Balance    decimal.Decimal
	SnapshotAt time.Time
	CreatedAt  time.Time
}

// Reader groups the queries available both inside and outside a transaction.
type Reader interface {
	GetWallet(ctx context.Context, id string) (Wallet, error)
	ListWallets(ctx context.Context, ownerID, currency string) ([]Wallet, error)
	SumEntries(ctx context.Context, walletID string, typ EntryType, cutoff *time.Time) (decimal.Decimal, error)
	CountEntriesSince(ctx context.Context, walletID string, typ EntryType, since time.Time) (int, error)
	EntryExists(ctx context.Context, walletID, reference string) (bool, error)
	GetEntry(ctx context.Context, id string) (Entry, error)
	GetEntryByReference(ctx context.Context, walletID, reference string) (Entry, error)
	LastEntryAt(ctx context.Context, walletID string) (*time.Time, error)
	ListEntries(ctx context.Context, walletID string, q EntryQuery) ([]Entry, int, error)
	ListSnapshots(ctx context.Context, walletID string, q SnapshotQuery) ([]Snapshot, int, error)
}

// Tx is a store transaction. Writes become visible to other transactions
// only after WithTx commits.
type Tx interface {
	Reader
	// LockWallet loads a wallet and holds it against concurrent writers
	// until the transaction ends.
	LockWallet(ctx context.Context, id string) (Wallet, error)
	InsertWallet(ctx context.Context, w Wallet) error
	UpdateWalletStatus(ctx context.Context, id string, status WalletStatus) error
	InsertEntry(ctx context.Context, e Entry) error
	InsertSnapshot(ctx context.Context, s Snapshot) error
}

// Store is the transactional persistence backend (e.g. Postgres).
type Store interface {
	Reader
	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}
