package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/walletledger/internal/ledger"
)

const defaultCurrency = "XAF"

// Service manages wallet lifecycle on top of the ledger engine.
type Service struct {
	engine *ledger.Engine
	store  ledger.Store
	logger *slog.Logger
}

// NewService builds a wallet service instance.
func NewService(engine *ledger.Engine, logger *slog.Logger) *Service {
	return &Service{engine: engine, store: engine.Store(), logger: logger}
}

// CreateInput captures data required to create a wallet.
type CreateInput struct {
	OwnerID  string
	Currency string
}

// Create opens an active wallet. An owner holds at most one wallet per currency.
func (s *Service) Create(ctx context.Context, input CreateInput) (ledger.Wallet, error) {
	if _, err := uuid.Parse(input.OwnerID); err != nil {
		return ledger.Wallet{}, fmt.Errorf("%w: owner id must be a uuid", ledger.ErrInvalidArgument)
	}
	currency, err := normalizeCurrency(input.Currency)
	if err != nil {
		return ledger.Wallet{}, err
	}

	w := ledger.Wallet{
		ID:        uuid.NewString(),
		OwnerID:   input.OwnerID,
		Currency:  currency,
		Status:    ledger.StatusActive,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	err = s.store.WithTx(ctx, func(tx ledger.Tx) error {
		return tx.InsertWallet(ctx, w)
	})
	if err != nil {
		return ledger.Wallet{}, err
	}

	s.logger.Info("wallet created", slog.String("wallet_id", w.ID), slog.String("owner_id", w.OwnerID), slog.String("currency", w.Currency))
	return w, nil
}

// Get retrieves wallet metadata.
func (s *Service) Get(ctx context.Context, id string) (ledger.Wallet, error) {
	return s.store.GetWallet(ctx, id)
}

// ValidateOwnership loads the wallet and confirms userID owns it.
func (s *Service) ValidateOwnership(ctx context.Context, walletID, userID string) (ledger.Wallet, error) {
	w, err := s.store.GetWallet(ctx, walletID)
	if err != nil {
		return ledger.Wallet{}, err
	}
	if w.OwnerID != userID {
		return ledger.Wallet{}, ledger.ErrNotOwner
	}
	return w, nil
}

// Details returns the wallet with its balance and latest entry time.
func (s *Service) Details(ctx context.Context, id string) (Details, error) {
	w, err := s.store.GetWallet(ctx, id)
	if err != nil {
		return Details{}, err
	}
	return s.details(ctx, w)
}

func (s *Service) details(ctx context.Context, w ledger.Wallet) (Details, error) {
	balance, err := s.engine.Balance(ctx, w.ID)
	if err != nil {
		return Details{}, err
	}
	last, err := s.store.LastEntryAt(ctx, w.ID)
	if err != nil {
		return Details{}, fmt.Errorf("last entry: %w", err)
	}
	return Details{Wallet: w, Balance: balance, LastEntryAt: last}, nil
}

// ListByOwner returns the owner's wallets, optionally restricted to currency.
func (s *Service) ListByOwner(ctx context.Context, ownerID, currency string) ([]Details, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	wallets, err := s.store.ListWallets(ctx, ownerID, currency)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}

	out := make([]Details, 0, len(wallets))
	for _, w := range wallets {
		d, err := s.details(ctx, w)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// UpdateStatus changes the status of a wallet owned by userID.
func (s *Service) UpdateStatus(ctx context.Context, walletID, userID string, status ledger.WalletStatus) (ledger.Wallet, error) {
	var updated ledger.Wallet
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		w, err := tx.LockWallet(ctx, walletID)
		if err != nil {
			return err
		}
		if w.OwnerID != userID {
			return ledger.ErrNotOwner
		}
		if err := tx.UpdateWalletStatus(ctx, walletID, status); err != nil {
			return err
		}
		w.Status = status
		updated = w
		return nil
	})
	if err != nil {
		return ledger.Wallet{}, err
	}

	s.logger.Info("wallet status changed", slog.String("wallet_id", walletID), slog.String("status", string(status)))
	return updated, nil
}

func normalizeCurrency(currency string) (string, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return defaultCurrency, nil
	}
	if len(currency) != 3 {
		return "", fmt.Errorf("%w: currency must be a 3-letter ISO code", ledger.ErrInvalidArgument)
	}
	for _, r := range currency {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("%w: currency must be a 3-letter ISO code", ledger.ErrInvalidArgument)
		}
	}
	return currency, nil
}
