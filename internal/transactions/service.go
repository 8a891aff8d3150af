package transactions

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/congo-pay/walletledger/internal/ledger"
	"github.com/congo-pay/walletledger/internal/wallet"
)

// Service applies ownership rules in front of the ledger engine.
type Service struct {
	engine  *ledger.Engine
	wallets *wallet.Service
}

// NewService constructs a transaction service.
func NewService(engine *ledger.Engine, wallets *wallet.Service) *Service {
	return &Service{engine: engine, wallets: wallets}
}

// Credit funds a wallet. Any caller holding the credit permission may fund
// any wallet. Returns the entry recorded under reference, which is the
// original entry when the reference is replayed.
func (s *Service) Credit(ctx context.Context, walletID string, amount decimal.Decimal, reference string) (ledger.Entry, error) {
	if err := s.engine.Credit(ctx, walletID, amount, reference); err != nil {
		return ledger.Entry{}, err
	}
	return s.recorded(ctx, walletID, reference)
}

// Debit withdraws from a wallet owned by userID.
func (s *Service) Debit(ctx context.Context, userID, walletID string, amount decimal.Decimal, reference string) (ledger.Entry, error) {
	if _, err := s.wallets.ValidateOwnership(ctx, walletID, userID); err != nil {
		return ledger.Entry{}, err
	}
	if err := s.engine.Debit(ctx, walletID, amount, reference); err != nil {
		return ledger.Entry{}, err
	}
	return s.recorded(ctx, walletID, reference)
}

func (s *Service) recorded(ctx context.Context, walletID, reference string) (ledger.Entry, error) {
	e, err := s.engine.GetEntryByReference(ctx, walletID, reference)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("load recorded entry: %w", err)
	}
	return e, nil
}

// Transfer moves funds out of a wallet owned by userID.
func (s *Service) Transfer(ctx context.Context, userID string, in ledger.TransferInput) (ledger.TransferResult, error) {
	if _, err := s.wallets.ValidateOwnership(ctx, in.FromWalletID, userID); err != nil {
		return ledger.TransferResult{}, fmt.Errorf("source wallet: %w", err)
	}
	return s.engine.Transfer(ctx, in)
}

// History pages through entries of a wallet owned by userID.
func (s *Service) History(ctx context.Context, userID, walletID string, q ledger.EntryQuery) (ledger.EntryPage, error) {
	if _, err := s.wallets.ValidateOwnership(ctx, walletID, userID); err != nil {
		return ledger.EntryPage{}, err
	}
	return s.engine.ListEntries(ctx, walletID, q)
}

// Get loads an entry whose wallet is owned by userID.
func (s *Service) Get(ctx context.Context, userID, entryID string) (ledger.Entry, error) {
	e, err := s.engine.GetEntry(ctx, entryID)
	if err != nil {
		return ledger.Entry{}, err
	}
	if _, err := s.wallets.ValidateOwnership(ctx, e.WalletID, userID); err != nil {
		return ledger.Entry{}, err
	}
	return e, nil
}

// GetByReference loads the entry a wallet owned by userID recorded for reference.
func (s *Service) GetByReference(ctx context.Context, userID, walletID, reference string) (ledger.Entry, error) {
	if _, err := s.wallets.ValidateOwnership(ctx, walletID, userID); err != nil {
		return ledger.Entry{}, err
	}
	return s.engine.GetEntryByReference(ctx, walletID, reference)
}
