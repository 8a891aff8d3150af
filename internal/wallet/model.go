package wallet

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/congo-pay/walletledger/internal/ledger"
)

// Details is a wallet with its live balance.
type Details struct {
	ledger.Wallet
	Balance     decimal.Decimal
	LastEntryAt *time.Time
}

type walletResponse struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func toWalletResponse(w ledger.Wallet) walletResponse {
	return walletResponse{
		ID:        w.ID,
		OwnerID:   w.OwnerID,
		Currency:  w.Currency,
		Status:    string(w.Status),
		CreatedAt: w.CreatedAt,
	}
}

type detailsResponse struct {
	walletResponse
	Balance     string     `json:"balance"`
	LastEntryAt *time.Time `json:"last_entry_at"`
}

func toDetailsResponse(d Details) detailsResponse {
	return detailsResponse{
		walletResponse: toWalletResponse(d.Wallet),
		Balance:        d.Balance.StringFixed(2),
		LastEntryAt:    d.LastEntryAt,
	}
}

type balanceResponse struct {
	WalletID string    `json:"wallet_id"`
	Currency string    `json:"currency"`
	Balance  string    `json:"balance"`
	AsOf     time.Time `json:"as_of"`
}

type snapshotResponse struct {
	ID         string    `json:"id"`
	WalletID   string    `json:"wallet_id"`
	Balance    string    `json:"balance"`
	SnapshotAt time.Time `json:"snapshot_at"`
}

func toSnapshotResponse(s ledger.Snapshot) snapshotResponse {
	return snapshotResponse{
		ID:         s.ID,
		WalletID:   s.WalletID,
		Balance:    s.Balance.StringFixed(2),
		SnapshotAt: s.SnapshotAt,
	}
}

type pageResponse struct {
	TotalCount int `json:"total_count"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

func toPageResponse(p ledger.PageInfo) pageResponse {
	return pageResponse{TotalCount: p.TotalCount, Page: p.Page, PageSize: p.PageSize, TotalPages: p.TotalPages}
}
