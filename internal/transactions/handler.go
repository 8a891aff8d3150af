package transactions

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/walletledger/internal/httpquery"
	"github.com/congo-pay/walletledger/internal/ledger"
	"github.com/congo-pay/walletledger/internal/middleware"
)

// Handler exposes credit, debit, transfer and history endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a transaction handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type entryRequest struct {
	WalletID  string          `json:"wallet_id"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
}

type transferRequest struct {
	FromWalletID string          `json:"from_wallet_id"`
	ToWalletID   string          `json:"to_wallet_id"`
	Amount       decimal.Decimal `json:"amount"`
	Reference    string          `json:"reference"`
}

type entryResponse struct {
	ID        string    `json:"id"`
	WalletID  string    `json:"wallet_id"`
	Amount    string    `json:"amount"`
	Type      string    `json:"type"`
	Reference string    `json:"reference"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func toEntryResponse(e ledger.Entry) entryResponse {
	return entryResponse{
		ID:        e.ID,
		WalletID:  e.WalletID,
		Amount:    e.Amount.StringFixed(2),
		Type:      string(e.Type),
		Reference: e.Reference,
		Status:    string(e.Status),
		CreatedAt: e.CreatedAt,
	}
}

// Credit funds a wallet.
func (h *Handler) Credit(c *fiber.Ctx) error {
	var req entryRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	e, err := h.service.Credit(c.UserContext(), req.WalletID, req.Amount, req.Reference)
	if err != nil {
		return err
	}
	return c.JSON(toEntryResponse(e))
}

// Debit withdraws from one of the caller's wallets.
func (h *Handler) Debit(c *fiber.Ctx) error {
	uid, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	var req entryRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	e, err := h.service.Debit(c.UserContext(), uid, req.WalletID, req.Amount, req.Reference)
	if err != nil {
		return err
	}
	return c.JSON(toEntryResponse(e))
}

// Transfer moves funds from one of the caller's wallets to another wallet.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	uid, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.Transfer(c.UserContext(), uid, ledger.TransferInput{
		FromWalletID: req.FromWalletID,
		ToWalletID:   req.ToWalletID,
		Amount:       req.Amount,
		Reference:    req.Reference,
	})
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"debit_entry_id":  res.DebitEntryID,
		"credit_entry_id": res.CreditEntryID,
		"from_wallet_id":  res.FromWalletID,
		"to_wallet_id":    res.ToWalletID,
		"amount":          res.Amount.StringFixed(2),
		"reference":       res.Reference,
		"created_at":      res.CreatedAt,
	})
}

// History lists a wallet's entries with filters, sorting and pagination.
func (h *Handler) History(c *fiber.Ctx) error {
	uid, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	walletID := c.Query("wallet_id")
	if walletID == "" {
		return fiber.NewError(http.StatusBadRequest, "query parameter \"wallet_id\" is required")
	}
	q, err := entryQuery(c)
	if err != nil {
		return err
	}

	page, err := h.service.History(c.UserContext(), uid, walletID, q)
	if err != nil {
		return err
	}
	entries := make([]entryResponse, 0, len(page.Entries))
	for _, e := range page.Entries {
		entries = append(entries, toEntryResponse(e))
	}
	return c.JSON(fiber.Map{
		"entries": entries,
		"page": fiber.Map{
			"total_count": page.TotalCount,
			"page":        page.Page,
			"page_size":   page.PageSize,
			"total_pages": page.TotalPages,
		},
	})
}

func entryQuery(c *fiber.Ctx) (ledger.EntryQuery, error) {
	var (
		q   ledger.EntryQuery
		err error
	)
	if q.From, err = httpquery.Time(c, "from"); err != nil {
		return q, err
	}
	if q.To, err = httpquery.Time(c, "to"); err != nil {
		return q, err
	}
	if raw := c.Query("type"); raw != "" {
		typ, err := ledger.ParseEntryType(raw)
		if err != nil {
			return q, err
		}
		q.Type = &typ
	}
	if q.MinAmount, err = httpquery.Decimal(c, "min_amount"); err != nil {
		return q, err
	}
	if q.MaxAmount, err = httpquery.Decimal(c, "max_amount"); err != nil {
		return q, err
	}
	q.SortBy = ledger.ParseSortField(c.Query("sort_by"))
	q.Ascending = strings.EqualFold(c.Query("sort_order"), "asc")
	if q.Page, err = httpquery.Int(c, "page", 1); err != nil {
		return q, err
	}
	if q.PageSize, err = httpquery.Int(c, "page_size", 0); err != nil {
		return q, err
	}
	return q, nil
}

// Get returns one entry by id.
func (h *Handler) Get(c *fiber.Ctx) error {
	uid, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	e, err := h.service.Get(c.UserContext(), uid, c.Params("entryId"))
	if err != nil {
		return err
	}
	return c.JSON(toEntryResponse(e))
}

// GetByReference returns the entry a wallet recorded for a reference.
func (h *Handler) GetByReference(c *fiber.Ctx) error {
	uid, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	e, err := h.service.GetByReference(c.UserContext(), uid, c.Params("walletId"), c.Params("reference"))
	if err != nil {
		return err
	}
	return c.JSON(toEntryResponse(e))
}
