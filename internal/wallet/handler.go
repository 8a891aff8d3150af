package wallet

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/walletledger/internal/httpquery"
	"github.com/congo-pay/walletledger/internal/ledger"
	"github.com/congo-pay/walletledger/internal/middleware"
)

// Handler exposes wallet HTTP endpoints. Every route acts on behalf of the
// authenticated caller and only touches wallets the caller owns.
type Handler struct {
	service *Service
	engine  *ledger.Engine
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service, engine *ledger.Engine) *Handler {
	return &Handler{service: service, engine: engine}
}

type createRequest struct {
	Currency string `json:"currency"`
}

type statusRequest struct {
	Status string `json:"status"`
}

// Create opens a wallet for the caller.
func (h *Handler) Create(c *fiber.Ctx) error {
	uid, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	w, err := h.service.Create(c.UserContext(), CreateInput{OwnerID: uid, Currency: req.Currency})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(toWalletResponse(w))
}

// List returns the caller's wallets with balances.
func (h *Handler) List(c *fiber.Ctx) error {
	uid, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	wallets, err := h.service.ListByOwner(c.UserContext(), uid, c.Query("currency"))
	if err != nil {
		return err
	}
	out := make([]detailsResponse, 0, len(wallets))
	for _, d := range wallets {
		out = append(out, toDetailsResponse(d))
	}
	return c.JSON(fiber.Map{"wallets": out, "total_count": len(out)})
}

// owned resolves :walletId and checks the caller owns it.
func (h *Handler) owned(c *fiber.Ctx) (ledger.Wallet, error) {
	uid, err := middleware.UserID(c)
	if err != nil {
		return ledger.Wallet{}, err
	}
	return h.service.ValidateOwnership(c.UserContext(), c.Params("walletId"), uid)
}

// Details returns one wallet with its balance and last activity.
func (h *Handler) Details(c *fiber.Ctx) error {
	w, err := h.owned(c)
	if err != nil {
		return err
	}
	d, err := h.service.Details(c.UserContext(), w.ID)
	if err != nil {
		return err
	}
	return c.JSON(toDetailsResponse(d))
}

// UpdateStatus suspends, freezes, closes or reactivates a wallet.
func (h *Handler) UpdateStatus(c *fiber.Ctx) error {
	uid, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	status, err := ledger.ParseWalletStatus(req.Status)
	if err != nil {
		return err
	}
	w, err := h.service.UpdateStatus(c.UserContext(), c.Params("walletId"), uid, status)
	if err != nil {
		return err
	}
	return c.JSON(toWalletResponse(w))
}

// Balance returns the live balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	w, err := h.owned(c)
	if err != nil {
		return err
	}
	balance, err := h.engine.Balance(c.UserContext(), w.ID)
	if err != nil {
		return err
	}
	return c.JSON(balanceResponse{WalletID: w.ID, Currency: w.Currency, Balance: balance.StringFixed(2), AsOf: time.Now().UTC()})
}

// BalanceAt reconstructs the balance at ?as_of.
func (h *Handler) BalanceAt(c *fiber.Ctx) error {
	w, err := h.owned(c)
	if err != nil {
		return err
	}
	asOf, err := httpquery.Time(c, "as_of")
	if err != nil {
		return err
	}
	if asOf == nil {
		return fiber.NewError(http.StatusBadRequest, "query parameter \"as_of\" is required")
	}
	balance, err := h.engine.BalanceAt(c.UserContext(), w.ID, *asOf)
	if err != nil {
		return err
	}
	return c.JSON(balanceResponse{WalletID: w.ID, Currency: w.Currency, Balance: balance.StringFixed(2), AsOf: *asOf})
}

// Snapshot persists the current balance.
func (h *Handler) Snapshot(c *fiber.Ctx) error {
	w, err := h.owned(c)
	if err != nil {
		return err
	}
	snap, err := h.engine.Snapshot(c.UserContext(), w.ID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(toSnapshotResponse(snap))
}

// BalanceHistory lists snapshots newest first.
func (h *Handler) BalanceHistory(c *fiber.Ctx) error {
	w, err := h.owned(c)
	if err != nil {
		return err
	}
	var q ledger.SnapshotQuery
	if q.From, err = httpquery.Time(c, "from"); err != nil {
		return err
	}
	if q.To, err = httpquery.Time(c, "to"); err != nil {
		return err
	}
	if q.Page, err = httpquery.Int(c, "page", 1); err != nil {
		return err
	}
	if q.PageSize, err = httpquery.Int(c, "page_size", 0); err != nil {
		return err
	}

	page, err := h.engine.BalanceHistory(c.UserContext(), w.ID, q)
	if err != nil {
		return err
	}
	snaps := make([]snapshotResponse, 0, len(page.Snapshots))
	for _, s := range page.Snapshots {
		snaps = append(snaps, toSnapshotResponse(s))
	}
	return c.JSON(fiber.Map{"snapshots": snaps, "page": toPageResponse(page.PageInfo)})
}
