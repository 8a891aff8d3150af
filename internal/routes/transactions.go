package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/walletledger/internal/middleware"
	"github.com/congo-pay/walletledger/internal/transactions"
)

// RegisterTransactionRoutes wires credit, debit, transfer and history endpoints.
func RegisterTransactionRoutes(r fiber.Router, h *transactions.Handler) {
	read := middleware.RequirePermission(middleware.PermWalletRead)

	r.Post("/transactions/credit", middleware.RequirePermission(middleware.PermTransactionCredit), h.Credit)
	r.Post("/transactions/debit", middleware.RequirePermission(middleware.PermTransactionDebit), h.Debit)
	r.Post("/transactions/transfer", middleware.RequirePermission(middleware.PermTransactionDebit), h.Transfer)
	r.Get("/transactions/history", read, h.History)
	r.Get("/transactions/by-reference/:walletId/:reference", read, h.GetByReference)
	r.Get("/transactions/:entryId", read, h.Get)
}
