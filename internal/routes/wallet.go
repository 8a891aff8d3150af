package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/walletledger/internal/middleware"
	"github.com/congo-pay/walletledger/internal/wallet"
)

// RegisterWalletRoutes wires wallet-related endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	read := middleware.RequirePermission(middleware.PermWalletRead)
	write := middleware.RequirePermission(middleware.PermWalletWrite)

	r.Post("/wallets", write, h.Create)
	r.Get("/wallets", read, h.List)
	r.Get("/wallets/:walletId", read, h.Details)
	r.Put("/wallets/:walletId/status", write, h.UpdateStatus)
	r.Get("/wallets/:walletId/balance", read, h.Balance)
	r.Get("/wallets/:walletId/balance/point-in-time", read, h.BalanceAt)
	r.Get("/wallets/:walletId/balance/history", read, h.BalanceHistory)
	r.Post("/wallets/:walletId/balance/snapshot", write, h.Snapshot)
}
