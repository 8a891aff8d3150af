package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/walletledger/internal/ledger"
)

// StatusFor maps domain errors onto HTTP status codes.
func StatusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, ledger.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrWalletNotOperable),
		errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrCurrencyMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ledger.ErrAlreadyProcessed), errors.Is(err, ledger.ErrWalletExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler renders errors as {"error": message}. Unexpected errors are
// logged and their details withheld.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := StatusFor(err)
		msg := err.Error()
		if status == http.StatusInternalServerError {
			logger.Error("unhandled error",
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				slog.String("request_id", RequestIDFrom(c)),
				slog.Any("error", err),
			)
			msg = "internal server error"
		}
		return c.Status(status).JSON(fiber.Map{"error": msg})
	}
}
