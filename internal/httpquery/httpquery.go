// Package httpquery parses optional query-string parameters for fiber
// handlers. Malformed values become 400 errors naming the parameter.
package httpquery

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/walletledger/internal/ledger"
)

// Time parses an RFC 3339 timestamp or a bare date (YYYY-MM-DD, midnight UTC).
// An absent parameter yields nil.
func Time(c *fiber.Ctx, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, badParam(key, "an RFC 3339 timestamp or YYYY-MM-DD date")
}

// Int parses a base-10 integer, returning def when absent.
func Int(c *fiber.Ctx, key string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badParam(key, "an integer")
	}
	return n, nil
}

// Decimal parses a decimal amount. An absent parameter yields nil.
func Decimal(c *fiber.Ctx, key string) (*decimal.Decimal, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, badParam(key, "a decimal number")
	}
	if !ledger.WithinAmountBounds(d) {
		return nil, badParam(key, "a decimal amount within range")
	}
	return &d, nil
}

func badParam(key, want string) error {
	return fiber.NewError(http.StatusBadRequest, fmt.Sprintf("query parameter %q must be %s", key, want))
}
