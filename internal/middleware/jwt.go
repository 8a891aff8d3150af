package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	userIDLocal      = "user_id"
	permissionsLocal = "permissions"
)

// Permissions carried in the token's "permissions" claim.
const (
	PermWalletRead        = "wallet.read"
	PermWalletWrite       = "wallet.write"
	PermTransactionCredit = "transaction.credit"
	PermTransactionDebit  = "transaction.debit"
)

// Claims is the access token payload. Subject holds the caller's user ID.
type Claims struct {
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// JWTAuth verifies HS256 bearer tokens and stores the caller in locals.
func JWTAuth(secret []byte) fiber.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])

		var claims Claims
		token, err := parser.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (any, error) {
			return secret, nil
		})
		if err != nil || !token.Valid {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}
		if _, err := uuid.Parse(claims.Subject); err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token subject")
		}

		c.Locals(userIDLocal, claims.Subject)
		c.Locals(permissionsLocal, claims.Permissions)
		return c.Next()
	}
}

// RequirePermission rejects callers whose token lacks permission.
func RequirePermission(permission string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		perms, _ := c.Locals(permissionsLocal).([]string)
		if !slices.Contains(perms, permission) {
			return fiber.NewError(http.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}

// UserID returns the authenticated caller.
func UserID(c *fiber.Ctx) (string, error) {
	uid, _ := c.Locals(userIDLocal).(string)
	if uid == "" {
		return "", fiber.NewError(http.StatusUnauthorized, "user id claim not found in token")
	}
	return uid, nil
}

// SetUser stores a caller directly; used by tests and internal tooling that
// bypass token verification.
func SetUser(userID string, permissions ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(userIDLocal, userID)
		c.Locals(permissionsLocal, permissions)
		return c.Next()
	}
}
