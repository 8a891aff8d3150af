package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/walletledger/internal/ledger"
	"github.com/congo-pay/walletledger/internal/logging"
	"github.com/congo-pay/walletledger/internal/middleware"
)

type fixture struct {
	app    *fiber.App
	svc    *Service
	engine *ledger.Engine
	owner  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	svc, engine := newTestService(t)
	owner := uuid.NewString()

	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(logging.Discard())})
	h := NewHandler(svc, engine)
	r := app.Group("/wallets", func(c *fiber.Ctx) error {
		// Tests pick the caller with X-Test-User.
		uid := c.Get("X-Test-User", owner)
		return middleware.SetUser(uid)(c)
	})
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/:walletId", h.Details)
	r.Put("/:walletId/status", h.UpdateStatus)
	r.Get("/:walletId/balance", h.Balance)
	r.Get("/:walletId/balance/point-in-time", h.BalanceAt)
	r.Get("/:walletId/balance/history", h.BalanceHistory)
	r.Post("/:walletId/balance/snapshot", h.Snapshot)

	return &fixture{app: app, svc: svc, engine: engine, owner: owner}
}

func (f *fixture) do(t *testing.T, method, target string, body any, user string) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	resp, err := f.app.Test(req)
	require.NoError(t, err)

	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestHandler_CreateAndList(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/wallets", map[string]string{"currency": "xaf"}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "XAF", body["currency"])
	assert.Equal(t, f.owner, body["owner_id"])
	assert.Equal(t, "active", body["status"])

	resp, _ = f.do(t, http.MethodPost, "/wallets", map[string]string{"currency": "XAF"}, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/wallets", map[string]string{"currency": "DOLLARS"}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = f.do(t, http.MethodGet, "/wallets", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["total_count"])
}

func TestHandler_OwnershipEnforced(t *testing.T) {
	f := newFixture(t)
	w, err := f.svc.Create(context.Background(), CreateInput{OwnerID: f.owner, Currency: "XAF"})
	require.NoError(t, err)

	stranger := uuid.NewString()
	for _, target := range []string{
		"/wallets/" + w.ID,
		"/wallets/" + w.ID + "/balance",
		"/wallets/" + w.ID + "/balance/history",
	} {
		resp, _ := f.do(t, http.MethodGet, target, nil, stranger)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, target)
	}
	resp, _ := f.do(t, http.MethodPut, "/wallets/"+w.ID+"/status", map[string]string{"status": "closed"}, stranger)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/wallets/"+uuid.NewString(), nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandler_BalanceEndpoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w, err := f.svc.Create(ctx, CreateInput{OwnerID: f.owner, Currency: "XAF"})
	require.NoError(t, err)
	require.NoError(t, f.engine.Credit(ctx, w.ID, decimal.RequireFromString("75.5"), "seed"))

	resp, body := f.do(t, http.MethodGet, "/wallets/"+w.ID+"/balance", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "75.50", body["balance"])
	assert.Equal(t, "XAF", body["currency"])

	past := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	resp, body = f.do(t, http.MethodGet, "/wallets/"+w.ID+"/balance/point-in-time?as_of="+past, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "0.00", body["balance"])

	resp, _ = f.do(t, http.MethodGet, "/wallets/"+w.ID+"/balance/point-in-time", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = f.do(t, http.MethodPost, "/wallets/"+w.ID+"/balance/snapshot", nil, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "75.50", body["balance"])

	resp, body = f.do(t, http.MethodGet, "/wallets/"+w.ID+"/balance/history?page_size=10", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snaps, ok := body["snapshots"].([]any)
	require.True(t, ok)
	assert.Len(t, snaps, 1)
	page := body["page"].(map[string]any)
	assert.EqualValues(t, 10, page["page_size"])
}

func TestHandler_UpdateStatus(t *testing.T) {
	f := newFixture(t)
	w, err := f.svc.Create(context.Background(), CreateInput{OwnerID: f.owner, Currency: "XAF"})
	require.NoError(t, err)

	resp, body := f.do(t, http.MethodPut, "/wallets/"+w.ID+"/status", map[string]string{"status": "Suspended"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "suspended", body["status"])

	resp, _ = f.do(t, http.MethodPut, "/wallets/"+w.ID+"/status", map[string]string{"status": "deleted"}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
