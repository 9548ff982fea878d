package handlers_test

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"shopfront/internal/config"
	"shopfront/internal/http/handlers"
	"shopfront/internal/media"
	"shopfront/internal/repos"
)

const (
	staffUser = "admin"
	staffPass = "Admin#2025"
)

type harness struct {
	app *fiber.App
	db  *sqlx.DB
	t   *testing.T
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.Config{DBDriver: "sqlite", DBDSN: ":memory:", MediaDir: t.TempDir(), MediaURL: "/media", MaxUpload: 1 << 20}
	db, err := repos.OpenDB(cfg.DBDriver, cfg.DBDSN)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := media.NewLocal(cfg.MediaDir, cfg.MediaURL)
	require.NoError(t, err)

	deps := handlers.NewDeps(db, cfg, store)
	deps.Accounts.Cost = bcrypt.MinCost
	_, err = deps.Accounts.Register(t.Context(), staffUser, "", staffPass, true)
	require.NoError(t, err)
	_, err = deps.Accounts.Register(t.Context(), "shopper", "", "Shop#2025", false)
	require.NoError(t, err)

	return &harness{app: handlers.NewApp(deps, handlers.AppOptions{RateLimit: -1}), db: db, t: t}
}

func basic(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

// do sends body as JSON with staff credentials and decodes the JSON reply.
func (h *harness) do(method, path string, body any) (int, map[string]any) {
	h.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(h.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", basic(staffUser, staffPass))
	return h.send(req)
}

func (h *harness) send(req *http.Request) (int, map[string]any) {
	h.t.Helper()
	resp, err := h.app.Test(req, -1)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(h.t, json.Unmarshal(raw, &out), string(raw))
	}
	out["_raw"] = string(raw)
	return resp.StatusCode, out
}

func (h *harness) create(path string, body any) string {
	h.t.Helper()
	status, out := h.do(http.MethodPost, path, body)
	require.Equal(h.t, http.StatusCreated, status, out["_raw"])
	return out["id"].(string)
}

func TestAdminRequiresStaff(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil)
	status, _ := h.send(req)
	assert.Equal(t, http.StatusUnauthorized, status)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil)
	req.Header.Set("Authorization", basic("shopper", "Shop#2025"))
	status, _ = h.send(req)
	assert.Equal(t, http.StatusUnauthorized, status)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil)
	req.Header.Set("Authorization", basic(staffUser, "wrong"))
	status, _ = h.send(req)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = h.do(http.MethodGet, "/api/v1/categories", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestErrorKindsMapToStatus(t *testing.T) {
	h := newHarness(t)

	catID := h.create("/api/v1/categories", map[string]any{"name": "Books"})

	status, out := h.do(http.MethodPost, "/api/v1/categories", map[string]any{"name": "Books"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "constraint violation", out["kind"])
	assert.Equal(t, "name", out["field"])

	status, out = h.do(http.MethodPost, "/api/v1/products", map[string]any{"category_id": "nope", "name": "X", "price": "1.00"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "category_id", out["field"])

	status, out = h.do(http.MethodPost, "/api/v1/products", map[string]any{"category_id": catID, "name": "X", "price": "-1.00"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "price", out["field"])

	status, _ = h.do(http.MethodGet, "/api/v1/products/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = h.do(http.MethodPost, "/api/v1/categories", "not an object")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestProductCreateNeedsPrice(t *testing.T) {
	h := newHarness(t)
	catID := h.create("/api/v1/categories", map[string]any{"name": "Books"})

	status, out := h.do(http.MethodPost, "/api/v1/products", map[string]any{"category_id": catID, "name": "No Price"})
	assert.Equal(t, http.StatusBadRequest, status, out["_raw"])
	assert.Equal(t, "price", out["field"])

	status, out = h.do(http.MethodPost, "/api/v1/products", map[string]any{"category_id": catID, "name": "No Price", "price": nil})
	assert.Equal(t, http.StatusBadRequest, status, out["_raw"])

	status, out = h.do(http.MethodGet, "/api/v1/products", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, out["count"])

	status, created := h.do(http.MethodPost, "/api/v1/products", map[string]any{"category_id": catID, "name": "Free Sample", "price": "0"})
	require.Equal(t, http.StatusCreated, status, created["_raw"])
	status, got := h.do(http.MethodGet, "/api/v1/products/"+created["id"].(string), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, got["price"], created["price"])
}

func TestCatalogAndOrderFlow(t *testing.T) {
	h := newHarness(t)

	catID := h.create("/api/v1/categories", map[string]any{"name": "Books", "description": "Paper"})
	prodID := h.create("/api/v1/products", map[string]any{"category_id": catID, "name": "Go in Action", "price": "39.99"})
	userID := h.create("/api/v1/users", map[string]any{"username": "U1", "email": "u1@example.com", "password": "Passw0rd!"})

	status, out := h.do(http.MethodPost, "/api/v1/orders", map[string]any{
		"user_id":     userID,
		"total_price": "39.99",
		"items":       []map[string]any{{"product_id": prodID}},
	})
	require.Equal(t, http.StatusCreated, status, out["_raw"])
	orderID := out["id"].(string)
	items := out["items"].([]any)
	require.Len(t, items, 1)
	line := items[0].(map[string]any)
	assert.EqualValues(t, 1, line["quantity"])
	assert.Equal(t, "Go in Action x 1", line["label"])
	assert.Equal(t, "39.99", out["total_price"])

	status, out = h.do(http.MethodPost, "/api/v1/order-items", map[string]any{"order_id": orderID, "product_id": prodID})
	assert.Equal(t, http.StatusConflict, status, out["_raw"])

	status, out = h.do(http.MethodPatch, "/api/v1/order-items/"+line["id"].(string), map[string]any{"quantity": 0})
	assert.Equal(t, http.StatusBadRequest, status, out["_raw"])

	status, out = h.do(http.MethodGet, "/api/v1/users/"+userID+"/orders", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, out["orders"], 1)

	status, out = h.do(http.MethodPut, "/api/v1/users/"+userID+"/profile", map[string]any{"phone_number": "555-0100"})
	require.Equal(t, http.StatusOK, status, out["_raw"])
	assert.Equal(t, "Profile U1", out["label"])

	status, out = h.do(http.MethodDelete, "/api/v1/categories/"+catID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 3, out["total"])
	deleted := out["deleted"].(map[string]any)
	assert.EqualValues(t, 1, deleted["products"])
	assert.EqualValues(t, 1, deleted["order_items"])

	status, out = h.do(http.MethodGet, "/api/v1/orders/"+orderID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, out["items"])

	status, out = h.do(http.MethodDelete, "/api/v1/users/"+userID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 3, out["total"], out["_raw"])
}

func TestProductImageUploadAndMedia(t *testing.T) {
	h := newHarness(t)

	catID := h.create("/api/v1/categories", map[string]any{"name": "Games"})
	prodID := h.create("/api/v1/products", map[string]any{"category_id": catID, "name": "Pixel Quest", "price": 19})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", "box.png")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("\x89PNG fake"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/"+prodID+"/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", basic(staffUser, staffPass))
	status, out := h.send(req)
	require.Equal(t, http.StatusOK, status, out["_raw"])
	url := out["image_url"].(string)
	assert.True(t, strings.HasPrefix(url, "/media/products/"+prodID+"/"), url)

	status, out = h.send(httptest.NewRequest(http.MethodGet, url, nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "\x89PNG fake", out["_raw"])

	status, _ = h.send(httptest.NewRequest(http.MethodGet, "/media/products/%2e%2e/secret.png", nil))
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = h.send(httptest.NewRequest(http.MethodGet, "/media/products/none.png", nil))
	assert.Equal(t, http.StatusNotFound, status)
}

func TestUnexpectedErrorsStayFriendly(t *testing.T) {
	h := newHarness(t)
	_, err := h.db.Exec(`DROP TABLE order_items`)
	require.NoError(t, err)
	_, err = h.db.Exec(`DROP TABLE products`)
	require.NoError(t, err)

	status, out := h.do(http.MethodGet, "/api/v1/products", nil)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Something went wrong. Please try again.", out["error"])
	assert.NotContains(t, out["_raw"], "no such table")
}

func TestPublicEndpoints(t *testing.T) {
	h := newHarness(t)
	// One admin call so the store counter has a sample.
	h.do(http.MethodGet, "/api/v1/categories", nil)

	status, out := h.send(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, out["ok"])

	status, out = h.send(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, out["_raw"], "shopfront_store_operations_total")

	status, out = h.send(httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not found", out["error"])
}
