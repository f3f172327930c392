package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"mcp-dish-order/internal/auth"
	"mcp-dish-order/internal/catalog"
	"mcp-dish-order/internal/inventory"
	"mcp-dish-order/internal/models"
	"mcp-dish-order/internal/observability"
	"mcp-dish-order/internal/server"
	"mcp-dish-order/internal/storage"
)

type testServer struct {
	handler http.Handler
	store   *storage.Storage
	metrics *observability.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "server.db"))
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cat, err := catalog.New(
		[]models.Size{{Name: "small", Price: 4, MaxIngredients: 2}, {Name: "large", Price: 8, MaxIngredients: 4}},
		[]models.Base{{Name: "pizza"}, {Name: "pasta"}},
		[]models.Ingredient{
			{Name: "ham", Price: 1.1, Quantity: models.Limited(3)},
			{Name: "mushrooms", Price: 0.8},
			{Name: "truffle", Price: 3, Quantity: models.Limited(1), Requires: "mushrooms"},
			{Name: "pineapple", Price: 0.6, Incompatibilities: []string{"anchovies"}},
			{Name: "anchovies", Price: 0.9, Incompatibilities: []string{"pineapple"}},
		},
	)
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}
	if err := store.SeedMenu(context.Background(), cat); err != nil {
		t.Fatalf("seed: %v", err)
	}

	metrics := observability.NewMetrics()
	manager := inventory.NewManager(store, nil, nil, metrics, zap.NewNop())
	srv, err := server.NewDishOrderServer(&server.Config{Host: "127.0.0.1", Port: 0}, server.Deps{
		Catalog:   store,
		Inventory: manager,
		Metrics:   metrics,
		Logger:    zap.NewNop(),
		Ping:      store.Ping,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return &testServer{handler: srv.Handler(), store: store, metrics: metrics}
}

type caller struct {
	userID int64
	totp   bool
}

var (
	anonymous = caller{}
	alice     = caller{userID: 1}
	aliceTOTP = caller{userID: 1, totp: true}
	bob       = caller{userID: 2, totp: true}
)

// call posts a tool request and returns the status plus the decoded payload:
// the tool's JSON text on success, the error body otherwise.
func (ts *testServer) call(t *testing.T, who caller, tool string, args map[string]interface{}) (int, map[string]interface{}, []byte) {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{"name": tool, "arguments": args})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if who.userID != 0 {
		req.Header.Set(auth.HeaderUserID, strconv.FormatInt(who.userID, 10))
	}
	if who.totp {
		req.Header.Set(auth.HeaderAuthMethod, auth.MethodTOTP)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if rec.Code >= 300 {
		var errBody map[string]interface{}
		if err := json.Unmarshal(rec.Body.Bytes(), &errBody); err != nil {
			t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
		}
		return rec.Code, errBody, nil
	}

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result %q: %v", rec.Body.String(), err)
	}
	if len(result.Content) != 1 {
		t.Fatalf("expected one content item, got %s", rec.Body.String())
	}
	raw := []byte(result.Content[0].Text)
	var payload map[string]interface{}
	_ = json.Unmarshal(raw, &payload)
	return rec.Code, payload, raw
}

func TestGetMenu(t *testing.T) {
	ts := newTestServer(t)

	status, _, raw := ts.call(t, anonymous, "get_menu", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	var menu models.Menu
	if err := json.Unmarshal(raw, &menu); err != nil {
		t.Fatalf("decode menu: %v", err)
	}
	if len(menu.Sizes) != 2 || menu.Sizes[0].Name != "small" {
		t.Fatalf("unexpected sizes %+v", menu.Sizes)
	}
	if len(menu.Ingredients) != 5 || menu.Ingredients[2].Requires != "mushrooms" {
		t.Fatalf("unexpected ingredients %+v", menu.Ingredients)
	}
}

func TestPreviewDraft(t *testing.T) {
	ts := newTestServer(t)

	status, payload, _ := ts.call(t, anonymous, "preview_draft", map[string]interface{}{
		"size": "small",
		"events": []map[string]string{
			{"type": "toggle_ingredient", "value": "mushrooms"},
			{"type": "toggle_ingredient", "value": "truffle"},
		},
	})
	if status != http.StatusOK {
		t.Fatalf("status = %d: %v", status, payload)
	}
	if price := payload["price"].(float64); price < 7.799 || price > 7.801 {
		t.Fatalf("price = %v, want 7.8", price)
	}
	sel := payload["selection"].(map[string]interface{})
	annotations := sel["annotations"].(map[string]interface{})
	ham := annotations["ham"].(map[string]interface{})
	if ham["disabled"] != true {
		t.Fatalf("ham should be disabled once the small dish is full: %v", ham)
	}
	mushrooms := annotations["mushrooms"].(map[string]interface{})
	if mushrooms["disabled"] != true || mushrooms["detail"] != "truffle" {
		t.Fatalf("mushrooms should be locked by truffle: %v", mushrooms)
	}

	status, payload, _ = ts.call(t, anonymous, "preview_draft", map[string]interface{}{
		"events": []map[string]string{{"type": "explode"}},
	})
	if status != http.StatusUnprocessableEntity || payload["code"] != "invalid_parameters" {
		t.Fatalf("unknown event: %d %v", status, payload)
	}
}

func TestPlaceOrderLifecycle(t *testing.T) {
	ts := newTestServer(t)

	status, payload, _ := ts.call(t, alice, "place_order", map[string]interface{}{
		"size": "small", "base": "pizza", "ingredients": []string{"ham", "mushrooms"}, "price": 5.9,
	})
	if status != http.StatusCreated {
		t.Fatalf("place_order status = %d: %v", status, payload)
	}
	id := int64(payload["id"].(float64))
	if id <= 0 || int64(payload["userId"].(float64)) != 1 {
		t.Fatalf("unexpected order %v", payload)
	}
	if q, _ := ts.store.IngredientQuantity(context.Background(), "ham"); q.Value() != 2 {
		t.Fatalf("ham quantity = %v, want 2", q)
	}

	status, _, raw := ts.call(t, alice, "list_orders", nil)
	if status != http.StatusOK {
		t.Fatalf("list_orders status = %d", status)
	}
	var orders []models.Order
	if err := json.Unmarshal(raw, &orders); err != nil || len(orders) != 1 || orders[0].ID != id {
		t.Fatalf("list_orders = %s, %v", raw, err)
	}

	status, payload, _ = ts.call(t, alice, "view_order", map[string]interface{}{"id": id})
	if status != http.StatusOK {
		t.Fatalf("view_order status = %d", status)
	}
	if sel := payload["selection"].(map[string]interface{}); sel["readOnly"] != true {
		t.Fatalf("view_order selection should be read-only: %v", sel)
	}
	if status, _, _ = ts.call(t, bob, "view_order", map[string]interface{}{"id": id}); status != http.StatusNotFound {
		t.Fatalf("other user's view_order status = %d", status)
	}

	status, payload, _ = ts.call(t, alice, "cancel_order", map[string]interface{}{"id": id})
	if status != http.StatusUnauthorized || payload["error"] != "Missing TOTP authentication" {
		t.Fatalf("cancel without TOTP = %d %v", status, payload)
	}

	status, payload, _ = ts.call(t, bob, "cancel_order", map[string]interface{}{"id": id})
	if status != http.StatusOK || payload["numRowChanged"].(float64) != 0 {
		t.Fatalf("foreign cancel = %d %v", status, payload)
	}

	status, payload, _ = ts.call(t, aliceTOTP, "cancel_order", map[string]interface{}{"id": id})
	if status != http.StatusOK || payload["numRowChanged"].(float64) != 1 {
		t.Fatalf("cancel = %d %v", status, payload)
	}
	if q, _ := ts.store.IngredientQuantity(context.Background(), "ham"); q.Value() != 3 {
		t.Fatalf("ham quantity after cancel = %v, want 3", q)
	}

	status, payload, _ = ts.call(t, aliceTOTP, "cancel_order", map[string]interface{}{"id": 0})
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("cancel id 0 = %d %v", status, payload)
	}
}

func TestPlaceOrderRejections(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name  string
		who   caller
		args  map[string]interface{}
		want  int
		code  string
		error string
	}{
		{
			name:  "anonymous",
			who:   anonymous,
			args:  map[string]interface{}{"size": "small", "base": "pizza", "ingredients": []string{}, "price": 4},
			want:  http.StatusUnauthorized,
			error: "Not authenticated",
		},
		{
			name: "unknown base",
			who:  alice,
			args: map[string]interface{}{"size": "small", "base": "risotto", "ingredients": []string{}, "price": 4},
			want: http.StatusUnprocessableEntity,
			code: "unknown_base",
		},
		{
			name: "missing requirement",
			who:  alice,
			args: map[string]interface{}{"size": "small", "base": "pizza", "ingredients": []string{"truffle"}, "price": 7},
			want: http.StatusUnprocessableEntity,
			code: "missing_requirement",
		},
		{
			name: "incompatible",
			who:  alice,
			args: map[string]interface{}{"size": "small", "base": "pizza", "ingredients": []string{"pineapple", "anchovies"}, "price": 5.5},
			want: http.StatusUnprocessableEntity,
			code: "incompatible_ingredients",
		},
		{
			name: "price mismatch",
			who:  alice,
			args: map[string]interface{}{"size": "small", "base": "pizza", "ingredients": []string{"ham"}, "price": 5.11},
			want: http.StatusUnprocessableEntity,
			code: "price_mismatch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, payload, _ := ts.call(t, tt.who, "place_order", tt.args)
			if status != tt.want {
				t.Fatalf("status = %d, want %d (%v)", status, tt.want, payload)
			}
			if tt.code != "" && payload["code"] != tt.code {
				t.Fatalf("code = %v, want %s", payload["code"], tt.code)
			}
			if tt.error != "" && payload["error"] != tt.error {
				t.Fatalf("error = %v, want %s", payload["error"], tt.error)
			}
		})
	}

	if got := testutil.ToFloat64(ts.metrics.OrdersRejected.WithLabelValues("price_mismatch")); got != 1 {
		t.Fatalf("price_mismatch rejections = %v", got)
	}
	if q, _ := ts.store.IngredientQuantity(context.Background(), "ham"); q.Value() != 3 {
		t.Fatalf("rejected orders must not touch stock, ham = %v", q)
	}
}

func TestHTTPSurface(t *testing.T) {
	ts := newTestServer(t)

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET / = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/", nil))
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("OPTIONS / = %d", rec.Code)
	}

	if status, _, _ := ts.call(t, alice, "make_coffee", nil); status != http.StatusNotFound {
		t.Fatalf("unknown tool = %d", status)
	}

	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("{")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad JSON = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics = %d", rec.Code)
	}
}
