package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftmart/craftmart-backend/api/middleware"
	"github.com/craftmart/craftmart-backend/internal/cart"
	"github.com/craftmart/craftmart-backend/internal/checkout"
	"github.com/craftmart/craftmart-backend/internal/orders"
	pkgAuth "github.com/craftmart/craftmart-backend/pkg/auth"
	"github.com/craftmart/craftmart-backend/pkg/config"
	"github.com/craftmart/craftmart-backend/pkg/db/models"
	"github.com/craftmart/craftmart-backend/pkg/enums"
	"github.com/craftmart/craftmart-backend/pkg/logger"
)

const fixedSession = "sess_0123456789abcdefgh"

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubCart struct {
	cart.Service
	lastSession string
}

func (s *stubCart) GetCart(_ context.Context, sessionID string) (*cart.CartView, error) {
	s.lastSession = sessionID
	return &cart.CartView{SessionID: sessionID, Items: []cart.CartLine{}, Currency: "USD"}, nil
}

type stubCheckout struct {
	input checkout.Input
}

func (s *stubCheckout) Create(_ context.Context, input checkout.Input) (*checkout.Result, error) {
	s.input = input
	return &checkout.Result{CheckoutURL: "https://pay.example/c/1", OrderID: 7}, nil
}

type stubOrders struct {
	orders.Service
}

func (stubOrders) List(context.Context, orders.ListInput) (*orders.ListResult, error) {
	return &orders.ListResult{Data: []models.Order{}}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App:        config.AppConfig{Env: "test"},
		JWT:        config.JWTConfig{Secret: "router-secret", Issuer: "craftmart", ExpirationMinutes: 10},
		Storefront: config.StorefrontConfig{PublicBaseURL: "https://shop.example", AllowedOrigins: []string{"https://shop.example"}},
	}
}

func newTestRouter(t *testing.T, deps Deps) http.Handler {
	t.Helper()
	if deps.Config == nil {
		deps.Config = testConfig()
	}
	deps.Logger = logger.Nop()
	if deps.SessionIDs == nil {
		deps.SessionIDs = func() string { return fixedSession }
	}
	return NewRouter(deps)
}

func tokenFor(t *testing.T, cfg *config.Config, role enums.Role) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{Subject: "ops", Role: role})
	require.NoError(t, err)
	return token
}

func TestHealthRoutes(t *testing.T) {
	router := newTestRouter(t, Deps{DB: stubPinger{}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-CraftMart-Env"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthReadyFailsWhenDatabaseDown(t *testing.T) {
	router := newTestRouter(t, Deps{DB: stubPinger{err: assert.AnError}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsRouteMountedWhenProvided(t *testing.T) {
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	router := newTestRouter(t, Deps{Metrics: metricsHandler})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics", rec.Body.String())
}

func TestCartIssuesSessionHeader(t *testing.T) {
	carts := &stubCart{}
	router := newTestRouter(t, Deps{Cart: carts})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, fixedSession, rec.Header().Get(middleware.CartSessionHeader))
	assert.Equal(t, fixedSession, carts.lastSession)
}

func TestCartReusesClientSession(t *testing.T) {
	carts := &stubCart{}
	router := newTestRouter(t, Deps{Cart: carts})

	existing := "client_session_value_01"
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set(middleware.CartSessionHeader, existing)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, existing, rec.Header().Get(middleware.CartSessionHeader))
	assert.Equal(t, existing, carts.lastSession)
}

func TestCheckoutRouteUsesCartSession(t *testing.T) {
	svc := &stubCheckout{}
	router := newTestRouter(t, Deps{Checkout: svc})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{"email":"steve@example.com","playerName":"Steve"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, fixedSession, svc.input.SessionID)
	assert.Equal(t, "Steve", svc.input.PlayerName)

	var body struct {
		Data checkout.Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "https://pay.example/c/1", body.Data.CheckoutURL)
	assert.Equal(t, uint64(7), body.Data.OrderID)
}

func TestWebhookRouteRejectsUnsignedRequests(t *testing.T) {
	cfg := testConfig()
	cfg.LemonSqueezy.WebhookSecret = "whsec"
	router := newTestRouter(t, Deps{Config: cfg, Webhook: nil})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/lemonsqueezy", strings.NewReader(`{}`)))
	// No service wired: the handler reports a server fault rather than 404.
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, rec.Header().Get(middleware.CartSessionHeader))
}

func TestAdminRoutesRequireToken(t *testing.T) {
	router := newTestRouter(t, Deps{Orders: stubOrders{}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutesEnforceRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, Deps{Config: cfg, Orders: stubOrders{}})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, cfg, enums.RoleFulfillment))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, cfg, enums.RoleAdmin))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
