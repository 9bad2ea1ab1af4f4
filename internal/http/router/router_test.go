package router_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/straye-as/purchasing-api/internal/auth"
	"github.com/straye-as/purchasing-api/internal/config"
	"github.com/straye-as/purchasing-api/internal/domain"
	"github.com/straye-as/purchasing-api/internal/fulfillment"
	"github.com/straye-as/purchasing-api/internal/http/handler"
	"github.com/straye-as/purchasing-api/internal/http/middleware"
	"github.com/straye-as/purchasing-api/internal/http/router"
	"github.com/straye-as/purchasing-api/internal/lock"
	"github.com/straye-as/purchasing-api/internal/repository"
	"github.com/straye-as/purchasing-api/internal/service"
	"github.com/straye-as/purchasing-api/internal/storage"
	"github.com/straye-as/purchasing-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// tokenValidator accepts the role name as bearer token.
type tokenValidator struct{}

func (tokenValidator) ValidateToken(token string) (*auth.UserContext, error) {
	role := domain.UserRoleType(token)
	if !role.IsValid() {
		return nil, auth.ErrInvalidToken
	}
	return &auth.UserContext{
		UserID:      uuid.NewSHA1(uuid.NameSpaceOID, []byte(token)),
		DisplayName: "Test " + token,
		Roles:       []domain.UserRoleType{role},
	}, nil
}

type testServer struct {
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := testutil.NewTestDB(t)
	log := zap.NewNop()
	fcfg := &config.FulfillmentConfig{
		StrictAmountParsing:      true,
		NegativeGrandTotalPolicy: "allow",
		DeliveryTimezone:         "Europe/Istanbul",
		RequestNumberPrefix:      "PR",
	}
	cfg := &config.Config{
		App:         config.AppConfig{Environment: "test"},
		RateLimit:   config.RateLimitConfig{Enabled: false},
		Storage:     config.StorageConfig{MaxUploadSizeMB: 5},
		Fulfillment: *fcfg,
	}

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	clock := fulfillment.SystemClock{}

	requestRepo := repository.NewPurchaseRequestRepository(db)
	eventRepo := repository.NewShipmentEventRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	supplierRepo := repository.NewSupplierRepository(db)

	requests := service.NewPurchaseRequestService(requestRepo, eventRepo, repository.NewStatusHistoryRepository(db), orderRepo, repository.NewNumberSequenceRepository(db), fcfg, clock, log, db)
	shipments := service.NewShipmentService(repository.NewLineItemRepository(db), eventRepo, lock.NopLocker{}, clock, log, db)
	orders := service.NewOrderService(orderRepo, supplierRepo, fcfg, clock, log, db)
	invoices := service.NewInvoiceService(repository.NewInvoiceRepository(db), repository.NewInvoiceGroupRepository(db), orderRepo, requestRepo, store, fulfillment.NewAggregator(fulfillment.AggregatorPolicy{StrictAmounts: true}), log, db)

	rt := router.NewRouter(cfg, log, db, nil,
		auth.NewMiddlewareWithValidator(tokenValidator{}, "test-api-key", log),
		middleware.NewRateLimiter(&cfg.RateLimit, log),
		router.Handlers{
			PurchaseRequest: handler.NewPurchaseRequestHandler(requests, log),
			Shipment:        handler.NewShipmentHandler(shipments, log),
			Supplier:        handler.NewSupplierHandler(service.NewSupplierService(supplierRepo, log), log),
			Order:           handler.NewOrderHandler(orders, invoices, log),
			Invoice:         handler.NewInvoiceHandler(invoices, cfg.Storage.MaxUploadSizeMB, log),
			Auth:            handler.NewAuthHandler(log),
		})

	return &testServer{handler: rt.Setup()}
}

func (s *testServer) do(t *testing.T, method, path string, role domain.UserRoleType, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+string(role))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (s *testServer) createRequest(t *testing.T, quantities ...string) domain.PurchaseRequestDTO {
	t.Helper()
	items := make([]map[string]string, len(quantities))
	for i, q := range quantities {
		items[i] = map[string]string{"material": "Beton C30", "quantity": q, "unit": "m3"}
	}
	w := s.do(t, http.MethodPost, "/api/v1/purchase-requests", domain.RoleSiteManager, map[string]interface{}{
		"title":     "Temel betonu",
		"site":      "Kadikoy",
		"lineItems": items,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[domain.PurchaseRequestDTO](t, w)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database"`)
	assert.NotContains(t, w.Body.String(), `"redis"`)

	w = s.do(t, http.MethodGet, "/health/db", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/v1/purchase-requests", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/v1/purchase-requests", "nobody", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/purchase-requests", "", nil, "x-api-key", "test-api-key").Code)

	w := s.do(t, http.MethodGet, "/api/v1/auth/me", domain.RoleWarehouse, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[domain.AuthUserDTO](t, w)
	assert.Equal(t, []domain.UserRoleType{domain.RoleWarehouse}, me.Roles)
	assert.Contains(t, me.Capabilities, domain.CapabilityRecordShipment)
	assert.NotContains(t, me.Capabilities, domain.CapabilityManageOrders)
}

func TestShipmentFlow(t *testing.T) {
	s := newTestServer(t)
	pr := s.createRequest(t, "10", "4")
	require.Len(t, pr.LineItems, 2)
	assert.Equal(t, domain.RequestStatusPending, pr.Status)
	assert.Equal(t, "Beklemede", pr.StatusLabel)

	itemPath := "/api/v1/line-items/" + pr.LineItems[0].ID.String() + "/shipments"

	t.Run("site personnel cannot ship", func(t *testing.T) {
		w := s.do(t, http.MethodPost, itemPath, domain.RoleSitePersonnel, map[string]string{"quantity": "1"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("zero quantity is rejected", func(t *testing.T) {
		w := s.do(t, http.MethodPost, itemPath, domain.RoleWarehouse, map[string]string{"quantity": "0"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("over shipment is rejected", func(t *testing.T) {
		w := s.do(t, http.MethodPost, itemPath, domain.RoleWarehouse, map[string]string{"quantity": "11"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("partial shipment with retry", func(t *testing.T) {
		w := s.do(t, http.MethodPost, itemPath+"?locale=en", domain.RoleWarehouse, map[string]string{"quantity": "4"},
			handler.IdempotencyKeyHeader, "scan-001")
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		result := decode[domain.ShipmentResultDTO](t, w)
		assert.False(t, result.FullyFulfilled)
		assert.Equal(t, "6", result.RemainingQuantity.String())
		assert.Equal(t, domain.RequestStatusPartiallyShipped, result.RequestStatus)
		assert.Equal(t, "Partially shipped", result.StatusLabel)

		w = s.do(t, http.MethodPost, itemPath, domain.RoleWarehouse, map[string]string{"quantity": "4"},
			handler.IdempotencyKeyHeader, "scan-001")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		replay := decode[domain.ShipmentResultDTO](t, w)
		assert.True(t, replay.Replayed)
		assert.Equal(t, "6", replay.RemainingQuantity.String())
	})

	w := s.do(t, http.MethodGet, itemPath, domain.RoleWarehouse, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.ShipmentEventDTO](t, w), 1)

	w = s.do(t, http.MethodGet, "/api/v1/line-items/"+uuid.NewString()+"/shipments", domain.RoleWarehouse, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/line-items/"+uuid.NewString()+"/shipments", domain.RoleWarehouse, map[string]string{"quantity": "1"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTransitions(t *testing.T) {
	s := newTestServer(t)
	pr := s.createRequest(t, "5")
	base := "/api/v1/purchase-requests/" + pr.ID.String()

	w := s.do(t, http.MethodPost, base+"/transitions/teleport", domain.RoleSiteManager, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, base+"/transitions/escalate_to_purchasing", domain.RoleSiteManager, nil)
	assert.Equal(t, http.StatusConflict, w.Code, "pending requests cannot be escalated")

	w = s.do(t, http.MethodPost, base+"/transitions/mark_depot_unavailable", domain.RoleSiteManager, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, base+"/transitions", domain.RoleWarehouse, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{string(fulfillment.TransitionMarkDepotUnavailable)}, decode[domain.AllowedTransitionsDTO](t, w).Transitions)

	w = s.do(t, http.MethodPost, base+"/transitions/mark_depot_unavailable", domain.RoleWarehouse, map[string]string{"notes": "stokta yok"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.RequestStatusDepotUnavailable, decode[domain.PurchaseRequestDTO](t, w).Status)

	w = s.do(t, http.MethodPost, base+"/transitions/escalate_to_purchasing", domain.RoleSiteManager, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.RequestStatusSentToPurchasing, decode[domain.PurchaseRequestDTO](t, w).Status)

	w = s.do(t, http.MethodGet, base+"/history", domain.RoleSiteManager, nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode[[]domain.StatusHistoryDTO](t, w)
	require.Len(t, history, 3)
	notes := make(map[domain.RequestStatus]string, len(history))
	for _, h := range history {
		notes[h.ToStatus] = h.Notes
	}
	assert.Contains(t, notes, domain.RequestStatusPending)
	assert.Contains(t, notes, domain.RequestStatusSentToPurchasing)
	assert.Equal(t, "stokta yok", notes[domain.RequestStatusDepotUnavailable])
}

func TestValidationAndNotFound(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/suppliers", domain.RolePurchasing, map[string]string{"email": "not-an-email"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	apiErr := decode[domain.APIError](t, w)
	assert.Equal(t, domain.ErrorTypeValidation, apiErr.Type)
	assert.Contains(t, apiErr.Errors, "name")
	assert.Contains(t, apiErr.Errors, "email")

	w = s.do(t, http.MethodPost, "/api/v1/suppliers", domain.RoleWarehouse, map[string]string{"name": "Akcansa"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/purchase-requests/not-a-uuid", domain.RoleSiteManager, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/purchase-requests/"+uuid.NewString(), domain.RoleSiteManager, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, domain.ErrorTypeNotFound, decode[domain.APIError](t, w).Type)

	w = s.do(t, http.MethodGet, "/api/v1/purchase-requests?status=bogus", domain.RoleSiteManager, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/purchase-requests?status=partially_delivered", domain.RoleSiteManager, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/purchase-requests/statuses?locale=en", domain.RoleSitePersonnel, nil)
	require.Equal(t, http.StatusOK, w.Code)
	labels := decode[[]domain.StatusLabelDTO](t, w)
	assert.Len(t, labels, len(domain.AllRequestStatuses))
}

func TestTotalsPreview(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/totals/preview", domain.RolePurchasing, map[string]interface{}{
		"amounts": []map[string]string{
			{"amount": "100.50", "currency": "TRY"},
			{"amount": "49.50", "currency": "try"},
		},
		"currency": "TRY",
		"discount": "10",
		"tax":      "20",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	preview := decode[domain.TotalsPreviewDTO](t, w)
	assert.Equal(t, "150", preview.Subtotals["TRY"].String())
	require.NotNil(t, preview.GrandTotal)
	assert.Equal(t, "160", preview.GrandTotal.String())
}
