package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/straye-as/purchasing-api/internal/auth"
	"github.com/straye-as/purchasing-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubValidator struct {
	user *auth.UserContext
}

func (s stubValidator) ValidateToken(token string) (*auth.UserContext, error) {
	if token != "good" {
		return nil, auth.ErrInvalidToken
	}
	return s.user, nil
}

func newMiddleware() *auth.Middleware {
	user := &auth.UserContext{
		UserID:      uuid.New(),
		DisplayName: "Depo",
		Roles:       []domain.UserRoleType{domain.RoleWarehouse},
	}
	return auth.NewMiddlewareWithValidator(stubValidator{user: user}, "secret-key", zap.NewNop())
}

func TestAuthenticate(t *testing.T) {
	m := newMiddleware()
	var seen *auth.UserContext
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := m.Authenticate(next)

	tests := []struct {
		name       string
		headers    map[string]string
		wantStatus int
		wantRole   domain.UserRoleType
	}{
		{"no credentials", nil, http.StatusUnauthorized, ""},
		{"bad scheme", map[string]string{"Authorization": "Basic abc"}, http.StatusUnauthorized, ""},
		{"bad token", map[string]string{"Authorization": "Bearer bad"}, http.StatusUnauthorized, ""},
		{"bad api key", map[string]string{"x-api-key": "nope"}, http.StatusUnauthorized, ""},
		{"bearer token", map[string]string{"Authorization": "Bearer good"}, http.StatusNoContent, domain.RoleWarehouse},
		{"api key", map[string]string{"x-api-key": "secret-key"}, http.StatusNoContent, domain.RoleAPIService},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/api/v1/purchase-requests", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantRole != "" {
				if assert.NotNil(t, seen) {
					assert.True(t, seen.HasRole(tt.wantRole))
				}
			} else {
				assert.Nil(t, seen)
			}
		})
	}
}

func TestRequireCapability(t *testing.T) {
	m := newMiddleware()
	handler := m.RequireCapability(domain.CapabilityManageSuppliers)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	for _, tc := range []struct {
		roles []domain.UserRoleType
		want  int
	}{
		{[]domain.UserRoleType{domain.RoleWarehouse}, http.StatusForbidden},
		{[]domain.UserRoleType{domain.RolePurchasing}, http.StatusOK},
		{[]domain.UserRoleType{domain.RoleAdmin}, http.StatusOK},
	} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(auth.WithUserContext(req.Context(), &auth.UserContext{Roles: tc.roles}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, tc.want, rec.Code, tc.roles)
	}
}

