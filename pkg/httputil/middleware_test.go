package httputil_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pharmstock/pharmstock-backend/pkg/httputil"
	"github.com/pharmstock/pharmstock-backend/pkg/tenant"
	"github.com/pharmstock/pharmstock-backend/pkg/testutil"
)

func TestTenantMiddleware(t *testing.T) {
	var gotTenantID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTenantID, _ = tenant.TenantID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := httputil.TenantMiddleware(next)

	t.Run("forwards tenant headers into context", func(t *testing.T) {
		req := testutil.NewHTTPRequest(http.MethodGet, "/api/v1/inventory/status", nil)
		req = testutil.WithTenantHeaders(req,
			"11111111-1111-1111-1111-111111111111",
			"nha-thuoc-an-khang",
			"tenant_nha_thuoc_an_khang")

		rr := testutil.ExecuteRequest(handler, req)

		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Equal(t, "11111111-1111-1111-1111-111111111111", gotTenantID)
	})

	t.Run("rejects requests without tenant context", func(t *testing.T) {
		req := testutil.NewHTTPRequest(http.MethodGet, "/api/v1/inventory/status", nil)

		rr := testutil.ExecuteRequest(handler, req)

		testutil.AssertStatus(t, rr, http.StatusForbidden)
		testutil.AssertBodyContains(t, rr, "missing tenant context")
	})

	t.Run("allows health check without tenant context", func(t *testing.T) {
		req := testutil.NewHTTPRequest(http.MethodGet, "/health", nil)

		rr := testutil.ExecuteRequest(handler, req)

		testutil.AssertStatus(t, rr, http.StatusOK)
	})
}

func TestRequirePermission(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := httputil.RequirePermission("inventory.import")(next)

	t.Run("passes with matching permission", func(t *testing.T) {
		req := testutil.NewHTTPRequest(http.MethodPost, "/api/v1/inventory/imports", nil)
		ctx := httputil.WithUserPermissions(req.Context(), []string{"inventory.*"})

		rr := testutil.ExecuteRequest(handler, req.WithContext(ctx))

		testutil.AssertStatus(t, rr, http.StatusNoContent)
	})

	t.Run("rejects without permission", func(t *testing.T) {
		req := testutil.NewHTTPRequest(http.MethodPost, "/api/v1/inventory/imports", nil)
		ctx := httputil.WithUserPermissions(req.Context(), []string{"catalog.read"})

		rr := testutil.ExecuteRequest(handler, req.WithContext(ctx))

		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})
}
