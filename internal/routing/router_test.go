package routing

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter() *Router {
	r := New()
	r.Add(&Route{ID: "api-patch", Methods: Methods("patch", "PUT"), Prefix: "/api/packages/"})
	r.Add(&Route{ID: "api-delete", Methods: Methods("DELETE"), Prefix: "/api/packages"})
	r.Add(&Route{ID: "site", Methods: Methods("GET", "HEAD"), Prefix: "/"})
	return r
}

func TestRouterMatch(t *testing.T) {
	r := newRouter()

	tt := []struct {
		method, path string
		wantID       string
		wantOK       bool
	}{
		{http.MethodPatch, "/api/packages/12", "api-patch", true},
		{http.MethodPut, "/api/packages", "api-patch", true},
		{http.MethodDelete, "/api/packages/12", "api-delete", true},
		{http.MethodGet, "/api/packages/12", "site", true},
		{http.MethodGet, "/gallery", "site", true},
		{http.MethodPatch, "/api/packagesXYZ", "", false},
		{http.MethodPost, "/contact", "", false},
	}

	for _, ts := range tt {
		rt, ok := r.Match(ts.method, ts.path)
		require.Equal(t, ts.wantOK, ok, "%s %s", ts.method, ts.path)
		if ok {
			assert.Equal(t, ts.wantID, rt.ID, "%s %s", ts.method, ts.path)
		}
	}
}

func TestRouteContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := RouteFrom(req)
	assert.False(t, ok)

	rt := &Route{ID: "site"}
	got, ok := RouteFrom(WithRoute(req, rt))
	require.True(t, ok)
	assert.Same(t, rt, got)
}
