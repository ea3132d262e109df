package main

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dashware/edgegate/internal/config"
	"github.com/dashware/edgegate/internal/gate"
	"github.com/dashware/edgegate/internal/observability"
	"github.com/dashware/edgegate/internal/ratelimit"
	"github.com/dashware/edgegate/internal/session"
)

func newTestRouter(t *testing.T, flags config.FlagSource) http.Handler {
	t.Helper()

	g := gate.New(gate.Options{
		Verifier: session.NewMisconfiguredVerifier(nil),
		Flags:    flags,
		Limiter:  ratelimit.NewNoopLimiter(),
	})

	return buildRouter(config.DefaultConfig(), g, observability.NopLogger())
}

func get(router http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestBuildRouter_BareDashboardIsGatedDirectly(t *testing.T) {
	router := newTestRouter(t, config.StaticFlags{})

	// No trailing-slash hop: the very first response for /dashboard is
	// the gate's login redirect, not a router-level 301.
	w := get(router, "/dashboard")
	require.Equal(t, http.StatusTemporaryRedirect, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/login", loc.Path)
	assert.Equal(t, "/dashboard", loc.Query().Get("callbackUrl"))
}

func TestBuildRouter_DashboardSubpaths(t *testing.T) {
	router := newTestRouter(t, config.StaticFlags{})

	w := get(router, "/dashboard/tasks")
	require.Equal(t, http.StatusTemporaryRedirect, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/dashboard/tasks", loc.Query().Get("callbackUrl"))
}

func TestBuildRouter_PublicPagesServed(t *testing.T) {
	router := newTestRouter(t, config.StaticFlags{SiteLocked: true})

	assert.Equal(t, http.StatusOK, get(router, "/waitlist").Code)
	assert.Equal(t, http.StatusOK, get(router, "/login").Code)
}

func TestBuildRouter_OperationalEndpointsBypassGate(t *testing.T) {
	router := newTestRouter(t, config.StaticFlags{SiteLocked: true})

	// Health and metrics sit in front of the gate and stay reachable
	// even while the site lock is on.
	assert.Equal(t, http.StatusOK, get(router, "/healthz").Code)
	assert.Equal(t, http.StatusOK, get(router, config.DefaultMetricsPath).Code)
}
