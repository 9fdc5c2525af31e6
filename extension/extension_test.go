package extension_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/tally/extension"
	"github.com/xraph/tally/store/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestDefaults(t *testing.T) {
	e := extension.New()
	cfg := e.Config()
	assert.Equal(t, "/", cfg.BasePath)
	assert.Equal(t, 5*time.Second, cfg.HookTimeout)
	assert.Equal(t, 5, cfg.SequenceAttempts)
	assert.False(t, cfg.Compensation)
	assert.NotNil(t, e.Handler())
	assert.NoError(t, e.Health(context.Background()))
}

func TestConfigOverrides(t *testing.T) {
	e := extension.New(
		extension.WithConfig(extension.Config{SequenceAttempts: 9}),
		extension.WithBasePath("/api"),
		extension.WithCompensation(),
		extension.WithDisableRoutes(),
	)
	cfg := e.Config()
	assert.Equal(t, "/api", cfg.BasePath)
	assert.Equal(t, 9, cfg.SequenceAttempts)
	assert.True(t, cfg.Compensation)
	assert.Nil(t, e.Handler())
}

func TestServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	e := extension.New(extension.WithStore(memory.New()), extension.WithBasePath("/api"))
	require.NoError(t, e.Start(ctx))
	assert.Error(t, e.Start(ctx), "second start")

	req := httptest.NewRequest(http.MethodPost, "/api/clients", strings.NewReader(`{"name":"Don José"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// the mirror follows the engine's change feed
	require.Eventually(t, func() bool {
		return e.Mirror().Clients().Len() == 1
	}, time.Second, 5*time.Millisecond)

	w = httptest.NewRecorder()
	e.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/snapshots/clients", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Don José")

	w = httptest.NewRecorder()
	e.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, e.Stop(ctx))
}
