package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterCredentialCache(t *testing.T) {
	reg := prometheus.NewRegistry()
	loaded := false
	RegisterCredentialCache(reg, func() bool { return loaded })

	expected := `
# HELP licensegate_credentials_cached 1 when the Cryptlex credentials secret is cached, 0 before the first successful fetch
# TYPE licensegate_credentials_cached gauge
licensegate_credentials_cached %s
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(strings.Replace(expected, "%s", "0", 1)), "licensegate_credentials_cached"))

	loaded = true
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(strings.Replace(expected, "%s", "1", 1)), "licensegate_credentials_cached"))
}

func TestNewServer(t *testing.T) {
	srv := NewServer(":9090")
	assert.Equal(t, ":9090", srv.Addr)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
