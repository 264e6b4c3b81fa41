package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mw "github.com/edvin/licensegate/internal/api/middleware"
	"github.com/edvin/licensegate/internal/config"
	"github.com/edvin/licensegate/internal/cryptlex"
	"github.com/edvin/licensegate/internal/license"
	"github.com/edvin/licensegate/internal/model"
	"github.com/edvin/licensegate/internal/secrets"
)

type staticKeys map[string]*model.APIKey

func (k staticKeys) Lookup(_ context.Context, key string) (*model.APIKey, error) {
	return k[key], nil
}

// fakeCryptlex records upstream requests and answers with canned responses.
type fakeCryptlex struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  http.HandlerFunc
}

type recordedRequest struct {
	Path string
	Auth string
	Body map[string]any
}

func (f *fakeCryptlex) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{Path: r.URL.Path, Auth: r.Header.Get("Authorization"), Body: body})
	f.mu.Unlock()

	f.handler(w, r)
}

func (f *fakeCryptlex) calls() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func newTestServer(t *testing.T, mode config.AuthMode, upstream http.HandlerFunc, checks map[string]ReadyCheck) (*Server, *fakeCryptlex) {
	t.Helper()

	fake := &fakeCryptlex{handler: upstream}
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)

	cfg := &config.Config{AuthMode: mode}
	client := cryptlex.NewClient(ts.URL, 5*time.Second)
	creds := secrets.Static(secrets.Credentials{AccessToken: "svc-token", ProductID: "default-prod"})

	var auth license.Authorizer = license.NewServiceAccount(creds)
	if mode == config.AuthModeSelfService {
		auth = license.NewSelfService(client)
	}
	svc := license.NewService(client, creds, auth)

	keys := staticKeys{"good-key": {ID: "k1", Customer: "acme", Active: true}}
	return NewServer(zerolog.Nop(), cfg, svc, keys, checks), fake
}

func do(s *Server, method, path, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, config.AuthModeAPIKey, nil, nil)

	rec := do(s, http.MethodGet, "/healthz", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadyz(t *testing.T) {
	s, _ := newTestServer(t, config.AuthModeAPIKey, nil, map[string]ReadyCheck{
		"secret":   func(context.Context) error { return nil },
		"keystore": func(context.Context) error { return errors.New("arn:aws:dynamodb:eu-west-1:123:table/keys unreachable") },
	})

	rec := do(s, http.MethodGet, "/readyz", "", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"secret":"ok","keystore":"unavailable"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, config.AuthModeAPIKey, nil, nil)

	do(s, http.MethodGet, "/healthz", "", "")
	rec := do(s, http.MethodGet, "/metrics", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestMetricsEndpoint_SeparateListener(t *testing.T) {
	cfg := &config.Config{AuthMode: config.AuthModeAPIKey, MetricsListenAddr: ":9090"}
	s := NewServer(zerolog.Nop(), cfg, nil, staticKeys{}, nil)

	rec := do(s, http.MethodGet, "/metrics", "", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProvision_RequiresAPIKey(t *testing.T) {
	s, fake := newTestServer(t, config.AuthModeAPIKey, nil, nil)

	for _, key := range []string{"", "unknown-key"} {
		rec := do(s, http.MethodPost, "/v1/licenses", key, `{"product_id":"prod-1"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	assert.Empty(t, fake.calls())
}

func TestProvision_DefaultProduct(t *testing.T) {
	s, fake := newTestServer(t, config.AuthModeAPIKey, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"lic-789","key":"ABCD-EFGH"}`))
	}, nil)

	rec := do(s, http.MethodPost, "/v1/licenses", "good-key", `{}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"lic-789","key":"ABCD-EFGH"}`, rec.Body.String())

	calls := fake.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/licenses", calls[0].Path)
	assert.Equal(t, "Bearer svc-token", calls[0].Auth)
	assert.Equal(t, map[string]any{"productId": "default-prod"}, calls[0].Body)
}

func TestProvision_TranslatesFields(t *testing.T) {
	s, fake := newTestServer(t, config.AuthModeAPIKey, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"lic-1"}`))
	}, nil)

	rec := do(s, http.MethodPost, "/v1/licenses", "good-key",
		`{"product_id":"prod-1","allowed_activations":5,"type":"node-locked"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	calls := fake.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, map[string]any{
		"productId":          "prod-1",
		"allowedActivations": float64(5),
		"type":               "node-locked",
	}, calls[0].Body)
}

func TestProvision_InvalidJSONNeverCallsUpstream(t *testing.T) {
	s, fake := newTestServer(t, config.AuthModeAPIKey, nil, nil)

	rec := do(s, http.MethodPost, "/v1/licenses", "good-key", `{"product_id":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, fake.calls())
}

func TestProvision_UpstreamStatusForwarded(t *testing.T) {
	s, _ := newTestServer(t, config.AuthModeAPIKey, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"message":"license key already exists"}`))
	}, nil)

	rec := do(s, http.MethodPost, "/v1/licenses", "good-key", `{"product_id":"prod-1"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "license key already exists")
}

func TestOfflineActivation_BlobPassthrough(t *testing.T) {
	blob := []byte("-----SIGNED-----\x00\x01\x02")
	s, fake := newTestServer(t, config.AuthModeAPIKey, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(blob)
	}, nil)

	rec := do(s, http.MethodPost, "/v1/licenses/offline-activation", "good-key",
		`{"license_id":"lic-1","offline_request":"REQ","response_validity":86400}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.Equal(blob, rec.Body.Bytes()))

	calls := fake.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/licenses/lic-1/offline-activation", calls[0].Path)
	assert.Equal(t, map[string]any{"offlineRequest": "REQ", "responseValidity": float64(86400)}, calls[0].Body)
}

func TestOfflineActivation_MissingResponseValidity(t *testing.T) {
	s, fake := newTestServer(t, config.AuthModeAPIKey, nil, nil)

	rec := do(s, http.MethodPost, "/v1/licenses/offline-activation", "good-key",
		`{"license_id":"lic-1","offline_request":"REQ"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "response_validity")
	assert.Empty(t, fake.calls())
}

func TestSelfService_NoAPIKeyRequired(t *testing.T) {
	s, fake := newTestServer(t, config.AuthModeSelfService, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			w.Write([]byte(`{"accessToken":"user-token"}`))
		default:
			w.Write([]byte(`{"id":"lic-5"}`))
		}
	}, nil)

	rec := do(s, http.MethodPost, "/v1/licenses", "",
		`{"email":"a@b.c","password":"pw","accountId":"acc-1","product_id":"prod-1"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	calls := fake.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "/auth/login", calls[0].Path)
	assert.Equal(t, "Bearer user-token", calls[1].Auth)
	assert.Equal(t, map[string]any{"productId": "prod-1"}, calls[1].Body)
}

func TestSelfService_UpstreamRejectsCredentials(t *testing.T) {
	s, fake := newTestServer(t, config.AuthModeSelfService, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Invalid email or password"}`))
	}, nil)

	rec := do(s, http.MethodPost, "/v1/licenses", "",
		`{"email":"a@b.c","password":"wrong","accountId":"acc-1","product_id":"prod-1"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "authentication failed")
	assert.Contains(t, rec.Body.String(), "Invalid email or password")
	assert.NotContains(t, rec.Body.String(), "wrong")
	assert.Len(t, fake.calls(), 1)
}

func TestSelfService_IncompleteCredentials(t *testing.T) {
	s, fake := newTestServer(t, config.AuthModeSelfService, nil, nil)

	rec := do(s, http.MethodPost, "/v1/licenses", "", `{"email":"a@b.c","product_id":"prod-1"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, fake.calls())
}

func TestSelfService_ServesWithoutKeyStore(t *testing.T) {
	cfg := &config.Config{AuthMode: config.AuthModeSelfService}
	creds := secrets.Static(secrets.Credentials{ProductID: "default-prod"})
	client := cryptlex.NewClient("http://127.0.0.1:1", time.Second)
	svc := license.NewService(client, creds, license.NewSelfService(client))

	var keys mw.KeyLookup
	s := NewServer(zerolog.Nop(), cfg, svc, keys, nil)

	rec := do(s, http.MethodPost, "/v1/licenses", "", `{"product_id":"prod-1"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
