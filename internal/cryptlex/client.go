// Package cryptlex is a typed transport binding for the Cryptlex v3 REST API.
// It forwards fields as given and never interprets license semantics.
package cryptlex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	opLogin             = "login"
	opCreateLicense     = "create_license"
	opOfflineActivation = "offline_activation"

	maxResponseBytes = 4 << 20
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cryptlex_requests_total",
			Help: "Total number of requests sent to the Cryptlex API",
		},
		[]string{"operation", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cryptlex_request_duration_seconds",
			Help:    "Cryptlex API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// Credentials are a Cryptlex account login supplied by a caller.
type Credentials struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	AccountID string `json:"accountId"`
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
}

type offlineActivationRequest struct {
	OfflineRequest   string `json:"offlineRequest"`
	ResponseValidity int64  `json:"responseValidity"`
}

// Client calls the Cryptlex API.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewClient returns a client for baseURL, e.g. https://api.cryptlex.com/v3.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: "licensegate/1.0",
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// send posts body as JSON and returns the status code and raw response body.
// Only failures that leave no usable response are returned as errors.
func (c *Client) send(ctx context.Context, op, path, token string, body any) (int, []byte, error) {
	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("create %s request: %w", op, err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(op, "error").Inc()
		return 0, nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		requestsTotal.WithLabelValues(op, "error").Inc()
		return 0, nil, &TransportError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}
	if len(respBody) > maxResponseBytes {
		requestsTotal.WithLabelValues(op, "error").Inc()
		return 0, nil, &TransportError{Op: op, Err: ErrResponseTooLarge}
	}

	requestsTotal.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()
	return resp.StatusCode, respBody, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// Authenticate exchanges account credentials for a short-lived access token.
func (c *Client) Authenticate(ctx context.Context, creds Credentials) (string, error) {
	status, body, err := c.send(ctx, opLogin, "/auth/login", "", creds)
	if err != nil {
		return "", err
	}
	if !isSuccess(status) {
		return "", &AuthError{StatusCode: status, Detail: string(body)}
	}

	var lr loginResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if lr.AccessToken == "" {
		return "", fmt.Errorf("login response has no access token")
	}
	return lr.AccessToken, nil
}

// CreateLicense creates a license for productID. fields are sent alongside
// productId unchanged. The upstream license object is returned verbatim.
func (c *Client) CreateLicense(ctx context.Context, token, productID string, fields map[string]any) (json.RawMessage, error) {
	payload := maps.Clone(fields)
	if payload == nil {
		payload = map[string]any{}
	}
	payload["productId"] = productID

	status, body, err := c.send(ctx, opCreateLicense, "/licenses", token, payload)
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		return nil, &APIError{Op: opCreateLicense, StatusCode: status, Detail: string(body)}
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("create license: response is not JSON")
	}
	return json.RawMessage(body), nil
}

// CreateOfflineActivation asks Cryptlex to answer an offline activation
// request. The returned bytes are the signed response blob, unmodified.
func (c *Client) CreateOfflineActivation(ctx context.Context, token, licenseID, offlineRequest string, responseValidity int64) ([]byte, error) {
	path := fmt.Sprintf("/licenses/%s/offline-activation", url.PathEscape(licenseID))
	status, body, err := c.send(ctx, opOfflineActivation, path, token, offlineActivationRequest{
		OfflineRequest:   offlineRequest,
		ResponseValidity: responseValidity,
	})
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		return nil, &APIError{Op: opOfflineActivation, StatusCode: status, Detail: string(body)}
	}
	return body, nil
}
