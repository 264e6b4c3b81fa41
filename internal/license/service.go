// Package license runs the provisioning and offline-activation pipelines:
// authorize the caller, normalize the request, call Cryptlex.
package license

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/edvin/licensegate/internal/cryptlex"
	"github.com/edvin/licensegate/internal/fields"
)

// Upstream is the Cryptlex API as used by the pipelines.
type Upstream interface {
	Authenticate(ctx context.Context, creds cryptlex.Credentials) (string, error)
	CreateLicense(ctx context.Context, token, productID string, fields map[string]any) (json.RawMessage, error)
	CreateOfflineActivation(ctx context.Context, token, licenseID, offlineRequest string, responseValidity int64) ([]byte, error)
}

// CredentialSource supplies the server-side fallbacks kept in the secret store.
type CredentialSource interface {
	DefaultProductID(ctx context.Context) (string, error)
	AccessToken(ctx context.Context) (string, error)
	LicenseDefaults(ctx context.Context) (map[string]any, error)
}

// Service holds no per-request state and is safe for concurrent use.
type Service struct {
	upstream Upstream
	creds    CredentialSource
	auth     Authorizer
}

// NewService creates a Service.
func NewService(upstream Upstream, creds CredentialSource, auth Authorizer) *Service {
	return &Service{
		upstream: upstream,
		creds:    creds,
		auth:     auth,
	}
}

// Provision creates a license from body and returns the upstream license
// object unchanged. body is the decoded request and is not modified.
func (s *Service) Provision(ctx context.Context, body map[string]any) (json.RawMessage, error) {
	req := fields.Normalize(body)

	token, err := s.auth.Claim(req)
	if err != nil {
		return nil, err
	}

	productID, err := s.resolveProductID(ctx, req)
	if err != nil {
		return nil, err
	}

	defaults, err := s.creds.LicenseDefaults(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve license defaults: %w", err)
	}
	payload := fields.WithDefaults(req, fields.Normalize(defaults))
	delete(payload, fields.ProductID)

	tok, err := token(ctx)
	if err != nil {
		return nil, err
	}

	logger := zerolog.Ctx(ctx)
	logger.Debug().
		Str("product_id", productID).
		Strs("fields", fields.Sorted(payload)).
		Msg("creating license")

	lic, err := s.upstream.CreateLicense(ctx, tok, productID, payload)
	if err != nil {
		return nil, err
	}

	var created struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(lic, &created)
	logger.Info().Str("license_id", created.ID).Str("product_id", productID).Msg("license created")

	return lic, nil
}

// resolveProductID takes the product id out of req, falling back to the
// configured default. An explicit value always wins.
func (s *Service) resolveProductID(ctx context.Context, req map[string]any) (string, error) {
	if v, ok := fields.Take(req, fields.ProductID); ok && v != nil {
		id, isString := v.(string)
		if !isString {
			return "", invalidField(fields.PublicName(fields.ProductID), "must be a string")
		}
		if id != "" {
			return id, nil
		}
	}

	def, err := s.creds.DefaultProductID(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve default product id: %w", err)
	}
	if def == "" {
		return "", &ValidationError{
			Message: "product_id is required",
			Fields:  []string{fields.PublicName(fields.ProductID)},
		}
	}
	return def, nil
}

// OfflineActivation answers an offline activation request. The returned
// bytes are the upstream response blob, byte for byte.
func (s *Service) OfflineActivation(ctx context.Context, body map[string]any) ([]byte, error) {
	req := fields.Normalize(body)

	token, err := s.auth.Claim(req)
	if err != nil {
		return nil, err
	}

	act, err := decodeOfflineActivation(req)
	if err != nil {
		return nil, err
	}

	tok, err := token(ctx)
	if err != nil {
		return nil, err
	}

	blob, err := s.upstream.CreateOfflineActivation(ctx, tok, act.LicenseID, act.OfflineRequest, act.ResponseValidity)
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Str("license_id", act.LicenseID).
		Int64("response_validity", act.ResponseValidity).
		Int("response_bytes", len(blob)).
		Msg("offline activation response created")

	return blob, nil
}
