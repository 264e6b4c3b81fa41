package license

import (
	"context"
	"fmt"

	"github.com/edvin/licensegate/internal/cryptlex"
	"github.com/edvin/licensegate/internal/fields"
)

// TokenSource yields the bearer token for upstream calls.
type TokenSource func(ctx context.Context) (string, error)

// Authorizer decides how a request authenticates against Cryptlex.
type Authorizer interface {
	// Claim removes caller-supplied upstream credentials from body and returns
	// the token source for the request. It fails with ErrUnauthorized when the
	// caller cannot be authorized, before any network call is made.
	Claim(body map[string]any) (TokenSource, error)
}

// ServiceAccount authorizes upstream calls with the service access token from
// the credentials secret. The caller has already been checked by API key.
type ServiceAccount struct {
	creds CredentialSource
}

// NewServiceAccount returns an Authorizer backed by creds.
func NewServiceAccount(creds CredentialSource) *ServiceAccount {
	return &ServiceAccount{creds: creds}
}

func (a *ServiceAccount) Claim(map[string]any) (TokenSource, error) {
	return func(ctx context.Context) (string, error) {
		tok, err := a.creds.AccessToken(ctx)
		if err != nil {
			return "", fmt.Errorf("resolve service token: %w", err)
		}
		return tok, nil
	}, nil
}

// SelfService authorizes upstream calls with the caller's own Cryptlex login
// (email, password, accountId), exchanged for a session token per request.
// The credentials are never stored or logged.
type SelfService struct {
	upstream Upstream
}

// NewSelfService returns an Authorizer that logs in with caller credentials.
func NewSelfService(upstream Upstream) *SelfService {
	return &SelfService{upstream: upstream}
}

var credentialFields = []string{"email", "password", "accountId"}

func (a *SelfService) Claim(body map[string]any) (TokenSource, error) {
	vals := make([]string, len(credentialFields))
	complete := true
	for i, name := range credentialFields {
		v, _ := fields.Take(body, name)
		s, ok := v.(string)
		if !ok || s == "" {
			complete = false
		}
		vals[i] = s
	}
	if !complete {
		return nil, ErrUnauthorized
	}

	creds := cryptlex.Credentials{Email: vals[0], Password: vals[1], AccountID: vals[2]}
	return func(ctx context.Context) (string, error) {
		return a.upstream.Authenticate(ctx, creds)
	}, nil
}
