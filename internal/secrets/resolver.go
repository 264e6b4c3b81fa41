// Package secrets resolves the upstream service credentials kept in AWS
// Secrets Manager. The secret is fetched once per process and reused.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"golang.org/x/sync/singleflight"
)

// defaultFetchTimeout bounds a single Secrets Manager fetch, independent of
// the callers waiting on it.
const defaultFetchTimeout = 10 * time.Second

// ErrNoAccessToken is returned when the secret carries no service access token.
var ErrNoAccessToken = errors.New("secret has no access_token")

// Credentials is the JSON document stored in the secret.
type Credentials struct {
	AccessToken     string         `json:"access_token"`
	ProductID       string         `json:"product_id"`
	LicenseDefaults map[string]any `json:"license_defaults,omitempty"`
}

// SecretsAPI is the subset of the Secrets Manager client used by the resolver.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Resolver fetches the credentials secret on first use and caches it for the
// lifetime of the process. Concurrent first callers share a single fetch; a
// failed fetch is not cached.
type Resolver struct {
	client       SecretsAPI
	name         string
	fetchTimeout time.Duration

	group  singleflight.Group
	cached atomic.Pointer[Credentials]
}

// NewResolver creates a Resolver for the named secret.
func NewResolver(client SecretsAPI, name string) *Resolver {
	return &Resolver{client: client, name: name, fetchTimeout: defaultFetchTimeout}
}

// Static returns a Resolver that always yields c and never calls a secret store.
func Static(c Credentials) *Resolver {
	r := &Resolver{}
	r.cached.Store(&c)
	return r
}

// Credentials returns the cached credentials, fetching them if needed.
func (r *Resolver) Credentials(ctx context.Context) (*Credentials, error) {
	if c := r.cached.Load(); c != nil {
		return c, nil
	}

	ch := r.group.DoChan(r.name, func() (any, error) {
		if c := r.cached.Load(); c != nil {
			return c, nil
		}
		// The fetch is shared; one caller going away must not fail the rest,
		// so it runs detached under its own bound.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.fetchTimeout)
		defer cancel()
		c, err := r.fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		r.cached.Store(c)
		return c, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Credentials), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Loaded reports whether credentials have been cached.
func (r *Resolver) Loaded() bool {
	return r.cached.Load() != nil
}

func (r *Resolver) fetch(ctx context.Context) (*Credentials, error) {
	out, err := r.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(r.name),
	})
	if err != nil {
		return nil, fmt.Errorf("get secret %s: %w", r.name, err)
	}
	if out.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", r.name)
	}

	var c Credentials
	if err := json.Unmarshal([]byte(*out.SecretString), &c); err != nil {
		return nil, fmt.Errorf("decode secret %s: %w", r.name, err)
	}
	return &c, nil
}

// DefaultProductID returns the configured fallback product id, or "" when the
// secret defines none.
func (r *Resolver) DefaultProductID(ctx context.Context) (string, error) {
	c, err := r.Credentials(ctx)
	if err != nil {
		return "", err
	}
	return c.ProductID, nil
}

// AccessToken returns the service access token used for implicit upstream auth.
func (r *Resolver) AccessToken(ctx context.Context) (string, error) {
	c, err := r.Credentials(ctx)
	if err != nil {
		return "", err
	}
	if c.AccessToken == "" {
		return "", ErrNoAccessToken
	}
	return c.AccessToken, nil
}

// LicenseDefaults returns a copy of the server-side license field defaults.
func (r *Resolver) LicenseDefaults(ctx context.Context) (map[string]any, error) {
	c, err := r.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	return maps.Clone(c.LicenseDefaults), nil
}
