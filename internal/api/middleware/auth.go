package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/edvin/licensegate/internal/api/response"
	"github.com/edvin/licensegate/internal/model"
)

// KeyLookup resolves an API key to its active record. Unknown and revoked
// keys both yield nil with no error.
type KeyLookup interface {
	Lookup(ctx context.Context, key string) (*model.APIKey, error)
}

// Auth returns a middleware that validates the Authorization: Bearer header
// against the key store. A missing header, a malformed header, an unknown key
// and a revoked key all get the same 401 response.
func Auth(keys KeyLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := extractAPIKey(r)
			if key == "" {
				response.WriteError(w, http.StatusUnauthorized, response.MsgUnauthorized)
				return
			}

			logger := zerolog.Ctx(r.Context())

			rec, err := keys.Lookup(r.Context(), key)
			if err != nil {
				logger.Error().Err(err).Msg("api key lookup failed")
				response.WriteError(w, http.StatusInternalServerError, response.MsgInternal)
				return
			}
			if rec == nil {
				response.WriteError(w, http.StatusUnauthorized, response.MsgUnauthorized)
				return
			}

			logger.UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("key_id", rec.ID).Str("customer", rec.Customer)
			})

			next.ServeHTTP(w, r)
		})
	}
}

func extractAPIKey(r *http.Request) string {
	key, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return key
}
