package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/edvin/licensegate/internal/api/request"
	"github.com/edvin/licensegate/internal/api/response"
	"github.com/edvin/licensegate/internal/cryptlex"
	"github.com/edvin/licensegate/internal/license"
)

// LicenseService is the pipeline behind the license endpoints.
type LicenseService interface {
	Provision(ctx context.Context, body map[string]any) (json.RawMessage, error)
	OfflineActivation(ctx context.Context, body map[string]any) ([]byte, error)
}

// License handles the license endpoints.
type License struct {
	svc LicenseService
}

// NewLicense creates a new License handler.
func NewLicense(svc LicenseService) *License {
	return &License{svc: svc}
}

// Provision creates a license and returns the Cryptlex license object as is.
func (h *License) Provision(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeBody(w, r)
	if !ok {
		return
	}

	lic, err := h.svc.Provision(r.Context(), body)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteRawJSON(w, http.StatusOK, lic)
}

// OfflineActivation returns the signed offline activation response. The body
// is the upstream blob byte for byte.
func (h *License) OfflineActivation(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeBody(w, r)
	if !ok {
		return
	}

	blob, err := h.svc.OfflineActivation(r.Context(), body)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteBlob(w, http.StatusOK, blob)
}

func decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	body, err := request.DecodeObject(r)
	switch {
	case err == nil:
		return body, true
	case errors.Is(err, request.ErrInvalidJSON), errors.Is(err, request.ErrNotObject), errors.Is(err, request.ErrTooLarge):
		response.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("read request body")
		response.WriteError(w, http.StatusBadRequest, "could not read request body")
	}
	return nil, false
}

// writeServiceError maps pipeline errors to responses. Only errors whose
// detail the caller already knows or supplied are echoed back.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	logger := zerolog.Ctx(r.Context())

	var (
		valErr  *license.ValidationError
		authErr *cryptlex.AuthError
		apiErr  *cryptlex.APIError
	)
	switch {
	case errors.Is(err, license.ErrUnauthorized):
		logger.Info().Msg("request not authorized")
		response.WriteError(w, http.StatusUnauthorized, response.MsgUnauthorized)
	case errors.As(err, &valErr):
		logger.Info().Strs("fields", valErr.Fields).Msg("invalid request")
		response.WriteError(w, http.StatusBadRequest, valErr.Message)
	case errors.As(err, &authErr):
		logger.Info().Int("upstream_status", authErr.StatusCode).Msg("upstream rejected credentials")
		response.WriteErrorDetail(w, http.StatusUnauthorized, "upstream authentication failed: "+authErr.Detail, authErr.Detail)
	case errors.As(err, &apiErr):
		logger.Warn().Err(apiErr).Str("operation", apiErr.Op).Int("upstream_status", apiErr.StatusCode).Msg("upstream request failed")
		response.WriteErrorDetail(w, apiErr.Status(), "upstream request failed", apiErr.Detail)
	default:
		logger.Error().Err(err).Msg("internal error")
		response.WriteError(w, http.StatusInternalServerError, response.MsgInternal)
	}
}
