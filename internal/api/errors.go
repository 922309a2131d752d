// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/spotbridge/internal/backend"
	"github.com/ManuGH/spotbridge/internal/log"
	"github.com/ManuGH/spotbridge/internal/spotify"
	"github.com/ManuGH/spotbridge/internal/token"
)

// errorBody is the JSON shape of every non-2xx response.
type errorBody struct {
	Error          string `json:"error"`
	Detail         string `json:"detail,omitempty"`
	UpstreamStatus int    `json:"upstream_status,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger := log.WithComponent("api")
		logger.Error().
			Err(err).
			Str(log.FieldEvent, "api.encode_error").
			Msg("failed to encode response")
	}
}

// writeError maps domain errors onto stable HTTP codes. A command against a
// backend that is still connecting comes back 409 so the caller retries after
// readiness instead of treating the daemon as broken; upstream Spotify
// failures come back 502 with the upstream status attached.
func writeError(w http.ResponseWriter, err error) {
	var upstream *spotify.APIError
	switch {
	case errors.Is(err, backend.ErrNotReady):
		writeJSON(w, http.StatusConflict, errorBody{Error: "not_ready", Detail: err.Error()})
	case errors.Is(err, backend.ErrDeviceNotFound):
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "device_not_found", Detail: err.Error()})
	case errors.Is(err, backend.ErrNoTokenProvider), errors.Is(err, token.ErrNoToken):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "no_credentials", Detail: err.Error()})
	case errors.As(err, &upstream):
		writeJSON(w, http.StatusBadGateway, errorBody{
			Error:          "upstream_error",
			Detail:         upstream.Error(),
			UpstreamStatus: upstream.Status,
		})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal_error", Detail: err.Error()})
	}
}

func writeBadRequest(w http.ResponseWriter, detail string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Detail: detail})
}
