package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"collage-api/internal/assets"
	"collage-api/internal/manifest"
)

// ChecksumHeader carries the SHA-256 of a downloaded asset.
const ChecksumHeader = "X-Checksum-Sha256"

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn("failed to write response", "err", err)
	}
}

// writeError emits a JSON error. Details are only exposed in debug mode.
func (h *Handler) writeError(w http.ResponseWriter, status int, msg string, err error) {
	body := errorBody{Error: msg}
	if h.debug && err != nil {
		body.Detail = err.Error()
	}
	h.writeJSON(w, status, body)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, manifest.ErrUnknownType):
		return http.StatusNotFound, "unknown resource type"
	case errors.Is(err, manifest.ErrNotFound):
		return http.StatusNotFound, "template data not found"
	case errors.Is(err, assets.ErrNotFound):
		return http.StatusNotFound, "file not found"
	case errors.Is(err, assets.ErrOutsideRoot):
		return http.StatusBadRequest, "invalid file path"
	case errors.Is(err, assets.ErrBadName):
		return http.StatusBadRequest, "invalid file name"
	case errors.Is(err, assets.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "upload too large"
	case errors.Is(err, manifest.ErrParse):
		return http.StatusInternalServerError, "template data is corrupt"
	case errors.Is(err, manifest.ErrStructure):
		return http.StatusInternalServerError, "invalid template data structure"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	} else {
		h.log.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	}
	h.writeError(w, status, msg, err)
}
