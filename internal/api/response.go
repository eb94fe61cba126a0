package api

import (
	"encoding/json"
	"net/http"

	"github.com/rxtech-lab/argo-monitor/internal/control"
	"github.com/rxtech-lab/argo-monitor/pkg/errors"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeResult(w http.ResponseWriter, res control.Result) {
	status := http.StatusOK
	if !res.Success {
		status = http.StatusConflict
	}

	writeJSON(w, status, res)
}

// writeError renders err as a failed Result with the status of its code.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), control.Result{
		Success: false,
		Message: errors.Kind(err) + ": " + err.Error(),
	})
}

// statusFor maps input errors to 4xx and engine or storage failures to the
// gateway family.
func statusFor(err error) int {
	code := errors.GetCode(err)

	switch {
	case code == errors.ErrCodeNotFound:
		return http.StatusNotFound
	case code.IsClientError():
		return http.StatusBadRequest
	}

	switch code {
	case errors.ErrCodeUnreachable, errors.ErrCodeStorageError:
		return http.StatusServiceUnavailable
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case errors.ErrCodeAuthFailed, errors.ErrCodeBadStatus, errors.ErrCodeDecodeError,
		errors.ErrCodeSchemaMismatch, errors.ErrCodeRateLimited:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
