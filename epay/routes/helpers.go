package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"epay/epay/controllers"
	"epay/epay/services/chat"
	"epay/epay/utils/logging"
	"epay/epay/utils/types"

	"go.uber.org/zap"
)

// generic wrapper to reduce boilerplate
func handleJSON(handler func(r *http.Request) (any, int, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, status, err := handler(r)
		if err != nil {
			writeError(w, r, status, err)
			return
		}
		if res == nil {
			w.WriteHeader(status)
			return
		}
		writeJSON(w, status, res)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.ErrorLogger.Error("failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status == 0 {
		status = statusFor(err)
	}
	body := types.ErrorResponse{Error: err.Error()}

	var invalid *chat.ValidationError
	var storeErr *chat.StoreError
	var uploadErr *chat.UploadError
	switch {
	case errors.As(err, &invalid):
		body.Field = invalid.Field
	case errors.As(err, &storeErr):
		body.Op = storeErr.Op
	case errors.As(err, &uploadErr):
		body.Op = uploadErr.Op
	}
	if status >= http.StatusInternalServerError {
		logging.ErrorLogger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
	}
	writeJSON(w, status, body)
}

// statusFor maps chat errors onto HTTP statuses.
func statusFor(err error) int {
	var invalid *chat.ValidationError
	var storeErr *chat.StoreError
	var uploadErr *chat.UploadError
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.Is(err, controllers.ErrProfileNotFound):
		return http.StatusNotFound
	case errors.As(err, &storeErr):
		if storeErr.Timeout() {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case errors.As(err, &uploadErr):
		if uploadErr.Timeout() {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
