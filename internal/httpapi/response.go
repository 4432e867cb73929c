package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"poolbridge/internal/engine"
	"poolbridge/internal/registry"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, successResponse{Status: "success", Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message, requestID string) {
	writeJSON(w, status, errorResponse{
		Status: "error",
		Error:  errorPayload{Code: code, Message: message, RequestID: requestID},
	})
}

func mapEngineError(err error) (status int, code string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, engine.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, engine.ErrNotOperator):
		return http.StatusForbidden, "not_operator"
	case errors.Is(err, engine.ErrPaused):
		return http.StatusServiceUnavailable, "paused"
	case errors.Is(err, engine.ErrInvalidPool):
		return http.StatusNotFound, "invalid_pool"
	case errors.Is(err, registry.ErrDuplicatePool):
		return http.StatusConflict, "duplicate_pool"
	case errors.Is(err, registry.ErrUnknownPool):
		return http.StatusNotFound, "invalid_pool"
	case errors.Is(err, engine.ErrZeroAccount):
		return http.StatusBadRequest, "zero_account"
	case errors.Is(err, engine.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid_amount"
	case errors.Is(err, engine.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, "insufficient_balance"
	case errors.Is(err, engine.ErrFeePayment):
		return http.StatusPaymentRequired, "fee_payment_failed"
	case errors.Is(err, engine.ErrInvalidSpot):
		return http.StatusConflict, "invalid_spot"
	case errors.Is(err, engine.ErrReentrancy):
		return http.StatusConflict, "reentrant_call"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
