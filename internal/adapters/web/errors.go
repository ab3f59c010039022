package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fodouopn/gsa-manager/internal/core"
	"github.com/sirupsen/logrus"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type insufficientStockDetails struct {
	ProductID   int    `json:"product_id"`
	ProductName string `json:"product_name"`
	Available   string `json:"available"`
	Requested   string `json:"requested"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	writeErrorDetails(w, r, message, code, status, nil)
}

func writeErrorDetails(w http.ResponseWriter, r *http.Request, message, code string, status int, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error:     message,
		Code:      code,
		Details:   details,
		RequestID: requestIDFromContext(r.Context()),
	})
}

// writeServiceError maps the core error taxonomy onto HTTP statuses. Anything
// unrecognised is logged and reported as 500 without its message.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var stockErr *core.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		writeErrorDetails(w, r, err.Error(), "INSUFFICIENT_STOCK", http.StatusConflict, insufficientStockDetails{
			ProductID:   stockErr.ProductID,
			ProductName: stockErr.ProductName,
			Available:   stockErr.Available.String(),
			Requested:   stockErr.Requested.String(),
		})
	case errors.Is(err, core.ErrValidation):
		writeError(w, r, err.Error(), "VALIDATION_ERROR", http.StatusBadRequest)
	case errors.Is(err, core.ErrNotFound):
		writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, core.ErrInvalidStateTransition):
		writeError(w, r, err.Error(), "INVALID_STATE", http.StatusConflict)
	case errors.Is(err, core.ErrTokenExpired):
		writeError(w, r, err.Error(), "TOKEN_EXPIRED", http.StatusGone)
	case errors.Is(err, core.ErrTokenAlreadyUsed):
		writeError(w, r, err.Error(), "TOKEN_ALREADY_USED", http.StatusConflict)
	case errors.Is(err, core.ErrNoPriceDefined):
		writeError(w, r, err.Error(), "NO_PRICE_DEFINED", http.StatusUnprocessableEntity)
	default:
		h.logger.WithFields(logrus.Fields{
			"request_id": requestIDFromContext(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
		}).WithError(err).Error("request failed")
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeCreated(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(v)
}
