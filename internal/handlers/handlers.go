package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"plaxrec/internal/money"
	"plaxrec/internal/services"
	"plaxrec/internal/validator"

	"github.com/shopspring/decimal"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// decodeBody decodes and validates a JSON payload, answering 400 itself when
// it fails.
func decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	err := validator.DecodeJSON(r.Body, dest)
	if err == nil {
		return true
	}
	var fields validator.FieldErrors
	if errors.As(err, &fields) {
		respondJSON(w, http.StatusBadRequest, map[string]any{"error": "validation_failed", "fields": fields})
		return false
	}
	respondError(w, http.StatusBadRequest, "invalid payload")
	return false
}

func parseAmount(w http.ResponseWriter, field, raw string, maxDecimals int32) (decimal.Decimal, bool) {
	value, err := money.Parse(raw, maxDecimals)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation_failed",
			"fields": map[string]string{field: err.Error()},
		})
		return decimal.Zero, false
	}
	return value, true
}

func settlementStatus(kind services.ErrorKind) int {
	switch kind {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindInsufficientBalance:
		return http.StatusUnprocessableEntity
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondSettlement writes the outcome of a settlement call. fields carries the
// operation-specific amounts of a successful result.
func respondSettlement(w http.ResponseWriter, result services.Result, err error, fields map[string]string) {
	if err != nil {
		body := map[string]any{"success": false, "message": result.Message}
		settlementErr, ok := services.AsSettlementError(err)
		if !ok {
			body["error"] = "settlement_failed"
			respondJSON(w, http.StatusInternalServerError, body)
			return
		}
		body["error"] = string(settlementErr.Kind)
		if settlementErr.Shortfall.IsPositive() {
			body["shortfall"] = settlementErr.Shortfall.String()
		}
		respondJSON(w, settlementStatus(settlementErr.Kind), body)
		return
	}
	body := map[string]any{
		"success":        true,
		"message":        result.Message,
		"transaction_id": result.TransactionID,
	}
	for key, value := range fields {
		body[key] = value
	}
	respondJSON(w, http.StatusCreated, body)
}

func parseInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

// pagination reads limit and page, capping limit at 200.
func pagination(r *http.Request) (int, int) {
	query := r.URL.Query()
	limit := parseInt(query.Get("limit"), 50)
	if limit > 200 {
		limit = 200
	}
	page := parseInt(query.Get("page"), 1)
	return limit, (page - 1) * limit
}
