package handlers

import (
	"net/http"
	"strings"

	"plaxrec/internal/middleware"
	"plaxrec/internal/models"
	"plaxrec/internal/money"
	"plaxrec/internal/services"
)

// requestID prefers the body field and falls back to the Idempotency-Key header.
func requestID(r *http.Request, fromBody string) *string {
	value := strings.TrimSpace(fromBody)
	if value == "" {
		value = strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	}
	if value == "" {
		return nil
	}
	return &value
}

type collectionRequest struct {
	CollectorID     string `json:"collector_id" validate:"required"`
	WeightKg        string `json:"weight_kg" validate:"required,decimal"`
	PlasticType     string `json:"plastic_type" validate:"required,plastic"`
	ClientRequestID string `json:"client_request_id" validate:"omitempty,max=128"`
}

func (h *Handler) RegisterCollection(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req collectionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	weight, ok := parseAmount(w, "weight_kg", req.WeightKg, money.WeightDecimals)
	if !ok {
		return
	}
	result, err := h.settlements.RegisterCollection(r.Context(), services.CollectionRequest{
		RecyclerID:      userID,
		CollectorID:     req.CollectorID,
		WeightKg:        weight,
		PlasticType:     models.PlasticType(req.PlasticType),
		ClientRequestID: requestID(r, req.ClientRequestID),
	})
	respondSettlement(w, result, err, map[string]string{
		"batch_id":       result.BatchID,
		"plax_generated": money.FormatPlax(result.PlaxGenerated),
	})
}

type nfeRequest struct {
	TransformerID   string `json:"transformer_id" validate:"required"`
	WeightKg        string `json:"weight_kg" validate:"required,decimal"`
	NFeID           string `json:"nfe_id" validate:"required,nfe"`
	ClientRequestID string `json:"client_request_id" validate:"omitempty,max=128"`
}

func (h *Handler) EmitNFe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req nfeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	weight, ok := parseAmount(w, "weight_kg", req.WeightKg, money.WeightDecimals)
	if !ok {
		return
	}
	result, err := h.settlements.EmitNFe(r.Context(), services.NFeRequest{
		RecyclerID:      userID,
		TransformerID:   req.TransformerID,
		WeightKg:        weight,
		NFeID:           req.NFeID,
		ClientRequestID: requestID(r, req.ClientRequestID),
	})
	respondSettlement(w, result, err, map[string]string{
		"plax_generated": money.FormatPlax(result.PlaxGenerated),
	})
}

type purchaseRequest struct {
	AmountBRL       string `json:"amount_brl" validate:"required,decimal"`
	ClientRequestID string `json:"client_request_id" validate:"omitempty,max=128"`
}

func (h *Handler) BuyCertifiedLots(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req purchaseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, ok := parseAmount(w, "amount_brl", req.AmountBRL, money.BRLDecimals)
	if !ok {
		return
	}
	result, err := h.settlements.BuyCertifiedLots(r.Context(), services.PurchaseRequest{
		BuyerID:         userID,
		AmountBRL:       amount,
		ClientRequestID: requestID(r, req.ClientRequestID),
	})
	respondSettlement(w, result, err, map[string]string{
		"spent":               money.FormatBRL(result.Spent),
		"purchased_weight_kg": money.FormatWeight(result.PurchasedWeightKg),
		"reinvested_brl":      money.FormatBRL(result.ReinvestedBRL),
	})
}

type withdrawalRequest struct {
	Amount          string `json:"amount" validate:"required,decimal"`
	IsPlax          bool   `json:"is_plax"`
	ClientRequestID string `json:"client_request_id" validate:"omitempty,max=128"`
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req withdrawalRequest
	if !decodeBody(w, r, &req) {
		return
	}
	decimals := money.BRLDecimals
	if req.IsPlax {
		decimals = money.PlaxDecimals
	}
	amount, ok := parseAmount(w, "amount", req.Amount, decimals)
	if !ok {
		return
	}
	result, err := h.settlements.Withdraw(r.Context(), services.WithdrawalRequest{
		UserID:          userID,
		Amount:          amount,
		IsPlax:          req.IsPlax,
		ClientRequestID: requestID(r, req.ClientRequestID),
	})
	respondSettlement(w, result, err, map[string]string{
		"fee_brl": money.FormatBRL(result.FeeBRL),
		"net_brl": money.FormatBRL(result.NetBRL),
	})
}

type reinvestRequest struct {
	Amount          string `json:"amount" validate:"required,decimal"`
	InstitutionID   string `json:"institution_id" validate:"required"`
	ClientRequestID string `json:"client_request_id" validate:"omitempty,max=128"`
}

func (h *Handler) Reinvest(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req reinvestRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, ok := parseAmount(w, "amount", req.Amount, money.BRLDecimals)
	if !ok {
		return
	}
	result, err := h.settlements.Reinvest(r.Context(), services.ReinvestRequest{
		UserID:          userID,
		Amount:          amount,
		InstitutionID:   req.InstitutionID,
		ClientRequestID: requestID(r, req.ClientRequestID),
	})
	respondSettlement(w, result, err, map[string]string{
		"reinvested_brl": money.FormatBRL(result.ReinvestedBRL),
		"fee_brl":        money.FormatBRL(result.FeeBRL),
		"net_brl":        money.FormatBRL(result.NetBRL),
	})
}
