package handlers

import (
	"net/http"

	"plaxrec/internal/middleware"
	"plaxrec/internal/models"
	"plaxrec/internal/money"
	"plaxrec/internal/store"
)

func (h *Handler) ListInstitutions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.institutions.List())
}

// ListBatches filters by the status and recycler_id query parameters.
func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := store.BatchFilter{RecyclerID: query.Get("recycler_id")}
	if raw := query.Get("status"); raw != "" {
		status := models.BatchStatus(raw)
		if !status.IsValid() {
			respondError(w, http.StatusBadRequest, "invalid_status")
			return
		}
		filter.Status = status
	}
	batches, err := h.batches.List(r.Context(), filter)
	if err != nil {
		h.log.Error(r.Context(), "list batches failed", err)
		respondError(w, http.StatusInternalServerError, "unable to load batches")
		return
	}
	respondJSON(w, http.StatusOK, batches)
}

func (h *Handler) ListCertifiedBatches(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	batches, err := h.batches.List(r.Context(), store.BatchFilter{
		Status:            models.BatchCertifiedSold,
		CertifiedByUserID: userID,
	})
	if err != nil {
		h.log.Error(r.Context(), "list certified batches failed", err)
		respondError(w, http.StatusInternalServerError, "unable to load batches")
		return
	}
	respondJSON(w, http.StatusOK, batches)
}

type inventoryLine struct {
	WeightKg string `json:"weight_kg"`
	Count    int    `json:"count"`
}

// InventorySummary reports the caller's received stock, the certified lots it
// bought and the market of lots open for ESG purchase.
func (h *Handler) InventorySummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	filters := map[string]store.BatchFilter{
		"received":  {Status: models.BatchReceived, RecyclerID: userID},
		"processed": {Status: models.BatchProcessedNFe, RecyclerID: userID},
		"certified": {Status: models.BatchCertifiedSold, CertifiedByUserID: userID},
		"market":    {Status: models.BatchProcessedNFe},
	}
	summary := make(map[string]inventoryLine, len(filters))
	for name, filter := range filters {
		totals, err := h.batches.Totals(r.Context(), filter)
		if err != nil {
			h.log.Error(r.Context(), "inventory summary failed", err)
			respondError(w, http.StatusInternalServerError, "unable to load inventory")
			return
		}
		summary[name] = inventoryLine{WeightKg: money.FormatWeight(totals.WeightKg), Count: totals.Count}
	}
	respondJSON(w, http.StatusOK, summary)
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var txType models.TransactionType
	if raw := r.URL.Query().Get("type"); raw != "" {
		txType = models.TransactionType(raw)
		if !txType.IsValid() {
			respondError(w, http.StatusBadRequest, "invalid_type")
			return
		}
	}
	limit, offset := pagination(r)
	rows, err := h.transactions.ListByUser(r.Context(), userID, txType, limit, offset)
	if err != nil {
		h.log.Error(r.Context(), "list transactions failed", err)
		respondError(w, http.StatusInternalServerError, "unable to load transactions")
		return
	}
	respondJSON(w, http.StatusOK, rows)
}
