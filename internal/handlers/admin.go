package handlers

import (
	"net/http"

	"plaxrec/internal/store"
)

func (h *Handler) AdminListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.profiles.ListProfiles(r.Context())
	if err != nil {
		h.log.Error(r.Context(), "list profiles failed", err)
		respondError(w, http.StatusInternalServerError, "unable to load profiles")
		return
	}
	respondJSON(w, http.StatusOK, profiles)
}

func (h *Handler) AdminListTransactions(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	rows, err := h.transactions.ListAll(r.Context(), limit, offset)
	if err != nil {
		h.log.Error(r.Context(), "list all transactions failed", err)
		respondError(w, http.StatusInternalServerError, "unable to load transactions")
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	rows, err := h.audit.List(r.Context(), limit, offset)
	if err != nil {
		h.log.Error(r.Context(), "list audit logs failed", err)
		respondError(w, http.StatusInternalServerError, "unable to load audit logs")
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

// Reconcile compares every balance column with the sum of its movements.
// Only rows that disagree are returned.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	rows, err := h.reconciler.Reconcile(r.Context())
	if err != nil {
		h.log.Error(r.Context(), "reconcile failed", err)
		respondError(w, http.StatusInternalServerError, "unable to reconcile")
		return
	}
	mismatches := make([]store.ReconcileRow, 0)
	for _, row := range rows {
		if !row.Difference.IsZero() {
			mismatches = append(mismatches, row)
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"balanced":   len(mismatches) == 0,
		"checked":    len(rows),
		"mismatches": mismatches,
	})
}
