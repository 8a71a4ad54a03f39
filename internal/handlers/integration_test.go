package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"plaxrec/internal/models"
	"plaxrec/internal/services"
	"plaxrec/internal/store"
	"plaxrec/internal/store/memstore"
)

func newMemoryHandler(t *testing.T, profiles ...models.Profile) (*Handler, *memstore.Store) {
	t.Helper()
	s := memstore.New()
	ctx := context.Background()
	for _, profile := range profiles {
		if err := s.WithTx(ctx, func(tx store.Tx) error {
			return s.Profiles().Create(ctx, tx, profile)
		}); err != nil {
			t.Fatalf("create profile %s: %v", profile.ID, err)
		}
	}
	settlements := services.NewSettlementService(services.Deps{
		TxRunner:     s,
		Profiles:     s.Profiles(),
		Batches:      s.Batches(),
		Transactions: s.Transactions(),
		Movements:    s.Movements(),
		Audit:        s.Audit(),
	})
	h := newTestHandler(Deps{
		Settlements:  settlements,
		Profiles:     services.NewProfileService(s, s.Profiles(), s.Audit(), testSecret, time.Minute),
		Lookup:       s.Profiles(),
		Batches:      s.Batches(),
		Transactions: s.Transactions(),
		Audit:        s.Audit(),
		Reconciler:   s.Movements(),
	})
	return h, s
}

func TestCollectionAndNFeOverHTTP(t *testing.T) {
	h, _ := newMemoryHandler(t,
		models.Profile{ID: "c1", Name: "c1", Email: "c1@plaxrec.test", Role: models.RoleCollector},
		models.Profile{ID: "r1", Name: "r1", Email: "r1@plaxrec.test", Role: models.RoleRecycler},
		models.Profile{ID: "t1", Name: "t1", Email: "t1@plaxrec.test", Role: models.RoleTransformer},
		models.Profile{ID: "a1", Name: "a1", Email: "a1@plaxrec.test", Role: models.RoleAdmin},
	)

	rr := serve(t, h, http.MethodPost, "/settlements/collections", `{"collector_id":"c1","weight_kg":"100","plastic_type":"PET"}`, "r1")
	if rr.Code != http.StatusCreated {
		t.Fatalf("collection: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	rr = serve(t, h, http.MethodPost, "/settlements/nfe", `{"transformer_id":"t1","weight_kg":"60","nfe_id":"NFE-1"}`, "r1")
	if rr.Code != http.StatusCreated {
		t.Fatalf("nfe: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	rr = serve(t, h, http.MethodPost, "/settlements/nfe", `{"transformer_id":"t1","weight_kg":"60","nfe_id":"NFE-2"}`, "r1")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("second nfe: expected 422, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = serve(t, h, http.MethodGet, "/auth/me", "", "t1")
	var transformer models.Profile
	if err := json.Unmarshal(rr.Body.Bytes(), &transformer); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if !transformer.BalancePlax.IsPositive() {
		t.Fatalf("expected transformer credited, got %s", transformer.BalancePlax)
	}

	rr = serve(t, h, http.MethodGet, "/batches?recycler_id=r1", "", "r1")
	var batches []models.Batch
	if err := json.Unmarshal(rr.Body.Bytes(), &batches); err != nil {
		t.Fatalf("decode batches: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("expected split into 2 batches, got %d", len(batches))
	}

	rr = serve(t, h, http.MethodGet, "/admin/reconcile", "", "a1")
	if rr.Code != http.StatusOK || decodeMap(t, rr)["balanced"] != true {
		t.Fatalf("expected balanced ledger, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestRegisterThenSelectRoleOverHTTP(t *testing.T) {
	h, _ := newMemoryHandler(t)
	rr := serve(t, h, http.MethodPost, "/auth/register", `{"name":"Ana","email":"Ana@PlaxRec.test","password":"password123"}`, "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var session sessionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if session.Profile.Role != models.RoleGuest || session.Profile.Email != "ana@plaxrec.test" {
		t.Fatalf("unexpected profile: %+v", session.Profile)
	}

	rr = serve(t, h, http.MethodPost, "/settlements/withdrawals", `{"amount":"1"}`, session.Profile.ID)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("guest withdrawal: expected 403, got %d", rr.Code)
	}
	rr = serve(t, h, http.MethodPut, "/profiles/me/role", `{"role":"COLLECTOR"}`, session.Profile.ID)
	if rr.Code != http.StatusOK {
		t.Fatalf("select role: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	rr = serve(t, h, http.MethodPost, "/settlements/withdrawals", `{"amount":"1"}`, session.Profile.ID)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty balance withdrawal: expected 422, got %d: %s", rr.Code, rr.Body.String())
	}
	rr = serve(t, h, http.MethodPost, "/auth/register", `{"name":"Ana","email":"ana@plaxrec.test","password":"password123"}`, "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate email: expected 409, got %d", rr.Code)
	}
}
