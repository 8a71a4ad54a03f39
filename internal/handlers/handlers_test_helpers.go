package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"plaxrec/internal/auth"
	"plaxrec/internal/config"
	"plaxrec/internal/models"
	"plaxrec/internal/services"
	"plaxrec/internal/store"
)

const testSecret = "secret"

type stubSettlementService struct {
	collectionFn func(ctx context.Context, req services.CollectionRequest) (services.Result, error)
	nfeFn        func(ctx context.Context, req services.NFeRequest) (services.Result, error)
	purchaseFn   func(ctx context.Context, req services.PurchaseRequest) (services.Result, error)
	withdrawFn   func(ctx context.Context, req services.WithdrawalRequest) (services.Result, error)
	reinvestFn   func(ctx context.Context, req services.ReinvestRequest) (services.Result, error)
}

func (s stubSettlementService) RegisterCollection(ctx context.Context, req services.CollectionRequest) (services.Result, error) {
	if s.collectionFn == nil {
		return services.Result{Success: true}, nil
	}
	return s.collectionFn(ctx, req)
}

func (s stubSettlementService) EmitNFe(ctx context.Context, req services.NFeRequest) (services.Result, error) {
	if s.nfeFn == nil {
		return services.Result{Success: true}, nil
	}
	return s.nfeFn(ctx, req)
}

func (s stubSettlementService) BuyCertifiedLots(ctx context.Context, req services.PurchaseRequest) (services.Result, error) {
	if s.purchaseFn == nil {
		return services.Result{Success: true}, nil
	}
	return s.purchaseFn(ctx, req)
}

func (s stubSettlementService) Withdraw(ctx context.Context, req services.WithdrawalRequest) (services.Result, error) {
	if s.withdrawFn == nil {
		return services.Result{Success: true}, nil
	}
	return s.withdrawFn(ctx, req)
}

func (s stubSettlementService) Reinvest(ctx context.Context, req services.ReinvestRequest) (services.Result, error) {
	if s.reinvestFn == nil {
		return services.Result{Success: true}, nil
	}
	return s.reinvestFn(ctx, req)
}

type stubProfileService struct {
	registerFn   func(ctx context.Context, req services.RegisterRequest) (services.Session, error)
	loginFn      func(ctx context.Context, email, password string) (services.Session, error)
	selectRoleFn func(ctx context.Context, profileID string, role models.Role) (services.Session, error)
	updateFn     func(ctx context.Context, profileID string, req services.UpdateProfileRequest) (models.Profile, error)
	getFn        func(ctx context.Context, profileID string) (models.Profile, error)
	listFn       func(ctx context.Context) ([]models.Profile, error)
	directoryFn  func(ctx context.Context, role models.Role) ([]services.DirectoryEntry, error)
}

func (s stubProfileService) Register(ctx context.Context, req services.RegisterRequest) (services.Session, error) {
	if s.registerFn == nil {
		return services.Session{}, nil
	}
	return s.registerFn(ctx, req)
}

func (s stubProfileService) Login(ctx context.Context, email, password string) (services.Session, error) {
	if s.loginFn == nil {
		return services.Session{}, nil
	}
	return s.loginFn(ctx, email, password)
}

func (s stubProfileService) SelectRole(ctx context.Context, profileID string, role models.Role) (services.Session, error) {
	if s.selectRoleFn == nil {
		return services.Session{}, nil
	}
	return s.selectRoleFn(ctx, profileID, role)
}

func (s stubProfileService) UpdateProfile(ctx context.Context, profileID string, req services.UpdateProfileRequest) (models.Profile, error) {
	if s.updateFn == nil {
		return models.Profile{}, nil
	}
	return s.updateFn(ctx, profileID, req)
}

func (s stubProfileService) GetProfile(ctx context.Context, profileID string) (models.Profile, error) {
	if s.getFn == nil {
		return models.Profile{ID: profileID}, nil
	}
	return s.getFn(ctx, profileID)
}

func (s stubProfileService) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx)
}

func (s stubProfileService) Directory(ctx context.Context, role models.Role) ([]services.DirectoryEntry, error) {
	if s.directoryFn == nil {
		return nil, nil
	}
	return s.directoryFn(ctx, role)
}

// roleLookup answers every profile lookup with the same role.
type roleLookup models.Role

func (r roleLookup) GetByID(_ context.Context, profileID string) (models.Profile, error) {
	return models.Profile{ID: profileID, Role: models.Role(r)}, nil
}

type stubBatchStore struct {
	listFn   func(ctx context.Context, filter store.BatchFilter) ([]models.Batch, error)
	totalsFn func(ctx context.Context, filter store.BatchFilter) (store.BatchTotals, error)
}

func (s stubBatchStore) List(ctx context.Context, filter store.BatchFilter) ([]models.Batch, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, filter)
}

func (s stubBatchStore) Totals(ctx context.Context, filter store.BatchFilter) (store.BatchTotals, error) {
	if s.totalsFn == nil {
		return store.BatchTotals{}, nil
	}
	return s.totalsFn(ctx, filter)
}

type stubTransactionStore struct {
	listByUserFn func(ctx context.Context, userID string, txType models.TransactionType, limit, offset int) ([]models.Transaction, error)
	listAllFn    func(ctx context.Context, limit, offset int) ([]models.Transaction, error)
}

func (s stubTransactionStore) ListByUser(ctx context.Context, userID string, txType models.TransactionType, limit, offset int) ([]models.Transaction, error) {
	if s.listByUserFn == nil {
		return nil, nil
	}
	return s.listByUserFn(ctx, userID, txType, limit, offset)
}

func (s stubTransactionStore) ListAll(ctx context.Context, limit, offset int) ([]models.Transaction, error) {
	if s.listAllFn == nil {
		return nil, nil
	}
	return s.listAllFn(ctx, limit, offset)
}

type stubAuditStore struct {
	listFn func(ctx context.Context, limit, offset int) ([]models.AuditLog, error)
}

func (s stubAuditStore) List(ctx context.Context, limit, offset int) ([]models.AuditLog, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, limit, offset)
}

type stubReconciler struct {
	reconcileFn func(ctx context.Context) ([]store.ReconcileRow, error)
}

func (s stubReconciler) Reconcile(ctx context.Context) ([]store.ReconcileRow, error) {
	if s.reconcileFn == nil {
		return nil, nil
	}
	return s.reconcileFn(ctx)
}

// newTestHandler fills every dependency left empty in deps with a stub.
func newTestHandler(deps Deps) *Handler {
	deps.Config = config.Config{
		App: config.AppConfig{Env: "test", AllowedOrigins: []string{"*"}},
		JWT: config.JWTConfig{Secret: testSecret, TTLMinutes: 1},
	}
	if deps.Settlements == nil {
		deps.Settlements = stubSettlementService{}
	}
	if deps.Profiles == nil {
		deps.Profiles = stubProfileService{}
	}
	if deps.Lookup == nil {
		deps.Lookup = roleLookup(models.RoleGuest)
	}
	if deps.Batches == nil {
		deps.Batches = stubBatchStore{}
	}
	if deps.Transactions == nil {
		deps.Transactions = stubTransactionStore{}
	}
	if deps.Audit == nil {
		deps.Audit = stubAuditStore{}
	}
	if deps.Reconciler == nil {
		deps.Reconciler = stubReconciler{}
	}
	if deps.Institutions == nil {
		deps.Institutions = store.NewInstitutionCatalog()
	}
	return New(deps)
}

// serve routes one request through the full router. An empty userID sends
// the request without a token.
func serve(t *testing.T, h *Handler, method, path, body, userID string) *httptest.ResponseRecorder {
	t.Helper()
	return serveRequest(t, h, method, path, body, userID, nil)
}

func serveWithHeader(t *testing.T, h *Handler, path, body, userID, key, value string) *httptest.ResponseRecorder {
	t.Helper()
	return serveRequest(t, h, http.MethodPost, path, body, userID, map[string]string{key: value})
}

func serveRequest(t *testing.T, h *Handler, method, path, body, userID string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		token, err := auth.GenerateToken(testSecret, userID, models.RoleGuest, time.Minute)
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)
	return rr
}

func decodeMap(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return body
}
