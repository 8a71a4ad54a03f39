package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"plaxrec/internal/models"
	"plaxrec/internal/revenue"
	"plaxrec/internal/store"
	"plaxrec/internal/store/memstore"
	"plaxrec/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type recordingHub struct {
	mu      sync.Mutex
	updates []websocket.BalanceUpdate
}

func (h *recordingHub) BroadcastBalance(_ string, update websocket.BalanceUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, update)
}

type harness struct {
	store *memstore.Store
	svc   *SettlementService
	hub   *recordingHub
}

func newHarness(t *testing.T, policy string, profiles ...models.Profile) *harness {
	t.Helper()
	s := memstore.New()
	for _, profile := range profiles {
		if err := s.WithTx(context.Background(), func(tx store.Tx) error {
			return s.Profiles().Create(context.Background(), tx, profile)
		}); err != nil {
			t.Fatalf("create profile %s: %v", profile.ID, err)
		}
	}
	resolver, err := revenue.NewResolver(policy, s.Profiles(), nil)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	hub := &recordingHub{}
	svc := NewSettlementService(Deps{
		TxRunner:     s,
		Profiles:     s.Profiles(),
		Batches:      s.Batches(),
		Transactions: s.Transactions(),
		Movements:    s.Movements(),
		Audit:        s.Audit(),
		Resolver:     resolver,
		Hub:          hub,
	})
	return &harness{store: s, svc: svc, hub: hub}
}

func chainProfiles() []models.Profile {
	return []models.Profile{
		profile("c1", models.RoleCollector),
		profile("r1", models.RoleRecycler),
		profile("t1", models.RoleTransformer),
		profile("e1", models.RoleESGBuyer),
		profile("a1", models.RoleAdmin),
	}
}

func profile(id string, role models.Role) models.Profile {
	return models.Profile{ID: id, Name: id, Email: id + "@plaxrec.test", Role: role}
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

// deposit books an opening balance the way the demo seed does, so the
// journal keeps reconciling.
func (h *harness) deposit(t *testing.T, profileID string, asset models.Asset, amount string) {
	t.Helper()
	ctx := context.Background()
	value := dec(amount)
	err := h.store.WithTx(ctx, func(tx store.Tx) error {
		record := models.Transaction{
			ID:          uuid.NewString(),
			CreatedAt:   time.Now().UTC(),
			Type:        models.TxDeposit,
			Status:      models.TxCompleted,
			Description: "opening balance",
			ToUserID:    &profileID,
			Metadata:    "{}",
		}
		if err := h.store.Transactions().Create(ctx, tx, record); err != nil {
			return err
		}
		if err := h.store.Profiles().AdjustBalances(ctx, tx, profileID, models.BalanceDelta{}.Add(asset, value)); err != nil {
			return err
		}
		return h.store.Movements().Insert(ctx, tx, []models.BalanceMovement{{
			ID:            uuid.NewString(),
			TransactionID: record.ID,
			ProfileID:     profileID,
			Asset:         asset,
			Amount:        value,
			Description:   "opening balance",
			CreatedAt:     record.CreatedAt,
		}})
	})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
}

func (h *harness) profile(t *testing.T, id string) models.Profile {
	t.Helper()
	got, err := h.store.Profiles().GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get profile %s: %v", id, err)
	}
	return got
}

func (h *harness) batches(t *testing.T, filter store.BatchFilter) []models.Batch {
	t.Helper()
	rows, err := h.store.Batches().List(context.Background(), filter)
	if err != nil {
		t.Fatalf("list batches: %v", err)
	}
	return rows
}

func (h *harness) requireReconciled(t *testing.T) {
	t.Helper()
	rows, err := h.store.Movements().Reconcile(context.Background())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	for _, row := range rows {
		if !row.Difference.IsZero() {
			t.Fatalf("profile %s asset %s stored %s journal %s", row.ProfileID, row.Asset, row.Stored, row.Journal)
		}
	}
}

func requireAmount(t *testing.T, label string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("%s: expected %s, got %s", label, want, got)
	}
}

func collect(t *testing.T, h *harness, weight string) Result {
	t.Helper()
	result, err := h.svc.RegisterCollection(context.Background(), CollectionRequest{
		RecyclerID:  "r1",
		CollectorID: "c1",
		WeightKg:    dec(weight),
		PlasticType: models.PlasticPET,
	})
	if err != nil {
		t.Fatalf("register collection: %v", err)
	}
	return result
}

func TestSettlementChainEndToEnd(t *testing.T) {
	h := newHarness(t, revenue.PolicySingle, chainProfiles()...)
	h.deposit(t, "e1", models.AssetBRL, "1000")
	ctx := context.Background()

	collected := collect(t, h, "100")
	if !collected.Success || collected.BatchID == "" || collected.TransactionID == "" {
		t.Fatalf("unexpected collection result %#v", collected)
	}
	requireAmount(t, "plax generated", collected.PlaxGenerated, "1000")
	requireAmount(t, "collector plax", h.profile(t, "c1").BalancePlax, "1000")
	requireAmount(t, "recycler locked", h.profile(t, "r1").LockedPlax, "1000")
	received := h.batches(t, store.BatchFilter{Status: models.BatchReceived})
	if len(received) != 1 || !received[0].WeightKg.Equal(dec("100")) {
		t.Fatalf("expected one 100kg received batch, got %#v", received)
	}

	released, err := h.svc.EmitNFe(ctx, NFeRequest{RecyclerID: "r1", TransformerID: "t1", WeightKg: dec("60"), NFeID: "35240100099"})
	if err != nil || !released.Success {
		t.Fatalf("emit nfe: %v %#v", err, released)
	}
	recycler := h.profile(t, "r1")
	requireAmount(t, "recycler locked", recycler.LockedPlax, "400")
	requireAmount(t, "recycler plax", recycler.BalancePlax, "600")
	requireAmount(t, "transformer plax", h.profile(t, "t1").BalancePlax, "600")
	processed := h.batches(t, store.BatchFilter{Status: models.BatchProcessedNFe})
	received = h.batches(t, store.BatchFilter{Status: models.BatchReceived})
	if len(processed) != 1 || !processed[0].WeightKg.Equal(dec("60")) {
		t.Fatalf("expected one 60kg processed batch, got %#v", processed)
	}
	if len(received) != 1 || !received[0].WeightKg.Equal(dec("40")) {
		t.Fatalf("expected 40kg left received, got %#v", received)
	}
	if processed[0].ParentBatchID == nil || *processed[0].ParentBatchID != collected.BatchID {
		t.Fatalf("split must point at its origin, got %v", processed[0].ParentBatchID)
	}
	if processed[0].NFeID == nil || *processed[0].NFeID != "35240100099" {
		t.Fatalf("expected nfe id on processed batch")
	}
	requireAmount(t, "remainder plax", received[0].PlaxGenerated, "400")

	bought, err := h.svc.BuyCertifiedLots(ctx, PurchaseRequest{BuyerID: "e1", AmountBRL: dec("120")})
	if err != nil || !bought.Success {
		t.Fatalf("buy: %v %#v", err, bought)
	}
	requireAmount(t, "spent", bought.Spent, "120")
	requireAmount(t, "weight", bought.PurchasedWeightKg, "60")
	requireAmount(t, "reinvested", bought.ReinvestedBRL, "36")
	requireAmount(t, "buyer brl", h.profile(t, "e1").BalanceBRL, "916")
	requireAmount(t, "collector brl", h.profile(t, "c1").BalanceBRL, "18")
	requireAmount(t, "recycler brl", h.profile(t, "r1").BalanceBRL, "36")
	requireAmount(t, "transformer brl", h.profile(t, "t1").BalanceBRL, "30")
	sold := h.batches(t, store.BatchFilter{CertifiedByUserID: "e1"})
	if len(sold) != 1 || sold[0].Status != models.BatchCertifiedSold || sold[0].CertificationDate == nil {
		t.Fatalf("expected the 60kg lot certified to e1, got %#v", sold)
	}

	total := decimal.Zero
	for _, batch := range h.batches(t, store.BatchFilter{}) {
		total = total.Add(batch.WeightKg)
	}
	requireAmount(t, "conserved weight", total, "100")
	h.requireReconciled(t)
}

func TestRegisterCollectionRejectsBadInput(t *testing.T) {
	h := newHarness(t, revenue.PolicySingle, chainProfiles()...)
	cases := []struct {
		name string
		req  CollectionRequest
		want error
	}{
		{"zero weight", CollectionRequest{RecyclerID: "r1", CollectorID: "c1", WeightKg: decimal.Zero, PlasticType: models.PlasticPET}, ErrValidation},
		{"bad plastic", CollectionRequest{RecyclerID: "r1", CollectorID: "c1", WeightKg: dec("1"), PlasticType: "ABS"}, ErrValidation},
		{"unknown collector", CollectionRequest{RecyclerID: "r1", CollectorID: "ghost", WeightKg: dec("1"), PlasticType: models.PlasticPP}, ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := h.svc.RegisterCollection(context.Background(), tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if result.Success || result.Message == "" {
				t.Fatalf("expected failed result with message, got %#v", result)
			}
		})
	}
	if len(h.batches(t, store.BatchFilter{})) != 0 {
		t.Fatalf("rejected collections must not create batches")
	}
}

func TestCounterpartiesMustHoldTheirRole(t *testing.T) {
	h := newHarness(t, revenue.PolicySingle, chainProfiles()...)
	ctx := context.Background()

	_, err := h.svc.RegisterCollection(ctx, CollectionRequest{RecyclerID: "r1", CollectorID: "r1", WeightKg: dec("100"), PlasticType: models.PlasticPET})
	if settlementErr, ok := AsSettlementError(err); !ok || settlementErr.Kind != KindValidation {
		t.Fatalf("expected validation error for recycler as collector, got %v", err)
	}
	recycler := h.profile(t, "r1")
	requireAmount(t, "recycler plax", recycler.BalancePlax, "0")
	requireAmount(t, "recycler locked", recycler.LockedPlax, "0")
	if len(h.batches(t, store.BatchFilter{})) != 0 {
		t.Fatalf("rejected collection must not create a batch")
	}

	collect(t, h, "10")
	_, err = h.svc.EmitNFe(ctx, NFeRequest{RecyclerID: "r1", TransformerID: "r1", WeightKg: dec("10"), NFeID: "5"})
	if settlementErr, ok := AsSettlementError(err); !ok || settlementErr.Kind != KindValidation {
		t.Fatalf("expected validation error for recycler as transformer, got %v", err)
	}
	recycler = h.profile(t, "r1")
	requireAmount(t, "recycler plax", recycler.BalancePlax, "0")
	requireAmount(t, "recycler locked", recycler.LockedPlax, "100")
	if got := h.batches(t, store.BatchFilter{Status: models.BatchReceived}); len(got) != 1 {
		t.Fatalf("rejected nfe must leave the batch received, got %d", len(got))
	}
	h.requireReconciled(t)
}

func TestEmitNFeInsufficientLockedLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t, revenue.PolicySingle, chainProfiles()...)
	collect(t, h, "10")

	_, err := h.svc.EmitNFe(context.Background(), NFeRequest{RecyclerID: "r1", TransformerID: "t1", WeightKg: dec("20"), NFeID: "1"})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	settlementErr, _ := AsSettlementError(err)
	requireAmount(t, "shortfall", settlementErr.Shortfall, "100")
	recycler := h.profile(t, "r1")
	requireAmount(t, "locked", recycler.LockedPlax, "100")
	requireAmount(t, "plax", recycler.BalancePlax, "0")
	requireAmount(t, "transformer", h.profile(t, "t1").BalancePlax, "0")
	received := h.batches(t, store.BatchFilter{Status: models.BatchReceived})
	if len(received) != 1 || !received[0].WeightKg.Equal(dec("10")) {
		t.Fatalf("batch must stay untouched, got %#v", received)
	}
}

func TestEmitNFeChecksStockBeforeMutating(t *testing.T) {
	h := newHarness(t, revenue.PolicySingle, chainProfiles()...)
	collect(t, h, "10")
	collect(t, h, "5")
	h.deposit(t, "r1", models.AssetLockedPlax, "1000")

	_, err := h.svc.EmitNFe(context.Background(), NFeRequest{RecyclerID: "r1", TransformerID: "t1", WeightKg: dec("20"), NFeID: "1"})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	settlementErr, _ := AsSettlementError(err)
	requireAmount(t, "stock shortfall", settlementErr.Shortfall, "5")
	if got := h.batches(t, store.BatchFilter{Status: models.BatchProcessedNFe}); len(got) != 0 {
		t.Fatalf("no batch may move on a short allocation, got %#v", got)
	}
	requireAmount(t, "locked", h.profile(t, "r1").LockedPlax, "1150")
}

func TestEmitNFeConsumesBatchesOldestFirst(t *testing.T) {
	h := newHarness(t, revenue.PolicySingle, chainProfiles()...)
	first := collect(t, h, "10")
	second := collect(t, h, "10")

	if _, err := h.svc.EmitNFe(context.Background(), NFeRequest{RecyclerID: "r1", TransformerID: "t1", WeightKg: dec("15"), NFeID: "2"}); err != nil {
		t.Fatalf("emit nfe: %v", err)
	}
	received := h.batches(t, store.BatchFilter{Status: models.BatchReceived})
	if len(received) != 1 || received[0].ID != second.BatchID || !received[0].WeightKg.Equal(dec("5")) {
		t.Fatalf("expected second batch shrunk to 5kg, got %#v", received)
	}
	processed := h.batches(t, store.BatchFilter{Status: models.BatchProcessedNFe})
	if len(processed) != 2 {
		t.Fatalf("expected full first batch plus split, got %#v", processed)
	}
	var sawFirst bool
	for _, batch := range processed {
		if batch.ID == first.BatchID {
			sawFirst = true
		}
	}
	if !sawFirst {
		t.Fatalf("first batch must transition in place")
	}
}

func TestEmitNFeRequiresNFeID(t *testing.T) {
	h := newHarness(t, revenue.PolicySingle, chainProfiles()...)
	collect(t, h, "10")
	_, err := h.svc.EmitNFe(context.Background(), NFeRequest{RecyclerID: "r1", TransformerID: "t1", WeightKg: dec("1"), NFeID: "  "})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestBuyCertifiedLotsSplitsLastLot(t *testing.T) {
	h := newHarness(t, revenue.PolicySingle, chainProfiles()...)
	h.deposit(t, "e1", models.AssetBRL, "100")
	collect(t, h, "60")
	if _, err := h.svc.EmitNFe(context.Background(), NFeRequest{RecyclerID: "r1", TransformerID: "t1", WeightKg: dec("60"), NFeID: "3"}); err != nil {
		t.Fatalf("emit nfe: %v", err)
	}

	result, err := h.svc.BuyCertifiedLots(context.Background(), PurchaseRequest{BuyerID: "e1", AmountBRL: dec("50")})
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	requireAmount(t, "weight", result.PurchasedWeightKg, "25")
	requireAmount(t, "spent", result.Spent, "50")
	sold := h.batches(t, store.BatchFilter{Status: models.BatchCertifiedSold})
	market := h.batches(t, store.BatchFilter{Status: models.BatchProcessedNFe})
	if len(sold) != 1 || !sold[0].WeightKg.Equal(dec("25")) {
		t.Fatalf("expected 25kg certified split, got %#v", sold)
	}
	if len(market) != 1 || !market[0].WeightKg.Equal(dec("35")) {
		t.Fatalf("expected 35kg left on market, got %#v", market)
	}
	requireAmount(t, "buyer", h.profile(t, "e1").BalanceBRL, "65")
	h.requireReconciled(t)
}

func TestBuyCertifiedLotsRejections(t *testing.T) {
	h := newHarness(t, revenue.PolicySingle, chainProfiles()...)
	h.deposit(t, "e1", models.AssetBRL, "10")

	_, err := h.svc.BuyCertifiedLots(context.Background(), PurchaseRequest{BuyerID: "e1", AmountBRL: dec("5")})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("empty market: expected ErrInsufficientBalance, got %v", err)
	}
	_, err = h.svc.BuyCertifiedLots(context.Background(), PurchaseRequest{BuyerID: "e1", AmountBRL: dec("50")})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("short balance: expected ErrInsufficientBalance, got %v", err)
	}
	requireAmount(t, "buyer", h.profile(t, "e1").BalanceBRL, "10")
}

func TestProportionalPolicySplitsShareAcrossHolders(t *testing.T) {
	profiles := append(chainProfiles(), profile("c2", models.RoleCollector))
	h := newHarness(t, revenue.PolicyProportional, profiles...)
	h.deposit(t, "e1", models.AssetBRL, "1000")
	collect(t, h, "60")
	if _, err := h.svc.EmitNFe(context.Background(), NFeRequest{RecyclerID: "r1", TransformerID: "t1", WeightKg: dec("60"), NFeID: "4"}); err != nil {
		t.Fatalf("emit nfe: %v", err)
	}
	if _, err := h.svc.BuyCertifiedLots(context.Background(), PurchaseRequest{BuyerID: "e1", AmountBRL: dec("120")}); err != nil {
		t.Fatalf("buy: %v", err)
	}
	requireAmount(t, "c1", h.profile(t, "c1").BalanceBRL, "9")
	requireAmount(t, "c2", h.profile(t, "c2").BalanceBRL, "9")
	h.requireReconciled(t)
}

func TestWithdrawBRLChargesFeeToAdmin(t *testing.T) {
	h := newHarness(t, revenue.PolicySingle, chainProfiles()...)
	h.deposit(t, "c1", models.AssetBRL, "100")

	result, err := h.svc.Withdraw(context.Background(), WithdrawalRequest{UserID: "c1", Amount: dec("100")})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	requireAmount(t, "fee", result.FeeBRL, "2")
	requireAmount(t, "net", result.NetBRL, "98")
	requireAmount(t, "user", h.profile(t, "c1").BalanceBRL, "0")
	requireAmount(t, "admin", h.profile(t, "a1").BalanceBRL, "2")

	rows, err := h.store.Transactions().ListByUser(context.Background(), "c1", models.TxWithdrawal, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || !rows[0].AmountBRL.Decimal.Equal(dec("98")) {
		t.Fatalf("expected one withdrawal of 98, got %#v", rows)
	}
	h.requireReconciled(t)
}

func TestWithdrawAdminIsCappedAndExempt(t *testing.T) {
	h := newHarness(t, revenue.PolicySingle, chainProfiles()...)
	h.deposit(t, "a1", models.AssetBRL, "1000")

	_, err := h.svc.Withdraw(context.Background(), WithdrawalRequest{UserID: "a1", Amount: dec("400")})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected cap rejection, got %v", err)
	}
	requireAmount(t, "untouched", h.profile(t, "a1").BalanceBRL, "1000")

	result, err := h.svc.Withdraw(context.Background(), WithdrawalRequest{UserID: "a1", Amount: dec("300")})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	requireAmount(t, "fee", result.FeeBRL, "0")
	requireAmount(t, "net", result.NetBRL, "300")
	requireAmount(t, "admin", h.profile(t, "a1").BalanceBRL, "700")
	h.requireReconciled(t)
}

func TestWithdrawPlaxConvertsNetOfFee(t *testing.T) {
	h := newHarness(t, revenue.PolicySingle, chainProfiles()...)
	collect(t, h, "100")

	result, err := h.svc.Withdraw(context.Background(), WithdrawalRequest{UserID: "c1", Amount: dec("100"), IsPlax: true})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	requireAmount(t, "fee", result.FeeBRL, "1")
	requireAmount(t, "net", result.NetBRL, "49")
	collector := h.profile(t, "c1")
	requireAmount(t, "plax", collector.BalancePlax, "900")
	requireAmount(t, "brl", collector.BalanceBRL, "49")
	requireAmount(t, "admin", h.profile(t, "a1").BalanceBRL, "1")

	_, err = h.svc.Withdraw(context.Background(), WithdrawalRequest{UserID: "c1", Amount: dec("901"), IsPlax: true})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestWithdrawWithoutAdminLeavesFeeUncredited(t *testing.T) {
	h := newHarness(t, revenue.PolicySingle, profile("c1", models.RoleCollector))
	h.deposit(t, "c1", models.AssetBRL, "50")

	result, err := h.svc.Withdraw(context.Background(), WithdrawalRequest{UserID: "c1", Amount: dec("50")})
	if err != nil || !result.Success {
		t.Fatalf("withdraw: %v", err)
	}
	requireAmount(t, "user", h.profile(t, "c1").BalanceBRL, "0")
	h.requireReconciled(t)
}

func TestReinvest(t *testing.T) {
	h := newHarness(t, revenue.PolicySingle, chainProfiles()...)
	h.deposit(t, "e1", models.AssetBRL, "1000")
	ctx := context.Background()

	donated, err := h.svc.Reinvest(ctx, ReinvestRequest{UserID: "e1", Amount: dec("100"), InstitutionID: "i1"})
	if err != nil {
		t.Fatalf("donate: %v", err)
	}
	requireAmount(t, "fee", donated.FeeBRL, "2")
	requireAmount(t, "admin after donation", h.profile(t, "a1").BalanceBRL, "2")

	if _, err := h.svc.Reinvest(ctx, ReinvestRequest{UserID: "e1", Amount: dec("100"), InstitutionID: store.SelfInvestmentID}); err != nil {
		t.Fatalf("self invest: %v", err)
	}
	requireAmount(t, "admin after self investment", h.profile(t, "a1").BalanceBRL, "102")
	requireAmount(t, "donor", h.profile(t, "e1").BalanceBRL, "800")

	_, err = h.svc.Reinvest(ctx, ReinvestRequest{UserID: "e1", Amount: dec("1"), InstitutionID: "nope"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	_, err = h.svc.Reinvest(ctx, ReinvestRequest{UserID: "e1", Amount: dec("5000"), InstitutionID: "i2"})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	rows, _ := h.store.Transactions().ListByUser(ctx, "e1", models.TxTransfer, 10, 0)
	if len(rows) != 2 {
		t.Fatalf("expected two transfer records, got %d", len(rows))
	}
	h.requireReconciled(t)
}

func TestReplayedRequestAppliesOnce(t *testing.T) {
	h := newHarness(t, revenue.PolicySingle, chainProfiles()...)
	requestID := "req-1"
	req := CollectionRequest{RecyclerID: "r1", CollectorID: "c1", WeightKg: dec("10"), PlasticType: models.PlasticPS, ClientRequestID: &requestID}

	if _, err := h.svc.RegisterCollection(context.Background(), req); err != nil {
		t.Fatalf("first call: %v", err)
	}
	_, err := h.svc.RegisterCollection(context.Background(), req)
	if !errors.Is(err, ErrDuplicateRequest) {
		t.Fatalf("expected ErrDuplicateRequest, got %v", err)
	}
	requireAmount(t, "collector", h.profile(t, "c1").BalancePlax, "100")
	if got := h.batches(t, store.BatchFilter{}); len(got) != 1 {
		t.Fatalf("replay must not create a batch, got %d", len(got))
	}
}

func TestConcurrentSettlementsDoNotLoseUpdates(t *testing.T) {
	h := newHarness(t, revenue.PolicySingle, chainProfiles()...)
	h.deposit(t, "c1", models.AssetBRL, "1000")
	const workers = 20

	var wg sync.WaitGroup
	errs := make(chan error, workers*2)
	for i := 0; i < workers; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := h.svc.RegisterCollection(context.Background(), CollectionRequest{
				RecyclerID: "r1", CollectorID: "c1", WeightKg: dec("1"), PlasticType: models.PlasticPET,
			})
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := h.svc.Withdraw(context.Background(), WithdrawalRequest{UserID: "c1", Amount: dec("10")})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent settlement: %v", err)
		}
	}
	collector := h.profile(t, "c1")
	requireAmount(t, "plax", collector.BalancePlax, "200")
	requireAmount(t, "brl", collector.BalanceBRL, "800")
	requireAmount(t, "locked", h.profile(t, "r1").LockedPlax, "200")
	requireAmount(t, "admin", h.profile(t, "a1").BalanceBRL, "4")
	h.requireReconciled(t)
}

func TestCommittedSettlementBroadcastsBalances(t *testing.T) {
	h := newHarness(t, revenue.PolicySingle, chainProfiles()...)
	result := collect(t, h, "1")

	h.hub.mu.Lock()
	defer h.hub.mu.Unlock()
	if len(h.hub.updates) != 2 {
		t.Fatalf("expected collector and recycler updates, got %#v", h.hub.updates)
	}
	for _, update := range h.hub.updates {
		if update.TransactionID != result.TransactionID || update.Operation != OpRegisterCollection {
			t.Fatalf("unexpected update %#v", update)
		}
		if update.ProfileID == "c1" && update.BalancePlax != "10.000000" {
			t.Fatalf("expected collector plax 10.000000, got %s", update.BalancePlax)
		}
		if update.ProfileID == "r1" && update.LockedPlax != "10.000000" {
			t.Fatalf("expected recycler locked 10.000000, got %s", update.LockedPlax)
		}
	}
}

func TestRejectedSettlementDoesNotBroadcast(t *testing.T) {
	h := newHarness(t, revenue.PolicySingle, chainProfiles()...)
	_, _ = h.svc.Withdraw(context.Background(), WithdrawalRequest{UserID: "c1", Amount: dec("1")})
	if len(h.hub.updates) != 0 {
		t.Fatalf("expected no updates, got %#v", h.hub.updates)
	}
}
