package memstore

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"plaxrec/internal/models"
	"plaxrec/internal/store"

	"github.com/shopspring/decimal"
)

func createProfile(t *testing.T, s *Store, profile models.Profile) {
	t.Helper()
	if err := s.WithTx(context.Background(), func(tx store.Tx) error {
		return s.Profiles().Create(context.Background(), tx, profile)
	}); err != nil {
		t.Fatalf("create profile: %v", err)
	}
}

func TestWithTxCommitsWorkingCopy(t *testing.T) {
	s := New()
	createProfile(t, s, models.Profile{ID: "u1", Email: "a@x.com", Role: models.RoleCollector})
	got, err := s.Profiles().GetByID(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Seq == 0 || got.CreatedAt.IsZero() {
		t.Fatalf("expected seq and timestamps, got %#v", got)
	}
}

func TestWithTxDiscardsOnError(t *testing.T) {
	s := New()
	createProfile(t, s, models.Profile{ID: "u1", Email: "a@x.com", BalanceBRL: decimal.NewFromInt(100)})
	boom := errors.New("boom")
	err := s.WithTx(context.Background(), func(tx store.Tx) error {
		if err := s.Profiles().AdjustBalances(context.Background(), tx, "u1", models.BalanceDelta{BRL: decimal.NewFromInt(-40)}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	got, _ := s.Profiles().GetByID(context.Background(), "u1")
	if !got.BalanceBRL.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected rollback to 100, got %s", got.BalanceBRL)
	}
}

func TestReadsOutsideTxSeeCommittedData(t *testing.T) {
	s := New()
	createProfile(t, s, models.Profile{ID: "u1", Email: "a@x.com", BalancePlax: decimal.NewFromInt(10)})
	_ = s.WithTx(context.Background(), func(tx store.Tx) error {
		if err := s.Profiles().AdjustBalances(context.Background(), tx, "u1", models.BalanceDelta{Plax: decimal.NewFromInt(5)}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		inTx, _ := s.Profiles().GetForUpdate(context.Background(), tx, "u1")
		if !inTx.BalancePlax.Equal(decimal.NewFromInt(15)) {
			t.Fatalf("expected 15 inside tx, got %s", inTx.BalancePlax)
		}
		outside, _ := s.Profiles().GetByID(context.Background(), "u1")
		if !outside.BalancePlax.Equal(decimal.NewFromInt(10)) {
			t.Fatalf("expected committed 10 outside tx, got %s", outside.BalancePlax)
		}
		return nil
	})
}

func TestWriteOutsideTxFails(t *testing.T) {
	s := New()
	if err := s.Profiles().Create(context.Background(), nil, models.Profile{ID: "u1"}); err == nil {
		t.Fatalf("expected error for write without transaction")
	}
}

func TestCanceledContextSkipsWork(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := s.WithTx(ctx, func(store.Tx) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) || called {
		t.Fatalf("expected canceled without running work, got %v called=%v", err, called)
	}
}

func TestProfileDuplicateEmail(t *testing.T) {
	s := New()
	createProfile(t, s, models.Profile{ID: "u1", Email: "Joao@PlaxRec.com"})
	err := s.WithTx(context.Background(), func(tx store.Tx) error {
		return s.Profiles().Create(context.Background(), tx, models.Profile{ID: "u2", Email: "joao@plaxrec.com"})
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := s.Profiles().GetByEmail(context.Background(), "JOAO@plaxrec.com"); err != nil {
		t.Fatalf("expected case-insensitive lookup, got %v", err)
	}
	if _, err := s.Profiles().GetByID(context.Background(), "missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestAdjustBalancesGuard(t *testing.T) {
	s := New()
	createProfile(t, s, models.Profile{ID: "u2", Email: "r@x.com", LockedPlax: decimal.NewFromInt(100)})
	err := s.WithTx(context.Background(), func(tx store.Tx) error {
		return s.Profiles().AdjustBalances(context.Background(), tx, "u2", models.BalanceDelta{Locked: decimal.NewFromInt(-101)})
	})
	if !errors.Is(err, store.ErrNegativeBalance) {
		t.Fatalf("expected ErrNegativeBalance, got %v", err)
	}
}

func TestListByRoleCreationOrder(t *testing.T) {
	s := New()
	createProfile(t, s, models.Profile{ID: "a", Email: "a@x.com", Role: models.RoleCollector})
	createProfile(t, s, models.Profile{ID: "b", Email: "b@x.com", Role: models.RoleRecycler})
	createProfile(t, s, models.Profile{ID: "c", Email: "c@x.com", Role: models.RoleCollector})
	rows, _ := s.Profiles().Directory(context.Background(), models.RoleCollector)
	if len(rows) != 2 || rows[0].ID != "a" || rows[1].ID != "c" {
		t.Fatalf("unexpected rows: %#v", rows)
	}
}

func TestBatchFilterAndOrder(t *testing.T) {
	s := New()
	buyer := "u4"
	err := s.WithTx(context.Background(), func(tx store.Tx) error {
		b := s.Batches()
		for _, batch := range []models.Batch{
			{ID: "b1", RecyclerID: "u2", Status: models.BatchReceived, WeightKg: decimal.NewFromInt(10)},
			{ID: "b2", RecyclerID: "u9", Status: models.BatchReceived, WeightKg: decimal.NewFromInt(20)},
			{ID: "b3", RecyclerID: "u2", Status: models.BatchReceived, WeightKg: decimal.NewFromInt(30)},
			{ID: "b4", RecyclerID: "u2", Status: models.BatchCertifiedSold, CertifiedByUserID: &buyer, WeightKg: decimal.NewFromInt(5)},
		} {
			if err := b.Insert(context.Background(), tx, batch); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	filter := store.BatchFilter{Status: models.BatchReceived, RecyclerID: "u2"}
	listed, _ := s.Batches().List(context.Background(), filter)
	if len(listed) != 2 || listed[0].ID != "b3" {
		t.Fatalf("expected newest first, got %#v", listed)
	}
	totals, _ := s.Batches().Totals(context.Background(), filter)
	if !totals.WeightKg.Equal(decimal.NewFromInt(40)) || totals.Count != 2 {
		t.Fatalf("unexpected totals: %#v", totals)
	}
	certified, _ := s.Batches().List(context.Background(), store.BatchFilter{CertifiedByUserID: "u4"})
	if len(certified) != 1 || certified[0].ID != "b4" {
		t.Fatalf("unexpected certified: %#v", certified)
	}
}

func TestTransactionsVisibility(t *testing.T) {
	s := New()
	from, to, requestID := "u1", "u2", "req-1"
	err := s.WithTx(context.Background(), func(tx store.Tx) error {
		records := s.Transactions()
		for _, record := range []models.Transaction{
			{ID: "t1", Type: models.TxTransfer, FromUserID: &from},
			{ID: "t2", Type: models.TxDeposit},
			{ID: "t3", Type: models.TxWithdrawal, FromUserID: &to, ClientRequestID: &requestID},
		} {
			if err := records.Create(context.Background(), tx, record); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows, _ := s.Transactions().ListByUser(context.Background(), "u1", "", 10, 0)
	if len(rows) != 2 || rows[0].ID != "t2" || rows[1].ID != "t1" {
		t.Fatalf("unexpected rows: %#v", rows)
	}
	all, _ := s.Transactions().ListAll(context.Background(), 2, 0)
	if len(all) != 2 || all[0].ID != "t3" {
		t.Fatalf("unexpected page: %#v", all)
	}
	replay := s.WithTx(context.Background(), func(tx store.Tx) error {
		return s.Transactions().Create(context.Background(), tx, models.Transaction{ID: "t4", ClientRequestID: &requestID})
	})
	if !errors.Is(replay, store.ErrConflict) {
		t.Fatalf("expected conflict on replay, got %v", replay)
	}
}

func TestSeedDemoReconciles(t *testing.T) {
	s := New()
	if err := SeedDemo(context.Background(), s, "", decimal.NewFromInt(10)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	profiles, _ := s.Profiles().ListAll(context.Background())
	if len(profiles) != 5 {
		t.Fatalf("expected 5 profiles, got %d", len(profiles))
	}
	rows, _ := s.Movements().Reconcile(context.Background())
	if len(rows) != 15 {
		t.Fatalf("expected 15 reconcile rows, got %d", len(rows))
	}
	for _, row := range rows {
		if !row.Difference.IsZero() {
			t.Fatalf("seed journal out of balance: %#v", row)
		}
	}
	market, _ := s.Batches().List(context.Background(), store.BatchFilter{Status: models.BatchProcessedNFe})
	if len(market) != 2 {
		t.Fatalf("expected 2 market batches, got %d", len(market))
	}
	b3, _ := s.Batches().ListForUpdate(context.Background(), nil, store.BatchFilter{Status: models.BatchReceived})
	if len(b3) != 1 || !b3[0].PlaxGenerated.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("unexpected received batches: %#v", b3)
	}
	audit, _ := s.Audit().List(context.Background(), 10, 0)
	if len(audit) != 0 {
		t.Fatalf("seed must not write audit entries, got %d", len(audit))
	}
}
