package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"plaxrec/internal/db"
	"plaxrec/internal/logger"
	"plaxrec/internal/metrics"
	"plaxrec/internal/models"
	"plaxrec/internal/money"
	"plaxrec/internal/rates"
	"plaxrec/internal/revenue"
	"plaxrec/internal/store"
	"plaxrec/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Operation names used for logs, metrics and audit entries.
const (
	OpRegisterCollection = "register_collection"
	OpEmitNFe            = "emit_nfe"
	OpBuyCertifiedLots   = "buy_certified_lots"
	OpWithdraw           = "withdraw"
	OpReinvest           = "reinvest"
)

type ProfileStore interface {
	GetByID(ctx context.Context, profileID string) (models.Profile, error)
	GetForUpdate(ctx context.Context, tx store.Getter, profileID string) (models.Profile, error)
	ListByRole(ctx context.Context, q store.Selecter, role models.Role) ([]models.Profile, error)
	AdjustBalances(ctx context.Context, tx store.Execer, profileID string, delta models.BalanceDelta) error
}

type BatchStore interface {
	Insert(ctx context.Context, tx store.Execer, batch models.Batch) error
	Update(ctx context.Context, tx store.Execer, batch models.Batch) error
	ListForUpdate(ctx context.Context, tx store.Selecter, filter store.BatchFilter) ([]models.Batch, error)
}

type TransactionStore interface {
	Create(ctx context.Context, tx store.Execer, record models.Transaction) error
}

type MovementStore interface {
	Insert(ctx context.Context, tx store.Execer, movements []models.BalanceMovement) error
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

type InstitutionCatalog interface {
	Get(id string) (models.Institution, bool)
}

type BalanceHub interface {
	BroadcastBalance(userID string, update websocket.BalanceUpdate)
}

// Deps wires a SettlementService. TxRunner and the stores are required; the
// rest fall back to working defaults.
type Deps struct {
	TxRunner     db.TxRunner
	Profiles     ProfileStore
	Batches      BatchStore
	Transactions TransactionStore
	Movements    MovementStore
	Audit        AuditStore
	Institutions InstitutionCatalog
	Resolver     revenue.RoleFundResolver
	Rates        rates.Rates
	Hub          BalanceHub
	Metrics      *metrics.Settlement
	Logger       *logger.Logger
	NewID        func() string
	Now          func() time.Time
}

type SettlementService struct {
	txRunner     db.TxRunner
	profiles     ProfileStore
	batches      BatchStore
	transactions TransactionStore
	movements    MovementStore
	audit        AuditStore
	institutions InstitutionCatalog
	resolver     revenue.RoleFundResolver
	rates        rates.Rates
	hub          BalanceHub
	metrics      *metrics.Settlement
	log          *logger.Logger
	newID        func() string
	now          func() time.Time
}

func NewSettlementService(deps Deps) *SettlementService {
	s := &SettlementService{
		txRunner:     deps.TxRunner,
		profiles:     deps.Profiles,
		batches:      deps.Batches,
		transactions: deps.Transactions,
		movements:    deps.Movements,
		audit:        deps.Audit,
		institutions: deps.Institutions,
		resolver:     deps.Resolver,
		rates:        deps.Rates,
		hub:          deps.Hub,
		metrics:      deps.Metrics,
		log:          deps.Logger,
		newID:        deps.NewID,
		now:          deps.Now,
	}
	if s.institutions == nil {
		s.institutions = store.NewInstitutionCatalog()
	}
	if s.resolver == nil {
		s.resolver = revenue.NewSingleResolver(deps.Profiles)
	}
	if s.rates.KgToPlax.IsZero() {
		s.rates = rates.Default()
	}
	if s.hub == nil {
		s.hub = noopHub{}
	}
	if s.metrics == nil {
		s.metrics = metrics.NewSettlement(nil)
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Result is what every settlement operation reports back. Fields that do not
// apply to an operation stay zero.
type Result struct {
	Success           bool
	Message           string
	TransactionID     string
	BatchID           string
	PlaxGenerated     decimal.Decimal
	Spent             decimal.Decimal
	PurchasedWeightKg decimal.Decimal
	ReinvestedBRL     decimal.Decimal
	FeeBRL            decimal.Decimal
	NetBRL            decimal.Decimal
}

type noopHub struct{}

func (noopHub) BroadcastBalance(string, websocket.BalanceUpdate) {}

// settle runs fn in one transaction with a fresh journal per attempt, then
// reports the outcome and pushes balances for every profile the journal
// touched. Business rejections come back as a failed Result plus the
// *SettlementError; anything else is wrapped with the operation name.
func (s *SettlementService) settle(ctx context.Context, op, actorID string, fn func(ctx context.Context, tx store.Tx, j *journal) (Result, error)) (Result, error) {
	start := time.Now()
	ctx = s.log.WithOperation(ctx, op)
	if actorID != "" {
		ctx = s.log.WithUserID(ctx, actorID)
	}

	var result Result
	var committed *journal
	err := s.txRunner.WithTx(ctx, func(tx store.Tx) error {
		j := newJournal(op, actorID)
		out, err := fn(ctx, tx, j)
		if err != nil {
			return err
		}
		result = out
		committed = j
		return nil
	})
	elapsed := time.Since(start)

	if settlementErr, ok := AsSettlementError(err); ok {
		s.metrics.Observe(op, metrics.OutcomeRejected, elapsed)
		s.log.Warn(s.log.WithField(ctx, "kind", string(settlementErr.Kind)), settlementErr.Message)
		return Result{Success: false, Message: settlementErr.Message}, settlementErr
	}
	if err != nil {
		s.metrics.Observe(op, metrics.OutcomeError, elapsed)
		s.log.Error(ctx, "settlement failed", err)
		return Result{Success: false, Message: "settlement could not be completed"}, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.Observe(op, metrics.OutcomeSuccess, elapsed)
	for asset, amount := range committed.volume() {
		s.metrics.AddVolume(op, string(asset), amount)
	}
	for _, profile := range committed.snapshots {
		s.hub.BroadcastBalance(profile.ID, websocket.BalanceUpdate{
			ProfileID:     profile.ID,
			BalancePlax:   money.FormatPlax(profile.BalancePlax),
			BalanceBRL:    money.FormatBRL(profile.BalanceBRL),
			LockedPlax:    money.FormatPlax(profile.LockedPlax),
			TransactionID: result.TransactionID,
			Operation:     op,
		})
	}
	s.log.Info(s.log.WithField(ctx, "transaction_id", result.TransactionID), result.Message)
	result.Success = true
	return result, nil
}

// lockProfiles takes row locks in id order so concurrent settlements over the
// same profiles cannot deadlock.
func (s *SettlementService) lockProfiles(ctx context.Context, tx store.Getter, ids ...string) (map[string]models.Profile, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	sort.Strings(unique)
	locked := make(map[string]models.Profile, len(unique))
	for _, id := range unique {
		profile, err := s.profiles.GetForUpdate(ctx, tx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundError("profile %s not found", id)
		}
		if err != nil {
			return nil, err
		}
		locked[id] = profile
	}
	return locked, nil
}

// creditRole routes amount to the holders of role chosen by the resolver and
// returns what was actually credited. A role nobody holds gets nothing.
func (s *SettlementService) creditRole(ctx context.Context, tx store.Tx, j *journal, role models.Role, asset models.Asset, amount decimal.Decimal, description string) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, nil
	}
	credits, err := s.resolver.Resolve(ctx, tx, role, amount)
	if err != nil {
		return decimal.Zero, err
	}
	if len(credits) == 0 {
		s.log.Warn(s.log.WithFields(ctx, map[string]any{"role": string(role), "amount": amount.String()}), "no profile holds role, share not credited")
		return decimal.Zero, nil
	}
	credited := decimal.Zero
	for _, credit := range credits {
		j.add(credit.ProfileID, asset, credit.Amount, description)
		credited = credited.Add(credit.Amount)
	}
	return credited, nil
}

func requireID(value, field string) error {
	if value == "" {
		return validationError("%s is required", field)
	}
	return nil
}

func requirePositive(value decimal.Decimal, field string) error {
	if !value.IsPositive() {
		return validationError("%s must be greater than zero", field)
	}
	return nil
}

func stringPtr(value string) *string {
	return &value
}
