package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"plaxrec/internal/allocation"
	"plaxrec/internal/models"
	"plaxrec/internal/store"

	"github.com/shopspring/decimal"
)

type CollectionRequest struct {
	RecyclerID      string
	CollectorID     string
	WeightKg        decimal.Decimal
	PlasticType     models.PlasticType
	ClientRequestID *string
}

// RegisterCollection records material a collector delivered to a recycler. The
// collector is paid in PLAX right away; the recycler receives the same amount
// as locked PLAX until an NFe covers the material.
func (s *SettlementService) RegisterCollection(ctx context.Context, req CollectionRequest) (Result, error) {
	return s.settle(ctx, OpRegisterCollection, req.RecyclerID, func(ctx context.Context, tx store.Tx, j *journal) (Result, error) {
		if err := requireID(req.RecyclerID, "recycler id"); err != nil {
			return Result{}, err
		}
		if err := requireID(req.CollectorID, "collector id"); err != nil {
			return Result{}, err
		}
		if err := requirePositive(req.WeightKg, "weight"); err != nil {
			return Result{}, err
		}
		if !req.PlasticType.IsValid() {
			return Result{}, validationError("unknown plastic type %q", req.PlasticType)
		}
		locked, err := s.lockProfiles(ctx, tx, req.RecyclerID, req.CollectorID)
		if err != nil {
			return Result{}, err
		}
		if locked[req.CollectorID].Role != models.RoleCollector {
			return Result{}, validationError("profile %s is not a collector", req.CollectorID)
		}

		plax := s.rates.PlaxForWeight(req.WeightKg)
		now := s.now()
		batch := models.Batch{
			ID:            s.newID(),
			CollectorID:   req.CollectorID,
			RecyclerID:    req.RecyclerID,
			WeightKg:      req.WeightKg,
			PlasticType:   req.PlasticType,
			PlaxGenerated: plax,
			CollectedAt:   now,
			Status:        models.BatchReceived,
		}
		if err := s.batches.Insert(ctx, tx, batch); err != nil {
			return Result{}, err
		}

		description := fmt.Sprintf("Collection: %skg %s", req.WeightKg.String(), req.PlasticType)
		j.add(req.CollectorID, models.AssetPlax, plax, description)
		j.add(req.RecyclerID, models.AssetLockedPlax, plax, description)
		metadata, err := marshalMetadata(map[string]string{"batch_id": batch.ID})
		if err != nil {
			return Result{}, err
		}
		txID, err := s.commit(ctx, tx, j, models.Transaction{
			Type:            models.TxCollection,
			AmountPlax:      nullAmount(plax),
			Description:     description,
			FromUserID:      stringPtr(req.RecyclerID),
			ToUserID:        stringPtr(req.CollectorID),
			Metadata:        metadata,
			ClientRequestID: req.ClientRequestID,
		})
		if err != nil {
			return Result{}, err
		}
		return Result{
			Message:       fmt.Sprintf("collection registered, %s PLAX generated", plax.String()),
			TransactionID: txID,
			BatchID:       batch.ID,
			PlaxGenerated: plax,
		}, nil
	})
}

type NFeRequest struct {
	RecyclerID      string
	TransformerID   string
	WeightKg        decimal.Decimal
	NFeID           string
	ClientRequestID *string
}

// EmitNFe documents the transfer of processed material to a transformer. It
// unlocks the recycler's PLAX for the weight and credits the transformer with
// the same amount. Stock and locked funds are both checked before any batch is
// touched.
func (s *SettlementService) EmitNFe(ctx context.Context, req NFeRequest) (Result, error) {
	return s.settle(ctx, OpEmitNFe, req.RecyclerID, func(ctx context.Context, tx store.Tx, j *journal) (Result, error) {
		nfeID := strings.TrimSpace(req.NFeID)
		if err := requireID(req.RecyclerID, "recycler id"); err != nil {
			return Result{}, err
		}
		if err := requireID(req.TransformerID, "transformer id"); err != nil {
			return Result{}, err
		}
		if err := requirePositive(req.WeightKg, "weight"); err != nil {
			return Result{}, err
		}
		if nfeID == "" {
			return Result{}, validationError("nfe id is required")
		}
		locked, err := s.lockProfiles(ctx, tx, req.RecyclerID, req.TransformerID)
		if err != nil {
			return Result{}, err
		}
		recycler := locked[req.RecyclerID]
		if locked[req.TransformerID].Role != models.RoleTransformer {
			return Result{}, validationError("profile %s is not a transformer", req.TransformerID)
		}

		plaxToUnlock := s.rates.PlaxForWeight(req.WeightKg)
		if recycler.LockedPlax.LessThan(plaxToUnlock) {
			return Result{}, insufficientError(plaxToUnlock.Sub(recycler.LockedPlax),
				"locked balance is %s PLAX, %s PLAX required", recycler.LockedPlax.String(), plaxToUnlock.String())
		}

		pool, err := s.batches.ListForUpdate(ctx, tx, store.BatchFilter{Status: models.BatchReceived, RecyclerID: req.RecyclerID})
		if err != nil {
			return Result{}, err
		}
		available := allocation.Available(pool)
		if available.LessThan(req.WeightKg) {
			return Result{}, insufficientError(req.WeightKg.Sub(available),
				"received stock is %skg, NFe covers %skg", available.String(), req.WeightKg.String())
		}
		plan := allocation.Allocate(pool, req.WeightKg)
		if !plan.Satisfied() {
			return Result{}, insufficientError(plan.Shortfall, "received stock cannot cover %skg", req.WeightKg.String())
		}
		err = s.applyMutations(ctx, tx, plan.Consumed, allocation.Target{
			Status: models.BatchProcessedNFe,
			Stamp: func(batch *models.Batch) {
				batch.NFeID = stringPtr(nfeID)
			},
			KgToPlax: s.rates.KgToPlax,
			NewID:    s.newID,
		})
		if err != nil {
			return Result{}, err
		}

		description := fmt.Sprintf("NFe issued (%s): %skg", nfeID, req.WeightKg.String())
		j.add(req.RecyclerID, models.AssetLockedPlax, plaxToUnlock.Neg(), description)
		j.add(req.RecyclerID, models.AssetPlax, plaxToUnlock, description)
		j.add(req.TransformerID, models.AssetPlax, plaxToUnlock, description)
		metadata, err := marshalMetadata(map[string]string{"nfe_id": nfeID, "weight_kg": req.WeightKg.String()})
		if err != nil {
			return Result{}, err
		}
		txID, err := s.commit(ctx, tx, j, models.Transaction{
			Type:            models.TxNFeRelease,
			AmountPlax:      nullAmount(plaxToUnlock),
			Description:     description,
			FromUserID:      stringPtr(req.RecyclerID),
			ToUserID:        stringPtr(req.TransformerID),
			Metadata:        metadata,
			ClientRequestID: req.ClientRequestID,
		})
		if err != nil {
			return Result{}, err
		}
		return Result{
			Message:       "NFe registered, credits released",
			TransactionID: txID,
			PlaxGenerated: plaxToUnlock,
		}, nil
	})
}

// applyMutations writes a plan: full transitions update the batch in place,
// splits insert the moved portion and shrink the source.
func (s *SettlementService) applyMutations(ctx context.Context, tx store.Tx, mutations []allocation.Mutation, target allocation.Target) error {
	for _, mutation := range mutations {
		if !mutation.Source.Status.CanTransitionTo(target.Status) {
			return fmt.Errorf("batch %s cannot move from %s to %s", mutation.Source.ID, mutation.Source.Status, target.Status)
		}
		moved, remainder := mutation.Apply(target)
		if remainder == nil {
			if err := s.batches.Update(ctx, tx, moved); err != nil {
				return err
			}
			continue
		}
		if err := s.batches.Insert(ctx, tx, moved); err != nil {
			return err
		}
		if err := s.batches.Update(ctx, tx, *remainder); err != nil {
			return err
		}
	}
	return nil
}

func certify(buyerID string, at time.Time) func(*models.Batch) {
	return func(batch *models.Batch) {
		batch.CertifiedByUserID = stringPtr(buyerID)
		certifiedAt := at
		batch.CertificationDate = &certifiedAt
	}
}
