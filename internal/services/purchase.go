package services

import (
	"context"
	"fmt"

	"plaxrec/internal/allocation"
	"plaxrec/internal/models"
	"plaxrec/internal/money"
	"plaxrec/internal/revenue"
	"plaxrec/internal/store"

	"github.com/shopspring/decimal"
)

type PurchaseRequest struct {
	BuyerID         string
	AmountBRL       decimal.Decimal
	ClientRequestID *string
}

var shareRoles = map[string]models.Role{
	revenue.LabelCollector:   models.RoleCollector,
	revenue.LabelRecycler:    models.RoleRecycler,
	revenue.LabelTransformer: models.RoleTransformer,
}

// BuyCertifiedLots spends up to AmountBRL on NFe-backed lots, oldest first,
// certifying them to the buyer. The amount actually spent is split between
// the chain roles and the buyer's own reinvestment share.
func (s *SettlementService) BuyCertifiedLots(ctx context.Context, req PurchaseRequest) (Result, error) {
	return s.settle(ctx, OpBuyCertifiedLots, req.BuyerID, func(ctx context.Context, tx store.Tx, j *journal) (Result, error) {
		if err := requireID(req.BuyerID, "buyer id"); err != nil {
			return Result{}, err
		}
		if err := requirePositive(req.AmountBRL, "amount"); err != nil {
			return Result{}, err
		}
		locked, err := s.lockProfiles(ctx, tx, req.BuyerID)
		if err != nil {
			return Result{}, err
		}
		buyer := locked[req.BuyerID]
		if buyer.BalanceBRL.LessThan(req.AmountBRL) {
			return Result{}, insufficientError(req.AmountBRL.Sub(buyer.BalanceBRL),
				"BRL balance is %s, purchase needs %s", money.FormatBRL(buyer.BalanceBRL), money.FormatBRL(req.AmountBRL))
		}

		pool, err := s.batches.ListForUpdate(ctx, tx, store.BatchFilter{Status: models.BatchProcessedNFe})
		if err != nil {
			return Result{}, err
		}
		if len(pool) == 0 {
			return Result{}, insufficientError(decimal.Zero, "no NFe-backed lots are available on the market")
		}
		plan := allocation.AllocateByBudget(pool, req.AmountBRL, s.rates.ESGPricePerKg)
		if !plan.Spent.IsPositive() {
			return Result{}, insufficientError(decimal.Zero, "amount does not cover the smallest purchasable lot")
		}
		err = s.applyMutations(ctx, tx, plan.Consumed, allocation.Target{
			Status:   models.BatchCertifiedSold,
			Stamp:    certify(req.BuyerID, s.now()),
			KgToPlax: s.rates.KgToPlax,
			NewID:    s.newID,
		})
		if err != nil {
			return Result{}, err
		}

		spent := plan.Spent
		portions := revenue.Split(spent, revenue.ESGShares(s.rates.Shares))
		reinvested := decimal.Zero
		credited := make(map[string]string, len(portions))
		j.add(req.BuyerID, models.AssetBRL, spent.Neg(), "ESG purchase")
		for _, portion := range portions {
			if portion.Label == revenue.LabelReinvest {
				reinvested = portion.Amount.Round(money.PlaxDecimals)
				j.add(req.BuyerID, models.AssetBRL, reinvested, "ESG reinvestment share")
				credited[portion.Label] = reinvested.String()
				continue
			}
			amount, err := s.creditRole(ctx, tx, j, shareRoles[portion.Label], models.AssetBRL, portion.Amount, "ESG revenue share: "+portion.Label)
			if err != nil {
				return Result{}, err
			}
			credited[portion.Label] = amount.String()
		}

		description := fmt.Sprintf("Purchase of %skg (reinvestment return: R$ %s)", money.FormatWeight(plan.Weight), money.FormatBRL(reinvested))
		metadata, err := marshalMetadata(map[string]any{
			"weight_kg": plan.Weight.String(),
			"lots":      len(plan.Consumed),
			"shares":    credited,
		})
		if err != nil {
			return Result{}, err
		}
		txID, err := s.commit(ctx, tx, j, models.Transaction{
			Type:            models.TxESGPurchase,
			AmountBRL:       nullAmount(spent),
			Description:     description,
			FromUserID:      stringPtr(req.BuyerID),
			Metadata:        metadata,
			ClientRequestID: req.ClientRequestID,
		})
		if err != nil {
			return Result{}, err
		}
		return Result{
			Message: fmt.Sprintf("purchased %skg, R$ %s returned to the reinvestment fund",
				money.FormatWeight(plan.Weight), money.FormatBRL(reinvested)),
			TransactionID:     txID,
			Spent:             spent,
			PurchasedWeightKg: plan.Weight,
			ReinvestedBRL:     reinvested,
		}, nil
	})
}
