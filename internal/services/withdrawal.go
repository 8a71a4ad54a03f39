package services

import (
	"context"
	"fmt"

	"plaxrec/internal/models"
	"plaxrec/internal/money"
	"plaxrec/internal/store"

	"github.com/shopspring/decimal"
)

type WithdrawalRequest struct {
	UserID string
	Amount decimal.Decimal
	// IsPlax converts PLAX into BRL; otherwise BRL leaves the platform.
	IsPlax          bool
	ClientRequestID *string
}

// Withdraw either converts PLAX to BRL or pays BRL out. Both charge the
// withdrawal fee to the ADMIN role, except a BRL payout made by an admin.
func (s *SettlementService) Withdraw(ctx context.Context, req WithdrawalRequest) (Result, error) {
	return s.settle(ctx, OpWithdraw, req.UserID, func(ctx context.Context, tx store.Tx, j *journal) (Result, error) {
		if err := requireID(req.UserID, "user id"); err != nil {
			return Result{}, err
		}
		if err := requirePositive(req.Amount, "amount"); err != nil {
			return Result{}, err
		}
		locked, err := s.lockProfiles(ctx, tx, req.UserID)
		if err != nil {
			return Result{}, err
		}
		user := locked[req.UserID]

		if user.Role == models.RoleAdmin && !req.IsPlax {
			limit := user.BalanceBRL.Mul(s.rates.AdminWithdrawalCap)
			if req.Amount.GreaterThan(limit) {
				return Result{}, validationError("admin withdrawals are limited to %s%% of the BRL balance (max R$ %s)",
					s.rates.AdminWithdrawalCap.Shift(2).String(), money.FormatBRL(limit))
			}
		}

		record := models.Transaction{
			Type:            models.TxWithdrawal,
			FromUserID:      stringPtr(req.UserID),
			ClientRequestID: req.ClientRequestID,
		}
		feeLabel := s.rates.WithdrawalFee.Shift(2).String() + "%"
		var fee, net decimal.Decimal
		if req.IsPlax {
			if user.BalancePlax.LessThan(req.Amount) {
				return Result{}, insufficientError(req.Amount.Sub(user.BalancePlax),
					"PLAX balance is %s, withdrawal needs %s", user.BalancePlax.String(), req.Amount.String())
			}
			gross := s.rates.BRLForPlax(req.Amount)
			fee = gross.Mul(s.rates.WithdrawalFee).Round(money.PlaxDecimals)
			net = gross.Sub(fee)
			record.Description = fmt.Sprintf("PLAX to BRL conversion (%s fee)", feeLabel)
			record.AmountPlax = nullAmount(req.Amount)
			j.add(req.UserID, models.AssetPlax, req.Amount.Neg(), record.Description)
			j.add(req.UserID, models.AssetBRL, net, record.Description)
		} else {
			if user.BalanceBRL.LessThan(req.Amount) {
				return Result{}, insufficientError(req.Amount.Sub(user.BalanceBRL),
					"BRL balance is %s, withdrawal needs %s", money.FormatBRL(user.BalanceBRL), money.FormatBRL(req.Amount))
			}
			fee = decimal.Zero
			if user.Role != models.RoleAdmin {
				fee = req.Amount.Mul(s.rates.WithdrawalFee).Round(money.PlaxDecimals)
			}
			net = req.Amount.Sub(fee)
			record.Description = fmt.Sprintf("Bank withdrawal (%s fee)", feeLabel)
			j.add(req.UserID, models.AssetBRL, req.Amount.Neg(), record.Description)
		}
		record.AmountBRL = nullAmount(net)
		if _, err := s.creditRole(ctx, tx, j, models.RoleAdmin, models.AssetBRL, fee, "withdrawal fee"); err != nil {
			return Result{}, err
		}
		metadata, err := marshalMetadata(map[string]any{"is_plax": req.IsPlax, "fee_brl": fee.String()})
		if err != nil {
			return Result{}, err
		}
		record.Metadata = metadata

		txID, err := s.commit(ctx, tx, j, record)
		if err != nil {
			return Result{}, err
		}
		return Result{
			Message:       "withdrawal completed",
			TransactionID: txID,
			FeeBRL:        fee,
			NetBRL:        net,
		}, nil
	})
}

type ReinvestRequest struct {
	UserID          string
	Amount          decimal.Decimal
	InstitutionID   string
	ClientRequestID *string
}

// Reinvest donates BRL to an institution. Donations to the platform's own
// fund go entirely to the ADMIN role; external institutions leave only the
// reinvest fee on the platform.
func (s *SettlementService) Reinvest(ctx context.Context, req ReinvestRequest) (Result, error) {
	return s.settle(ctx, OpReinvest, req.UserID, func(ctx context.Context, tx store.Tx, j *journal) (Result, error) {
		if err := requireID(req.UserID, "user id"); err != nil {
			return Result{}, err
		}
		if err := requirePositive(req.Amount, "amount"); err != nil {
			return Result{}, err
		}
		institution, ok := s.institutions.Get(req.InstitutionID)
		if !ok {
			return Result{}, validationError("unknown institution %q", req.InstitutionID)
		}
		locked, err := s.lockProfiles(ctx, tx, req.UserID)
		if err != nil {
			return Result{}, err
		}
		user := locked[req.UserID]
		if user.BalanceBRL.LessThan(req.Amount) {
			return Result{}, insufficientError(req.Amount.Sub(user.BalanceBRL),
				"BRL balance is %s, donation needs %s", money.FormatBRL(user.BalanceBRL), money.FormatBRL(req.Amount))
		}

		var description, message string
		var platformShare decimal.Decimal
		if institution.SelfInvestment {
			platformShare = req.Amount
			description = "Reinvestment in " + institution.Name
			message = fmt.Sprintf("reinvested R$ %s in %s", money.FormatBRL(req.Amount), institution.Name)
		} else {
			platformShare = req.Amount.Mul(s.rates.ReinvestFee).Round(money.PlaxDecimals)
			description = "Donation to: " + institution.Name
			message = fmt.Sprintf("donated R$ %s to %s", money.FormatBRL(req.Amount), institution.Name)
		}
		j.add(req.UserID, models.AssetBRL, req.Amount.Neg(), description)
		if _, err := s.creditRole(ctx, tx, j, models.RoleAdmin, models.AssetBRL, platformShare, description); err != nil {
			return Result{}, err
		}

		fee := decimal.Zero
		if !institution.SelfInvestment {
			fee = platformShare
		}
		metadata, err := marshalMetadata(map[string]string{"institution_id": institution.ID, "platform_brl": platformShare.String()})
		if err != nil {
			return Result{}, err
		}
		txID, err := s.commit(ctx, tx, j, models.Transaction{
			Type:            models.TxTransfer,
			AmountBRL:       nullAmount(req.Amount),
			Description:     description,
			FromUserID:      stringPtr(req.UserID),
			Metadata:        metadata,
			ClientRequestID: req.ClientRequestID,
		})
		if err != nil {
			return Result{}, err
		}
		return Result{
			Message:       message,
			TransactionID: txID,
			ReinvestedBRL: req.Amount,
			FeeBRL:        fee,
			NetBRL:        req.Amount.Sub(fee),
		}, nil
	})
}
