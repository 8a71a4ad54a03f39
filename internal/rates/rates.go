// Package rates holds the conversion constants of the PLAX value chain.
package rates

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// AllocationEpsilonKg absorbs residue when consuming batches by weight.
	AllocationEpsilonKg = decimal.RequireFromString("0.001")
	// PurchaseToleranceBRL is the slack allowed when a budget covers a whole batch.
	PurchaseToleranceBRL = decimal.RequireFromString("0.01")
	// MinPurchaseWeightKg is the smallest fractional lot a budget can buy.
	MinPurchaseWeightKg = decimal.RequireFromString("0.01")
)

// WeightScale is the number of fractional digits kept on split weights.
const WeightScale int32 = 6

// ESGShares are the fractions of an ESG purchase routed back through the chain.
type ESGShares struct {
	Collector   decimal.Decimal
	Recycler    decimal.Decimal
	Transformer decimal.Decimal
	Reinvest    decimal.Decimal
}

func (s ESGShares) Total() decimal.Decimal {
	return s.Collector.Add(s.Recycler).Add(s.Transformer).Add(s.Reinvest)
}

type Rates struct {
	KgToPlax           decimal.Decimal
	PlaxToBRL          decimal.Decimal
	ESGPricePerKg      decimal.Decimal
	WithdrawalFee      decimal.Decimal
	ReinvestFee        decimal.Decimal
	AdminWithdrawalCap decimal.Decimal
	Shares             ESGShares
}

func Default() Rates {
	return Rates{
		KgToPlax:           decimal.NewFromInt(10),
		PlaxToBRL:          decimal.RequireFromString("0.50"),
		ESGPricePerKg:      decimal.RequireFromString("2.00"),
		WithdrawalFee:      decimal.RequireFromString("0.02"),
		ReinvestFee:        decimal.RequireFromString("0.02"),
		AdminWithdrawalCap: decimal.RequireFromString("0.30"),
		Shares: ESGShares{
			Collector:   decimal.RequireFromString("0.15"),
			Recycler:    decimal.RequireFromString("0.30"),
			Transformer: decimal.RequireFromString("0.25"),
			Reinvest:    decimal.RequireFromString("0.30"),
		},
	}
}

// PlaxForWeight converts collected kilograms into PLAX.
func (r Rates) PlaxForWeight(weightKg decimal.Decimal) decimal.Decimal {
	return weightKg.Mul(r.KgToPlax)
}

// BRLForPlax converts PLAX into its gross BRL value.
func (r Rates) BRLForPlax(plax decimal.Decimal) decimal.Decimal {
	return plax.Mul(r.PlaxToBRL)
}

func (r Rates) Validate() error {
	if !r.KgToPlax.IsPositive() || !r.PlaxToBRL.IsPositive() || !r.ESGPricePerKg.IsPositive() {
		return errors.New("conversion rates must be positive")
	}
	for _, fraction := range []decimal.Decimal{r.WithdrawalFee, r.ReinvestFee, r.AdminWithdrawalCap} {
		if fraction.IsNegative() || fraction.GreaterThan(decimal.NewFromInt(1)) {
			return errors.New("fee and cap fractions must be within [0, 1]")
		}
	}
	shares := []decimal.Decimal{r.Shares.Collector, r.Shares.Recycler, r.Shares.Transformer, r.Shares.Reinvest}
	for _, share := range shares {
		if share.IsNegative() {
			return errors.New("esg shares must not be negative")
		}
	}
	if r.Shares.Total().GreaterThan(decimal.NewFromInt(1)) {
		return errors.New("esg shares must not exceed 100%")
	}
	return nil
}
