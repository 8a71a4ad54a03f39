// Package revenue splits monetary amounts into labelled shares and decides which
// profiles receive a share addressed to a role.
package revenue

import (
	"plaxrec/internal/rates"

	"github.com/shopspring/decimal"
)

// Labels used for the ESG purchase distribution.
const (
	LabelCollector   = "collector"
	LabelRecycler    = "recycler"
	LabelTransformer = "transformer"
	LabelReinvest    = "esg_reinvest"
)

type Share struct {
	Label string
	Pct   decimal.Decimal
}

type Portion struct {
	Label  string
	Amount decimal.Decimal
}

// Split computes total*pct for every share independently. No remainder is
// redistributed, so the portions only add up to total when the percentages do.
func Split(total decimal.Decimal, shares []Share) []Portion {
	portions := make([]Portion, 0, len(shares))
	for _, share := range shares {
		portions = append(portions, Portion{Label: share.Label, Amount: total.Mul(share.Pct)})
	}
	return portions
}

func Sum(portions []Portion) decimal.Decimal {
	total := decimal.Zero
	for _, portion := range portions {
		total = total.Add(portion.Amount)
	}
	return total
}

// ESGShares lists the four purchase shares in distribution order.
func ESGShares(s rates.ESGShares) []Share {
	return []Share{
		{Label: LabelCollector, Pct: s.Collector},
		{Label: LabelRecycler, Pct: s.Recycler},
		{Label: LabelTransformer, Pct: s.Transformer},
		{Label: LabelReinvest, Pct: s.Reinvest},
	}
}
