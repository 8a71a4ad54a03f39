// Package allocation plans how a weight or a budget is carved out of an ordered
// pool of batches. Planning never mutates anything; callers apply a plan only
// after it is known to be satisfiable.
package allocation

import (
	"plaxrec/internal/models"
	"plaxrec/internal/rates"

	"github.com/shopspring/decimal"
)

// Mutation moves Weight kg of Source into a new status. When Split is false the
// whole batch moves; otherwise a sibling of Weight kg is carved out and Source
// keeps the remainder in its current status.
type Mutation struct {
	Source models.Batch
	Weight decimal.Decimal
	Split  bool
}

// Remainder is the weight left on the source after the mutation.
func (m Mutation) Remainder() decimal.Decimal {
	if !m.Split {
		return decimal.Zero
	}
	return m.Source.WeightKg.Sub(m.Weight)
}

type Plan struct {
	Consumed  []Mutation
	Allocated decimal.Decimal
	Shortfall decimal.Decimal
}

func (p Plan) Satisfied() bool {
	return !p.Shortfall.IsPositive()
}

// Available sums the weight of every batch in the pool.
func Available(pool []models.Batch) decimal.Decimal {
	total := decimal.Zero
	for _, batch := range pool {
		total = total.Add(batch.WeightKg)
	}
	return total
}

// Allocate consumes target kg from pool in the order supplied.
func Allocate(pool []models.Batch, target decimal.Decimal) Plan {
	plan := Plan{Allocated: decimal.Zero, Shortfall: decimal.Zero}
	if !target.IsPositive() {
		return plan
	}
	remaining := target
	for _, batch := range pool {
		if remaining.LessThanOrEqual(rates.AllocationEpsilonKg) {
			remaining = decimal.Zero
			break
		}
		if !batch.WeightKg.IsPositive() {
			continue
		}
		if batch.WeightKg.LessThanOrEqual(remaining) {
			plan.Consumed = append(plan.Consumed, Mutation{Source: batch, Weight: batch.WeightKg})
			plan.Allocated = plan.Allocated.Add(batch.WeightKg)
			remaining = remaining.Sub(batch.WeightKg)
			continue
		}
		plan.Consumed = append(plan.Consumed, Mutation{Source: batch, Weight: remaining, Split: true})
		plan.Allocated = plan.Allocated.Add(remaining)
		remaining = decimal.Zero
		break
	}
	if remaining.GreaterThan(rates.AllocationEpsilonKg) {
		plan.Shortfall = remaining
	}
	return plan
}

type BudgetPlan struct {
	Consumed []Mutation
	Weight   decimal.Decimal
	Spent    decimal.Decimal
}

// AllocateByBudget buys whole batches while budget covers their cost (within
// PurchaseToleranceBRL), then at most one fractional lot. The charge for a batch
// bought under the tolerance is capped at the remaining budget, so Spent never
// exceeds budget.
func AllocateByBudget(pool []models.Batch, budget, pricePerKg decimal.Decimal) BudgetPlan {
	plan := BudgetPlan{Weight: decimal.Zero, Spent: decimal.Zero}
	if !budget.IsPositive() || !pricePerKg.IsPositive() {
		return plan
	}
	remaining := budget
	for _, batch := range pool {
		if remaining.LessThanOrEqual(rates.PurchaseToleranceBRL) {
			break
		}
		if !batch.WeightKg.IsPositive() {
			continue
		}
		cost := batch.WeightKg.Mul(pricePerKg)
		if remaining.GreaterThanOrEqual(cost.Sub(rates.PurchaseToleranceBRL)) {
			charge := decimal.Min(cost, remaining)
			plan.Consumed = append(plan.Consumed, Mutation{Source: batch, Weight: batch.WeightKg})
			plan.Weight = plan.Weight.Add(batch.WeightKg)
			plan.Spent = plan.Spent.Add(charge)
			remaining = remaining.Sub(charge)
			continue
		}
		weightToBuy := remaining.DivRound(pricePerKg, rates.WeightScale+2).Truncate(rates.WeightScale)
		if weightToBuy.LessThan(rates.MinPurchaseWeightKg) {
			break
		}
		plan.Consumed = append(plan.Consumed, Mutation{Source: batch, Weight: weightToBuy, Split: true})
		plan.Weight = plan.Weight.Add(weightToBuy)
		plan.Spent = plan.Spent.Add(remaining)
		break
	}
	return plan
}

// Target describes the state a consumed portion moves into.
type Target struct {
	Status   models.BatchStatus
	Stamp    func(*models.Batch)
	KgToPlax decimal.Decimal
	NewID    func() string
}

// Apply materializes a mutation. For a full transition moved is the source in its
// new state and remainder is nil. For a split moved is a new row and remainder is
// the shrunk source, still in its original status.
func (m Mutation) Apply(target Target) (moved models.Batch, remainder *models.Batch) {
	if !m.Split {
		moved = m.Source
		moved.Status = target.Status
		if target.Stamp != nil {
			target.Stamp(&moved)
		}
		return moved, nil
	}
	parentID := m.Source.ID
	if m.Source.ParentBatchID != nil {
		parentID = *m.Source.ParentBatchID
	}
	moved = m.Source
	moved.Seq = 0
	moved.ID = target.NewID()
	moved.ParentBatchID = &parentID
	moved.WeightKg = m.Weight
	moved.PlaxGenerated = m.Weight.Mul(target.KgToPlax)
	moved.Status = target.Status
	if target.Stamp != nil {
		target.Stamp(&moved)
	}
	rest := m.Source
	rest.WeightKg = m.Remainder()
	rest.PlaxGenerated = rest.WeightKg.Mul(target.KgToPlax)
	return moved, &rest
}
