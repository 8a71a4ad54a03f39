package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"plaxrec/internal/models"
	"plaxrec/internal/money"
	"plaxrec/internal/store"

	"github.com/shopspring/decimal"
)

type movementKey struct {
	profileID string
	asset     models.Asset
}

type entry struct {
	key         movementKey
	amount      decimal.Decimal
	description string
}

// journal collects the balance changes of one settlement and writes them
// together with the transaction record they belong to. Changes to the same
// profile and asset are netted into a single movement.
type journal struct {
	operation string
	actorID   string
	entries   []entry
	index     map[movementKey]int
	snapshots []models.Profile
}

func newJournal(operation, actorID string) *journal {
	return &journal{operation: operation, actorID: actorID, index: make(map[movementKey]int)}
}

// add records a signed change, rounded to the storage scale.
func (j *journal) add(profileID string, asset models.Asset, amount decimal.Decimal, description string) {
	amount = amount.Round(money.PlaxDecimals)
	if amount.IsZero() {
		return
	}
	key := movementKey{profileID: profileID, asset: asset}
	if i, ok := j.index[key]; ok {
		j.entries[i].amount = j.entries[i].amount.Add(amount)
		return
	}
	j.index[key] = len(j.entries)
	j.entries = append(j.entries, entry{key: key, amount: amount, description: description})
}

func (j *journal) deltas() map[string]models.BalanceDelta {
	deltas := make(map[string]models.BalanceDelta)
	for _, e := range j.entries {
		deltas[e.key.profileID] = deltas[e.key.profileID].Add(e.key.asset, e.amount)
	}
	return deltas
}

func (j *journal) profileIDs() []string {
	ids := make([]string, 0, len(j.entries))
	seen := make(map[string]struct{})
	for _, e := range j.entries {
		if _, ok := seen[e.key.profileID]; ok {
			continue
		}
		seen[e.key.profileID] = struct{}{}
		ids = append(ids, e.key.profileID)
	}
	sort.Strings(ids)
	return ids
}

// volume sums the credits per asset.
func (j *journal) volume() map[models.Asset]decimal.Decimal {
	out := make(map[models.Asset]decimal.Decimal)
	for _, e := range j.entries {
		if e.amount.IsPositive() {
			out[e.key.asset] = out[e.key.asset].Add(e.amount)
		}
	}
	return out
}

// commit appends record, applies every delta, writes the movements and the
// audit entry, then reloads the touched profiles. It returns the record id.
func (s *SettlementService) commit(ctx context.Context, tx store.Tx, j *journal, record models.Transaction) (string, error) {
	now := s.now()
	record.ID = s.newID()
	record.CreatedAt = now
	if record.Status == "" {
		record.Status = models.TxCompleted
	}
	if record.Metadata == "" {
		record.Metadata = "{}"
	}
	if err := s.transactions.Create(ctx, tx, record); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return "", duplicateError()
		}
		return "", err
	}

	deltas := j.deltas()
	ids := j.profileIDs()
	for _, id := range ids {
		if err := s.profiles.AdjustBalances(ctx, tx, id, deltas[id]); err != nil {
			if errors.Is(err, store.ErrNegativeBalance) {
				return "", insufficientError(decimal.Zero, "balance of profile %s cannot cover this operation", id)
			}
			return "", err
		}
	}

	movements := make([]models.BalanceMovement, 0, len(j.entries))
	for _, e := range j.entries {
		if e.amount.IsZero() {
			continue
		}
		movements = append(movements, models.BalanceMovement{
			ID:            s.newID(),
			TransactionID: record.ID,
			ProfileID:     e.key.profileID,
			Asset:         e.key.asset,
			Amount:        e.amount,
			Description:   e.description,
			CreatedAt:     now,
		})
	}
	if len(movements) > 0 {
		if err := s.movements.Insert(ctx, tx, movements); err != nil {
			return "", err
		}
	}

	data, err := marshalMetadata(map[string]any{
		"transaction_id": record.ID,
		"type":           record.Type,
		"profiles":       ids,
	})
	if err != nil {
		return "", err
	}
	if err := s.audit.Log(ctx, tx, j.actorID, j.operation, "transaction", record.ID, data); err != nil {
		return "", err
	}

	j.snapshots = j.snapshots[:0]
	for _, id := range ids {
		profile, err := s.profiles.GetForUpdate(ctx, tx, id)
		if err != nil {
			return "", err
		}
		j.snapshots = append(j.snapshots, profile)
	}
	return record.ID, nil
}

func nullAmount(value decimal.Decimal) decimal.NullDecimal {
	return decimal.NewNullDecimal(value)
}

// marshalMetadata encodes a transaction metadata or audit payload.
func marshalMetadata(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(data), nil
}
