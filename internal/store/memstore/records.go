package memstore

import (
	"context"

	"plaxrec/internal/models"
	"plaxrec/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Transactions struct {
	store *Store
}

func (t *Transactions) Create(_ context.Context, tx store.Execer, record models.Transaction) error {
	data, err := writable(tx)
	if err != nil {
		return err
	}
	if record.ClientRequestID != nil {
		if _, seen := data.requestIDs[*record.ClientRequestID]; seen {
			return store.ErrConflict
		}
		data.requestIDs[*record.ClientRequestID] = struct{}{}
	}
	if record.Metadata == "" {
		record.Metadata = "{}"
	}
	record.Seq = data.nextSeq()
	record.CreatedAt = t.store.now()
	data.transactions = append(data.transactions, record)
	return nil
}

func (t *Transactions) ListByUser(_ context.Context, userID string, txType models.TransactionType, limit, offset int) ([]models.Transaction, error) {
	return t.list(limit, offset, func(record models.Transaction) bool {
		if txType != "" && record.Type != txType {
			return false
		}
		if record.FromUserID == nil && record.ToUserID == nil {
			return true
		}
		return (record.FromUserID != nil && *record.FromUserID == userID) ||
			(record.ToUserID != nil && *record.ToUserID == userID)
	})
}

func (t *Transactions) ListAll(_ context.Context, limit, offset int) ([]models.Transaction, error) {
	return t.list(limit, offset, func(models.Transaction) bool { return true })
}

func (t *Transactions) list(limit, offset int, keep func(models.Transaction) bool) ([]models.Transaction, error) {
	var rows []models.Transaction
	t.store.read(nil, func(data *state) {
		for i := len(data.transactions) - 1; i >= 0; i-- {
			if keep(data.transactions[i]) {
				rows = append(rows, data.transactions[i])
			}
		}
	})
	return page(rows, limit, offset), nil
}

type Movements struct {
	store *Store
}

func (m *Movements) Insert(_ context.Context, tx store.Execer, movements []models.BalanceMovement) error {
	data, err := writable(tx)
	if err != nil {
		return err
	}
	now := m.store.now()
	for _, movement := range movements {
		movement.CreatedAt = now
		data.movements = append(data.movements, movement)
	}
	return nil
}

func (m *Movements) SumByProfile(_ context.Context, profileID string, asset models.Asset) (decimal.Decimal, error) {
	sum := decimal.Zero
	m.store.read(nil, func(data *state) {
		for _, movement := range data.movements {
			if movement.ProfileID == profileID && movement.Asset == asset {
				sum = sum.Add(movement.Amount)
			}
		}
	})
	return sum, nil
}

func (m *Movements) Reconcile(context.Context) ([]store.ReconcileRow, error) {
	var rows []store.ReconcileRow
	m.store.read(nil, func(data *state) {
		type key struct {
			profile string
			asset   models.Asset
		}
		journal := make(map[key]decimal.Decimal)
		for _, movement := range data.movements {
			k := key{movement.ProfileID, movement.Asset}
			journal[k] = journal[k].Add(movement.Amount)
		}
		for _, id := range data.profileOrder {
			profile := data.profiles[id]
			stored := map[models.Asset]decimal.Decimal{
				models.AssetPlax:       profile.BalancePlax,
				models.AssetBRL:        profile.BalanceBRL,
				models.AssetLockedPlax: profile.LockedPlax,
			}
			assets := []models.Asset{models.AssetBRL, models.AssetLockedPlax, models.AssetPlax}
			for _, asset := range assets {
				sum := journal[key{id, asset}]
				rows = append(rows, store.ReconcileRow{
					ProfileID:  id,
					Asset:      asset,
					Stored:     stored[asset],
					Journal:    sum,
					Difference: stored[asset].Sub(sum),
				})
			}
		}
	})
	return rows, nil
}

type Audit struct {
	store *Store
}

func (a *Audit) Log(_ context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error {
	work, err := writable(tx)
	if err != nil {
		return err
	}
	entry := models.AuditLog{
		ID:         uuid.NewString(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Data:       data,
		CreatedAt:  a.store.now(),
	}
	if actorID != "" {
		entry.ActorUserID = &actorID
	}
	work.audit = append(work.audit, entry)
	return nil
}

func (a *Audit) List(_ context.Context, limit, offset int) ([]models.AuditLog, error) {
	var rows []models.AuditLog
	a.store.read(nil, func(data *state) {
		for i := len(data.audit) - 1; i >= 0; i-- {
			rows = append(rows, data.audit[i])
		}
	})
	return page(rows, limit, offset), nil
}

func page[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return nil
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
