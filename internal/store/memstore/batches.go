package memstore

import (
	"context"

	"plaxrec/internal/models"
	"plaxrec/internal/store"

	"github.com/shopspring/decimal"
)

type Batches struct {
	store *Store
}

func (b *Batches) Insert(_ context.Context, tx store.Execer, batch models.Batch) error {
	data, err := writable(tx)
	if err != nil {
		return err
	}
	if _, taken := data.batches[batch.ID]; taken {
		return store.ErrConflict
	}
	batch.Seq = data.nextSeq()
	data.batches[batch.ID] = batch
	data.batchOrder = append(data.batchOrder, batch.ID)
	return nil
}

func (b *Batches) Update(_ context.Context, tx store.Execer, batch models.Batch) error {
	data, err := writable(tx)
	if err != nil {
		return err
	}
	current, ok := data.batches[batch.ID]
	if !ok {
		return nil
	}
	current.WeightKg = batch.WeightKg
	current.PlaxGenerated = batch.PlaxGenerated
	current.Status = batch.Status
	current.NFeID = batch.NFeID
	current.CertifiedByUserID = batch.CertifiedByUserID
	current.CertificationDate = batch.CertificationDate
	data.batches[batch.ID] = current
	return nil
}

// List returns matches newest first.
func (b *Batches) List(_ context.Context, filter store.BatchFilter) ([]models.Batch, error) {
	rows := b.match(nil, filter)
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

// ListForUpdate returns matches oldest first from the transaction copy.
func (b *Batches) ListForUpdate(_ context.Context, tx store.Selecter, filter store.BatchFilter) ([]models.Batch, error) {
	return b.match(tx, filter), nil
}

func (b *Batches) Totals(_ context.Context, filter store.BatchFilter) (store.BatchTotals, error) {
	totals := store.BatchTotals{WeightKg: decimal.Zero}
	for _, batch := range b.match(nil, filter) {
		totals.WeightKg = totals.WeightKg.Add(batch.WeightKg)
		totals.Count++
	}
	return totals, nil
}

func (b *Batches) match(q any, filter store.BatchFilter) []models.Batch {
	var rows []models.Batch
	b.store.read(q, func(data *state) {
		for _, id := range data.batchOrder {
			batch := data.batches[id]
			if filter.Status != "" && batch.Status != filter.Status {
				continue
			}
			if filter.RecyclerID != "" && batch.RecyclerID != filter.RecyclerID {
				continue
			}
			if filter.CertifiedByUserID != "" && (batch.CertifiedByUserID == nil || *batch.CertifiedByUserID != filter.CertifiedByUserID) {
				continue
			}
			rows = append(rows, batch)
		}
	})
	return rows
}
