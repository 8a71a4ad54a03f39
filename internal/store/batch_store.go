package store

import (
	"context"
	"strconv"
	"strings"

	"plaxrec/internal/models"

	"github.com/shopspring/decimal"
)

type BatchStore struct {
	db DB
}

// BatchFilter narrows batch queries. Empty fields match everything.
type BatchFilter struct {
	Status            models.BatchStatus
	RecyclerID        string
	CertifiedByUserID string
}

// BatchTotals aggregates the batches matching a filter.
type BatchTotals struct {
	WeightKg decimal.Decimal `db:"weight_kg"`
	Count    int             `db:"count"`
}

func NewBatchStore(db DB) *BatchStore {
	return &BatchStore{db: db}
}

const batchColumns = `seq, id, parent_batch_id, collector_id, recycler_id, weight_kg, plastic_type, plax_generated,
	collected_at, status, nfe_id, certified_by_user_id, certification_date`

func (s *BatchStore) Insert(ctx context.Context, tx Execer, batch models.Batch) error {
	query := `
		INSERT INTO batches (id, parent_batch_id, collector_id, recycler_id, weight_kg, plastic_type, plax_generated,
		                     collected_at, status, nfe_id, certified_by_user_id, certification_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := tx.ExecContext(ctx, query,
		batch.ID, batch.ParentBatchID, batch.CollectorID, batch.RecyclerID, batch.WeightKg, batch.PlasticType,
		batch.PlaxGenerated, batch.CollectedAt, batch.Status, batch.NFeID, batch.CertifiedByUserID, batch.CertificationDate,
	)
	return mapWriteError(err)
}

// Update rewrites the mutable columns of an existing batch.
func (s *BatchStore) Update(ctx context.Context, tx Execer, batch models.Batch) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE batches
		SET weight_kg = $1,
		    plax_generated = $2,
		    status = $3,
		    nfe_id = $4,
		    certified_by_user_id = $5,
		    certification_date = $6
		WHERE id = $7
	`, batch.WeightKg, batch.PlaxGenerated, batch.Status, batch.NFeID, batch.CertifiedByUserID, batch.CertificationDate, batch.ID)
	return err
}

func (s *BatchStore) List(ctx context.Context, filter BatchFilter) ([]models.Batch, error) {
	where, args := filter.where()
	var rows []models.Batch
	err := s.db.SelectContext(ctx, &rows, `SELECT `+batchColumns+` FROM batches`+where+` ORDER BY seq DESC`, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListForUpdate locks the matching batches and returns them oldest first, the
// order the allocator consumes them in.
func (s *BatchStore) ListForUpdate(ctx context.Context, tx Selecter, filter BatchFilter) ([]models.Batch, error) {
	where, args := filter.where()
	var rows []models.Batch
	err := tx.SelectContext(ctx, &rows, `SELECT `+batchColumns+` FROM batches`+where+` ORDER BY seq FOR UPDATE`, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *BatchStore) Totals(ctx context.Context, filter BatchFilter) (BatchTotals, error) {
	where, args := filter.where()
	var row BatchTotals
	err := s.db.GetContext(ctx, &row, `SELECT COALESCE(SUM(weight_kg), 0) AS weight_kg, COUNT(*) AS count FROM batches`+where, args...)
	if err != nil {
		return BatchTotals{}, err
	}
	return row, nil
}

func (f BatchFilter) where() (string, []any) {
	var clauses []string
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		clauses = append(clauses, column+" = $"+strconv.Itoa(len(args)))
	}
	if f.Status != "" {
		add("status", f.Status)
	}
	if f.RecyclerID != "" {
		add("recycler_id", f.RecyclerID)
	}
	if f.CertifiedByUserID != "" {
		add("certified_by_user_id", f.CertifiedByUserID)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
