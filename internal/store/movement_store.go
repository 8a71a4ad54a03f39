package store

import (
	"context"

	"plaxrec/internal/models"

	"github.com/shopspring/decimal"
)

type MovementStore struct {
	db DB
}

// ReconcileRow compares a stored balance column with the sum of its journal.
type ReconcileRow struct {
	ProfileID  string          `db:"profile_id" json:"profile_id"`
	Asset      models.Asset    `db:"asset" json:"asset"`
	Stored     decimal.Decimal `db:"stored" json:"stored"`
	Journal    decimal.Decimal `db:"journal" json:"journal"`
	Difference decimal.Decimal `db:"-" json:"difference"`
}

func NewMovementStore(db DB) *MovementStore {
	return &MovementStore{db: db}
}

func (s *MovementStore) Insert(ctx context.Context, tx Execer, movements []models.BalanceMovement) error {
	query := `
		INSERT INTO balance_movements (id, transaction_id, profile_id, asset, amount, description)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, m := range movements {
		if _, err := tx.ExecContext(ctx, query, m.ID, m.TransactionID, m.ProfileID, m.Asset, m.Amount, m.Description); err != nil {
			return err
		}
	}
	return nil
}

func (s *MovementStore) SumByProfile(ctx context.Context, profileID string, asset models.Asset) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := s.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(amount), 0)
		FROM balance_movements
		WHERE profile_id = $1 AND asset = $2
	`, profileID, asset)
	return sum, err
}

func (s *MovementStore) Reconcile(ctx context.Context) ([]ReconcileRow, error) {
	var rows []ReconcileRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT p.id AS profile_id,
		       a.asset,
		       a.stored,
		       COALESCE(m.total, 0) AS journal
		FROM profiles p
		CROSS JOIN LATERAL (VALUES
			('PLAX', p.balance_plax),
			('BRL', p.balance_brl),
			('LOCKED_PLAX', p.locked_plax)
		) AS a(asset, stored)
		LEFT JOIN (
			SELECT profile_id, asset, SUM(amount) AS total
			FROM balance_movements
			GROUP BY profile_id, asset
		) m ON m.profile_id = p.id AND m.asset = a.asset
		ORDER BY p.seq, a.asset
	`)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Difference = rows[i].Stored.Sub(rows[i].Journal)
	}
	return rows, nil
}
