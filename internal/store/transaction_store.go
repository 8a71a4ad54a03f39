package store

import (
	"context"
	"strconv"

	"plaxrec/internal/models"
)

type TransactionStore struct {
	db DB
}

func NewTransactionStore(db DB) *TransactionStore {
	return &TransactionStore{db: db}
}

const transactionColumns = `seq, id, created_at, type, amount_plax, amount_brl, description, status,
	from_user_id, to_user_id, metadata, client_request_id`

// Create appends a transaction record. A reused client request id yields ErrConflict.
func (s *TransactionStore) Create(ctx context.Context, tx Execer, record models.Transaction) error {
	query := `
		INSERT INTO transactions (id, type, amount_plax, amount_brl, description, status, from_user_id, to_user_id, metadata, client_request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	metadata := record.Metadata
	if metadata == "" {
		metadata = "{}"
	}
	_, err := tx.ExecContext(ctx, query,
		record.ID, record.Type, record.AmountPlax, record.AmountBRL, record.Description, record.Status,
		record.FromUserID, record.ToUserID, metadata, record.ClientRequestID,
	)
	return mapWriteError(err)
}

// ListByUser returns, newest first, the records where the user is either party
// plus the records that name no party at all.
func (s *TransactionStore) ListByUser(ctx context.Context, userID string, txType models.TransactionType, limit, offset int) ([]models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE (from_user_id = $1 OR to_user_id = $1 OR (from_user_id IS NULL AND to_user_id IS NULL))
	`
	args := []any{userID}
	if txType != "" {
		args = append(args, txType)
		query += " AND type = $" + strconv.Itoa(len(args))
	}
	query += " ORDER BY seq DESC LIMIT $" + strconv.Itoa(len(args)+1) + " OFFSET $" + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)
	var rows []models.Transaction
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *TransactionStore) ListAll(ctx context.Context, limit, offset int) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+transactionColumns+`
		FROM transactions
		ORDER BY seq DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
