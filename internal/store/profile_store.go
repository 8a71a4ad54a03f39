package store

import (
	"context"

	"plaxrec/internal/models"
)

type ProfileStore struct {
	db DB
}

func NewProfileStore(db DB) *ProfileStore {
	return &ProfileStore{db: db}
}

const profileColumns = `seq, id, name, email, role, password_hash, balance_plax, balance_brl, locked_plax, created_at, updated_at`

func (s *ProfileStore) Create(ctx context.Context, tx Execer, profile models.Profile) error {
	query := `
		INSERT INTO profiles (id, name, email, role, password_hash, balance_plax, balance_brl, locked_plax)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := tx.ExecContext(ctx, query,
		profile.ID, profile.Name, profile.Email, profile.Role, profile.PasswordHash,
		profile.BalancePlax, profile.BalanceBRL, profile.LockedPlax,
	)
	return mapWriteError(err)
}

func (s *ProfileStore) GetByID(ctx context.Context, profileID string) (models.Profile, error) {
	var row models.Profile
	err := s.db.GetContext(ctx, &row, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, profileID)
	if err != nil {
		return models.Profile{}, err
	}
	return row, nil
}

func (s *ProfileStore) GetByEmail(ctx context.Context, email string) (models.Profile, error) {
	var row models.Profile
	err := s.db.GetContext(ctx, &row, `SELECT `+profileColumns+` FROM profiles WHERE email = $1`, email)
	if err != nil {
		return models.Profile{}, err
	}
	return row, nil
}

func (s *ProfileStore) GetForUpdate(ctx context.Context, tx Getter, profileID string) (models.Profile, error) {
	var row models.Profile
	err := tx.GetContext(ctx, &row, `
		SELECT `+profileColumns+`
		FROM profiles
		WHERE id = $1
		FOR UPDATE
	`, profileID)
	if err != nil {
		return models.Profile{}, err
	}
	return row, nil
}

// ListByRole returns the holders of role in creation order.
func (s *ProfileStore) ListByRole(ctx context.Context, q Selecter, role models.Role) ([]models.Profile, error) {
	var rows []models.Profile
	err := q.SelectContext(ctx, &rows, `
		SELECT `+profileColumns+`
		FROM profiles
		WHERE role = $1
		ORDER BY seq
	`, role)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *ProfileStore) Directory(ctx context.Context, role models.Role) ([]models.Profile, error) {
	return s.ListByRole(ctx, s.db, role)
}

func (s *ProfileStore) ListAll(ctx context.Context) ([]models.Profile, error) {
	var rows []models.Profile
	err := s.db.SelectContext(ctx, &rows, `SELECT `+profileColumns+` FROM profiles ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// AdjustBalances applies delta as one atomic increment. The row is left
// untouched and ErrNegativeBalance returned when any column would go below zero.
func (s *ProfileStore) AdjustBalances(ctx context.Context, tx Execer, profileID string, delta models.BalanceDelta) error {
	if delta.IsZero() {
		return nil
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE profiles
		SET balance_plax = balance_plax + $1,
		    balance_brl = balance_brl + $2,
		    locked_plax = locked_plax + $3,
		    updated_at = NOW()
		WHERE id = $4
		  AND balance_plax + $1 >= 0
		  AND balance_brl + $2 >= 0
		  AND locked_plax + $3 >= 0
	`, delta.Plax, delta.BRL, delta.Locked, profileID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNegativeBalance
	}
	return nil
}

func (s *ProfileStore) UpdateRole(ctx context.Context, tx Execer, profileID string, role models.Role) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE profiles
		SET role = $1, updated_at = NOW()
		WHERE id = $2
	`, role, profileID)
	return err
}

// UpdateDetails changes the display name and, when passwordHash is non-nil, the
// password hash.
func (s *ProfileStore) UpdateDetails(ctx context.Context, tx Execer, profileID, name string, passwordHash *string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE profiles
		SET name = $1,
		    password_hash = COALESCE($2, password_hash),
		    updated_at = NOW()
		WHERE id = $3
	`, name, passwordHash, profileID)
	return err
}
