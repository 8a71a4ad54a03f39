package memstore

import (
	"context"
	"database/sql"
	"strings"

	"plaxrec/internal/models"
	"plaxrec/internal/store"
)

type Profiles struct {
	store *Store
}

func (p *Profiles) Create(_ context.Context, tx store.Execer, profile models.Profile) error {
	data, err := writable(tx)
	if err != nil {
		return err
	}
	email := strings.ToLower(profile.Email)
	if _, taken := data.emails[email]; taken {
		return store.ErrConflict
	}
	if _, taken := data.profiles[profile.ID]; taken {
		return store.ErrConflict
	}
	now := p.store.now()
	profile.Seq = data.nextSeq()
	profile.CreatedAt = now
	profile.UpdatedAt = now
	data.profiles[profile.ID] = profile
	data.profileOrder = append(data.profileOrder, profile.ID)
	data.emails[email] = profile.ID
	return nil
}

func (p *Profiles) GetByID(_ context.Context, profileID string) (models.Profile, error) {
	return p.get(nil, profileID)
}

func (p *Profiles) GetByEmail(_ context.Context, email string) (models.Profile, error) {
	var (
		row models.Profile
		err = sql.ErrNoRows
	)
	p.store.read(nil, func(data *state) {
		if id, ok := data.emails[strings.ToLower(email)]; ok {
			row, err = data.profiles[id], nil
		}
	})
	return row, err
}

// GetForUpdate reads from the transaction copy. Writers are already serialized.
func (p *Profiles) GetForUpdate(_ context.Context, tx store.Getter, profileID string) (models.Profile, error) {
	return p.get(tx, profileID)
}

func (p *Profiles) get(q any, profileID string) (models.Profile, error) {
	var (
		row models.Profile
		ok  bool
	)
	p.store.read(q, func(data *state) {
		row, ok = data.profiles[profileID]
	})
	if !ok {
		return models.Profile{}, sql.ErrNoRows
	}
	return row, nil
}

func (p *Profiles) ListByRole(_ context.Context, q store.Selecter, role models.Role) ([]models.Profile, error) {
	var rows []models.Profile
	p.store.read(q, func(data *state) {
		for _, id := range data.profileOrder {
			if profile := data.profiles[id]; profile.Role == role {
				rows = append(rows, profile)
			}
		}
	})
	return rows, nil
}

func (p *Profiles) Directory(ctx context.Context, role models.Role) ([]models.Profile, error) {
	return p.ListByRole(ctx, nil, role)
}

func (p *Profiles) ListAll(context.Context) ([]models.Profile, error) {
	var rows []models.Profile
	p.store.read(nil, func(data *state) {
		for _, id := range data.profileOrder {
			rows = append(rows, data.profiles[id])
		}
	})
	return rows, nil
}

func (p *Profiles) AdjustBalances(_ context.Context, tx store.Execer, profileID string, delta models.BalanceDelta) error {
	if delta.IsZero() {
		return nil
	}
	data, err := writable(tx)
	if err != nil {
		return err
	}
	profile, ok := data.profiles[profileID]
	if !ok {
		return store.ErrNegativeBalance
	}
	plax := profile.BalancePlax.Add(delta.Plax)
	brl := profile.BalanceBRL.Add(delta.BRL)
	locked := profile.LockedPlax.Add(delta.Locked)
	if plax.IsNegative() || brl.IsNegative() || locked.IsNegative() {
		return store.ErrNegativeBalance
	}
	profile.BalancePlax, profile.BalanceBRL, profile.LockedPlax = plax, brl, locked
	profile.UpdatedAt = p.store.now()
	data.profiles[profileID] = profile
	return nil
}

func (p *Profiles) UpdateRole(_ context.Context, tx store.Execer, profileID string, role models.Role) error {
	return p.update(tx, profileID, func(profile *models.Profile) {
		profile.Role = role
	})
}

func (p *Profiles) UpdateDetails(_ context.Context, tx store.Execer, profileID, name string, passwordHash *string) error {
	return p.update(tx, profileID, func(profile *models.Profile) {
		profile.Name = name
		if passwordHash != nil {
			profile.PasswordHash = *passwordHash
		}
	})
}

func (p *Profiles) update(tx store.Execer, profileID string, mutate func(*models.Profile)) error {
	data, err := writable(tx)
	if err != nil {
		return err
	}
	profile, ok := data.profiles[profileID]
	if !ok {
		return nil
	}
	mutate(&profile)
	profile.UpdatedAt = p.store.now()
	data.profiles[profileID] = profile
	return nil
}
