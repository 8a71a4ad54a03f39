package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"plaxrec/internal/auth"
	"plaxrec/internal/db"
	"plaxrec/internal/models"
	"plaxrec/internal/store"
	"plaxrec/internal/validator"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidProfile     = errors.New("invalid profile")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrRoleAlreadyChosen  = errors.New("role already chosen")
	ErrRoleNotAllowed     = errors.New("role cannot be self-assigned")
)

type ProfileDirectory interface {
	Create(ctx context.Context, tx store.Execer, profile models.Profile) error
	GetByID(ctx context.Context, profileID string) (models.Profile, error)
	GetByEmail(ctx context.Context, email string) (models.Profile, error)
	GetForUpdate(ctx context.Context, tx store.Getter, profileID string) (models.Profile, error)
	UpdateRole(ctx context.Context, tx store.Execer, profileID string, role models.Role) error
	UpdateDetails(ctx context.Context, tx store.Execer, profileID, name string, passwordHash *string) error
	ListAll(ctx context.Context) ([]models.Profile, error)
	Directory(ctx context.Context, role models.Role) ([]models.Profile, error)
}

// ProfileService is the identity side: it creates profiles explicitly and
// issues tokens. It never touches balances.
type ProfileService struct {
	txRunner db.TxRunner
	profiles ProfileDirectory
	audit    AuditStore
	secret   string
	ttl      time.Duration
	now      func() time.Time
}

func NewProfileService(txRunner db.TxRunner, profiles ProfileDirectory, audit AuditStore, jwtSecret string, tokenTTL time.Duration) *ProfileService {
	return &ProfileService{
		txRunner: txRunner,
		profiles: profiles,
		audit:    audit,
		secret:   jwtSecret,
		ttl:      tokenTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type RegisterRequest struct {
	Name     string
	Email    string
	Password string
	Role     models.Role
}

type Session struct {
	Token   string
	Profile models.Profile
}

func (s *ProfileService) Register(ctx context.Context, req RegisterRequest) (Session, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if name == "" {
		return Session{}, fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}
	if err := validator.ValidateEmail(email); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	if err := validator.ValidatePassword(req.Password); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	role := req.Role
	if role == "" {
		role = models.RoleGuest
	}
	if !role.IsValid() {
		return Session{}, fmt.Errorf("%w: unknown role %q", ErrInvalidProfile, role)
	}
	if role == models.RoleAdmin {
		return Session{}, ErrRoleNotAllowed
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return Session{}, err
	}
	now := s.now()
	profile := models.Profile{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		Role:         role,
		PasswordHash: hash,
		BalancePlax:  decimal.Zero,
		BalanceBRL:   decimal.Zero,
		LockedPlax:   decimal.Zero,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = s.txRunner.WithTx(ctx, func(tx store.Tx) error {
		if err := s.profiles.Create(ctx, tx, profile); err != nil {
			return err
		}
		data, err := marshalMetadata(map[string]string{"email": email, "role": string(role)})
		if err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, profile.ID, "register", "profile", profile.ID, data)
	})
	if errors.Is(err, store.ErrConflict) {
		return Session{}, ErrEmailTaken
	}
	if err != nil {
		return Session{}, err
	}
	return s.session(profile)
}

func (s *ProfileService) Login(ctx context.Context, email, password string) (Session, error) {
	profile, err := s.profiles.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if !auth.CheckPassword(profile.PasswordHash, password) {
		return Session{}, ErrInvalidCredentials
	}
	return s.session(profile)
}

// SelectRole lets a GUEST pick its role once. A fresh token carrying the new
// role is returned.
func (s *ProfileService) SelectRole(ctx context.Context, profileID string, role models.Role) (Session, error) {
	if !role.IsValid() || role == models.RoleGuest {
		return Session{}, fmt.Errorf("%w: unknown role %q", ErrInvalidProfile, role)
	}
	if role == models.RoleAdmin {
		return Session{}, ErrRoleNotAllowed
	}
	var updated models.Profile
	err := s.txRunner.WithTx(ctx, func(tx store.Tx) error {
		profile, err := s.profiles.GetForUpdate(ctx, tx, profileID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrProfileNotFound
		}
		if err != nil {
			return err
		}
		if profile.Role != models.RoleGuest {
			return ErrRoleAlreadyChosen
		}
		if err := s.profiles.UpdateRole(ctx, tx, profileID, role); err != nil {
			return err
		}
		data, err := marshalMetadata(map[string]string{"role": string(role)})
		if err != nil {
			return err
		}
		if err := s.audit.Log(ctx, tx, profileID, "select_role", "profile", profileID, data); err != nil {
			return err
		}
		updated, err = s.profiles.GetForUpdate(ctx, tx, profileID)
		return err
	})
	if err != nil {
		return Session{}, err
	}
	return s.session(updated)
}

type UpdateProfileRequest struct {
	Name     *string
	Password *string
}

func (s *ProfileService) UpdateProfile(ctx context.Context, profileID string, req UpdateProfileRequest) (models.Profile, error) {
	var hash *string
	if req.Password != nil {
		if err := validator.ValidatePassword(*req.Password); err != nil {
			return models.Profile{}, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
		}
		hashed, err := auth.HashPassword(*req.Password)
		if err != nil {
			return models.Profile{}, err
		}
		hash = &hashed
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return models.Profile{}, fmt.Errorf("%w: name must not be empty", ErrInvalidProfile)
	}
	var updated models.Profile
	err := s.txRunner.WithTx(ctx, func(tx store.Tx) error {
		current, err := s.profiles.GetForUpdate(ctx, tx, profileID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrProfileNotFound
		}
		if err != nil {
			return err
		}
		name := current.Name
		if req.Name != nil {
			name = strings.TrimSpace(*req.Name)
		}
		if err := s.profiles.UpdateDetails(ctx, tx, profileID, name, hash); err != nil {
			return err
		}
		if err := s.audit.Log(ctx, tx, profileID, "update_profile", "profile", profileID, "{}"); err != nil {
			return err
		}
		updated, err = s.profiles.GetForUpdate(ctx, tx, profileID)
		return err
	})
	if err != nil {
		return models.Profile{}, err
	}
	return updated, nil
}

func (s *ProfileService) GetProfile(ctx context.Context, profileID string) (models.Profile, error) {
	profile, err := s.profiles.GetByID(ctx, profileID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Profile{}, ErrProfileNotFound
	}
	return profile, err
}

func (s *ProfileService) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	return s.profiles.ListAll(ctx)
}

// DirectoryEntry is the public face of a profile, used to pick counterparties.
type DirectoryEntry struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Role models.Role `json:"role"`
}

func (s *ProfileService) Directory(ctx context.Context, role models.Role) ([]DirectoryEntry, error) {
	profiles, err := s.profiles.Directory(ctx, role)
	if err != nil {
		return nil, err
	}
	entries := make([]DirectoryEntry, 0, len(profiles))
	for _, profile := range profiles {
		entries = append(entries, DirectoryEntry{ID: profile.ID, Name: profile.Name, Role: profile.Role})
	}
	return entries, nil
}

func (s *ProfileService) session(profile models.Profile) (Session, error) {
	token, err := auth.GenerateToken(s.secret, profile.ID, profile.Role, s.ttl)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, Profile: profile}, nil
}
