package handlers

import (
	"context"

	"plaxrec/internal/models"
	"plaxrec/internal/services"
	"plaxrec/internal/store"
)

type SettlementService interface {
	RegisterCollection(ctx context.Context, req services.CollectionRequest) (services.Result, error)
	EmitNFe(ctx context.Context, req services.NFeRequest) (services.Result, error)
	BuyCertifiedLots(ctx context.Context, req services.PurchaseRequest) (services.Result, error)
	Withdraw(ctx context.Context, req services.WithdrawalRequest) (services.Result, error)
	Reinvest(ctx context.Context, req services.ReinvestRequest) (services.Result, error)
}

type ProfileService interface {
	Register(ctx context.Context, req services.RegisterRequest) (services.Session, error)
	Login(ctx context.Context, email, password string) (services.Session, error)
	SelectRole(ctx context.Context, profileID string, role models.Role) (services.Session, error)
	UpdateProfile(ctx context.Context, profileID string, req services.UpdateProfileRequest) (models.Profile, error)
	GetProfile(ctx context.Context, profileID string) (models.Profile, error)
	ListProfiles(ctx context.Context) ([]models.Profile, error)
	Directory(ctx context.Context, role models.Role) ([]services.DirectoryEntry, error)
}

type BatchStore interface {
	List(ctx context.Context, filter store.BatchFilter) ([]models.Batch, error)
	Totals(ctx context.Context, filter store.BatchFilter) (store.BatchTotals, error)
}

type TransactionStore interface {
	ListByUser(ctx context.Context, userID string, txType models.TransactionType, limit, offset int) ([]models.Transaction, error)
	ListAll(ctx context.Context, limit, offset int) ([]models.Transaction, error)
}

type AuditStore interface {
	List(ctx context.Context, limit, offset int) ([]models.AuditLog, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context) ([]store.ReconcileRow, error)
}

type InstitutionCatalog interface {
	List() []models.Institution
}
