package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Profile struct {
	Seq          int64           `db:"seq" json:"-"`
	ID           string          `db:"id" json:"id"`
	Name         string          `db:"name" json:"name"`
	Email        string          `db:"email" json:"email"`
	Role         Role            `db:"role" json:"role"`
	PasswordHash string          `db:"password_hash" json:"-"`
	BalancePlax  decimal.Decimal `db:"balance_plax" json:"balance_plax"`
	BalanceBRL   decimal.Decimal `db:"balance_brl" json:"balance_brl"`
	LockedPlax   decimal.Decimal `db:"locked_plax" json:"locked_plax"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// BalanceDelta is a signed change applied to the three balance columns of a profile.
type BalanceDelta struct {
	Plax   decimal.Decimal
	BRL    decimal.Decimal
	Locked decimal.Decimal
}

func (d BalanceDelta) IsZero() bool {
	return d.Plax.IsZero() && d.BRL.IsZero() && d.Locked.IsZero()
}

func (d BalanceDelta) Add(asset Asset, amount decimal.Decimal) BalanceDelta {
	switch asset {
	case AssetPlax:
		d.Plax = d.Plax.Add(amount)
	case AssetBRL:
		d.BRL = d.BRL.Add(amount)
	case AssetLockedPlax:
		d.Locked = d.Locked.Add(amount)
	}
	return d
}

type Batch struct {
	Seq               int64           `db:"seq" json:"-"`
	ID                string          `db:"id" json:"id"`
	ParentBatchID     *string         `db:"parent_batch_id" json:"parent_batch_id,omitempty"`
	CollectorID       string          `db:"collector_id" json:"collector_id"`
	RecyclerID        string          `db:"recycler_id" json:"recycler_id"`
	WeightKg          decimal.Decimal `db:"weight_kg" json:"weight_kg"`
	PlasticType       PlasticType     `db:"plastic_type" json:"plastic_type"`
	PlaxGenerated     decimal.Decimal `db:"plax_generated" json:"plax_generated"`
	CollectedAt       time.Time       `db:"collected_at" json:"date"`
	Status            BatchStatus     `db:"status" json:"status"`
	NFeID             *string         `db:"nfe_id" json:"nfe_id,omitempty"`
	CertifiedByUserID *string         `db:"certified_by_user_id" json:"certified_by_user_id,omitempty"`
	CertificationDate *time.Time      `db:"certification_date" json:"certification_date,omitempty"`
}

type Transaction struct {
	Seq             int64               `db:"seq" json:"-"`
	ID              string              `db:"id" json:"id"`
	CreatedAt       time.Time           `db:"created_at" json:"date"`
	Type            TransactionType     `db:"type" json:"type"`
	AmountPlax      decimal.NullDecimal `db:"amount_plax" json:"amount_plax"`
	AmountBRL       decimal.NullDecimal `db:"amount_brl" json:"amount_brl"`
	Description     string              `db:"description" json:"description"`
	Status          TransactionStatus   `db:"status" json:"status"`
	FromUserID      *string             `db:"from_user_id" json:"from_user_id,omitempty"`
	ToUserID        *string             `db:"to_user_id" json:"to_user_id,omitempty"`
	Metadata        string              `db:"metadata" json:"metadata"`
	ClientRequestID *string             `db:"client_request_id" json:"-"`
}

// BalanceMovement is one signed change to one asset of one profile, tied to the
// transaction record that caused it.
type BalanceMovement struct {
	ID            string          `db:"id" json:"id"`
	TransactionID string          `db:"transaction_id" json:"transaction_id"`
	ProfileID     string          `db:"profile_id" json:"profile_id"`
	Asset         Asset           `db:"asset" json:"asset"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Description   string          `db:"description" json:"description"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

type AuditLog struct {
	ID          string    `db:"id" json:"id"`
	ActorUserID *string   `db:"actor_user_id" json:"actor_user_id,omitempty"`
	Action      string    `db:"action" json:"action"`
	EntityType  string    `db:"entity_type" json:"entity_type"`
	EntityID    string    `db:"entity_id" json:"entity_id"`
	Data        string    `db:"data" json:"data"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type Institution struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Cause          string `json:"cause"`
	SelfInvestment bool   `json:"self_investment"`
}
