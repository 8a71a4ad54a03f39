package models

import "strings"

type Role string

const (
	RoleGuest       Role = "GUEST"
	RoleCollector   Role = "COLLECTOR"
	RoleRecycler    Role = "RECYCLER"
	RoleTransformer Role = "TRANSFORMER"
	RoleESGBuyer    Role = "ESG_BUYER"
	RoleAdmin       Role = "ADMIN"
)

var roles = []Role{RoleGuest, RoleCollector, RoleRecycler, RoleTransformer, RoleESGBuyer, RoleAdmin}

func (r Role) IsValid() bool {
	for _, known := range roles {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRole accepts the canonical names case-insensitively.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	return role, role.IsValid()
}

type PlasticType string

const (
	PlasticPET  PlasticType = "PET"
	PlasticPEAD PlasticType = "PEAD"
	PlasticPVC  PlasticType = "PVC"
	PlasticPEBD PlasticType = "PEBD"
	PlasticPP   PlasticType = "PP"
	PlasticPS   PlasticType = "PS"
)

func (p PlasticType) IsValid() bool {
	switch p {
	case PlasticPET, PlasticPEAD, PlasticPVC, PlasticPEBD, PlasticPP, PlasticPS:
		return true
	}
	return false
}

type BatchStatus string

const (
	BatchReceived      BatchStatus = "RECEIVED"
	BatchProcessedNFe  BatchStatus = "PROCESSED_NFE"
	BatchCertifiedSold BatchStatus = "CERTIFIED_SOLD"
)

func (s BatchStatus) IsValid() bool {
	return s.rank() > 0
}

// CanTransitionTo reports whether next is the single forward step after s.
func (s BatchStatus) CanTransitionTo(next BatchStatus) bool {
	return s.rank() > 0 && next.rank() == s.rank()+1
}

func (s BatchStatus) rank() int {
	switch s {
	case BatchReceived:
		return 1
	case BatchProcessedNFe:
		return 2
	case BatchCertifiedSold:
		return 3
	}
	return 0
}

type TransactionType string

const (
	TxCollection  TransactionType = "COLLECTION"
	TxNFeRelease  TransactionType = "NFE_RELEASE"
	TxESGPurchase TransactionType = "ESG_PURCHASE"
	TxWithdrawal  TransactionType = "WITHDRAWAL"
	TxTransfer    TransactionType = "TRANSFER"
	TxDeposit     TransactionType = "DEPOSIT"
)

func (t TransactionType) IsValid() bool {
	switch t {
	case TxCollection, TxNFeRelease, TxESGPurchase, TxWithdrawal, TxTransfer, TxDeposit:
		return true
	}
	return false
}

type TransactionStatus string

const (
	TxPending   TransactionStatus = "PENDING"
	TxCompleted TransactionStatus = "COMPLETED"
	TxLocked    TransactionStatus = "LOCKED"
)

type Asset string

const (
	AssetPlax       Asset = "PLAX"
	AssetBRL        Asset = "BRL"
	AssetLockedPlax Asset = "LOCKED_PLAX"
)
