package memstore

import (
	"context"
	"encoding/json"

	"plaxrec/internal/models"
	"plaxrec/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type seedProfile struct {
	id, name, email string
	role            models.Role
	plax, brl, lock string
}

var demoProfiles = []seedProfile{
	{"u1", "João Coletor", "joao@plaxrec.com", models.RoleCollector, "150", "50", "0"},
	{"u2", "EcoRecicla Ltda", "contato@ecorecicla.com", models.RoleRecycler, "5000", "12000", "5000"},
	{"u3", "Indústria Plástica BR", "compras@industria.com", models.RoleTransformer, "2000", "50000", "0"},
	{"u4", "GreenCorp ESG", "esg@greencorp.com", models.RoleESGBuyer, "0", "500000", "0"},
	{"u5", "PlaxRec Admin", "admin@plaxrec.com", models.RoleAdmin, "0", "4500", "0"},
}

type seedBatch struct {
	id     string
	weight string
	kind   models.PlasticType
	status models.BatchStatus
	nfe    string
}

var demoBatches = []seedBatch{
	{"b1", "100", models.PlasticPET, models.BatchProcessedNFe, "35240100001"},
	{"b2", "50", models.PlasticPEAD, models.BatchProcessedNFe, "35240100002"},
	{"b3", "500", models.PlasticPP, models.BatchReceived, ""},
}

// SeedDemo loads the demo chain: one profile per role, two batches on the
// market and one batch waiting for its NFe. Opening balances are recorded as
// DEPOSIT transactions with matching movements so the journal reconciles.
// Every demo profile gets passwordHash.
func SeedDemo(ctx context.Context, s *Store, passwordHash string, kgToPlax decimal.Decimal) error {
	profiles := s.Profiles()
	batches := s.Batches()
	transactions := s.Transactions()
	movements := s.Movements()
	return s.WithTx(ctx, func(tx store.Tx) error {
		for _, sp := range demoProfiles {
			profile := models.Profile{
				ID:           sp.id,
				Name:         sp.name,
				Email:        sp.email,
				Role:         sp.role,
				PasswordHash: passwordHash,
				BalancePlax:  decimal.RequireFromString(sp.plax),
				BalanceBRL:   decimal.RequireFromString(sp.brl),
				LockedPlax:   decimal.RequireFromString(sp.lock),
			}
			if err := profiles.Create(ctx, tx, profile); err != nil {
				return err
			}
			if err := openingDeposit(ctx, tx, transactions, movements, profile); err != nil {
				return err
			}
		}
		now := s.now()
		for _, sb := range demoBatches {
			weight := decimal.RequireFromString(sb.weight)
			batch := models.Batch{
				ID:            sb.id,
				CollectorID:   "u1",
				RecyclerID:    "u2",
				WeightKg:      weight,
				PlasticType:   sb.kind,
				PlaxGenerated: weight.Mul(kgToPlax),
				CollectedAt:   now,
				Status:        sb.status,
			}
			if sb.nfe != "" {
				nfe := sb.nfe
				batch.NFeID = &nfe
			}
			if err := batches.Insert(ctx, tx, batch); err != nil {
				return err
			}
		}
		return nil
	})
}

func openingDeposit(ctx context.Context, tx store.Tx, transactions *Transactions, movements *Movements, profile models.Profile) error {
	opening := []struct {
		asset  models.Asset
		amount decimal.Decimal
	}{
		{models.AssetPlax, profile.BalancePlax},
		{models.AssetBRL, profile.BalanceBRL},
		{models.AssetLockedPlax, profile.LockedPlax},
	}
	transactionID := uuid.NewString()
	var rows []models.BalanceMovement
	for _, o := range opening {
		if o.amount.IsZero() {
			continue
		}
		rows = append(rows, models.BalanceMovement{
			ID:            uuid.NewString(),
			TransactionID: transactionID,
			ProfileID:     profile.ID,
			Asset:         o.asset,
			Amount:        o.amount,
			Description:   "Opening balance",
		})
	}
	if len(rows) == 0 {
		return nil
	}
	metadata, _ := json.Marshal(map[string]string{"opening_balance": "true"})
	toUserID := profile.ID
	record := models.Transaction{
		ID:          transactionID,
		Type:        models.TxDeposit,
		AmountPlax:  decimal.NewNullDecimal(profile.BalancePlax),
		AmountBRL:   decimal.NewNullDecimal(profile.BalanceBRL),
		Description: "Opening balance",
		Status:      models.TxCompleted,
		ToUserID:    &toUserID,
		Metadata:    string(metadata),
	}
	if err := transactions.Create(ctx, tx, record); err != nil {
		return err
	}
	return movements.Insert(ctx, tx, rows)
}
