package store

import "plaxrec/internal/models"

// SelfInvestmentID is the institution whose donations flow entirely to the
// platform operator.
const SelfInvestmentID = "i4"

var institutions = []models.Institution{
	{ID: "i1", Name: "Associação de Catadores do Brasil", Cause: "Apoio social aos coletores"},
	{ID: "i2", Name: "Instituto Limpa Oceanos", Cause: "Limpeza costeira"},
	{ID: "i3", Name: "Fundo Amazônia Sustentável", Cause: "Reflorestamento"},
	{ID: SelfInvestmentID, Name: "PlaxRec Acelera", Cause: "Reinvestimento na Cadeia", SelfInvestment: true},
}

// InstitutionCatalog serves the static list of donation targets.
type InstitutionCatalog struct{}

func NewInstitutionCatalog() InstitutionCatalog {
	return InstitutionCatalog{}
}

func (InstitutionCatalog) List() []models.Institution {
	out := make([]models.Institution, len(institutions))
	copy(out, institutions)
	return out
}

func (InstitutionCatalog) Get(id string) (models.Institution, bool) {
	for _, inst := range institutions {
		if inst.ID == id {
			return inst, true
		}
	}
	return models.Institution{}, false
}
