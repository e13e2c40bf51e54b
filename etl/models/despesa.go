package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Quality statuses recorded on each expense row. Rows that fail validation
// are kept with a non-ok status instead of being discarded, so every source
// line stays auditable after ingestion.
const (
	StatusOK              = "ok"
	StatusInvalidOperator = "invalid-operator"
	StatusMalformedValue  = "malformed-value"
)

// Despesa represents one disclosed expense line for an operator in a
// given fiscal year and quarter.
type Despesa struct {
	ID              int64
	CNPJ            string
	RawCNPJ         string // identifier exactly as it appeared on the source line; not persisted
	RazaoSocial     string // operator name as it appeared on the source line
	Ano             int
	Trimestre       int
	Descricao       string
	Valor           decimal.Decimal
	StatusQualidade string
}

// NaturalKey identifies a despesa independently of any generated row id.
// Reingesting the same source file maps onto the same keys, which is what
// makes the load upserts idempotent.
type NaturalKey struct {
	CNPJ      string
	Ano       int
	Trimestre int
	Descricao string
}

// descricaoKeyLen matches the descricao(191) prefix of uq_despesas_natural:
// the in-memory key must collapse exactly the rows the upsert would.
const descricaoKeyLen = 191

func (d *Despesa) Key() NaturalKey {
	return NaturalKey{CNPJ: d.CNPJ, Ano: d.Ano, Trimestre: d.Trimestre, Descricao: descricaoKey(d.Descricao)}
}

func descricaoKey(s string) string {
	r := []rune(s)
	if len(r) <= descricaoKeyLen {
		return s
	}
	return string(r[:descricaoKeyLen])
}

func (k NaturalKey) String() string {
	return fmt.Sprintf("%s/%dT%d/%s", k.CNPJ, k.Trimestre, k.Ano, k.Descricao)
}

// Periodo is one (ano, trimestre) reporting bucket.
type Periodo struct {
	Ano       int
	Trimestre int
}

func (p Periodo) String() string {
	return fmt.Sprintf("%dT%d", p.Trimestre, p.Ano)
}
