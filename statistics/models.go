package statistics

import (
	"context"

	"github.com/shopspring/decimal"
)

// ExpenseRow is one clean expense record joined with its operator, the
// flat input every aggregation works from. UF is empty when the operator
// has no registered region.
type ExpenseRow struct {
	CNPJ        string
	RazaoSocial string
	UF          string
	Ano         int
	Trimestre   int
	Valor       decimal.Decimal
}

// DataService abstracts the read side of the store. The engine depends
// only on this interface, never on a concrete storage client.
type DataService interface {
	// ExpenseRows returns every ok-status expense row joined with its
	// operator.
	ExpenseRows(ctx context.Context) ([]ExpenseRow, error)
}

// TopOperadora is one ranking entry.
type TopOperadora struct {
	CNPJ        string          `json:"cnpj"`
	RazaoSocial string          `json:"razao_social"`
	Total       decimal.Decimal `json:"total"`
}

// DistribuicaoUF is the per-region aggregate.
type DistribuicaoUF struct {
	UF         string          `json:"uf"`
	Operadoras int             `json:"operadoras"`
	Total      decimal.Decimal `json:"total"`
	Media      decimal.Decimal `json:"media"`
	Minimo     decimal.Decimal `json:"minimo"`
	Maximo     decimal.Decimal `json:"maximo"`
	Percentual float64         `json:"percentual"`
}

// OperadoraAcimaMedia is one entry of the multi-period above-average view.
type OperadoraAcimaMedia struct {
	CNPJ            string          `json:"cnpj"`
	RazaoSocial     string          `json:"razao_social"`
	TotalTrimestres int             `json:"total_trimestres"`
	TrimestresAcima int             `json:"trimestres_acima_media"`
	TotalDespesas   decimal.Decimal `json:"total_despesas"`
}

// Resumo is the general statistics block served by the summary endpoint.
type Resumo struct {
	TotalDespesas       decimal.Decimal `json:"total_despesas"`
	MediaDespesas       decimal.Decimal `json:"media_despesas"`
	QuantidadeRegistros int             `json:"quantidade_registros"`
	TopOperadoras       []TopOperadora  `json:"top_operadoras"`
}
