package consolidator

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmacedo-dev/ans-despesas/etl/models"
	"github.com/rmacedo-dev/ans-despesas/etl/utils"
)

func testSnapshot() []models.Operadora {
	return []models.Operadora{
		{CNPJ: "11111111000191", RazaoSocial: "OPERADORA UM", RegistroANS: "123", UF: "SP"},
		{CNPJ: "22222222000192", RazaoSocial: "OPERADORA DOIS", RegistroANS: "456", UF: "RJ"},
	}
}

func newTestConsolidator() *Consolidator {
	return NewConsolidator(testSnapshot(), utils.NewETLLogger(false))
}

func despesa(cnpj, descricao, valor string) *models.Despesa {
	return &models.Despesa{
		CNPJ:            cnpj,
		RawCNPJ:         cnpj,
		RazaoSocial:     "QUALQUER",
		Ano:             2024,
		Trimestre:       1,
		Descricao:       descricao,
		Valor:           decimal.RequireFromString(valor),
		StatusQualidade: models.StatusOK,
	}
}

func TestAddKnownOperator(t *testing.T) {
	c := newTestConsolidator()
	c.Add(despesa("11111111000191", "EVENTOS", "100.00"))

	rows := c.Despesas()
	require.Len(t, rows, 1)
	assert.Equal(t, models.StatusOK, rows[0].StatusQualidade)

	ok, flagged, conflicts := c.Counts()
	assert.Equal(t, 1, ok)
	assert.Equal(t, 0, flagged)
	assert.Equal(t, 0, conflicts)
}

func TestAddUnknownCNPJGetsFlaggedAndPlaceholder(t *testing.T) {
	c := newTestConsolidator()
	c.Add(despesa("99999999000199", "EVENTOS", "100.00"))

	rows := c.Despesas()
	require.Len(t, rows, 1)
	assert.Equal(t, models.StatusInvalidOperator, rows[0].StatusQualidade)

	ops := c.Operadoras()
	require.Len(t, ops, 3)
	var placeholder *models.Operadora
	for i := range ops {
		if ops[i].CNPJ == "99999999000199" {
			placeholder = &ops[i]
		}
	}
	require.NotNil(t, placeholder, "placeholder operator must be created")
	// placeholders have no UF so they never enter the geographic view
	assert.Equal(t, "", placeholder.UF)
	assert.Equal(t, "QUALQUER", placeholder.RazaoSocial)
}

func TestRegistroLookupCanonicalisesCNPJ(t *testing.T) {
	c := newTestConsolidator()
	d := despesa("00000000000123", "EVENTOS", "50.00")
	d.RawCNPJ = "000123"
	d.StatusQualidade = models.StatusInvalidOperator
	c.Add(d)

	rows := c.Despesas()
	require.Len(t, rows, 1)
	// stored under the registry operator's CNPJ, status stays flagged
	assert.Equal(t, "11111111000191", rows[0].CNPJ)
	assert.Equal(t, models.StatusInvalidOperator, rows[0].StatusQualidade)

	// no placeholder needed, the real operator owns the row
	assert.Len(t, c.Operadoras(), 2)
}

func TestDigitlessIdentifierGetsSentinel(t *testing.T) {
	c := newTestConsolidator()
	d := despesa("11111111000191", "EVENTOS", "10.00")
	d.CNPJ = ""
	d.RawCNPJ = "N/A"
	d.RazaoSocial = ""
	d.StatusQualidade = models.StatusInvalidOperator
	c.Add(d)

	rows := c.Despesas()
	require.Len(t, rows, 1)
	assert.Equal(t, UnknownOperatorCNPJ, rows[0].CNPJ)

	ops := c.Operadoras()
	require.Len(t, ops, 3)
	for _, op := range ops {
		if op.CNPJ == UnknownOperatorCNPJ {
			assert.Equal(t, "OPERADORA NAO IDENTIFICADA", op.RazaoSocial)
		}
	}
}

func TestDedupLastSeenWinsAndConflictCounting(t *testing.T) {
	c := newTestConsolidator()
	c.Add(despesa("11111111000191", "EVENTOS", "100.00"))
	c.Add(despesa("11111111000191", "EVENTOS", "100.00")) // same value, not a conflict
	c.Add(despesa("11111111000191", "EVENTOS", "250.00")) // differing value

	rows := c.Despesas()
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Valor.Equal(decimal.RequireFromString("250.00")))

	_, _, conflicts := c.Counts()
	assert.Equal(t, 1, conflicts)
}

func TestDespesasStableOrder(t *testing.T) {
	c := newTestConsolidator()
	c.Add(despesa("22222222000192", "B", "1.00"))
	c.Add(despesa("11111111000191", "B", "1.00"))
	c.Add(despesa("11111111000191", "A", "1.00"))

	rows := c.Despesas()
	require.Len(t, rows, 3)
	assert.Equal(t, "11111111000191", rows[0].CNPJ)
	assert.Equal(t, "A", rows[0].Descricao)
	assert.Equal(t, "B", rows[1].Descricao)
	assert.Equal(t, "22222222000192", rows[2].CNPJ)
}

func TestCountsReflectDeduplicatedRows(t *testing.T) {
	c := newTestConsolidator()
	c.Add(despesa("11111111000191", "EVENTOS", "100.00"))
	c.Add(despesa("11111111000191", "EVENTOS", "100.00"))
	c.Add(despesa("99999999000199", "OUTROS", "10.00"))
	c.Add(despesa("99999999000199", "OUTROS", "10.00"))

	// duplicates collapse before counting, so the summary matches the
	// rows actually handed to the loader
	ok, flagged, _ := c.Counts()
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, flagged)
	assert.Len(t, c.Despesas(), 2)
}

func TestDescriptionPrefixCollisionCountsConflict(t *testing.T) {
	// the store's unique key covers only the first 191 characters of the
	// description, so rows sharing that prefix collapse into one upsert;
	// the collision must surface as a key conflict, not pass silently
	prefix := strings.Repeat("A", 191)
	c := newTestConsolidator()
	c.Add(despesa("11111111000191", prefix+"-um", "100.00"))
	c.Add(despesa("11111111000191", prefix+"-dois", "200.00"))

	rows := c.Despesas()
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Valor.Equal(decimal.RequireFromString("200.00")))

	_, _, conflicts := c.Counts()
	assert.Equal(t, 1, conflicts)
}

func TestPlaceholderNameIsBounded(t *testing.T) {
	c := newTestConsolidator()
	d := despesa("99999999000199", "EVENTOS", "10.00")
	d.RazaoSocial = strings.Repeat("X", 300)
	c.Add(d)

	for _, op := range c.Operadoras() {
		if op.CNPJ == "99999999000199" {
			assert.Equal(t, 255, len(op.RazaoSocial))
		}
	}
}

func TestSummariesRollUpCleanRowsOnly(t *testing.T) {
	c := newTestConsolidator()
	c.Add(despesa("11111111000191", "A", "100.00"))
	c.Add(despesa("11111111000191", "B", "50.00"))
	flagged := despesa("99999999000199", "C", "999.00")
	c.Add(flagged)

	summaries := c.Summaries()
	require.Len(t, summaries, 1)
	assert.Equal(t, "11111111000191", summaries[0].CNPJ)
	assert.True(t, summaries[0].Total.Equal(decimal.RequireFromString("150.00")))
	assert.Equal(t, 2, summaries[0].Rows)
}
