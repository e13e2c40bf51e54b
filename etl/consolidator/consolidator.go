package consolidator

import (
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/atomic"

	"github.com/rmacedo-dev/ans-despesas/etl/models"
	"github.com/rmacedo-dev/ans-despesas/etl/parser"
	"github.com/rmacedo-dev/ans-despesas/etl/utils"
)

// UnknownOperatorCNPJ is the sentinel operator that owns expense rows
// whose identifier carried no digits at all. They cannot reference a real
// operator but must still be stored for audit.
const UnknownOperatorCNPJ = "00000000000000"

// Consolidator merges parsed records across periods, resolves operator
// identity against the registry snapshot, and deduplicates on the natural
// key. Add is safe for concurrent use by the per-file parse workers.
type Consolidator struct {
	mu       sync.Mutex
	registry *models.Registry
	snapshot []models.Operadora
	logger   *utils.ETLLogger

	despesas     map[models.NaturalKey]*models.Despesa
	placeholders map[string]models.Operadora

	countConflicts atomic.Int64
}

// OperatorPeriodSummary is the per-operator, per-period rollup of clean
// rows produced alongside consolidation.
type OperatorPeriodSummary struct {
	CNPJ    string
	Periodo models.Periodo
	Total   decimal.Decimal
	Rows    int
}

func NewConsolidator(snapshot []models.Operadora, logger *utils.ETLLogger) *Consolidator {
	return &Consolidator{
		registry:     models.NewRegistry(snapshot),
		snapshot:     snapshot,
		logger:       logger,
		despesas:     make(map[models.NaturalKey]*models.Despesa),
		placeholders: make(map[string]models.Operadora),
	}
}

// Add resolves one parsed record and folds it into the deduplicated set.
// Last-seen-wins on natural-key collisions; collisions that overwrite a
// different value are counted as key conflicts rather than silently
// absorbed, since they may hide genuinely distinct source rows.
func (c *Consolidator) Add(d *models.Despesa) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resolveIdentity(d)

	key := d.Key()
	if prev, exists := c.despesas[key]; exists {
		if !prev.Valor.Equal(d.Valor) {
			c.countConflicts.Inc()
			c.logger.Debug("Natural-key conflict on %s: %s overwritten by %s",
				key, prev.Valor, d.Valor)
		}
	}
	c.despesas[key] = d
}

// resolveIdentity checks the record's identifier against the registry.
// Well-formed CNPJs unknown to the registry flag the row invalid-operator
// and gain a placeholder operator so the row can still be stored under a
// valid foreign key. Rows already flagged by the parser keep their status
// but are canonicalised through the Registro ANS lookup when possible, so
// audit queries still land on the real operator.
func (c *Consolidator) resolveIdentity(d *models.Despesa) {
	switch d.StatusQualidade {
	case models.StatusInvalidOperator:
		if cnpj, ok := c.lookupRegistro(d); ok {
			d.CNPJ = cnpj
			return
		}
		if d.CNPJ == "" {
			d.CNPJ = UnknownOperatorCNPJ
		}
		c.ensurePlaceholder(d)
	default:
		if !c.registry.HasCNPJ(d.CNPJ) {
			d.StatusQualidade = models.StatusInvalidOperator
			c.ensurePlaceholder(d)
		}
	}
}

// lookupRegistro tries the identifier variants the archive has been seen
// to use for the ANS registration number.
func (c *Consolidator) lookupRegistro(d *models.Despesa) (string, bool) {
	digits := parser.Digits(d.RawCNPJ)
	candidates := []string{
		strings.TrimLeft(digits, "0"),
		digits,
		strings.TrimSpace(d.RawCNPJ),
	}
	for _, cand := range candidates {
		if cand == "" {
			continue
		}
		if cnpj, ok := c.registry.ResolveRegistro(cand); ok {
			return cnpj, true
		}
	}
	return "", false
}

func (c *Consolidator) ensurePlaceholder(d *models.Despesa) {
	if _, exists := c.placeholders[d.CNPJ]; exists {
		return
	}
	razao := parser.Truncate(d.RazaoSocial, 255)
	if razao == "" {
		razao = "OPERADORA NAO IDENTIFICADA"
	}
	// placeholder operators carry no UF or registro, so they never show
	// up in the geographic view and none of their rows are ok-status
	c.placeholders[d.CNPJ] = models.Operadora{CNPJ: d.CNPJ, RazaoSocial: razao}
}

// Operadoras returns the full set of operator upserts: the registry
// snapshot plus placeholders created for unresolved identifiers.
func (c *Consolidator) Operadoras() []models.Operadora {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.Operadora, 0, len(c.snapshot)+len(c.placeholders))
	out = append(out, c.snapshot...)
	for _, op := range c.placeholders {
		out = append(out, op)
	}
	return out
}

// Despesas returns the deduplicated expense set in a stable order.
func (c *Consolidator) Despesas() []*models.Despesa {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]models.NaturalKey, 0, len(c.despesas))
	for k := range c.despesas {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.CNPJ != b.CNPJ {
			return a.CNPJ < b.CNPJ
		}
		if a.Ano != b.Ano {
			return a.Ano < b.Ano
		}
		if a.Trimestre != b.Trimestre {
			return a.Trimestre < b.Trimestre
		}
		return a.Descricao < b.Descricao
	})

	out := make([]*models.Despesa, 0, len(keys))
	for _, k := range keys {
		out = append(out, c.despesas[k])
	}
	return out
}

// Summaries rolls clean rows up per operator and period.
func (c *Consolidator) Summaries() []OperatorPeriodSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	agg := make(map[string]*OperatorPeriodSummary)
	for _, d := range c.despesas {
		if d.StatusQualidade != models.StatusOK {
			continue
		}
		k := d.CNPJ + "/" + models.Periodo{Ano: d.Ano, Trimestre: d.Trimestre}.String()
		s, ok := agg[k]
		if !ok {
			s = &OperatorPeriodSummary{
				CNPJ:    d.CNPJ,
				Periodo: models.Periodo{Ano: d.Ano, Trimestre: d.Trimestre},
				Total:   decimal.Zero,
			}
			agg[k] = s
		}
		s.Total = s.Total.Add(d.Valor)
		s.Rows++
	}

	out := make([]OperatorPeriodSummary, 0, len(agg))
	for _, s := range agg {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CNPJ != out[j].CNPJ {
			return out[i].CNPJ < out[j].CNPJ
		}
		if out[i].Periodo.Ano != out[j].Periodo.Ano {
			return out[i].Periodo.Ano < out[j].Periodo.Ano
		}
		return out[i].Periodo.Trimestre < out[j].Periodo.Trimestre
	})
	return out
}

// Counts reports clean and flagged rows as stored after deduplication,
// plus the natural-key conflicts observed so far. Counting the map rather
// than the Add calls keeps the summary in step with the table.
func (c *Consolidator) Counts() (ok, flagged, conflicts int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.despesas {
		if d.StatusQualidade == models.StatusOK {
			ok++
		} else {
			flagged++
		}
	}
	return ok, flagged, int(c.countConflicts.Load())
}
