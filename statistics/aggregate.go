package statistics

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/rmacedo-dev/ans-despesas/etl/models"
)

// The aggregation functions in this file are pure: they take the flat
// ok-status row set and return the ordered views. The Engine wraps them
// with the DataService and the result cache.

// TopOperadoras ranks operators by total expense, descending. Exact ties
// are broken by CNPJ ascending so the ranking is stable across runs.
func TopOperadoras(rows []ExpenseRow, limit int) []TopOperadora {
	totals := make(map[string]*TopOperadora)
	for _, row := range rows {
		t, ok := totals[row.CNPJ]
		if !ok {
			t = &TopOperadora{CNPJ: row.CNPJ, RazaoSocial: row.RazaoSocial, Total: decimal.Zero}
			totals[row.CNPJ] = t
		}
		t.Total = t.Total.Add(row.Valor)
	}

	ranked := make([]TopOperadora, 0, len(totals))
	for _, t := range totals {
		ranked = append(ranked, *t)
	}
	sort.Slice(ranked, func(i, j int) bool {
		cmp := ranked[i].Total.Cmp(ranked[j].Total)
		if cmp != 0 {
			return cmp > 0
		}
		return ranked[i].CNPJ < ranked[j].CNPJ
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// CalcularDistribuicaoUF aggregates expense values per region. Operators
// without a registered UF are excluded entirely; their rows count toward
// no region.
func CalcularDistribuicaoUF(rows []ExpenseRow) []DistribuicaoUF {
	type ufAgg struct {
		operadoras map[string]struct{}
		total      decimal.Decimal
		minimo     decimal.Decimal
		maximo     decimal.Decimal
		registros  int
	}

	byUF := make(map[string]*ufAgg)
	grandTotal := decimal.Zero

	for _, row := range rows {
		if row.UF == "" {
			continue
		}
		agg, ok := byUF[row.UF]
		if !ok {
			agg = &ufAgg{
				operadoras: make(map[string]struct{}),
				total:      decimal.Zero,
				minimo:     row.Valor,
				maximo:     row.Valor,
			}
			byUF[row.UF] = agg
		}
		agg.operadoras[row.CNPJ] = struct{}{}
		agg.total = agg.total.Add(row.Valor)
		agg.registros++
		if row.Valor.LessThan(agg.minimo) {
			agg.minimo = row.Valor
		}
		if row.Valor.GreaterThan(agg.maximo) {
			agg.maximo = row.Valor
		}
		grandTotal = grandTotal.Add(row.Valor)
	}

	out := make([]DistribuicaoUF, 0, len(byUF))
	for uf, agg := range byUF {
		d := DistribuicaoUF{
			UF:         uf,
			Operadoras: len(agg.operadoras),
			Total:      agg.total,
			Media:      agg.total.Div(decimal.NewFromInt(int64(agg.registros))).Round(2),
			Minimo:     agg.minimo,
			Maximo:     agg.maximo,
		}
		if grandTotal.IsPositive() {
			pct, _ := agg.total.Mul(decimal.NewFromInt(100)).Div(grandTotal).Round(2).Float64()
			d.Percentual = pct
		}
		out = append(out, d)
	}

	sort.Slice(out, func(i, j int) bool {
		cmp := out[i].Total.Cmp(out[j].Total)
		if cmp != 0 {
			return cmp > 0
		}
		return out[i].UF < out[j].UF
	})
	return out
}

// OperadorasAcimaMedia finds operators whose quarterly spend sits above
// the market average in at least minTrimestres distinct (ano, trimestre)
// buckets. Two passes: first the per-bucket market average over operator
// totals, then the per-operator comparison and count. An operator present
// in a single bucket can never qualify when minTrimestres is 2 or more.
func OperadorasAcimaMedia(rows []ExpenseRow, minTrimestres, limit int) []OperadoraAcimaMedia {
	if minTrimestres < 1 {
		minTrimestres = 2
	}

	type operBucket struct {
		cnpj    string
		periodo models.Periodo
	}

	// pass 1: per-operator-per-bucket totals, then per-bucket average
	// across the operators present in that bucket
	bucketTotals := make(map[operBucket]decimal.Decimal)
	names := make(map[string]string)
	for _, row := range rows {
		key := operBucket{cnpj: row.CNPJ, periodo: models.Periodo{Ano: row.Ano, Trimestre: row.Trimestre}}
		bucketTotals[key] = bucketTotals[key].Add(row.Valor)
		names[row.CNPJ] = row.RazaoSocial
	}

	bucketSum := make(map[models.Periodo]decimal.Decimal)
	bucketCount := make(map[models.Periodo]int)
	for key, total := range bucketTotals {
		bucketSum[key.periodo] = bucketSum[key.periodo].Add(total)
		bucketCount[key.periodo]++
	}
	bucketAvg := make(map[models.Periodo]decimal.Decimal, len(bucketSum))
	for p, sum := range bucketSum {
		bucketAvg[p] = sum.Div(decimal.NewFromInt(int64(bucketCount[p])))
	}

	// pass 2: count per operator how many buckets sit above their average
	type operAgg struct {
		buckets int
		above   int
		total   decimal.Decimal
	}
	byOperadora := make(map[string]*operAgg)
	for key, total := range bucketTotals {
		agg, ok := byOperadora[key.cnpj]
		if !ok {
			agg = &operAgg{total: decimal.Zero}
			byOperadora[key.cnpj] = agg
		}
		agg.buckets++
		agg.total = agg.total.Add(total)
		if total.GreaterThan(bucketAvg[key.periodo]) {
			agg.above++
		}
	}

	out := make([]OperadoraAcimaMedia, 0)
	for cnpj, agg := range byOperadora {
		if agg.above < minTrimestres {
			continue
		}
		out = append(out, OperadoraAcimaMedia{
			CNPJ:            cnpj,
			RazaoSocial:     names[cnpj],
			TotalTrimestres: agg.buckets,
			TrimestresAcima: agg.above,
			TotalDespesas:   agg.total,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TrimestresAcima != out[j].TrimestresAcima {
			return out[i].TrimestresAcima > out[j].TrimestresAcima
		}
		cmp := out[i].TotalDespesas.Cmp(out[j].TotalDespesas)
		if cmp != 0 {
			return cmp > 0
		}
		return out[i].CNPJ < out[j].CNPJ
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// CalcularResumo builds the general statistics block: grand total, mean
// per record, record count, and the embedded top-N ranking.
func CalcularResumo(rows []ExpenseRow, topN int) Resumo {
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.Valor)
	}

	resumo := Resumo{
		TotalDespesas:       total,
		QuantidadeRegistros: len(rows),
		TopOperadoras:       TopOperadoras(rows, topN),
	}
	if len(rows) > 0 {
		resumo.MediaDespesas = total.Div(decimal.NewFromInt(int64(len(rows)))).Round(2)
	} else {
		resumo.MediaDespesas = decimal.Zero
	}
	return resumo
}
