package parser

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rmacedo-dev/ans-despesas/etl/models"
)

// Source file contract: semicolon-delimited, one record per line, header
// row present, columns CNPJ;RAZAO_SOCIAL;ANO;TRIMESTRE;DESCRICAO;VALOR,
// monetary values in Brazilian format (1.234,56).
const (
	delimiter   = ";"
	columnCount = 6
)

// Reader yields one typed Despesa per source line. No line is ever
// dropped: rows failing validation come back tagged with a non-ok quality
// status and their raw content preserved.
type Reader struct {
	scanner   *bufio.Scanner
	periodo   models.Periodo
	line      int
	skipFirst bool
}

// NewReader wraps one decompressed source file. The period identifies the
// file and is substituted when a line carries an unusable year or quarter.
func NewReader(r io.Reader, periodo models.Periodo) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Reader{scanner: sc, periodo: periodo, skipFirst: true}
}

// Next returns the next record, or io.EOF when the file is exhausted.
// A non-EOF error only occurs on an underlying read failure; malformed
// lines are returned as records with a quality status, never as errors.
func (r *Reader) Next() (*models.Despesa, error) {
	for r.scanner.Scan() {
		r.line++
		line := strings.TrimRight(r.scanner.Text(), "\r")
		if r.skipFirst {
			r.skipFirst = false
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		return r.parseLine(line), nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading source line %d: %w", r.line, err)
	}
	return nil, io.EOF
}

func (r *Reader) parseLine(line string) *models.Despesa {
	fields := strings.Split(line, delimiter)
	// pad short lines so positional access below stays safe; the missing
	// fields fail their own validations and tag the row accordingly
	for len(fields) < columnCount {
		fields = append(fields, "")
	}

	// free-text fields are bounded here so an oversize source value can
	// never fail a whole load batch downstream
	d := &models.Despesa{
		RazaoSocial:     Truncate(strings.TrimSpace(fields[1]), 255),
		Descricao:       Truncate(strings.TrimSpace(fields[4]), 255),
		StatusQualidade: models.StatusOK,
	}

	rawCNPJ := strings.TrimSpace(fields[0])
	d.RawCNPJ = rawCNPJ
	digits := Digits(rawCNPJ)
	if ValidCNPJ(digits) {
		d.CNPJ = digits
	} else {
		// identifier is not 14 numeric characters; the consolidator may
		// still resolve it against the registry (Registro ANS lookup)
		d.CNPJ = CleanCNPJ(rawCNPJ)
		d.StatusQualidade = models.StatusInvalidOperator
	}

	d.Ano, d.Trimestre = r.parsePeriod(fields[2], fields[3])

	rawValor := strings.TrimSpace(fields[5])
	valor, err := ParseValor(rawValor)
	if err != nil {
		// audit rule: zero the value, keep the raw text on the row
		d.Valor = decimal.Zero
		d.Descricao = Truncate(fmt.Sprintf("%s [valor original: %q]", d.Descricao, rawValor), 255)
		if d.StatusQualidade == models.StatusOK {
			d.StatusQualidade = models.StatusMalformedValue
		}
	} else {
		d.Valor = valor
	}

	return d
}

// parsePeriod validates the line's own year/quarter and falls back to the
// file's period when they are unusable. The file-level period is part of
// the source contract, so the fallback keeps the row in its right bucket.
func (r *Reader) parsePeriod(rawAno, rawTrimestre string) (int, int) {
	ano, errA := strconv.Atoi(strings.TrimSpace(rawAno))
	trimestre, errT := strconv.Atoi(strings.TrimSpace(rawTrimestre))
	if errA != nil || ano < 1000 || ano > 9999 {
		ano = r.periodo.Ano
	}
	if errT != nil || trimestre < 1 || trimestre > 4 {
		trimestre = r.periodo.Trimestre
	}
	return ano, trimestre
}

// Digits strips everything that is not a digit.
func Digits(raw string) string {
	var b strings.Builder
	for _, c := range raw {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	return b.String()
}

// CleanCNPJ strips non-digits and zero-pads to 14 characters, matching
// how the registry formats identifiers.
func CleanCNPJ(raw string) string {
	digits := Digits(raw)
	if digits == "" {
		return ""
	}
	if len(digits) < 14 {
		return strings.Repeat("0", 14-len(digits)) + digits
	}
	return digits
}

// ValidCNPJ reports whether the identifier is exactly 14 numeric
// characters.
func ValidCNPJ(cnpj string) bool {
	if len(cnpj) != 14 {
		return false
	}
	for _, c := range cnpj {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// ParseValor converts a Brazilian-formatted monetary string to a decimal.
func ParseValor(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, fmt.Errorf("empty value")
	}
	normalized := strings.ReplaceAll(raw, ".", "")
	normalized = strings.ReplaceAll(normalized, ",", ".")
	valor, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing value %q: %w", raw, err)
	}
	return valor, nil
}
