package parser

import (
	"fmt"
	"io"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmacedo-dev/ans-despesas/etl/models"
)

const header = "CNPJ;RAZAO_SOCIAL;ANO;TRIMESTRE;DESCRICAO;VALOR\n"

func readAll(t *testing.T, input string) []*models.Despesa {
	t.Helper()
	r := NewReader(strings.NewReader(input), models.Periodo{Ano: 2024, Trimestre: 1})
	var out []*models.Despesa
	for {
		d, err := r.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, d)
	}
}

func TestReaderParsesValidLine(t *testing.T) {
	input := header + "12.345.678/0001-95;UNIMED TESTE;2024;1;EVENTOS/SINISTROS;1.234,56\n"
	rows := readAll(t, input)
	require.Len(t, rows, 1)

	d := rows[0]
	assert.Equal(t, "12345678000195", d.CNPJ)
	assert.Equal(t, "UNIMED TESTE", d.RazaoSocial)
	assert.Equal(t, 2024, d.Ano)
	assert.Equal(t, 1, d.Trimestre)
	assert.Equal(t, "EVENTOS/SINISTROS", d.Descricao)
	assert.True(t, d.Valor.Equal(decimal.RequireFromString("1234.56")))
	assert.Equal(t, models.StatusOK, d.StatusQualidade)
}

func TestReaderSkipsHeaderAndBlankLines(t *testing.T) {
	input := header + "\n12345678000195;OP;2024;1;DESC;10,00\n\n"
	rows := readAll(t, input)
	require.Len(t, rows, 1)
	assert.Equal(t, "OP", rows[0].RazaoSocial)
}

func TestReaderFlagsInvalidIdentifier(t *testing.T) {
	// identifiers that are not 14 digits are retained, flagged, never dropped
	input := header +
		"123456;OPERADORA A;2024;1;DESC;100,00\n" +
		"ABC;OPERADORA B;2024;1;DESC;200,00\n"
	rows := readAll(t, input)
	require.Len(t, rows, 2)

	assert.Equal(t, models.StatusInvalidOperator, rows[0].StatusQualidade)
	assert.Equal(t, "00000000123456", rows[0].CNPJ)
	assert.Equal(t, "123456", rows[0].RawCNPJ)
	// value still parses on a flagged row
	assert.True(t, rows[0].Valor.Equal(decimal.RequireFromString("100")))

	assert.Equal(t, models.StatusInvalidOperator, rows[1].StatusQualidade)
	assert.Equal(t, "", rows[1].CNPJ)
}

func TestReaderFlagsMalformedValue(t *testing.T) {
	input := header + "12345678000195;OP;2024;1;DESC;n/a\n"
	rows := readAll(t, input)
	require.Len(t, rows, 1)

	d := rows[0]
	assert.Equal(t, models.StatusMalformedValue, d.StatusQualidade)
	assert.True(t, d.Valor.IsZero())
	// raw text preserved for audit
	assert.Contains(t, d.Descricao, `[valor original: "n/a"]`)
}

func TestReaderInvalidOperatorTakesPrecedenceOverValue(t *testing.T) {
	input := header + "123;OP;2024;1;DESC;n/a\n"
	rows := readAll(t, input)
	require.Len(t, rows, 1)
	assert.Equal(t, models.StatusInvalidOperator, rows[0].StatusQualidade)
	assert.True(t, rows[0].Valor.IsZero())
}

func TestReaderPeriodFallback(t *testing.T) {
	input := header +
		"12345678000195;OP;;;DESC;10,00\n" +
		"12345678000195;OP;2023;7;DESC;10,00\n"
	rows := readAll(t, input)
	require.Len(t, rows, 2)

	// missing period falls back to the file's period
	assert.Equal(t, 2024, rows[0].Ano)
	assert.Equal(t, 1, rows[0].Trimestre)

	// out-of-range quarter falls back, valid year kept
	assert.Equal(t, 2023, rows[1].Ano)
	assert.Equal(t, 1, rows[1].Trimestre)
}

func TestReaderBoundsOversizeFields(t *testing.T) {
	// the despesas columns are VARCHAR(255); unbounded source text would
	// fail the whole load batch in strict mode, dropping retained rows
	longName := strings.Repeat("N", 300)
	longDesc := strings.Repeat("D", 300)
	input := header + fmt.Sprintf("12345678000195;%s;2024;1;%s;10,00\n", longName, longDesc)
	rows := readAll(t, input)
	require.Len(t, rows, 1)

	assert.Equal(t, 255, utf8.RuneCountInString(rows[0].RazaoSocial))
	assert.Equal(t, 255, utf8.RuneCountInString(rows[0].Descricao))
	assert.Equal(t, models.StatusOK, rows[0].StatusQualidade)
}

func TestReaderBoundsDescricaoAfterValueSuffix(t *testing.T) {
	// a long description plus the appended raw value must still fit
	longDesc := strings.Repeat("D", 250)
	input := header + fmt.Sprintf("12345678000195;OP;2024;1;%s;n/a\n", longDesc)
	rows := readAll(t, input)
	require.Len(t, rows, 1)

	d := rows[0]
	assert.Equal(t, models.StatusMalformedValue, d.StatusQualidade)
	assert.Equal(t, 255, utf8.RuneCountInString(d.Descricao))
}

func TestReaderPadsShortLines(t *testing.T) {
	input := header + "12345678000195;OP;2024;1\n"
	rows := readAll(t, input)
	require.Len(t, rows, 1)
	assert.Equal(t, models.StatusMalformedValue, rows[0].StatusQualidade)
	assert.True(t, rows[0].Valor.IsZero())
}

func TestCleanCNPJ(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"formatted", "12.345.678/0001-95", "12345678000195"},
		{"short digits padded", "12345", "00000000012345"},
		{"no digits", "N/A", ""},
		{"already clean", "12345678000195", "12345678000195"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanCNPJ(tt.raw))
		})
	}
}

func TestValidCNPJ(t *testing.T) {
	assert.True(t, ValidCNPJ("12345678000195"))
	assert.False(t, ValidCNPJ("1234567800019"))
	assert.False(t, ValidCNPJ("123456780001955"))
	assert.False(t, ValidCNPJ("1234567800019X"))
	assert.False(t, ValidCNPJ(""))
}

func TestParseValor(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "1.234,56", want: "1234.56"},
		{raw: "0,00", want: "0"},
		{raw: "1234567,89", want: "1234567.89"},
		{raw: "-500,10", want: "-500.1"},
		{raw: "", wantErr: true},
		{raw: "abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseValor(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}
