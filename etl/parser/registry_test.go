package parser

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRegistry(t *testing.T) {
	input := strings.Join([]string{
		"Registro_ANS;CNPJ;Razao_Social;Modalidade;Logradouro;UF",
		"000123;12.345.678/0001-95;UNIMED TESTE;Cooperativa Medica;RUA A;SP",
		"456;98765432000110;AMIL EXEMPLO;Medicina de Grupo;RUA B;rj",
		";sem-cnpj;QUEBRADA;;;XX",
		"",
	}, "\n")

	result, err := ParseRegistry(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, result.Operadoras, 2)
	assert.Equal(t, 1, result.Skipped)

	first := result.Operadoras[0]
	assert.Equal(t, "12345678000195", first.CNPJ)
	assert.Equal(t, "UNIMED TESTE", first.RazaoSocial)
	// leading zeros stripped so lookups match however the source writes it
	assert.Equal(t, "123", first.RegistroANS)
	assert.Equal(t, "Cooperativa Medica", first.Modalidade)
	assert.Equal(t, "SP", first.UF)

	second := result.Operadoras[1]
	assert.Equal(t, "98765432000110", second.CNPJ)
	assert.Equal(t, "456", second.RegistroANS)
	assert.Equal(t, "RJ", second.UF)
}

func TestParseRegistryAlternateRegistroColumn(t *testing.T) {
	input := "REGISTRO_OPERADORA;CNPJ;RAZAO_SOCIAL;MODALIDADE;UF\n" +
		"789;12345678000195;OP;Filantropia;MG\n"

	result, err := ParseRegistry(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, result.Operadoras, 1)
	assert.Equal(t, "789", result.Operadoras[0].RegistroANS)
}

func TestParseRegistryMissingCNPJColumn(t *testing.T) {
	_, err := ParseRegistry(strings.NewReader("REGISTRO_ANS;RAZAO_SOCIAL\n1;OP\n"))
	assert.Error(t, err)
}

func TestParseRegistryEmptyFile(t *testing.T) {
	_, err := ParseRegistry(strings.NewReader(""))
	assert.Error(t, err)
}

func TestTruncateIsRuneSafe(t *testing.T) {
	s := strings.Repeat("ç", 300)
	got := Truncate(s, 255)
	assert.Equal(t, 255, utf8.RuneCountInString(got))
	assert.True(t, utf8.ValidString(got))

	assert.Equal(t, "curto", Truncate("curto", 255))
}

func TestNormalizeUF(t *testing.T) {
	assert.Equal(t, "SP", normalizeUF(" sp "))
	assert.Equal(t, "", normalizeUF(""))
	assert.Equal(t, "", normalizeUF("SAO PAULO"))
}
