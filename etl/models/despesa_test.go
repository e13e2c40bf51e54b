package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNaturalKeyUsesDescriptionPrefix(t *testing.T) {
	long := strings.Repeat("x", 191)
	a := Despesa{CNPJ: "11111111000191", Ano: 2024, Trimestre: 1, Descricao: long + "-a"}
	b := Despesa{CNPJ: "11111111000191", Ano: 2024, Trimestre: 1, Descricao: long + "-b"}

	// the despesas unique key indexes descricao(191); the in-memory key
	// must collapse exactly what the upsert would
	assert.Equal(t, a.Key(), b.Key())

	short := Despesa{CNPJ: "11111111000191", Ano: 2024, Trimestre: 1, Descricao: "EVENTOS"}
	assert.Equal(t, "EVENTOS", short.Key().Descricao)
}

func TestNaturalKeyDistinguishesShortDescriptions(t *testing.T) {
	a := Despesa{CNPJ: "11111111000191", Ano: 2024, Trimestre: 1, Descricao: "EVENTOS"}
	b := Despesa{CNPJ: "11111111000191", Ano: 2024, Trimestre: 1, Descricao: "OUTROS"}
	assert.NotEqual(t, a.Key(), b.Key())
}
