package parser

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/rmacedo-dev/ans-despesas/etl/models"
)

// RegistryResult carries the parsed registry snapshot plus the count of
// rows that had to be skipped for lacking a usable primary identifier.
type RegistryResult struct {
	Operadoras []models.Operadora
	Skipped    int
}

// ParseRegistry reads the active-operator registry CSV. Column positions
// are taken from the header because the archive has renamed columns
// between snapshots (REGISTRO_ANS vs REGISTRO_OPERADORA).
func ParseRegistry(r io.Reader) (*RegistryResult, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("reading registry header: %w", err)
		}
		return nil, fmt.Errorf("registry file is empty")
	}

	cols := headerIndex(strings.TrimRight(sc.Text(), "\r"))
	cnpjIdx, ok := cols["CNPJ"]
	if !ok {
		return nil, fmt.Errorf("registry header has no CNPJ column")
	}
	registroIdx := firstIndex(cols, "REGISTRO_ANS", "REGISTRO_OPERADORA")
	razaoIdx := firstIndex(cols, "RAZAO_SOCIAL")
	modalidadeIdx := firstIndex(cols, "MODALIDADE")
	ufIdx := firstIndex(cols, "UF")

	result := &RegistryResult{}
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, delimiter)

		cnpj := CleanCNPJ(field(fields, cnpjIdx))
		if !ValidCNPJ(cnpj) {
			// an operator row without a usable primary key cannot be
			// stored; the skip is counted and reported in the summary
			result.Skipped++
			continue
		}

		op := models.Operadora{
			CNPJ:        cnpj,
			RazaoSocial: Truncate(field(fields, razaoIdx), 255),
			RegistroANS: Truncate(strings.TrimLeft(Digits(field(fields, registroIdx)), "0"), 10),
			Modalidade:  Truncate(field(fields, modalidadeIdx), 50),
			UF:          normalizeUF(field(fields, ufIdx)),
		}
		result.Operadoras = append(result.Operadoras, op)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading registry file: %w", err)
	}
	return result, nil
}

func headerIndex(header string) map[string]int {
	cols := make(map[string]int)
	for i, name := range strings.Split(header, delimiter) {
		cols[strings.ToUpper(strings.TrimSpace(name))] = i
	}
	return cols
}

func firstIndex(cols map[string]int, names ...string) int {
	for _, name := range names {
		if i, ok := cols[name]; ok {
			return i
		}
	}
	return -1
}

func field(fields []string, idx int) string {
	if idx < 0 || idx >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[idx])
}

// Truncate bounds s to max characters, the unit VARCHAR columns count
// in. Cutting by rune keeps multi-byte text valid.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func normalizeUF(uf string) string {
	uf = strings.ToUpper(strings.TrimSpace(uf))
	if len(uf) != 2 {
		return ""
	}
	return uf
}
