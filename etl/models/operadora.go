package models

// Operadora represents a registered health-insurance operator from the
// ANS registry snapshot. CNPJ is the 14-digit primary identifier; the
// optional fields come straight from the registry file.
type Operadora struct {
	CNPJ        string
	RazaoSocial string
	RegistroANS string // empty when unknown
	Modalidade  string // empty when unknown
	UF          string // two-letter state code, empty when unknown
}

// Registry is the in-memory registry snapshot used by the consolidator to
// resolve source identifiers. Besides the CNPJ set it keeps the
// Registro ANS -> CNPJ map, because quarterly disclosure files identify
// operators by their ANS registration number more often than by CNPJ.
type Registry struct {
	byCNPJ     map[string]struct{}
	byRegistro map[string]string
}

func NewRegistry(operadoras []Operadora) *Registry {
	r := &Registry{
		byCNPJ:     make(map[string]struct{}, len(operadoras)),
		byRegistro: make(map[string]string),
	}
	for _, op := range operadoras {
		r.byCNPJ[op.CNPJ] = struct{}{}
		if op.RegistroANS != "" {
			r.byRegistro[op.RegistroANS] = op.CNPJ
		}
	}
	return r
}

// HasCNPJ reports whether the CNPJ belongs to a known operator.
func (r *Registry) HasCNPJ(cnpj string) bool {
	_, ok := r.byCNPJ[cnpj]
	return ok
}

// ResolveRegistro returns the CNPJ registered under the given ANS
// registration number.
func (r *Registry) ResolveRegistro(registro string) (string, bool) {
	cnpj, ok := r.byRegistro[registro]
	return cnpj, ok
}

func (r *Registry) Len() int {
	return len(r.byCNPJ)
}
