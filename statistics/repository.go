package statistics

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rmacedo-dev/ans-despesas/etl/models"
)

// MySQLDataService implements DataService against the main store. Only
// ok-status rows ever reach the aggregations; flagged rows stay in the
// table for audit but are filtered here.
type MySQLDataService struct {
	db *sql.DB
}

func NewMySQLDataService(db *sql.DB) *MySQLDataService {
	return &MySQLDataService{db: db}
}

func (s *MySQLDataService) ExpenseRows(ctx context.Context) ([]ExpenseRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.cnpj, o.razao_social, o.uf, d.ano, d.trimestre, d.valor
		FROM despesas d
		JOIN operadoras o ON d.cnpj = o.cnpj
		WHERE d.status_qualidade = ?
	`, models.StatusOK)
	if err != nil {
		return nil, fmt.Errorf("querying expense rows: %w", err)
	}
	defer rows.Close()

	var out []ExpenseRow
	for rows.Next() {
		var (
			row      ExpenseRow
			uf       sql.NullString
			valorRaw string
		)
		if err := rows.Scan(&row.CNPJ, &row.RazaoSocial, &uf, &row.Ano, &row.Trimestre, &valorRaw); err != nil {
			return nil, fmt.Errorf("scanning expense row: %w", err)
		}
		if uf.Valid {
			row.UF = uf.String
		}
		row.Valor, err = decimal.NewFromString(valorRaw)
		if err != nil {
			return nil, fmt.Errorf("parsing stored value %q: %w", valorRaw, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating expense rows: %w", err)
	}
	return out, nil
}
