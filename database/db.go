// database/db.go
package database

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// EnsureSchema creates the tables and supporting indexes if they do not
// exist yet. The composite indexes are a precondition for the statistics
// queries at scale, so they are created here ahead of any large load, not
// reactively per query.
func EnsureSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS operadoras (
			cnpj          CHAR(14)     NOT NULL PRIMARY KEY,
			razao_social  VARCHAR(255) NOT NULL,
			registro_ans  VARCHAR(10)  NULL,
			modalidade    VARCHAR(50)  NULL,
			uf            CHAR(2)      NULL,
			INDEX idx_operadoras_razao_social (razao_social),
			INDEX idx_operadoras_uf_cnpj (uf, cnpj)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS despesas (
			id               BIGINT AUTO_INCREMENT PRIMARY KEY,
			cnpj             CHAR(14)      NOT NULL,
			ano              SMALLINT      NOT NULL,
			trimestre        TINYINT       NOT NULL,
			descricao        VARCHAR(255)  NOT NULL,
			valor            DECIMAL(18,2) NOT NULL DEFAULT 0,
			status_qualidade VARCHAR(20)   NOT NULL DEFAULT 'ok',
			UNIQUE KEY uq_despesas_natural (cnpj, ano, trimestre, descricao(191)),
			INDEX idx_despesas_cnpj_valor (cnpj, valor),
			INDEX idx_despesas_ano_trimestre (ano, trimestre),
			CONSTRAINT fk_despesas_operadora FOREIGN KEY (cnpj)
				REFERENCES operadoras (cnpj) ON DELETE CASCADE
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS etl_runs (
			id                VARCHAR(36) PRIMARY KEY,
			start_time        DATETIME    NOT NULL,
			end_time          DATETIME    NULL,
			status            VARCHAR(20) NOT NULL,
			periods_requested INT NOT NULL DEFAULT 0,
			periods_succeeded INT NOT NULL DEFAULT 0,
			rows_loaded       INT NOT NULL DEFAULT 0,
			rows_flagged      INT NOT NULL DEFAULT 0,
			key_conflicts     INT NOT NULL DEFAULT 0,
			error_message     TEXT NULL
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}
