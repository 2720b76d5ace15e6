package mysql

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	// test ping
	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate runs the schema statements one by one; the driver rejects
// multi-statement Exec unless multiStatements=true is set on the DSN.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

var schema = []string{`
CREATE TABLE IF NOT EXISTS amendments (
	id                 VARCHAR(64) PRIMARY KEY,
	number             VARCHAR(64) NOT NULL,
	year               INT NOT NULL,
	status             VARCHAR(16) NOT NULL,
	uf                 CHAR(2) NOT NULL DEFAULT '',
	approved           DOUBLE NOT NULL DEFAULT 0,
	paid               DOUBLE NOT NULL DEFAULT 0,
	planned_completion DATETIME(6) NULL,
	payload            JSON NOT NULL,
	created_at         DATETIME(6) NOT NULL,
	updated_at         DATETIME(6) NOT NULL,
	UNIQUE KEY uq_amendments_number_year (number, year),
	KEY idx_amendments_status (status),
	KEY idx_amendments_uf (uf)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}
