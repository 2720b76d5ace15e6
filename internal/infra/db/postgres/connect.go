package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
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

// Migrate creates the amendments table when missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, Schema)
	return err
}

const Schema = `
CREATE TABLE IF NOT EXISTS amendments (
	id                 TEXT PRIMARY KEY,
	number             TEXT NOT NULL,
	year               INTEGER NOT NULL,
	status             TEXT NOT NULL,
	uf                 TEXT NOT NULL DEFAULT '',
	approved           DOUBLE PRECISION NOT NULL DEFAULT 0,
	paid               DOUBLE PRECISION NOT NULL DEFAULT 0,
	planned_completion TIMESTAMPTZ NULL,
	payload            JSONB NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL,
	UNIQUE (number, year)
);
CREATE INDEX IF NOT EXISTS idx_amendments_status ON amendments(status);
CREATE INDEX IF NOT EXISTS idx_amendments_uf ON amendments(uf);
`
