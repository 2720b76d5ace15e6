// Package sqlite persists the audit ledger in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/JadsonMattos/vigia-pix/internal/domain/ledger"
)

// BlockStore implements ledger.BlockStore using SQLite
type BlockStore struct {
	db *sql.DB
}

// NewBlockStore opens (or creates) the database at dbPath
func NewBlockStore(dbPath string) (*BlockStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; the ledger serializes appends anyway
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &BlockStore{db: db}, nil
}

// AppendBlock inserts one block. Index collisions fail.
func (s *BlockStore) AppendBlock(ctx context.Context, b ledger.Block) error {
	data, err := json.Marshal(b.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal block data: %w", err)
	}
	const q = `
		INSERT INTO ledger_blocks (block_index, timestamp, amendment_id, transaction_type, data_json, previous_hash, hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, q,
		b.Index, b.Timestamp, b.AmendmentID, string(b.Type), string(data), b.PreviousHash, b.Hash)
	if err != nil {
		return fmt.Errorf("failed to store block %d: %w", b.Index, err)
	}
	return nil
}

// Blocks returns the whole chain ordered by index
func (s *BlockStore) Blocks(ctx context.Context) ([]ledger.Block, error) {
	const q = `
		SELECT block_index, timestamp, amendment_id, transaction_type, data_json, previous_hash, hash
		FROM ledger_blocks ORDER BY block_index ASC
	`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query blocks: %w", err)
	}
	defer rows.Close()

	var out []ledger.Block
	for rows.Next() {
		var b ledger.Block
		var typ, data string
		if err := rows.Scan(&b.Index, &b.Timestamp, &b.AmendmentID, &typ, &data, &b.PreviousHash, &b.Hash); err != nil {
			return nil, fmt.Errorf("failed to scan block: %w", err)
		}
		b.Type = ledger.TxType(typ)
		if err := json.Unmarshal([]byte(data), &b.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal block %d data: %w", b.Index, err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Check lets the store serve as a health check.
func (s *BlockStore) Check(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *BlockStore) Close() error {
	return s.db.Close()
}
