package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/JadsonMattos/vigia-pix/internal/domain/amendments"
	"github.com/JadsonMattos/vigia-pix/internal/infra/db"
)

type AmendmentRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewAmendmentRepository(conn *sql.DB) *AmendmentRepository {
	return &AmendmentRepository{db: conn, now: time.Now}
}

// Save insert/update Amendment record
func (r *AmendmentRepository) Save(ctx context.Context, a *amendments.Amendment) error {
	const q = `
INSERT INTO amendments
(id, number, year, status, uf, approved, paid, planned_completion, payload, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
 number = EXCLUDED.number,
 year = EXCLUDED.year,
 status = EXCLUDED.status,
 uf = EXCLUDED.uf,
 approved = EXCLUDED.approved,
 paid = EXCLUDED.paid,
 planned_completion = EXCLUDED.planned_completion,
 payload = EXCLUDED.payload,
 updated_at = EXCLUDED.updated_at;`

	row, err := db.Encode(a)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, q,
		row.ID, row.Number, row.Year, row.Status, row.UF,
		row.Approved, row.Paid, row.PlannedCompletion,
		string(row.Payload), row.CreatedAt, row.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving amendment %s: %w", a.ID, err)
	}
	return nil
}

// Get by ID
func (r *AmendmentRepository) Get(ctx context.Context, id amendments.ID) (*amendments.Amendment, error) {
	const q = `SELECT payload FROM amendments WHERE id=$1 LIMIT 1;`
	return r.one(ctx, q, string(id))
}

// FindByNumber looks up the natural key.
func (r *AmendmentRepository) FindByNumber(ctx context.Context, number string, year int) (*amendments.Amendment, error) {
	const q = `SELECT payload FROM amendments WHERE number=$1 AND year=$2 LIMIT 1;`
	return r.one(ctx, q, number, year)
}

func (r *AmendmentRepository) one(ctx context.Context, q string, args ...any) (*amendments.Amendment, error) {
	var payload []byte
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, amendments.ErrNotFound
		}
		return nil, fmt.Errorf("querying amendment: %w", err)
	}
	return db.Decode(payload)
}

// List with offset + limit (classic pagination)
func (r *AmendmentRepository) List(ctx context.Context, f amendments.ListFilter) (amendments.PaginatedResult, error) {
	page, size, offset := db.Page(f)
	where, args := db.Where(f, r.now(), db.Dollar)

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM amendments"+where, args...).Scan(&total); err != nil {
		return amendments.PaginatedResult{}, fmt.Errorf("counting amendments: %w", err)
	}

	next := len(args) + 1
	query := "SELECT payload FROM amendments" + where +
		fmt.Sprintf(" ORDER BY year DESC, number ASC LIMIT $%d OFFSET $%d", next, next+1)
	args = append(args, size, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return amendments.PaginatedResult{}, fmt.Errorf("querying amendments: %w", err)
	}
	defer rows.Close()

	out := make([]*amendments.Amendment, 0, size)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return amendments.PaginatedResult{}, fmt.Errorf("scanning row: %w", err)
		}
		a, err := db.Decode(payload)
		if err != nil {
			return amendments.PaginatedResult{}, err
		}
		out = append(out, a)
	}
	if err = rows.Err(); err != nil {
		return amendments.PaginatedResult{}, fmt.Errorf("iterating rows: %w", err)
	}

	return amendments.PaginatedResult{
		Data:       out,
		Page:       page,
		PageSize:   size,
		Total:      total,
		TotalPages: db.TotalPages(total, size),
	}, nil
}
