// Package db holds the row codec shared by the SQL amendment repositories.
package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/JadsonMattos/vigia-pix/internal/domain/amendments"
)

// DefaultPageSize dipakai kalau filter tidak kasih ukuran halaman
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Row is the flat projection written next to the JSON payload. Only the
// columns needed for filtering and lookups are broken out.
type Row struct {
	ID                string
	Number            string
	Year              int
	Status            string
	UF                string
	Approved          float64
	Paid              float64
	PlannedCompletion sql.NullTime
	Payload           []byte
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Encode flattens an amendment. A late status never reaches the database.
func Encode(a *amendments.Amendment) (Row, error) {
	status := a.Status
	switch status {
	case "":
		status = amendments.StatusPending
	case amendments.StatusLate:
		status = amendments.StatusExecuting
	}
	cp := a.Clone()
	cp.Status = status
	payload, err := json.Marshal(cp)
	if err != nil {
		return Row{}, fmt.Errorf("encoding amendment %s: %w", a.ID, err)
	}
	r := Row{
		ID:        string(a.ID),
		Number:    a.Number,
		Year:      a.Year,
		Status:    string(status),
		UF:        strings.ToUpper(a.Recipient.UF),
		Approved:  a.Financials.Approved,
		Paid:      a.Financials.Paid,
		Payload:   payload,
		CreatedAt: a.CreatedAt.UTC(),
		UpdatedAt: a.UpdatedAt.UTC(),
	}
	if a.PlannedCompletion != nil {
		r.PlannedCompletion = sql.NullTime{Time: a.PlannedCompletion.UTC(), Valid: true}
	}
	return r, nil
}

// Decode rebuilds the aggregate from its payload column.
func Decode(payload []byte) (*amendments.Amendment, error) {
	var a amendments.Amendment
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, fmt.Errorf("decoding amendment payload: %w", err)
	}
	st, err := amendments.ParseStatus(string(a.Status))
	if err != nil {
		return nil, fmt.Errorf("decoding amendment %s: %w", a.ID, err)
	}
	a.Status = st
	return &a, nil
}

// Page normalizes page and page size and returns the row offset.
func Page(f amendments.ListFilter) (page, size, offset int) {
	page, size = f.Page, f.PageSize
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size, (page - 1) * size
}

// TotalPages rounds up.
func TotalPages(total int64, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}

// Placeholder renders the n-th bind parameter for a SQL dialect.
type Placeholder func(n int) string

// Dollar is the postgres style ($1, $2, ...).
func Dollar(n int) string { return fmt.Sprintf("$%d", n) }

// Question is the mysql style.
func Question(int) string { return "?" }

// Where builds the WHERE clause for a filter. Late is derived from the
// planned completion date and the amounts, so it expands into a predicate
// instead of matching the status column.
func Where(f amendments.ListFilter, now time.Time, ph Placeholder) (string, []any) {
	var conds []string
	var args []any
	next := 1
	bind := func(v any) string {
		args = append(args, v)
		p := ph(next)
		next++
		return p
	}

	switch f.Status {
	case "":
	case amendments.StatusLate:
		conds = append(conds, fmt.Sprintf(
			"status IN ('pending','executing') AND planned_completion IS NOT NULL AND planned_completion < %s AND (approved <= 0 OR paid < approved)",
			bind(now.UTC())))
	default:
		conds = append(conds, "status = "+bind(string(f.Status)))
	}
	if f.UF != "" {
		conds = append(conds, "uf = "+bind(strings.ToUpper(f.UF)))
	}
	if f.Year > 0 {
		conds = append(conds, "year = "+bind(f.Year))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
