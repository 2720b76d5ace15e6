package mysql

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JadsonMattos/vigia-pix/internal/domain/amendments"
)

func TestAmendmentRepository_SaveUsesUpsert(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	due := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	a := &amendments.Amendment{ID: "a-1", Number: "7", Year: 2023, Status: amendments.StatusLate, PlannedCompletion: &due}

	mock.ExpectExec(regexp.QuoteMeta("ON DUPLICATE KEY UPDATE")).
		WithArgs("a-1", "7", 2023, "executing", "", 0.0, 0.0, due, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewAmendmentRepository(conn).Save(context.Background(), a))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAmendmentRepository_GetNotFound(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT payload FROM amendments WHERE id=?")).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))

	_, err = NewAmendmentRepository(conn).Get(context.Background(), "nope")
	assert.ErrorIs(t, err, amendments.ErrNotFound)
}

func TestAmendmentRepository_ListLate(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	repo := NewAmendmentRepository(conn)
	repo.now = func() time.Time { return now }

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM amendments WHERE status IN ('pending','executing')")).
		WithArgs(now).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("LIMIT ? OFFSET ?")).
		WithArgs(now, 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(`{"id":"a-9","status":"executing"}`))

	res, err := repo.List(context.Background(), amendments.ListFilter{Status: amendments.StatusLate})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalPages)
	require.Len(t, res.Data, 1)
	assert.Equal(t, amendments.ID("a-9"), res.Data[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
