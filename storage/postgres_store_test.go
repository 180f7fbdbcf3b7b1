package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-digest/models"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewPostgresStoreFromDB(db), mock
}

func TestPostgresStoreInsertIfAbsent(t *testing.T) {
	ps, mock := newMockStore(t)
	l := listing("https://example.com/imovel/1", 2100, time.Now())

	mock.ExpectExec("INSERT INTO listings").
		WithArgs(l.ID, l.Source, l.Neighborhood, l.Address, l.Price, l.Area,
			int64(l.Rooms), int64(l.ParkingSpaces), l.DetailURL, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO listings").
		WillReturnResult(sqlmock.NewResult(0, 0))

	first, err := ps.InsertIfAbsent(context.Background(), l)
	require.NoError(t, err)
	assert.Equal(t, models.Inserted, first)

	second, err := ps.InsertIfAbsent(context.Background(), l)
	require.NoError(t, err)
	assert.Equal(t, models.AlreadyExists, second)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreInsertError(t *testing.T) {
	ps, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO listings").WillReturnError(errors.New("connection reset by peer"))

	_, err := ps.InsertIfAbsent(context.Background(), listing("https://example.com/1", 100, time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreScanSince(t *testing.T) {
	ps, mock := newMockStore(t)
	cutoff := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	seen := cutoff.Add(2 * time.Hour)

	rows := sqlmock.NewRows([]string{
		"id", "source", "neighborhood", "address", "price", "area",
		"rooms", "parking_spaces", "link", "first_seen_at", "last_updated_at",
	}).
		AddRow("https://example.com/1", "Apolar", "Batel", "Batel, Curitiba", 2100.0, "70 m²",
			int64(2), int64(1), "https://example.com/1", seen, seen).
		AddRow("https://example.com/2", "Galvão", "Centro", "Centro, Curitiba", 1800.5, "-",
			int64(3), int64(0), "https://example.com/2", seen, seen)

	mock.ExpectQuery(`SELECT (.+) FROM listings\s+WHERE last_updated_at >= \$1`).
		WithArgs(cutoff).
		WillReturnRows(rows)

	got, err := ps.ScanSince(context.Background(), cutoff)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Apolar", got[0].Source)
	assert.Equal(t, 2100.0, got[0].Price)
	assert.Equal(t, 1, got[0].ParkingSpaces)
	assert.Equal(t, "-", got[1].Area)
	assert.Equal(t, 3, got[1].Rooms)
	assert.True(t, got[1].LastUpdatedAt.Equal(seen))

	assert.NoError(t, mock.ExpectationsWereMet())
}
