package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"rental-digest/models"
	"rental-digest/utils"
)

// PostgresStore persists listings to PostgreSQL. The primary key on id turns
// ON CONFLICT DO NOTHING into an atomic conditional insert.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresStore.
func NewPostgresStore(ctx context.Context, dsn string, logger *utils.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	retry := &utils.RetryConfig{MaxAttempts: 5, BaseDelay: time.Second, Logger: logger}
	if err := retry.Do(ctx, "postgres ping", func() error { return db.PingContext(ctx) }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	ps := NewPostgresStoreFromDB(db)
	if err := ps.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return ps, nil
}

// NewPostgresStoreFromDB wraps an already-open handle without migrating.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (ps *PostgresStore) migrate(ctx context.Context) error {
	_, err := ps.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS listings (
			id              TEXT          PRIMARY KEY,
			source          VARCHAR(50)   NOT NULL,
			neighborhood    TEXT          NOT NULL DEFAULT '',
			address         TEXT          NOT NULL DEFAULT '',
			price           NUMERIC(12,2) NOT NULL DEFAULT 0,
			area            TEXT          NOT NULL DEFAULT '-',
			rooms           INTEGER       NOT NULL DEFAULT 0,
			parking_spaces  INTEGER       NOT NULL DEFAULT 0,
			link            TEXT          NOT NULL,
			first_seen_at   TIMESTAMPTZ   NOT NULL,
			last_updated_at TIMESTAMPTZ   NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_listings_last_updated ON listings(last_updated_at);
		CREATE INDEX IF NOT EXISTS idx_listings_price        ON listings(price);
	`)
	return err
}

const insertListingSQL = `
	INSERT INTO listings (id, source, neighborhood, address, price, area, rooms, parking_spaces, link, first_seen_at, last_updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (id) DO NOTHING`

func (ps *PostgresStore) InsertIfAbsent(ctx context.Context, l *models.Listing) (models.InsertOutcome, error) {
	res, err := ps.db.ExecContext(ctx, insertListingSQL,
		l.ID, l.Source, l.Neighborhood, l.Address, l.Price, l.Area,
		l.Rooms, l.ParkingSpaces, l.DetailURL, l.FirstSeenAt, l.LastUpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("postgres: insert: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("postgres: rows affected: %w", err)
	}
	if n == 0 {
		return models.AlreadyExists, nil
	}
	return models.Inserted, nil
}

const scanSinceSQL = `
	SELECT id, source, neighborhood, address, price, area, rooms, parking_spaces, link, first_seen_at, last_updated_at
	FROM listings
	WHERE last_updated_at >= $1`

// ScanSince retrieves listings updated at or after cutoff.
func (ps *PostgresStore) ScanSince(ctx context.Context, cutoff time.Time) ([]*models.Listing, error) {
	rows, err := ps.db.QueryContext(ctx, scanSinceSQL, cutoff)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan since: %w", err)
	}
	defer rows.Close()

	var listings []*models.Listing
	for rows.Next() {
		l := &models.Listing{}
		if err := rows.Scan(
			&l.ID, &l.Source, &l.Neighborhood, &l.Address, &l.Price, &l.Area,
			&l.Rooms, &l.ParkingSpaces, &l.DetailURL, &l.FirstSeenAt, &l.LastUpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func (ps *PostgresStore) Ping(ctx context.Context) error {
	return ps.db.PingContext(ctx)
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}
