package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/miruna26/aicore-data-collection/internal/vehicle"
)

const (
	upsertBatchSize = 50
	upsertColumns   = 10
)

// PostgresWriter mirrors the flattened table into a vehicles table
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(ctx context.Context, dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 5; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return pw, nil
}

func (pw *PostgresWriter) migrate(ctx context.Context) error {
	_, err := pw.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS vehicles (
			id          TEXT        PRIMARY KEY,
			uuid        TEXT        NOT NULL,
			href        TEXT,
			title       TEXT,
			subtitle    TEXT,
			price       TEXT,
			location    TEXT,
			mileage     TEXT,
			description TEXT,
			images      TEXT[]      NOT NULL DEFAULT '{}',
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_vehicles_uuid     ON vehicles(uuid);
		CREATE INDEX IF NOT EXISTS idx_vehicles_location ON vehicles(location);
	`)
	return err
}

// Write upserts every row of the table, keyed by vehicle id
func (pw *PostgresWriter) Write(ctx context.Context, t *Table) error {
	for i := 0; i < len(t.Rows); i += upsertBatchSize {
		end := i + upsertBatchSize
		if end > len(t.Rows) {
			end = len(t.Rows)
		}
		query, args := buildUpsert(t.Rows[i:end])
		if _, err := pw.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("postgres: upsert rows %d-%d: %w", i, end-1, err)
		}
	}
	return nil
}

func buildUpsert(rows []vehicle.Flat) (string, []interface{}) {
	valueStrings := make([]string, 0, len(rows))
	valueArgs := make([]interface{}, 0, len(rows)*upsertColumns)

	for idx, r := range rows {
		base := idx * upsertColumns
		placeholders := make([]string, upsertColumns)
		for c := range placeholders {
			placeholders[c] = fmt.Sprintf("$%d", base+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")

		images := r.Images
		if images == nil {
			images = []string{}
		}
		valueArgs = append(valueArgs,
			r.ID, r.UUID, r.Href, r.Title, r.Subtitle, r.Price,
			r.Location, r.Mileage, r.Description, pq.Array(images))
	}

	query := fmt.Sprintf(`
		INSERT INTO vehicles (id, uuid, href, title, subtitle, price, location, mileage, description, images)
		VALUES %s
		ON CONFLICT (id) DO UPDATE SET
			uuid        = EXCLUDED.uuid,
			href        = EXCLUDED.href,
			title       = EXCLUDED.title,
			subtitle    = EXCLUDED.subtitle,
			price       = EXCLUDED.price,
			location    = EXCLUDED.location,
			mileage     = EXCLUDED.mileage,
			description = EXCLUDED.description,
			images      = EXCLUDED.images,
			updated_at  = NOW()
	`, strings.Join(valueStrings, ","))

	return query, valueArgs
}

// FetchAll reads the stored rows back as a table ordered by id
func (pw *PostgresWriter) FetchAll(ctx context.Context) (*Table, error) {
	rows, err := pw.db.QueryContext(ctx, `
		SELECT id, uuid, href, title, subtitle, price, location, mileage, description, images
		FROM vehicles
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch all: %w", err)
	}
	defer rows.Close()

	t := &Table{Columns: vehicle.Columns()}
	for rows.Next() {
		var r vehicle.Flat
		var images []string
		if err := rows.Scan(
			&r.ID, &r.UUID, &r.Href, &r.Title, &r.Subtitle, &r.Price,
			&r.Location, &r.Mileage, &r.Description, pq.Array(&images),
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		r.Images = images
		if r.Images == nil {
			r.Images = []string{}
		}
		t.Rows = append(t.Rows, r)
	}
	return t, rows.Err()
}

// Close closes the database handle
func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
