package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"yelp-pins/models"
)

const pinColumns = 10

// PostgresWriter persists pins to PostgreSQL.
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

	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate(ctx context.Context) error {
	_, err := pw.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS pins (
			id             SERIAL PRIMARY KEY,
			run_id         UUID             NOT NULL,
			source_id      TEXT,
			rating         TEXT             NOT NULL DEFAULT '',
			pin_type       SMALLINT         NOT NULL DEFAULT 0,
			name           TEXT             NOT NULL,
			description    TEXT             NOT NULL DEFAULT '',
			likes          INTEGER          NOT NULL DEFAULT 0,
			latitude       DOUBLE PRECISION NOT NULL,
			longitude      DOUBLE PRECISION NOT NULL,
			linked_account TEXT             NOT NULL,
			created_at     TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
			UNIQUE (run_id, source_id)
		);

		ALTER TABLE pins ALTER COLUMN source_id DROP NOT NULL;
		ALTER TABLE pins ALTER COLUMN source_id DROP DEFAULT;
		UPDATE pins SET source_id = NULL WHERE source_id = '';

		CREATE INDEX IF NOT EXISTS idx_pins_pin_type ON pins(pin_type);
		CREATE INDEX IF NOT EXISTS idx_pins_coords   ON pins(latitude, longitude);
	`)
	return err
}

// Store batch-inserts a run's pins. Pins repeated within a run are ignored;
// pins without a source id are stored with a NULL one and never collide.
func (pw *PostgresWriter) Store(ctx context.Context, runID string, pins []*models.Pin) (int, error) {
	if len(pins) == 0 {
		return 0, nil
	}

	const batchSize = 50
	stored := 0
	for i := 0; i < len(pins); i += batchSize {
		end := i + batchSize
		if end > len(pins) {
			end = len(pins)
		}
		n, err := pw.insertBatch(ctx, runID, pins[i:end])
		if err != nil {
			return stored, &models.SinkWriteError{Sink: "postgres", Err: err}
		}
		stored += n
	}
	return stored, nil
}

func (pw *PostgresWriter) insertBatch(ctx context.Context, runID string, batch []*models.Pin) (int, error) {
	query, args, err := buildPinInsert(runID, batch)
	if err != nil {
		return 0, err
	}
	res, err := pw.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return len(batch), nil
	}
	return int(n), nil
}

func buildPinInsert(runID string, batch []*models.Pin) (string, []interface{}, error) {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*pinColumns)

	for idx, p := range batch {
		lat, err := p.Coordinate.Latitude.Float64()
		if err != nil {
			return "", nil, fmt.Errorf("pin %q latitude: %w", p.Name, err)
		}
		lon, err := p.Coordinate.Longitude.Float64()
		if err != nil {
			return "", nil, fmt.Errorf("pin %q longitude: %w", p.Name, err)
		}

		base := idx * pinColumns
		placeholders := make([]string, pinColumns)
		for c := range placeholders {
			placeholders[c] = fmt.Sprintf("$%d", base+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs,
			runID, sourceID(p), p.Rating, int(p.PinType), p.Name, p.Description,
			p.Likes, lat, lon, p.LinkedAccount)
	}

	query := fmt.Sprintf(`
		INSERT INTO pins (run_id, source_id, rating, pin_type, name, description, likes, latitude, longitude, linked_account)
		VALUES %s
		ON CONFLICT (run_id, source_id) DO NOTHING
	`, strings.Join(valueStrings, ","))
	return query, valueArgs, nil
}

func sourceID(p *models.Pin) interface{} {
	if p.SourceID == "" {
		return nil
	}
	return p.SourceID
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
