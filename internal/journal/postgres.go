package journal

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/vietddude/tradeup/internal/core/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// Postgres is a PostgreSQL-backed journal.
type Postgres struct {
	db    *sqlx.DB
	runID string
}

// NewPostgres connects, migrates and returns the journal.
func NewPostgres(ctx context.Context, cfg PostgresConfig, runID string) (*Postgres, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("postgres journal requires a dsn")
	}

	db, err := sqlx.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	} else {
		db.SetMaxOpenConns(4)
	}
	if cfg.MinConns > 0 {
		db.SetMaxIdleConns(cfg.MinConns)
	} else {
		db.SetMaxIdleConns(1)
	}
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrate(db.DB); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate db: %w", err)
	}

	return &Postgres{db: db, runID: runID}, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(db, "migrations")
}

func (j *Postgres) RecordAuthAttempt(ctx context.Context, a domain.AuthAttempt) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO auth_attempts (id, run_id, attempt, outcome, error_code, message, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, j.runID, a.Attempt, a.Outcome, a.ErrorCode, a.Message, a.At.UTC(),
	)
	return err
}

func (j *Postgres) RecordTradeUp(ctx context.Context, result domain.TradeUpResult, tradeErr error) error {
	rec := newTradeUpRecord(j.runID, result, tradeErr)

	var output []byte
	if rec.Output != nil {
		b, err := json.Marshal(rec.Output)
		if err != nil {
			return err
		}
		output = b
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO trade_ups (id, run_id, success, input_asset_ids, output_item, error, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.RunID, rec.Success, pq.Array(rec.InputAssetIDs), output, rec.Error, rec.At,
	)
	return err
}

func (j *Postgres) ListTradeUps(ctx context.Context, limit int) ([]TradeUpRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id::text, run_id, success, input_asset_ids, output_item, error, at
		FROM trade_ups ORDER BY at DESC LIMIT $1`, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeUpRecord
	for rows.Next() {
		var (
			rec    TradeUpRecord
			output []byte
		)
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Success, pq.Array(&rec.InputAssetIDs), &output, &rec.Error, &rec.At); err != nil {
			return nil, err
		}
		if len(output) > 0 {
			rec.Output = &domain.ItemDescriptor{}
			if err := json.Unmarshal(output, rec.Output); err != nil {
				return nil, fmt.Errorf("decode output of %s: %w", rec.ID, err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (j *Postgres) ListAuthAttempts(ctx context.Context, limit int) ([]domain.AuthAttempt, error) {
	var out []domain.AuthAttempt
	err := j.db.SelectContext(ctx, &out, `
		SELECT id::text AS id, attempt, outcome, error_code, message, at
		FROM auth_attempts ORDER BY at DESC LIMIT $1`, normalizeLimit(limit))
	return out, err
}

func (j *Postgres) Prune(ctx context.Context, before time.Time) (int64, error) {
	return pruneTables(ctx, j.db, `at < $1`, before.UTC())
}

func (j *Postgres) Close() error {
	return j.db.Close()
}
