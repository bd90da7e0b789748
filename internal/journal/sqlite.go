package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vietddude/tradeup/internal/core/domain"
)

// SQLite is a file-backed journal.
type SQLite struct {
	db    *sqlx.DB
	runID string
}

// NewSQLite opens (creating if needed) the database at path.
func NewSQLite(path, runID string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite journal requires a dsn")
	}
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}
	return &SQLite{db: db, runID: runID}, nil
}

func (j *SQLite) RecordAuthAttempt(ctx context.Context, a domain.AuthAttempt) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO auth_attempts (id, run_id, attempt, outcome, error_code, message, at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, j.runID, a.Attempt, a.Outcome, a.ErrorCode, a.Message, a.At.UTC(),
	)
	return err
}

func (j *SQLite) RecordTradeUp(ctx context.Context, result domain.TradeUpResult, tradeErr error) error {
	rec := newTradeUpRecord(j.runID, result, tradeErr)

	inputs, err := json.Marshal(rec.InputAssetIDs)
	if err != nil {
		return err
	}
	var output sql.NullString
	if rec.Output != nil {
		b, err := json.Marshal(rec.Output)
		if err != nil {
			return err
		}
		output = sql.NullString{String: string(b), Valid: true}
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO trade_ups (id, run_id, success, input_asset_ids, output_item, error, at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RunID, rec.Success, string(inputs), output, rec.Error, rec.At,
	)
	return err
}

type sqliteTradeUpRow struct {
	ID     string         `db:"id"`
	RunID  string         `db:"run_id"`
	Inputs string         `db:"input_asset_ids"`
	Output sql.NullString `db:"output_item"`
	Error  string         `db:"error"`
	Ok     bool           `db:"success"`
	At     time.Time      `db:"at"`
}

func (j *SQLite) ListTradeUps(ctx context.Context, limit int) ([]TradeUpRecord, error) {
	var rows []sqliteTradeUpRow
	err := j.db.SelectContext(ctx, &rows, `
		SELECT id, run_id, success, input_asset_ids, output_item, error, at
		FROM trade_ups ORDER BY at DESC, rowid DESC LIMIT ?`, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}

	out := make([]TradeUpRecord, 0, len(rows))
	for _, r := range rows {
		rec := TradeUpRecord{ID: r.ID, RunID: r.RunID, Success: r.Ok, Error: r.Error, At: r.At}
		if err := json.Unmarshal([]byte(r.Inputs), &rec.InputAssetIDs); err != nil {
			return nil, fmt.Errorf("decode inputs of %s: %w", r.ID, err)
		}
		if r.Output.Valid {
			rec.Output = &domain.ItemDescriptor{}
			if err := json.Unmarshal([]byte(r.Output.String), rec.Output); err != nil {
				return nil, fmt.Errorf("decode output of %s: %w", r.ID, err)
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func (j *SQLite) ListAuthAttempts(ctx context.Context, limit int) ([]domain.AuthAttempt, error) {
	var out []domain.AuthAttempt
	err := j.db.SelectContext(ctx, &out, `
		SELECT id, attempt, outcome, error_code, message, at
		FROM auth_attempts ORDER BY at DESC, rowid DESC LIMIT ?`, normalizeLimit(limit))
	return out, err
}

func (j *SQLite) Prune(ctx context.Context, before time.Time) (int64, error) {
	return pruneTables(ctx, j.db, `at < ?`, before.UTC())
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

// pruneTables deletes from every journal table in one transaction.
func pruneTables(ctx context.Context, db *sqlx.DB, where string, arg any) (int64, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	for _, table := range []string{"auth_attempts", "trade_ups"} {
		res, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE "+where, arg)
		if err != nil {
			return 0, fmt.Errorf("prune %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, tx.Commit()
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}
