// Package sqlitestore persists StatRecords in a local SQLite file.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/covid-stats-etl/internal/domain"

	_ "modernc.org/sqlite"
)

// TableName is the per-region, per-date statistics table.
const TableName = "region_daily_stats"

const createTableSQL = `
CREATE TABLE region_daily_stats (
	region          TEXT    NOT NULL,
	tested_positive INTEGER NOT NULL CHECK (tested_positive >= 0),
	tested_negative INTEGER NOT NULL CHECK (tested_negative >= 0),
	test_pending    INTEGER CHECK (test_pending >= 0),
	died            INTEGER NOT NULL CHECK (died >= 0),
	total_tested    INTEGER NOT NULL CHECK (total_tested >= 0),
	record_date     TEXT    NOT NULL
)`

const createIndexSQL = `
CREATE UNIQUE INDEX IF NOT EXISTS idx_region_daily_stats_region_date
	ON region_daily_stats (region, record_date)`

const columns = `region, tested_positive, tested_negative, test_pending, died, total_tested, record_date`

// Store owns the database handle for one run.
// It implements pipeline.RecordStore.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the SQLite file at path. The parent
// directory is created when missing. Call Initialize before use and Close
// when the run ends.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer, one run: a single connection keeps pragmas on every statement.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	return &Store{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Initialize creates the statistics table and its (region, record_date)
// unique index. An existing table is left untouched.
func (s *Store) Initialize(ctx context.Context) error {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, TableName,
	).Scan(&n)
	if err != nil {
		return fmt.Errorf("inspect schema: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if n == 0 {
		if _, err := tx.ExecContext(ctx, createTableSQL); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
		s.logger.Info("store table created", "table", TableName)
	} else {
		s.logger.Debug("store table exists, skipping creation", "table", TableName)
	}
	if _, err := tx.ExecContext(ctx, createIndexSQL); err != nil {
		return fmt.Errorf("create unique index: %w", err)
	}
	return tx.Commit()
}

// Append inserts rec. It returns *domain.DuplicateRecordError when a record
// for the same region and date already exists; the stored row is unchanged.
func (s *Store) Append(ctx context.Context, rec domain.StatRecord) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO region_daily_stats (`+columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (region, record_date) DO NOTHING`,
		rec.Region,
		rec.TestedPositive,
		rec.TestedNegative,
		nullInt64(rec.TestPending),
		rec.Died,
		rec.TotalTested,
		rec.Date(),
	)
	if err != nil {
		return fmt.Errorf("insert %s %s: %w", rec.Region, rec.Date(), err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert %s %s: rows affected: %w", rec.Region, rec.Date(), err)
	}
	if n == 0 {
		return &domain.DuplicateRecordError{Region: rec.Region, RecordDate: rec.RecordDate}
	}
	return nil
}

// All returns every stored record ordered by record date, then region.
// An empty region returns all regions.
func (s *Store) All(ctx context.Context, region string) ([]domain.StatRecord, error) {
	query := `SELECT ` + columns + ` FROM region_daily_stats`
	var args []any
	if region != "" {
		query += ` WHERE region = ?`
		args = append(args, region)
	}
	query += ` ORDER BY record_date ASC, region ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []domain.StatRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// Count returns how many rows exist for region on date.
func (s *Store) Count(ctx context.Context, region string, date time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM region_daily_stats WHERE region = ? AND record_date = ?`,
		region, date.Format(domain.DateLayout),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

func scanRecord(rows *sql.Rows) (domain.StatRecord, error) {
	var (
		rec     domain.StatRecord
		pending sql.NullInt64
		date    string
	)
	if err := rows.Scan(&rec.Region, &rec.TestedPositive, &rec.TestedNegative, &pending, &rec.Died, &rec.TotalTested, &date); err != nil {
		return domain.StatRecord{}, fmt.Errorf("scan record: %w", err)
	}
	d, err := time.Parse(domain.DateLayout, date)
	if err != nil {
		return domain.StatRecord{}, fmt.Errorf("record %s has malformed date %q: %w", rec.Region, date, err)
	}
	rec.RecordDate = d
	if pending.Valid {
		v := pending.Int64
		rec.TestPending = &v
	}
	return rec, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
