package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fintrack/internal/core"

	_ "modernc.org/sqlite"
)

const storedTimeLayout = time.RFC3339Nano

// SQLiteRepository implements Repository on a single SQLite file.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time

	budgets           *table[core.Budget]
	lenders           *table[core.Lender]
	loans             *table[core.LoanTransaction]
	assets            *table[core.Asset]
	assetTransactions *table[core.AssetTransaction]
	itemRates         *table[core.ItemRate]
	profiles          *table[core.Profile]
}

var _ Repository = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := Migrate(dsn)
	if err != nil {
		db.Close()
		return nil, err
	}
	slog.Debug("SQLite schema ready", "path", dbPath, "schema_version", version)

	repo := &SQLiteRepository{db: db, now: time.Now}
	repo.initTables()
	return repo, nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Budgets() Store[core.Budget]                    { return r.budgets }
func (r *SQLiteRepository) Lenders() Store[core.Lender]                    { return r.lenders }
func (r *SQLiteRepository) Loans() Store[core.LoanTransaction]             { return r.loans }
func (r *SQLiteRepository) Assets() Store[core.Asset]                      { return r.assets }
func (r *SQLiteRepository) AssetTransactions() Store[core.AssetTransaction] { return r.assetTransactions }
func (r *SQLiteRepository) ItemRates() Store[core.ItemRate]                { return r.itemRates }
func (r *SQLiteRepository) Profiles() Store[core.Profile]                  { return r.profiles }

type scanner interface {
	Scan(dest ...any) error
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func parseStoredDate(s string) (core.Date, error) {
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, fmt.Errorf("parse stored date: %w", err)
	}
	return d, nil
}

func parseStoredTime(s string) time.Time {
	t, err := time.Parse(storedTimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// translateError maps driver errors onto the package's sentinel errors.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: %v", core.ErrMissingReference, err)
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
