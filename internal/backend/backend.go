// Package backend opens the storage selected by DATA_BACKEND.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/config"
	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"
)

type Type string

const (
	SQLite Type = "sqlite"
	Memory Type = "memory"
)

func (t Type) Valid() bool {
	return t == SQLite || t == Memory
}

type Config struct {
	Type       Type
	SQLitePath string
}

// FromAppConfig picks the backend settings out of the application config.
func FromAppConfig(cfg *config.Config) (Config, error) {
	if cfg == nil {
		return Config{}, errors.New("nil app config")
	}
	c := Config{Type: Type(cfg.DataBackend), SQLitePath: cfg.SQLiteDBPath}
	return c, c.Validate()
}

func (c Config) Validate() error {
	switch {
	case !c.Type.Valid():
		return fmt.Errorf("unknown data backend %q (want %s or %s)", c.Type, SQLite, Memory)
	case c.Type == SQLite && c.SQLitePath == "":
		return errors.New("sqlite backend needs SQLITE_DB_PATH")
	}
	return nil
}

// CleanupFunc releases whatever the backend holds open.
type CleanupFunc func() error

type Result struct {
	Repository storage.Repository
	Cleanup    CleanupFunc
}

// Factory opens repositories. Each backend is checked with Ping before it
// is handed out.
type Factory struct {
	logger *slog.Logger
	open   map[Type]func(Config) (storage.Repository, error)
}

func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{
		logger: logger,
		open: map[Type]func(Config) (storage.Repository, error){
			SQLite: func(c Config) (storage.Repository, error) {
				return storage.NewSQLiteRepository(c.SQLitePath)
			},
			Memory: func(Config) (storage.Repository, error) {
				return memory.New(), nil
			},
		},
	}
}

func (f *Factory) CreateBackend(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	repo, err := f.open[cfg.Type](cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Type, err)
	}
	if err := repo.Ping(ctx); err != nil {
		repo.Close()
		return nil, fmt.Errorf("ping %s backend: %w", cfg.Type, err)
	}

	switch cfg.Type {
	case SQLite:
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", cfg.SQLitePath)
	case Memory:
		f.logger.WarnContext(ctx, "Initialized memory backend, data will not survive a restart")
	}
	return &Result{Repository: repo, Cleanup: repo.Close}, nil
}
