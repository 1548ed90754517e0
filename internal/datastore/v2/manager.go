// Package v2 opens the gardend database and migrates its schema.
package v2

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	"github.com/smartgarden/gardend/internal/datastore/v2/entities"
	"github.com/smartgarden/gardend/internal/datastore/v2/repository"
	"github.com/smartgarden/gardend/internal/errors"
)

const (
	DialectSQLite   = "sqlite"
	DialectMySQL    = "mysql"
	DialectPostgres = "postgres"

	sqliteFileName = "gardend.db"
)

// Config selects and tunes the database backend.
type Config struct {
	Type string
	// DataDir is the directory holding the SQLite file when Path is empty.
	DataDir string
	// Path is the SQLite file path, or ":memory:".
	Path         string
	DSN          string
	MaxOpenConns int
	Debug        bool
}

// Manager owns the gorm connection.
type Manager struct {
	db      *gorm.DB
	dialect string
}

// NewManager opens a connection for cfg.Type. It does not migrate.
func NewManager(cfg Config) (*Manager, error) {
	dialect := cfg.Type
	if dialect == "" {
		dialect = DialectSQLite
	}

	var dialector gorm.Dialector
	switch dialect {
	case DialectSQLite:
		dsn, err := sqliteDSN(cfg)
		if err != nil {
			return nil, err
		}
		dialector = sqlite.Open(dsn)
	case DialectMySQL:
		dialector = mysql.Open(cfg.DSN)
	case DialectPostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, errors.Newf("unsupported database type %q", dialect).
			Component("datastore").
			Category(errors.CategoryConfig).
			Build()
	}

	logMode := gorm_logger.Silent
	if cfg.Debug {
		logMode = gorm_logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gorm_logger.Default.LogMode(logMode),
	})
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to open %s database: %w", dialect, err)).
			Component("datastore").
			Category(errors.CategoryStore).
			Build()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	switch {
	case dialect == DialectSQLite:
		// SQLite serializes writers; a single connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	case cfg.MaxOpenConns > 0:
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	return &Manager{db: db, dialect: dialect}, nil
}

// NewSQLiteManager opens a SQLite database under cfg.DataDir or cfg.Path.
func NewSQLiteManager(cfg Config) (*Manager, error) {
	cfg.Type = DialectSQLite
	return NewManager(cfg)
}

func sqliteDSN(cfg Config) (string, error) {
	path := cfg.Path
	if path == ":memory:" {
		return "file::memory:?cache=shared&_foreign_keys=ON", nil
	}
	if path == "" {
		if cfg.DataDir == "" {
			return "", errors.Newf("sqlite requires a path or data directory").
				Component("datastore").
				Category(errors.CategoryConfig).
				Build()
		}
		path = filepath.Join(cfg.DataDir, sqliteFileName)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return "", fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	return "file:" + path + "?_foreign_keys=ON&_busy_timeout=5000", nil
}

// Initialize creates or updates the schema.
func (m *Manager) Initialize() error {
	if err := m.db.AutoMigrate(entities.All()...); err != nil {
		return errors.New(fmt.Errorf("failed to migrate schema: %w", err)).
			Component("datastore").
			Category(errors.CategoryStore).
			Context("dialect", m.dialect).
			Build()
	}
	return nil
}

func (m *Manager) DB() *gorm.DB { return m.db }

func (m *Manager) Dialect() string { return m.dialect }

// Store returns the repositories bound to this connection.
func (m *Manager) Store() *repository.Store {
	return repository.NewStore(m.db)
}

// Ping checks connectivity.
func (m *Manager) Ping() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func (m *Manager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
