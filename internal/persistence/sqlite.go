package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLite wraps a database/sql handle on the modernc.org/sqlite driver.
type SQLite struct {
	DB *sql.DB
}

// NewSQLite opens the database at path. The file itself is created on first
// use. An empty path disables the store and returns a nil handle.
//
// The pool holds a single connection so writes from this process are
// serialised; busy_timeout makes writers from other processes wait instead of
// failing with SQLITE_BUSY.
func NewSQLite(path string, logger *zap.Logger) (*SQLite, error) {
	if path == "" {
		logger.Info("SQLITE_DB_PATH not provided; sqlite enrollment store disabled")
		return nil, nil
	}

	dsn := "file:" + filepath.Clean(path) + "?_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	logger.Info("sqlite enrollment store configured", zap.String("path", path))
	return &SQLite{DB: db}, nil
}

// Ping verifies the database file can be opened.
func (s *SQLite) Ping(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("sqlite not configured")
	}
	return s.DB.PingContext(ctx)
}

// Close releases the handle.
func (s *SQLite) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}
