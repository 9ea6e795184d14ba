// Package database provides the core functionality for creating and managing
// database connections in a clean, isolated manner.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/AtRiskMedia/formrelay-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/formrelay-go/pkg/config"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

// DB represents a wrapper around the standard SQL database connection.
type DB struct {
	*sql.DB
	UseTurso bool
}

// Config selects the backing store for the relay's relational log.
type Config struct {
	SQLitePath    string
	TursoEnabled  bool
	TursoDatabase string
	TursoToken    string
}

// ConfigFromEnv builds a store config from the process environment defaults.
func ConfigFromEnv() Config {
	return Config{
		SQLitePath:    config.SQLitePath,
		TursoEnabled:  config.TursoEnabled,
		TursoDatabase: config.TursoDatabase,
		TursoToken:    config.TursoToken,
	}
}

// Open establishes the backing connection, preferring Turso/libsql when
// configured and falling back to a local SQLite file otherwise.
func Open(cfg Config, logger *logging.ChanneledLogger) (*DB, error) {
	start := time.Now()

	if cfg.TursoEnabled && cfg.TursoDatabase != "" && cfg.TursoToken != "" {
		connStr := cfg.TursoDatabase + "?authToken=" + cfg.TursoToken
		conn, err := sql.Open("libsql", connStr)
		if err != nil {
			logger.Database().Error("Failed to open Turso connection", "error", err.Error())
			return nil, fmt.Errorf("turso connection failed: %w", err)
		}
		if err := conn.Ping(); err != nil {
			conn.Close()
			logger.Database().Error("Turso ping failed", "error", err.Error())
			return nil, fmt.Errorf("turso connection failed: %w", err)
		}
		applyPoolLimits(conn)
		logger.Database().Info("Database connection established", "driver", "libsql", "duration", time.Since(start))
		return &DB{DB: conn, UseTurso: true}, nil
	}

	dbDir := filepath.Dir(cfg.SQLitePath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", cfg.SQLitePath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		logger.Database().Error("Failed to open SQLite connection", "error", err.Error(), "path", cfg.SQLitePath)
		return nil, fmt.Errorf("sqlite connection failed: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		logger.Database().Error("SQLite ping failed", "error", err.Error(), "path", cfg.SQLitePath)
		return nil, fmt.Errorf("sqlite ping failed: %w", err)
	}
	applyPoolLimits(conn)

	logger.Database().Info("Database connection established", "driver", "sqlite3", "duration", time.Since(start))
	return &DB{DB: conn}, nil
}

func applyPoolLimits(conn *sql.DB) {
	conn.SetMaxOpenConns(config.DBMaxOpenConns)
	conn.SetMaxIdleConns(config.DBMaxIdleConns)
	conn.SetConnMaxLifetime(time.Duration(config.DBConnMaxLifetimeMinutes) * time.Minute)
	conn.SetConnMaxIdleTime(time.Duration(config.DBConnMaxIdleMinutes) * time.Minute)
}

// ConnectionInfo describes the active backing store for health reporting.
func (db *DB) ConnectionInfo() string {
	if db.UseTurso {
		return "Turso"
	}
	return "SQLite"
}
