// Package database provides GORM connection management and repositories for dashgate.
// SQLite is used for development and tests; PostgreSQL is reached through a pgx pool.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/turtacn/dashgate/internal/config"
	"github.com/turtacn/dashgate/internal/domain/models"
	"github.com/turtacn/dashgate/pkg/errors"
	"github.com/turtacn/dashgate/pkg/logger"
)

// DBConnection manages the database handle lifecycle.
type DBConnection struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	pool   *pgxpool.Pool
	config *config.DatabaseConfig
	logger logger.Logger
}

// NewDBConnection opens the configured database and verifies connectivity.
func NewDBConnection(ctx context.Context, cfg *config.DatabaseConfig, log logger.Logger) (*DBConnection, error) {
	if cfg == nil {
		return nil, errors.ErrInvalidConfig
	}

	log.Info(ctx, "Initializing database connection",
		logger.String("driver", cfg.Driver),
		logger.Fields{"max_conns": cfg.MaxConns, "min_conns": cfg.MinConns},
	)

	gormCfg := &gorm.Config{
		Logger:         newGormLogger(log),
		TranslateError: true,
	}

	conn := &DBConnection{config: cfg, logger: log}

	var err error
	switch cfg.Driver {
	case "postgres":
		conn.db, err = conn.openPostgres(ctx, gormCfg)
	case "sqlite", "":
		conn.db, err = gorm.Open(sqlite.Open(cfg.DSN), gormCfg)
	default:
		err = fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		log.Error(ctx, "Failed to open database", err, logger.String("driver", cfg.Driver))
		conn.closePool()
		return nil, errors.ErrDatabase.WithError(err)
	}

	if conn.sqlDB, err = conn.db.DB(); err != nil {
		conn.closePool()
		return nil, errors.ErrDatabase.WithError(err)
	}
	if cfg.Driver != "postgres" {
		// SQLite allows a single writer.
		conn.sqlDB.SetMaxOpenConns(1)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := conn.AutoMigrate(ctx); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	log.Info(ctx, "Database connection initialized successfully", logger.String("driver", cfg.Driver))
	return conn, nil
}

// openPostgres builds a pgx pool and hands it to GORM.
func (c *DBConnection) openPostgres(ctx context.Context, gormCfg *gorm.Config) (*gorm.DB, error) {
	poolConfig, err := pgxpool.ParseConfig(c.config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database dsn: %w", err)
	}
	if c.config.MaxConns > 0 {
		poolConfig.MaxConns = c.config.MaxConns
	}
	if c.config.MinConns > 0 {
		poolConfig.MinConns = c.config.MinConns
	}
	if c.config.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = c.config.MaxConnLifetime
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	c.pool = pool

	return gorm.Open(postgres.New(postgres.Config{Conn: stdlib.OpenDBFromPool(pool)}), gormCfg)
}

// DB returns the GORM handle.
func (c *DBConnection) DB() *gorm.DB {
	return c.db
}

// AutoMigrate creates or updates the schema of all persisted entities.
func (c *DBConnection) AutoMigrate(ctx context.Context) error {
	err := c.db.WithContext(ctx).AutoMigrate(
		&models.User{},
		&models.Account{},
		&models.UserProfile{},
		&models.IntegrationToken{},
		&models.Task{},
		&models.SecurityEvent{},
	)
	if err != nil {
		c.logger.Error(ctx, "Schema migration failed", err)
		return errors.ErrDatabase.WithError(err)
	}
	return nil
}

// Ping verifies database connectivity and responsiveness.
func (c *DBConnection) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	if err := c.sqlDB.PingContext(pingCtx); err != nil {
		c.logger.Error(ctx, "Database ping failed", err)
		return errors.ErrDatabase.WithError(err)
	}

	if latency := time.Since(start); latency > 100*time.Millisecond {
		c.logger.Warn(ctx, "High database latency detected", logger.Int64("latency_ms", latency.Milliseconds()))
	}
	return nil
}

// HealthCheck reports connectivity and pool statistics.
func (c *DBConnection) HealthCheck(ctx context.Context) (map[string]interface{}, error) {
	if err := c.Ping(ctx); err != nil {
		return nil, err
	}

	stats := c.sqlDB.Stats()
	info := map[string]interface{}{
		"status":           "healthy",
		"driver":           c.config.Driver,
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
	}
	if c.pool != nil {
		ps := c.pool.Stat()
		info["pool_total_conns"] = ps.TotalConns()
		info["pool_idle_conns"] = ps.IdleConns()
		info["pool_max_conns"] = ps.MaxConns()
	}
	return info, nil
}

// Close releases the database handle and the pgx pool.
func (c *DBConnection) Close() error {
	var err error
	if c.sqlDB != nil {
		err = c.sqlDB.Close()
	}
	c.closePool()
	c.logger.Info(context.Background(), "Database connection closed")
	return err
}

func (c *DBConnection) closePool() {
	if c.pool != nil {
		c.pool.Close()
		c.pool = nil
	}
}
