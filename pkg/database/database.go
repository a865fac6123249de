package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"commsense_backend/internal/config"
	"commsense_backend/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	ErrNotReady = errors.New("database handle is not ready")
	ErrClosed   = errors.New("database handle is closed")
)

type State int

const (
	StateInit State = iota
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Handle owns one connection pool. It moves from init to ready on Open and
// from ready to closed on Close; it never goes back.
type Handle struct {
	cfg config.DatabaseConfig

	mu    sync.RWMutex
	state State
	db    *gorm.DB
}

func NewHandle(cfg config.DatabaseConfig) *Handle {
	return &Handle{cfg: cfg}
}

func dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case config.DriverMySQL, "":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.DBName,
			cfg.Charset,
			cfg.ParseTime,
		)
		return mysql.Open(dsn), nil
	case config.DriverPostgres:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
		return postgres.Open(dsn), nil
	case config.DriverSQLite:
		return sqlite.Open(cfg.Path), nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

func logLevel(s string) logger.LogLevel {
	switch s {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	}
	return logger.Warn
}

// Open connects and verifies the connection.
func (h *Handle) Open(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.state {
	case StateReady:
		return nil
	case StateClosed:
		return ErrClosed
	}

	d, err := dialector(h.cfg)
	if err != nil {
		return err
	}
	db, err := gorm.Open(d, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel(h.cfg.LogLevel)),
	})
	if err != nil {
		return fmt.Errorf("open %s database: %w", h.cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if h.cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(h.cfg.MaxOpenConns)
	}
	if h.cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(h.cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return fmt.Errorf("ping %s database: %w", h.cfg.Driver, err)
	}

	h.db = db
	h.state = StateReady
	return nil
}

// DB returns the pool while the handle is ready.
func (h *Handle) DB() (*gorm.DB, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	switch h.state {
	case StateReady:
		return h.db, nil
	case StateClosed:
		return nil, ErrClosed
	}
	return nil, ErrNotReady
}

func (h *Handle) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

func (h *Handle) Ping(ctx context.Context) error {
	db, err := h.DB()
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Migrate creates or updates every table.
func (h *Handle) Migrate() error {
	db, err := h.DB()
	if err != nil {
		return err
	}
	return db.AutoMigrate(model.All()...)
}

// Close releases the pool. Closing twice is a no-op.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == StateClosed {
		return nil
	}
	prev := h.state
	h.state = StateClosed
	if prev != StateReady {
		return nil
	}

	sqlDB, err := h.db.DB()
	h.db = nil
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
