package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type poolSettings struct {
	maxOpenConns    int
	maxIdleConns    int
	connMaxLifetime time.Duration
	connMaxIdleTime time.Duration
	connTimeout     time.Duration
}

func defaultPoolSettings() poolSettings {
	return poolSettings{
		maxOpenConns:    25,
		maxIdleConns:    25,
		connMaxLifetime: 30 * time.Minute,
		connMaxIdleTime: 5 * time.Minute,
		connTimeout:     5 * time.Second,
	}
}

// Option настраивает пул подключений.
type Option func(*poolSettings)

// WithPoolSize задаёт лимиты открытых и простаивающих подключений.
func WithPoolSize(open, idle int) Option {
	return func(p *poolSettings) {
		if open > 0 {
			p.maxOpenConns = open
		}
		if idle > 0 {
			p.maxIdleConns = idle
		}
	}
}

// WithConnTimeout задаёт таймаут проверки подключения.
func WithConnTimeout(d time.Duration) Option {
	return func(p *poolSettings) {
		if d > 0 {
			p.connTimeout = d
		}
	}
}

// Store оборачивает пул подключений к PostgreSQL и хранит
// репозитории поверх него.
type Store struct {
	db          *sql.DB
	connTimeout time.Duration
}

// Open открывает пул подключений и проверяет доступность базы.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	settings := defaultPoolSettings()
	for _, opt := range opts {
		opt(&settings)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(settings.maxOpenConns)
	db.SetMaxIdleConns(settings.maxIdleConns)
	db.SetConnMaxLifetime(settings.connMaxLifetime)
	db.SetConnMaxIdleTime(settings.connMaxIdleTime)

	store := &Store{db: db, connTimeout: settings.connTimeout}
	if err := store.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// DB возвращает raw SQL DB, когда нужен низкоуровневый доступ.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping проверяет доступность подключения.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	pingCtx, cancel := context.WithTimeout(ctx, s.connTimeout)
	defer cancel()
	if err := s.db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// EnsureSchema применяет все up-миграции.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

// Close закрывает подключение к БД.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
