package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Схема живёт в sql/migrations парами NNNN_name.{up,down}.sql. Применение
// идёт под advisory lock, чтобы несколько инстансов сервиса не мигрировали
// базу одновременно.

//go:embed sql/migrations/*.sql
var migrationsFS embed.FS

const (
	schemaLockKey = int64(20260214)
	lockTimeout   = 5 * time.Second

	ensureVersionsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
)

type schemaChange struct {
	version int64
	name    string
	up      string
	down    string
}

func (c schemaChange) label() string {
	return fmt.Sprintf("%04d_%s", c.version, c.name)
}

// MigrateUp применяет недостающие миграции; steps=0 означает все.
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	changes, err := loadSchemaChanges(migrationsFS)
	if err != nil {
		return err
	}

	return s.withSchemaLock(ctx, func(conn *sql.Conn) error {
		done, err := appliedVersions(ctx, conn)
		if err != nil {
			return err
		}

		applied := 0
		for _, change := range changes {
			if done[change.version] {
				continue
			}
			err := inTx(ctx, conn, "apply "+change.label(), func(tx *sql.Tx) error {
				if _, err := tx.ExecContext(ctx, change.up); err != nil {
					return err
				}
				_, err := tx.ExecContext(ctx,
					`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`,
					change.version, change.name)
				return err
			})
			if err != nil {
				return err
			}
			applied++
			if steps > 0 && applied >= steps {
				break
			}
		}
		return nil
	})
}

// MigrateDown откатывает steps последних миграций; steps<=0 означает одну.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = 1
	}

	changes, err := loadSchemaChanges(migrationsFS)
	if err != nil {
		return err
	}
	byVersion := make(map[int64]schemaChange, len(changes))
	for _, change := range changes {
		byVersion[change.version] = change
	}

	return s.withSchemaLock(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx,
			`SELECT version FROM schema_migrations ORDER BY version DESC LIMIT $1`, steps)
		if err != nil {
			return fmt.Errorf("query applied migrations: %w", err)
		}
		var latest []int64
		for rows.Next() {
			var version int64
			if err := rows.Scan(&version); err != nil {
				rows.Close()
				return fmt.Errorf("scan applied migration: %w", err)
			}
			latest = append(latest, version)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate applied migrations: %w", err)
		}

		for _, version := range latest {
			change, ok := byVersion[version]
			if !ok {
				return fmt.Errorf("cannot rollback unknown migration version %d", version)
			}
			err := inTx(ctx, conn, "revert "+change.label(), func(tx *sql.Tx) error {
				if _, err := tx.ExecContext(ctx, change.down); err != nil {
					return err
				}
				_, err := tx.ExecContext(ctx,
					`DELETE FROM schema_migrations WHERE version = $1`, change.version)
				return err
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// MigrationStatus возвращает максимальную применённую версию и число
// применённых миграций.
func (s *Store) MigrationStatus(ctx context.Context) (int64, int, error) {
	if s == nil || s.db == nil {
		return 0, 0, fmt.Errorf("postgres store is not initialized")
	}

	queryCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(queryCtx, ensureVersionsTable); err != nil {
		return 0, 0, fmt.Errorf("ensure migration table: %w", err)
	}

	var (
		version int64
		count   int
	)
	err := s.db.QueryRowContext(queryCtx,
		`SELECT COALESCE(MAX(version), 0), COUNT(*) FROM schema_migrations`,
	).Scan(&version, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("query migration status: %w", err)
	}
	return version, count, nil
}

// withSchemaLock берёт advisory lock, гарантирует таблицу версий и вызывает fn
// на том же соединении.
func (s *Store) withSchemaLock(ctx context.Context, fn func(conn *sql.Conn) error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	if _, err := conn.ExecContext(lockCtx, `SELECT pg_advisory_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, schemaLockKey)
	}()

	if _, err := conn.ExecContext(ctx, ensureVersionsTable); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	return fn(conn)
}

func inTx(ctx context.Context, conn *sql.Conn, label string, fn func(tx *sql.Tx) error) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx for %s: %w", label, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%s: %w", label, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", label, err)
	}
	return nil
}

func appliedVersions(ctx context.Context, conn *sql.Conn) (map[int64]bool, error) {
	rows, err := conn.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	done := make(map[int64]bool)
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		done[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return done, nil
}

// loadSchemaChanges читает embed FS и собирает пары up/down по версиям.
func loadSchemaChanges(fsys fs.FS) ([]schemaChange, error) {
	files, err := fs.Glob(fsys, "sql/migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no migration files found")
	}

	byVersion := make(map[int64]*schemaChange)
	for _, file := range files {
		base := path.Base(file)
		version, name, direction, err := parseChangeName(base)
		if err != nil {
			return nil, err
		}

		raw, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", base, err)
		}
		body := strings.TrimSpace(string(raw))
		if body == "" {
			return nil, fmt.Errorf("migration file is empty: %s", base)
		}

		change, ok := byVersion[version]
		if !ok {
			change = &schemaChange{version: version, name: name}
			byVersion[version] = change
		} else if change.name != name {
			return nil, fmt.Errorf("migration name mismatch for version %d: %s vs %s", version, change.name, name)
		}

		switch direction {
		case "up":
			if change.up != "" {
				return nil, fmt.Errorf("duplicate up migration for version %d", version)
			}
			change.up = body
		case "down":
			if change.down != "" {
				return nil, fmt.Errorf("duplicate down migration for version %d", version)
			}
			change.down = body
		}
	}

	changes := make([]schemaChange, 0, len(byVersion))
	for _, change := range byVersion {
		if change.up == "" || change.down == "" {
			return nil, fmt.Errorf("migration %s must have both up and down files", change.label())
		}
		changes = append(changes, *change)
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].version < changes[j].version })
	return changes, nil
}

// parseChangeName разбирает имя вида NNNN_name.up.sql / NNNN_name.down.sql.
func parseChangeName(base string) (int64, string, string, error) {
	stem, ok := strings.CutSuffix(base, ".sql")
	if !ok {
		return 0, "", "", fmt.Errorf("invalid migration file name: %s", base)
	}

	var direction string
	switch {
	case strings.HasSuffix(stem, ".up"):
		direction = "up"
		stem = strings.TrimSuffix(stem, ".up")
	case strings.HasSuffix(stem, ".down"):
		direction = "down"
		stem = strings.TrimSuffix(stem, ".down")
	default:
		return 0, "", "", fmt.Errorf("invalid migration file name: %s", base)
	}

	digits, name, ok := strings.Cut(stem, "_")
	if !ok || name == "" {
		return 0, "", "", fmt.Errorf("invalid migration file name: %s", base)
	}
	version, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || version <= 0 {
		return 0, "", "", fmt.Errorf("invalid migration version in %s", base)
	}
	return version, name, direction, nil
}
