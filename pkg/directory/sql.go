package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Dialect names a supported SQL backend. The values double as
// database/sql driver names.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

// ParseDialect validates a configured dialect name
func ParseDialect(name string) (Dialect, error) {
	switch Dialect(strings.ToLower(name)) {
	case DialectPostgres, "postgresql":
		return DialectPostgres, nil
	case DialectSQLite, "sqlite":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database dialect %q (must be postgres or sqlite3)", name)
	}
}

// DBConfig holds database connection settings
type DBConfig struct {
	Dialect     Dialect
	DSN         string
	MaxConns    int
	MaxIdle     int
	MaxLifetime time.Duration
	Timeout     time.Duration
}

// OpenDB opens and pings a connection pool for cfg
func OpenDB(ctx context.Context, cfg DBConfig) (*sql.DB, error) {
	db, err := sql.Open(string(cfg.Dialect), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", cfg.Dialect, err)
	}

	if cfg.Dialect == DialectSQLite {
		// SQLite allows a single writer; one connection also keeps an
		// in-memory database alive and shared.
		db.SetMaxOpenConns(1)
	} else {
		if cfg.MaxConns > 0 {
			db.SetMaxOpenConns(cfg.MaxConns)
		}
		if cfg.MaxIdle > 0 {
			db.SetMaxIdleConns(cfg.MaxIdle)
		}
		if cfg.MaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.MaxLifetime)
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", cfg.Dialect, err)
	}

	return db, nil
}

// SQLStore is a Store over a sqlx handle
type SQLStore struct {
	db     *sqlx.DB
	txOpts *sql.TxOptions
}

// NewSQLStore wraps db. PostgreSQL transactions run at READ COMMITTED;
// SQLite serializes writers itself.
func NewSQLStore(db *sql.DB, dialect Dialect) (*SQLStore, error) {
	s := &SQLStore{}
	switch dialect {
	case DialectPostgres:
		s.txOpts = &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	case DialectSQLite:
	default:
		return nil, fmt.Errorf("unsupported database dialect %q", dialect)
	}
	s.db = sqlx.NewDb(db, string(dialect))
	return s, nil
}

// DB returns the underlying pool
func (s *SQLStore) DB() *sql.DB {
	return s.db.DB
}

// WithTx implements Store
func (s *SQLStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, s.txOpts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, &sqlTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const adminColumns = "id, email, is_deleted, created_at, updated_at"

// sqlTx writes queries with ? placeholders; the handle rebinds them for
// the driver
type sqlTx struct {
	tx *sqlx.Tx
}

func (t *sqlTx) FindByEmail(ctx context.Context, email string) (*Admin, error) {
	return t.get(ctx, "SELECT "+adminColumns+" FROM admins WHERE lower(email) = ?", email)
}

func (t *sqlTx) FindByID(ctx context.Context, id int64) (*Admin, error) {
	return t.get(ctx, "SELECT "+adminColumns+" FROM admins WHERE id = ?", id)
}

func (t *sqlTx) get(ctx context.Context, query string, arg interface{}) (*Admin, error) {
	var a Admin
	if err := t.tx.GetContext(ctx, &a, t.tx.Rebind(query), arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan admin: %w", err)
	}
	return &a, nil
}

func (t *sqlTx) Insert(ctx context.Context, admin *Admin) error {
	err := t.tx.QueryRowxContext(ctx,
		t.tx.Rebind("INSERT INTO admins (email, is_deleted, created_at, updated_at) VALUES (?, ?, ?, ?) RETURNING id"),
		admin.Email, admin.IsDeleted, admin.CreatedAt.UTC(), admin.UpdatedAt.UTC(),
	).Scan(&admin.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailConflict
		}
		return fmt.Errorf("insert admin: %w", err)
	}
	return nil
}

func (t *sqlTx) Update(ctx context.Context, admin *Admin) error {
	res, err := t.tx.ExecContext(ctx,
		t.tx.Rebind("UPDATE admins SET email = ?, is_deleted = ?, updated_at = ? WHERE id = ?"),
		admin.Email, admin.IsDeleted, admin.UpdatedAt.UTC(), admin.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailConflict
		}
		return fmt.Errorf("update admin %d: %w", admin.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update admin %d: %w", admin.ID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *sqlTx) List(ctx context.Context) ([]*Admin, error) {
	var admins []*Admin
	if err := t.tx.SelectContext(ctx, &admins, "SELECT "+adminColumns+" FROM admins ORDER BY id"); err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return admins, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
