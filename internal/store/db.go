package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

// Dialect captures the few SQL differences between the supported backends.
type Dialect struct {
	Name string
	// Order is the column giving insertion order.
	Order      string
	driver     string
	goose      goose.Dialect
	migrations string
	numbered   bool
}

var (
	SQLite = Dialect{
		Name:       "sqlite",
		Order:      "rowid",
		driver:     "sqlite",
		goose:      goose.DialectSQLite3,
		migrations: "migrations/sqlite",
	}
	Postgres = Dialect{
		Name:       "postgres",
		Order:      "seq",
		driver:     "pgx",
		goose:      goose.DialectPostgres,
		migrations: "migrations/postgres",
		numbered:   true,
	}
)

// Rebind rewrites '?' placeholders into the dialect's bind syntax.
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// DB wraps sql.DB together with the dialect it speaks.
type DB struct {
	Client  *sql.DB
	Dialect Dialect
}

// DialectFor picks postgres for postgres:// URLs and sqlite for anything else.
func DialectFor(url string) Dialect {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return Postgres
	}
	return SQLite
}

// NewDB opens the database behind url, verifies connectivity and applies migrations.
func NewDB(ctx context.Context, url string) (*DB, error) {
	d := DialectFor(url)

	dsn := url
	if d == SQLite {
		var err error
		if dsn, err = sqliteDSN(url); err != nil {
			return nil, err
		}
	}

	client, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if d == SQLite {
		// one writer at a time; also keeps ":memory:" on a single database
		client.SetMaxOpenConns(1)
	} else {
		client.SetMaxOpenConns(10)
		client.SetMaxIdleConns(5)
		client.SetConnMaxLifetime(time.Hour)
	}

	db := &DB{Client: client, Dialect: d}
	if err := client.PingContext(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Migrate applies the embedded migrations for the dialect.
func (d *DB) Migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations, d.Dialect.migrations)
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(d.Dialect.goose, d.Client, fsys)
	if err != nil {
		return err
	}
	_, err = provider.Up(ctx)
	return err
}

// Ping reports whether the database answers.
func (d *DB) Ping(ctx context.Context) error {
	if d == nil || d.Client == nil {
		return fmt.Errorf("db not initialised")
	}
	return d.Client.PingContext(ctx)
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}

func sqliteDSN(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create db dir: %w", err)
		}
	}
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", nil
}
