package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect is the SQL flavour behind a *sql.DB.
type Dialect string

const (
	Postgres Dialect = "pgx"
	SQLite   Dialect = "sqlite"
)

// DialectFor picks postgres for postgres:// URLs and SQLite for anything else,
// which is then treated as a file path (or ":memory:").
func DialectFor(dsn string) Dialect {
	d := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(d, "postgres://") || strings.HasPrefix(d, "postgresql://") {
		return Postgres
	}
	return SQLite
}

// Open connects to dsn and creates the schema if needed.
func Open(ctx context.Context, dsn string) (*sql.DB, Dialect, error) {
	dialect := DialectFor(dsn)
	path := strings.TrimPrefix(strings.TrimSpace(dsn), "sqlite://")

	var (
		db  *sql.DB
		err error
	)
	if dialect == Postgres {
		db, err = sql.Open(string(Postgres), dsn)
	} else {
		db, err = sql.Open(string(SQLite), path)
	}
	if err != nil {
		return nil, "", fmt.Errorf("open database: %w", err)
	}
	if dialect == SQLite {
		// one connection keeps ":memory:" a single database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("ping database: %w", err)
	}
	if err := migrate(ctx, db, dialect); err != nil {
		db.Close()
		return nil, "", err
	}
	return db, dialect, nil
}

func migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	schema := sqliteSchema
	if d == Postgres {
		schema = postgresSchema
	}
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

const sqliteSchema = `
create table if not exists uploads (
  id integer primary key autoincrement,
  user_id text,
  file_name text,
  file_path text,
  created_at text not null
);
create table if not exists nutrition_records (
  id integer primary key autoincrement,
  upload_id integer not null references uploads(id) on delete cascade,
  food_label text not null,
  confidence real not null,
  calories integer not null,
  proteins real not null,
  carbs real not null,
  fats real not null,
  created_at text not null
);
create index if not exists idx_nutrition_records_upload on nutrition_records(upload_id)`

const postgresSchema = `
create table if not exists uploads (
  id bigserial primary key,
  user_id text,
  file_name text,
  file_path text,
  created_at text not null
);
create table if not exists nutrition_records (
  id bigserial primary key,
  upload_id bigint not null references uploads(id) on delete cascade,
  food_label text not null,
  confidence double precision not null,
  calories integer not null,
  proteins double precision not null,
  carbs double precision not null,
  fats double precision not null,
  created_at text not null
);
create index if not exists idx_nutrition_records_upload on nutrition_records(upload_id)`

// rebind rewrites ? placeholders to $n for postgres.
func rebind(d Dialect, q string) string {
	if d != Postgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
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
