package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
)

const schema = `
create table if not exists recognitions (
  id                  text primary key,
  session_id          text not null,
  engine              text not null,
  model               text not null,
  image_sha256        text not null,
  mime_type           text not null,
  plate_number        text not null,
  confidence          text not null,
  vehicle_description text not null,
  region              text not null default '',
  result_json         jsonb not null,
  created_at          timestamptz not null default now()
);
create index if not exists recognitions_created_at_idx on recognitions (created_at desc);`

// Open connects to Postgres through the pgx stdlib driver, checks the connection
// and creates the recognitions table when missing.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	// a handful of writes per analysis; the pool stays small
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(1 * time.Hour)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db.Ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}
