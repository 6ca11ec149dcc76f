package postgres

import (
	// Go Internal Packages
	"context"
	"database/sql"
	"fmt"
	"time"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL DEFAULT '',
	balance       BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
	bonus_balance BIGINT NOT NULL DEFAULT 0,
	pix_key       TEXT NOT NULL DEFAULT '',
	is_admin      BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS transactions (
	request_number TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL REFERENCES users(id),
	gateway_id     TEXT UNIQUE,
	method         TEXT NOT NULL,
	amount         BIGINT NOT NULL,
	status         TEXT NOT NULL,
	qr_code        TEXT NOT NULL DEFAULT '',
	qr_code_image  TEXT NOT NULL DEFAULT '',
	barcode        TEXT NOT NULL DEFAULT '',
	digitable_line TEXT NOT NULL DEFAULT '',
	pix_key        TEXT NOT NULL DEFAULT '',
	due_date       TIMESTAMPTZ,
	processed      BOOLEAN NOT NULL DEFAULT FALSE,
	effect_applied BOOLEAN NOT NULL DEFAULT FALSE,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS transactions_user_created ON transactions (user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS transactions_status_created ON transactions (status, created_at);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Connect opens the database, verifies the connection and creates missing tables.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("error creating schema: %w", err)
	}
	return db, nil
}
