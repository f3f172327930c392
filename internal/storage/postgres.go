// internal/storage/postgres.go
package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const defaultPostgresDSN = "postgres://localhost/dishorder?sslmode=disable"

var postgresDialect = dialect{
	name:       "postgres",
	positional: true,
	nativeTime: true,
	schema: `
    CREATE TABLE IF NOT EXISTS sizes (
        size TEXT PRIMARY KEY,
        position INTEGER NOT NULL,
        price DOUBLE PRECISION NOT NULL,
        max_ingredients INTEGER NOT NULL
    );

    CREATE TABLE IF NOT EXISTS bases (
        base TEXT PRIMARY KEY,
        position INTEGER NOT NULL
    );

    CREATE TABLE IF NOT EXISTS ingredients (
        name TEXT PRIMARY KEY,
        position INTEGER NOT NULL,
        price DOUBLE PRECISION NOT NULL,
        quantity INTEGER CHECK (quantity IS NULL OR quantity >= 0),
        requires TEXT
    );

    CREATE TABLE IF NOT EXISTS incompatibilities (
        ingredient1 TEXT NOT NULL REFERENCES ingredients(name),
        ingredient2 TEXT NOT NULL REFERENCES ingredients(name),
        PRIMARY KEY (ingredient1, ingredient2)
    );

    CREATE TABLE IF NOT EXISTS orders (
        id BIGSERIAL PRIMARY KEY,
        user_id BIGINT NOT NULL,
        date TIMESTAMPTZ NOT NULL,
        price DOUBLE PRECISION NOT NULL,
        size TEXT NOT NULL,
        base TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS order_ingredients (
        order_id BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
        position INTEGER NOT NULL,
        ingredient TEXT NOT NULL,
        PRIMARY KEY (order_id, position)
    );

    CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id);
    `,
}

// NewPostgresStorage connects through the pgx database/sql driver. Concurrent
// orders are arbitrated by the row lock the conditional stock update takes.
func NewPostgresStorage(dsn string) (*Storage, error) {
	if dsn == "" {
		dsn = defaultPostgresDSN
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	storage := &Storage{db: db, dialect: postgresDialect}
	if err := storage.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}
