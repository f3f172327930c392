// internal/storage/sqlite.go
package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: `
    PRAGMA foreign_keys = ON;

    CREATE TABLE IF NOT EXISTS sizes (
        size TEXT PRIMARY KEY,
        position INTEGER NOT NULL,
        price REAL NOT NULL,
        max_ingredients INTEGER NOT NULL
    );

    CREATE TABLE IF NOT EXISTS bases (
        base TEXT PRIMARY KEY,
        position INTEGER NOT NULL
    );

    CREATE TABLE IF NOT EXISTS ingredients (
        name TEXT PRIMARY KEY,
        position INTEGER NOT NULL,
        price REAL NOT NULL,
        quantity INTEGER CHECK (quantity IS NULL OR quantity >= 0),
        requires TEXT
    );

    CREATE TABLE IF NOT EXISTS incompatibilities (
        ingredient1 TEXT NOT NULL REFERENCES ingredients(name),
        ingredient2 TEXT NOT NULL REFERENCES ingredients(name),
        PRIMARY KEY (ingredient1, ingredient2)
    );

    CREATE TABLE IF NOT EXISTS orders (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        user_id INTEGER NOT NULL,
        date TEXT NOT NULL,
        price REAL NOT NULL,
        size TEXT NOT NULL,
        base TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS order_ingredients (
        order_id INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
        position INTEGER NOT NULL,
        ingredient TEXT NOT NULL,
        PRIMARY KEY (order_id, position)
    );

    CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id);
    `,
}

// NewSQLiteStorage opens (or creates) the database file at dbPath.
// All access goes through one connection, so transactions never interleave.
func NewSQLiteStorage(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = "dish-order.db"
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	storage := &Storage{db: db, dialect: sqliteDialect}
	if err := storage.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}
