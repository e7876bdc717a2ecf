// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database — it lives inside the Go binary as a single
// file. No separate database server to install, configure, or manage.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which needs a C compiler and makes
// cross-compilation painful. modernc.org/sqlite is a pure Go translation of
// the SQLite sources — works everywhere Go works.
//
// ATOMICITY NOTE:
// The credit ledger and the purchase/presentation state transitions rely on
// single guarded UPDATE statements (UPDATE ... WHERE <precondition>). SQLite
// executes each statement atomically, so a precondition that no longer holds
// means zero rows affected — that is how a losing racer finds out it lost,
// whether the race came from another goroutine or another process.
package sqlite

import (
	"database/sql"
	"fmt"

	// Blank import: the driver registers itself with database/sql under the
	// name "sqlite" in its init function.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and owns the schema. The per-entity
// repositories (Users, Presentations, Purchases) share this single pool —
// splitting them into separate types keeps each interface's method set
// natural (every repository gets its own Create, GetByID, and so on).
type DB struct {
	conn *sql.DB
}

// Users returns the account/ledger repository backed by this database.
func (db *DB) Users() *UserRepo {
	return &UserRepo{conn: db.conn}
}

// Presentations returns the presentation job repository.
func (db *DB) Presentations() *PresentationRepo {
	return &PresentationRepo{conn: db.conn}
}

// Purchases returns the payment intent repository.
func (db *DB) Purchases() *PurchaseRepo {
	return &PurchaseRepo{conn: db.conn}
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/slidex.db" → file-based database (persistent)
//   - ":memory:"       → in-memory database (great for tests, lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Ping forces an immediate connection so a bad path or permissions issue
	// surfaces here rather than on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode allows concurrent reads while a write is in flight — needed
	// for a web server where many requests hit the DB at once.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite. Presentations and purchases
	// reference users, so turn referential integrity on.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps this safe to
// run on every startup.
func (db *DB) migrate() error {
	// users: the credits column carries the non-negativity invariant. The
	// CHECK constraint is a backstop — the guarded UPDATE in DebitCredits
	// should never attempt a negative write in the first place.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL DEFAULT '',
			email         TEXT NOT NULL UNIQUE,
			avatar_url    TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			credits       INTEGER NOT NULL DEFAULT 10 CHECK (credits >= 0),
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS presentations (
			id               TEXT PRIMARY KEY,
			user_id          TEXT NOT NULL REFERENCES users(id),
			title            TEXT NOT NULL,
			prompt           TEXT NOT NULL,
			slide_count      INTEGER NOT NULL,
			template         TEXT NOT NULL,
			content          TEXT NOT NULL DEFAULT '',
			status           TEXT NOT NULL DEFAULT 'processing',
			file_url         TEXT NOT NULL DEFAULT '',
			storage_path     TEXT NOT NULL DEFAULT '',
			pdf_file_url     TEXT NOT NULL DEFAULT '',
			pdf_storage_path TEXT NOT NULL DEFAULT '',
			created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_presentations_user_id ON presentations(user_id);
		CREATE INDEX IF NOT EXISTS idx_presentations_created_at ON presentations(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating presentations table: %w", err)
	}

	// purchases: stripe_session_id is UNIQUE — the session id is the
	// idempotency key for webhook deliveries.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS purchases (
			id                TEXT PRIMARY KEY,
			user_id           TEXT NOT NULL REFERENCES users(id),
			credits           INTEGER NOT NULL,
			amount            TEXT NOT NULL,
			status            TEXT NOT NULL DEFAULT 'pending',
			stripe_session_id TEXT NOT NULL UNIQUE,
			completed_at      DATETIME,
			created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_purchases_user_id ON purchases(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating purchases table: %w", err)
	}

	return nil
}
