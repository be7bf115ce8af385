package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/tenetdb/tenet/internal/domain"
)

//go:embed schema.sql
var sqliteSchema string

type sqliteBackend struct {
	db     *sql.DB
	logger *zap.Logger
}

// openSQLite opens (creating if needed) a single-file database and applies the
// embedded schema. Safe to call on an existing database: schema statements are
// all IF NOT EXISTS.
func openSQLite(path string, logger *zap.Logger) (*sqliteBackend, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single writer keeps mutations serialized; SQLite locks whole-database
	// on write anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &sqliteBackend{db: db, logger: logger}, nil
}

func (b *sqliteBackend) stores() domain.Stores {
	return domain.Stores{
		Notes:   &sqNoteStore{db: b.db, logger: b.logger},
		Beliefs: &sqBeliefStore{db: b.db, logger: b.logger},
		Edges:   &sqEdgeStore{db: b.db},
		Signals: &sqSignalStore{db: b.db, logger: b.logger},
		Audit:   &sqAuditStore{db: b.db, logger: b.logger},
	}
}

// rowScanner is the common surface of *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("corrupt id %q: %w", s, err)
	}
	return id, nil
}
