package store

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tenetdb/tenet/internal/domain"
)

// NewPostgres wires the postgres implementations of every store over a shared
// pool. Schema setup lives in migrations/ and is applied out of band.
func NewPostgres(db *pgxpool.Pool, logger *zap.Logger) domain.Stores {
	return domain.Stores{
		Notes:   &pgNoteStore{db: db, logger: logger},
		Beliefs: &pgBeliefStore{db: db, logger: logger},
		Edges:   &pgEdgeStore{db: db},
		Signals: &pgSignalStore{db: db, logger: logger},
		Audit:   &pgAuditStore{db: db, logger: logger},
	}
}
