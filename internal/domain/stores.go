package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NoteFilter narrows a note listing. Limit must be positive; offset is the
// cursor for batch iteration.
type NoteFilter struct {
	Tag      string
	Entity   string
	SourceID uuid.UUID
	Limit    int
	Offset   int
}

// BeliefFilter narrows a belief listing.
type BeliefFilter struct {
	Status *BeliefStatus
	Limit  int
	Offset int
}

type NoteStore interface {
	CreateNote(ctx context.Context, n *Note) error
	GetNote(ctx context.Context, id uuid.UUID) (*Note, error)
	ListNotes(ctx context.Context, f NoteFilter) ([]Note, error)
	CountNotes(ctx context.Context) (int, error)

	CreateSource(ctx context.Context, s *Source) error
	GetSource(ctx context.Context, id uuid.UUID) (*Source, error)
	UpdateSourceTrust(ctx context.Context, id uuid.UUID, label TrustLabel) error
}

type BeliefStore interface {
	Create(ctx context.Context, b *Belief) error
	GetByID(ctx context.Context, id uuid.UUID) (*Belief, error)
	List(ctx context.Context, f BeliefFilter) ([]Belief, error)
	CountByStatus(ctx context.Context, status BeliefStatus) (int, error)
	// UpdateStatusAndConfidence applies both fields in one atomic write so a
	// belief is never observable with a new status and stale confidence.
	UpdateStatusAndConfidence(ctx context.Context, id uuid.UUID, status BeliefStatus, confidence float64) error
	UpdateConfidence(ctx context.Context, id uuid.UUID, confidence float64) error
	UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error
}

// EdgeDirection selects which endpoint of an edge to match.
type EdgeDirection string

const (
	EdgeOutgoing EdgeDirection = "outgoing"
	EdgeIncoming EdgeDirection = "incoming"
	EdgeBoth     EdgeDirection = "both"
)

type EdgeStore interface {
	Create(ctx context.Context, e *Edge) error
	Exists(ctx context.Context, fromType EntityType, fromID uuid.UUID, rel RelType, toType EntityType, toID uuid.UUID) (bool, error)
	ListByEntity(ctx context.Context, t EntityType, id uuid.UUID, dir EdgeDirection, rel *RelType) ([]Edge, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type SignalStore interface {
	Create(ctx context.Context, s *Signal) error
	// ListPending returns unprocessed, non-dead signals in creation order.
	ListPending(ctx context.Context, types []string, limit int) ([]Signal, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error
	// IncrementAttempts bumps the retry counter and returns the new value.
	IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error)
	MarkDeadLettered(ctx context.Context, id uuid.UUID, at time.Time) error
	ListDeadLettered(ctx context.Context, limit int) ([]Signal, error)
}

type AuditStore interface {
	Append(ctx context.Context, e *AuditEntry) error
	ListByEntity(ctx context.Context, entityID uuid.UUID, limit, offset int) ([]AuditEntry, error)
}

// Stores bundles one backend's implementations behind a single handle.
type Stores struct {
	Notes   NoteStore
	Beliefs BeliefStore
	Edges   EdgeStore
	Signals SignalStore
	Audit   AuditStore
}

// EmbeddingClient supplies claim embeddings for the curator's dedup pass.
// The core degrades gracefully (skips dedup) when none is configured.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
