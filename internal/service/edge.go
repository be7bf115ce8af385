package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tenetdb/tenet/internal/domain"
)

var (
	ErrEdgeNotFound      = errors.New("edge not found")
	ErrInvalidEntityType = errors.New("invalid entity type")
	ErrInvalidRelType    = errors.New("invalid relation type")
	ErrSelfEdge          = errors.New("edge endpoints must differ")
)

type EdgeService struct {
	edges  domain.EdgeStore
	logger *zap.Logger
}

func NewEdgeService(es domain.EdgeStore, logger *zap.Logger) *EdgeService {
	return &EdgeService{edges: es, logger: logger}
}

// Link records a relation between two entities. Linking the same tuple twice
// is a no-op, so agents can re-derive relations on replay without piling up
// duplicate evidence.
func (s *EdgeService) Link(ctx context.Context, e *domain.Edge) error {
	if !domain.ValidEntityType(string(e.FromType)) || !domain.ValidEntityType(string(e.ToType)) {
		return ErrInvalidEntityType
	}
	if !domain.ValidRelType(string(e.RelType)) {
		return ErrInvalidRelType
	}
	if e.FromType == e.ToType && e.FromID == e.ToID {
		return ErrSelfEdge
	}
	return s.edges.Create(ctx, e)
}

func (s *EdgeService) ListByEntity(ctx context.Context, t domain.EntityType, id uuid.UUID, dir domain.EdgeDirection, rel *domain.RelType) ([]domain.Edge, error) {
	if !domain.ValidEntityType(string(t)) {
		return nil, ErrInvalidEntityType
	}
	return s.edges.ListByEntity(ctx, t, id, dir, rel)
}

func (s *EdgeService) Delete(ctx context.Context, id uuid.UUID) error {
	return mapNotFound(s.edges.Delete(ctx, id), ErrEdgeNotFound)
}
