package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/tenetdb/tenet/internal/domain"
)

type AuditService struct {
	audit domain.AuditStore
}

func NewAuditService(as domain.AuditStore) *AuditService {
	return &AuditService{audit: as}
}

func (s *AuditService) History(ctx context.Context, entityID uuid.UUID, limit, offset int) ([]domain.AuditEntry, error) {
	return s.audit.ListByEntity(ctx, entityID, limit, offset)
}
