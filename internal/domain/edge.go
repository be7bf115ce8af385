package domain

import (
	"time"

	"github.com/google/uuid"
)

// EntityType identifies which table an edge endpoint lives in. Edges carry no
// referential-integrity guarantee; consumers must tolerate dangling endpoints.
type EntityType string

const (
	EntityNote   EntityType = "note"
	EntityBelief EntityType = "belief"
	EntitySource EntityType = "source"
)

func ValidEntityType(t string) bool {
	switch EntityType(t) {
	case EntityNote, EntityBelief, EntitySource:
		return true
	}
	return false
}

type RelType string

const (
	RelSupports    RelType = "supports"
	RelContradicts RelType = "contradicts"
	RelDerivedFrom RelType = "derived_from"
	RelRelated     RelType = "related"
)

func ValidRelType(t string) bool {
	switch RelType(t) {
	case RelSupports, RelContradicts, RelDerivedFrom, RelRelated:
		return true
	}
	return false
}

// Edge is a typed directed relation between two entities. Edges are created
// and deleted, never updated.
type Edge struct {
	ID        uuid.UUID  `json:"id"`
	FromType  EntityType `json:"from_type"`
	FromID    uuid.UUID  `json:"from_id"`
	RelType   RelType    `json:"rel_type"`
	ToType    EntityType `json:"to_type"`
	ToID      uuid.UUID  `json:"to_id"`
	CreatedAt time.Time  `json:"created_at"`
}
