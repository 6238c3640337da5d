package model

import (
	"time"

	"github.com/google/uuid"
)

// EdgeType is the relation type between two entities.
type EdgeType string

const (
	EdgeTypeRelatesTo EdgeType = "RELATES_TO"
	EdgeTypeRelatedTo EdgeType = "RELATED_TO"
	EdgeTypeMentions  EdgeType = "MENTIONS"
)

// Edge is a directed relation between two entities.
type Edge struct {
	ID             uuid.UUID `json:"id"`
	SourceEntityID uuid.UUID `json:"source_entity_id"`
	TargetEntityID uuid.UUID `json:"target_entity_id"`
	EdgeType       EdgeType  `json:"edge_type"`
	Weight         float64   `json:"weight"`
	Fact           string    `json:"fact,omitempty"`
	Metadata       Metadata  `json:"metadata,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
