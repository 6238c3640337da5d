package model

import (
	"time"

	"github.com/google/uuid"
)

// Entity is a named concept extracted from notes (person, topic, task, ...).
type Entity struct {
	ID           uuid.UUID `json:"id"`
	VaultID      string    `json:"vault_id"`
	Name         string    `json:"name"`
	Type         string    `json:"entity_type"`
	Embedding    []float32 `json:"embedding,omitempty"`
	MentionCount int       `json:"mention_count"`
	Metadata     Metadata  `json:"metadata,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasEmbedding reports whether the entity carries a usable embedding.
func (e *Entity) HasEmbedding() bool {
	return e != nil && len(e.Embedding) > 0
}

// Mention links a document to an entity it mentions.
type Mention struct {
	DocumentRID uuid.UUID `json:"document_rid"`
	EntityID    uuid.UUID `json:"entity_id"`
	CreatedAt   time.Time `json:"created_at"`
}
