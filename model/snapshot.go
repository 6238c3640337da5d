package model

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// EntityFilter restricts which entities take part in clustering.
type EntityFilter struct {
	IncludeTypes   []string `json:"include_types,omitempty" yaml:"include_types"`
	MinConnections int      `json:"min_connections" yaml:"min_connections"`
	EntityLimit    int      `json:"entity_limit" yaml:"entity_limit"`
}

// Snapshot is the read-only input of one clustering run: documents of a scope,
// their entities, the mentions linking both and the relation edges between entities.
type Snapshot struct {
	Scope     Scope       `json:"scope"`
	Documents []*Document `json:"documents"`
	Entities  []*Entity   `json:"entities"`
	Mentions  []*Mention  `json:"mentions"`
	Edges     []*Edge     `json:"edges"`
}

// Filter returns a new snapshot restricted to the scope's folder prefix and the entity filter.
// Entity mention counts are recomputed over the remaining documents and entities are
// ordered by mention count (descending) then name.
func (s *Snapshot) Filter(filter EntityFilter) *Snapshot {
	out := &Snapshot{Scope: s.Scope}

	docs := map[uuid.UUID]bool{}
	for _, d := range s.Documents {
		if d == nil || docs[d.RID] || !s.Scope.Contains(d.Path) {
			continue
		}
		docs[d.RID] = true
		out.Documents = append(out.Documents, d)
	}

	include := map[string]bool{}
	for _, t := range filter.IncludeTypes {
		include[strings.ToLower(strings.TrimSpace(t))] = true
	}

	candidates := map[uuid.UUID]*Entity{}
	for _, e := range s.Entities {
		if e == nil {
			continue
		}
		if len(include) > 0 && !include[strings.ToLower(strings.TrimSpace(e.Type))] {
			continue
		}
		candidates[e.ID] = e
	}

	counts := map[uuid.UUID]int{}
	seen := map[[2]uuid.UUID]bool{}
	for _, m := range s.Mentions {
		if m == nil || !docs[m.DocumentRID] || candidates[m.EntityID] == nil {
			continue
		}
		pair := [2]uuid.UUID{m.DocumentRID, m.EntityID}
		if seen[pair] {
			continue
		}
		seen[pair] = true
		counts[m.EntityID]++
	}

	added := map[uuid.UUID]bool{}
	for _, e := range s.Entities {
		if e == nil || candidates[e.ID] == nil || added[e.ID] || counts[e.ID] < filter.MinConnections {
			continue
		}
		added[e.ID] = true
		c := *e
		c.MentionCount = counts[e.ID]
		out.Entities = append(out.Entities, &c)
	}
	sort.SliceStable(out.Entities, func(i, j int) bool {
		a, b := out.Entities[i], out.Entities[j]
		if a.MentionCount != b.MentionCount {
			return a.MentionCount > b.MentionCount
		}
		return a.Name < b.Name
	})
	if filter.EntityLimit > 0 && len(out.Entities) > filter.EntityLimit {
		out.Entities = out.Entities[:filter.EntityLimit]
	}

	kept := map[uuid.UUID]bool{}
	for _, e := range out.Entities {
		kept[e.ID] = true
	}

	seen = map[[2]uuid.UUID]bool{}
	for _, m := range s.Mentions {
		if m == nil || !docs[m.DocumentRID] || !kept[m.EntityID] {
			continue
		}
		pair := [2]uuid.UUID{m.DocumentRID, m.EntityID}
		if seen[pair] {
			continue
		}
		seen[pair] = true
		out.Mentions = append(out.Mentions, m)
	}

	for _, e := range s.Edges {
		if e == nil || !kept[e.SourceEntityID] || !kept[e.TargetEntityID] {
			continue
		}
		out.Edges = append(out.Edges, e)
	}

	return out
}

// EntityIndex maps entity ids to entities.
func (s *Snapshot) EntityIndex() map[uuid.UUID]*Entity {
	out := make(map[uuid.UUID]*Entity, len(s.Entities))
	for _, e := range s.Entities {
		out[e.ID] = e
	}
	return out
}

// DocumentIndex maps document RIDs to documents.
func (s *Snapshot) DocumentIndex() map[uuid.UUID]*Document {
	out := make(map[uuid.UUID]*Document, len(s.Documents))
	for _, d := range s.Documents {
		out[d.RID] = d
	}
	return out
}

// EntitiesByDocument maps document RIDs to the entities they mention, in mention order.
func (s *Snapshot) EntitiesByDocument() map[uuid.UUID][]uuid.UUID {
	out := map[uuid.UUID][]uuid.UUID{}
	for _, m := range s.Mentions {
		out[m.DocumentRID] = append(out[m.DocumentRID], m.EntityID)
	}
	return out
}

// DocumentsByEntity maps entity ids to the documents mentioning them, in mention order.
func (s *Snapshot) DocumentsByEntity() map[uuid.UUID][]uuid.UUID {
	out := map[uuid.UUID][]uuid.UUID{}
	for _, m := range s.Mentions {
		out[m.EntityID] = append(out[m.EntityID], m.DocumentRID)
	}
	return out
}
