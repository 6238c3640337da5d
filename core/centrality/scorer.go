package centrality

import (
	"math"
	"sort"
	"strings"

	"github.com/PhD-Shin/PKM/model"
	"github.com/google/uuid"
)

// Weights of the composite score.
const (
	weightDegree       = 0.30
	weightCoOccurrence = 0.25
	weightBridge       = 0.25
	weightIDF          = 0.20

	denylistPenalty = 0.1
	idfFloor        = 0.3
	coverageLimit   = 0.5
)

// Window is the set of documents entities are scored in.
type Window struct {
	// DocumentIDs are the documents of the window. Duplicates are ignored.
	DocumentIDs []uuid.UUID
	// Mentions maps a document to the entities it mentions.
	Mentions map[uuid.UUID][]uuid.UUID
	// Entities holds the entities that may be scored. Mentions of other entities are ignored.
	Entities map[uuid.UUID]*model.Entity
}

// EntityScore is the centrality breakdown of one entity within a window.
type EntityScore struct {
	EntityID          uuid.UUID   `json:"id"`
	Name              string      `json:"name"`
	Type              string      `json:"type"`
	Degree            int         `json:"degree"`
	DegreeCentrality  float64     `json:"degree_centrality"`
	CoOccurrenceCount int         `json:"co_occurrence_count"`
	CoOccurrenceScore float64     `json:"co_occurrence_score"`
	BridgeScore       float64     `json:"bridge_score"`
	IDFWeight         float64     `json:"idf_weight"`
	Denylisted        bool        `json:"is_generic"`
	Score             float64     `json:"centrality_score"`
	DocumentIDs       []uuid.UUID `json:"-"`
}

// Scorer computes composite centrality scores.
type Scorer struct {
	denylist map[string]bool
}

// NewScorer creates a Scorer penalising entities whose name or id matches a denylist term.
// Matching is case insensitive.
func NewScorer(denylist []string) *Scorer {
	s := &Scorer{denylist: make(map[string]bool, len(denylist))}
	for _, term := range denylist {
		term = normalize(term)
		if term != "" {
			s.denylist[term] = true
		}
	}
	return s
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsDenylisted reports whether the entity is too generic to represent a cluster.
func (s *Scorer) IsDenylisted(e *model.Entity) bool {
	if e == nil {
		return false
	}
	return s.denylist[normalize(e.Name)] || s.denylist[normalize(e.ID.String())]
}

// Score returns a score for every entity mentioned in the window, ordered by score
// (descending), then name, then id. Every score lies in [0, 1].
func (s *Scorer) Score(w Window) []*EntityScore {
	docs := make([]uuid.UUID, 0, len(w.DocumentIDs))
	inWindow := make(map[uuid.UUID]bool, len(w.DocumentIDs))
	for _, d := range w.DocumentIDs {
		if inWindow[d] {
			continue
		}
		inWindow[d] = true
		docs = append(docs, d)
	}
	if len(docs) == 0 {
		return []*EntityScore{}
	}

	scores := map[uuid.UUID]*EntityScore{}
	var order []uuid.UUID
	partners := map[uuid.UUID]map[uuid.UUID]bool{}

	for _, d := range docs {
		present := []uuid.UUID{}
		seen := map[uuid.UUID]bool{}
		for _, id := range w.Mentions[d] {
			e, ok := w.Entities[id]
			if !ok || e == nil || seen[id] {
				continue
			}
			seen[id] = true
			present = append(present, id)

			es, ok := scores[id]
			if !ok {
				es = &EntityScore{EntityID: id, Name: e.Name, Type: e.Type}
				if es.Name == "" {
					es.Name = id.String()
				}
				scores[id] = es
				order = append(order, id)
				partners[id] = map[uuid.UUID]bool{}
			}
			es.Degree++
			es.DocumentIDs = append(es.DocumentIDs, d)
		}
		for _, a := range present {
			for _, b := range present {
				if a != b {
					partners[a][b] = true
				}
			}
		}
	}

	total := float64(len(docs))
	maxCo := 1
	for _, id := range order {
		scores[id].CoOccurrenceCount = len(partners[id])
		if c := scores[id].CoOccurrenceCount; c > maxCo {
			maxCo = c
		}
	}

	out := make([]*EntityScore, 0, len(order))
	for _, id := range order {
		es := scores[id]
		es.DegreeCentrality = float64(es.Degree) / total
		es.CoOccurrenceScore = float64(es.CoOccurrenceCount) / float64(maxCo)
		es.BridgeScore = bridgeScore(es.Degree, total)
		es.IDFWeight = idfWeight(es.DegreeCentrality)
		es.Denylisted = s.IsDenylisted(w.Entities[id])

		raw := weightDegree*es.DegreeCentrality +
			weightCoOccurrence*es.CoOccurrenceScore +
			weightBridge*es.BridgeScore +
			weightIDF*es.IDFWeight
		if es.Denylisted {
			raw *= denylistPenalty
		}
		es.Score = math.Max(0, math.Min(1, raw))
		out = append(out, es)
	}

	SortScores(out)
	return out
}

// SortScores orders scores by score (descending), then name, then id.
func SortScores(scores []*EntityScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		a, b := scores[i], scores[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.EntityID.String() < b.EntityID.String()
	})
}

func bridgeScore(degree int, windowSize float64) float64 {
	if degree <= 1 {
		return 0
	}
	return math.Min(1, float64(degree)/math.Max(3, 0.2*windowSize))
}

// idfWeight decays linearly from 1 once an entity covers more than half of the window.
func idfWeight(coverage float64) float64 {
	if coverage <= coverageLimit {
		return 1
	}
	return math.Max(idfFloor, 1-(coverage-coverageLimit)*1.5)
}
