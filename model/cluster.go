package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the outcome of a clustering request.
type Status string

const (
	StatusSuccess     Status = "success"
	StatusUnavailable Status = "unavailable"
	StatusError       Status = "error"
	StatusComputing   Status = "computing"
)

// Method identifiers recorded on results and clusters.
const (
	MethodSemantic     = "umap_hdbscan"
	MethodTypeBased    = "type_based"
	MethodPKMType      = "pkm_type"
	MethodEntityHybrid = "entity_hybrid"
)

// FallbackReason tells why semantic clustering was abandoned.
type FallbackReason string

const (
	ReasonDependencyMissing   FallbackReason = "dependency_missing"
	ReasonNoEmbeddings        FallbackReason = "no_embeddings"
	ReasonInsufficientSamples FallbackReason = "insufficient_samples"
	ReasonNoClusters          FallbackReason = "no_clusters"
	ReasonEmptyResult         FallbackReason = "empty_result"
	ReasonException           FallbackReason = "exception"
)

// SemanticFallbackMethod is the method tag of a type based result produced after a semantic failure.
func SemanticFallbackMethod(reason FallbackReason) string {
	return fmt.Sprintf("%s_fallback:%s", MethodSemantic, reason)
}

// EntityHybridFallbackMethod is the method tag of a PKM type result produced after a hybrid failure.
func EntityHybridFallbackMethod(reason FallbackReason) string {
	return fmt.Sprintf("%s_fallback:%s", MethodEntityHybrid, reason)
}

// HubEntity is a representative entity of a cluster.
type HubEntity struct {
	EntityID uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Type     string    `json:"type"`
	Score    float64   `json:"centrality"`
}

// Cluster is one group of the partition.
type Cluster struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Level            int            `json:"level"`
	MemberIDs        []uuid.UUID    `json:"entity_ids"`
	NodeCount        int            `json:"node_count"`
	Hubs             []HubEntity    `json:"hub_entities"`
	SampleEntities   []string       `json:"sample_entities"`
	SampleDocuments  []string       `json:"sample_notes,omitempty"`
	DocumentIDs      []uuid.UUID    `json:"note_ids"`
	TypeDistribution map[string]int `json:"contains_types"`
	ImportanceScore  float64        `json:"importance_score"`
	RecentUpdates    int            `json:"recent_updates"`
	Summary          string         `json:"summary"`
	KeyInsights      []string       `json:"key_insights"`
	InternalEdges    int            `json:"internal_edges,omitempty"`
	Cohesion         float64        `json:"cohesion,omitempty"`
	Method           string         `json:"clustering_method"`
	IsManual         bool           `json:"is_manual"`
	ComputedAt       time.Time      `json:"last_computed"`
}

// ClusterEdge connects two clusters of the same result.
type ClusterEdge struct {
	From         string   `json:"from"`
	To           string   `json:"to"`
	Weight       float64  `json:"weight"`
	RelationType EdgeType `json:"relation_type"`
	Label        string   `json:"label,omitempty"`
	Description  string   `json:"description,omitempty"`
}

// ClusterResult is the full answer for a scope.
type ClusterResult struct {
	Status     Status         `json:"status"`
	Clusters   []*Cluster     `json:"clusters"`
	Edges      []*ClusterEdge `json:"edges"`
	TotalNodes int            `json:"total_nodes"`
	Method     string         `json:"method"`
	ComputedAt time.Time      `json:"computed_at"`
	FromCache  bool           `json:"from_cache"`
	Message    string         `json:"message,omitempty"`
}

// Cluster returns the cluster with the given id.
func (r *ClusterResult) Cluster(id string) (*Cluster, bool) {
	if r == nil {
		return nil, false
	}
	for _, c := range r.Clusters {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

// EntityDetail describes one member of a cluster.
type EntityDetail struct {
	Entity      *Entity     `json:"entity"`
	Connections int         `json:"connections"`
	DocumentIDs []uuid.UUID `json:"note_ids"`
}

// RelationDetail is a relation edge inside a cluster annotated with its semantic label.
type RelationDetail struct {
	Edge        *Edge    `json:"edge"`
	Relation    EdgeType `json:"relation_type"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
}

// ClusterDetail is the drill-down view of one cluster.
type ClusterDetail struct {
	Cluster   *Cluster          `json:"cluster"`
	Entities  []*EntityDetail   `json:"entities"`
	Relations []*RelationDetail `json:"relations"`
}
