package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/PhD-Shin/PKM/helper"
	"github.com/PhD-Shin/PKM/model"
	loadSql "github.com/PhD-Shin/PKM/sql"
	"github.com/google/uuid"
)

// EdgesDBHandlerFunctions defines the interface for Edges database operations.
type EdgesDBHandlerFunctions interface {
	InsertEdge(edge *model.Edge) error
	SelectEdge(id uuid.UUID) (*model.Edge, error)
	SelectEdgesByVault(vaultID string) ([]*model.Edge, error)
	SelectEdgesConnectedToEntity(entityID uuid.UUID) ([]*model.Edge, error)
	UpdateEdgeWeight(id uuid.UUID, weight float64) error
	DeleteEdge(id uuid.UUID) error
}

// EdgesDBHandler handles the relation edges between entities
type EdgesDBHandler struct {
	db *helper.Database
}

// NewEdgesDBHandler creates a new edges database handler.
// It initializes the database connection and loads edge-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEdgesDBHandler(db *helper.Database, force bool) (*EdgesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	edgesDbHandler := &EdgesDBHandler{
		db: db,
	}

	err := loadSql.LoadEdgesSql(edgesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load edges sql", err)
	}

	err = edgesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EdgesDBHandler")

	return edgesDbHandler, nil
}

// CreateTable creates the 'edges' table in the database.
// If the table already exists, it does not create it again.
func (h *EdgesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_edges();`)
	if err != nil {
		log.Panicf("error initializing edges table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table edges")

	return nil
}

func scanEdge(row rowScanner) (*model.Edge, error) {
	edge := &model.Edge{}
	var edgeType string
	err := row.Scan(
		&edge.ID,
		&edge.SourceEntityID,
		&edge.TargetEntityID,
		&edgeType,
		&edge.Weight,
		&edge.Fact,
		&edge.Metadata,
		&edge.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	edge.EdgeType = model.EdgeType(edgeType)
	return edge, nil
}

// InsertEdge inserts a new edge. An empty edge type is stored as RELATES_TO.
func (h *EdgesDBHandler) InsertEdge(edge *model.Edge) error {
	weight := edge.Weight
	if weight == 0 {
		weight = 1.0
	}

	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_edge($1, $2, $3, $4, $5, $6)`,
		edge.SourceEntityID,
		edge.TargetEntityID,
		string(edge.EdgeType),
		weight,
		edge.Fact,
		edge.Metadata,
	)

	inserted, err := scanEdge(row)
	if err != nil {
		return helper.NewError("scan", err)
	}
	*edge = *inserted

	return nil
}

// SelectEdge retrieves an edge by ID
func (h *EdgesDBHandler) SelectEdge(id uuid.UUID) (*model.Edge, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_edge($1)`,
		id,
	)

	edge, err := scanEdge(row)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return edge, nil
}

func (h *EdgesDBHandler) selectEdges(query string, args ...any) ([]*model.Edge, error) {
	rows, err := h.db.Instance.Query(query, args...)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var edges []*model.Edge
	for rows.Next() {
		edge, err := scanEdge(rows)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		edges = append(edges, edge)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return edges, nil
}

// SelectEdgesByVault retrieves all edges whose source entity belongs to the vault
func (h *EdgesDBHandler) SelectEdgesByVault(vaultID string) ([]*model.Edge, error) {
	return h.selectEdges(`SELECT * FROM select_edges_by_vault($1)`, vaultID)
}

// SelectEdgesConnectedToEntity retrieves all edges starting or ending at an entity
func (h *EdgesDBHandler) SelectEdgesConnectedToEntity(entityID uuid.UUID) ([]*model.Edge, error) {
	return h.selectEdges(`SELECT * FROM select_edges_connected_to_entity($1)`, entityID)
}

// UpdateEdgeWeight updates the weight of an edge
func (h *EdgesDBHandler) UpdateEdgeWeight(id uuid.UUID, weight float64) error {
	_, err := h.db.Instance.Exec(
		`SELECT update_edge_weight($1, $2)`,
		id,
		weight,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// DeleteEdge deletes an edge by ID
func (h *EdgesDBHandler) DeleteEdge(id uuid.UUID) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_edge($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}
