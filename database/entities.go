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
	"github.com/lib/pq"
)

// EntitiesDBHandlerFunctions defines the interface for Entities database operations.
type EntitiesDBHandlerFunctions interface {
	InsertEntity(entity *model.Entity) error
	SelectEntity(id uuid.UUID) (*model.Entity, error)
	SelectEntitiesByVault(vaultID string) ([]*model.Entity, error)
	SelectEntitiesByType(vaultID string, entityType string) ([]*model.Entity, error)
	UpdateEntityEmbedding(id uuid.UUID, embedding []float32) error
	DeleteEntity(id uuid.UUID) error
}

// EntitiesDBHandler handles entity-related database operations
type EntitiesDBHandler struct {
	db *helper.Database
}

// NewEntitiesDBHandler creates a new entities database handler.
// It initializes the database connection and loads entity-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEntitiesDBHandler(db *helper.Database, force bool) (*EntitiesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	entitiesDbHandler := &EntitiesDBHandler{
		db: db,
	}

	err := loadSql.LoadEntitiesSql(entitiesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load entities sql", err)
	}

	err = entitiesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EntitiesDBHandler")

	return entitiesDbHandler, nil
}

// CreateTable creates the 'entities' table in the database.
// If the table already exists, it does not create it again.
func (h *EntitiesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_entities();`)
	if err != nil {
		log.Panicf("error initializing entities table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table entities")

	return nil
}

func scanEntity(row rowScanner) (*model.Entity, error) {
	entity := &model.Entity{}
	err := row.Scan(
		&entity.ID,
		&entity.VaultID,
		&entity.Name,
		&entity.Type,
		pq.Array(&entity.Embedding),
		&entity.Metadata,
		&entity.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return entity, nil
}

// InsertEntity inserts an entity. An entity with the same vault, name and type
// is updated instead and its id is returned.
func (h *EntitiesDBHandler) InsertEntity(entity *model.Entity) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_entity($1, $2, $3, $4, $5)`,
		entity.VaultID,
		entity.Name,
		entity.Type,
		vector(entity.Embedding),
		entity.Metadata,
	)

	inserted, err := scanEntity(row)
	if err != nil {
		return helper.NewError("scan", err)
	}
	*entity = *inserted

	return nil
}

// SelectEntity retrieves an entity by ID
func (h *EntitiesDBHandler) SelectEntity(id uuid.UUID) (*model.Entity, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_entity($1)`,
		id,
	)

	entity, err := scanEntity(row)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return entity, nil
}

func (h *EntitiesDBHandler) selectEntities(query string, args ...any) ([]*model.Entity, error) {
	rows, err := h.db.Instance.Query(query, args...)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var entities []*model.Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		entities = append(entities, entity)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return entities, nil
}

// SelectEntitiesByVault retrieves all entities of a vault ordered by name
func (h *EntitiesDBHandler) SelectEntitiesByVault(vaultID string) ([]*model.Entity, error) {
	return h.selectEntities(`SELECT * FROM select_entities_by_vault($1)`, vaultID)
}

// SelectEntitiesByType retrieves the entities of a vault with the given type, case insensitive
func (h *EntitiesDBHandler) SelectEntitiesByType(vaultID string, entityType string) ([]*model.Entity, error) {
	return h.selectEntities(`SELECT * FROM select_entities_by_type($1, $2)`, vaultID, entityType)
}

// UpdateEntityEmbedding replaces the embedding of an entity. An empty embedding clears it.
func (h *EntitiesDBHandler) UpdateEntityEmbedding(id uuid.UUID, embedding []float32) error {
	_, err := h.db.Instance.Exec(
		`SELECT update_entity_embedding($1, $2)`,
		id,
		vector(embedding),
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// DeleteEntity deletes an entity by ID. Its mentions and edges are deleted with it.
func (h *EntitiesDBHandler) DeleteEntity(id uuid.UUID) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_entity($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}
