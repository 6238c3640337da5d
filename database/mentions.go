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

// MentionsDBHandlerFunctions defines the interface for Mentions database operations.
type MentionsDBHandlerFunctions interface {
	InsertMention(mention *model.Mention) error
	SelectMentionsByVault(vaultID string) ([]*model.Mention, error)
	SelectMentionsByEntity(entityID uuid.UUID) ([]*model.Mention, error)
	DeleteMention(documentRID uuid.UUID, entityID uuid.UUID) error
}

// MentionsDBHandler handles the document to entity links
type MentionsDBHandler struct {
	db *helper.Database
}

// NewMentionsDBHandler creates a new mentions database handler.
// The documents and entities tables have to exist.
func NewMentionsDBHandler(db *helper.Database, force bool) (*MentionsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	mentionsDbHandler := &MentionsDBHandler{
		db: db,
	}

	err := loadSql.LoadMentionsSql(mentionsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load mentions sql", err)
	}

	err = mentionsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized MentionsDBHandler")

	return mentionsDbHandler, nil
}

// CreateTable creates the 'mentions' table in the database.
func (h *MentionsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_mentions();`)
	if err != nil {
		log.Panicf("error initializing mentions table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table mentions")

	return nil
}

// InsertMention links a document to an entity. Inserting an existing link is a no-op.
func (h *MentionsDBHandler) InsertMention(mention *model.Mention) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_mention($1, $2)`,
		mention.DocumentRID,
		mention.EntityID,
	)

	err := row.Scan(
		&mention.DocumentRID,
		&mention.EntityID,
		&mention.CreatedAt,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

func (h *MentionsDBHandler) selectMentions(query string, args ...any) ([]*model.Mention, error) {
	rows, err := h.db.Instance.Query(query, args...)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var mentions []*model.Mention
	for rows.Next() {
		mention := &model.Mention{}
		err := rows.Scan(
			&mention.DocumentRID,
			&mention.EntityID,
			&mention.CreatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		mentions = append(mentions, mention)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return mentions, nil
}

// SelectMentionsByVault retrieves all mentions of the vault's documents
func (h *MentionsDBHandler) SelectMentionsByVault(vaultID string) ([]*model.Mention, error) {
	return h.selectMentions(`SELECT * FROM select_mentions_by_vault($1)`, vaultID)
}

// SelectMentionsByEntity retrieves the documents mentioning an entity
func (h *MentionsDBHandler) SelectMentionsByEntity(entityID uuid.UUID) ([]*model.Mention, error) {
	return h.selectMentions(`SELECT * FROM select_mentions_by_entity($1)`, entityID)
}

// DeleteMention removes the link between a document and an entity
func (h *MentionsDBHandler) DeleteMention(documentRID uuid.UUID, entityID uuid.UUID) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_mention($1, $2)`,
		documentRID,
		entityID,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}
