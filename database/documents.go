package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/PhD-Shin/PKM/helper"
	"github.com/PhD-Shin/PKM/model"
	loadSql "github.com/PhD-Shin/PKM/sql"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// DocumentsDBHandlerFunctions defines the interface for Documents database operations.
type DocumentsDBHandlerFunctions interface {
	InsertDocument(doc *model.Document) error
	SelectDocument(rid uuid.UUID) (*model.Document, error)
	SelectDocumentsByVault(vaultID string, pathPrefix string) ([]*model.Document, error)
	LatestUpdate(vaultID string) (time.Time, bool, error)
	UpdateDocument(doc *model.Document) error
	DeleteDocument(rid uuid.UUID) error
}

// DocumentsDBHandler handles document-related database operations
type DocumentsDBHandler struct {
	db *helper.Database
}

// NewDocumentsDBHandler creates a new documents database handler.
// It initializes the database connection and loads document-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewDocumentsDBHandler(db *helper.Database, force bool) (*DocumentsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	documentsDbHandler := &DocumentsDBHandler{
		db: db,
	}

	err := loadSql.LoadDocumentsSql(documentsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load documents sql", err)
	}

	err = documentsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized DocumentsDBHandler")

	return documentsDbHandler, nil
}

// CreateTable creates the 'documents' table in the database.
// If the table already exists, it does not create it again.
func (h *DocumentsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_documents();`)
	if err != nil {
		log.Panicf("error initializing documents table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table documents")

	return nil
}

// vector converts an embedding to a query argument. Empty embeddings are stored as NULL.
func vector(embedding []float32) *pgvector.Vector {
	if len(embedding) == 0 {
		return nil
	}
	v := pgvector.NewVector(embedding)
	return &v
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*model.Document, error) {
	doc := &model.Document{}
	err := row.Scan(
		&doc.ID,
		&doc.RID,
		&doc.VaultID,
		&doc.Title,
		&doc.Path,
		pq.Array(&doc.Embedding),
		&doc.Metadata,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// InsertDocument inserts a new document
func (h *DocumentsDBHandler) InsertDocument(doc *model.Document) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_document($1, $2, $3, $4, $5)`,
		doc.VaultID,
		doc.Title,
		doc.Path,
		vector(doc.Embedding),
		doc.Metadata,
	)

	inserted, err := scanDocument(row)
	if err != nil {
		return helper.NewError("scan", err)
	}
	*doc = *inserted

	return nil
}

// SelectDocument retrieves a document by RID
func (h *DocumentsDBHandler) SelectDocument(rid uuid.UUID) (*model.Document, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_document($1)`,
		rid,
	)

	doc, err := scanDocument(row)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return doc, nil
}

// SelectDocumentsByVault retrieves all documents of a vault ordered by path.
// A non empty pathPrefix restricts the result to documents below that folder.
func (h *DocumentsDBHandler) SelectDocumentsByVault(vaultID string, pathPrefix string) ([]*model.Document, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_documents_by_vault($1, $2)`,
		vaultID,
		pathPrefix,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var documents []*model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		documents = append(documents, doc)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return documents, nil
}

// LatestUpdate returns the most recent updated_at of the vault's documents.
// ok is false if the vault has no documents.
func (h *DocumentsDBHandler) LatestUpdate(vaultID string) (time.Time, bool, error) {
	var latest sql.NullTime
	err := h.db.Instance.QueryRow(
		`SELECT select_latest_document_update($1)`,
		vaultID,
	).Scan(&latest)
	if err != nil {
		return time.Time{}, false, helper.NewError("scan", err)
	}
	if !latest.Valid {
		return time.Time{}, false, nil
	}

	return latest.Time, true, nil
}

// UpdateDocument updates title, path, embedding and metadata of a document and
// sets its updated_at to now.
func (h *DocumentsDBHandler) UpdateDocument(doc *model.Document) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM update_document($1, $2, $3, $4, $5)`,
		doc.RID,
		doc.Title,
		doc.Path,
		vector(doc.Embedding),
		doc.Metadata,
	)

	updated, err := scanDocument(row)
	if err != nil {
		return helper.NewError("scan", err)
	}
	*doc = *updated

	return nil
}

// DeleteDocument deletes a document by RID
func (h *DocumentsDBHandler) DeleteDocument(rid uuid.UUID) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_document($1)`,
		rid,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}
