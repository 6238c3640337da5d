package database

import (
	"testing"
	"time"

	"github.com/PhD-Shin/PKM/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentsNewDocumentsDBHandler(t *testing.T) {
	database := initDB(t)

	t.Run("Valid call NewDocumentsDBHandler", func(t *testing.T) {
		documentsDbHandler, err := NewDocumentsDBHandler(database, true)
		assert.NoError(t, err, "Expected NewDocumentsDBHandler to not return an error")
		require.NotNil(t, documentsDbHandler, "Expected NewDocumentsDBHandler to return a non-nil instance")
		require.NotNil(t, documentsDbHandler.db, "Expected NewDocumentsDBHandler to have a non-nil database instance")
		require.NotNil(t, documentsDbHandler.db.Instance, "Expected NewDocumentsDBHandler to have a non-nil database connection instance")
	})

	t.Run("Invalid call NewDocumentsDBHandler with nil database", func(t *testing.T) {
		_, err := NewDocumentsDBHandler(nil, false)
		assert.Error(t, err, "Expected error when creating DocumentsDBHandler with nil database")
		assert.Contains(t, err.Error(), "database connection is nil", "Expected specific error message for nil database connection")
	})
}

func TestDocumentsInsert(t *testing.T) {
	database := initDB(t)

	documentsDbHandler, err := NewDocumentsDBHandler(database, true)
	require.NoError(t, err, "Expected NewDocumentsDBHandler to not return an error")

	t.Run("Insert document with embedding", func(t *testing.T) {
		doc := &model.Document{
			VaultID:   uuid.NewString(),
			Title:     "Weekly review",
			Path:      "journal/2025-03-01.md",
			Embedding: []float32{0.1, 0.2, 0.3},
			Metadata:  model.Metadata{"tags": []interface{}{"review"}},
		}

		err := documentsDbHandler.InsertDocument(doc)
		assert.NoError(t, err, "Expected Insert to not return an error")
		assert.NotEqual(t, uuid.Nil, doc.RID, "Expected inserted document to have a RID")
		assert.NotZero(t, doc.ID, "Expected inserted document to have an ID")
		assert.WithinDuration(t, time.Now(), doc.CreatedAt, 5*time.Second, "Expected CreatedAt to be set")
		assert.WithinDuration(t, time.Now(), doc.UpdatedAt, 5*time.Second, "Expected UpdatedAt to be set")
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, doc.Embedding, "Expected embedding to round trip")
		assert.Equal(t, "journal/2025-03-01.md", doc.Path, "Expected path to match")

		documentsDbHandler.DeleteDocument(doc.RID)
	})

	t.Run("Insert document without embedding", func(t *testing.T) {
		doc := &model.Document{
			VaultID: uuid.NewString(),
			Title:   "Draft",
			Path:    "inbox/draft.md",
		}

		err := documentsDbHandler.InsertDocument(doc)
		assert.NoError(t, err, "Expected Insert to not return an error")
		assert.False(t, doc.HasEmbedding(), "Expected document without embedding")
		assert.NotNil(t, doc.Metadata, "Expected metadata to default to an empty object")

		documentsDbHandler.DeleteDocument(doc.RID)
	})
}

func TestDocumentsSelect(t *testing.T) {
	database := initDB(t)

	documentsDbHandler, err := NewDocumentsDBHandler(database, true)
	require.NoError(t, err)

	vaultID := uuid.NewString()
	paths := []string{"projects/pkm/plan.md", "projects/pkm/notes.md", "journal/today.md"}
	var docs []*model.Document
	for _, p := range paths {
		doc := &model.Document{VaultID: vaultID, Title: p, Path: p}
		require.NoError(t, documentsDbHandler.InsertDocument(doc))
		docs = append(docs, doc)
	}
	other := &model.Document{VaultID: uuid.NewString(), Title: "other", Path: "projects/other.md"}
	require.NoError(t, documentsDbHandler.InsertDocument(other))

	t.Run("Select document by RID", func(t *testing.T) {
		retrieved, err := documentsDbHandler.SelectDocument(docs[0].RID)
		assert.NoError(t, err, "Expected SelectDocument to not return an error")
		require.NotNil(t, retrieved)
		assert.Equal(t, docs[0].RID, retrieved.RID, "Expected document RIDs to match")
		assert.Equal(t, vaultID, retrieved.VaultID, "Expected vault ids to match")
	})

	t.Run("Select unknown document returns an error", func(t *testing.T) {
		_, err := documentsDbHandler.SelectDocument(uuid.New())
		assert.Error(t, err, "Expected error for unknown RID")
	})

	t.Run("Select documents of a vault ordered by path", func(t *testing.T) {
		retrieved, err := documentsDbHandler.SelectDocumentsByVault(vaultID, "")
		assert.NoError(t, err)
		require.Len(t, retrieved, 3, "Expected only documents of the vault")
		assert.Equal(t, "journal/today.md", retrieved[0].Path)
		assert.Equal(t, "projects/pkm/notes.md", retrieved[1].Path)
		assert.Equal(t, "projects/pkm/plan.md", retrieved[2].Path)
	})

	t.Run("Select documents below a folder", func(t *testing.T) {
		retrieved, err := documentsDbHandler.SelectDocumentsByVault(vaultID, "projects/")
		assert.NoError(t, err)
		assert.Len(t, retrieved, 2, "Expected only documents below the folder")
	})

	t.Run("Select documents of an empty vault", func(t *testing.T) {
		retrieved, err := documentsDbHandler.SelectDocumentsByVault(uuid.NewString(), "")
		assert.NoError(t, err)
		assert.Empty(t, retrieved)
	})

	for _, d := range append(docs, other) {
		documentsDbHandler.DeleteDocument(d.RID)
	}
}

func TestDocumentsUpdateAndLatestUpdate(t *testing.T) {
	database := initDB(t)

	documentsDbHandler, err := NewDocumentsDBHandler(database, true)
	require.NoError(t, err)

	vaultID := uuid.NewString()
	doc := &model.Document{VaultID: vaultID, Title: "Plan", Path: "plan.md"}
	require.NoError(t, documentsDbHandler.InsertDocument(doc))
	insertedAt := doc.UpdatedAt

	t.Run("Latest update of a vault", func(t *testing.T) {
		latest, ok, err := documentsDbHandler.LatestUpdate(vaultID)
		assert.NoError(t, err)
		assert.True(t, ok, "Expected vault to have documents")
		assert.True(t, insertedAt.Equal(latest), "Expected latest update to be the insert time")
	})

	t.Run("Update moves the latest update forward", func(t *testing.T) {
		time.Sleep(10 * time.Millisecond)
		doc.Title = "Plan v2"
		doc.Embedding = []float32{1, 0}
		err := documentsDbHandler.UpdateDocument(doc)
		assert.NoError(t, err, "Expected UpdateDocument to not return an error")
		assert.Equal(t, "Plan v2", doc.Title)
		assert.True(t, doc.UpdatedAt.After(insertedAt), "Expected UpdatedAt to move forward")

		latest, ok, err := documentsDbHandler.LatestUpdate(vaultID)
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, doc.UpdatedAt.Equal(latest))
	})

	t.Run("Latest update of an empty vault", func(t *testing.T) {
		_, ok, err := documentsDbHandler.LatestUpdate(uuid.NewString())
		assert.NoError(t, err)
		assert.False(t, ok, "Expected no documents")
	})

	t.Run("Delete document", func(t *testing.T) {
		err := documentsDbHandler.DeleteDocument(doc.RID)
		assert.NoError(t, err)

		_, err = documentsDbHandler.SelectDocument(doc.RID)
		assert.Error(t, err, "Expected deleted document to be gone")
	})
}
