package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocumentFromFile(t *testing.T) {
	t.Run("Creates document relative to the vault root", func(t *testing.T) {
		root := t.TempDir()
		dir := filepath.Join(root, "projects", "thesis")
		require.NoError(t, os.MkdirAll(dir, 0755))
		filePath := filepath.Join(dir, "Literature Review.md")
		require.NoError(t, os.WriteFile(filePath, []byte("# Review"), 0644))

		doc, err := NewDocumentFromFile("vault-1", root, filePath, Metadata{"source": "obsidian"})

		require.NoError(t, err)
		assert.Equal(t, "vault-1", doc.VaultID)
		assert.Equal(t, "Literature Review", doc.Title, "Title should be filename without extension")
		assert.Equal(t, "projects/thesis/Literature Review.md", doc.Path, "Path should be relative and slash separated")
		assert.False(t, doc.UpdatedAt.IsZero(), "UpdatedAt should come from the file modification time")
		assert.Equal(t, "obsidian", doc.Metadata["source"])
	})

	t.Run("Missing file is an error", func(t *testing.T) {
		_, err := NewDocumentFromFile("vault-1", t.TempDir(), "/does/not/exist.md", nil)
		assert.Error(t, err)
	})
}

func TestDocumentHasEmbedding(t *testing.T) {
	t.Run("Only non-empty embeddings count", func(t *testing.T) {
		var nilDoc *Document
		assert.False(t, nilDoc.HasEmbedding())
		assert.False(t, (&Document{}).HasEmbedding())
		assert.True(t, (&Document{Embedding: []float32{0.1}}).HasEmbedding())
	})
}
