package model

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Document is a note in a vault. Embedding is optional and produced upstream.
type Document struct {
	ID        int64     `json:"id"`
	RID       uuid.UUID `json:"rid"`
	VaultID   string    `json:"vault_id"`
	Title     string    `json:"title"`
	Path      string    `json:"path"`
	Embedding []float32 `json:"embedding,omitempty"`
	Metadata  Metadata  `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasEmbedding reports whether the document carries a usable embedding.
func (d *Document) HasEmbedding() bool {
	return d != nil && len(d.Embedding) > 0
}

// NewDocumentFromFile creates a Document for a note file inside a vault directory.
// The title defaults to the file name and Path is the slash separated path relative to root,
// which is what folder prefix filters match against.
func NewDocumentFromFile(vaultID, root, filePath string, metadata Metadata) (*Document, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, err
	}

	rel, err := filepath.Rel(root, filePath)
	if err != nil {
		return nil, err
	}

	filename := filepath.Base(filePath)
	title := strings.TrimSuffix(filename, filepath.Ext(filename))
	if title == "" {
		title = filename
	}

	return &Document{
		VaultID:   vaultID,
		Title:     title,
		Path:      filepath.ToSlash(rel),
		Metadata:  metadata,
		UpdatedAt: info.ModTime(),
	}, nil
}
