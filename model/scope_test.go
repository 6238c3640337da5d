package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScope(t *testing.T) {
	t.Run("Whole vault contains every path", func(t *testing.T) {
		s := Scope{VaultID: "v"}
		assert.False(t, s.IsSubScope())
		assert.True(t, s.Contains("anything/at/all.md"))
	})

	t.Run("Folder prefix narrows the scope", func(t *testing.T) {
		s := Scope{VaultID: "v", FolderPrefix: "projects/"}
		assert.True(t, s.IsSubScope())
		assert.True(t, s.Contains("projects/a.md"))
		assert.False(t, s.Contains("daily/2025-01-01.md"))
	})

	t.Run("Blank prefix is not a sub-scope", func(t *testing.T) {
		assert.False(t, Scope{VaultID: "v", FolderPrefix: "  "}.IsSubScope())
	})
}

func TestCacheKey(t *testing.T) {
	t.Run("Document view uses the bare vault id", func(t *testing.T) {
		assert.Equal(t, "vault-1", CacheKey("vault-1", ClusterKindDocuments))
	})

	t.Run("Keys split back into vault and kind", func(t *testing.T) {
		for _, kind := range []ClusterKind{ClusterKindDocuments, ClusterKindEntities} {
			vault, got := SplitCacheKey(CacheKey("vault-1", kind))
			assert.Equal(t, "vault-1", vault)
			assert.Equal(t, kind, got)
		}
	})
}
