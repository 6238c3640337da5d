package model

import (
	"strings"
)

// ClusterKind distinguishes the document level and entity level cluster views.
type ClusterKind string

const (
	ClusterKindDocuments ClusterKind = "documents"
	ClusterKindEntities  ClusterKind = "entities"
)

const cacheKeySeparator = "#"

// Scope selects the documents a clustering run works on.
// FolderPrefix narrows a vault to a sub-scope.
type Scope struct {
	VaultID      string `json:"vault_id" yaml:"vault_id"`
	FolderPrefix string `json:"folder_prefix,omitempty" yaml:"folder_prefix"`
}

// IsSubScope reports whether the scope is filtered below the whole vault.
func (s Scope) IsSubScope() bool {
	return strings.TrimSpace(s.FolderPrefix) != ""
}

// Contains reports whether a document path falls inside the scope.
func (s Scope) Contains(path string) bool {
	if !s.IsSubScope() {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSpace(s.FolderPrefix))
}

// CacheKey returns the cache key of the vault for the given cluster view.
func CacheKey(vaultID string, kind ClusterKind) string {
	if kind == "" || kind == ClusterKindDocuments {
		return vaultID
	}
	return vaultID + cacheKeySeparator + string(kind)
}

// SplitCacheKey is the inverse of CacheKey.
func SplitCacheKey(key string) (string, ClusterKind) {
	i := strings.LastIndex(key, cacheKeySeparator)
	if i < 0 {
		return key, ClusterKindDocuments
	}
	return key[:i], ClusterKind(key[i+1:])
}
