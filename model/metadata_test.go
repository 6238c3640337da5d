package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataValue(t *testing.T) {
	t.Run("Nil metadata is stored as empty object", func(t *testing.T) {
		var m Metadata
		v, err := m.Value()
		require.NoError(t, err)
		assert.Equal(t, []byte("{}"), v)
	})

	t.Run("Metadata is stored as JSON", func(t *testing.T) {
		m := Metadata{"folder": "projects"}
		v, err := m.Value()
		require.NoError(t, err)
		assert.JSONEq(t, `{"folder":"projects"}`, string(v.([]byte)))
	})
}

func TestMetadataScan(t *testing.T) {
	t.Run("Scan JSON bytes from Postgres", func(t *testing.T) {
		var m Metadata
		err := m.Scan([]byte(`{"source":"obsidian","count":3}`))
		require.NoError(t, err)
		assert.Equal(t, "obsidian", m["source"])
		assert.Equal(t, float64(3), m["count"])
	})

	t.Run("Scan JSON text from SQLite", func(t *testing.T) {
		var m Metadata
		err := m.Scan(`{"source":"sqlite"}`)
		require.NoError(t, err)
		s, ok := m.String("source")
		assert.True(t, ok)
		assert.Equal(t, "sqlite", s)
	})

	t.Run("Scan NULL gives empty metadata", func(t *testing.T) {
		m := Metadata{"stale": true}
		err := m.Scan(nil)
		require.NoError(t, err)
		assert.Empty(t, m)
	})

	t.Run("Scan invalid JSON fails", func(t *testing.T) {
		var m Metadata
		assert.Error(t, m.Scan([]byte(`{not json`)))
	})

	t.Run("Scan unsupported type fails", func(t *testing.T) {
		var m Metadata
		err := m.Scan(42)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported type")
	})
}

func TestMetadataHelpers(t *testing.T) {
	t.Run("String ignores non-string values", func(t *testing.T) {
		m := Metadata{"n": 1}
		_, ok := m.String("n")
		assert.False(t, ok)
		_, ok = m.String("missing")
		assert.False(t, ok)
	})

	t.Run("Clone does not share the map", func(t *testing.T) {
		m := Metadata{"a": "b"}
		c := m.Clone()
		c["a"] = "c"
		assert.Equal(t, "b", m["a"])
		assert.Nil(t, Metadata(nil).Clone())
	})
}
