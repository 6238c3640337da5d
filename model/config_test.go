package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultClusterConfig(t *testing.T) {
	t.Run("Returns correct default values", func(t *testing.T) {
		config := DefaultClusterConfig()

		assert.Equal(t, 3, config.TopK, "Default TopK should be 3")
		assert.Equal(t, 1.0, config.Resolution, "Default Resolution should be 1.0")
		assert.Equal(t, int64(42), config.Seed, "Default Seed should be 42")
		assert.Equal(t, 5, config.MinPoints)
		assert.Equal(t, 2, config.MinSamples)
		assert.Equal(t, 0.1, config.Epsilon)
		assert.Equal(t, 7*24*time.Hour, config.RecentWindow)
		assert.Equal(t, 12*time.Hour, config.CacheTTL, "Default CacheTTL should be 12h")
		assert.Equal(t, []string{"Topic", "Project", "Task", "Person"}, config.IncludeTypes)
		assert.Equal(t, 1, config.MinConnections)
		assert.Equal(t, 1000, config.EntityLimit)
		assert.Empty(t, config.EntityView.IncludeTypes, "Entity views should keep every type")
		assert.Equal(t, 1, config.EntityView.MinConnections)
		assert.Equal(t, 1000, config.EntityView.EntityLimit)
		assert.Contains(t, config.Denylist, "서울대학교")
		assert.Contains(t, config.Denylist, "meeting")
		assert.NoError(t, config.Validate())
	})

	t.Run("Denylist is a copy of the defaults", func(t *testing.T) {
		config := DefaultClusterConfig()
		config.Denylist[0] = "changed"

		assert.Equal(t, "서울대학교", DefaultGenericEntities[0], "Modifying a config must not change the defaults")
	})
}

func TestClusterConfigValidate(t *testing.T) {
	cases := map[string]func(c *ClusterConfig){
		"negative top_k":       func(c *ClusterConfig) { c.TopK = -1 },
		"zero resolution":      func(c *ClusterConfig) { c.Resolution = 0 },
		"zero min_samples":     func(c *ClusterConfig) { c.MinSamples = 0 },
		"min_points below two": func(c *ClusterConfig) { c.MinPoints = 1 },
		"negative epsilon":     func(c *ClusterConfig) { c.Epsilon = -0.1 },
		"zero cache ttl":       func(c *ClusterConfig) { c.CacheTTL = 0 },
	}
	for name, mutate := range cases {
		t.Run("Rejects "+name, func(t *testing.T) {
			config := DefaultClusterConfig()
			mutate(&config)
			assert.Error(t, config.Validate())
		})
	}
}

func TestLoadClusterConfigFile(t *testing.T) {
	t.Run("Overrides defaults from YAML", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "clusters.yaml")
		content := `
top_k: 5
resolution: 1.5
cache_ttl: 30m
include_types: [Concept, Topic]
min_connections: 2
entity_view:
  include_types: [Goal]
  min_connections: 3
extra_denylist: [weekly review]
relations:
  - from: Concept
    to: Person
    edge_type: TAUGHT_BY
    label: taught by
    description: Concept is taught by a person
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		config, err := LoadClusterConfigFile(path)
		require.NoError(t, err)

		assert.Equal(t, 5, config.TopK)
		assert.Equal(t, 1.5, config.Resolution)
		assert.Equal(t, 30*time.Minute, config.CacheTTL)
		assert.Equal(t, []string{"Concept", "Topic"}, config.IncludeTypes)
		assert.Equal(t, 2, config.MinConnections)
		assert.Equal(t, 1000, config.EntityLimit, "Unset values keep their defaults")
		assert.Equal(t, []string{"Goal"}, config.EntityView.IncludeTypes)
		assert.Equal(t, 3, config.EntityView.MinConnections)
		assert.Equal(t, 1000, config.EntityView.EntityLimit, "Unset entity view values keep their defaults")
		assert.Contains(t, config.Denylist, "weekly review")
		assert.Contains(t, config.Denylist, "snu", "Extra denylist terms are appended to the defaults")
		require.Len(t, config.Relations, 1)
		assert.Equal(t, EdgeType("TAUGHT_BY"), config.Relations[0].EdgeType)
	})

	t.Run("Invalid values are rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "clusters.yaml")
		require.NoError(t, os.WriteFile(path, []byte("resolution: -1\n"), 0644))

		_, err := LoadClusterConfigFile(path)
		assert.Error(t, err)
	})

	t.Run("Missing file is an error", func(t *testing.T) {
		_, err := LoadClusterConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}
