package model

import (
	"fmt"
	"os"
	"time"

	"github.com/PhD-Shin/PKM/helper"
	"gopkg.in/yaml.v3"
)

// DefaultGenericEntities are names too common in a vault to represent a cluster.
var DefaultGenericEntities = []string{
	"서울대학교", "서울대", "snu", "seoul national university",
	"대학교", "대학", "연구실", "연구소", "학교",
	"연구", "논문", "프로젝트", "회의", "미팅",
	"정리", "메모", "노트",
	"research", "paper", "project", "meeting", "note", "memo",
	"2024", "2025", "오늘", "내일", "이번주",
	"todo", "task", "idea",
	"개념", "정의", "요약",
}

// RelationRule overrides or extends the (from type, to type) relation table.
type RelationRule struct {
	From        string   `json:"from" yaml:"from"`
	To          string   `json:"to" yaml:"to"`
	EdgeType    EdgeType `json:"edge_type" yaml:"edge_type"`
	Label       string   `json:"label" yaml:"label"`
	Description string   `json:"description" yaml:"description"`
}

// ClusterConfig holds the tunables of a clustering run.
type ClusterConfig struct {
	EntityFilter `yaml:",inline"`
	// EntityView filters the entity level views. It has no type restriction by default
	// so that every PKM type can form a cluster.
	EntityView EntityFilter `json:"entity_view" yaml:"entity_view"`

	// Hub selection
	TopK     int      `json:"top_k" yaml:"top_k"`
	Denylist []string `json:"denylist" yaml:"denylist"`

	// Louvain
	Resolution float64 `json:"resolution" yaml:"resolution"`

	// Reducer and HDBSCAN
	Seed       int64   `json:"seed" yaml:"seed"`
	MinPoints  int     `json:"min_points" yaml:"min_points"`
	MinSamples int     `json:"min_samples" yaml:"min_samples"`
	Epsilon    float64 `json:"epsilon" yaml:"epsilon"`

	// Recency and caching
	RecentWindow time.Duration `json:"recent_window" yaml:"recent_window"`
	CacheTTL     time.Duration `json:"cache_ttl" yaml:"cache_ttl"`

	Relations []RelationRule `json:"relations,omitempty" yaml:"relations"`
}

// DefaultClusterConfig returns the configuration used when nothing is overridden.
func DefaultClusterConfig() ClusterConfig {
	return ClusterConfig{
		EntityFilter: EntityFilter{
			IncludeTypes:   []string{"Topic", "Project", "Task", "Person"},
			MinConnections: 1,
			EntityLimit:    1000,
		},
		EntityView: EntityFilter{
			MinConnections: 1,
			EntityLimit:    1000,
		},
		TopK:         3,
		Denylist:     append([]string(nil), DefaultGenericEntities...),
		Resolution:   1.0,
		Seed:         42,
		MinPoints:    5,
		MinSamples:   2,
		Epsilon:      0.1,
		RecentWindow: 7 * 24 * time.Hour,
		CacheTTL:     12 * time.Hour,
	}
}

// fileConfig mirrors ClusterConfig for YAML files. ExtraDenylist is appended to the defaults.
type fileConfig struct {
	ClusterConfig `yaml:",inline"`
	ExtraDenylist []string `yaml:"extra_denylist"`
}

// LoadClusterConfigFile reads a YAML file on top of DefaultClusterConfig.
func LoadClusterConfigFile(path string) (ClusterConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return ClusterConfig{}, helper.NewError("read cluster config", err)
	}

	fc := fileConfig{ClusterConfig: DefaultClusterConfig()}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return ClusterConfig{}, helper.NewError("parse cluster config", err)
	}
	fc.Denylist = append(fc.Denylist, fc.ExtraDenylist...)

	if err := fc.ClusterConfig.Validate(); err != nil {
		return ClusterConfig{}, err
	}
	return fc.ClusterConfig, nil
}

// Validate checks the configuration for values no component can work with.
func (c ClusterConfig) Validate() error {
	switch {
	case c.TopK < 0:
		return helper.NewError("validate cluster config", fmt.Errorf("top_k must not be negative, got %d", c.TopK))
	case c.Resolution <= 0:
		return helper.NewError("validate cluster config", fmt.Errorf("resolution must be positive, got %v", c.Resolution))
	case c.MinSamples < 1:
		return helper.NewError("validate cluster config", fmt.Errorf("min_samples must be at least 1, got %d", c.MinSamples))
	case c.MinPoints < 2:
		return helper.NewError("validate cluster config", fmt.Errorf("min_points must be at least 2, got %d", c.MinPoints))
	case c.Epsilon < 0:
		return helper.NewError("validate cluster config", fmt.Errorf("epsilon must not be negative, got %v", c.Epsilon))
	case c.CacheTTL <= 0:
		return helper.NewError("validate cluster config", fmt.Errorf("cache_ttl must be positive, got %v", c.CacheTTL))
	}
	return nil
}
