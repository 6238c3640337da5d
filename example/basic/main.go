package main

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/PhD-Shin/PKM"
	"github.com/PhD-Shin/PKM/helper"
	"github.com/PhD-Shin/PKM/model"
	"github.com/google/uuid"
)

// Two groups of notes whose embeddings point in clearly different directions.
var notes = []struct {
	title    string
	path     string
	group    int
	entities []string
}{
	{"Louvain basics", "research/louvain.md", 0, []string{"community detection", "modularity"}},
	{"Modularity notes", "research/modularity.md", 0, []string{"modularity", "graph theory"}},
	{"Graph reading list", "research/reading.md", 0, []string{"graph theory", "community detection"}},
	{"Resolution parameter", "research/resolution.md", 0, []string{"modularity", "community detection"}},
	{"Leiden vs Louvain", "research/leiden.md", 0, []string{"community detection", "graph theory"}},
	{"Dense subgraphs", "research/dense.md", 0, []string{"graph theory"}},
	{"Sprint planning", "work/sprint.md", 1, []string{"pkm app", "release"}},
	{"Release checklist", "work/release.md", 1, []string{"release", "pkm app"}},
	{"Backlog grooming", "work/backlog.md", 1, []string{"pkm app", "backlog"}},
	{"Retro notes", "work/retro.md", 1, []string{"backlog", "release"}},
	{"Roadmap", "work/roadmap.md", 1, []string{"pkm app"}},
	{"Standup log", "work/standup.md", 1, []string{"backlog"}},
}

var entityTypes = map[string]string{
	"community detection": "Topic",
	"modularity":          "Topic",
	"graph theory":        "Topic",
	"pkm app":             "Project",
	"release":             "Task",
	"backlog":             "Task",
}

// embedding returns a 16 dimensional vector near the axis of its group.
func embedding(group, i int) []float32 {
	v := make([]float32, 16)
	for d := range v {
		v[d] = float32(0.05 * math.Sin(float64(i*16+d)))
	}
	v[group*8] += 1
	v[group*8+1] += 0.5
	return v
}

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration using the container port
	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	cfg := model.DefaultClusterConfig()
	cfg.MinPoints = 3
	p, err := pkm.NewPKM(dbConfig, pkm.Options{Cluster: &cfg})
	if err != nil {
		log.Fatalf("Failed to create pkm: %v", err)
	}
	defer p.Close()

	vaultID := uuid.NewString()
	entities := map[string]*model.Entity{}
	for name, typ := range entityTypes {
		e := &model.Entity{VaultID: vaultID, Name: name, Type: typ}
		if err := p.Entities.InsertEntity(e); err != nil {
			log.Fatalf("Failed to insert entity: %v", err)
		}
		entities[name] = e
	}

	fmt.Println("Ingesting notes...")
	for i, n := range notes {
		doc := &model.Document{
			VaultID:   vaultID,
			Title:     n.title,
			Path:      n.path,
			Embedding: embedding(n.group, i),
		}
		if err := p.Documents.InsertDocument(doc); err != nil {
			log.Fatalf("Failed to insert document: %v", err)
		}
		for _, name := range n.entities {
			if err := p.Mentions.InsertMention(&model.Mention{DocumentRID: doc.RID, EntityID: entities[name].ID}); err != nil {
				log.Fatalf("Failed to insert mention: %v", err)
			}
		}
	}

	relations := [][2]string{
		{"community detection", "modularity"},
		{"modularity", "graph theory"},
		{"pkm app", "release"},
		{"pkm app", "backlog"},
		{"pkm app", "graph theory"},
	}
	for _, r := range relations {
		edge := &model.Edge{SourceEntityID: entities[r[0]].ID, TargetEntityID: entities[r[1]].ID}
		if err := p.Edges.InsertEdge(edge); err != nil {
			log.Fatalf("Failed to insert edge: %v", err)
		}
	}

	ctx := context.Background()
	result, err := p.Clusters(ctx, pkm.ClusterRequest{Scope: model.Scope{VaultID: vaultID}})
	if err != nil {
		log.Fatalf("Failed to compute clusters: %v", err)
	}
	printResult("Document clusters", result)

	result, err = p.Clusters(ctx, pkm.ClusterRequest{Scope: model.Scope{VaultID: vaultID}, Kind: model.ClusterKindEntities})
	if err != nil {
		log.Fatalf("Failed to compute entity clusters: %v", err)
	}
	printResult("Entity clusters", result)

	if len(result.Clusters) > 0 {
		detail, err := p.ClusterDetail(ctx, vaultID, result.Clusters[0].ID)
		if err != nil {
			log.Fatalf("Failed to describe cluster: %v", err)
		}
		fmt.Printf("\nDetail of %s:\n", detail.Cluster.Name)
		for _, r := range detail.Relations {
			fmt.Printf("  %s (%s)\n", r.Label, r.Relation)
		}
	}

	// A second request is served from the cache
	result, err = p.Clusters(ctx, pkm.ClusterRequest{Scope: model.Scope{VaultID: vaultID}})
	if err != nil {
		log.Fatalf("Failed to read clusters: %v", err)
	}
	fmt.Printf("\nServed from cache: %v\n", result.FromCache)
}

func printResult(title string, result *model.ClusterResult) {
	fmt.Printf("\n%s (%s, %d nodes):\n", title, result.Method, result.TotalNodes)
	for _, c := range result.Clusters {
		fmt.Printf("  %s: %s, %d members, importance %.1f\n", c.ID, c.Name, c.NodeCount, c.ImportanceScore)
		for _, h := range c.Hubs {
			fmt.Printf("    hub %s (%s) %.2f\n", h.Name, h.Type, h.Score)
		}
	}
	for _, e := range result.Edges {
		fmt.Printf("  %s -> %s weight %.0f %s\n", e.From, e.To, e.Weight, e.Label)
	}
}
