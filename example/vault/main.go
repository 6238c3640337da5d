package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PhD-Shin/PKM"
	"github.com/PhD-Shin/PKM/core/cache"
	"github.com/PhD-Shin/PKM/helper"
	"github.com/PhD-Shin/PKM/model"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	frontmatterRe = regexp.MustCompile(`(?s)\A---\n(.*?)\n---\n?`)
	wikiLinkRe    = regexp.MustCompile(`\[\[([^|\]]+)(?:\|([^\]]+))?\]\]`)
	tagRe         = regexp.MustCompile(`(?:^|\s)#([a-zA-Z][a-zA-Z0-9/_-]+)`)
)

type entityKey struct {
	name string
	typ  string
}

// note is a parsed markdown file. Links become Topic entities, tags Concept entities.
type note struct {
	doc   *model.Document
	links []string
	tags  []string
}

func parseNote(vaultID, root, path string) (*note, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	metadata := model.Metadata{}
	body := string(content)
	if m := frontmatterRe.FindStringSubmatch(body); m != nil {
		if err := yaml.Unmarshal([]byte(m[1]), &metadata); err != nil {
			log.Printf("Ignoring invalid frontmatter in %s: %v", path, err)
		}
		body = body[len(m[0]):]
	}

	doc, err := model.NewDocumentFromFile(vaultID, root, path, metadata)
	if err != nil {
		return nil, err
	}
	if title, ok := metadata.String("title"); ok {
		doc.Title = title
	}

	n := &note{doc: doc}
	seen := map[string]bool{}
	for _, m := range wikiLinkRe.FindAllStringSubmatch(body, -1) {
		name := strings.TrimSpace(m[1])
		if name != "" && !seen[name] {
			seen[name] = true
			n.links = append(n.links, name)
		}
	}
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		if !seen["#"+m[1]] {
			seen["#"+m[1]] = true
			n.tags = append(n.tags, m[1])
		}
	}
	return n, nil
}

func main() {
	vaultDir := flag.String("vault", ".", "directory of the markdown vault")
	vaultID := flag.String("id", "", "vault id, defaults to the directory name")
	configFile := flag.String("config", "", "optional YAML cluster configuration")
	cacheFile := flag.String("cache", "", "optional SQLite file for the cluster cache")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	dbConfig, err := helper.NewDatabaseConfiguration()
	if err != nil {
		log.Fatalf("Failed to read database configuration: %v", err)
	}

	opts := pkm.Options{}
	if *configFile != "" {
		cfg, err := model.LoadClusterConfigFile(*configFile)
		if err != nil {
			log.Fatalf("Failed to load cluster configuration: %v", err)
		}
		opts.Cluster = &cfg
	}
	if *cacheFile != "" {
		store, err := cache.NewSQLiteStore(*cacheFile)
		if err != nil {
			log.Fatalf("Failed to open cache: %v", err)
		}
		opts.CacheStore = store
	}

	p, err := pkm.NewPKM(dbConfig, opts)
	if err != nil {
		log.Fatalf("Failed to create pkm: %v", err)
	}
	defer p.Close()

	root, err := filepath.Abs(*vaultDir)
	if err != nil {
		log.Fatalf("Failed to resolve vault directory: %v", err)
	}
	if *vaultID == "" {
		*vaultID = filepath.Base(root)
	}

	var notes []*note
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		if d.IsDir() || filepath.Ext(path) != ".md" {
			return nil
		}
		n, err := parseNote(*vaultID, root, path)
		if err != nil {
			return err
		}
		notes = append(notes, n)
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to read vault: %v", err)
	}

	entities := map[entityKey]*model.Entity{}
	entity := func(name, typ string) *model.Entity {
		key := entityKey{strings.ToLower(name), typ}
		if e, ok := entities[key]; ok {
			return e
		}
		e := &model.Entity{VaultID: *vaultID, Name: name, Type: typ}
		if err := p.Entities.InsertEntity(e); err != nil {
			log.Fatalf("Failed to insert entity %s: %v", name, err)
		}
		entities[key] = e
		return e
	}

	for _, n := range notes {
		if err := p.Documents.InsertDocument(n.doc); err != nil {
			log.Fatalf("Failed to insert note %s: %v", n.doc.Path, err)
		}

		var linked []*model.Entity
		for _, name := range n.links {
			linked = append(linked, entity(name, "Topic"))
		}
		for _, tag := range n.tags {
			linked = append(linked, entity(tag, "Concept"))
		}
		for i, e := range linked {
			if err := p.Mentions.InsertMention(&model.Mention{DocumentRID: n.doc.RID, EntityID: e.ID}); err != nil {
				log.Fatalf("Failed to insert mention: %v", err)
			}
			// Consecutive links of a note are related
			if i > 0 && i < len(n.links) {
				edge := &model.Edge{
					SourceEntityID: linked[i-1].ID,
					TargetEntityID: e.ID,
					EdgeType:       model.EdgeTypeRelatedTo,
					Fact:           n.doc.Title,
				}
				if err := p.Edges.InsertEdge(edge); err != nil {
					log.Fatalf("Failed to insert edge: %v", err)
				}
			}
		}
	}
	fmt.Printf("Imported %d notes and %d entities into vault %s\n", len(notes), len(entities), *vaultID)

	ctx := context.Background()
	for _, kind := range []model.ClusterKind{model.ClusterKindDocuments, model.ClusterKindEntities} {
		result, err := p.Clusters(ctx, pkm.ClusterRequest{Scope: model.Scope{VaultID: *vaultID}, Kind: kind, ForceRecompute: true})
		if err != nil {
			log.Fatalf("Failed to compute %s clusters: %v", kind, err)
		}

		fmt.Printf("\n%s clusters (%s, %s):\n", kind, result.Status, result.Method)
		for _, c := range result.Clusters {
			fmt.Printf("  %-12s %-40s %3d members  %s\n", c.ID, c.Name, c.NodeCount, c.Summary)
		}
	}
}
