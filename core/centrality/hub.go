package centrality

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/PhD-Shin/PKM/model"
	"github.com/google/uuid"
)

const (
	maxInsights     = 5
	maxRecencyBonus = 3.0
)

// SelectHubs returns the topK best scored entities. Denylisted entities are only
// used to fill up when fewer than topK others exist. scores must be sorted (see SortScores).
func SelectHubs(scores []*EntityScore, topK int) []model.HubEntity {
	hubs := []model.HubEntity{}
	if topK <= 0 {
		return hubs
	}

	used := map[uuid.UUID]bool{}
	add := func(es *EntityScore) {
		used[es.EntityID] = true
		hubs = append(hubs, model.HubEntity{
			EntityID: es.EntityID,
			Name:     es.Name,
			Type:     es.Type,
			Score:    es.Score,
		})
	}

	for _, es := range scores {
		if len(hubs) >= topK {
			return hubs
		}
		if !es.Denylisted {
			add(es)
		}
	}
	for _, es := range scores {
		if len(hubs) >= topK {
			break
		}
		if !used[es.EntityID] {
			add(es)
		}
	}
	return hubs
}

// DominantType is the most frequent type. Ties go to the alphabetically first type.
func DominantType(typeCounts map[string]int) string {
	dominant, best := "", 0
	for t, n := range typeCounts {
		if n > best || (n == best && t < dominant) {
			dominant, best = t, n
		}
	}
	return dominant
}

// Name derives a cluster name from its hubs, or from its dominant type without hubs.
func Name(hubs []model.HubEntity, typeCounts map[string]int) string {
	switch len(hubs) {
	case 0:
		dominant := DominantType(typeCounts)
		if dominant == "" {
			dominant = "unknown"
		}
		return fmt.Sprintf("%s Cluster", titleCase(dominant))
	case 1:
		return fmt.Sprintf("centered on %s", hubs[0].Name)
	default:
		return fmt.Sprintf("%s & %s", hubs[0].Name, hubs[1].Name)
	}
}

func titleCase(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

// Insights summarises a cluster in at most five short statements.
func Insights(hubs []model.HubEntity, recentUpdates int, typeCounts map[string]int, documentCount int) []string {
	insights := []string{}

	if len(hubs) > 0 {
		top := hubs[0]
		switch {
		case top.Score >= 0.7:
			insights = append(insights, fmt.Sprintf("'%s' is the core hub of this cluster (centrality %.2f)", top.Name, top.Score))
		case top.Score >= 0.4:
			insights = append(insights, fmt.Sprintf("'%s' is a major connector (centrality %.2f)", top.Name, top.Score))
		default:
			insights = append(insights, fmt.Sprintf("'%s' represents this cluster", top.Name))
		}
		if len(hubs) >= 2 {
			insights = append(insights, fmt.Sprintf("Related key concept: %s", hubs[1].Name))
		}
	}

	switch {
	case documentCount > 10:
		insights = append(insights, fmt.Sprintf("%d notes connected to this theme, an active area", documentCount))
	case documentCount > 5:
		insights = append(insights, fmt.Sprintf("%d notes connected, a growing area", documentCount))
	default:
		insights = append(insights, fmt.Sprintf("An emerging area with %d notes", documentCount))
	}

	switch {
	case recentUpdates > 3:
		insights = append(insights, fmt.Sprintf("%d updates in the last 7 days, actively worked on", recentUpdates))
	case recentUpdates > 0:
		insights = append(insights, fmt.Sprintf("%d recent updates", recentUpdates))
	}

	switch strings.ToLower(DominantType(typeCounts)) {
	case "task":
		insights = append(insights, "Action: review the priorities of the connected tasks")
	case "project":
		insights = append(insights, "Action: check the project milestones")
	case "topic":
		insights = append(insights, "Action: link related notes to strengthen the knowledge network")
	}

	if len(insights) > maxInsights {
		insights = insights[:maxInsights]
	}
	return insights
}

// RecencyBonus counts the documents updated within window before now and returns a bonus
// of up to 3 points that decays by one point every ten days since the latest update.
// Zero times are ignored.
func RecencyBonus(updatedAt []time.Time, now time.Time, window time.Duration) (float64, int) {
	threshold := now.Add(-window)
	recent := 0
	var latest time.Time
	for _, t := range updatedAt {
		if t.IsZero() {
			continue
		}
		if !t.Before(threshold) {
			recent++
		}
		if t.After(latest) {
			latest = t
		}
	}
	if latest.IsZero() {
		return 0, 0
	}

	days := int(now.Sub(latest).Hours() / 24)
	if days < 0 {
		days = 0
	}
	bonus := maxRecencyBonus - float64(days)/10
	if bonus < 0 {
		bonus = 0
	}
	return bonus, recent
}

// TypeCounts returns the lower cased type histogram of the scored entities.
func TypeCounts(scores []*EntityScore) map[string]int {
	counts := map[string]int{}
	for _, es := range scores {
		t := strings.ToLower(es.Type)
		if t == "" {
			t = "unknown"
		}
		counts[t]++
	}
	return counts
}

// Average is the mean composite score, 0 without scores.
func Average(scores []*EntityScore) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, es := range scores {
		sum += es.Score
	}
	return sum / float64(len(scores))
}

// Names returns up to limit entity names in score order.
func Names(scores []*EntityScore, limit int) []string {
	names := []string{}
	for _, es := range scores {
		if len(names) >= limit {
			break
		}
		names = append(names, es.Name)
	}
	return names
}

// IDs returns the entity ids in score order.
func IDs(scores []*EntityScore) []uuid.UUID {
	ids := make([]uuid.UUID, len(scores))
	for i, es := range scores {
		ids[i] = es.EntityID
	}
	return ids
}

// SortedTypes returns the keys of typeCounts in ascending order.
func SortedTypes(typeCounts map[string]int) []string {
	types := make([]string, 0, len(typeCounts))
	for t := range typeCounts {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
