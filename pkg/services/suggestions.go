package services

import (
	"strings"

	"github.com/vlrscout/scout-engine/pkg/catalog"
	"github.com/vlrscout/scout-engine/pkg/models"
)

// MaxSuggestions bounds a SuggestionSet.
const MaxSuggestions = 6

// SuggestionGenerator offers follow-up questions from the catalog's templates.
// It is deterministic: the same team and conversation give the same list.
type SuggestionGenerator struct {
	catalog *catalog.Catalog
}

func NewSuggestionGenerator(cat *catalog.Catalog) *SuggestionGenerator {
	return &SuggestionGenerator{catalog: cat}
}

// Suggest returns at most MaxSuggestions questions. The most recent relation
// comes first, then relations not yet asked about, then the rest from oldest
// to newest. Questions already asked are skipped.
func (g *SuggestionGenerator) Suggest(teamFilter *string, turns []models.ConversationTurn) models.SuggestionSet {
	team := ""
	if teamFilter != nil {
		team = strings.TrimSpace(*teamFilter)
	}

	asked := make(map[string]bool, len(turns))
	for _, turn := range turns {
		asked[normalizeText(turn.Question)] = true
	}

	queues := make([][]string, 0, len(g.catalog.Relations()))
	for _, rel := range g.orderRelations(turns) {
		var queue []string
		for _, tmpl := range rel.Suggestions {
			hasTeam := strings.Contains(tmpl, "{team}")
			if hasTeam && team == "" {
				continue
			}
			q := strings.ReplaceAll(tmpl, "{team}", team)
			if asked[normalizeText(q)] {
				continue
			}
			queue = append(queue, q)
		}
		queues = append(queues, queue)
	}

	set := models.SuggestionSet{Suggestions: []string{}}
	if team != "" {
		set.TeamFilter = &team
	}
	seen := make(map[string]bool)
	for pass := 0; len(set.Suggestions) < MaxSuggestions; pass++ {
		added := false
		for _, queue := range queues {
			if pass >= len(queue) {
				continue
			}
			added = true
			key := normalizeText(queue[pass])
			if seen[key] {
				continue
			}
			seen[key] = true
			set.Suggestions = append(set.Suggestions, queue[pass])
			if len(set.Suggestions) == MaxSuggestions {
				break
			}
		}
		if !added {
			break
		}
	}
	return set
}

func (g *SuggestionGenerator) orderRelations(turns []models.ConversationTurn) []*catalog.Relation {
	lastUse := make(map[string]int)
	for i, turn := range turns {
		if turn.Relation != "" {
			lastUse[turn.Relation] = i
		}
	}
	latest := lastRelation(turns)

	var (
		ordered []*catalog.Relation
		used    []*catalog.Relation
	)
	if rel, ok := g.catalog.Relation(latest); ok {
		ordered = append(ordered, rel)
	}
	for _, rel := range g.catalog.Relations() {
		if _, ok := lastUse[rel.Name]; !ok {
			ordered = append(ordered, rel)
		} else if rel.Name != latest {
			used = append(used, rel)
		}
	}
	// Insertion sort keeps catalog order among equal positions; used is tiny.
	for i := 1; i < len(used); i++ {
		for j := i; j > 0 && lastUse[used[j].Name] < lastUse[used[j-1].Name]; j-- {
			used[j], used[j-1] = used[j-1], used[j]
		}
	}
	return append(ordered, used...)
}
