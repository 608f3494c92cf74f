package services

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/vlrscout/scout-engine/pkg/catalog"
	"github.com/vlrscout/scout-engine/pkg/models"
)

var (
	possessiveSuffix = regexp.MustCompile(`'s\b`)
	nonAlphanumeric  = regexp.MustCompile(`[^a-z0-9]+`)
	topNPattern      = regexp.MustCompile(`\btop (\d{1,4})\b`)
)

// normalizeText lowercases s, drops possessive 's and turns every run of
// non-alphanumerics into a single space.
func normalizeText(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "’", "'")
	s = possessiveSuffix.ReplaceAllString(s, "")
	s = nonAlphanumeric.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// phraseMatcher answers word-boundary phrase lookups against a normalized question.
type phraseMatcher struct {
	padded string
}

func newPhraseMatcher(normalized string) phraseMatcher {
	return phraseMatcher{padded: " " + normalized + " "}
}

// has reports whether phrase, or its plural, occurs as whole words.
func (m phraseMatcher) has(phrase string) bool {
	p := normalizeText(phrase)
	if p == "" {
		return false
	}
	if strings.Contains(m.padded, " "+p+" ") {
		return true
	}
	plural := inflection.Plural(p)
	return plural != p && strings.Contains(m.padded, " "+plural+" ")
}

func (m phraseMatcher) hasAny(phrases ...string) bool {
	for _, p := range phrases {
		if m.has(p) {
			return true
		}
	}
	return false
}

func (m phraseMatcher) hasPrefix(phrases ...string) bool {
	for _, p := range phrases {
		if strings.HasPrefix(m.padded, " "+p+" ") {
			return true
		}
	}
	return false
}

// topN returns N from "top N", or 0.
func (m phraseMatcher) topN() int {
	match := topNPattern.FindStringSubmatch(m.padded)
	if match == nil {
		return 0
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return n
}

type teamMention struct {
	name string
	pos  int
}

// findTeams returns the known teams mentioned in a normalized question, in order
// of appearance. Overlapping mentions resolve to the longest name.
func findTeams(normalized string, known []string) []teamMention {
	padded := " " + normalized + " "
	type span struct {
		name       string
		start, end int
	}
	var spans []span
	for _, team := range known {
		n := normalizeText(team)
		if n == "" {
			continue
		}
		needle := " " + n + " "
		offset := 0
		for {
			idx := strings.Index(padded[offset:], needle)
			if idx < 0 {
				break
			}
			start := offset + idx
			spans = append(spans, span{name: team, start: start, end: start + len(needle)})
			offset = start + 1
		}
	}

	sort.SliceStable(spans, func(i, j int) bool {
		li, lj := spans[i].end-spans[i].start, spans[j].end-spans[j].start
		if li != lj {
			return li > lj
		}
		return spans[i].start < spans[j].start
	})

	var kept []span
	seen := make(map[string]bool)
	for _, s := range spans {
		overlaps := false
		for _, k := range kept {
			if s.start < k.end-1 && k.start < s.end-1 {
				overlaps = true
				break
			}
		}
		if overlaps {
			continue
		}
		kept = append(kept, s)
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].start < kept[j].start })

	mentions := make([]teamMention, 0, len(kept))
	for _, k := range kept {
		if seen[k.name] {
			continue
		}
		seen[k.name] = true
		mentions = append(mentions, teamMention{name: k.name, pos: k.start})
	}
	return mentions
}

// maskTeams blanks every known team name so team words never ground a relation.
func maskTeams(normalized string, known []string) string {
	padded := " " + normalized + " "
	names := make([]string, 0, len(known))
	for _, t := range known {
		if n := normalizeText(t); n != "" {
			names = append(names, n)
		}
	}
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	for _, n := range names {
		for strings.Contains(padded, " "+n+" ") {
			padded = strings.ReplaceAll(padded, " "+n+" ", "  ")
		}
	}
	return strings.Join(strings.Fields(padded), " ")
}

// relationScore is how well one relation explains a question.
type relationScore struct {
	relation  *catalog.Relation
	topicHits int
	// values holds matched categorical values per column, in declaration order.
	values   map[string][]catalog.Value
	concepts map[string]bool
}

// plausibility counts topic and value hits: evidence the question is about this data.
func (s *relationScore) plausibility() int {
	n := s.topicHits
	for _, vals := range s.values {
		n += len(vals)
	}
	return n
}

// specificity counts the columns the question names through a concept or a value.
func (s *relationScore) specificity() int {
	cols := make(map[string]bool, len(s.concepts)+len(s.values))
	for c := range s.concepts {
		cols[c] = true
	}
	for c := range s.values {
		cols[c] = true
	}
	return len(cols)
}

func (s *relationScore) candidate() bool {
	return s.plausibility()+s.specificity() > 0
}

func scoreRelation(rel *catalog.Relation, m phraseMatcher) *relationScore {
	score := &relationScore{
		relation: rel,
		values:   make(map[string][]catalog.Value),
		concepts: make(map[string]bool),
	}
	for _, topic := range rel.Topics {
		if m.has(topic) {
			score.topicHits++
		}
	}
	for _, col := range rel.Columns {
		if m.hasAny(col.Concepts...) {
			score.concepts[col.Name] = true
		}
		if col.SemanticType != models.SemanticCategorical {
			continue
		}
		for _, val := range col.Values {
			if m.hasAny(val.Phrases()...) {
				score.values[col.Name] = append(score.values[col.Name], val)
			}
		}
	}
	return score
}

// aggregationFor picks the reduction a question asks for.
func aggregationFor(m phraseMatcher, rel *catalog.Relation) models.Aggregation {
	switch {
	case m.hasAny("how many", "number of", "count"):
		return models.AggregationCount
	case m.hasAny("average", "avg", "mean"):
		return models.AggregationAvg
	case m.hasAny("total", "sum"):
		return models.AggregationSum
	case rel.Ratio != nil && m.hasAny("overall", "combined", "aggregate"):
		return models.AggregationRatio
	default:
		return models.AggregationNone
	}
}

// ascending reports whether the question asks for the bottom of the ranking.
func ascending(m phraseMatcher) bool {
	return m.hasAny("worst", "lowest", "least", "weakest", "weak", "weakness", "ban", "bottom", "fewest")
}

func isFollowUp(m phraseMatcher) bool {
	return m.hasPrefix("what about", "how about", "and", "what of")
}
