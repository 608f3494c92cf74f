package services

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/vlrscout/scout-engine/pkg/apperrors"
	"github.com/vlrscout/scout-engine/pkg/catalog"
	"github.com/vlrscout/scout-engine/pkg/models"
	sqlutil "github.com/vlrscout/scout-engine/pkg/sql"
)

// Placeholder names bound by the planner.
const (
	paramTeam       = "team_name"
	paramOpponent   = "opponent_name"
	paramNumMatches = "num_matches"
	paramTopN       = "top_n"
	filterPrefix    = "f_"
)

// PlannerConfig bounds what the planner accepts.
type PlannerConfig struct {
	MaxQuestionLength int
	DefaultMatches    int
	MaxMatches        int
	RowCap            int
}

func (c PlannerConfig) withDefaults() PlannerConfig {
	if c.MaxQuestionLength <= 0 {
		c.MaxQuestionLength = 2000
	}
	if c.DefaultMatches <= 0 {
		c.DefaultMatches = 10
	}
	if c.MaxMatches <= 0 {
		c.MaxMatches = 100
	}
	if c.RowCap <= 0 {
		c.RowCap = 500
	}
	return c
}

// PlanInput is everything the planner looks at. KnownTeams is the team
// directory; Conversation is a snapshot of the session, oldest turn first.
type PlanInput struct {
	Question     string
	TeamFilter   *string
	MatchCount   *int
	KnownTeams   []string
	Conversation []models.ConversationTurn
}

// InjectionDetectedError marks a team filter that libinjection flagged.
// The planner rejects it like any unknown team; callers audit it.
type InjectionDetectedError struct {
	Result *sqlutil.InjectionCheckResult
}

func (e *InjectionDetectedError) Error() string {
	return fmt.Sprintf("injection pattern in %s (fingerprint %s)", e.Result.ParamName, e.Result.Fingerprint)
}

// QueryPlanner turns a question into a validated QueryIntent. It does no I/O and
// holds no mutable state: the same input always yields an equal intent.
type QueryPlanner struct {
	catalog *catalog.Catalog
	cfg     PlannerConfig
}

func NewQueryPlanner(cat *catalog.Catalog, cfg PlannerConfig) *QueryPlanner {
	return &QueryPlanner{catalog: cat, cfg: cfg.withDefaults()}
}

// Plan validates the input, grounds the question in the catalog and builds the SQL.
// Errors are *apperrors.Error.
func (p *QueryPlanner) Plan(in PlanInput) (*models.QueryIntent, error) {
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return nil, apperrors.New(apperrors.KindInvalidInput, "Please enter a question.")
	}
	if utf8.RuneCountInString(question) > p.cfg.MaxQuestionLength {
		return nil, apperrors.New(apperrors.KindInputTooLong,
			fmt.Sprintf("That question is too long. Please keep it under %d characters.", p.cfg.MaxQuestionLength))
	}

	team, err := p.resolveTeamFilter(in.TeamFilter, in.KnownTeams)
	if err != nil {
		return nil, err
	}

	matchCount, err := p.resolveMatchCount(in.MatchCount)
	if err != nil {
		return nil, err
	}

	normalized := normalizeText(question)
	var opponent string
	for _, mention := range findTeams(normalized, in.KnownTeams) {
		switch {
		case team == "":
			team = mention.name
		case mention.name != team && opponent == "":
			opponent = mention.name
		}
	}
	m := newPhraseMatcher(maskTeams(normalized, in.KnownTeams))

	score, err := p.ground(m, in.Conversation)
	if err != nil {
		return nil, err
	}

	intent := &models.QueryIntent{
		RawQuestion:      question,
		MatchCountFilter: &matchCount,
		ResolvedRelation: score.relation.Name,
		Aggregation:      aggregationFor(m, score.relation),
		Bindings:         make(map[string]any),
	}
	if team != "" {
		intent.TeamFilter = &team
	}

	b := &sqlBuilder{
		rel:        score.relation,
		score:      score,
		intent:     intent,
		team:       team,
		opponent:   opponent,
		matchCount: matchCount,
		topN:       clamp(m.topN(), 0, p.cfg.RowCap),
		ascending:  ascending(m),
	}
	template := b.build()

	if _, err := sqlutil.ValidateReadOnly(template); err != nil {
		return nil, apperrors.Wrap(apperrors.KindUnresolvableIntent, "", fmt.Errorf("planned SQL failed read-only check: %w", err))
	}
	if err := p.catalog.CheckSQL(template, []string{score.relation.Name}); err != nil {
		return nil, apperrors.Wrap(apperrors.KindUnresolvableIntent, "", fmt.Errorf("planned SQL failed catalog check: %w", err))
	}
	generated, params, err := sqlutil.SubstituteParameters(template, intent.Bindings)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUnresolvableIntent, "", fmt.Errorf("planned SQL failed substitution: %w", err))
	}

	intent.SQLTemplate = template
	intent.GeneratedSQL = generated
	intent.Parameters = params
	return intent, nil
}

func (p *QueryPlanner) resolveTeamFilter(filter *string, known []string) (string, error) {
	if filter == nil {
		return "", nil
	}
	name := strings.TrimSpace(*filter)
	if name == "" {
		return "", nil
	}

	if hit := sqlutil.CheckParameterForInjection(paramTeam, name); hit != nil {
		return "", apperrors.Wrap(apperrors.KindUnknownTeam, apperrors.DefaultMessage(apperrors.KindUnknownTeam),
			&InjectionDetectedError{Result: hit})
	}
	for _, t := range known {
		if strings.EqualFold(t, name) {
			return t, nil
		}
	}
	return "", apperrors.Wrap(apperrors.KindUnknownTeam,
		fmt.Sprintf("Unknown team %q. Pick a team from the list.", name), apperrors.ErrUnknownTeam)
}

func (p *QueryPlanner) resolveMatchCount(n *int) (int, error) {
	if n == nil {
		return p.cfg.DefaultMatches, nil
	}
	if *n <= 0 {
		return 0, apperrors.New(apperrors.KindInvalidInput, "The number of matches must be a positive number.")
	}
	return min(*n, p.cfg.MaxMatches), nil
}

// ground picks the relation that best explains the question.
func (p *QueryPlanner) ground(m phraseMatcher, conversation []models.ConversationTurn) (*relationScore, error) {
	var candidates []*relationScore
	for _, rel := range p.catalog.Relations() {
		if s := scoreRelation(rel, m); s.candidate() {
			candidates = append(candidates, s)
		}
	}

	if len(candidates) == 0 {
		if isFollowUp(m) {
			if last := lastRelation(conversation); last != "" {
				if rel, ok := p.catalog.Relation(last); ok {
					return scoreRelation(rel, m), nil
				}
			}
		}
		return nil, apperrors.New(apperrors.KindUnresolvableIntent, "")
	}

	best := 0
	for _, c := range candidates {
		best = max(best, c.plausibility())
	}
	var tied []*relationScore
	for _, c := range candidates {
		if c.plausibility() == best {
			tied = append(tied, c)
		}
	}
	if len(tied) == 1 {
		return tied[0], nil
	}

	for i := len(conversation) - 1; i >= 0; i-- {
		for _, c := range tied {
			if c.relation.Name == conversation[i].Relation {
				return c, nil
			}
		}
	}

	top := 0
	for _, c := range tied {
		top = max(top, c.specificity())
	}
	var mostSpecific []*relationScore
	for _, c := range tied {
		if c.specificity() == top {
			mostSpecific = append(mostSpecific, c)
		}
	}
	if len(mostSpecific) == 1 {
		return mostSpecific[0], nil
	}

	options := make([]string, len(mostSpecific))
	for i, c := range mostSpecific {
		options[i] = strings.TrimSuffix(c.relation.Description, ".")
	}
	return nil, apperrors.New(apperrors.KindAmbiguousIntent, fmt.Sprintf(
		"That question could mean more than one thing: %s. Please be more specific.", strings.Join(options, "; or ")))
}

func lastRelation(turns []models.ConversationTurn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Relation != "" {
			return turns[i].Relation
		}
	}
	return ""
}

// sqlBuilder assembles the {{param}} template for one grounded question.
type sqlBuilder struct {
	rel        *catalog.Relation
	score      *relationScore
	intent     *models.QueryIntent
	team       string
	opponent   string
	matchCount int
	topN       int
	ascending  bool

	where []string
}

func (b *sqlBuilder) build() string {
	b.addTeamPredicates()
	pinned := b.addFilters()

	dims, metrics, conceptMetric := b.columns(pinned)

	var template string
	if b.intent.Aggregation == models.AggregationNone {
		template = b.plain(dims, metrics, conceptMetric)
	} else {
		template = b.aggregated(dims, metrics, conceptMetric)
	}
	return template
}

func (b *sqlBuilder) bind(name string, value any) string {
	b.intent.Bindings[name] = value
	return "{{" + name + "}}"
}

func (b *sqlBuilder) addTeamPredicates() {
	if b.team == "" {
		return
	}
	team := b.bind(paramTeam, b.team)

	if len(b.rel.TeamColumns) == 2 {
		c1, c2 := b.rel.TeamColumns[0], b.rel.TeamColumns[1]
		if b.opponent != "" {
			opp := b.bind(paramOpponent, b.opponent)
			b.where = append(b.where, fmt.Sprintf("((%s = %s AND %s = %s) OR (%s = %s AND %s = %s))",
				c1, team, c2, opp, c1, opp, c2, team))
			return
		}
		b.where = append(b.where, fmt.Sprintf("(%s = %s OR %s = %s)", c1, team, c2, team))
		return
	}

	col := b.rel.TeamColumns[0]
	if b.opponent != "" {
		opp := b.bind(paramOpponent, b.opponent)
		b.where = append(b.where, fmt.Sprintf("%s IN (%s, %s)", col, team, opp))
		return
	}
	b.where = append(b.where, fmt.Sprintf("%s = %s", col, team))
}

// addFilters turns single matched values into equality filters and returns
// the pinned columns.
func (b *sqlBuilder) addFilters() map[string]bool {
	pinned := make(map[string]bool)
	for _, col := range b.rel.Columns {
		vals := b.score.values[col.Name]
		if len(vals) != 1 {
			continue
		}
		b.intent.Filters = append(b.intent.Filters, models.Filter{Column: col.Name, Value: vals[0].Value})
		b.where = append(b.where, fmt.Sprintf("%s = %s", col.Name, b.bind(filterPrefix+col.Name, vals[0].Value)))
		pinned[col.Name] = true
	}
	return pinned
}

// columns splits the projection into dimensions and metrics. conceptMetric is
// false when the metrics come from the relation's defaults.
func (b *sqlBuilder) columns(pinned map[string]bool) (dims, metrics []string, conceptMetric bool) {
	seen := make(map[string]bool)
	add := func(list *[]string, name string) {
		if !seen[name] {
			seen[name] = true
			*list = append(*list, name)
		}
	}

	showTeams := b.team == "" || (b.opponent != "" && len(b.rel.TeamColumns) == 1)
	if showTeams && b.intent.Aggregation == models.AggregationNone {
		for _, tc := range b.rel.TeamColumns {
			add(&dims, tc)
		}
	}
	if b.opponent != "" && len(b.rel.TeamColumns) == 1 && b.intent.Aggregation != models.AggregationNone {
		add(&dims, b.rel.TeamColumns[0])
	}

	for _, col := range b.rel.Columns {
		if pinned[col.Name] || col.SemanticType.IsMetric() {
			continue
		}
		named := b.score.concepts[col.Name] || len(b.score.values[col.Name]) > 1
		if named {
			add(&dims, col.Name)
		}
	}
	for _, col := range b.rel.Columns {
		if col.SemanticType.IsMetric() && b.score.concepts[col.Name] {
			add(&metrics, col.Name)
			conceptMetric = true
		}
	}
	if conceptMetric {
		return dims, metrics, true
	}

	if b.intent.Aggregation == models.AggregationNone {
		for _, name := range b.rel.DefaultColumns {
			if pinned[name] {
				continue
			}
			col, _ := b.rel.Column(name)
			if col.SemanticType.IsMetric() {
				add(&metrics, name)
			} else {
				add(&dims, name)
			}
		}
		return dims, metrics, false
	}

	for _, name := range b.rel.DefaultColumns {
		if col, _ := b.rel.Column(name); col.SemanticType.IsMetric() {
			add(&metrics, name)
		}
	}
	return dims, metrics, false
}

func (b *sqlBuilder) whereClause() string {
	if len(b.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.where, " AND ")
}

func (b *sqlBuilder) direction() string {
	if b.ascending && b.rel.RecencyColumn == "" {
		return "ASC"
	}
	return "DESC"
}

// limit binds the row limit: "top N" and, for relations with a recency column,
// the match window. When both apply the smaller wins.
func (b *sqlBuilder) limit(windowed bool) string {
	n, name := 0, ""
	if windowed {
		n, name = b.matchCount, paramNumMatches
	}
	if b.topN > 0 && (n == 0 || b.topN < n) {
		n, name = b.topN, paramTopN
	}
	if n == 0 {
		return ""
	}
	b.intent.Limit = &n
	return " LIMIT " + b.bind(name, n)
}

func (b *sqlBuilder) plain(dims, metrics []string, conceptMetric bool) string {
	cols := append(append([]string{}, dims...), metrics...)
	b.intent.ResolvedColumns = cols

	orderBy := b.rel.SortColumn
	if b.rel.RecencyColumn != "" {
		orderBy = b.rel.RecencyColumn
	} else if conceptMetric && len(metrics) > 0 {
		orderBy = metrics[0]
	}
	b.intent.OrderBy = orderBy
	b.intent.Descending = b.direction() == "DESC"

	return fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s %s%s",
		strings.Join(cols, ", "), b.rel.Name, b.whereClause(), orderBy, b.direction(),
		b.limit(b.rel.RecencyColumn != ""))
}

func (b *sqlBuilder) aggregated(dims, metrics []string, conceptMetric bool) string {
	var (
		exprs    = append([]string{}, dims...)
		resolved = append([]string{}, dims...)
		first    string
	)

	switch b.intent.Aggregation {
	case models.AggregationCount:
		for _, m := range metrics {
			if col, _ := b.rel.Column(m); conceptMetric && col.SemanticType == models.SemanticCount {
				alias := "total_" + m
				exprs = append(exprs, fmt.Sprintf("SUM(%s) AS %s", m, alias))
				resolved = append(resolved, m)
				if first == "" {
					first = alias
				}
			}
		}
		if first == "" {
			exprs = append(exprs, "COUNT(*) AS total")
			first = "total"
		}
	case models.AggregationAvg, models.AggregationSum:
		fn, prefix := "AVG", "avg_"
		if b.intent.Aggregation == models.AggregationSum {
			fn, prefix = "SUM", "total_"
		}
		for _, m := range metrics {
			alias := prefix + m
			exprs = append(exprs, fmt.Sprintf("%s(%s) AS %s", fn, m, alias))
			resolved = append(resolved, m)
			if first == "" {
				first = alias
			}
		}
		if first == "" {
			exprs = append(exprs, "COUNT(*) AS total")
			first = "total"
		}
	case models.AggregationRatio:
		r := b.rel.Ratio
		scale := "1.0"
		if r.Percent {
			scale = "100.0"
		}
		exprs = append(exprs, fmt.Sprintf("SUM(%s) * %s / NULLIF(SUM(%s), 0) AS %s", r.Numerator, scale, r.Denominator, r.Alias))
		resolved = append(resolved, r.Numerator, r.Denominator)
		first = r.Alias
	}
	b.intent.ResolvedColumns = resolved

	source := b.rel.Name
	where := b.whereClause()
	if b.rel.RecencyColumn != "" {
		// The match window applies to the rows being aggregated, not to the groups.
		source = fmt.Sprintf("(SELECT * FROM %s%s ORDER BY %s DESC LIMIT %s) AS recent_%s",
			b.rel.Name, where, b.rel.RecencyColumn, b.bind(paramNumMatches, b.matchCount), b.rel.Name)
		where = ""
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s", strings.Join(exprs, ", "), source, where)
	if len(dims) == 0 {
		return sql
	}

	b.intent.OrderBy = first
	b.intent.Descending = !b.ascending
	dir := "DESC"
	if b.ascending {
		dir = "ASC"
	}
	return sql + fmt.Sprintf(" GROUP BY %s ORDER BY %s %s%s", strings.Join(dims, ", "), first, dir, b.limit(false))
}

func clamp(n, lo, hi int) int {
	return max(lo, min(n, hi))
}

// IsInjection reports whether err came from a flagged team filter.
func IsInjection(err error) (*InjectionDetectedError, bool) {
	var inj *InjectionDetectedError
	if errors.As(err, &inj) {
		return inj, true
	}
	return nil, false
}
