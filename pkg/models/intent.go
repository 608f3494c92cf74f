package models

// Aggregation is the reduction a question asks for over the resolved rows.
type Aggregation string

const (
	AggregationNone  Aggregation = "none"
	AggregationCount Aggregation = "count"
	AggregationAvg   Aggregation = "avg"
	AggregationSum   Aggregation = "sum"
	AggregationRatio Aggregation = "ratio"
)

// Filter is an equality predicate on a categorical column. Value always comes
// from the catalog's declared values, never from the question text.
type Filter struct {
	Column string `json:"column"`
	Value  any    `json:"value"`
}

// QueryIntent is the validated, structured form of a question.
// Treat it as immutable: refinement goes through WithSQL, which returns a copy.
type QueryIntent struct {
	RawQuestion      string      `json:"raw_question"`
	TeamFilter       *string     `json:"team_filter,omitempty"`
	MatchCountFilter *int        `json:"match_count_filter,omitempty"`
	ResolvedRelation string      `json:"resolved_relation"`
	ResolvedColumns  []string    `json:"resolved_columns"`
	Aggregation      Aggregation `json:"aggregation"`
	Filters          []Filter    `json:"filters,omitempty"`
	OrderBy          string      `json:"order_by,omitempty"`
	Descending       bool        `json:"descending,omitempty"`
	Limit            *int        `json:"limit,omitempty"`

	// SQLTemplate uses {{name}} placeholders; Bindings holds their values.
	SQLTemplate string         `json:"-"`
	Bindings    map[string]any `json:"-"`

	// GeneratedSQL is SQLTemplate with placeholders rewritten to $1..$n,
	// and Parameters are the bound values in that order.
	GeneratedSQL string `json:"generated_sql"`
	Parameters   []any  `json:"-"`
}

// WithSQL returns a copy of the intent carrying a different statement.
// Relation, columns and aggregation are unchanged.
func (q *QueryIntent) WithSQL(template, generated string, params []any) *QueryIntent {
	next := *q
	next.ResolvedColumns = append([]string(nil), q.ResolvedColumns...)
	next.Filters = append([]Filter(nil), q.Filters...)
	next.Bindings = make(map[string]any, len(q.Bindings))
	for k, v := range q.Bindings {
		next.Bindings[k] = v
	}
	next.SQLTemplate = template
	next.GeneratedSQL = generated
	next.Parameters = append([]any(nil), params...)
	return &next
}

// Team returns the team filter or "" when none was given.
func (q *QueryIntent) Team() string {
	if q == nil || q.TeamFilter == nil {
		return ""
	}
	return *q.TeamFilter
}
