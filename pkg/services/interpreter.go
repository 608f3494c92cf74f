package services

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/vlrscout/scout-engine/pkg/catalog"
	"github.com/vlrscout/scout-engine/pkg/llm"
	"github.com/vlrscout/scout-engine/pkg/logging"
	"github.com/vlrscout/scout-engine/pkg/models"
	"github.com/vlrscout/scout-engine/pkg/prompts"
)

// rankedRows is how many rows a multi-row answer names.
const rankedRows = 3

// InterpreterConfig controls answer phrasing.
type InterpreterConfig struct {
	// LLMProse lets the LLM phrase non-empty results. Deterministic prose is
	// always computed and used whenever the LLM fails or returns nothing.
	LLMProse bool
	RowCap   int
}

// InterpretInput is one executed question.
type InterpretInput struct {
	Question string
	Intent   *models.QueryIntent
	Result   *models.ExecutionResult
}

// ResultInterpreter turns an execution result into prose. Values are rounded
// here and only here; the result rows keep full precision.
type ResultInterpreter struct {
	catalog *catalog.Catalog
	llm     llm.LLMClient
	cfg     InterpreterConfig
	logger  *zap.Logger
}

// NewResultInterpreter creates an interpreter. llmClient may be nil.
func NewResultInterpreter(cat *catalog.Catalog, llmClient llm.LLMClient, cfg InterpreterConfig, logger *zap.Logger) *ResultInterpreter {
	if cfg.RowCap <= 0 {
		cfg.RowCap = 500
	}
	return &ResultInterpreter{
		catalog: cat,
		llm:     llmClient,
		cfg:     cfg,
		logger:  logger.Named("interpreter"),
	}
}

// Interpret explains the result. The only errors are LLM timeouts, rate limits
// and quota exhaustion, as *apperrors.Error.
func (i *ResultInterpreter) Interpret(ctx context.Context, in InterpretInput) (string, error) {
	if in.Intent == nil {
		in.Intent = &models.QueryIntent{}
	}
	rel := i.relation(in.Intent)

	if in.Result == nil || in.Result.RowCount == 0 || len(in.Result.Rows) == 0 {
		return noDataMessage(rel, in.Intent), nil
	}

	prose := describeResult(rel, in.Intent, in.Result)

	if i.cfg.LLMProse && i.llm != nil {
		phrased, err := i.phrase(ctx, rel, in, prose)
		switch {
		case err != nil:
			if fail := generationFailure(err); fail != nil {
				return "", fail
			}
			i.logger.Warn("LLM phrasing failed, using deterministic prose",
				zap.String("relation", rel.Name),
				zap.String("error", logging.SanitizeError(err)))
		case phrased != "":
			prose = phrased
		}
	}

	if note := truncationNote(in.Result); note != "" {
		prose += " " + note
	}
	return prose, nil
}

// Table renders up to maxRows rows as a plain-text table with prose rounding.
func (i *ResultInterpreter) Table(intent *models.QueryIntent, result *models.ExecutionResult, maxRows int) string {
	return renderTable(i.relation(intent), result, maxRows)
}

func (i *ResultInterpreter) relation(intent *models.QueryIntent) *catalog.Relation {
	if intent != nil {
		if rel, ok := i.catalog.Relation(intent.ResolvedRelation); ok {
			return rel
		}
	}
	return &catalog.Relation{RowNoun: "row"}
}

func (i *ResultInterpreter) phrase(ctx context.Context, rel *catalog.Relation, in InterpretInput, summary string) (string, error) {
	prompt := prompts.BuildInterpretationPrompt(prompts.InterpretationContext{
		Question: in.Question,
		Team:     in.Intent.Team(),
		Summary:  summary,
		Table:    renderTable(rel, in.Result, prompts.MaxPromptRows),
		RowCount: in.Result.RowCount,
	})

	resp, err := i.llm.GenerateResponse(llm.WithPurpose(ctx, "interpret"), prompt, prompts.InterpretationSystemMessage(), 0.3)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(llm.CleanResponse(resp.Content)), nil
}

// outputColumn is how a result column reads in prose.
type outputColumn struct {
	label  string
	kind   models.SemanticType
	column *catalog.Column
}

// describeColumn resolves a result column, including the planner's aggregate aliases.
func describeColumn(rel *catalog.Relation, name string) outputColumn {
	if col, ok := rel.Column(name); ok {
		return outputColumn{label: col.DisplayLabel(), kind: col.SemanticType, column: col}
	}
	if rel.Ratio != nil && name == rel.Ratio.Alias {
		kind := models.SemanticRatio
		if rel.Ratio.Percent {
			kind = models.SemanticPercentage
		}
		label := rel.Ratio.Label
		if label == "" {
			label = strings.ReplaceAll(name, "_", " ")
		}
		return outputColumn{label: label, kind: kind}
	}
	if name == "total" {
		return outputColumn{label: "number of " + inflection.Plural(rel.RowNoun), kind: models.SemanticCount}
	}
	if base, ok := strings.CutPrefix(name, "total_"); ok {
		if col, ok := rel.Column(base); ok {
			kind := models.SemanticCount
			if col.SemanticType != models.SemanticCount {
				kind = models.SemanticRatio
			}
			return outputColumn{label: "total " + col.DisplayLabel(), kind: kind}
		}
	}
	if base, ok := strings.CutPrefix(name, "avg_"); ok {
		if col, ok := rel.Column(base); ok {
			kind := models.SemanticRatio
			if col.SemanticType == models.SemanticPercentage {
				kind = models.SemanticPercentage
			}
			return outputColumn{label: "average " + col.DisplayLabel(), kind: kind}
		}
	}
	return outputColumn{label: strings.ReplaceAll(name, "_", " "), kind: models.SemanticRatio}
}

// formatValue rounds and labels one value for prose.
func formatValue(v any, oc outputColumn) string {
	if v == nil {
		return "n/a"
	}
	if oc.column != nil && len(oc.column.Values) > 0 {
		if val, ok := oc.column.ValueFor(v); ok {
			return val.Display()
		}
	}

	switch oc.kind {
	case models.SemanticPercentage:
		if f, ok := toFloat(v); ok {
			return trimDecimal(f, 1) + "%"
		}
	case models.SemanticRatio:
		if f, ok := toFloat(v); ok {
			return strconv.FormatFloat(f, 'f', 2, 64)
		}
	case models.SemanticCount:
		if f, ok := toFloat(v); ok {
			return strconv.FormatInt(int64(math.Round(f)), 10)
		}
	case models.SemanticTimestamp:
		if t, ok := v.(time.Time); ok {
			return t.UTC().Format("2006-01-02")
		}
	}

	switch val := v.(type) {
	case bool:
		if val {
			return "yes"
		}
		return "no"
	case float64:
		return trimDecimal(val, 2)
	case time.Time:
		return val.UTC().Format("2006-01-02")
	}
	return fmt.Sprint(v)
}

func trimDecimal(f float64, places int) string {
	s := strconv.FormatFloat(f, 'f', places, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "-0" {
		return "0"
	}
	return s
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}

func possessive(name string) string {
	if strings.HasSuffix(strings.ToLower(name), "s") {
		return name + "'"
	}
	return name + "'s"
}

func verbFor(label string) string {
	if strings.HasPrefix(label, "number of") {
		return "is"
	}
	words := strings.Fields(label)
	if len(words) > 0 && strings.HasSuffix(words[len(words)-1], "s") {
		return "are"
	}
	return "is"
}

// filterPhrases renders the intent's filters with each column's filter phrase.
func filterPhrases(rel *catalog.Relation, intent *models.QueryIntent) []string {
	if intent == nil {
		return nil
	}
	var phrases []string
	for _, f := range intent.Filters {
		oc := describeColumn(rel, f.Column)
		phrases = append(phrases, contextPhrase(oc, f.Value))
	}
	return phrases
}

func contextPhrase(oc outputColumn, v any) string {
	display := formatValue(v, oc)
	if oc.column != nil && oc.column.FilterPhrase != "" {
		return strings.ReplaceAll(oc.column.FilterPhrase, "{value}", display)
	}
	return "for " + oc.label + " " + display
}

func teamScope(intent *models.QueryIntent) string {
	team := intent.Team()
	if team == "" {
		return ""
	}
	if opp, ok := intent.Bindings[paramOpponent].(string); ok && opp != "" {
		return team + " and " + opp
	}
	return team
}

func noDataMessage(rel *catalog.Relation, intent *models.QueryIntent) string {
	var b strings.Builder
	b.WriteString("No data found")
	if intent != nil {
		if scope := teamScope(intent); scope != "" {
			b.WriteString(" for " + scope)
		}
	}
	phrases := filterPhrases(rel, intent)
	if len(phrases) > 0 {
		b.WriteString(" " + strings.Join(phrases, " "))
	}
	if b.Len() == len("No data found") {
		b.WriteString(" for that question")
	}
	b.WriteString(". Try another team or a wider match window.")
	return b.String()
}

func truncationNote(result *models.ExecutionResult) string {
	if !result.Truncated {
		return ""
	}
	if result.TotalRows != nil && *result.TotalRows > int64(result.RowCount) {
		total := *result.TotalRows
		return fmt.Sprintf("Showing the first %d of %d rows (%d more not shown).",
			result.RowCount, total, total-int64(result.RowCount))
	}
	return fmt.Sprintf("Results were capped at %d rows.", result.RowCount)
}

// describeResult is the deterministic answer for a non-empty result.
func describeResult(rel *catalog.Relation, intent *models.QueryIntent, result *models.ExecutionResult) string {
	var metrics []string
	for _, name := range result.Columns {
		if describeColumn(rel, name).kind.IsMetric() {
			metrics = append(metrics, name)
		}
	}
	if len(result.Rows) == 1 && len(metrics) > 0 {
		return describeRow(rel, intent, result.Columns, metrics, result.Rows[0])
	}
	return describeRows(rel, intent, result, metrics)
}

// subjectColumn is the first non-team identifier, such as player_name.
func subjectColumn(rel *catalog.Relation) string {
	for _, col := range rel.Columns {
		if col.SemanticType == models.SemanticIdentifier && !rel.IsTeamColumn(col.Name) {
			return col.Name
		}
	}
	return ""
}

func describeRow(rel *catalog.Relation, intent *models.QueryIntent, columns, metrics []string, row map[string]any) string {
	owner := ""
	subject := subjectColumn(rel)
	var teams, extra []string
	for _, name := range columns {
		oc := describeColumn(rel, name)
		v := row[name]
		switch {
		case oc.kind.IsMetric():
		case rel.IsTeamColumn(name):
			if v != nil {
				teams = append(teams, fmt.Sprint(v))
			}
		case name == subject && v != nil:
			owner = fmt.Sprint(v)
		case oc.kind == models.SemanticCategorical:
			extra = append(extra, contextPhrase(oc, v))
		case v != nil:
			extra = append(extra, oc.label+" "+formatValue(v, oc))
		}
	}

	switch {
	case owner != "" && len(teams) > 0:
		extra = append([]string{"for " + strings.Join(teams, " vs ")}, extra...)
	case owner == "" && len(teams) > 0:
		owner = strings.Join(teams, " vs ")
	case owner == "":
		owner = teamScope(intent)
	}
	extra = append(extra, filterPhrases(rel, intent)...)

	scope := ""
	if len(extra) > 0 {
		scope = " " + strings.Join(extra, " ")
	}

	if len(metrics) == 1 {
		oc := describeColumn(rel, metrics[0])
		value := formatValue(row[metrics[0]], oc)
		if owner == "" {
			return fmt.Sprintf("The %s%s %s %s.", oc.label, scope, verbFor(oc.label), value)
		}
		return fmt.Sprintf("%s %s%s %s %s.", possessive(owner), oc.label, scope, verbFor(oc.label), value)
	}

	parts := make([]string, len(metrics))
	for idx, name := range metrics {
		oc := describeColumn(rel, name)
		parts[idx] = oc.label + " " + formatValue(row[name], oc)
	}
	if owner == "" {
		owner = "Result"
	}
	return fmt.Sprintf("%s%s: %s.", owner, scope, joinList(parts))
}

func describeRows(rel *catalog.Relation, intent *models.QueryIntent, result *models.ExecutionResult, metrics []string) string {
	noun := rel.RowNoun
	if noun == "" {
		noun = "row"
	}
	if result.RowCount != 1 {
		noun = inflection.Plural(noun)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d %s", result.RowCount, noun)
	if scope := teamScope(intent); scope != "" {
		b.WriteString(" for " + scope)
	}
	if phrases := filterPhrases(rel, intent); len(phrases) > 0 {
		b.WriteString(" " + strings.Join(phrases, " "))
	}
	b.WriteString(".")

	ranking := ""
	for _, m := range metrics {
		if m == intent.OrderBy {
			ranking = m
		}
	}

	n := min(rankedRows, len(result.Rows))
	var lead string
	switch {
	case ranking != "" && intent.Descending:
		lead = fmt.Sprintf("Top %d by %s", n, describeColumn(rel, ranking).label)
	case ranking != "":
		lead = fmt.Sprintf("Lowest %d by %s", n, describeColumn(rel, ranking).label)
	case intent.OrderBy != "" && intent.OrderBy == rel.RecencyColumn:
		lead = "Most recent"
	default:
		lead = "First"
	}

	items := make([]string, n)
	for idx := range n {
		items[idx] = describeListItem(rel, intent, result.Columns, metrics, ranking, result.Rows[idx])
	}
	fmt.Fprintf(&b, " %s: %s.", lead, strings.Join(items, "; "))
	return b.String()
}

func describeListItem(rel *catalog.Relation, intent *models.QueryIntent, columns, metrics []string, ranking string, row map[string]any) string {
	subject := subjectColumn(rel)
	var teams, parts []string
	for _, name := range columns {
		oc := describeColumn(rel, name)
		v := row[name]
		switch {
		case oc.kind.IsMetric():
		case rel.IsTeamColumn(name):
			if v != nil {
				teams = append(teams, fmt.Sprint(v))
			}
		case name == subject || oc.kind == models.SemanticCategorical || oc.kind == models.SemanticTimestamp:
			parts = append(parts, formatValue(v, oc))
		case v != nil:
			parts = append(parts, oc.label+" "+formatValue(v, oc))
		}
	}

	switch {
	case len(teams) > 1:
		parts = append([]string{strings.Join(teams, " vs ")}, parts...)
	case len(teams) == 1 && (intent.Team() == "" || teams[0] != intent.Team() || len(parts) == 0):
		parts = append([]string{teams[0]}, parts...)
	}
	key := strings.Join(parts, ", ")

	var values []string
	if ranking != "" {
		values = []string{formatValue(row[ranking], describeColumn(rel, ranking))}
	} else {
		for _, name := range metrics {
			oc := describeColumn(rel, name)
			values = append(values, oc.label+" "+formatValue(row[name], oc))
		}
	}
	switch {
	case key == "":
		return strings.Join(values, ", ")
	case len(values) == 0:
		return key
	}
	return key + " (" + strings.Join(values, ", ") + ")"
}

func joinList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}

// renderTable is the plain-text form of a result, rounded like prose.
func renderTable(rel *catalog.Relation, result *models.ExecutionResult, maxRows int) string {
	if result == nil || len(result.Columns) == 0 {
		return ""
	}
	var b strings.Builder
	labels := make([]string, len(result.Columns))
	descs := make([]outputColumn, len(result.Columns))
	for idx, name := range result.Columns {
		descs[idx] = describeColumn(rel, name)
		labels[idx] = descs[idx].label
	}
	b.WriteString(strings.Join(labels, " | ") + "\n")

	n := min(maxRows, len(result.Rows))
	for _, row := range result.Rows[:n] {
		cells := make([]string, len(result.Columns))
		for idx, name := range result.Columns {
			cells[idx] = formatValue(row[name], descs[idx])
		}
		b.WriteString(strings.Join(cells, " | ") + "\n")
	}
	if rest := result.RowCount - n; rest > 0 {
		fmt.Fprintf(&b, "... %d more rows\n", rest)
	}
	return b.String()
}
