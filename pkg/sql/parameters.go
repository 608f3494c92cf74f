package sql

import (
	"fmt"
	"regexp"
)

// parameterRegex matches {{parameter_name}} placeholders in SQL templates.
// Names start with a letter or underscore followed by word characters.
var parameterRegex = regexp.MustCompile(`\{\{([a-zA-Z_]\w*)\}\}`)

// ExtractParameters returns the {{param}} names used in sqlQuery, deduplicated,
// in order of first appearance. Placeholders inside string literals are ignored.
func ExtractParameters(sqlQuery string) []string {
	tokens, err := Tokenize(sqlQuery)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var params []string
	for _, tok := range tokens {
		if tok.Kind != TokenPlaceholder || seen[tok.Value] {
			continue
		}
		seen[tok.Value] = true
		params = append(params, tok.Value)
	}
	return params
}

// ValidateBindings checks that every placeholder in sqlQuery has a value.
// Unused values are allowed: a refined statement may drop a filter's column
// from the projection but never invent a new parameter.
func ValidateBindings(sqlQuery string, values map[string]any) error {
	if problems := FindParametersInStringLiterals(sqlQuery); len(problems) > 0 {
		return fmt.Errorf("parameter {{%s}} appears inside a string literal", problems[0])
	}
	for _, name := range ExtractParameters(sqlQuery) {
		if _, ok := values[name]; !ok {
			return fmt.Errorf("parameter {{%s}} used in SQL but not bound", name)
		}
	}
	return nil
}

// SubstituteParameters replaces {{param}} placeholders with positional
// parameters ($1, $2, ...) and returns the values in binding order.
// A parameter used more than once reuses its position. Text is never
// spliced into the statement; every value travels as a bind argument.
//
//	sql := "SELECT map, win_rate FROM v_team_map_stats WHERE team_name = {{team_name}} AND map = {{f_map}}"
//	prepared, args, _ := SubstituteParameters(sql, map[string]any{"team_name": "Cloud9", "f_map": "Haven"})
//	// prepared == "SELECT map, win_rate FROM v_team_map_stats WHERE team_name = $1 AND map = $2"
//	// args == []any{"Cloud9", "Haven"}
func SubstituteParameters(sqlQuery string, values map[string]any) (string, []any, error) {
	if err := ValidateBindings(sqlQuery, values); err != nil {
		return "", nil, err
	}

	tokens, err := Tokenize(sqlQuery)
	if err != nil {
		return "", nil, err
	}

	var orderedValues []any
	positions := make(map[string]int)
	out := make([]byte, 0, len(sqlQuery))
	last := 0

	for _, tok := range tokens {
		if tok.Kind != TokenPlaceholder {
			continue
		}
		pos, ok := positions[tok.Value]
		if !ok {
			orderedValues = append(orderedValues, values[tok.Value])
			pos = len(orderedValues)
			positions[tok.Value] = pos
		}
		out = append(out, sqlQuery[last:tok.Pos]...)
		out = append(out, fmt.Sprintf("$%d", pos)...)
		last = tok.Pos + len(tok.Text)
	}
	out = append(out, sqlQuery[last:]...)

	return string(out), orderedValues, nil
}

// FindParametersInStringLiterals returns placeholders that sit inside string
// literals, where the database would read them as text instead of binding them.
func FindParametersInStringLiterals(sqlQuery string) []string {
	literals, err := StringLiterals(sqlQuery)
	if err != nil {
		return nil
	}

	var problems []string
	seen := make(map[string]bool)
	for _, lit := range literals {
		for _, match := range parameterRegex.FindAllStringSubmatch(lit, -1) {
			if !seen[match[1]] {
				seen[match[1]] = true
				problems = append(problems, match[1])
			}
		}
	}
	return problems
}
