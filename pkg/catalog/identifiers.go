package catalog

import (
	"errors"
	"fmt"

	sqlutil "github.com/vlrscout/scout-engine/pkg/sql"
)

var (
	ErrUnknownIdentifier  = errors.New("identifier not in schema catalog")
	ErrRelationNotAllowed = errors.New("relation not allowed")
)

// sqlWords are keywords, type names and functions that may appear in a checked
// statement. Anything else must be a catalog relation, one of its columns, or
// an alias the statement itself declares.
var sqlWords = map[string]bool{
	"select": true, "from": true, "where": true, "and": true, "or": true, "not": true,
	"in": true, "is": true, "null": true, "as": true, "order": true, "by": true,
	"group": true, "having": true, "limit": true, "offset": true, "asc": true,
	"desc": true, "distinct": true, "case": true, "when": true, "then": true,
	"else": true, "end": true, "true": true, "false": true, "like": true,
	"ilike": true, "between": true, "join": true, "on": true, "inner": true,
	"left": true, "right": true, "outer": true, "full": true, "cross": true,
	"using": true, "union": true, "all": true, "with": true, "nulls": true,
	"first": true, "last": true, "cast": true, "filter": true, "over": true,
	"partition": true, "interval": true, "exists": true, "any": true,
	"except": true, "intersect": true, "escape": true, "similar": true, "to": true,
	"fetch": true, "next": true, "only": true, "row": true, "rows": true,
	"range": true, "preceding": true, "following": true, "unbounded": true,
	"current": true,
	"year": true, "quarter": true, "month": true, "week": true, "day": true,
	"hour": true, "epoch": true, "dow": true,

	"date": true, "time": true, "timestamp": true, "timestamptz": true,
	"numeric": true, "decimal": true, "integer": true, "int": true, "bigint": true,
	"smallint": true, "real": true, "double": true, "precision": true,
	"float": true, "text": true, "varchar": true, "boolean": true, "bool": true,

	"count": true, "sum": true, "avg": true, "min": true, "max": true,
	"round": true, "coalesce": true, "nullif": true, "least": true,
	"greatest": true, "lower": true, "upper": true, "abs": true, "ceil": true,
	"ceiling": true, "floor": true, "trim": true, "length": true, "concat": true,
	"date_trunc": true, "extract": true, "now": true, "current_date": true,
	"current_timestamp": true, "row_number": true, "rank": true,
	"dense_rank": true, "stddev": true, "variance": true, "string_agg": true,
	"bool_or": true, "bool_and": true, "trunc": true, "substring": true,
}

// fromClauseEnd are keywords that close a FROM list at their nesting level.
var fromClauseEnd = map[string]bool{
	"where": true, "group": true, "order": true, "having": true, "limit": true,
	"offset": true, "union": true, "except": true, "intersect": true,
	"window": true, "qualify": true, "fetch": true, "select": true,
}

// fromArgFunctions take FROM inside their argument list, as in
// EXTRACT(year FROM started_at).
var fromArgFunctions = map[string]bool{
	"extract": true, "substring": true, "trim": true,
}

// CheckSQL verifies that every identifier in sqlQuery is a SQL keyword or
// function, a relation named in allowed, a column of one of those relations, or
// an alias declared in the statement.
//
// Every table position (after FROM or JOIN, and after a comma in a FROM list)
// must hold an allowed relation, a subquery, or a CTE declared by a top-level
// WITH before that point. Qualified table names are refused, qualifiers must
// name a relation, CTE or table alias, and only known functions may be called.
func (c *Catalog) CheckSQL(sqlQuery string, allowed []string) error {
	all, err := sqlutil.Tokenize(sqlQuery)
	if err != nil {
		return err
	}
	tokens := make([]sqlutil.Token, 0, len(all))
	for _, tok := range all {
		if tok.Kind != sqlutil.TokenComment {
			tokens = append(tokens, tok)
		}
	}

	relations := make(map[string]bool, len(allowed))
	columns := make(map[string]bool)
	for _, name := range allowed {
		rel, ok := c.byName[name]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownIdentifier, name)
		}
		relations[name] = true
		for _, col := range rel.Columns {
			columns[col.Name] = true
		}
	}

	aliases := declaredAliases(tokens, relations)
	scope := scanTables(tokens)

	for i, tok := range tokens {
		name, isName := identifierValue(tok)

		if scope.targets[i] {
			if err := c.checkTarget(tokens, i, relations, scope.ctes); err != nil {
				return err
			}
			continue
		}
		if !isName {
			continue
		}

		keyword := tok.Kind == sqlutil.TokenIdent && sqlWords[name]
		if isSymbol(tokenAt(tokens, i+1), "(") && !keyword {
			return fmt.Errorf("%w: function %q", ErrUnknownIdentifier, name)
		}
		if isSymbol(tokenAt(tokens, i+1), ".") {
			if relations[name] || scope.tableAliases[name] || cteVisible(scope.ctes, name, i) {
				continue
			}
			return fmt.Errorf("%w: qualifier %q", ErrUnknownIdentifier, name)
		}
		if isSymbol(tokenAt(tokens, i-1), ".") {
			if _, isAlias := aliases[name]; columns[name] || isAlias {
				continue
			}
			return fmt.Errorf("%w: %q", ErrUnknownIdentifier, name)
		}

		if keyword || relations[name] || columns[name] {
			continue
		}
		// Any other alias use must come after the declaration, so "AS x"
		// cannot launder an unknown x that precedes it.
		if declaredAt, ok := aliases[name]; ok && declaredAt < i {
			continue
		}
		return fmt.Errorf("%w: %q", ErrUnknownIdentifier, name)
	}

	return nil
}

func (c *Catalog) checkTarget(tokens []sqlutil.Token, i int, relations map[string]bool, ctes map[string]int) error {
	name, ok := identifierValue(tokens[i])
	if !ok {
		return fmt.Errorf("%w: table position holds %q", ErrUnknownIdentifier, tokens[i].Text)
	}
	if isSymbol(tokenAt(tokens, i+1), ".") {
		return fmt.Errorf("%w: qualified relation %q", ErrUnknownIdentifier, name)
	}
	if isSymbol(tokenAt(tokens, i+1), "(") {
		return fmt.Errorf("%w: table function %q", ErrUnknownIdentifier, name)
	}
	if relations[name] || cteVisible(ctes, name, i) {
		return nil
	}
	if c.byName[name] != nil {
		return fmt.Errorf("%w: %q", ErrRelationNotAllowed, name)
	}
	return fmt.Errorf("%w: %q", ErrUnknownIdentifier, name)
}

// tableScope is what scanTables learns about table positions.
type tableScope struct {
	// targets are token indexes in table position.
	targets map[int]bool
	// ctes maps each top-level CTE name to the index of the ")" closing its
	// body; the name refers to the CTE only after that point.
	ctes         map[string]int
	tableAliases map[string]bool
}

func cteVisible(ctes map[string]int, name string, at int) bool {
	end, ok := ctes[name]
	return ok && at > end
}

func scanTables(tokens []sqlutil.Token) tableScope {
	scope := tableScope{
		targets:      make(map[int]bool),
		ctes:         topLevelCTEs(tokens),
		tableAliases: make(map[string]bool),
	}

	declareAlias := func(after int) {
		j := after + 1
		if isKeyword(tokenAt(tokens, j), "as") {
			j++
		}
		tok := tokenAt(tokens, j)
		if name, ok := identifierValue(tok); ok && !(tok.Kind == sqlutil.TokenIdent && sqlWords[name]) {
			scope.tableAliases[name] = true
		}
	}

	inFrom := []bool{false}
	fromArgs := []bool{false}
	var opens []int
	tableOpens := make(map[int]bool)
	expectTable := false

	for i, tok := range tokens {
		top := len(inFrom) - 1
		switch {
		case isSymbol(tok, "("):
			// A parenthesized table position holds a subquery or a nested
			// join list; the nested level starts out expecting a table.
			nested := expectTable
			if nested {
				tableOpens[i] = true
			}
			opens = append(opens, i)
			inFrom = append(inFrom, nested)
			prev := tokenAt(tokens, i-1)
			fromArgs = append(fromArgs, prev.Kind == sqlutil.TokenIdent && fromArgFunctions[prev.Value])
		case isSymbol(tok, ")"):
			expectTable = false
			if len(opens) == 0 {
				continue
			}
			open := opens[len(opens)-1]
			opens = opens[:len(opens)-1]
			inFrom = inFrom[:top]
			fromArgs = fromArgs[:top]
			if tableOpens[open] {
				declareAlias(i)
			}
		case isSymbol(tok, ","):
			expectTable = inFrom[top]
		case fromArgs[top] && isKeyword(tok, "from"):
		case isKeyword(tok, "from"), isKeyword(tok, "join"):
			inFrom[top] = true
			expectTable = true
		case tok.Kind == sqlutil.TokenIdent && fromClauseEnd[tok.Value]:
			inFrom[top] = false
			expectTable = false
		default:
			if expectTable {
				scope.targets[i] = true
				expectTable = false
				declareAlias(i)
			}
		}
	}
	return scope
}

// topLevelCTEs finds "name AS (" declarations of a statement that starts with
// WITH, up to the main query.
func topLevelCTEs(tokens []sqlutil.Token) map[string]int {
	ctes := make(map[string]int)
	if !isKeyword(tokenAt(tokens, 0), "with") {
		return ctes
	}
	for i := 1; i+2 < len(tokens); {
		name, ok := identifierValue(tokens[i])
		if !ok || !isKeyword(tokens[i+1], "as") || !isSymbol(tokens[i+2], "(") {
			break
		}
		end := matchingParen(tokens, i+2)
		if end == -1 {
			break
		}
		ctes[name] = end
		if !isSymbol(tokenAt(tokens, end+1), ",") {
			break
		}
		i = end + 2
	}
	return ctes
}

func matchingParen(tokens []sqlutil.Token, open int) int {
	depth := 0
	for i := open; i < len(tokens); i++ {
		switch {
		case isSymbol(tokens[i], "("):
			depth++
		case isSymbol(tokens[i], ")"):
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func tokenAt(tokens []sqlutil.Token, i int) sqlutil.Token {
	if i < 0 || i >= len(tokens) {
		return sqlutil.Token{}
	}
	return tokens[i]
}

func isSymbol(tok sqlutil.Token, value string) bool {
	return tok.Kind == sqlutil.TokenSymbol && tok.Value == value
}

func isKeyword(tok sqlutil.Token, value string) bool {
	return tok.Kind == sqlutil.TokenIdent && tok.Value == value
}

func identifierValue(tok sqlutil.Token) (string, bool) {
	switch tok.Kind {
	case sqlutil.TokenIdent, sqlutil.TokenQuotedIdent:
		return tok.Value, true
	}
	return "", false
}

// declaredAliases collects names the statement introduces, mapped to the token
// index after which they are in scope: "expr AS name", "relation name",
// "(subquery) name" and "name AS (cte)". These may be referenced as values;
// they never make a table position valid.
func declaredAliases(tokens []sqlutil.Token, relations map[string]bool) map[string]int {
	aliases := make(map[string]int)
	declare := func(name string, at int) {
		if prev, ok := aliases[name]; !ok || at < prev {
			aliases[name] = at
		}
	}
	isBareAlias := func(tok sqlutil.Token) bool {
		name, ok := identifierValue(tok)
		return ok && !(tok.Kind == sqlutil.TokenIdent && sqlWords[name])
	}

	for i := 0; i < len(tokens)-1; i++ {
		tok, next := tokens[i], tokens[i+1]

		if isKeyword(tok, "as") {
			if name, ok := identifierValue(next); ok {
				declare(name, i)
			}
			continue
		}

		if name, ok := identifierValue(tok); ok {
			if relations[name] && isBareAlias(next) {
				declare(next.Value, i)
			}
			if isKeyword(next, "as") && isSymbol(tokenAt(tokens, i+2), "(") {
				declare(name, i-1)
			}
			continue
		}

		if isSymbol(tok, ")") && isBareAlias(next) {
			declare(next.Value, i)
		}
	}
	return aliases
}
