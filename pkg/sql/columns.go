package sql

import "strings"

// ParsedColumn is one entry of a SELECT list.
type ParsedColumn struct {
	Name string // alias, or the bare column name
	Expr string // the expression as written
}

// ParseSelectColumns returns the output columns of the outermost SELECT list.
// It returns nil for SELECT * and for statements it cannot read.
func ParseSelectColumns(sqlQuery string) ([]ParsedColumn, error) {
	tokens, err := Tokenize(sqlQuery)
	if err != nil {
		return nil, err
	}

	start := -1
	depth := 0
	for i, tok := range tokens {
		if tok.Kind == TokenSymbol {
			switch tok.Value {
			case "(":
				depth++
			case ")":
				depth--
			}
			continue
		}
		if depth == 0 && tok.Kind == TokenIdent && tok.Value == "select" {
			start = i + 1
		}
	}
	if start == -1 || start >= len(tokens) {
		return nil, nil
	}
	if tokens[start].Kind == TokenIdent && tokens[start].Value == "distinct" {
		start++
	}

	var (
		columns []ParsedColumn
		current []Token
	)
	flush := func() {
		if len(current) > 0 {
			columns = append(columns, parseColumnExpression(sqlQuery, current))
		}
		current = nil
	}

	depth = 0
	for _, tok := range tokens[start:] {
		if tok.Kind == TokenSymbol {
			switch tok.Value {
			case "(":
				depth++
			case ")":
				depth--
			case ",":
				if depth == 0 {
					flush()
					continue
				}
			}
		}
		if depth == 0 && tok.Kind == TokenIdent && tok.Value == "from" {
			break
		}
		current = append(current, tok)
	}
	flush()

	if len(columns) == 1 && columns[0].Expr == "*" {
		return nil, nil
	}
	return columns, nil
}

func parseColumnExpression(source string, toks []Token) ParsedColumn {
	first, last := toks[0], toks[len(toks)-1]
	expr := strings.TrimSpace(source[first.Pos : last.Pos+len(last.Text)])

	name := ""
	switch {
	case len(toks) >= 2 && toks[len(toks)-2].Kind == TokenIdent && toks[len(toks)-2].Value == "as":
		name = last.Value
	case last.Kind == TokenIdent || last.Kind == TokenQuotedIdent:
		name = last.Value
	default:
		name = strings.ToLower(expr)
	}

	return ParsedColumn{Name: name, Expr: expr}
}
