// Package sql provides the lexical checks that every statement passes before it
// reaches the analytics database: single-statement and read-only validation,
// {{param}} substitution to positional parameters, and injection screening.
package sql

import (
	"errors"
	"fmt"
	"strings"
)

// TokenKind classifies a lexical token.
type TokenKind int

const (
	TokenIdent       TokenKind = iota // bare identifier or keyword; Value is lowercased
	TokenQuotedIdent                  // "identifier"; Value is the unquoted name
	TokenString                       // 'literal'; Value is the unescaped content
	TokenNumber
	TokenPlaceholder // {{name}}; Value is the name
	TokenPositional  // $1
	TokenSymbol
	TokenComment
)

// Token is a lexical unit of a SQL statement.
type Token struct {
	Kind  TokenKind
	Text  string // raw source text
	Value string
	Pos   int
}

var (
	ErrUnterminatedString  = errors.New("unterminated string literal")
	ErrUnterminatedComment = errors.New("unterminated block comment")
	ErrDollarQuoting       = errors.New("dollar-quoted strings are not allowed")
)

// Tokenize splits a statement into tokens. It understands enough of the
// Postgres/DuckDB lexical grammar to tell identifiers from literals.
func Tokenize(sqlQuery string) ([]Token, error) {
	var tokens []Token
	i := 0
	n := len(sqlQuery)

	for i < n {
		ch := sqlQuery[i]

		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f':
			i++

		case ch == '-' && i+1 < n && sqlQuery[i+1] == '-':
			end := strings.IndexByte(sqlQuery[i:], '\n')
			if end == -1 {
				end = n - i
			}
			tokens = append(tokens, Token{Kind: TokenComment, Text: sqlQuery[i : i+end], Pos: i})
			i += end

		case ch == '/' && i+1 < n && sqlQuery[i+1] == '*':
			end := strings.Index(sqlQuery[i+2:], "*/")
			if end == -1 {
				return nil, ErrUnterminatedComment
			}
			tokens = append(tokens, Token{Kind: TokenComment, Text: sqlQuery[i : i+end+4], Pos: i})
			i += end + 4

		case ch == '\'':
			start := i
			var b strings.Builder
			i++
			closed := false
			for i < n {
				if sqlQuery[i] == '\'' {
					if i+1 < n && sqlQuery[i+1] == '\'' {
						b.WriteByte('\'')
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				b.WriteByte(sqlQuery[i])
				i++
			}
			if !closed {
				return nil, ErrUnterminatedString
			}
			tokens = append(tokens, Token{Kind: TokenString, Text: sqlQuery[start:i], Value: b.String(), Pos: start})

		case ch == '"':
			start := i
			var b strings.Builder
			i++
			closed := false
			for i < n {
				if sqlQuery[i] == '"' {
					if i+1 < n && sqlQuery[i+1] == '"' {
						b.WriteByte('"')
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				b.WriteByte(sqlQuery[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("unterminated quoted identifier at %d", start)
			}
			tokens = append(tokens, Token{Kind: TokenQuotedIdent, Text: sqlQuery[start:i], Value: b.String(), Pos: start})

		case ch == '{' && strings.HasPrefix(sqlQuery[i:], "{{"):
			loc := parameterRegex.FindStringSubmatchIndex(sqlQuery[i:])
			if loc == nil || loc[0] != 0 {
				tokens = append(tokens, Token{Kind: TokenSymbol, Text: "{", Value: "{", Pos: i})
				i++
				continue
			}
			name := sqlQuery[i+loc[2] : i+loc[3]]
			tokens = append(tokens, Token{Kind: TokenPlaceholder, Text: sqlQuery[i : i+loc[1]], Value: name, Pos: i})
			i += loc[1]

		case ch == '$':
			if i+1 < n && isDigit(sqlQuery[i+1]) {
				start := i
				i++
				for i < n && isDigit(sqlQuery[i]) {
					i++
				}
				tokens = append(tokens, Token{Kind: TokenPositional, Text: sqlQuery[start:i], Value: sqlQuery[start+1 : i], Pos: start})
				continue
			}
			return nil, ErrDollarQuoting

		case isDigit(ch) || (ch == '.' && i+1 < n && isDigit(sqlQuery[i+1])):
			start := i
			for i < n && (isDigit(sqlQuery[i]) || sqlQuery[i] == '.') {
				i++
			}
			if i < n && (sqlQuery[i] == 'e' || sqlQuery[i] == 'E') {
				j := i + 1
				if j < n && (sqlQuery[j] == '+' || sqlQuery[j] == '-') {
					j++
				}
				if j < n && isDigit(sqlQuery[j]) {
					i = j
					for i < n && isDigit(sqlQuery[i]) {
						i++
					}
				}
			}
			tokens = append(tokens, Token{Kind: TokenNumber, Text: sqlQuery[start:i], Value: sqlQuery[start:i], Pos: start})

		case isIdentStart(ch):
			start := i
			for i < n && isIdentPart(sqlQuery[i]) {
				i++
			}
			text := sqlQuery[start:i]
			tokens = append(tokens, Token{Kind: TokenIdent, Text: text, Value: strings.ToLower(text), Pos: start})

		default:
			start := i
			if i+1 < n {
				two := sqlQuery[i : i+2]
				switch two {
				case "<=", ">=", "<>", "!=", "::", "||":
					tokens = append(tokens, Token{Kind: TokenSymbol, Text: two, Value: two, Pos: start})
					i += 2
					continue
				}
			}
			tokens = append(tokens, Token{Kind: TokenSymbol, Text: string(ch), Value: string(ch), Pos: start})
			i++
		}
	}

	return tokens, nil
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch >= 0x80
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}

// StringLiterals returns the unescaped contents of every string literal in the statement.
func StringLiterals(sqlQuery string) ([]string, error) {
	tokens, err := Tokenize(sqlQuery)
	if err != nil {
		return nil, err
	}
	var literals []string
	for _, tok := range tokens {
		if tok.Kind == TokenString {
			literals = append(literals, tok.Value)
		}
	}
	return literals, nil
}
