package sql

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMultipleStatements indicates the query contains multiple SQL statements.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")
	ErrEmptyStatement     = errors.New("empty SQL statement")
	ErrCommentsNotAllowed = errors.New("SQL comments are not allowed")
)

// StatementType is the kind of statement, judged by its leading keyword.
type StatementType string

const (
	StatementSelect  StatementType = "SELECT"
	StatementModify  StatementType = "MODIFY" // INSERT, UPDATE, DELETE, MERGE, CALL
	StatementDDL     StatementType = "DDL"    // CREATE, ALTER, DROP, TRUNCATE
	StatementUnknown StatementType = "UNKNOWN"
)

// ReadOnlyError reports why a statement was refused.
type ReadOnlyError struct {
	Type    StatementType
	Keyword string
	Message string
}

func (e *ReadOnlyError) Error() string {
	return e.Message
}

// deniedKeywords may not appear anywhere outside literals and quoted identifiers.
// They cover writes, DDL, session and transaction control, row locking, and the
// file/network reading functions both engines expose.
var deniedKeywords = map[string]bool{
	"insert": true, "update": true, "delete": true, "merge": true, "upsert": true,
	"create": true, "alter": true, "drop": true, "truncate": true, "rename": true,
	"grant": true, "revoke": true, "copy": true, "call": true, "do": true,
	"execute": true, "prepare": true, "deallocate": true, "vacuum": true,
	"set": true, "reset": true, "lock": true, "listen": true, "notify": true,
	"begin": true, "commit": true, "rollback": true, "savepoint": true,
	"attach": true, "detach": true, "pragma": true, "install": true, "load": true,
	"export": true, "import": true, "checkpoint": true,
	"into": true, "for": true, "returning": true,
	"pg_sleep": true, "pg_read_file": true, "pg_read_binary_file": true, "pg_ls_dir": true,
	"lo_import": true, "lo_export": true, "dblink": true, "set_config": true,
	"read_csv": true, "read_csv_auto": true, "read_parquet": true, "read_json": true,
	"read_json_auto": true, "read_text": true, "read_blob": true, "glob": true,
	"getenv": true, "query_table": true,
}

// ValidationResult contains the normalized SQL and any validation errors.
type ValidationResult struct {
	NormalizedSQL string
	Error         error
}

// ValidateAndNormalize checks SQL for multiple statements and strips the trailing semicolon.
func ValidateAndNormalize(sqlQuery string) ValidationResult {
	sqlQuery = strings.TrimSpace(sqlQuery)
	if sqlQuery == "" {
		return ValidationResult{NormalizedSQL: sqlQuery}
	}

	normalized := stripTrailingSemicolon(sqlQuery)

	tokens, err := Tokenize(normalized)
	if err != nil {
		return ValidationResult{Error: err}
	}
	for _, tok := range tokens {
		if tok.Kind == TokenSymbol && tok.Value == ";" {
			return ValidationResult{Error: ErrMultipleStatements}
		}
	}

	return ValidationResult{NormalizedSQL: normalized}
}

// DetectStatementType classifies a statement by its first keyword.
func DetectStatementType(tokens []Token) StatementType {
	for _, tok := range tokens {
		if tok.Kind == TokenComment {
			continue
		}
		if tok.Kind == TokenSymbol && tok.Value == "(" {
			continue
		}
		if tok.Kind != TokenIdent {
			return StatementUnknown
		}
		switch tok.Value {
		case "select", "with":
			return StatementSelect
		case "insert", "update", "delete", "merge", "call":
			return StatementModify
		case "create", "alter", "drop", "truncate":
			return StatementDDL
		default:
			return StatementUnknown
		}
	}
	return StatementUnknown
}

// ValidateReadOnly enforces that sqlQuery is a single SELECT with no denied keyword,
// and returns it normalized. The check is lexical and independent of how the
// statement was produced.
func ValidateReadOnly(sqlQuery string) (string, error) {
	result := ValidateAndNormalize(sqlQuery)
	if result.Error != nil {
		return "", result.Error
	}
	if result.NormalizedSQL == "" {
		return "", ErrEmptyStatement
	}

	tokens, err := Tokenize(result.NormalizedSQL)
	if err != nil {
		return "", err
	}

	for _, tok := range tokens {
		if tok.Kind == TokenComment {
			return "", ErrCommentsNotAllowed
		}
	}

	stmtType := DetectStatementType(tokens)
	if stmtType != StatementSelect {
		return "", &ReadOnlyError{
			Type:    stmtType,
			Message: fmt.Sprintf("only SELECT statements are allowed, got %s", stmtType),
		}
	}

	for _, tok := range tokens {
		if tok.Kind == TokenIdent && deniedKeywords[tok.Value] {
			return "", &ReadOnlyError{
				Type:    StatementUnknown,
				Keyword: tok.Value,
				Message: fmt.Sprintf("keyword %q is not allowed in read-only queries", strings.ToUpper(tok.Value)),
			}
		}
	}

	return result.NormalizedSQL, nil
}

// stripTrailingSemicolon removes a trailing semicolon and any whitespace after it.
func stripTrailingSemicolon(sqlQuery string) string {
	sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")
	if strings.HasSuffix(sqlQuery, ";") {
		sqlQuery = strings.TrimSuffix(sqlQuery, ";")
		sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")
	}
	return sqlQuery
}
