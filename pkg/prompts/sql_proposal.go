package prompts

import (
	"fmt"
	"strings"
)

// ColumnContext describes one column the proposer may use.
type ColumnContext struct {
	Name         string
	SemanticType string
	IsNullable   bool
	Description  string
	Values       []string // declared categorical values, if any
}

// ProposalContext is everything the SQL proposer is allowed to see. It never
// carries bound values or connection details.
type ProposalContext struct {
	Question     string
	Relation     string
	Description  string
	Columns      []ColumnContext
	Placeholders []string
	Aggregation  string
	Template     string
}

// ProposalResponse is the JSON shape the proposer must return.
type ProposalResponse struct {
	SQL       string `json:"sql"`
	Reasoning string `json:"reasoning"`
}

// BuildSQLProposalPrompt asks the LLM to improve a planned statement without
// leaving the planned relation or inventing parameters.
func BuildSQLProposalPrompt(pc ProposalContext) string {
	var prompt strings.Builder

	prompt.WriteString("# SQL Refinement\n\n")
	prompt.WriteString(fmt.Sprintf("Question: %q\n\n", pc.Question))

	prompt.WriteString("## Relation\n\n")
	prompt.WriteString(fmt.Sprintf("### %s\n", pc.Relation))
	if pc.Description != "" {
		prompt.WriteString(pc.Description + "\n")
	}
	prompt.WriteString("Columns:\n")
	for _, col := range pc.Columns {
		nullInfo := ""
		if col.IsNullable {
			nullInfo = " (nullable)"
		}
		prompt.WriteString(fmt.Sprintf("- %s [%s]%s: %s\n", col.Name, col.SemanticType, nullInfo, col.Description))
		if len(col.Values) > 0 {
			prompt.WriteString(fmt.Sprintf("  values: %s\n", strings.Join(col.Values, ", ")))
		}
	}
	prompt.WriteString("\n")

	prompt.WriteString("## Planned Statement\n\n")
	prompt.WriteString(fmt.Sprintf("Aggregation: %s\n", pc.Aggregation))
	prompt.WriteString("```sql\n" + pc.Template + "\n```\n\n")

	prompt.WriteString("## Rules\n\n")
	prompt.WriteString(fmt.Sprintf("- Query only %s. No joins to other relations.\n", pc.Relation))
	prompt.WriteString("- Write exactly one SELECT statement. No comments, no semicolons.\n")
	if len(pc.Placeholders) > 0 {
		names := make([]string, len(pc.Placeholders))
		for i, p := range pc.Placeholders {
			names[i] = "{{" + p + "}}"
		}
		prompt.WriteString(fmt.Sprintf("- Use only these parameters, written exactly as shown: %s\n", strings.Join(names, ", ")))
	} else {
		prompt.WriteString("- The statement takes no parameters.\n")
	}
	prompt.WriteString("- Never write team names, maps or other values as string literals; use the parameters.\n")
	prompt.WriteString("- Keep the same answer shape: the same columns or aggregates, the same filters.\n")
	prompt.WriteString("- If the planned statement already answers the question, return it unchanged.\n\n")

	prompt.WriteString("## Output Format\n\n")
	prompt.WriteString("Respond in JSON with:\n")
	prompt.WriteString("- `sql`: the statement\n")
	prompt.WriteString("- `reasoning`: one sentence on what you changed\n\n")
	prompt.WriteString("Return ONLY the JSON, no additional text.\n")

	return prompt.String()
}

// SQLProposalSystemMessage returns the system message for the proposer.
func SQLProposalSystemMessage() string {
	return `You are a careful PostgreSQL analyst for VALORANT esports match data. You refine read-only SELECT statements against a fixed set of views and never modify data.`
}
