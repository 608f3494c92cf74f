package prompts

import (
	"fmt"
	"strings"
)

// MaxPromptRows bounds the rows shown to the LLM when phrasing an answer.
const MaxPromptRows = 20

// InterpretationContext is the rounded result the LLM phrases.
type InterpretationContext struct {
	Question string
	Team     string
	Summary  string // deterministic answer, used as ground truth
	Table    string // plain-text table, at most MaxPromptRows rows
	RowCount int
}

// BuildInterpretationPrompt asks for a short scouting answer grounded in the rows.
func BuildInterpretationPrompt(ic InterpretationContext) string {
	var prompt strings.Builder

	prompt.WriteString("# Scouting Answer\n\n")
	prompt.WriteString(fmt.Sprintf("Question: %q\n", ic.Question))
	if ic.Team != "" {
		prompt.WriteString(fmt.Sprintf("Team: %s\n", ic.Team))
	}
	prompt.WriteString(fmt.Sprintf("Rows returned: %d\n\n", ic.RowCount))

	prompt.WriteString("## Data\n\n")
	prompt.WriteString("```\n" + ic.Table + "```\n\n")

	if ic.Summary != "" {
		prompt.WriteString("## Summary\n\n")
		prompt.WriteString(ic.Summary + "\n\n")
	}

	prompt.WriteString("## Rules\n\n")
	prompt.WriteString("- Answer in two to four sentences, addressed to a coach.\n")
	prompt.WriteString("- Use only numbers that appear in the data. Do not recompute or invent figures.\n")
	prompt.WriteString("- Do not mention SQL, tables or columns.\n")
	if ic.RowCount > MaxPromptRows {
		prompt.WriteString(fmt.Sprintf("- Only the first %d rows are shown; do not claim to have seen the rest.\n", MaxPromptRows))
	}
	prompt.WriteString("\nReturn plain text only.\n")

	return prompt.String()
}

// InterpretationSystemMessage returns the system message for answer phrasing.
func InterpretationSystemMessage() string {
	return `You are a VALORANT esports analyst. You explain query results to coaches in plain, accurate language.`
}
