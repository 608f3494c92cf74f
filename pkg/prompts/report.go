package prompts

import (
	"fmt"
	"strings"
)

// MaxReportInsights is how many chat insights a report includes, newest last.
const MaxReportInsights = 5

// Insight is one question/answer pair carried into a report.
type Insight struct {
	Question string
	Answer   string
}

// ReportContext is the scouting data a report is written from.
type ReportContext struct {
	Team       string
	NumMatches int
	Data       string // markdown rendering of every scouting section
	Insights   []Insight
}

// BuildReportPrompt asks for a markdown scouting report.
func BuildReportPrompt(rc ReportContext) string {
	var prompt strings.Builder

	prompt.WriteString(fmt.Sprintf("# Scouting Report Request: %s\n\n", rc.Team))
	prompt.WriteString(fmt.Sprintf("Write a scouting report on %s based on their last %d matches.\n\n", rc.Team, rc.NumMatches))

	prompt.WriteString("## Data\n\n")
	prompt.WriteString(rc.Data)
	prompt.WriteString("\n")

	if len(rc.Insights) > 0 {
		prompt.WriteString("## Analyst Questions\n\n")
		for _, in := range rc.Insights {
			prompt.WriteString(fmt.Sprintf("Q: %s\nA: %s\n\n", in.Question, in.Answer))
		}
	}

	prompt.WriteString("## Structure\n\n")
	prompt.WriteString("Use these markdown sections:\n")
	prompt.WriteString("1. `## Executive Summary`\n")
	prompt.WriteString("2. `## Map Pool`\n")
	prompt.WriteString("3. `## Compositions`\n")
	prompt.WriteString("4. `## Key Players`\n")
	prompt.WriteString("5. `## Weaknesses to Exploit`\n")
	if len(rc.Insights) > 0 {
		prompt.WriteString("6. `## AI Assistant Insights` summarizing the analyst questions\n")
		prompt.WriteString("7. `## Game Plan`\n\n")
	} else {
		prompt.WriteString("6. `## Game Plan`\n\n")
	}
	prompt.WriteString("Use only figures from the data. Return markdown only.\n")

	return prompt.String()
}

// ReportSystemMessage returns the system message for report writing.
func ReportSystemMessage() string {
	return `You are a professional VALORANT esports analyst writing concise, actionable scouting reports for a coaching staff.`
}
