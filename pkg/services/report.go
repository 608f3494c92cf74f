package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/vlrscout/scout-engine/pkg/llm"
	"github.com/vlrscout/scout-engine/pkg/logging"
	"github.com/vlrscout/scout-engine/pkg/models"
	"github.com/vlrscout/scout-engine/pkg/prompts"
)

const (
	ReportSourceLLM      = "llm"
	ReportSourceTemplate = "template"

	reportPlayers = 5
	reportMaps    = 5
	reportAgents  = 8
	reportWeapons = 5
)

// ReportRequest asks for a report on one team.
type ReportRequest struct {
	TeamName   string
	NumMatches int
	Insights   []models.ChatInsight
}

// ReportService writes markdown scouting reports.
type ReportService interface {
	Generate(ctx context.Context, req ReportRequest) (*models.ScoutingReport, error)
}

type reportService struct {
	scouting ScoutingService
	llm      llm.LLMClient
	logger   *zap.Logger
}

// NewReportService returns a report writer. A nil client always uses the template.
func NewReportService(scouting ScoutingService, llmClient llm.LLMClient, logger *zap.Logger) ReportService {
	return &reportService{
		scouting: scouting,
		llm:      llmClient,
		logger:   logger.Named("report-service"),
	}
}

var _ ReportService = (*reportService)(nil)

// Generate gathers the scouting data and asks the LLM for a report. Any LLM
// failure falls back to the template report, so only data errors are returned.
func (s *reportService) Generate(ctx context.Context, req ReportRequest) (*models.ScoutingReport, error) {
	data, err := s.scouting.Scout(ctx, req.TeamName, req.NumMatches)
	if err != nil {
		return nil, err
	}

	insights := req.Insights
	if len(insights) > prompts.MaxReportInsights {
		insights = insights[len(insights)-prompts.MaxReportInsights:]
	}

	if s.llm != nil {
		report, err := s.generateWithLLM(ctx, data, insights)
		if err == nil {
			return &models.ScoutingReport{Team: data.Team, Report: report, Source: ReportSourceLLM}, nil
		}
		s.logger.Warn("LLM report failed, using template",
			zap.String("team", data.Team),
			zap.String("error_type", string(llm.GetErrorType(err))),
			zap.String("error", logging.SanitizeError(err)))
	}

	return &models.ScoutingReport{
		Team:   data.Team,
		Report: templateReport(data, insights),
		Source: ReportSourceTemplate,
	}, nil
}

func (s *reportService) generateWithLLM(ctx context.Context, data *models.ScoutingData, insights []models.ChatInsight) (string, error) {
	rc := prompts.ReportContext{
		Team: data.Team,
		Data: renderSections(data),
	}
	if data.Overview != nil {
		rc.NumMatches = data.Overview.MatchesWindow
	}
	for _, in := range insights {
		rc.Insights = append(rc.Insights, prompts.Insight{Question: in.Question, Answer: in.Answer})
	}

	resp, err := s.llm.GenerateResponse(llm.WithPurpose(ctx, "report"),
		prompts.BuildReportPrompt(rc), prompts.ReportSystemMessage(), 0.4)
	if err != nil {
		return "", err
	}
	report := llm.CleanResponse(resp.Content)
	if report == "" {
		return "", fmt.Errorf("empty report")
	}
	return report, nil
}

func pct(v float64) string {
	return trimDecimal(v, 1) + "%"
}

// templateReport is the report written without an LLM.
func templateReport(data *models.ScoutingData, insights []models.ChatInsight) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Scouting Report: %s\n\n", strings.ToUpper(data.Team))
	b.WriteString(renderSections(data))
	writeGamePlan(&b, data)

	if len(insights) > 0 {
		b.WriteString("## AI Assistant Insights\n\n")
		for _, in := range insights {
			fmt.Fprintf(&b, "**Q: %s**\n%s\n\n", in.Question, in.Answer)
		}
	}

	b.WriteString("---\n*Report generated by scout-engine*\n")
	return b.String()
}

// renderSections renders every scouting section as markdown.
func renderSections(data *models.ScoutingData) string {
	var b strings.Builder

	if o := data.Overview; o != nil {
		b.WriteString("## Team Overview\n\n")
		fmt.Fprintf(&b, "**Recent Form:** %s (%s win rate over %d series)\n\n", o.SeriesRecord, pct(o.WinRate), o.SeriesPlayed)
		if len(o.RecentSeries) > 0 {
			b.WriteString("**Recent Matches:**\n")
			for _, sr := range o.RecentSeries {
				fmt.Fprintf(&b, "- vs %s: %s (%s) - %s\n", sr.Opponent, sr.Result, sr.Score, sr.Tournament)
			}
			b.WriteString("\n")
		}
		if len(o.MapStats) > 0 {
			b.WriteString("**Map Performance:**\n")
			for _, m := range o.MapStats[:min(reportMaps, len(o.MapStats))] {
				fmt.Fprintf(&b, "- %s: %s WR (%d/%d games), avg round diff %+.1f\n", m.Map, pct(m.WinRate), m.Wins, m.Games, m.AvgRoundDiff)
			}
			b.WriteString("\n")
		}
	}

	if p := data.PistolRounds; p != nil {
		b.WriteString("## Pistol Rounds\n\n")
		fmt.Fprintf(&b, "- Attack pistol: %s\n", pct(p.AttackPistol.WinRate))
		fmt.Fprintf(&b, "- Defense pistol: %s\n", pct(p.DefensePistol.WinRate))
		fmt.Fprintf(&b, "- Overall pistol: %s\n\n", pct(p.OverallWinRate))
	}

	if p := data.Players; p != nil && len(p.Players) > 0 {
		b.WriteString("## Players\n\n")
		for _, pl := range p.Players[:min(reportPlayers, len(p.Players))] {
			fmt.Fprintf(&b, "**%s** - K/D %.2f (%dK / %dD / %dA over %d games)\n",
				pl.PlayerName, pl.KDRatio, pl.Kills, pl.Deaths, pl.Assists, pl.Games)
			if len(pl.AgentPool) > 0 {
				agents := make([]string, 0, 3)
				for _, a := range pl.AgentPool[:min(3, len(pl.AgentPool))] {
					agents = append(agents, fmt.Sprintf("%s (%d)", a.Agent, a.Games))
				}
				fmt.Fprintf(&b, "  - Agent pool: %s\n", strings.Join(agents, ", "))
			}
		}
		b.WriteString("\n")
	}

	if c := data.Compositions; c != nil && len(c.AgentPicks) > 0 {
		b.WriteString("## Agent Compositions\n\n")
		roles := make([]string, 0, len(c.RoleDistribution))
		for role := range c.RoleDistribution {
			roles = append(roles, role)
		}
		sort.Slice(roles, func(i, j int) bool {
			ri, rj := c.RoleDistribution[roles[i]], c.RoleDistribution[roles[j]]
			if ri != rj {
				return ri > rj
			}
			return roles[i] < roles[j]
		})
		parts := make([]string, len(roles))
		for i, role := range roles {
			parts[i] = fmt.Sprintf("%s %s", role, pct(c.RoleDistribution[role]))
		}
		fmt.Fprintf(&b, "**Role weight:** %s\n\n", strings.Join(parts, ", "))
		for _, a := range c.AgentPicks[:min(reportAgents, len(c.AgentPicks))] {
			fmt.Fprintf(&b, "- %s (%s): %s pick rate\n", a.Agent, a.Role, pct(a.PickRate))
		}
		b.WriteString("\n")
	}

	if r := data.RoundPatterns; r != nil {
		if len(r.WinConditions.Attack)+len(r.WinConditions.Defense) > 0 {
			b.WriteString("## Round Wins\n\n")
			writeConditions(&b, "Attack", r.WinConditions.Attack)
			writeConditions(&b, "Defense", r.WinConditions.Defense)
			b.WriteString("\n")
		}
	}

	if w := data.WeaponEconomy; w != nil && len(w.WeaponUsage) > 0 {
		b.WriteString("## Weapon Preferences\n\n")
		for _, u := range w.WeaponUsage[:min(reportWeapons, len(w.WeaponUsage))] {
			fmt.Fprintf(&b, "- %s: %d kills\n", u.Weapon, u.Kills)
		}
		b.WriteString("\n")
	}

	if w := data.Weaknesses; w != nil {
		b.WriteString("## Weaknesses & Exploits\n\n")
		if len(w.Weaknesses) == 0 {
			b.WriteString("*No significant weaknesses identified.*\n\n")
		} else {
			fmt.Fprintf(&b, "**Summary:** %s\n\n", w.Summary)
			for _, sev := range []string{SeverityHigh, SeverityMedium} {
				var lines []string
				for _, wk := range w.Weaknesses {
					if wk.Severity == sev {
						lines = append(lines, fmt.Sprintf("- **%s**: %s (%s)\n  - *Recommendation:* %s\n",
							wk.Category, wk.Finding, wk.Details, wk.Recommendation))
					}
				}
				if len(lines) > 0 {
					fmt.Fprintf(&b, "### %s Priority\n", sev)
					b.WriteString(strings.Join(lines, ""))
					b.WriteString("\n")
				}
			}
		}
	}

	return b.String()
}

func writeConditions(b *strings.Builder, side string, conditions []models.WinCondition) {
	if len(conditions) == 0 {
		return
	}
	parts := make([]string, len(conditions))
	for i, c := range conditions {
		parts[i] = fmt.Sprintf("%s %s", c.Condition, pct(c.Percentage))
	}
	fmt.Fprintf(b, "- %s: %s\n", side, strings.Join(parts, ", "))
}

// writeGamePlan adds veto and pistol advice drawn from the data.
func writeGamePlan(b *strings.Builder, data *models.ScoutingData) {
	b.WriteString("## How to Win\n\n")
	wrote := false

	if o := data.Overview; o != nil && len(o.MapStats) > 0 {
		best, worst := o.MapStats[0], o.MapStats[0]
		for _, m := range o.MapStats[1:] {
			if m.WinRate > best.WinRate {
				best = m
			}
			if m.WinRate < worst.WinRate {
				worst = m
			}
		}
		fmt.Fprintf(b, "- **BAN** %s (%s WR) - their best map\n", best.Map, pct(best.WinRate))
		if worst.Map != best.Map {
			fmt.Fprintf(b, "- **PICK** %s (%s WR) - their worst map\n", worst.Map, pct(worst.WinRate))
		}
		wrote = true
	}

	if p := data.PistolRounds; p != nil {
		attack, defense := p.AttackPistol.WinRate, p.DefensePistol.WinRate
		switch {
		case attack > defense+10:
			fmt.Fprintf(b, "- Focus on winning **attack pistols**: they are weaker on defense pistol (%s vs %s)\n", pct(defense), pct(attack))
			wrote = true
		case defense > attack+10:
			fmt.Fprintf(b, "- Focus on winning **defense pistols**: they are weaker on attack pistol (%s vs %s)\n", pct(attack), pct(defense))
			wrote = true
		}
	}

	if !wrote {
		b.WriteString("- Not enough data for specific recommendations.\n")
	}
	b.WriteString("\n")
}
