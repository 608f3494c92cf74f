package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/vlrscout/scout-engine/pkg/catalog"
	"github.com/vlrscout/scout-engine/pkg/models"
	"github.com/vlrscout/scout-engine/pkg/services"
)

// Assistant answers natural-language scouting questions.
type Assistant interface {
	Ask(ctx context.Context, req services.AskRequest) *models.Answer
	Suggest(ctx context.Context, teamName *string, sessionID string) (models.SuggestionSet, error)
	Teams(ctx context.Context) ([]string, error)
}

// ScoutingToolDeps are the services behind the scouting tools.
// Scouting and Reports may be nil, which leaves their tools unregistered.
type ScoutingToolDeps struct {
	Assistant Assistant
	Scouting  services.ScoutingService
	Reports   services.ReportService
	Catalog   *catalog.Catalog
	Logger    *zap.Logger
}

// RegisterScoutingTools adds the scouting tools to the MCP server.
func RegisterScoutingTools(s *server.MCPServer, deps *ScoutingToolDeps) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	registerListTeamsTool(s, deps)
	registerAskTool(s, deps)
	registerSuggestTool(s, deps)
	registerDescribeCatalogTool(s, deps)
	if deps.Scouting != nil {
		registerScoutTeamTool(s, deps)
	}
	if deps.Reports != nil {
		registerReportTool(s, deps)
	}
}

func readOnly() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	}
}

func registerListTeamsTool(s *server.MCPServer, deps *ScoutingToolDeps) {
	tool := mcp.NewTool("list_teams",
		append([]mcp.ToolOption{
			mcp.WithDescription("Lists every team present in the VALORANT match database. Use these exact names for team_name arguments."),
		}, readOnly()...)...,
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		teams, err := deps.Assistant.Teams(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list teams: %w", err)
		}
		return jsonResult("list_teams", map[string]any{"teams": teams, "count": len(teams)})
	})
}

func registerAskTool(s *server.MCPServer, deps *ScoutingToolDeps) {
	tool := mcp.NewTool("ask_scouting_question",
		mcp.WithDescription("Answers a natural-language question about VALORANT team performance. "+
			"Returns the interpretation, the SQL that was run and the result rows. "+
			"Failures are reported in the error field of the answer."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The question, e.g. \"What is Cloud9's win rate on Haven?\""),
		),
		mcp.WithString("team_name",
			mcp.Description("Optional team to scope the question to"),
		),
		mcp.WithNumber("num_matches",
			mcp.Description("Optional number of recent matches to consider (max 100)"),
		),
		mcp.WithString("session_id",
			mcp.Description("Optional session id returned by a previous answer, for follow-up questions"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return nil, err
		}

		ask := services.AskRequest{Question: question}
		if team := getOptionalString(req, "team_name"); team != "" {
			ask.TeamName = &team
		}
		if n, ok := getOptionalInt(req, "num_matches"); ok {
			ask.NumMatches = &n
		}
		if sid := getOptionalString(req, "session_id"); sid != "" {
			if !services.ValidSessionID(sid) {
				return NewErrorResult("invalid_session_id", "session_id may only contain letters, digits, '-' and '_'"), nil
			}
			ask.SessionID = sid
		}

		answer := deps.Assistant.Ask(ctx, ask)
		result, err := jsonResult("ask_scouting_question", answer)
		if err != nil {
			return nil, err
		}
		result.IsError = answer.Error != ""
		return result, nil
	})
}

func registerSuggestTool(s *server.MCPServer, deps *ScoutingToolDeps) {
	tool := mcp.NewTool("suggest_questions",
		append([]mcp.ToolOption{
			mcp.WithDescription("Suggests scouting questions that the engine can answer, optionally for one team."),
			mcp.WithString("team_name", mcp.Description("Optional team to tailor the suggestions to")),
			mcp.WithString("session_id", mcp.Description("Optional session id; questions already asked are skipped")),
		}, readOnly()...)...,
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var team *string
		if name := getOptionalString(req, "team_name"); name != "" {
			team = &name
		}
		sid := getOptionalString(req, "session_id")
		if sid != "" && !services.ValidSessionID(sid) {
			return NewErrorResult("invalid_session_id", "session_id may only contain letters, digits, '-' and '_'"), nil
		}

		set, err := deps.Assistant.Suggest(ctx, team, sid)
		if err != nil {
			if result, ok := classifiedErrorResult(err); ok {
				return result, nil
			}
			return nil, fmt.Errorf("failed to suggest questions: %w", err)
		}
		return jsonResult("suggest_questions", set)
	})
}

func registerDescribeCatalogTool(s *server.MCPServer, deps *ScoutingToolDeps) {
	tool := mcp.NewTool("describe_catalog",
		append([]mcp.ToolOption{
			mcp.WithDescription("Describes the analytics relations and columns questions can be answered from."),
			mcp.WithString("relation", mcp.Description("Optional relation name to describe on its own")),
		}, readOnly()...)...,
	)
	description := deps.Catalog.Describe()

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name := getOptionalString(req, "relation")
		if name == "" {
			return jsonResult("describe_catalog", description)
		}
		rel, ok := description.Relation(name)
		if !ok {
			names := make([]string, 0, len(description.Relations))
			for _, r := range description.Relations {
				names = append(names, r.Name)
			}
			return NewErrorResultWithDetails("unknown_relation",
				fmt.Sprintf("no relation named %q", name),
				map[string]any{"relations": names}), nil
		}
		return jsonResult("describe_catalog", rel)
	})
}

func registerScoutTeamTool(s *server.MCPServer, deps *ScoutingToolDeps) {
	tool := mcp.NewTool("scout_team",
		append([]mcp.ToolOption{
			mcp.WithDescription("Returns the full scouting profile of a team: recent form, maps, compositions, players, pistol rounds, round wins, weapons and weaknesses."),
			mcp.WithString("team_name", mcp.Required(), mcp.Description("Team to scout")),
			mcp.WithNumber("num_matches", mcp.Description("Recent series to include in the overview (default 10, max 100)")),
		}, readOnly()...)...,
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		team, err := req.RequireString("team_name")
		if err != nil {
			return nil, err
		}
		data, err := deps.Scouting.Scout(ctx, team, numMatchesArg(req))
		if err != nil {
			if result, ok := classifiedErrorResult(err); ok {
				return result, nil
			}
			return nil, fmt.Errorf("failed to scout team: %w", err)
		}
		return jsonResult("scout_team", data)
	})
}

func registerReportTool(s *server.MCPServer, deps *ScoutingToolDeps) {
	tool := mcp.NewTool("generate_scouting_report",
		mcp.WithDescription("Writes a markdown scouting report with a game plan for beating the team."),
		mcp.WithString("team_name", mcp.Required(), mcp.Description("Team to report on")),
		mcp.WithNumber("num_matches", mcp.Description("Recent series to include (default 10, max 100)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		team, err := req.RequireString("team_name")
		if err != nil {
			return nil, err
		}
		report, err := deps.Reports.Generate(ctx, services.ReportRequest{TeamName: team, NumMatches: numMatchesArg(req)})
		if err != nil {
			if result, ok := classifiedErrorResult(err); ok {
				return result, nil
			}
			return nil, fmt.Errorf("failed to generate report: %w", err)
		}
		deps.Logger.Debug("Generated scouting report via MCP",
			zap.String("team", report.Team),
			zap.String("source", report.Source))
		return mcp.NewToolResultText(report.Report), nil
	})
}
