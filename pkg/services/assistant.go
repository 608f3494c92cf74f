package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vlrscout/scout-engine/pkg/adapters/analytics"
	"github.com/vlrscout/scout-engine/pkg/apperrors"
	"github.com/vlrscout/scout-engine/pkg/audit"
	"github.com/vlrscout/scout-engine/pkg/logging"
	"github.com/vlrscout/scout-engine/pkg/metrics"
	"github.com/vlrscout/scout-engine/pkg/models"
)

// TeamSource lists the teams present in the match data.
type TeamSource interface {
	Teams(ctx context.Context) ([]string, error)
	Canonical(ctx context.Context, name string) (string, bool, error)
}

// AskRequest is one natural-language question.
type AskRequest struct {
	Question   string
	TeamName   *string
	NumMatches *int
	// SessionID is validated by the caller; empty starts a new session.
	SessionID string
}

// AssistantConfig bounds question execution.
type AssistantConfig struct {
	RowCap           int
	StatementTimeout time.Duration
	// LLMSQL lets the proposer refine planned statements.
	LLMSQL bool
	// ExposeSQL sets Answer.SQL to the executed statement. Off unless configured.
	ExposeSQL bool
}

// AssistantDeps are the collaborators of a ScoutingAssistant.
// Proposer may be nil when no LLM is configured.
type AssistantDeps struct {
	Planner       *QueryPlanner
	Proposer      *SQLProposer
	Executor      analytics.Executor
	Interpreter   *ResultInterpreter
	Suggestions   *SuggestionGenerator
	Conversations *ConversationStore
	Teams         TeamSource
	Auditor       *audit.SecurityAuditor
}

// ScoutingAssistant answers scouting questions within a conversation.
type ScoutingAssistant struct {
	deps   AssistantDeps
	cfg    AssistantConfig
	logger *zap.Logger
}

func NewScoutingAssistant(deps AssistantDeps, cfg AssistantConfig, logger *zap.Logger) *ScoutingAssistant {
	if cfg.RowCap <= 0 {
		cfg.RowCap = analytics.DefaultRowCap
	}
	if cfg.StatementTimeout <= 0 {
		cfg.StatementTimeout = analytics.DefaultStatementTimeout
	}
	return &ScoutingAssistant{
		deps:   deps,
		cfg:    cfg,
		logger: logger.Named("assistant"),
	}
}

// Ask plans, executes and interprets one question. Failures are reported in
// the returned Answer rather than as an error, so every question gets a reply.
// Every non-blank question is recorded in the session.
func (a *ScoutingAssistant) Ask(ctx context.Context, req AskRequest) *models.Answer {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = NewSessionID()
	}

	answer, relation := a.answer(ctx, sessionID, req)
	answer.SessionID = sessionID

	outcome := "ok"
	if answer.Error != "" {
		outcome = string(answer.Error)
	}
	metrics.AskOutcomes.WithLabelValues(outcome).Inc()

	if strings.TrimSpace(req.Question) != "" {
		a.deps.Conversations.Append(sessionID, models.ConversationTurn{
			Question:  req.Question,
			Answer:    *answer,
			Relation:  relation,
			Timestamp: time.Now().UTC(),
		})
	}
	return answer
}

// answer returns the Answer and the relation it was grounded in, if any.
func (a *ScoutingAssistant) answer(ctx context.Context, sessionID string, req AskRequest) (*models.Answer, string) {
	teams, err := a.deps.Teams.Teams(ctx)
	if err != nil {
		return a.failed(req, req.TeamName, apperrors.Wrap(apperrors.KindExecutionFailed, "", err)), ""
	}

	intent, err := a.deps.Planner.Plan(PlanInput{
		Question:     req.Question,
		TeamFilter:   req.TeamName,
		MatchCount:   req.NumMatches,
		KnownTeams:   teams,
		Conversation: a.deps.Conversations.Snapshot(sessionID),
	})
	if err != nil {
		if inj, ok := IsInjection(err); ok && a.deps.Auditor != nil {
			a.deps.Auditor.LogInjectionAttempt(ctx, sessionID, audit.SQLInjectionDetails{
				ParamName:   inj.Result.ParamName,
				ParamValue:  fmt.Sprint(inj.Result.ParamValue),
				Fingerprint: inj.Result.Fingerprint,
			})
		}
		return a.failed(req, req.TeamName, err), ""
	}
	team := teamPointer(intent)

	if a.cfg.LLMSQL && a.deps.Proposer != nil {
		refined, err := a.deps.Proposer.Propose(ctx, sessionID, intent)
		if err != nil {
			return a.failed(req, team, err), intent.ResolvedRelation
		}
		intent = refined
	}

	result, err := a.deps.Executor.Query(ctx, intent.GeneratedSQL, intent.Parameters, analytics.QueryOptions{
		RowCap:           a.cfg.RowCap,
		StatementTimeout: a.cfg.StatementTimeout,
	})
	if err != nil {
		answer := a.failed(req, team, err)
		answer.SQL = a.exposedSQL(intent)
		return answer, intent.ResolvedRelation
	}
	if a.deps.Auditor != nil {
		a.deps.Auditor.LogQueryExecution(ctx, sessionID, intent.ResolvedRelation, result.RowCount,
			time.Duration(result.ElapsedMS)*time.Millisecond)
	}

	interpretation, err := a.deps.Interpreter.Interpret(ctx, InterpretInput{
		Question: req.Question,
		Intent:   intent,
		Result:   result,
	})
	if err != nil {
		answer := a.failed(req, team, err)
		answer.SQL = a.exposedSQL(intent)
		answer.Results = result
		return answer, intent.ResolvedRelation
	}

	a.logger.Debug("Answered question",
		zap.String("session_id", sessionID),
		zap.String("relation", intent.ResolvedRelation),
		zap.Int("rows", result.RowCount),
		zap.Bool("truncated", result.Truncated))

	return &models.Answer{
		Question:       req.Question,
		Team:           team,
		Interpretation: interpretation,
		SQL:            a.exposedSQL(intent),
		Results:        result,
	}, intent.ResolvedRelation
}

func (a *ScoutingAssistant) exposedSQL(intent *models.QueryIntent) *string {
	if !a.cfg.ExposeSQL {
		return nil
	}
	sql := intent.GeneratedSQL
	return &sql
}

func (a *ScoutingAssistant) failed(req AskRequest, team *string, err error) *models.Answer {
	kind := apperrors.KindOf(err)
	if kind == "" {
		kind = apperrors.KindExecutionFailed
	}
	msg := apperrors.UserMessage(err)

	a.logger.Info("Question not answered",
		zap.String("kind", string(kind)),
		zap.String("error", logging.SanitizeError(err)))

	return &models.Answer{
		Question:       req.Question,
		Team:           team,
		Interpretation: msg,
		Error:          kind,
		ErrorMessage:   msg,
	}
}

func teamPointer(intent *models.QueryIntent) *string {
	if team := intent.Team(); team != "" {
		return &team
	}
	return nil
}

// Suggest returns follow-up questions for teamName in the given session.
// An unknown team is a KindUnknownTeam error.
func (a *ScoutingAssistant) Suggest(ctx context.Context, teamName *string, sessionID string) (models.SuggestionSet, error) {
	var filter *string
	if teamName != nil && strings.TrimSpace(*teamName) != "" {
		canonical, ok, err := a.deps.Teams.Canonical(ctx, strings.TrimSpace(*teamName))
		if err != nil {
			return models.SuggestionSet{}, apperrors.Wrap(apperrors.KindExecutionFailed, "", err)
		}
		if !ok {
			return models.SuggestionSet{}, apperrors.Wrap(apperrors.KindUnknownTeam,
				fmt.Sprintf("Unknown team %q. Pick a team from the list.", *teamName), apperrors.ErrUnknownTeam)
		}
		filter = &canonical
	}

	var turns []models.ConversationTurn
	if sessionID != "" {
		turns = a.deps.Conversations.Snapshot(sessionID)
	}
	return a.deps.Suggestions.Suggest(filter, turns), nil
}

// ResetSession forgets the conversation for sessionID.
func (a *ScoutingAssistant) ResetSession(sessionID string) {
	a.deps.Conversations.Reset(sessionID)
}

// Teams lists the known teams.
func (a *ScoutingAssistant) Teams(ctx context.Context) ([]string, error) {
	return a.deps.Teams.Teams(ctx)
}
