package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/vlrscout/scout-engine/pkg/audit"
	"github.com/vlrscout/scout-engine/pkg/catalog"
	"github.com/vlrscout/scout-engine/pkg/llm"
	"github.com/vlrscout/scout-engine/pkg/logging"
	"github.com/vlrscout/scout-engine/pkg/metrics"
	"github.com/vlrscout/scout-engine/pkg/models"
	"github.com/vlrscout/scout-engine/pkg/prompts"
	sqlutil "github.com/vlrscout/scout-engine/pkg/sql"
)

// Rejection reasons, used as metric labels.
const (
	rejectLLMError          = "llm_error"
	rejectUnparseable       = "unparseable"
	rejectNotReadOnly       = "not_read_only"
	rejectUnknownIdentifier = "unknown_identifier"
	rejectUnknownParameter  = "unknown_parameter"
	rejectLiteralValue      = "literal_value"
	rejectInjection         = "injection"
	rejectColumns           = "unreadable_columns"
	rejectDroppedParameter  = "dropped_parameter"
)

// SQLProposer asks the LLM to refine a planned statement and keeps the
// refinement only if it passes the same checks as planned SQL, restricted to
// the planned relation and parameters.
type SQLProposer struct {
	catalog *catalog.Catalog
	llm     llm.LLMClient
	auditor *audit.SecurityAuditor
	logger  *zap.Logger
}

func NewSQLProposer(cat *catalog.Catalog, client llm.LLMClient, auditor *audit.SecurityAuditor, logger *zap.Logger) *SQLProposer {
	return &SQLProposer{
		catalog: cat,
		llm:     client,
		auditor: auditor,
		logger:  logger.Named("sql-proposer"),
	}
}

// proposalRejection is why a proposal was discarded.
type proposalRejection struct {
	reason string
	err    error
}

func (r *proposalRejection) Error() string {
	return fmt.Sprintf("%s: %v", r.reason, r.err)
}

// Propose returns a refined copy of intent, or intent itself when the
// proposal is rejected. Only generation timeouts, rate limits and quota
// exhaustion are returned as errors.
func (p *SQLProposer) Propose(ctx context.Context, sessionID string, intent *models.QueryIntent) (*models.QueryIntent, error) {
	rel, ok := p.catalog.Relation(intent.ResolvedRelation)
	if !ok {
		return intent, nil
	}

	prompt := prompts.BuildSQLProposalPrompt(p.proposalContext(rel, intent))
	resp, err := p.llm.GenerateResponse(llm.WithPurpose(ctx, "propose_sql"), prompt, prompts.SQLProposalSystemMessage(), 0.0)
	if err != nil {
		if fail := generationFailure(err); fail != nil {
			return nil, fail
		}
		p.reject(ctx, sessionID, rel.Name, "", &proposalRejection{reason: rejectLLMError, err: err})
		return intent, nil
	}

	proposal, err := llm.ParseJSONResponse[prompts.ProposalResponse](resp.Content)
	if err != nil || strings.TrimSpace(proposal.SQL) == "" {
		if err == nil {
			err = fmt.Errorf("empty sql")
		}
		p.reject(ctx, sessionID, rel.Name, "", &proposalRejection{reason: rejectUnparseable, err: err})
		return intent, nil
	}

	refined, rejection := p.validate(rel, intent, proposal.SQL)
	if rejection != nil {
		p.reject(ctx, sessionID, rel.Name, proposal.SQL, rejection)
		return intent, nil
	}

	p.logger.Debug("Accepted refined SQL",
		zap.String("relation", rel.Name),
		zap.String("sql", logging.SanitizeQuery(refined.SQLTemplate)))
	return refined, nil
}

func (p *SQLProposer) proposalContext(rel *catalog.Relation, intent *models.QueryIntent) prompts.ProposalContext {
	cols := make([]prompts.ColumnContext, len(rel.Columns))
	for i, col := range rel.Columns {
		values := make([]string, len(col.Values))
		for j, v := range col.Values {
			values[j] = fmt.Sprint(v.Value)
		}
		cols[i] = prompts.ColumnContext{
			Name:         col.Name,
			SemanticType: string(col.SemanticType),
			IsNullable:   col.Nullable,
			Description:  col.Description,
			Values:       values,
		}
	}
	return prompts.ProposalContext{
		Question:     intent.RawQuestion,
		Relation:     rel.Name,
		Description:  rel.Description,
		Columns:      cols,
		Placeholders: sqlutil.ExtractParameters(intent.SQLTemplate),
		Aggregation:  string(intent.Aggregation),
		Template:     intent.SQLTemplate,
	}
}

// validate applies the planned-SQL checks to a proposal.
func (p *SQLProposer) validate(rel *catalog.Relation, intent *models.QueryIntent, proposed string) (*models.QueryIntent, *proposalRejection) {
	normalized, err := sqlutil.ValidateReadOnly(proposed)
	if err != nil {
		return nil, &proposalRejection{reason: rejectNotReadOnly, err: err}
	}
	if err := p.catalog.CheckSQL(normalized, []string{rel.Name}); err != nil {
		return nil, &proposalRejection{reason: rejectUnknownIdentifier, err: err}
	}
	if err := sqlutil.ValidateBindings(normalized, intent.Bindings); err != nil {
		return nil, &proposalRejection{reason: rejectUnknownParameter, err: err}
	}

	literals, err := sqlutil.StringLiterals(normalized)
	if err != nil {
		return nil, &proposalRejection{reason: rejectNotReadOnly, err: err}
	}
	for _, lit := range literals {
		for name, value := range intent.Bindings {
			s, ok := value.(string)
			if ok && s != "" && strings.Contains(strings.ToLower(lit), strings.ToLower(s)) {
				return nil, &proposalRejection{reason: rejectLiteralValue, err: fmt.Errorf("literal repeats bound value of %s", name)}
			}
		}
		if hit := sqlutil.CheckParameterForInjection("literal", lit); hit != nil {
			return nil, &proposalRejection{reason: rejectInjection, err: fmt.Errorf("literal fingerprint %s", hit.Fingerprint)}
		}
	}

	cols, err := sqlutil.ParseSelectColumns(normalized)
	if err != nil || len(cols) == 0 {
		if err == nil {
			err = fmt.Errorf("no explicit select list")
		}
		return nil, &proposalRejection{reason: rejectColumns, err: err}
	}

	// Every planned parameter carries a filter the answer is described by,
	// such as the team, so a refinement may not drop one.
	if missing := missingParameters(intent.SQLTemplate, normalized); len(missing) > 0 {
		return nil, &proposalRejection{reason: rejectDroppedParameter,
			err: fmt.Errorf("planned parameter {{%s}} missing", strings.Join(missing, "}}, {{"))}
	}

	generated, params, err := sqlutil.SubstituteParameters(normalized, intent.Bindings)
	if err != nil {
		return nil, &proposalRejection{reason: rejectUnknownParameter, err: err}
	}
	refined := intent.WithSQL(normalized, generated, params)
	refined.ResolvedColumns = selectedColumns(rel, cols)
	return refined, nil
}

// missingParameters returns the placeholders of planned that proposed does not use.
func missingParameters(planned, proposed string) []string {
	used := make(map[string]bool)
	for _, name := range sqlutil.ExtractParameters(proposed) {
		used[name] = true
	}
	var missing []string
	for _, name := range sqlutil.ExtractParameters(planned) {
		if !used[name] {
			missing = append(missing, name)
		}
	}
	return missing
}

// selectedColumns lists the relation's columns read by a select list, in order.
func selectedColumns(rel *catalog.Relation, cols []sqlutil.ParsedColumn) []string {
	seen := make(map[string]bool)
	var resolved []string
	for _, col := range cols {
		tokens, err := sqlutil.Tokenize(col.Expr)
		if err != nil {
			continue
		}
		for _, tok := range tokens {
			if tok.Kind != sqlutil.TokenIdent && tok.Kind != sqlutil.TokenQuotedIdent {
				continue
			}
			if _, ok := rel.Column(tok.Value); ok && !seen[tok.Value] {
				seen[tok.Value] = true
				resolved = append(resolved, tok.Value)
			}
		}
	}
	return resolved
}

func (p *SQLProposer) reject(ctx context.Context, sessionID, relation, proposed string, r *proposalRejection) {
	metrics.LLMProposalsRejected.WithLabelValues(r.reason).Inc()
	p.logger.Info("Discarded proposed SQL, keeping planned statement",
		zap.String("relation", relation),
		zap.String("reason", r.reason),
		zap.String("error", logging.SanitizeError(r.err)))
	if p.auditor != nil && proposed != "" {
		p.auditor.LogProposalRejected(ctx, sessionID, audit.ProposalRejectedDetails{
			Relation: relation,
			Reason:   r.reason,
			SQL:      proposed,
		})
	}
}
