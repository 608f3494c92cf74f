package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/vlrscout/scout-engine/pkg/apperrors"
	"github.com/vlrscout/scout-engine/pkg/middleware"
	"github.com/vlrscout/scout-engine/pkg/models"
	"github.com/vlrscout/scout-engine/pkg/services"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// AskRequest for POST /api/ask
type AskRequest struct {
	Question   string  `json:"question"`
	TeamName   *string `json:"team_name,omitempty"`
	NumMatches *int    `json:"num_matches,omitempty"`
	SessionID  string  `json:"session_id,omitempty"`
}

// ============================================================================
// Handler
// ============================================================================

// Assistant is the question answering surface used by the HTTP and MCP layers.
type Assistant interface {
	Ask(ctx context.Context, req services.AskRequest) *models.Answer
	Suggest(ctx context.Context, teamName *string, sessionID string) (models.SuggestionSet, error)
	ResetSession(sessionID string)
	Teams(ctx context.Context) ([]string, error)
}

var _ Assistant = (*services.ScoutingAssistant)(nil)

// AssistantHandler handles the conversational scouting endpoints.
type AssistantHandler struct {
	assistant Assistant
	logger    *zap.Logger
}

// NewAssistantHandler creates a new assistant handler.
func NewAssistantHandler(assistant Assistant, logger *zap.Logger) *AssistantHandler {
	return &AssistantHandler{
		assistant: assistant,
		logger:    logger,
	}
}

// RegisterRoutes registers the assistant handler's routes on the given mux.
func (h *AssistantHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/teams", h.Teams)
	mux.HandleFunc("POST /api/ask", h.Ask)
	mux.HandleFunc("GET /api/suggestions", h.Suggestions)
	mux.HandleFunc("DELETE /api/session", h.ResetSession)
}

// Teams handles GET /api/teams
func (h *AssistantHandler) Teams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.assistant.Teams(r.Context())
	if err != nil {
		h.logger.Error("Failed to list teams", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "list_teams_failed", "Failed to list teams"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: teams}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Ask handles POST /api/ask. Every well-formed request gets a 200 with an
// Answer; question-level failures are reported in the Answer itself.
func (h *AssistantHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	sessionID := strings.TrimSpace(req.SessionID)
	var ok bool
	if sessionID == "" {
		sessionID, ok = ParseSessionID(w, r, h.logger)
	} else {
		sessionID, ok = validateSessionID(w, sessionID, h.logger)
	}
	if !ok {
		return
	}

	answer := h.assistant.Ask(r.Context(), services.AskRequest{
		Question:   req.Question,
		TeamName:   req.TeamName,
		NumMatches: req.NumMatches,
		SessionID:  sessionID,
	})

	w.Header().Set(middleware.SessionHeader, answer.SessionID)
	if err := WriteJSON(w, http.StatusOK, answer); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Suggestions handles GET /api/suggestions?team_name=&session_id=
func (h *AssistantHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := ParseSessionID(w, r, h.logger)
	if !ok {
		return
	}

	var team *string
	if name := strings.TrimSpace(r.URL.Query().Get("team_name")); name != "" {
		team = &name
	}

	set, err := h.assistant.Suggest(r.Context(), team, sessionID)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindUnknownTeam {
			if err := ErrorResponse(w, http.StatusBadRequest, string(apperrors.KindUnknownTeam), apperrors.UserMessage(err)); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to build suggestions", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "suggestions_failed", "Failed to build suggestions"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, set); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ResetSession handles DELETE /api/session
func (h *AssistantHandler) ResetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := ParseSessionID(w, r, h.logger)
	if !ok {
		return
	}
	if sessionID != "" {
		h.assistant.ResetSession(sessionID)
	}
	w.WriteHeader(http.StatusNoContent)
}
