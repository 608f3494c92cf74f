package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/vlrscout/scout-engine/pkg/apperrors"
	"github.com/vlrscout/scout-engine/pkg/services"
)

// ScoutingHandler serves the fixed-SQL scouting endpoints.
type ScoutingHandler struct {
	scouting services.ScoutingService
	logger   *zap.Logger
}

// NewScoutingHandler creates a new scouting handler.
func NewScoutingHandler(scouting services.ScoutingService, logger *zap.Logger) *ScoutingHandler {
	return &ScoutingHandler{
		scouting: scouting,
		logger:   logger,
	}
}

// RegisterRoutes registers the scouting handler's routes on the given mux.
func (h *ScoutingHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/scout/{team}", h.windowed("scout", func(ctx context.Context, team string, n int) (any, error) {
		return h.scouting.Scout(ctx, team, n)
	}))
	mux.HandleFunc("GET /api/overview/{team}", h.windowed("overview", func(ctx context.Context, team string, n int) (any, error) {
		return h.scouting.Overview(ctx, team, n)
	}))
	mux.HandleFunc("GET /api/maps/{team}", h.single("maps", func(ctx context.Context, team string) (any, error) {
		return h.scouting.Maps(ctx, team)
	}))
	mux.HandleFunc("GET /api/compositions/{team}", h.single("compositions", func(ctx context.Context, team string) (any, error) {
		return h.scouting.Compositions(ctx, team)
	}))
	mux.HandleFunc("GET /api/players/{team}", h.single("players", func(ctx context.Context, team string) (any, error) {
		return h.scouting.Players(ctx, team)
	}))
	// num_matches is accepted for compatibility; weaknesses use the full history.
	mux.HandleFunc("GET /api/weaknesses/{team}", h.windowed("weaknesses", func(ctx context.Context, team string, _ int) (any, error) {
		return h.scouting.Weaknesses(ctx, team)
	}))
	mux.HandleFunc("GET /api/pistol/{team}", h.single("pistol", func(ctx context.Context, team string) (any, error) {
		return h.scouting.Pistol(ctx, team)
	}))
	mux.HandleFunc("GET /api/rounds/{team}", h.single("rounds", func(ctx context.Context, team string) (any, error) {
		return h.scouting.Rounds(ctx, team)
	}))
	mux.HandleFunc("GET /api/weapons/{team}", h.single("weapons", func(ctx context.Context, team string) (any, error) {
		return h.scouting.Weapons(ctx, team)
	}))
	mux.HandleFunc("GET /api/h2h/{team1}/{team2}", h.HeadToHead)
}

func (h *ScoutingHandler) single(section string, load func(ctx context.Context, team string) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		team, ok := ParseTeam(w, r, "team", h.logger)
		if !ok {
			return
		}
		data, err := load(r.Context(), team)
		h.respond(w, section, team, data, err)
	}
}

func (h *ScoutingHandler) windowed(section string, load func(ctx context.Context, team string, numMatches int) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		team, ok := ParseTeam(w, r, "team", h.logger)
		if !ok {
			return
		}
		numMatches, ok := ParseNumMatches(w, r, h.logger)
		if !ok {
			return
		}
		data, err := load(r.Context(), team, numMatches)
		h.respond(w, section, team, data, err)
	}
}

// HeadToHead handles GET /api/h2h/{team1}/{team2}
func (h *ScoutingHandler) HeadToHead(w http.ResponseWriter, r *http.Request) {
	team1, ok := ParseTeam(w, r, "team1", h.logger)
	if !ok {
		return
	}
	team2, ok := ParseTeam(w, r, "team2", h.logger)
	if !ok {
		return
	}
	data, err := h.scouting.HeadToHead(r.Context(), team1, team2)
	h.respond(w, "h2h", team1, data, err)
}

func (h *ScoutingHandler) respond(w http.ResponseWriter, section, team string, data any, err error) {
	if err != nil {
		h.writeServiceError(w, section, team, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, data); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *ScoutingHandler) writeServiceError(w http.ResponseWriter, section, team string, err error) {
	status := http.StatusInternalServerError
	code := section + "_failed"
	message := "Failed to load scouting data"

	switch apperrors.KindOf(err) {
	case apperrors.KindUnknownTeam:
		status, code, message = http.StatusNotFound, string(apperrors.KindUnknownTeam), apperrors.UserMessage(err)
	case apperrors.KindInvalidInput:
		status, code, message = http.StatusBadRequest, string(apperrors.KindInvalidInput), apperrors.UserMessage(err)
	case apperrors.KindQueryTimeout:
		status, code, message = http.StatusGatewayTimeout, string(apperrors.KindQueryTimeout), apperrors.UserMessage(err)
	default:
		h.logger.Error("Scouting query failed",
			zap.String("section", section),
			zap.String("team", team),
			zap.Error(err))
	}

	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
