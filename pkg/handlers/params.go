package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/vlrscout/scout-engine/pkg/middleware"
	"github.com/vlrscout/scout-engine/pkg/services"
)

// ParseSessionID reads the session id from the X-Session-ID header, falling
// back to the session_id query parameter. An empty id is valid and starts a
// new session. Returns false after writing a 400 for a malformed id.
func ParseSessionID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	id := strings.TrimSpace(r.Header.Get(middleware.SessionHeader))
	if id == "" {
		id = strings.TrimSpace(r.URL.Query().Get("session_id"))
	}
	return validateSessionID(w, id, logger)
}

func validateSessionID(w http.ResponseWriter, id string, logger *zap.Logger) (string, bool) {
	if id == "" || services.ValidSessionID(id) {
		return id, true
	}
	if err := ErrorResponse(w, http.StatusBadRequest, "invalid_session_id", "Invalid session ID format"); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
	return "", false
}

// ParseNumMatches reads the optional num_matches query parameter.
// Zero means "use the default window"; clamping happens in the service.
func ParseNumMatches(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("num_matches"))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_num_matches", "num_matches must be a non-negative integer"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return 0, false
	}
	return n, true
}

// ParseTeam extracts a team name from the request path.
// Expects path parameter: name
func ParseTeam(w http.ResponseWriter, r *http.Request, name string, logger *zap.Logger) (string, bool) {
	team := strings.TrimSpace(r.PathValue(name))
	if team == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_team", "Team name is required"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return "", false
	}
	return team, true
}
