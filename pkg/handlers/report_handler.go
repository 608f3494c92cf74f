package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/vlrscout/scout-engine/pkg/apperrors"
	"github.com/vlrscout/scout-engine/pkg/models"
	"github.com/vlrscout/scout-engine/pkg/services"
)

// GenerateReportRequest for POST /api/generate-report
type GenerateReportRequest struct {
	TeamName     string               `json:"team_name"`
	NumMatches   int                  `json:"num_matches"`
	ChatInsights []models.ChatInsight `json:"chat_insights"`
}

// ReportHandler handles scouting report generation.
type ReportHandler struct {
	reports services.ReportService
	logger  *zap.Logger
}

// NewReportHandler creates a new report handler.
func NewReportHandler(reports services.ReportService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{reports: reports, logger: logger}
}

// RegisterRoutes registers the report handler's routes on the given mux.
func (h *ReportHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/generate-report", h.Generate)
}

// Generate handles POST /api/generate-report
func (h *ReportHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if strings.TrimSpace(req.TeamName) == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "team_name is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	report, err := h.reports.Generate(r.Context(), services.ReportRequest{
		TeamName:   req.TeamName,
		NumMatches: req.NumMatches,
		Insights:   req.ChatInsights,
	})
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindUnknownTeam {
			if err := ErrorResponse(w, http.StatusBadRequest, string(apperrors.KindUnknownTeam), apperrors.UserMessage(err)); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to generate report",
			zap.String("team", req.TeamName),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "generate_report_failed", "Failed to generate report"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, report); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
