package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/metrocollab/grouper/internal/application/command"
	"github.com/metrocollab/grouper/internal/application/query"
	"github.com/metrocollab/grouper/internal/domain/grouping"
	"github.com/metrocollab/grouper/internal/domain/roster"
	"github.com/metrocollab/grouper/internal/domain/shared"
	"github.com/metrocollab/grouper/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, r, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, r, http.StatusOK, status)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": s.config.Version,
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// GROUPING HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// SortRequest is the body of POST /api/v1/groupings.
type SortRequest struct {
	MinSize  int                    `json:"min_size"`
	MaxSize  int                    `json:"max_size"`
	Students []roster.StudentRecord `json:"students"`
}

// GroupingResponse wraps a result with its cache status.
type GroupingResponse struct {
	*grouping.Result
	Cached bool `json:"cached"`
}

// GenerateResponse is the body returned by class generation.
type GenerateResponse struct {
	Code      string           `json:"code"`
	Submitted int              `json:"submitted"`
	Expected  int              `json:"expected"`
	Grouping  GroupingResponse `json:"grouping"`
}

// handlePreviewPlan handles POST /api/v1/plans
func (s *Server) handlePreviewPlan(w http.ResponseWriter, r *http.Request) {
	if s.deps.PreviewPlanHandler == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Plan handler not configured")
		return
	}

	var q query.PreviewPlanQuery
	if !decodeBody(w, r, &q) {
		return
	}

	view, err := s.deps.PreviewPlanHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}

// handleSortRoster handles POST /api/v1/groupings
func (s *Server) handleSortRoster(w http.ResponseWriter, r *http.Request) {
	if s.deps.SortRosterHandler == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Sort handler not configured")
		return
	}

	var req SortRequest
	if !decodeBody(w, r, &req) {
		return
	}
	for i := range req.Students {
		req.Students[i] = req.Students[i].Normalize()
	}

	res, err := s.deps.SortRosterHandler.Handle(r.Context(), command.SortRosterCommand{
		Students: req.Students,
		MinSize:  req.MinSize,
		MaxSize:  req.MaxSize,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, GroupingResponse{Result: res.Result, Cached: res.Cached})
}

// handleGenerateGroups handles POST /api/v1/classes/{code}/groupings
func (s *Server) handleGenerateGroups(w http.ResponseWriter, r *http.Request) {
	if s.deps.GenerateGroupsHandler == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Class storage not configured")
		return
	}

	res, err := s.deps.GenerateGroupsHandler.Handle(r.Context(), command.GenerateGroupsCommand{
		Code:  r.PathValue("code"),
		Force: getQueryParamBool(r, "force"),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, GenerateResponse{
		Code:      res.Code,
		Submitted: res.Submitted,
		Expected:  res.Expected,
		Grouping:  GroupingResponse{Result: res.Result, Cached: res.Cached},
	})
}

// handleGetGroups handles GET /api/v1/classes/{code}/groups
func (s *Server) handleGetGroups(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetGroupsHandler == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Class storage not configured")
		return
	}

	view, err := s.deps.GetGroupsHandler.Handle(r.Context(), query.GetGroupsQuery{Code: r.PathValue("code")})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST DECODING & ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// decodeBody decodes a JSON body into dst and writes a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return true
	}

	var (
		tooLarge  *http.MaxBytesError
		wrongType *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &tooLarge):
		writeJSONError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body too large")
	case errors.As(err, &wrongType) && strings.HasPrefix(wrongType.Field, "students."):
		// same kind as a malformed stored form
		writeJSONErrorWithDetails(w, r, http.StatusBadRequest, "malformed_record",
			"Student record is malformed",
			fmt.Sprintf("%s: expected %s, got %s",
				strings.TrimPrefix(wrongType.Field, "students."), wrongType.Type.Kind(), wrongType.Value))
	case errors.Is(err, io.EOF):
		writeJSONError(w, r, http.StatusBadRequest, "invalid_json", "Request body is empty")
	default:
		writeJSONErrorWithDetails(w, r, http.StatusBadRequest, "invalid_json", "Request body is not valid JSON", err.Error())
	}
	return false
}

// errorStatus maps a domain error kind to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case shared.IsInvalidConfiguration(err):
		return http.StatusUnprocessableEntity, "invalid_configuration"
	case shared.IsMalformedRecord(err):
		return http.StatusBadRequest, "malformed_record"
	case shared.IsValidation(err):
		return http.StatusBadRequest, "invalid_request"
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case shared.IsIncomplete(err):
		return http.StatusConflict, "roster_incomplete"
	case shared.IsInvalidState(err):
		return http.StatusConflict, "generation_in_progress"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeDomainError writes err with the status of its kind. Internal errors
// are logged and their details hidden from the client.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed",
			logger.String("path", r.URL.Path),
			logger.Err(err),
		)
		writeJSONError(w, r, status, code, "An unexpected error occurred")
		return
	}
	writeJSONError(w, r, status, code, err.Error())
}
