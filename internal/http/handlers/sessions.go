package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/prepview/interview-ai-platform/internal/agent"
	"github.com/prepview/interview-ai-platform/internal/evaluation"
	"github.com/prepview/interview-ai-platform/internal/orchestrator"
	"github.com/prepview/interview-ai-platform/internal/session"
	"github.com/prepview/interview-ai-platform/internal/tokens"
	"github.com/prepview/interview-ai-platform/pkg/logging"
)

// SessionHandler wires HTTP requests to the session orchestrator.
type SessionHandler struct {
	orch   *orchestrator.Orchestrator
	logger *logging.Logger
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(orch *orchestrator.Orchestrator, logger *logging.Logger) *SessionHandler {
	if orch == nil {
		panic("handlers: orchestrator cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SessionHandler{orch: orch, logger: logger}
}

// HealthCheck handles GET /health.
func (h *SessionHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createSessionRequest struct {
	UserID string         `json:"user_id"`
	Config session.Config `json:"config"`
}

// Create handles POST /sessions.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode create request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sess, err := h.orch.Create(r.Context(), req.UserID, req.Config)
	if err != nil {
		h.writeError(w, "failed to create session", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, sess)
}

// List handles GET /sessions.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := session.ListFilter{
		UserID: r.URL.Query().Get("user_id"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			filter.Limit = limit
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil {
			filter.Offset = offset
		}
	}

	sessions, err := h.orch.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, "failed to list sessions", err)
		return
	}
	if sessions == nil {
		sessions = []*session.Session{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// Get handles GET /sessions/{sessionID}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	sess, turns, err := h.orch.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, "failed to fetch session", err)
		return
	}
	if turns == nil {
		turns = []session.Turn{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"session": sess, "turns": turns})
}

// Start handles POST /sessions/{sessionID}/start.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	sess, opening, err := h.orch.Start(r.Context(), id)
	if err != nil {
		h.writeError(w, "failed to start session", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"session": sess, "opening_turn": opening})
}

type submitResponseRequest struct {
	Content    string `json:"content"`
	ArtifactID string `json:"artifact_id,omitempty"`
}

// SubmitResponse handles POST /sessions/{sessionID}/responses.
func (h *SessionHandler) SubmitResponse(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var req submitResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode response request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	turn, err := h.orch.SubmitResponse(r.Context(), id, req.Content, req.ArtifactID)
	if err != nil {
		h.writeError(w, "failed to submit response", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"turn": turn})
}

type clarifyRequest struct {
	Question string `json:"question"`
}

// Clarify handles POST /sessions/{sessionID}/clarify.
func (h *SessionHandler) Clarify(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var req clarifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	rephrased, err := h.orch.Clarify(r.Context(), id, req.Question)
	if err != nil {
		h.writeError(w, "failed to clarify question", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"clarification": rephrased})
}

type difficultyRequest struct {
	Signal string `json:"signal"`
}

// AdaptDifficulty handles POST /sessions/{sessionID}/difficulty.
func (h *SessionHandler) AdaptDifficulty(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var req difficultyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.orch.AdaptDifficulty(r.Context(), id, req.Signal); err != nil {
		h.writeError(w, "failed to adapt difficulty", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// Pause handles POST /sessions/{sessionID}/pause.
func (h *SessionHandler) Pause(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	sess, err := h.orch.Pause(r.Context(), id)
	if err != nil {
		h.writeError(w, "failed to pause session", err)
		return
	}
	h.writeJSON(w, http.StatusOK, sess)
}

// Resume handles POST /sessions/{sessionID}/resume.
func (h *SessionHandler) Resume(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	sess, err := h.orch.Resume(r.Context(), id)
	if err != nil {
		h.writeError(w, "failed to resume session", err)
		return
	}
	h.writeJSON(w, http.StatusOK, sess)
}

type endResponse struct {
	Session         *session.Session   `json:"session"`
	Report          *evaluation.Report `json:"report,omitempty"`
	EvaluationError string             `json:"evaluation_error,omitempty"`
}

// End handles POST /sessions/{sessionID}/end. Evaluation failures do not
// fail the request; they surface in the response body so the client can
// retry report generation.
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	result, err := h.orch.End(r.Context(), id)
	if err != nil {
		h.writeError(w, "failed to end session", err)
		return
	}
	resp := endResponse{Session: result.Session, Report: result.Report}
	if result.EvalErr != nil {
		resp.EvaluationError = "evaluation failed; the report can be regenerated"
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// GetReport handles GET /sessions/{sessionID}/report.
func (h *SessionHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	report, err := h.orch.Report(r.Context(), id)
	if err != nil {
		h.writeError(w, "failed to fetch report", err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// RegenerateReport handles POST /sessions/{sessionID}/report.
func (h *SessionHandler) RegenerateReport(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	report, err := h.orch.Evaluate(r.Context(), id)
	if err != nil {
		h.writeError(w, "failed to generate report", err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// GetUsage handles GET /sessions/{sessionID}/usage.
func (h *SessionHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	totals, breakdown, err := h.orch.Usage(r.Context(), id)
	if err != nil {
		h.writeError(w, "failed to fetch usage", err)
		return
	}
	byOp := make(map[string]tokens.Totals, len(breakdown))
	for op, t := range breakdown {
		byOp[string(op)] = t
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"totals": totals, "by_operation": byOp})
}

func (h *SessionHandler) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		http.Error(w, "Invalid session id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// writeError maps domain errors to HTTP statuses. Provider failures are the
// upstream's fault, not the client's.
func (h *SessionHandler) writeError(w http.ResponseWriter, msg string, err error) {
	var (
		cfgErr      *session.ConfigurationError
		stateErr    *session.InvalidStateError
		concErr     *session.ConcurrentOperationError
		providerErr *agent.ProviderError
		storeErr    *session.DataStoreError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &cfgErr):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound):
		status = http.StatusNotFound
	case errors.As(err, &stateErr):
		status = http.StatusConflict
	case errors.As(err, &concErr):
		status = http.StatusConflict
	case errors.As(err, &providerErr):
		status = http.StatusBadGateway
	case errors.As(err, &storeErr):
		status = http.StatusInternalServerError
	}
	if status == http.StatusInternalServerError {
		h.logger.Error(msg, "error", err)
	} else {
		h.logger.Warn(msg, "error", err, "status", status)
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *SessionHandler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
