package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"trade-council/config"
	"trade-council/internal/app"
	"trade-council/models"
	"trade-council/pipeline"
	"trade-council/services"

	"github.com/go-chi/chi/v5"
)

// Handler handles HTTP API requests
type Handler struct {
	app *app.App
	cfg *config.Config
}

// NewHandler creates a new Handler
func NewHandler(application *app.App, cfg *config.Config) *Handler {
	return &Handler{app: application, cfg: cfg}
}

// HandleHealth returns the health status of the application
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status": "ok",
		"services": map[string]string{
			"database": "unknown",
		},
	}

	if h.app.Store() != nil {
		if err := h.app.Health(r.Context()); err == nil {
			status["services"].(map[string]string)["database"] = "connected"
		} else {
			status["services"].(map[string]string)["database"] = "disconnected"
			status["status"] = "degraded"
		}
	} else {
		status["services"].(map[string]string)["database"] = "not_configured"
	}

	// Add circuit breaker status
	cbStatus := services.GetGlobalRegistry().Status()
	status["circuit_breakers"] = cbStatus

	// Check if any breakers are open (degraded state)
	for _, cb := range cbStatus {
		if cb.State == "open" {
			status["status"] = "degraded"
			break
		}
	}

	h.jsonResponse(w, status)
}

// RunRequestBody is the JSON body for POST /api/v1/runs. Everything but
// the symbol is optional and falls back to the configured defaults.
type RunRequestBody struct {
	Symbol         string  `json:"symbol"`
	AsOf           string  `json:"as_of,omitempty"`
	DebateRounds   int     `json:"debate_rounds,omitempty"`
	RiskTolerance  string  `json:"risk_tolerance,omitempty"`
	MaxPositionPct float64 `json:"max_position_pct,omitempty"`
}

// HandleRunAnalysis drives one synchronous pipeline run and returns the
// resulting recommendation. A degraded run still answers 200; its flags
// ride on the recommendation. Fatal runs map to 502, cancellations
// (including the request timeout) to 400, and a full queue to 429.
func (h *Handler) HandleRunAnalysis(w http.ResponseWriter, r *http.Request) {
	var body RunRequestBody

	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		_ = json.NewDecoder(r.Body).Decode(&body)
	} else {
		_ = r.ParseForm()
		body.Symbol = r.FormValue("symbol")
	}

	if body.Symbol == "" {
		h.jsonError(w, "Symbol is required", http.StatusBadRequest)
		return
	}

	body.Symbol = strings.ToUpper(strings.TrimSpace(body.Symbol))
	if err := h.ValidateSymbol(body.Symbol); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	req, err := h.buildRunRequest(body)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	rec, err := h.app.RunAnalysis(r.Context(), req)
	if err != nil {
		if errors.Is(err, app.ErrQueueFull) {
			h.jsonError(w, err.Error(), http.StatusTooManyRequests)
			return
		}
		if re, ok := pipeline.AsRunError(err); ok {
			switch re.Kind {
			case pipeline.FailurePartial:
				h.jsonResponse(w, rec)
			case pipeline.FailureCancelled:
				h.jsonError(w, err.Error(), http.StatusBadRequest)
			default:
				h.jsonError(w, err.Error(), http.StatusBadGateway)
			}
			return
		}
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, rec)
}

// buildRunRequest validates the optional knobs and maps them onto an app
// run request.
func (h *Handler) buildRunRequest(body RunRequestBody) (app.RunRequest, error) {
	req := app.RunRequest{Symbol: body.Symbol}

	if body.AsOf != "" {
		asOf, err := parseAsOf(body.AsOf)
		if err != nil {
			return req, err
		}
		req.AsOf = asOf
	}
	if body.DebateRounds != 0 {
		if body.DebateRounds < models.MinDebateRounds || body.DebateRounds > models.MaxDebateRounds {
			return req, fmt.Errorf("debate_rounds must be between %d and %d", models.MinDebateRounds, models.MaxDebateRounds)
		}
		req.DebateRounds = body.DebateRounds
	}
	if body.RiskTolerance != "" {
		tolerance := models.RiskTolerance(strings.ToLower(body.RiskTolerance))
		if !tolerance.Valid() {
			return req, fmt.Errorf("unknown risk_tolerance %q", body.RiskTolerance)
		}
		req.RiskTolerance = tolerance
	}
	if body.MaxPositionPct != 0 {
		if body.MaxPositionPct <= 0 || body.MaxPositionPct > 1 {
			return req, fmt.Errorf("max_position_pct must be in (0,1]")
		}
		req.MaxPositionPct = body.MaxPositionPct
	}

	return req, nil
}

// parseAsOf accepts an RFC 3339 timestamp or a bare date.
func parseAsOf(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("as_of must be RFC 3339 or YYYY-MM-DD")
}

// HandleGetRun returns a single run record
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.app.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.jsonError(w, err.Error(), statusForAppError(err))
		return
	}
	if run == nil {
		h.jsonError(w, "run not found", http.StatusNotFound)
		return
	}

	h.jsonResponse(w, run)
}

// HandleGetRunTrace returns the full trace of a completed run
func (h *Handler) HandleGetRunTrace(w http.ResponseWriter, r *http.Request) {
	trace, err := h.app.GetRunTrace(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.jsonError(w, err.Error(), statusForAppError(err))
		return
	}
	if trace == nil {
		// Unknown run, or one that has not completed yet.
		h.jsonError(w, "trace not available", http.StatusNotFound)
		return
	}

	h.jsonResponse(w, trace)
}

// HandleListRuns returns recent runs, optionally filtered by symbol
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	symbol, err := h.parseSymbolParam(r)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit := h.ParseLimitParam(r, 50)

	runs, err := h.app.ListRuns(r.Context(), symbol, limit)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, runs)
}

// HandleGetRecommendations returns recent recommendations
func (h *Handler) HandleGetRecommendations(w http.ResponseWriter, r *http.Request) {
	symbol, err := h.parseSymbolParam(r)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit := h.ParseLimitParam(r, 50)

	recs, err := h.app.GetRecommendations(r.Context(), symbol, limit)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, recs)
}

// HandleGetRecommendation returns a single recommendation by ID
func (h *Handler) HandleGetRecommendation(w http.ResponseWriter, r *http.Request) {
	rec, err := h.app.GetRecommendationByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.jsonError(w, err.Error(), statusForAppError(err))
		return
	}
	if rec == nil {
		h.jsonError(w, "recommendation not found", http.StatusNotFound)
		return
	}

	h.jsonResponse(w, rec)
}

// HandleSweepOutcomes runs the outcome recorder over recommendations
// whose horizon has elapsed
func (h *Handler) HandleSweepOutcomes(w http.ResponseWriter, r *http.Request) {
	result, err := h.app.RecordOutcomes(r.Context())
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, result)
}

// HandleListOutcomes returns recorded trade outcomes
func (h *Handler) HandleListOutcomes(w http.ResponseWriter, r *http.Request) {
	symbol, err := h.parseSymbolParam(r)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit := h.ParseLimitParam(r, 50)

	outcomes, err := h.app.ListOutcomes(r.Context(), symbol, limit)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, outcomes)
}

// Helper functions

// statusForAppError distinguishes malformed request IDs from store
// failures.
func statusForAppError(err error) int {
	if errors.Is(err, app.ErrInvalidID) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// parseSymbolParam reads and validates the optional symbol query
// parameter.
func (h *Handler) parseSymbolParam(r *http.Request) (string, error) {
	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
	if symbol == "" {
		return "", nil
	}
	if err := h.ValidateSymbol(symbol); err != nil {
		return "", err
	}
	return symbol, nil
}

// ValidateSymbol validates a stock symbol
func (h *Handler) ValidateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol is required")
	}

	if len(symbol) > 10 {
		return fmt.Errorf("symbol too long (max 10 characters)")
	}

	matched, _ := regexp.MatchString("^[A-Z0-9.-]+$", symbol)
	if !matched {
		return fmt.Errorf("invalid symbol format (alphanumeric, dots, and dashes only)")
	}

	return nil
}

// ParseLimitParam parses the limit query parameter
func (h *Handler) ParseLimitParam(r *http.Request, defaultLimit int) int {
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			return l
		}
	}
	return defaultLimit
}

func (h *Handler) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
