/*
handlers.go - HTTP handlers for the availability API

PURPOSE:
  Exposes the availability engine over REST. Handlers parse the request,
  delegate to the engine/evaluator, and serialize DTOs; no domain logic
  lives here.

ENDPOINTS:
  Roster:
    GET  /api/crew                       List crew
    GET  /api/appliances                 List appliances
    GET  /api/resources/{id}             One roster entry

  Queries (all accept ?at=RFC3339, default now):
    GET  /api/resources/{id}/available   Point-in-time availability
    GET  /api/resources/{id}/duration    Time until the state flips
    GET  /api/crew/{id}/hours?week=YYYY-MM-DD  Weekly duty-hours position
    GET  /api/appliances/{id}/readiness  Dispatch-readiness breakdown

  Operations:
    POST /api/reconcile                  Compare against the live display
    POST /api/scrape?directive=&days=    Trigger a scrape run
    GET  /health
    GET  /metrics

ERROR HANDLING:
  Domain errors map onto status codes by kind:
  - 400: malformed parameters (bad timestamp, unknown directive)
  - 404: unknown resource
  - 409: cache-only run without covering data
  - 502: portal fetch or parse failure during a triggered run
  - 500: everything else

SEE ALSO:
  - dto.go:    wire-format structs
  - server.go: router and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/stationwatch/availability-engine/availability"
	"github.com/stationwatch/availability-engine/scrape"
)

// Handler holds the dependencies the HTTP layer needs.
type Handler struct {
	Store     availability.Store
	Engine    *availability.Engine
	Evaluator *availability.Evaluator

	// Runner and Display are nil in read-only deployments; the scrape and
	// reconcile endpoints then answer 503.
	Runner  *scrape.Runner
	Display scrape.DisplayFetcher

	Clock clockwork.Clock
	Log   zerolog.Logger
}

// NewHandler wires a handler over the store with default readiness
// requirements.
func NewHandler(store availability.Store, clock clockwork.Clock, log zerolog.Logger) *Handler {
	engine := availability.NewEngine(store)
	return &Handler{
		Store:     store,
		Engine:    engine,
		Evaluator: availability.NewEvaluator(engine, availability.DefaultRequirements()),
		Clock:     clock,
		Log:       log.With().Str("component", "api").Logger(),
	}
}

// =============================================================================
// ROSTER HANDLERS
// =============================================================================

// ListCrew returns all crew roster entries.
func (h *Handler) ListCrew(w http.ResponseWriter, r *http.Request) {
	h.listResources(w, r, availability.KindCrew)
}

// ListAppliances returns all appliance roster entries.
func (h *Handler) ListAppliances(w http.ResponseWriter, r *http.Request) {
	h.listResources(w, r, availability.KindAppliance)
}

func (h *Handler) listResources(w http.ResponseWriter, r *http.Request, kind availability.ResourceKind) {
	resources, err := h.Store.Resources(r.Context(), kind)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]ResourceDTO, len(resources))
	for i, res := range resources {
		dtos[i] = toResourceDTO(res)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetResource returns one roster entry.
func (h *Handler) GetResource(w http.ResponseWriter, r *http.Request) {
	id := availability.ResourceID(chi.URLParam(r, "id"))
	res, err := h.Store.Resource(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResourceDTO(res))
}

// =============================================================================
// QUERY HANDLERS
// =============================================================================

// GetAvailability answers point-in-time availability for a resource.
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	id := availability.ResourceID(chi.URLParam(r, "id"))
	at, ok := h.atParam(w, r)
	if !ok {
		return
	}

	avail, err := h.Engine.IsAvailable(r.Context(), id, at)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AvailabilityDTO{
		Resource:  string(id),
		At:        at,
		Available: avail,
	})
}

// GetDuration answers how long the resource's current state persists.
func (h *Handler) GetDuration(w http.ResponseWriter, r *http.Request) {
	id := availability.ResourceID(chi.URLParam(r, "id"))
	at, ok := h.atParam(w, r)
	if !ok {
		return
	}

	change, err := h.Engine.DurationUntilChange(r.Context(), id, at)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDurationDTO(id, at, change))
}

// GetWeeklyHours reports a crew member's duty-hours position for the week
// given by ?week=YYYY-MM-DD (default: the current week's Monday).
func (h *Handler) GetWeeklyHours(w http.ResponseWriter, r *http.Request) {
	id := availability.ResourceID(chi.URLParam(r, "id"))

	weekStart := mondayOf(h.Clock.Now())
	if raw := r.URL.Query().Get("week"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid week (use YYYY-MM-DD)", err)
			return
		}
		weekStart = parsed
	}

	wh, err := h.Engine.WeeklyHoursFor(r.Context(), id, weekStart)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWeeklyHoursDTO(wh))
}

// GetReadiness evaluates the dispatch-readiness rules for an appliance.
func (h *Handler) GetReadiness(w http.ResponseWriter, r *http.Request) {
	id := availability.ResourceID(chi.URLParam(r, "id"))
	at, ok := h.atParam(w, r)
	if !ok {
		return
	}

	result, err := h.Evaluator.Evaluate(r.Context(), id, at)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// OPERATION HANDLERS
// =============================================================================

// TriggerReconcile fetches the live station display and diffs it against
// the engine's computed state.
func (h *Handler) TriggerReconcile(w http.ResponseWriter, r *http.Request) {
	if h.Runner == nil || h.Display == nil {
		writeError(w, http.StatusServiceUnavailable, "reconciliation not configured", nil)
		return
	}

	run, err := h.Runner.Reconcile(r.Context(), h.Display)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// TriggerScrape runs the scrape pipeline on demand. Query parameters:
// directive (default cache-first) and days (default 1).
func (h *Handler) TriggerScrape(w http.ResponseWriter, r *http.Request) {
	if h.Runner == nil {
		writeError(w, http.StatusServiceUnavailable, "scraping not configured", nil)
		return
	}

	directive := availability.CacheFirst
	if raw := r.URL.Query().Get("directive"); raw != "" {
		parsed, err := availability.ParseCacheDirective(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid directive", err)
			return
		}
		directive = parsed
	}

	days := 1
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer", err)
			return
		}
		days = parsed
	}

	if err := h.Runner.Run(r.Context(), days, directive); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ScrapeResultDTO{
		Directive: string(directive),
		Days:      days,
		Status:    "ok",
	})
}

// Health is the liveness probe.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// atParam parses ?at=RFC3339, defaulting to the current instant. A false
// return means the error response was already written.
func (h *Handler) atParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("at")
	if raw == "" {
		return h.Clock.Now(), true
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid at (use RFC3339)", err)
		return time.Time{}, false
	}
	return at, true
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case availability.IsNotFound(err):
		writeError(w, http.StatusNotFound, "resource not found", err)
	case errors.Is(err, availability.ErrNoCachedData):
		writeError(w, http.StatusConflict, "no cached data for the requested day", err)
	case errors.Is(err, availability.ErrParseFailure):
		writeError(w, http.StatusBadGateway, "portal document could not be parsed", err)
	case errors.Is(err, scrape.ErrPortalFetch):
		writeError(w, http.StatusBadGateway, "portal unreachable", err)
	default:
		h.Log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// mondayOf returns midnight of the Monday on or before t.
func mondayOf(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
