/*
handlers.go - HTTP API handlers for the points accrual visualiser

PURPOSE:
  Exposes one interactive accrual.Session via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the accrual
  engine. Every read of balances replays the full event log.

ENDPOINTS:
  Session:
    GET    /api/session                Settings, ladder, closing balances
    PUT    /api/session/settings       Tax rate, opening balances, engine flags
    POST   /api/session/reset          Clear log, default ladder

  Thresholds:
    GET    /api/thresholds             Ladder, lowest breakpoint first
    POST   /api/thresholds             Add rung (empty body: next 1x rung)
    PUT    /api/thresholds/{id}        Update rung
    DELETE /api/thresholds/{id}        Remove rung

  Events:
    GET    /api/events                 Log in insertion order
    POST   /api/events                 Append event
    DELETE /api/events/{id}            Remove event
    DELETE /api/events                 Clear log

  Aggregates:
    GET    /api/aggregates             Full replay with per-tier points

  Cards:
    GET    /api/cards                  Catalog, ordered by name
    POST   /api/cards                  Add card from JSON
    POST   /api/cards/{id}/apply       Replace ladder and tax rate

  Scenarios:
    GET    /api/scenarios              List demo scenarios
    POST   /api/scenarios/load         Load a demo scenario

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Catalog: card configurations (SQLite or in-memory)
  - CardFactory: JSON to card conversion
  - session: the one Session, guarded by mu

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input (bad numbers, unknown event type, malformed JSON)
  - 404: Unknown event, threshold, card or scenario
  - 422: Ladder cannot be segmented against (missing base, duplicates)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/flagpoonage/points-viz/accrual"
	"github.com/flagpoonage/points-viz/factory"
	"github.com/flagpoonage/points-viz/presets"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Catalog     presets.Catalog
	CardFactory *factory.CardFactory

	logger *zap.Logger

	mu              sync.Mutex
	session         *accrual.Session
	currentScenario string
}

// NewHandler creates a handler with a fresh default session. A nil logger
// discards all output.
func NewHandler(catalog presets.Catalog, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Catalog:     catalog,
		CardFactory: factory.NewCardFactory(),
		logger:      logger,
		session:     accrual.NewSession(accrual.DefaultConfig()),
	}
}

// log returns the handler logger tagged with the chi request id.
func (h *Handler) log(r *http.Request) *zap.Logger {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return h.logger.With(zap.String("request_id", id))
	}
	return h.logger
}

// =============================================================================
// SESSION ENDPOINTS
// =============================================================================

// GetSession returns settings, ladder and closing balances.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	writeJSON(w, http.StatusOK, h.sessionDTO())
}

// UpdateSettings changes tax rate, opening balances and engine flags.
// Nothing is applied unless every present field parses.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	var taxRate, openingPoints *decimal.Decimal
	if req.TaxRate != nil {
		d, err := parseNonNegative("tax_rate", *req.TaxRate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid tax_rate", err)
			return
		}
		taxRate = &d
	}
	if req.OpeningPoints != nil {
		d, err := parseDecimal("opening_points", *req.OpeningPoints)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid opening_points", err)
			return
		}
		openingPoints = &d
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.session
	if taxRate != nil {
		s.SetTaxRate(*taxRate)
	}
	opening := s.Opening
	if req.OpeningCumulativeSpend != nil {
		opening.CumulativeSpend = *req.OpeningCumulativeSpend
	}
	if openingPoints != nil {
		opening.Points = *openingPoints
	}
	s.SetOpening(opening)

	cfg := s.Config
	if req.TrackExclusiveCumulativeSpend != nil {
		cfg.TrackExclusiveCumulativeSpend = *req.TrackExclusiveCumulativeSpend
	}
	if req.ApplyPointsToNegativeBalance != nil {
		cfg.ApplyPointsToNegativeBalance = *req.ApplyPointsToNegativeBalance
	}
	s.SetConfig(cfg)

	h.log(r).Info("settings updated",
		zap.String("tax_rate", s.TaxRate.String()),
		zap.Int64("opening_cumulative_spend", s.Opening.CumulativeSpend),
		zap.Bool("track_ecs", cfg.TrackExclusiveCumulativeSpend),
		zap.Bool("apply_points_to_negative_balance", cfg.ApplyPointsToNegativeBalance),
	)
	writeJSON(w, http.StatusOK, toSettingsDTO(s))
}

// ResetSession clears the log and restores the default ladder.
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.session.Reset()
	h.currentScenario = ""
	h.log(r).Info("session reset")
	writeJSON(w, http.StatusOK, h.sessionDTO())
}

// sessionDTO must be called with mu held.
func (h *Handler) sessionDTO() SessionDTO {
	s := h.session
	dto := SessionDTO{
		Settings:                 toSettingsDTO(s),
		Thresholds:               toThresholdDTOs(s.Thresholds.Ascending()),
		EventCount:               s.Events.Len(),
		Scenario:                 h.currentScenario,
		CumulativeSpend:          s.Opening.CumulativeSpend,
		ExclusiveCumulativeSpend: max(s.Opening.CumulativeSpend, 0),
		PointsBalance:            s.Opening.Points.String(),
	}

	aggs, err := s.Aggregates()
	if err != nil {
		dto.Error = err.Error()
		return dto
	}
	if n := len(aggs); n > 0 {
		closing := aggs[n-1]
		dto.CumulativeSpend = closing.CurrentCumulativeSpend
		dto.ExclusiveCumulativeSpend = closing.CurrentExclusiveCumulativeSpend
		dto.PointsBalance = closing.CurrentPointsBalance.String()
	}
	return dto
}

// =============================================================================
// THRESHOLD ENDPOINTS
// =============================================================================

// ListThresholds returns the ladder, lowest breakpoint first.
func (h *Handler) ListThresholds(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	writeJSON(w, http.StatusOK, toThresholdDTOs(h.session.Thresholds.Ascending()))
}

// CreateThreshold adds a rung. An empty body stacks a 1x rung
// DefaultThresholdStep above the highest breakpoint.
func (h *Handler) CreateThreshold(w http.ResponseWriter, r *http.Request) {
	var req ThresholdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var t accrual.Threshold
	if req.ActiveFrom == nil && req.Multiplier == "" {
		t = h.session.Thresholds.Next()
	} else {
		if req.ActiveFrom == nil || req.Multiplier == "" {
			writeError(w, http.StatusBadRequest, "active_from and multiplier are required together", nil)
			return
		}
		if *req.ActiveFrom < 0 {
			writeError(w, http.StatusBadRequest, "active_from must not be negative", nil)
			return
		}
		m, err := parseNonNegative("multiplier", req.Multiplier)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid multiplier", err)
			return
		}
		t = accrual.NewThreshold(*req.ActiveFrom, m)
	}

	h.session.AddThreshold(t)
	h.log(r).Info("threshold added",
		zap.String("threshold_id", t.ID),
		zap.Int64("active_from", t.ActiveFrom),
		zap.String("multiplier", t.Multiplier.String()),
	)
	writeJSON(w, http.StatusCreated, toThresholdDTO(t))
}

// UpdateThreshold changes a rung's breakpoint and/or multiplier.
func (h *Handler) UpdateThreshold(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ThresholdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.session.Thresholds.Get(id)
	if !ok {
		h.writeDomainError(w, r, "threshold not found", accrual.ErrThresholdNotFound)
		return
	}
	if req.ActiveFrom != nil {
		if *req.ActiveFrom < 0 {
			writeError(w, http.StatusBadRequest, "active_from must not be negative", nil)
			return
		}
		t.ActiveFrom = *req.ActiveFrom
	}
	if req.Multiplier != "" {
		m, err := parseNonNegative("multiplier", req.Multiplier)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid multiplier", err)
			return
		}
		t.Multiplier = m
	}

	if err := h.session.UpdateThreshold(t); err != nil {
		h.writeDomainError(w, r, "failed to update threshold", err)
		return
	}
	h.log(r).Info("threshold updated", zap.String("threshold_id", id))
	writeJSON(w, http.StatusOK, toThresholdDTO(t))
}

// DeleteThreshold removes a rung. Removing the base rung is allowed; the
// next replay reports the missing base.
func (h *Handler) DeleteThreshold(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.session.RemoveThreshold(id); err != nil {
		h.writeDomainError(w, r, "threshold not found", err)
		return
	}
	h.log(r).Info("threshold removed", zap.String("threshold_id", id))
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// EVENT ENDPOINTS
// =============================================================================

// ListEvents returns the log in insertion order.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	events := h.session.Events.Events()
	out := make([]EventDTO, 0, len(events))
	for _, e := range events {
		out = append(out, toEventDTO(e))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateEvent appends an event. Type and value are checked here so the
// engine only ever sees well-formed events.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	e := accrual.NewEvent(accrual.EventType(req.Type), req.Value)
	if err := e.Validate(); err != nil {
		h.writeDomainError(w, r, "invalid event", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.session.AddEvent(e)
	h.log(r).Info("event added",
		zap.String("event_id", e.ID),
		zap.String("type", string(e.Type)),
		zap.Int64("value", e.Value),
	)
	writeJSON(w, http.StatusCreated, toEventDTO(e))
}

// DeleteEvent removes the first event with the given id.
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.session.RemoveEvent(id); err != nil {
		h.writeDomainError(w, r, "event not found", err)
		return
	}
	h.log(r).Info("event removed", zap.String("event_id", id))
	w.WriteHeader(http.StatusNoContent)
}

// ClearEvents empties the log and keeps the ladder.
func (h *Handler) ClearEvents(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := h.session.Events.Len()
	h.session.Events.Clear()
	h.log(r).Info("events cleared", zap.Int("count", n))
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// AGGREGATE ENDPOINTS
// =============================================================================

// GetAggregates replays the log and returns one row per event.
func (h *Handler) GetAggregates(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	aggs, err := h.session.Aggregates()
	if err != nil {
		h.writeDomainError(w, r, "failed to compute aggregates", err)
		return
	}

	ladder := h.session.Thresholds.Ascending()
	resp := AggregatesResponse{
		Thresholds: toThresholdDTOs(ladder),
		Aggregates: make([]AggregateDTO, 0, len(aggs)),
	}
	for _, a := range aggs {
		resp.Aggregates = append(resp.Aggregates, toAggregateDTO(a, ladder))
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// CARD ENDPOINTS
// =============================================================================

// ListCards returns the catalog ordered by name.
func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := h.Catalog.List(r.Context())
	if err != nil {
		h.writeDomainError(w, r, "failed to list cards", err)
		return
	}

	out := make([]factory.CardJSON, 0, len(cards))
	for _, c := range cards {
		out = append(out, h.CardFactory.ToJSON(c))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateCard adds (or replaces) a card from its JSON definition.
func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	var cj factory.CardJSON
	if err := json.NewDecoder(r.Body).Decode(&cj); err != nil {
		writeError(w, http.StatusBadRequest, "invalid card JSON", err)
		return
	}

	card, err := h.CardFactory.FromJSON(cj)
	if err != nil {
		if accrual.IsConfigError(err) {
			h.writeDomainError(w, r, "invalid card ladder", err)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid card", err)
		return
	}

	if err := h.Catalog.Save(r.Context(), card); err != nil {
		h.writeDomainError(w, r, "failed to save card", err)
		return
	}
	h.log(r).Info("card saved", zap.String("card_id", card.ID), zap.Int("thresholds", len(card.Thresholds)))
	writeJSON(w, http.StatusCreated, h.CardFactory.ToJSON(card))
}

// ApplyCard replaces the session's ladder and tax rate with a card's.
// The event log is kept so cards can be compared on the same history.
func (h *Handler) ApplyCard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	card, err := h.Catalog.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, "card not found", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	card.ApplyTo(h.session)
	h.log(r).Info("card applied", zap.String("card_id", card.ID), zap.String("name", card.Name))
	writeJSON(w, http.StatusOK, h.sessionDTO())
}

// =============================================================================
// HELPERS
// =============================================================================

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

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case accrual.IsNotFound(err), errors.Is(err, presets.ErrCardNotFound):
		return http.StatusNotFound
	case accrual.IsConfigError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, accrual.ErrInvalidEvent):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log(r).Error(message, zap.Error(err))
	} else {
		h.log(r).Debug(message, zap.Int("status", status), zap.Error(err))
	}
	writeError(w, status, message, err)
}

func parseDecimal(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %q is not a number", field, s)
	}
	return d, nil
}

func parseNonNegative(field, s string) (decimal.Decimal, error) {
	d, err := parseDecimal(field, s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must not be negative", field)
	}
	return d, nil
}
