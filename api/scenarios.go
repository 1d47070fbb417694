/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built sessions that show specific behaviours of the
	accrual engine: tier crossing, refunds unwinding points, tax movements
	that never touch ECS, the negative-balance policy, and comparing a
	card preset on a realistic month of spending.

AVAILABLE SCENARIOS:

	tier-crossing:      $1,500 spend across a 1x / 0.5x ladder
	spend-then-refund:  the same spend fully refunded, balances back to zero
	tax-spend:          tax-only movement, CS moves and ECS does not
	negative-balance:   tax refund pushes CS below zero, policy "no points"
	card-month:         ANZ Rewards Black on a month of mixed events

HOW SCENARIOS WORK:
 1. Build a fresh session with the default engine config
 2. Set ladder, tax rate and flags
 3. Append events
 4. Swap it in as the handler's session

	A failing loader leaves the current session untouched.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "tier-crossing"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, s)
 3. Add case to LoadScenario handler

SEE ALSO:
  - handlers.go: session endpoints
  - presets/presets.go: built-in card ladders
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/flagpoonage/points-viz/accrual"
	"github.com/flagpoonage/points-viz/presets"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "tier-crossing",
		Name:        "Tier Crossing",
		Description: "Spend $1,500 on a 1x ladder with 0.5x from $1,000: 125,000 points",
		Category:    "engine",
	},
	{
		ID:          "spend-then-refund",
		Name:        "Spend Then Refund",
		Description: "Spend $1,500 then refund it: CS and points return to zero",
		Category:    "engine",
	},
	{
		ID:          "tax-spend",
		Name:        "Tax Spend",
		Description: "Tax-only movement at rate 0.5: CS moves, ECS stays put",
		Category:    "engine",
	},
	{
		ID:          "negative-balance",
		Name:        "Negative Balance",
		Description: "Tax refund drives CS below zero; value below zero earns nothing",
		Category:    "engine",
	},
	{
		ID:          "card-month",
		Name:        "Card Month",
		Description: "ANZ Rewards Black over a month of spends, a refund and a tax payment",
		Category:    "cards",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario replaces the session with a predefined one.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	ctx := r.Context()
	s := accrual.NewSession(accrual.DefaultConfig())

	var err error
	switch req.ScenarioID {
	case "tier-crossing":
		err = h.loadTierCrossingScenario(ctx, s)
	case "spend-then-refund":
		err = h.loadSpendThenRefundScenario(ctx, s)
	case "tax-spend":
		err = h.loadTaxSpendScenario(ctx, s)
	case "negative-balance":
		err = h.loadNegativeBalanceScenario(ctx, s)
	case "card-month":
		err = h.loadCardMonthScenario(ctx, s)
	default:
		writeError(w, http.StatusNotFound, "unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	if err != nil {
		h.writeDomainError(w, r, "failed to load scenario", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.session = s
	h.currentScenario = req.ScenarioID
	h.log(r).Info("scenario loaded", zap.String("scenario", req.ScenarioID), zap.Int("events", s.Events.Len()))
	writeJSON(w, http.StatusOK, h.sessionDTO())
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// twoTierLadder is base 1x with 0.5x from $1,000 and tax at 0.5.
func twoTierLadder(s *accrual.Session) {
	s.ApplyLadder([]accrual.Threshold{
		accrual.DefaultBaseThreshold(),
		{ID: presets.TierTwoID, ActiveFrom: 100000, Multiplier: decimal.RequireFromString("0.5")},
	}, decimal.RequireFromString("0.5"))
}

func (h *Handler) loadTierCrossingScenario(ctx context.Context, s *accrual.Session) error {
	twoTierLadder(s)
	s.AddEvent(accrual.NewEvent(accrual.EventSpend, 150000))
	return nil
}

func (h *Handler) loadSpendThenRefundScenario(ctx context.Context, s *accrual.Session) error {
	twoTierLadder(s)
	s.AddEvent(accrual.NewEvent(accrual.EventSpend, 150000))
	s.AddEvent(accrual.NewEvent(accrual.EventRefund, 150000))
	return nil
}

func (h *Handler) loadTaxSpendScenario(ctx context.Context, s *accrual.Session) error {
	twoTierLadder(s)
	s.AddEvent(accrual.NewEvent(accrual.EventSpend, 50000))
	s.AddEvent(accrual.NewEvent(accrual.EventTaxSpend, 10000))
	return nil
}

func (h *Handler) loadNegativeBalanceScenario(ctx context.Context, s *accrual.Session) error {
	twoTierLadder(s)
	// Points follow CS here so the unrewarded slice below zero is visible
	// in the balance.
	s.SetConfig(accrual.Config{
		TrackExclusiveCumulativeSpend: false,
		ApplyPointsToNegativeBalance:  false,
	})
	s.AddEvent(accrual.NewEvent(accrual.EventTaxRefund, 20000))
	s.AddEvent(accrual.NewEvent(accrual.EventSpend, 50000))
	return nil
}

func (h *Handler) loadCardMonthScenario(ctx context.Context, s *accrual.Session) error {
	card, err := h.Catalog.Get(ctx, presets.ANZRewardsBlackID)
	if err != nil {
		return fmt.Errorf("loading card %s: %w", presets.ANZRewardsBlackID, err)
	}
	card.ApplyTo(s)

	for _, e := range []accrual.RewardEvent{
		accrual.NewEvent(accrual.EventSpend, 300000),
		accrual.NewEvent(accrual.EventSpend, 400000),
		accrual.NewEvent(accrual.EventRefund, 100000),
		accrual.NewEvent(accrual.EventTaxSpend, 20000),
	} {
		s.AddEvent(e)
	}
	return nil
}
