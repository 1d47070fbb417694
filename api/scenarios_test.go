/*
scenarios_test.go - Tests for scenario loading

Each scenario is loaded through the HTTP API and its closing balances are
checked against hand-computed values.
*/
package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flagpoonage/points-viz/accrual"
	"github.com/flagpoonage/points-viz/presets"
)

func (ts *testServer) loadScenario(id string) SessionDTO {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: id})
	require.Equal(ts.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[SessionDTO](ts.t, rec)
}

func TestListScenarios(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[[]ScenarioDTO](t, rec)
	require.Len(t, got, len(scenarios))
	for _, s := range got {
		assert.NotEmpty(t, s.ID)
		assert.NotEmpty(t, s.Description)
	}
}

func TestScenarios_ClosingBalances(t *testing.T) {
	tests := []struct {
		id     string
		events int
		cs     int64
		ecs    int64
		points string
	}{
		{id: "tier-crossing", events: 1, cs: 150000, ecs: 150000, points: "125000"},
		{id: "spend-then-refund", events: 2, cs: 0, ecs: 0, points: "0"},
		{id: "tax-spend", events: 2, cs: 60000, ecs: 50000, points: "55000"},
		{id: "negative-balance", events: 2, cs: 30000, ecs: 50000, points: "30000"},
		// ANZ Rewards Black: 600000 + (400000 + 200000) - 100000, tax rate 0
		{id: "card-month", events: 4, cs: 620000, ecs: 600000, points: "1100000"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			ts := newTestServer(t)
			s := ts.loadScenario(tt.id)

			assert.Equal(t, tt.id, s.Scenario)
			assert.Equal(t, tt.events, s.EventCount)
			assert.Equal(t, tt.cs, s.CumulativeSpend)
			assert.Equal(t, tt.ecs, s.ExclusiveCumulativeSpend)
			assertDecimal(t, tt.points, s.PointsBalance)
			assert.Empty(t, s.Error)
		})
	}
}

func TestNegativeBalanceScenario_SentinelSegment(t *testing.T) {
	// GIVEN: CS at -20000 after a tax refund, negative-balance points off
	// WHEN: spending 50000
	// THEN: the 20000 below zero lands on the no-points bucket with 0 points

	ts := newTestServer(t)
	ts.loadScenario("negative-balance")

	resp := ts.aggregates()
	require.Len(t, resp.Aggregates, 2)
	spend := resp.Aggregates[1]

	var found bool
	for _, seg := range spend.CSSegments {
		if seg.ThresholdID == accrual.NoPointsThresholdID {
			found = true
			assert.Equal(t, int64(20000), seg.Value)
			assertDecimal(t, "0", seg.Points)
		}
	}
	assert.True(t, found, "expected a no-points segment")
	assertDecimal(t, "30000", spend.TierPoints[accrual.BaseThresholdID])
}

func TestLoadScenario_UnknownLeavesSessionAlone(t *testing.T) {
	ts := newTestServer(t)
	ts.addEvent("spend", 1000)

	rec := ts.do(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 1, ts.session().EventCount)
}

func TestCardMonthScenario_NeedsCatalogEntry(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.handler.Catalog.Delete(context.Background(), presets.ANZRewardsBlackID))

	rec := ts.do(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "card-month"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "", ts.session().Scenario)
}
