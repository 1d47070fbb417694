/*
handlers_test.go - HTTP tests for the session, threshold, event, aggregate
and card endpoints

Requests go through NewRouter so routing, middleware and JSON encoding are
exercised together. The catalog is a SQLite :memory: store seeded with the
built-in cards.
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flagpoonage/points-viz/accrual"
	"github.com/flagpoonage/points-viz/presets"
	"github.com/flagpoonage/points-viz/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type testServer struct {
	t       *testing.T
	handler *Handler
	router  http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, presets.Seed(context.Background(), store))

	h := NewHandler(store, nil)
	return &testServer{t: t, handler: h, router: NewRouter(h)}
}

func (ts *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (ts *testServer) addEvent(typ string, value int64) EventDTO {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/events", CreateEventRequest{Type: typ, Value: value})
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[EventDTO](ts.t, rec)
}

func (ts *testServer) addThreshold(activeFrom int64, multiplier string) ThresholdDTO {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/thresholds", ThresholdRequest{ActiveFrom: &activeFrom, Multiplier: multiplier})
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[ThresholdDTO](ts.t, rec)
}

func (ts *testServer) aggregates() AggregatesResponse {
	ts.t.Helper()
	rec := ts.do(http.MethodGet, "/api/aggregates", nil)
	require.Equal(ts.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[AggregatesResponse](ts.t, rec)
}

func (ts *testServer) session() SessionDTO {
	ts.t.Helper()
	rec := ts.do(http.MethodGet, "/api/session", nil)
	require.Equal(ts.t, http.StatusOK, rec.Code)
	return decode[SessionDTO](ts.t, rec)
}

func assertDecimal(t *testing.T, want, got string) {
	t.Helper()
	g, err := decimal.NewFromString(got)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString(want).Equal(g), "expected %s, got %s", want, got)
}

// =============================================================================
// SESSION
// =============================================================================

func TestGetSession_Defaults(t *testing.T) {
	ts := newTestServer(t)

	s := ts.session()
	assert.Equal(t, 0, s.EventCount)
	require.Len(t, s.Thresholds, 1)
	assert.Equal(t, accrual.BaseThresholdID, s.Thresholds[0].ID)
	assert.True(t, s.Settings.TrackExclusiveCumulativeSpend)
	assert.True(t, s.Settings.ApplyPointsToNegativeBalance)
	assertDecimal(t, "0", s.PointsBalance)
	assert.Empty(t, s.Error)
}

func TestUpdateSettings_OpeningBalances(t *testing.T) {
	// GIVEN: opening CS of $500 and 1,000 opening points
	// WHEN: spending $100 on the default 1x ladder
	// THEN: CS is 60000 and points are 1000 + 10000

	ts := newTestServer(t)
	cs := int64(50000)
	pts := "1000"
	rec := ts.do(http.MethodPut, "/api/session/settings", UpdateSettingsRequest{
		OpeningCumulativeSpend: &cs,
		OpeningPoints:          &pts,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	ts.addEvent("spend", 10000)

	s := ts.session()
	assert.Equal(t, int64(60000), s.CumulativeSpend)
	assert.Equal(t, int64(60000), s.ExclusiveCumulativeSpend)
	assertDecimal(t, "11000", s.PointsBalance)
}

func TestUpdateSettings_RejectsBadNumbers(t *testing.T) {
	ts := newTestServer(t)

	bad := "abc"
	rec := ts.do(http.MethodPut, "/api/session/settings", UpdateSettingsRequest{TaxRate: &bad})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	neg := "-0.5"
	rec = ts.do(http.MethodPut, "/api/session/settings", UpdateSettingsRequest{TaxRate: &neg})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Nothing was applied.
	assertDecimal(t, "0", ts.session().Settings.TaxRate)
}

func TestUpdateSettings_Flags(t *testing.T) {
	ts := newTestServer(t)
	off := false
	rec := ts.do(http.MethodPut, "/api/session/settings", UpdateSettingsRequest{ApplyPointsToNegativeBalance: &off})
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[SettingsDTO](t, rec)
	assert.False(t, got.ApplyPointsToNegativeBalance)
	assert.True(t, got.TrackExclusiveCumulativeSpend)
}

func TestResetSession(t *testing.T) {
	ts := newTestServer(t)
	ts.addThreshold(100000, "0.5")
	ts.addEvent("spend", 1000)

	rec := ts.do(http.MethodPost, "/api/session/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	s := decode[SessionDTO](t, rec)
	assert.Equal(t, 0, s.EventCount)
	assert.Len(t, s.Thresholds, 1)
}

// =============================================================================
// THRESHOLDS
// =============================================================================

func TestCreateThreshold_EmptyBodyStacksNext(t *testing.T) {
	ts := newTestServer(t)
	ts.addThreshold(250000, "0.5")

	rec := ts.do(http.MethodPost, "/api/thresholds", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	got := decode[ThresholdDTO](t, rec)
	assert.Equal(t, int64(350000), got.ActiveFrom)
	assertDecimal(t, "1", got.Multiplier)
	assert.NotEmpty(t, got.ID)
}

func TestCreateThreshold_Validation(t *testing.T) {
	ts := newTestServer(t)

	neg := int64(-1)
	rec := ts.do(http.MethodPost, "/api/thresholds", ThresholdRequest{ActiveFrom: &neg, Multiplier: "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	from := int64(100)
	rec = ts.do(http.MethodPost, "/api/thresholds", ThresholdRequest{ActiveFrom: &from, Multiplier: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/api/thresholds", ThresholdRequest{Multiplier: "2"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestThresholds_ListedLowestFirst(t *testing.T) {
	ts := newTestServer(t)
	ts.addThreshold(500000, "0.25")
	ts.addThreshold(100000, "0.5")

	rec := ts.do(http.MethodGet, "/api/thresholds", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[[]ThresholdDTO](t, rec)
	require.Len(t, got, 3)
	assert.Equal(t, int64(0), got[0].ActiveFrom)
	assert.True(t, got[0].IsBase)
	assert.Equal(t, int64(100000), got[1].ActiveFrom)
	assert.Equal(t, int64(500000), got[2].ActiveFrom)
}

func TestUpdateThreshold(t *testing.T) {
	// GIVEN: $1,500 spent on the default ladder
	// WHEN: the base multiplier is raised to 2
	// THEN: the replay doubles the points

	ts := newTestServer(t)
	ts.addEvent("spend", 150000)

	rec := ts.do(http.MethodPut, "/api/thresholds/"+accrual.BaseThresholdID, ThresholdRequest{Multiplier: "2"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[ThresholdDTO](t, rec)
	assert.Equal(t, int64(0), got.ActiveFrom)
	assertDecimal(t, "2", got.Multiplier)
	assertDecimal(t, "300000", ts.session().PointsBalance)

	rec = ts.do(http.MethodPut, "/api/thresholds/missing", ThresholdRequest{Multiplier: "2"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteThreshold_BaseMakesLadderUnusable(t *testing.T) {
	// GIVEN: a logged spend
	// WHEN: the base rung is removed
	// THEN: aggregates fail with 422 and no partial rows, the session
	//       summary reports the error

	ts := newTestServer(t)
	ts.addEvent("spend", 1000)

	rec := ts.do(http.MethodDelete, "/api/thresholds/"+accrual.BaseThresholdID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(http.MethodGet, "/api/aggregates", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errResp := decode[ErrorResponse](t, rec)
	assert.Contains(t, errResp.Details, accrual.ErrMissingBaseThreshold.Error())

	s := ts.session()
	assert.NotEmpty(t, s.Error)

	rec = ts.do(http.MethodDelete, "/api/thresholds/"+accrual.BaseThresholdID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDuplicateBreakpoint_Is422(t *testing.T) {
	ts := newTestServer(t)
	ts.addThreshold(100000, "0.5")
	ts.addThreshold(100000, "0.25")
	ts.addEvent("spend", 1000)

	rec := ts.do(http.MethodGet, "/api/aggregates", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// =============================================================================
// EVENTS AND AGGREGATES
// =============================================================================

func TestCreateEvent_Validation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/events", CreateEventRequest{Type: "bonus", Value: 100})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/api/events", CreateEventRequest{Type: "spend", Value: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/api/events", CreateEventRequest{Type: "refund", Value: -5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, 0, ts.session().EventCount)
}

func TestAggregates_TierCrossingWithColumns(t *testing.T) {
	// GIVEN: base 1x, 0.5x from 100000, tax 0.5
	// WHEN: spend 150000 then tax-spend 10000
	// THEN: per-tier columns 100000 / 25000, tax bucket 5000, ECS unchanged

	ts := newTestServer(t)
	tier := ts.addThreshold(100000, "0.5")
	rate := "0.5"
	require.Equal(t, http.StatusOK, ts.do(http.MethodPut, "/api/session/settings", UpdateSettingsRequest{TaxRate: &rate}).Code)

	ts.addEvent("spend", 150000)
	ts.addEvent("tax-spend", 10000)

	resp := ts.aggregates()
	require.Len(t, resp.Thresholds, 2)
	require.Len(t, resp.Aggregates, 2)

	spend := resp.Aggregates[0]
	assert.Equal(t, int64(150000), spend.CumulativeSpend)
	assertDecimal(t, "100000", spend.TierPoints[accrual.BaseThresholdID])
	assertDecimal(t, "25000", spend.TierPoints[tier.ID])
	assertDecimal(t, "125000", spend.EventPoints)
	_, hasTax := spend.TierPoints[accrual.TaxThresholdID]
	assert.False(t, hasTax)

	tax := resp.Aggregates[1]
	assert.Equal(t, int64(160000), tax.CumulativeSpend)
	assert.Equal(t, int64(150000), tax.ExclusiveCumulativeSpend)
	assert.Equal(t, int64(10000), tax.Divergence)
	assertDecimal(t, "5000", tax.TierPoints[accrual.TaxThresholdID])
	assertDecimal(t, "0", tax.TierPoints[accrual.BaseThresholdID])
	assertDecimal(t, "130000", tax.PointsBalance)
	require.Len(t, tax.CSSegments, 1)
	assert.Equal(t, accrual.TaxThresholdID, tax.CSSegments[0].ThresholdID)
}

func TestDeleteEvent_ReplaysWithoutIt(t *testing.T) {
	ts := newTestServer(t)
	first := ts.addEvent("spend", 20000)
	ts.addEvent("spend", 30000)

	rec := ts.do(http.MethodDelete, "/api/events/"+first.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	resp := ts.aggregates()
	require.Len(t, resp.Aggregates, 1)
	assert.Equal(t, int64(30000), resp.Aggregates[0].CumulativeSpend)

	rec = ts.do(http.MethodDelete, "/api/events/"+first.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClearEvents_KeepsLadder(t *testing.T) {
	ts := newTestServer(t)
	ts.addThreshold(100000, "0.5")
	ts.addEvent("spend", 20000)

	rec := ts.do(http.MethodDelete, "/api/events", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(http.MethodGet, "/api/events", nil)
	assert.Empty(t, decode[[]EventDTO](t, rec))
	assert.Len(t, ts.session().Thresholds, 2)
}

// =============================================================================
// CARDS
// =============================================================================

func TestListCards_Seeded(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/cards", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var cards []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cards))
	assert.Len(t, cards, len(presets.Builtins()))
}

func TestApplyCard_KeepsEventLog(t *testing.T) {
	// GIVEN: a $3,000 spend on the default ladder
	// WHEN: applying ARTA (1.5x, 0.5x from $2,000)
	// THEN: the replay gives 200000*1.5 + 100000*0.5 = 350000

	ts := newTestServer(t)
	ts.addEvent("spend", 300000)

	rec := ts.do(http.MethodPost, "/api/cards/"+presets.ARTAID+"/apply", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	s := decode[SessionDTO](t, rec)
	assert.Equal(t, 1, s.EventCount)
	assert.Len(t, s.Thresholds, 2)
	assertDecimal(t, "350000", s.PointsBalance)

	rec = ts.do(http.MethodPost, "/api/cards/nope/apply", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateCard(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/cards", map[string]any{
		"name":     "Staff Card",
		"tax_rate": "0.25",
		"thresholds": []map[string]any{
			{"active_from": 0, "multiplier": "3"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodPost, "/api/cards/staff-card/apply", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	s := decode[SessionDTO](t, rec)
	assertDecimal(t, "0.25", s.Settings.TaxRate)
	assertDecimal(t, "3", s.Thresholds[0].Multiplier)
}

func TestCreateCard_Errors(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/cards", map[string]any{
		"name":       "No Base",
		"thresholds": []map[string]any{{"active_from": 100, "multiplier": 1}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(http.MethodPost, "/api/cards", map[string]any{"name": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
