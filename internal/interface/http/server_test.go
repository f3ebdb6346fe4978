package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/metrocollab/grouper/internal/application/command"
	"github.com/metrocollab/grouper/internal/application/query"
	"github.com/metrocollab/grouper/internal/domain/grouping"
	"github.com/metrocollab/grouper/internal/domain/roster"
	"github.com/metrocollab/grouper/internal/domain/shared"
	"github.com/metrocollab/grouper/internal/infrastructure/metrics"
	"github.com/metrocollab/grouper/internal/interface/http/handlers"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ══════════════════════════════════════════════════════════════════════════════
// FIXTURES
// ══════════════════════════════════════════════════════════════════════════════

type memRepo struct {
	classes map[string]*roster.Roster
	groups  map[string]map[int][]string
}

func (m *memRepo) GetRoster(_ context.Context, code string) (*roster.Roster, error) {
	c, ok := m.classes[code]
	if !ok {
		return nil, shared.ErrRosterNotFound
	}
	return c, nil
}

func (m *memRepo) SaveGroups(_ context.Context, code string, groups map[int][]string) error {
	m.groups[code] = groups
	return nil
}

func (m *memRepo) GetGroups(_ context.Context, code string) ([]roster.GroupMember, error) {
	c, ok := m.classes[code]
	if !ok {
		return nil, shared.ErrRosterNotFound
	}
	number := make(map[string]int)
	for g, ids := range m.groups[code] {
		for _, id := range ids {
			number[id] = g
		}
	}
	members := make([]roster.GroupMember, 0, len(c.Students))
	for _, s := range c.Students {
		members = append(members, roster.GroupMember{StudentID: s.ID, FirstName: "Student", LastName: s.ID, GroupNumber: number[s.ID]})
	}
	return members, nil
}

func records(n int) []roster.StudentRecord {
	out := make([]roster.StudentRecord, n)
	for i := range out {
		out[i] = roster.StudentRecord{
			ID:           fmt.Sprintf("%d", i+1),
			Skills:       []string{"go"},
			Interests:    []string{fmt.Sprintf("topic-%d", i%3)},
			Availability: roster.Availability{roster.DayFriday: {roster.PeriodEvening}},
			HoursBucket:  roster.Hours10To15,
		}
	}
	return out
}

type failingCheck struct{}

func (failingCheck) Ping(context.Context) error { return errors.New("connection refused") }

func newTestServer(t *testing.T) (*Server, *memRepo) {
	t.Helper()

	repo := &memRepo{
		classes: map[string]*roster.Roster{
			"FULL":    {Code: "FULL", TotalStudents: 10, MinSize: 2, MaxSize: 3, Students: records(10)},
			"PARTIAL": {Code: "PARTIAL", TotalStudents: 8, MinSize: 2, MaxSize: 3, Students: records(5)},
		},
		groups: map[string]map[int][]string{},
	}

	reg := prometheus.NewRegistry()
	sorter := grouping.NewSorter(grouping.NewEncoder(nil),
		grouping.WithSeeder(grouping.NewKMeansSeeder(grouping.WithRestarts(2))),
		grouping.WithMetrics(metrics.NewPrometheus(reg, "")),
	)

	cfg := DefaultConfig()
	cfg.MaxBodyBytes = 64 << 10

	srv := NewServer(cfg, Dependencies{
		SortRosterHandler:     command.NewSortRosterHandler(sorter, nil, nil),
		GenerateGroupsHandler: command.NewGenerateGroupsHandler(repo, sorter, command.GenerateGroupsHandlerConfig{}),
		GetGroupsHandler:      query.NewGetGroupsHandler(repo),
		PreviewPlanHandler:    query.NewPreviewPlanHandler(),
		MetricsHandler:        metrics.Handler(reg),
	})
	return srv, repo
}

func do(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, JSONResponse) {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))

	var resp JSONResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func decodeData[T any](t *testing.T, resp JSONResponse) T {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestSortRoster(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, resp := do(t, srv.Handler(), http.MethodPost, "/api/v1/groupings", SortRequest{
		MinSize: 2, MaxSize: 3, Students: records(10),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, resp.Success)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	res := decodeData[grouping.Result](t, resp)
	assert.Len(t, res.Assignment, 10)
	assert.ElementsMatch(t, []int{3, 3, 2, 2}, res.GroupSizes())
	assert.Equal(t, grouping.StrategyGreedy, res.Strategy)
}

func TestSortRoster_NormalizesTags(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"min_size":1,"max_size":2,"students":[
		{"id":"a","skills":["Go"],"interests":[" AI "],"availability":{"mon":["morning"]},"hours_per_week":"5-10"},
		{"id":"b","skills":["go"],"interests":["ai"],"availability":{},"hours_per_week":"20+"}]}`
	rec, resp := do(t, srv.Handler(), http.MethodPost, "/api/v1/groupings", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decodeData[grouping.Result](t, resp)
	assert.Equal(t, 1, res.Plan.GroupCount)
	assert.Equal(t, map[int][]string{1: {"a", "b"}}, res.Groups)
}

func TestSortRoster_Errors(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"invalid bounds", SortRequest{MinSize: 4, MaxSize: 2, Students: records(5)}, http.StatusUnprocessableEntity, "invalid_configuration"},
		{"empty roster", SortRequest{MinSize: 2, MaxSize: 3}, http.StatusUnprocessableEntity, "invalid_configuration"},
		{"unknown day", `{"min_size":1,"max_size":2,"students":[{"id":"x","availability":{"sun":["morning"]}}]}`, http.StatusBadRequest, "malformed_record"},
		{"duplicate id", `{"min_size":1,"max_size":2,"students":[{"id":"x"},{"id":"x"}]}`, http.StatusBadRequest, "malformed_record"},
		{"numeric hours", `{"min_size":1,"max_size":2,"students":[{"id":"x","hours_per_week":10}]}`, http.StatusBadRequest, "malformed_record"},
		{"skills not a list", `{"min_size":1,"max_size":2,"students":[{"id":"x","skills":"go"}]}`, http.StatusBadRequest, "malformed_record"},
		{"bounds not numbers", `{"min_size":"2","max_size":3,"students":[{"id":"x"}]}`, http.StatusBadRequest, "invalid_json"},
		{"bad json", `{"min_size":`, http.StatusBadRequest, "invalid_json"},
		{"empty body", "", http.StatusBadRequest, "invalid_json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := do(t, srv.Handler(), http.MethodPost, "/api/v1/groupings", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestSortRoster_WrongFieldTypeNamesField(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, resp := do(t, srv.Handler(), http.MethodPost, "/api/v1/groupings",
		`{"min_size":1,"max_size":2,"students":[{"id":"x","hours_per_week":10}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "malformed_record", resp.Error.Code)
	assert.Equal(t, "hours_per_week: expected string, got number", resp.Error.Details)
}

func TestSortRoster_BodyTooLarge(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, _ := do(t, srv.Handler(), http.MethodPost, "/api/v1/groupings", SortRequest{
		MinSize: 2, MaxSize: 3, Students: records(2000),
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestPreviewPlan(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, resp := do(t, srv.Handler(), http.MethodPost, "/api/v1/plans", query.PreviewPlanQuery{Students: 10, MinSize: 2, MaxSize: 3})
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeData[query.PlanView](t, resp)
	assert.Equal(t, []int{3, 3, 2, 2}, view.Sizes)

	rec, resp = do(t, srv.Handler(), http.MethodPost, "/api/v1/plans", query.PreviewPlanQuery{Students: 10, MinSize: 0, MaxSize: 3})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_configuration", resp.Error.Code)
}

func TestGenerateAndGetGroups(t *testing.T) {
	srv, repo := newTestServer(t)

	rec, resp := do(t, srv.Handler(), http.MethodPost, "/api/v1/classes/FULL/groupings", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	gen := decodeData[GenerateResponse](t, resp)
	assert.Equal(t, "FULL", gen.Code)
	assert.Equal(t, 10, gen.Submitted)
	require.Contains(t, repo.groups, "FULL")

	rec, resp = do(t, srv.Handler(), http.MethodGet, "/api/v1/classes/FULL/groups", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeData[query.GroupsView](t, resp)
	assert.Len(t, view.Groups, 4)
	assert.Empty(t, view.Unassigned)

	total := 0
	for _, g := range view.Groups {
		total += len(g.Members)
	}
	assert.Equal(t, 10, total)
}

func TestGenerateGroups_Errors(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, resp := do(t, srv.Handler(), http.MethodPost, "/api/v1/classes/PARTIAL/groupings", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "roster_incomplete", resp.Error.Code)

	rec, _ = do(t, srv.Handler(), http.MethodPost, "/api/v1/classes/PARTIAL/groupings?force=true", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp = do(t, srv.Handler(), http.MethodPost, "/api/v1/classes/NOPE/groupings", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", resp.Error.Code)

	rec, _ = do(t, srv.Handler(), http.MethodGet, "/api/v1/classes/NOPE/groups", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotConfigured(t *testing.T) {
	srv := NewServer(DefaultConfig(), Dependencies{})

	rec, _ := do(t, srv.Handler(), http.MethodGet, "/api/v1/classes/FULL/groups", nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	rec, _ = do(t, srv.Handler(), http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	checker := handlers.NewCompositeHealthChecker("test")
	checker.AddOptionalCheck("cache", handlers.NewPingCheck(failingCheck{}))
	srv := NewServer(DefaultConfig(), Dependencies{HealthChecker: checker})

	rec, resp := do(t, srv.Handler(), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeData[handlers.HealthStatus](t, resp)
	assert.True(t, status.Healthy)
	assert.False(t, status.Checks["cache"].Healthy)

	checker.AddCheck("database", handlers.NewPingCheck(failingCheck{}))
	rec, _ = do(t, srv.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, _ = do(t, srv.Handler(), http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, _ = do(t, srv.Handler(), http.MethodGet, "/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, _ := do(t, srv.Handler(), http.MethodPost, "/api/v1/groupings", SortRequest{MinSize: 2, MaxSize: 3, Students: records(6)})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, srv.Handler(), http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `grouper_grouping_runs_total{strategy="greedy"} 1`)
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{shared.ErrEmptyRoster, http.StatusUnprocessableEntity},
		{roster.MalformedRecordError("7", errors.New("bad")), http.StatusBadRequest},
		{shared.ErrEmptyClassCode, http.StatusBadRequest},
		{shared.ErrRosterNotFound, http.StatusNotFound},
		{shared.ErrRosterIncomplete, http.StatusConflict},
		{shared.ErrGenerationLocked, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := errorStatus(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}
