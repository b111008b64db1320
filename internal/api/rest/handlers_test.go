package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/iplstats/internal/dataset"
	"github.com/fortuna/iplstats/internal/matches"
	"github.com/fortuna/iplstats/internal/service"
	"github.com/fortuna/iplstats/internal/store"
	"github.com/fortuna/iplstats/internal/teams"
)

type fakeProvider struct {
	mu   sync.Mutex
	snap *store.Snapshot
	err  error
}

func (p *fakeProvider) Snapshot(ctx context.Context) (*store.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap, p.err
}

func (p *fakeProvider) Current() *store.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

func (p *fakeProvider) Source() string { return "csv:testdata" }

func (p *fakeProvider) load(fingerprint string, deliveries ...dataset.Delivery) {
	result := matches.Derive(&dataset.Table{Deliveries: deliveries})
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap = &store.Snapshot{
		Fingerprint: fingerprint,
		Source:      "csv:testdata",
		LoadedAt:    time.Now(),
		Deliveries:  len(deliveries),
		Matches:     result.Matches,
		Teams:       result.Teams,
		Stats:       result.Stats,
	}
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	getErr  error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	body, ok := c.entries[key]
	return body, ok, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = body
	return nil
}

type pinger struct{ err error }

func (p pinger) HealthCheck(ctx context.Context) error { return p.err }

func ball(matchID, a, b, won string) []dataset.Delivery {
	return []dataset.Delivery{
		{MatchID: matchID, BattingTeam: a, BowlingTeam: b, MatchWonBy: won},
		{MatchID: matchID, BattingTeam: b, BowlingTeam: a, MatchWonBy: won},
	}
}

func seasonDeliveries() []dataset.Delivery {
	var out []dataset.Delivery
	out = append(out, ball("1", "Chennai Super Kings", "Mumbai Indians", "Chennai Super Kings")...)
	out = append(out, ball("2", "Mumbai Indians", "Chennai Super Kings", "Mumbai Indians")...)
	out = append(out, ball("3", "Delhi Daredevils", "Mumbai Indians", "")...)
	out = append(out, ball("4", "Delhi Capitals", "Chennai Super Kings", "Delhi Capitals")...)
	return out
}

func newTestServer(t *testing.T, provider *fakeProvider, deps Dependencies) http.Handler {
	t.Helper()

	dir, err := teams.NewDirectory(nil)
	require.NoError(t, err)

	deps.Stats = service.NewStatsService(provider, dir)
	if deps.Dataset == nil {
		deps.Dataset = provider
	}
	return NewServer("0", deps).Handler()
}

func get(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	var body map[string]interface{}
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestTeamVsTeam(t *testing.T) {
	provider := &fakeProvider{}
	provider.load("v1", seasonDeliveries()...)
	h := newTestServer(t, provider, Dependencies{})

	rec, body := get(t, h, "/api/teamvteam?team1=CSK&team2=MI")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.EqualValues(t, 2, body["total_matches"])
	assert.EqualValues(t, 1, body["team1_wins"])
	assert.EqualValues(t, 1, body["team2_wins"])
	assert.Equal(t, map[string]interface{}{"CSK": float64(1), "MI": float64(1)}, body["wins"])
}

func TestMissingParametersReturn400(t *testing.T) {
	provider := &fakeProvider{}
	provider.load("v1", seasonDeliveries()...)
	h := newTestServer(t, provider, Dependencies{})

	for _, target := range []string{
		"/api/teamvteam?team2=MI",
		"/api/teamvteam?team1=CSK&team2=",
		"/api/team-record",
		"/api/batting-record?team=%20",
		"/api/bowling-record",
	} {
		rec, body := get(t, h, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Equal(t, "Invalid request", body["error"], target)
		assert.EqualValues(t, http.StatusBadRequest, body["status"], target)
		assert.Contains(t, body["details"], "missing required parameter", target)
	}
}

func TestMissingDatasetReturns503(t *testing.T) {
	provider := &fakeProvider{err: dataset.ErrDataNotFound}
	h := newTestServer(t, provider, Dependencies{Cache: newMemoryCache()})

	rec, body := get(t, h, "/api/teams")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "Dataset unavailable", body["error"])

	rec, _ = get(t, h, "/api/team-record?team=CSK")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, _ = get(t, h, "/api/teamvteam?team1=CSK")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "argument errors win over dataset errors")
}

func TestMalformedDatasetReturns500(t *testing.T) {
	provider := &fakeProvider{err: errors.Join(dataset.ErrDataFormat, errors.New("missing required column(s): winner"))}
	h := newTestServer(t, provider, Dependencies{})

	rec, body := get(t, h, "/api/team-record?team=CSK")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to compute team record", body["error"])
}

func TestTeamRecordRoutes(t *testing.T) {
	provider := &fakeProvider{}
	provider.load("v1", seasonDeliveries()...)
	h := newTestServer(t, provider, Dependencies{})

	rec, body := get(t, h, "/api/team-record?team=DC")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["matches_played"])
	assert.EqualValues(t, 1, body["won"])
	assert.EqualValues(t, 1, body["no_result"])
	against := body["against"].(map[string]interface{})
	assert.Contains(t, against, "Mumbai Indians")
	assert.Contains(t, against, "Chennai Super Kings")

	rec, body = get(t, h, "/api/bowling-record?team=CSK")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, body["matches_played"])
	assert.EqualValues(t, 1, body["successfully_defended"])
	assert.EqualValues(t, 2, body["failed_defense"])
	assert.Equal(t, service.OutcomeNote, body["note"])

	rec, body = get(t, h, "/api/batting-record?team=ZZZ")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, body["matches_played"])
}

func TestTeamsMatchesAndAliases(t *testing.T) {
	provider := &fakeProvider{}
	provider.load("v1", seasonDeliveries()...)
	h := newTestServer(t, provider, Dependencies{})

	rec, body := get(t, h, "/api/teams")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 4, body["total_teams"])

	for _, target := range []string{"/api/matches?limit=2", "/matches?limit=2"} {
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusOK, rec.Code, target)

		var list []matches.Match
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		require.Len(t, list, 2)
		assert.Equal(t, "1", list[0].MatchID)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/matches?limit=abc", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 4)
	assert.Nil(t, list[2]["winner"], "no-result is a JSON null")

	rec, body = get(t, h, "/api/aliases")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{"Delhi Daredevils", "Delhi Capitals"}, body["DC"])
}

func TestResponseCache(t *testing.T) {
	provider := &fakeProvider{}
	provider.load("v1", seasonDeliveries()...)
	responses := newMemoryCache()
	h := newTestServer(t, provider, Dependencies{Cache: responses})

	first, body := get(t, h, "/api/team-record?team=MI")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	assert.EqualValues(t, 3, body["matches_played"])

	second, _ := get(t, h, "/api/team-record?team=MI")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())

	// a reloaded dataset is never answered from the old entry
	provider.load("v2", append(seasonDeliveries(), ball("5", "Mumbai Indians", "Gujarat Titans", "Mumbai Indians")...)...)
	third, body := get(t, h, "/api/team-record?team=MI")
	assert.Equal(t, "MISS", third.Header().Get("X-Cache"))
	assert.EqualValues(t, 4, body["matches_played"])

	bad, _ := get(t, h, "/api/team-record")
	assert.Equal(t, http.StatusBadRequest, bad.Code)
	assert.Len(t, responses.entries, 2, "errors are not cached")
}

func TestResponseCacheFailureFallsBackToCompute(t *testing.T) {
	provider := &fakeProvider{}
	provider.load("v1", seasonDeliveries()...)
	responses := newMemoryCache()
	responses.getErr = errors.New("redis: connection refused")
	h := newTestServer(t, provider, Dependencies{Cache: responses})

	rec, body := get(t, h, "/api/teams")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 4, body["total_teams"])
}

func TestHealthCheck(t *testing.T) {
	provider := &fakeProvider{}
	provider.load("v1", seasonDeliveries()...)
	h := newTestServer(t, provider, Dependencies{Redis: pinger{}, Version: "1.0.0"})

	rec, body := get(t, h, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "1.0.0", body["version"])
	assert.Equal(t, "connected", body["redis"])

	summary := body["dataset"].(map[string]interface{})
	assert.Equal(t, true, summary["loaded"])
	assert.Equal(t, "v1", summary["fingerprint"])
	assert.EqualValues(t, 4, summary["matches"])

	h = newTestServer(t, provider, Dependencies{Redis: pinger{err: errors.New("dial tcp: refused")}})
	_, body = get(t, h, "/health")
	assert.Equal(t, "degraded", body["status"])
}

func TestCORSPreflight(t *testing.T) {
	provider := &fakeProvider{}
	provider.load("v1", seasonDeliveries()...)
	h := newTestServer(t, provider, Dependencies{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/teams", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "boom", body["details"])
}
