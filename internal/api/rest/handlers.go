package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/fortuna/iplstats/internal/cache"
	"github.com/fortuna/iplstats/internal/dataset"
	"github.com/fortuna/iplstats/internal/service"
	"github.com/fortuna/iplstats/internal/store"
)

// ResponseCache stores rendered response bodies. Misses report ok=false.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, body []byte) error
}

// DatasetStatus exposes the loaded match table for the health endpoint
type DatasetStatus interface {
	Source() string
	Current() *store.Snapshot
}

// SchedulerStatus exposes the refresh scheduler state
type SchedulerStatus interface {
	Status() map[string]interface{}
}

// HealthChecker pings a backing service
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies wires the handler. Only Stats is required.
type Dependencies struct {
	Stats     *service.StatsService
	Dataset   DatasetStatus
	Cache     ResponseCache
	Scheduler SchedulerStatus
	Redis     HealthChecker
	Version   string
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	stats     *service.StatsService
	dataset   DatasetStatus
	cache     ResponseCache
	scheduler SchedulerStatus
	redis     HealthChecker
	version   string
}

// NewHandler creates a new handler
func NewHandler(deps Dependencies) *Handler {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	return &Handler{
		stats:     deps.Stats,
		dataset:   deps.Dataset,
		cache:     deps.Cache,
		scheduler: deps.Scheduler,
		redis:     deps.Redis,
		version:   version,
	}
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"service": "iplstats",
		"version": h.version,
	}

	if h.dataset != nil {
		summary := map[string]interface{}{
			"source": h.dataset.Source(),
			"loaded": false,
		}
		if snap := h.dataset.Current(); snap != nil {
			summary["loaded"] = true
			summary["fingerprint"] = snap.Fingerprint
			summary["loaded_at"] = snap.LoadedAt
			summary["deliveries"] = snap.Deliveries
			summary["matches"] = len(snap.Matches)
			summary["teams"] = len(snap.Teams)
			summary["dropped_matches"] = snap.Stats.Dropped()
		}
		response["dataset"] = summary
	}

	if h.scheduler != nil {
		status := h.scheduler.Status()
		if _, failing := status["last_error"]; failing {
			response["status"] = "degraded"
		}
		response["scheduler"] = status
	}

	response["redis"] = "disabled"
	if h.redis != nil {
		if err := h.redis.HealthCheck(r.Context()); err != nil {
			response["redis"] = "unreachable: " + err.Error()
			response["status"] = "degraded"
		} else {
			response["redis"] = "connected"
		}
	}

	respondJSON(w, http.StatusOK, response)
}

// GetTeams returns every raw team spelling in the dataset
func (h *Handler) GetTeams(w http.ResponseWriter, r *http.Request) {
	h.serveCached(w, r, "teams", "Failed to fetch teams", func(ctx context.Context) (interface{}, error) {
		return h.stats.Teams(ctx)
	})
}

// GetMatches returns the first canonical matches in dataset order
func (h *Handler) GetMatches(w http.ResponseWriter, r *http.Request) {
	limit := 0 // service default
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	h.serveCached(w, r, "matches", "Failed to fetch matches", func(ctx context.Context) (interface{}, error) {
		return h.stats.Matches(ctx, limit)
	})
}

// GetAliases returns the franchise code table
func (h *Handler) GetAliases(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.stats.Aliases())
}

// GetTeamVsTeam returns the head-to-head record of team1 and team2
func (h *Handler) GetTeamVsTeam(w http.ResponseWriter, r *http.Request) {
	team1 := r.URL.Query().Get("team1")
	team2 := r.URL.Query().Get("team2")

	h.serveCached(w, r, "teamvteam", "Failed to compute head-to-head record", func(ctx context.Context) (interface{}, error) {
		return h.stats.HeadToHead(ctx, team1, team2)
	})
}

// GetTeamRecord returns a team's overall and per-opponent record
func (h *Handler) GetTeamRecord(w http.ResponseWriter, r *http.Request) {
	team := r.URL.Query().Get("team")

	h.serveCached(w, r, "team-record", "Failed to compute team record", func(ctx context.Context) (interface{}, error) {
		return h.stats.TeamRecord(ctx, team)
	})
}

// GetBattingRecord returns a team's match outcomes under batting labels
func (h *Handler) GetBattingRecord(w http.ResponseWriter, r *http.Request) {
	team := r.URL.Query().Get("team")

	h.serveCached(w, r, "batting-record", "Failed to compute batting record", func(ctx context.Context) (interface{}, error) {
		return h.stats.BattingRecord(ctx, team)
	})
}

// GetBowlingRecord returns a team's match outcomes under bowling labels
func (h *Handler) GetBowlingRecord(w http.ResponseWriter, r *http.Request) {
	team := r.URL.Query().Get("team")

	h.serveCached(w, r, "bowling-record", "Failed to compute bowling record", func(ctx context.Context) (interface{}, error) {
		return h.stats.BowlingRecord(ctx, team)
	})
}

// serveCached answers from the response cache when the dataset fingerprint
// still matches, otherwise computes the answer and stores it.
func (h *Handler) serveCached(w http.ResponseWriter, r *http.Request, route, failure string, compute func(context.Context) (interface{}, error)) {
	ctx := r.Context()

	if h.cache == nil {
		h.serveComputed(ctx, w, failure, "", compute)
		return
	}

	fingerprint, err := h.stats.Version(ctx)
	if err != nil {
		// compute reports argument errors ahead of dataset errors
		h.serveComputed(ctx, w, failure, "", compute)
		return
	}

	key := cache.Key(fingerprint, route, r.URL.Query())
	body, ok, err := h.cache.Get(ctx, key)
	if err != nil {
		log.WithError(err).WithField("key", key).Warn("response cache read failed")
	}
	if ok {
		w.Header().Set("X-Cache", "HIT")
		respondBody(w, http.StatusOK, body)
		return
	}

	w.Header().Set("X-Cache", "MISS")
	h.serveComputed(ctx, w, failure, key, compute)
}

func (h *Handler) serveComputed(ctx context.Context, w http.ResponseWriter, failure, key string, compute func(context.Context) (interface{}, error)) {
	result, err := compute(ctx)
	if err != nil {
		respondQueryError(w, failure, err)
		return
	}

	body, err := json.Marshal(result)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to encode response", err)
		return
	}
	body = append(body, '\n')

	if key != "" {
		if err := h.cache.Set(ctx, key, body); err != nil {
			log.WithError(err).WithField("key", key).Warn("response cache write failed")
		}
	}

	respondBody(w, http.StatusOK, body)
}

// respondQueryError maps query errors onto HTTP statuses
func respondQueryError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		respondError(w, http.StatusBadRequest, "Invalid request", err)
	case errors.Is(err, dataset.ErrDataNotFound):
		respondError(w, http.StatusServiceUnavailable, "Dataset unavailable", err)
	default:
		respondError(w, http.StatusInternalServerError, message, err)
	}
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondBody writes an already encoded JSON body
func respondBody(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}

	if err != nil {
		response["details"] = err.Error()
	}

	json.NewEncoder(w).Encode(response)
}
