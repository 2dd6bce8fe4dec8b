package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/catalog"
	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/player-catalog/pkg/models"
)

const (
	// DefaultSearchLimit caps remote search results
	DefaultSearchLimit = 20

	// Longest a load request with wait=true blocks
	loadWaitTimeout = 25 * time.Second

	maxResolveRefs = 500
)

// Catalog is the player catalog the handlers serve
type Catalog interface {
	Initialize(sport models.Sport) *catalog.Load
	State(sport models.Sport) models.LoadState
	Statuses() []models.SportStatus
	GetByID(id string, hint models.Sport) (models.PlayerRecord, bool)
	GetAll(sport models.Sport) []models.PlayerRecord
	Search(query string, sport models.Sport) []models.PlayerRecord
	PhotoURLs(sport models.Sport, names []string) map[string]string
	Resolve(refs []models.PlayerRef) models.ResolveResult
}

// SearchCache stores remote search result pages
type SearchCache interface {
	Get(ctx context.Context, sport models.Sport, query string, limit int) ([]models.PlayerRecord, bool, error)
	Set(ctx context.Context, sport models.Sport, query string, limit int, results []models.PlayerRecord) error
	Ping(ctx context.Context) error
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	catalog     Catalog
	cache       SearchCache
	metrics     *metrics.Metrics
	logger      *zap.Logger
	searchLimit int
}

// NewHandler creates a new handler with dependencies.
// cache and m may be nil; searchLimit <= 0 uses DefaultSearchLimit.
func NewHandler(c Catalog, cache SearchCache, m *metrics.Metrics, logger *zap.Logger, searchLimit int) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if searchLimit <= 0 {
		searchLimit = DefaultSearchLimit
	}
	return &Handler{
		catalog:     c,
		cache:       cache,
		metrics:     m,
		logger:      logger,
		searchLimit: searchLimit,
	}
}

// HealthCheck returns the health status of the service
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	// Check Redis connectivity when the search cache is enabled
	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			h.respondError(w, http.StatusServiceUnavailable, "redis unhealthy", err)
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "player-catalog",
		"sports":    h.catalog.Statuses(),
	})
}

// ListSports returns every served sport and its load state
func (h *Handler) ListSports(w http.ResponseWriter, r *http.Request) {
	statuses := h.catalog.Statuses()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"sports": statuses,
		"count":  len(statuses),
	})
}

// LoadSport starts loading a sport's data set
// Query params: wait (block until the load finishes)
func (h *Handler) LoadSport(w http.ResponseWriter, r *http.Request) {
	sport, ok := models.ParseSport(chi.URLParam(r, "sport"))
	if !ok {
		h.respondError(w, http.StatusNotFound, "unknown sport", nil)
		return
	}

	load := h.catalog.Initialize(sport)
	if errors.Is(load.Err(), catalog.ErrUnknownSport) {
		h.respondError(w, http.StatusNotFound, "sport is not served", nil)
		return
	}

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		ctx, cancel := context.WithTimeout(r.Context(), loadWaitTimeout)
		defer cancel()

		err := load.Wait(ctx)
		switch {
		case err == nil:
			respondJSON(w, http.StatusOK, h.loadResponse(sport))
			return
		case ctx.Err() != nil:
			// Still loading; report progress instead of failing
		default:
			h.respondError(w, http.StatusInternalServerError, "failed to load sport: "+err.Error(), err)
			return
		}
	}

	respondJSON(w, http.StatusAccepted, h.loadResponse(sport))
}

func (h *Handler) loadResponse(sport models.Sport) map[string]interface{} {
	return map[string]interface{}{
		"sport": sport,
		"state": h.catalog.State(sport),
	}
}

// GetPlayers returns a sport's loaded records, or every loaded record
// Query params: sport
func (h *Handler) GetPlayers(w http.ResponseWriter, r *http.Request) {
	sport, ok := optionalSport(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "unknown sport", nil)
		return
	}

	players := h.catalog.GetAll(sport)
	resp := map[string]interface{}{
		"players": players,
		"count":   len(players),
	}
	if sport != "" {
		resp["sport"] = sport
		resp["state"] = h.catalog.State(sport)
	}
	respondJSON(w, http.StatusOK, resp)
}

// SearchPlayers is the remote search endpoint. The body is a bare JSON array.
// Query params: q, sport (default NBA), limit (may only lower the cap)
func (h *Handler) SearchPlayers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sport, ok := sportOrDefault(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "unknown sport", nil)
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		respondJSON(w, http.StatusOK, []models.PlayerRecord{})
		return
	}

	limit := parseIntParam(r, "limit", h.searchLimit)
	if limit <= 0 || limit > h.searchLimit {
		limit = h.searchLimit
	}

	// Only pages for loaded sports are stable enough to cache
	cacheable := h.cache != nil && h.catalog.State(sport) == models.StateLoaded

	if cacheable {
		cached, hit, err := h.cache.Get(ctx, sport, query, limit)
		switch {
		case err != nil:
			h.countCache("error")
			h.logger.Warn("search cache read failed", zap.Error(err))
		case hit:
			h.countCache("hit")
			if h.metrics != nil {
				h.metrics.IncrementSearches(sport, "cache")
			}
			respondJSON(w, http.StatusOK, cached)
			return
		default:
			h.countCache("miss")
		}
	}

	results := h.catalog.Search(query, sport)
	if len(results) > limit {
		results = results[:limit]
	}

	if cacheable {
		if err := h.cache.Set(ctx, sport, query, limit, results); err != nil {
			h.logger.Warn("search cache write failed", zap.Error(err))
		}
	}

	respondJSON(w, http.StatusOK, results)
}

func (h *Handler) countCache(result string) {
	if h.metrics != nil {
		h.metrics.IncrementSearchCache(result)
	}
}

// GetPhotos maps player names to photo urls
// Query params: names (comma separated), sport (default NBA)
func (h *Handler) GetPhotos(w http.ResponseWriter, r *http.Request) {
	sport, ok := sportOrDefault(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "unknown sport", nil)
		return
	}

	var names []string
	for _, name := range strings.Split(r.URL.Query().Get("names"), ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}

	respondJSON(w, http.StatusOK, h.catalog.PhotoURLs(sport, names))
}

type resolveRequest struct {
	Refs []models.PlayerRef `json:"refs"`
}

// ResolvePlayers looks up persisted player references
func (h *Handler) ResolvePlayers(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if len(req.Refs) > maxResolveRefs {
		h.respondError(w, http.StatusBadRequest, "too many refs (max "+strconv.Itoa(maxResolveRefs)+")", nil)
		return
	}

	// Sport hints are case-insensitive on the wire
	for i, ref := range req.Refs {
		if sport, ok := models.ParseSport(string(ref.Sport)); ok {
			req.Refs[i].Sport = sport
		}
	}

	respondJSON(w, http.StatusOK, h.catalog.Resolve(req.Refs))
}

// GetPlayer resolves a bare id or composite key
// Query params: sport (optional hint)
func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sport, ok := optionalSport(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "unknown sport", nil)
		return
	}

	player, found := h.catalog.GetByID(id, sport)
	if !found {
		h.respondError(w, http.StatusNotFound, "player not found", nil)
		return
	}

	respondJSON(w, http.StatusOK, player)
}

// optionalSport parses the sport query param; empty is allowed
func optionalSport(r *http.Request) (models.Sport, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("sport"))
	if raw == "" {
		return "", true
	}
	return models.ParseSport(raw)
}

// sportOrDefault parses the sport query param, defaulting to NBA
func sportOrDefault(r *http.Request) (models.Sport, bool) {
	sport, ok := optionalSport(r)
	if ok && sport == "" {
		return models.SportNBA, true
	}
	return sport, ok
}

func parseIntParam(r *http.Request, param string, defaultValue int) int {
	valueStr := r.URL.Query().Get(param)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	// Headers are already sent; nothing useful left to report
	_ = json.NewEncoder(w).Encode(data)
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errResp := models.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	}

	if err != nil {
		h.logger.Warn(message, zap.Int("status", status), zap.Error(err))
	}

	if err := json.NewEncoder(w).Encode(errResp); err != nil {
		h.logger.Error("error encoding error response", zap.Error(err))
	}
}
