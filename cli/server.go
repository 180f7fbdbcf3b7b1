package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rental-digest/models"
	"rental-digest/services"
	"rental-digest/utils"
)

// pinger is satisfied by every storage backend.
type pinger interface {
	Ping(ctx context.Context) error
}

// server is the daemon's read-only HTTP surface.
type server struct {
	store         pinger
	listings      services.WindowQuerier
	gatherer      prometheus.Gatherer
	defaultWindow time.Duration
	now           func() time.Time
	logger        *utils.Logger
}

func (s *server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/api/listings/recent", s.handleRecent).Methods(http.MethodGet)
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("[http] Health check failed: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type listingJSON struct {
	ID            string  `json:"id"`
	Source        string  `json:"source"`
	Neighborhood  string  `json:"neighborhood"`
	Address       string  `json:"address"`
	Price         float64 `json:"price"`
	Area          string  `json:"area"`
	Rooms         int     `json:"rooms"`
	ParkingSpaces int     `json:"parking_spaces"`
	DetailURL     string  `json:"detail_url"`
	FirstSeenAt   string  `json:"first_seen_at"`
	LastUpdatedAt string  `json:"last_updated_at"`
}

// handleRecent lists what the next digest would contain, cheapest first.
// ?window= takes a Go duration such as 2h or 30m.
func (s *server) handleRecent(w http.ResponseWriter, r *http.Request) {
	window := s.defaultWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "window must be a positive duration"})
			return
		}
		window = d
	}

	since := s.now().UTC().Add(-window)
	found, err := s.listings.QueryWindow(r.Context(), since)
	if err != nil {
		s.logger.Error("[http] Window query failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].Price < found[j].Price })

	out := make([]listingJSON, 0, len(found))
	for _, l := range found {
		out = append(out, toListingJSON(l))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"since":    since.Format(models.TimestampLayout),
		"count":    len(out),
		"listings": out,
	})
}

func toListingJSON(l *models.Listing) listingJSON {
	return listingJSON{
		ID:            l.ID,
		Source:        l.Source,
		Neighborhood:  l.Neighborhood,
		Address:       l.Address,
		Price:         l.Price,
		Area:          l.Area,
		Rooms:         l.Rooms,
		ParkingSpaces: l.ParkingSpaces,
		DetailURL:     l.DetailURL,
		FirstSeenAt:   l.FirstSeenAt.UTC().Format(models.TimestampLayout),
		LastUpdatedAt: l.LastUpdatedAt.UTC().Format(models.TimestampLayout),
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
