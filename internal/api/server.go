// Package api serves the read surface: signal listings, per-object
// divergence and baseline lookups, a live websocket feed and the
// health and metrics endpoints. The API never writes; every mutation
// happens in the ingest, reconcile and maintenance passes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"orbitwatch/internal/domain"
	"orbitwatch/internal/observability"
	"orbitwatch/internal/storage"
)

const (
	defaultAddr            = ":8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second

	defaultListLimit = 100
	maxListLimit     = 500
)

// Options wire a Server. The three stores are required. Hub is
// optional; without one the stream route answers 503 and everything
// else still works, which is what the batch CLI subcommands want.
type Options struct {
	Addr            string
	CORSOrigins     []string // empty allows any origin
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	Signals    storage.SignalStore
	Divergence storage.DivergenceStore
	Baselines  storage.BaselineStore
	Hub        *Hub
	Logger     zerolog.Logger
}

// Server exposes stored signals, divergence verdicts and baselines
// over HTTP.
type Server struct {
	addr            string
	corsOrigins     []string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration

	signals    storage.SignalStore
	divergence storage.DivergenceStore
	baselines  storage.BaselineStore
	hub        *Hub
	logger     zerolog.Logger
}

// NewServer creates a Server from Options, applying defaults for the
// listen address and timeouts.
func NewServer(opts Options) *Server {
	addr := opts.Addr
	if addr == "" {
		addr = defaultAddr
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	return &Server{
		addr:            addr,
		corsOrigins:     opts.CORSOrigins,
		readTimeout:     readTimeout,
		writeTimeout:    writeTimeout,
		shutdownTimeout: shutdownTimeout,
		signals:         opts.Signals,
		divergence:      opts.Divergence,
		baselines:       opts.Baselines,
		hub:             opts.Hub,
		logger:          opts.Logger.With().Str("component", "api").Logger(),
	}
}

// Handler builds the routing surface. Exposed so tests can serve it
// through httptest; Run wires it into the real listener.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/signals", s.getSignals).Methods("GET")
	api.HandleFunc("/objects/{id:[0-9]+}/divergence", s.getObjectDivergence).Methods("GET")
	api.HandleFunc("/objects/{id:[0-9]+}/baselines", s.getObjectBaselines).Methods("GET")
	api.HandleFunc("/stream/signals", s.streamSignals).Methods("GET")
	api.HandleFunc("/healthz", s.getHealth).Methods("GET")

	router.Handle("/metrics", observability.Handler()).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         3600,
	})
	return c.Handler(router)
}

// Run serves until ctx is cancelled or the listener fails. The write
// timeout does not affect the stream route: the websocket upgrade
// hijacks the connection and clears its deadlines.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info().Str("addr", s.addr).Msg("api server listening")

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Hijacked stream connections are invisible to Shutdown; the hub
	// has to hang up on them itself.
	if s.hub != nil {
		s.hub.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	s.logger.Info().Msg("api server stopped")
	return nil
}

func (s *Server) getSignals(w http.ResponseWriter, r *http.Request) {
	filter, err := parseSignalFilter(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sigs, err := s.signals.List(r.Context(), filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("list signals")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	response := struct {
		Signals []signalView `json:"signals"`
		Count   int          `json:"count"`
	}{
		Signals: newSignalViews(sigs),
		Count:   len(sigs),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (s *Server) getObjectDivergence(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		http.Error(w, "invalid object id", http.StatusBadRequest)
		return
	}

	recs, err := s.divergence.ListForObject(r.Context(), id)
	if err != nil {
		s.logger.Error().Err(err).Int("object_id", id).Msg("list divergence")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	views := make([]divergenceView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, newDivergenceView(rec))
	}

	response := struct {
		ObjectID int              `json:"object_id"`
		Records  []divergenceView `json:"records"`
		Count    int              `json:"count"`
	}{
		ObjectID: id,
		Records:  views,
		Count:    len(views),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (s *Server) getObjectBaselines(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		http.Error(w, "invalid object id", http.StatusBadRequest)
		return
	}

	q := r.URL.Query()

	// Baselines are per provider stream; returning both sources in one
	// list would invite exactly the cross-provider mixing the engine is
	// built to avoid, so the caller has to pick.
	source := domain.Source(q.Get("source"))
	if !source.IsValid() {
		http.Error(w, "source is required: spacetrack or leolabs", http.StatusBadRequest)
		return
	}

	limit := defaultListLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, fmt.Sprintf("invalid limit %q", v), http.StatusBadRequest)
			return
		}
		if n > maxListLimit {
			n = maxListLimit
		}
		limit = n
	}

	var (
		views      []baselineView
		metricName string
	)
	if v := q.Get("metric"); v != "" {
		metric := domain.MetricType(v)
		if !metric.IsValid() {
			http.Error(w, fmt.Sprintf("invalid metric %q", v), http.StatusBadRequest)
			return
		}
		metricName = metric.String()

		history, err := s.baselines.History(r.Context(), id, metric, source, limit)
		if err != nil {
			s.logger.Error().Err(err).Int("object_id", id).Str("metric", metricName).Msg("baseline history")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		views = make([]baselineView, 0, len(history))
		for _, b := range history {
			views = append(views, newBaselineView(b))
		}
	} else {
		// No metric named: the current baseline of every metric the
		// stream has one for, in canonical metric order.
		views = make([]baselineView, 0, len(domain.AllMetricTypes))
		for _, metric := range domain.AllMetricTypes {
			b, err := s.baselines.Latest(r.Context(), id, metric, source)
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				s.logger.Error().Err(err).Int("object_id", id).Str("metric", metric.String()).Msg("baseline latest")
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			views = append(views, newBaselineView(b))
		}
	}

	response := struct {
		ObjectID  int            `json:"object_id"`
		Source    string         `json:"source"`
		Metric    string         `json:"metric,omitempty"`
		Baselines []baselineView `json:"baselines"`
		Count     int            `json:"count"`
	}{
		ObjectID:  id,
		Source:    source.String(),
		Metric:    metricName,
		Baselines: views,
		Count:     len(views),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (s *Server) streamSignals(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "stream unavailable", http.StatusServiceUnavailable)
		return
	}
	s.hub.ServeWS(w, r)
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	clients := 0
	if s.hub != nil {
		clients = s.hub.ClientCount()
	}

	response := struct {
		Status        string    `json:"status"`
		Timestamp     time.Time `json:"timestamp"`
		StreamClients int       `json:"stream_clients"`
	}{
		Status:        "ok",
		Timestamp:     time.Now().UTC(),
		StreamClients: clients,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// parseSignalFilter maps query parameters onto a store filter.
// severity is a floor: severity=high matches high and critical.
func parseSignalFilter(q url.Values) (storage.SignalFilter, error) {
	filter := storage.SignalFilter{Limit: defaultListLimit}

	if v := q.Get("object_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil || id <= 0 {
			return filter, fmt.Errorf("invalid object_id %q", v)
		}
		filter.ObjectID = &id
	}
	if v := q.Get("anomaly_type"); v != "" {
		t := domain.AnomalyType(v)
		if !t.IsValid() {
			return filter, fmt.Errorf("invalid anomaly_type %q", v)
		}
		filter.AnomalyType = &t
	}
	if v := q.Get("category"); v != "" {
		c := domain.Category(v)
		if !c.IsValid() {
			return filter, fmt.Errorf("invalid category %q", v)
		}
		filter.Category = &c
	}
	if v := q.Get("severity"); v != "" {
		sev := domain.Severity(v)
		if !sev.IsValid() {
			return filter, fmt.Errorf("invalid severity %q", v)
		}
		filter.MinSeverity = &sev
	}
	if v := q.Get("source"); v != "" {
		src := domain.Source(v)
		if !src.IsValid() {
			return filter, fmt.Errorf("invalid source %q", v)
		}
		filter.Source = &src
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("invalid from %q: want RFC3339", v)
		}
		filter.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("invalid to %q: want RFC3339", v)
		}
		filter.To = &t
	}
	if v := q.Get("live"); v != "" {
		live, err := strconv.ParseBool(v)
		if err != nil {
			return filter, fmt.Errorf("invalid live %q", v)
		}
		if live {
			now := time.Now().UTC()
			filter.LiveAt = &now
		}
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return filter, fmt.Errorf("invalid limit %q", v)
		}
		if n > maxListLimit {
			n = maxListLimit
		}
		filter.Limit = n
	}

	return filter, nil
}
