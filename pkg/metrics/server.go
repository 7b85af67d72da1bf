package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jzx17/syncqueue/pkg/queue"
)

// StatsFunc returns the current queue statistics
type StatsFunc func() queue.Stats

// Server exposes /healthz, /stats and /metrics over HTTP.
type Server struct {
	stats  StatsFunc
	server *http.Server
}

// NewServer creates a new metrics server. A nil gatherer serves the default registry.
func NewServer(addr string, gatherer prometheus.Gatherer, stats StatsFunc) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	s := &Server{
		stats: stats,
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return s
}

// Handler returns the HTTP handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server; it returns nil after Stop.
func (s *Server) Start() error {
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type statsResponse struct {
	RunID                 string  `json:"run_id,omitempty"`
	Running               bool    `json:"running"`
	Total                 int     `json:"total"`
	Pending               int     `json:"pending"`
	Processing            int     `json:"processing"`
	Completed             int     `json:"completed"`
	Failed                int     `json:"failed"`
	Cancelled             int     `json:"cancelled"`
	Blocked               int     `json:"blocked"`
	Retries               int     `json:"retries"`
	AverageProcessingTime string  `json:"average_processing_time"`
	Throughput            float64 `json:"throughput_per_minute"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		http.Error(w, "no queue attached", http.StatusServiceUnavailable)
		return
	}

	st := s.stats()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statsResponse{
		RunID:                 st.RunID,
		Running:               st.Running,
		Total:                 st.Total,
		Pending:               st.Pending,
		Processing:            st.Processing,
		Completed:             st.Completed,
		Failed:                st.Failed,
		Cancelled:             st.Cancelled,
		Blocked:               st.Blocked,
		Retries:               st.Retries,
		AverageProcessingTime: st.AverageProcessingTime.String(),
		Throughput:            st.Throughput,
	})
}
