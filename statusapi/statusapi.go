// Package statusapi serves the node's last cycle over HTTP.
//
//	GET /healthz  200 when the last cycle sampled successfully and is recent
//	GET /status   last cycle as JSON
//	GET /metrics  Prometheus metrics, when a handler is given
package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/notnil/thermnode/node"
)

// Source returns the most recent cycle report.
type Source interface {
	Status() node.Report
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	NodeID   string     `json:"node_id"`
	Time     time.Time  `json:"time"`
	Temps    []float64  `json:"temps"`
	Volts    []float64  `json:"volts"`
	Min      float64    `json:"min"`
	Max      float64    `json:"max"`
	Avg      int        `json:"avg"`
	MinIndex int        `json:"min_index"`
	MaxIndex int        `json:"max_index"`
	Alert    bool       `json:"alert"`
	FanDuty  uint8      `json:"fan_duty"`
	Sent     bool       `json:"sent"`
	Error    string     `json:"error,omitempty"`
	R2D      *byte      `json:"r2d,omitempty"`
	R2DAt    *time.Time `json:"r2d_at,omitempty"`
}

// Server serves a Source.
type Server struct {
	src    Source
	nodeID string
	// MaxAge is how old the last cycle may be for /healthz to pass.
	MaxAge time.Duration
	now    func() time.Time
}

func New(src Source, nodeID string) *Server {
	return &Server{src: src, nodeID: nodeID, MaxAge: 5 * time.Second, now: time.Now}
}

// Router returns the API routes. metrics may be nil.
func (s *Server) Router(metrics http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	r.HandleFunc("/status", s.status).Methods(http.MethodGet)
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods(http.MethodGet)
	}
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	r := s.src.Status()
	switch {
	case r.Time.IsZero():
		http.Error(w, "no cycle yet", http.StatusServiceUnavailable)
	case r.SampleErr != nil:
		http.Error(w, r.SampleErr.Error(), http.StatusServiceUnavailable)
	case s.MaxAge > 0 && s.now().Sub(r.Time) > s.MaxAge:
		http.Error(w, "cycle loop stalled", http.StatusServiceUnavailable)
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok\n")
	}
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	r := s.src.Status()
	snap := r.Snapshot.Clone()
	resp := StatusResponse{
		NodeID:   s.nodeID,
		Time:     r.Time,
		Temps:    snap.Temps,
		Volts:    snap.Volts,
		Min:      snap.Min(),
		Max:      snap.Max(),
		Avg:      snap.AvgTemp,
		MinIndex: snap.MinIndex,
		MaxIndex: snap.MaxIndex,
		Alert:    r.Alert,
		FanDuty:  r.FanDuty,
		Sent:     r.Sent,
	}
	switch {
	case r.SampleErr != nil:
		resp.Error = r.SampleErr.Error()
	case r.TransmitErr != nil:
		resp.Error = r.TransmitErr.Error()
	}
	if r.HasStatus {
		v := r.Status.Value
		resp.R2D = &v
		at := r.StatusAt
		resp.R2DAt = &at
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// ListenAndServe serves h on addr with combined access logging to accessLog
// until ctx is done.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, accessLog io.Writer, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handlers.CombinedLoggingHandler(accessLog, handlers.RecoveryHandler()(h)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("status api listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return ctx.Err()
	}
}
