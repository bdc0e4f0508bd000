// Package endpoints serves a node's admin HTTP surface: health, metrics, a
// JSON status page, and whatever other handlers the node mounts beside them.
package endpoints

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/ygrid/ygrid/common/stats"
)

func NewTwitterServer(addr string, stats stats.StatsReceiver) *TwitterServer {
	s := &TwitterServer{
		Addr:  addr,
		Stats: stats,
		mux:   http.NewServeMux(),
	}
	s.mux.HandleFunc("/", helpHandler)
	s.mux.HandleFunc("/health", healthHandler)
	s.mux.HandleFunc("/admin/metrics.json", s.statsHandler)
	return s
}

type TwitterServer struct {
	Addr  string
	Stats stats.StatsReceiver

	mux    *http.ServeMux
	server *http.Server
}

// Handle mounts another handler on the server.
func (s *TwitterServer) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

// HandleStatus serves status() as JSON on /status.
func (s *TwitterServer) HandleStatus(status func() (interface{}, error)) {
	s.mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		v, err := status()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.Encode(v)
	})
}

func (s *TwitterServer) Handler() http.Handler {
	return s.mux
}

// Serve blocks serving on ln until Shutdown.
func (s *TwitterServer) Serve(ln net.Listener) error {
	s.server = &http.Server{Handler: s.mux}
	log.Infof("Serving http & stats on %s", ln.Addr())
	if err := s.server.Serve(ln); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// ListenAndServe listens on Addr and serves until Shutdown.
func (s *TwitterServer) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

func (s *TwitterServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func helpHandler(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Common paths: '/health', '/admin/metrics.json', '/status', '/sync/{PATH}'", http.StatusNotImplemented)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "ok")
}

func (s *TwitterServer) statsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	pretty := r.URL.Query().Get("pretty") == "true"
	if _, err := w.Write(s.Stats.Render(pretty)); err != nil {
		log.Debugf("Couldn't write stats: %v", err)
	}
}
