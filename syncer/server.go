package syncer

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ygrid/ygrid/common/stats"
	"github.com/ygrid/ygrid/os/temp"
	"github.com/ygrid/ygrid/workspace"
)

// MaxFileSize bounds a single PUT.
const MaxFileSize = 1 << 30

// Server serves a workspace's files to peers.
type Server struct {
	ws      *workspace.Workspace
	limiter *rate.Limiter
	stat    stats.StatsReceiver
}

// NewServer serves ws. A limit of 0 means unlimited requests per second.
func NewServer(ws *workspace.Workspace, limit float64, stat stats.StatsReceiver) *Server {
	s := &Server{ws: ws, stat: stat.Scope("syncer")}
	if limit > 0 {
		burst := int(limit)
		if burst < 1 {
			burst = 1
		}
		log.Infof("Creating sync Limiter with rate/burst: %v/%d", limit, burst)
		s.limiter = rate.NewLimiter(rate.Limit(limit), burst)
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.Allow() {
		s.stat.Counter(stats.SyncThrottled).Inc(1)
		http.Error(w, "rate limited", http.StatusTooManyRequests)
		return
	}
	rel := strings.TrimPrefix(r.URL.Path, PathPrefix)
	path, err := s.ws.Resolve(rel)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		s.get(w, r, path)
	case http.MethodPut:
		if !s.ws.InActiveJob(path) {
			log.WithFields(log.Fields{"path": rel, "remote": r.RemoteAddr}).Warn("Refusing write outside active jobs")
			http.Error(w, "writes are only allowed under "+workspace.ActiveJobRel(""), http.StatusForbidden)
			return
		}
		s.put(w, r, path)
	default:
		w.Header().Set("Allow", "GET, HEAD, PUT")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) get(w http.ResponseWriter, r *http.Request, path string) {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		http.NotFound(w, r)
		return
	}
	log.WithFields(log.Fields{"path": path, "remote": r.RemoteAddr}).Debug("Serving file")
	s.stat.Counter(stats.SyncFilesServed).Inc(1)
	http.ServeFile(w, r, path)
}

func (s *Server) put(w http.ResponseWriter, r *http.Request, path string) {
	data, err := io.ReadAll(io.LimitReader(r.Body, MaxFileSize+1))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(data) > MaxFileSize {
		http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.WithFields(log.Fields{"path": path, "error": err}).Error("Couldn't create directory")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := temp.WriteFile(path, data, 0644); err != nil {
		log.WithFields(log.Fields{"path": path, "error": err}).Error("Couldn't write file")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	log.WithFields(log.Fields{"path": path, "bytes": len(data), "remote": r.RemoteAddr}).Debug("Received file")
	w.WriteHeader(http.StatusOK)
}
