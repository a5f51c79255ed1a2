package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GoCodeAlone/cecontainer"
	"github.com/GoCodeAlone/cecontainer/cluster"
	"github.com/GoCodeAlone/cecontainer/health"
)

// HTTPURLFileName is the file of the shared directory holding the base URL
// of the compute engine HTTP server.
const HTTPURLFileName = "ce-http-url"

const shutdownTimeout = 10 * time.Second

// HTTPServer is the local HTTP interface of the compute engine, used by the
// web server to query its status and system information.
type HTTPServer struct {
	host       string
	port       int
	urlFile    string
	status     *Status
	identity   *ServerIdentity
	health     *health.Aggregator
	registry   *prometheus.Registry
	queue      *Queue
	processors *TaskProcessors
	workers    *Workers
	info       cluster.DistributedInformation
	logger     cecontainer.Logger

	server  *http.Server
	serveCh chan error

	mu  sync.RWMutex
	url string
}

// URL returns the base URL, empty when the server is not running.
func (s *HTTPServer) URL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.url
}

func (s *HTTPServer) setURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.url = url
}

// Handler returns the router serving the compute engine endpoints.
func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/status", s.handleStatus)
	r.Get("/systemInfo", s.handleSystemInfo)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	r.Post("/tasks", s.handleSubmit)
	r.Get("/tasks/{id}", s.handleTask)
	return r
}

// Start binds the listener, serves in the background and publishes the URL
// in the shared directory.
func (s *HTTPServer) Start(context.Context) error {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("http server cannot bind %s: %w", addr, err)
	}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	url := "http://" + lis.Addr().String()
	s.serveCh = make(chan error, 1)
	go func() {
		s.serveCh <- s.server.Serve(lis)
	}()

	if err := os.WriteFile(s.urlFile, []byte(url), 0o640); err != nil {
		_ = s.server.Close()
		<-s.serveCh
		s.server = nil
		return fmt.Errorf("publish http url: %w", err)
	}
	s.setURL(url)
	s.logger.Info("HTTP server started", "url", url)
	return nil
}

// Stop withdraws the published URL then shuts the server down.
func (s *HTTPServer) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.setURL("")
	if err := os.Remove(s.urlFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("Failed to remove http url file", "path", s.urlFile, "error", err)
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	err := s.server.Shutdown(shutdownCtx)
	if serveErr := <-s.serveCh; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		s.logger.Error("HTTP server error", "error", serveErr)
	}
	s.server = nil
	if err != nil {
		return fmt.Errorf("error shutting down HTTP server: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": s.status.State()})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	node := s.health.CheckNode(r.Context())
	code := http.StatusOK
	if node.Status == health.StatusRed {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, node)
}

type systemInfoSection struct {
	Name       string         `json:"name"`
	Attributes map[string]any `json:"attributes"`
}

func (s *HTTPServer) handleSystemInfo(w http.ResponseWriter, r *http.Request) {
	node := s.health.CheckNode(r.Context())
	stats := s.queue.Stats()
	mode := cluster.ModeStandalone
	if _, ok := s.info.(*cluster.ClusteredDistributedInformation); ok {
		mode = cluster.ModeClustered
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"health":       node.Status,
		"healthCauses": node.Causes,
		"sections": []systemInfoSection{
			{Name: "Compute Engine", Attributes: map[string]any{
				"Version":     Version,
				"Server ID":   s.identity.ID,
				"Server Time": s.identity.StartedAt,
				"Status":      s.status.State(),
				"Started At":  s.status.StartedAt(),
				"Cluster":     mode.String(),
			}},
			{Name: "Compute Engine Tasks", Attributes: map[string]any{
				"Worker Count":           len(s.workers.WorkerUUIDs()),
				"Workers In Cluster":     len(s.info.WorkerUUIDs()),
				"Task Types":             s.processors.Types(),
				"Pending":                stats.Pending,
				"In Progress":            stats.InProgress,
				"Processed With Success": stats.Succeeded,
				"Processed With Error":   stats.Failed,
			}},
		},
	})
}

type submitRequest struct {
	Type      string `json:"type"`
	Component string `json:"component"`
}

func (s *HTTPServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, err := s.processors.Get(req.Type); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	task, err := s.queue.Submit(req.Type, req.Component)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *HTTPServer) handleTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.queue.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func httpModule() cecontainer.Module {
	return cecontainer.NewModule("http", cecontainer.LevelTasks,
		cecontainer.Provide(KeyHTTPServer, func(r cecontainer.Resolver) (any, error) {
			cfg, err := cecontainer.Get[*Configuration](r, KeyConfiguration)
			if err != nil {
				return nil, err
			}
			fs, err := cecontainer.Get[*ServerFileSystem](r, KeyServerFileSystem)
			if err != nil {
				return nil, err
			}
			s := &HTTPServer{host: cfg.HTTPHost, port: cfg.HTTPPort, urlFile: filepath.Join(fs.Shared, HTTPURLFileName)}
			if s.status, err = cecontainer.Get[*Status](r, KeyStatus); err != nil {
				return nil, err
			}
			if s.identity, err = cecontainer.Get[*ServerIdentity](r, KeyServerIdentity); err != nil {
				return nil, err
			}
			if s.health, err = cecontainer.Get[*health.Aggregator](r, KeyHealthAggregator); err != nil {
				return nil, err
			}
			if s.registry, err = cecontainer.Get[*prometheus.Registry](r, KeyMetricsRegistry); err != nil {
				return nil, err
			}
			if s.queue, err = cecontainer.Get[*Queue](r, KeyQueue); err != nil {
				return nil, err
			}
			if s.processors, err = cecontainer.Get[*TaskProcessors](r, KeyTaskProcessors); err != nil {
				return nil, err
			}
			if s.workers, err = cecontainer.Get[*Workers](r, KeyWorkers); err != nil {
				return nil, err
			}
			if s.info, err = cecontainer.Get[cluster.DistributedInformation](r, KeyDistributedInformation); err != nil {
				return nil, err
			}
			logger, err := cecontainer.Get[cecontainer.Logger](r, KeyLogger)
			if err != nil {
				return nil, err
			}
			s.logger = cecontainer.WithFields(logger, "component", KeyHTTPServer.String())
			return s, nil
		},
			KeyConfiguration, KeyServerFileSystem, KeyStatus, KeyServerIdentity, KeyHealthAggregator,
			KeyMetricsRegistry, KeyQueue, KeyTaskProcessors, KeyWorkers, KeyDistributedInformation, KeyLogger),
	)
}
