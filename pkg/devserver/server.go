// Package devserver serves the renderer output and a small control API for
// the running session.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/samber/lo"
	klog "github.com/yaklabco/kiln/internal/log"
	"github.com/yaklabco/kiln/pkg/relaunch"
	"github.com/yaklabco/kiln/pkg/watch/wtarget"
)

const shutdownTimeout = 2 * time.Second

// Controller is the coordinator surface the API exposes.
type Controller interface {
	Status() relaunch.Status
	RelaunchRequested() error
}

// Options configures a Server.
type Options struct {
	Addr      string
	StaticDir string
	Version   string
	// Controller is nil when no application is supervised.
	Controller Controller
	// Metrics, when set, is served at /metrics.
	Metrics http.Handler
}

// Server is the development HTTP server.
type Server struct {
	opts Options
	mux  *http.ServeMux
	api  huma.API

	mu       sync.Mutex
	listener net.Listener
}

// New builds the routes. Nothing listens until Run.
func New(opts Options) *Server {
	mux := http.NewServeMux()

	config := huma.DefaultConfig("kiln dev server", lo.CoalesceOrEmpty(opts.Version, "dev"))
	config.Info.Description = "Control API for a kiln development session"
	config.Servers = []*huma.Server{}

	server := &Server{
		opts: opts,
		mux:  mux,
		api:  humago.New(mux, config),
	}

	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}
	server.registerRoutes()

	if opts.StaticDir != "" {
		files := http.FileServer(http.Dir(opts.StaticDir))
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/api") {
				http.NotFound(w, r)
				return
			}
			files.ServeHTTP(w, r)
		})
	}

	return server
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// API returns the huma API.
func (s *Server) API() huma.API {
	return s.api
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Tags:        []string{"health"},
	}, func(_ context.Context, _ *struct{}) (*HealthResponse, error) {
		resp := &HealthResponse{}
		resp.Body.Status = "ok"
		resp.Body.Version = lo.CoalesceOrEmpty(s.opts.Version, "dev")
		return resp, nil
	})

	if s.opts.Controller == nil {
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Session status",
		Description: "Coordinator state, readiness and launch counters",
		Tags:        []string{"session"},
	}, func(_ context.Context, _ *struct{}) (*StatusResponse, error) {
		return &StatusResponse{Body: statusBody(s.opts.Controller.Status())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "relaunch",
		Method:        http.MethodPost,
		Path:          "/api/relaunch",
		Summary:       "Relaunch the application",
		Description:   "Queue a relaunch. Rejected until every required target has built once.",
		Tags:          []string{"session"},
		DefaultStatus: http.StatusAccepted,
	}, func(_ context.Context, _ *struct{}) (*RelaunchResponse, error) {
		if err := s.opts.Controller.RelaunchRequested(); err != nil {
			switch {
			case errors.Is(err, relaunch.ErrNotReady):
				return nil, huma.Error409Conflict("application is not ready: waiting for first builds")
			case errors.Is(err, relaunch.ErrStopped):
				return nil, huma.Error503ServiceUnavailable("session is shutting down", err)
			default:
				return nil, huma.Error500InternalServerError("failed to queue relaunch", err)
			}
		}
		resp := &RelaunchResponse{}
		resp.Body.Accepted = true
		resp.Body.Message = "relaunch queued"
		return resp, nil
	})
}

func statusBody(status relaunch.Status) StatusBody {
	names := func(ids []wtarget.ID) []string {
		return lo.Map(ids, func(id wtarget.ID, _ int) string { return id.String() })
	}

	return StatusBody{
		State:        status.State.String(),
		Ready:        status.Ready,
		Built:        names(status.Built),
		Pending:      names(status.Pending),
		Handle:       status.Handle.ID,
		PID:          status.Handle.PID,
		Launches:     status.Launches,
		Terminations: status.Terminations,
	}
}

// Addr returns the bound address once Run is listening, else the configured
// one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.opts.Addr
}

// Listen binds the configured address. Run calls it when needed.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}

	listener, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("dev server listen on %s: %w", s.opts.Addr, err)
	}
	s.listener = listener
	return nil
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	httpServer := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("dev server listening", slog.String(klog.Addr, "http://"+s.Addr()))
		serveErr <- httpServer.Serve(s.listener)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("dev server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("dev server shutdown: %w", err)
	}
	return nil
}
