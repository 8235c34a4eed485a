// Package server is the development server: it serves the built site, runs
// the contact form server-side, stands in for the form relay, and pushes
// live-reload messages when content changes.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/shopfront/internal/config"
	siteerrors "github.com/conneroisu/shopfront/internal/errors"
	"github.com/conneroisu/shopfront/internal/form"
	"github.com/conneroisu/shopfront/internal/inbox"
	"github.com/conneroisu/shopfront/internal/logging"
	"github.com/conneroisu/shopfront/internal/ratelimit"
	"github.com/conneroisu/shopfront/internal/relay"
	"github.com/conneroisu/shopfront/internal/site"
	"github.com/conneroisu/shopfront/internal/validation"
	"github.com/conneroisu/shopfront/internal/version"
	"github.com/conneroisu/shopfront/internal/watcher"
)

const (
	contactWindow   = time.Minute
	maxBodyBytes    = 64 << 10
	watchDebounce   = 300 * time.Millisecond
	shutdownTimeout = 5 * time.Second
)

// Client represents a WebSocket client
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	server *DevServer
}

// DevServer serves the site with live reload and the contact endpoints.
type DevServer struct {
	config      *config.Config
	builder     *site.Builder
	inbox       *inbox.Store
	submitter   form.Submitter
	limiter     *ratelimit.Keyed
	logger      logging.Logger
	errHandler  *siteerrors.ErrorHandler
	watcher     *watcher.FileWatcher
	configFile  string
	httpServer  *http.Server
	serverMutex sync.RWMutex

	clients      map[*websocket.Conn]*Client
	clientsMutex sync.RWMutex
	broadcast    chan []byte
	register     chan *Client
	unregister   chan *websocket.Conn
	done         chan struct{}

	lastBuildError error
	buildMutex     sync.RWMutex
	started        time.Time
	shutdownOnce   sync.Once
}

// Option configures a DevServer.
type Option func(*DevServer)

// WithSubmitter replaces the submitter used by /api/contact.
func WithSubmitter(s form.Submitter) Option {
	return func(ds *DevServer) { ds.submitter = s }
}

// WithConfigFile makes the watcher rebuild when the config file changes.
func WithConfigFile(path string) Option {
	return func(ds *DevServer) { ds.configFile = path }
}

// UpdateMessage represents a message sent to the browser
type UpdateMessage struct {
	Type      string    `json:"type"`
	Content   string    `json:"content,omitempty"`
	Paths     []string  `json:"paths,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// New creates a dev server. The inbox may be nil, in which case the local
// relay endpoints answer 503. Contact submissions go to the configured relay
// endpoint, or to the local relay when none is set.
func New(cfg *config.Config, builder *site.Builder, store *inbox.Store, logger logging.Logger, opts ...Option) *DevServer {
	if logger == nil {
		logger = logging.Nop()
	}

	s := &DevServer{
		config:     cfg,
		builder:    builder,
		inbox:      store,
		limiter:    ratelimit.NewKeyed(cfg.Server.ContactRateLimit, contactWindow),
		logger:     logger.WithComponent("server"),
		clients:    make(map[*websocket.Conn]*Client),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *Client),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		started:    time.Now(),
	}
	s.errHandler = siteerrors.NewErrorHandler(s.logger)

	if cfg.Form.Endpoint != "" {
		s.submitter = relay.NewClient(cfg.Form.Endpoint, cfg.Form.Timeout, logger)
	} else {
		s.submitter = form.SubmitterFunc(s.deliverLocal)
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed and wrapped HTTP handler.
func (s *DevServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/contact", s.handleContact)
	mux.HandleFunc("/relay", s.handleRelay)
	mux.HandleFunc("/relay/submissions", s.handleSubmissions)
	mux.Handle("/", s.staticHandler())

	return s.addMiddleware(mux)
}

// Start builds the site once, starts the watcher and websocket hub, and
// serves until ctx is cancelled or the listener fails.
func (s *DevServer) Start(ctx context.Context) error {
	if s.builder != nil {
		if err := s.rebuild(ctx, nil); err != nil {
			s.errHandler.Handle(ctx, err)
		}
	}

	if s.config.Server.Watch && s.builder != nil {
		if err := s.setupFileWatcher(ctx); err != nil {
			s.logger.Warn(ctx, err, "File watching disabled")
		}
	}

	go s.runWebSocketHub(ctx)
	go s.pruneLimiter(ctx)

	addr := net.JoinHostPort(s.config.Server.Host, fmt.Sprint(s.config.Server.Port))

	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn(shutdownCtx, err, "Shutdown did not complete cleanly")
		}
	}()

	s.logger.Info(ctx, "Dev server listening", "addr", "http://"+addr, "output", s.config.Build.OutputDir)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (s *DevServer) setupFileWatcher(ctx context.Context) error {
	fw, err := watcher.NewFileWatcher(watchDebounce, s.logger)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	fw.AddFilter(watcher.AnyOf(watcher.ContentFilter, watcher.ConfigFilter))
	fw.AddFilter(watcher.NoTempFilter)
	fw.AddHandler(s.handleFileChange)

	if err := fw.AddRecursive(s.config.Content.PostsDir); err != nil {
		s.logger.Warn(ctx, err, "Failed to watch content", "path", s.config.Content.PostsDir)
	}
	if s.configFile != "" {
		if err := fw.AddPath(s.configFile); err != nil {
			s.logger.Warn(ctx, err, "Failed to watch config file", "path", s.configFile)
		}
	}

	s.watcher = fw
	return fw.Start(ctx)
}

// handleFileChange rebuilds the site after a batch of content changes and
// tells connected browsers to reload.
func (s *DevServer) handleFileChange(ctx context.Context, events []watcher.ChangeEvent) error {
	paths := make([]string, 0, len(events))
	for _, event := range events {
		s.logger.Debug(ctx, "File changed", "path", event.Path, "type", event.Type.String())
		if s.configFile != "" && filepath.Clean(event.Path) == filepath.Clean(s.configFile) {
			s.logger.Info(ctx, "Config file changed, restart the server to apply it", "path", event.Path)
		}
		paths = append(paths, event.Path)
	}
	return s.rebuild(ctx, paths)
}

func (s *DevServer) rebuild(ctx context.Context, paths []string) error {
	result, err := s.builder.Build(ctx)

	s.buildMutex.Lock()
	s.lastBuildError = err
	s.buildMutex.Unlock()

	if err != nil {
		s.broadcastMessage(UpdateMessage{
			Type:      "build_error",
			Content:   err.Error(),
			Paths:     paths,
			Timestamp: time.Now(),
		})
		return err
	}

	s.broadcastMessage(UpdateMessage{
		Type:      "reload",
		Content:   fmt.Sprintf("%d posts, %d images updated", result.Posts, result.ImagesWritten),
		Paths:     paths,
		Timestamp: result.Finished,
	})
	return nil
}

// LastBuildError returns the error of the most recent build, if it failed.
func (s *DevServer) LastBuildError() error {
	s.buildMutex.RLock()
	defer s.buildMutex.RUnlock()
	return s.lastBuildError
}

func (s *DevServer) pruneLimiter(ctx context.Context) {
	ticker := time.NewTicker(2 * contactWindow)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.limiter.Prune(); n > 0 {
				s.logger.Debug(ctx, "Pruned idle rate limiters", "removed", n)
			}
		}
	}
}

// OpenBrowser opens url in the platform browser.
func (s *DevServer) OpenBrowser(url string) {
	if err := validation.ValidateURL(url); err != nil {
		s.logger.Warn(context.Background(), err, "Browser open failed due to invalid URL")
		return
	}

	var err error
	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", url).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		err = exec.Command("open", url).Start()
	default:
		err = fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
	if err != nil {
		s.logger.Warn(context.Background(), err, "Failed to open browser")
	}
}

// Shutdown stops the watcher, closes websocket clients and the HTTP server.
func (s *DevServer) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down dev server")
		close(s.done)

		if s.watcher != nil {
			s.watcher.Stop()
		}

		s.clientsMutex.Lock()
		clients := s.clients
		s.clients = make(map[*websocket.Conn]*Client)
		s.clientsMutex.Unlock()

		for conn, client := range clients {
			close(client.send)
			conn.Close(websocket.StatusGoingAway, "server shutting down")
		}

		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()

		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}
	})

	return shutdownErr
}

type healthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Uptime    string                 `json:"uptime"`
	Version   string                 `json:"version"`
	Build     *site.MetricsSnapshot  `json:"build,omitempty"`
	Checks    map[string]interface{} `json:"checks"`
}

// handleHealth returns the server health status for health checks
func (s *DevServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	health := healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Version:   version.Short(),
		Checks:    map[string]interface{}{},
	}

	if s.builder != nil {
		snap := s.builder.Metrics().Snapshot()
		health.Build = &snap
		check := map[string]interface{}{"status": "healthy"}
		if err := s.LastBuildError(); err != nil {
			health.Status = "degraded"
			check = map[string]interface{}{"status": "error", "message": err.Error()}
		}
		health.Checks["build"] = check
	}

	if s.inbox != nil {
		count, err := s.inbox.Count(r.Context())
		if err != nil {
			health.Status = "degraded"
			health.Checks["inbox"] = map[string]interface{}{"status": "error", "message": err.Error()}
		} else {
			health.Checks["inbox"] = map[string]interface{}{"status": "healthy", "submissions": count}
		}
	}

	s.clientsMutex.RLock()
	health.Checks["live_reload"] = map[string]interface{}{"status": "healthy", "clients": len(s.clients)}
	s.clientsMutex.RUnlock()

	writeJSON(w, http.StatusOK, health)
}

func (s *DevServer) broadcastMessage(msg UpdateMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Warn(context.Background(), err, "Failed to marshal message")
		data = []byte(`{"type":"reload"}`)
	}

	select {
	case s.broadcast <- data:
	default:
		s.logger.Debug(context.Background(), "Dropped live reload message, hub busy", "type", msg.Type)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
