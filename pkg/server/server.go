package server

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/vstore/internal/errors"
	"github.com/vango-dev/vstore/pkg/store"
)

// Server serves one registry.
type Server struct {
	registry *store.Registry
	defs     []*store.Definition
	byID     map[string]*store.Definition

	// mu serializes every registry access made by the server.
	mu sync.Mutex

	// subscribed maps store ids to the instance id the hub listens to.
	subscribed map[string]string

	config     *Config
	router     chi.Router
	middleware []func(http.Handler) http.Handler
	extra      []route
	hub        *Hub
	upgrader   websocket.Upgrader
	logger     *slog.Logger

	httpMu     sync.Mutex
	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithDefinitions makes stores reachable by id. Only defined stores are
// served.
func WithDefinitions(defs ...*store.Definition) Option {
	return func(s *Server) {
		s.defs = append(s.defs, defs...)
	}
}

// WithLogger sets the server logger. Defaults to the registry's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithConfig sets the HTTP and WebSocket configuration.
func WithConfig(cfg *Config) Option {
	return func(s *Server) {
		s.config = cfg
	}
}

// WithMiddleware adds HTTP middleware around every route.
func WithMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(s *Server) {
		s.middleware = append(s.middleware, mw...)
	}
}

type route struct {
	pattern string
	handler http.Handler
}

// WithRoute mounts h at pattern next to the store routes, e.g. a metrics
// endpoint.
func WithRoute(pattern string, h http.Handler) Option {
	return func(s *Server) {
		s.extra = append(s.extra, route{pattern: pattern, handler: h})
	}
}

// New creates a server for r.
func New(r *store.Registry, opts ...Option) *Server {
	s := &Server{
		registry:   r,
		byID:       make(map[string]*store.Definition),
		subscribed: make(map[string]string),
		logger:     r.Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.config = s.config.withDefaults()
	s.logger = s.logger.With("component", "server")

	for _, def := range s.defs {
		s.byID[def.ID()] = def
	}

	s.hub = newHub(s.config.SendBuffer, s.config.PingInterval, s.logger)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  s.config.ReadBufferSize,
		WriteBufferSize: s.config.WriteBufferSize,
		CheckOrigin:     s.config.CheckOrigin,
	}
	s.router = s.routes()

	s.mu.Lock()
	s.watchStores()
	s.mu.Unlock()
	return s
}

// Registry returns the served registry.
func (s *Server) Registry() *store.Registry { return s.registry }

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// Locker returns the lock guarding the registry. Background writers such
// as a persister take it too.
func (s *Server) Locker() sync.Locker { return &s.mu }

// Do runs fn with the registry lock held, then flushes the registry.
func (s *Server) Do(fn func(r *store.Registry) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doLocked(fn)
}

func (s *Server) doLocked(fn func(r *store.Registry) error) error {
	store.SetActive(s.registry)
	err := fn(s.registry)
	s.watchStores()
	s.registry.Tick()
	return err
}

// resolve returns the store for id, building it on first use. Callers
// hold s.mu.
func (s *Server) resolve(id string) (*store.Store, error) {
	def, ok := s.byID[id]
	if !ok {
		return nil, errors.New("E009").WithSubject("%q", id)
	}
	st, err := def.Resolve(s.registry)
	if err != nil {
		return nil, err
	}
	s.watchStores()
	return st, nil
}

// watchStores subscribes the hub to built stores it does not follow yet,
// including stores rebuilt after Dispose. Callers hold s.mu.
func (s *Server) watchStores() {
	for _, def := range s.defs {
		st, ok := s.registry.Store(def.ID())
		if !ok {
			continue
		}
		if s.subscribed[def.ID()] == st.InstanceID() {
			continue
		}
		s.subscribed[def.ID()] = st.InstanceID()
		st.Subscribe(func(m store.Mutation, state map[string]any) {
			s.hub.Broadcast(Frame{
				Type:    string(m.Type),
				Store:   m.StoreID,
				Payload: m.Payload,
				Events:  m.Events,
				State:   state,
			})
		}, store.Detached())
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler { return s }

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Address,
		Handler:           s,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
	}
	s.httpMu.Lock()
	s.httpServer = srv
	s.httpMu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", s.config.Address)
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown disconnects WebSocket clients and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	s.hub.Close()

	s.httpMu.Lock()
	srv := s.httpServer
	s.httpMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
