// Package service composes the relay backend: the signal bus and loopback
// transports, the local stores, and the authenticated website session whose
// operations are exposed to frontends as named slots.
//
// The service initializes from configuration via New, creating all
// subsystems internally. Functional options replace any of them for tests.
//
//	svc, err := service.New(cfg)
//	err = svc.Start(ctx)
//	ok, err := ipc.CallInto[bool](ctx, svc.Client(), service.CallLogin, nil)
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/tailored-agentic-units/relay/credentials"
	"github.com/tailored-agentic-units/relay/ipc"
	"github.com/tailored-agentic-units/relay/kvstore"
	"github.com/tailored-agentic-units/relay/memory"
	"github.com/tailored-agentic-units/relay/observability"
	"github.com/tailored-agentic-units/relay/session"
	"github.com/tailored-agentic-units/relay/settings"
	"github.com/tailored-agentic-units/relay/signals"
	"github.com/tailored-agentic-units/relay/ui"
)

// Names of the slots served by the backend.
const (
	CallGetSafe            = "get_safe"
	CallPostSafe           = "post_safe"
	CallLogin              = "login"
	CallLogout             = "logout"
	CallRefreshSessionData = "refresh_session_data"
	CallIsLoggedIn         = "is_logged_in"
	CallActivateProfile    = "activate_profile"
)

// busShutdownTimeout bounds the wait for in-flight slots at shutdown.
const busShutdownTimeout = 5 * time.Second

// Option configures a Service before its subsystems are built. A subsystem
// supplied by an option replaces the config-created one.
type Option func(*Service)

// WithLogger overrides the config-created logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithObserver adds an observer next to the one named in the config.
func WithObserver(o observability.Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithNotifier overrides the terminal notifier.
func WithNotifier(n ui.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithNavigator overrides the terminal navigator.
func WithNavigator(n ui.Navigator) Option {
	return func(s *Service) { s.navigator = n }
}

// WithConnectivity overrides the TCP dial connectivity check.
func WithConnectivity(c session.Connectivity) Option {
	return func(s *Service) { s.connectivity = c }
}

// WithMemoryStore overrides the config-created memory store.
func WithMemoryStore(store memory.Store) Option {
	return func(s *Service) { s.store = store }
}

// Service is the running relay backend.
type Service struct {
	cfg    Config
	logger *slog.Logger

	observer     observability.Observer
	notifier     ui.Notifier
	navigator    ui.Navigator
	connectivity session.Connectivity

	store    memory.Store
	cache    *memory.Cache
	db       *kvstore.DB
	settings *settings.Store
	creds    *credentials.Store

	bus     signals.Bus
	emitter *signals.Emitter
	signal  *ipc.SignalTransport
	router  *ipc.Router
	cacheCl *ipc.CacheClient

	access  *session.Access
	targets *ipc.Targets
	server  *ipc.Server
	cacheSv *ipc.CacheServer

	mu      sync.Mutex
	started bool
	closed  bool
}

// New creates a Service from configuration. Nothing is served until Start.
func New(cfg *Config, opts ...Option) (*Service, error) {
	s := &Service{cfg: *cfg}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		logger, err := observability.NewLogger(s.cfg.Log, os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		s.logger = logger
	}
	s.cfg.IPC.Logger = s.logger
	s.cfg.Signals.Logger = s.logger
	s.cfg.Session.Logger = s.logger
	s.cfg.KVStore.Logger = s.logger

	base, err := s.baseObserver()
	if err != nil {
		return nil, err
	}
	s.observer = observability.NewMultiObserver(base, s.observer)

	if s.store == nil {
		s.store = memory.NewStore(&s.cfg.Memory)
	}
	s.cache = memory.NewCache(memory.Sub(s.store, memory.NamespaceCache))

	db, err := kvstore.Open(s.cfg.KVStore)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db

	st, err := settings.Open(s.cfg.Settings, s.logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open settings: %w", err)
	}
	s.settings = st
	s.settings.Watch(func(key string, value any) {
		s.logger.Debug("setting changed", slog.String("key", key), slog.Any("value", value))
	})

	s.creds = credentials.NewStore(s.cfg.Credentials.Path, s.cfg.Credentials.Seed)

	s.bus = signals.New(context.Background(), s.cfg.Signals)
	s.emitter = signals.NewEmitter(s.bus, s.cfg.IPC.Scope, s.cfg.Signals.EmitQueueSize, s.logger)
	s.signal = ipc.NewSignalTransport(s.bus, s.emitter, s.cfg.IPC)

	servicePorts := s.portSource(ipc.ServicePortKey, s.cfg.IPC.ServicePort)
	cachePorts := s.portSource(ipc.CachePortKey, s.cfg.IPC.CachePort)
	s.router = ipc.NewRouter(s.cfg.IPC.Mode(), ipc.NewHTTPTransport(servicePorts, s.cfg.IPC), s.signal)
	s.cacheCl = ipc.NewCacheClient(cachePorts, s.cfg.IPC)

	if s.notifier == nil || s.navigator == nil {
		term := ui.NewTerminal(os.Stdout, nil, s.logger)
		if s.notifier == nil {
			s.notifier = term
		}
		if s.navigator == nil {
			s.navigator = term
		}
	}
	if s.connectivity == nil {
		s.connectivity = session.NewDialConnectivity(s.cfg.Session.BaseURL)
	}

	access, err := session.New(&s.cfg.Session, session.Deps{
		Credentials:  s.creds,
		Cookies:      memory.Sub(s.store, memory.NamespaceCookies),
		LocalDB:      s.db,
		Settings:     s.settings,
		Cache:        s.cache,
		Emitter:      s.signal,
		Notifier:     s.notifier,
		Navigator:    s.navigator,
		Connectivity: s.connectivity,
		Observer:     s.observer,
	})
	if err != nil {
		s.closeStores(context.Background())
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	s.access = access

	s.targets = ipc.NewTargets()
	for _, rc := range s.returnCalls() {
		if err := s.targets.Register(rc); err != nil {
			s.closeStores(context.Background())
			return nil, err
		}
	}

	s.server = ipc.NewServer(s.targets, s.logger)
	s.cacheSv = ipc.NewCacheServer(s.cache, s.logger)

	return s, nil
}

// baseObserver resolves the configured observer. The slog observer writes
// through this service's logger; other names come from the registry.
func (s *Service) baseObserver() (observability.Observer, error) {
	if s.cfg.Observer == observability.ObserverSlog {
		return observability.NewSlogObserver(s.logger), nil
	}
	return observability.GetObserver(s.cfg.Observer)
}

func (s *Service) returnCalls() []*ipc.ReturnCall {
	return []*ipc.ReturnCall{
		ipc.Method(CallGetSafe, s.access, (*session.Access).GetSafe),
		ipc.Method(CallPostSafe, s.access, (*session.Access).PostSafe),
		ipc.Method(CallLogin, s.access, (*session.Access).Login),
		ipc.Method0(CallLogout, s.access, func(a *session.Access, ctx context.Context) (any, error) {
			return nil, a.Logout(ctx)
		}),
		ipc.Method0(CallRefreshSessionData, s.access, (*session.Access).RefreshSessionData),
		ipc.Method0(CallIsLoggedIn, s.access, func(a *session.Access, ctx context.Context) (bool, error) {
			return a.IsLoggedIn(ctx), nil
		}),
		ipc.Method(CallActivateProfile, s.access, func(a *session.Access, ctx context.Context, guid string) (any, error) {
			return nil, a.ActivateProfile(ctx, guid)
		}),
	}
}

// portSource reads a loopback port from the local table on every call so
// frontends follow a restarted server.
func (s *Service) portSource(key string, def int) ipc.PortSource {
	return ipc.PortFunc(func(ctx context.Context) int {
		return s.db.GetInt(ctx, kvstore.TableLocal, key, def)
	})
}

// Start serves the session slots on the configured transport, starts the
// cache service, and runs the startup login prefetch. When a step fails the
// steps already taken are undone and Start may be called again.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.started {
		return ErrStarted
	}

	if err := s.serveSlots(ctx); err != nil {
		s.rollback(ctx, s.stopSlots)
		return err
	}
	if err := s.serveCache(ctx); err != nil {
		s.rollback(ctx, s.cacheSv.Shutdown, s.stopSlots)
		return err
	}

	if err := s.cache.Bootstrap(ctx); err != nil {
		s.logger.WarnContext(ctx, "cache bootstrap failed", slog.String("error", err.Error()))
	}

	s.started = true
	s.observer.OnEvent(ctx, observability.Event{
		Type:      EventStart,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "service.Start",
		Data: map[string]any{
			"mode":  s.cfg.IPC.Mode().String(),
			"slots": s.targets.Names(),
		},
	})

	s.access.PrefetchLogin(ctx)
	return nil
}

// rollback undoes the steps of a failed Start. Failures are logged.
func (s *Service) rollback(ctx context.Context, steps ...func(context.Context) error) {
	for _, step := range steps {
		if err := step(ctx); err != nil {
			s.logger.WarnContext(ctx, "start rollback failed", slog.String("error", err.Error()))
		}
	}
}

// serveSlots exposes the targets on the active transport and publishes the
// bound port in HTTP mode.
func (s *Service) serveSlots(ctx context.Context) error {
	if s.cfg.IPC.Mode() != ipc.ModeHTTP {
		for _, name := range s.targets.Names() {
			rc, _ := s.targets.Get(name)
			s.signal.Register(rc)
		}
		return nil
	}

	port := s.db.GetInt(ctx, kvstore.TableLocal, ipc.ServicePortKey, s.cfg.IPC.ServicePort)
	if err := s.server.Start(port); err != nil {
		return fmt.Errorf("failed to start ipc server: %w", err)
	}
	return s.db.SetValue(ctx, kvstore.TableLocal, ipc.ServicePortKey, s.server.Port())
}

func (s *Service) serveCache(ctx context.Context) error {
	port := s.db.GetInt(ctx, kvstore.TableLocal, ipc.CachePortKey, s.cfg.IPC.CachePort)
	if err := s.cacheSv.Start(port); err != nil {
		return fmt.Errorf("failed to start cache server: %w", err)
	}
	return s.db.SetValue(ctx, kvstore.TableLocal, ipc.CachePortKey, s.cacheSv.Port())
}

// stopSlots undoes serveSlots. It is safe on a transport that never started.
func (s *Service) stopSlots(ctx context.Context) error {
	if s.cfg.IPC.Mode() == ipc.ModeHTTP {
		return s.server.Shutdown(ctx)
	}
	for _, name := range s.targets.Names() {
		s.signal.Unregister(name)
	}
	return nil
}

// Client returns the caller frontends use to reach the backend slots.
func (s *Service) Client() *ipc.Router {
	return s.router
}

// CacheClient returns the frontend client of the cache service.
func (s *Service) CacheClient() *ipc.CacheClient {
	return s.cacheCl
}

// Access returns the session state machine.
func (s *Service) Access() *session.Access {
	return s.access
}

func (s *Service) LocalDB() *kvstore.DB {
	return s.db
}

func (s *Service) Credentials() *credentials.Store {
	return s.creds
}

// Shutdown stops serving and releases every subsystem. All steps run; their
// errors are joined.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.started {
		errs = append(errs, s.stopSlots(ctx), s.cacheSv.Shutdown(ctx))
		s.started = false
	}

	errs = append(errs, s.closeStores(ctx))

	s.observer.OnEvent(ctx, observability.Event{
		Type:      EventShutdown,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "service.Shutdown",
	})

	return errors.Join(errs...)
}

func (s *Service) closeStores(ctx context.Context) error {
	var errs []error
	if err := s.cache.Flush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush cache: %w", err))
	}
	if err := s.emitter.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close emitter: %w", err))
	}
	if err := s.bus.Shutdown(busShutdownTimeout); err != nil {
		errs = append(errs, err)
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	return errors.Join(errs...)
}
