// Package server implements the Warden moderation server: session intake,
// command dispatch, and enforcement on top of the moderation engine.
package server

import (
	"context"
	"net"
	"time"

	"warden/pkg/command"
	"warden/pkg/datastore"
	"warden/pkg/identity"
	"warden/pkg/moderation"
	"warden/pkg/sched"
	"warden/pkg/selection"
)

// Dependencies holds external dependencies for the server.
// Server assumes ownership of Store and will Close() it on shutdown.
type Dependencies struct {
	Store     datastore.DataProviderFactory
	Directory identity.Directory // optional roster of known subject ids
}

// Server is the main Warden server.
type Server struct {
	cfg      Config
	sessions *SessionManager
	loop     *sched.Loop
	metrics  *Metrics
	store    datastore.DataProviderFactory
	policy   *Policy
	resolver *identity.Resolver
	notify   *Broadcaster
	enforcer *Enforcer
	mgr      *moderation.Manager
	sel      *selection.Manager
	reg      *command.Registry
	ln       net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a new Server instance and wires the moderation engine to it.
func New(cfg Config, deps Dependencies) (*Server, error) {
	policy, err := LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		sessions: NewSessionManager(),
		loop:     sched.NewLoop(cfg.TickInterval),
		metrics:  NewMetrics(),
		store:    deps.Store,
		policy:   policy,
		ctx:      ctx,
		cancel:   cancel,
	}

	s.resolver = identity.NewResolver(s.sessions, deps.Store.NonTx(), deps.Directory)
	s.notify = NewBroadcaster(s.sessions)
	s.enforcer = NewEnforcer(s.loop, s.sessions, cfg.DisconnectGraceTicks, s.metrics)
	s.mgr = moderation.New(deps.Store, s.resolver, s.sessions, s.enforcer, s.notify)
	s.sel = selection.New(s.mgr, policy.Reasons(), func() int64 { return time.Now().UnixMilli() })
	s.reg = command.NewRegistry()
	s.registerCommands()
	return s, nil
}

// Sessions returns the session manager.
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Moderation returns the moderation engine.
func (s *Server) Moderation() *moderation.Manager {
	return s.mgr
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Loop returns the main loop.
func (s *Server) Loop() *sched.Loop {
	return s.loop
}

func timeNowMillis() int64 {
	return time.Now().UnixMilli()
}
