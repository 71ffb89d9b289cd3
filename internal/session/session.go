// Package session owns the persistent control connection between a
// judge host and the central server: handshake, heartbeats, inbound
// task dispatch onto a bounded worker pool, and reconnect with a flat
// backoff when the socket drops.
package session

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"net"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/programme-lv/judgehost/api"
	"github.com/programme-lv/judgehost/internal/report"
	"github.com/programme-lv/judgehost/internal/worker"
)

// State is the connection lifecycle state of a session
type State int32

const (
	Disconnected State = iota
	Connecting
	Handshaking
	Active
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Handshaking:
		return "handshaking"
	case Active:
		return "active"
	}
	return "unknown"
}

// Dialer opens the control socket. Injected so tests can use net.Pipe.
type Dialer func(ctx context.Context) (net.Conn, error)

// TCPDialer dials a plain TCP control socket at addr
func TCPDialer(addr string) Dialer {
	return func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", addr)
	}
}

// Handler drives one dispatched task to completion. It must produce
// exactly one terminal report on rep, success or failure.
type Handler interface {
	Handle(ctx context.Context, task *api.Task, rep *report.TaskReporter)
}

// HandlerFunc adapts a func to the Handler interface
type HandlerFunc func(ctx context.Context, task *api.Task, rep *report.TaskReporter)

func (f HandlerFunc) Handle(ctx context.Context, task *api.Task, rep *report.TaskReporter) {
	f(ctx, task, rep)
}

const (
	defaultHeartbeatInterval = 20 * time.Minute
	defaultReconnectDelay    = 30 * time.Second
)

// Config is the per-host session configuration, fixed for the process
// lifetime
type Config struct {
	HostName string

	// Capability overrides announced during the handshake. A session
	// with none configured announces a plain keep-alive instead.
	Prio        *int
	Concurrency *int
	Langs       []string

	// Performance trades live per-case progress for message volume
	Performance bool

	// DisableStatus suppresses the periodic host-status heartbeats
	DisableStatus     bool
	HeartbeatInterval time.Duration
	ReconnectDelay    time.Duration

	// ScrubPrefixes are local path prefixes redacted from outgoing
	// free-text fields
	ScrubPrefixes []string

	// Info supplies the machine part of the status heartbeat; nil
	// falls back to runtime facts. Probe resolves toolchain versions
	// from the server's language table; nil skips probing. Both are
	// external collaborators.
	Info  func() api.HostInfo
	Probe func(ctx context.Context, langs map[string]api.LanguageConfig) map[string]string
}

type Session struct {
	id      string
	cfg     Config
	dial    Dialer
	handler Handler
	logger  *slog.Logger

	pool     *worker.Pool
	reporter *report.Reporter
	echo     report.Sender

	state atomic.Int32

	connMu sync.Mutex
	conn   net.Conn

	compilersMu sync.Mutex
	compilers   map[string]string
}

func New(cfg Config, dial Dialer, handler Handler, logger *slog.Logger) *Session {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	workers := 1
	if cfg.Concurrency != nil && *cfg.Concurrency > 0 {
		workers = *cfg.Concurrency
	}

	s := &Session{
		id:      uuid.NewString(),
		cfg:     cfg,
		dial:    dial,
		handler: handler,
		pool:    worker.New(workers),
	}
	s.logger = logger.With(
		slog.String("session", s.id),
		slog.String("host", cfg.HostName))
	s.reporter = report.New(s, cfg.Performance, cfg.ScrubPrefixes...)
	return s
}

// SetEcho mirrors every outgoing message to e, for local debugging
func (s *Session) SetEcho(e report.Sender) {
	s.echo = e
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(state State) {
	old := State(s.state.Swap(int32(state)))
	if old != state {
		s.logger.Debug("session state changed",
			slog.String("from", old.String()), slog.String("to", state.String()))
	}
}

// Run connects and serves the session until ctx is done, reconnecting
// after a flat delay whenever the connection fails. Socket loss never
// propagates out of this loop.
func (s *Session) Run(ctx context.Context) error {
	defer s.pool.Close()
	for {
		err := s.connectOnce(ctx)
		s.setState(Disconnected)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		delay := s.reconnectDelay()
		s.logger.Error("judge host connection lost",
			slog.Any("error", err), slog.Duration("retry_in", delay))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// reconnectDelay is the configured flat interval plus a little jitter
// so a fleet of judge hosts does not reconnect in lockstep
func (s *Session) reconnectDelay() time.Duration {
	d := s.cfg.ReconnectDelay
	return d + rand.N(d/10+1)
}

func (s *Session) handleTask(ctx context.Context, task *api.Task) {
	s.logger.Info("task dispatched",
		slog.String("rid", task.RID),
		slog.String("source", task.Source()),
		slog.Bool("rejudge", task.Rejudge || task.HackRejudge))
	s.handler.Handle(ctx, task, s.reporter.Task(task.RID))
}

func (s *Session) probeCompilers(ctx context.Context, langs map[string]api.LanguageConfig) {
	versions := s.cfg.Probe(ctx, langs)
	s.compilersMu.Lock()
	s.compilers = versions
	s.compilersMu.Unlock()
	s.logger.Info("compiler versions probed", slog.Int("count", len(versions)))
}

func (s *Session) heartbeatLoop(ctx context.Context) {
	t := time.NewTicker(s.cfg.HeartbeatInterval)
	defer t.Stop()
	for {
		if err := s.Send(api.NewStatus(s.hostInfo())); err != nil {
			s.logger.Warn("failed to send status heartbeat", slog.Any("error", err))
			return
		}
		select {
		case <-t.C:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) hostInfo() api.HostInfo {
	var info api.HostInfo
	if s.cfg.Info != nil {
		info = s.cfg.Info()
	} else {
		info = api.HostInfo{
			Platform: runtime.GOOS,
			Arch:     runtime.GOARCH,
			CPUs:     runtime.NumCPU(),
		}
	}
	s.compilersMu.Lock()
	if len(s.compilers) > 0 && info.Compilers == nil {
		info.Compilers = make(map[string]string, len(s.compilers))
		for k, v := range s.compilers {
			info.Compilers[k] = v
		}
	}
	s.compilersMu.Unlock()
	return info
}
