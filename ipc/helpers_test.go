package ipc_test

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/relay/ipc"
	"github.com/tailored-agentic-units/relay/signals"
)

const scope = "plugin.test"

// recorder is a slog.Handler that keeps every record for inspection.
type recorder struct {
	mu      sync.Mutex
	records []slog.Record
}

func (r *recorder) Enabled(context.Context, slog.Level) bool { return true }

func (r *recorder) Handle(_ context.Context, rec slog.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec.Clone())
	return nil
}

func (r *recorder) WithAttrs([]slog.Attr) slog.Handler { return r }
func (r *recorder) WithGroup(string) slog.Handler      { return r }

// errorKinds returns the "error" attribute of every error-level record.
func (r *recorder) errorKinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var kinds []string
	for _, rec := range r.records {
		if rec.Level < slog.LevelError {
			continue
		}
		rec.Attrs(func(a slog.Attr) bool {
			if a.Key == "error" {
				kinds = append(kinds, a.Value.String())
			}
			return true
		})
	}
	return kinds
}

func newRecorder() (*recorder, *slog.Logger) {
	rec := &recorder{}
	return rec, slog.New(rec)
}

func testConfig(logger *slog.Logger) ipc.Config {
	cfg := ipc.DefaultConfig()
	cfg.Scope = scope
	cfg.Timeout = 2 * time.Second
	cfg.Logger = logger
	return cfg
}

// newSignalTransport wires a transport over a fresh bus.
func newSignalTransport(t *testing.T, logger *slog.Logger) (*ipc.SignalTransport, signals.Bus) {
	t.Helper()

	busCfg := signals.DefaultConfig()
	busCfg.Name = scope
	busCfg.Logger = logger
	bus := signals.New(context.Background(), busCfg)
	emitter := signals.NewEmitter(bus, scope, 0, logger)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		emitter.Close(ctx)
		bus.Shutdown(5 * time.Second)
	})

	return ipc.NewSignalTransport(bus, emitter, testConfig(logger)), bus
}

// newHTTPTransport serves targets on an ephemeral loopback port.
func newHTTPTransport(t *testing.T, targets *ipc.Targets, logger *slog.Logger) (*ipc.HTTPTransport, *ipc.Server) {
	t.Helper()

	srv := ipc.NewServer(targets, logger)
	require.NoError(t, srv.Start(0))
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	cfg := testConfig(logger)
	cfg.OverHTTP = true
	return ipc.NewHTTPTransport(ipc.StaticPort(srv.Port()), cfg), srv
}

// closedPort returns a loopback port nothing listens on.
func closedPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}
