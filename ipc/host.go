package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
)

// loopback runs an http.Server bound to 127.0.0.1.
type loopback struct {
	name    string
	handler http.Handler
	logger  *slog.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	done     chan struct{}
}

// Start binds the server to port and serves in the background. A zero port
// picks a free one; read it back with Port.
func (l *loopback) Start(port int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.server != nil {
		return fmt.Errorf("%s already started on port %d", l.name, l.port())
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return fmt.Errorf("%s listen: %w", l.name, err)
	}

	l.listener = listener
	l.server = &http.Server{Handler: l.handler}
	l.done = make(chan struct{})

	go func(server *http.Server, done chan struct{}) {
		defer close(done)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.logger.Error(
				"loopback server stopped",
				slog.String("server", l.name),
				slog.String("error", err.Error()),
			)
		}
	}(l.server, l.done)

	l.logger.Info(
		"loopback server listening",
		slog.String("server", l.name),
		slog.Int("port", l.port()),
	)
	return nil
}

// Port returns the bound port, or 0 when the server is not running.
func (l *loopback) Port() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.port()
}

func (l *loopback) port() int {
	if l.listener == nil {
		return 0
	}
	if addr, ok := l.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

func (l *loopback) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	server, done := l.server, l.done
	l.server, l.listener, l.done = nil, nil, nil
	l.mu.Unlock()

	if server == nil {
		return nil
	}
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("%s shutdown: %w", l.name, err)
	}
	<-done
	return nil
}
