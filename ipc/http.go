package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tailored-agentic-units/relay/apierr"
)

// PortSource yields the loopback port of a service. It is consulted on
// every call since the service may move between calls.
type PortSource interface {
	Port(ctx context.Context) int
}

// PortFunc adapts a function to PortSource.
type PortFunc func(ctx context.Context) int

func (f PortFunc) Port(ctx context.Context) int {
	return f(ctx)
}

// StaticPort is a PortSource that always answers port.
func StaticPort(port int) PortSource {
	return PortFunc(func(context.Context) int { return port })
}

// newLoopbackClient builds a client that never consults proxy settings.
func newLoopbackClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: nil,
		},
	}
}

func loopbackURL(port int, name string) string {
	return fmt.Sprintf("http://127.0.0.1:%d/%s", port, name)
}

// notReady converts a connection failure into BackendNotReady.
func notReady(logger *slog.Logger, err error) error {
	msg := err.Error()
	if strings.Contains(msg, "10049") {
		msg += localhostHint
	}
	logger.Error(msg)
	return apierr.New(apierr.BackendNotReady, msg)
}

// HTTPTransport calls targets served by the loopback Server.
type HTTPTransport struct {
	ports  PortSource
	client *http.Client
	logger *slog.Logger
}

func NewHTTPTransport(ports PortSource, cfg Config) *HTTPTransport {
	return &HTTPTransport{
		ports:  ports,
		client: newLoopbackClient(cfg.timeout()),
		logger: cfg.logger(),
	}
}

// Call POSTs data as JSON to the named endpoint. The response body is the
// result whatever the HTTP status; its shape decides success or failure.
func (t *HTTPTransport) Call(ctx context.Context, name string, data any) (json.RawMessage, error) {
	t.logger.Debug("handling HTTP IPC call", slog.String("callname", name))

	body, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	url := loopbackURL(t.ports.Port(ctx), name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("call cancelled: %w", ctx.Err())
		}
		return nil, notReady(t.logger, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, notReady(t.logger, err)
	}
	if !json.Valid(raw) {
		return nil, apierr.Newf(apierr.Generic, "invalid JSON response from %s (status %d)", name, resp.StatusCode)
	}

	result := json.RawMessage(raw)
	if err := raiseForError(t.logger, name, result); err != nil {
		return nil, err
	}
	return result, nil
}
