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

	"github.com/tailored-agentic-units/relay/apierr"
)

// Endpoints of the cache service.
const (
	CacheGet    = "cache_get"
	CacheAdd    = "cache_add"
	CacheDelete = "cache_delete"
	CacheClear  = "cache_clear"
)

// ParamsHeader carries the JSON-encoded parameters of a cache call.
const ParamsHeader = "Params"

// CacheParams addresses an entry of the cache service.
type CacheParams struct {
	Bucket     string `json:"bucket,omitempty"`
	Identifier string `json:"identifier,omitempty"`
	WipeStore  bool   `json:"wipe_store,omitempty"`
}

// CacheClient calls the cache service. Values travel as raw bytes in the
// body while parameters ride in the Params header.
type CacheClient struct {
	ports  PortSource
	client *http.Client
	logger *slog.Logger
}

func NewCacheClient(ports PortSource, cfg Config) *CacheClient {
	return &CacheClient{
		ports:  ports,
		client: newLoopbackClient(cfg.timeout()),
		logger: cfg.logger(),
	}
}

// Call POSTs data to the named endpoint. A non-2xx status carries the failure
// reason as body text; a reason naming a known kind is raised as that kind.
func (c *CacheClient) Call(ctx context.Context, name string, params any, data []byte) ([]byte, error) {
	header, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	url := loopbackURL(c.ports.Port(ctx), name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(ParamsHeader, string(header))
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("call cancelled: %w", ctx.Err())
		}
		return nil, notReady(c.logger, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, notReady(c.logger, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reason := strings.TrimSpace(string(body))
		if reason == "" {
			reason = http.StatusText(resp.StatusCode)
		}
		if ctor, ok := apierr.Lookup(apierr.Kind(reason)); ok {
			return nil, ctor("")
		}
		return nil, apierr.Newf(apierr.Generic, "The service has returned: %s", reason)
	}
	return body, nil
}

// Get returns the cached value. A missing entry fails with CacheMiss.
func (c *CacheClient) Get(ctx context.Context, bucket, identifier string) ([]byte, error) {
	return c.Call(ctx, CacheGet, CacheParams{Bucket: bucket, Identifier: identifier}, nil)
}

func (c *CacheClient) Add(ctx context.Context, bucket, identifier string, value []byte) error {
	_, err := c.Call(ctx, CacheAdd, CacheParams{Bucket: bucket, Identifier: identifier}, value)
	return err
}

func (c *CacheClient) Delete(ctx context.Context, bucket, identifier string) error {
	_, err := c.Call(ctx, CacheDelete, CacheParams{Bucket: bucket, Identifier: identifier}, nil)
	return err
}

// Clear drops every cached entry; wipeStore also empties the persisted store.
func (c *CacheClient) Clear(ctx context.Context, wipeStore bool) error {
	_, err := c.Call(ctx, CacheClear, CacheParams{WipeStore: wipeStore}, nil)
	return err
}
