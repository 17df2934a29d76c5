package ipc_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/relay/apierr"
	"github.com/tailored-agentic-units/relay/ipc"
	"github.com/tailored-agentic-units/relay/memory"
)

func newCacheClient(t *testing.T) (*ipc.CacheClient, memory.Store, *recorder) {
	t.Helper()

	logs, logger := newRecorder()
	store := memory.NewMapStore()
	srv := ipc.NewCacheServer(memory.NewCache(store), logger)
	require.NoError(t, srv.Start(0))
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	return ipc.NewCacheClient(ipc.StaticPort(srv.Port()), testConfig(logger)), store, logs
}

func TestCacheClient_RoundTrip(t *testing.T) {
	client, _, _ := newCacheClient(t)
	ctx := context.Background()

	require.NoError(t, client.Add(ctx, "profiles", "ABC", []byte{0x00, 0xff, 0x10}))

	got, err := client.Get(ctx, "profiles", "ABC")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xff, 0x10}, got)

	require.NoError(t, client.Delete(ctx, "profiles", "ABC"))
	_, err = client.Get(ctx, "profiles", "ABC")
	assert.ErrorIs(t, err, apierr.ErrCacheMiss)
}

func TestCacheClient_MissNotLogged(t *testing.T) {
	client, _, logs := newCacheClient(t)

	_, err := client.Get(context.Background(), "profiles", "unknown")
	require.ErrorIs(t, err, apierr.ErrCacheMiss)
	assert.NotContains(t, logs.errorKinds(), "CacheMiss")
}

func TestCacheClient_ReadsThroughStore(t *testing.T) {
	client, store, _ := newCacheClient(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, memory.Entry{Key: "lists/mylist", Value: []byte("persisted")}))

	got, err := client.Get(ctx, "lists", "mylist")
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(got))
}

func TestCacheClient_Clear(t *testing.T) {
	client, store, _ := newCacheClient(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, memory.Entry{Key: "lists/mylist", Value: []byte("persisted")}))
	require.NoError(t, client.Add(ctx, "profiles", "ABC", []byte("v")))

	require.NoError(t, client.Clear(ctx, true))

	_, err := client.Get(ctx, "lists", "mylist")
	assert.ErrorIs(t, err, apierr.ErrCacheMiss)
	keys, _ := store.List(ctx)
	assert.Empty(t, keys)
}

func TestCacheClient_MissingParams(t *testing.T) {
	client, _, _ := newCacheClient(t)

	_, err := client.Get(context.Background(), "", "")
	assert.ErrorIs(t, err, apierr.ErrMissingArgument)
}

func TestCacheClient_UnknownReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get(ipc.ParamsHeader))
		http.Error(w, "DatabaseLocked", http.StatusInternalServerError)
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	_, logger := newRecorder()
	client := ipc.NewCacheClient(ipc.StaticPort(port), testConfig(logger))

	_, err = client.Get(context.Background(), "profiles", "ABC")
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierr.Generic, apiErr.Kind)
	assert.Equal(t, "The service has returned: DatabaseLocked", apiErr.Message)
}

func TestCacheClient_BackendNotReady(t *testing.T) {
	_, logger := newRecorder()
	client := ipc.NewCacheClient(ipc.StaticPort(closedPort(t)), testConfig(logger))

	_, err := client.Get(context.Background(), "profiles", "ABC")
	assert.ErrorIs(t, err, apierr.ErrBackendNotReady)
}

func TestHTTPTransport_ErrorStatusWithJSONBody(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		want    string
	}{
		{name: "error body with 200", status: http.StatusOK, body: `{"error":"NotLoggedInError","message":"x"}`, wantErr: apierr.ErrNotLoggedIn},
		{name: "error body with 500", status: http.StatusInternalServerError, body: `{"error":"NotLoggedInError","message":"x"}`, wantErr: apierr.ErrNotLoggedIn},
		{name: "success body with 404", status: http.StatusNotFound, body: `{"b":1,"a":2}`, want: `{"b":1,"a":2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/get_safe", r.URL.Path)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			u, _ := url.Parse(srv.URL)
			port, _ := strconv.Atoi(u.Port())
			_, logger := newRecorder()
			ht := ipc.NewHTTPTransport(ipc.StaticPort(port), testConfig(logger))

			raw, err := ht.Call(context.Background(), "get_safe", map[string]any{"endpoint": "profiles"})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			// Key order of the response is preserved.
			assert.Equal(t, tt.want, string(raw))
		})
	}
}
