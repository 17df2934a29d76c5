package ipc

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tailored-agentic-units/relay/apierr"
	"github.com/tailored-agentic-units/relay/memory"
)

// CacheBackend is the cache served by CacheServer.
type CacheBackend interface {
	Get(key string) ([]byte, bool)
	Resolve(ctx context.Context, keys ...string) error
	Set(key string, value []byte)
	Delete(key string)
	Clear(ctx context.Context, wipeStore bool) error
}

// CacheServer exposes a CacheBackend to CacheClient callers. Failures are
// answered with a non-2xx status and the failure kind as body text.
type CacheServer struct {
	loopback

	cache CacheBackend
}

func NewCacheServer(cache CacheBackend, logger *slog.Logger) *CacheServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &CacheServer{cache: cache}
	s.name, s.handler, s.logger = "cache", s, logger
	return s
}

func (s *CacheServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	var params CacheParams
	if header := r.Header.Get(ParamsHeader); header != "" {
		if err := json.Unmarshal([]byte(header), &params); err != nil {
			s.fail(w, http.StatusBadRequest, apierr.New(apierr.MissingArgument, err.Error()))
			return
		}
	}

	switch strings.TrimPrefix(r.URL.Path, "/") {
	case CacheGet:
		s.get(w, r, params)
	case CacheAdd:
		s.add(w, r, params)
	case CacheDelete:
		key, ok := s.key(w, params)
		if !ok {
			return
		}
		s.cache.Delete(key)
		w.WriteHeader(http.StatusOK)
	case CacheClear:
		if err := s.cache.Clear(r.Context(), params.WipeStore); err != nil {
			s.fail(w, http.StatusInternalServerError, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	default:
		s.fail(w, http.StatusNotFound, apierr.ErrSlotNotFound)
	}
}

func (s *CacheServer) get(w http.ResponseWriter, r *http.Request, params CacheParams) {
	key, ok := s.key(w, params)
	if !ok {
		return
	}

	value, found := s.cache.Get(key)
	if !found {
		if err := s.cache.Resolve(r.Context(), key); err != nil {
			if memory.IsMiss(err) {
				s.fail(w, http.StatusNotFound, apierr.ErrCacheMiss)
				return
			}
			s.fail(w, http.StatusInternalServerError, err)
			return
		}
		value, found = s.cache.Get(key)
	}
	if !found {
		s.fail(w, http.StatusNotFound, apierr.ErrCacheMiss)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(value)
}

func (s *CacheServer) add(w http.ResponseWriter, r *http.Request, params CacheParams) {
	key, ok := s.key(w, params)
	if !ok {
		return
	}

	value, err := io.ReadAll(r.Body)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	s.cache.Set(key, value)
	w.WriteHeader(http.StatusOK)
}

func (s *CacheServer) key(w http.ResponseWriter, params CacheParams) (string, bool) {
	if params.Bucket == "" || params.Identifier == "" {
		s.fail(w, http.StatusBadRequest, apierr.New(apierr.MissingArgument, "bucket and identifier are required"))
		return "", false
	}
	return params.Bucket + "/" + params.Identifier, true
}

// fail writes the kind of err as the failure reason.
func (s *CacheServer) fail(w http.ResponseWriter, status int, err error) {
	kind := apierr.KindOf(err)
	if !apierr.IsExpected(kind) {
		s.logger.Error(
			"cache service call failed",
			slog.String("error", string(kind)),
			slog.String("message", apierr.MessageOf(err)),
		)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	io.WriteString(w, string(kind))
}
