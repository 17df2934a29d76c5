package ipc

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tailored-agentic-units/relay/apierr"
)

// Server hosts registered targets for HTTPTransport callers at POST /<name>.
// Error envelopes are written with status 500; an unknown name answers 404
// with a SlotNotFound envelope.
type Server struct {
	loopback

	targets *Targets
	adapter *Adapter
}

func NewServer(targets *Targets, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		targets: targets,
		adapter: NewAdapter(ModeHTTP, nil, logger),
	}
	s.name, s.handler, s.logger = "ipc", s, logger
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/")
	rc, ok := s.targets.Get(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, Envelope{
			Error:   string(apierr.SlotNotFound),
			Message: "Unable to find the IPC function " + name,
		})
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, NewEnvelope(err))
		return
	}

	result := s.adapter.Invoke(r.Context(), rc, Payload(body))
	switch v := result.(type) {
	case Envelope:
		writeJSON(w, http.StatusInternalServerError, v)
	case nil:
		writeJSON(w, http.StatusOK, map[string]any{})
	default:
		writeJSON(w, http.StatusOK, v)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		data, _ = json.Marshal(NewEnvelope(err))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
