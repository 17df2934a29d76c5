package observability_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tailored-agentic-units/relay/observability"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    slog.Level
		wantErr bool
	}{
		{name: "debug", want: slog.LevelDebug},
		{name: "INFO", want: slog.LevelInfo},
		{name: "", want: slog.LevelInfo},
		{name: "warning", want: slog.LevelWarn},
		{name: " error ", want: slog.LevelError},
		{name: "loud", want: slog.LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := observability.ParseLevel(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestLogConfig_Merge(t *testing.T) {
	cfg := observability.DefaultLogConfig()
	cfg.Merge(&observability.LogConfig{Level: "debug"})

	if cfg.Level != "debug" {
		t.Errorf("Level = %q, want %q", cfg.Level, "debug")
	}
	if cfg.Format != observability.FormatConsole {
		t.Errorf("Format = %q, want %q", cfg.Format, observability.FormatConsole)
	}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestZerologHandler_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(observability.NewZerologHandler(zerolog.New(&buf), slog.LevelDebug))

	logger.With("callname", "login").WithGroup("ipc").Error(
		"IPC call returned an error",
		slog.String("error", "LoginFailedError"),
		slog.Int("attempt", 2),
		slog.Bool("modal", true),
		slog.Any("cause", errors.New("boom")),
		slog.Group("port", slog.Int("service", 8001)),
	)

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	got := lines[0]

	want := map[string]any{
		"level":            "error",
		"message":          "IPC call returned an error",
		"callname":         "login",
		"ipc.error":        "LoginFailedError",
		"ipc.attempt":      float64(2),
		"ipc.modal":        true,
		"ipc.cause":        "boom",
		"ipc.port.service": float64(8001),
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
	if _, ok := got["time"]; !ok {
		t.Error("missing time field")
	}
}

func TestZerologHandler_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(observability.NewZerologHandler(zerolog.New(&buf), slog.LevelWarn))

	logger.Info("dropped")
	logger.Warn("kept")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if lines[0]["message"] != "kept" || lines[0]["level"] != "warn" {
		t.Errorf("line = %v, want warn 'kept'", lines[0])
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     observability.LogConfig
		wantErr bool
		check   func(t *testing.T, out string)
	}{
		{
			name: "json",
			cfg:  observability.LogConfig{Level: "info", Format: observability.FormatJSON},
			check: func(t *testing.T, out string) {
				if !strings.Contains(out, `"message":"session ready"`) {
					t.Errorf("output = %q, want JSON message", out)
				}
			},
		},
		{
			name: "console",
			cfg:  observability.DefaultLogConfig(),
			check: func(t *testing.T, out string) {
				if !strings.Contains(out, "session ready") || strings.Contains(out, `"message"`) {
					t.Errorf("output = %q, want console line", out)
				}
			},
		},
		{name: "bad level", cfg: observability.LogConfig{Level: "loud"}, wantErr: true},
		{name: "bad format", cfg: observability.LogConfig{Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := observability.NewLogger(tt.cfg, &buf)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewLogger() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			logger.Info("session ready")
			tt.check(t, buf.String())
		})
	}
}
