// Package observability reports what the relay backend does: session
// transitions, IPC failures and service lifecycle. Subsystems emit Events to
// an Observer; the slog observer turns them into log records through the
// zerolog-backed handler every package logs with.
//
// Levels use the OpenTelemetry SeverityNumber scale so events can be
// forwarded to a collector unchanged.
package observability

import (
	"context"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/tailored-agentic-units/relay/apierr"
)

// Level is an OTel SeverityNumber.
type Level int

const (
	LevelVerbose Level = 5
	LevelInfo    Level = 9
	LevelWarning Level = 13
	LevelError   Level = 17
)

func (l Level) String() string {
	switch {
	case l <= 4:
		return "TRACE"
	case l <= 8:
		return "DEBUG"
	case l <= 12:
		return "INFO"
	case l <= 16:
		return "WARN"
	case l <= 20:
		return "ERROR"
	default:
		return "FATAL"
	}
}

// SlogLevel maps l onto the four slog levels.
func (l Level) SlogLevel() slog.Level {
	switch {
	case l <= 8:
		return slog.LevelDebug
	case l <= 12:
		return slog.LevelInfo
	case l <= 16:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// LevelOf grades the outcome of a session or IPC operation. Routine misses
// and absent credentials are verbose; conditions the user can recover from
// (no network, logged out, rejected login) are warnings; anything without a
// known kind is an error.
func LevelOf(err error) Level {
	if err == nil {
		return LevelInfo
	}
	kind := apierr.KindOf(err)
	switch {
	case apierr.IsExpected(kind), kind == apierr.MissingCredentialsError:
		return LevelVerbose
	case kind == apierr.Generic:
		return LevelError
	default:
		if _, ok := apierr.Lookup(kind); ok {
			return LevelWarning
		}
		return LevelError
	}
}

// EventType names an event as "<subsystem>.<subject>.<action>", for example
// "session.login.failed" or "service.start".
type EventType string

// Subsystem returns the leading segment of the type.
func (t EventType) Subsystem() string {
	sub, _, _ := strings.Cut(string(t), ".")
	return sub
}

// Event is one observation. Type maps to the OTel EventName, Source to the
// InstrumentationScope and Data to Attributes.
type Event struct {
	Type      EventType
	Level     Level
	Timestamp time.Time
	Source    string
	Data      map[string]any
}

// NewEvent stamps an event with the current time. data is copied.
func NewEvent(typ EventType, level Level, source string, data map[string]any) Event {
	return Event{
		Type:      typ,
		Level:     level,
		Timestamp: time.Now(),
		Source:    source,
		Data:      maps.Clone(data),
	}
}

// WithError records err's wire kind under "error" and raises the level to
// LevelOf(err) when that is more severe. A nil err leaves e unchanged.
func (e Event) WithError(err error) Event {
	if err == nil {
		return e
	}
	data := maps.Clone(e.Data)
	if data == nil {
		data = make(map[string]any, 1)
	}
	data["error"] = string(apierr.KindOf(err))
	e.Data = data
	e.Level = max(e.Level, LevelOf(err))
	return e
}

// Observer receives events. Implementations must be safe for concurrent use:
// session slots run on the bus worker pool and on HTTP handler goroutines.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}
