package session

import (
	"context"
	"fmt"
	"time"

	"github.com/tailored-agentic-units/relay/credentials"
	"github.com/tailored-agentic-units/relay/kvstore"
	"github.com/tailored-agentic-units/relay/memory"
	"github.com/tailored-agentic-units/relay/observability"
	"github.com/tailored-agentic-units/relay/ui"
)

// Credentials is the stored account secret.
type Credentials interface {
	Get() (credentials.Credentials, error)
	Purge() error
}

// LocalDB is the persistent key/value state the session reads and resets.
type LocalDB interface {
	GetString(ctx context.Context, table kvstore.Table, key, def string) string
	SetValue(ctx context.Context, table kvstore.Table, key string, value any) error
	DeleteKey(ctx context.Context, table kvstore.Table, key string) error
}

// Settings is the user settings surface touched by logout.
type Settings interface {
	Suspend(suspended bool)
	SetString(key, value string) error
	SetInt(key string, value int) error
	SetBool(key string, value bool) error
}

// ContentCache is the companion content cache.
type ContentCache interface {
	Clear(ctx context.Context, wipeStore bool) error
}

// Emitter sends fire-and-forget signals to dependent subsystems.
type Emitter interface {
	Emit(name string, data any) error
}

// Connectivity reports whether a network path to the website exists.
type Connectivity interface {
	Connected(ctx context.Context) bool
}

// Deps are the collaborators of an Access. Credentials, Cookies, LocalDB,
// Settings, Cache and Emitter are required; the rest have quiet defaults.
type Deps struct {
	Credentials  Credentials
	Cookies      memory.Store
	LocalDB      LocalDB
	Settings     Settings
	Cache        ContentCache
	Emitter      Emitter
	Notifier     ui.Notifier
	Navigator    ui.Navigator
	Connectivity Connectivity
	Observer     observability.Observer
	Catalog      ui.Catalog
}

func (d *Deps) validate() error {
	required := []struct {
		name string
		dep  any
	}{
		{"credentials", d.Credentials},
		{"cookies", d.Cookies},
		{"local db", d.LocalDB},
		{"settings", d.Settings},
		{"cache", d.Cache},
		{"emitter", d.Emitter},
	}
	for _, r := range required {
		if r.dep == nil {
			return fmt.Errorf("%w: %s", ErrMissingDependency, r.name)
		}
	}
	return nil
}

type quietUI struct{}

func (quietUI) ShowNotification(context.Context, string, time.Duration) {}
func (quietUI) ShowError(context.Context, string, string) {}
func (quietUI) ShowOKDialog(context.Context, string, string) {}
func (quietUI) ContainerUpdate(context.Context, string, bool) {}
