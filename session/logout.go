package session

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/tailored-agentic-units/relay/ipc"
	"github.com/tailored-agentic-units/relay/kvstore"
	"github.com/tailored-agentic-units/relay/observability"
	"github.com/tailored-agentic-units/relay/ui"
)

// Settings and database keys reset by logout.
const (
	settingAutoUpdateMode     = "lib_auto_upd_mode"
	settingSyncMyList         = "lib_sync_mylist"
	settingAutoselectName     = "autoselect_profile_name"
	settingAutoselectEnabled  = "autoselect_profile_enabled"
	settingPlaybackProfile    = "library_playback_profile"
	keySyncMyListProfile      = "sync_mylist_profile_guid"
	keyAutoselectProfile      = "autoselect_profile_guid"
	keyLibraryPlaybackProfile = "library_playback_profile_guid"
)

// NeutralPath is visited before the home path on logout so the frontend
// drops any rendered state.
const NeutralPath = "path"

type logoutStep struct {
	name string
	run  func(ctx context.Context) error
}

// Logout ends the session. The remote logout request is best effort; every
// local reset step runs even when an earlier one fails. The session ends
// LoggedOut.
func (a *Access) Logout(ctx context.Context) error {
	a.setState(LoggingOut)
	defer a.setState(LoggedOut)

	a.observer.OnEvent(ctx, observability.Event{
		Type:      EventLogoutStart,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "session.Logout",
	})

	if _, err := a.do(ctx, http.MethodGet, Request{Endpoint: EndpointLogout}); err != nil {
		a.logger.WarnContext(ctx, "remote logout failed, continuing", slog.String("error", err.Error()))
	}

	a.deps.Settings.Suspend(true)
	failed := 0
	for _, step := range a.logoutSteps() {
		if err := step.run(ctx); err != nil {
			failed++
			a.logger.WarnContext(
				ctx,
				"logout step failed",
				slog.String("step", step.name),
				slog.String("error", err.Error()),
			)
		}
	}
	a.deps.Settings.Suspend(false)

	a.notifier.ShowNotification(ctx, a.catalog.Get(ui.StrLogoutSuccess), 0)
	a.resetTransport()

	a.navigator.ContainerUpdate(ctx, NeutralPath, true)
	a.navigator.ContainerUpdate(ctx, a.cfg.HomePath, true)

	a.observer.OnEvent(ctx, observability.Event{
		Type:      EventLogoutComplete,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "session.Logout",
		Data:      map[string]any{"failed_steps": failed},
	})
	return nil
}

func (a *Access) logoutSteps() []logoutStep {
	db := a.deps.LocalDB
	settings := a.deps.Settings

	return []logoutStep{
		{"reset feature flags", func(ctx context.Context) error {
			if err := settings.SetInt(settingAutoUpdateMode, 1); err != nil {
				return err
			}
			if err := settings.SetBool(settingSyncMyList, false); err != nil {
				return err
			}
			return db.DeleteKey(ctx, kvstore.TableShared, keySyncMyListProfile)
		}},
		{"reset profile selection", func(ctx context.Context) error {
			a.resetProfile()
			if err := db.DeleteKey(ctx, kvstore.TableLocal, KeyActiveProfile); err != nil {
				return err
			}
			if err := db.SetValue(ctx, kvstore.TableLocal, keyAutoselectProfile, ""); err != nil {
				return err
			}
			if err := settings.SetString(settingAutoselectName, ""); err != nil {
				return err
			}
			if err := settings.SetBool(settingAutoselectEnabled, false); err != nil {
				return err
			}
			if err := db.SetValue(ctx, kvstore.TableLocal, keyLibraryPlaybackProfile, ""); err != nil {
				return err
			}
			return settings.SetString(settingPlaybackProfile, "")
		}},
		{"clear cookies", func(ctx context.Context) error {
			a.clearCookies(ctx, true)
			return nil
		}},
		{"purge credentials", func(ctx context.Context) error {
			return a.deps.Credentials.Purge()
		}},
		{"clear esn", func(ctx context.Context) error {
			return db.SetValue(ctx, kvstore.TableSession, KeyESN, "")
		}},
		{"reinitialize msl handler", func(ctx context.Context) error {
			return a.deps.Emitter.Emit(ipc.ReinitializeMSLHandler, true)
		}},
		{"clear content cache", func(ctx context.Context) error {
			return a.deps.Cache.Clear(ctx, true)
		}},
	}
}
