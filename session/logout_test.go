package session_test

import (
	"context"
	"net/http"
	"slices"
	"testing"

	"github.com/tailored-agentic-units/relay/ipc"
	"github.com/tailored-agentic-units/relay/kvstore"
	"github.com/tailored-agentic-units/relay/session"
	"github.com/tailored-agentic-units/relay/ui"
)

func TestLogout(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.login(t)
	f.db.SetValue(ctx, kvstore.TableShared, "sync_mylist_profile_guid", "P1")
	f.db.SetValue(ctx, kvstore.TableLocal, "autoselect_profile_guid", "P1")

	if err := f.access.Logout(ctx); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}

	if got := f.access.State(); got != session.LoggedOut {
		t.Errorf("State() = %v, want %v", got, session.LoggedOut)
	}
	if f.access.CookieCount() != 0 {
		t.Errorf("cookie jar holds %d cookies, want 0", f.access.CookieCount())
	}
	if keys, _ := f.cookies.List(ctx); len(keys) != 0 {
		t.Errorf("stored cookies = %v, want none", keys)
	}
	if v, _ := f.db.value(kvstore.TableSession, session.KeyESN); v != "" {
		t.Errorf("esn = %v, want empty", v)
	}
	if _, ok := f.db.value(kvstore.TableShared, "sync_mylist_profile_guid"); ok {
		t.Error("sync_mylist_profile_guid still stored")
	}
	if v, _ := f.db.value(kvstore.TableLocal, "autoselect_profile_guid"); v != "" {
		t.Errorf("autoselect_profile_guid = %v, want empty", v)
	}
	if f.creds.purged != 1 {
		t.Errorf("credentials purged %d times, want 1", f.creds.purged)
	}

	reinit := f.emitter.named(ipc.ReinitializeMSLHandler)
	if len(reinit) != 1 || reinit[0].data != true {
		t.Errorf("reinitialize_msl_handler emissions = %v, want exactly one with true", reinit)
	}
	if !slices.Equal(f.cache.clears, []bool{true}) {
		t.Errorf("cache clears = %v, want one wipe", f.cache.clears)
	}
	if got := f.site.hitCount("GET /SignOut"); got != 1 {
		t.Errorf("logout requested %d times, want 1", got)
	}
	if f.access.IsLoggedIn(ctx) {
		t.Error("IsLoggedIn() = true after logout")
	}
}

func TestLogout_SettingsSuspended(t *testing.T) {
	f := newFixture(t, true)
	f.login(t)

	f.access.Logout(context.Background())

	log := f.settings.log
	if len(log) < 2 || log[0] != "suspend=true" || log[len(log)-1] != "suspend=false" {
		t.Fatalf("settings log = %v, want writes between suspend and resume", log)
	}

	want := map[string]any{
		"lib_auto_upd_mode":          1,
		"lib_sync_mylist":            false,
		"autoselect_profile_name":    "",
		"autoselect_profile_enabled": false,
		"library_playback_profile":   "",
	}
	for k, v := range want {
		if got := f.settings.values[k]; got != v {
			t.Errorf("setting %s = %v, want %v", k, got, v)
		}
	}
}

func TestLogout_Navigation(t *testing.T) {
	f := newFixture(t, true)
	f.login(t)

	f.access.Logout(context.Background())

	if want := []string{session.NeutralPath, "/"}; !slices.Equal(f.ui.navigations, want) {
		t.Errorf("navigations = %v, want %v", f.ui.navigations, want)
	}
	last := f.ui.notifications[len(f.ui.notifications)-1]
	if last.msg != ui.DefaultCatalog.Get(ui.StrLogoutSuccess) {
		t.Errorf("last notification = %q, want logout success", last.msg)
	}
}

func TestLogout_RemoteFailure(t *testing.T) {
	f := newFixture(t, true)
	f.login(t)
	f.site.set(func(s *site) { s.logoutCode = http.StatusInternalServerError })

	if err := f.access.Logout(context.Background()); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if f.access.CookieCount() != 0 || f.creds.purged != 1 {
		t.Error("local logout steps skipped after remote failure")
	}
	if got := f.emitter.named(ipc.ReinitializeMSLHandler); len(got) != 1 {
		t.Errorf("reinitialize_msl_handler emitted %d times, want 1", len(got))
	}
}
