package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tailored-agentic-units/relay/kvstore"
	"github.com/tailored-agentic-units/relay/observability"
)

// ActivateProfile makes the profile identified by guid the active one for
// the website session. The switch is skipped when that profile is already
// active in the current session. On success the refreshed auth token is
// kept, the guid is recorded under KeyActiveProfile and the cookies are
// saved again.
func (a *Access) ActivateProfile(ctx context.Context, guid string) error {
	if guid == "" {
		return fmt.Errorf("%w: empty profile guid", ErrInvalidProfile)
	}
	if err := a.AssertLoggedIn(ctx); err != nil {
		return err
	}

	a.switchMu.Lock()
	defer a.switchMu.Unlock()

	authURL, active := a.profileSession()
	current := a.ActiveProfile(ctx)
	if active && guid == current {
		a.logger.InfoContext(ctx, "profile session still active, activation not needed", slog.String("guid", guid))
		return nil
	}

	a.logger.InfoContext(ctx, "activating profile", slog.String("guid", guid))
	_, err := a.do(ctx, http.MethodGet, Request{
		Endpoint: EndpointActivateProfile,
		Params: map[string]string{
			"switchProfileGuid": guid,
			"_":                 strconv.FormatInt(a.now().UnixMilli(), 10),
			"authURL":           authURL,
		},
	})
	if err != nil {
		return err
	}

	page, err := a.do(ctx, http.MethodGet, Request{Endpoint: EndpointBrowse})
	if err != nil {
		return err
	}
	if _, err := a.ExtractSessionData(ctx, page, false); err != nil {
		return err
	}
	a.profileMu.Lock()
	a.profileActive = true
	a.profileMu.Unlock()

	if err := a.deps.LocalDB.SetValue(ctx, kvstore.TableLocal, KeyActiveProfile, guid); err != nil {
		return err
	}
	if hash := a.deps.LocalDB.GetString(ctx, kvstore.TableLocal, KeyAccountHash, ""); hash != "" {
		if err := a.saveCookies(ctx, hash); err != nil {
			return err
		}
	}

	a.observer.OnEvent(ctx, observability.NewEvent(EventProfileActivated, observability.LevelInfo,
		"session.ActivateProfile", map[string]any{"guid": guid, "previous": current}))
	return nil
}

// ActiveProfile returns the guid recorded by the last profile switch.
func (a *Access) ActiveProfile(ctx context.Context) string {
	return a.deps.LocalDB.GetString(ctx, kvstore.TableLocal, KeyActiveProfile, "")
}

func (a *Access) profileSession() (authURL string, active bool) {
	a.profileMu.Lock()
	defer a.profileMu.Unlock()
	return a.authURL, a.profileActive
}

func (a *Access) setAuthURL(authURL string) {
	if authURL == "" {
		return
	}
	a.profileMu.Lock()
	a.authURL = authURL
	a.profileMu.Unlock()
}

// resetProfile forgets the profile session of a closed website session.
func (a *Access) resetProfile() {
	a.profileMu.Lock()
	a.authURL = ""
	a.profileActive = false
	a.profileMu.Unlock()
}
