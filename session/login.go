package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/tailored-agentic-units/relay/apierr"
	"github.com/tailored-agentic-units/relay/credentials"
	"github.com/tailored-agentic-units/relay/ipc"
	"github.com/tailored-agentic-units/relay/kvstore"
	"github.com/tailored-agentic-units/relay/observability"
	"github.com/tailored-agentic-units/relay/ui"
	"github.com/tailored-agentic-units/relay/website"
)

// membershipNoticeTime keeps the membership notification up longer than
// the default.
const membershipNoticeTime = 10 * time.Second

// LoginOptions controls how login failures are reported. The zero value is
// an interactive login: credential and membership failures are shown in a
// dialog and Login returns (false, nil).
type LoginOptions struct {
	// Silent returns those failures to the caller instead of showing them.
	Silent bool `json:"silent,omitempty"`
}

// UnmarshalJSON also accepts the frontend form {"modal_error_message": bool},
// where false means silent.
func (o *LoginOptions) UnmarshalJSON(data []byte) error {
	var wire struct {
		Silent *bool `json:"silent"`
		Modal  *bool `json:"modal_error_message"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*o = LoginOptions{}
	if wire.Modal != nil {
		o.Silent = !*wire.Modal
	}
	if wire.Silent != nil {
		o.Silent = *wire.Silent
	}
	return nil
}

// PrefetchLogin attempts a silent login with the stored credentials. It runs
// once per Access; later calls return immediately. Failures never escape:
// they are logged or shown as passive notifications.
func (a *Access) PrefetchLogin(ctx context.Context) {
	a.prefetch.Do(func() { a.prefetchLogin(ctx) })
}

// IsPrefetchLogin reports whether the startup prefetch ran to completion
// without a failure, whatever the resulting state.
func (a *Access) IsPrefetchLogin() bool {
	return a.prefetched.Load()
}

func (a *Access) prefetchLogin(ctx context.Context) {
	a.observer.OnEvent(ctx, observability.Event{
		Type:      EventPrefetchStart,
		Level:     observability.LevelVerbose,
		Timestamp: time.Now(),
		Source:    "session.PrefetchLogin",
	})

	outcome := a.runPrefetch(ctx)

	a.observer.OnEvent(ctx, observability.Event{
		Type:      EventPrefetchComplete,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "session.PrefetchLogin",
		Data: map[string]any{
			"outcome": outcome,
			"state":   a.State().String(),
		},
	})
}

func (a *Access) runPrefetch(ctx context.Context) string {
	if _, err := a.deps.Credentials.Get(); err != nil {
		a.logger.InfoContext(ctx, "Login prefetch: no stored credentials are available")
		return "no_credentials"
	}

	if a.IsLoggedIn(ctx) {
		a.prefetched.Store(true)
		return "already_logged_in"
	}

	ok, err := a.Login(ctx, LoginOptions{Silent: true})
	if err == nil {
		a.prefetched.Store(true)
		if ok {
			return "logged_in"
		}
		return "logged_out"
	}

	switch {
	case errors.Is(err, apierr.ErrMissingCredentials):
		a.logger.InfoContext(ctx, "Login prefetch: no stored credentials are available")
		return "no_credentials"
	case errors.Is(err, apierr.ErrLoginFailed),
		errors.Is(err, apierr.ErrLoginValidate),
		errors.Is(err, apierr.ErrLoginValidateIncorrectPassword):
		a.notifier.ShowNotification(ctx, a.catalog.Get(ui.StrLoginFailed), 0)
		a.purgeCredentials(ctx)
		return "invalid_credentials"
	case errors.Is(err, apierr.ErrInvalidMembershipStatus),
		errors.Is(err, apierr.ErrInvalidMembershipStatusAnonymous):
		a.notifier.ShowNotification(ctx, a.catalog.Get(ui.StrMembershipInvalid), membershipNoticeTime)
		return "invalid_membership"
	default:
		a.logger.ErrorContext(ctx, "Login prefetch: request failed", slog.String("error", err.Error()))
		return "request_failed"
	}
}

// Login signs in with the stored credentials. On success the cookies are
// persisted under the account hash and the session is LoggedIn. A failure
// never leaves cookies from the attempt in the jar.
func (a *Access) Login(ctx context.Context, opts LoginOptions) (bool, error) {
	a.setState(LoggingIn)
	a.observer.OnEvent(ctx, observability.Event{
		Type:      EventLoginStart,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "session.Login",
		Data:      map[string]any{"silent": opts.Silent},
	})

	ok, err := a.login(ctx, opts)
	if ok {
		a.setState(LoggedIn)
	} else {
		a.setState(LoggedOut)
	}

	event := observability.NewEvent(EventLoginComplete, observability.LevelInfo, "session.Login",
		map[string]any{"logged_in": ok})
	if err != nil {
		event.Type = EventLoginFailed
		event = event.WithError(err)
	}
	a.observer.OnEvent(ctx, event)

	return ok, err
}

func (a *Access) login(ctx context.Context, opts LoginOptions) (bool, error) {
	creds, err := a.deps.Credentials.Get()
	if err != nil {
		return false, err
	}

	data, err := a.submitLogin(ctx, creds)
	if err == nil {
		err = a.completeLogin(ctx, creds, data)
	}
	if err == nil {
		a.notifier.ShowNotification(ctx, a.catalog.Get(ui.StrLoginSuccess), 0)
		return true, nil
	}

	switch apierr.KindOf(err) {
	case apierr.LoginValidateError, apierr.LoginValidateErrorIncorrectPassword:
		a.clearCookies(ctx, false)
		a.purgeCredentials(ctx)
		if opts.Silent {
			return false, err
		}
		a.notifier.ShowOKDialog(ctx, a.catalog.Get(ui.StrLoginTitle), apierr.MessageOf(err))
		return false, nil

	case apierr.InvalidMembershipStatusError, apierr.InvalidMembershipStatusAnonymous:
		a.clearCookies(ctx, false)
		if opts.Silent {
			return false, err
		}
		a.notifier.ShowError(ctx, a.catalog.Get(ui.StrLoginTitle), a.catalog.Get(ui.StrMembershipInvalid))
		return false, nil

	default:
		a.clearCookies(ctx, false)
		return false, err
	}
}

func (a *Access) submitLogin(ctx context.Context, creds credentials.Credentials) (website.SessionData, error) {
	page, err := a.do(ctx, http.MethodGet, Request{Endpoint: EndpointLogin})
	if err != nil {
		return website.SessionData{}, err
	}
	authURL, err := website.ExtractAuthURL(page)
	if err != nil {
		return website.SessionData{}, err
	}

	body, err := a.do(ctx, http.MethodPost, Request{
		Endpoint: EndpointLogin,
		form:     loginPayload(creds, authURL),
	})
	if errors.Is(err, ErrStatus) {
		return website.SessionData{}, apierr.New(apierr.LoginFailedError, err.Error())
	}
	if err != nil {
		return website.SessionData{}, err
	}

	return website.ExtractSessionData(body, true)
}

func (a *Access) completeLogin(ctx context.Context, creds credentials.Credentials, data website.SessionData) error {
	a.setAuthURL(data.AuthURL)
	if err := a.storeESN(ctx, data.ESN); err != nil {
		return err
	}
	return a.saveCookies(ctx, AccountHash(creds.Email))
}

// storeESN records a device id reported by the website. An empty id keeps
// the stored one.
func (a *Access) storeESN(ctx context.Context, esn string) error {
	if esn == "" {
		return nil
	}
	current := a.deps.LocalDB.GetString(ctx, kvstore.TableSession, KeyESN, "")
	if current == esn {
		return nil
	}
	if err := a.deps.LocalDB.SetValue(ctx, kvstore.TableSession, KeyESN, esn); err != nil {
		return err
	}
	if err := a.deps.Emitter.Emit(ipc.ESNChanged, map[string]any{"esn": esn}); err != nil {
		a.logger.WarnContext(ctx, "failed to signal ESN change", slog.String("error", err.Error()))
	}
	return nil
}

func (a *Access) purgeCredentials(ctx context.Context) {
	if err := a.deps.Credentials.Purge(); err != nil {
		a.logger.ErrorContext(ctx, "failed to purge credentials", slog.String("error", err.Error()))
	}
}

func loginPayload(creds credentials.Credentials, authURL string) url.Values {
	return url.Values{
		"userLoginId":  {creds.Email},
		"email":        {creds.Email},
		"password":     {creds.Password},
		"rememberMe":   {"true"},
		"flow":         {"websiteSignUp"},
		"mode":         {"login"},
		"action":       {"loginAction"},
		"withFields":   {"rememberMe,nextPage,userLoginId,password,email"},
		"authURL":      {authURL},
		"nextPage":     {""},
		"showPassword": {""},
	}
}
