package session

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tailored-agentic-units/relay/apierr"
	"github.com/tailored-agentic-units/relay/ipc"
	"github.com/tailored-agentic-units/relay/website"
)

// ExtractSessionData reads the session profile from a website page and
// records its ESN. When the page shows the website closed the session (a
// login error or an anonymous membership) the session is torn down:
// credentials are purged, cookies cleared, dependents told to drop their
// user tokens, and NotLoggedInError returned.
func (a *Access) ExtractSessionData(ctx context.Context, page []byte, validate bool) (website.SessionData, error) {
	data, err := website.ExtractSessionData(page, validate)
	if err != nil {
		switch apierr.KindOf(err) {
		case apierr.LoginValidateError,
			apierr.LoginValidateErrorIncorrectPassword,
			apierr.InvalidMembershipStatusAnonymous:
			a.logger.WarnContext(ctx, "session closed by the website", slog.String("error", err.Error()))
			a.purgeCredentials(ctx)
			a.clearCookies(ctx, true)
			if emitErr := a.deps.Emitter.Emit(ipc.ClearUserIDTokens, nil); emitErr != nil {
				a.logger.WarnContext(ctx, "failed to signal token cleanup", slog.String("error", emitErr.Error()))
			}
			a.settle(false)
			return website.SessionData{}, apierr.New(apierr.NotLoggedInError, apierr.MessageOf(err))
		}
		return website.SessionData{}, err
	}

	a.setAuthURL(data.AuthURL)
	if err := a.storeESN(ctx, data.ESN); err != nil {
		return data, err
	}
	return data, nil
}

// RefreshSessionData loads the browse page of a verified session and
// extracts its profile.
func (a *Access) RefreshSessionData(ctx context.Context) (website.SessionData, error) {
	if err := a.AssertLoggedIn(ctx); err != nil {
		return website.SessionData{}, err
	}
	page, err := a.do(ctx, http.MethodGet, Request{Endpoint: EndpointBrowse})
	if err != nil {
		return website.SessionData{}, err
	}
	return a.ExtractSessionData(ctx, page, false)
}
