// Package session implements the authenticated session with the streaming
// website: silent prefetch-login at startup, interactive login, logout, and
// the guarded GET and POST verbs that refuse to run on an unverified session.
//
// Access is the single process-wide session. Its methods are registered as
// IPC targets so the frontend can trigger login and logout.
//
//	access, err := session.New(&cfg, deps)
//	access.PrefetchLogin(ctx)
//	body, err := access.GetSafe(ctx, session.Request{Endpoint: "metadata"})
package session

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tailored-agentic-units/relay/apierr"
	"github.com/tailored-agentic-units/relay/kvstore"
	"github.com/tailored-agentic-units/relay/memory"
	"github.com/tailored-agentic-units/relay/observability"
	"github.com/tailored-agentic-units/relay/ui"
)

// Keys of the session state in the local database.
const (
	KeyESN           = "esn"
	KeyAccountHash   = "account_hash"
	KeyActiveProfile = "active_profile_guid"
)

// Request describes a call to a website endpoint.
type Request struct {
	Endpoint string            `json:"endpoint"`
	Params   map[string]string `json:"params,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`

	// Data is sent as the JSON body of a POST.
	Data json.RawMessage `json:"data,omitempty"`

	form url.Values
}

// Option configures an Access after construction.
type Option func(*Access)

// WithClock replaces the time source used for cookie expiry.
func WithClock(now func() time.Time) Option {
	return func(a *Access) { a.now = now }
}

// WithHTTPClient replaces the client template used for website requests.
// Its Jar is always replaced by the session jar.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Access) { a.template = c }
}

// Access is the session state machine.
type Access struct {
	cfg       Config
	base      *url.URL
	deps      Deps
	logger    *slog.Logger
	observer  observability.Observer
	notifier  ui.Notifier
	navigator ui.Navigator
	online    Connectivity
	catalog   ui.Catalog
	template  *http.Client
	now       func() time.Time

	// mu guards the jar and client as a unit: loading, verifying and
	// clearing the jar happen under it.
	mu     sync.Mutex
	jar    *cookieJar
	client *http.Client

	state      atomic.Int32
	prefetch   sync.Once
	prefetched atomic.Bool

	switchMu sync.Mutex

	profileMu     sync.Mutex
	authURL       string
	profileActive bool
}

// New creates the session. It does not touch the network.
func New(cfg *Config, deps Deps, opts ...Option) (*Access, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	a := &Access{
		cfg:       *cfg,
		base:      base,
		deps:      deps,
		logger:    cfg.Logger,
		observer:  deps.Observer,
		notifier:  deps.Notifier,
		navigator: deps.Navigator,
		online:    deps.Connectivity,
		catalog:   deps.Catalog,
		template:  &http.Client{Timeout: cfg.Timeout},
		now:       time.Now,
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.observer == nil {
		a.observer = observability.NewSlogObserver(a.logger)
	}
	if a.notifier == nil {
		a.notifier = quietUI{}
	}
	if a.navigator == nil {
		a.navigator = quietUI{}
	}
	if a.online == nil {
		a.online = NewDialConnectivity(cfg.BaseURL)
	}
	if a.catalog == nil {
		a.catalog = ui.DefaultCatalog
	}

	for _, opt := range opts {
		opt(a)
	}

	a.resetTransport()
	return a, nil
}

// State returns the last recorded state.
func (a *Access) State() State {
	return State(a.state.Load())
}

func (a *Access) setState(s State) {
	a.state.Store(int32(s))
}

// settle records a verification outcome unless a transition is running.
func (a *Access) settle(loggedIn bool) {
	target := LoggedOut
	if loggedIn {
		target = LoggedIn
	}
	for {
		cur := a.state.Load()
		if State(cur).Transient() || a.state.CompareAndSwap(cur, int32(target)) {
			return
		}
	}
}

// resetTransport discards the jar and starts a fresh HTTP client.
func (a *Access) resetTransport() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.jar = newCookieJar(a.now)
	client := *a.template
	client.Jar = a.jar
	a.client = &client
}

func (a *Access) httpClient() *http.Client {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.client
}

// AccountHash identifies the account of email in the cookie store.
func AccountHash(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// IsLoggedIn reports whether cookies load, verify and an ESN is present.
func (a *Access) IsLoggedIn(ctx context.Context) bool {
	return a.verify(ctx) == verified
}

// AssertLoggedIn fails with NotConnected when no network path exists and
// with NotLoggedInError when the session does not verify. It is evaluated on
// every call.
func (a *Access) AssertLoggedIn(ctx context.Context) error {
	if !a.online.Connected(ctx) {
		return apierr.New(apierr.NotConnected, "Internet connection not available")
	}
	if reason := a.verify(ctx); reason != verified {
		a.observer.OnEvent(ctx, observability.Event{
			Type:      EventNotLoggedIn,
			Level:     observability.LevelVerbose,
			Timestamp: time.Now(),
			Source:    "session.AssertLoggedIn",
			Data:      map[string]any{"reason": reason.String()},
		})
		return apierr.New(apierr.NotLoggedInError, "")
	}
	return nil
}

func (a *Access) verify(ctx context.Context) verifyReason {
	reason := a.verifyCookies(ctx)
	if reason == verified && a.deps.LocalDB.GetString(ctx, kvstore.TableSession, KeyESN, "") == "" {
		reason = reasonNoESN
	}
	a.settle(reason == verified)
	return reason
}

func (a *Access) verifyCookies(ctx context.Context) verifyReason {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.jar.Len() == 0 {
		if err := a.loadCookiesLocked(ctx); err != nil {
			a.logger.DebugContext(ctx, "no stored cookies", slog.String("error", err.Error()))
			return reasonNoCookies
		}
	}

	reason := a.jar.verify(a.cfg.AuthCookies)
	if reason == reasonExpired {
		a.jar.Clear()
	}
	return reason
}

func (a *Access) loadCookiesLocked(ctx context.Context) error {
	hash := a.deps.LocalDB.GetString(ctx, kvstore.TableLocal, KeyAccountHash, "")
	if hash == "" {
		return fmt.Errorf("no account hash")
	}
	entries, err := a.deps.Cookies.Load(ctx, hash)
	if err != nil {
		return err
	}
	return a.jar.load(entries[0].Value)
}

func (a *Access) saveCookies(ctx context.Context, hash string) error {
	a.mu.Lock()
	data, err := a.jar.marshal()
	a.mu.Unlock()
	if err != nil {
		return err
	}
	if err := a.deps.Cookies.Save(ctx, memory.Entry{Key: hash, Value: data}); err != nil {
		return err
	}
	return a.deps.LocalDB.SetValue(ctx, kvstore.TableLocal, KeyAccountHash, hash)
}

// clearCookies empties the in-memory jar. With persisted set, the stored
// record of the current account is deleted as well.
func (a *Access) clearCookies(ctx context.Context, persisted bool) {
	a.mu.Lock()
	a.jar.Clear()
	a.mu.Unlock()

	if !persisted {
		return
	}
	hash := a.deps.LocalDB.GetString(ctx, kvstore.TableLocal, KeyAccountHash, "")
	if hash == "" {
		return
	}
	if err := a.deps.Cookies.Delete(ctx, hash); err != nil {
		a.logger.WarnContext(ctx, "failed to delete stored cookies", slog.String("error", err.Error()))
	}
	if err := a.deps.LocalDB.DeleteKey(ctx, kvstore.TableLocal, KeyAccountHash); err != nil {
		a.logger.WarnContext(ctx, "failed to delete account hash", slog.String("error", err.Error()))
	}
}

// GetSafe asserts the session is usable, then performs Get.
func (a *Access) GetSafe(ctx context.Context, req Request) (any, error) {
	if err := a.AssertLoggedIn(ctx); err != nil {
		return nil, err
	}
	return a.Get(ctx, req)
}

// PostSafe asserts the session is usable, then performs Post.
func (a *Access) PostSafe(ctx context.Context, req Request) (any, error) {
	if err := a.AssertLoggedIn(ctx); err != nil {
		return nil, err
	}
	return a.Post(ctx, req)
}

// Get performs an unguarded GET. A JSON body is returned as
// json.RawMessage, anything else as a string.
func (a *Access) Get(ctx context.Context, req Request) (any, error) {
	body, err := a.do(ctx, http.MethodGet, req)
	if err != nil {
		return nil, err
	}
	return decodeBody(body), nil
}

// Post performs an unguarded POST.
func (a *Access) Post(ctx context.Context, req Request) (any, error) {
	body, err := a.do(ctx, http.MethodPost, req)
	if err != nil {
		return nil, err
	}
	return decodeBody(body), nil
}

func decodeBody(body []byte) any {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	return string(body)
}

func (a *Access) endpointURL(name string, params map[string]string) (string, error) {
	path, ok := a.cfg.Endpoints[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownEndpoint, name)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnknownEndpoint, name, err)
	}
	u := a.base.ResolveReference(ref)
	if len(params) > 0 {
		q := u.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (a *Access) do(ctx context.Context, method string, req Request) ([]byte, error) {
	target, err := a.endpointURL(req.Endpoint, req.Params)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	contentType := ""
	switch {
	case req.form != nil:
		body = strings.NewReader(req.form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case len(req.Data) > 0:
		body = bytes.NewReader(req.Data)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequest, err)
	}
	if a.cfg.UserAgent != "" {
		httpReq.Header.Set("User-Agent", a.cfg.UserAgent)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	a.logger.DebugContext(ctx, "website request",
		slog.String("method", method),
		slog.String("endpoint", req.Endpoint),
	)

	resp, err := a.httpClient().Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrRequest, method, req.Endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrRequest, req.Endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return data, fmt.Errorf("%w: %s %s: %d", ErrStatus, method, req.Endpoint, resp.StatusCode)
	}
	return data, nil
}
