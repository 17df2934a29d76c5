package session_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/tailored-agentic-units/relay/apierr"
	"github.com/tailored-agentic-units/relay/credentials"
	"github.com/tailored-agentic-units/relay/kvstore"
	"github.com/tailored-agentic-units/relay/memory"
	"github.com/tailored-agentic-units/relay/observability"
	"github.com/tailored-agentic-units/relay/session"
)

const (
	testEmail    = "user@example.com"
	testPassword = "secret"
	testESN      = "NFCDIE-02-TEST"
)

// --- website fake ---

type site struct {
	srv *httptest.Server

	mu         sync.Mutex
	hits       map[string]int
	form       url.Values
	password   string
	membership string
	esn        string
	brokenPage bool
	logoutCode int
	authURL    string
	activated  []url.Values

	loginStatus int
}

func newSite(t *testing.T) *site {
	t.Helper()
	s := &site{
		hits:       make(map[string]int),
		password:   testPassword,
		membership: "CURRENT_MEMBER",
		esn:        testESN,
		logoutCode: http.StatusOK,
		authURL:    "token-2",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /login", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><form method="post">
<input type="hidden" name="authURL" value="token-1">
</form></body></html>`)
	})
	mux.HandleFunc("POST /login", s.postLogin)
	mux.HandleFunc("GET /SignOut", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		code := s.logoutCode
		s.mu.Unlock()
		w.WriteHeader(code)
	})
	mux.HandleFunc("GET /browse", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		membership, esn, authURL := s.membership, s.esn, s.authURL
		s.mu.Unlock()
		fmt.Fprint(w, page(memberContext(membership, esn, authURL)))
	})
	mux.HandleFunc("GET /profiles/switch", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.activated = append(s.activated, r.URL.Query())
		s.authURL = "token-" + r.URL.Query().Get("switchProfileGuid")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"ok"}`)
	})
	mux.HandleFunc("GET /metadata", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"movieid":%q}`, r.URL.Query().Get("movieid"))
	})
	mux.HandleFunc("POST /metadata", func(w http.ResponseWriter, r *http.Request) {
		io.Copy(w, r.Body)
	})
	mux.HandleFunc("GET /plain", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not json")
	})

	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.Method+" "+r.URL.Path]++
		s.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *site) postLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.form = r.PostForm
	password, membership, esn, broken := s.password, s.membership, s.esn, s.brokenPage
	status := s.loginStatus
	s.mu.Unlock()

	for _, name := range []string{"NetflixId", "SecureNetflixId"} {
		http.SetCookie(w, &http.Cookie{Name: name, Value: "v-" + name, Path: "/", MaxAge: 3600})
	}
	if status != 0 {
		w.WriteHeader(status)
		return
	}

	switch {
	case broken:
		fmt.Fprint(w, "<html><body>maintenance</body></html>")
	case r.PostForm.Get("password") != password:
		fmt.Fprint(w, page(`{"models":{
	"userInfo":{"data":{"membershipStatus":"ANONYMOUS"}},
	"flow":{"data":{"fields":{"errorCode":{"value":"incorrect_password"}}}},
	"i18nStrings":{"data":{"login/login":{"login_incorrect_password":"Incorrect password."}}}
}}`))
	default:
		fmt.Fprint(w, page(memberContext(membership, esn, "token-2")))
	}
}

func (s *site) hitCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[key]
}

func (s *site) set(fn func(s *site)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func page(context string) string {
	return fmt.Sprintf(`<html><body><script>netflix.reactContext = %s;</script></body></html>`, context)
}

func memberContext(membership, esn, authURL string) string {
	return fmt.Sprintf(`{"models":{
	"userInfo":{"data":{"authURL":%q,"membershipStatus":%q,"userGuid":"GUID1"}},
	"esnGeneratorModel":{"data":{"esn":%q}}
}}`, authURL, membership, esn)
}

// --- collaborator fakes ---

type fakeCredentials struct {
	mu     sync.Mutex
	creds  *credentials.Credentials
	purged int
}

func (f *fakeCredentials) Get() (credentials.Credentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.creds == nil {
		return credentials.Credentials{}, apierr.New(apierr.MissingCredentialsError, "")
	}
	return *f.creds, nil
}

func (f *fakeCredentials) Purge() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creds = nil
	f.purged++
	return nil
}

type fakeDB struct {
	mu     sync.Mutex
	tables map[kvstore.Table]map[string]any
}

func newFakeDB() *fakeDB {
	return &fakeDB{tables: make(map[kvstore.Table]map[string]any)}
}

func (f *fakeDB) GetString(ctx context.Context, table kvstore.Table, key, def string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.tables[table][key].(string); ok {
		return v
	}
	return def
}

func (f *fakeDB) SetValue(ctx context.Context, table kvstore.Table, key string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tables[table] == nil {
		f.tables[table] = make(map[string]any)
	}
	f.tables[table][key] = value
	return nil
}

func (f *fakeDB) DeleteKey(ctx context.Context, table kvstore.Table, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tables[table], key)
	return nil
}

func (f *fakeDB) value(table kvstore.Table, key string) (any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.tables[table][key]
	return v, ok
}

type fakeSettings struct {
	mu     sync.Mutex
	values map[string]any
	log    []string
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{values: make(map[string]any)}
}

func (f *fakeSettings) Suspend(suspended bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, fmt.Sprintf("suspend=%v", suspended))
}

func (f *fakeSettings) set(key string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	f.log = append(f.log, "set "+key)
	return nil
}

func (f *fakeSettings) SetString(key, value string) error { return f.set(key, value) }
func (f *fakeSettings) SetInt(key string, value int) error { return f.set(key, value) }
func (f *fakeSettings) SetBool(key string, value bool) error { return f.set(key, value) }

type fakeCache struct {
	mu     sync.Mutex
	clears []bool
}

func (f *fakeCache) Clear(ctx context.Context, wipeStore bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears = append(f.clears, wipeStore)
	return nil
}

type emission struct {
	name string
	data any
}

type fakeEmitter struct {
	mu   sync.Mutex
	sent []emission
}

func (f *fakeEmitter) Emit(name string, data any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, emission{name: name, data: data})
	return nil
}

func (f *fakeEmitter) named(name string) []emission {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []emission
	for _, e := range f.sent {
		if e.name == name {
			out = append(out, e)
		}
	}
	return out
}

type notice struct {
	msg  string
	time time.Duration
}

type fakeUI struct {
	mu            sync.Mutex
	notifications []notice
	errors        []string
	dialogs       []string
	navigations   []string
}

func (f *fakeUI) ShowNotification(ctx context.Context, msg string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, notice{msg: msg, time: d})
}

func (f *fakeUI) ShowError(ctx context.Context, heading, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, msg)
}

func (f *fakeUI) ShowOKDialog(ctx context.Context, heading, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dialogs = append(f.dialogs, msg)
}

func (f *fakeUI) ContainerUpdate(ctx context.Context, path string, replace bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigations = append(f.navigations, path)
}

type fakeConnectivity struct{ offline bool }

func (f fakeConnectivity) Connected(ctx context.Context) bool { return !f.offline }

type captureObserver struct {
	mu     sync.Mutex
	events []observability.Event
}

func (c *captureObserver) OnEvent(ctx context.Context, event observability.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureObserver) types() []observability.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]observability.EventType, len(c.events))
	for i, e := range c.events {
		out[i] = e.Type
	}
	return out
}

// --- fixture ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	site     *site
	access   *session.Access
	creds    *fakeCredentials
	db       *fakeDB
	settings *fakeSettings
	cache    *fakeCache
	emitter  *fakeEmitter
	ui       *fakeUI
	cookies  memory.Store
	observer *captureObserver
	online   *fakeConnectivity
}

func newFixture(t *testing.T, withCreds bool, opts ...session.Option) *fixture {
	t.Helper()

	f := &fixture{
		site:     newSite(t),
		creds:    &fakeCredentials{},
		db:       newFakeDB(),
		settings: newFakeSettings(),
		cache:    &fakeCache{},
		emitter:  &fakeEmitter{},
		ui:       &fakeUI{},
		cookies:  memory.NewMapStore(),
		observer: &captureObserver{},
		online:   &fakeConnectivity{},
	}
	if withCreds {
		f.creds.creds = &credentials.Credentials{Email: testEmail, Password: testPassword}
	}

	cfg := session.DefaultConfig()
	cfg.BaseURL = f.site.srv.URL
	cfg.Endpoints = map[string]string{
		session.EndpointLogin:           "/login",
		session.EndpointLogout:          "/SignOut",
		session.EndpointBrowse:          "/browse",
		session.EndpointActivateProfile: "/profiles/switch",
		"metadata":                      "/metadata",
		"plain":                         "/plain",
	}
	cfg.Logger = discardLogger()

	access, err := session.New(&cfg, session.Deps{
		Credentials:  f.creds,
		Cookies:      f.cookies,
		LocalDB:      f.db,
		Settings:     f.settings,
		Cache:        f.cache,
		Emitter:      f.emitter,
		Notifier:     f.ui,
		Navigator:    f.ui,
		Connectivity: f.online,
		Observer:     f.observer,
	}, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	f.access = access
	return f
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	ok, err := f.access.Login(context.Background(), session.LoginOptions{})
	if err != nil || !ok {
		t.Fatalf("Login() = %v, %v; want true, nil", ok, err)
	}
}
