package session

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// verifyReason says why a session failed verification.
type verifyReason int

const (
	verified verifyReason = iota
	reasonNoCookies
	reasonExpired
	reasonNoESN
)

func (r verifyReason) String() string {
	switch r {
	case reasonNoCookies:
		return "no_cookies"
	case reasonExpired:
		return "cookies_expired"
	case reasonNoESN:
		return "no_esn"
	default:
		return "verified"
	}
}

type storedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain,omitempty"`
	Path     string    `json:"path,omitempty"`
	Expires  time.Time `json:"expires,omitzero"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
}

// cookieJar is an http.CookieJar for a single website. Unlike
// net/http/cookiejar it exposes its full contents so they can be persisted
// and verified.
type cookieJar struct {
	mu      sync.Mutex
	cookies map[string]storedCookie
	now     func() time.Time
}

func newCookieJar(now func() time.Time) *cookieJar {
	return &cookieJar{cookies: make(map[string]storedCookie), now: now}
}

func (j *cookieJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	for _, c := range cookies {
		expires := c.Expires
		if c.MaxAge > 0 {
			expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		if c.MaxAge < 0 || (!expires.IsZero() && !expires.After(now)) {
			delete(j.cookies, c.Name)
			continue
		}

		domain := c.Domain
		if domain == "" && u != nil {
			domain = u.Hostname()
		}
		j.cookies[c.Name] = storedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   domain,
			Path:     c.Path,
			Expires:  expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
	}
}

func (j *cookieJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	out := make([]*http.Cookie, 0, len(j.cookies))
	for _, c := range j.cookies {
		if !c.Expires.IsZero() && !c.Expires.After(now) {
			continue
		}
		if c.Secure && u != nil && u.Scheme != "https" {
			continue
		}
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return out
}

func (j *cookieJar) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.cookies)
}

func (j *cookieJar) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()
	clear(j.cookies)
}

func (j *cookieJar) marshal() ([]byte, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	list := make([]storedCookie, 0, len(j.cookies))
	for _, c := range j.cookies {
		list = append(list, c)
	}
	return json.Marshal(list)
}

func (j *cookieJar) load(data []byte) error {
	var list []storedCookie
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	clear(j.cookies)
	for _, c := range list {
		j.cookies[c.Name] = c
	}
	return nil
}

// verify reports whether every required cookie is present and unexpired.
func (j *cookieJar) verify(required []string) verifyReason {
	j.mu.Lock()
	defer j.mu.Unlock()

	if len(j.cookies) == 0 {
		return reasonNoCookies
	}
	now := j.now()
	for _, name := range required {
		c, ok := j.cookies[name]
		if !ok || (!c.Expires.IsZero() && !c.Expires.After(now)) {
			return reasonExpired
		}
	}
	return verified
}
