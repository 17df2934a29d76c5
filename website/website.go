// Package website extracts the data the session needs from pages of the
// streaming website: the login form token and the session profile embedded
// in the reactContext script.
package website

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/tailored-agentic-units/relay/apierr"
)

// Membership statuses reported by the website.
const (
	MembershipCurrent   = "CURRENT_MEMBER"
	MembershipAnonymous = "ANONYMOUS"
)

// SessionData is the session profile extracted from a website page.
type SessionData struct {
	AuthURL          string `json:"auth_url"`
	MembershipStatus string `json:"membership_status"`
	GUID             string `json:"guid"`
	CountryOfSignup  string `json:"country_of_signup"`
	ESN              string `json:"esn"`
}

// reactContext mirrors the fragments of the page model that are read.
type reactContext struct {
	Models struct {
		UserInfo struct {
			Data struct {
				AuthURL          string `json:"authURL"`
				MembershipStatus string `json:"membershipStatus"`
				GUID             string `json:"guid"`
				UserGUID         string `json:"userGuid"`
				CountryOfSignup  string `json:"countryOfSignup"`
			} `json:"data"`
		} `json:"userInfo"`
		ESNGenerator struct {
			Data struct {
				ESN string `json:"esn"`
			} `json:"data"`
		} `json:"esnGeneratorModel"`
		Flow struct {
			Data struct {
				Fields struct {
					ErrorCode *struct {
						Value string `json:"value"`
					} `json:"errorCode"`
				} `json:"fields"`
			} `json:"data"`
		} `json:"flow"`
		I18nStrings struct {
			Data map[string]map[string]string `json:"data"`
		} `json:"i18nStrings"`
	} `json:"models"`
}

const reactContextMarker = "reactContext"

var hexEscape = regexp.MustCompile(`\\x([0-9a-fA-F]{2})`)

// ExtractAuthURL returns the login form token. The hidden authURL input is
// preferred; the page model is consulted when the form is absent.
func ExtractAuthURL(page []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return "", apierr.Newf(apierr.WebsiteParsingError, "parse page: %v", err)
	}

	if token := findInputValue(doc, "authURL"); token != "" {
		return token, nil
	}

	ctx, err := parseReactContext(doc)
	if err != nil {
		return "", err
	}
	if token := ctx.Models.UserInfo.Data.AuthURL; token != "" {
		return token, nil
	}
	return "", apierr.New(apierr.WebsiteParsingError, "authURL not found")
}

// ExtractSessionData reads the session profile of page. With validate set,
// the login outcome is checked first: a login error code fails with
// LoginValidateErrorIncorrectPassword or LoginValidateError. The membership
// status is always checked.
func ExtractSessionData(page []byte, validate bool) (SessionData, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return SessionData{}, apierr.Newf(apierr.WebsiteParsingError, "parse page: %v", err)
	}

	ctx, err := parseReactContext(doc)
	if err != nil {
		return SessionData{}, err
	}

	if validate {
		if err := validateLogin(ctx); err != nil {
			return SessionData{}, err
		}
	}

	user := ctx.Models.UserInfo.Data
	switch user.MembershipStatus {
	case MembershipCurrent:
	case MembershipAnonymous:
		return SessionData{}, apierr.New(apierr.InvalidMembershipStatusAnonymous, "")
	default:
		return SessionData{}, apierr.New(apierr.InvalidMembershipStatusError, user.MembershipStatus)
	}

	guid := user.UserGUID
	if guid == "" {
		guid = user.GUID
	}
	return SessionData{
		AuthURL:          user.AuthURL,
		MembershipStatus: user.MembershipStatus,
		GUID:             guid,
		CountryOfSignup:  user.CountryOfSignup,
		ESN:              ctx.Models.ESNGenerator.Data.ESN,
	}, nil
}

func validateLogin(ctx *reactContext) error {
	field := ctx.Models.Flow.Data.Fields.ErrorCode
	if field == nil {
		return nil
	}
	code := field.Value

	description := "Login error: " + code
	messages := ctx.Models.I18nStrings.Data["login/login"]
	for _, key := range []string{code, "email_" + code, "login_" + code} {
		if msg, ok := messages[key]; ok {
			description = msg
		}
	}
	description = StripTags(description)

	if strings.Contains(code, "incorrect_password") {
		return apierr.New(apierr.LoginValidateErrorIncorrectPassword, description)
	}
	return apierr.New(apierr.LoginValidateError, description)
}

func parseReactContext(doc *html.Node) (*reactContext, error) {
	for script := range scripts(doc) {
		body, ok := cutReactContext(script)
		if !ok {
			continue
		}
		// Only the first value is read; the script may go on after it.
		var ctx reactContext
		if err := json.NewDecoder(strings.NewReader(body)).Decode(&ctx); err != nil {
			return nil, apierr.Newf(apierr.WebsiteParsingError, "decode %s: %v", reactContextMarker, err)
		}
		return &ctx, nil
	}
	return nil, apierr.Newf(apierr.WebsiteParsingError, "%s not found", reactContextMarker)
}

// cutReactContext returns the script text starting at the object assigned to
// the reactContext variable, with JavaScript \xNN escapes rewritten as JSON
// escapes.
func cutReactContext(script string) (string, bool) {
	idx := strings.Index(script, reactContextMarker)
	if idx < 0 {
		return "", false
	}
	rest := script[idx+len(reactContextMarker):]
	eq := strings.Index(rest, "=")
	if eq < 0 {
		return "", false
	}
	body := strings.TrimSpace(rest[eq+1:])
	if !strings.HasPrefix(body, "{") {
		return "", false
	}
	return hexEscape.ReplaceAllStringFunc(body, func(m string) string {
		n, _ := strconv.ParseUint(m[2:], 16, 8)
		return fmt.Sprintf(`\u%04x`, n)
	}), true
}

// scripts yields the text of every inline script element.
func scripts(doc *html.Node) func(yield func(string) bool) {
	return func(yield func(string) bool) {
		for n := range doc.Descendants() {
			if n.Type != html.ElementNode || n.Data != "script" || n.FirstChild == nil {
				continue
			}
			if !yield(n.FirstChild.Data) {
				return
			}
		}
	}
}

func findInputValue(doc *html.Node, name string) string {
	for n := range doc.Descendants() {
		if n.Type != html.ElementNode || n.Data != "input" || attr(n, "name") != name {
			continue
		}
		return attr(n, "value")
	}
	return ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// StripTags returns the text content of an HTML fragment.
func StripTags(fragment string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}
