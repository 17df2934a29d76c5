package website_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/tailored-agentic-units/relay/apierr"
	"github.com/tailored-agentic-units/relay/website"
)

func page(context string) []byte {
	return []byte(fmt.Sprintf(`<!DOCTYPE html>
<html><head><title>Sign In</title></head>
<body>
<script>window.analytics = {};</script>
<script>netflix.reactContext = %s;</script>
</body></html>`, context))
}

const memberContext = `{"models":{
	"userInfo":{"data":{"authURL":"ctx-token","membershipStatus":"CURRENT_MEMBER","userGuid":"GUID1","countryOfSignup":"IT"}},
	"esnGeneratorModel":{"data":{"esn":"NFCDIE-02-ABC"}}
}}`

func TestExtractAuthURL_FormInput(t *testing.T) {
	body := []byte(`<html><body><form>
<input type="hidden" name="flow" value="websiteSignUp">
<input type="hidden" name="authURL" value="form-token">
</form></body></html>`)

	got, err := website.ExtractAuthURL(body)
	if err != nil {
		t.Fatalf("ExtractAuthURL() error = %v", err)
	}
	if got != "form-token" {
		t.Errorf("ExtractAuthURL() = %q, want %q", got, "form-token")
	}
}

func TestExtractAuthURL_ReactContext(t *testing.T) {
	got, err := website.ExtractAuthURL(page(memberContext))
	if err != nil {
		t.Fatalf("ExtractAuthURL() error = %v", err)
	}
	if got != "ctx-token" {
		t.Errorf("ExtractAuthURL() = %q, want %q", got, "ctx-token")
	}
}

func TestExtractAuthURL_Missing(t *testing.T) {
	_, err := website.ExtractAuthURL([]byte(`<html><body>maintenance</body></html>`))
	if apierr.KindOf(err) != apierr.WebsiteParsingError {
		t.Errorf("ExtractAuthURL() error = %v, want WebsiteParsingError", err)
	}
}

func TestExtractSessionData(t *testing.T) {
	data, err := website.ExtractSessionData(page(memberContext), true)
	if err != nil {
		t.Fatalf("ExtractSessionData() error = %v", err)
	}

	want := website.SessionData{
		AuthURL:          "ctx-token",
		MembershipStatus: website.MembershipCurrent,
		GUID:             "GUID1",
		CountryOfSignup:  "IT",
		ESN:              "NFCDIE-02-ABC",
	}
	if data != want {
		t.Errorf("ExtractSessionData() = %+v, want %+v", data, want)
	}
}

func TestExtractSessionData_HexEscapes(t *testing.T) {
	ctx := `{"models":{"userInfo":{"data":{"authURL":"a\x2Fb\x3D","membershipStatus":"CURRENT_MEMBER"}}}}`

	data, err := website.ExtractSessionData(page(ctx), false)
	if err != nil {
		t.Fatalf("ExtractSessionData() error = %v", err)
	}
	if data.AuthURL != "a/b=" {
		t.Errorf("AuthURL = %q, want %q", data.AuthURL, "a/b=")
	}
}

func TestExtractSessionData_TrailingScript(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{"more statements", `netflix.reactContext = ` + memberContext + `; netflix.falcorCache = {"a":1};`},
		{"no semicolon", "netflix.reactContext = " + memberContext + "\nwindow.init()"},
		{"trailing comment", `netflix.reactContext = ` + memberContext + `; // end`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := []byte("<html><body><script>" + tt.script + "</script></body></html>")

			data, err := website.ExtractSessionData(body, true)
			if err != nil {
				t.Fatalf("ExtractSessionData() error = %v", err)
			}
			if data.AuthURL != "ctx-token" || data.ESN != "NFCDIE-02-ABC" {
				t.Errorf("ExtractSessionData() = %+v, want ctx-token and NFCDIE-02-ABC", data)
			}
		})
	}
}

func TestExtractSessionData_Failures(t *testing.T) {
	loginError := func(code string) string {
		return fmt.Sprintf(`{"models":{
	"userInfo":{"data":{"membershipStatus":"ANONYMOUS"}},
	"flow":{"data":{"fields":{"errorCode":{"value":%q}}}},
	"i18nStrings":{"data":{"login/login":{"login_incorrect_password":"<b>Incorrect</b> password.","email_unknown":"Unknown email."}}}
}}`, code)
	}

	tests := []struct {
		name     string
		body     []byte
		validate bool
		wantKind apierr.Kind
		wantMsg  string
	}{
		{
			name:     "incorrect password",
			body:     page(loginError("incorrect_password")),
			validate: true,
			wantKind: apierr.LoginValidateErrorIncorrectPassword,
			wantMsg:  "Incorrect password.",
		},
		{
			name:     "other login error",
			body:     page(loginError("unknown")),
			validate: true,
			wantKind: apierr.LoginValidateError,
			wantMsg:  "Unknown email.",
		},
		{
			name:     "login error without description",
			body:     page(loginError("throttled")),
			validate: true,
			wantKind: apierr.LoginValidateError,
			wantMsg:  "Login error: throttled",
		},
		{
			name:     "login errors ignored without validation",
			body:     page(loginError("incorrect_password")),
			validate: false,
			wantKind: apierr.InvalidMembershipStatusAnonymous,
		},
		{
			name:     "anonymous",
			body:     page(`{"models":{"userInfo":{"data":{"membershipStatus":"ANONYMOUS"}}}}`),
			wantKind: apierr.InvalidMembershipStatusAnonymous,
		},
		{
			name:     "former member",
			body:     page(`{"models":{"userInfo":{"data":{"membershipStatus":"FORMER_MEMBER"}}}}`),
			wantKind: apierr.InvalidMembershipStatusError,
			wantMsg:  "FORMER_MEMBER",
		},
		{
			name:     "no react context",
			body:     []byte(`<html><body><script>var x = 1;</script></body></html>`),
			wantKind: apierr.WebsiteParsingError,
		},
		{
			name:     "malformed react context",
			body:     page(`{"models":`),
			wantKind: apierr.WebsiteParsingError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := website.ExtractSessionData(tt.body, tt.validate)
			if err == nil {
				t.Fatal("ExtractSessionData() error = nil")
			}
			if got := apierr.KindOf(err); got != tt.wantKind {
				t.Errorf("kind = %s, want %s", got, tt.wantKind)
			}
			if tt.wantMsg != "" {
				if got := apierr.MessageOf(err); got != tt.wantMsg {
					t.Errorf("message = %q, want %q", got, tt.wantMsg)
				}
			}

			var apiErr *apierr.Error
			if !errors.As(err, &apiErr) {
				t.Errorf("error %T is not *apierr.Error", err)
			}
		})
	}
}

func TestStripTags(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "plain", want: "plain"},
		{in: "<b>bold</b> text", want: "bold text"},
		{in: `Try <a href="/reset">resetting</a> it.`, want: "Try resetting it."},
		{in: "", want: ""},
	}

	for _, tt := range tests {
		if got := website.StripTags(tt.in); got != tt.want {
			t.Errorf("StripTags(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
