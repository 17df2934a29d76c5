package ui

import "strconv"

// StringID identifies a localized string.
type StringID int

const (
	StrLoginTitle          StringID = 30008
	StrLoginFailed         StringID = 30009
	StrLoginSuccess        StringID = 30109
	StrLogoutSuccess       StringID = 30113
	StrMembershipInvalid   StringID = 30180
	StrMembershipAnonymous StringID = 30181
)

// Catalog resolves string ids to text.
type Catalog map[StringID]string

// DefaultCatalog holds the English strings.
var DefaultCatalog = Catalog{
	StrLoginTitle:          "Login",
	StrLoginFailed:         "Login failed",
	StrLoginSuccess:        "Login successful",
	StrLogoutSuccess:       "Logout successful",
	StrMembershipInvalid:   "Your account membership is not active, check the account status on the website",
	StrMembershipAnonymous: "The session was closed by the website, please log in again",
}

// Get returns the text for id. Missing ids render as their number so the
// gap is visible instead of empty.
func (c Catalog) Get(id StringID) string {
	if s, ok := c[id]; ok {
		return s
	}
	return strconv.Itoa(int(id))
}
