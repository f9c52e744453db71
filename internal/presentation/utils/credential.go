package utils

import (
	"net/http"
	"strings"
)

// CookieToken is the portal session cookie carrying the JWT.
const CookieToken = "token"

// CredentialFromRequest finds a bearer credential on an upgrade request.
// Browsers cannot set headers on a websocket handshake, so the query
// string and the portal cookie are checked as well. The query wins, then
// the Authorization header, then the cookie.
func CredentialFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := r.Cookie(CookieToken); err == nil {
		return cookie.Value
	}
	return ""
}
