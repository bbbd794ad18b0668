package http

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Authenticator answers whether a request token belongs to an administrator.
// Token issuance lives with the auth collaborator; the quiz core only ever
// consumes this boolean.
type Authenticator interface {
	Authenticate(token string) bool
}

// StaticTokenAuthenticator accepts a single configured bearer token.
type StaticTokenAuthenticator struct {
	token string
}

func NewStaticTokenAuthenticator(token string) *StaticTokenAuthenticator {
	return &StaticTokenAuthenticator{token: token}
}

func (a *StaticTokenAuthenticator) Authenticate(token string) bool {
	if a.token == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a.token), []byte(token)) == 1
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(auth, "Bearer ")
}
