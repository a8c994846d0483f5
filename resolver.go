// Credential resolution

package main

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

const SESSION_COOKIE_NAME = "gateway_session"

type subjectContextKey struct{}

// resolveSubject turns a request into the subject identifier of the
// caller, or the empty string when nobody could be authenticated.
// An active session wins over a bearer credential.
func (gateway *MediaGateway) resolveSubject(req *http.Request) string {
	cookie, err := req.Cookie(SESSION_COOKIE_NAME)
	if err == nil && cookie.Value != "" {
		subject, err := gateway.sessions.GetSubject(req.Context(), cookie.Value)

		if err != nil {
			LogError(err)
		} else if subject != "" {
			return subject
		}
	}

	auth := req.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return CheckBearerToken(strings.TrimPrefix(auth, "Bearer "))
	}

	return ""
}

// RequireSubject rejects requests that cannot be resolved to a subject.
// Browsers get sent to the login flow, programmatic callers get a 401.
// Authenticated requests continue with the subject in the context.
func (gateway *MediaGateway) RequireSubject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		subject := gateway.resolveSubject(req)

		if subject == "" {
			if isBrowserRequest(req) {
				http.Redirect(w, req, "/login?returnTo="+url.QueryEscape(req.URL.RequestURI()), http.StatusFound)
			} else {
				writeJSONError(w, http.StatusUnauthorized, "could not authenticate")
			}
			return
		}

		ctx := context.WithValue(req.Context(), subjectContextKey{}, subject)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

// subjectFromContext returns the subject stored by RequireSubject.
func subjectFromContext(ctx context.Context) string {
	subject, _ := ctx.Value(subjectContextKey{}).(string)
	return subject
}

// isBrowserRequest decides between the redirect and the 401 rejection.
// A caller that sent a bearer credential is always programmatic, even
// if it also accepts HTML.
func isBrowserRequest(req *http.Request) bool {
	if req.Header.Get("Authorization") != "" {
		return false
	}

	return strings.Contains(req.Header.Get("Accept"), "text/html")
}
