// Identity provider login flow

package main

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
)

// loadOAuthConfig builds the authorization-code flow configuration
// from env variables. Returns nil when no provider is configured,
// in which case only bearer authentication is available.
func loadOAuthConfig() *oauth2.Config {
	domain := os.Getenv("AUTH_DOMAIN")

	if domain == "" {
		return nil
	}

	return &oauth2.Config{
		ClientID:     os.Getenv("AUTH_CLIENT_ID"),
		ClientSecret: os.Getenv("AUTH_CLIENT_SECRET"),
		RedirectURL:  os.Getenv("AUTH_CALLBACK_URL"),
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://" + domain + "/authorize",
			TokenURL: "https://" + domain + "/oauth/token",
		},
	}
}

// Starts the login flow: remembers where to send the caller back
// to behind a one-time state nonce, then redirects to the provider.
func (gateway *MediaGateway) HandleLogin(w http.ResponseWriter, req *http.Request) {
	if gateway.oauth == nil {
		writeJSONError(w, http.StatusNotImplemented, "login not configured")
		return
	}

	state, err := makeId(16)
	if err != nil {
		LogError(err)
		writeJSONError(w, http.StatusInternalServerError, "unexpected error")
		return
	}

	returnTo := req.URL.Query().Get("returnTo")
	if returnTo == "" || !strings.HasPrefix(returnTo, "/") {
		returnTo = "/"
	}

	if err := gateway.sessions.PutState(req.Context(), state, returnTo); err != nil {
		LogError(err)
		writeJSONError(w, http.StatusInternalServerError, "unexpected error")
		return
	}

	http.Redirect(w, req, gateway.oauth.AuthCodeURL(state), http.StatusFound)
}

// Finishes the login flow: validates the state nonce, exchanges the
// code, asks the provider who the caller is and opens a session.
func (gateway *MediaGateway) HandleCallback(w http.ResponseWriter, req *http.Request) {
	if gateway.oauth == nil {
		writeJSONError(w, http.StatusNotImplemented, "login not configured")
		return
	}

	query := req.URL.Query()
	state := query.Get("state")
	code := query.Get("code")

	if state == "" || code == "" {
		http.Redirect(w, req, "/login", http.StatusFound)
		return
	}

	returnTo, found, err := gateway.sessions.TakeState(req.Context(), state)
	if err != nil {
		LogError(err)
		writeJSONError(w, http.StatusInternalServerError, "unexpected error")
		return
	}
	if !found {
		http.Redirect(w, req, "/login", http.StatusFound)
		return
	}

	token, err := gateway.oauth.Exchange(req.Context(), code)
	if err != nil {
		LogWarning("Code exchange failed: " + err.Error())
		http.Redirect(w, req, "/login", http.StatusFound)
		return
	}

	subject, err := gateway.fetchSubject(req, token)
	if err != nil {
		LogWarning("Could not fetch the user profile: " + err.Error())
		http.Redirect(w, req, "/login", http.StatusFound)
		return
	}

	sessionId, err := makeId(20)
	if err != nil {
		LogError(err)
		writeJSONError(w, http.StatusInternalServerError, "unexpected error")
		return
	}

	if err := gateway.sessions.PutSubject(req.Context(), sessionId, subject); err != nil {
		LogError(err)
		writeJSONError(w, http.StatusInternalServerError, "unexpected error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SESSION_COOKIE_NAME,
		Value:    sessionId,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})

	http.Redirect(w, req, returnTo, http.StatusFound)
}

// fetchSubject asks the provider userinfo endpoint for the
// subject identifier behind an access token.
func (gateway *MediaGateway) fetchSubject(req *http.Request, token *oauth2.Token) (string, error) {
	client := gateway.oauth.Client(req.Context(), token)
	client.Timeout = 10 * time.Second

	res, err := client.Get("https://" + os.Getenv("AUTH_DOMAIN") + "/userinfo")
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 64*1024))
	if err != nil {
		return "", err
	}

	profile := struct {
		Subject string `json:"sub"`
	}{}

	if err := json.Unmarshal(body, &profile); err != nil {
		return "", err
	}

	if profile.Subject == "" {
		return "", errors.New("userinfo response without a subject")
	}

	return profile.Subject, nil
}

// Closes the session and sends the caller to the provider
// logout endpoint, which redirects back to the gateway root.
func (gateway *MediaGateway) HandleLogout(w http.ResponseWriter, req *http.Request) {
	cookie, err := req.Cookie(SESSION_COOKIE_NAME)
	if err == nil && cookie.Value != "" {
		if err := gateway.sessions.DeleteSession(req.Context(), cookie.Value); err != nil {
			LogError(err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SESSION_COOKIE_NAME,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})

	domain := os.Getenv("AUTH_DOMAIN")
	if domain == "" {
		http.Redirect(w, req, "/", http.StatusFound)
		return
	}

	returnTo := "https://" + req.Host + "/"

	logoutURL := "https://" + domain + "/v2/logout?" + url.Values{
		"client_id": []string{os.Getenv("AUTH_CLIENT_ID")},
		"returnTo":  []string{returnTo},
	}.Encode()

	http.Redirect(w, req, logoutURL, http.StatusFound)
}
