// Tests for the login flow endpoints

package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGatewayWithProvider(t *testing.T) *MediaGateway {
	t.Helper()

	t.Setenv("AUTH_DOMAIN", "tenant.example.com")
	t.Setenv("AUTH_CLIENT_ID", "client-id-1")
	t.Setenv("AUTH_CLIENT_SECRET", "client-secret-1")
	t.Setenv("AUTH_CALLBACK_URL", "https://gateway.example.com/callback")

	gateway := newTestGateway(t)
	gateway.oauth = loadOAuthConfig()
	require.NotNil(t, gateway.oauth)

	return gateway
}

func TestLoadOAuthConfigUnconfigured(t *testing.T) {
	t.Setenv("AUTH_DOMAIN", "")

	assert.Nil(t, loadOAuthConfig())
}

func TestLoginRedirectsToProvider(t *testing.T) {
	gateway := newTestGatewayWithProvider(t)

	res := doRequest(gateway, "/login?returnTo=%2Fvideos", "", "")

	require.Equal(t, http.StatusFound, res.Code)

	location, err := url.Parse(res.Header().Get("Location"))
	require.NoError(t, err)

	assert.Equal(t, "tenant.example.com", location.Host)
	assert.Equal(t, "/authorize", location.Path)
	assert.Equal(t, "client-id-1", location.Query().Get("client_id"))
	assert.Equal(t, "code", location.Query().Get("response_type"))

	// The state nonce must be bound to the return URL
	state := location.Query().Get("state")
	require.NotEmpty(t, state)

	returnTo, found, err := gateway.sessions.TakeState(context.Background(), state)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "/videos", returnTo)
}

func TestLoginRejectsExternalReturnTo(t *testing.T) {
	gateway := newTestGatewayWithProvider(t)

	res := doRequest(gateway, "/login?returnTo=https%3A%2F%2Fevil.example.com", "", "")

	require.Equal(t, http.StatusFound, res.Code)

	location, err := url.Parse(res.Header().Get("Location"))
	require.NoError(t, err)

	state := location.Query().Get("state")
	returnTo, found, err := gateway.sessions.TakeState(context.Background(), state)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "/", returnTo)
}

func TestLoginUnconfigured(t *testing.T) {
	gateway := newTestGateway(t)

	res := doRequest(gateway, "/login", "", "")

	assert.Equal(t, http.StatusNotImplemented, res.Code)
	assert.Equal(t, "login not configured", decodeError(t, res))
}

func TestCallbackWithoutParameters(t *testing.T) {
	gateway := newTestGatewayWithProvider(t)

	res := doRequest(gateway, "/callback", "", "")

	assert.Equal(t, http.StatusFound, res.Code)
	assert.Equal(t, "/login", res.Header().Get("Location"))
}

func TestCallbackWithUnknownState(t *testing.T) {
	gateway := newTestGatewayWithProvider(t)

	res := doRequest(gateway, "/callback?state=never-issued&code=abc", "", "")

	assert.Equal(t, http.StatusFound, res.Code)
	assert.Equal(t, "/login", res.Header().Get("Location"))
}

func TestLogoutDestroysSession(t *testing.T) {
	gateway := newTestGatewayWithProvider(t)
	ctx := context.Background()

	require.NoError(t, gateway.sessions.PutSubject(ctx, "sid1", "auth0|user1"))

	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.Host = "gateway.example.com"
	req.AddCookie(&http.Cookie{Name: SESSION_COOKIE_NAME, Value: "sid1"})

	res := httptest.NewRecorder()
	gateway.Router().ServeHTTP(res, req)

	require.Equal(t, http.StatusFound, res.Code)

	location, err := url.Parse(res.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "tenant.example.com", location.Host)
	assert.Equal(t, "/v2/logout", location.Path)
	assert.Equal(t, "client-id-1", location.Query().Get("client_id"))
	assert.Equal(t, "https://gateway.example.com/", location.Query().Get("returnTo"))

	subject, err := gateway.sessions.GetSubject(ctx, "sid1")
	require.NoError(t, err)
	assert.Equal(t, "", subject)
}

func TestSessionCookieAuthenticates(t *testing.T) {
	gateway := newTestGateway(t)

	require.NoError(t, gateway.sessions.PutSubject(context.Background(), "sid-alice", "alice"))

	req := httptest.NewRequest(http.MethodGet, "/videos", nil)
	req.AddCookie(&http.Cookie{Name: SESSION_COOKIE_NAME, Value: "sid-alice"})

	res := httptest.NewRecorder()
	gateway.Router().ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "room1")
	assert.Contains(t, res.Body.String(), "room2")
}

func TestSessionPreferredOverBearer(t *testing.T) {
	gateway := newTestGateway(t)

	require.NoError(t, gateway.sessions.PutSubject(context.Background(), "sid-bob", "bob"))

	req := httptest.NewRequest(http.MethodGet, "/videos", nil)
	req.AddCookie(&http.Cookie{Name: SESSION_COOKIE_NAME, Value: "sid-bob"})
	req.Header.Set("Authorization", bearerFor(t, "alice"))

	res := httptest.NewRecorder()
	gateway.Router().ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "room1")
	assert.NotContains(t, res.Body.String(), "room2")
}
