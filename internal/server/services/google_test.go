package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newGoogleStub(t *testing.T, userInfo map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("code") != "auth-code" || r.PostForm.Get("client_secret") != "secret" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "google-at", "token_type": "Bearer", "expires_in": 3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer google-at" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(userInfo)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func stubbedGoogle(srv *httptest.Server) *GoogleOAuth {
	g := NewGoogleOAuth("client", "secret", "https://auth.saasgate.test/api/auth/google/callback")
	g.Config.Endpoint = oauth2.Endpoint{
		AuthURL:   srv.URL + "/auth",
		TokenURL:  srv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	g.UserInfoURL = srv.URL + "/userinfo"
	return g
}

func TestGoogleOAuth_AuthCodeURL(t *testing.T) {
	g := NewGoogleOAuth("client", "secret", "https://auth.saasgate.test/api/auth/google/callback")

	u, err := url.Parse(g.AuthCodeURL("st4te"))
	require.NoError(t, err)
	assert.Equal(t, "accounts.google.com", u.Host)
	q := u.Query()
	assert.Equal(t, "st4te", q.Get("state"))
	assert.Equal(t, "client", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "openid email profile", q.Get("scope"))
	assert.Equal(t, "https://auth.saasgate.test/api/auth/google/callback", q.Get("redirect_uri"))
}

func TestGoogleOAuth_Exchange(t *testing.T) {
	srv := newGoogleStub(t, map[string]any{
		"sub": "1234", "email": "jane@gmail.test", "email_verified": true, "name": "Jane",
	})
	g := stubbedGoogle(srv)

	p, err := g.Exchange(context.Background(), "auth-code")
	require.NoError(t, err)
	assert.Equal(t, ExternalProfile{Subject: "1234", Email: "jane@gmail.test", EmailVerified: true, Name: "Jane"}, *p)

	_, err = g.Exchange(context.Background(), "bad-code")
	assert.Error(t, err)
}

func TestGoogleOAuth_UserInfoFailure(t *testing.T) {
	srv := newGoogleStub(t, nil)
	g := stubbedGoogle(srv)
	g.UserInfoURL = srv.URL + "/missing"

	_, err := g.Exchange(context.Background(), "auth-code")
	assert.ErrorContains(t, err, "user info status")
}
