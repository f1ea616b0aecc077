package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGitHub serves the token endpoint and /user.
func fakeGitHub(t *testing.T, user GitHubUser, userStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"bad_verification_code"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"gho_test","token_type":"bearer"}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer gho_test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(userStatus)
		json.NewEncoder(w).Encode(user)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestGitHubProvider(srv *httptest.Server) *GitHubProvider {
	return NewGitHubProvider("client-id", "client-secret", "http://localhost/auth/github/callback",
		WithGitHubEndpoints(srv.URL+"/login/oauth/authorize", srv.URL+"/login/oauth/access_token", srv.URL))
}

func TestGitHubAuthURL(t *testing.T) {
	p := NewGitHubProvider("client-id", "secret", "http://localhost/cb")

	u, err := url.Parse(p.AuthURL("state-123"))
	require.NoError(t, err)
	assert.Equal(t, "github.com", u.Host)
	assert.Equal(t, "state-123", u.Query().Get("state"))
	assert.Equal(t, "client-id", u.Query().Get("client_id"))
	assert.Equal(t, "http://localhost/cb", u.Query().Get("redirect_uri"))
}

func TestGitHubExchange(t *testing.T) {
	want := GitHubUser{ID: 42, Login: "octocat", Name: "Mona", AvatarURL: "https://avatars/42"}

	t.Run("success", func(t *testing.T) {
		p := newTestGitHubProvider(fakeGitHub(t, want, http.StatusOK))
		got, err := p.Exchange(context.Background(), "good-code")
		require.NoError(t, err)
		assert.Equal(t, want, *got)
	})

	t.Run("bad code", func(t *testing.T) {
		p := newTestGitHubProvider(fakeGitHub(t, want, http.StatusOK))
		_, err := p.Exchange(context.Background(), "bad-code")
		assert.Error(t, err)
	})

	t.Run("api error", func(t *testing.T) {
		p := newTestGitHubProvider(fakeGitHub(t, want, http.StatusInternalServerError))
		_, err := p.Exchange(context.Background(), "good-code")
		assert.Error(t, err)
	})

	t.Run("zero id", func(t *testing.T) {
		p := newTestGitHubProvider(fakeGitHub(t, GitHubUser{Login: "ghost"}, http.StatusOK))
		_, err := p.Exchange(context.Background(), "good-code")
		assert.Error(t, err)
	})
}
