package handler_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/snippetkeep/internal/auth"
	"github.com/sakif/snippetkeep/internal/handler"
	"github.com/sakif/snippetkeep/internal/repository/sqlite"
	"github.com/sakif/snippetkeep/internal/service"
)

const testFrontendURL = "http://localhost:5173"

// fakeGitHub simulates the three GitHub endpoints the OAuth flow touches.
// Configure the profile it serves per test.
type fakeGitHub struct {
	userID    int64
	userLogin string
	userEmail string
}

func (f *fakeGitHub) server(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.FormValue("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "gho_testtoken",
			"token_type":   "bearer",
		})
	})
	mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":    f.userID,
			"login": f.userLogin,
			"email": f.userEmail,
		})
	})
	mux.HandleFunc("GET /user/emails", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// testEnv wires a real service stack over an in-memory database, the way
// server.go does in production.
type testEnv struct {
	handler *handler.AuthHandler
	authSvc *service.AuthService
	tokens  *auth.TokenService
}

func newTestEnv(t *testing.T, gh *fakeGitHub) *testEnv {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	require.NoError(t, err)
	passwords := auth.NewPasswordServiceForTest(4)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	authSvc := service.NewAuthService(db, tokens, passwords, logger, time.Hour, 168*time.Hour)

	var provider *auth.GitHubProvider
	if gh != nil {
		srv := gh.server(t)
		provider = auth.NewGitHubProviderForTest(
			"test-client-id", "test-client-secret",
			"http://localhost:8080/auth/github/callback",
			srv.URL,
		)
	}

	return &testEnv{
		handler: handler.NewAuthHandler(provider, authSvc, testFrontendURL, logger),
		authSvc: authSvc,
		tokens:  tokens,
	}
}

func postJSON(t *testing.T, h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

// =========================================================================
// /api/users/register TESTS
// =========================================================================

func TestHandleRegister_Created(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := postJSON(t, env.handler.HandleRegister, "/api/users/register",
		`{"username":"alice","email":"alice@example.com","password":"s3cret"}`)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Message string `json:"message"`
		User    struct {
			ID       int64  `json:"id"`
			Username string `json:"username"`
			Email    string `json:"email"`
		} `json:"user"`
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "alice", resp.User.Username)
	assert.Positive(t, resp.User.ID)
	assert.NotContains(t, rec.Body.String(), "s3cret", "password must never appear in a response")

	userID, err := env.authSvc.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, userID)
}

func TestHandleRegister_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t, nil)

	body := `{"username":"alice","email":"alice@example.com","password":"s3cret"}`
	require.Equal(t, http.StatusCreated, postJSON(t, env.handler.HandleRegister, "/api/users/register", body).Code)

	rec := postJSON(t, env.handler.HandleRegister, "/api/users/register", body)
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp handler.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "conflict", resp.Error)
}

func TestHandleRegister_InvalidJSON(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := postJSON(t, env.handler.HandleRegister, "/api/users/register", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRegister_MissingFields(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := postJSON(t, env.handler.HandleRegister, "/api/users/register",
		`{"username":"alice"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp handler.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation_error", resp.Error)
}

// =========================================================================
// /api/users/login TESTS
// =========================================================================

func TestHandleLogin_Success(t *testing.T) {
	env := newTestEnv(t, nil)
	require.Equal(t, http.StatusCreated, postJSON(t, env.handler.HandleRegister, "/api/users/register",
		`{"username":"alice","email":"alice@example.com","password":"s3cret"}`).Code)

	rec := postJSON(t, env.handler.HandleLogin, "/api/users/login",
		`{"email":"alice@example.com","password":"s3cret"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	_, err := env.authSvc.ValidateToken(resp.Token)
	assert.NoError(t, err)
}

func TestHandleLogin_FailuresLookIdentical(t *testing.T) {
	env := newTestEnv(t, nil)
	require.Equal(t, http.StatusCreated, postJSON(t, env.handler.HandleRegister, "/api/users/register",
		`{"username":"alice","email":"alice@example.com","password":"s3cret"}`).Code)

	wrongPassword := postJSON(t, env.handler.HandleLogin, "/api/users/login",
		`{"email":"alice@example.com","password":"wrong"}`)
	unknownEmail := postJSON(t, env.handler.HandleLogin, "/api/users/login",
		`{"email":"nobody@example.com","password":"whatever"}`)

	// Same status, same body — nothing to distinguish the two failure modes.
	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownEmail.Body.String())
}

// =========================================================================
// GitHub OAuth TESTS
// =========================================================================

func TestHandleGitHubLogin_RedirectsToProvider(t *testing.T) {
	env := newTestEnv(t, &fakeGitHub{userID: 42, userLogin: "octocat"})

	req := httptest.NewRequest(http.MethodGet, "/auth/github/login", nil)
	rec := httptest.NewRecorder()
	env.handler.HandleGitHubLogin(rec, req)

	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	location := rec.Header().Get("Location")
	assert.Contains(t, location, "client_id=test-client-id")
	assert.Contains(t, location, "/login/oauth/authorize")
}

func TestHandleGitHubCallback_Success(t *testing.T) {
	env := newTestEnv(t, &fakeGitHub{userID: 42, userLogin: "octocat", userEmail: "octo@example.com"})

	req := httptest.NewRequest(http.MethodGet, "/auth/github/callback?code=good-code", nil)
	rec := httptest.NewRecorder()
	env.handler.HandleGitHubCallback(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/auth/callback", location.Path)
	assert.True(t, strings.HasPrefix(location.String(), testFrontendURL), "must redirect to the frontend")

	token := location.Query().Get("token")
	require.NotEmpty(t, token)
	userID, err := env.authSvc.ValidateToken(token)
	require.NoError(t, err)

	// The token resolves to the freshly created federated account.
	user, err := env.authSvc.GetUserByID(req.Context(), userID)
	require.NoError(t, err)
	assert.Equal(t, "octocat", user.Username)
}

func TestHandleGitHubCallback_SecondLoginSameAccount(t *testing.T) {
	env := newTestEnv(t, &fakeGitHub{userID: 42, userLogin: "octocat", userEmail: "octo@example.com"})

	callback := func() int64 {
		req := httptest.NewRequest(http.MethodGet, "/auth/github/callback?code=good-code", nil)
		rec := httptest.NewRecorder()
		env.handler.HandleGitHubCallback(rec, req)
		require.Equal(t, http.StatusSeeOther, rec.Code)

		location, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)
		userID, err := env.authSvc.ValidateToken(location.Query().Get("token"))
		require.NoError(t, err)
		return userID
	}

	first := callback()
	second := callback()
	assert.Equal(t, first, second, "repeat OAuth logins must land on the same account")
}

func TestHandleGitHubCallback_FailureModes(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"provider error param", "?error=access_denied"},
		{"missing code", ""},
		{"bad code", "?code=bad-code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &fakeGitHub{userID: 42, userLogin: "octocat"})

			req := httptest.NewRequest(http.MethodGet, "/auth/github/callback"+tt.query, nil)
			rec := httptest.NewRecorder()
			env.handler.HandleGitHubCallback(rec, req)

			// Every failure redirects with the same opaque error value.
			require.Equal(t, http.StatusSeeOther, rec.Code)
			location, err := url.Parse(rec.Header().Get("Location"))
			require.NoError(t, err)
			assert.Equal(t, "github_auth_failed", location.Query().Get("error"))
			assert.Empty(t, location.Query().Get("token"))
		})
	}
}

// =========================================================================
// /api/me TESTS
// =========================================================================

func TestHandleMe_ThroughMiddleware(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := postJSON(t, env.handler.HandleRegister, "/api/users/register",
		`{"username":"alice","email":"alice@example.com","password":"s3cret"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var reg struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))

	// Mount the handler behind RequireAuth, exactly as server.go does.
	protected := auth.RequireAuth(env.tokens)(http.HandlerFunc(env.handler.HandleMe))

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+reg.Token)
	meRec := httptest.NewRecorder()
	protected.ServeHTTP(meRec, req)

	require.Equal(t, http.StatusOK, meRec.Code)
	var me struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Provider string `json:"provider"`
	}
	require.NoError(t, json.Unmarshal(meRec.Body.Bytes(), &me))
	assert.Equal(t, "alice", me.Username)
	assert.Equal(t, "local", me.Provider)
	assert.NotContains(t, meRec.Body.String(), "password")
}

func TestHandleMe_NoToken(t *testing.T) {
	env := newTestEnv(t, nil)

	protected := auth.RequireAuth(env.tokens)(http.HandlerFunc(env.handler.HandleMe))

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
