package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/sakif/snippetkeep/internal/auth"
	"github.com/sakif/snippetkeep/internal/service"
)

// AuthHandler exposes the four auth entry points plus /api/me.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister       → local account creation (username/email/password)
//   - HandleLogin          → local login (email/password)
//   - HandleGitHubLogin    → redirect the browser to GitHub's authorization page
//   - HandleGitHubCallback → receive the code, resolve the account, redirect
//     back to the frontend with a token (or an opaque error)
//   - HandleMe             → return the currently logged-in user's profile
//
// Every outcome has its own typed response struct — no untyped bags of
// fields. Error outcomes all flow through writeError.
type AuthHandler struct {
	github      *auth.GitHubProvider
	authSvc     *service.AuthService
	frontendURL string // base URL of the SPA; OAuth outcomes redirect to <frontendURL>/auth/callback
	logger      *slog.Logger
}

// NewAuthHandler creates an AuthHandler. All dependencies are injected here;
// the handler has no knowledge of how they're constructed.
func NewAuthHandler(
	github *auth.GitHubProvider,
	authSvc *service.AuthService,
	frontendURL string,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		github:      github,
		authSvc:     authSvc,
		frontendURL: frontendURL,
		logger:      logger,
	}
}

// registerRequest is the JSON body of POST /api/users/register.
type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userSummary is the public slice of a user record. The password hash never
// leaves the server; this struct is what register and /api/me return.
type userSummary struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Provider string `json:"provider,omitempty"`
}

// registerResponse is the 201 body of a successful registration.
type registerResponse struct {
	Message string      `json:"message"`
	User    userSummary `json:"user"`
	Token   string      `json:"token"`
}

// HandleRegister creates a local account.
//
// HTTP: POST /api/users/register
// Outcomes: 201 (created) / 400 (bad input) / 409 (duplicate) / 500.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("register: invalid JSON", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	result, err := h.authSvc.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		Message: "user registered successfully",
		User: userSummary{
			ID:       result.User.ID,
			Username: result.User.Username,
			Email:    result.User.Email,
		},
		Token: result.Token,
	})
}

// loginRequest is the JSON body of POST /api/users/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse carries only the token — minimal disclosure on this path.
type loginResponse struct {
	Token string `json:"token"`
}

// HandleLogin authenticates an email/password pair.
//
// HTTP: POST /api/users/login
// Outcomes: 200 (token) / 400 (bad input) / 401 (generic invalid credentials) / 500.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("login: invalid JSON", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	token, err := h.authSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// Nothing is stored server-side for the flow — the redirect URL carries our
// client_id and the requested scopes, and the rest happens on the callback.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.github.AuthURL(), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /auth/github/callback?code=xxx  (or ?error=...)
//
// FLOW:
//  1. Provider error or missing code → failure redirect, no store access.
//  2. Exchange the code server-to-server, fetch the GitHub profile (and the
//     verified primary email if the public one is hidden).
//  3. Resolve or create the local account.
//  4. Redirect to the frontend callback with a long-lived token.
//
// Every failure redirects with the SAME opaque error value. The detailed
// cause — which may include provider internals — is logged server-side only;
// the browser never sees it.
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	// GitHub reports user denial (and other provider-side failures) as an
	// error query parameter instead of a code.
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: provider returned error",
			slog.String("error", errParam),
		)
		h.redirectFailure(w, r)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.logger.Warn("auth callback: missing code")
		h.redirectFailure(w, r)
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		h.redirectFailure(w, r)
		return
	}

	result, err := h.authSvc.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("auth callback: account resolution failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		h.redirectFailure(w, r)
		return
	}

	http.Redirect(w, r, h.callbackURL("token", result.Token), http.StatusSeeOther)
}

// redirectFailure sends the browser back to the frontend with an opaque
// error flag. One value for every failure mode.
func (h *AuthHandler) redirectFailure(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.callbackURL("error", "github_auth_failed"), http.StatusSeeOther)
}

// callbackURL builds <frontendURL>/auth/callback?<key>=<value>.
func (h *AuthHandler) callbackURL(key, value string) string {
	q := url.Values{}
	q.Set(key, value)
	return h.frontendURL + "/auth/callback?" + q.Encode()
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /api/me
// Auth: Required (RequireAuth middleware sets userID in context)
//
// Useful for the frontend to know who is logged in and to check auth state
// on app load.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		// Should never happen on a RequireAuth-protected route, but be safe.
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "valid authentication required",
		})
		return
	}

	user, err := h.authSvc.GetUserByID(r.Context(), userID)
	if err != nil {
		h.logger.Error("HandleMe: user lookup failed", slog.Int64("userID", userID))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, userSummary{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Provider: user.Provider,
	})
}
