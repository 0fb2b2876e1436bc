// Package service — authentication business logic.
//
// AuthService is the business logic layer for authentication. It sits between
// the HTTP handlers and the repository/auth utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT) + PasswordService (bcrypt)
//
// KEY RESPONSIBILITIES:
//   - Local registration and login (email + password)
//   - The GitHub OAuth callback: resolve or create the local account, issue token
//   - Encapsulate all auth rules in one place, away from HTTP concerns
//
// CONCURRENCY NOTE:
// None of these methods hold locks and none wrap their store calls in a
// transaction. The "look up, then maybe insert" sequences in Register and
// LoginOrRegisterGitHub can therefore race with themselves across requests;
// the database's UNIQUE indexes are the serialization point, and losing the
// race surfaces as apperror.ErrConflict, never a crash.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/snippetkeep/internal/apperror"
	"github.com/sakif/snippetkeep/internal/auth"
	"github.com/sakif/snippetkeep/internal/model"
	"github.com/sakif/snippetkeep/internal/repository"
)

// AuthService handles the authentication business logic.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository  → read/write user records
//   - tokens     *auth.TokenService         → generate/validate JWTs
//   - passwords  *auth.PasswordService      → bcrypt hashing
//   - logger     *slog.Logger               → structured logging
//
// shortTTL is used by local register/login; longTTL by the OAuth callback,
// where no interactive re-login is expected.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
	shortTTL  time.Duration
	longTTL   time.Duration
}

// NewAuthService creates an AuthService with all required dependencies.
// Call this in server.go when wiring the dependency graph.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
	shortTTL, longTTL time.Duration,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
		shortTTL:  shortTTL,
		longTTL:   longTTL,
	}
}

// AuthResult is returned by authentication operations that yield a user.
// It bundles the user record and the issued JWT together so the caller
// (the HTTP handler) can build the response in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a local account and logs it in.
//
// Steps, in order, each a potential fail point:
//  1. Look up an existing user by email — found means 409. The message
//     doesn't say which field collided.
//  2. Hash the password (bcrypt, salted).
//  3. Insert the local user; the store assigns the ID.
//  4. Issue a short-lived token for the new ID.
//
// Steps 1 and 3 are NOT one transaction. Two concurrent registrations with
// the same email can both pass step 1; the UNIQUE index on email then fails
// one of the inserts, and the repository reports that as ErrConflict — the
// same outcome the loser would have seen with perfect ordering.
//
// A failed registration writes nothing: the insert is the only write, and
// token issuance after a successful insert is pure computation.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}
	if len(password) > 72 {
		// bcrypt's input limit; PasswordService.Hash would reject it anyway,
		// but catching it here keeps it a validation error, not a 500.
		return nil, apperror.ValidationFailed("password", "password must be 72 bytes or fewer")
	}

	// Step 1: pre-check. Catches the common case early with a clean 409;
	// the UNIQUE index catches the rest.
	_, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, apperror.Conflict("account already exists")
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/auth: checking existing account: %w", err)
	}

	// Step 2: hash.
	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	// Step 3: insert. ErrConflict propagates as-is so the handler answers 409.
	user, err := s.users.CreateLocal(ctx, username, email, hash)
	if err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user registered",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)

	// Step 4: short-lived token.
	token, err := s.tokens.Generate(user.ID, s.shortTTL)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %d: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// Login verifies an email/password pair and issues a short-lived token.
//
// ANTI-ENUMERATION:
// Unknown email and wrong password return the SAME ErrAuthentication — a
// caller can't distinguish "no such account" from "bad password". For the
// same reason it returns only the token, no user object.
//
// An OAuth-only account has no password hash; Verify fails closed on the
// empty string, which collapses into the same generic failure.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", apperror.ValidationFailed("email", "email is required")
	}
	if password == "" {
		return "", apperror.ValidationFailed("password", "password is required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", apperror.AuthenticationFailed()
		}
		return "", fmt.Errorf("service/auth: looking up account: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return "", apperror.AuthenticationFailed()
	}

	// The token carries only the user ID — never the password or its hash.
	token, err := s.tokens.Generate(user.ID, s.shortTTL)
	if err != nil {
		return "", fmt.Errorf("service/auth: generating token for user %d: %w", user.ID, err)
	}

	s.logger.Info("user logged in", slog.Int64("userID", user.ID))
	return token, nil
}

// LoginOrRegisterGitHub resolves a GitHub profile to a local account and
// issues a long-lived token. Called by the OAuth callback handler after the
// code exchange has produced a GitHubUser.
//
// RESOLUTION POLICY (first match wins):
//  1. A row with this GitHub ID → that account, even if its email differs
//     from the profile's (the user changed one of them since linking).
//  2. Else a row with the profile's verified primary email → that account is
//     adopted, implicitly linking the local registration to this GitHub
//     identity. The row is NOT updated — accounts are never mutated here, so
//     the link re-resolves by email on every OAuth login.
//  3. Else create a new github-provider user (GitHub login as username,
//     email possibly empty). Two simultaneous first-time logins can both
//     reach the insert; the UNIQUE index on github_id breaks the tie and the
//     loser's ErrConflict propagates for the handler's failure redirect.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user, err := s.users.FindByGitHubIDOrEmail(ctx, ghUser.ID, ghUser.Email)
	switch {
	case err == nil:
		// Existing account — matched on github_id or adopted by email.
	case errors.Is(err, apperror.ErrNotFound):
		user, err = s.users.CreateFederated(ctx, ghUser.Login, ghUser.Email, ghUser.ID)
		if err != nil {
			if errors.Is(err, apperror.ErrConflict) {
				return nil, err
			}
			return nil, fmt.Errorf("service/auth: creating federated user (githubID=%d): %w", ghUser.ID, err)
		}
		s.logger.Info("federated user created",
			slog.Int64("userID", user.ID),
			slog.Int64("githubID", ghUser.ID),
		)
	default:
		return nil, fmt.Errorf("service/auth: resolving federated identity (githubID=%d): %w", ghUser.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.Int64("userID", user.ID),
		slog.String("login", ghUser.Login),
	)

	token, err := s.tokens.Generate(user.ID, s.longTTL)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %d: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// GetUserByID returns the user for the given internal ID.
//
// Used by the /api/me handler to look up the full user record after the
// middleware validates the JWT and extracts the userID from the token's
// Subject claim.
func (s *AuthService) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	if id <= 0 {
		return nil, fmt.Errorf("service/auth: user ID must be positive")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %d: %w", id, err)
	}

	return user, nil
}

// ValidateToken validates a JWT string and returns the userID it encodes.
//
// This is a thin delegation to TokenService.Validate. Having it on
// AuthService means callers only need to import the service package, not
// the auth package directly.
func (s *AuthService) ValidateToken(tokenStr string) (int64, error) {
	userID, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return 0, fmt.Errorf("service/auth: %w", err)
	}
	return userID, nil
}
