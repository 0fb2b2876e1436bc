package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/snippetkeep/internal/apperror"
	"github.com/sakif/snippetkeep/internal/model"
	"github.com/sakif/snippetkeep/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, username, email, password_hash, github_id, provider, created_at, updated_at`

// scanUser reads one user row, converting the nullable columns back to Go
// zero values ("" / 0 mean "absent" in the model).
func scanUser(row *sql.Row) (*model.User, error) {
	var (
		u     model.User
		email sql.NullString
		hash  sql.NullString
		ghID  sql.NullInt64
	)

	err := row.Scan(
		&u.ID,
		&u.Username,
		&email,
		&hash,
		&ghID,
		&u.Provider,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.Email = email.String
	u.PasswordHash = hash.String
	u.GitHubID = ghID.Int64
	return &u, nil
}

// nullableString converts "" to SQL NULL. Storing NULL instead of '' matters
// for the UNIQUE index on email: SQLite allows any number of NULLs but
// exactly one ''.
func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullableInt64(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n != 0}
}

// FindByEmail returns the user whose email matches exactly.
// Returns apperror.ErrNotFound if no such user exists.
func (db *DB) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email,
	)
	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: finding user by email: %w", err)
	}
	return u, nil
}

// FindByGitHubIDOrEmail is the dual-key lookup used by OAuth resolution.
//
// FIRST MATCH WINS, GITHUB ID FIRST:
// A row matching on github_id is returned even if its stored email differs
// from the profile's; only when no github_id match exists does an email
// match count. The ORDER BY expression sorts github_id hits ahead of
// email-only hits, then oldest row first, and LIMIT 1 picks the winner.
//
// Passing email = "" binds NULL, and `email = NULL` matches nothing in SQL —
// so an email-less profile searches by github_id alone with the same query.
//
// This dual-key lookup is what lets someone who registered locally with an
// email later log in via GitHub and land on the same account (their row has
// no github_id yet; the email arm finds it).
func (db *DB) FindByGitHubIDOrEmail(ctx context.Context, githubID int64, email string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE github_id = ? OR email = ?
		 ORDER BY (github_id = ?) DESC, id ASC
		 LIMIT 1`,
		githubID, nullableString(email), githubID,
	)
	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", fmt.Sprintf("github:%d", githubID))
		}
		return nil, fmt.Errorf("sqlite: finding user by github id or email: %w", err)
	}
	return u, nil
}

// CreateLocal inserts a local-provider user and returns the stored row.
//
// The database assigns the ID (AUTOINCREMENT). If the email collides with
// an existing row — including the race where two registrations pass their
// pre-check simultaneously — the UNIQUE index fires and we return
// apperror.ErrConflict so the caller can answer 409 rather than 500.
func (db *DB) CreateLocal(ctx context.Context, username, email, passwordHash string) (*model.User, error) {
	now := time.Now()

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, provider, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		username,
		nullableString(email),
		passwordHash,
		model.ProviderLocal,
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.Conflict("account already exists")
		}
		return nil, fmt.Errorf("sqlite: inserting local user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading new user id: %w", err)
	}

	return &model.User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Provider:     model.ProviderLocal,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// CreateFederated inserts a github-provider user. email may be "" when the
// GitHub account exposes no verified primary address — the row is then
// reachable by github_id only. Unique violations (either key, including two
// simultaneous first-time logins for the same GitHub identity) come back as
// apperror.ErrConflict.
func (db *DB) CreateFederated(ctx context.Context, username, email string, githubID int64) (*model.User, error) {
	now := time.Now()

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (username, email, github_id, provider, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		username,
		nullableString(email),
		nullableInt64(githubID),
		model.ProviderGitHub,
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.Conflict("account already exists")
		}
		return nil, fmt.Errorf("sqlite: inserting federated user (githubID=%d): %w", githubID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading new user id: %w", err)
	}

	return &model.User{
		ID:        id,
		Username:  username,
		Email:     email,
		GitHubID:  githubID,
		Provider:  model.ProviderGitHub,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	)
	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", fmt.Sprintf("%d", id))
		}
		return nil, fmt.Errorf("sqlite: getting user %d: %w", id, err)
	}
	return u, nil
}
