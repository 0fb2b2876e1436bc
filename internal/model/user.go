// Package model defines the data structures used throughout the application.
package model

import "time"

// Auth providers. Provider records which path created the account — it does
// NOT restrict which path can log in later: a local account whose email
// matches a GitHub profile can still be reached through the OAuth flow.
const (
	ProviderLocal  = "local"
	ProviderGitHub = "github"
)

// User represents a registered account.
//
// Accounts come from two places: local registration (username/email/password)
// and the GitHub OAuth callback. The two paths populate different credential
// fields, and every row must be reachable through at least one of them:
//
//	local  → PasswordHash set, GitHubID zero
//	github → GitHubID set, PasswordHash empty
//
// WHY int64 ID (not xid like Snippet)?
// The database assigns user IDs (INTEGER PRIMARY KEY). The ID also travels
// inside JWT subjects and foreign keys, so a small immutable integer is the
// simplest stable handle. Snippets keep xid because they are created in
// application code and sort by creation time.
//
// WHY zero values instead of pointers for the nullable columns?
// Email, PasswordHash, and GitHubID are all nullable in the store. In Go we
// use the zero value ("" / 0) to mean "absent" — simpler than *string, and
// the sqlite layer converts zero ↔ NULL at the boundary so the UNIQUE
// indexes on email and github_id still allow many absent values.
type User struct {
	ID           int64     `json:"id"        db:"id"`
	Username     string    `json:"username"  db:"username"`
	Email        string    `json:"email"     db:"email"`         // unique when present; "" = none
	PasswordHash string    `json:"-"         db:"password_hash"` // never serialized
	GitHubID     int64     `json:"-"         db:"github_id"`     // GitHub's numeric user ID; 0 = none
	Provider     string    `json:"provider"  db:"provider"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}
