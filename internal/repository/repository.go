package repository

import (
	"context"

	"github.com/sakif/snippetkeep/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

type SnippetRepository interface {
	Create(ctx context.Context, snippet *model.Snippet) error
	GetByID(ctx context.Context, id string) (*model.Snippet, error)
	List(ctx context.Context, opts ListOptions) ([]model.Snippet, error)
	Update(ctx context.Context, snippet *model.Snippet) error
	Delete(ctx context.Context, id string) error
}

// UserRepository is the credential store consumed by the auth service.
//
// The two Create methods surface a unique-constraint violation as
// apperror.ErrConflict, distinct from generic failures — the "look up, then
// maybe insert" sequences in the auth service are not transactional, so the
// database's UNIQUE indexes are the final arbiter of registration races and
// callers must be able to recognize losing one.
type UserRepository interface {
	// FindByEmail returns the user with the given email, or
	// apperror.ErrNotFound.
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByGitHubIDOrEmail returns the first user matching either key.
	// A github_id match outranks an email match; email may be "" to search
	// by github_id alone. Returns apperror.ErrNotFound when neither key hits.
	FindByGitHubIDOrEmail(ctx context.Context, githubID int64, email string) (*model.User, error)

	// CreateLocal inserts a local-provider user. The store assigns the ID.
	CreateLocal(ctx context.Context, username, email, passwordHash string) (*model.User, error)

	// CreateFederated inserts a github-provider user. email may be "".
	CreateFederated(ctx context.Context, username, email string, githubID int64) (*model.User, error)

	// GetUserByID returns the user with the given internal ID, or
	// apperror.ErrNotFound.
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
}
