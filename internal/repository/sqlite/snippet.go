package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/snippetkeep/internal/apperror"
	"github.com/sakif/snippetkeep/internal/model"
	"github.com/sakif/snippetkeep/internal/repository"
)

// COMPILE-TIME INTERFACE CHECK:
// `var _ X = (*Y)(nil)` assigns a nil *Y to a variable of interface type X.
// If *Y doesn't implement X, the compiler errors immediately instead of at
// the first call site that happens to need the interface.
var _ repository.SnippetRepository = (*DB)(nil)

// Create inserts a new snippet and attaches its tags.
//
// ID GENERATION WITH xid:
// xid generates globally unique IDs that are 20 chars, URL-safe, and
// sortable by creation time (they start with a timestamp).
// Example: "cv37rs3pp9olc6atsptg".
//
// The snippet is a POINTER so the caller's struct gets the generated ID and
// timestamps back.
func (db *DB) Create(ctx context.Context, snippet *model.Snippet) error {
	snippet.ID = xid.New().String()

	now := time.Now()
	snippet.CreatedAt = now
	snippet.UpdatedAt = now

	// PARAMETERIZED QUERIES (the ? placeholders):
	// Never build SQL with string concatenation — the driver escapes the
	// bound values, which is what prevents SQL injection.
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO snippets (id, user_id, title, description, code, language, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snippet.ID,
		snippet.UserID,
		snippet.Title,
		snippet.Description,
		snippet.Code,
		snippet.Language,
		snippet.CreatedAt,
		snippet.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating snippet: %w", err)
	}

	if err := db.attachTags(ctx, snippet.ID, snippet.Tags); err != nil {
		return err
	}

	return nil
}

// attachTags links the named tags to a snippet.
//
// Both statements are INSERT OR IGNORE: an already-known tag name and an
// already-attached tag are no-ops, so the operation is idempotent and two
// snippets sharing a tag share the same tags row.
func (db *DB) attachTags(ctx context.Context, snippetID string, tags []string) error {
	for _, name := range tags {
		if _, err := db.conn.ExecContext(ctx,
			`INSERT OR IGNORE INTO tags (name) VALUES (?)`, name,
		); err != nil {
			return fmt.Errorf("sqlite: upserting tag %q: %w", name, err)
		}

		if _, err := db.conn.ExecContext(ctx,
			`INSERT OR IGNORE INTO snippet_tags (snippet_id, tag_id)
			 SELECT ?, id FROM tags WHERE name = ?`,
			snippetID, name,
		); err != nil {
			return fmt.Errorf("sqlite: linking tag %q: %w", name, err)
		}
	}
	return nil
}

// loadTags returns the tag names attached to a snippet, alphabetically.
func (db *DB) loadTags(ctx context.Context, snippetID string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT t.name FROM tags t
		 JOIN snippet_tags st ON st.tag_id = t.id
		 WHERE st.snippet_id = ?
		 ORDER BY t.name`,
		snippetID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading tags for %s: %w", snippetID, err)
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("sqlite: scanning tag row: %w", err)
		}
		tags = append(tags, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating tags: %w", err)
	}
	return tags, nil
}

// GetByID retrieves a single snippet (with tags) by its ID.
//
// sql.ErrNoRows is not really an error — it just means "no matching row
// exists". We translate it to our NotFound error so the handler knows to
// return 404. (database/sql doesn't wrap it, so == is the right check.)
func (db *DB) GetByID(ctx context.Context, id string) (*model.Snippet, error) {
	var s model.Snippet

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, title, description, code, language, created_at, updated_at
		 FROM snippets
		 WHERE id = ?`,
		id,
	).Scan(
		&s.ID,
		&s.UserID,
		&s.Title,
		&s.Description,
		&s.Code,
		&s.Language,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("snippet", id)
		}
		return nil, fmt.Errorf("sqlite: getting snippet %s: %w", id, err)
	}

	tags, err := db.loadTags(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	s.Tags = tags

	return &s, nil
}

// List retrieves snippets with pagination, newest first.
//
// defer rows.Close() IS CRITICAL:
// sql.Rows holds a connection from the pool; forgetting Close() leaks it,
// and after enough leaks the app hangs waiting for a free connection.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.Snippet, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, title, description, code, language, created_at, updated_at
		 FROM snippets
		 ORDER BY created_at DESC
		 LIMIT ? OFFSET ?`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing snippets: %w", err)
	}
	defer rows.Close()

	snippets := make([]model.Snippet, 0, limit)
	for rows.Next() {
		var s model.Snippet
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.Title, &s.Description, &s.Code, &s.Language,
			&s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning snippet row: %w", err)
		}
		snippets = append(snippets, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating snippets: %w", err)
	}

	for i := range snippets {
		tags, err := db.loadTags(ctx, snippets[i].ID)
		if err != nil {
			return nil, err
		}
		snippets[i].Tags = tags
	}

	return snippets, nil
}

// Update modifies an existing snippet and reconciles its tag links.
//
// RowsAffected() tells us how many rows the UPDATE changed — zero means the
// WHERE clause matched nothing, so the snippet doesn't exist. One query
// instead of a SELECT-then-UPDATE pair.
func (db *DB) Update(ctx context.Context, snippet *model.Snippet) error {
	snippet.UpdatedAt = time.Now()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE snippets
		 SET title = ?, description = ?, code = ?, language = ?, updated_at = ?
		 WHERE id = ?`,
		snippet.Title,
		snippet.Description,
		snippet.Code,
		snippet.Language,
		snippet.UpdatedAt,
		snippet.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating snippet %s: %w", snippet.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("snippet", snippet.ID)
	}

	// Reconcile tags: drop stale links, then re-attach the current set.
	// attachTags is idempotent so surviving links are untouched.
	if _, err := db.conn.ExecContext(ctx,
		`DELETE FROM snippet_tags WHERE snippet_id = ?`, snippet.ID,
	); err != nil {
		return fmt.Errorf("sqlite: clearing tag links for %s: %w", snippet.ID, err)
	}
	return db.attachTags(ctx, snippet.ID, snippet.Tags)
}

// Delete removes a snippet by its ID. The snippet_tags links go with it via
// ON DELETE CASCADE; the tags rows stay (other snippets may use them).
func (db *DB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM snippets WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting snippet %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("snippet", id)
	}

	return nil
}
