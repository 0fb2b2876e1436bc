package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/snippetkeep/internal/apperror"
	"github.com/sakif/snippetkeep/internal/model"
	"github.com/sakif/snippetkeep/internal/repository"
)

// fakeSnippetRepo is an in-memory repository.SnippetRepository.
type fakeSnippetRepo struct {
	snippets map[string]*model.Snippet
	order    []string // insertion order, oldest first
}

func newFakeSnippetRepo() *fakeSnippetRepo {
	return &fakeSnippetRepo{snippets: make(map[string]*model.Snippet)}
}

func (f *fakeSnippetRepo) Create(_ context.Context, s *model.Snippet) error {
	s.ID = xid.New().String()
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	copied := *s
	f.snippets[s.ID] = &copied
	f.order = append(f.order, s.ID)
	return nil
}

func (f *fakeSnippetRepo) GetByID(_ context.Context, id string) (*model.Snippet, error) {
	s, ok := f.snippets[id]
	if !ok {
		return nil, apperror.NotFound("snippet", id)
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSnippetRepo) List(_ context.Context, opts repository.ListOptions) ([]model.Snippet, error) {
	// Newest first, like the SQL implementation.
	var out []model.Snippet
	for i := len(f.order) - 1 - opts.Offset; i >= 0 && len(out) < opts.Limit; i-- {
		out = append(out, *f.snippets[f.order[i]])
	}
	return out, nil
}

func (f *fakeSnippetRepo) Update(_ context.Context, s *model.Snippet) error {
	if _, ok := f.snippets[s.ID]; !ok {
		return apperror.NotFound("snippet", s.ID)
	}
	s.UpdatedAt = time.Now()
	copied := *s
	f.snippets[s.ID] = &copied
	return nil
}

func (f *fakeSnippetRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.snippets[id]; !ok {
		return apperror.NotFound("snippet", id)
	}
	delete(f.snippets, id)
	for i, oid := range f.order {
		if oid == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

func newTestSnippetService(repo *fakeSnippetRepo) *SnippetService {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewSnippetService(repo, logger)
}

const testOwnerID int64 = 1

// =========================================================================
// Create TESTS
// =========================================================================

func TestSnippetCreate_Valid(t *testing.T) {
	svc := newTestSnippetService(newFakeSnippetRepo())

	snippet, err := svc.Create(context.Background(), testOwnerID,
		"  Hello World  ", "greets", `fmt.Println("hi")`, "Go", []string{"Demo", "demo", " basics "})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if snippet.ID == "" {
		t.Error("snippet should have an assigned ID")
	}
	if snippet.Title != "Hello World" {
		t.Errorf("Title = %q, want trimmed %q", snippet.Title, "Hello World")
	}
	if snippet.Language != "go" {
		t.Errorf("Language = %q, want lowercased %q", snippet.Language, "go")
	}
	// Tags: lowercased, trimmed, de-duplicated.
	if len(snippet.Tags) != 2 || snippet.Tags[0] != "demo" || snippet.Tags[1] != "basics" {
		t.Errorf("Tags = %v, want [demo basics]", snippet.Tags)
	}
}

func TestSnippetCreate_Validation(t *testing.T) {
	svc := newTestSnippetService(newFakeSnippetRepo())

	longTitle := strings.Repeat("x", MaxSnippetTitleLength+1)
	longCode := strings.Repeat("x", MaxCodeLength+1)
	longTag := strings.Repeat("x", MaxTagLength+1)
	manyTags := make([]string, MaxTagsPerSnippet+1)
	for i := range manyTags {
		manyTags[i] = "tag" + strings.Repeat("a", i+1)
	}

	tests := []struct {
		name   string
		userID int64
		title  string
		code   string
		tags   []string
	}{
		{"no owner", 0, "t", "", nil},
		{"empty title", testOwnerID, "", "", nil},
		{"whitespace title", testOwnerID, "   ", "", nil},
		{"title too long", testOwnerID, longTitle, "", nil},
		{"code too long", testOwnerID, "t", longCode, nil},
		{"tag too long", testOwnerID, "t", "", []string{longTag}},
		{"too many tags", testOwnerID, "t", "", manyTags},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.userID, tt.title, "", tt.code, "go", tt.tags)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("Create() error = %v, want ErrValidation", err)
			}
		})
	}
}

// =========================================================================
// List TESTS
// =========================================================================

func TestSnippetList_ClampsLimits(t *testing.T) {
	repo := newFakeSnippetRepo()
	svc := newTestSnippetService(repo)

	for i := 0; i < 30; i++ {
		if _, err := svc.Create(context.Background(), testOwnerID, "t", "", "", "go", nil); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	// limit <= 0 falls back to the default.
	snippets, err := svc.List(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(snippets) != DefaultListLimit {
		t.Errorf("len = %d, want default %d", len(snippets), DefaultListLimit)
	}

	// negative offset is treated as zero
	snippets, err = svc.List(context.Background(), 5, -10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(snippets) != 5 {
		t.Errorf("len = %d, want 5", len(snippets))
	}
}

// =========================================================================
// OWNERSHIP TESTS
// =========================================================================

func TestSnippetUpdate_OwnerOnly(t *testing.T) {
	repo := newFakeSnippetRepo()
	svc := newTestSnippetService(repo)

	snippet, err := svc.Create(context.Background(), testOwnerID, "mine", "", "code", "go", nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err = svc.Update(context.Background(), testOwnerID+1, snippet.ID, "stolen", "", "", "", nil)
	if !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("Update() by non-owner error = %v, want ErrForbidden", err)
	}

	// The owner succeeds, and empty code is a legitimate update.
	updated, err := svc.Update(context.Background(), testOwnerID, snippet.ID, "renamed", "", "", "go", nil)
	if err != nil {
		t.Fatalf("Update() by owner error = %v", err)
	}
	if updated.Title != "renamed" {
		t.Errorf("Title = %q, want %q", updated.Title, "renamed")
	}
	if updated.Code != "" {
		t.Errorf("Code = %q, want cleared", updated.Code)
	}
}

func TestSnippetDelete_OwnerOnly(t *testing.T) {
	repo := newFakeSnippetRepo()
	svc := newTestSnippetService(repo)

	snippet, err := svc.Create(context.Background(), testOwnerID, "mine", "", "", "go", nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := svc.Delete(context.Background(), testOwnerID+1, snippet.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("Delete() by non-owner error = %v, want ErrForbidden", err)
	}

	if err := svc.Delete(context.Background(), testOwnerID, snippet.ID); err != nil {
		t.Fatalf("Delete() by owner error = %v", err)
	}

	if _, err := svc.GetByID(context.Background(), snippet.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("GetByID() after delete error = %v, want ErrNotFound", err)
	}
}

func TestSnippetUpdate_NotFound(t *testing.T) {
	svc := newTestSnippetService(newFakeSnippetRepo())

	_, err := svc.Update(context.Background(), testOwnerID, "no-such-id", "t", "", "", "", nil)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("Update() error = %v, want ErrNotFound", err)
	}
}
