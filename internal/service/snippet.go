// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// The service takes repository INTERFACES, not concrete types — tests pass
// in-memory fakes, production passes the sqlite implementation, and the
// service can't tell the difference.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/snippetkeep/internal/apperror"
	"github.com/sakif/snippetkeep/internal/model"
	"github.com/sakif/snippetkeep/internal/repository"
)

// Validation constants.
const (
	MaxSnippetTitleLength = 100
	MaxCodeLength         = 100000 // ~100KB of code
	MaxTagLength          = 40
	MaxTagsPerSnippet     = 10
	DefaultListLimit      = 20
	MaxListLimit          = 100
)

// SnippetService handles business logic for code snippets.
type SnippetService struct {
	repo   repository.SnippetRepository
	logger *slog.Logger
}

// NewSnippetService creates a new SnippetService.
func NewSnippetService(repo repository.SnippetRepository, logger *slog.Logger) *SnippetService {
	return &SnippetService{
		repo:   repo,
		logger: logger,
	}
}

// normalizeTags trims, lowercases, de-duplicates, and validates tag names.
// Returns a validation error for an over-long tag or too many of them.
func normalizeTags(tags []string) ([]string, error) {
	if len(tags) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool, len(tags))
	result := make([]string, 0, len(tags))
	for _, raw := range tags {
		tag := strings.ToLower(strings.TrimSpace(raw))
		if tag == "" || seen[tag] {
			continue
		}
		if len(tag) > MaxTagLength {
			return nil, apperror.ValidationFailed("tags",
				fmt.Sprintf("tags must be %d characters or less", MaxTagLength))
		}
		seen[tag] = true
		result = append(result, tag)
	}
	if len(result) > MaxTagsPerSnippet {
		return nil, apperror.ValidationFailed("tags",
			fmt.Sprintf("a snippet may have at most %d tags", MaxTagsPerSnippet))
	}
	return result, nil
}

// Create validates and saves a new snippet owned by userID.
//
// The method accepts primitives, not HTTP types — the service has zero
// knowledge of HTTP, and returns domain errors (apperror.*) that the
// handler layer translates to status codes.
func (s *SnippetService) Create(ctx context.Context, userID int64, title, description, code, language string, tags []string) (*model.Snippet, error) {
	title = strings.TrimSpace(title)

	if userID <= 0 {
		return nil, apperror.ValidationFailed("userId", "owner is required")
	}
	if title == "" {
		return nil, apperror.ValidationFailed("title", "snippet title is required")
	}
	if len(title) > MaxSnippetTitleLength {
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("snippet title must be %d characters or less", MaxSnippetTitleLength))
	}
	if len(code) > MaxCodeLength {
		return nil, apperror.ValidationFailed("code",
			fmt.Sprintf("code must be %d characters or less", MaxCodeLength))
	}

	normalized, err := normalizeTags(tags)
	if err != nil {
		return nil, err
	}

	snippet := &model.Snippet{
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(description),
		Code:        code,
		Language:    strings.ToLower(strings.TrimSpace(language)),
		Tags:        normalized,
	}

	if err := s.repo.Create(ctx, snippet); err != nil {
		s.logger.Error("failed to create snippet",
			slog.String("title", title),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating snippet: %w", err)
	}

	s.logger.Info("snippet created",
		slog.String("id", snippet.ID),
		slog.Int64("userID", userID),
	)

	return snippet, nil
}

// GetByID retrieves a snippet by its ID.
// Returns apperror.ErrNotFound if the snippet doesn't exist.
func (s *SnippetService) GetByID(ctx context.Context, id string) (*model.Snippet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "snippet ID is required")
	}

	return s.repo.GetByID(ctx, id)
}

// List retrieves snippets with pagination, newest first.
// limit is clamped to 1–100 (default 20); offset can't be negative.
func (s *SnippetService) List(ctx context.Context, limit, offset int) ([]model.Snippet, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	snippets, err := s.repo.List(ctx, repository.ListOptions{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.logger.Error("failed to list snippets", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing snippets: %w", err)
	}

	return snippets, nil
}

// Update modifies an existing snippet on behalf of userID.
//
// Fetch-then-update: confirming existence first keeps the "not found" error
// consistent and lets us check ownership before touching anything. Only the
// owner may modify a snippet.
func (s *SnippetService) Update(ctx context.Context, userID int64, id, title, description, code, language string, tags []string) (*model.Snippet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "snippet ID is required")
	}

	snippet, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if snippet.UserID != userID {
		return nil, apperror.Forbidden("snippet belongs to another user")
	}

	if title = strings.TrimSpace(title); title != "" {
		if len(title) > MaxSnippetTitleLength {
			return nil, apperror.ValidationFailed("title",
				fmt.Sprintf("snippet title must be %d characters or less", MaxSnippetTitleLength))
		}
		snippet.Title = title
	}

	// Code CAN be empty (user might want to clear it), so always update it
	if len(code) > MaxCodeLength {
		return nil, apperror.ValidationFailed("code",
			fmt.Sprintf("code must be %d characters or less", MaxCodeLength))
	}
	snippet.Code = code
	snippet.Description = strings.TrimSpace(description)
	snippet.Language = strings.ToLower(strings.TrimSpace(language))

	normalized, err := normalizeTags(tags)
	if err != nil {
		return nil, err
	}
	snippet.Tags = normalized

	if err := s.repo.Update(ctx, snippet); err != nil {
		s.logger.Error("failed to update snippet",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating snippet: %w", err)
	}

	s.logger.Info("snippet updated", slog.String("id", snippet.ID))
	return snippet, nil
}

// Delete removes a snippet on behalf of userID. Only the owner may delete.
func (s *SnippetService) Delete(ctx context.Context, userID int64, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "snippet ID is required")
	}

	snippet, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if snippet.UserID != userID {
		return apperror.Forbidden("snippet belongs to another user")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("snippet deleted", slog.String("id", id))
	return nil
}
