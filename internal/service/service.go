// Package service contains the business rules of KeepUp.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, enforces rules, orchestrates
//	Repository (data layer)  → reads/writes the database
//
// Services take repository interfaces, never a concrete store, and return
// apperror values, never HTTP status codes. The same methods back the HTTP
// API and the seed command.
//
// ACTING USER:
// Methods that change state take the id of the authenticated caller
// (actorID) and decide on their own whether that caller may act. Handlers
// never make that decision.
package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/keepup/keepup-api/internal/apperror"
	"github.com/keepup/keepup-api/internal/model"
	"github.com/keepup/keepup-api/internal/repository"
)

// Validation limits.
const (
	MaxContentLength     = 5000
	MaxMediaURLLength    = 2048
	MaxCommentLength     = 1000
	MinUsernameLength    = 3
	MaxUsernameLength    = 30
	MaxNameLength        = 100
	MaxBioLength         = 500
	MaxGroupNameLength   = 100
	MaxGroupDescLength   = 1000
	MaxProfilePictureURL = 2048
)

// requireText trims s and checks it is non-empty and at most max
// characters.
func requireText(field, s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", apperror.ValidationFailed(field, field+" is required")
	}
	if utf8.RuneCountInString(s) > max {
		return "", apperror.ValidationFailed(field, fmt.Sprintf("%s must be %d characters or less", field, max))
	}
	return s, nil
}

func optionalText(field, s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > max {
		return "", apperror.ValidationFailed(field, fmt.Sprintf("%s must be %d characters or less", field, max))
	}
	return s, nil
}

// summaries resolves author ids to display summaries in one query.
func summaries(ctx context.Context, users repository.UserRepository, ids []string) (map[string]*model.UserSummary, error) {
	seen := make(map[string]bool, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	out, err := users.GetUserSummaries(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("loading authors: %w", err)
	}
	return out, nil
}

// populateComments fills Author on each comment.
func populateComments(ctx context.Context, users repository.UserRepository, comments []model.Comment) error {
	ids := make([]string, len(comments))
	for i := range comments {
		ids[i] = comments[i].AuthorID
	}
	authors, err := summaries(ctx, users, ids)
	if err != nil {
		return err
	}
	for i := range comments {
		comments[i].Author = authors[comments[i].AuthorID]
	}
	return nil
}
