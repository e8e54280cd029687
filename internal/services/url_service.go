// Package services contains business logic.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/emadnahed/linkguard/internal/idgen"
	"github.com/emadnahed/linkguard/internal/models"
	"github.com/emadnahed/linkguard/internal/repository"
	"github.com/emadnahed/linkguard/internal/security"
)

// Allocator creates mappings under unique codes.
type Allocator interface {
	Allocate(ctx context.Context, target string) (*models.Mapping, error)
}

// ShortenResult is the outcome of shortening a URL.
type ShortenResult struct {
	ShortCode   string
	ShortURL    string
	OriginalURL string
	CreatedAt   time.Time
}

// URLService defines the shorten and stats operations.
type URLService interface {
	Shorten(ctx context.Context, rawURL string) (*ShortenResult, error)
	Stats(ctx context.Context, code string) (*models.Mapping, error)
}

// URLServiceImpl implements URLService.
type URLServiceImpl struct {
	allocator Allocator
	store     repository.MappingStore
	sanitizer *security.Sanitizer
	baseURL   string
}

// NewURLService creates a URLService validating targets with the default
// sanitizer.
func NewURLService(allocator Allocator, store repository.MappingStore, baseURL string) *URLServiceImpl {
	return NewURLServiceWithSanitizer(allocator, store, security.NewSanitizer(security.DefaultConfig()), baseURL)
}

// NewURLServiceWithSanitizer creates a URLService with a custom sanitizer.
func NewURLServiceWithSanitizer(allocator Allocator, store repository.MappingStore, sanitizer *security.Sanitizer, baseURL string) *URLServiceImpl {
	return &URLServiceImpl{
		allocator: allocator,
		store:     store,
		sanitizer: sanitizer,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// Shorten validates rawURL and allocates a code for it. Validation failures
// wrap security.ErrInvalidTarget.
func (s *URLServiceImpl) Shorten(ctx context.Context, rawURL string) (*ShortenResult, error) {
	target, err := s.sanitizer.Clean(rawURL)
	if err != nil {
		return nil, err
	}

	m, err := s.allocator.Allocate(ctx, target)
	if err != nil {
		return nil, err
	}

	return &ShortenResult{
		ShortCode:   m.Code,
		ShortURL:    s.ShortURL(m.Code),
		OriginalURL: m.Target,
		CreatedAt:   m.CreatedAt,
	}, nil
}

// Stats returns the mapping for code without counting an access.
func (s *URLServiceImpl) Stats(ctx context.Context, code string) (*models.Mapping, error) {
	if err := ValidateCode(code); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, code)
}

// ShortURL joins the public base URL and code.
func (s *URLServiceImpl) ShortURL(code string) string {
	return fmt.Sprintf("%s/%s", s.baseURL, code)
}

// ValidateCode rejects codes no store can hold. The error matches both
// models.ErrNotFound and models.ErrInvalidCode.
func ValidateCode(code string) error {
	if len(code) > models.MaxCodeLength || !idgen.IsValid(code) {
		return fmt.Errorf("%w: %w", models.ErrNotFound, models.ErrInvalidCode)
	}
	return nil
}
