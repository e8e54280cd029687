package services

import (
	"context"
	"fmt"

	"github.com/emadnahed/linkguard/internal/metrics"
	"github.com/emadnahed/linkguard/internal/models"
	"github.com/emadnahed/linkguard/internal/repository"
)

// RedirectService defines the resolve operation.
type RedirectService interface {
	Resolve(ctx context.Context, code string) (*models.Mapping, error)
}

// RedirectServiceImpl implements RedirectService.
type RedirectServiceImpl struct {
	store repository.MappingStore
}

// NewRedirectService creates a new RedirectService instance.
func NewRedirectService(store repository.MappingStore) *RedirectServiceImpl {
	return &RedirectServiceImpl{store: store}
}

// Resolve looks up code and counts the access. The counter is bumped by
// the store in one atomic step; if that fails the error is returned and
// the caller must not redirect, so the count never trails served redirects.
func (s *RedirectServiceImpl) Resolve(ctx context.Context, code string) (*models.Mapping, error) {
	if err := ValidateCode(code); err != nil {
		return nil, err
	}

	m, err := s.store.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	if err := s.store.IncrementAccessCount(ctx, code); err != nil {
		return nil, fmt.Errorf("count access to %q: %w", code, err)
	}
	m.AccessCount++
	metrics.RecordRedirect()

	return m, nil
}
