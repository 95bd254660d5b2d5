package service

import (
	"fmt"
	"sort"
	"sync"

	"lprserver/internal/plate"
	"lprserver/internal/repository"
)

// AuthorizedService manages the authorized plate set. Every value passes
// through plate.Normalize before it reaches the repository, and nothing is
// cached so edits to the backing store are seen immediately.
type AuthorizedService struct {
	repo repository.PlateRepository
	mu   sync.RWMutex
}

func NewAuthorizedService(repo repository.PlateRepository) *AuthorizedService {
	return &AuthorizedService{repo: repo}
}

// List returns the stored plates in ascending order.
func (s *AuthorizedService) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plates, err := s.repo.All()
	if err != nil {
		return nil, fmt.Errorf("failed to list authorized plates: %w", err)
	}
	sort.Strings(plates)
	return plates, nil
}

// Add stores the normalized plate and returns it. Adding an existing plate is
// a no-op, and text that normalizes to "" is returned without being stored.
func (s *AuthorizedService) Add(raw string) (string, error) {
	normalized := plate.Normalize(raw)
	if normalized == "" {
		return normalized, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.repo.Exists(normalized)
	if err != nil {
		return "", fmt.Errorf("failed to check plate %q: %w", normalized, err)
	}
	if !exists {
		if err := s.repo.Insert(normalized); err != nil {
			return "", fmt.Errorf("failed to add plate %q: %w", normalized, err)
		}
	}
	return normalized, nil
}

// Remove deletes the normalized plate if present and returns the normalized
// text either way.
func (s *AuthorizedService) Remove(raw string) (string, error) {
	normalized := plate.Normalize(raw)
	if normalized == "" {
		return normalized, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Delete(normalized); err != nil {
		return "", fmt.Errorf("failed to remove plate %q: %w", normalized, err)
	}
	return normalized, nil
}

// IsAuthorized reports whether the normalized plate is stored.
func (s *AuthorizedService) IsAuthorized(raw string) (bool, error) {
	normalized := plate.Normalize(raw)
	if normalized == "" {
		return false, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ok, err := s.repo.Exists(normalized)
	if err != nil {
		return false, fmt.Errorf("failed to check plate %q: %w", normalized, err)
	}
	return ok, nil
}
