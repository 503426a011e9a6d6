package service

import (
	"context"
	"fmt"

	"provhost/internal/modules/repository/domain"
	repositoryout "provhost/internal/modules/repository/port/out"
)

type RepositoryService struct {
	store repositoryout.Store
}

func NewRepositoryService(store repositoryout.Store) *RepositoryService {
	return &RepositoryService{store: store}
}

func (s *RepositoryService) Add(ctx context.Context, raw string) (domain.Repository, error) {
	repo, added, err := s.Ensure(ctx, raw)
	if err != nil {
		return domain.Repository{}, err
	}
	if !added {
		return domain.Repository{}, fmt.Errorf("%w: %s", domain.ErrDuplicateRepository, repo.URL)
	}
	return repo, nil
}

// Ensure adds the repository unless one with the same URL is already present.
func (s *RepositoryService) Ensure(ctx context.Context, raw string) (domain.Repository, bool, error) {
	repo, err := domain.Parse(raw)
	if err != nil {
		return domain.Repository{}, false, err
	}
	added := false
	err = s.store.Update(ctx, func(current []domain.Repository) ([]domain.Repository, error) {
		for _, item := range current {
			if item.URL == repo.URL {
				return current, nil
			}
		}
		added = true
		return append(current, repo), nil
	})
	if err != nil {
		return domain.Repository{}, false, err
	}
	return repo, added, nil
}

func (s *RepositoryService) Remove(ctx context.Context, raw string) error {
	target := raw
	if repo, err := domain.Parse(raw); err == nil {
		target = repo.URL
	}
	return s.store.Update(ctx, func(current []domain.Repository) ([]domain.Repository, error) {
		out := make([]domain.Repository, 0, len(current))
		found := false
		for _, item := range current {
			if item.URL == target {
				found = true
				continue
			}
			out = append(out, item)
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", domain.ErrRepositoryNotFound, raw)
		}
		return out, nil
	})
}

func (s *RepositoryService) List(ctx context.Context) ([]domain.Repository, error) {
	return s.store.List(ctx)
}
