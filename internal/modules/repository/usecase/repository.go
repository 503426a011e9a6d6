package usecase

import (
	"context"

	"provhost/internal/modules/repository/domain"
	"provhost/internal/modules/repository/dto"
	repositoryin "provhost/internal/modules/repository/port/in"
	"provhost/internal/modules/repository/service"
)

type Interactor struct {
	svc *service.RepositoryService
}

func NewInteractor(svc *service.RepositoryService) repositoryin.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) Add(ctx context.Context, url string) (dto.RepositoryInfo, error) {
	repo, err := i.svc.Add(ctx, url)
	if err != nil {
		return dto.RepositoryInfo{}, err
	}
	return toInfo(repo), nil
}

func (i *Interactor) Ensure(ctx context.Context, url string) (dto.EnsureOutput, error) {
	repo, added, err := i.svc.Ensure(ctx, url)
	if err != nil {
		return dto.EnsureOutput{}, err
	}
	return dto.EnsureOutput{Repository: toInfo(repo), Added: added}, nil
}

func (i *Interactor) Remove(ctx context.Context, url string) error {
	return i.svc.Remove(ctx, url)
}

func (i *Interactor) List(ctx context.Context) ([]dto.RepositoryInfo, error) {
	repos, err := i.svc.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.RepositoryInfo, 0, len(repos))
	for _, repo := range repos {
		out = append(out, toInfo(repo))
	}
	return out, nil
}

func toInfo(repo domain.Repository) dto.RepositoryInfo {
	return dto.RepositoryInfo{Owner: repo.Owner, Name: repo.Name, URL: repo.URL, RawLinkFormat: repo.RawLinkFormat}
}
