package in

import (
	"context"

	"provhost/internal/modules/repository/dto"
)

type Usecase interface {
	Add(ctx context.Context, url string) (dto.RepositoryInfo, error)
	Ensure(ctx context.Context, url string) (dto.EnsureOutput, error)
	Remove(ctx context.Context, url string) error
	List(ctx context.Context) ([]dto.RepositoryInfo, error)
}
