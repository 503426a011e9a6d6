package in

import (
	"context"

	"provhost/internal/modules/repository/dto"
	repositoryin "provhost/internal/modules/repository/port/in"
)

type CLIHandler struct {
	usecase repositoryin.Usecase
}

func NewCLIHandler(usecase repositoryin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Add(ctx context.Context, url string) (dto.RepositoryInfo, error) {
	return h.usecase.Add(ctx, url)
}

func (h CLIHandler) Remove(ctx context.Context, url string) error {
	return h.usecase.Remove(ctx, url)
}

func (h CLIHandler) List(ctx context.Context) ([]dto.RepositoryInfo, error) {
	return h.usecase.List(ctx)
}
