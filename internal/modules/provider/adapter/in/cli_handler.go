package in

import (
	"context"

	"provhost/internal/modules/provider/dto"
	providerin "provhost/internal/modules/provider/port/in"
)

type CLIHandler struct {
	usecase providerin.Usecase
}

func NewCLIHandler(usecase providerin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Init(ctx context.Context) ([]dto.LoadResult, error) {
	return h.usecase.Initialize(ctx)
}

func (h CLIHandler) List(ctx context.Context) ([]dto.ProviderInfo, error) {
	return h.usecase.List(ctx)
}

func (h CLIHandler) Install(ctx context.Context, repositoryURL, providerID string) (dto.LoadResult, error) {
	return h.usecase.Install(ctx, dto.InstallInput{RepositoryURL: repositoryURL, ProviderID: providerID})
}

func (h CLIHandler) Uninstall(ctx context.Context, id string) (dto.UninstallResult, error) {
	return h.usecase.Uninstall(ctx, id)
}

func (h CLIHandler) Enable(ctx context.Context, id string) error {
	return h.usecase.SetEnabled(ctx, id, true)
}

func (h CLIHandler) Disable(ctx context.Context, id string) error {
	return h.usecase.SetEnabled(ctx, id, false)
}

func (h CLIHandler) Move(ctx context.Context, id string, position int) error {
	return h.usecase.Move(ctx, id, position)
}

func (h CLIHandler) Updates(ctx context.Context) ([]dto.UpdateInfo, error) {
	return h.usecase.Updates(ctx)
}

func (h CLIHandler) Update(ctx context.Context, id string) (dto.LoadResult, error) {
	return h.usecase.Update(ctx, id)
}

func (h CLIHandler) Preferences(ctx context.Context) (dto.Preferences, error) {
	return h.usecase.Preferences(ctx)
}

func (h CLIHandler) SetPreference(ctx context.Context, key string, value bool) (dto.Preferences, error) {
	return h.usecase.SetPreference(ctx, key, value)
}

func (h CLIHandler) Pack(ctx context.Context, input dto.PackInput) (dto.PackOutput, error) {
	return h.usecase.Pack(ctx, input)
}
