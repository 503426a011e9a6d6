package in

import (
	"context"

	"provhost/internal/modules/provider/domain"
	"provhost/internal/modules/provider/dto"
)

type Usecase interface {
	Initialize(ctx context.Context) ([]dto.LoadResult, error)
	List(ctx context.Context) ([]dto.ProviderInfo, error)
	Install(ctx context.Context, input dto.InstallInput) (dto.LoadResult, error)
	Uninstall(ctx context.Context, id string) (dto.UninstallResult, error)
	SetEnabled(ctx context.Context, id string, enabled bool) error
	Move(ctx context.Context, id string, position int) error
	Updates(ctx context.Context) ([]dto.UpdateInfo, error)
	Update(ctx context.Context, id string) (dto.LoadResult, error)
	Preferences(ctx context.Context) (dto.Preferences, error)
	SetPreference(ctx context.Context, key string, value bool) (dto.Preferences, error)
	Pack(ctx context.Context, input dto.PackInput) (dto.PackOutput, error)
	// API resolves the registered capability object of a loaded, enabled provider.
	API(ctx context.Context, id string) (domain.ProviderAPI, error)
}
