package usecase

import (
	"context"

	"provhost/internal/modules/provider/domain"
	"provhost/internal/modules/provider/dto"
	providerin "provhost/internal/modules/provider/port/in"
	"provhost/internal/modules/provider/service"
)

type Interactor struct {
	svc *service.ProviderService
}

func NewInteractor(svc *service.ProviderService) providerin.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) Initialize(ctx context.Context) ([]dto.LoadResult, error) {
	return i.svc.Initialize(ctx)
}

func (i *Interactor) List(ctx context.Context) ([]dto.ProviderInfo, error) {
	return i.svc.List(ctx)
}

func (i *Interactor) Install(ctx context.Context, input dto.InstallInput) (dto.LoadResult, error) {
	return i.svc.Install(ctx, input)
}

func (i *Interactor) Uninstall(ctx context.Context, id string) (dto.UninstallResult, error) {
	return i.svc.Uninstall(ctx, id)
}

func (i *Interactor) SetEnabled(ctx context.Context, id string, enabled bool) error {
	return i.svc.SetEnabled(ctx, id, enabled)
}

func (i *Interactor) Move(ctx context.Context, id string, position int) error {
	return i.svc.Move(ctx, id, position)
}

func (i *Interactor) Updates(ctx context.Context) ([]dto.UpdateInfo, error) {
	return i.svc.Updates(ctx)
}

func (i *Interactor) Update(ctx context.Context, id string) (dto.LoadResult, error) {
	return i.svc.Update(ctx, id)
}

func (i *Interactor) Preferences(ctx context.Context) (dto.Preferences, error) {
	return i.svc.Preferences(ctx)
}

func (i *Interactor) SetPreference(ctx context.Context, key string, value bool) (dto.Preferences, error) {
	return i.svc.SetPreference(ctx, key, value)
}

func (i *Interactor) Pack(ctx context.Context, input dto.PackInput) (dto.PackOutput, error) {
	return i.svc.Pack(ctx, input)
}

func (i *Interactor) API(ctx context.Context, id string) (domain.ProviderAPI, error) {
	return i.svc.API(ctx, id)
}
