package in

import (
	"context"

	"provhost/internal/modules/providertest/dto"
	providertestin "provhost/internal/modules/providertest/port/in"
)

type CLIHandler struct {
	usecase providertestin.Usecase
}

func NewCLIHandler(usecase providertestin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Start(ctx context.Context, ids []string) error {
	return h.usecase.Start(ctx, ids)
}

func (h CLIHandler) Pause(ctx context.Context) error {
	return h.usecase.Pause(ctx)
}

func (h CLIHandler) Resume(ctx context.Context) error {
	return h.usecase.Resume(ctx)
}

func (h CLIHandler) Stop(ctx context.Context) error {
	return h.usecase.Stop(ctx)
}

func (h CLIHandler) Wait(ctx context.Context) error {
	return h.usecase.Wait(ctx)
}

func (h CLIHandler) Snapshot(ctx context.Context) dto.Snapshot {
	return h.usecase.Snapshot(ctx)
}

func (h CLIHandler) Watch(buffer int) (<-chan dto.Snapshot, func()) {
	return h.usecase.Subscribe(buffer)
}
