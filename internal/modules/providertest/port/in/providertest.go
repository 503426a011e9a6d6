package in

import (
	"context"

	"provhost/internal/modules/providertest/dto"
)

type Usecase interface {
	// Start tests the given provider ids in order, or every active provider when ids is empty.
	Start(ctx context.Context, ids []string) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Stop(ctx context.Context) error
	Wait(ctx context.Context) error
	Snapshot(ctx context.Context) dto.Snapshot
	Subscribe(buffer int) (<-chan dto.Snapshot, func())
}
