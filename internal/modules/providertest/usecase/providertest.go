package usecase

import (
	"context"
	"fmt"

	"provhost/internal/modules/providertest/domain"
	"provhost/internal/modules/providertest/dto"
	providertestin "provhost/internal/modules/providertest/port/in"
	providertestout "provhost/internal/modules/providertest/port/out"
	"provhost/internal/modules/providertest/service"
	apperrors "provhost/internal/platform/errors"
)

type Interactor struct {
	harness *service.Harness
	source  providertestout.ProviderSource
}

func NewInteractor(harness *service.Harness, source providertestout.ProviderSource) providertestin.Usecase {
	return &Interactor{harness: harness, source: source}
}

func (i *Interactor) Start(ctx context.Context, ids []string) error {
	loaded, err := i.source.Loaded(ctx)
	if err != nil {
		return err
	}
	targets, err := selectTargets(loaded, ids)
	if err != nil {
		return err
	}
	return i.harness.Start(ctx, targets)
}

func (i *Interactor) Pause(context.Context) error {
	return i.harness.Pause()
}

func (i *Interactor) Resume(context.Context) error {
	return i.harness.Resume()
}

func (i *Interactor) Stop(context.Context) error {
	return i.harness.Stop()
}

func (i *Interactor) Wait(ctx context.Context) error {
	return i.harness.Wait(ctx)
}

func (i *Interactor) Snapshot(context.Context) dto.Snapshot {
	return toSnapshot(i.harness.Snapshot())
}

// Subscribe converts harness snapshots until cancel is called.
func (i *Interactor) Subscribe(buffer int) (<-chan dto.Snapshot, func()) {
	source, cancel := i.harness.Subscribe(buffer)
	out := make(chan dto.Snapshot, cap(source))
	go func() {
		defer close(out)
		for snapshot := range source {
			select {
			case out <- toSnapshot(snapshot):
			default:
			}
		}
	}()
	return out, cancel
}

// selectTargets keeps the requested order; an empty request selects every loaded provider.
func selectTargets(loaded []domain.Target, ids []string) ([]domain.Target, error) {
	if len(ids) == 0 {
		return loaded, nil
	}
	byID := make(map[string]domain.Target, len(loaded))
	for _, target := range loaded {
		byID[target.ID] = target
	}
	targets := make([]domain.Target, 0, len(ids))
	for _, id := range ids {
		target, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: provider %s is not loaded and enabled", apperrors.ErrNotFound, id)
		}
		targets = append(targets, target)
	}
	return targets, nil
}

func toSnapshot(snapshot domain.Snapshot) dto.Snapshot {
	out := dto.Snapshot{
		Stage:    snapshot.Stage.Kind.String(),
		Provider: snapshot.Stage.Provider,
		State:    snapshot.State.String(),
		Results:  make([]dto.RunResult, 0, len(snapshot.Results)),
	}
	for _, result := range snapshot.Results {
		run := dto.RunResult{
			ID:         result.ID,
			ProviderID: result.Provider.ID,
			Label:      result.Label,
			StartedAt:  result.StartedAt,
			Cases:      make([]dto.CaseResult, 0, len(result.Cases)),
		}
		for _, c := range result.Cases {
			run.Cases = append(run.Cases, dto.CaseResult{
				Name:     c.Name,
				Status:   string(c.Status),
				Elapsed:  c.Elapsed,
				ShortLog: c.ShortLog,
				FullLog:  c.FullLog,
			})
		}
		out.Results = append(out.Results, run)
	}
	if snapshot.Sample != nil {
		out.Sample = &dto.Sample{ID: snapshot.Sample.ID, Title: snapshot.Sample.Title}
	}
	return out
}
