package out

import (
	"context"

	providerdomain "provhost/internal/modules/provider/domain"
	providerin "provhost/internal/modules/provider/port/in"
	"provhost/internal/modules/providertest/domain"
	providertestout "provhost/internal/modules/providertest/port/out"
)

// CatalogSource reads loaded providers through the provider module's inbound port.
type CatalogSource struct {
	providers providerin.Usecase
}

func NewCatalogSource(providers providerin.Usecase) providertestout.ProviderSource {
	return &CatalogSource{providers: providers}
}

func (s *CatalogSource) Loaded(ctx context.Context) ([]domain.Target, error) {
	infos, err := s.providers.List(ctx)
	if err != nil {
		return nil, err
	}
	targets := []domain.Target{}
	for _, info := range infos {
		if info.Active {
			targets = append(targets, domain.Target{ID: info.ID, Name: info.Name})
		}
	}
	return targets, nil
}

func (s *CatalogSource) API(ctx context.Context, id string) (providerdomain.ProviderAPI, error) {
	return s.providers.API(ctx, id)
}
