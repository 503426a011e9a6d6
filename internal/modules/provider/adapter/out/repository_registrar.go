package out

import (
	"context"

	"provhost/internal/modules/provider/domain"
	providerout "provhost/internal/modules/provider/port/out"
	repositorydomain "provhost/internal/modules/repository/domain"
	repositoryin "provhost/internal/modules/repository/port/in"
)

// RepositoryRegistrar lets the provider lifecycle register and resolve
// repositories through the repository module.
type RepositoryRegistrar struct {
	repositories repositoryin.Usecase
}

func NewRepositoryRegistrar(repositories repositoryin.Usecase) providerout.RepositoryRegistrar {
	return RepositoryRegistrar{repositories: repositories}
}

func (r RepositoryRegistrar) EnsureRepository(ctx context.Context, url string) error {
	_, err := r.repositories.Ensure(ctx, url)
	return err
}

func (r RepositoryRegistrar) ListingURL(_ context.Context, url string) (string, error) {
	repo, err := repositorydomain.Parse(url)
	if err != nil {
		return "", err
	}
	return repo.RawLink(domain.ListingFileName, domain.ListingBranch), nil
}
