package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	hclog "github.com/hashicorp/go-hclog"

	"provhost/internal/modules/provider/domain"
	"provhost/internal/modules/provider/dto"
	providerout "provhost/internal/modules/provider/port/out"
	apperrors "provhost/internal/platform/errors"
	"provhost/internal/platform/semver"
)

const (
	PrefDebugIDSuffix       = "debug-id-suffix"
	PrefPurgeStaleResources = "purge-stale-resources"
)

type ProviderDeps struct {
	Catalog     *Catalog
	Loader      *Loader
	Unloader    *Unloader
	Initializer *Initializer
	Records     providerout.RecordStore
	Listings    providerout.ListingStore
	Fetcher     providerout.ListingFetcher
	Registrar   providerout.RepositoryRegistrar
	Packer      providerout.ArtifactPacker
	Logger      hclog.Logger
}

type ProviderService struct {
	catalog     *Catalog
	loader      *Loader
	unloader    *Unloader
	initializer *Initializer
	records     providerout.RecordStore
	listings    providerout.ListingStore
	fetcher     providerout.ListingFetcher
	registrar   providerout.RepositoryRegistrar
	packer      providerout.ArtifactPacker
	logger      hclog.Logger
}

func NewProviderService(deps ProviderDeps) *ProviderService {
	return &ProviderService{
		catalog:     deps.Catalog,
		loader:      deps.Loader,
		unloader:    deps.Unloader,
		initializer: deps.Initializer,
		records:     deps.Records,
		listings:    deps.Listings,
		fetcher:     deps.Fetcher,
		registrar:   deps.Registrar,
		packer:      deps.Packer,
		logger:      loggerOrDefault(deps.Logger).Named("providers"),
	}
}

func (s *ProviderService) Initialize(ctx context.Context) ([]dto.LoadResult, error) {
	results := []dto.LoadResult{}
	for outcome := range s.initializer.Run(ctx) {
		results = append(results, toLoadResult(outcome))
	}
	return results, ctx.Err()
}

func (s *ProviderService) List(ctx context.Context) ([]dto.ProviderInfo, error) {
	records, err := s.records.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ProviderInfo, 0, len(records))
	for idx, record := range records {
		info := dto.ProviderInfo{
			Position: idx,
			ID:       record.ID,
			Name:     record.Name,
			FilePath: record.FilePath,
			Enabled:  !record.IsDisabled,
			Debug:    record.IsDebug,
		}
		if loaded, ok := s.catalog.Get(record.ID); ok {
			info.Loaded = true
			info.Version = loaded.Manifest.Version
			info.Resources = loaded.Resources != nil
			_, info.Active = s.catalog.API(record.ID)
		}
		out = append(out, info)
	}
	return out, nil
}

func (s *ProviderService) Install(ctx context.Context, input dto.InstallInput) (dto.LoadResult, error) {
	if input.ProviderID == "" {
		return dto.LoadResult{}, fmt.Errorf("%w: provider id is required", apperrors.ErrInvalidInput)
	}
	if err := s.registrar.EnsureRepository(ctx, input.RepositoryURL); err != nil {
		return dto.LoadResult{}, err
	}
	listing, err := s.fetchListing(ctx, input.RepositoryURL)
	if err != nil {
		return dto.LoadResult{}, err
	}
	m, ok := findListing(listing, input.ProviderID)
	if !ok {
		return dto.LoadResult{}, fmt.Errorf("%w: provider %s in %s", apperrors.ErrNotFound, input.ProviderID, input.RepositoryURL)
	}
	outcome := s.loader.Load(ctx, m, "")
	return toLoadResult(outcome), outcome.Err
}

func (s *ProviderService) Uninstall(ctx context.Context, id string) (dto.UninstallResult, error) {
	record, ok, err := s.records.Get(ctx, id)
	if err != nil {
		return dto.UninstallResult{}, err
	}
	if !ok {
		return dto.UninstallResult{}, fmt.Errorf("%w: %s", domain.ErrUnloadNotFound, id)
	}
	unloaded, err := s.unloader.Unload(ctx, s.metadataFor(record), true)
	if err != nil {
		return dto.UninstallResult{}, err
	}
	if !unloaded {
		err := s.records.Update(ctx, func(current []domain.InstalledRecord) ([]domain.InstalledRecord, error) {
			return removeRecord(current, id), nil
		})
		if err != nil {
			return dto.UninstallResult{}, err
		}
		if !record.IsDebug {
			if err := os.Remove(record.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
				s.logger.Warn("could not delete artifact", "path", record.FilePath, "error", err)
			}
		}
	}
	return dto.UninstallResult{ID: id, Unloaded: unloaded}, nil
}

// SetEnabled flips the persisted flag and the API registration together.
// Enabling a provider that is not loaded loads it from its recorded file.
func (s *ProviderService) SetEnabled(ctx context.Context, id string, enabled bool) error {
	var record domain.InstalledRecord
	err := s.records.Update(ctx, func(current []domain.InstalledRecord) ([]domain.InstalledRecord, error) {
		for idx := range current {
			if current[idx].ID == id {
				current[idx].IsDisabled = !enabled
				record = current[idx]
				return current, nil
			}
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrUnloadNotFound, id)
	})
	if err != nil {
		return err
	}
	if !enabled {
		s.catalog.UnregisterAPI(id)
		s.logger.Info("provider disabled", "id", id)
		return nil
	}

	loaded, ok := s.catalog.Get(id)
	if !ok {
		listing, err := s.listings.Read(ctx, filepath.Dir(record.FilePath))
		if err != nil {
			return err
		}
		m, found := findListing(listing, domain.BaseID(id))
		if !found {
			return fmt.Errorf("%w: %s is missing from its listing", apperrors.ErrNotFound, id)
		}
		if record.IsDebug && domain.IsDebugID(id) {
			m = m.AsDebug()
		}
		return s.loader.Load(ctx, m, record.FilePath).Err
	}
	if err := s.loader.register(ctx, id, loaded.Instance); err != nil {
		markErr := s.records.Update(ctx, func(current []domain.InstalledRecord) ([]domain.InstalledRecord, error) {
			for idx := range current {
				if current[idx].ID == id {
					current[idx].IsDisabled = true
				}
			}
			return current, nil
		})
		if markErr != nil {
			s.logger.Error("could not mark provider disabled", "id", id, "error", markErr)
			return errors.Join(err, fmt.Errorf("mark %s disabled: %w", id, markErr))
		}
		return err
	}
	s.logger.Info("provider enabled", "id", id)
	return nil
}

func (s *ProviderService) Move(ctx context.Context, id string, position int) error {
	return s.records.Update(ctx, func(current []domain.InstalledRecord) ([]domain.InstalledRecord, error) {
		from := -1
		for idx := range current {
			if current[idx].ID == id {
				from = idx
				break
			}
		}
		if from < 0 {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrNotFound, id)
		}
		if position < 0 || position >= len(current) {
			return nil, fmt.Errorf("%w: position %d out of range", apperrors.ErrInvalidInput, position)
		}
		record := current[from]
		current = append(current[:from], current[from+1:]...)
		current = append(current[:position], append([]domain.InstalledRecord{record}, current[position:]...)...)
		return current, nil
	})
}

// Updates compares loaded production providers with their repository listings.
func (s *ProviderService) Updates(ctx context.Context) ([]dto.UpdateInfo, error) {
	listings := map[string][]domain.Metadata{}
	out := []dto.UpdateInfo{}
	for _, loaded := range s.catalog.Loaded() {
		if domain.IsDebugID(loaded.Metadata.ID) || loaded.Metadata.RepositoryURL == "" {
			continue
		}
		repoURL := loaded.Metadata.RepositoryURL
		listing, ok := listings[repoURL]
		if !ok {
			fetched, err := s.fetchListing(ctx, repoURL)
			if err != nil {
				s.logger.Warn("could not fetch repository listing", "url", repoURL, "error", err)
				listings[repoURL] = nil
				continue
			}
			listing = fetched
			listings[repoURL] = listing
		}
		candidate, found := findListing(listing, loaded.Metadata.ID)
		if !found {
			continue
		}
		if semver.Newer(loaded.Metadata.Version, candidate.Version) {
			out = append(out, dto.UpdateInfo{
				ID:        loaded.Metadata.ID,
				Name:      loaded.Metadata.Name,
				Current:   loaded.Metadata.Version,
				Available: candidate.Version,
				BuildURL:  candidate.BuildURL,
			})
		}
	}
	return out, nil
}

func (s *ProviderService) Preferences(ctx context.Context) (dto.Preferences, error) {
	prefs, err := s.records.Preferences(ctx)
	if err != nil {
		return dto.Preferences{}, err
	}
	return toPreferences(prefs), nil
}

func (s *ProviderService) SetPreference(ctx context.Context, key string, value bool) (dto.Preferences, error) {
	prefs, err := s.records.Preferences(ctx)
	if err != nil {
		return dto.Preferences{}, err
	}
	switch key {
	case PrefDebugIDSuffix:
		prefs.DebugIDSuffix = value
	case PrefPurgeStaleResources:
		prefs.PurgeStaleResources = value
	default:
		return dto.Preferences{}, fmt.Errorf("%w: %s", apperrors.ErrUnknownPreference, key)
	}
	if err := s.records.SavePreferences(ctx, prefs); err != nil {
		return dto.Preferences{}, err
	}
	return toPreferences(prefs), nil
}

func (s *ProviderService) Pack(ctx context.Context, input dto.PackInput) (dto.PackOutput, error) {
	manifest := domain.Manifest{
		ID:                input.ID,
		Name:              input.Name,
		Version:           input.Version,
		Entrypoint:        filepath.Base(input.BinaryPath),
		RequiresResources: input.ResourcesDir != "",
		UpdateURL:         input.UpdateURL,
	}
	if err := manifest.Validate(); err != nil {
		return dto.PackOutput{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	output := input.Output
	if output == "" {
		output = (domain.Metadata{ID: input.ID, Name: input.Name}).ArtifactFileName()
	}
	if err := s.packer.Pack(ctx, manifest, input.BinaryPath, input.ResourcesDir, output); err != nil {
		return dto.PackOutput{}, err
	}
	return dto.PackOutput{Path: output, Manifest: manifest.ID + "@" + manifest.Version}, nil
}

func (s *ProviderService) API(_ context.Context, id string) (domain.ProviderAPI, error) {
	if _, ok := s.catalog.Get(id); !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotLoaded, id)
	}
	api, ok := s.catalog.API(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s is disabled", domain.ErrNotLoaded, id)
	}
	return api, nil
}

func (s *ProviderService) fetchListing(ctx context.Context, repositoryURL string) ([]domain.Metadata, error) {
	listingURL, err := s.registrar.ListingURL(ctx, repositoryURL)
	if err != nil {
		return nil, err
	}
	return s.fetcher.Fetch(ctx, listingURL)
}

// metadataFor prefers the loaded metadata and falls back to the record.
func (s *ProviderService) metadataFor(record domain.InstalledRecord) domain.Metadata {
	if loaded, ok := s.catalog.Get(record.ID); ok {
		return loaded.Metadata
	}
	return domain.Metadata{ID: record.ID, Name: record.Name}
}

func toLoadResult(outcome domain.LoadOutcome) dto.LoadResult {
	result := dto.LoadResult{
		ID:       outcome.Metadata.ID,
		Name:     outcome.Metadata.Name,
		Version:  outcome.Metadata.Version,
		FilePath: outcome.FilePath,
		OK:       outcome.OK(),
	}
	if outcome.Err != nil {
		result.Error = outcome.Err.Error()
	}
	return result
}

func toPreferences(prefs domain.Preferences) dto.Preferences {
	return dto.Preferences{
		DebugIDSuffix:       prefs.DebugIDSuffix,
		PurgeStaleResources: prefs.PurgeStaleResources,
	}
}
