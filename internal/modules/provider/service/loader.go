package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	hclog "github.com/hashicorp/go-hclog"

	"provhost/internal/modules/provider/domain"
	providerout "provhost/internal/modules/provider/port/out"
)

type LoaderDeps struct {
	Catalog     *Catalog
	Records     providerout.RecordStore
	Modules     providerout.ModuleLoader
	Downloader  providerout.Downloader
	Listings    providerout.ListingStore
	Layout      domain.Layout
	LoadTimeout time.Duration
	Logger      hclog.Logger
	Metrics     providerout.Metrics
}

// Loader turns a metadata entry and an artifact into a registered provider.
type Loader struct {
	catalog    *Catalog
	records    providerout.RecordStore
	modules    providerout.ModuleLoader
	downloader providerout.Downloader
	listings   providerout.ListingStore
	layout     domain.Layout
	timeout    time.Duration
	logger     hclog.Logger
	metrics    providerout.Metrics
}

func NewLoader(deps LoaderDeps) *Loader {
	return &Loader{
		catalog:    deps.Catalog,
		records:    deps.Records,
		modules:    deps.Modules,
		downloader: deps.Downloader,
		listings:   deps.Listings,
		layout:     deps.Layout,
		timeout:    deps.LoadTimeout,
		logger:     loggerOrDefault(deps.Logger).Named("loader"),
		metrics:    metricsOrNoop(deps.Metrics),
	}
}

// Load produces exactly one outcome. An empty filePath downloads the build first.
func (l *Loader) Load(ctx context.Context, m domain.Metadata, filePath string) (outcome domain.LoadOutcome) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	started := time.Now()
	defer func() {
		l.metrics.LoadFinished(outcomeLabel(outcome.Err))
		if outcome.OK() {
			l.logger.Info("provider loaded", "id", m.ID, "version", m.Version, "elapsed", time.Since(started))
			return
		}
		l.logger.Error("provider load failed", "id", m.ID, "path", outcome.FilePath, "error", outcome.Err)
	}()

	if m.ID == "" {
		return domain.Failed(m, filePath, fmt.Errorf("%w: metadata has no id", domain.ErrManifestInvalid))
	}
	release, err := l.catalog.Reserve(m.ID)
	if err != nil {
		return domain.Failed(m, filePath, err)
	}
	defer release()

	if filePath == "" {
		filePath, err = l.download(ctx, m)
		if err != nil {
			return domain.Failed(m, filePath, err)
		}
	}

	info, err := os.Stat(filePath)
	if err != nil || info.IsDir() {
		return domain.Failed(m, filePath, fmt.Errorf("%w: %s", domain.ErrFileNotFound, filePath))
	}
	if err := os.Chmod(filePath, 0o444); err != nil {
		l.logger.Warn("could not mark artifact read-only", "path", filePath, "error", err)
	}

	module, err := l.modules.Open(ctx, filePath)
	if err != nil {
		if !errors.Is(err, domain.ErrManifestInvalid) {
			err = fmt.Errorf("%w: %w", domain.ErrManifestInvalid, err)
		}
		return domain.Failed(m, filePath, err)
	}
	manifest := module.Manifest()

	settingsDir := l.layout.SettingsDir(m.RepositoryURL)
	if err := os.MkdirAll(settingsDir, 0o755); err != nil {
		l.logger.Warn("could not create settings dir", "dir", settingsDir, "error", err)
	}
	l.migrateLegacySettings(m.ID, settingsDir)

	record, err := l.lookupRecord(ctx, m, filePath)
	if err != nil {
		_ = module.Close()
		return domain.Failed(m, filePath, err)
	}

	extractionDir := l.layout.ExtractionDir(m.ID, manifest.Version)
	instance, err := l.instantiate(ctx, module, domain.InstantiateRequest{
		ProviderID:  m.ID,
		SettingsDir: settingsDir,
		CacheDir:    extractionDir,
	})
	if err != nil {
		_ = module.Close()
		return domain.Failed(m, filePath, err)
	}

	loaded := &domain.LoadedModule{
		Metadata: m,
		Manifest: manifest,
		FilePath: filePath,
		Module:   module,
		Instance: instance,
	}
	if manifest.RequiresResources {
		bundle, err := l.attachResources(ctx, module, instance, filepath.Join(extractionDir, domain.ResourcesDir))
		if err != nil {
			closeLoaded(loaded)
			return domain.Failed(m, filePath, err)
		}
		loaded.Resources = &bundle
	}
	l.purgeStaleExtractions(ctx, m.ID, manifest.Version)

	l.catalog.Commit(loaded)

	var registrationErr error
	if !record.IsDisabled {
		if err := l.register(ctx, m.ID, instance); err != nil {
			record.IsDisabled = true
			registrationErr = err
		}
	}

	if err := l.saveRecord(ctx, record); err != nil {
		l.catalog.Remove(m.ID)
		closeLoaded(loaded)
		return domain.Failed(m, filePath, fmt.Errorf("persist installed record: %w", err))
	}
	l.metrics.LoadedProviders(l.catalog.Len())
	if registrationErr != nil {
		return domain.Failed(m, filePath, registrationErr)
	}
	return domain.Succeeded(m, filePath)
}

func (l *Loader) download(ctx context.Context, m domain.Metadata) (string, error) {
	if m.BuildURL == "" {
		return "", fmt.Errorf("%w: %s has no build url", domain.ErrDownload, m.ID)
	}
	dest := l.layout.ArtifactPath(m)
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return dest, fmt.Errorf("%w: create %s: %w", domain.ErrDownload, dir, err)
	}
	if err := l.downloader.Download(ctx, m.BuildURL, dest); err != nil {
		return dest, fmt.Errorf("%w: %s: %w", domain.ErrDownload, m.BuildURL, err)
	}
	if err := l.listings.Upsert(ctx, dir, m); err != nil {
		return dest, fmt.Errorf("%w: write listing: %w", domain.ErrDownload, err)
	}
	return dest, nil
}

// stage downloads the build of m next to its artifact path without touching
// the live artifact or the listing.
func (l *Loader) stage(ctx context.Context, m domain.Metadata) (string, error) {
	if m.BuildURL == "" {
		return "", fmt.Errorf("%w: %s has no build url", domain.ErrDownload, m.ID)
	}
	staged := l.layout.ArtifactPath(m) + stagedSuffix
	if err := os.MkdirAll(filepath.Dir(staged), 0o755); err != nil {
		return "", fmt.Errorf("%w: create %s: %w", domain.ErrDownload, filepath.Dir(staged), err)
	}
	if err := l.downloader.Download(ctx, m.BuildURL, staged); err != nil {
		if rmErr := os.Remove(staged); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			l.logger.Warn("could not delete partial download", "path", staged, "error", rmErr)
		}
		return "", fmt.Errorf("%w: %s: %w", domain.ErrDownload, m.BuildURL, err)
	}
	return staged, nil
}

func (l *Loader) lookupRecord(ctx context.Context, m domain.Metadata, filePath string) (domain.InstalledRecord, error) {
	record, ok, err := l.records.Get(ctx, m.ID)
	if err != nil {
		return domain.InstalledRecord{}, fmt.Errorf("read installed record: %w", err)
	}
	if !ok {
		record = domain.InstalledRecord{ID: m.ID}
	}
	record.Name = m.Name
	record.FilePath = filePath
	record.IsDebug = isWithin(l.layout.DebugRoot, filePath)
	return record, nil
}

func (l *Loader) saveRecord(ctx context.Context, record domain.InstalledRecord) error {
	return l.records.Update(ctx, func(current []domain.InstalledRecord) ([]domain.InstalledRecord, error) {
		for i := range current {
			if current[i].ID == record.ID {
				current[i] = record
				return current, nil
			}
		}
		return append(current, record), nil
	})
}

func (l *Loader) instantiate(ctx context.Context, module domain.Module, req domain.InstantiateRequest) (instance domain.Instance, err error) {
	defer func() {
		if r := recover(); r != nil {
			instance = nil
			err = fmt.Errorf("%w: %s: panic: %v", domain.ErrInstantiation, req.ProviderID, r)
		}
	}()
	instance, err = module.Instantiate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrInstantiation, req.ProviderID, err)
	}
	if instance == nil {
		return nil, fmt.Errorf("%w: %s: no instance", domain.ErrInstantiation, req.ProviderID)
	}
	return instance, nil
}

func (l *Loader) attachResources(ctx context.Context, module domain.Module, instance domain.Instance, dest string) (bundle domain.ResourceBundle, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: attach resources: panic: %v", domain.ErrInstantiation, r)
		}
	}()
	bundle, err = module.ExtractResources(ctx, dest)
	if err != nil {
		return domain.ResourceBundle{}, fmt.Errorf("%w: extract resources: %w", domain.ErrInstantiation, err)
	}
	if err := instance.AttachResources(ctx, bundle); err != nil {
		return domain.ResourceBundle{}, fmt.Errorf("%w: attach resources: %w", domain.ErrInstantiation, err)
	}
	return bundle, nil
}

func (l *Loader) register(ctx context.Context, id string, instance domain.Instance) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: panic: %v", domain.ErrAPIRegistration, id, r)
		}
	}()
	api, err := instance.API(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrAPIRegistration, id, err)
	}
	return l.catalog.RegisterAPI(id, api)
}

func (l *Loader) purgeStaleExtractions(ctx context.Context, id, keepVersion string) {
	prefs, err := l.records.Preferences(ctx)
	if err != nil {
		l.logger.Warn("could not read preferences", "error", err)
		return
	}
	if !prefs.PurgeStaleResources {
		return
	}
	root := l.layout.ExtractionRoot(id)
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.Name() == keepVersion {
			continue
		}
		stale := filepath.Join(root, entry.Name())
		if err := os.RemoveAll(stale); err != nil {
			l.logger.Warn("could not purge stale extraction", "path", stale, "error", err)
			continue
		}
		l.logger.Debug("purged stale extraction", "path", stale)
	}
}

func closeLoaded(loaded *domain.LoadedModule) {
	if loaded.Instance != nil {
		_ = loaded.Instance.Close()
	}
	if loaded.Module != nil {
		_ = loaded.Module.Close()
	}
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrAlreadyLoaded):
		return "already_loaded"
	case errors.Is(err, domain.ErrFileNotFound):
		return "file_not_found"
	case errors.Is(err, domain.ErrManifestInvalid):
		return "manifest_invalid"
	case errors.Is(err, domain.ErrInstantiation):
		return "instantiation"
	case errors.Is(err, domain.ErrAPIRegistration):
		return "api_registration"
	case errors.Is(err, domain.ErrDownload):
		return "download"
	default:
		return "error"
	}
}
