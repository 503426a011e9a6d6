package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	hclog "github.com/hashicorp/go-hclog"

	"provhost/internal/modules/provider/domain"
	providerout "provhost/internal/modules/provider/port/out"
)

type artifactLoader interface {
	Load(ctx context.Context, m domain.Metadata, filePath string) domain.LoadOutcome
}

// Initializer reinstalls providers at startup. Debug discovery always runs
// before installed discovery.
type Initializer struct {
	loader    artifactLoader
	records   providerout.RecordStore
	listings  providerout.ListingStore
	registrar providerout.RepositoryRegistrar
	layout    domain.Layout
	logger    hclog.Logger
}

func NewInitializer(loader artifactLoader, records providerout.RecordStore, listings providerout.ListingStore, registrar providerout.RepositoryRegistrar, layout domain.Layout, logger hclog.Logger) *Initializer {
	return &Initializer{
		loader:    loader,
		records:   records,
		listings:  listings,
		registrar: registrar,
		layout:    layout,
		logger:    loggerOrDefault(logger).Named("initializer"),
	}
}

// Run streams one outcome per load attempted. The channel closes when both
// discovery passes finish or ctx is cancelled.
func (i *Initializer) Run(ctx context.Context) <-chan domain.LoadOutcome {
	out := make(chan domain.LoadOutcome)
	go func() {
		defer close(out)
		i.discoverDebug(ctx)
		i.loadInstalled(ctx, out)
	}()
	return out
}

func (i *Initializer) discoverDebug(ctx context.Context) {
	if i.layout.DebugRoot == "" {
		return
	}
	entries, err := os.ReadDir(i.layout.DebugRoot)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			i.logger.Warn("could not scan debug dir", "dir", i.layout.DebugRoot, "error", err)
		}
		return
	}
	prefs, err := i.records.Preferences(ctx)
	if err != nil {
		i.logger.Warn("could not read preferences", "error", err)
	}
	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		if !entry.IsDir() {
			continue
		}
		i.discoverDebugDir(ctx, filepath.Join(i.layout.DebugRoot, entry.Name()), prefs)
	}
}

func (i *Initializer) discoverDebugDir(ctx context.Context, dir string, prefs domain.Preferences) {
	listing, err := i.listings.Read(ctx, dir)
	if err != nil {
		i.logger.Warn("debug dir has no usable listing, skipping", "dir", dir, "error", err)
		return
	}
	registered := map[string]bool{}
	for _, m := range listing {
		if m.RepositoryURL == "" || registered[m.RepositoryURL] {
			continue
		}
		registered[m.RepositoryURL] = true
		if err := i.registrar.EnsureRepository(ctx, m.RepositoryURL); err != nil {
			i.logger.Warn("could not register debug repository", "url", m.RepositoryURL, "error", err)
		}
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		i.logger.Warn("could not read debug dir", "dir", dir, "error", err)
		return
	}
	for _, file := range files {
		if file.IsDir() || file.Name() == domain.ListingFileName {
			continue
		}
		if !strings.EqualFold(filepath.Ext(file.Name()), domain.ArtifactExt) {
			i.logger.Debug("ignoring non-artifact in debug dir", "file", file.Name())
			continue
		}
		m, ok := matchListing(listing, file.Name())
		if !ok {
			i.logger.Warn("debug artifact has no listing entry", "file", file.Name(), "dir", dir)
			continue
		}
		if prefs.DebugIDSuffix {
			m = m.AsDebug()
		}
		i.ensureDebugRecord(ctx, m, filepath.Join(dir, file.Name()))
	}
}

func (i *Initializer) ensureDebugRecord(ctx context.Context, m domain.Metadata, path string) {
	var collision bool
	err := i.records.Update(ctx, func(current []domain.InstalledRecord) ([]domain.InstalledRecord, error) {
		for idx := range current {
			if current[idx].ID != m.ID {
				continue
			}
			if !current[idx].IsDebug {
				collision = true
				return current, nil
			}
			current[idx].FilePath = path
			current[idx].Name = m.Name
			return current, nil
		}
		return append(current, domain.InstalledRecord{ID: m.ID, Name: m.Name, FilePath: path, IsDebug: true}), nil
	})
	if err != nil {
		i.logger.Error("could not record debug provider", "id", m.ID, "error", err)
		return
	}
	if collision {
		i.logger.Warn("debug provider shares an id with an installed provider, skipping; enable the debug id suffix to load both", "id", m.ID, "path", path)
	}
}

func (i *Initializer) loadInstalled(ctx context.Context, out chan<- domain.LoadOutcome) {
	records, err := i.records.List(ctx)
	if err != nil {
		i.logger.Error("could not list installed providers", "error", err)
		return
	}
	prefs, err := i.records.Preferences(ctx)
	if err != nil {
		i.logger.Warn("could not read preferences", "error", err)
	}
	purged := map[string]bool{}
	for _, record := range records {
		if ctx.Err() != nil {
			return
		}
		if _, err := os.Stat(record.FilePath); err != nil {
			i.logger.Warn("installed provider file is missing, skipping", "id", record.ID, "path", record.FilePath)
			continue
		}
		dir := filepath.Dir(record.FilePath)
		listing, err := i.listings.Read(ctx, dir)
		if err != nil {
			i.logger.Error("could not read provider listing, skipping", "id", record.ID, "dir", dir, "error", err)
			continue
		}
		m, ok := findListing(listing, domain.BaseID(record.ID))
		if !ok {
			m, ok = matchListing(listing, filepath.Base(record.FilePath))
		}
		if !ok {
			i.logger.Error("provider is missing from its listing, skipping", "id", record.ID, "dir", dir)
			continue
		}
		if record.IsDebug && prefs.DebugIDSuffix {
			m = m.AsDebug()
		}
		if !purged[dir] && isWithin(i.layout.ProvidersRoot, dir) {
			purged[dir] = true
			i.purgeStrays(dir)
		}

		outcome := i.loader.Load(ctx, m, record.FilePath)
		select {
		case out <- outcome:
		case <-ctx.Done():
			return
		}
	}
}

// purgeStrays removes stray directories and files with the wrong extension
// from a repository dir under the providers root.
func (i *Initializer) purgeStrays(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if name == domain.ListingFileName {
			continue
		}
		if !entry.IsDir() && strings.EqualFold(filepath.Ext(name), domain.ArtifactExt) {
			continue
		}
		path := filepath.Join(dir, name)
		if err := os.RemoveAll(path); err != nil {
			i.logger.Warn("could not purge stray entry", "path", path, "error", err)
			continue
		}
		i.logger.Info("purged stray entry", "path", path)
	}
}

func matchListing(listing []domain.Metadata, fileName string) (domain.Metadata, bool) {
	for _, m := range listing {
		if m.MatchesFile(fileName) {
			return m, true
		}
	}
	return domain.Metadata{}, false
}

func findListing(listing []domain.Metadata, id string) (domain.Metadata, bool) {
	for _, m := range listing {
		if m.ID == id {
			return m, true
		}
	}
	return domain.Metadata{}, false
}
