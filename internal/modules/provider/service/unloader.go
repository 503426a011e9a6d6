package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	hclog "github.com/hashicorp/go-hclog"

	"provhost/internal/modules/provider/domain"
	providerout "provhost/internal/modules/provider/port/out"
)

type Unloader struct {
	catalog *Catalog
	records providerout.RecordStore
	layout  domain.Layout
	logger  hclog.Logger
	metrics providerout.Metrics
}

func NewUnloader(catalog *Catalog, records providerout.RecordStore, layout domain.Layout, logger hclog.Logger, metrics providerout.Metrics) *Unloader {
	return &Unloader{
		catalog: catalog,
		records: records,
		layout:  layout,
		logger:  loggerOrDefault(logger).Named("unloader"),
		metrics: metricsOrNoop(metrics),
	}
}

// Unload tears a loaded provider down. It reports false when the provider
// is not loaded or its artifact is already gone.
func (u *Unloader) Unload(ctx context.Context, m domain.Metadata, removeFromPreferences bool) (bool, error) {
	record, ok, err := u.records.Get(ctx, m.ID)
	if err != nil {
		return false, fmt.Errorf("read installed record: %w", err)
	}
	if !ok {
		return false, fmt.Errorf("%w: %s", domain.ErrUnloadNotFound, m.ID)
	}

	loaded, ok := u.catalog.Get(m.ID)
	if !ok {
		u.logger.Warn("provider is not loaded, nothing to unload", "id", m.ID)
		return false, nil
	}
	if _, err := os.Stat(loaded.FilePath); err != nil {
		u.logger.Warn("provider artifact is missing, nothing to unload", "id", m.ID, "path", loaded.FilePath)
		return false, nil
	}

	if err := u.teardown(ctx, loaded); err != nil {
		u.logger.Warn("teardown hook failed", "id", m.ID, "error", err)
	}
	closeLoaded(loaded)
	u.catalog.Remove(m.ID)

	if record.IsDebug {
		u.logger.Debug("keeping debug artifact in place", "path", loaded.FilePath)
	} else {
		if err := os.Remove(loaded.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			u.logger.Warn("could not delete artifact", "path", loaded.FilePath, "error", err)
		}
		u.removeOrphanDir(filepath.Dir(loaded.FilePath))
	}
	if err := os.RemoveAll(u.layout.ExtractionRoot(m.ID)); err != nil {
		u.logger.Warn("could not remove extraction cache", "id", m.ID, "error", err)
	}

	if removeFromPreferences {
		err := u.records.Update(ctx, func(current []domain.InstalledRecord) ([]domain.InstalledRecord, error) {
			return removeRecord(current, m.ID), nil
		})
		if err != nil {
			u.logger.Error("could not remove installed record", "id", m.ID, "error", err)
		}
	}

	u.metrics.Unloaded()
	u.metrics.LoadedProviders(u.catalog.Len())
	u.logger.Info("provider unloaded", "id", m.ID, "removed_record", removeFromPreferences)
	return true, nil
}

func (u *Unloader) teardown(ctx context.Context, loaded *domain.LoadedModule) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: panic: %v", domain.ErrTeardown, loaded.Metadata.ID, r)
		}
	}()
	if loaded.Instance == nil {
		return nil
	}
	if err := loaded.Instance.OnUnload(ctx); err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrTeardown, loaded.Metadata.ID, err)
	}
	return nil
}

// removeOrphanDir deletes a repository dir once only its listing file remains.
func (u *Unloader) removeOrphanDir(dir string) {
	if !isWithin(u.layout.ProvidersRoot, dir) {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	if len(entries) != 1 || entries[0].Name() != domain.ListingFileName {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		u.logger.Warn("could not remove repository dir", "dir", dir, "error", err)
	}
}

func removeRecord(records []domain.InstalledRecord, id string) []domain.InstalledRecord {
	out := records[:0]
	for _, record := range records {
		if record.ID != id {
			out = append(out, record)
		}
	}
	return out
}
