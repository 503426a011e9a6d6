package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"provhost/internal/modules/provider/domain"
	"provhost/internal/modules/provider/dto"
	apperrors "provhost/internal/platform/errors"
	"provhost/internal/platform/semver"
)

const (
	stagedSuffix   = ".update"
	previousSuffix = ".previous"
)

// Update replaces the running build with the newer one from its repository.
// The new build is downloaded next to the live artifact before anything is
// unloaded. If it then fails to load, the previous artifact and record are
// restored and reloaded.
func (s *ProviderService) Update(ctx context.Context, id string) (dto.LoadResult, error) {
	loaded, ok := s.catalog.Get(id)
	if !ok {
		return dto.LoadResult{}, fmt.Errorf("%w: %s", domain.ErrNotLoaded, id)
	}
	listing, err := s.fetchListing(ctx, loaded.Metadata.RepositoryURL)
	if err != nil {
		return dto.LoadResult{}, err
	}
	candidate, found := findListing(listing, id)
	if !found || !semver.Newer(loaded.Metadata.Version, candidate.Version) {
		return dto.LoadResult{}, fmt.Errorf("%w: no update for %s", apperrors.ErrNotFound, id)
	}
	record, ok, err := s.records.Get(ctx, id)
	if err != nil {
		return dto.LoadResult{}, fmt.Errorf("read installed record: %w", err)
	}
	if !ok {
		return dto.LoadResult{}, fmt.Errorf("%w: %s", domain.ErrUnloadNotFound, id)
	}
	if record.IsDebug {
		return dto.LoadResult{}, fmt.Errorf("%w: %s is a debug build", apperrors.ErrInvalidInput, id)
	}

	staged, err := s.loader.stage(ctx, candidate)
	if err != nil {
		return toLoadResult(domain.Failed(candidate, "", err)), err
	}
	previous := loaded.FilePath + previousSuffix
	if err := copyFile(loaded.FilePath, previous); err != nil {
		s.removeQuietly(staged)
		return dto.LoadResult{}, fmt.Errorf("keep previous artifact: %w", err)
	}
	if _, err := s.unloader.Unload(ctx, loaded.Metadata, false); err != nil {
		s.removeQuietly(staged)
		s.removeQuietly(previous)
		return dto.LoadResult{}, err
	}

	dest := s.loader.layout.ArtifactPath(candidate)
	if err := os.Rename(staged, dest); err != nil {
		s.removeQuietly(staged)
		err = fmt.Errorf("%w: install %s: %w", domain.ErrDownload, dest, err)
		s.rollbackUpdate(ctx, loaded.Metadata, record, dest, previous)
		return toLoadResult(domain.Failed(candidate, dest, err)), err
	}
	outcome := s.loader.Load(ctx, candidate, dest)
	if !outcome.OK() {
		s.rollbackUpdate(ctx, loaded.Metadata, record, dest, previous)
		return toLoadResult(outcome), outcome.Err
	}
	if err := s.listings.Upsert(ctx, filepath.Dir(dest), candidate); err != nil {
		s.logger.Error("could not record updated listing", "id", id, "error", err)
	}
	if dest != record.FilePath {
		s.removeQuietly(record.FilePath)
	}
	s.removeQuietly(previous)
	s.logger.Info("provider updated", "id", id, "from", loaded.Metadata.Version, "to", candidate.Version)
	return toLoadResult(outcome), nil
}

// rollbackUpdate drops the failed build at dest, then puts the previous
// artifact and record back and reloads them.
func (s *ProviderService) rollbackUpdate(ctx context.Context, m domain.Metadata, record domain.InstalledRecord, dest, previous string) {
	ctx = context.WithoutCancel(ctx)
	if _, ok := s.catalog.Get(m.ID); ok {
		// a registration failure leaves the new build loaded but disabled
		if _, err := s.unloader.Unload(ctx, m, false); err != nil {
			s.logger.Error("could not unload failed update", "id", m.ID, "error", err)
		}
	}
	s.removeQuietly(dest)
	s.removeQuietly(record.FilePath)
	if err := os.Rename(previous, record.FilePath); err != nil {
		s.logger.Error("could not restore previous artifact", "id", m.ID, "path", record.FilePath, "error", err)
		return
	}
	if err := s.loader.saveRecord(ctx, record); err != nil {
		s.logger.Error("could not restore installed record", "id", m.ID, "error", err)
	}
	if outcome := s.loader.Load(ctx, m, record.FilePath); !outcome.OK() {
		s.logger.Error("could not reload previous version", "id", m.ID, "error", outcome.Err)
		return
	}
	s.logger.Warn("update failed, previous version restored", "id", m.ID, "version", m.Version)
}

func (s *ProviderService) removeQuietly(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("could not delete file", "path", path, "error", err)
	}
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = io.Copy(out, in)
	return err
}
