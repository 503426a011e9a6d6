package out

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"provhost/internal/modules/provider/domain"
	providerout "provhost/internal/modules/provider/port/out"
)

// FileListingStore keeps the updater.json listing next to downloaded artifacts.
type FileListingStore struct{}

func NewFileListingStore() providerout.ListingStore {
	return FileListingStore{}
}

func (FileListingStore) Read(_ context.Context, dir string) ([]domain.Metadata, error) {
	b, err := os.ReadFile(filepath.Join(dir, domain.ListingFileName))
	if err != nil {
		return nil, fmt.Errorf("read provider listing: %w", err)
	}
	return decodeListing(b)
}

// Upsert replaces the entry with the same id or appends a new one, keeping order.
func (s FileListingStore) Upsert(ctx context.Context, dir string, m domain.Metadata) error {
	listing, err := s.Read(ctx, dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	replaced := false
	for i := range listing {
		if listing[i].ID == m.ID {
			listing[i] = m
			replaced = true
			break
		}
	}
	if !replaced {
		listing = append(listing, m)
	}
	payload, err := json.MarshalIndent(listing, "", "  ")
	if err != nil {
		return fmt.Errorf("encode provider listing: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create listing dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, domain.ListingFileName+".*")
	if err != nil {
		return fmt.Errorf("create listing temp file: %w", err)
	}
	if _, err := tmp.Write(append(payload, '\n')); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write provider listing: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close provider listing: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, domain.ListingFileName)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace provider listing: %w", err)
	}
	return nil
}

func decodeListing(b []byte) ([]domain.Metadata, error) {
	var listing []domain.Metadata
	if err := json.NewDecoder(bytes.NewReader(b)).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode provider listing: %w", err)
	}
	for i, m := range listing {
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("provider listing entry %d: %w", i, err)
		}
	}
	return listing, nil
}
