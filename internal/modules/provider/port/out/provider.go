package out

import (
	"context"

	"provhost/internal/modules/provider/domain"
)

// RecordStore persists installed records in display order together with preferences.
type RecordStore interface {
	List(ctx context.Context) ([]domain.InstalledRecord, error)
	Get(ctx context.Context, id string) (domain.InstalledRecord, bool, error)
	// Update runs an atomic read-modify-write over the ordered record list.
	Update(ctx context.Context, fn func([]domain.InstalledRecord) ([]domain.InstalledRecord, error)) error
	Preferences(ctx context.Context) (domain.Preferences, error)
	SavePreferences(ctx context.Context, prefs domain.Preferences) error
}

// ModuleLoader opens an artifact on disk. A missing or unreadable manifest
// surfaces as domain.ErrManifestInvalid.
type ModuleLoader interface {
	Open(ctx context.Context, artifactPath string) (domain.Module, error)
}

type Downloader interface {
	Download(ctx context.Context, url, dest string) error
}

type ListingFetcher interface {
	Fetch(ctx context.Context, listingURL string) ([]domain.Metadata, error)
}

// ListingStore reads and writes the updater.json that sits next to artifacts.
type ListingStore interface {
	Read(ctx context.Context, dir string) ([]domain.Metadata, error)
	Upsert(ctx context.Context, dir string, m domain.Metadata) error
}

type RepositoryRegistrar interface {
	EnsureRepository(ctx context.Context, url string) error
	ListingURL(ctx context.Context, url string) (string, error)
}

// Metrics is optional; a nil recorder is valid everywhere it is accepted.
type Metrics interface {
	LoadFinished(outcome string)
	Unloaded()
	LoadedProviders(n int)
}

// ArtifactPacker writes a .prov archive from a manifest and its files.
type ArtifactPacker interface {
	Pack(ctx context.Context, manifest domain.Manifest, binaryPath, resourcesDir, dest string) error
}
