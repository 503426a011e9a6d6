package domain

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"provhost/internal/platform/slug"
)

var (
	ErrAlreadyLoaded   = errors.New("provider already loaded")
	ErrFileNotFound    = errors.New("provider file not found")
	ErrManifestInvalid = errors.New("provider manifest missing or corrupt")
	ErrInstantiation   = errors.New("provider instantiation failed")
	ErrAPIRegistration = errors.New("provider api registration failed")
	ErrDownload        = errors.New("provider download failed")
	ErrNotImplemented  = errors.New("not implemented")
	ErrUnloadNotFound  = errors.New("provider is not installed")
	ErrTeardown        = errors.New("provider teardown failed")
	ErrNotLoaded       = errors.New("provider is not loaded")
)

const (
	ManifestFileName = "manifest.json"
	ListingFileName  = "updater.json"
	ArtifactExt      = ".prov"
	ResourcesDir     = "resources"
	ListingBranch    = "builds"

	debugIDSuffix   = "-debug"
	debugNameSuffix = " (debug)"
)

type Status string

const (
	StatusWorking     Status = "Working"
	StatusMaintenance Status = "Maintenance"
	StatusBeta        Status = "Beta"
	StatusDown        Status = "Down"
)

type Author struct {
	Name       string `json:"name"`
	SocialLink string `json:"socialLink,omitempty"`
}

// Metadata describes one installable provider version as published in a repository listing.
type Metadata struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Description       string   `json:"description,omitempty"`
	Version           string   `json:"versionName"`
	VersionCode       int      `json:"versionCode"`
	BuildURL          string   `json:"buildUrl"`
	RepositoryURL     string   `json:"repositoryUrl"`
	IconURL           string   `json:"iconUrl,omitempty"`
	Language          string   `json:"language,omitempty"`
	ProviderType      string   `json:"providerType,omitempty"`
	Status            Status   `json:"status,omitempty"`
	Authors           []Author `json:"authors,omitempty"`
	ChangeLog         string   `json:"changelog,omitempty"`
	AdultContent      bool     `json:"adult,omitempty"`
	RequiresResources bool     `json:"requiresResources,omitempty"`
}

func (m Metadata) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("provider id is required")
	}
	if m.Name == "" {
		return fmt.Errorf("provider name is required")
	}
	if m.RepositoryURL == "" {
		return fmt.Errorf("provider repository url is required")
	}
	return nil
}

// ArtifactFileName is the on-disk name of the provider build. It derives
// from the id alone, so providers of one repository never share a file.
func (m Metadata) ArtifactFileName() string {
	return slug.FileName(m.ID) + ArtifactExt
}

// MatchesFile reports whether the build URL of m ends with the given artifact file name.
func (m Metadata) MatchesFile(fileName string) bool {
	if m.BuildURL == "" || fileName == "" {
		return false
	}
	return m.BuildURL == fileName || strings.HasSuffix(m.BuildURL, "/"+fileName) || path.Base(m.BuildURL) == fileName
}

// AsDebug returns a copy with the debug-scoped id and name.
func (m Metadata) AsDebug() Metadata {
	out := m
	if !IsDebugID(m.ID) {
		out.ID = m.ID + debugIDSuffix
	}
	if !strings.HasSuffix(m.Name, debugNameSuffix) {
		out.Name = m.Name + debugNameSuffix
	}
	return out
}

func IsDebugID(id string) bool {
	return strings.HasSuffix(id, debugIDSuffix)
}

// BaseID strips the debug suffix, if any.
func BaseID(id string) string {
	return strings.TrimSuffix(id, debugIDSuffix)
}

// Manifest is embedded in every provider artifact.
type Manifest struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Version           string `json:"version"`
	Entrypoint        string `json:"entrypoint"`
	RequiresResources bool   `json:"requiresResources,omitempty"`
	UpdateURL         string `json:"updateUrl,omitempty"`
}

func (m Manifest) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("manifest id is required")
	}
	if m.Name == "" {
		return fmt.Errorf("manifest name is required")
	}
	if m.Version == "" {
		return fmt.Errorf("manifest version is required")
	}
	if m.Entrypoint == "" {
		return fmt.Errorf("manifest entrypoint is required")
	}
	if path.IsAbs(m.Entrypoint) || strings.Contains(m.Entrypoint, "..") {
		return fmt.Errorf("manifest entrypoint must be a relative path inside the artifact")
	}
	return nil
}

// InstalledRecord is the persisted row for an installed provider. List position is display order.
type InstalledRecord struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	FilePath   string `json:"filePath"`
	IsDisabled bool   `json:"isDisabled"`
	IsDebug    bool   `json:"isDebug"`
}

// Preferences are the user preferences the lifecycle consults.
type Preferences struct {
	DebugIDSuffix       bool
	PurgeStaleResources bool
}

// LoadOutcome is the terminal result of one load. Err is nil on success.
type LoadOutcome struct {
	Metadata Metadata
	FilePath string
	Err      error
}

func Succeeded(m Metadata, filePath string) LoadOutcome {
	return LoadOutcome{Metadata: m, FilePath: filePath}
}

func Failed(m Metadata, filePath string, err error) LoadOutcome {
	return LoadOutcome{Metadata: m, FilePath: filePath, Err: err}
}

func (o LoadOutcome) OK() bool {
	return o.Err == nil
}
