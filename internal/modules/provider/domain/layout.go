package domain

import (
	"path/filepath"

	repositorydomain "provhost/internal/modules/repository/domain"
)

// Layout resolves every on-disk location the lifecycle touches.
type Layout struct {
	ProvidersRoot string
	SettingsRoot  string
	CacheRoot     string
	DebugRoot     string
	Scope         string
}

func (l Layout) ScopeDir() string {
	return filepath.Join(l.ProvidersRoot, l.Scope)
}

// RepositoryDir is {providersRoot}/{scope}/{owner-name}. Unparseable urls fall back to "unknown".
func (l Layout) RepositoryDir(repositoryURL string) string {
	return filepath.Join(l.ScopeDir(), repositoryDirName(repositoryURL))
}

func (l Layout) ArtifactPath(m Metadata) string {
	return filepath.Join(l.RepositoryDir(m.RepositoryURL), m.ArtifactFileName())
}

func (l Layout) SettingsDir(repositoryURL string) string {
	return filepath.Join(l.SettingsRoot, l.Scope, repositoryDirName(repositoryURL))
}

func (l Layout) LegacySettingsFile(providerID string) string {
	return filepath.Join(l.SettingsRoot, l.Scope, providerID+".json")
}

func (l Layout) SettingsFile(repositoryURL, providerID string) string {
	return filepath.Join(l.SettingsDir(repositoryURL), providerID+".json")
}

func (l Layout) ExtractionRoot(providerID string) string {
	return filepath.Join(l.CacheRoot, l.Scope, providerID)
}

func (l Layout) ExtractionDir(providerID, version string) string {
	return filepath.Join(l.ExtractionRoot(providerID), version)
}

func repositoryDirName(repositoryURL string) string {
	repo, err := repositorydomain.Parse(repositoryURL)
	if err != nil {
		return "unknown"
	}
	return repo.DirName()
}
