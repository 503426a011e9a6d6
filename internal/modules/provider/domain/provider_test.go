package domain_test

import (
	"path/filepath"
	"strings"
	"testing"

	"provhost/internal/modules/provider/domain"
)

func TestManifestValidate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name     string
		manifest domain.Manifest
		wantErr  bool
	}{
		{name: "valid", manifest: domain.Manifest{ID: "p", Name: "P", Version: "1.0.0", Entrypoint: "bin/provider"}},
		{name: "missing id", manifest: domain.Manifest{Name: "P", Version: "1.0.0", Entrypoint: "provider"}, wantErr: true},
		{name: "missing version", manifest: domain.Manifest{ID: "p", Name: "P", Entrypoint: "provider"}, wantErr: true},
		{name: "absolute entrypoint", manifest: domain.Manifest{ID: "p", Name: "P", Version: "1", Entrypoint: "/bin/sh"}, wantErr: true},
		{name: "escaping entrypoint", manifest: domain.Manifest{ID: "p", Name: "P", Version: "1", Entrypoint: "../provider"}, wantErr: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.manifest.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestMetadataMatchesFile(t *testing.T) {
	t.Parallel()
	m := domain.Metadata{BuildURL: "https://raw.githubusercontent.com/acme/providers/builds/Movies.prov"}
	if !m.MatchesFile("Movies.prov") {
		t.Fatalf("expected build url to match artifact name")
	}
	if m.MatchesFile("ies.prov") {
		t.Fatalf("partial file names must not match")
	}
	if (domain.Metadata{}).MatchesFile("Movies.prov") {
		t.Fatalf("empty build url must not match")
	}
}

func TestMetadataAsDebug(t *testing.T) {
	t.Parallel()
	m := domain.Metadata{ID: "movies", Name: "Movies"}
	debug := m.AsDebug()
	if debug.ID != "movies-debug" || debug.Name != "Movies (debug)" {
		t.Fatalf("unexpected debug identity: %+v", debug)
	}
	again := debug.AsDebug()
	if again.ID != debug.ID || again.Name != debug.Name {
		t.Fatalf("debug suffix applied twice: %+v", again)
	}
	if m.ID != "movies" {
		t.Fatalf("original metadata mutated")
	}
}

func TestArtifactFileName(t *testing.T) {
	t.Parallel()
	if got := (domain.Metadata{ID: "x", Name: "My Provider!"}).ArtifactFileName(); got != "x.prov" {
		t.Fatalf("unexpected file name %q", got)
	}
	hub := domain.Metadata{ID: "anime-hub", Name: "Anime Hub"}
	other := domain.Metadata{ID: "anime.hub", Name: "anime-hub"}
	if hub.ArtifactFileName() == other.ArtifactFileName() {
		t.Fatalf("providers with slug-equal names must not share %q", hub.ArtifactFileName())
	}
	if got := (domain.Metadata{ID: "../escape"}).ArtifactFileName(); strings.Contains(got, "/") {
		t.Fatalf("file name %q must stay a single path element", got)
	}
}

func TestLayoutPaths(t *testing.T) {
	t.Parallel()
	layout := domain.Layout{ProvidersRoot: "/p", SettingsRoot: "/s", CacheRoot: "/c", Scope: "default"}
	m := domain.Metadata{ID: "movies", Name: "Movies", Version: "1.2.0", RepositoryURL: "https://github.com/acme/providers"}

	if got, want := layout.ArtifactPath(m), filepath.Join("/p", "default", "acme-providers", "movies.prov"); got != want {
		t.Fatalf("artifact path = %q, want %q", got, want)
	}
	if got, want := layout.SettingsDir(m.RepositoryURL), filepath.Join("/s", "default", "acme-providers"); got != want {
		t.Fatalf("settings dir = %q, want %q", got, want)
	}
	if got, want := layout.LegacySettingsFile(m.ID), filepath.Join("/s", "default", "movies.json"); got != want {
		t.Fatalf("legacy settings = %q, want %q", got, want)
	}
	if got, want := layout.ExtractionDir(m.ID, m.Version), filepath.Join("/c", "default", "movies", "1.2.0"); got != want {
		t.Fatalf("extraction dir = %q, want %q", got, want)
	}
	if got, want := layout.RepositoryDir("not a url"), filepath.Join("/p", "default", "unknown"); got != want {
		t.Fatalf("fallback repository dir = %q, want %q", got, want)
	}
}

func TestLoadOutcome(t *testing.T) {
	t.Parallel()
	if !domain.Succeeded(domain.Metadata{ID: "a"}, "/a.prov").OK() {
		t.Fatalf("success outcome must be OK")
	}
	if domain.Failed(domain.Metadata{ID: "a"}, "/a.prov", domain.ErrFileNotFound).OK() {
		t.Fatalf("failure outcome must not be OK")
	}
}
