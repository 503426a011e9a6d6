package out

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"provhost/internal/modules/provider/domain"
)

func readManifest(archive *zip.Reader) (domain.Manifest, error) {
	file := findEntry(archive, domain.ManifestFileName)
	if file == nil {
		return domain.Manifest{}, fmt.Errorf("%w: %s not found", domain.ErrManifestInvalid, domain.ManifestFileName)
	}
	rc, err := file.Open()
	if err != nil {
		return domain.Manifest{}, fmt.Errorf("%w: open %s: %w", domain.ErrManifestInvalid, domain.ManifestFileName, err)
	}
	defer rc.Close()
	var manifest domain.Manifest
	if err := json.NewDecoder(rc).Decode(&manifest); err != nil {
		return domain.Manifest{}, fmt.Errorf("%w: decode %s: %w", domain.ErrManifestInvalid, domain.ManifestFileName, err)
	}
	if err := manifest.Validate(); err != nil {
		return domain.Manifest{}, fmt.Errorf("%w: %w", domain.ErrManifestInvalid, err)
	}
	if findEntry(archive, manifest.Entrypoint) == nil {
		return domain.Manifest{}, fmt.Errorf("%w: entrypoint %s not in artifact", domain.ErrManifestInvalid, manifest.Entrypoint)
	}
	return manifest, nil
}

func findEntry(archive *zip.Reader, name string) *zip.File {
	for _, file := range archive.File {
		if path.Clean(file.Name) == path.Clean(name) {
			return file
		}
	}
	return nil
}

// extractEntry writes one archive entry to dest through a temp file.
func extractEntry(file *zip.File, dest string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
	}
	rc, err := file.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", file.Name, err)
	}
	defer rc.Close()
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".extract-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, rc); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("extract %s: %w", file.Name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("place %s: %w", dest, err)
	}
	return nil
}

// extractTree extracts every entry under prefix into dest and returns the
// relative paths written.
func extractTree(archive *zip.Reader, prefix, dest string) ([]string, error) {
	prefix = strings.TrimSuffix(path.Clean(prefix), "/") + "/"
	files := []string{}
	for _, file := range archive.File {
		name := path.Clean(file.Name)
		if !strings.HasPrefix(name, prefix) || file.FileInfo().IsDir() {
			continue
		}
		rel := strings.TrimPrefix(name, prefix)
		if rel == "" || strings.HasPrefix(rel, "../") || path.IsAbs(rel) {
			return nil, fmt.Errorf("unsafe archive entry %q", file.Name)
		}
		target := filepath.Join(dest, filepath.FromSlash(rel))
		if err := extractEntry(file, target, 0o644); err != nil {
			return nil, err
		}
		files = append(files, rel)
	}
	return files, nil
}
