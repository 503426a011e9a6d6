package out

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/klauspost/compress/zip"

	"provhost/internal/modules/provider/domain"
	providerout "provhost/internal/modules/provider/port/out"
)

type ZipArtifactPacker struct{}

func NewZipArtifactPacker() providerout.ArtifactPacker {
	return ZipArtifactPacker{}
}

// Pack writes manifest.json, the entrypoint binary and an optional
// resources/ tree into dest.
func (ZipArtifactPacker) Pack(ctx context.Context, manifest domain.Manifest, binaryPath, resourcesDir, dest string) error {
	if err := manifest.Validate(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrManifestInvalid, err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".pack-*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	writer := zip.NewWriter(tmp)
	if err := writeManifest(writer, manifest); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := addFile(writer, binaryPath, manifest.Entrypoint, 0o755); err != nil {
		_ = tmp.Close()
		return err
	}
	if resourcesDir != "" {
		err := filepath.WalkDir(resourcesDir, func(p string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(resourcesDir, p)
			if err != nil {
				return err
			}
			return addFile(writer, p, path.Join(domain.ResourcesDir, filepath.ToSlash(rel)), 0o644)
		})
		if err != nil {
			_ = tmp.Close()
			return fmt.Errorf("pack resources: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("finish artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("place artifact: %w", err)
	}
	return nil
}

func writeManifest(writer *zip.Writer, manifest domain.Manifest) error {
	payload, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	w, err := writer.Create(domain.ManifestFileName)
	if err != nil {
		return fmt.Errorf("add manifest: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func addFile(writer *zip.Writer, src, name string, mode os.FileMode) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer f.Close()
	header := &zip.FileHeader{Name: name, Method: zip.Deflate}
	header.SetMode(mode)
	w, err := writer.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
