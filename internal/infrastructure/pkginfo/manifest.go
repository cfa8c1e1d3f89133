package pkginfo

import (
	"archive/zip"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/narwhalmedia/appupdater/internal/domain/update"
)

// Manifest entries looked up inside an artifact, in order.
var manifestEntries = []string{
	"META-INF/package.yaml",
	"META-INF/package.yml",
	"META-INF/package.json",
}

// maxManifestSize bounds the manifest read from an artifact.
const maxManifestSize = 64 * 1024

// ManifestReader reads package identity from the manifest embedded in a
// zip format artifact.
type ManifestReader struct{}

// NewManifestReader creates a manifest reader.
func NewManifestReader() *ManifestReader {
	return &ManifestReader{}
}

// ReadPackageInfo implements update.PackageInfoReader.
func (r *ManifestReader) ReadPackageInfo(path string) (*update.PackageInfo, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer archive.Close()

	for _, name := range manifestEntries {
		f, err := archive.Open(name)
		if err != nil {
			continue
		}
		data, err := io.ReadAll(io.LimitReader(f, maxManifestSize))
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		return parseManifest(data)
	}

	return nil, update.ErrManifestNotFound
}

// parseManifest decodes a YAML or JSON manifest. JSON documents are valid
// YAML so one decoder serves both.
func parseManifest(data []byte) (*update.PackageInfo, error) {
	info := &update.PackageInfo{VersionCode: update.NoVersionCode}
	if err := yaml.Unmarshal(data, info); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if info.PackageName == "" {
		return nil, fmt.Errorf("manifest has no package name: %w", update.ErrManifestNotFound)
	}
	return info, nil
}
