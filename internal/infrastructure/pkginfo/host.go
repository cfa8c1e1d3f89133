package pkginfo

import (
	"fmt"
	"os"
	"path/filepath"
)

// Host is a fixed host identity.
type Host struct {
	packageName string
	appName     string
}

// NewHost creates a host identity.
func NewHost(packageName, appName string) *Host {
	return &Host{packageName: packageName, appName: appName}
}

func (h *Host) PackageName() string { return h.packageName }
func (h *Host) AppName() string     { return h.appName }

// CacheDir resolves the directory downloads go to when a config has no
// path. An empty dir means the user cache directory.
type CacheDir struct {
	dir     string
	appName string
}

// NewCacheDir creates a cache directory provider.
func NewCacheDir(dir, appName string) *CacheDir {
	return &CacheDir{dir: dir, appName: appName}
}

// CacheDir implements update.CacheDirProvider.
func (c *CacheDir) CacheDir() (string, error) {
	if c.dir != "" {
		return c.dir, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user cache dir: %w", err)
	}
	name := c.appName
	if name == "" {
		name = "appupdater"
	}
	return filepath.Join(base, name, "updates"), nil
}
