package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

type Paths struct {
	DataDir    string
	CacheDir   string
	DBPath     string
	ArtworkDir string
	ConfigFile string
}

func ResolvePaths(appSlug string) (Paths, error) {
	dataDir := filepath.Join(xdg.DataHome, appSlug)
	cacheDir := filepath.Join(xdg.CacheHome, appSlug)
	artworkDir := filepath.Join(cacheDir, "artwork")
	dbPath := filepath.Join(dataDir, "library.db")
	configFile := filepath.Join(xdg.ConfigHome, appSlug, "config.yaml")

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("create app data dir: %w", err)
	}

	if err := os.MkdirAll(artworkDir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("create artwork cache dir: %w", err)
	}

	return Paths{
		DataDir:    dataDir,
		CacheDir:   cacheDir,
		DBPath:     dbPath,
		ArtworkDir: artworkDir,
		ConfigFile: configFile,
	}, nil
}
