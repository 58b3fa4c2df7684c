// Package configstore locates, loads, and persists eplumber.json. It
// is a pure data-in/data-out collaborator — validation lives in
// config.Validate, not here.
package configstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/freddez/eplumber/internal/pkg/application/config"
)

const filename = "eplumber.json"

// Load searches the current working directory first, then the OS
// user-config directory, for eplumber.json. It returns the
// unvalidated Raw document plus the path it was read from, so Save
// can write back to the same place.
func Load() (*config.Raw, string, error) {
	candidates, err := searchPaths()
	if err != nil {
		return nil, "", err
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, "", fmt.Errorf("read %s: %w", path, err)
		}

		var raw config.Raw
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, "", fmt.Errorf("parse %s: %w", path, err)
		}
		return &raw, path, nil
	}

	return nil, "", fmt.Errorf("%s not found in cwd or user config directory", filename)
}

// Save writes cfg to path with 2-space indentation, matching the
// on-disk style Load expects to round-trip.
func Save(path string, raw *config.Raw) error {
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func searchPaths() ([]string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determine working directory: %w", err)
	}
	paths := []string{filepath.Join(cwd, filename)}

	if userCfgDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(userCfgDir, "eplumber", filename))
	}
	return paths, nil
}

// DefaultSavePath returns where a freshly-written configuration should
// live when none was found on Load: the user config directory, which
// is always writable even when cwd isn't.
func DefaultSavePath() (string, error) {
	userCfgDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("determine user config directory: %w", err)
	}
	return filepath.Join(userCfgDir, "eplumber", filename), nil
}
