package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"
)

// ForRepository overlays the [gitk-explorer] section of the repository
// config found in gitDir onto cfg, e.g.
//
//	[gitk-explorer]
//		branchesLayout = list
//		defaultItemLimit = 25
func ForRepository(cfg Config, gitDir string) (Config, error) {
	path := filepath.Join(gitDir, "config")
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	file, err := ini.LoadSources(ini.LoadOptions{
		Insensitive:         true,
		IgnoreInlineComment: true,
		AllowBooleanKeys:    true,
	}, path)
	if err != nil {
		return Config{}, fmt.Errorf("load %s: %w", path, err)
	}
	sec, err := file.GetSection(Section)
	if err != nil {
		return cfg, nil
	}
	out := cfg
	if err := sec.MapTo(&out); err != nil {
		return Config{}, fmt.Errorf("decode [%s] in %s: %w", Section, path, err)
	}
	if err := out.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	slog.Debug("repository config applied", slog.String("path", path))
	return out, nil
}
