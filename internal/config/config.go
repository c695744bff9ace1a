// Package config holds the explorer settings and loads them from defaults,
// a YAML file, the repository git config and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type BranchesLayout string

const (
	BranchesList BranchesLayout = "list"
	BranchesTree BranchesLayout = "tree"
)

type FilesLayout string

const (
	FilesList FilesLayout = "list"
	FilesTree FilesLayout = "tree"
	// FilesAuto switches to the tree layout once a file list grows past
	// Config.FilesThreshold entries.
	FilesAuto FilesLayout = "auto"
)

// Section is the git config section holding per-repository overrides.
const Section = "gitk-explorer"

type Config struct {
	BranchesLayout     BranchesLayout `yaml:"branchesLayout" ini:"branchesLayout"`
	FilesLayout        FilesLayout    `yaml:"filesLayout" ini:"filesLayout"`
	FilesThreshold     int            `yaml:"filesThreshold" ini:"filesThreshold"`
	Compact            bool           `yaml:"compact" ini:"compact"`
	DefaultItemLimit   int            `yaml:"defaultItemLimit" ini:"defaultItemLimit"`
	PageIncrement      int            `yaml:"pageIncrement" ini:"pageIncrement"`
	IncludeWorkingTree bool           `yaml:"includeWorkingTree" ini:"includeWorkingTree"`
	AutoRefresh        bool           `yaml:"autoRefresh" ini:"autoRefresh"`
	DebounceDelay      time.Duration  `yaml:"debounceDelay" ini:"debounceDelay"`
}

func Default() Config {
	return Config{
		BranchesLayout:     BranchesTree,
		FilesLayout:        FilesAuto,
		FilesThreshold:     5,
		Compact:            true,
		DefaultItemLimit:   10,
		PageIncrement:      10,
		IncludeWorkingTree: true,
		AutoRefresh:        true,
		DebounceDelay:      250 * time.Millisecond,
	}
}

func (c Config) Validate() error {
	var errs []error
	switch c.BranchesLayout {
	case BranchesList, BranchesTree:
	default:
		errs = append(errs, fmt.Errorf("invalid branches layout %q", c.BranchesLayout))
	}
	switch c.FilesLayout {
	case FilesList, FilesTree, FilesAuto:
	default:
		errs = append(errs, fmt.Errorf("invalid files layout %q", c.FilesLayout))
	}
	if c.DefaultItemLimit < 0 {
		errs = append(errs, fmt.Errorf("default item limit must not be negative, got %d", c.DefaultItemLimit))
	}
	if c.PageIncrement < 0 {
		errs = append(errs, fmt.Errorf("page increment must not be negative, got %d", c.PageIncrement))
	}
	if c.DebounceDelay < 0 {
		errs = append(errs, fmt.Errorf("debounce delay must not be negative, got %s", c.DebounceDelay))
	}
	return errors.Join(errs...)
}

// FilesAsTree reports whether a list of n files is shown grouped by folder.
func (c Config) FilesAsTree(n int) bool {
	switch c.FilesLayout {
	case FilesTree:
		return true
	case FilesAuto:
		return n > c.FilesThreshold
	default:
		return false
	}
}

// Load returns the defaults overridden by the YAML file at path. An empty
// path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if err := LoadFile(&cfg, path); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile decodes the YAML file at path onto cfg. Keys missing from the
// file keep their current value.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg.Validate()
}
