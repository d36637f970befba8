package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"inferd/internal/common/fsutil"
	"inferd/pkg/types"
)

// File is the on-disk catalog layout: a top-level "models" list.
type File struct {
	Models []types.ModelConfig `json:"models" yaml:"models" toml:"models"`
}

// LoadFile reads model configs from a .yaml/.yml, .json or .toml file.
// Configs are returned as written; validation happens when they are added
// to a Catalog.
func LoadFile(path string) ([]types.ModelConfig, error) {
	if path == "" {
		return nil, fmt.Errorf("empty catalog path")
	}
	p, err := fsutil.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	var f File
	switch ext := strings.ToLower(filepath.Ext(p)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &f)
	case ".json":
		err = json.Unmarshal(b, &f)
	case ".toml":
		err = toml.Unmarshal(b, &f)
	default:
		return nil, fmt.Errorf("unsupported catalog extension: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(p), err)
	}
	return f.Models, nil
}

// LoadDir reads every catalog file in dir, in file name order. Files with
// other extensions are ignored.
func LoadDir(dir string) ([]types.ModelConfig, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml", ".json", ".toml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	var out []types.ModelConfig
	for _, name := range names {
		models, err := LoadFile(filepath.Join(abs, name))
		if err != nil {
			return nil, err
		}
		out = append(out, models...)
	}
	return out, nil
}

// LoadPath dispatches to LoadDir or LoadFile depending on what path is.
func LoadPath(path string) ([]types.ModelConfig, error) {
	p, err := fsutil.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	if st.IsDir() {
		return LoadDir(p)
	}
	return LoadFile(p)
}
