// Package catalog holds the set of models the service knows how to load.
// Every entry is validated on the way in and bound to its codec, so callers
// never see a config that would fail at prediction time because of a bad
// shape or an unknown type.
package catalog

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	version "github.com/hashicorp/go-version"

	"inferd/internal/codec"
	"inferd/pkg/types"
)

// ErrInvalidConfig marks validation failures.
var ErrInvalidConfig = errors.New("invalid model config")

var knownTypes = map[types.ModelType]bool{
	types.TypeClassification: true,
	types.TypeRegression:     true,
	types.TypeEmbedding:      true,
	types.TypeVision:         true,
	types.TypeText:           true,
	types.TypeAudio:          true,
	types.TypeTabular:        true,
}

// Validate normalizes cfg and selects its codec. The returned config is a
// copy; cfg itself is left untouched.
func Validate(cfg types.ModelConfig) (types.ModelConfig, codec.Codec, error) {
	out := cfg.Clone()
	out.ID = strings.TrimSpace(out.ID)
	out.Source = strings.TrimSpace(out.Source)
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("model %q: %w: %s", out.ID, ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	if out.ID == "" {
		return out, nil, invalid("empty id")
	}
	if out.Source == "" {
		return out, nil, invalid("empty source")
	}
	if out.Name == "" {
		out.Name = out.ID
	}

	out.Type = types.ModelType(strings.ToLower(strings.TrimSpace(string(out.Type))))
	if out.Type == "nlp" {
		out.Type = types.TypeText
	}
	if !knownTypes[out.Type] {
		return out, nil, invalid("unknown type %q", cfg.Type)
	}
	if out.Version != "" {
		if _, err := version.NewVersion(out.Version); err != nil {
			return out, nil, invalid("version: %v", err)
		}
	}
	for _, d := range out.InputShape {
		if d <= 0 {
			return out, nil, invalid("input shape %v has a non-positive dimension", out.InputShape)
		}
	}
	for _, d := range out.OutputShape {
		if d <= 0 {
			return out, nil, invalid("output shape %v has a non-positive dimension", out.OutputShape)
		}
	}
	for name, shape := range map[string][]int{"input": out.InputShape, "output": out.OutputShape} {
		if len(shape) == 0 {
			continue
		}
		if _, err := codec.ShapeSize(shape); err != nil {
			return out, nil, invalid("%s shape: %v", name, err)
		}
	}
	if n := len(out.OutputShape); n > 0 && len(out.Labels) > 0 && len(out.Labels) != out.OutputShape[n-1] {
		return out, nil, invalid("%d labels for %d outputs", len(out.Labels), out.OutputShape[n-1])
	}
	if out.SampleRate < 0 {
		return out, nil, invalid("negative sample rate")
	}

	c, err := codec.For(out)
	if err != nil {
		return out, nil, invalid("%v", err)
	}
	return out, c, nil
}

type entry struct {
	cfg   types.ModelConfig
	codec codec.Codec
}

// Catalog is a concurrency-safe set of validated model configs keyed by id.
type Catalog struct {
	mu     sync.RWMutex
	models map[string]entry
}

// New validates cfgs and returns a catalog holding them. Duplicate ids are
// rejected.
func New(cfgs ...types.ModelConfig) (*Catalog, error) {
	c := &Catalog{models: make(map[string]entry, len(cfgs))}
	for _, cfg := range cfgs {
		v, cd, err := Validate(cfg)
		if err != nil {
			return nil, err
		}
		if _, dup := c.models[v.ID]; dup {
			return nil, fmt.Errorf("model %q: duplicate id", v.ID)
		}
		c.models[v.ID] = entry{cfg: v, codec: cd}
	}
	return c, nil
}

// Add validates cfg and inserts or replaces it.
func (c *Catalog) Add(cfg types.ModelConfig) error {
	v, cd, err := Validate(cfg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.models[v.ID] = entry{cfg: v, codec: cd}
	c.mu.Unlock()
	return nil
}

// Remove drops id and reports whether it was present.
func (c *Catalog) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.models[id]
	delete(c.models, id)
	return ok
}

// Get returns a copy of the config registered under id.
func (c *Catalog) Get(id string) (types.ModelConfig, bool) {
	c.mu.RLock()
	e, ok := c.models[id]
	c.mu.RUnlock()
	if !ok {
		return types.ModelConfig{}, false
	}
	return e.cfg.Clone(), true
}

// Lookup returns a copy of the config registered under id together with the
// codec bound to it at validation time.
func (c *Catalog) Lookup(id string) (types.ModelConfig, codec.Codec, bool) {
	c.mu.RLock()
	e, ok := c.models[id]
	c.mu.RUnlock()
	if !ok {
		return types.ModelConfig{}, nil, false
	}
	return e.cfg.Clone(), e.codec, true
}

// Len reports the number of registered models.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.models)
}

// List returns copies of every config, sorted by id.
func (c *Catalog) List() []types.ModelConfig {
	c.mu.RLock()
	out := make([]types.ModelConfig, 0, len(c.models))
	for _, e := range c.models {
		out = append(out, e.cfg.Clone())
	}
	c.mu.RUnlock()
	slices.SortFunc(out, func(a, b types.ModelConfig) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Search returns models whose id, name, type or description contains query,
// case-insensitively.
func (c *Catalog) Search(query string) []types.ModelConfig {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return c.List()
	}
	var out []types.ModelConfig
	for _, m := range c.List() {
		desc, _ := m.Metadata["description"].(string)
		for _, field := range []string{m.ID, m.Name, string(m.Type), desc} {
			if strings.Contains(strings.ToLower(field), q) {
				out = append(out, m)
				break
			}
		}
	}
	return out
}
