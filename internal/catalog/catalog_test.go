package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inferd/pkg/types"
)

func validCfg(id string) types.ModelConfig {
	return types.ModelConfig{
		ID:          id,
		Type:        types.TypeClassification,
		Source:      "https://example.com/" + id + "/model.json",
		Version:     "1.2.0",
		InputShape:  []int{4},
		OutputShape: []int{3},
		Labels:      []string{"setosa", "versicolor", "virginica"},
	}
}

func TestBuiltinValidates(t *testing.T) {
	c, err := New(Builtin()...)
	require.NoError(t, err)
	assert.Equal(t, len(Builtin()), c.Len())

	gpt, ok := c.Get("gpt2-small")
	require.True(t, ok)
	assert.Equal(t, types.TypeText, gpt.Type)

	cfg, cd, ok := c.Lookup("mobilenet-v2")
	require.True(t, ok)
	assert.Equal(t, "mobilenet-v2", cfg.ID)
	assert.Equal(t, "vision+softmax", cd.Name())

	_, _, ok = c.Lookup("missing")
	assert.False(t, ok)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*types.ModelConfig){
		"empty id":       func(c *types.ModelConfig) { c.ID = " " },
		"empty source":   func(c *types.ModelConfig) { c.Source = "" },
		"unknown type":   func(c *types.ModelConfig) { c.Type = "quantum" },
		"bad version":    func(c *types.ModelConfig) { c.Version = "one.two" },
		"zero dim":       func(c *types.ModelConfig) { c.InputShape = []int{0} },
		"huge input":     func(c *types.ModelConfig) { c.InputShape = []int{1 << 62, 2} },
		"huge output":    func(c *types.ModelConfig) { c.OutputShape = []int{1 << 40, 1 << 40, 3} },
		"label mismatch": func(c *types.ModelConfig) { c.Labels = c.Labels[:2] },
		"bad post hint":  func(c *types.ModelConfig) { c.Postprocessor = "argsort" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validCfg("iris")
			mutate(&cfg)
			_, _, err := Validate(cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestValidateDoesNotAliasInput(t *testing.T) {
	cfg := validCfg("iris")
	cfg.Name = ""
	out, _, err := Validate(cfg)
	require.NoError(t, err)
	assert.Equal(t, "iris", out.Name)
	out.Labels[0] = "changed"
	assert.Equal(t, "setosa", cfg.Labels[0])
}

func TestCatalogGetReturnsCopy(t *testing.T) {
	c, err := New(validCfg("iris"))
	require.NoError(t, err)

	got, ok := c.Get("iris")
	require.True(t, ok)
	got.Labels[0] = "mutated"

	again, _ := c.Get("iris")
	assert.Equal(t, "setosa", again.Labels[0])

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCatalogDuplicateAndAdd(t *testing.T) {
	_, err := New(validCfg("a"), validCfg("a"))
	assert.ErrorContains(t, err, "duplicate")

	c, err := New(validCfg("b"), validCfg("a"))
	require.NoError(t, err)
	require.NoError(t, c.Add(validCfg("c")))
	ids := []string{}
	for _, m := range c.List() {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.True(t, c.Remove("b"))
	assert.False(t, c.Remove("b"))
	assert.Error(t, c.Add(types.ModelConfig{ID: "x"}))
}

func TestSearch(t *testing.T) {
	c, err := New(Builtin()...)
	require.NoError(t, err)
	hits := c.Search("LANDMARKS")
	require.Len(t, hits, 1)
	assert.Equal(t, "face-landmarks", hits[0].ID)
	assert.Len(t, c.Search(""), c.Len())
}

func TestLoadFileFormats(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"a.yaml": `
models:
  - id: iris
    type: classification
    source: ./iris/model.json
    input_shape: [4]
    output_shape: [3]
    labels: [setosa, versicolor, virginica]
    warmup: false
`,
		"b.json": `{"models":[{"id":"price","type":"regression","source":"s3://models/price/model.json","input_shape":[8]}]}`,
		"c.toml": `
[[models]]
id = "review"
type = "text"
source = "https://example.com/review/model.json"
input_shape = [16]
[models.vocabulary]
great = 5
`,
		"notes.txt": "ignored",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}

	yml, err := LoadFile(filepath.Join(dir, "a.yaml"))
	require.NoError(t, err)
	require.Len(t, yml, 1)
	require.NotNil(t, yml[0].Warmup)
	assert.False(t, *yml[0].Warmup)

	tml, err := LoadFile(filepath.Join(dir, "c.toml"))
	require.NoError(t, err)
	require.Len(t, tml, 1)
	assert.Equal(t, 5, tml[0].Vocabulary["great"])

	all, err := LoadPath(dir)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "iris", all[0].ID)
	assert.Equal(t, "price", all[1].ID)
	assert.Equal(t, "review", all[2].ID)

	_, err = New(all...)
	require.NoError(t, err)

	_, err = LoadFile(filepath.Join(dir, "notes.txt"))
	assert.ErrorContains(t, err, "unsupported")
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := OpenStore(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Upsert(ctx, validCfg("iris")))
	updated := validCfg("iris")
	updated.Version = "2.0.0"
	require.NoError(t, s.Upsert(ctx, updated))
	require.NoError(t, s.Upsert(ctx, validCfg("alpha")))
	assert.Error(t, s.Upsert(ctx, types.ModelConfig{ID: "bad"}))

	got, ok, err := s.Get(ctx, "iris")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2.0.0", got.Version)
	assert.Equal(t, []string{"setosa", "versicolor", "virginica"}, got.Labels)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].ID)

	require.NoError(t, s.Delete(ctx, "iris"))
	_, ok, err = s.Get(ctx, "iris")
	require.NoError(t, err)
	assert.False(t, ok)
}
