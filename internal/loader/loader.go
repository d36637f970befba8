// Package loader turns a ModelConfig into a runnable Resource. It fetches the
// model manifest from the config's source locator, decodes it as either a
// layered or a flat-graph manifest, downloads the weight shards and builds an
// executable network. It never caches and never retries; the only second
// attempt is the format fallback.
package loader

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/codec"
	"inferd/pkg/types"
)

const (
	defaultHTTPTimeout      = 60 * time.Second
	defaultShardConcurrency = 4
)

// Resource is an opaque loaded model.
type Resource interface {
	// Run executes the model on one input tensor.
	Run(ctx context.Context, in codec.Tensor) (codec.Tensor, error)
	// ParamCount reports the number of weights held by the model.
	ParamCount() int64
	// Close releases the model. Run fails after Close.
	Close() error
}

// LoadOptions tune a single load.
type LoadOptions struct {
	// OnProgress receives the fraction of weight shards fetched, in (0,1].
	// Calls are serialized.
	OnProgress func(fraction float64)
}

// Loader fetches and decodes models. It is safe for concurrent use.
type Loader struct {
	fetchers         map[string]Fetcher
	shardConcurrency int
	log              zerolog.Logger
}

// Option customizes a Loader.
type Option func(*Loader)

// WithFetcher registers f for locators with the given URL scheme.
func WithFetcher(scheme string, f Fetcher) Option {
	return func(l *Loader) { l.fetchers[strings.ToLower(scheme)] = f }
}

// WithHTTPClient replaces the client used for http and https locators.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) {
		f := HTTPFetcher{Client: c}
		l.fetchers["http"] = f
		l.fetchers["https"] = f
	}
}

// WithShardConcurrency bounds parallel shard downloads per load.
func WithShardConcurrency(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.shardConcurrency = n
		}
	}
}

// WithLogger installs a structured logger.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Loader) { l.log = log }
}

// New returns a Loader handling http, https and file locators. Register an
// S3Fetcher with WithFetcher("s3", ...) to enable s3 locators.
func New(opts ...Option) *Loader {
	httpFetcher := HTTPFetcher{Client: &http.Client{Timeout: defaultHTTPTimeout}}
	l := &Loader{
		fetchers: map[string]Fetcher{
			"http":  httpFetcher,
			"https": httpFetcher,
			"file":  FileFetcher{},
		},
		shardConcurrency: defaultShardConcurrency,
		log:              zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load fetches cfg.Source and builds a Resource. The format implied by the
// locator suffix is tried first, then the other one. When both fail the
// returned error is a *LoadFailedError carrying both causes.
func (l *Loader) Load(ctx context.Context, cfg types.ModelConfig, opts LoadOptions) (Resource, error) {
	src, err := ParseLocator(cfg.Source)
	if err != nil {
		return nil, &LoadFailedError{Source: cfg.Source, Attempts: []Attempt{{Err: err}}}
	}
	fetcher, ok := l.fetchers[src.Scheme]
	if !ok {
		err := fmt.Errorf("no fetcher for scheme %q", src.Scheme)
		return nil, &LoadFailedError{Source: cfg.Source, Attempts: []Attempt{{Err: err}}}
	}

	// The manifest is fetched at most once and shared by both attempts.
	var (
		once     sync.Once
		raw      []byte
		fetchErr error
	)
	getManifest := func() ([]byte, error) {
		once.Do(func() {
			raw, fetchErr = fetcher.Fetch(ctx, src)
			if fetchErr != nil {
				fetchErr = fmt.Errorf("fetch manifest: %w", fetchErr)
			}
		})
		return raw, fetchErr
	}

	failed := &LoadFailedError{Source: cfg.Source}
	for _, format := range FormatOrder(src) {
		body, err := getManifest()
		if err == nil {
			var res Resource
			res, err = l.loadAs(ctx, format, body, src, fetcher, opts)
			if err == nil {
				l.log.Debug().Str("model", cfg.ID).Str("format", string(format)).Int64("params", res.ParamCount()).Msg("model decoded")
				return res, nil
			}
		}
		l.log.Debug().Str("model", cfg.ID).Str("format", string(format)).Err(err).Msg("format attempt failed")
		failed.Attempts = append(failed.Attempts, Attempt{Format: format, Err: err})
	}
	return nil, failed
}

func (l *Loader) loadAs(ctx context.Context, format Format, raw []byte, base *url.URL, f Fetcher, opts LoadOptions) (Resource, error) {
	var (
		m   *manifest
		err error
	)
	switch format {
	case FormatLayers:
		m, err = parseLayers(raw)
	case FormatGraph:
		m, err = parseGraph(raw)
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return nil, err
	}
	weights, err := l.fetchWeights(ctx, m.groups, base, f, opts.OnProgress)
	if err != nil {
		return nil, err
	}
	net, err := m.build(weights)
	if err != nil {
		return nil, err
	}
	return net, nil
}
