package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"inferd/internal/catalog"
	"inferd/internal/config"
	"inferd/internal/loader"
)

// buildCatalog layers the built-in models, then catalog_path, then
// catalog_db. Later sources replace earlier entries with the same id.
func buildCatalog(ctx context.Context, cfg config.Config, log zerolog.Logger) (*catalog.Catalog, error) {
	cat, err := catalog.New(catalog.Builtin()...)
	if err != nil {
		return nil, fmt.Errorf("builtin catalog: %w", err)
	}
	if cfg.CatalogPath != "" {
		models, err := catalog.LoadPath(cfg.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("catalog %s: %w", cfg.CatalogPath, err)
		}
		for _, m := range models {
			if err := cat.Add(m); err != nil {
				return nil, fmt.Errorf("catalog %s: %w", cfg.CatalogPath, err)
			}
		}
		log.Info().Str("path", cfg.CatalogPath).Int("models", len(models)).Msg("catalog file loaded")
	}
	if cfg.CatalogDB != "" {
		store, err := catalog.OpenStore(cfg.CatalogDB)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		models, err := store.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, m := range models {
			if err := cat.Add(m); err != nil {
				return nil, fmt.Errorf("catalog db %s: %w", cfg.CatalogDB, err)
			}
		}
		log.Info().Str("db", cfg.CatalogDB).Int("models", len(models)).Msg("catalog db loaded")
	}
	return cat, nil
}

// buildLoader returns a loader for http, https and file locators, plus s3
// when an AWS config can be resolved.
func buildLoader(ctx context.Context, cfg config.Config, log zerolog.Logger) *loader.Loader {
	opts := []loader.Option{loader.WithLogger(log), loader.WithShardConcurrency(cfg.ShardConcurrency)}
	client, err := loader.NewS3Client(ctx, loader.S3Options{
		Profile:  cfg.S3.Profile,
		Region:   cfg.S3.Region,
		Endpoint: cfg.S3.Endpoint,
	})
	if err != nil {
		log.Warn().Err(err).Msg("s3 locators disabled")
	} else {
		opts = append(opts, loader.WithFetcher("s3", loader.NewS3Fetcher(client)))
	}
	return loader.New(opts...)
}
