package cmd

import (
	"context"

	"pharmacy-invoice-service/cmd/invoicer/config"
	"pharmacy-invoice-service/internal/engine"
	"pharmacy-invoice-service/internal/mappers"
	"pharmacy-invoice-service/internal/repository"
	"pharmacy-invoice-service/internal/storage"
)

// runtime holds the wired collaborators for one command invocation.
type runtime struct {
	engine *engine.Engine
	repo   *repository.PostgresRepository
}

// buildRuntime connects the database, picks the file fetcher, and
// verifies at startup that every configured layout has a registered
// format.
func buildRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	repo, err := repository.NewPostgresRepository(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	var fetcher storage.Fetcher
	if cfg.LocalRoot != "" {
		fetcher = &storage.LocalFetcher{Root: cfg.LocalRoot}
	} else {
		fetcher, err = storage.NewS3Fetcher(ctx, cfg.Storage)
		if err != nil {
			repo.Close()
			return nil, err
		}
	}

	registry, err := mappers.NewRegistry()
	if err != nil {
		repo.Close()
		return nil, err
	}
	if cfg.FormatsDir != "" {
		if err := registry.LoadOverrides(cfg.FormatsDir); err != nil {
			repo.Close()
			return nil, err
		}
	}

	eng := engine.New(repo, fetcher, registry)
	if err := eng.VerifyFormats(ctx); err != nil {
		repo.Close()
		return nil, err
	}

	return &runtime{engine: eng, repo: repo}, nil
}

func (r *runtime) close() {
	r.repo.Close()
}
