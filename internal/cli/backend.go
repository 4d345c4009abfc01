package cli

import (
	"context"
	"log/slog"

	"github.com/roach88/posscan/internal/api"
	"github.com/roach88/posscan/internal/catalog"
	"github.com/roach88/posscan/internal/config"
	"github.com/roach88/posscan/internal/store"
)

// newClient creates the backend client. Tokens from the environment
// replace the stored pair.
func newClient(ctx context.Context, cfg config.Config, st *store.Store, logger *slog.Logger) (*api.Client, error) {
	client := api.New(cfg.APIURL,
		api.WithTokenStore(st),
		api.WithLogger(logger),
	)
	if cfg.RefreshToken != "" {
		if err := client.SetTokens(ctx, cfg.AccessToken, cfg.RefreshToken); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to store tokens", err)
		}
	}
	return client, nil
}

// openCatalog builds the catalog store over the bolt cache and seeds it
// from the cache. source may be nil when no backend is configured.
func openCatalog(cfg config.Config, source catalog.Source, logger *slog.Logger) (*catalog.Store, *catalog.BoltCache, error) {
	cache, err := catalog.OpenBoltCache(cfg.CatalogCache)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open catalog cache", err)
	}
	cat := catalog.NewStore(source,
		catalog.WithCache(cache),
		catalog.WithLogger(logger),
	)
	if _, err := cat.LoadCache(); err != nil {
		logger.Error("ignoring unreadable catalog cache", "path", cfg.CatalogCache, "error", err)
	}
	return cat, cache, nil
}
