package agent

import (
	"context"
	"errors"
	"fmt"

	config "github.com/mwantia/gophotos/internal/config/server"
	"github.com/mwantia/gophotos/internal/library"
	"github.com/mwantia/gophotos/internal/photos"
	"github.com/mwantia/gophotos/internal/selection"
	"github.com/mwantia/gophotos/internal/syncer"
	"github.com/mwantia/gophotos/pkg/db/store"
	"github.com/mwantia/gophotos/pkg/log"
	"github.com/mwantia/gophotos/pkg/querycache"
	"github.com/mwantia/gophotos/pkg/remote"
)

// Components is the wired photo library core shared by the agent and the
// one-shot library commands.
type Components struct {
	Drive remote.TargetDrive

	Mirror *store.SQLiteStore
	State  *store.SQLiteStateStore
	Client *remote.HTTPClient
	Cache  *querycache.Cache

	Engine   *syncer.Engine
	Library  *library.Cache
	Photos   *photos.Service
	Selector *selection.Selector
}

func remoteConfig(cfg *config.BaseServerConfig) remote.HTTPConfig {
	return remote.HTTPConfig{
		BaseURL: cfg.Remote.URL,
		Token:   cfg.Remote.Token,
		Timeout: config.ParseDuration(cfg.Remote.Timeout, 0),
	}
}

// NewComponents opens and migrates both stores and wires every service.
func NewComponents(ctx context.Context, cfg *config.BaseServerConfig, logger log.LoggerService) (*Components, error) {
	if cfg.Metadata.Type != "" && cfg.Metadata.Type != "sqlite" {
		return nil, fmt.Errorf("unsupported metadata type '%s'", cfg.Metadata.Type)
	}

	client, err := remote.NewHTTPClient(remoteConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create remote client: %w", err)
	}

	c := &Components{
		Drive: remote.TargetDrive{
			Alias: cfg.Drive.Alias,
			Type:  cfg.Drive.Type,
		},
		Client: client,
		Cache: querycache.New(
			querycache.WithStaleTime(config.ParseDuration(cfg.Library.StaleTime, 0)),
		),
	}

	if c.Mirror, err = store.NewSQLiteStore(store.SQLiteConfig{Path: cfg.Metadata.SQLite.Path}); err != nil {
		return nil, err
	}
	if c.State, err = store.NewSQLiteStateStore(store.SQLiteConfig{Path: cfg.Metadata.SQLite.StatePath}); err != nil {
		c.closeStores()
		return nil, err
	}

	for _, s := range []interface {
		Connect(context.Context) error
		Migrate(context.Context) error
	}{c.Mirror, c.State} {
		if err := s.Connect(ctx); err != nil {
			c.closeStores()
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			c.closeStores()
			return nil, err
		}
	}

	c.Engine = syncer.NewEngine(client, c.Mirror, c.State, c.Cache, logger.Named("syncer"), syncer.Config{
		PageSize: cfg.Sync.PageSize,
	})

	c.Library = library.NewCache(library.NewRemote(client, logger.Named("library")), c.Cache, logger.Named("library"), library.Config{
		Debounce:        config.ParseDuration(cfg.Library.Debounce, library.DefaultDebounce),
		MaxRetries:      cfg.Library.MaxRetries,
		RetryBase:       config.ParseDuration(cfg.Library.RetryBase, library.DefaultRetryBase),
		RebuildPageSize: cfg.Library.RebuildPageSize,
	})

	var source photos.MonthSource = photos.NewLocalMonths(c.Mirror)
	if cfg.Photos.Source == "remote" {
		source = photos.NewRemoteMonths(client)
	}

	c.Photos = photos.NewService(client, c.Mirror, source, c.Engine, c.Library, c.Cache, logger.Named("photos"), photos.Config{
		MonthPageSize: cfg.Photos.MonthPageSize,
	})
	c.Selector = selection.NewSelector(c.Photos, c.Library, logger.Named("selection"))

	return c, nil
}

// Close flushes pending library changes and closes both stores.
func (c *Components) Close(ctx context.Context) error {
	var errs []error
	if c.Library != nil {
		if err := c.Library.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush library metadata: %w", err))
		}
	}
	errs = append(errs, c.closeStores())
	return errors.Join(errs...)
}

func (c *Components) closeStores() error {
	var errs []error
	if c.Mirror != nil {
		errs = append(errs, c.Mirror.Close())
	}
	if c.State != nil {
		errs = append(errs, c.State.Close())
	}
	return errors.Join(errs...)
}
