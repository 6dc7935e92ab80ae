package agent

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/mwantia/fabric/pkg/container"
	"github.com/mwantia/gophotos/internal/api"
	config "github.com/mwantia/gophotos/internal/config/server"
	"github.com/mwantia/gophotos/pkg/db/store"
	"github.com/mwantia/gophotos/pkg/log"
	"github.com/mwantia/gophotos/pkg/remote"
	"github.com/robfig/cron/v3"
)

type GoPhotosAgent struct {
	mutex sync.RWMutex
	wait  sync.WaitGroup

	cfg *config.BaseServerConfig
	sc  *container.ServiceContainer
	log log.LoggerService

	components *Components
	unwatch    func()
	subscriber remote.Subscriber
	cron       *cron.Cron
	api        *api.Server
}

func NewAgent(cfg *config.BaseServerConfig) *GoPhotosAgent {
	return &GoPhotosAgent{
		cfg: cfg,
		sc:  container.NewServiceContainer(),
		log: log.NewLoggerService("agent", cfg.Log),
	}
}

func (gpa *GoPhotosAgent) setupServices(ctx context.Context) error {
	components, err := NewComponents(ctx, gpa.cfg, gpa.log)
	if err != nil {
		return err
	}
	gpa.components = components

	errs := container.Errors{}

	gpa.log.Debug("Registering 'LoggerService'...")
	errs.Add(container.Register[log.LoggerServiceImpl](gpa.sc,
		container.With[log.LoggerService](),
		container.WithInstance(gpa.log)))

	gpa.log.Debug("Registering 'MirrorStore'...")
	errs.Add(container.Register[store.SQLiteStore](gpa.sc,
		container.With[store.MirrorStore](),
		container.WithInstance(components.Mirror)))

	gpa.log.Debug("Registering 'StateStore'...")
	errs.Add(container.Register[store.SQLiteStateStore](gpa.sc,
		container.With[store.StateStore](),
		container.WithInstance(components.State)))

	gpa.log.Debug("Registering 'Client'...")
	errs.Add(container.Register[remote.HTTPClient](gpa.sc,
		container.With[remote.Client](),
		container.WithInstance(components.Client)))

	if gpa.cfg.Push.Enabled {
		subscriber, err := remote.NewWSSubscriber(remoteConfig(gpa.cfg))
		if err != nil {
			errs.Add(fmt.Errorf("failed to create push subscriber: %w", err))
		} else {
			gpa.subscriber = subscriber

			gpa.log.Debug("Registering 'Subscriber'...")
			errs.Add(container.Register[remote.WSSubscriber](gpa.sc,
				container.With[remote.Subscriber](),
				container.WithInstance(subscriber)))
		}
	}

	return errs.Errors()
}

func (gpa *GoPhotosAgent) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	gpa.mutex.Lock()

	if err := gpa.setupServices(ctx); err != nil {
		gpa.mutex.Unlock()
		return err
	}
	if err := gpa.start(ctx); err != nil {
		gpa.mutex.Unlock()
		return err
	}

	gpa.mutex.Unlock()
	<-ctx.Done()

	timeout := config.ParseDuration(gpa.cfg.ShutdownTimeout, 60*time.Second)
	shutdown, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return gpa.stop(shutdown)
}

func (gpa *GoPhotosAgent) start(ctx context.Context) error {
	c := gpa.components

	if gpa.cfg.Sync.OnStart {
		gpa.wait.Add(1)
		go func() {
			defer gpa.wait.Done()
			gpa.runSync(ctx)
		}()
	}

	if gpa.cfg.Sync.Schedule != "" {
		gpa.cron = cron.New()
		if _, err := gpa.cron.AddFunc(gpa.cfg.Sync.Schedule, func() { gpa.runSync(ctx) }); err != nil {
			return fmt.Errorf("failed to schedule sync '%s': %w", gpa.cfg.Sync.Schedule, err)
		}
		gpa.cron.Start()
		gpa.log.Info("Scheduled sync of drive %s with '%s'", c.Drive.Key(), gpa.cfg.Sync.Schedule)
	}

	gpa.unwatch = c.Library.Watch(ctx, c.Drive)

	if gpa.subscriber != nil {
		gpa.wait.Add(1)
		go gpa.subscribe(ctx)
	}

	if gpa.cfg.API.Enabled {
		router := api.NewRouter(&api.Handler{
			Drive:     c.Drive,
			Syncer:    c.Engine,
			Libraries: c.Library,
			Photos:    c.Photos,
			Selector:  c.Selector,
			Log:       gpa.log.Named("api"),
		})

		gpa.api = api.NewServer(gpa.cfg.API.Address, router, gpa.log.Named("api"))
		if err := gpa.api.Start(); err != nil {
			return err
		}
	}

	return nil
}

func (gpa *GoPhotosAgent) stop(ctx context.Context) error {
	gpa.log.Info("Shutting down...")

	if gpa.api != nil {
		if err := gpa.api.Shutdown(ctx); err != nil {
			gpa.log.Warn("Failed to shutdown local API: %v", err)
		}
	}
	if gpa.cron != nil {
		<-gpa.cron.Stop().Done()
	}

	gpa.wait.Wait()

	if gpa.unwatch != nil {
		gpa.unwatch()
	}
	if err := gpa.components.Close(ctx); err != nil {
		gpa.log.Error("Failed to close components: %v", err)
	}

	if err := gpa.sc.Cleanup(ctx); err != nil {
		return fmt.Errorf("failed to complete service container cleanup: %w", err)
	}
	return nil
}

func (gpa *GoPhotosAgent) runSync(ctx context.Context) {
	drive := gpa.components.Drive

	start := time.Now()
	if err := gpa.components.Engine.Sync(ctx, drive); err != nil {
		if ctx.Err() == nil {
			gpa.log.Error("Failed to sync drive %s: %v", drive.Key(), err)
		}
		return
	}
	gpa.log.Info("Synced drive %s in %s", drive.Key(), time.Since(start).Round(time.Millisecond))
}

// subscribe keeps the push subscription alive until ctx is done and runs a
// catch-up sync after every reconnect.
func (gpa *GoPhotosAgent) subscribe(ctx context.Context) {
	defer gpa.wait.Done()

	drive := gpa.components.Drive
	delay := config.ParseDuration(gpa.cfg.Push.ReconnectDelay, 5*time.Second)
	logger := gpa.log.Named("push")

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			gpa.runSync(ctx)
		}

		err := gpa.subscriber.Subscribe(ctx, []remote.TargetDrive{drive}, func(ctx context.Context, n remote.Notification) {
			if err := gpa.components.Engine.HandleNotification(ctx, n); err != nil {
				logger.Warn("Failed to apply '%s' for file %s: %v", n.NotificationType, n.Header.FileID, err)
			}
		})
		if ctx.Err() != nil {
			return
		}

		logger.Warn("Subscription lost, reconnecting in %s: %v", delay, err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}
