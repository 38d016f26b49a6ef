package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/alarmd/alarmd/internal/broadcast"
	"github.com/alarmd/alarmd/internal/clock"
	"github.com/alarmd/alarmd/internal/config"
	"github.com/alarmd/alarmd/internal/engine"
	"github.com/alarmd/alarmd/internal/logger"
	"github.com/alarmd/alarmd/internal/repository/alarms"
	"github.com/alarmd/alarmd/internal/scheduler"
	"github.com/alarmd/alarmd/internal/timers"
)

// Options controls the alarm daemon process and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the
	// command listener.
	ListenAddress string
	// DatabasePath provides an optional override for the alarm database.
	DatabasePath string
	// RedisAddress provides an optional override for the broadcast Redis.
	RedisAddress string
}

// eventQueueSize bounds the number of pending event loop closures.
const eventQueueSize = 128

// Run starts the daemon and blocks until the context is canceled. It loads
// configuration, opens the alarm store, restores every alarm, and then serves
// commands while reacting to timer expiries.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "alarmd")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	applyOverrides(settings, opts)

	store, err := alarms.NewSQLiteStore(ctx, settings.DatabasePath)
	if err != nil {
		return fmt.Errorf("open alarm store: %w", err)
	}
	defer store.Close()

	publisher := buildPublisher(ctx, settings)

	// Every alarm mutation runs on this loop; see handleConnection and the
	// timer callbacks for the producers.
	loop := make(chan func(ctx context.Context), eventQueueSize)

	submit := func(fn func(ctx context.Context)) {
		select {
		case loop <- fn:
		case <-ctx.Done():
		}
	}

	clk := clock.System{}

	var manager *engine.Manager

	timer := timers.New(clk, submit,
		func(ctx context.Context, id int, _ scheduler.Type) {
			manager.OnAlarmFired(ctx, id)
		},
		func(ctx context.Context, id int) {
			manager.OnInexactAlarmFired(ctx, id)
		})
	defer timer.Stop()

	sched := scheduler.New(clk, timer, settings, publisher)

	manager = engine.NewManager(engine.Deps{
		Clock:     clk,
		Store:     store,
		Timers:    sched,
		Prefs:     settings,
		Broadcast: publisher,
	}, publisher)

	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("restore alarms: %w", err)
	}

	sched.Start(ctx)

	svc := &service{
		manager:    manager,
		settings:   settings,
		configPath: opts.ConfigPath,
	}

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", settings.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", settings.ListenAddress, err)
	}

	logger.InfoKV(ctx, "Alarm daemon listening",
		"listen_address", settings.ListenAddress, "database_path", settings.DatabasePath)

	go acceptLoop(ctx, lis, svc, submit)

	// Closing the listener unblocks the accept loop on shutdown.
	go func() {
		<-ctx.Done()
		lis.Close()
	}()

	for {
		select {
		case fn := <-loop:
			fn(ctx)
		case <-ctx.Done():
			logger.Info(ctx, "Alarm daemon stopped")

			return nil
		}
	}
}

// applyOverrides lets command line flags win over the settings file.
func applyOverrides(settings *config.Config, opts *Options) {
	if opts.ListenAddress != "" {
		settings.ListenAddress = opts.ListenAddress
	}

	if opts.DatabasePath != "" {
		settings.DatabasePath = opts.DatabasePath
	}

	if opts.RedisAddress != "" {
		settings.RedisAddress = opts.RedisAddress
	}
}

// buildPublisher assembles the broadcast chain: always the log, plus Redis
// when an address is configured.
func buildPublisher(ctx context.Context, settings *config.Config) broadcast.Publisher {
	logPublisher := broadcast.NewLogPublisher()

	if settings.RedisAddress == "" {
		return logPublisher
	}

	redisPublisher, err := broadcast.NewRedisPublisher(ctx, settings.RedisAddress, settings.RedisPrefix)
	if err != nil {
		logger.WarnKV(ctx, "Redis unreachable, broadcasting to log only",
			"redis_addr", settings.RedisAddress, "error", err)

		return logPublisher
	}

	return broadcast.NewFanout(logPublisher, redisPublisher)
}

// acceptLoop serves incoming command connections until the listener closes.
func acceptLoop(ctx context.Context, lis net.Listener, svc *service, submit func(fn func(ctx context.Context))) {
	for {
		conn, err := lis.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}

			logger.Errorf(ctx, "Failed to accept connection: %v", err)

			continue
		}

		go handleConnection(ctx, conn, svc, submit)
	}
}
