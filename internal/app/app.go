package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/npdstracker/internal/config"
	"github.com/MrSnakeDoc/npdstracker/internal/federation"
	"github.com/MrSnakeDoc/npdstracker/internal/httpserver"
	"github.com/MrSnakeDoc/npdstracker/internal/httpserver/deps"
	"github.com/MrSnakeDoc/npdstracker/internal/logger"
	"github.com/MrSnakeDoc/npdstracker/internal/persist"
	"github.com/MrSnakeDoc/npdstracker/internal/probe"
	"github.com/MrSnakeDoc/npdstracker/internal/protocol"
	"github.com/MrSnakeDoc/npdstracker/internal/redis"
	"github.com/MrSnakeDoc/npdstracker/internal/scheduler"
	"github.com/MrSnakeDoc/npdstracker/internal/state"
	"github.com/MrSnakeDoc/npdstracker/internal/store/cmdlog"
	redisstore "github.com/MrSnakeDoc/npdstracker/internal/store/redis"
	"github.com/MrSnakeDoc/npdstracker/internal/tcpserver"
	"github.com/MrSnakeDoc/npdstracker/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	logCloser   io.Closer
	state       *state.TrackerState
	persister   *persist.Persister
	restorer    *scheduler.Restorer
	validator   *scheduler.Validator
	tcp         *tcpserver.Server
	api         *httpserver.Server
	redisClient *goredis.Client

	haltOnce sync.Once
	haltCh   chan struct{}
}

// New loads the configuration from args and wires the tracker.
func New(args []string) (*App, error) {
	cfg, err := config.Load(args)
	if err != nil {
		return nil, err
	}

	loggerClient, logCloser, err := logger.NewWithFile(cfg.EffectiveLogLevel(), cfg.PrettyLog, cfg.LogFile)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:       cfg,
		logger:    loggerClient,
		logCloser: logCloser,
		haltCh:    make(chan struct{}),
	}

	settings := state.NewSettings(cfg.ValidateTime, cfg.ValidateTries, cfg.ShareEnabled, cfg.AdminPass)
	a.state = state.New(settings, cfg.ShareServers, state.Info{
		PrivateHostToAccept: cfg.PrivateHostToAccept,
		TrackerName:         cfg.TrackerName,
		TrackerHost:         cfg.TrackerHost,
		CSSTemplate:         cfg.CSSTemplate,
		ImageDir:            cfg.ImageDir,
		LogFile:             cfg.LogFile,
	})

	cmdFile := cmdlog.NewFile(cfg.CmdFile)
	sinks := []persist.Sink{cmdFile}
	sources := []scheduler.LineSource{cmdFile}

	// The Redis mirror is optional: a tracker without it still works from
	// the command file alone.
	if cfg.RedisAddr != "" {
		client, err := redis.New(context.Background(), redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			RedisDB:        cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, loggerClient)
		if err != nil {
			loggerClient.Warn("continuing without the redis command log mirror", logger.Error(err))
		} else {
			a.redisClient = client
			store := redisstore.NewStore(client, redisstore.DefaultNamespace)
			sinks = append(sinks, store)
			sources = append(sources, store)
		}
	}

	a.persister = persist.New(a.state.Registry, loggerClient, sinks...)

	handler := protocol.NewHandler(a.state, a.persister, loggerClient, protocol.Options{
		Halt: a.halt,
	})
	a.restorer = scheduler.NewRestorer(handler, loggerClient, sources...)

	a.validator = scheduler.NewValidator(
		a.state,
		probe.New(probe.DefaultTimeout),
		federation.New(loggerClient, federation.DefaultTimeout),
		a.persister,
		loggerClient,
		scheduler.DefaultPeriodUnit,
	)
	handler.SetTrigger(a.validator)

	a.tcp = tcpserver.New("", cfg.Ports, handler, loggerClient, tcpserver.DefaultIdleTimeout)

	if cfg.HTTPListen != "" {
		a.api = httpserver.New(cfg.HTTPListen, loggerClient, deps.Deps{
			Logger:       loggerClient,
			StartTime:    time.Now(),
			Version:      version.Version,
			Commit:       version.Commit,
			BuildDate:    version.BuildDate,
			GoVersion:    version.GoVersion,
			TimeNow:      time.Now,
			AllowedCIDRS: cfg.AllowedCIDRS,
			TrustProxy:   cfg.TrustProxy,
			State:        a.state,
			Validator:    a.validator,
			RedisClient:  a.redisClient,
		})
	}

	return a, nil
}

// halt is called by a confirmed HALT in the admin console.
func (a *App) halt() {
	a.haltOnce.Do(func() { close(a.haltCh) })
}

// Run replays the command log, starts the validator and the listeners, and
// blocks until SIGINT/SIGTERM, a confirmed HALT or a fatal server error.
func (a *App) Run() error {
	defer a.close()

	a.logger.Infof("Starting %s on ports %v", version.About(), a.cfg.Ports)
	a.logger.Infof("NPDS tracker %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)
	if a.cfg.OptionsFile != "" {
		a.logger.Info("options file loaded", logger.String("path", a.cfg.OptionsFile))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-a.haltCh:
			a.logger.Warn("halt requested from the administration interface")
			cancel()
		case <-ctx.Done():
		}
	}()

	n, err := a.restorer.Restore(ctx)
	if err != nil {
		a.logger.Warn("failed to restore command log", logger.Error(err))
	}
	a.logger.Info("registry restored",
		logger.Int("lines", n),
		logger.Int("records", a.state.Registry.Len()))

	a.validator.Start(ctx)
	a.logger.Info("validator started",
		logger.Int("validate_time", a.state.Settings.ValidateTime()),
		logger.Int("validate_tries", a.state.Settings.ValidateTries()))

	a.tcp.Listen()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.tcp.Serve(gctx)
	})
	if a.api != nil {
		g.Go(func() error {
			if err := a.api.Start(); err != nil {
				return fmt.Errorf("http server error: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
			defer cancel()
			if err := a.api.Stop(shutdownCtx); err != nil {
				return fmt.Errorf("failed to stop http server: %w", err)
			}
			return nil
		})
	}

	<-gctx.Done()
	a.logger.Info("⏳ Shutting down...")

	err = g.Wait()
	a.validator.Stop()
	a.persister.Save(context.Background())

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.logger.Info("✅ NPDS tracker stopped cleanly")
	return nil
}

func (a *App) close() {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}
	_ = a.logger.Sync()
	_ = a.logCloser.Close()
}
