package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	router "github.com/dkeye/Arena/internal/adapters/http"
	"github.com/dkeye/Arena/internal/adapters/natsbus"
	"github.com/dkeye/Arena/internal/adapters/store"
	"github.com/dkeye/Arena/internal/app"
	"github.com/dkeye/Arena/internal/app/events"
	"github.com/dkeye/Arena/internal/app/orch"
	"github.com/dkeye/Arena/internal/config"
	"github.com/dkeye/Arena/internal/core"
	"github.com/dkeye/Arena/internal/games"
	"github.com/dkeye/Arena/internal/logging"
	"github.com/dkeye/Arena/internal/ratelimit"
)

const usage = `Usage: arena [flags] <command>

Commands:
  start     run the server in the foreground and write the pid file
  stop      send SIGTERM to the running server
  restart   stop the running server, then start
  reload    send SIGHUP; the server re-reads its config file
  status    print live room statistics
  help      show this text

Flags:
`

func main() {
	logging.Default()

	fs := pflag.NewFlagSet("arena", pflag.ContinueOnError)
	config.Flags(fs)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fmt.Fprint(os.Stderr, fs.FlagUsages())
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	cmd := fs.Arg(0)
	if cmd == "" {
		cmd = "start"
	}

	loader := config.NewLoader(fs)
	var err error
	switch cmd {
	case "start":
		err = serve(loader)
	case "stop":
		err = stop(loader)
	case "restart":
		if err = stop(loader); err != nil {
			log.Warn().Err(err).Msg("nothing to stop")
		}
		err = serve(loader)
	case "reload":
		err = reload(loader)
	case "status":
		err = status(loader, os.Stdout)
	case "help":
		fs.Usage()
	default:
		fs.Usage()
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		log.Error().Err(err).Str("command", cmd).Msg("arena")
		os.Exit(1)
	}
}

type closingStore interface {
	core.Store
	io.Closer
}

func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (closingStore, error) {
	if cfg.Redis.Addr == "" {
		mem := store.NewMemoryStore()
		go sweep(ctx, mem, time.Minute)
		logger.Info().Str("module", "main").Msg("using in-memory store")
		return mem, nil
	}
	rs, err := store.NewRedisStore(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("module", "main").Str("addr", cfg.Redis.Addr).Msg("using redis store")
	return rs, nil
}

func sweep(ctx context.Context, mem *store.MemoryStore, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := mem.Sweep(); n > 0 {
				log.Debug().Str("module", "main").Int("expired", n).Msg("store sweep")
			}
		}
	}
}

func serve(loader *config.Loader) error {
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	logger, logCloser := logging.Init(cfg.Log, os.Stderr)
	defer logCloser.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := writePID(cfg.PIDFile); err != nil {
		return err
	}
	defer removePID(cfg.PIDFile)

	bus := events.New(cfg.Events.Queue, cfg.Events.Workers, logger)
	bus.Subscribe(events.All, func(topic string, payload any) {
		logger.Debug().Str("module", "events").Str("topic", topic).Interface("payload", payload).Msg("event")
	})

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	var nc *nats.Conn
	if cfg.NATS.URL != "" {
		if nc, err = natsbus.Connect(cfg.NATS, logger); err != nil {
			logger.Warn().Str("module", "main").Err(err).Msg("nats unavailable, events stay local")
		} else {
			natsbus.NewBridge(nc, cfg.NATS.SubjectPrefix, logger).Attach(bus)
		}
	}

	reg := app.NewRegistry(cfg.Rooms.MaxRooms, logger)
	rooms := app.NewRoomManager(reg, cfg.Rooms.Defaults, core.Deps{
		Logger:     logger,
		Bus:        bus,
		Store:      st,
		EmptyGrace: cfg.Rooms.EmptyGrace,
		ErrorGrace: cfg.Rooms.ErrorGrace,
	})
	if err := games.Register(rooms); err != nil {
		return err
	}
	matcher := app.NewMatcher(rooms, logger)

	limiter := ratelimit.New(cfg.RateLimit.MaxBuckets, ratelimit.WithLogger(logger))
	limits, err := ratelimit.NewScoped(limiter, cfg.RateLimit.Rules())
	if err != nil {
		return err
	}

	o := orch.New(rooms, matcher, limits, logger)

	applyReload := func(c *config.Config) {
		if err := limits.SetRules(c.RateLimit.Rules()); err != nil {
			logger.Error().Str("module", "main").Err(err).Msg("rate limits not applied")
			return
		}
		logger.Info().Str("module", "main").Msg("rate limits reloaded")
	}
	loader.Watch(applyReload)

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				c, err := loader.Reload()
				if err != nil {
					logger.Error().Str("module", "main").Err(err).Msg("reload failed, keeping previous config")
					continue
				}
				applyReload(c)
			}
		}
	}()

	r := router.SetupRouter(ctx, cfg, o)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("module", "main").Str("addr", addr).Strs("classes", classNames(rooms)).Msg("Arena server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error().Str("module", "main").Err(err).Msg("server error")
		}
	}

	logger.Info().Str("module", "main").Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Str("module", "main").Err(err).Msg("Server forced to shutdown")
	}
	if err := rooms.Shutdown(shutdownCtx); err != nil {
		logger.Error().Str("module", "main").Err(err).Msg("rooms not fully destroyed")
	}
	if err := bus.Close(shutdownCtx); err != nil {
		logger.Warn().Str("module", "main").Err(err).Int64("dropped", bus.Dropped()).Msg("event bus not drained")
	}
	if nc != nil {
		if err := nc.Drain(); err != nil {
			logger.Warn().Str("module", "main").Err(err).Msg("nats drain")
		}
	}
	if err := st.Close(); err != nil {
		logger.Warn().Str("module", "main").Err(err).Msg("store close")
	}
	logger.Info().Str("module", "main").Msg("Server exited gracefully")
	return nil
}

func classNames(rooms *app.RoomManager) []string {
	classes := rooms.Classes()
	out := make([]string, 0, len(classes))
	for _, c := range classes {
		out = append(out, string(c))
	}
	return out
}
