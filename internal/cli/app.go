package cli

import (
	"context"
	"log/slog"

	"keyloop/internal/builtin"
	"keyloop/internal/config"
	"keyloop/internal/controller"
	"keyloop/internal/history"
	"keyloop/internal/input"
	"keyloop/internal/logging"
	"keyloop/internal/player"
	"keyloop/internal/recorder"
	"keyloop/internal/storage"
)

// app is the state shared by commands: configuration, logger and the macro library.
type app struct {
	cfgMgr *config.Manager
	cfg    config.Config
	logger *slog.Logger
	store  *storage.Store
	lib    *storage.Library
}

// loadApp reads the config, installs the logger and opens the macro library.
func loadApp(opts *RootOptions) (*app, error) {
	cfgMgr, err := config.NewManager(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to locate config", err)
	}
	if err := cfgMgr.Load(); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	cfg := cfgMgr.Get()

	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	if opts.Verbose {
		level = "debug"
	}
	logger, err := logging.Setup(level)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid log level", err)
	}

	store, err := storage.Open(cfgMgr.MacroDir(), logger)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open macro storage", err)
	}
	builtins, err := builtin.Load()
	if err != nil {
		return nil, WrapExitError(ExitFailure, "failed to load built-in macros", err)
	}

	return &app{
		cfgMgr: cfgMgr,
		cfg:    cfg,
		logger: logger,
		store:  store,
		lib:    storage.NewLibrary(store, builtins, logger),
	}, nil
}

func (a *app) injectorOptions() input.InjectorOptions {
	p := a.cfg.Playback
	return input.InjectorOptions{
		Tap:    p.Tap(),
		Poll:   p.HoldPoll(),
		Settle: p.Settle(),
		Logger: a.logger,
	}
}

func (a *app) recorderConfig() recorder.Config {
	r := a.cfg.Recorder
	return recorder.Config{
		StartKey:      r.StartKey,
		StopKey:       r.StopKey,
		GapThreshold:  r.GapThreshold(),
		HoldThreshold: r.HoldThreshold(),
		Logger:        a.logger,
	}
}

// openHistory opens the run log. A failure is logged and yields nil so a
// broken database never blocks playback.
func (a *app) openHistory() *history.Store {
	h, err := history.Open(a.cfgMgr.HistoryPath())
	if err != nil {
		a.logger.Warn("run history unavailable", "path", a.cfgMgr.HistoryPath(), "err", err)
		return nil
	}
	return h
}

// newController wires a player on inj into a controller reporting to obs and
// logging finished runs to hist (when non-nil).
func (a *app) newController(inj player.Injector, obs player.Observer, hist *history.Store) *controller.Controller {
	p := a.cfg.Playback
	pl := player.New(inj,
		player.WithObserver(obs),
		player.WithSleepPoll(p.SleepPoll()),
		player.WithLogger(a.logger),
	)

	opts := controller.Options{
		StopTimeout: p.StopTimeout(),
		Observer:    obs,
		Logger:      a.logger,
	}
	if hist != nil {
		opts.OnRun = func(r controller.Run) {
			if err := hist.Record(context.Background(), r); err != nil {
				a.logger.Warn("failed to record run", "run", r.ID, "err", err)
			}
		}
	}
	return controller.New(pl, opts)
}
