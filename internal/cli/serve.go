package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"keyloop/internal/api"
	"keyloop/internal/config"
	"keyloop/internal/controller"
	"keyloop/internal/hotkey"
	"keyloop/internal/input"
	"keyloop/internal/osutils"
	"keyloop/internal/player"
	"keyloop/internal/tray"
	"keyloop/internal/ui"
	"keyloop/internal/window"
)

var errNoSelection = errors.New("no macro selected")

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	NoTray bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run in the background with global hotkeys, tray menu and API",
		Long: `Stay resident: the start hotkey (F1 by default) plays the selected macro,
the stop hotkey (F2) stops it. The tray menu selects macros, and when enabled
in the config the HTTP API accepts remote commands and streams progress.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.NoTray, "no-tray", false, "run without the system tray icon")

	return cmd
}

// session is the serve-mode state behind the tray menu and hotkeys.
type session struct {
	a       *app
	ctrl    *controller.Controller
	locator window.Locator

	mu       sync.Mutex
	selected string
	onStart  func()
}

func newSession(a *app, ctrl *controller.Controller, locator window.Locator) *session {
	s := &session{a: a, ctrl: ctrl, locator: locator, selected: a.cfg.Hotkeys.Selected}
	if s.selected == "" || !a.lib.Exists(s.selected) {
		s.selected = ""
		if list := a.lib.List(); len(list) > 0 {
			s.selected = list[0].Name
		}
	}
	return s
}

func (s *session) Macros() []string {
	list := s.a.lib.List()
	names := make([]string, 0, len(list))
	for _, m := range list {
		names = append(names, m.Name)
	}
	return names
}

func (s *session) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Select changes the hotkey macro and persists the choice.
func (s *session) Select(name string) {
	s.mu.Lock()
	s.selected = name
	s.mu.Unlock()

	err := s.a.cfgMgr.Update(func(c *config.Config) { c.Hotkeys.Selected = name })
	if err == nil {
		err = s.a.cfgMgr.Save()
	}
	if err != nil {
		s.a.logger.Warn("failed to save selected macro", "macro", name, "err", err)
		return
	}
	s.a.logger.Info("macro selected", "macro", name)
}

func (s *session) Start() error {
	name := s.Selected()
	if name == "" {
		return errNoSelection
	}
	m, err := s.a.lib.Get(name)
	if err != nil {
		return err
	}
	h, err := window.Resolve(s.locator, s.a.cfg.Window.Titles)
	if err != nil {
		return err
	}
	if err := s.ctrl.Start(m, h); err != nil {
		return err
	}
	s.mu.Lock()
	hook := s.onStart
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

// setStartHook installs fn to run after each successful Start.
func (s *session) setStartHook(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStart = fn
}

func (s *session) Stop() { s.ctrl.Stop() }

func (s *session) Running() (string, bool) {
	m, ok := s.ctrl.Current()
	return m.Name, ok
}

func runServe(cmd *cobra.Command, rootOpts *RootOptions, opts *ServeOptions) error {
	a, err := loadApp(rootOpts)
	if err != nil {
		return err
	}
	logger := a.logger
	cfg := a.cfg

	if runtime.GOOS == "windows" && !osutils.IsAdmin() {
		logger.Warn("not running elevated; games started as administrator will ignore injected keys")
	}

	inj, err := input.NewInjector(a.injectorOptions())
	if err != nil {
		return WrapExitError(ExitFailure, "failed to open key injector", err)
	}
	defer inj.Close()

	hist := a.openHistory()
	if hist != nil {
		defer hist.Close()
	}

	obs := &observerList{}
	obs.Add(player.ObserverFunc(func(p player.Progress) {
		logger.Debug("progress", "event", string(p.Event), "macro", p.Macro, "message", p.Message)
	}))
	ctrl := a.newController(inj, obs, hist)
	defer ctrl.Stop()

	ctx, cancel := signal.NotifyContext(contextOrBackground(cmd), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	sess := newSession(a, ctrl, window.NewSystem())

	hk := hotkey.NewManager(hotkey.WithLogger(logger))
	if err := hk.Register(cfg.Hotkeys.StartKey, func() {
		if err := sess.Start(); err != nil {
			logger.Warn("hotkey start failed", "macro", sess.Selected(), "err", err)
		}
	}); err != nil {
		return WrapExitError(ExitCommandError, "invalid start hotkey", err)
	}
	if err := hk.Register(cfg.Hotkeys.StopKey, sess.Stop); err != nil {
		return WrapExitError(ExitCommandError, "invalid stop hotkey", err)
	}

	trap := input.NewTrap(cfg.Input.Devices, logger)
	if err := trap.Start(); err != nil {
		logger.Warn("global hotkeys disabled", "err", err)
	} else {
		defer trap.Stop()
		hub := input.NewHub()
		if err := hk.Start(hub); err != nil {
			return WrapExitError(ExitFailure, "failed to start hotkeys", err)
		}
		defer hk.Stop()
		g.Go(func() error {
			hub.Run(gctx, trap.Events())
			return nil
		})
	}

	if cfg.API.Enabled {
		apiOpts := api.Options{
			Token:   cfg.API.Token,
			Titles:  cfg.Window.Titles,
			Locator: sess.locator,
			Logger:  logger,
		}
		if hist != nil {
			apiOpts.History = hist
		}
		srv := api.NewServer(ctrl, a.lib, apiOpts)
		obs.Add(srv)
		sess.setStartHook(srv.BroadcastStatus)

		if runtime.GOOS == "windows" {
			go func() {
				if err := osutils.EnsureFirewallRule(cfg.API.Port); err != nil {
					logger.Warn("firewall rule not applied", "err", err)
				}
			}()
		}
		g.Go(func() error {
			return srv.ListenAndServe(gctx, cfg.API.Port)
		})
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "keyloop serving: %s runs %q, %s stops\n",
		cfg.Hotkeys.StartKey, sess.Selected(), cfg.Hotkeys.StopKey)

	if opts.NoTray {
		<-gctx.Done()
	} else {
		tr := tray.New(sess, cancel, logger)
		if cfg.API.Enabled {
			tr.DashboardURL = ui.URL(cfg.API.Port)
		}
		obs.Add(tr)
		g.Go(func() error {
			<-gctx.Done()
			tr.Stop()
			return nil
		})
		tr.Run()
		cancel()
	}

	ctrl.Stop()
	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "serve stopped", err)
	}
	return nil
}
