package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/spf13/viper"

	"github.com/randalmurphal/bugfiler/internal/bugtracker"
	"github.com/randalmurphal/bugfiler/internal/config"
	bferrors "github.com/randalmurphal/bugfiler/internal/errors"
	"github.com/randalmurphal/bugfiler/internal/history"
	"github.com/randalmurphal/bugfiler/internal/jira"
	"github.com/randalmurphal/bugfiler/internal/logging"
	"github.com/randalmurphal/bugfiler/internal/settings"
)

// App holds everything a command needs. Commands reach it through a
// closure; init runs once before any command that needs it.
type App struct {
	cfgFile string
	verbose bool
	jsonOut bool

	v        *viper.Viper
	cfg      *config.Config
	logger   *slog.Logger
	store    settings.Store
	holder   *settings.Holder
	editor   *settings.Editor
	facade   *bugtracker.Facade
	history  *history.Store
	closers  []io.Closer
	ready    bool
	stdin    io.Reader
	logDest  io.Writer
	terminal func() bool

	// connector builds the tracker connector; replaced in tests.
	connector func(cfg *config.Config) bugtracker.Connector
}

// NewApp returns an App bound to the real process streams and JIRA.
func NewApp() *App {
	return &App{
		stdin:   os.Stdin,
		logDest: os.Stderr,
		terminal: func() bool {
			return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
		},
		connector: func(cfg *config.Config) bugtracker.Connector {
			return jira.Connector(cfg.HTTP.Timeout, "bugfiler/"+Version)
		},
	}
}

func (a *App) init() error {
	if a.ready {
		return nil
	}

	a.v = viper.New()
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	if a.verbose && a.v.ConfigFileUsed() != "" {
		a.verboseLog("Using config file: %s", a.v.ConfigFileUsed())
	}

	logCfg := cfg.Log
	if a.verbose && logCfg.File == "" {
		logCfg.Level = "debug"
	}
	logger, closer, err := logging.New(logCfg, a.logDest)
	if err != nil {
		return bferrors.ErrConfigInvalid("log", err.Error()).WithCause(err)
	}
	a.logger = logger
	a.closers = append(a.closers, closer)

	fileStore, err := settings.OpenFileStore(cfg.SettingsFile)
	if err != nil {
		return bferrors.ErrConfigInvalid("settings_file", err.Error()).WithCause(err)
	}
	a.store = fileStore
	if cfg.Credentials.Backend == config.BackendKeyring {
		ring, err := settings.OpenKeyring(filepath.Dir(cfg.SettingsFile))
		if err != nil {
			return bferrors.ErrConfigInvalid("credentials.backend", err.Error()).WithCause(err)
		}
		a.store = settings.NewKeyringStore(fileStore, ring, logger)
	}

	a.holder = settings.NewHolder(a.store)
	a.facade = bugtracker.New(a.holder, a.connector(cfg), bugtracker.WithLogger(logger))
	a.editor = settings.NewEditor(a.store)
	a.editor.OnChange(a.facade.Invalidate)

	a.ready = true
	return nil
}

// History opens the history database on first use.
func (a *App) History(ctx context.Context) (*history.Store, error) {
	if a.history != nil {
		return a.history, nil
	}
	h, err := history.Open(ctx, a.cfg.History.Path)
	if err != nil {
		return nil, err
	}
	a.history = h
	a.closers = append(a.closers, h)
	return h, nil
}

// Close releases the log file and history database. Safe to call twice.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
	a.closers = nil
	a.history = nil
}

// interactive reports whether prompts may be shown.
func (a *App) interactive() bool {
	return !a.jsonOut && a.terminal != nil && a.terminal()
}
