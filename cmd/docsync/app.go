package main

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/dshills/docsync/internal/config"
	"github.com/dshills/docsync/internal/document"
	"github.com/dshills/docsync/internal/filemanager"
	"github.com/dshills/docsync/internal/logging"
	"github.com/dshills/docsync/internal/prompt"
)

// app holds what every command shares: settings, the logger and the
// file manager over an in-memory document store.
type app struct {
	in     *os.File
	out    io.Writer
	errOut io.Writer

	// Flags.
	configPath string
	logLevel   string
	assumeYes  bool

	cfg    *config.Config
	logger *logging.Logger
	diag   *logging.Diagnostics
	store  *document.MemStore
	fm     *filemanager.FileManager

	// prompter overrides the console, for tests.
	prompter prompt.Prompter

	closing atomic.Bool
}

func newApp(in *os.File, out, errOut io.Writer) *app {
	return &app{in: in, out: out, errOut: errOut}
}

// setup loads the configuration and builds the file manager.
func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = cfg

	level := cfg.Logging.Level
	if a.logLevel != "" {
		level = a.logLevel
	}
	lc := logging.DefaultConfig()
	lc.Level = logging.ParseLevel(level)
	lc.Output = a.errOut
	a.logger = logging.New(lc)

	if cfg.Diagnostics.Enabled {
		d, err := logging.OpenDiagnostics(cfg.DiagnosticsPath())
		if err != nil {
			a.logger.Warn("diagnostic log unavailable: %v", err)
		} else {
			a.diag = d
		}
	}

	p := a.prompter
	if p == nil {
		c := prompt.NewConsole(a.in, a.errOut)
		c.Default = a.assumeYes
		p = c
	}

	a.store = document.NewMemStore()
	a.fm, err = filemanager.New(a.store,
		filemanager.WithConfig(cfg),
		filemanager.WithLogger(a.logger),
		filemanager.WithDiagnostics(a.diag),
		filemanager.WithPrompter(p),
		filemanager.WithShuttingDown(a.closing.Load),
	)
	return err
}

func (a *app) shutdown() {
	a.closing.Store(true)
	if err := a.diag.Close(); err != nil && a.logger != nil {
		a.logger.Warn("closing diagnostic log: %v", err)
	}
}
