package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/entrhq/pbs/pkg/config"
	"github.com/entrhq/pbs/pkg/dispatch"
	"github.com/entrhq/pbs/pkg/engine"
	"github.com/entrhq/pbs/pkg/logging"
	"github.com/entrhq/pbs/pkg/resolver"
	"github.com/entrhq/pbs/pkg/security/navigation"
	"github.com/entrhq/pbs/pkg/session"
)

// app is the wired command stack of one pbs process.
type app struct {
	cfg        *config.Config
	logger     *logging.Logger
	dispatcher *dispatch.Dispatcher

	// stop shuts the engine driver down
	stop func() error
}

// loadConfig loads the configuration and applies global flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Logging.Verbosity = "debug"
	}
	return cfg, nil
}

// newLogger creates the process logger. A log file that cannot be opened
// is reported on stderr and otherwise ignored.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	level, err := logging.ParseVerbosity(cfg.Logging.Verbosity)
	if err != nil {
		return nil, err
	}
	logger, _ := logging.NewLogger(appName, logging.WithLevel(level), logging.WithFile(cfg.Logging.File))
	return logger, nil
}

// bootstrap builds the full stack over a Playwright driver.
func bootstrap() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	connector := engine.NewPlaywright(cfg.Endpoint.LaunchFallback)
	a, err := newApp(cfg, logger, connector)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}
	a.stop = connector.Stop
	return a, nil
}

// newApp wires the resolver, session manager and dispatcher for cfg.
func newApp(cfg *config.Config, logger *logging.Logger, connector engine.Connector) (*app, error) {
	guard, err := navigation.NewGuard(cfg.Navigation.Allowed, cfg.Navigation.Denied)
	if err != nil {
		return nil, fmt.Errorf("invalid navigation rules: %w", err)
	}
	if guard.Enabled() {
		logger.Debugf("Navigation rules: allowed=%v denied=%v", cfg.Navigation.Allowed, cfg.Navigation.Denied)
	}

	res := resolver.FromConfig(cfg.Endpoint, connector, logger.Named("resolver"))
	sessions := session.NewManager(res, session.Options{
		Viewport: engine.Viewport{
			Width:  cfg.Session.ViewportWidth,
			Height: cfg.Session.ViewportHeight,
		},
		DefaultTimeout: cfg.Session.DefaultTimeout,
	}, logger.Named("session"))

	d := dispatch.New(sessions,
		dispatch.WithLogger(logger.Named("dispatch")),
		dispatch.WithGuard(guard),
		dispatch.WithSessionConfig(cfg.Session),
	)

	return &app{
		cfg:        cfg,
		logger:     logger,
		dispatcher: d,
		stop:       func() error { return nil },
	}, nil
}

// shutdown releases the engine driver. With terminate set the browser
// session is closed first; otherwise an attached browser is left running.
func (a *app) shutdown(terminate bool) {
	if terminate {
		if err := a.dispatcher.Close(); err != nil {
			a.logger.Warnf("Failed to close browser session: %v", err)
		}
	}
	if err := a.stop(); err != nil {
		a.logger.Warnf("%v", err)
	}
	_ = a.logger.Close()
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext(logger *logging.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Infof("Received %s, shutting down gracefully...", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// commandList renders one usage line per command for help output.
func commandList() string {
	d := dispatch.New(nil)

	var b strings.Builder
	for _, name := range d.Commands() {
		usage, _ := d.Usage(name)
		b.WriteString("\n  " + usage)
	}
	return b.String()
}
