// Package app wires the engine together: configuration, logger, machine
// registry, store, resolver, task builder and executor. It defines the
// request/response contract entrypoints use, decoupled from any specific
// frontend like a CLI.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/datamill-io/datamill/internal/codec"
	"github.com/datamill-io/datamill/internal/config"
	"github.com/datamill-io/datamill/internal/ctxlog"
	"github.com/datamill-io/datamill/internal/executor"
	"github.com/datamill-io/datamill/internal/ident"
	"github.com/datamill-io/datamill/internal/machine"
	"github.com/datamill-io/datamill/internal/query"
	"github.com/datamill-io/datamill/internal/store"
	"github.com/datamill-io/datamill/internal/task"
)

// Config holds everything an App instance needs to start.
type Config struct {
	// ConfigPath is the optional HCL configuration file.
	ConfigPath string
	// Workdir overrides the configured store root when non-empty.
	Workdir string

	LogFormat string
	LogLevel  string
}

// App encapsulates the engine's dependencies and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	cfg      *config.Config
	registry *machine.Registry
	store    *store.Store
	builder  *task.Builder
	exec     *executor.Executor
	seps     ident.Separators
}

// New constructs a fully initialized App over fs. Modules register their
// machines, handlers and codecs first; manifest machines from the
// configuration file bind against the registered handlers afterwards.
func New(outW io.Writer, appCfg *Config, fs afero.Fs, modules ...machine.Module) (*App, error) {
	logger := ctxlog.New(outW, appCfg.LogFormat, appCfg.LogLevel)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	cfg := config.Default()
	if appCfg.ConfigPath != "" {
		loaded, err := config.Load(ctx, appCfg.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded
	}

	reg := machine.NewRegistry()
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All Go modules registered.", "count", len(modules))

	if err := cfg.BuildMachines(reg, reg.Handlers()); err != nil {
		return nil, fmt.Errorf("failed to build manifest machines: %w", err)
	}

	mode, err := cfg.VersionMode()
	if err != nil {
		return nil, err
	}
	seps := cfg.IdentSeparators()
	layout := store.Layout{Seps: seps, Versioning: mode}

	workdir := cfg.Workdir
	if appCfg.Workdir != "" {
		workdir = appCfg.Workdir
	}

	opts := []store.Option{}
	for typeName, c := range reg.Codecs() {
		opts = append(opts, store.WithCodec(typeName, c))
	}
	for _, target := range cfg.Targets {
		if target.Path != "" {
			opts = append(opts, store.WithTargetDir(target.Name, target.Path))
		}
		if target.Codec != "" {
			c, err := codecFor(target.Codec)
			if err != nil {
				return nil, fmt.Errorf("target %q: %w", target.Name, err)
			}
			opts = append(opts, store.WithCodec(target.Name, c))
		}
		if target.Locked {
			opts = append(opts, store.WithLock(target.Name))
		}
	}
	st := store.New(fs, workdir, layout, opts...)
	logger.Debug("Store configured.", "workdir", workdir, "targets", len(cfg.Targets))

	resolver := query.New(st)
	builder := task.NewBuilder(reg, resolver)
	return &App{
		outW:     outW,
		logger:   logger,
		cfg:      cfg,
		registry: reg,
		store:    st,
		builder:  builder,
		exec:     executor.New(st, builder),
		seps:     seps,
	}, nil
}

func codecFor(name string) (codec.Codec, error) {
	switch name {
	case "json":
		return codec.JSON{}, nil
	case "yaml":
		return codec.YAML{}, nil
	}
	return nil, fmt.Errorf("unknown codec %q", name)
}

// Registry returns the application's registry. This is primarily for
// testing.
func (a *App) Registry() *machine.Registry { return a.registry }

// Store returns the application's store. This is primarily for testing and
// diagnostics.
func (a *App) Store() *store.Store { return a.store }
