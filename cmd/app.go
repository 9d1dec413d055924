package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonaddams/document-generator/config"
	"github.com/jonaddams/document-generator/internal/engine/local"
	"github.com/jonaddams/document-generator/internal/logging"
	"github.com/jonaddams/document-generator/internal/noise"
	"github.com/jonaddams/document-generator/internal/steps"
	"github.com/jonaddams/document-generator/registry"
	"github.com/jonaddams/document-generator/util"
)

// app holds what every command shares: the loaded config, the logger and
// the template registry.
type app struct {
	cfg      *config.Config
	logger   *logging.ZapLogger
	registry *registry.Registry
}

// loadApp loads the config and registry and builds a logger writing to
// logOut.
func loadApp(logOut io.Writer) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return newApp(cfg, logOut)
}

func newApp(cfg *config.Config, logOut io.Writer) (*app, error) {
	logger, err := logging.New(logOut, cfg.LogOptions(verbose))
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	reg, err := registry.New()
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}
	return &app{cfg: cfg, logger: logger, registry: reg}, nil
}

// Close flushes the logger.
func (a *app) Close() {
	a.logger.Sync() //nolint:errcheck
}

func (a *app) outputDir() string {
	return resolveOutputDir(a.cfg)
}

// resolveOutputDir returns --output-dir, falling back to the config.
func resolveOutputDir(cfg *config.Config) string {
	if outputDir != "" {
		return outputDir
	}
	if cfg.OutputDir != "" {
		return cfg.OutputDir
	}
	return "."
}

// newFlow creates a wizard flow over the local document engine.
func (a *app) newFlow() *steps.Flow {
	partLimit := a.cfg.Uploads.MaxTemplateBytes * local.PartLimitFactor
	return steps.NewFlow(&steps.Env{
		Engine:    local.New(a.logger).WithPartLimit(partLimit),
		Populator: local.NewPopulator().WithPartLimit(partLimit),
		Viewer:    local.NewViewer(),
		Registry:  a.registry,
		Validator: a.registry,
		Noise:     noise.New(a.logger, a.cfg.Noise.Patterns...),
		Logger:    a.logger,
		Policy:    a.cfg.Policy(),
	})
}

// readLimited reads path, refusing files larger than limit bytes.
func readLimited(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%s: file size must be less than %s", path, util.HumanBytes(limit))
	}
	return data, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// signalContext is the command context, cancelled on interrupt.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
}
