package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/docket/internal/anchor"
	"github.com/jackzampolin/docket/internal/api"
	"github.com/jackzampolin/docket/internal/config"
	"github.com/jackzampolin/docket/internal/content"
	"github.com/jackzampolin/docket/internal/home"
	"github.com/jackzampolin/docket/internal/metrics"
	"github.com/jackzampolin/docket/internal/providers"
	"github.com/jackzampolin/docket/internal/store"
	"github.com/jackzampolin/docket/internal/structure"
	"github.com/jackzampolin/docket/internal/types"
)

// app holds what every command builds from flags and config.
type app struct {
	ctx     context.Context
	home    *home.Dir
	config  *config.Manager
	logger  *slog.Logger
	printer *api.Printer
	store   store.Store
}

// newApp loads config and sets up logging. The store is opened on demand.
func newApp(cmd *cobra.Command) (*app, error) {
	format, err := api.ParseOutputFormat(outputFormat)
	if err != nil {
		return nil, err
	}

	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}

	mgr, err := config.NewManager(cfgFile, h.Path())
	if err != nil {
		return nil, err
	}

	level := mgr.Get().Level()
	if logLevel != "" {
		if level, err = config.ParseLevel(logLevel); err != nil {
			return nil, err
		}
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	mgr.SetLogger(logger)

	if f := mgr.ConfigFile(); f != "" {
		logger.Debug("loaded config", "file", f)
	} else if !h.Exists() {
		logger.Debug("no config file, using defaults (docket config init writes one)", "home", h.Path())
	}

	return &app{
		ctx:     cmd.Context(),
		home:    h,
		config:  mgr,
		logger:  logger,
		printer: api.NewPrinter(cmd.OutOrStdout(), format),
	}, nil
}

// openStore opens the configured shared store.
func (a *app) openStore() (store.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	cfg := a.config.Get().Store
	switch cfg.Driver {
	case config.StoreMemory:
		a.store = store.NewMemory()
	default:
		path := cfg.Path
		if path == "" {
			if err := a.home.EnsureExists(); err != nil {
				return nil, err
			}
			path = a.home.StorePath()
		}
		st, err := store.OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		if n, err := st.Purge(a.ctx); err != nil {
			a.logger.Warn("failed to purge expired store entries", "error", err)
		} else {
			a.logger.Debug("opened store", "path", path, "purged", n)
		}
		a.store = st
	}
	return a.store, nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close store", "error", err)
		}
	}
}

func (a *app) analyzer() *structure.Analyzer {
	cfg := a.config.Get()
	return structure.NewDefault(cfg.AnalysisConfig(), cfg.AnchorConfig(), cfg.DetectionConfig(), a.logger)
}

func (a *app) processor() *content.Processor {
	p := content.NewProcessor(anchor.NewGenerator(a.config.Get().AnchorConfig()))
	p.SetLogger(a.logger)
	return p
}

func (a *app) registry() *providers.Registry {
	reg := providers.NewRegistry()
	reg.SetLogger(a.logger)
	reg.Reload(a.config.Get().ToProviderRegistryConfig())
	return reg
}

func (a *app) recorder() (*metrics.Recorder, error) {
	st, err := a.openStore()
	if err != nil {
		return nil, err
	}
	rec := metrics.NewRecorder(st, a.config.Get().Metrics)
	rec.SetLogger(a.logger)
	return rec, nil
}

// readInput reads a file argument; "-" reads stdin.
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// readDocument decodes an extracted document from JSON.
func readDocument(cmd *cobra.Command, path string) (*types.ExtractedDocument, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}
	var doc types.ExtractedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", path, err)
	}
	if doc.Path == "" {
		doc.Path = path
	}
	if len(doc.Elements) == 0 {
		return nil, errors.New("document has no elements")
	}
	return &doc, nil
}
