package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/docket/internal/config"
	"github.com/jackzampolin/docket/internal/prompts"
	"github.com/jackzampolin/docket/internal/prompts/translation"
	"github.com/jackzampolin/docket/internal/providers"
	"github.com/jackzampolin/docket/internal/retry"
	"github.com/jackzampolin/docket/internal/translate"
)

var (
	translateProvider    string
	translateModel       string
	translateSource      string
	translateTarget      string
	translateDocType     string
	translateOut         string
	translateKeepAnchors bool
	translateMock        bool
)

// translateSummary is printed when a job finishes.
type translateSummary struct {
	JobID        string        `json:"job_id" yaml:"job_id"`
	Provider     string        `json:"provider" yaml:"provider"`
	Sections     int           `json:"sections" yaml:"sections"`
	Chunks       int           `json:"chunks" yaml:"chunks"`
	Risks        int           `json:"risks" yaml:"risks"`
	InputTokens  int           `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int           `json:"output_tokens" yaml:"output_tokens"`
	CostUSD      float64       `json:"cost_usd" yaml:"cost_usd"`
	Duration     time.Duration `json:"duration" yaml:"duration"`
	Output       string        `json:"output,omitempty" yaml:"output,omitempty"`
	Error        string        `json:"error,omitempty" yaml:"error,omitempty"`
}

var translateCmd = &cobra.Command{
	Use:   "translate <document.json>",
	Short: "Translate an extracted document section by section",
	Long: `Translate analyzes the document, sends its anchored sections to the
configured provider in token-bounded chunks and writes the translation.

Rate limits, retries and usage metrics are shared with every docket process
using the same store. Edits to the config file (providers, prompts) are
picked up while a job runs. Ctrl+C stops after the chunk in flight.

Examples:
  docket translate lease.json
  docket translate lease.json --provider openai --model gpt-4o-mini
  docket translate lease.json --mock --out lease.en.md`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		doc, err := readDocument(cmd, args[0])
		if err != nil {
			return err
		}

		cfg := a.config.Get()
		st, err := a.openStore()
		if err != nil {
			return err
		}
		rec, err := a.recorder()
		if err != nil {
			return err
		}

		reg := a.registry()
		if translateMock {
			reg.Register(providers.MockName, providers.NewMockAdapter())
			translateProvider = providers.MockName
		}

		resolver := prompts.NewResolver(cfg.PromptOverrides(), a.logger)
		translation.RegisterPrompts(resolver)

		retryHandler := retry.New(cfg.Retry)
		retryHandler.SetLogger(a.logger)

		// Providers and prompt overrides follow config edits mid-job.
		a.config.OnChange(func(next *config.Config) {
			reg.Reload(next.ToProviderRegistryConfig())
			resolver.SetOverrides(next.PromptOverrides())
		})
		a.config.WatchConfig()

		tcfg := cfg.Translation
		if translateProvider != "" {
			tcfg.Provider = translateProvider
		}
		if translateModel != "" {
			tcfg.Model = translateModel
		}
		if translateSource != "" {
			tcfg.SourceLanguage = translateSource
		}
		if translateTarget != "" {
			tcfg.TargetLanguage = translateTarget
		}
		if translateDocType != "" {
			tcfg.DocumentType = translateDocType
		}

		svc, err := translate.NewService(tcfg, translate.Deps{
			Analyzer:   a.analyzer(),
			Registry:   reg,
			Store:      st,
			RateLimits: cfg.RateLimits,
			Retry:      retryHandler,
			Metrics:    rec,
			Prompts:    resolver,
			Anchors:    cfg.AnchorConfig(),
		})
		if err != nil {
			return err
		}
		svc.SetLogger(a.logger)

		// The first interrupt stops between chunks; the call in flight gets
		// a grace period before its context is cancelled.
		var stop atomic.Bool
		jobCtx, cancelJob := context.WithCancel(context.WithoutCancel(cmd.Context()))
		defer cancelJob()
		go func() {
			select {
			case <-cmd.Context().Done():
				stop.Store(true)
				a.logger.Info("interrupt received, finishing current chunk", "grace", config.DefaultShutdownTimeout)
				select {
				case <-time.After(config.DefaultShutdownTimeout):
					cancelJob()
				case <-jobCtx.Done():
				}
			case <-jobCtx.Done():
			}
		}()

		result, runErr := svc.Translate(jobCtx, translate.Job{Document: doc, Cancelled: stop.Load})
		summary := translateSummary{
			JobID:        result.JobID,
			Provider:     result.Provider,
			Sections:     len(result.Analysis.Sections),
			Chunks:       len(result.Chunks),
			Risks:        len(result.Content.Risks),
			InputTokens:  result.InputTokens,
			OutputTokens: result.OutputTokens,
			CostUSD:      result.CostUSD,
			Duration:     result.Duration,
		}
		if runErr != nil {
			summary.Error = runErr.Error()
		}

		if result.Output != "" {
			path, err := writeTranslation(a, args[0], result.Output)
			if err != nil {
				return err
			}
			summary.Output = path
		}

		if err := a.printer.Print(summary); err != nil {
			return err
		}
		return runErr
	},
}

// writeTranslation writes text next to the input unless --out is given.
func writeTranslation(a *app, input, text string) (string, error) {
	if !translateKeepAnchors {
		stripped, err := a.processor().RemoveAnchors(text)
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(stripped) + "\n"
	}

	path := translateOut
	if path == "" {
		if input == "-" {
			input = "stdin.json"
		}
		path = strings.TrimSuffix(input, filepath.Ext(input)) + ".translated.md"
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("failed to write translation: %w", err)
	}
	return path, nil
}

func init() {
	translateCmd.Flags().StringVar(&translateProvider, "provider", "", "provider name (default: translation.provider from config)")
	translateCmd.Flags().StringVar(&translateModel, "model", "", "model override")
	translateCmd.Flags().StringVar(&translateSource, "source", "", "source language")
	translateCmd.Flags().StringVar(&translateTarget, "target", "", "target language")
	translateCmd.Flags().StringVar(&translateDocType, "doc-type", "", "document type used in prompts and metrics")
	translateCmd.Flags().StringVar(&translateOut, "out", "", "output file (default: <input>.translated.md)")
	translateCmd.Flags().BoolVar(&translateKeepAnchors, "keep-anchors", false, "keep section anchors in the output")
	translateCmd.Flags().BoolVar(&translateMock, "mock", false, "use the offline mock provider")
}
