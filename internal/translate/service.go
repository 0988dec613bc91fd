// Package translate runs a document through the whole pipeline: structure
// analysis, anchored prompt rendering, rate limiting, retries, the provider
// call, usage accounting and parsing of the translated output.
package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jackzampolin/docket/internal/anchor"
	"github.com/jackzampolin/docket/internal/content"
	"github.com/jackzampolin/docket/internal/metrics"
	"github.com/jackzampolin/docket/internal/prompts"
	"github.com/jackzampolin/docket/internal/prompts/translation"
	"github.com/jackzampolin/docket/internal/providers"
	"github.com/jackzampolin/docket/internal/ratelimit"
	"github.com/jackzampolin/docket/internal/retry"
	"github.com/jackzampolin/docket/internal/store"
	"github.com/jackzampolin/docket/internal/structure"
	"github.com/jackzampolin/docket/internal/types"
)

// OperationTranslation is the metrics operation type for translation calls.
const OperationTranslation = "translation"

var (
	// ErrCancelled is returned when a job is cancelled between chunks.
	ErrCancelled = errors.New("translation cancelled")
	// ErrNoSections is returned when analysis finds nothing to translate.
	ErrNoSections = errors.New("no sections detected")
)

// Config selects the provider and shapes the prompts.
type Config struct {
	Provider       string   `mapstructure:"provider" yaml:"provider" json:"provider"`
	Model          string   `mapstructure:"model" yaml:"model" json:"model,omitempty"`
	SourceLanguage string   `mapstructure:"source_language" yaml:"source_language" json:"source_language"`
	TargetLanguage string   `mapstructure:"target_language" yaml:"target_language" json:"target_language"`
	DocumentType   string   `mapstructure:"document_type" yaml:"document_type" json:"document_type"`
	ChunkTokens    int      `mapstructure:"chunk_tokens" yaml:"chunk_tokens" json:"chunk_tokens"`
	MaxTokens      int      `mapstructure:"max_tokens" yaml:"max_tokens" json:"max_tokens,omitempty"`
	Temperature    *float64 `mapstructure:"temperature" yaml:"temperature,omitempty" json:"temperature,omitempty"`
}

// DefaultConfig returns Russian to English legal translation on Anthropic.
func DefaultConfig() Config {
	return Config{
		Provider:       providers.AnthropicName,
		SourceLanguage: "Russian",
		TargetLanguage: "English",
		DocumentType:   "legal document",
		ChunkTokens:    DefaultChunkTokens,
	}
}

// Deps are the shared components a Service orchestrates.
// Analyzer, Registry and Store are required.
type Deps struct {
	Analyzer   *structure.Analyzer
	Registry   *providers.Registry
	Store      store.Store
	RateLimits ratelimit.Config
	Retry      *retry.Handler
	Metrics    *metrics.Recorder // optional
	Prompts    *prompts.Resolver
	Anchors    anchor.Config
}

// Service translates documents. It is safe for concurrent use.
type Service struct {
	cfg       Config
	analyzer  *structure.Analyzer
	registry  *providers.Registry
	store     store.Store
	rateCfg   ratelimit.Config
	retry     *retry.Handler
	metrics   *metrics.Recorder
	prompts   *prompts.Resolver
	anchors   *anchor.Generator
	processor *content.Processor

	mu       sync.Mutex
	limiters map[string]*ratelimit.Limiter

	logger *slog.Logger
}

// NewService wires a Service from deps.
func NewService(cfg Config, deps Deps) (*Service, error) {
	if deps.Analyzer == nil || deps.Registry == nil || deps.Store == nil {
		return nil, fmt.Errorf("translate: analyzer, registry and store are required")
	}
	def := DefaultConfig()
	if cfg.Provider == "" {
		cfg.Provider = def.Provider
	}
	if cfg.SourceLanguage == "" {
		cfg.SourceLanguage = def.SourceLanguage
	}
	if cfg.TargetLanguage == "" {
		cfg.TargetLanguage = def.TargetLanguage
	}
	if cfg.DocumentType == "" {
		cfg.DocumentType = def.DocumentType
	}
	if cfg.ChunkTokens <= 0 {
		cfg.ChunkTokens = def.ChunkTokens
	}

	if deps.Retry == nil {
		deps.Retry = retry.New(retry.DefaultConfig())
	}
	if deps.Prompts == nil {
		deps.Prompts = prompts.NewResolver(nil, nil)
	}
	if _, ok := deps.Prompts.GetEmbedded(translation.SystemPromptKey); !ok {
		translation.RegisterPrompts(deps.Prompts)
	}

	gen := anchor.NewGenerator(deps.Anchors)
	return &Service{
		cfg:       cfg,
		analyzer:  deps.Analyzer,
		registry:  deps.Registry,
		store:     deps.Store,
		rateCfg:   deps.RateLimits,
		retry:     deps.Retry,
		metrics:   deps.Metrics,
		prompts:   deps.Prompts,
		anchors:   gen,
		processor: content.NewProcessor(gen),
		limiters:  make(map[string]*ratelimit.Limiter),
		logger:    slog.Default(),
	}, nil
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
		s.processor.SetLogger(logger)
	}
}

// Config returns the effective configuration.
func (s *Service) Config() Config { return s.cfg }

// Limiter returns the shared limiter for provider, creating it on first use.
func (s *Service) Limiter(provider string) *ratelimit.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[provider]
	if !ok {
		l = ratelimit.ForProvider(provider, s.rateCfg, s.store)
		l.SetLogger(s.logger)
		s.limiters[provider] = l
	}
	return l
}

// Job is one document to translate.
type Job struct {
	ID       string
	Document *types.ExtractedDocument

	// Cancelled is polled before each chunk is dispatched.
	Cancelled func() bool
}

// ChunkResult describes one provider call.
type ChunkResult struct {
	Index      int           `json:"index" yaml:"index"`
	SectionIDs []string      `json:"section_ids" yaml:"section_ids"`
	RequestID  string        `json:"request_id,omitempty" yaml:"request_id,omitempty"`
	Model      string        `json:"model" yaml:"model"`
	Input      int           `json:"input_tokens" yaml:"input_tokens"`
	Output     int           `json:"output_tokens" yaml:"output_tokens"`
	CostUSD    float64       `json:"cost_usd" yaml:"cost_usd"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
}

// Result is the outcome of a job. On error it holds everything completed
// before the failing chunk.
type Result struct {
	JobID        string                        `json:"job_id" yaml:"job_id"`
	Provider     string                        `json:"provider" yaml:"provider"`
	Analysis     types.StructureAnalysisResult `json:"analysis" yaml:"analysis"`
	Chunks       []ChunkResult                 `json:"chunks" yaml:"chunks"`
	Content      content.ParsedContent         `json:"content" yaml:"content"`
	Output       string                        `json:"-" yaml:"-"`
	InputTokens  int                           `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int                           `json:"output_tokens" yaml:"output_tokens"`
	CostUSD      float64                       `json:"cost_usd" yaml:"cost_usd"`
	Duration     time.Duration                 `json:"duration" yaml:"duration"`
}

// Translate analyzes job.Document and translates its sections chunk by chunk.
func (s *Service) Translate(ctx context.Context, job Job) (*Result, error) {
	start := time.Now()
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	result := &Result{JobID: job.ID, Provider: s.cfg.Provider}
	defer func() { result.Duration = time.Since(start) }()

	adapter, err := s.registry.Get(s.cfg.Provider)
	if err != nil {
		return result, err
	}

	result.Analysis = s.analyzer.Analyze(ctx, job.Document)
	if result.Analysis.Failed() {
		return result, fmt.Errorf("structure analysis: %s", result.Analysis.Metadata.Error)
	}
	if !result.Analysis.IsSuccessful() {
		return result, ErrNoSections
	}

	chunks := Chunk(result.Analysis.Sections, s.cfg.ChunkTokens, s.cfg.Model)
	s.logger.Info("translation started",
		"job_id", job.ID,
		"provider", s.cfg.Provider,
		"sections", len(result.Analysis.Sections),
		"chunks", len(chunks))

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if job.Cancelled != nil && job.Cancelled() {
			s.logger.Info("translation cancelled", "job_id", job.ID, "completed_chunks", i)
			return result, ErrCancelled
		}

		// Pick up adapters rebuilt by a config reload.
		if current, err := s.registry.Get(s.cfg.Provider); err == nil {
			adapter = current
		}
		cr, parsed, err := s.translateChunk(ctx, adapter, job.ID, i, chunk)
		if err != nil {
			return result, fmt.Errorf("chunk %d of %d: %w", i+1, len(chunks), err)
		}

		result.Chunks = append(result.Chunks, cr)
		result.InputTokens += cr.Input
		result.OutputTokens += cr.Output
		result.CostUSD += cr.CostUSD
		result.Content.Merge(parsed)
		result.Output = result.Content.OriginalContent
	}

	s.logger.Info("translation completed",
		"job_id", job.ID,
		"chunks", len(result.Chunks),
		"risks", len(result.Content.Risks),
		"input_tokens", result.InputTokens,
		"output_tokens", result.OutputTokens,
		"cost_usd", result.CostUSD)
	return result, nil
}

func (s *Service) translateChunk(ctx context.Context, adapter providers.Adapter, jobID string, index int, chunk []types.DocumentSection) (ChunkResult, content.ParsedContent, error) {
	cr := ChunkResult{Index: index}
	data := translation.Data{
		SourceLanguage: s.cfg.SourceLanguage,
		TargetLanguage: s.cfg.TargetLanguage,
		DocumentType:   s.cfg.DocumentType,
		AnchorPrefix:   s.anchors.Config().Prefix,
		AnchorSuffix:   s.anchors.Config().Suffix,
		RiskLabels:     riskLabels(s.cfg.TargetLanguage),
	}
	for _, sec := range chunk {
		id, ok := s.anchors.ExtractAnchorID(sec.Anchor)
		if !ok {
			return cr, content.ParsedContent{}, fmt.Errorf("section %s has no valid anchor", sec.ID)
		}
		cr.SectionIDs = append(cr.SectionIDs, id)
		data.Sections = append(data.Sections, translation.Section{
			Anchor:  sec.Anchor,
			Title:   sec.Title,
			Content: sec.Content,
		})
	}

	system, user, err := translation.Build(s.prompts, data)
	if err != nil {
		return cr, content.ParsedContent{}, err
	}
	req := &providers.Request{
		Content:      user,
		SystemPrompt: system,
		Model:        s.cfg.Model,
		MaxTokens:    s.cfg.MaxTokens,
		Temperature:  s.cfg.Temperature,
		Metadata: map[string]string{
			"job_id": jobID,
			"chunk":  strconv.Itoa(index),
		},
	}

	// Translation output is roughly the size of its input.
	estimate := 2 * providers.CountTokens(system+user, s.cfg.Model)
	limiter := s.Limiter(s.cfg.Provider)

	resp, err := retry.DoValue(ctx, s.retry, func(ctx context.Context) (*providers.Response, error) {
		res, err := limiter.CheckAndReserve(ctx, estimate)
		if err != nil {
			return nil, err
		}
		resp, err := adapter.Execute(ctx, req)
		if err != nil {
			limiter.Release(ctx, res)
			return nil, err
		}
		limiter.RecordUsage(ctx, res, resp.TotalTokens())
		return resp, nil
	})
	if err != nil {
		s.recordFailure(ctx, err)
		return cr, content.ParsedContent{}, err
	}
	// Billed either way; an unusable response is recorded as a failure.
	s.recordResponse(ctx, resp)
	if err := resp.Err(); err != nil {
		return cr, content.ParsedContent{}, err
	}

	cr.RequestID = resp.RequestID
	cr.Model = resp.Model
	cr.Input = resp.InputTokens
	cr.Output = resp.OutputTokens
	cr.CostUSD = resp.CostUSD
	cr.Duration = resp.ExecutionTime

	if err := s.processor.Validate(resp.Content, cr.SectionIDs); err != nil {
		return cr, content.ParsedContent{}, err
	}
	parsed, err := s.processor.Parse(resp.Content)
	if err != nil {
		return cr, content.ParsedContent{}, err
	}

	s.logger.Debug("chunk translated",
		"job_id", jobID,
		"chunk", index,
		"sections", parsed.SectionIDs(),
		"tokens", cr.Input+cr.Output,
		"latency", cr.Duration)
	return cr, parsed, nil
}

func (s *Service) recordResponse(ctx context.Context, resp *providers.Response) {
	if s.metrics == nil {
		return
	}
	if err := s.metrics.RecordTranslation(ctx, resp, s.cfg.DocumentType, OperationTranslation); err != nil {
		s.logger.Warn("failed to record usage metrics", "error", err)
	}
}

func (s *Service) recordFailure(ctx context.Context, callErr error) {
	if s.metrics == nil {
		return
	}
	if err := s.metrics.RecordFailure(ctx, callErr, s.cfg.DocumentType, OperationTranslation); err != nil {
		s.logger.Warn("failed to record failure metrics", "error", err)
	}
}

// riskLabels returns the bracketed labels written in the target language's script.
func riskLabels(targetLanguage string) []string {
	cyrillic := isCyrillicLanguage(targetLanguage)
	var labels []string
	for _, l := range content.RiskLabels {
		r, _ := utf8.DecodeRuneInString(l.Label)
		if unicode.Is(unicode.Cyrillic, r) == cyrillic {
			labels = append(labels, "["+l.Label+"]")
		}
	}
	return labels
}

func isCyrillicLanguage(lang string) bool {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "ru", "russian", "русский", "uk", "ukrainian", "be", "belarusian", "bg", "bulgarian", "sr", "serbian", "kk", "kazakh":
		return true
	}
	return false
}
