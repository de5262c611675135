package llm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/akolanti/DocuSense/internal/config"
	"github.com/akolanti/DocuSense/internal/domain/docModel"
	"github.com/akolanti/DocuSense/internal/domain/ragErrors"
	"github.com/akolanti/DocuSense/internal/metrics"
	"github.com/akolanti/DocuSense/pkg/logger_i"
)

type Request struct {
	Model       string
	Persona     string
	Prompt      string
	Temperature float32
}

// Provider talks to one model vendor. Stream pushes text tokens into out and
// returns when generation ends; it never closes out and never sends EOS.
type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
	Stream(ctx context.Context, req Request, out chan<- docModel.StreamToken) error
}

// Send delivers a token unless ctx ends first.
func Send(ctx context.Context, out chan<- docModel.StreamToken, tok docModel.StreamToken) error {
	select {
	case out <- tok:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Registry resolves a ModelConfig to its provider and bounds every call with
// the model timeout.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	timeout   time.Duration
	logger    *logger_i.Logger
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		timeout:   config.GetDuration("MODEL_CALL_TIMEOUT", config.ModelCallTimeout),
		logger:    logger_i.NewLogger("llm registry"),
	}
}

func (r *Registry) Register(name string, p Provider) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

func (r *Registry) provider(cfg docModel.ModelConfig) (Provider, error) {
	r.mu.RLock()
	p, ok := r.providers[cfg.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, ragErrors.New(ragErrors.ModelUnavailable, "no provider "+cfg.Provider+" for model "+cfg.ModelId, nil)
	}
	return p, nil
}

func toRequest(cfg docModel.ModelConfig, prompt string) Request {
	return Request{Model: cfg.ModelId, Persona: cfg.Persona, Prompt: prompt, Temperature: cfg.Temperature}
}

func (r *Registry) Generate(ctx context.Context, cfg docModel.ModelConfig, prompt string) (string, error) {
	p, err := r.provider(cfg)
	if err != nil {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	text, err := p.Generate(callCtx, toRequest(cfg, prompt))
	metrics.CaptureExecutionMetrics("llm_"+cfg.Provider, time.Since(start))
	if err != nil {
		return "", r.classify(ctx, cfg, err)
	}
	return text, nil
}

// Stream runs the model and forwards tokens. Configs without streaming
// support are answered with a single token holding the full text.
func (r *Registry) Stream(ctx context.Context, cfg docModel.ModelConfig, prompt string, out chan<- docModel.StreamToken) error {
	if !cfg.SupportsStreaming {
		text, err := r.Generate(ctx, cfg, prompt)
		if err != nil {
			return err
		}
		return Send(ctx, out, docModel.StreamToken{Text: text})
	}

	p, err := r.provider(cfg)
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	err = p.Stream(callCtx, toRequest(cfg, prompt), out)
	metrics.CaptureExecutionMetrics("llm_stream_"+cfg.Provider, time.Since(start))
	if err != nil {
		return r.classify(ctx, cfg, err)
	}
	return nil
}

// classify keeps caller cancellation visible as is and turns everything else
// into an inference failure.
func (r *Registry) classify(ctx context.Context, cfg docModel.ModelConfig, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var rerr *ragErrors.Error
	if errors.As(err, &rerr) {
		return err
	}
	r.logger.WithTrace(ctx).Error("model call failed", "provider", cfg.Provider, "model", cfg.ModelId, "error", err)
	return ragErrors.New(ragErrors.ModelInferenceFailed, cfg.Provider+"/"+cfg.ModelId, err)
}
