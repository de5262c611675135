package gemini

import (
	"context"
	"errors"
	"sync"

	"github.com/akolanti/DocuSense/internal/customHttpClient"
	"github.com/akolanti/DocuSense/internal/domain/docModel"
	"github.com/akolanti/DocuSense/internal/rag/llm"
	"github.com/akolanti/DocuSense/pkg/logger_i"
	"google.golang.org/genai"
)

type llmClient struct {
	client *genai.Client
}

var logger = logger_i.NewLogger("llm_gemini")
var geminiClient *llmClient
var initErr error
var once sync.Once

func GetGeminiClient(ctx context.Context, apikey string) (llm.Provider, error) {
	once.Do(func() {
		newGeminiClient(ctx, apikey)
	})
	if geminiClient == nil {
		return nil, initErr
	}
	return geminiClient, nil
}

func newGeminiClient(ctx context.Context, apikey string) {
	if apikey == "" {
		initErr = errors.New("gemini api key is not set")
		return
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apikey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: customHttpClient.GetStreamingClient(),
	})
	if err != nil {
		logger.Error("Error creating Gemini client", "error", err)
		initErr = err
		return
	}
	geminiClient = &llmClient{client: c}
	logger.Info("Gemini client created")
}

func contentConfig(req llm.Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.Persona != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.Persona, genai.RoleUser)
	}
	return cfg
}

func (c *llmClient) Generate(ctx context.Context, req llm.Request) (string, error) {
	logger.WithTrace(ctx).Debug("generate", "model", req.Model)

	result, err := c.client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), contentConfig(req))
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", errors.New("gemini returned no response")
	}
	return result.Text(), nil
}

func (c *llmClient) Stream(ctx context.Context, req llm.Request, out chan<- docModel.StreamToken) error {
	logger.WithTrace(ctx).Debug("stream", "model", req.Model)

	for resp, err := range c.client.Models.GenerateContentStream(ctx, req.Model, genai.Text(req.Prompt), contentConfig(req)) {
		if err != nil {
			return err
		}
		if resp == nil {
			continue
		}
		text := resp.Text()
		if text == "" {
			continue
		}
		if err := llm.Send(ctx, out, docModel.StreamToken{Text: text}); err != nil {
			return err
		}
	}
	return nil
}
