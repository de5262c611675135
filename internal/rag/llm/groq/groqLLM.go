package groq

import (
	"context"
	"errors"

	"github.com/akolanti/DocuSense/internal/config"
	"github.com/akolanti/DocuSense/internal/customHttpClient"
	"github.com/akolanti/DocuSense/internal/domain/docModel"
	"github.com/akolanti/DocuSense/internal/rag/llm"
	"github.com/akolanti/DocuSense/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Groq serves the domain models through its OpenAI compatible API.
type Groq struct {
	client openai.Client
	logger *logger_i.Logger
}

func New(apikey string, opts ...option.RequestOption) (*Groq, error) {
	if apikey == "" {
		return nil, errors.New("groq api key is not set")
	}
	base := []option.RequestOption{
		option.WithAPIKey(apikey),
		option.WithBaseURL(config.GetString("GROQ_BASE_URL", config.GroqBaseURL)),
		option.WithHTTPClient(customHttpClient.GetStreamingClient()),
		option.WithMaxRetries(1),
	}
	return &Groq{
		client: openai.NewClient(append(base, opts...)...),
		logger: logger_i.NewLogger("llm_groq"),
	}, nil
}

func params(req llm.Request) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.Persona != "" {
		messages = append(messages, openai.SystemMessage(req.Persona))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))
	return openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    messages,
		Temperature: openai.Float(float64(req.Temperature)),
	}
}

func (g *Groq) Generate(ctx context.Context, req llm.Request) (string, error) {
	g.logger.WithTrace(ctx).Debug("generate", "model", req.Model)

	resp, err := g.client.Chat.Completions.New(ctx, params(req))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("groq returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (g *Groq) Stream(ctx context.Context, req llm.Request, out chan<- docModel.StreamToken) error {
	g.logger.WithTrace(ctx).Debug("stream", "model", req.Model)

	stream := g.client.Chat.Completions.NewStreaming(ctx, params(req))
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		if err := llm.Send(ctx, out, docModel.StreamToken{Text: chunk.Choices[0].Delta.Content}); err != nil {
			return err
		}
	}
	return stream.Err()
}
