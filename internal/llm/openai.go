package llm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/fitcoach-platform/fitcoach/internal/config"
	"github.com/fitcoach-platform/fitcoach/internal/metrics"
)

// OpenAIClient implements Provider and Embedder on top of the OpenAI API.
type OpenAIClient struct {
	client *openai.Client
	cfg    config.OpenAIConfig
}

func NewOpenAIClient(cfg config.OpenAIConfig) *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClient(cfg.APIKey),
		cfg:    cfg,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, messages []Message, tools []ToolDefinition) (*Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    toChatMessages(messages),
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	metrics.ModelCallsInFlight.Inc()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	metrics.ModelCallsInFlight.Dec()
	if err != nil {
		metrics.ModelCallsTotal.WithLabelValues("chat", "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	metrics.ModelCallsTotal.WithLabelValues("chat", "ok").Inc()

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrModelUnavailable)
	}
	choice := resp.Choices[0].Message

	completion := &Completion{
		Text: choice.Content,
		Usage: TokenUsage{
			Prompt:     resp.Usage.PromptTokens,
			Completion: resp.Usage.CompletionTokens,
			Total:      resp.Usage.TotalTokens,
		},
	}
	for _, tc := range choice.ToolCalls {
		completion.ToolCalls = append(completion.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return completion, nil
}

func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	metrics.ModelCallsInFlight.Inc()
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.cfg.EmbeddingModel),
	})
	metrics.ModelCallsInFlight.Dec()
	if err != nil {
		metrics.ModelCallsTotal.WithLabelValues("embedding", "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	metrics.ModelCallsTotal.WithLabelValues("embedding", "ok").Inc()

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: empty embedding response", ErrEmbeddingUnavailable)
	}
	return resp.Data[0].Embedding, nil
}

func toChatMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		cm := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			cm.ToolCalls = append(cm.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, cm)
	}
	return out
}
