package openrouter

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"commerce-agent/internal/application/port/output"
	"commerce-agent/internal/domain/entity"

	"github.com/sashabaranov/go-openai"
)

var _ output.LLMPort = (*OpenRouterAdapter)(nil)

const DefaultBaseURL = "https://openrouter.ai/api/v1"

type OpenRouterAdapter struct {
	client *openai.Client
	model  string
	logger output.LoggerPort
}

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	Logger  output.LoggerPort
}

func DefaultConfig(apiKey, model string) Config {
	return Config{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: DefaultBaseURL,
		Timeout: 2 * time.Minute,
	}
}

// loggingTransport logs request sizes and response status. Bodies are not
// logged since vision requests carry whole screenshots.
type loggingTransport struct {
	base   http.RoundTripper
	logger output.LoggerPort
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.logger.Warn("LLM HTTP request failed",
			"method", req.Method,
			"url", req.URL.String(),
			"error", err,
		)
		return nil, err
	}

	t.logger.Debug("LLM HTTP request",
		"method", req.Method,
		"url", req.URL.String(),
		"requestBytes", req.ContentLength,
		"status", resp.StatusCode,
		"duration", time.Since(start).String(),
	)
	return resp, nil
}

func NewOpenRouterAdapter(cfg Config) *OpenRouterAdapter {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	client := &http.Client{Timeout: cfg.Timeout}
	if cfg.Logger != nil {
		client.Transport = &loggingTransport{
			base:   http.DefaultTransport,
			logger: cfg.Logger,
		}
	}
	config.HTTPClient = client

	return &OpenRouterAdapter{
		client: openai.NewClientWithConfig(config),
		model:  cfg.Model,
		logger: cfg.Logger,
	}
}

func (a *OpenRouterAdapter) Chat(ctx context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	oaiReq := openai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    convertMessages(req.Messages),
		Temperature: req.Temperature,
	}
	if req.JSONMode {
		oaiReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := a.client.CreateChatCompletion(ctx, oaiReq)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	if a.logger != nil {
		a.logger.Debug("Chat completion",
			"model", resp.Model,
			"promptTokens", resp.Usage.PromptTokens,
			"completionTokens", resp.Usage.CompletionTokens,
			"finishReason", resp.Choices[0].FinishReason,
		)
	}

	return &output.ChatResponse{
		Message: convertResponseMessage(resp.Choices[0].Message),
	}, nil
}

// convertMessages sends messages with image blocks as multi-part content and
// everything else as plain text.
func convertMessages(messages []entity.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		oaiMsg := openai.ChatCompletionMessage{Role: string(msg.Role)}

		if !msg.HasImages() {
			oaiMsg.Content = msg.Content
			if oaiMsg.Content == "" {
				oaiMsg.Content = joinText(msg.ContentBlocks)
			}
			result = append(result, oaiMsg)
			continue
		}

		for _, block := range msg.ContentBlocks {
			switch block.Type {
			case entity.ContentTypeText:
				if block.Text == "" {
					continue
				}
				oaiMsg.MultiContent = append(oaiMsg.MultiContent, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeText,
					Text: block.Text,
				})
			case entity.ContentTypeImage:
				oaiMsg.MultiContent = append(oaiMsg.MultiContent, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    block.ImageURL,
						Detail: openai.ImageURLDetailAuto,
					},
				})
			}
		}
		result = append(result, oaiMsg)
	}
	return result
}

func joinText(blocks []entity.ContentBlock) string {
	var text string
	for _, b := range blocks {
		if b.Type == entity.ContentTypeText {
			text += b.Text
		}
	}
	return text
}

func convertResponseMessage(msg openai.ChatCompletionMessage) entity.Message {
	content := msg.Content
	if content == "" && len(msg.MultiContent) > 0 {
		for _, part := range msg.MultiContent {
			if part.Type == openai.ChatMessagePartTypeText {
				content += part.Text
			}
		}
	}

	result := entity.Message{
		Role:    entity.MessageRole(msg.Role),
		Content: content,
	}
	if content != "" {
		result.ContentBlocks = []entity.ContentBlock{{Type: entity.ContentTypeText, Text: content}}
	}
	return result
}
