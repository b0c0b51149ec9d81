package langchain

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"commerce-agent/internal/application/port/output"
	"commerce-agent/internal/domain/entity"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

var _ output.LLMPort = (*Adapter)(nil)

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	Logger  output.LoggerPort
}

// Adapter serves LLMPort through any langchaingo model.
type Adapter struct {
	model  llms.Model
	logger output.LoggerPort
}

// NewOpenAICompatible builds an adapter on langchaingo's OpenAI client, which
// also speaks to OpenRouter and other compatible gateways.
func NewOpenAICompatible(cfg Config) (*Adapter, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
		openai.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create langchain model: %w", err)
	}
	return New(llm, cfg.Logger), nil
}

func New(model llms.Model, logger output.LoggerPort) *Adapter {
	return &Adapter{model: model, logger: logger}
}

func (a *Adapter) Chat(ctx context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	opts := []llms.CallOption{llms.WithTemperature(float64(req.Temperature))}
	if req.JSONMode {
		opts = append(opts, llms.WithJSONMode())
	}

	start := time.Now()
	resp, err := a.model.GenerateContent(ctx, convertMessages(req.Messages), opts...)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := resp.Choices[0]
	if a.logger != nil {
		a.logger.Debug("Content generated",
			"stopReason", choice.StopReason,
			"duration", time.Since(start).String(),
		)
	}

	msg := entity.TextMessage(entity.RoleAssistant, choice.Content)
	return &output.ChatResponse{Message: msg}, nil
}

func convertMessages(messages []entity.Message) []llms.MessageContent {
	result := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		mc := llms.MessageContent{Role: convertRole(msg.Role)}

		if !msg.HasImages() {
			text := msg.Content
			if text == "" {
				for _, b := range msg.ContentBlocks {
					text += b.Text
				}
			}
			mc.Parts = []llms.ContentPart{llms.TextPart(text)}
			result = append(result, mc)
			continue
		}

		for _, block := range msg.ContentBlocks {
			switch block.Type {
			case entity.ContentTypeText:
				if block.Text != "" {
					mc.Parts = append(mc.Parts, llms.TextPart(block.Text))
				}
			case entity.ContentTypeImage:
				mc.Parts = append(mc.Parts, llms.ImageURLPart(block.ImageURL))
			}
		}
		result = append(result, mc)
	}
	return result
}

func convertRole(role entity.MessageRole) schema.ChatMessageType {
	switch role {
	case entity.RoleSystem:
		return schema.ChatMessageTypeSystem
	case entity.RoleAssistant:
		return schema.ChatMessageTypeAI
	default:
		return schema.ChatMessageTypeHuman
	}
}
