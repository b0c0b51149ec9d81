package interpreter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"commerce-agent/internal/application/port/output"
	"commerce-agent/internal/domain/entity"
	"commerce-agent/internal/infrastructure/prompts"
)

var _ output.PageInterpreterPort = (*Interpreter)(nil)

const systemPrompt = "You are the page interpreter of a shopping assistant that controls a store website. " +
	"You only ever answer with one JSON object."

const defaultTokenBudget = 48000

type Config struct {
	Temperature float32
	TokenBudget int
}

func DefaultConfig() Config {
	return Config{
		Temperature: 0,
		TokenBudget: defaultTokenBudget,
	}
}

// Interpreter answers page questions by rendering a prompt and asking the LLM
// for a {"success", "data", "message"} reply.
type Interpreter struct {
	llm     output.LLMPort
	prompts *prompts.Generator
	budget  *TokenBudget
	logger  output.LoggerPort
	cfg     Config
}

func New(llm output.LLMPort, gen *prompts.Generator, logger output.LoggerPort, cfg Config) *Interpreter {
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = defaultTokenBudget
	}
	return NewWithBudget(llm, gen, NewTokenBudget(cfg.TokenBudget), logger, cfg)
}

func NewWithBudget(llm output.LLMPort, gen *prompts.Generator, budget *TokenBudget, logger output.LoggerPort, cfg Config) *Interpreter {
	return &Interpreter{
		llm:     llm,
		prompts: gen,
		budget:  budget,
		logger:  logger.WithField("component", "interpreter"),
		cfg:     cfg,
	}
}

type reply struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func (i *Interpreter) GetPageState(ctx context.Context, goal string, fragments []entity.HTMLFragment) (*entity.PageState, error) {
	prompt, err := i.prompts.PageState(prompts.PageStateData{
		Goal:      goal,
		Fragments: i.fit("page_state", fragments),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInterpreter, err)
	}

	var state entity.PageState
	if err := i.ask(ctx, "page_state", entity.TextMessage(entity.RoleUser, prompt), &state); err != nil {
		return nil, err
	}
	if state.PageType == "" {
		state.PageType = entity.PageTypeUnknown
	}
	return &state, nil
}

func (i *Interpreter) GetNextPageAction(ctx context.Context, req output.NextActionRequest) (entity.PlanAction, error) {
	history := req.HistoryText
	if history == "" {
		history = "(none)\n"
	}
	prompt, err := i.prompts.NextAction(prompts.NextActionData{
		Goal:          req.Goal,
		History:       history,
		LastAction:    entity.DescribeAction(req.LastAction),
		Fragments:     i.fit("next_action", req.Fragments),
		HasScreenshot: req.Screenshot.DataURL() != "",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInterpreter, err)
	}

	var raw json.RawMessage
	if err := i.ask(ctx, "next_action", entity.VisionMessage(prompt, req.Screenshot), &raw); err != nil {
		return nil, err
	}
	action, err := entity.DecodePlanAction(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrInterpreter, err)
	}
	return action, nil
}

func (i *Interpreter) PredictEndState(ctx context.Context, goal string) (string, error) {
	prompt, err := i.prompts.EndState(prompts.EndStateData{Goal: goal})
	if err != nil {
		return "", fmt.Errorf("%w: %v", entity.ErrInterpreter, err)
	}

	var data struct {
		EndState string `json:"endState"`
	}
	if err := i.ask(ctx, "end_state", entity.TextMessage(entity.RoleUser, prompt), &data); err != nil {
		return "", err
	}
	return strings.TrimSpace(data.EndState), nil
}

func (i *Interpreter) GetPageComponent(ctx context.Context, req output.ComponentRequest, out any) error {
	prompt, err := i.prompts.Component(req.Component, req.Hint, i.fit(string(req.Component), req.Fragments))
	if err != nil {
		return fmt.Errorf("%w: %w", entity.ErrInterpreter, err)
	}
	return i.ask(ctx, string(req.Component), entity.VisionMessage(prompt, req.Screenshot), out)
}

func (i *Interpreter) fit(op string, fragments []entity.HTMLFragment) string {
	text, used := i.budget.Fit(fragments)
	if used < len(fragments) {
		i.logger.Debug("Fragments trimmed to token budget",
			"operation", op,
			"used", used,
			"total", len(fragments),
			"budget", i.budget.Limit,
		)
	}
	return text
}

// ask sends one prompt and decodes the data member of the reply into out.
func (i *Interpreter) ask(ctx context.Context, op string, msg entity.Message, out any) error {
	resp, err := i.llm.Chat(ctx, output.ChatRequest{
		Messages: []entity.Message{
			entity.TextMessage(entity.RoleSystem, systemPrompt),
			msg,
		},
		Temperature: i.cfg.Temperature,
		JSONMode:    true,
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", entity.ErrInterpreter, op, err)
	}

	r, err := parseReply(resp.Message.Content)
	if err != nil {
		i.logger.Warn("Unparsable interpreter reply", "operation", op, "error", err)
		return fmt.Errorf("%w: %s: %v", entity.ErrInterpreter, op, err)
	}
	if !r.Success {
		msg := r.Message
		if msg == "" {
			msg = "no reason given"
		}
		return fmt.Errorf("%w: %s: %s", entity.ErrInterpreter, op, msg)
	}
	if len(r.Data) == 0 || string(r.Data) == "null" {
		return fmt.Errorf("%w: %s: reply has no data", entity.ErrInterpreter, op)
	}
	if err := json.Unmarshal(r.Data, out); err != nil {
		return fmt.Errorf("%w: %s: decode data: %v", entity.ErrInterpreter, op, err)
	}
	return nil
}

// parseReply takes the outermost JSON object from the model output, which
// tolerates code fences and surrounding prose.
func parseReply(content string) (*reply, error) {
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON found in response")
	}

	var r reply
	if err := json.Unmarshal([]byte(content[start:end+1]), &r); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return &r, nil
}
