package di

import (
	"context"
	"fmt"
	"strings"
	"time"

	"commerce-agent/internal/application/port/input"
	"commerce-agent/internal/application/port/output"
	"commerce-agent/internal/infrastructure/browser/rod"
	"commerce-agent/internal/infrastructure/interpreter"
	"commerce-agent/internal/infrastructure/llm/langchain"
	"commerce-agent/internal/infrastructure/llm/openrouter"
	"commerce-agent/internal/infrastructure/logger"
	"commerce-agent/internal/infrastructure/metrics"
	"commerce-agent/internal/infrastructure/progress"
	"commerce-agent/internal/infrastructure/prompts"
	"commerce-agent/internal/infrastructure/runstore"
	"commerce-agent/internal/infrastructure/userinteraction"
	"commerce-agent/internal/usecase/commerce"
	"commerce-agent/internal/usecase/plan"
)

const (
	BackendOpenAI    = "openai"
	BackendLangchain = "langchain"
)

type Container struct {
	Browser        output.BrowserPort
	LLM            output.LLMPort
	Interpreter    output.PageInterpreterPort
	Logger         output.LoggerPort
	Metrics        *metrics.Tracker
	Progress       *progress.Hub
	ProgressServer *progress.Server
	ProgressSink   *progress.HTTPSink
	Runs           *runstore.Store
	UI             *userinteraction.ConsoleUserInteraction
	Dispatcher     input.ActionDispatcher
}

type Config struct {
	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterBaseURL string
	LLMBackend        string
	LLMTimeout        time.Duration

	BrowserHeadless bool
	BrowserStealth  bool
	StartURL        string

	PlanMaxSteps      int
	PredictEndState   bool
	PromptTokenBudget int

	ProgressServerAddr string
	ProgressEndpoint   string
	RunStoreDir        string

	LogDir     string
	LogLevel   string
	LogConsole bool
}

// ConfigFromEnv reads every setting from the environment. Only the OpenRouter
// key and model are mandatory.
func ConfigFromEnv(env output.ConfigPort) Config {
	return Config{
		OpenRouterAPIKey:  env.MustGet("OPENROUTER_API_KEY"),
		OpenRouterModel:   env.MustGet("OPENROUTER_MODEL_NAME"),
		OpenRouterBaseURL: env.GetWithDefault("OPENROUTER_BASE_URL", openrouter.DefaultBaseURL),
		LLMBackend:        strings.ToLower(env.GetWithDefault("LLM_BACKEND", BackendOpenAI)),
		LLMTimeout:        env.GetDuration("LLM_TIMEOUT", 2*time.Minute),

		BrowserHeadless: env.GetBool("BROWSER_HEADLESS", false),
		BrowserStealth:  env.GetBool("BROWSER_STEALTH", true),
		StartURL:        env.Get("START_URL"),

		PlanMaxSteps:      env.GetInt("PLAN_MAX_STEPS", plan.DefaultConfig().MaxSteps),
		PredictEndState:   env.GetBool("PLAN_PREDICT_END_STATE", true),
		PromptTokenBudget: env.GetInt("PROMPT_TOKEN_BUDGET", interpreter.DefaultConfig().TokenBudget),

		ProgressServerAddr: env.Get("PROGRESS_SERVER_ADDR"),
		ProgressEndpoint:   env.Get("PROGRESS_ENDPOINT"),
		RunStoreDir:        env.Get("RUN_STORE_DIR"),

		LogDir:     env.GetWithDefault("LOG_DIR", "log"),
		LogLevel:   env.GetWithDefault("LOG_LEVEL", "debug"),
		LogConsole: env.GetBool("LOG_CONSOLE", false),
	}
}

func NewContainer(ctx context.Context, cfg Config) (*Container, error) {
	logCfg := logger.DefaultConfig("commerce-agent")
	logCfg.Dir = cfg.LogDir
	logCfg.Level = cfg.LogLevel
	logCfg.Console = cfg.LogConsole
	log, err := logger.NewLoggerAdapter(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	c := &Container{Logger: log}

	llm, err := newLLM(cfg, log)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.LLM = llm

	gen, err := prompts.NewGenerator()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to load prompts: %w", err)
	}
	interpCfg := interpreter.DefaultConfig()
	interpCfg.TokenBudget = cfg.PromptTokenBudget
	c.Interpreter = interpreter.New(llm, gen, log, interpCfg)

	runs, err := runstore.Open(runstore.Options{Dir: cfg.RunStoreDir})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	c.Runs = runs

	browserCfg := rod.DefaultConfig()
	browserCfg.Headless = cfg.BrowserHeadless
	browserCfg.Stealth = cfg.BrowserStealth
	browser, err := rod.NewBrowserAdapter(ctx, browserCfg)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create browser: %w", err)
	}
	c.Browser = browser

	c.Metrics = metrics.NewTracker(nil)
	c.Progress = progress.NewHub(0)
	c.UI = userinteraction.NewConsoleUserInteraction()

	sinks := progress.Fanout{c.UI, c.Progress}
	if cfg.ProgressEndpoint != "" {
		c.ProgressSink = progress.NewHTTPSink(cfg.ProgressEndpoint, nil, log)
		sinks = append(sinks, c.ProgressSink)
	}
	if cfg.ProgressServerAddr != "" {
		c.ProgressServer = progress.NewServer(c.Progress, runs, log, progress.ServerConfig{
			Addr:    cfg.ProgressServerAddr,
			Metrics: c.Metrics.Handler(),
		})
	}

	planCfg := plan.DefaultConfig()
	planCfg.MaxSteps = cfg.PlanMaxSteps
	planCfg.PredictEndState = cfg.PredictEndState

	steps := commerce.NewSteps(browser, c.Interpreter, log)
	planner := plan.New(browser, c.Interpreter, commerce.NewActionExecutor(steps), sinks, c.Metrics, log, planCfg)
	c.Dispatcher = commerce.NewDispatcher(browser, steps, planner, runs, log)

	return c, nil
}

func newLLM(cfg Config, log output.LoggerPort) (output.LLMPort, error) {
	switch cfg.LLMBackend {
	case "", BackendOpenAI:
		llmCfg := openrouter.DefaultConfig(cfg.OpenRouterAPIKey, cfg.OpenRouterModel)
		if cfg.OpenRouterBaseURL != "" {
			llmCfg.BaseURL = cfg.OpenRouterBaseURL
		}
		if cfg.LLMTimeout > 0 {
			llmCfg.Timeout = cfg.LLMTimeout
		}
		llmCfg.Logger = log
		return openrouter.NewOpenRouterAdapter(llmCfg), nil
	case BackendLangchain:
		llm, err := langchain.NewOpenAICompatible(langchain.Config{
			APIKey:  cfg.OpenRouterAPIKey,
			Model:   cfg.OpenRouterModel,
			BaseURL: cfg.OpenRouterBaseURL,
			Timeout: cfg.LLMTimeout,
			Logger:  log,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create llm: %w", err)
		}
		return llm, nil
	default:
		return nil, fmt.Errorf("unknown LLM_BACKEND %q", cfg.LLMBackend)
	}
}

func (c *Container) Close() {
	if c.Browser != nil {
		c.Browser.Close()
	}
	if c.ProgressSink != nil {
		_ = c.ProgressSink.Close()
	}
	if c.Runs != nil {
		if err := c.Runs.Close(); err != nil && c.Logger != nil {
			c.Logger.Warn("Run store close failed", "error", err)
		}
	}
	if c.Logger != nil {
		c.Logger.Close()
	}
}
