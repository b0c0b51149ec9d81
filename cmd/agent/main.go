package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"commerce-agent/internal/di"
	"commerce-agent/internal/domain/entity"
	"commerce-agent/internal/infrastructure/env"
	"commerce-agent/internal/usecase/commerce"
)

const usage = `Describe what you want to buy, or send a JSON action such as
{"actionName": "searchForProduct", "parameters": {"productName": "wireless mouse"}}.
Type "exit" to quit.`

func main() {
	envService := env.NewEnvService()
	cfg := di.ConfigFromEnv(envService)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := di.NewContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("init failed: %v", err)
	}
	defer container.Close()

	if container.ProgressServer != nil {
		go func() {
			if err := container.ProgressServer.ListenAndServe(); err != nil {
				container.Logger.Error("Progress server stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = container.ProgressServer.Shutdown(shutdownCtx)
		}()
	}

	if cfg.StartURL != "" {
		dispatch(ctx, container, entity.NavigateRequest{URL: cfg.StartURL})
	}

	fmt.Println(usage)
	for {
		line, err := container.UI.ReadLine(ctx, "\n> ")
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return
		}
		if err != nil {
			container.UI.ShowError(ctx, err)
			return
		}

		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return
		}

		action, err := entity.ParseUserAction(line)
		if err != nil {
			container.UI.ShowError(ctx, err)
			continue
		}
		container.Logger.Info("Request received", "action", action.Name())
		dispatch(ctx, container, action)
	}
}

// dispatch runs one request. A buyProduct run that stops for clarification is
// restarted with the shopper's answer folded into the request.
func dispatch(ctx context.Context, c *di.Container, action entity.UserAction) {
	for {
		result, err := c.Dispatcher.Dispatch(ctx, action)
		if err != nil {
			c.Logger.Error("Request failed", "action", action.Name(), "error", err)
			c.UI.ShowError(ctx, err)
			return
		}
		c.UI.ShowResult(ctx, result)

		buy, ok := action.(entity.BuyProductRequest)
		if !ok || result.State != entity.PlanAwaitingClarification {
			return
		}

		answer, err := c.UI.AskQuestion(ctx, result.Message)
		if err != nil || answer == "" {
			return
		}
		action = entity.BuyProductRequest{
			UserRequest: commerce.FollowUpRequest(buy.UserRequest, result.Message, answer),
		}
	}
}
