package plan

import (
	"context"
	"fmt"
	"time"

	"commerce-agent/internal/application/port/output"
	"commerce-agent/internal/application/service"
	"commerce-agent/internal/domain/entity"
)

const (
	defaultMaxSteps = 50

	labelCompleted     = "completed"
	labelFailed        = "failed"
	labelClarification = "awaiting_clarification"
)

// ActionExecutor performs the browser side effects of a non-terminal action.
type ActionExecutor interface {
	Execute(ctx context.Context, action entity.PlanAction, entities *service.EntityCollector) error
}

type Config struct {
	// MaxSteps bounds the number of interpreter decisions; 0 means unbounded.
	MaxSteps        int
	PredictEndState bool
}

func DefaultConfig() Config {
	return Config{
		MaxSteps:        defaultMaxSteps,
		PredictEndState: true,
	}
}

type Executor struct {
	browser     output.BrowserPort
	interpreter output.PageInterpreterPort
	actions     ActionExecutor
	progress    output.ProgressSink
	metrics     output.MetricsPort
	logger      output.LoggerPort
	cfg         Config
}

func New(
	browser output.BrowserPort,
	interpreter output.PageInterpreterPort,
	actions ActionExecutor,
	progress output.ProgressSink,
	metrics output.MetricsPort,
	logger output.LoggerPort,
	cfg Config,
) *Executor {
	if progress == nil {
		progress = nopProgress{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Executor{
		browser:     browser,
		interpreter: interpreter,
		actions:     actions,
		progress:    progress,
		metrics:     metrics,
		logger:      logger.WithField("component", "plan"),
		cfg:         cfg,
	}
}

type run struct {
	id       string
	goal     string
	target   string
	started  time.Time
	history  entity.History
	entities *service.EntityCollector
	log      output.LoggerPort
}

// Run drives one goal until the interpreter completes the plan, asks for
// clarification, or fails. Interpreter failures end the run in
// entity.PlanFailed without an error. Action, page capture and context
// failures are returned together with the failed result, which keeps the
// steps taken so far.
func (e *Executor) Run(ctx context.Context, planID, goal string, entities *service.EntityCollector) (*entity.PlanResult, error) {
	if entities == nil {
		entities = service.NewEntityCollector()
	}
	r := &run{
		id:       planID,
		goal:     goal,
		started:  time.Now(),
		entities: entities,
		log:      e.logger.WithField("planId", planID),
	}
	r.log.Info("Plan started", "goal", goal)

	r.target = e.targetGoal(ctx, r)

	for step := 1; e.cfg.MaxSteps <= 0 || step <= e.cfg.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return e.finish(ctx, r, entity.PlanFailed, err.Error()), err
		}
		r.log.Debug("Plan iteration", "step", step)

		fragments, err := e.browser.GetHTMLFragments(ctx)
		if err != nil {
			err = fmt.Errorf("capture page content: %w", err)
			return e.finish(ctx, r, entity.PlanFailed, err.Error()), err
		}
		shot := e.captureScreenshot(ctx, r)
		state := e.pageState(ctx, r, fragments)

		action, err := e.nextAction(ctx, r, fragments, shot)
		if err != nil {
			r.log.Error("Next action failed", "step", step, "error", err)
			return e.finish(ctx, r, entity.PlanFailed, fmt.Sprintf("Could not decide the next step: %v", err)), nil
		}

		r.history.Append(state, action)
		e.metrics.ObserveStep(action.Name())
		e.progress.Emit(ctx, entity.ProgressEvent{
			PlanID:     r.id,
			PageState:  state.Label(),
			ActionName: action.Name().String(),
			Phase:      entity.PhaseAction,
			Step:       step,
			Screenshot: shot.DataURL(),
			Timestamp:  time.Now(),
		})
		r.log.Info("Plan step", "step", step, "pageType", state.Label(), "action", entity.DescribeAction(action))

		switch a := action.(type) {
		case entity.PlanCompleted:
			return e.finish(ctx, r, entity.PlanCompletedState, "Plan completed."), nil
		case entity.ClarifyBuyAction:
			return e.finish(ctx, r, entity.PlanAwaitingClarification, a.Question), nil
		}

		if err := e.actions.Execute(ctx, action, entities); err != nil {
			r.log.Error("Action failed", "step", step, "action", action.Name(), "error", err)
			err = fmt.Errorf("step %d %s: %w", step, action.Name(), err)
			return e.finish(ctx, r, entity.PlanFailed, err.Error()), err
		}
	}

	r.log.Warn("Step limit reached", "maxSteps", e.cfg.MaxSteps)
	return e.finish(ctx, r, entity.PlanFailed, fmt.Sprintf("Stopped after %d steps without completing the plan.", e.cfg.MaxSteps)), nil
}

func (e *Executor) targetGoal(ctx context.Context, r *run) string {
	if !e.cfg.PredictEndState {
		return r.goal
	}

	start := time.Now()
	endState, err := e.interpreter.PredictEndState(ctx, r.goal)
	e.metrics.ObserveInterpreterCall("predict_end_state", time.Since(start), err)
	if err != nil {
		r.log.Warn("End state prediction failed, using raw goal", "error", err)
		return r.goal
	}
	if endState == "" {
		return r.goal
	}
	return r.goal + "\nDesired end state: " + endState
}

func (e *Executor) captureScreenshot(ctx context.Context, r *run) *entity.Screenshot {
	shot, err := e.browser.Screenshot(ctx)
	if err != nil {
		r.log.Warn("Screenshot unavailable", "error", err)
		return nil
	}
	return shot
}

func (e *Executor) pageState(ctx context.Context, r *run, fragments []entity.HTMLFragment) entity.PageState {
	start := time.Now()
	state, err := e.interpreter.GetPageState(ctx, r.target, fragments)
	e.metrics.ObserveInterpreterCall("page_state", time.Since(start), err)
	if err != nil || state == nil {
		r.log.Warn("Page state unavailable", "error", err)
		return entity.PageState{PageType: entity.PageTypeUnknown}
	}
	return *state
}

func (e *Executor) nextAction(ctx context.Context, r *run, fragments []entity.HTMLFragment, shot *entity.Screenshot) (entity.PlanAction, error) {
	start := time.Now()
	action, err := e.interpreter.GetNextPageAction(ctx, output.NextActionRequest{
		Goal:        r.target,
		Fragments:   fragments,
		Screenshot:  shot,
		HistoryText: r.history.Render(),
		LastAction:  r.history.LastAction(),
	})
	e.metrics.ObserveInterpreterCall("next_action", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	if action == nil {
		return nil, fmt.Errorf("%w: empty action", entity.ErrInterpreter)
	}
	return action, nil
}

func (e *Executor) finish(ctx context.Context, r *run, state entity.PlanState, message string) *entity.PlanResult {
	label := labelFailed
	switch state {
	case entity.PlanCompletedState:
		label = labelCompleted
	case entity.PlanAwaitingClarification:
		label = labelClarification
	}

	e.progress.Emit(ctx, entity.ProgressEvent{
		PlanID:    r.id,
		PageState: label,
		Phase:     entity.PhaseEnd,
		Step:      r.history.Len(),
		Timestamp: time.Now(),
	})

	elapsed := time.Since(r.started)
	e.metrics.ObservePlan(state, r.history.Len(), elapsed)
	r.log.Info("Plan finished", "state", state, "steps", r.history.Len(), "duration", elapsed.String())

	return &entity.PlanResult{
		PlanID:   r.id,
		Goal:     r.goal,
		State:    state,
		Message:  message,
		Entities: r.entities.Entities(),
		History:  r.history.Entries(),
		Steps:    r.history.Len(),
	}
}

type nopProgress struct{}

func (nopProgress) Emit(context.Context, entity.ProgressEvent) {}

type nopMetrics struct{}

func (nopMetrics) ObserveInterpreterCall(string, time.Duration, error) {}
func (nopMetrics) ObserveStep(entity.ActionName)                       {}
func (nopMetrics) ObservePlan(entity.PlanState, int, time.Duration)    {}
