package plan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"commerce-agent/internal/application/service"
	"commerce-agent/internal/domain/entity"
	"commerce-agent/internal/infrastructure/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type fixture struct {
	browser     *mockBrowser
	interpreter *scriptedInterpreter
	actions     *recordingActions
	progress    *recordingProgress
	executor    *Executor
}

func newFixture(interp *scriptedInterpreter, cfg Config) *fixture {
	f := &fixture{
		browser:     &mockBrowser{},
		interpreter: interp,
		actions:     &recordingActions{},
		progress:    &recordingProgress{},
	}
	f.executor = New(f.browser, f.interpreter, f.actions, f.progress, nil, logger.NewNop(), cfg)
	return f
}

func noPrediction() Config {
	cfg := DefaultConfig()
	cfg.PredictEndState = false
	return cfg
}

func TestRun_WirelessMouseScenario(t *testing.T) {
	interp := &scriptedInterpreter{
		actions: []entity.PlanAction{
			entity.SearchForProduct{ProductName: "wireless mouse"},
			entity.GoToProductPage{ProductName: "wireless mouse"},
			entity.AddToCart{ProductName: "wireless mouse"},
			entity.PlanCompleted{},
		},
		pageTypes: []string{"home", "searchResults", "productDetails", "productDetails"},
	}
	f := newFixture(interp, noPrediction())
	entities := service.NewEntityCollector()

	res, err := f.executor.Run(context.Background(), "plan-1", "buy wireless mouse", entities)
	require.NoError(t, err)

	assert.Equal(t, entity.PlanCompletedState, res.State)
	assert.Len(t, res.History, 4)
	assert.Equal(t, 4, res.Steps)
	assert.Len(t, f.actions.executed, 3)
	assert.Equal(t, entities.Entities(), res.Entities)

	require.Len(t, res.Entities, 1)
	assert.Equal(t, "wireless mouse", res.Entities[0].Name)
	assert.Equal(t, true, res.Entities[0].Metadata["inCart"])

	assert.Equal(t, "home", res.History[0].State.PageType)
	assert.Equal(t, entity.SearchForProduct{ProductName: "wireless mouse"}, res.History[0].Action)
	assert.Equal(t, "productDetails", res.History[3].State.PageType)
	assert.Equal(t, entity.PlanCompleted{}, res.History[3].Action)

	assert.Equal(t, 4, f.progress.count(entity.PhaseAction))
	assert.Equal(t, 1, f.progress.count(entity.PhaseEnd))
	assert.Equal(t, "completed", f.progress.last().PageState)
	assert.Equal(t, "plan-1", f.progress.last().PlanID)
}

func TestRun_HistoryIsPassedToInterpreter(t *testing.T) {
	interp := &scriptedInterpreter{
		actions: []entity.PlanAction{
			entity.SearchForProduct{ProductName: "lamp"},
			entity.PlanCompleted{},
		},
	}
	f := newFixture(interp, noPrediction())

	_, err := f.executor.Run(context.Background(), "p", "buy lamp", nil)
	require.NoError(t, err)

	require.Len(t, interp.requests, 2)
	assert.Nil(t, interp.requests[0].LastAction)
	assert.Equal(t, "No actions taken yet.", interp.requests[0].HistoryText)
	assert.Equal(t, entity.SearchForProduct{ProductName: "lamp"}, interp.requests[1].LastAction)
	assert.Contains(t, interp.requests[1].HistoryText, "Step 1: page=page action=searchForProduct")
	assert.NotNil(t, interp.requests[0].Screenshot)
	assert.Equal(t, "<div>page 1</div>", interp.requests[0].Fragments[0].Content)
	assert.Equal(t, "<div>page 2</div>", interp.requests[1].Fragments[0].Content)
}

func TestRun_Clarification(t *testing.T) {
	interp := &scriptedInterpreter{
		actions: []entity.PlanAction{
			entity.SearchForProduct{ProductName: "mouse"},
			entity.ClarifyBuyAction{Question: "Which color do you want?"},
		},
	}
	f := newFixture(interp, noPrediction())

	res, err := f.executor.Run(context.Background(), "p", "buy a mouse", nil)
	require.NoError(t, err)

	assert.Equal(t, entity.PlanAwaitingClarification, res.State)
	assert.Equal(t, "Which color do you want?", res.Message)
	assert.Len(t, res.History, 2)
	assert.Len(t, f.actions.executed, 1)
	assert.Equal(t, "awaiting_clarification", f.progress.last().PageState)
}

func TestRun_InterpreterFailureIsTerminal(t *testing.T) {
	interp := &scriptedInterpreter{
		actions: []entity.PlanAction{entity.SearchForProduct{ProductName: "mouse"}},
		errs:    []error{nil, fmt.Errorf("%w: model refused", entity.ErrInterpreter)},
	}
	f := newFixture(interp, noPrediction())

	res, err := f.executor.Run(context.Background(), "p", "buy a mouse", nil)
	require.NoError(t, err)

	assert.Equal(t, entity.PlanFailed, res.State)
	assert.Contains(t, res.Message, "model refused")
	assert.Len(t, f.actions.executed, 1)
	assert.Len(t, res.History, 1)
	assert.Equal(t, entity.PhaseEnd, f.progress.last().Phase)
	assert.Equal(t, "failed", f.progress.last().PageState)
}

func TestRun_ScreenshotFailureIsNotFatal(t *testing.T) {
	interp := &scriptedInterpreter{actions: []entity.PlanAction{entity.PlanCompleted{}}}
	f := newFixture(interp, noPrediction())
	f.browser.screenshotErr = errors.New("capture failed")

	res, err := f.executor.Run(context.Background(), "p", "goal", nil)
	require.NoError(t, err)

	assert.Equal(t, entity.PlanCompletedState, res.State)
	require.Len(t, interp.requests, 1)
	assert.Nil(t, interp.requests[0].Screenshot)
	assert.Empty(t, f.progress.events[0].Screenshot)
}

func TestRun_PageStateFailureDegradesToUnknown(t *testing.T) {
	interp := &scriptedInterpreter{
		actions: []entity.PlanAction{entity.PlanCompleted{}},
		pageErr: fmt.Errorf("%w: bad json", entity.ErrInterpreter),
	}
	f := newFixture(interp, noPrediction())

	res, err := f.executor.Run(context.Background(), "p", "goal", nil)
	require.NoError(t, err)

	assert.Equal(t, entity.PlanCompletedState, res.State)
	assert.Equal(t, entity.PageTypeUnknown, res.History[0].State.PageType)
}

func TestRun_PredictedEndStateAugmentsGoal(t *testing.T) {
	interp := &scriptedInterpreter{
		actions:  []entity.PlanAction{entity.PlanCompleted{}},
		endState: "The mouse is in the shopping cart",
	}
	f := newFixture(interp, DefaultConfig())

	_, err := f.executor.Run(context.Background(), "p", "buy mouse", nil)
	require.NoError(t, err)

	goal := interp.requests[0].Goal
	assert.True(t, strings.HasPrefix(goal, "buy mouse"))
	assert.Contains(t, goal, "Desired end state: The mouse is in the shopping cart")
}

func TestRun_PredictionFailureUsesRawGoal(t *testing.T) {
	interp := &scriptedInterpreter{
		actions: []entity.PlanAction{entity.PlanCompleted{}},
		endErr:  errors.New("timeout"),
	}
	f := newFixture(interp, DefaultConfig())

	_, err := f.executor.Run(context.Background(), "p", "buy mouse", nil)
	require.NoError(t, err)
	assert.Equal(t, "buy mouse", interp.requests[0].Goal)
}

func TestRun_ActionErrorPropagates(t *testing.T) {
	interp := &scriptedInterpreter{
		actions: []entity.PlanAction{
			entity.SearchForProduct{ProductName: "mouse"},
			entity.GoToProductPage{},
			entity.PlanCompleted{},
		},
	}
	f := newFixture(interp, noPrediction())
	f.actions.failOn = entity.ActionGoToProductPage
	f.actions.failErr = fmt.Errorf("%w: productName", entity.ErrMissingParameter)

	res, err := f.executor.Run(context.Background(), "p", "buy", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrMissingParameter)
	assert.Contains(t, err.Error(), "step 2 goToProductPage")
	assert.Len(t, interp.requests, 2)
	assert.Equal(t, "failed", f.progress.last().PageState)

	require.NotNil(t, res)
	assert.Equal(t, entity.PlanFailed, res.State)
	assert.Equal(t, 2, res.Steps)
	require.Len(t, res.History, 2)
	assert.Equal(t, entity.ActionGoToProductPage, res.History[1].Action.Name())
	assert.Equal(t, err.Error(), res.Message)
}

func TestRun_StepLimit(t *testing.T) {
	actions := make([]entity.PlanAction, 10)
	for i := range actions {
		actions[i] = entity.ViewShoppingCart{}
	}
	cfg := noPrediction()
	cfg.MaxSteps = 3
	f := newFixture(&scriptedInterpreter{actions: actions}, cfg)

	res, err := f.executor.Run(context.Background(), "p", "loop forever", nil)
	require.NoError(t, err)

	assert.Equal(t, entity.PlanFailed, res.State)
	assert.Len(t, f.actions.executed, 3)
	assert.Contains(t, res.Message, "3 steps")
}

func TestRun_ContextCanceled(t *testing.T) {
	f := newFixture(&scriptedInterpreter{actions: []entity.PlanAction{entity.PlanCompleted{}}}, noPrediction())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.executor.Run(ctx, "p", "goal", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.interpreter.requests)
	require.NotNil(t, res)
	assert.Equal(t, entity.PlanFailed, res.State)
	assert.Zero(t, res.Steps)
}

func TestRun_PageCaptureError(t *testing.T) {
	f := newFixture(&scriptedInterpreter{actions: []entity.PlanAction{entity.PlanCompleted{}}}, noPrediction())
	f.browser.fragmentsErr = errors.New("page crashed")

	res, err := f.executor.Run(context.Background(), "p", "goal", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capture page content")
	require.NotNil(t, res)
	assert.Equal(t, entity.PlanFailed, res.State)
}

func nonTerminalAction() *rapid.Generator[entity.PlanAction] {
	return rapid.Custom(func(t *rapid.T) entity.PlanAction {
		name := rapid.StringMatching(`[a-z]{1,8}( [a-z]{1,8})?`).Draw(t, "productName")
		switch rapid.IntRange(0, 5).Draw(t, "variant") {
		case 0:
			return entity.SearchForProduct{ProductName: name}
		case 1:
			return entity.GoToProductPage{ProductName: name}
		case 2:
			return entity.AddToCart{ProductName: name}
		case 3:
			return entity.GetLocationInStore{ProductName: name}
		case 4:
			return entity.FindNearbyStore{}
		default:
			return entity.ViewShoppingCart{}
		}
	})
}

func TestProperty_CompletedReturnsCollectorEntities(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		steps := rapid.SliceOfN(nonTerminalAction(), 0, 12).Draw(rt, "steps")
		script := append(append([]entity.PlanAction{}, steps...), entity.PlanCompleted{})

		f := newFixture(&scriptedInterpreter{actions: script}, noPrediction())
		entities := service.NewEntityCollector()

		res, err := f.executor.Run(context.Background(), "p", "goal", entities)
		require.NoError(rt, err)

		require.Equal(rt, entity.PlanCompletedState, res.State)
		require.Equal(rt, entities.Entities(), res.Entities)
		require.Len(rt, res.History, len(script))
		require.Len(rt, f.actions.executed, len(steps))
	})
}

func TestProperty_ClarificationReturnsQuestion(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		steps := rapid.SliceOfN(nonTerminalAction(), 0, 12).Draw(rt, "steps")
		question := rapid.StringMatching(`[A-Za-z ]{1,40}\?`).Draw(rt, "question")
		script := append(append([]entity.PlanAction{}, steps...), entity.ClarifyBuyAction{Question: question})

		f := newFixture(&scriptedInterpreter{actions: script}, noPrediction())

		res, err := f.executor.Run(context.Background(), "p", "goal", nil)
		require.NoError(rt, err)

		require.Equal(rt, entity.PlanAwaitingClarification, res.State)
		require.Equal(rt, question, res.Message)
	})
}

func TestProperty_FailureAtStepK(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		k := rapid.IntRange(1, 15).Draw(rt, "k")
		steps := rapid.SliceOfN(nonTerminalAction(), k-1, k-1).Draw(rt, "steps")

		errs := make([]error, k)
		errs[k-1] = fmt.Errorf("%w: step %d", entity.ErrInterpreter, k)

		f := newFixture(&scriptedInterpreter{actions: steps, errs: errs}, noPrediction())

		res, err := f.executor.Run(context.Background(), "p", "goal", nil)
		require.NoError(rt, err)

		require.Equal(rt, entity.PlanFailed, res.State)
		require.Len(rt, f.actions.executed, k-1)
		require.Len(rt, res.History, k-1)
		require.Len(rt, f.interpreter.requests, k)
	})
}

func TestProperty_HistoryRecordsStateBeforeAction(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		steps := rapid.SliceOfN(nonTerminalAction(), 1, 10).Draw(rt, "steps")
		script := append(append([]entity.PlanAction{}, steps...), entity.PlanCompleted{})

		pageTypes := make([]string, len(script))
		for i := range pageTypes {
			pageTypes[i] = fmt.Sprintf("state-%d", i)
		}

		f := newFixture(&scriptedInterpreter{actions: script, pageTypes: pageTypes}, noPrediction())

		res, err := f.executor.Run(context.Background(), "p", "goal", nil)
		require.NoError(rt, err)

		for i, h := range res.History {
			require.Equal(rt, pageTypes[i], h.State.PageType)
			require.Equal(rt, script[i], h.Action)
		}
	})
}
