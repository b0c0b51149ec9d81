package commerce

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"commerce-agent/internal/domain/entity"
	"commerce-agent/internal/infrastructure/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dispatcherFixture struct {
	browser *fakeBrowser
	interp  *componentInterpreter
	planner *stubPlanner
	runs    *memoryRuns
	d       *Dispatcher
}

func newDispatcherFixture() *dispatcherFixture {
	f := &dispatcherFixture{
		browser: newFakeBrowser(),
		interp:  &componentInterpreter{components: shopComponents()},
		planner: &stubPlanner{result: &entity.PlanResult{State: entity.PlanCompletedState, Message: "Plan completed."}},
		runs:    &memoryRuns{},
	}
	steps := NewSteps(f.browser, f.interp, logger.NewNop())
	f.d = NewDispatcher(f.browser, steps, f.planner, f.runs, logger.NewNop())
	f.d.newID = func() string { return "plan-1" }
	return f
}

func TestDispatch_NoBrowserSession(t *testing.T) {
	f := newDispatcherFixture()
	f.browser.ready = false

	res, err := f.d.Dispatch(context.Background(), entity.BuyProductRequest{UserRequest: "buy a mouse"})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, entity.ErrNoBrowserSession)
	assert.Empty(t, f.planner.goals)
}

func TestDispatch_BuyProductCompleted(t *testing.T) {
	f := newDispatcherFixture()
	f.planner.add = []entity.NamedEntity{{Name: "Wireless Mouse", Types: []string{"product"}}}

	res, err := f.d.Dispatch(context.Background(), entity.BuyProductRequest{UserRequest: " buy wireless mouse "})
	require.NoError(t, err)

	assert.False(t, res.Error)
	assert.Equal(t, "plan-1", res.PlanID)
	assert.Equal(t, entity.PlanCompletedState, res.State)
	require.Len(t, res.Entities, 1)
	assert.Equal(t, []string{"buy wireless mouse"}, f.planner.goals)

	require.Len(t, f.runs.records, 1)
	assert.Equal(t, "plan-1", f.runs.records[0].PlanID)
	assert.Equal(t, entity.PlanCompletedState, f.runs.records[0].State)
}

func TestDispatch_BuyProductClarification(t *testing.T) {
	f := newDispatcherFixture()
	f.planner.result = &entity.PlanResult{State: entity.PlanAwaitingClarification, Message: "Which color?"}

	res, err := f.d.Dispatch(context.Background(), entity.BuyProductRequest{UserRequest: "buy a mouse"})
	require.NoError(t, err)

	assert.False(t, res.Error)
	assert.Equal(t, entity.PlanAwaitingClarification, res.State)
	assert.Equal(t, "Which color?", res.Message)
}

func TestDispatch_BuyProductLoopErrorBecomesText(t *testing.T) {
	f := newDispatcherFixture()
	f.planner.err = fmt.Errorf("step 2 goToProductPage: %w", entity.ErrMissingParameter)
	f.planner.add = []entity.NamedEntity{{Name: "partial"}}

	res, err := f.d.Dispatch(context.Background(), entity.BuyProductRequest{UserRequest: "buy a mouse"})
	require.NoError(t, err)

	assert.True(t, res.Error)
	assert.Contains(t, res.Message, "missing required parameter")
	require.Len(t, res.Entities, 1)

	require.Len(t, f.runs.records, 1)
	assert.Equal(t, entity.PlanFailed, f.runs.records[0].State)
}

func TestDispatch_BuyProductFailureJournalsStepsTaken(t *testing.T) {
	f := newDispatcherFixture()
	f.planner.err = fmt.Errorf("step 3 addToCart: %w", entity.ErrComponentNotFound)
	f.planner.partial = &entity.PlanResult{
		State: entity.PlanFailed,
		Steps: 3,
		History: []entity.HistoryEntry{
			{State: entity.PageState{PageType: "home"}, Action: entity.SearchForProduct{ProductName: "mouse"}},
			{State: entity.PageState{PageType: "results"}, Action: entity.GoToProductPage{ProductName: "Wireless Mouse"}},
			{State: entity.PageState{PageType: "product"}, Action: entity.AddToCart{}},
		},
	}

	res, err := f.d.Dispatch(context.Background(), entity.BuyProductRequest{UserRequest: "buy a mouse"})
	require.NoError(t, err)
	assert.True(t, res.Error)

	require.Len(t, f.runs.records, 1)
	rec := f.runs.records[0]
	assert.Equal(t, entity.PlanFailed, rec.State)
	assert.Equal(t, 3, rec.Steps)
	require.Len(t, rec.Actions, 3)
	assert.Equal(t, "addToCart", rec.Actions[2])
	assert.Contains(t, rec.Message, "step 3 addToCart")
	assert.False(t, rec.StartedAt.IsZero())
}

func TestDispatch_BuyProductCancelledIsJournaled(t *testing.T) {
	f := newDispatcherFixture()
	f.planner.err = context.Canceled
	f.planner.partial = &entity.PlanResult{State: entity.PlanFailed}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.d.Dispatch(ctx, entity.BuyProductRequest{UserRequest: "buy a mouse"})
	require.NoError(t, err)
	require.Len(t, f.runs.records, 1)
	assert.Equal(t, entity.PlanFailed, f.runs.records[0].State)
}

func TestDispatch_BuyProductEmptyRequest(t *testing.T) {
	f := newDispatcherFixture()

	res, err := f.d.Dispatch(context.Background(), entity.BuyProductRequest{UserRequest: "  "})
	require.NoError(t, err)
	assert.True(t, res.Error)
	assert.Empty(t, f.planner.goals)
	assert.Empty(t, f.runs.records)
}

func TestDispatch_SearchForProductListsTiles(t *testing.T) {
	f := newDispatcherFixture()

	res, err := f.d.Dispatch(context.Background(), entity.SearchProductRequest{ProductName: "mouse"})
	require.NoError(t, err)

	assert.False(t, res.Error)
	assert.Equal(t, `Found 2 products for "mouse".`, res.Message)
	require.Len(t, res.Entities, 2)
	assert.Equal(t, "Gaming Mouse", res.Entities[1].Name)
	assert.Equal(t, 2, res.Entities[1].Metadata["position"])
	assert.Empty(t, f.planner.goals)
}

func TestDispatch_SearchForProductUnnamedTilesStayDistinct(t *testing.T) {
	f := newDispatcherFixture()
	f.interp.components[entity.ComponentProductTileList] = entity.ProductTileList{Products: []entity.ProductTile{
		{Price: "$10.00", DetailsLinkSelector: "a.tile-1"},
		{Name: "  ", Price: "$20.00", DetailsLinkSelector: "a.tile-2"},
	}}

	res, err := f.d.Dispatch(context.Background(), entity.SearchProductRequest{ProductName: "mouse"})
	require.NoError(t, err)

	require.Len(t, res.Entities, 2)
	assert.Equal(t, "result 1", res.Entities[0].Name)
	assert.Equal(t, "$10.00", res.Entities[0].Metadata["price"])
	assert.Equal(t, "result 2", res.Entities[1].Name)
	assert.Equal(t, "$20.00", res.Entities[1].Metadata["price"])
}

func TestDispatch_SelectSearchResultByPosition(t *testing.T) {
	f := newDispatcherFixture()

	res, err := f.d.Dispatch(context.Background(), entity.SelectSearchResultRequest{Position: 2})
	require.NoError(t, err)

	assert.False(t, res.Error)
	assert.Contains(t, f.browser.actions(), "click:a.tile-2")
	require.Len(t, res.Entities, 1)
	assert.Equal(t, "Gaming Mouse", res.Entities[0].Name)
}

func TestDispatch_SelectSearchResultOutOfRange(t *testing.T) {
	f := newDispatcherFixture()

	res, err := f.d.Dispatch(context.Background(), entity.SelectSearchResultRequest{Position: 7})
	require.NoError(t, err)
	assert.True(t, res.Error)
	assert.False(t, hasPrefix(f.browser.actions(), "click:"))
}

func TestDispatch_SelectSearchResultNeedsParameter(t *testing.T) {
	f := newDispatcherFixture()

	res, err := f.d.Dispatch(context.Background(), entity.SelectSearchResultRequest{})
	require.NoError(t, err)
	assert.True(t, res.Error)
	assert.Contains(t, res.Message, "productName or position")
	assert.Empty(t, f.browser.calls)
}

func TestDispatch_GetLocationInStore(t *testing.T) {
	f := newDispatcherFixture()

	res, err := f.d.Dispatch(context.Background(), entity.GetLocationInStoreRequest{ProductName: "Wireless Mouse"})
	require.NoError(t, err)

	assert.Equal(t, "Wireless Mouse is located at Aisle 12.", res.Message)
	assert.Equal(t, []entity.ComponentName{
		entity.ComponentSearchInput,
		entity.ComponentProductTile,
		entity.ComponentProductDetailsHero,
	}, requestedComponents(f.interp))
}

func TestDispatch_ViewShoppingCart(t *testing.T) {
	f := newDispatcherFixture()

	res, err := f.d.Dispatch(context.Background(), entity.ViewShoppingCartRequest{})
	require.NoError(t, err)
	assert.Equal(t, "Your cart has 1 items, total $19.99.", res.Message)
}

func TestDispatch_FindNearbyStore(t *testing.T) {
	f := newDispatcherFixture()

	res, err := f.d.Dispatch(context.Background(), entity.FindNearbyStoreRequest{})
	require.NoError(t, err)
	assert.Equal(t, "The nearest store is Downtown at 1 Main St.", res.Message)
}

func TestDispatch_Navigate(t *testing.T) {
	f := newDispatcherFixture()

	res, err := f.d.Dispatch(context.Background(), entity.NavigateRequest{URL: "https://shop.example/deals"})
	require.NoError(t, err)
	assert.Equal(t, "Opened https://shop.example/deals", res.Message)
	assert.Equal(t, []string{"navigate:https://shop.example/deals", "awaitLoad"}, f.browser.actions())
}

func TestDispatch_ComponentFailureIsReportedAsText(t *testing.T) {
	f := newDispatcherFixture()
	delete(f.interp.components, entity.ComponentStoreLocation)

	res, err := f.d.Dispatch(context.Background(), entity.FindNearbyStoreRequest{})
	require.NoError(t, err)
	assert.True(t, res.Error)
	assert.Contains(t, res.Message, "page component not found")
}

type failingRuns struct{ memoryRuns }

func (failingRuns) Save(context.Context, entity.PlanRecord) error { return errors.New("disk full") }

func TestDispatch_JournalFailureDoesNotFailPlan(t *testing.T) {
	f := newDispatcherFixture()
	f.d.runs = &failingRuns{}

	res, err := f.d.Dispatch(context.Background(), entity.BuyProductRequest{UserRequest: "buy a mouse"})
	require.NoError(t, err)
	assert.False(t, res.Error)
}

func TestFollowUpRequest(t *testing.T) {
	assert.Equal(t, "buy a mouse", FollowUpRequest("buy a mouse", "Which color?", " "))
	assert.Equal(t, "buy a mouse (black)", FollowUpRequest("buy a mouse", "", "black"))
	assert.Equal(t,
		"buy a mouse\nWhen asked \"Which color?\" the user answered: black",
		FollowUpRequest(" buy a mouse ", "Which color?", "black"))
}
