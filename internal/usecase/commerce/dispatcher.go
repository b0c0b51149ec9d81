package commerce

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"commerce-agent/internal/application/port/input"
	"commerce-agent/internal/application/port/output"
	"commerce-agent/internal/application/service"
	"commerce-agent/internal/domain/entity"

	"github.com/google/uuid"
)

var _ input.ActionDispatcher = (*Dispatcher)(nil)

// PlanRunner is satisfied by *plan.Executor.
type PlanRunner interface {
	Run(ctx context.Context, planID, goal string, entities *service.EntityCollector) (*entity.PlanResult, error)
}

type Dispatcher struct {
	browser output.BrowserPort
	steps   *Steps
	planner PlanRunner
	runs    output.RunStore
	logger  output.LoggerPort
	newID   func() string
}

// NewDispatcher wires the handlers. runs may be nil, in which case finished
// plans are not journaled.
func NewDispatcher(browser output.BrowserPort, steps *Steps, planner PlanRunner, runs output.RunStore, logger output.LoggerPort) *Dispatcher {
	return &Dispatcher{
		browser: browser,
		steps:   steps,
		planner: planner,
		runs:    runs,
		logger:  logger.WithField("component", "dispatcher"),
		newID:   uuid.NewString,
	}
}

// Dispatch resolves a user action to its handler. Only a missing browser
// session is returned as an error; every other failure is reported in the
// result text with Error set.
func (d *Dispatcher) Dispatch(ctx context.Context, action entity.UserAction) (*entity.ActionResult, error) {
	if d.browser == nil || !d.browser.IsReady() {
		return nil, entity.ErrNoBrowserSession
	}
	if action == nil {
		return failure(fmt.Errorf("%w: no action", entity.ErrMissingParameter)), nil
	}

	log := d.logger.WithField("action", action.Name().String())
	log.Info("Dispatching user action")

	entities := service.NewEntityCollector()
	var (
		res *entity.ActionResult
		err error
	)

	switch a := action.(type) {
	case entity.BuyProductRequest:
		res, err = d.buyProduct(ctx, a, entities)
	case entity.SearchProductRequest:
		res, err = d.searchForProduct(ctx, a, entities)
	case entity.SelectSearchResultRequest:
		res, err = d.selectSearchResult(ctx, a, entities)
	case entity.AddToCartRequest:
		res, err = d.addToCart(ctx, a, entities)
	case entity.ViewShoppingCartRequest:
		res, err = d.viewShoppingCart(ctx, entities)
	case entity.FindNearbyStoreRequest:
		res, err = d.findNearbyStore(ctx, entities)
	case entity.GetLocationInStoreRequest:
		res, err = d.getLocationInStore(ctx, a, entities)
	case entity.NavigateRequest:
		res, err = d.navigate(ctx, a)
	default:
		err = fmt.Errorf("%w: %q", entity.ErrUnknownAction, action.Name())
	}

	if err != nil {
		if errors.Is(err, entity.ErrNoBrowserSession) {
			return nil, err
		}
		log.Error("User action failed", "error", err)
		out := failure(err)
		out.Entities = entities.Entities()
		return out, nil
	}
	return res, nil
}

func (d *Dispatcher) buyProduct(ctx context.Context, req entity.BuyProductRequest, entities *service.EntityCollector) (*entity.ActionResult, error) {
	goal := strings.TrimSpace(req.UserRequest)
	if goal == "" {
		return nil, fmt.Errorf("%w: userRequest", entity.ErrMissingParameter)
	}

	planID := d.newID()
	started := time.Now()
	res, err := d.planner.Run(ctx, planID, goal, entities)
	if err != nil {
		rec := entity.PlanRecord{
			PlanID:   planID,
			Goal:     goal,
			Entities: entities.Entities(),
		}
		if res != nil {
			rec = entity.NewPlanRecord(res, started, time.Now())
		}
		rec.State = entity.PlanFailed
		rec.Message = err.Error()
		rec.StartedAt, rec.FinishedAt = started, time.Now()
		d.journal(ctx, rec)
		return nil, err
	}
	d.journal(ctx, entity.NewPlanRecord(res, started, time.Now()))

	return &entity.ActionResult{
		Message:  res.Message,
		Entities: res.Entities,
		Error:    res.State == entity.PlanFailed,
		PlanID:   planID,
		State:    res.State,
	}, nil
}

func (d *Dispatcher) journal(ctx context.Context, rec entity.PlanRecord) {
	if d.runs == nil {
		return
	}
	// A cancelled run is still journaled.
	if err := d.runs.Save(context.WithoutCancel(ctx), rec); err != nil {
		d.logger.Warn("Failed to journal plan run", "planId", rec.PlanID, "error", err)
	}
}

func (d *Dispatcher) searchForProduct(ctx context.Context, req entity.SearchProductRequest, entities *service.EntityCollector) (*entity.ActionResult, error) {
	if err := d.steps.SearchForProduct(ctx, req.ProductName); err != nil {
		return nil, err
	}
	tiles, err := d.steps.ProductTiles(ctx)
	if err != nil {
		return nil, err
	}

	for i, tile := range tiles {
		meta := tileMetadata(tile, "")
		meta["position"] = i + 1
		entities.AddEntity(entityName(tile.Name, "result", i), []string{entity.EntityTypeProduct}, meta)
	}
	return &entity.ActionResult{
		Message:  fmt.Sprintf("Found %d products for %q.", len(tiles), req.ProductName),
		Entities: entities.Entities(),
	}, nil
}

func (d *Dispatcher) selectSearchResult(ctx context.Context, req entity.SelectSearchResultRequest, entities *service.EntityCollector) (*entity.ActionResult, error) {
	switch {
	case req.ProductName != "":
		if err := d.steps.GoToProductPage(ctx, req.ProductName, entities); err != nil {
			return nil, err
		}
	case req.Position > 0:
		tiles, err := d.steps.ProductTiles(ctx)
		if err != nil {
			return nil, err
		}
		if req.Position > len(tiles) {
			return nil, fmt.Errorf("%w: position %d of %d results", entity.ErrComponentNotFound, req.Position, len(tiles))
		}
		if err := d.steps.OpenProduct(ctx, tiles[req.Position-1], "", entities); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: productName or position", entity.ErrMissingParameter)
	}

	return &entity.ActionResult{
		Message:  "Opened the product page.",
		Entities: entities.Entities(),
	}, nil
}

func (d *Dispatcher) addToCart(ctx context.Context, req entity.AddToCartRequest, entities *service.EntityCollector) (*entity.ActionResult, error) {
	if err := d.steps.AddToCart(ctx, req.ProductName, entities); err != nil {
		return nil, err
	}
	return &entity.ActionResult{
		Message:  "Added the product to the shopping cart.",
		Entities: entities.Entities(),
	}, nil
}

func (d *Dispatcher) viewShoppingCart(ctx context.Context, entities *service.EntityCollector) (*entity.ActionResult, error) {
	cart, err := d.steps.ViewShoppingCart(ctx, entities)
	if err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("Your cart has %d items.", len(cart.Items))
	if cart.TotalPrice != "" {
		msg = fmt.Sprintf("Your cart has %d items, total %s.", len(cart.Items), cart.TotalPrice)
	}
	return &entity.ActionResult{Message: msg, Entities: entities.Entities()}, nil
}

func (d *Dispatcher) findNearbyStore(ctx context.Context, entities *service.EntityCollector) (*entity.ActionResult, error) {
	store, err := d.steps.FindNearbyStore(ctx, entities)
	if err != nil {
		return nil, err
	}

	msg := "The nearest store is " + store.StoreName + "."
	if store.Address != "" {
		msg = fmt.Sprintf("The nearest store is %s at %s.", store.StoreName, store.Address)
	}
	return &entity.ActionResult{Message: msg, Entities: entities.Entities()}, nil
}

func (d *Dispatcher) getLocationInStore(ctx context.Context, req entity.GetLocationInStoreRequest, entities *service.EntityCollector) (*entity.ActionResult, error) {
	if req.ProductName == "" {
		return nil, fmt.Errorf("%w: productName", entity.ErrMissingParameter)
	}
	if err := d.steps.SearchForProduct(ctx, req.ProductName); err != nil {
		return nil, err
	}
	if err := d.steps.GoToProductPage(ctx, req.ProductName, entities); err != nil {
		return nil, err
	}
	location, err := d.steps.GetLocationInStore(ctx, req.ProductName, entities)
	if err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("I could not find where %s is in the store.", req.ProductName)
	if location != "" {
		msg = fmt.Sprintf("%s is located at %s.", req.ProductName, location)
	}
	return &entity.ActionResult{Message: msg, Entities: entities.Entities()}, nil
}

func (d *Dispatcher) navigate(ctx context.Context, req entity.NavigateRequest) (*entity.ActionResult, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("%w: url", entity.ErrMissingParameter)
	}
	if err := d.browser.Navigate(ctx, req.URL); err != nil {
		return nil, err
	}
	if err := d.browser.AwaitPageLoad(ctx); err != nil {
		return nil, err
	}
	return &entity.ActionResult{Message: "Opened " + d.browser.CurrentURL()}, nil
}

func failure(err error) *entity.ActionResult {
	return &entity.ActionResult{
		Message: "Sorry, I could not do that: " + err.Error(),
		Error:   true,
	}
}
