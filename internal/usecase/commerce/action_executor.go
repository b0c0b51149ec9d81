package commerce

import (
	"context"
	"fmt"

	"commerce-agent/internal/application/service"
	"commerce-agent/internal/domain/entity"
	"commerce-agent/internal/usecase/plan"
)

var _ plan.ActionExecutor = (*ActionExecutor)(nil)

// ActionExecutor maps each non-terminal plan action onto its browser sequence.
type ActionExecutor struct {
	steps *Steps
}

func NewActionExecutor(steps *Steps) *ActionExecutor {
	return &ActionExecutor{steps: steps}
}

func (x *ActionExecutor) Execute(ctx context.Context, action entity.PlanAction, entities *service.EntityCollector) error {
	if entity.IsTerminal(action) {
		return fmt.Errorf("%s is terminal and has no browser sequence", action.Name())
	}

	switch a := action.(type) {
	case entity.SearchForProduct:
		return x.steps.SearchForProduct(ctx, a.ProductName)
	case entity.GoToProductPage:
		return x.steps.GoToProductPage(ctx, a.ProductName, entities)
	case entity.AddToCart:
		return x.steps.AddToCart(ctx, a.ProductName, entities)
	case entity.GetLocationInStore:
		_, err := x.steps.GetLocationInStore(ctx, a.ProductName, entities)
		return err
	case entity.FindNearbyStore:
		_, err := x.steps.FindNearbyStore(ctx, entities)
		return err
	case entity.ViewShoppingCart:
		_, err := x.steps.ViewShoppingCart(ctx, entities)
		return err
	default:
		return fmt.Errorf("%w: %T", entity.ErrUnknownAction, action)
	}
}
