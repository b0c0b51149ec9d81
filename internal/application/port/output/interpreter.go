package output

import (
	"context"

	"commerce-agent/internal/domain/entity"
)

type NextActionRequest struct {
	Goal        string
	Fragments   []entity.HTMLFragment
	Screenshot  *entity.Screenshot
	HistoryText string
	LastAction  entity.PlanAction
}

type ComponentRequest struct {
	Component  entity.ComponentName
	Hint       string
	Fragments  []entity.HTMLFragment
	Screenshot *entity.Screenshot
}

// PageInterpreterPort turns page content into structured answers. Every
// failure wraps entity.ErrInterpreter.
type PageInterpreterPort interface {
	GetPageState(ctx context.Context, goal string, fragments []entity.HTMLFragment) (*entity.PageState, error)
	GetNextPageAction(ctx context.Context, req NextActionRequest) (entity.PlanAction, error)
	PredictEndState(ctx context.Context, goal string) (string, error)
	GetPageComponent(ctx context.Context, req ComponentRequest, out any) error
}
