package input

import (
	"context"

	"commerce-agent/internal/domain/entity"
)

type ActionDispatcher interface {
	Dispatch(ctx context.Context, action entity.UserAction) (*entity.ActionResult, error)
}
