package output

import (
	"context"

	"commerce-agent/internal/domain/entity"
)

type RunStore interface {
	Save(ctx context.Context, rec entity.PlanRecord) error
	Get(ctx context.Context, planID string) (*entity.PlanRecord, error)
	List(ctx context.Context) ([]entity.PlanRecord, error)
}
