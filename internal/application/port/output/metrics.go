package output

import (
	"time"

	"commerce-agent/internal/domain/entity"
)

type MetricsPort interface {
	ObserveInterpreterCall(operation string, d time.Duration, err error)
	ObserveStep(action entity.ActionName)
	ObservePlan(state entity.PlanState, steps int, d time.Duration)
}
