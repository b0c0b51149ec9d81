package output

import (
	"context"

	"commerce-agent/internal/domain/entity"
)

// ProgressSink receives plan lifecycle events. Delivery is fire-and-forget.
type ProgressSink interface {
	Emit(ctx context.Context, event entity.ProgressEvent)
}
