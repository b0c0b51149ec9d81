package output

import (
	"context"

	"commerce-agent/internal/domain/entity"
)

type UserInteractionPort interface {
	ProgressSink

	AskQuestion(ctx context.Context, question string) (string, error)
	ShowResult(ctx context.Context, result *entity.ActionResult)
	ShowError(ctx context.Context, err error)
}
