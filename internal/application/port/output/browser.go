package output

import (
	"context"

	"commerce-agent/internal/domain/entity"
)

type BrowserPort interface {
	IsReady() bool

	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	EnterText(ctx context.Context, text, selector string) error

	GetHTMLFragments(ctx context.Context) ([]entity.HTMLFragment, error)
	Screenshot(ctx context.Context) (*entity.Screenshot, error)

	AwaitPageLoad(ctx context.Context) error
	AwaitPageInteraction(ctx context.Context) error
	WaitForSelector(ctx context.Context, selector string) error

	CurrentURL() string
	Close()
}
