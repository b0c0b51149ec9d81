package plan

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"commerce-agent/internal/application/port/output"
	"commerce-agent/internal/application/service"
	"commerce-agent/internal/domain/entity"
)

type mockBrowser struct {
	screenshotErr error
	fragmentsErr  error
	fragmentCalls int
}

func (b *mockBrowser) IsReady() bool                                   { return true }
func (b *mockBrowser) Navigate(context.Context, string) error          { return nil }
func (b *mockBrowser) Click(context.Context, string) error             { return nil }
func (b *mockBrowser) EnterText(context.Context, string, string) error { return nil }
func (b *mockBrowser) AwaitPageLoad(context.Context) error             { return nil }
func (b *mockBrowser) AwaitPageInteraction(context.Context) error      { return nil }
func (b *mockBrowser) WaitForSelector(context.Context, string) error   { return nil }
func (b *mockBrowser) CurrentURL() string                              { return "https://shop.example" }
func (b *mockBrowser) Close()                                          {}

func (b *mockBrowser) GetHTMLFragments(context.Context) ([]entity.HTMLFragment, error) {
	b.fragmentCalls++
	if b.fragmentsErr != nil {
		return nil, b.fragmentsErr
	}
	return []entity.HTMLFragment{{FrameID: 0, Index: 0, Content: fmt.Sprintf("<div>page %d</div>", b.fragmentCalls)}}, nil
}

func (b *mockBrowser) Screenshot(context.Context) (*entity.Screenshot, error) {
	if b.screenshotErr != nil {
		return nil, b.screenshotErr
	}
	return &entity.Screenshot{Data: []byte{0xff, 0xd8}, Format: "jpeg"}, nil
}

// scriptedInterpreter replays a fixed list of next-action responses. A nil
// action with a non-nil error at position i makes step i+1 fail.
type scriptedInterpreter struct {
	actions    []entity.PlanAction
	errs       []error
	pageTypes  []string
	pageErr    error
	endState   string
	endErr     error
	requests   []output.NextActionRequest
	stateCalls int
}

func (s *scriptedInterpreter) GetPageState(_ context.Context, _ string, _ []entity.HTMLFragment) (*entity.PageState, error) {
	s.stateCalls++
	if s.pageErr != nil {
		return nil, s.pageErr
	}
	pageType := "page"
	if i := s.stateCalls - 1; i < len(s.pageTypes) {
		pageType = s.pageTypes[i]
	}
	return &entity.PageState{PageType: pageType}, nil
}

func (s *scriptedInterpreter) GetNextPageAction(_ context.Context, req output.NextActionRequest) (entity.PlanAction, error) {
	i := len(s.requests)
	s.requests = append(s.requests, req)
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i >= len(s.actions) {
		return nil, fmt.Errorf("%w: script exhausted", entity.ErrInterpreter)
	}
	return s.actions[i], nil
}

func (s *scriptedInterpreter) PredictEndState(context.Context, string) (string, error) {
	return s.endState, s.endErr
}

func (s *scriptedInterpreter) GetPageComponent(context.Context, output.ComponentRequest, any) error {
	return errors.New("not used")
}

type recordingActions struct {
	executed []entity.PlanAction
	failOn   entity.ActionName
	failErr  error
}

func (r *recordingActions) Execute(_ context.Context, action entity.PlanAction, entities *service.EntityCollector) error {
	if r.failOn != "" && action.Name() == r.failOn {
		return r.failErr
	}
	r.executed = append(r.executed, action)
	switch a := action.(type) {
	case entity.GoToProductPage:
		entities.AddEntity(a.ProductName, []string{entity.EntityTypeProduct}, nil)
	case entity.AddToCart:
		entities.AddEntity(a.ProductName, []string{entity.EntityTypeProduct}, map[string]any{"inCart": true})
	}
	return nil
}

type recordingProgress struct {
	mu     sync.Mutex
	events []entity.ProgressEvent
}

func (p *recordingProgress) Emit(_ context.Context, event entity.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingProgress) last() entity.ProgressEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

func (p *recordingProgress) count(phase entity.ProgressPhase) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Phase == phase {
			n++
		}
	}
	return n
}
