package commerce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"commerce-agent/internal/application/port/output"
	"commerce-agent/internal/application/service"
	"commerce-agent/internal/domain/entity"
)

// fakeBrowser records every call as "method:arg".
type fakeBrowser struct {
	ready    bool
	url      string
	calls    []string
	clickErr error
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{ready: true, url: "https://shop.example/"}
}

func (b *fakeBrowser) record(call string) { b.calls = append(b.calls, call) }

func (b *fakeBrowser) IsReady() bool { return b.ready }

func (b *fakeBrowser) Navigate(_ context.Context, url string) error {
	b.record("navigate:" + url)
	b.url = url
	return nil
}

func (b *fakeBrowser) Click(_ context.Context, selector string) error {
	b.record("click:" + selector)
	return b.clickErr
}

func (b *fakeBrowser) EnterText(_ context.Context, text, selector string) error {
	b.record("enter:" + text + "@" + selector)
	return nil
}

func (b *fakeBrowser) GetHTMLFragments(context.Context) ([]entity.HTMLFragment, error) {
	b.record("fragments")
	return []entity.HTMLFragment{{Content: "<main></main>"}}, nil
}

func (b *fakeBrowser) Screenshot(context.Context) (*entity.Screenshot, error) {
	b.record("screenshot")
	return nil, errors.New("no display")
}

func (b *fakeBrowser) AwaitPageLoad(context.Context) error {
	b.record("awaitLoad")
	return nil
}

func (b *fakeBrowser) AwaitPageInteraction(context.Context) error {
	b.record("awaitInteraction")
	return nil
}

func (b *fakeBrowser) WaitForSelector(_ context.Context, selector string) error {
	b.record("wait:" + selector)
	return nil
}

func (b *fakeBrowser) CurrentURL() string { return b.url }
func (b *fakeBrowser) Close()             {}

// actions drops the page capture calls.
func (b *fakeBrowser) actions() []string {
	var out []string
	for _, c := range b.calls {
		if c == "fragments" || c == "screenshot" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// componentInterpreter answers GetPageComponent from a fixed table, going
// through JSON like the real interpreter does.
type componentInterpreter struct {
	components map[entity.ComponentName]any
	requests   []output.ComponentRequest
	next       []entity.PlanAction
}

func (c *componentInterpreter) GetPageState(context.Context, string, []entity.HTMLFragment) (*entity.PageState, error) {
	return &entity.PageState{PageType: "page"}, nil
}

func (c *componentInterpreter) GetNextPageAction(context.Context, output.NextActionRequest) (entity.PlanAction, error) {
	if len(c.next) == 0 {
		return nil, fmt.Errorf("%w: nothing left to do", entity.ErrInterpreter)
	}
	action := c.next[0]
	c.next = c.next[1:]
	return action, nil
}

func (c *componentInterpreter) PredictEndState(context.Context, string) (string, error) {
	return "", nil
}

func (c *componentInterpreter) GetPageComponent(_ context.Context, req output.ComponentRequest, out any) error {
	c.requests = append(c.requests, req)
	v, ok := c.components[req.Component]
	if !ok {
		return fmt.Errorf("%w: no %s on page", entity.ErrInterpreter, req.Component)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

type stubPlanner struct {
	result *entity.PlanResult
	err    error
	// partial is returned alongside err when set.
	partial *entity.PlanResult
	goals   []string
	add     []entity.NamedEntity
}

func (p *stubPlanner) Run(_ context.Context, planID, goal string, entities *service.EntityCollector) (*entity.PlanResult, error) {
	p.goals = append(p.goals, goal)
	for _, e := range p.add {
		entities.AddEntity(e.Name, e.Types, e.Metadata)
	}
	if p.err != nil {
		if p.partial == nil {
			return nil, p.err
		}
		res := *p.partial
		res.PlanID = planID
		res.Goal = goal
		res.Entities = entities.Entities()
		return &res, p.err
	}
	res := *p.result
	res.PlanID = planID
	res.Goal = goal
	res.Entities = entities.Entities()
	return &res, nil
}

type memoryRuns struct {
	records []entity.PlanRecord
}

func (m *memoryRuns) Save(_ context.Context, rec entity.PlanRecord) error {
	m.records = append(m.records, rec)
	return nil
}

func (m *memoryRuns) Get(_ context.Context, planID string) (*entity.PlanRecord, error) {
	for _, r := range m.records {
		if r.PlanID == planID {
			return &r, nil
		}
	}
	return nil, errors.New("not found")
}

func (m *memoryRuns) List(context.Context) ([]entity.PlanRecord, error) {
	return m.records, nil
}

func hasPrefix(calls []string, prefix string) bool {
	for _, c := range calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}
