package progress

import (
	"context"
	"sync"

	"commerce-agent/internal/application/port/output"
	"commerce-agent/internal/domain/entity"
)

var _ output.ProgressSink = (*Hub)(nil)

const (
	defaultMaxPlans = 100
	subscriberQueue = 32
)

type PlanSummary struct {
	PlanID    string               `json:"planId"`
	Events    int                  `json:"events"`
	PageState string               `json:"pageState"`
	Phase     entity.ProgressPhase `json:"phase"`
	Finished  bool                 `json:"finished"`
}

// Hub keeps the events of recent plans in memory and fans them out to live
// subscribers. Old plans are evicted once MaxPlans is exceeded.
type Hub struct {
	mu       sync.Mutex
	events   map[string][]entity.ProgressEvent
	order    []string
	subs     map[string]map[chan entity.ProgressEvent]struct{}
	maxPlans int
}

func NewHub(maxPlans int) *Hub {
	if maxPlans <= 0 {
		maxPlans = defaultMaxPlans
	}
	return &Hub{
		events:   make(map[string][]entity.ProgressEvent),
		subs:     make(map[string]map[chan entity.ProgressEvent]struct{}),
		maxPlans: maxPlans,
	}
}

func (h *Hub) Emit(_ context.Context, event entity.ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.events[event.PlanID]; !ok {
		h.order = append(h.order, event.PlanID)
		h.evict()
	}
	h.events[event.PlanID] = append(h.events[event.PlanID], event)

	for ch := range h.subs[event.PlanID] {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *Hub) evict() {
	for len(h.order) > h.maxPlans {
		oldest := h.order[0]
		h.order = h.order[1:]
		delete(h.events, oldest)
	}
}

func (h *Hub) Events(planID string) []entity.ProgressEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]entity.ProgressEvent(nil), h.events[planID]...)
}

// Plans summarizes every retained plan in the order it was first seen.
func (h *Hub) Plans() []PlanSummary {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]PlanSummary, 0, len(h.order))
	for _, id := range h.order {
		events := h.events[id]
		s := PlanSummary{PlanID: id, Events: len(events)}
		if n := len(events); n > 0 {
			last := events[n-1]
			s.PageState = last.PageState
			s.Phase = last.Phase
			s.Finished = last.Phase == entity.PhaseEnd
		}
		out = append(out, s)
	}
	return out
}

// Subscribe returns the events recorded so far together with a channel for
// later ones. The backlog and the subscription are taken atomically.
func (h *Hub) Subscribe(planID string) ([]entity.ProgressEvent, <-chan entity.ProgressEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan entity.ProgressEvent, subscriberQueue)
	if h.subs[planID] == nil {
		h.subs[planID] = make(map[chan entity.ProgressEvent]struct{})
	}
	h.subs[planID][ch] = struct{}{}
	backlog := append([]entity.ProgressEvent(nil), h.events[planID]...)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[planID], ch)
			if len(h.subs[planID]) == 0 {
				delete(h.subs, planID)
			}
		})
	}
	return backlog, ch, cancel
}
