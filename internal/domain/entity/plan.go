package entity

import "time"

type PlanState string

const (
	PlanRunning               PlanState = "running"
	PlanAwaitingClarification PlanState = "awaiting_clarification"
	PlanCompletedState        PlanState = "completed"
	PlanFailed                PlanState = "failed"
)

type PlanResult struct {
	PlanID   string
	Goal     string
	State    PlanState
	Message  string
	Entities []NamedEntity
	History  []HistoryEntry
	Steps    int
}

// PlanRecord is the persisted summary of a finished run.
type PlanRecord struct {
	PlanID     string        `json:"planId"`
	Goal       string        `json:"goal"`
	State      PlanState     `json:"state"`
	Message    string        `json:"message,omitempty"`
	Entities   []NamedEntity `json:"entities,omitempty"`
	Actions    []string      `json:"actions,omitempty"`
	Steps      int           `json:"steps"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
}

func NewPlanRecord(res *PlanResult, startedAt, finishedAt time.Time) PlanRecord {
	rec := PlanRecord{
		PlanID:     res.PlanID,
		Goal:       res.Goal,
		State:      res.State,
		Message:    res.Message,
		Entities:   res.Entities,
		Steps:      res.Steps,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}
	for _, h := range res.History {
		rec.Actions = append(rec.Actions, DescribeAction(h.Action))
	}
	return rec
}
