package entity

import "time"

type ProgressPhase string

const (
	PhaseAction ProgressPhase = "action"
	PhaseEnd    ProgressPhase = "end"
)

// ProgressEvent is one lifecycle notification for a plan run.
type ProgressEvent struct {
	PlanID     string        `json:"planId"`
	PageState  string        `json:"pageState"`
	ActionName string        `json:"actionName,omitempty"`
	Phase      ProgressPhase `json:"phase"`
	Step       int           `json:"step,omitempty"`
	Screenshot string        `json:"screenshot,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}
