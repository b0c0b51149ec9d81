package entity

import (
	"fmt"
	"strings"
)

// HistoryEntry pairs the page state observed before an action with the
// action chosen for that state.
type HistoryEntry struct {
	State  PageState
	Action PlanAction
}

// History is append-only for the life of one plan run.
type History struct {
	entries []HistoryEntry
}

func (h *History) Append(state PageState, action PlanAction) {
	h.entries = append(h.entries, HistoryEntry{State: state, Action: action})
}

func (h *History) Len() int {
	return len(h.entries)
}

func (h *History) Entries() []HistoryEntry {
	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// LastAction returns nil before the first step.
func (h *History) LastAction() PlanAction {
	if len(h.entries) == 0 {
		return nil
	}
	return h.entries[len(h.entries)-1].Action
}

// Render produces the textual form handed to the interpreter.
func (h *History) Render() string {
	if len(h.entries) == 0 {
		return "No actions taken yet."
	}
	var sb strings.Builder
	for i, e := range h.entries {
		fmt.Fprintf(&sb, "Step %d: page=%s action=%s\n", i+1, e.State.Label(), DescribeAction(e.Action))
	}
	return sb.String()
}
