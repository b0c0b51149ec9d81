package userinteraction

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"commerce-agent/internal/application/port/output"
	"commerce-agent/internal/domain/entity"

	"github.com/fatih/color"
)

var _ output.UserInteractionPort = (*ConsoleUserInteraction)(nil)

// ConsoleUserInteraction prints plan progress and results to a terminal and
// reads the shopper's answers from it.
type ConsoleUserInteraction struct {
	reader *bufio.Reader
	out    io.Writer
	mu     sync.Mutex

	readOnce sync.Once
	lines    chan readResult
}

type readResult struct {
	line string
	err  error
}

func NewConsoleUserInteraction() *ConsoleUserInteraction {
	return NewConsole(os.Stdin, color.Output)
}

func NewConsole(in io.Reader, out io.Writer) *ConsoleUserInteraction {
	return &ConsoleUserInteraction{
		reader: bufio.NewReader(in),
		out:    out,
		lines:  make(chan readResult),
	}
}

// ReadLine shows prompt and returns the next trimmed input line. io.EOF is
// returned once input is exhausted. A cancelled ctx returns immediately; a
// line typed afterwards goes to the next call.
func (u *ConsoleUserInteraction) ReadLine(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	u.mu.Lock()
	color.New(color.FgHiWhite, color.Bold).Fprint(u.out, prompt)
	u.mu.Unlock()

	u.readOnce.Do(func() { go u.readLines() })

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-u.lines:
		if r.err != nil && (r.err != io.EOF || r.line == "") {
			return "", r.err
		}
		return strings.TrimSpace(r.line), nil
	}
}

// readLines is the only reader of the input. Each line is handed over only
// when a ReadLine call is waiting for it.
func (u *ConsoleUserInteraction) readLines() {
	for {
		line, err := u.reader.ReadString('\n')
		u.lines <- readResult{line: line, err: err}
	}
}

func (u *ConsoleUserInteraction) AskQuestion(ctx context.Context, question string) (string, error) {
	u.mu.Lock()
	color.New(color.FgMagenta, color.Bold).Fprintf(u.out, "\n❓ %s\n", question)
	u.mu.Unlock()

	answer, err := u.ReadLine(ctx, "> ")
	if err != nil {
		return "", fmt.Errorf("failed to read user input: %w", err)
	}
	return answer, nil
}

func (u *ConsoleUserInteraction) Emit(_ context.Context, event entity.ProgressEvent) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if event.Phase == entity.PhaseEnd {
		c := color.New(color.FgGreen, color.Bold)
		switch event.PageState {
		case "failed":
			c = color.New(color.FgRed, color.Bold)
		case "awaiting_clarification":
			c = color.New(color.FgMagenta, color.Bold)
		}
		c.Fprintf(u.out, "\n━━━ Plan %s after %d steps ━━━\n", strings.ReplaceAll(event.PageState, "_", " "), event.Step)
		return
	}

	color.New(color.FgCyan, color.Bold).Fprintf(u.out, "\n━━━ Step %d ━━━\n", event.Step)
	color.New(color.Faint).Fprintf(u.out, "   page: %s\n", event.PageState)

	icon, label := actionDisplay(entity.ActionName(event.ActionName))
	color.New(color.FgYellow, color.Bold).Fprintf(u.out, "%s %s\n", icon, label)
}

func (u *ConsoleUserInteraction) ShowResult(_ context.Context, result *entity.ActionResult) {
	if result == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	if result.Error {
		color.New(color.FgRed).Fprint(u.out, "❌ ")
	} else {
		color.New(color.FgGreen).Fprint(u.out, "✓ ")
	}
	fmt.Fprintln(u.out, result.Message)

	dim := color.New(color.Faint)
	for _, e := range result.Entities {
		dim.Fprintf(u.out, "   • %s [%s]%s\n", e.Name, strings.Join(e.Types, ", "), formatMetadata(e.Metadata))
	}
	if result.PlanID != "" {
		dim.Fprintf(u.out, "   plan %s (%s)\n", result.PlanID, result.State)
	}
}

func (u *ConsoleUserInteraction) ShowError(_ context.Context, err error) {
	if err == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	color.New(color.FgRed).Fprint(u.out, "❌ Error: ")
	color.New(color.Faint).Fprintln(u.out, truncate(err.Error(), 300))
}

func actionDisplay(name entity.ActionName) (string, string) {
	displays := map[entity.ActionName][2]string{
		entity.ActionSearchForProduct:   {"🔎", "Search"},
		entity.ActionGoToProductPage:    {"🌐", "Open product"},
		entity.ActionAddToCart:          {"🛒", "Add to cart"},
		entity.ActionGetLocationInStore: {"📍", "Find in store"},
		entity.ActionFindNearbyStore:    {"🏬", "Nearby store"},
		entity.ActionViewShoppingCart:   {"🧾", "View cart"},
		entity.ActionPlanCompleted:      {"✅", "Done"},
		entity.ActionClarifyBuyAction:   {"❓", "Clarify"},
	}

	if display, ok := displays[name]; ok {
		return display[0], display[1]
	}
	return "🔧", string(name)
}

func formatMetadata(meta map[string]any) string {
	if len(meta) == 0 {
		return ""
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, meta[k]))
	}
	return " " + truncate(strings.Join(parts, " "), 120)
}

// truncate keeps the first maxLen runes of s.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen]) + "..."
}
