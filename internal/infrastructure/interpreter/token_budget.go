package interpreter

import (
	"fmt"
	"strings"
	"sync"

	"commerce-agent/internal/domain/entity"

	"github.com/pkoukk/tiktoken-go"
)

// cl100k_base matches the GPT-4 family most OpenRouter models are billed on.
const encodingName = "cl100k_base"

var (
	encoding     *tiktoken.Tiktoken
	encodingErr  error
	encodingOnce sync.Once
)

func loadEncoding() (*tiktoken.Tiktoken, error) {
	encodingOnce.Do(func() {
		encoding, encodingErr = tiktoken.GetEncoding(encodingName)
	})
	return encoding, encodingErr
}

// TokenBudget caps how much page content goes into a single prompt.
type TokenBudget struct {
	Limit int
	count func(string) int
}

// NewTokenBudget counts with tiktoken when the encoding can be loaded and
// falls back to a four-characters-per-token estimate otherwise.
func NewTokenBudget(limit int) *TokenBudget {
	enc, err := loadEncoding()
	if err != nil {
		return NewApproxTokenBudget(limit)
	}
	return &TokenBudget{
		Limit: limit,
		count: func(s string) int {
			return len(enc.Encode(s, nil, nil))
		},
	}
}

func NewApproxTokenBudget(limit int) *TokenBudget {
	return &TokenBudget{Limit: limit, count: approxTokens}
}

func approxTokens(s string) int {
	return (len(s) + 3) / 4
}

func (b *TokenBudget) Count(s string) int {
	if b == nil || b.count == nil {
		return approxTokens(s)
	}
	return b.count(s)
}

// Fit renders fragments in order until the limit is reached and reports how
// many were included. The first fragment is always included.
func (b *TokenBudget) Fit(fragments []entity.HTMLFragment) (string, int) {
	var sb strings.Builder
	used := 0
	for i, f := range fragments {
		block := renderFragment(f)
		cost := b.Count(block)
		if i > 0 && b != nil && b.Limit > 0 && used+cost > b.Limit {
			return sb.String(), i
		}
		sb.WriteString(block)
		used += cost
	}
	return sb.String(), len(fragments)
}

func renderFragment(f entity.HTMLFragment) string {
	return fmt.Sprintf("<!-- frame %d fragment %d -->\n%s\n", f.FrameID, f.Index, f.Content)
}
