package commerce

import (
	"fmt"
	"strings"
)

// FollowUpRequest builds the fresh buyProduct request that continues a plan
// which stopped to ask the user a question. The new run starts over with the
// answer folded into the goal; no state is carried across runs.
func FollowUpRequest(original, question, answer string) string {
	original = strings.TrimSpace(original)
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return original
	}
	if question == "" {
		return fmt.Sprintf("%s (%s)", original, answer)
	}
	return fmt.Sprintf("%s\nWhen asked %q the user answered: %s", original, strings.TrimSpace(question), answer)
}
