package llm

import (
	"fmt"
	"strings"
)

// TitleRequest is one session-naming call. Every provider sends System as
// its instruction and Description as the user turn, and samples a single
// short line.
type TitleRequest struct {
	System      string
	Description string
	MaxTokens   int
	Temperature float64
	Stop        []string
}

// Title answers stop at the first blank line or when the model starts
// echoing the prompt back.
var titleStop = []string{"\n\n", "Description:", "Session description:"}

// NewTitleRequest builds the request for naming a session described by
// description in at most maxLength characters.
func NewTitleRequest(description string, maxLength int) TitleRequest {
	return TitleRequest{
		System:      sessionNameSystem(maxLength),
		Description: "Session description:\n" + strings.TrimSpace(description),
		// Roughly four characters per token, with room for a stray prefix
		MaxTokens:   maxLength/4 + 16,
		Temperature: 0.2,
		Stop:        titleStop,
	}
}

func sessionNameSystem(maxLength int) string {
	return fmt.Sprintf(`You name a developer's work sessions for a log of their activity.
Reply with a short title (at most %d characters) that says what is being worked on.
Use specific names of components, files or issue IDs when the description mentions them.
Reply with the title only, on one line, no quotes and no explanation.`, maxLength)
}
