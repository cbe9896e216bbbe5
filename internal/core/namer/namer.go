package namer

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/neilberkman/devlog/internal/core/llm"
	"github.com/neilberkman/devlog/internal/core/log"
)

const (
	// MaxNameLength bounds generated session names
	MaxNameLength = 48
	maxWords      = 6
	untitled      = "Untitled session"
)

// Namer derives a short display name from a session description
type Namer interface {
	Name(ctx context.Context, description string) (string, error)
}

// Heuristic names a session from the first words of its description
type Heuristic struct{}

// Name implements Namer. It never fails.
func (Heuristic) Name(_ context.Context, description string) (string, error) {
	return HeuristicName(description), nil
}

// HeuristicName title-cases the first six words of description, capped at
// MaxNameLength characters.
func HeuristicName(description string) string {
	words := strings.Fields(description)
	if len(words) == 0 {
		return untitled
	}
	if len(words) > maxWords {
		words = words[:maxWords]
	}

	var b strings.Builder
	for _, w := range words {
		w = titleWord(w)
		if b.Len() > 0 {
			if utf8.RuneCountInString(b.String())+1+utf8.RuneCountInString(w) > MaxNameLength {
				break
			}
			b.WriteByte(' ')
		}
		b.WriteString(w)
	}

	name := b.String()
	if r := []rune(name); len(r) > MaxNameLength {
		name = string(r[:MaxNameLength])
	}
	return name
}

func titleWord(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	if r == utf8.RuneError {
		return w
	}
	return string(unicode.ToUpper(r)) + w[size:]
}

// LLM names sessions with a language model and falls back to the heuristic
// when generation fails or returns nothing usable.
type LLM struct {
	provider llm.Provider
}

// NewLLM creates a namer backed by provider
func NewLLM(provider llm.Provider) *LLM {
	return &LLM{provider: provider}
}

// Name implements Namer
func (n *LLM) Name(ctx context.Context, description string) (string, error) {
	if strings.TrimSpace(description) == "" {
		return untitled, nil
	}

	raw, err := n.provider.GenerateTitle(ctx, llm.NewTitleRequest(description, MaxNameLength))
	if err != nil {
		log.Warn().Err(err).Str("provider", n.provider.Name()).Msg("session naming failed, using heuristic")
		return HeuristicName(description), nil
	}

	name := llm.CleanTitle(raw, MaxNameLength)
	if name == "" {
		return HeuristicName(description), nil
	}
	return name, nil
}

// New returns the LLM namer for a configured provider, or the heuristic
// namer when provider is nil.
func New(provider llm.Provider) Namer {
	if provider == nil {
		return Heuristic{}
	}
	return NewLLM(provider)
}
