package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/tmc/langchaingo/llms"
)

type recordingModel struct {
	answer   string
	messages []llms.MessageContent
	opts     llms.CallOptions
}

func (m *recordingModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	for _, o := range options {
		o(&m.opts)
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.answer}}}, nil
}

func (m *recordingModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return m.answer, nil
}

func TestNewTitleRequest(t *testing.T) {
	req := NewTitleRequest("  fix the ENA-42 login redirect  ", 48)

	if !strings.Contains(req.System, "at most 48 characters") {
		t.Errorf("System = %q, want the length limit", req.System)
	}
	if req.Description != "Session description:\nfix the ENA-42 login redirect" {
		t.Errorf("Description = %q", req.Description)
	}
	if req.MaxTokens != 28 {
		t.Errorf("MaxTokens = %d, want 28", req.MaxTokens)
	}
	if len(req.Stop) == 0 || req.Stop[0] != "\n\n" {
		t.Errorf("Stop = %q, want a blank-line stop first", req.Stop)
	}
}

func TestGenerateTitle(t *testing.T) {
	m := &recordingModel{answer: "  Fix ENA-42 login redirect\n"}
	req := NewTitleRequest("fix the ENA-42 login redirect", 48)

	got, err := generateTitle(context.Background(), m, req)
	if err != nil {
		t.Fatalf("generateTitle() error = %v", err)
	}
	if got != "Fix ENA-42 login redirect" {
		t.Errorf("generateTitle() = %q, want %q", got, "Fix ENA-42 login redirect")
	}

	if len(m.messages) != 2 {
		t.Fatalf("sent %d messages, want 2", len(m.messages))
	}
	if m.messages[0].Role != llms.ChatMessageTypeSystem || m.messages[1].Role != llms.ChatMessageTypeHuman {
		t.Errorf("roles = %s, %s; want system, human", m.messages[0].Role, m.messages[1].Role)
	}
	if m.opts.MaxTokens != req.MaxTokens || m.opts.Temperature != req.Temperature {
		t.Errorf("options = %d tokens at %v, want %d at %v", m.opts.MaxTokens, m.opts.Temperature, req.MaxTokens, req.Temperature)
	}
	if len(m.opts.StopWords) != len(req.Stop) {
		t.Errorf("StopWords = %q, want %q", m.opts.StopWords, req.Stop)
	}
}

func TestGenerateTitle_NoChoices(t *testing.T) {
	m := &emptyModel{}
	if _, err := generateTitle(context.Background(), m, NewTitleRequest("x", 48)); err == nil {
		t.Error("generateTitle() error = nil, want error")
	}
}

type emptyModel struct{ recordingModel }

func (m *emptyModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	return &llms.ContentResponse{}, nil
}
