package hostsock

import (
	"time"

	"github.com/neilberkman/devlog/internal/core/models"
)

// Socket timeouts
const (
	// DialTimeout bounds detection of a running recorder
	DialTimeout = 250 * time.Millisecond

	// ReadTimeout bounds reading one request or response line
	ReadTimeout = 10 * time.Second

	// CallTimeout bounds a whole request. Starting a session may wait on an
	// LLM namer and saves may wait on the user confirming a change.
	CallTimeout = 2 * time.Minute
)

// Op names a request
type Op string

const (
	OpTerminalStart   Op = "terminal.start"
	OpTerminalEnd     Op = "terminal.end"
	OpNote            Op = "note"
	OpAction          Op = "action"
	OpCommand         Op = "command"
	OpSessionStart    Op = "session.start"
	OpSessionActivate Op = "session.activate"
	OpSessionClose    Op = "session.close"
	OpSessionDelete   Op = "session.delete"
	OpSessionNotes    Op = "session.notes"
	OpLedgerDelete    Op = "ledger.delete"
	OpLedgerMove      Op = "ledger.move"
	OpLedgerReorder   Op = "ledger.reorder"
	OpPing            Op = "ping"
)

// Request is one newline-terminated JSON message from a client
type Request struct {
	Op          Op             `json:"op"`
	SessionID   string         `json:"sessionId,omitempty"`
	Description string         `json:"description,omitempty"`
	TerminalID  string         `json:"terminalId,omitempty"`
	Command     string         `json:"command,omitempty"`
	ExitCode    int            `json:"exitCode,omitempty"`
	Output      string         `json:"output,omitempty"`
	Text        string         `json:"text,omitempty"`
	Action      *models.Action `json:"action,omitempty"`
	Index       int            `json:"index,omitempty"`
	DestID      string         `json:"destId,omitempty"`
	DestIndex   int            `json:"destIndex,omitempty"`
}

// Response answers exactly one Request
type Response struct {
	OK       bool            `json:"ok"`
	Error    string          `json:"error,omitempty"`
	NotFound bool            `json:"notFound,omitempty"`
	Inactive bool            `json:"inactive,omitempty"`
	Session  *models.Session `json:"session,omitempty"`
}
