package engine

import (
	"context"

	"github.com/neilberkman/devlog/internal/core/models"
)

// Backend is every mutation the user surfaces (CLI, TUI, MCP) can request.
// The in-process Engine implements it directly; hostsock.Client forwards it
// to a running recorder so that recorder's ledger stays authoritative.
type Backend interface {
	StartSession(ctx context.Context, description string) (models.Session, error)
	ActivateSession(ctx context.Context, id string) error
	CloseSession(ctx context.Context) error
	DeleteSession(ctx context.Context, id string) error

	// AddAction appends to sessionID, or to the active session when empty
	AddAction(ctx context.Context, sessionID string, action models.Action) error
	RecordCommand(ctx context.Context, command, output string, exitCode int) error

	TerminalStart(ctx context.Context, terminalID, command string) error
	TerminalEnd(ctx context.Context, terminalID string, exitCode int, output string) error

	DeleteAction(ctx context.Context, sessionID string, index int) error
	MoveAction(ctx context.Context, sourceID string, sourceIndex int, destID string, destIndex int) error
	ReorderAction(ctx context.Context, sessionID string, oldIndex, newIndex int) error
	SetNotes(ctx context.Context, sessionID, notes string) error
}
