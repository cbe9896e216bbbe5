package hostsock

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/neilberkman/devlog/internal/core/engine"
	"github.com/neilberkman/devlog/internal/core/lifecycle"
	"github.com/neilberkman/devlog/internal/core/models"
	"github.com/neilberkman/devlog/internal/core/store"
)

// Available reports whether a recorder is listening on path
func Available(path string) bool {
	conn, err := net.DialTimeout("unix", path, DialTimeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Client forwards Backend calls to a running recorder
type Client struct {
	path string
}

// NewClient returns a client for the socket at path. No connection is made
// until the first call.
func NewClient(path string) *Client {
	return &Client{path: path}
}

// Call sends one request and waits for its response
func (c *Client) Call(ctx context.Context, req Request) (*Response, error) {
	var d net.Dialer
	dialCtx, cancel := context.WithTimeout(ctx, DialTimeout*4)
	conn, err := d.DialContext(dialCtx, "unix", c.path)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("recorder not reachable: %w", err)
	}
	defer func() { _ = conn.Close() }()

	deadline := time.Now().Add(CallTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = conn.SetDeadline(deadline)

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("invalid response: %w", err)
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, req Request) (*Response, error) {
	resp, err := c.Call(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.OK {
		return resp, nil
	}
	switch {
	case resp.NotFound:
		return resp, fmt.Errorf("%s: %w", resp.Error, store.ErrNotFound)
	case resp.Inactive:
		return resp, lifecycle.ErrNoActiveSession
	default:
		return resp, errors.New(resp.Error)
	}
}

func (c *Client) send(ctx context.Context, req Request) error {
	_, err := c.do(ctx, req)
	return err
}

// Ping checks that the recorder answers requests
func (c *Client) Ping(ctx context.Context) error {
	return c.send(ctx, Request{Op: OpPing})
}

// StartSession implements engine.Backend
func (c *Client) StartSession(ctx context.Context, description string) (models.Session, error) {
	resp, err := c.do(ctx, Request{Op: OpSessionStart, Description: description})
	if resp != nil && resp.Session != nil {
		return *resp.Session, err
	}
	if err == nil {
		err = errors.New("recorder returned no session")
	}
	return models.Session{}, err
}

// ActivateSession implements engine.Backend
func (c *Client) ActivateSession(ctx context.Context, id string) error {
	return c.send(ctx, Request{Op: OpSessionActivate, SessionID: id})
}

// CloseSession implements engine.Backend
func (c *Client) CloseSession(ctx context.Context) error {
	return c.send(ctx, Request{Op: OpSessionClose})
}

// DeleteSession implements engine.Backend
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.send(ctx, Request{Op: OpSessionDelete, SessionID: id})
}

// AddAction implements engine.Backend
func (c *Client) AddAction(ctx context.Context, sessionID string, action models.Action) error {
	if action.Type == models.ActionNote {
		return c.send(ctx, Request{Op: OpNote, SessionID: sessionID, Text: action.Text})
	}
	return c.send(ctx, Request{Op: OpAction, SessionID: sessionID, Action: &action})
}

// RecordCommand implements engine.Backend
func (c *Client) RecordCommand(ctx context.Context, command, output string, exitCode int) error {
	return c.send(ctx, Request{Op: OpCommand, Command: command, Output: output, ExitCode: exitCode})
}

// TerminalStart implements engine.Backend
func (c *Client) TerminalStart(ctx context.Context, terminalID, command string) error {
	return c.send(ctx, Request{Op: OpTerminalStart, TerminalID: terminalID, Command: command})
}

// TerminalEnd implements engine.Backend
func (c *Client) TerminalEnd(ctx context.Context, terminalID string, exitCode int, output string) error {
	return c.send(ctx, Request{Op: OpTerminalEnd, TerminalID: terminalID, ExitCode: exitCode, Output: output})
}

// DeleteAction implements engine.Backend
func (c *Client) DeleteAction(ctx context.Context, sessionID string, index int) error {
	return c.send(ctx, Request{Op: OpLedgerDelete, SessionID: sessionID, Index: index})
}

// MoveAction implements engine.Backend
func (c *Client) MoveAction(ctx context.Context, sourceID string, sourceIndex int, destID string, destIndex int) error {
	return c.send(ctx, Request{Op: OpLedgerMove, SessionID: sourceID, Index: sourceIndex, DestID: destID, DestIndex: destIndex})
}

// ReorderAction implements engine.Backend
func (c *Client) ReorderAction(ctx context.Context, sessionID string, oldIndex, newIndex int) error {
	return c.send(ctx, Request{Op: OpLedgerReorder, SessionID: sessionID, Index: oldIndex, DestIndex: newIndex})
}

// SetNotes implements engine.Backend
func (c *Client) SetNotes(ctx context.Context, sessionID, notes string) error {
	return c.send(ctx, Request{Op: OpSessionNotes, SessionID: sessionID, Text: notes})
}

var _ engine.Backend = (*Client)(nil)
