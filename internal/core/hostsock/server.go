package hostsock

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/neilberkman/devlog/internal/core/engine"
	"github.com/neilberkman/devlog/internal/core/lifecycle"
	"github.com/neilberkman/devlog/internal/core/log"
	"github.com/neilberkman/devlog/internal/core/models"
	"github.com/neilberkman/devlog/internal/core/store"
)

// Server accepts one request per connection and applies it to a Backend
type Server struct {
	path     string
	backend  engine.Backend
	listener net.Listener
	wg       sync.WaitGroup
}

// Listen binds the unix socket at path. A stale socket left by a crashed
// recorder is replaced; a live one is an error.
func Listen(path string, backend engine.Backend) (*Server, error) {
	if Available(path) {
		return nil, fmt.Errorf("a recorder is already listening on %s", path)
	}
	_ = os.Remove(path)

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", path, err)
	}
	if err := os.Chmod(path, 0600); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to restrict socket permissions")
	}

	log.Info().Str("socket", path).Msg("recorder listening")
	return &Server{path: path, backend: backend, listener: listener}, nil
}

// Path returns the socket path
func (s *Server) Path() string {
	return s.path
}

// Close stops listening and removes the socket file. Use it when Serve was
// never started.
func (s *Server) Close() error {
	err := s.listener.Close()
	_ = os.Remove(s.path)
	return err
}

// Serve accepts connections until ctx is done
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				_ = os.Remove(s.path)
				return nil
			}
			log.Warn().Err(err).Msg("accept error (continuing)")
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()

	_ = conn.SetReadDeadline(time.Now().Add(ReadTimeout))
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil && len(line) == 0 {
		log.Debug().Err(err).Msg("read error")
		return
	}

	var req Request
	var resp Response
	if err := json.Unmarshal(line, &req); err != nil {
		resp = Response{Error: fmt.Sprintf("invalid request: %v", err)}
	} else {
		callCtx, cancel := context.WithTimeout(ctx, CallTimeout)
		resp = s.dispatch(callCtx, req)
		cancel()
	}

	data, err := json.Marshal(resp)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode response")
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(ReadTimeout))
	if _, err := conn.Write(append(data, '\n')); err != nil {
		log.Debug().Err(err).Msg("write error")
	}
}

func (s *Server) dispatch(ctx context.Context, req Request) Response {
	log.Debug().Str("op", string(req.Op)).Str("session", req.SessionID).Msg("socket request")

	var sess *models.Session
	var err error

	switch req.Op {
	case OpPing:
	case OpTerminalStart:
		err = s.backend.TerminalStart(ctx, req.TerminalID, req.Command)
	case OpTerminalEnd:
		err = s.backend.TerminalEnd(ctx, req.TerminalID, req.ExitCode, req.Output)
	case OpNote:
		err = s.backend.AddAction(ctx, req.SessionID, models.NewNote(req.Text, time.Now()))
	case OpAction:
		if req.Action == nil {
			err = errors.New("action is required")
			break
		}
		err = s.backend.AddAction(ctx, req.SessionID, *req.Action)
	case OpCommand:
		err = s.backend.RecordCommand(ctx, req.Command, req.Output, req.ExitCode)
	case OpSessionStart:
		var created models.Session
		created, err = s.backend.StartSession(ctx, req.Description)
		if created.ID != "" {
			sess = &created
		}
	case OpSessionActivate:
		err = s.backend.ActivateSession(ctx, req.SessionID)
	case OpSessionClose:
		err = s.backend.CloseSession(ctx)
	case OpSessionDelete:
		err = s.backend.DeleteSession(ctx, req.SessionID)
	case OpSessionNotes:
		err = s.backend.SetNotes(ctx, req.SessionID, req.Text)
	case OpLedgerDelete:
		err = s.backend.DeleteAction(ctx, req.SessionID, req.Index)
	case OpLedgerMove:
		err = s.backend.MoveAction(ctx, req.SessionID, req.Index, req.DestID, req.DestIndex)
	case OpLedgerReorder:
		err = s.backend.ReorderAction(ctx, req.SessionID, req.Index, req.DestIndex)
	default:
		err = fmt.Errorf("unknown op %q", req.Op)
	}

	if err != nil {
		return Response{
			Error:    err.Error(),
			NotFound: errors.Is(err, store.ErrNotFound),
			Inactive: errors.Is(err, lifecycle.ErrNoActiveSession),
			Session:  sess,
		}
	}
	return Response{OK: true, Session: sess}
}
