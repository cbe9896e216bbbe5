package models

import (
	"errors"
	"fmt"
	"time"
)

// Session is a user-declared unit of work with its ordered action ledger
type Session struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"startTime"`
	Notes       string    `json:"notes"`
	Actions     []Action  `json:"actions"`
}

// SessionSummary is the lightweight view used by listings
type SessionSummary struct {
	ID          string
	Name        string
	Description string
	StartTime   time.Time
	ActionCount int
	Active      bool
}

// Validate checks if the session has required fields
func (s *Session) Validate() error {
	if s.ID == "" {
		return errors.New("id is required")
	}
	if s.StartTime.IsZero() {
		return errors.New("startTime is required")
	}
	for i := range s.Actions {
		if err := s.Actions[i].Validate(); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}
	return nil
}

// Clone returns a deep copy so callers cannot mutate a stored ledger
func (s *Session) Clone() Session {
	c := *s
	c.Actions = make([]Action, len(s.Actions))
	for i, a := range s.Actions {
		c.Actions[i] = a.Clone()
	}
	return c
}

// Summary returns the listing view of the session
func (s *Session) Summary() SessionSummary {
	return SessionSummary{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		StartTime:   s.StartTime,
		ActionCount: len(s.Actions),
	}
}
