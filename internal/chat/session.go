// Package chat answers follow-up questions about one analysed resume and job
// description, keeping the turn history in memory.
package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"artyats/internal/ai"
	"artyats/internal/analysis"
	"artyats/internal/errors"
	"artyats/internal/prompts"
	"artyats/internal/types"
)

// ErrRequestInFlight is returned when a question arrives while the previous
// one is still being answered.
var ErrRequestInFlight = errors.NewConflictError(errors.ErrCodeRequestInFlight,
	"a question is already being answered in this session", nil)

// Session is one follow-up conversation. It is Idle or AwaitingResponse, and
// only one question may be outstanding at a time.
type Session struct {
	id                 string
	resumeText         string
	jobDescriptionText string
	maxContextTurns    int
	gen                ai.Generator
	createdAt          time.Time

	mu         sync.Mutex
	history    []types.ChatTurn
	awaiting   bool
	lastActive time.Time
}

// NewSession creates an empty session. maxContextTurns bounds how many past
// turns are sent with each question; zero or less sends all of them.
func NewSession(id string, gen ai.Generator, resumeText, jobDescriptionText string, maxContextTurns int) *Session {
	now := time.Now()
	return &Session{
		id:                 id,
		resumeText:         strings.TrimSpace(resumeText),
		jobDescriptionText: strings.TrimSpace(jobDescriptionText),
		maxContextTurns:    maxContextTurns,
		gen:                gen,
		createdAt:          now,
		lastActive:         now,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// AskFollowUp sends question with the recent history and appends the question
// and answer together on success. On failure the history is left exactly as
// it was.
func (s *Session) AskFollowUp(ctx context.Context, question string) (types.ChatTurn, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return types.ChatTurn{}, analysis.Fail(errors.NewValidationError(errors.ErrCodeInvalidInput,
			"question is empty", nil))
	}

	s.mu.Lock()
	if s.awaiting {
		s.mu.Unlock()
		return types.ChatTurn{}, ErrRequestInFlight
	}
	s.awaiting = true
	s.lastActive = time.Now()
	window := s.contextWindow()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.awaiting = false
		s.mu.Unlock()
	}()

	out, err := ai.Call[types.ChatOutput](ctx, s.gen, prompts.NameChat, types.ChatInput{
		ResumeText:         s.resumeText,
		JobDescriptionText: s.jobDescriptionText,
		Question:           question,
		History:            window,
	})
	if err != nil {
		return types.ChatTurn{}, analysis.Fail(err)
	}

	answer := types.ChatTurn{Role: types.RoleAssistant, Content: out.Answer}
	s.mu.Lock()
	s.history = append(s.history, types.ChatTurn{Role: types.RoleUser, Content: question}, answer)
	s.lastActive = time.Now()
	s.mu.Unlock()

	return answer, nil
}

// contextWindow copies the turns sent with the next question. Callers hold mu.
func (s *Session) contextWindow() []types.ChatTurn {
	turns := s.history
	if s.maxContextTurns > 0 && len(turns) > s.maxContextTurns {
		turns = turns[len(turns)-s.maxContextTurns:]
	}
	window := make([]types.ChatTurn, len(turns))
	copy(window, turns)
	return window
}

// History returns a copy of every turn so far.
func (s *Session) History() []types.ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.ChatTurn, len(s.history))
	copy(out, s.history)
	return out
}

// Awaiting reports whether a question is outstanding.
func (s *Session) Awaiting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.awaiting
}

func (s *Session) idleSince(now time.Time) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActive), s.awaiting
}
