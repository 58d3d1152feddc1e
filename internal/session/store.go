// Package session persists assessment-taking sessions and orchestrates
// opening, saving and submitting them.
package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/p-n-ai/pai-assess/internal/report"
	"github.com/p-n-ai/pai-assess/internal/survey"
)

// Session statuses.
const (
	StatusInProgress = "in_progress"
	StatusSubmitted  = "submitted"
)

var (
	ErrNotFound         = errors.New("session not found")
	ErrAlreadySubmitted = errors.New("assessment already submitted")
	ErrNotSubmitted     = errors.New("assessment not submitted")
	ErrIncomplete       = errors.New("assessment has unanswered questions")
	ErrUnknownQuestion  = errors.New("unknown question")
	ErrUnknownAssess    = errors.New("unknown assessment")
)

// Session is one respondent's attempt at an assessment.
type Session struct {
	ID              string            `json:"id"`
	AssessmentID    string            `json:"assessmentId"`
	InviteHash      string            `json:"-"`
	RespondentEmail string            `json:"respondentEmail,omitempty"`
	Status          string            `json:"status"`
	Responses       []survey.Response `json:"responses"`
	Result          *report.Result    `json:"result,omitempty"`
	StartedAt       time.Time         `json:"startedAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
	SubmittedAt     *time.Time        `json:"submittedAt,omitempty"`
}

// Store persists sessions. SaveResponses replaces the full response set so the
// latest write wins.
type Store interface {
	CreateSession(ctx context.Context, s Session) (string, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	GetSessionByInvite(ctx context.Context, inviteHash string) (*Session, error)
	SaveResponses(ctx context.Context, id string, responses []survey.Response) error
	Submit(ctx context.Context, id string, responses []survey.Response, result report.Result) error
}

// HashInvite returns the hex BLAKE2b-256 digest under which an invite code is
// stored.
func HashInvite(code string) string {
	sum := blake2b.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// NewInviteCode returns a fresh random invite code.
func NewInviteCode() string {
	return uuid.NewString()
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	sessions map[string]*Session
	byInvite map[string]string
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		byInvite: make(map[string]string),
	}
}

func (m *MemoryStore) CreateSession(_ context.Context, s Session) (string, error) {
	if s.AssessmentID == "" {
		return "", fmt.Errorf("assessment_id is required")
	}
	if s.InviteHash == "" {
		return "", fmt.Errorf("invite_hash is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.byInvite[s.InviteHash]; dup {
		return "", fmt.Errorf("invite already in use")
	}

	now := time.Now()
	s.ID = uuid.NewString()
	if s.Status == "" {
		s.Status = StatusInProgress
	}
	if s.Responses == nil {
		s.Responses = []survey.Response{}
	}
	s.StartedAt = now
	s.UpdatedAt = now

	m.sessions[s.ID] = &s
	m.byInvite[s.InviteHash] = s.ID
	return s.ID, nil
}

func (m *MemoryStore) GetSession(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return cloneSession(s), nil
}

func (m *MemoryStore) GetSessionByInvite(ctx context.Context, inviteHash string) (*Session, error) {
	m.mu.RLock()
	id, ok := m.byInvite[inviteHash]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return m.GetSession(ctx, id)
}

func (m *MemoryStore) SaveResponses(_ context.Context, id string, responses []survey.Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if s.Status == StatusSubmitted {
		return ErrAlreadySubmitted
	}
	s.Responses = cloneResponses(responses)
	s.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) Submit(_ context.Context, id string, responses []survey.Response, result report.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if s.Status == StatusSubmitted {
		return ErrAlreadySubmitted
	}
	now := time.Now()
	s.Responses = cloneResponses(responses)
	s.Result = &result
	s.Status = StatusSubmitted
	s.UpdatedAt = now
	s.SubmittedAt = &now
	return nil
}

func cloneSession(s *Session) *Session {
	out := *s
	out.Responses = cloneResponses(s.Responses)
	return &out
}

func cloneResponses(in []survey.Response) []survey.Response {
	out := make([]survey.Response, len(in))
	for i, r := range in {
		out[i] = survey.Response{QuestionID: r.QuestionID, ResponseIDs: append([]string{}, r.ResponseIDs...)}
	}
	return out
}
