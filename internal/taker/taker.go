package taker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/p-n-ai/pai-assess/internal/report"
	"github.com/p-n-ai/pai-assess/internal/survey"
)

const saveTimeout = 10 * time.Second

var ErrNotStarted = errors.New("taker not started")

// Taker holds one respondent's local answers and position. Selections are
// applied locally first and saved in the background; a failed save is
// reported to OnError and the local state is kept.
type Taker struct {
	client *Client
	invite string

	// OnError receives background save failures. Nil ignores them.
	OnError func(error)

	mu         sync.Mutex
	started    bool
	assessment survey.Assessment
	store      survey.ResponseStore
	current    survey.Position

	saves sync.WaitGroup
}

// New creates a taker for the session behind invite.
func New(client *Client, invite string) *Taker {
	return &Taker{client: client, invite: invite}
}

// Start loads the session and moves to the first unanswered question.
func (t *Taker) Start(ctx context.Context) error {
	view, err := t.client.Open(ctx, t.invite)
	if err != nil {
		return fmt.Errorf("opening session: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.assessment = view.Assessment
	t.store = survey.Hydrate(view.Assessment.Sections, view.Responses)
	t.current, _ = survey.FirstUnanswered(t.assessment.Sections, t.store)
	t.started = true
	return nil
}

// Assessment returns the structure being answered.
func (t *Taker) Assessment() survey.Assessment {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.assessment
}

// Current returns the current position and its question.
func (t *Taker) Current() (survey.Position, survey.Question) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, q, _ := t.assessment.Locate(t.current.QuestionID)
	return t.current, q
}

// Next moves forward one question and returns the new position. At the last
// question the position is unchanged.
func (t *Taker) Next() survey.Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = survey.Next(t.assessment.Sections, t.current)
	return t.current
}

// Previous moves back one question and returns the new position.
func (t *Taker) Previous() survey.Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = survey.Previous(t.assessment.Sections, t.current)
	return t.current
}

// Selected returns the options chosen for the current question.
func (t *Taker) Selected() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.store.Selected(t.current.SectionID, t.current.QuestionID))
}

// Select answers the current question and saves the full response set in
// the background.
func (t *Taker) Select(optionIDs ...string) error {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return ErrNotStarted
	}
	_, q, ok := t.assessment.Locate(t.current.QuestionID)
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("no current question")
	}
	if err := survey.ValidateAnswer(q, optionIDs); err != nil {
		t.mu.Unlock()
		return err
	}
	t.store = survey.SetAnswer(t.store, t.current.SectionID, t.current.QuestionID, optionIDs)
	snapshot := survey.Flatten(t.store)
	t.mu.Unlock()

	t.saves.Add(1)
	go func() {
		defer t.saves.Done()
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()

		if _, err := t.client.Save(ctx, t.invite, snapshot); err != nil {
			slog.Warn("background save failed", "error", err)
			if t.OnError != nil {
				t.OnError(err)
			}
		}
	}()
	return nil
}

// Complete reports whether every question has an answer.
func (t *Taker) Complete() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return survey.IsComplete(t.assessment.Sections, t.store)
}

// Progress returns answered and total question counts.
func (t *Taker) Progress() (answered, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return survey.Progress(t.assessment.Sections, t.store)
}

// Responses returns the local answers in submission form.
func (t *Taker) Responses() []survey.Response {
	t.mu.Lock()
	defer t.mu.Unlock()
	return survey.Flatten(t.store)
}

// Submit waits for pending saves and submits the local answers.
func (t *Taker) Submit(ctx context.Context) (*report.Result, error) {
	t.Wait()
	return t.client.Submit(ctx, t.invite, t.Responses())
}

// Wait blocks until every background save has finished.
func (t *Taker) Wait() {
	t.saves.Wait()
}
