package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/p-n-ai/pai-assess/internal/notify"
	"github.com/p-n-ai/pai-assess/internal/report"
	"github.com/p-n-ai/pai-assess/internal/survey"
)

// Catalog resolves assessment definitions.
type Catalog interface {
	Get(id string) (survey.Assessment, bool)
}

// ResponseCache holds the latest draft response set of in-progress sessions.
type ResponseCache interface {
	GetResponses(ctx context.Context, sessionID string) ([]survey.Response, bool, error)
	PutResponses(ctx context.Context, sessionID string, responses []survey.Response) error
	DeleteResponses(ctx context.Context, sessionID string) error
}

// EngineConfig holds dependencies for the session engine.
type EngineConfig struct {
	Catalog   Catalog
	Store     Store
	Cache     ResponseCache // optional
	Events    EventLogger
	Publisher notify.Publisher
}

// Engine opens, saves and submits assessment sessions.
type Engine struct {
	catalog   Catalog
	store     Store
	cache     ResponseCache
	events    EventLogger
	publisher notify.Publisher
}

// View is what a respondent sees when opening or saving a session.
type View struct {
	SessionID  string            `json:"sessionId"`
	Status     string            `json:"status"`
	Assessment survey.Assessment `json:"assessment"`
	Responses  []survey.Response `json:"responses"`
	Resume     survey.Position   `json:"resume"`
	Complete   bool              `json:"complete"`
	Answered   int               `json:"answered"`
	Total      int               `json:"total"`
}

// NewEngine creates a new session engine.
func NewEngine(cfg EngineConfig) *Engine {
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	events := cfg.Events
	if events == nil {
		events = NopEventLogger{}
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = notify.NopPublisher{}
	}
	return &Engine{
		catalog:   cfg.Catalog,
		store:     store,
		cache:     cfg.Cache,
		events:    events,
		publisher: publisher,
	}
}

// CreateInvite starts a session for an assessment and returns the clear-text
// invite code, which is not stored.
func (e *Engine) CreateInvite(ctx context.Context, assessmentID, email string) (code, sessionID string, err error) {
	if _, ok := e.catalog.Get(assessmentID); !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownAssess, assessmentID)
	}

	code = NewInviteCode()
	sessionID, err = e.store.CreateSession(ctx, Session{
		AssessmentID:    assessmentID,
		InviteHash:      HashInvite(code),
		RespondentEmail: strings.TrimSpace(email),
	})
	if err != nil {
		return "", "", err
	}

	slog.Info("invite created", "assessment_id", assessmentID, "session_id", sessionID)
	return code, sessionID, nil
}

// Open loads the session behind an invite code and positions it at the first
// unanswered question.
func (e *Engine) Open(ctx context.Context, invite string) (*View, error) {
	sess, a, err := e.load(ctx, invite)
	if err != nil {
		return nil, err
	}

	store := survey.Hydrate(a.Sections, e.current(ctx, sess))
	e.logEvent(ctx, sess.ID, EventOpened, nil)

	return buildView(sess, a, store), nil
}

// Save applies responses on top of the stored set and persists the result.
// Questions absent from responses keep their previous selection; an empty
// list clears one.
func (e *Engine) Save(ctx context.Context, invite string, responses []survey.Response) (*View, error) {
	sess, a, err := e.load(ctx, invite)
	if err != nil {
		return nil, err
	}
	if sess.Status == StatusSubmitted {
		return nil, ErrAlreadySubmitted
	}

	store, err := apply(a, survey.Hydrate(a.Sections, e.current(ctx, sess)), responses)
	if err != nil {
		return nil, err
	}
	flat := survey.Flatten(store)

	// The draft goes to the cache first so a failed store write does not lose
	// the respondent's edits.
	e.putDraft(ctx, sess.ID, flat)

	answered, total := survey.Progress(a.Sections, store)
	if err := e.store.SaveResponses(ctx, sess.ID, flat); err != nil {
		e.publisher.Publish(notify.Event{
			SessionID: sess.ID,
			Type:      notify.TypeSaveError,
			Message:   err.Error(),
			Answered:  answered,
			Total:     total,
		})
		return nil, fmt.Errorf("saving responses: %w", err)
	}

	e.logEvent(ctx, sess.ID, EventSaved, map[string]any{"answered": answered, "total": total})
	e.publisher.Publish(notify.Event{SessionID: sess.ID, Type: notify.TypeSaved, Answered: answered, Total: total})

	slog.Debug("responses saved", "session_id", sess.ID, "answered", answered, "total", total)

	sess.Responses = flat
	return buildView(sess, a, store), nil
}

// Submit applies the final responses, requires every question answered and
// computes the result.
func (e *Engine) Submit(ctx context.Context, invite string, responses []survey.Response) (*report.Result, error) {
	sess, a, err := e.load(ctx, invite)
	if err != nil {
		return nil, err
	}
	if sess.Status == StatusSubmitted {
		return nil, ErrAlreadySubmitted
	}

	store, err := apply(a, survey.Hydrate(a.Sections, e.current(ctx, sess)), responses)
	if err != nil {
		return nil, err
	}
	flat := survey.Flatten(store)

	if at, missing := survey.FirstUnanswered(a.Sections, store); missing {
		// Keep the edits even though the submit is rejected.
		e.putDraft(ctx, sess.ID, flat)
		if err := e.store.SaveResponses(ctx, sess.ID, flat); err != nil {
			slog.Warn("saving responses of incomplete submit failed", "session_id", sess.ID, "error", err)
		}
		return nil, fmt.Errorf("%w: first unanswered is %s/%s", ErrIncomplete, at.SectionID, at.QuestionID)
	}

	result := report.Compute(a, store)
	if err := e.store.Submit(ctx, sess.ID, flat, result); err != nil {
		return nil, fmt.Errorf("submitting: %w", err)
	}

	if e.cache != nil {
		if err := e.cache.DeleteResponses(ctx, sess.ID); err != nil {
			slog.Warn("response cache delete failed", "session_id", sess.ID, "error", err)
		}
	}

	e.logEvent(ctx, sess.ID, EventSubmitted, map[string]any{
		"percentage": result.Percentage,
		"level":      string(result.Level),
	})
	_, total := survey.Progress(a.Sections, store)
	e.publisher.Publish(notify.Event{SessionID: sess.ID, Type: notify.TypeSubmitted, Answered: total, Total: total})

	slog.Info("assessment submitted",
		"session_id", sess.ID,
		"assessment_id", a.ID,
		"percentage", result.Percentage,
		"level", result.Level,
	)
	return &result, nil
}

// Results returns the computed result of a submitted session.
func (e *Engine) Results(ctx context.Context, invite string) (*report.Result, error) {
	sess, a, err := e.load(ctx, invite)
	if err != nil {
		return nil, err
	}
	if sess.Status != StatusSubmitted {
		return nil, ErrNotSubmitted
	}
	if sess.Result != nil {
		return sess.Result, nil
	}

	result := report.Compute(a, survey.Hydrate(a.Sections, sess.Responses))
	return &result, nil
}

// SessionID resolves the session behind an invite code.
func (e *Engine) SessionID(ctx context.Context, invite string) (string, error) {
	sess, err := e.store.GetSessionByInvite(ctx, HashInvite(invite))
	if err != nil {
		return "", err
	}
	return sess.ID, nil
}

func (e *Engine) load(ctx context.Context, invite string) (*Session, survey.Assessment, error) {
	if strings.TrimSpace(invite) == "" {
		return nil, survey.Assessment{}, ErrNotFound
	}
	sess, err := e.store.GetSessionByInvite(ctx, HashInvite(invite))
	if err != nil {
		return nil, survey.Assessment{}, err
	}
	a, ok := e.catalog.Get(sess.AssessmentID)
	if !ok {
		return nil, survey.Assessment{}, fmt.Errorf("%w: %s", ErrUnknownAssess, sess.AssessmentID)
	}
	return sess, a, nil
}

// current returns the latest answers of a session: the cached draft of an
// in-progress session when there is one, the stored set otherwise.
func (e *Engine) current(ctx context.Context, sess *Session) []survey.Response {
	if sess.Status != StatusInProgress || e.cache == nil {
		return sess.Responses
	}
	cached, ok, err := e.cache.GetResponses(ctx, sess.ID)
	if err != nil {
		slog.Warn("response cache read failed", "session_id", sess.ID, "error", err)
		return sess.Responses
	}
	if !ok {
		return sess.Responses
	}
	return cached
}

func (e *Engine) putDraft(ctx context.Context, sessionID string, responses []survey.Response) {
	if e.cache == nil {
		return
	}
	if err := e.cache.PutResponses(ctx, sessionID, responses); err != nil {
		slog.Warn("response cache write failed", "session_id", sessionID, "error", err)
	}
}

func (e *Engine) logEvent(ctx context.Context, sessionID, eventType string, data map[string]any) {
	if err := e.events.LogEvent(ctx, Event{SessionID: sessionID, EventType: eventType, Data: data}); err != nil {
		slog.Warn("failed to log event", "type", eventType, "session_id", sessionID, "error", err)
	}
}

// apply validates each response against the assessment and folds it into
// store.
func apply(a survey.Assessment, store survey.ResponseStore, responses []survey.Response) (survey.ResponseStore, error) {
	for _, r := range responses {
		at, q, ok := a.Locate(r.QuestionID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownQuestion, r.QuestionID)
		}
		if err := survey.ValidateAnswer(q, r.ResponseIDs); err != nil {
			return nil, err
		}
		store = survey.SetAnswer(store, at.SectionID, at.QuestionID, r.ResponseIDs)
	}
	return store, nil
}

func buildView(sess *Session, a survey.Assessment, store survey.ResponseStore) *View {
	resume, _ := survey.FirstUnanswered(a.Sections, store)
	answered, total := survey.Progress(a.Sections, store)
	return &View{
		SessionID:  sess.ID,
		Status:     sess.Status,
		Assessment: respondentView(a),
		Responses:  survey.Flatten(store),
		Resume:     resume,
		Complete:   answered == total,
		Answered:   answered,
		Total:      total,
	}
}

// respondentView strips scoring data that respondents must not see.
func respondentView(a survey.Assessment) survey.Assessment {
	out := survey.Assessment{ID: a.ID, Name: a.Name, Sections: make([]survey.Section, len(a.Sections))}
	for i, s := range a.Sections {
		sec := survey.Section{ID: s.ID, Name: s.Name, Questions: make([]survey.Question, len(s.Questions))}
		for j, q := range s.Questions {
			opts := make([]survey.Option, len(q.Options))
			for k, o := range q.Options {
				opts[k] = survey.Option{ID: o.ID, Text: o.Text}
			}
			sec.Questions[j] = survey.Question{ID: q.ID, Text: q.Text, Kind: q.Kind, Options: opts}
		}
		out.Sections[i] = sec
	}
	return out
}
