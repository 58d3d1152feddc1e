//go:build integration

package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/p-n-ai/pai-assess/internal/platform/database"
	"github.com/p-n-ai/pai-assess/internal/report"
	"github.com/p-n-ai/pai-assess/internal/session"
	"github.com/p-n-ai/pai-assess/internal/survey"
)

func newPostgres(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("assess"),
		postgres.WithUsername("assess"),
		postgres.WithPassword("assess"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := ctr.Terminate(context.Background()); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("ConnectionString() error = %v", err)
	}

	db, err := database.Open(ctx, url, database.PoolSize{Max: 4, Min: 1})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(db.Close)

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func TestPostgresStore_Lifecycle(t *testing.T) {
	db := newPostgres(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store, err := session.NewPostgresStore(db.Pool)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}

	hash := session.HashInvite("integration-code")
	id, err := store.CreateSession(ctx, session.Session{
		AssessmentID:    "devops",
		InviteHash:      hash,
		RespondentEmail: "someone@example.com",
	})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	responses := []survey.Response{{QuestionID: "q1", ResponseIDs: []string{"yes"}}}
	if err := store.SaveResponses(ctx, id, responses); err != nil {
		t.Fatalf("SaveResponses() error = %v", err)
	}

	got, err := store.GetSessionByInvite(ctx, hash)
	if err != nil {
		t.Fatalf("GetSessionByInvite() error = %v", err)
	}
	if got.ID != id || len(got.Responses) != 1 || got.Responses[0].ResponseIDs[0] != "yes" {
		t.Errorf("session = %+v", got)
	}

	result := report.Result{AssessmentID: "devops", Score: 4, MaxScore: 4, Percentage: 100, Level: report.Level3}
	if err := store.Submit(ctx, id, responses, result); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := store.Submit(ctx, id, responses, result); !errors.Is(err, session.ErrAlreadySubmitted) {
		t.Errorf("second Submit() error = %v, want ErrAlreadySubmitted", err)
	}

	submitted, err := store.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if submitted.Status != session.StatusSubmitted || submitted.Result == nil || submitted.Result.Level != report.Level3 {
		t.Errorf("submitted session = %+v", submitted)
	}

	events := session.NewPostgresEventLogger(db.Pool)
	if err := events.LogEvent(ctx, session.Event{
		SessionID: id,
		EventType: session.EventSubmitted,
		Data:      map[string]any{"percentage": 100},
	}); err != nil {
		t.Errorf("LogEvent() error = %v", err)
	}
	history, err := events.History(ctx, id)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 || history[0].EventType != session.EventSubmitted || history[0].Data["percentage"] != float64(100) {
		t.Errorf("history = %+v", history)
	}

	missing := "00000000-0000-0000-0000-000000000000"
	if err := store.SaveResponses(ctx, missing, nil); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("SaveResponses(missing) error = %v, want ErrNotFound", err)
	}
}
