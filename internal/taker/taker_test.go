package taker_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/p-n-ai/pai-assess/internal/api"
	"github.com/p-n-ai/pai-assess/internal/catalog"
	"github.com/p-n-ai/pai-assess/internal/notify"
	"github.com/p-n-ai/pai-assess/internal/report"
	"github.com/p-n-ai/pai-assess/internal/session"
	"github.com/p-n-ai/pai-assess/internal/survey"
	"github.com/p-n-ai/pai-assess/internal/taker"
)

func newServer(t *testing.T) (*taker.Client, *session.Engine, string) {
	t.Helper()

	loader, err := catalog.NewLoader(t.TempDir())
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	loader.Put(survey.Assessment{
		ID:   "devops",
		Name: "DevOps Maturity",
		Sections: []survey.Section{
			{ID: "s1", Name: "Build", Questions: []survey.Question{
				{ID: "q1", Kind: survey.KindYesNo, Options: []survey.Option{{ID: "yes", Score: 2}, {ID: "no"}}},
				{ID: "q2", Kind: survey.KindSingleChoice, Options: []survey.Option{{ID: "a", Score: 2}, {ID: "b", Score: 1}}},
			}},
			{ID: "empty", Name: "Empty"},
			{ID: "s2", Name: "Deploy", Questions: []survey.Question{
				{ID: "q3", Kind: survey.KindMultiChoice, Options: []survey.Option{{ID: "x", Score: 1}, {ID: "y", Score: 1}}},
			}},
		},
	})

	hub := notify.NewHub()
	engine := session.NewEngine(session.EngineConfig{Catalog: loader, Publisher: hub})
	code, _, err := engine.CreateInvite(context.Background(), "devops", "")
	if err != nil {
		t.Fatalf("CreateInvite() error = %v", err)
	}

	srv := httptest.NewServer(api.NewRouter(api.Config{Engine: engine, Hub: hub}))
	t.Cleanup(srv.Close)

	return taker.NewClient(srv.URL, taker.WithHTTPClient(srv.Client())), engine, code
}

func TestTaker_WalkAndSubmit(t *testing.T) {
	client, engine, invite := newServer(t)
	ctx := context.Background()

	tk := taker.New(client, invite)
	if err := tk.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	pos, q := tk.Current()
	if pos != (survey.Position{SectionID: "s1", QuestionID: "q1"}) || q.Kind != survey.KindYesNo {
		t.Fatalf("Current() = %v %v, want s1/q1", pos, q.Kind)
	}
	if tk.Previous() != pos {
		t.Error("Previous() at the first question should stay put")
	}

	// Each save carries the full local state, so wait between selections to
	// keep the server's last write the newest one.
	if err := tk.Select("yes"); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	tk.Wait()
	if got := tk.Next(); got != (survey.Position{SectionID: "s1", QuestionID: "q2"}) {
		t.Errorf("Next() = %v, want s1/q2", got)
	}
	tk.Select("b")
	tk.Wait()
	// The empty section is skipped.
	if got := tk.Next(); got != (survey.Position{SectionID: "s2", QuestionID: "q3"}) {
		t.Errorf("Next() = %v, want s2/q3", got)
	}
	if tk.Complete() {
		t.Error("Complete() should be false before q3 is answered")
	}
	tk.Select("x", "y")
	tk.Wait()
	if tk.Next().QuestionID != "q3" {
		t.Error("Next() at the last question should stay put")
	}

	if !tk.Complete() {
		t.Error("Complete() should be true")
	}
	if a, total := tk.Progress(); a != 3 || total != 3 {
		t.Errorf("Progress() = %d/%d, want 3/3", a, total)
	}

	view, err := engine.Open(ctx, invite)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if view.Answered != 3 {
		t.Errorf("server Answered = %d, want 3 after background saves", view.Answered)
	}

	result, err := tk.Submit(ctx)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	// 2 + 1 + 2 of 2 + 2 + 2
	if result.Percentage != 83 || result.Level != report.Level3 {
		t.Errorf("result = %d%% %s", result.Percentage, result.Level)
	}

	ov, err := client.Overview(ctx, invite, []report.MaturityLevel{report.Level3}, "")
	if err != nil {
		t.Fatalf("Overview() error = %v", err)
	}
	if len(ov.Sections) != 2 {
		t.Errorf("Overview sections = %d, want 2", len(ov.Sections))
	}

	d, err := client.Detailed(ctx, invite, nil, "deploy")
	if err != nil {
		t.Fatalf("Detailed() error = %v", err)
	}
	if len(d.Questions) != 1 || d.Questions[0].QuestionID != "q3" {
		t.Errorf("Detailed questions = %+v", d.Questions)
	}
}

func TestTaker_ResumesAtFirstUnanswered(t *testing.T) {
	client, engine, invite := newServer(t)
	ctx := context.Background()

	if _, err := engine.Save(ctx, invite, []survey.Response{
		{QuestionID: "q1", ResponseIDs: []string{"no"}},
		{QuestionID: "q3", ResponseIDs: []string{"x"}},
	}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	tk := taker.New(client, invite)
	if err := tk.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if pos, _ := tk.Current(); pos != (survey.Position{SectionID: "s1", QuestionID: "q2"}) {
		t.Errorf("Current() = %v, want s1/q2", pos)
	}

	want := []survey.Response{
		{QuestionID: "q1", ResponseIDs: []string{"no"}},
		{QuestionID: "q2", ResponseIDs: []string{}},
		{QuestionID: "q3", ResponseIDs: []string{"x"}},
	}
	if diff := cmp.Diff(want, tk.Responses()); diff != "" {
		t.Errorf("Responses() mismatch (-want +got):\n%s", diff)
	}
}

func TestTaker_SelectValidation(t *testing.T) {
	client, _, invite := newServer(t)

	tk := taker.New(client, invite)
	if err := tk.Select("yes"); !errors.Is(err, taker.ErrNotStarted) {
		t.Errorf("Select() before Start error = %v, want ErrNotStarted", err)
	}

	if err := tk.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := tk.Select("yes", "no"); !errors.Is(err, survey.ErrTooManyOptions) {
		t.Errorf("Select() error = %v, want ErrTooManyOptions", err)
	}
	if err := tk.Select("perhaps"); !errors.Is(err, survey.ErrUnknownOption) {
		t.Errorf("Select() error = %v, want ErrUnknownOption", err)
	}
	if len(tk.Selected()) != 0 {
		t.Errorf("Selected() = %v, want nothing after rejected selections", tk.Selected())
	}
}

func TestTaker_SelectedIsACopy(t *testing.T) {
	client, _, invite := newServer(t)

	tk := taker.New(client, invite)
	if err := tk.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := tk.Select("yes"); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	tk.Wait()

	got := tk.Selected()
	got[0] = "no"
	_ = append(got[:0], "no", "yes")

	if again := tk.Selected(); len(again) != 1 || again[0] != "yes" {
		t.Errorf("Selected() = %v after caller edits, want [yes]", again)
	}
	if r := tk.Responses(); r[0].ResponseIDs[0] != "yes" {
		t.Errorf("Responses() = %+v, want q1 still yes", r)
	}
}

func TestTaker_FailedSaveKeepsLocalState(t *testing.T) {
	client, engine, invite := newServer(t)
	ctx := context.Background()

	tk := taker.New(client, invite)
	var (
		mu   sync.Mutex
		errs []error
	)
	tk.OnError = func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}
	if err := tk.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Submitting behind the taker's back makes every later save fail.
	if _, err := engine.Submit(ctx, invite, []survey.Response{
		{QuestionID: "q1", ResponseIDs: []string{"no"}},
		{QuestionID: "q2", ResponseIDs: []string{"a"}},
		{QuestionID: "q3", ResponseIDs: []string{"y"}},
	}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if err := tk.Select("yes"); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	tk.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(errs) != 1 {
		t.Fatalf("OnError calls = %d, want 1", len(errs))
	}
	var apiErr *taker.APIError
	if !errors.As(errs[0], &apiErr) || apiErr.Status != http.StatusConflict {
		t.Errorf("error = %v, want a 409 APIError", errs[0])
	}
	if got := tk.Selected(); len(got) != 1 || got[0] != "yes" {
		t.Errorf("Selected() = %v, want local selection kept", got)
	}
}

func TestClient_OpenUnknownInvite(t *testing.T) {
	client, _, _ := newServer(t)

	_, err := client.Open(context.Background(), "nope")
	var apiErr *taker.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		t.Fatalf("Open() error = %v, want a 404 APIError", err)
	}
	if apiErr.Message == "" {
		t.Error("APIError should carry the server message")
	}
}

func TestClient_Events(t *testing.T) {
	client, engine, invite := newServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, err := client.Events(ctx, invite)
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}

	// The server subscribes after the handshake, so keep saving until an
	// event arrives.
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatal("event stream closed")
			}
			if ev.Type != notify.TypeSaved || ev.Total != 3 {
				t.Errorf("event = %+v", ev)
			}
			return
		case <-tick.C:
			if _, err := engine.Save(ctx, invite, []survey.Response{{QuestionID: "q1", ResponseIDs: []string{"yes"}}}); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
		case <-ctx.Done():
			t.Fatal("no event received")
		}
	}
}
