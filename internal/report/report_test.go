package report_test

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-assess/internal/report"
	"github.com/p-n-ai/pai-assess/internal/survey"
)

func TestPercentage(t *testing.T) {
	tests := []struct {
		score, max float64
		want       int
	}{
		{5, 10, 50},
		{0, 100, 0},
		{50, 100, 50},
		{7, 0, 0},
		{0, 0, 0},
		{1, 3, 33},
		{2, 3, 67},
		{12, 10, 100},
		{-3, 10, 0},
		{5, -10, 0},
	}

	for _, tt := range tests {
		if got := report.Percentage(tt.score, tt.max); got != tt.want {
			t.Errorf("Percentage(%v, %v) = %d, want %d", tt.score, tt.max, got, tt.want)
		}
	}
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		pct        int
		thresholds []int
		want       report.MaturityLevel
	}{
		{0, nil, report.Level1},
		{39, nil, report.Level1},
		{40, nil, report.Level2},
		{74, nil, report.Level2},
		{75, nil, report.Level3},
		{100, nil, report.Level3},
		{55, []int{50, 90}, report.Level2},
		{95, []int{50, 90}, report.Level3},
		{60, []int{10}, report.Level2}, // malformed thresholds fall back to defaults
	}

	for _, tt := range tests {
		if got := report.LevelFor(tt.pct, tt.thresholds); got != tt.want {
			t.Errorf("LevelFor(%d, %v) = %s, want %s", tt.pct, tt.thresholds, got, tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	if l, ok := report.ParseLevel("LEVEL_2"); !ok || l != report.Level2 {
		t.Errorf("ParseLevel(LEVEL_2) = %q, %v", l, ok)
	}
	if _, ok := report.ParseLevel("level_2"); ok {
		t.Error("ParseLevel should be case-sensitive")
	}
}

func sampleScores() []report.SectionScore {
	return []report.SectionScore{
		{SectionID: "s1", Name: "Continuous Delivery", Level: report.Level1},
		{SectionID: "s2", Name: "Security Posture", Level: report.Level2},
		{SectionID: "s3", Name: "Delivery Metrics", Level: report.Level3},
	}
}

func TestFilterByLevels(t *testing.T) {
	scores := sampleScores()

	tests := []struct {
		name   string
		levels []report.MaturityLevel
		want   []string
	}{
		{"none selected returns all", nil, []string{"s1", "s2", "s3"}},
		{"all selected returns all", report.Levels, []string{"s1", "s2", "s3"}},
		{"one level", []report.MaturityLevel{report.Level2}, []string{"s2"}},
		{"two levels", []report.MaturityLevel{report.Level1, report.Level3}, []string{"s1", "s3"}},
		{"duplicates of all", []report.MaturityLevel{report.Level1, report.Level1, report.Level2, report.Level3}, []string{"s1", "s2", "s3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := report.FilterByLevels(scores, tt.levels)
			if diff := cmp.Diff(tt.want, ids(got)); diff != "" {
				t.Errorf("FilterByLevels() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFilterByName(t *testing.T) {
	scores := sampleScores()

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"s1", "s2", "s3"}},
		{"   ", []string{"s1", "s2", "s3"}},
		{"delivery", []string{"s1", "s3"}},
		{"SECURITY", []string{"s2"}},
		{"nothing", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := report.FilterByName(scores, tt.query)
			if diff := cmp.Diff(tt.want, ids(got)); diff != "" {
				t.Errorf("FilterByName(%q) mismatch (-want +got):\n%s", tt.query, diff)
			}
		})
	}
}

func TestFilterByName_QuestionScores(t *testing.T) {
	rows := []report.QuestionScore{
		{QuestionID: "q1", SectionName: "Émissions Réseau"},
		{QuestionID: "q2", SectionName: "Other"},
	}

	got := report.FilterByName(rows, "ÉMISSIONS")
	if len(got) != 1 || got[0].QuestionID != "q1" {
		t.Errorf("FilterByName(ÉMISSIONS) = %+v, want q1 via case folding", got)
	}
}

func ids(rows []report.SectionScore) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.SectionID)
	}
	return out
}

func sampleAssessment() survey.Assessment {
	return survey.Assessment{
		ID:   "devops",
		Name: "DevOps Maturity",
		Sections: []survey.Section{
			{ID: "s1", Name: "Build", Questions: []survey.Question{
				{ID: "q1", Text: "Automated builds?", Kind: survey.KindYesNo, Options: []survey.Option{
					{ID: "yes", Score: 10}, {ID: "no", Score: 0},
				}},
				{ID: "q2", Text: "Which checks run?", Kind: survey.KindMultiChoice, Options: []survey.Option{
					{ID: "lint", Score: 5}, {ID: "unit", Score: 5}, {ID: "none", Score: -2},
				}},
			}},
			{ID: "s2", Name: "Deploy", Questions: []survey.Question{
				{ID: "q3", Text: "Deploy frequency", Kind: survey.KindRating, Options: []survey.Option{
					{ID: "1", Score: 1}, {ID: "2", Score: 2}, {ID: "3", Score: 3}, {ID: "4", Score: 4},
				}},
			}},
		},
		Benchmarks: map[string]int{"s2": 60},
	}
}

func TestCompute(t *testing.T) {
	a := sampleAssessment()
	store := survey.Hydrate(a.Sections, []survey.Response{
		{QuestionID: "q1", ResponseIDs: []string{"yes"}},
		{QuestionID: "q2", ResponseIDs: []string{"lint"}},
		{QuestionID: "q3", ResponseIDs: []string{"1"}},
	})

	res := report.Compute(a, store)

	if res.Score != 16 || res.MaxScore != 24 {
		t.Errorf("overall = %v/%v, want 16/24", res.Score, res.MaxScore)
	}
	if res.Percentage != 67 || res.Level != report.Level2 {
		t.Errorf("overall percentage/level = %d/%s, want 67/LEVEL_2", res.Percentage, res.Level)
	}

	if len(res.Sections) != 2 {
		t.Fatalf("len(Sections) = %d, want 2", len(res.Sections))
	}
	build := res.Sections[0]
	if build.Score != 15 || build.MaxScore != 20 || build.Percentage != 75 || build.Level != report.Level3 {
		t.Errorf("build section = %+v", build)
	}
	if build.Benchmark != nil {
		t.Errorf("build benchmark = %v, want nil", *build.Benchmark)
	}
	deploy := res.Sections[1]
	if deploy.Percentage != 25 || deploy.Level != report.Level1 {
		t.Errorf("deploy section = %+v", deploy)
	}
	if deploy.Benchmark == nil || *deploy.Benchmark != 60 {
		t.Errorf("deploy benchmark = %v, want 60", deploy.Benchmark)
	}

	if len(res.Questions) != 3 {
		t.Fatalf("len(Questions) = %d, want 3", len(res.Questions))
	}
	if q := res.Questions[1]; q.Score != 5 || q.MaxScore != 10 || q.Percentage != 50 {
		t.Errorf("q2 = %+v", q)
	}
}

func TestCompute_Unanswered(t *testing.T) {
	a := sampleAssessment()
	res := report.Compute(a, nil)

	if res.Score != 0 || res.Percentage != 0 || res.Level != report.Level1 {
		t.Errorf("empty result = %+v", res)
	}
}

func TestWriteXLSX(t *testing.T) {
	a := sampleAssessment()
	store := survey.Hydrate(a.Sections, []survey.Response{
		{QuestionID: "q1", ResponseIDs: []string{"yes"}},
	})
	res := report.Compute(a, store)

	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, res); err != nil {
		t.Fatalf("WriteXLSX() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(report.SheetSections)
	if err != nil {
		t.Fatalf("GetRows(%s) error = %v", report.SheetSections, err)
	}
	// header + 2 sections + overall
	if len(rows) != 4 {
		t.Fatalf("section rows = %d, want 4", len(rows))
	}
	if rows[1][0] != "Build" || rows[3][0] != "Overall" {
		t.Errorf("unexpected section rows: %v", rows)
	}

	qrows, err := f.GetRows(report.SheetQuestions)
	if err != nil {
		t.Fatalf("GetRows(%s) error = %v", report.SheetQuestions, err)
	}
	if len(qrows) != 4 {
		t.Errorf("question rows = %d, want 4", len(qrows))
	}
}
