// Package report computes assessment results and filters them for the
// reporting views.
package report

import (
	"math"

	"github.com/p-n-ai/pai-assess/internal/survey"
)

// MaturityLevel is a coarse score band.
type MaturityLevel string

const (
	Level1 MaturityLevel = "LEVEL_1"
	Level2 MaturityLevel = "LEVEL_2"
	Level3 MaturityLevel = "LEVEL_3"
)

// Levels lists every maturity level in ascending order.
var Levels = []MaturityLevel{Level1, Level2, Level3}

// DefaultThresholds are the lower percentage bounds of LEVEL_2 and LEVEL_3.
var DefaultThresholds = []int{40, 75}

// ParseLevel accepts a level name.
func ParseLevel(s string) (MaturityLevel, bool) {
	for _, l := range Levels {
		if string(l) == s {
			return l, true
		}
	}
	return "", false
}

// Percentage returns round(score*100/maxScore) clamped to 0..100. A zero score
// or a non-positive maximum yields 0.
func Percentage(score, maxScore float64) int {
	if score == 0 || maxScore <= 0 {
		return 0
	}
	pct := int(math.Round(score * 100 / maxScore))
	return max(0, min(100, pct))
}

// LevelFor maps a percentage to a maturity level. thresholds holds the lower
// bounds of LEVEL_2 and LEVEL_3; anything else falls back to DefaultThresholds.
func LevelFor(pct int, thresholds []int) MaturityLevel {
	if len(thresholds) != 2 {
		thresholds = DefaultThresholds
	}
	switch {
	case pct >= thresholds[1]:
		return Level3
	case pct >= thresholds[0]:
		return Level2
	default:
		return Level1
	}
}

// Scored is implemented by result rows that can be filtered.
type Scored interface {
	Band() MaturityLevel
	Section() string
}

// SectionScore is the aggregated result of one section.
type SectionScore struct {
	SectionID  string        `json:"sectionId"`
	Name       string        `json:"name"`
	Score      float64       `json:"score"`
	MaxScore   float64       `json:"maxScore"`
	Percentage int           `json:"percentage"`
	Level      MaturityLevel `json:"level"`
	Benchmark  *int          `json:"benchmark,omitempty"`
}

func (s SectionScore) Band() MaturityLevel { return s.Level }
func (s SectionScore) Section() string     { return s.Name }

// QuestionScore is the result of a single question.
type QuestionScore struct {
	SectionID   string        `json:"sectionId"`
	SectionName string        `json:"sectionName"`
	QuestionID  string        `json:"questionId"`
	Text        string        `json:"text"`
	Selected    []string      `json:"selected"`
	Score       float64       `json:"score"`
	MaxScore    float64       `json:"maxScore"`
	Percentage  int           `json:"percentage"`
	Level       MaturityLevel `json:"level"`
}

func (q QuestionScore) Band() MaturityLevel { return q.Level }
func (q QuestionScore) Section() string     { return q.SectionName }

// Result is the full computed outcome of a submitted assessment.
type Result struct {
	AssessmentID string          `json:"assessmentId"`
	Score        float64         `json:"score"`
	MaxScore     float64         `json:"maxScore"`
	Percentage   int             `json:"percentage"`
	Level        MaturityLevel   `json:"level"`
	Sections     []SectionScore  `json:"sections"`
	Questions    []QuestionScore `json:"questions"`
}

// Compute scores every question and section of a against the store.
func Compute(a survey.Assessment, store survey.ResponseStore) Result {
	res := Result{
		AssessmentID: a.ID,
		Sections:     make([]SectionScore, 0, len(a.Sections)),
		Questions:    make([]QuestionScore, 0, a.QuestionCount()),
	}

	for _, s := range a.Sections {
		ss := SectionScore{SectionID: s.ID, Name: s.Name}
		for _, q := range s.Questions {
			selected := store.Selected(s.ID, q.ID)
			score := questionScore(q, selected)
			maxScore := questionMax(q)
			pct := Percentage(score, maxScore)

			res.Questions = append(res.Questions, QuestionScore{
				SectionID:   s.ID,
				SectionName: s.Name,
				QuestionID:  q.ID,
				Text:        q.Text,
				Selected:    append([]string{}, selected...),
				Score:       score,
				MaxScore:    maxScore,
				Percentage:  pct,
				Level:       LevelFor(pct, a.Thresholds),
			})
			ss.Score += score
			ss.MaxScore += maxScore
		}
		ss.Percentage = Percentage(ss.Score, ss.MaxScore)
		ss.Level = LevelFor(ss.Percentage, a.Thresholds)
		if b, ok := a.Benchmarks[s.ID]; ok {
			ss.Benchmark = &b
		}

		res.Score += ss.Score
		res.MaxScore += ss.MaxScore
		res.Sections = append(res.Sections, ss)
	}

	res.Percentage = Percentage(res.Score, res.MaxScore)
	res.Level = LevelFor(res.Percentage, a.Thresholds)
	return res
}

func questionScore(q survey.Question, selected []string) float64 {
	total := 0.0
	for _, id := range selected {
		if o, ok := q.Option(id); ok {
			total += o.Score
		}
	}
	return total
}

// questionMax is the best achievable score: the top option for single
// selection kinds, every positive option for multi-choice.
func questionMax(q survey.Question) float64 {
	best := 0.0
	for _, o := range q.Options {
		if q.Kind.SingleSelection() {
			best = max(best, o.Score)
		} else if o.Score > 0 {
			best += o.Score
		}
	}
	return best
}
