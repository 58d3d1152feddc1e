// Package survey holds the assessment structure and the pure functions that
// drive an assessment-taking session: navigation, completion scanning and the
// response store.
package survey

// Kind is the answer mechanic of a question.
type Kind string

const (
	KindSingleChoice Kind = "single_choice"
	KindMultiChoice  Kind = "multi_choice"
	KindRating       Kind = "rating"
	KindYesNo        Kind = "yes_no"
)

// Valid reports whether k is a known question kind.
func (k Kind) Valid() bool {
	switch k {
	case KindSingleChoice, KindMultiChoice, KindRating, KindYesNo:
		return true
	default:
		return false
	}
}

// SingleSelection reports whether at most one option may be selected.
func (k Kind) SingleSelection() bool {
	return k != KindMultiChoice
}

// Option is a selectable answer.
type Option struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Score float64 `json:"score,omitempty"`
}

// Question belongs to exactly one section.
type Question struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Kind    Kind     `json:"kind"`
	Options []Option `json:"options"`
}

// Option returns the option with the given ID.
func (q Question) Option(id string) (Option, bool) {
	for _, o := range q.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// Section is a thematic grouping of questions in authored order.
type Section struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

// Assessment is a complete questionnaire definition.
type Assessment struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Sections []Section `json:"sections"`
	// Thresholds are the percentage lower bounds of LEVEL_2 and LEVEL_3.
	Thresholds []int `json:"thresholds,omitempty"`
	// Benchmarks maps section IDs to an externally supplied comparison percentage.
	Benchmarks map[string]int `json:"benchmarks,omitempty"`
}

// Locate finds the section position and definition of a question.
func (a Assessment) Locate(questionID string) (Position, Question, bool) {
	for _, s := range a.Sections {
		for _, q := range s.Questions {
			if q.ID == questionID {
				return Position{SectionID: s.ID, QuestionID: q.ID}, q, true
			}
		}
	}
	return Position{}, Question{}, false
}

// QuestionCount returns the number of questions across all sections.
func (a Assessment) QuestionCount() int {
	n := 0
	for _, s := range a.Sections {
		n += len(s.Questions)
	}
	return n
}

// Position identifies a question within a section. The zero value means no
// position.
type Position struct {
	SectionID  string `json:"sectionId"`
	QuestionID string `json:"questionId"`
}

// IsZero reports whether p lacks either coordinate.
func (p Position) IsZero() bool {
	return p.SectionID == "" || p.QuestionID == ""
}
