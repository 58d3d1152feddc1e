package catalog

import (
	"errors"
	"fmt"

	"github.com/p-n-ai/pai-assess/internal/survey"
)

// Definition is an assessment as authored in YAML.
type Definition struct {
	ID         string         `yaml:"id"`
	Name       string         `yaml:"name"`
	Thresholds []int          `yaml:"thresholds"`
	Benchmarks map[string]int `yaml:"benchmarks"`
	Sections   []SectionDef   `yaml:"sections"`
}

// SectionDef is an authored section.
type SectionDef struct {
	ID        string        `yaml:"id"`
	Name      string        `yaml:"name"`
	Questions []QuestionDef `yaml:"questions"`
}

// QuestionDef is an authored question.
type QuestionDef struct {
	ID      string      `yaml:"id"`
	Text    string      `yaml:"text"`
	Kind    string      `yaml:"kind"`
	Options []OptionDef `yaml:"options"`
}

// OptionDef is an authored option.
type OptionDef struct {
	ID    string  `yaml:"id"`
	Text  string  `yaml:"text"`
	Score float64 `yaml:"score"`
}

// Assessment converts the definition into the survey model.
func (d Definition) Assessment() survey.Assessment {
	a := survey.Assessment{
		ID:         d.ID,
		Name:       d.Name,
		Thresholds: append([]int(nil), d.Thresholds...),
		Benchmarks: make(map[string]int, len(d.Benchmarks)),
		Sections:   make([]survey.Section, 0, len(d.Sections)),
	}
	for k, v := range d.Benchmarks {
		a.Benchmarks[k] = v
	}

	for _, s := range d.Sections {
		sec := survey.Section{ID: s.ID, Name: s.Name, Questions: make([]survey.Question, 0, len(s.Questions))}
		for _, q := range s.Questions {
			question := survey.Question{ID: q.ID, Text: q.Text, Kind: survey.Kind(q.Kind)}
			for _, o := range q.Options {
				question.Options = append(question.Options, survey.Option{ID: o.ID, Text: o.Text, Score: o.Score})
			}
			sec.Questions = append(sec.Questions, question)
		}
		a.Sections = append(a.Sections, sec)
	}
	return a
}

// Validate checks invariants the JSON schema cannot express: identifiers are
// unique, thresholds ascend and benchmarks name real sections.
func (d Definition) Validate() error {
	var errs []error

	sections := map[string]bool{}
	questions := map[string]string{}
	for _, s := range d.Sections {
		if sections[s.ID] {
			errs = append(errs, fmt.Errorf("duplicate section id %q", s.ID))
		}
		sections[s.ID] = true

		for _, q := range s.Questions {
			if owner, ok := questions[q.ID]; ok {
				errs = append(errs, fmt.Errorf("question %q in section %q already defined in section %q", q.ID, s.ID, owner))
			}
			questions[q.ID] = s.ID

			if !survey.Kind(q.Kind).Valid() {
				errs = append(errs, fmt.Errorf("question %q: unknown kind %q", q.ID, q.Kind))
			}
			if q.Kind == string(survey.KindYesNo) && len(q.Options) != 2 {
				errs = append(errs, fmt.Errorf("question %q: yes_no needs exactly 2 options, got %d", q.ID, len(q.Options)))
			}

			options := map[string]bool{}
			for _, o := range q.Options {
				if options[o.ID] {
					errs = append(errs, fmt.Errorf("question %q: duplicate option id %q", q.ID, o.ID))
				}
				options[o.ID] = true
			}
		}
	}

	if len(d.Thresholds) == 2 && d.Thresholds[0] >= d.Thresholds[1] {
		errs = append(errs, fmt.Errorf("thresholds must ascend, got %v", d.Thresholds))
	}
	for id := range d.Benchmarks {
		if !sections[id] {
			errs = append(errs, fmt.Errorf("benchmark for unknown section %q", id))
		}
	}

	return errors.Join(errs...)
}
