package survey

import (
	"cmp"
	"slices"
)

// Response is the flat wire form of one answered question.
type Response struct {
	QuestionID  string   `json:"questionId"`
	ResponseIDs []string `json:"responseIds"`
}

// ResponseStore maps section ID -> question ID -> selected option IDs. An empty
// or missing list means the question is unanswered.
//
// Stores are treated as immutable values: SetAnswer returns a new store and
// untouched section maps are shared between the old and new value.
type ResponseStore map[string]map[string][]string

// Selected returns the options chosen for a question, nil when unanswered.
func (s ResponseStore) Selected(sectionID, questionID string) []string {
	return s[sectionID][questionID]
}

// SetAnswer returns a copy of store with the selection for the given question
// replaced by optionIDs. The input store is left untouched.
func SetAnswer(store ResponseStore, sectionID, questionID string, optionIDs []string) ResponseStore {
	next := make(ResponseStore, len(store)+1)
	for k, v := range store {
		next[k] = v
	}

	questions := make(map[string][]string, len(store[sectionID])+1)
	for k, v := range store[sectionID] {
		questions[k] = v
	}
	questions[questionID] = append([]string{}, optionIDs...)
	next[sectionID] = questions

	return next
}

// Hydrate builds a store covering every question in sections, seeded from a
// previously saved flat response set. Responses for unknown questions are
// dropped.
func Hydrate(sections []Section, previous []Response) ResponseStore {
	saved := make(map[string][]string, len(previous))
	for _, r := range previous {
		saved[r.QuestionID] = r.ResponseIDs
	}

	store := make(ResponseStore, len(sections))
	for _, s := range sections {
		questions := make(map[string][]string, len(s.Questions))
		for _, q := range s.Questions {
			questions[q.ID] = append([]string{}, saved[q.ID]...)
		}
		store[s.ID] = questions
	}
	return store
}

// Flatten converts the store into the flat request body used by save and
// submit calls. Every question held by the store yields one entry; unanswered
// questions carry an empty list. Output is sorted by section then question ID.
func Flatten(store ResponseStore) []Response {
	type keyed struct {
		section string
		resp    Response
	}
	var rows []keyed
	for sectionID, questions := range store {
		for questionID, ids := range questions {
			rows = append(rows, keyed{
				section: sectionID,
				resp: Response{
					QuestionID:  questionID,
					ResponseIDs: append([]string{}, ids...),
				},
			})
		}
	}

	slices.SortFunc(rows, func(a, b keyed) int {
		return cmp.Or(
			cmp.Compare(a.section, b.section),
			cmp.Compare(a.resp.QuestionID, b.resp.QuestionID),
		)
	})

	out := make([]Response, len(rows))
	for i, r := range rows {
		out[i] = r.resp
	}
	return out
}
