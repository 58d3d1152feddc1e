package survey

// FirstUnanswered returns the first question, in authored order, with no
// selected options. The bool is false when every question is answered; the
// position is then the last question visited, so a resuming session lands on
// the end of the assessment.
func FirstUnanswered(sections []Section, store ResponseStore) (Position, bool) {
	var last Position
	for _, s := range sections {
		for _, q := range s.Questions {
			last = Position{SectionID: s.ID, QuestionID: q.ID}
			if len(store.Selected(s.ID, q.ID)) == 0 {
				return last, true
			}
		}
	}
	return last, false
}

// IsComplete reports whether every question has at least one selection.
func IsComplete(sections []Section, store ResponseStore) bool {
	_, found := FirstUnanswered(sections, store)
	return !found
}

// Progress counts answered questions against the total.
func Progress(sections []Section, store ResponseStore) (answered, total int) {
	for _, s := range sections {
		for _, q := range s.Questions {
			total++
			if len(store.Selected(s.ID, q.ID)) > 0 {
				answered++
			}
		}
	}
	return answered, total
}
