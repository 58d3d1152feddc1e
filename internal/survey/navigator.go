package survey

// Next returns the question after cur, crossing into the first question of the
// following section at a section boundary. An empty cur starts at the first
// question; the last question and unknown coordinates return cur unchanged.
func Next(sections []Section, cur Position) Position {
	if cur.IsZero() {
		return first(sections)
	}
	si, qi, ok := indexOf(sections, cur)
	if !ok {
		return cur
	}

	if qi+1 < len(sections[si].Questions) {
		return at(sections, si, qi+1)
	}
	for n := si + 1; n < len(sections); n++ {
		if len(sections[n].Questions) > 0 {
			return at(sections, n, 0)
		}
	}
	return cur
}

// Previous mirrors Next, crossing into the last question of the preceding
// section at a section boundary.
func Previous(sections []Section, cur Position) Position {
	if cur.IsZero() {
		return first(sections)
	}
	si, qi, ok := indexOf(sections, cur)
	if !ok {
		return cur
	}

	if qi > 0 {
		return at(sections, si, qi-1)
	}
	for p := si - 1; p >= 0; p-- {
		if n := len(sections[p].Questions); n > 0 {
			return at(sections, p, n-1)
		}
	}
	return cur
}

// Walk returns every position in authored order.
func Walk(sections []Section) []Position {
	var out []Position
	for _, s := range sections {
		for _, q := range s.Questions {
			out = append(out, Position{SectionID: s.ID, QuestionID: q.ID})
		}
	}
	return out
}

func first(sections []Section) Position {
	for i, s := range sections {
		if len(s.Questions) > 0 {
			return at(sections, i, 0)
		}
	}
	return Position{}
}

func at(sections []Section, si, qi int) Position {
	return Position{SectionID: sections[si].ID, QuestionID: sections[si].Questions[qi].ID}
}

func indexOf(sections []Section, p Position) (int, int, bool) {
	for si, s := range sections {
		if s.ID != p.SectionID {
			continue
		}
		for qi, q := range s.Questions {
			if q.ID == p.QuestionID {
				return si, qi, true
			}
		}
		return 0, 0, false
	}
	return 0, 0, false
}
