package survey

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownOption   = errors.New("unknown option")
	ErrTooManyOptions  = errors.New("too many options selected")
	ErrDuplicateOption = errors.New("duplicate option")
)

// ValidateAnswer checks a selection against the question definition. An empty
// selection is valid and clears the answer.
func ValidateAnswer(q Question, optionIDs []string) error {
	if q.Kind.SingleSelection() && len(optionIDs) > 1 {
		return fmt.Errorf("question %s (%s): %w", q.ID, q.Kind, ErrTooManyOptions)
	}

	seen := make(map[string]struct{}, len(optionIDs))
	for _, id := range optionIDs {
		if _, ok := q.Option(id); !ok {
			return fmt.Errorf("question %s option %q: %w", q.ID, id, ErrUnknownOption)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("question %s option %q: %w", q.ID, id, ErrDuplicateOption)
		}
		seen[id] = struct{}{}
	}
	return nil
}
