package reconcile

import (
	"errors"
	"fmt"
	"strings"
)

// Level is the severity of a rendered summary.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Summary is the human-readable rendering of an outcome.
type Summary struct {
	Level Level  `json:"level"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Summarize renders an outcome and the phase error that came with it, if any.
// Unresolved identifiers are listed by their raw strings, emails first.
func Summarize(o Outcome, phaseErr error) Summary {
	switch {
	case errors.Is(phaseErr, ErrAddPhaseFailed):
		return Summary{Level: LevelError, Title: "updateClassFailed", Text: "Failed to update class"}
	case errors.Is(phaseErr, ErrRemovePhaseFailed):
		text := "Failed to remove students"
		if len(o.Added) > 0 {
			text = fmt.Sprintf("Added students: %d\n%s", len(o.Added), text)
		}
		return Summary{Level: LevelError, Title: "studentRemovedFailed", Text: text}
	}

	if len(o.NotFoundOnAdd) > 0 {
		return Summary{
			Level: LevelError,
			Title: "updateClassFailed",
			Text:  "Failed to update class\nStudents not found: " + joinRaw(o.NotFoundOnAdd),
		}
	}
	var b strings.Builder
	b.WriteString("Class updated successfully")
	if o.RemovedCount > 0 {
		fmt.Fprintf(&b, "\nRemoved students: %d", o.RemovedCount)
	}
	if len(o.NotFoundOnRemove) > 0 {
		b.WriteString("\nStudents not found (removal): " + joinRaw(o.NotFoundOnRemove))
	}
	return Summary{Level: LevelSuccess, Title: "updateClassSuccess", Text: b.String()}
}

// SplitByKind returns the raw strings of ids grouped into emails and codes,
// each group in the order given.
func SplitByKind(ids []Identifier) (emails, codes []string) {
	emails, codes = []string{}, []string{}
	for _, id := range ids {
		if id.Kind == KindEmail {
			emails = append(emails, id.Raw)
		} else {
			codes = append(codes, id.Raw)
		}
	}
	return emails, codes
}

func joinRaw(ids []Identifier) string {
	emails, codes := SplitByKind(ids)
	return strings.Join(append(emails, codes...), ", ")
}
