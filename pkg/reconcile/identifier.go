// Package reconcile merges teacher-supplied add and remove lists into a class
// roster. Students are referenced by email or by institution-issued code and
// resolved through a StudentDirectory before membership changes are written
// to a ClassStore.
package reconcile

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Kind tells how an identifier refers to a student.
type Kind int

const (
	KindEmail Kind = iota
	KindStudentCode
)

func (k Kind) String() string {
	switch k {
	case KindEmail:
		return "email"
	case KindStudentCode:
		return "code"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether s has the local@domain.tld shape accepted at the boundary.
func ValidEmail(s string) bool { return emailPattern.MatchString(s) }

// Identifier is a student reference as typed by a teacher.
// Value is the trimmed form used for matching; Raw is kept verbatim for reporting.
type Identifier struct {
	Kind  Kind
	Value string
	Raw   string
}

// Email builds an email identifier from a raw string.
func Email(raw string) Identifier {
	return Identifier{Kind: KindEmail, Value: strings.TrimSpace(raw), Raw: raw}
}

// StudentCode builds a student code identifier from a raw string.
func StudentCode(raw string) Identifier {
	return Identifier{Kind: KindStudentCode, Value: strings.TrimSpace(raw), Raw: raw}
}

func (id Identifier) String() string { return id.Raw }

// MarshalJSON writes the identifier as its raw string.
func (id Identifier) MarshalJSON() ([]byte, error) { return json.Marshal(id.Raw) }

// StudentRef is a student record owned by the directory.
type StudentRef struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Code  string `json:"code,omitempty"`
	Name  string `json:"name,omitempty"`
}

// InvalidFormatError is returned when an email does not have a valid shape.
type InvalidFormatError struct {
	Value string
}

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid email format: %q", e.Value)
}

// DuplicateError is returned when a value is already present in a set.
type DuplicateError struct {
	Value string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate identifier: %q", e.Value)
}
