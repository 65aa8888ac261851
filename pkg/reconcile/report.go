package reconcile

import "errors"

// NotFound groups unresolved identifiers by kind, as raw strings.
type NotFound struct {
	Emails []string `json:"notFoundEmails"`
	IDs    []string `json:"notFoundIds"`
}

// Report is the wire form of an Outcome, used in API responses and stored
// notifications.
type Report struct {
	Added            []StudentRef `json:"added"`
	Removed          []StudentRef `json:"removed"`
	RemovedCount     int          `json:"removedCount"`
	NotFoundOnAdd    NotFound     `json:"notFoundOnAdd"`
	NotFoundOnRemove NotFound     `json:"notFoundOnRemove"`
	FailedPhase      Phase        `json:"failedPhase,omitempty"`
	Error            string       `json:"error,omitempty"`
}

// NewReport builds a Report from an outcome and its phase error, if any.
func NewReport(o Outcome, phaseErr error) Report {
	r := Report{
		Added:        nonNil(o.Added),
		Removed:      nonNil(o.Removed),
		RemovedCount: o.RemovedCount,
	}
	r.NotFoundOnAdd.Emails, r.NotFoundOnAdd.IDs = SplitByKind(o.NotFoundOnAdd)
	r.NotFoundOnRemove.Emails, r.NotFoundOnRemove.IDs = SplitByKind(o.NotFoundOnRemove)
	var pe *PhaseError
	if errors.As(phaseErr, &pe) {
		r.FailedPhase = pe.Phase
		r.Error = pe.Error()
	}
	return r
}

// Outcome rebuilds the outcome carried by the report. Raw strings are kept as
// stored; emails come before codes in each unresolved list.
func (r Report) Outcome() Outcome {
	return Outcome{
		Added:            r.Added,
		Removed:          r.Removed,
		RemovedCount:     r.RemovedCount,
		NotFoundOnAdd:    r.NotFoundOnAdd.identifiers(),
		NotFoundOnRemove: r.NotFoundOnRemove.identifiers(),
	}
}

func (n NotFound) identifiers() []Identifier {
	var out []Identifier
	for _, e := range n.Emails {
		out = append(out, Email(e))
	}
	for _, c := range n.IDs {
		out = append(out, StudentCode(c))
	}
	return out
}

func nonNil(s []StudentRef) []StudentRef {
	if s == nil {
		return []StudentRef{}
	}
	return s
}
