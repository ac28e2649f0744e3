package filing

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when no entity matches a name.
	ErrNotFound = errors.New("entity not found")
	// ErrNoData is returned when a collection yields no line items at all.
	ErrNoData = errors.New("no data for requested window")
	// ErrInvalidPeriod is returned for a malformed target period.
	ErrInvalidPeriod = errors.New("invalid target period")
)

// maxShownCandidates caps how many candidates an AmbiguousError prints.
const maxShownCandidates = 5

// AmbiguousError reports a name that matched more than one entity.
type AmbiguousError struct {
	Name       string
	Candidates []string
}

func (e *AmbiguousError) Error() string {
	shown := e.Candidates
	suffix := ""
	if len(shown) > maxShownCandidates {
		shown = shown[:maxShownCandidates]
		suffix = ", ..."
	}
	return fmt.Sprintf("%q matches %d entities (%s%s); use a more specific name",
		e.Name, len(e.Candidates), strings.Join(shown, ", "), suffix)
}
