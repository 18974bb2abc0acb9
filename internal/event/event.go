// Package event defines the normalized event that moves through the relay:
// every input listener produces one, every output notifier consumes one.
package event

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Severity classifies how urgent an event is. Notifiers use it to pick
// presentation (embed color, push priority).
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// severityRank orders severities for threshold comparisons.
var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityWarning:  1,
	SeverityError:    2,
	SeverityCritical: 3,
}

// ParseSeverity maps a raw string to a Severity. Unknown or empty values
// default to SeverityInfo.
func ParseSeverity(s string) Severity {
	sev := Severity(s)
	if _, ok := severityRank[sev]; ok {
		return sev
	}
	return SeverityInfo
}

// AtLeast reports whether s is at or above min in urgency.
func (s Severity) AtLeast(min Severity) bool {
	return severityRank[s] >= severityRank[min]
}

// AttrSeverity is the well-known attribute key carrying a severity hint.
// Listeners that parse severity out of their source set it here; New
// promotes it to the Severity field.
const AttrSeverity = "severity"

// Event is one occurrence worth notifying about. It is immutable after
// construction: New copies the attribute map and nothing mutates it later.
type Event struct {
	ID         string
	Title      string
	Body       string
	Severity   Severity
	Attributes map[string]string
	Timestamp  time.Time
}

// ErrInvalidEvent is returned by Validate for events missing a title or body.
var ErrInvalidEvent = errors.New("event requires a non-empty title and body")

// New builds an Event from a title, body and open attribute map. The
// severity attribute, when present, becomes the event's Severity; it stays
// in the attribute map so downstream consumers that read raw attributes
// still see it.
func New(title, body string, attrs map[string]string) Event {
	copied := make(map[string]string, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	return Event{
		ID:         uuid.NewString(),
		Title:      title,
		Body:       body,
		Severity:   ParseSeverity(copied[AttrSeverity]),
		Attributes: copied,
		Timestamp:  time.Now(),
	}
}

// Validate reports whether the event satisfies the dispatch preconditions.
func (e Event) Validate() error {
	if e.Title == "" || e.Body == "" {
		return ErrInvalidEvent
	}
	return nil
}

// Attr returns the attribute value for key, and whether it was present.
func (e Event) Attr(key string) (string, bool) {
	v, ok := e.Attributes[key]
	return v, ok
}
