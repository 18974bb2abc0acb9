package event_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proxlab/pvebridge/internal/event"
)

func TestNew_PromotesSeverityAttribute(t *testing.T) {
	e := event.New("VM Started", "VM 100 started", map[string]string{
		"vm_id":    "100",
		"severity": "warning",
	})

	assert.Equal(t, event.SeverityWarning, e.Severity)
	// The raw attribute stays visible alongside the typed field.
	v, ok := e.Attr("severity")
	require.True(t, ok)
	assert.Equal(t, "warning", v)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())
}

func TestNew_DefaultsToInfo(t *testing.T) {
	e := event.New("Test", "hello", nil)
	assert.Equal(t, event.SeverityInfo, e.Severity)
}

func TestNew_CopiesAttributes(t *testing.T) {
	attrs := map[string]string{"node": "pve1"}
	e := event.New("Test", "hello", attrs)

	attrs["node"] = "mutated"

	v, _ := e.Attr("node")
	assert.Equal(t, "pve1", v)
}

func TestParseSeverity(t *testing.T) {
	assert.Equal(t, event.SeverityCritical, event.ParseSeverity("critical"))
	assert.Equal(t, event.SeverityError, event.ParseSeverity("error"))
	assert.Equal(t, event.SeverityInfo, event.ParseSeverity(""))
	assert.Equal(t, event.SeverityInfo, event.ParseSeverity("bogus"))
}

func TestSeverityAtLeast(t *testing.T) {
	assert.True(t, event.SeverityCritical.AtLeast(event.SeverityWarning))
	assert.True(t, event.SeverityWarning.AtLeast(event.SeverityWarning))
	assert.False(t, event.SeverityInfo.AtLeast(event.SeverityError))
}

func TestValidate(t *testing.T) {
	require.NoError(t, event.New("Test", "hello", nil).Validate())

	missing := event.New("", "hello", nil)
	assert.ErrorIs(t, missing.Validate(), event.ErrInvalidEvent)

	noBody := event.New("Test", "", nil)
	assert.ErrorIs(t, noBody.Validate(), event.ErrInvalidEvent)
}
