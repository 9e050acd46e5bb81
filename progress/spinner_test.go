package progress

import (
	"strings"
	"testing"
)

func TestSpinnerString(t *testing.T) {
	spinner := NewSpinner("planning")
	defer spinner.Stop()

	if spinner.started.IsZero() {
		t.Error("spinner should have a start time")
	}
	if !spinner.stopped.IsZero() {
		t.Error("spinner should not be stopped initially")
	}

	str := spinner.String()
	if !strings.Contains(str, "planning") {
		t.Errorf("String() should contain the message, got %q", str)
	}
	if !strings.Contains(str, spinner.parts[spinner.value]) {
		t.Errorf("String() should contain a spinner glyph, got %q", str)
	}
}

func TestSpinnerStop(t *testing.T) {
	spinner := NewSpinner("loading")
	spinner.Stop()

	if spinner.stopped.IsZero() {
		t.Error("Stop should record a stop time")
	}

	str := spinner.String()
	for _, part := range spinner.parts {
		if strings.Contains(str, part) {
			t.Errorf("stopped spinner should not render a glyph, got %q", str)
		}
	}
}

func TestSpinnerEmptyMessage(t *testing.T) {
	spinner := NewSpinner("")
	defer spinner.Stop()

	str := spinner.String()
	if !strings.Contains(str, spinner.parts[spinner.value]) {
		t.Errorf("String() should contain a spinner glyph, got %q", str)
	}
}
