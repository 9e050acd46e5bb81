package progress

import (
	"fmt"
	"strings"
)

const stepBarWidth = 30

// StepBar displays step-based progress, e.g. completed training epochs.
type StepBar struct {
	message string
	current int
	total   int
}

func NewStepBar(message string, total int) *StepBar {
	return &StepBar{message: message, total: total}
}

func (s *StepBar) Set(current int) {
	if current > s.total {
		current = s.total
	}

	s.current = current
}

func (s *StepBar) String() string {
	if s.total <= 0 {
		return fmt.Sprintf("%s %d", s.message, s.current)
	}

	width := min(s.total, stepBarWidth)
	filled := width * s.current / s.total

	// "epochs  40% ▕████      ▏ 20/50"
	return fmt.Sprintf("%s %3.0f%% ▕%s%s▏ %d/%d",
		s.message, float64(s.current)/float64(s.total)*100,
		strings.Repeat("█", filled), strings.Repeat(" ", width-filled),
		s.current, s.total)
}
