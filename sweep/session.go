package sweep

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/edgarlab/secrnn/runs"
)

// Session is the durable record of one sweep invocation: which runs it
// launched and how they ended.
type Session struct {
	ID        string       `json:"id"`
	CreatedAt time.Time    `json:"created_at"`
	Runs      []SessionRun `json:"runs"`
}

type SessionRun struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// NewSession builds a session record from launch results. IDs are v7 UUIDs
// so session files sort by creation time.
func NewSession(results []Result) (*Session, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:        id.String(),
		CreatedAt: time.Now().UTC(),
	}

	for _, res := range results {
		run := SessionRun{Name: res.Name, Duration: res.Duration}
		if res.Err != nil {
			run.Error = res.Err.Error()
		}

		s.Runs = append(s.Runs, run)
	}

	return s, nil
}

// Save writes the session under the runs root, next to the runs it
// describes, and returns the file path.
func (s *Session) Save(root string) (string, error) {
	dir := filepath.Join(root, runs.SessionsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", err
	}

	p := filepath.Join(dir, s.ID+".json")
	return p, os.WriteFile(p, append(data, '\n'), 0o644)
}
