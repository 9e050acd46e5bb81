package sweep

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgarlab/secrnn/runs"
)

func TestTopK(t *testing.T) {
	root := t.TempDir()

	losses := map[string]string{
		"run_a": "0.5",
		"run_b": "0.2",
		"run_c": "0.9",
	}
	for name, loss := range losses {
		dir := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, runs.WriteEvalResults(dir, name, map[string]string{"eval_loss": loss}))
	}

	// A run that never evaluated has no loss to rank by.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "run_d"), 0o755))

	best, err := TopK(root, 2)
	require.NoError(t, err)
	require.Len(t, best, 2)

	assert.Equal(t, "run_b", best[0].Name)
	assert.Equal(t, 0.2, best[0].EvalLoss)
	assert.Equal(t, "run_a", best[1].Name)
}

func TestTopKWantMoreThanRuns(t *testing.T) {
	root := t.TempDir()

	dir := filepath.Join(root, "run_a")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, runs.WriteEvalResults(dir, "run_a", map[string]string{"eval_loss": "0.5"}))

	best, err := TopK(root, 10)
	require.NoError(t, err)
	assert.Len(t, best, 1)
}
