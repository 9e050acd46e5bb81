// Package runs reads and maintains the on-disk run layout shared with the
// fine-tuning entry point: one directory per run under a common root,
// checkpoint-<epoch> subdirectories inside it, the trainer's eval results
// file and the restore state it leaves behind, plus the launch manifest the
// sweep driver writes alongside them.
package runs

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/exp/maps"

	"github.com/edgarlab/secrnn/api"
	"github.com/edgarlab/secrnn/envconfig"
)

const (
	// manifestName matches the file the trainer saves its own arguments
	// under, so a run directory carries one record of how it was launched
	// no matter which side wrote it.
	manifestName = "training_args.json"

	// globalStepName is the restore state the trainer leaves behind while
	// a run can still be resumed.
	globalStepName = "global_step.bin"

	evalResultsSuffix = "eval_results.txt"
	evalLossKey       = "eval_loss"
)

// SessionsDir holds sweep session records under the runs root. It is not
// a run directory and listings skip it.
const SessionsDir = "sessions"

// CheckpointDir returns the directory of one checkpoint inside a run.
func CheckpointDir(dir string, epoch int) string {
	return filepath.Join(dir, fmt.Sprintf("checkpoint-%d", epoch))
}

// WriteManifest records the configuration that launched a run inside its
// directory so later listings can show how the run was set up.
func WriteManifest(dir string, e api.Experiment) error {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, manifestName), append(data, '\n'), 0o644)
}

// ReadManifest loads the launch manifest of a run. Runs started by hand
// have none, which callers detect with os.ErrNotExist.
func ReadManifest(dir string) (*api.Experiment, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		return nil, err
	}

	var e api.Experiment
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("reading %s: %w", manifestName, err)
	}

	return &e, nil
}

// Checkpoints enumerates the checkpoint directories of a run, ascending by
// epoch. Entries that do not follow the checkpoint-<epoch> convention are
// ignored.
func Checkpoints(dir string) ([]api.Checkpoint, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var cps []api.Checkpoint
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		suffix, ok := strings.CutPrefix(entry.Name(), "checkpoint-")
		if !ok {
			continue
		}

		epoch, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}

		fi, err := entry.Info()
		if err != nil {
			return nil, err
		}

		size, err := dirSize(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		cps = append(cps, api.Checkpoint{Epoch: epoch, Size: size, ModifiedAt: fi.ModTime()})
	}

	slices.SortFunc(cps, func(a, b api.Checkpoint) int {
		return cmp.Compare(a.Epoch, b.Epoch)
	})

	return cps, nil
}

// List summarizes every run under root, newest first. A missing root means
// no runs yet, not an error.
func List(root string) ([]api.RunSummary, error) {
	entries, err := os.ReadDir(root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	var summaries []api.RunSummary
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == SessionsDir {
			continue
		}

		summary, err := summarize(root, entry)
		if err != nil {
			slog.Warn("skipping unreadable run", "name", entry.Name(), "error", err)
			continue
		}

		summaries = append(summaries, summary)
	}

	slices.SortFunc(summaries, func(a, b api.RunSummary) int {
		return b.ModifiedAt.Compare(a.ModifiedAt)
	})

	return summaries, nil
}

func summarize(root string, entry os.DirEntry) (api.RunSummary, error) {
	fi, err := entry.Info()
	if err != nil {
		return api.RunSummary{}, err
	}

	name := entry.Name()
	dir := filepath.Join(root, name)

	summary := api.RunSummary{
		Name:       name,
		Resumable:  resumable(dir),
		ModifiedAt: fi.ModTime(),
	}

	cps, err := Checkpoints(dir)
	if err != nil {
		return api.RunSummary{}, err
	}

	for _, cp := range cps {
		summary.Epochs = max(summary.Epochs, cp.Epoch)
		summary.Size += cp.Size
		if cp.ModifiedAt.After(summary.ModifiedAt) {
			summary.ModifiedAt = cp.ModifiedAt
		}
	}

	if results, err := EvalResults(dir, name); err == nil {
		if loss, err := strconv.ParseFloat(results[evalLossKey], 64); err == nil {
			summary.EvalLoss = loss
		}
	}

	return summary, nil
}

// Show collects the full detail of one run: manifest, checkpoints and eval
// results. A missing run reports os.ErrNotExist.
func Show(root, name string) (*api.RunDetail, error) {
	dir := filepath.Join(root, name)
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, err
	} else if !fi.IsDir() {
		return nil, fmt.Errorf("run %q is not a directory", name)
	}

	detail := &api.RunDetail{
		Name:       name,
		Resumable:  resumable(dir),
		ModifiedAt: fi.ModTime(),
	}

	exp, err := ReadManifest(dir)
	switch {
	case err == nil:
		detail.Experiment = exp
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}

	if detail.Checkpoints, err = Checkpoints(dir); err != nil {
		return nil, err
	}

	for _, cp := range detail.Checkpoints {
		if cp.ModifiedAt.After(detail.ModifiedAt) {
			detail.ModifiedAt = cp.ModifiedAt
		}
	}

	results, err := EvalResults(dir, name)
	switch {
	case err == nil:
		detail.EvalResults = results
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}

	return detail, nil
}

// EvalResults parses the trainer's "<key> = <value>" metrics file for a run.
func EvalResults(dir, name string) (map[string]string, error) {
	data, err := os.ReadFile(filepath.Join(dir, name+evalResultsSuffix))
	if err != nil {
		return nil, err
	}

	results := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		key, value, ok := strings.Cut(line, " = ")
		if !ok {
			return nil, fmt.Errorf("malformed eval result line %q", line)
		}

		results[key] = value
	}

	return results, nil
}

// WriteEvalResults writes metrics in the trainer's "<key> = <value>" format
// so both sides produce interchangeable files. Keys are written sorted.
func WriteEvalResults(dir, name string, results map[string]string) error {
	keys := maps.Keys(results)
	slices.Sort(keys)

	var b strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&b, "%s = %s\n", key, results[key])
	}

	return os.WriteFile(filepath.Join(dir, name+evalResultsSuffix), []byte(b.String()), 0o644)
}

// Prune removes the oldest checkpoints of a run past the retention window.
// The newest checkpoint always survives. Removed directories are returned
// so callers can report what was reclaimed.
func Prune(root, name string, keep int) ([]string, error) {
	if envconfig.NoPrune() {
		slog.Debug("checkpoint pruning disabled", "run", name)
		return nil, nil
	}

	if keep < 1 {
		keep = 1
	}

	dir := filepath.Join(root, name)
	cps, err := Checkpoints(dir)
	if err != nil {
		return nil, err
	}

	if len(cps) <= keep {
		return nil, nil
	}

	var removed []string
	for _, cp := range cps[:len(cps)-keep] {
		p := CheckpointDir(dir, cp.Epoch)
		if err := os.RemoveAll(p); err != nil {
			return removed, err
		}

		slog.Info("pruned checkpoint", "run", name, "epoch", cp.Epoch)
		removed = append(removed, p)
	}

	return removed, nil
}

func resumable(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, globalStepName))
	return err == nil
}

func dirSize(dir string) (n int64, err error) {
	err = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}

		n += fi.Size()
		return nil
	})

	return n, err
}
