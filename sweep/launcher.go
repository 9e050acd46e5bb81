package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/edgarlab/secrnn/api"
	"github.com/edgarlab/secrnn/envconfig"
	"github.com/edgarlab/secrnn/runs"
)

const driverLogName = "driver.log"

// Args renders the argument vector the entry point expects for one
// configuration. outputDir is the runs root; the entry point appends the
// run name itself.
func Args(e api.Experiment, outputDir string) []string {
	args := []string{
		"--data_dirs", strings.Join(e.DataDirs, ","),
		"--finbert_path", e.FinbertPath,
		"--kpi_model_path", e.KPIModelPath,
	}

	if e.AdapterPath != "" {
		args = append(args, "--meta_sec_adapter", e.AdapterPath)
	}

	args = append(args,
		"--percentage_change_type", e.PercentageChangeType,
		"--task_name", e.TaskName,
		"--output_dir", outputDir,
		"--do_train",
		"--num_train_epochs", formatFloat(e.NumTrainEpochs),
		"--learning_rate", formatFloat(e.LearningRate),
		"--max_grad_norm", formatFloat(e.MaxGradNorm),
		"--train_batch_size", strconv.Itoa(e.TrainBatchSize),
		"--eval_batch_size", strconv.Itoa(e.EvalBatchSize),
		"--max_seq_length", strconv.Itoa(e.MaxSeqLength),
		"--type_text", e.TypeText,
	)

	if e.AdapterOnly {
		args = append(args, "--is_adapter")
	}
	if e.LossMode == api.LossKPI {
		args = append(args, "--is_kpi_loss")
	}

	// The comment flag is always present, even empty, so the entry point
	// produces the same run name the driver computed.
	args = append(args, "--comment", e.Comment)

	// The entry point defaults these itself; only deviations are passed.
	if e.WarmupSteps != 0 {
		args = append(args, "--warmup_steps", strconv.Itoa(e.WarmupSteps))
	}
	if e.GradAccumSteps != 1 {
		args = append(args, "--gradient_accumulation_steps", strconv.Itoa(e.GradAccumSteps))
	}
	if e.Seed != 42 {
		args = append(args, "--seed", strconv.Itoa(e.Seed))
	}

	return args
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Launcher runs the external fine-tuning entry point.
type Launcher struct {
	// Python is the interpreter to invoke.
	Python string

	// Entrypoint is the fine-tuning script handed to the interpreter.
	Entrypoint string

	// OutputDir is the runs root handed to --output_dir.
	OutputDir string

	// Progress, when set, is called as configurations finish.
	Progress func(completed, total int)
}

// NewLauncher returns a launcher configured from the environment.
func NewLauncher() *Launcher {
	return &Launcher{
		Python:     envconfig.Python(),
		Entrypoint: envconfig.Entrypoint(),
		OutputDir:  envconfig.RunsDir(),
	}
}

// Result records the outcome of one launched configuration.
type Result struct {
	Experiment api.Experiment
	Name       string
	LogPath    string
	Duration   time.Duration
	Err        error
}

// Run launches every configuration, at most SECRNN_MAX_PARALLEL at a time,
// and reports one result per configuration in input order. A failing run
// does not stop its siblings; there is no retry, a failed configuration is
// left for wholesale resubmission. The first failure is also returned so
// callers can exit nonzero.
func (l *Launcher) Run(ctx context.Context, exps []api.Experiment) ([]Result, error) {
	results := make([]Result, len(exps))

	sem := semaphore.NewWeighted(int64(max(1, envconfig.MaxParallel())))

	var g errgroup.Group
	var completed atomic.Int64
	for i, e := range exps {
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				results[i] = Result{Experiment: e, Name: e.Name(), Err: err}
				return err
			}
			defer sem.Release(1)

			results[i] = l.launch(ctx, e)
			if l.Progress != nil {
				l.Progress(int(completed.Add(1)), len(exps))
			}
			return results[i].Err
		})
	}

	err := g.Wait()
	return results, err
}

func (l *Launcher) launch(ctx context.Context, e api.Experiment) Result {
	name := e.Name()
	res := Result{Experiment: e, Name: name}

	runDir := filepath.Join(l.OutputDir, name)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		res.Err = err
		return res
	}

	if err := runs.WriteManifest(runDir, e); err != nil {
		res.Err = err
		return res
	}

	logf, err := os.Create(filepath.Join(runDir, driverLogName))
	if err != nil {
		res.Err = err
		return res
	}
	defer logf.Close()
	res.LogPath = logf.Name()

	status := NewStatusWriter(logf)

	cmd := exec.Command(l.Python, append([]string{l.Entrypoint}, Args(e, l.OutputDir)...)...)
	cmd.Stdout = logf
	cmd.Stderr = status
	cmd.Env = os.Environ()
	cmd.SysProcAttr = sysProcAttr

	slog.Info("starting fine-tune run", "run", name, "cmd", cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		res.Err = fmt.Errorf("error starting entry point: %v %s", err, status.LastErrMsg)
		return res
	}

	// reap the trainer when it exits
	done := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		// Favor the trainer's own message over the exit status.
		if err != nil && status.LastErrMsg != "" {
			slog.Error("fine-tune run terminated", "run", name, "error", err)
			err = errors.New(status.LastErrMsg)
		}
		done <- err
	}()

	select {
	case <-ctx.Done():
		kill(cmd)
		<-done
		res.Err = ctx.Err()
	case err := <-done:
		res.Err = err
	}

	res.Duration = time.Since(start)
	return res
}
