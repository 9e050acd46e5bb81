package sweep

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgarlab/secrnn/api"
	"github.com/edgarlab/secrnn/runs"
)

func launchExperiment() api.Experiment {
	e := api.DefaultExperiment()
	e.DataDirs = []string{"data/sec_fold_0"}
	e.FinbertPath = "models/finbert"
	e.KPIModelPath = "models/kpi/kpi_pytorch_model.bin"
	e.TaskName = "sec_regression"
	return e
}

func TestArgs(t *testing.T) {
	e := api.Experiment{
		DataDirs:             []string{"data/sec_fold_0", "data/sec_fold_1"},
		FinbertPath:          "models/finbert",
		KPIModelPath:         "models/kpi/kpi_pytorch_model.bin",
		AdapterPath:          "models/sec_adapter",
		TaskName:             "sec_regression",
		TypeText:             api.TextParagraphs,
		PercentageChangeType: api.ChangeStandard,
		LossMode:             api.LossKPI,
		AdapterOnly:          true,
		NumTrainEpochs:       50,
		LearningRate:         5e-5,
		MaxGradNorm:          1,
		TrainBatchSize:       32,
		EvalBatchSize:        64,
		MaxSeqLength:         256,
		RNNNumLayers:         2,
		RNNHiddenSize:        256,
		WarmupSteps:          100,
		GradAccumSteps:       2,
		Seed:                 7,
		Comment:              "sweep1",
	}

	want := []string{
		"--data_dirs", "data/sec_fold_0,data/sec_fold_1",
		"--finbert_path", "models/finbert",
		"--kpi_model_path", "models/kpi/kpi_pytorch_model.bin",
		"--meta_sec_adapter", "models/sec_adapter",
		"--percentage_change_type", "percentage_change_standard",
		"--task_name", "sec_regression",
		"--output_dir", "runs",
		"--do_train",
		"--num_train_epochs", "50",
		"--learning_rate", "5e-05",
		"--max_grad_norm", "1",
		"--train_batch_size", "32",
		"--eval_batch_size", "64",
		"--max_seq_length", "256",
		"--type_text", "mda_paragraphs",
		"--is_adapter",
		"--is_kpi_loss",
		"--comment", "sweep1",
		"--warmup_steps", "100",
		"--gradient_accumulation_steps", "2",
		"--seed", "7",
	}

	assert.Equal(t, want, Args(e, "runs"))
}

func TestArgsDefaults(t *testing.T) {
	args := Args(launchExperiment(), "runs")

	// Entry point defaults stay implicit.
	assert.NotContains(t, args, "--warmup_steps")
	assert.NotContains(t, args, "--gradient_accumulation_steps")
	assert.NotContains(t, args, "--seed")
	assert.NotContains(t, args, "--meta_sec_adapter")
	assert.NotContains(t, args, "--is_adapter")
	assert.NotContains(t, args, "--is_kpi_loss")

	// The comment flag is always present, even empty.
	assert.Equal(t, []string{"--comment", ""}, args[len(args)-2:])
}

func fakeTrainer(t *testing.T, script string) *Launcher {
	t.Helper()

	p := filepath.Join(t.TempDir(), "trainer.sh")
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	return &Launcher{Python: "/bin/sh", Entrypoint: p, OutputDir: t.TempDir()}
}

func TestRun(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a shell")
	}

	l := fakeTrainer(t, `echo "epoch 1 done"`)

	e := launchExperiment()
	results, err := l.Run(context.Background(), []api.Experiment{e})
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.NoError(t, res.Err)
	assert.Equal(t, e.Name(), res.Name)
	assert.Positive(t, res.Duration)

	got, err := runs.ReadManifest(filepath.Join(l.OutputDir, res.Name))
	require.NoError(t, err)
	assert.Equal(t, e, *got)

	log, err := os.ReadFile(res.LogPath)
	require.NoError(t, err)
	assert.Contains(t, string(log), "epoch 1 done")
}

func TestRunFailureSurfacesStderr(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a shell")
	}

	l := fakeTrainer(t, `echo "ValueError: bad fold directory" 1>&2; exit 3`)

	results, err := l.Run(context.Background(), []api.Experiment{launchExperiment()})
	require.Error(t, err)
	require.Len(t, results, 1)
	assert.ErrorContains(t, results[0].Err, "ValueError: bad fold directory")
}

func TestRunKeepsGoingPastFailures(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a shell")
	}

	l := fakeTrainer(t, strings.Join([]string{
		`case "$*" in *"--comment fail"*) echo "RuntimeError: boom" 1>&2; exit 1 ;; esac`,
		`echo ok`,
	}, "\n"))

	var exps []api.Experiment
	for _, comment := range []string{"a", "fail", "b"} {
		e := launchExperiment()
		e.Comment = comment
		exps = append(exps, e)
	}

	results, err := l.Run(context.Background(), exps)
	require.Error(t, err)
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.ErrorContains(t, results[1].Err, "RuntimeError")
	assert.NoError(t, results[2].Err)
}

func TestRunCancel(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a shell")
	}

	l := fakeTrainer(t, `sleep 30`)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	results, err := l.Run(ctx, []api.Experiment{launchExperiment()})
	require.Error(t, err)
	require.Len(t, results, 1)

	assert.ErrorIs(t, results[0].Err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestWriteScripts(t *testing.T) {
	dir := t.TempDir()

	e := launchExperiment()
	paths, err := WriteScripts(dir, []api.Experiment{e}, ScriptOptions{
		Python:     "python3",
		Entrypoint: "run_finetune_sec_adapter_finbert.py",
		OutputDir:  "runs",
		Partition:  "gpu",
		TimeLimit:  "24:00:00",
	})
	require.NoError(t, err)
	require.Len(t, paths, 1)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)

	script := string(data)
	assert.True(t, strings.HasPrefix(script, "#!/bin/bash\n"))
	assert.Contains(t, script, "#SBATCH --job-name="+sanitize(e.Name()))
	assert.Contains(t, script, "#SBATCH --gres=gpu:1")
	assert.Contains(t, script, "#SBATCH --partition=gpu")
	assert.Contains(t, script, "#SBATCH --time=24:00:00")
	assert.Contains(t, script, "'python3' 'run_finetune_sec_adapter_finbert.py'")
	assert.Contains(t, script, "--learning_rate '5e-05'")
	assert.Contains(t, script, "--do_train")
}

func TestWriteScriptsDefaults(t *testing.T) {
	dir := t.TempDir()

	paths, err := WriteScripts(dir, []api.Experiment{launchExperiment()}, ScriptOptions{})
	require.NoError(t, err)
	require.Len(t, paths, 1)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)

	script := string(data)
	assert.NotContains(t, script, "--partition=")
	assert.NotContains(t, script, "#SBATCH --time=")
	assert.Contains(t, script, "run_finetune_sec_adapter_finbert.py")
}
