package sweep

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgarlab/secrnn/api"
	"github.com/edgarlab/secrnn/parser"
)

func parseSweep(t *testing.T, input string) *Sweep {
	t.Helper()

	f, err := parser.ParseFile(strings.NewReader(input))
	require.NoError(t, err)

	s, err := FromFile(f)
	require.NoError(t, err)

	return s
}

func TestFromFile(t *testing.T) {
	s := parseSweep(t, `
FROM models/finbert
KPI models/kpi/kpi_pytorch_model.bin
ADAPTER models/sec_adapter
TASK sec_regression
COMMENT sweep1
FOLDS data/sec_fold_0,data/sec_fold_1
FOLDS data/sec_fold_2
LOSS mse
LOSS kpi
PARAMETER learning_rate 5e-5
PARAMETER learning_rate 1e-4
PARAMETER train_batch_size 32
`)

	assert.Equal(t, "models/finbert", s.Base.FinbertPath)
	assert.Equal(t, "models/kpi/kpi_pytorch_model.bin", s.Base.KPIModelPath)
	assert.Equal(t, "models/sec_adapter", s.Base.AdapterPath)
	assert.Equal(t, "sec_regression", s.Base.TaskName)
	assert.Equal(t, "sweep1", s.Base.Comment)

	assert.Equal(t, [][]string{
		{"data/sec_fold_0", "data/sec_fold_1"},
		{"data/sec_fold_2"},
	}, s.Folds)
	assert.Equal(t, []api.LossMode{api.LossMSE, api.LossKPI}, s.Losses)
	assert.Equal(t, map[string][]string{
		"learning_rate":    {"5e-5", "1e-4"},
		"train_batch_size": {"32"},
	}, s.Params)
}

func TestFromFileBadLoss(t *testing.T) {
	f, err := parser.ParseFile(strings.NewReader("FROM models/finbert\nLOSS huber\n"))
	require.NoError(t, err)

	_, err = FromFile(f)
	assert.ErrorContains(t, err, "unknown loss mode")
}

func TestFromFileEmptyFolds(t *testing.T) {
	f, err := parser.ParseFile(strings.NewReader("FROM models/finbert\nFOLDS ,\n"))
	require.NoError(t, err)

	_, err = FromFile(f)
	assert.ErrorContains(t, err, "no directories")
}

func baseSweep() *Sweep {
	base := api.DefaultExperiment()
	base.FinbertPath = "models/finbert"
	base.KPIModelPath = "models/kpi/kpi_pytorch_model.bin"
	base.TaskName = "sec_regression"

	return &Sweep{
		Base:   base,
		Folds:  [][]string{{"data/sec_fold_0"}},
		Params: make(map[string][]string),
	}
}

func TestExpand(t *testing.T) {
	s := baseSweep()
	s.Folds = [][]string{{"data/sec_fold_0"}, {"data/sec_fold_1"}}
	s.Losses = []api.LossMode{api.LossMSE, api.LossKPI}
	s.Params["learning_rate"] = []string{"5e-5", "1e-4"}

	exps, err := s.Expand()
	require.NoError(t, err)
	require.Len(t, exps, 8)

	// Fold sets are the outermost axis.
	for _, e := range exps[:4] {
		assert.Equal(t, []string{"data/sec_fold_0"}, e.DataDirs)
	}
	for _, e := range exps[4:] {
		assert.Equal(t, []string{"data/sec_fold_1"}, e.DataDirs)
	}

	assert.Equal(t, api.LossMSE, exps[0].LossMode)
	assert.Equal(t, 5e-5, exps[0].LearningRate)
	assert.Equal(t, 1e-4, exps[1].LearningRate)
	assert.Equal(t, api.LossKPI, exps[2].LossMode)
}

func TestExpandWeakTyping(t *testing.T) {
	s := baseSweep()
	s.Params["train_batch_size"] = []string{"32"}
	s.Params["is_adapter"] = []string{"true"}
	s.Params["num_train_epochs"] = []string{"50"}

	exps, err := s.Expand()
	require.NoError(t, err)
	require.Len(t, exps, 1)

	assert.Equal(t, 32, exps[0].TrainBatchSize)
	assert.True(t, exps[0].AdapterOnly)
	assert.Equal(t, 50.0, exps[0].NumTrainEpochs)
}

func TestExpandDedup(t *testing.T) {
	s := baseSweep()
	s.Params["learning_rate"] = []string{"5e-5", "5e-5"}

	exps, err := s.Expand()
	require.NoError(t, err)
	assert.Len(t, exps, 1)
}

func TestExpandUnknownParameter(t *testing.T) {
	s := baseSweep()
	s.Params["laerning_rate"] = []string{"5e-5"}

	_, err := s.Expand()
	assert.ErrorContains(t, err, "laerning_rate")
}

func TestExpandInvalidConfiguration(t *testing.T) {
	s := baseSweep()
	s.Params["learning_rate"] = []string{"-1"}

	_, err := s.Expand()
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestExpandNoFolds(t *testing.T) {
	s := baseSweep()
	s.Folds = nil

	_, err := s.Expand()
	assert.ErrorContains(t, err, "no FOLDS")
}

func TestExpandNamesUnique(t *testing.T) {
	s := baseSweep()
	s.Folds = [][]string{{"data/sec_fold_0"}, {"data/sec_fold_1"}}
	s.Params["rnn_hidden_size"] = []string{"128", "256"}

	exps, err := s.Expand()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, e := range exps {
		names[e.Name()] = true
	}
	assert.Len(t, names, len(exps))
}
