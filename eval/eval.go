// Package eval scores saved regressor checkpoints against exported filing
// folds, reproducing the trainer's evaluation loop without the external
// process.
package eval

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/edgarlab/secrnn/api"
	"github.com/edgarlab/secrnn/convert"
	"github.com/edgarlab/secrnn/dataset"
	"github.com/edgarlab/secrnn/model/kpi"
)

// Metrics summarizes one evaluation pass. Loss, MSE and MAE are computed
// in the transformed label space the run trained in; MAERaw is mapped back
// through the transform's inverse.
type Metrics struct {
	// Loss is the objective the trainer reports: MSE plus the KPI
	// auxiliary term when the run trained with it.
	Loss float64

	MSE    float64
	MAE    float64
	MAERaw float64

	// KPILoss is the auxiliary term, set only for KPI-informed runs.
	KPILoss float64

	// Count is the number of filings scored.
	Count int
}

// Results renders the metrics as the trainer's eval results pairs.
func (m *Metrics) Results() map[string]string {
	results := map[string]string{
		"eval_loss":    formatFloat(m.Loss),
		"eval_mse":     formatFloat(m.MSE),
		"eval_mae":     formatFloat(m.MAE),
		"eval_mae_raw": formatFloat(m.MAERaw),
		"eval_samples": strconv.Itoa(m.Count),
	}

	if m.KPILoss != 0 {
		results["eval_kpi_loss"] = formatFloat(m.KPILoss)
	}

	return results
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// ProgressFunc receives completion updates as batches finish.
type ProgressFunc func(completed, total int)

type Options struct {
	// Split selects which exported split to score. Defaults to "val".
	Split string

	// Progress, when set, is called after every scored batch.
	Progress ProgressFunc
}

// Evaluate scores a checkpoint under the configuration that trained it:
// the same folds, label transform, batch size and sequence cap. The
// checkpoint path may name the weights file itself or the directory
// holding it.
func Evaluate(e api.Experiment, checkpoint string, opts Options) (*Metrics, error) {
	if opts.Split == "" {
		opts.Split = "val"
	}

	path, err := resolveCheckpoint(checkpoint)
	if err != nil {
		return nil, err
	}

	model, err := convert.LoadRegressor(path)
	if err != nil {
		return nil, err
	}
	model.SetTraining(false)

	var kpiModel *kpi.Model
	if e.LossMode == api.LossKPI {
		if kpiModel, err = convert.LoadKPI(e.KPIModelPath); err != nil {
			return nil, fmt.Errorf("loading kpi model: %w", err)
		}
		kpiModel.SetTraining(false)
	}

	var train, score []dataset.Filing
	var width int
	for _, dir := range e.DataDirs {
		fold, err := dataset.Load(dir)
		if err != nil {
			return nil, err
		}

		split, err := fold.Split(opts.Split)
		if err != nil {
			return nil, err
		}

		if width == 0 {
			width = fold.Width
		} else if fold.Width != width {
			return nil, fmt.Errorf("fold %s has embedding width %d, want %d", dir, fold.Width, width)
		}

		train = append(train, fold.Train...)
		score = append(score, split...)
	}

	if len(score) == 0 {
		return nil, fmt.Errorf("no filings in %s split", opts.Split)
	}

	tr, err := dataset.NewTransform(e.PercentageChangeType, dataset.Labels(train))
	if err != nil {
		return nil, err
	}

	batches, err := dataset.Batches(score, width, e.EvalBatchSize, e.MaxSeqLength)
	if err != nil {
		return nil, err
	}

	metrics := &Metrics{}
	var sqErr, absErr, absErrRaw, aux float64
	for i, batch := range batches {
		preds, err := model.Forward(batch.Inputs)
		if err != nil {
			return nil, err
		}

		for j, label := range batch.Labels {
			pred := preds.At(j, 0)
			diff := pred - tr.Apply(label)

			sqErr += diff * diff
			absErr += math.Abs(diff)
			absErrRaw += math.Abs(tr.Invert(pred) - label)
		}

		if kpiModel != nil {
			if len(batch.KPIs) == 0 {
				return nil, fmt.Errorf("run trained with the kpi objective but the fold has no kpi vectors")
			}

			labels := make([]float64, len(batch.Labels))
			for j, label := range batch.Labels {
				labels[j] = tr.Apply(label)
			}

			loss, err := kpiModel.Loss(kpiMatrix(batch.KPIs), labels)
			if err != nil {
				return nil, err
			}

			aux += loss * float64(len(batch.Labels))
		}

		metrics.Count += len(batch.Labels)

		if opts.Progress != nil {
			opts.Progress(i+1, len(batches))
		}
	}

	n := float64(metrics.Count)
	metrics.MSE = sqErr / n
	metrics.MAE = absErr / n
	metrics.MAERaw = absErrRaw / n
	metrics.Loss = metrics.MSE

	if kpiModel != nil {
		metrics.KPILoss = aux / n
		metrics.Loss += metrics.KPILoss
	}

	return metrics, nil
}

func kpiMatrix(kpis [][]float64) *mat.Dense {
	width := len(kpis[0])
	flat := make([]float64, 0, len(kpis)*width)
	for _, row := range kpis {
		flat = append(flat, row...)
	}

	return mat.NewDense(len(kpis), width, flat)
}

func resolveCheckpoint(p string) (string, error) {
	fi, err := os.Stat(p)
	if err != nil {
		return "", err
	}

	if fi.IsDir() {
		return filepath.Join(p, convert.RegressorBlob), nil
	}

	return p, nil
}
