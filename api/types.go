// Package api holds the experiment record shared by the sweep driver, the
// run store and the monitor server, plus the client for the monitor API.
package api

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// StatusError is an error with an HTTP status code and message.
type StatusError struct {
	StatusCode   int    // e.g. 400
	Status       string // e.g. "400 Bad Request"
	ErrorMessage string `json:"error"`
}

func (e StatusError) Error() string {
	switch {
	case e.Status != "" && e.ErrorMessage != "":
		return fmt.Sprintf("%s: %s", e.Status, e.ErrorMessage)
	case e.Status != "":
		return e.Status
	case e.ErrorMessage != "":
		return e.ErrorMessage
	default:
		// this should not happen
		return "something went wrong, please see the secrnn server logs for details"
	}
}

// LossMode selects the training objective handed to the entry point.
type LossMode string

const (
	// LossMSE trains on the plain regression loss.
	LossMSE LossMode = "mse"
	// LossKPI adds the KPI-informed auxiliary term.
	LossKPI LossMode = "kpi"
)

// Text field selectors understood by the entry point.
const (
	TextParagraphs = "mda_paragraphs"
	TextSentences  = "mda_sentences"
)

// Label transforms understood by the entry point.
const (
	ChangeRaw      = "percentage_change"
	ChangeStandard = "percentage_change_standard"
	ChangeMinMax   = "percentage_change_min_max"
)

// Experiment is one fine-tuning configuration: the fold set it trains on,
// the checkpoints that seed it, and the hyperparameters handed to the
// external entry point. Records are never mutated once created; sweep axes
// produce fresh records.
type Experiment struct {
	// DataDirs lists the k-fold training directories making up this
	// configuration's fold set.
	DataDirs []string `json:"data_dirs"`

	// FinbertPath points at the pretrained base model directory. Its last
	// path element becomes the base token of the run name.
	FinbertPath string `json:"finbert_path"`

	// KPIModelPath points at the frozen KPI regression checkpoint.
	KPIModelPath string `json:"kpi_model_path"`

	// AdapterPath optionally points at a pretrained SEC adapter checkpoint.
	AdapterPath string `json:"meta_sec_adapter,omitempty"`

	TaskName             string   `json:"task_name"`
	TypeText             string   `json:"type_text"`
	PercentageChangeType string   `json:"percentage_change_type"`
	LossMode             LossMode `json:"loss_mode"`

	// AdapterOnly fine-tunes only the adapter parameters, leaving the base
	// model frozen.
	AdapterOnly bool `json:"is_adapter"`

	NumTrainEpochs float64 `json:"num_train_epochs"`
	LearningRate   float64 `json:"learning_rate"`
	MaxGradNorm    float64 `json:"max_grad_norm"`
	TrainBatchSize int     `json:"train_batch_size"`
	EvalBatchSize  int     `json:"eval_batch_size"`
	MaxSeqLength   int     `json:"max_seq_length"`

	RNNNumLayers  int `json:"rnn_num_layers"`
	RNNHiddenSize int `json:"rnn_hidden_size"`

	WarmupSteps        int `json:"warmup_steps"`
	GradAccumSteps     int `json:"gradient_accumulation_steps"`
	Seed               int `json:"seed"`
	MaxSaveCheckpoints int `json:"max_save_checkpoints"`

	Comment string `json:"comment"`
}

// DefaultExperiment returns a record carrying the entry point's defaults.
func DefaultExperiment() Experiment {
	return Experiment{
		TypeText:             TextParagraphs,
		PercentageChangeType: ChangeRaw,
		LossMode:             LossMSE,
		NumTrainEpochs:       10,
		LearningRate:         5e-5,
		MaxGradNorm:          1.0,
		TrainBatchSize:       64,
		EvalBatchSize:        64,
		MaxSeqLength:         512,
		RNNNumLayers:         2,
		RNNHiddenSize:        256,
		WarmupSteps:          0,
		GradAccumSteps:       1,
		Seed:                 42,
		MaxSaveCheckpoints:   3,
	}
}

// Validate fails fast on records the entry point would reject, so a sweep
// never launches a configuration that dies at argument parsing.
func (e Experiment) Validate() error {
	if len(e.DataDirs) == 0 {
		return fmt.Errorf("experiment has no data fold directories")
	}
	for _, dir := range e.DataDirs {
		if strings.TrimSpace(dir) == "" {
			return fmt.Errorf("experiment has an empty data fold directory")
		}
	}

	if e.FinbertPath == "" {
		return fmt.Errorf("missing finbert path")
	}
	if e.KPIModelPath == "" {
		return fmt.Errorf("missing kpi model path")
	}
	if e.TaskName == "" {
		return fmt.Errorf("missing task name")
	}

	switch e.TypeText {
	case TextParagraphs, TextSentences:
	default:
		return fmt.Errorf("unknown type_text %q", e.TypeText)
	}

	switch e.PercentageChangeType {
	case ChangeRaw, ChangeStandard, ChangeMinMax:
	default:
		return fmt.Errorf("unknown percentage_change_type %q", e.PercentageChangeType)
	}

	switch e.LossMode {
	case LossMSE, LossKPI:
	default:
		return fmt.Errorf("unknown loss mode %q", e.LossMode)
	}

	if e.NumTrainEpochs <= 0 {
		return fmt.Errorf("num_train_epochs must be positive, got %v", e.NumTrainEpochs)
	}
	if e.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be positive, got %v", e.LearningRate)
	}
	if e.MaxGradNorm <= 0 {
		return fmt.Errorf("max_grad_norm must be positive, got %v", e.MaxGradNorm)
	}
	if e.TrainBatchSize <= 0 || e.EvalBatchSize <= 0 {
		return fmt.Errorf("batch sizes must be positive, got train=%d eval=%d", e.TrainBatchSize, e.EvalBatchSize)
	}
	if e.MaxSeqLength <= 0 {
		return fmt.Errorf("max_seq_length must be positive, got %d", e.MaxSeqLength)
	}
	if e.RNNNumLayers <= 0 || e.RNNHiddenSize <= 0 {
		return fmt.Errorf("rnn dimensions must be positive, got layers=%d hidden=%d", e.RNNNumLayers, e.RNNHiddenSize)
	}
	if e.WarmupSteps < 0 {
		return fmt.Errorf("warmup_steps must not be negative, got %d", e.WarmupSteps)
	}
	if e.GradAccumSteps < 1 {
		return fmt.Errorf("gradient_accumulation_steps must be at least 1, got %d", e.GradAccumSteps)
	}

	// The comment ends up inside the run directory name.
	if strings.ContainsAny(e.Comment, `/\`) {
		return fmt.Errorf("comment must not contain path separators, got %q", e.Comment)
	}

	return nil
}

// Name returns the run directory name for this configuration. The layout
// matches the entry point's own naming so driver and trainer agree on
// where outputs land:
//
//	<task>_<base>_<pct>_kfold-<folds>_max_seq-<n>_rnn_num_layers-<l>_rnn_hidden_size-<h>_batch-<b>_lr-<lr>_warmup-<w>_epoch-<e>_comment-<c>
func (e Experiment) Name() string {
	var base string
	if parts := strings.FieldsFunc(e.FinbertPath, func(r rune) bool { return r == '/' }); len(parts) > 0 {
		base = parts[len(parts)-1]
	}

	prefix := fmt.Sprintf("%s_%s_kfold-%s_max_seq-%d_rnn_num_layers-%d_rnn_hidden_size-%d_batch-%d_lr-%s_warmup-%d_epoch-%s_comment-%s",
		base,
		e.PercentageChangeType,
		foldToken(e.DataDirs),
		e.MaxSeqLength,
		e.RNNNumLayers,
		e.RNNHiddenSize,
		e.TrainBatchSize,
		pyFloat(e.LearningRate),
		e.WarmupSteps,
		pyFloat(e.NumTrainEpochs),
		e.Comment,
	)

	return e.TaskName + "_" + prefix
}

// foldToken derives the kfold name token: each directory contributes the
// text after its last underscore (the fold index by convention), joined
// with dashes for multi-fold sets.
func foldToken(dirs []string) string {
	tokens := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		dir = strings.TrimRight(dir, "/")
		if i := strings.LastIndex(dir, "_"); i >= 0 {
			dir = dir[i+1:]
		}
		tokens = append(tokens, dir)
	}

	return strings.Join(tokens, "-")
}

// pyFloat renders a float the way Python's str() does, so names produced
// here match names produced by the entry point ("5e-05", "50.0").
func pyFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}

	return s
}

// RunSummary is one row of the run listing.
type RunSummary struct {
	Name string `json:"name"`

	// Epochs is the highest checkpoint epoch found in the run directory.
	Epochs int `json:"epochs"`

	// Size is the total size of the run's retained checkpoints.
	Size int64 `json:"size"`

	// EvalLoss is the loss from the run's eval results, when present.
	EvalLoss float64 `json:"eval_loss,omitempty"`

	// Resumable reports whether the trainer left restore state behind.
	Resumable bool `json:"resumable"`

	ModifiedAt time.Time `json:"modified_at"`
}

// ListResponse is the monitor response for the run listing.
type ListResponse struct {
	Runs []RunSummary `json:"runs"`
}

// Checkpoint describes one retained checkpoint directory.
type Checkpoint struct {
	Epoch      int       `json:"epoch"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// RunDetail is the monitor response for a single run.
type RunDetail struct {
	Name string `json:"name"`

	// Experiment is the driver-written manifest, when the run was launched
	// by a sweep rather than by hand.
	Experiment *Experiment `json:"experiment,omitempty"`

	Checkpoints []Checkpoint      `json:"checkpoints"`
	EvalResults map[string]string `json:"eval_results,omitempty"`
	Resumable   bool              `json:"resumable"`
	ModifiedAt  time.Time         `json:"modified_at"`
}
