// Package sweep expands declarative Sweepfile definitions into concrete
// fine-tuning configurations and launches them against the external entry
// point, one supervised subprocess per configuration.
package sweep

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/mitchellh/mapstructure"
	"golang.org/x/exp/maps"

	"github.com/edgarlab/secrnn/api"
	"github.com/edgarlab/secrnn/parser"
)

// Sweep is the declarative form of an experiment batch: a shared base
// configuration plus the axes to cross.
type Sweep struct {
	// Base carries the fields every configuration shares.
	Base api.Experiment

	// Folds lists the fold sets to run, the outermost axis.
	Folds [][]string

	// Losses lists the training objectives to cross.
	Losses []api.LossMode

	// Params maps entry point argument names to the values swept over.
	Params map[string][]string
}

// FromFile builds a sweep from a parsed Sweepfile. Single-valued verbs
// overwrite on repetition; FOLDS, LOSS and PARAMETER lines accumulate.
func FromFile(f *parser.File) (*Sweep, error) {
	s := &Sweep{
		Base:   api.DefaultExperiment(),
		Params: make(map[string][]string),
	}

	for _, cmd := range f.Commands {
		switch cmd.Name {
		case "finbert":
			s.Base.FinbertPath = cmd.Args
		case "kpi":
			s.Base.KPIModelPath = cmd.Args
		case "adapter":
			s.Base.AdapterPath = cmd.Args
		case "task":
			s.Base.TaskName = cmd.Args
		case "comment":
			s.Base.Comment = cmd.Args
		case "folds":
			var fold []string
			for _, dir := range strings.Split(cmd.Args, ",") {
				if dir = strings.TrimSpace(dir); dir != "" {
					fold = append(fold, dir)
				}
			}

			if len(fold) == 0 {
				return nil, fmt.Errorf("FOLDS line has no directories: %q", cmd.Args)
			}

			s.Folds = append(s.Folds, fold)
		case "loss":
			switch mode := api.LossMode(cmd.Args); mode {
			case api.LossMSE, api.LossKPI:
				s.Losses = append(s.Losses, mode)
			default:
				return nil, fmt.Errorf("unknown loss mode %q", cmd.Args)
			}
		default:
			s.Params[cmd.Name] = append(s.Params[cmd.Name], cmd.Args)
		}
	}

	return s, nil
}

// Expand produces one validated experiment per point of the cross-product:
// fold sets crossed with loss modes crossed with every swept parameter.
// Fold sets are the outermost axis so runs touching the same data land
// next to each other in launch order. Points that collapse to the same
// configuration are deduplicated.
func (s *Sweep) Expand() ([]api.Experiment, error) {
	if len(s.Folds) == 0 {
		return nil, fmt.Errorf("sweep has no FOLDS line")
	}

	losses := s.Losses
	if len(losses) == 0 {
		losses = []api.LossMode{s.Base.LossMode}
	}

	names := maps.Keys(s.Params)
	slices.Sort(names)

	var exps []api.Experiment
	seen := make(map[string]bool)

	for _, fold := range s.Folds {
		for _, loss := range losses {
			base := s.Base
			base.DataDirs = slices.Clone(fold)
			base.LossMode = loss

			points := []map[string]string{{}}
			for _, name := range names {
				var next []map[string]string
				for _, point := range points {
					for _, value := range s.Params[name] {
						p := maps.Clone(point)
						p[name] = value
						next = append(next, p)
					}
				}

				points = next
			}

			for _, point := range points {
				e := base
				if err := assign(&e, point); err != nil {
					return nil, err
				}

				if err := e.Validate(); err != nil {
					return nil, fmt.Errorf("invalid configuration %s: %w", e.Name(), err)
				}

				key, err := json.Marshal(e)
				if err != nil {
					return nil, err
				}

				if seen[string(key)] {
					continue
				}
				seen[string(key)] = true

				exps = append(exps, e)
			}
		}
	}

	return exps, nil
}

// assign applies swept parameter values onto a configuration by the
// entry point argument names, which double as the record's json tags.
func assign(e *api.Experiment, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           e,
	})
	if err != nil {
		return err
	}

	if err := dec.Decode(values); err != nil {
		return fmt.Errorf("applying swept parameters: %w", err)
	}

	return nil
}
