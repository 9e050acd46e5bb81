package dataset

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/edgarlab/secrnn/api"
)

// Transform maps raw percentage change labels into the training target
// space and back. Transforms are fit on a fold's train split only.
type Transform interface {
	Name() string
	Apply(v float64) float64
	Invert(v float64) float64
}

// NewTransform fits the named label transform on the training labels.
func NewTransform(name string, train []float64) (Transform, error) {
	if len(train) == 0 {
		return nil, errors.New("no training labels to fit on")
	}

	switch name {
	case api.ChangeRaw:
		return identity{}, nil
	case api.ChangeStandard:
		std := stat.PopStdDev(train, nil)
		if std == 0 {
			std = 1
		}

		return standard{mean: stat.Mean(train, nil), std: std}, nil
	case api.ChangeMinMax:
		lo, hi := floats.Min(train), floats.Max(train)
		span := hi - lo
		if span == 0 {
			span = 1
		}

		return minMax{lo: lo, span: span}, nil
	default:
		return nil, fmt.Errorf("unknown percentage_change_type %q", name)
	}
}

type identity struct{}

func (identity) Name() string             { return api.ChangeRaw }
func (identity) Apply(v float64) float64  { return v }
func (identity) Invert(v float64) float64 { return v }

type standard struct {
	mean, std float64
}

func (standard) Name() string { return api.ChangeStandard }

func (t standard) Apply(v float64) float64 {
	return (v - t.mean) / t.std
}

func (t standard) Invert(v float64) float64 {
	return v*t.std + t.mean
}

type minMax struct {
	lo, span float64
}

func (minMax) Name() string { return api.ChangeMinMax }

func (t minMax) Apply(v float64) float64 {
	return (v - t.lo) / t.span
}

func (t minMax) Invert(v float64) float64 {
	return v*t.span + t.lo
}
