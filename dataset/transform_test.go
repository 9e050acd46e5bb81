package dataset

import (
	"math"
	"testing"

	"github.com/edgarlab/secrnn/api"
)

func TestTransformRaw(t *testing.T) {
	tr, err := NewTransform(api.ChangeRaw, []float64{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}

	if got := tr.Apply(0.7); got != 0.7 {
		t.Errorf("Apply(0.7) = %v", got)
	}
	if got := tr.Invert(0.7); got != 0.7 {
		t.Errorf("Invert(0.7) = %v", got)
	}
}

func TestTransformStandard(t *testing.T) {
	tr, err := NewTransform(api.ChangeStandard, []float64{1, 2, 3, 4})
	if err != nil {
		t.Fatal(err)
	}

	// mean 2.5, population std sqrt(1.25)
	if got := tr.Apply(2.5); math.Abs(got) > 1e-12 {
		t.Errorf("Apply(mean) = %v, want 0", got)
	}

	want := 1.5 / math.Sqrt(1.25)
	if got := tr.Apply(4); math.Abs(got-want) > 1e-12 {
		t.Errorf("Apply(4) = %v, want %v", got, want)
	}

	if got := tr.Invert(tr.Apply(0.33)); math.Abs(got-0.33) > 1e-12 {
		t.Errorf("round trip drifted to %v", got)
	}
}

func TestTransformMinMax(t *testing.T) {
	tr, err := NewTransform(api.ChangeMinMax, []float64{-1, 0, 3})
	if err != nil {
		t.Fatal(err)
	}

	if got := tr.Apply(-1); got != 0 {
		t.Errorf("Apply(min) = %v, want 0", got)
	}
	if got := tr.Apply(3); got != 1 {
		t.Errorf("Apply(max) = %v, want 1", got)
	}
	if got := tr.Invert(0.5); got != 1 {
		t.Errorf("Invert(0.5) = %v, want 1", got)
	}
}

func TestTransformDegenerate(t *testing.T) {
	for _, name := range []string{api.ChangeStandard, api.ChangeMinMax} {
		tr, err := NewTransform(name, []float64{2, 2, 2})
		if err != nil {
			t.Fatal(err)
		}

		got := tr.Apply(2)
		if math.IsNaN(got) || math.IsInf(got, 0) {
			t.Errorf("%s on constant labels produced %v", name, got)
		}
	}
}

func TestTransformErrors(t *testing.T) {
	if _, err := NewTransform("percentage_change_robust", []float64{1}); err == nil {
		t.Error("expected error for unknown transform")
	}
	if _, err := NewTransform(api.ChangeRaw, nil); err == nil {
		t.Error("expected error for empty training labels")
	}
}
