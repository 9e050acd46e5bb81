// Package dataset loads exported filing features. A fold directory
// holds one CBOR file per split, each a list of filings with paragraph
// embedding sequences, a KPI vector, and the percentage change label.
package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
)

// Filing is one exported SEC filing.
type Filing struct {
	Accession  string      `cbor:"accession"`
	Embeddings [][]float64 `cbor:"embeddings"`
	KPIs       []float64   `cbor:"kpis"`
	Label      float64     `cbor:"label"`
}

// Fold is one cross-validation fold. Width is the embedding width shared
// by every filing; KPIWidth is zero when the export carries no KPI
// vectors.
type Fold struct {
	Dir      string
	Width    int
	KPIWidth int

	Train []Filing
	Val   []Filing
	Test  []Filing
}

// Load reads a fold directory. The train and val splits must exist; a
// fold without a test split is common for small tickers.
func Load(dir string) (*Fold, error) {
	f := Fold{Dir: dir}

	splits := []struct {
		name     string
		dst      *[]Filing
		optional bool
	}{
		{"train", &f.Train, false},
		{"val", &f.Val, false},
		{"test", &f.Test, true},
	}

	for _, s := range splits {
		p := filepath.Join(dir, s.name+".cbor")
		b, err := os.ReadFile(p)
		if errors.Is(err, os.ErrNotExist) && s.optional {
			continue
		} else if err != nil {
			return nil, err
		}

		var filings []Filing
		if err := cbor.Unmarshal(b, &filings); err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}

		for i := range filings {
			if err := f.check(&filings[i]); err != nil {
				return nil, fmt.Errorf("%s: %w", p, err)
			}
		}

		*s.dst = filings
	}

	if len(f.Train) == 0 {
		return nil, fmt.Errorf("%s: empty train split", dir)
	}

	return &f, nil
}

func (f *Fold) check(filing *Filing) error {
	if len(filing.Embeddings) == 0 {
		return fmt.Errorf("filing %s has no embeddings", filing.Accession)
	}

	for _, row := range filing.Embeddings {
		if f.Width == 0 {
			f.Width = len(row)
		}
		if len(row) == 0 || len(row) != f.Width {
			return fmt.Errorf("filing %s: embedding width %d, want %d", filing.Accession, len(row), f.Width)
		}
	}

	if len(filing.KPIs) > 0 {
		if f.KPIWidth == 0 {
			f.KPIWidth = len(filing.KPIs)
		}
		if len(filing.KPIs) != f.KPIWidth {
			return fmt.Errorf("filing %s: kpi width %d, want %d", filing.Accession, len(filing.KPIs), f.KPIWidth)
		}
	}

	return nil
}

// Split returns the named split.
func (f *Fold) Split(name string) ([]Filing, error) {
	switch name {
	case "train":
		return f.Train, nil
	case "val":
		return f.Val, nil
	case "test":
		if len(f.Test) == 0 {
			return nil, fmt.Errorf("%s has no test split", f.Dir)
		}
		return f.Test, nil
	default:
		return nil, fmt.Errorf("unknown split %q", name)
	}
}

// Labels collects the raw percentage change labels.
func Labels(filings []Filing) []float64 {
	labels := make([]float64, len(filings))
	for i := range filings {
		labels[i] = filings[i].Label
	}

	return labels
}

// WriteFold writes a fold's splits under dir, one CBOR file per split.
func WriteFold(dir string, f *Fold) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	splits := []struct {
		name    string
		filings []Filing
	}{
		{"train", f.Train},
		{"val", f.Val},
		{"test", f.Test},
	}

	for _, s := range splits {
		if s.name == "test" && len(s.filings) == 0 {
			continue
		}

		b, err := cbor.Marshal(s.filings)
		if err != nil {
			return err
		}

		if err := os.WriteFile(filepath.Join(dir, s.name+".cbor"), b, 0o644); err != nil {
			return err
		}
	}

	return nil
}
