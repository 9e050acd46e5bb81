package dataset

import "fmt"

// Batch is a fixed-shape slice of filings ready for the regressor.
// Inputs is (batch, maxSeq, width); Lengths holds each sequence's true
// step count after truncation. KPIs is empty when the fold carries no
// KPI vectors.
type Batch struct {
	Accessions []string
	Inputs     [][][]float64
	KPIs       [][]float64
	Labels     []float64
	Lengths    []int
}

// Batches cuts filings into batches of at most batchSize, padding every
// sequence with zero vectors to exactly maxSeq steps. Sequences longer
// than maxSeq keep their first maxSeq paragraphs.
func Batches(filings []Filing, width, batchSize, maxSeq int) ([]Batch, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	if maxSeq < 1 {
		return nil, fmt.Errorf("max sequence length must be positive, got %d", maxSeq)
	}

	var batches []Batch
	for start := 0; start < len(filings); start += batchSize {
		end := min(start+batchSize, len(filings))

		b := Batch{
			Accessions: make([]string, 0, end-start),
			Inputs:     make([][][]float64, 0, end-start),
			Labels:     make([]float64, 0, end-start),
			Lengths:    make([]int, 0, end-start),
		}

		for _, filing := range filings[start:end] {
			steps := filing.Embeddings
			if len(steps) > maxSeq {
				steps = steps[:maxSeq]
			}

			padded := make([][]float64, maxSeq)
			copy(padded, steps)
			for i := len(steps); i < maxSeq; i++ {
				padded[i] = make([]float64, width)
			}

			b.Accessions = append(b.Accessions, filing.Accession)
			b.Inputs = append(b.Inputs, padded)
			b.Labels = append(b.Labels, filing.Label)
			b.Lengths = append(b.Lengths, len(steps))

			if len(filing.KPIs) > 0 {
				b.KPIs = append(b.KPIs, filing.KPIs)
			}
		}

		if len(b.KPIs) > 0 && len(b.KPIs) != len(b.Inputs) {
			return nil, fmt.Errorf("batch starting at %d mixes filings with and without kpi vectors", start)
		}

		batches = append(batches, b)
	}

	return batches, nil
}
