package sweep

import (
	"cmp"
	"math"

	pq "github.com/emirpasic/gods/v2/queues/priorityqueue"

	"github.com/edgarlab/secrnn/api"
	"github.com/edgarlab/secrnn/runs"
)

// TopK returns the k best runs under root by eval loss, best first. Runs
// that never recorded a loss are skipped.
func TopK(root string, k int) ([]api.RunSummary, error) {
	summaries, err := runs.List(root)
	if err != nil {
		return nil, err
	}

	queue := pq.NewWith(func(a, b api.RunSummary) int {
		return cmp.Compare(a.EvalLoss, b.EvalLoss)
	})

	for _, summary := range summaries {
		if summary.EvalLoss == 0 || math.IsNaN(summary.EvalLoss) {
			continue
		}

		queue.Enqueue(summary)
	}

	k = min(k, queue.Size())

	best := make([]api.RunSummary, 0, k)
	for i := 0; i < k; i++ {
		summary, _ := queue.Dequeue()
		best = append(best, summary)
	}

	return best, nil
}
