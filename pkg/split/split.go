// pkg/split/split.go
package split

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/citylab/incident-report/pkg/model"
)

// Split partitions a table into a training subset of floor(fraction*N)
// rows and an evaluation subset of the remainder. The selection is a
// seeded permutation: the same seed over the same row count and order
// always yields the identical partition. The two subsets are disjoint
// and together cover the input exactly.
//
// A table with fewer than two rows legally produces an empty side; the
// failure surfaces later when fitting on an empty training set.
func Split(table *model.Table, fraction float64, seed int64) (*model.Table, *model.Table, error) {
	if table == nil {
		return nil, nil, errors.New("input table cannot be nil")
	}
	if fraction <= 0 || fraction >= 1 {
		return nil, nil, fmt.Errorf("split fraction %v must be within (0, 1)", fraction)
	}

	n := table.NumRows()
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	rnd := rand.New(rand.NewSource(seed))
	rnd.Shuffle(n, func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})

	cut := int(fraction * float64(n))

	train := subset(table, indices[:cut])
	eval := subset(table, indices[cut:])
	return train, eval, nil
}

// subset copies the selected rows into a fresh table
func subset(table *model.Table, indices []int) *model.Table {
	out := model.NewTable(table.Schema.Clone())
	for _, idx := range indices {
		out.AppendRow(table.Rows[idx].Clone())
	}
	return out
}
