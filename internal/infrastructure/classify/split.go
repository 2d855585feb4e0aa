package classify

import (
	"math"
	"math/rand"
	"sort"
)

const (
	// SplitSeed makes every strategy reproduce the exact same
	// train/test partition. The comparison harness depends on it.
	SplitSeed = 42

	DefaultTestSize = 0.2
)

// StratifiedSplit partitions indices 0..len(labels)-1 into train and
// test sets, preserving label proportions. Given the same labels, seed
// and testSize the result is always identical: labels are visited in
// sorted order and each group is shuffled by the one seeded generator.
func StratifiedSplit(labels []string, testSize float64, seed int64) (train, test []int) {
	groups := make(map[string][]int)
	for i, label := range labels {
		groups[label] = append(groups[label], i)
	}
	ordered := make([]string, 0, len(groups))
	for label := range groups {
		ordered = append(ordered, label)
	}
	sort.Strings(ordered)

	rng := rand.New(rand.NewSource(seed))
	for _, label := range ordered {
		indices := groups[label]
		rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})

		nTest := int(math.Round(testSize * float64(len(indices))))
		if nTest == 0 && len(indices) > 1 {
			nTest = 1
		}
		test = append(test, indices[:nTest]...)
		train = append(train, indices[nTest:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test
}

// Select picks the rows of a string slice at the given indices.
func Select(items []string, indices []int) []string {
	out := make([]string, len(indices))
	for i, idx := range indices {
		out[i] = items[idx]
	}
	return out
}

func selectVectors(items []SparseVector, indices []int) []SparseVector {
	out := make([]SparseVector, len(indices))
	for i, idx := range indices {
		out[i] = items[idx]
	}
	return out
}

func selectInts(items []int, indices []int) []int {
	out := make([]int, len(indices))
	for i, idx := range indices {
		out[i] = items[idx]
	}
	return out
}

func selectRows(items [][]float64, indices []int) [][]float64 {
	out := make([][]float64, len(indices))
	for i, idx := range indices {
		out[i] = items[idx]
	}
	return out
}
