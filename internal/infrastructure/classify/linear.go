package classify

import (
	"math"
	"math/rand"
)

// LinearModel is a one-vs-rest linear classifier: one weight row and
// bias per class, argmax decision.
type LinearModel struct {
	Weights [][]float64
	Bias    []float64
}

// LinearSVMOptions tune the SGD hinge-loss trainer.
type LinearSVMOptions struct {
	C             float64
	Epochs        int
	ClassBalanced bool
	Seed          int64
}

func defaultLinearSVMOptions() LinearSVMOptions {
	return LinearSVMOptions{C: 1.0, Epochs: 20, ClassBalanced: true, Seed: SplitSeed}
}

// classWeights returns per-class multipliers. Balanced mode weights
// inversely to class frequency, as n / (k * count).
func classWeights(y []int, numClasses int, balanced bool) []float64 {
	weights := make([]float64, numClasses)
	for i := range weights {
		weights[i] = 1
	}
	if !balanced {
		return weights
	}
	counts := make([]int, numClasses)
	for _, label := range y {
		if label >= 0 && label < numClasses {
			counts[label]++
		}
	}
	n := float64(len(y))
	k := float64(numClasses)
	for i, count := range counts {
		if count > 0 {
			weights[i] = n / (k * float64(count))
		}
	}
	return weights
}

// TrainLinearSVM fits a one-vs-rest linear SVM with Pegasos-style SGD:
// regularization λ = 1/(C·n), step size 1/(λ·t).
func TrainLinearSVM(vectors []SparseVector, y []int, numClasses, numFeatures int, opts LinearSVMOptions) *LinearModel {
	if opts.Epochs <= 0 {
		opts.Epochs = 20
	}
	if opts.C <= 0 {
		opts.C = 1
	}
	n := len(vectors)
	lambda := 1 / (opts.C * float64(n))
	perClass := classWeights(y, numClasses, opts.ClassBalanced)

	model := &LinearModel{
		Weights: make([][]float64, numClasses),
		Bias:    make([]float64, numClasses),
	}
	for c := range model.Weights {
		model.Weights[c] = make([]float64, numFeatures)
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	rng := rand.New(rand.NewSource(opts.Seed))

	t := 0
	for epoch := 0; epoch < opts.Epochs; epoch++ {
		rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
		for _, idx := range order {
			t++
			eta := 1 / (lambda * float64(t))
			vec := vectors[idx]
			for c := 0; c < numClasses; c++ {
				target := -1.0
				if y[idx] == c {
					target = 1
				}
				margin := target * (vec.DotDense(model.Weights[c]) + model.Bias[c])

				// Shrink first, then step on the hinge violation.
				shrink := 1 - eta*lambda
				if shrink < 0 {
					shrink = 0
				}
				row := model.Weights[c]
				for i := range vec.Indices {
					row[vec.Indices[i]] *= shrink
				}
				if margin < 1 {
					step := eta * target * perClass[y[idx]]
					for i, feature := range vec.Indices {
						row[feature] += step * vec.Values[i]
					}
					model.Bias[c] += step
				}
			}
		}
	}
	return model
}

// PredictOne returns the argmax class for one vector.
func (m *LinearModel) PredictOne(vec SparseVector) int {
	best, bestScore := 0, math.Inf(-1)
	for c := range m.Weights {
		score := vec.DotDense(m.Weights[c]) + m.Bias[c]
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}

// Predict classifies a batch, preserving order.
func (m *LinearModel) Predict(vectors []SparseVector) []int {
	out := make([]int, len(vectors))
	for i, vec := range vectors {
		out[i] = m.PredictOne(vec)
	}
	return out
}

// crossValidateC picks the best C from a grid by k-fold accuracy over
// the training partition.
func crossValidateC(vectors []SparseVector, y []int, numClasses, numFeatures int, grid []float64, folds int, seed int64) float64 {
	if len(grid) == 0 {
		return 1
	}
	n := len(vectors)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })

	bestC, bestScore := grid[0], -1.0
	for _, c := range grid {
		correct, total := 0, 0
		for fold := 0; fold < folds; fold++ {
			var trainIdx, validIdx []int
			for pos, idx := range order {
				if pos%folds == fold {
					validIdx = append(validIdx, idx)
				} else {
					trainIdx = append(trainIdx, idx)
				}
			}
			model := TrainLinearSVM(
				selectVectors(vectors, trainIdx), selectInts(y, trainIdx),
				numClasses, numFeatures,
				LinearSVMOptions{C: c, Epochs: 10, ClassBalanced: true, Seed: seed},
			)
			for _, idx := range validIdx {
				if model.PredictOne(vectors[idx]) == y[idx] {
					correct++
				}
				total++
			}
		}
		score := float64(correct) / float64(total)
		if score > bestScore {
			bestC, bestScore = c, score
		}
	}
	return bestC
}

// denseToSparse wraps a dense row so the linear trainer can consume
// embedding features.
func denseToSparse(row []float64) SparseVector {
	indices := make([]int, len(row))
	for i := range indices {
		indices[i] = i
	}
	return SparseVector{Indices: indices, Values: row}
}

func denseMatrixToSparse(rows [][]float64) []SparseVector {
	out := make([]SparseVector, len(rows))
	for i, row := range rows {
		out[i] = denseToSparse(row)
	}
	return out
}
