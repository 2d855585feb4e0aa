package classify

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"path/filepath"
	"sort"
)

const (
	boostingRounds        = 100
	boostingFeatureSample = 256
)

// boostStump is one weak learner: route on a single feature threshold,
// predict the weighted-majority class of each side.
type boostStump struct {
	Feature    int
	Threshold  float64
	LeftClass  int
	RightClass int
}

func (s boostStump) classify(vec SparseVector) int {
	if vec.At(s.Feature) <= s.Threshold {
		return s.LeftClass
	}
	return s.RightClass
}

// BoostedModel is a SAMME ensemble of stumps. Initial sample weights
// come from inverse class frequency so minority classes pull their
// weight from round one.
type BoostedModel struct {
	Stumps     []boostStump
	Alphas     []float64
	NumClasses int
}

func (m *BoostedModel) PredictOne(vec SparseVector) int {
	scores := make([]float64, m.NumClasses)
	for i, stump := range m.Stumps {
		scores[stump.classify(vec)] += m.Alphas[i]
	}
	best := 0
	for c := range scores {
		if scores[c] > scores[best] {
			best = c
		}
	}
	return best
}

func (m *BoostedModel) Predict(vectors []SparseVector) []int {
	out := make([]int, len(vectors))
	for i, vec := range vectors {
		out[i] = m.PredictOne(vec)
	}
	return out
}

// TrainBoosted fits a SAMME ensemble. Each round samples a feature
// subset, picks the stump with the lowest weighted error, and
// reweights misclassified samples by exp(alpha).
func TrainBoosted(ctx context.Context, vectors []SparseVector, y []int, numClasses int, seed int64) (*BoostedModel, error) {
	n := len(vectors)
	weights := make([]float64, n)
	counts := make([]int, numClasses)
	for _, label := range y {
		counts[label]++
	}
	var total float64
	for i, label := range y {
		weights[i] = 1 / float64(counts[label])
		total += weights[i]
	}
	for i := range weights {
		weights[i] /= total
	}

	pool := featuresPresent(vectors)
	rng := rand.New(rand.NewSource(seed))
	model := &BoostedModel{NumClasses: numClasses}

	for round := 0; round < boostingRounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stump, errRate, ok := bestStump(vectors, y, weights, numClasses, pool, rng)
		if !ok {
			break
		}
		// SAMME keeps a learner only while it beats random guessing.
		randomError := 1 - 1/float64(numClasses)
		if errRate >= randomError {
			break
		}
		if errRate < 1e-10 {
			errRate = 1e-10
		}
		alpha := math.Log((1-errRate)/errRate) + math.Log(float64(numClasses-1))

		var sum float64
		for i, vec := range vectors {
			if stump.classify(vec) != y[i] {
				weights[i] *= math.Exp(alpha)
			}
			sum += weights[i]
		}
		for i := range weights {
			weights[i] /= sum
		}

		model.Stumps = append(model.Stumps, stump)
		model.Alphas = append(model.Alphas, alpha)
	}
	if len(model.Stumps) == 0 {
		return nil, fmt.Errorf("boosting: no stump beat random guessing")
	}
	return model, nil
}

func bestStump(vectors []SparseVector, y []int, weights []float64, numClasses int, pool []int, rng *rand.Rand) (boostStump, float64, bool) {
	sample := boostingFeatureSample
	if sample > len(pool) {
		sample = len(pool)
	}

	var best boostStump
	bestError, found := math.Inf(1), false
	for s := 0; s < sample; s++ {
		feature := pool[rng.Intn(len(pool))]

		values := make([]float64, len(vectors))
		distinct := map[float64]struct{}{}
		for i, vec := range vectors {
			values[i] = vec.At(feature)
			distinct[values[i]] = struct{}{}
		}
		if len(distinct) < 2 {
			continue
		}
		sorted := make([]float64, 0, len(distinct))
		for value := range distinct {
			sorted = append(sorted, value)
		}
		sort.Float64s(sorted)

		for t := 0; t+1 < len(sorted); t++ {
			threshold := (sorted[t] + sorted[t+1]) / 2

			leftWeight := make([]float64, numClasses)
			rightWeight := make([]float64, numClasses)
			for i := range vectors {
				if values[i] <= threshold {
					leftWeight[y[i]] += weights[i]
				} else {
					rightWeight[y[i]] += weights[i]
				}
			}
			leftClass, rightClass := argmaxFloat(leftWeight), argmaxFloat(rightWeight)

			var errRate float64
			for i := range vectors {
				predicted := leftClass
				if values[i] > threshold {
					predicted = rightClass
				}
				if predicted != y[i] {
					errRate += weights[i]
				}
			}
			if errRate < bestError {
				best = boostStump{Feature: feature, Threshold: threshold, LeftClass: leftClass, RightClass: rightClass}
				bestError, found = errRate, true
			}
		}
	}
	return best, bestError, found
}

func argmaxFloat(values []float64) int {
	best := 0
	for i := range values {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}

// BoostingStrategy wraps the SAMME ensemble over TF-IDF features.
type BoostingStrategy struct {
	modelDir string
	logger   *slog.Logger

	model      *BoostedModel
	vectorizer *TFIDFVectorizer
	encoder    *LabelEncoder
}

func NewBoostingStrategy(modelDir string, logger *slog.Logger) *BoostingStrategy {
	return &BoostingStrategy{modelDir: modelDir, logger: logger}
}

func (s *BoostingStrategy) ModelName() string { return "Gradient Boosting" }

func (s *BoostingStrategy) ModelFiles() []string {
	return []string{
		filepath.Join(s.modelDir, "boosting_classifier.gob"),
		filepath.Join(s.modelDir, "boosting_vectorizer.gob"),
		filepath.Join(s.modelDir, "boosting_label_encoder.gob"),
	}
}

func (s *BoostingStrategy) Train(ctx context.Context, documents, labels []string) (float64, error) {
	encoder := FitLabelEncoder(labels)
	y := encoder.Encode(labels)
	s.logger.Info("training", "model", s.ModelName(), "classes", encoder.NumClasses(), "documents", len(documents))

	vectorizer := NewTFIDFVectorizer()
	matrix := vectorizer.Fit(documents)

	trainIdx, testIdx := StratifiedSplit(labels, DefaultTestSize, SplitSeed)
	model, err := TrainBoosted(ctx, selectVectors(matrix, trainIdx), selectInts(y, trainIdx), encoder.NumClasses(), SplitSeed)
	if err != nil {
		return 0, err
	}

	predicted := model.Predict(selectVectors(matrix, testIdx))
	metrics := Evaluate(Select(labels, testIdx), encoder.Decode(predicted), encoder.Classes)
	s.logger.Info("training finished", "model", s.ModelName(), "accuracy", metrics.Accuracy, "rounds", len(model.Stumps))

	files := s.ModelFiles()
	if err := saveGob(files[0], model); err != nil {
		return 0, err
	}
	if err := saveGob(files[1], vectorizer); err != nil {
		return 0, err
	}
	if err := saveGob(files[2], encoder); err != nil {
		return 0, err
	}
	if err := saveDescriptor(s.modelDir, Descriptor{
		Model:       s.ModelName(),
		Hyperparams: map[string]string{"rounds": fmt.Sprint(boostingRounds), "sample_weight": "inverse class frequency"},
		Classes:     encoder.Classes,
	}); err != nil {
		return 0, err
	}

	s.model, s.vectorizer, s.encoder = model, vectorizer, encoder
	return metrics.Accuracy, nil
}

func (s *BoostingStrategy) LoadModel() bool {
	files := s.ModelFiles()
	var model BoostedModel
	var vectorizer TFIDFVectorizer
	var encoder LabelEncoder
	if err := loadGob(files[0], &model); err != nil {
		return false
	}
	if err := loadGob(files[1], &vectorizer); err != nil {
		return false
	}
	if err := loadGob(files[2], &encoder); err != nil {
		return false
	}
	s.model, s.vectorizer, s.encoder = &model, &vectorizer, &encoder
	return true
}

func (s *BoostingStrategy) Predict(ctx context.Context, documents []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.model == nil {
		return nil, fmt.Errorf("%s: model not loaded", s.ModelName())
	}
	predicted := s.model.Predict(s.vectorizer.Transform(documents))
	return s.encoder.Decode(predicted), nil
}
