package classify

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"path/filepath"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/ports"
)

const rffDim = 512

// RFFMap approximates an RBF kernel with random Fourier features:
// z_k(x) = sqrt(2/D)·cos(ω_k·x + b_k), ω ~ N(0, 2γ).
type RFFMap struct {
	Omega   [][]float64
	Offsets []float64
	Gamma   float64
}

func NewRFFMap(inputDim, outputDim int, gamma float64, seed int64) *RFFMap {
	rng := rand.New(rand.NewSource(seed))
	m := &RFFMap{
		Omega:   make([][]float64, outputDim),
		Offsets: make([]float64, outputDim),
		Gamma:   gamma,
	}
	sigma := math.Sqrt(2 * gamma)
	for k := range m.Omega {
		m.Omega[k] = make([]float64, inputDim)
		for d := range m.Omega[k] {
			m.Omega[k][d] = rng.NormFloat64() * sigma
		}
		m.Offsets[k] = rng.Float64() * 2 * math.Pi
	}
	return m
}

func (m *RFFMap) Transform(x []float64) []float64 {
	out := make([]float64, len(m.Omega))
	scale := math.Sqrt(2 / float64(len(m.Omega)))
	for k, omega := range m.Omega {
		var dot float64
		for d, w := range omega {
			dot += w * x[d]
		}
		out[k] = scale * math.Cos(dot+m.Offsets[k])
	}
	return out
}

func (m *RFFMap) TransformAll(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = m.Transform(row)
	}
	return out
}

// gammaScale mirrors the "scale" heuristic: 1 / (d · var(X)).
func gammaScale(rows [][]float64) float64 {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 1
	}
	var sum, sumSq float64
	n := 0
	for _, row := range rows {
		for _, value := range row {
			sum += value
			sumSq += value * value
			n++
		}
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance <= 0 {
		return 1
	}
	return 1 / (float64(len(rows[0])) * variance)
}

// EmbedSVMModel is the serving form: an optional RFF map plus the
// linear model on top.
type EmbedSVMModel struct {
	Kernel string // "linear" or "rbf"
	RFF    *RFFMap
	Linear *LinearModel
}

func (m *EmbedSVMModel) PredictOne(embedding []float64) int {
	features := embedding
	if m.Kernel == "rbf" {
		features = m.RFF.Transform(embedding)
	}
	return m.Linear.PredictOne(denseToSparse(features))
}

// EmbedSVMStrategy feeds sentence embeddings to an SVM, optionally
// grid-searching C × kernel × gamma with 3-fold cross validation.
type EmbedSVMStrategy struct {
	modelDir      string
	embedder      ports.Embedder
	useGridSearch bool
	logger        *slog.Logger

	model   *EmbedSVMModel
	encoder *LabelEncoder
}

func NewEmbedSVMStrategy(modelDir string, embedder ports.Embedder, useGridSearch bool, logger *slog.Logger) *EmbedSVMStrategy {
	return &EmbedSVMStrategy{modelDir: modelDir, embedder: embedder, useGridSearch: useGridSearch, logger: logger}
}

func (s *EmbedSVMStrategy) ModelName() string { return "Embeddings + SVM" }

func (s *EmbedSVMStrategy) ModelFiles() []string {
	return []string{
		filepath.Join(s.modelDir, "embedsvm_model.gob"),
		filepath.Join(s.modelDir, "embedsvm_label_encoder.gob"),
	}
}

type embedSVMParams struct {
	c      float64
	kernel string
	gamma  float64
}

func (s *EmbedSVMStrategy) Train(ctx context.Context, documents, labels []string) (float64, error) {
	encoder := FitLabelEncoder(labels)
	y := encoder.Encode(labels)
	s.logger.Info("training", "model", s.ModelName(), "classes", encoder.NumClasses(), "documents", len(documents))

	trainIdx, testIdx := StratifiedSplit(labels, DefaultTestSize, SplitSeed)
	trainEmbeddings, err := embedAll(ctx, s.embedder, Select(documents, trainIdx))
	if err != nil {
		return 0, err
	}
	trainY := selectInts(y, trainIdx)
	scale := gammaScale(trainEmbeddings)

	params := embedSVMParams{c: 1, kernel: "rbf", gamma: scale}
	if s.useGridSearch {
		params = s.gridSearch(trainEmbeddings, trainY, encoder.NumClasses(), scale)
		s.logger.Info("grid search finished", "c", params.c, "kernel", params.kernel, "gamma", params.gamma)
	}

	model := fitEmbedSVM(trainEmbeddings, trainY, encoder.NumClasses(), params)

	testEmbeddings, err := embedAll(ctx, s.embedder, Select(documents, testIdx))
	if err != nil {
		return 0, err
	}
	predicted := make([]int, len(testEmbeddings))
	for i, embedding := range testEmbeddings {
		predicted[i] = model.PredictOne(embedding)
	}
	metrics := Evaluate(Select(labels, testIdx), encoder.Decode(predicted), encoder.Classes)
	s.logger.Info("training finished", "model", s.ModelName(), "accuracy", metrics.Accuracy)

	files := s.ModelFiles()
	if err := saveGob(files[0], model); err != nil {
		return 0, err
	}
	if err := saveGob(files[1], encoder); err != nil {
		return 0, err
	}
	if err := saveDescriptor(s.modelDir, Descriptor{
		Model: s.ModelName(),
		Hyperparams: map[string]string{
			"C":      fmt.Sprintf("%g", params.c),
			"kernel": params.kernel,
			"gamma":  fmt.Sprintf("%g", params.gamma),
		},
		Classes: encoder.Classes,
	}); err != nil {
		return 0, err
	}

	s.model, s.encoder = model, encoder
	return metrics.Accuracy, nil
}

func fitEmbedSVM(embeddings [][]float64, y []int, numClasses int, params embedSVMParams) *EmbedSVMModel {
	model := &EmbedSVMModel{Kernel: params.kernel}
	features := embeddings
	numFeatures := len(embeddings[0])
	if params.kernel == "rbf" {
		model.RFF = NewRFFMap(len(embeddings[0]), rffDim, params.gamma, SplitSeed)
		features = model.RFF.TransformAll(embeddings)
		numFeatures = rffDim
	}
	opts := defaultLinearSVMOptions()
	opts.C = params.c
	model.Linear = TrainLinearSVM(denseMatrixToSparse(features), y, numClasses, numFeatures, opts)
	return model
}

func (s *EmbedSVMStrategy) gridSearch(embeddings [][]float64, y []int, numClasses int, scale float64) embedSVMParams {
	cGrid := []float64{0.1, 1, 10, 100}
	kernels := []string{"rbf", "linear"}
	gammas := []float64{scale, 0.001, 0.01, 0.1, 1}

	rng := rand.New(rand.NewSource(SplitSeed))
	order := rng.Perm(len(embeddings))
	const folds = 3

	best := embedSVMParams{c: 1, kernel: "rbf", gamma: scale}
	bestScore := -1.0
	for _, kernel := range kernels {
		kernelGammas := gammas
		if kernel == "linear" {
			kernelGammas = []float64{0}
		}
		for _, gamma := range kernelGammas {
			for _, c := range cGrid {
				params := embedSVMParams{c: c, kernel: kernel, gamma: gamma}
				correct, total := 0, 0
				for fold := 0; fold < folds; fold++ {
					var fitIdx, validIdx []int
					for pos, idx := range order {
						if pos%folds == fold {
							validIdx = append(validIdx, idx)
						} else {
							fitIdx = append(fitIdx, idx)
						}
					}
					model := fitEmbedSVM(selectRows(embeddings, fitIdx), selectInts(y, fitIdx), numClasses, params)
					for _, idx := range validIdx {
						if model.PredictOne(embeddings[idx]) == y[idx] {
							correct++
						}
						total++
					}
				}
				score := float64(correct) / float64(total)
				if score > bestScore {
					best, bestScore = params, score
				}
			}
		}
	}
	return best
}

func (s *EmbedSVMStrategy) LoadModel() bool {
	files := s.ModelFiles()
	var model EmbedSVMModel
	var encoder LabelEncoder
	if err := loadGob(files[0], &model); err != nil {
		return false
	}
	if err := loadGob(files[1], &encoder); err != nil {
		return false
	}
	s.model, s.encoder = &model, &encoder
	return true
}

func (s *EmbedSVMStrategy) Predict(ctx context.Context, documents []string) ([]string, error) {
	if s.model == nil {
		return nil, fmt.Errorf("%s: model not loaded", s.ModelName())
	}
	embeddings, err := embedAll(ctx, s.embedder, documents)
	if err != nil {
		return nil, err
	}
	predicted := make([]int, len(embeddings))
	for i, embedding := range embeddings {
		predicted[i] = s.model.PredictOne(embedding)
	}
	return s.encoder.Decode(predicted), nil
}
