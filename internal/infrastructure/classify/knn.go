package classify

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/ports"
)

const knnNeighbors = 5

// KNNModel keeps the full training set in embedding space. Prediction
// is k=5 nearest neighbors by cosine distance, distance-weighted
// voting.
type KNNModel struct {
	Embeddings [][]float64
	Labels     []int
	K          int
	NumClasses int
}

func (m *KNNModel) PredictOne(embedding []float64) int {
	type neighbor struct {
		distance float64
		label    int
	}
	neighbors := make([]neighbor, len(m.Embeddings))
	for i, row := range m.Embeddings {
		neighbors[i] = neighbor{distance: 1 - cosineSimilarity(embedding, row), label: m.Labels[i]}
	}
	sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].distance < neighbors[j].distance })

	k := m.K
	if k > len(neighbors) {
		k = len(neighbors)
	}
	votes := make([]float64, m.NumClasses)
	for _, nb := range neighbors[:k] {
		// An exact hit dominates; otherwise weight by inverse distance.
		if nb.distance < 1e-9 {
			votes[nb.label] += 1e9
		} else {
			votes[nb.label] += 1 / nb.distance
		}
	}
	return argmaxFloat(votes)
}

// KNNStrategy classifies by distance-weighted nearest neighbors over
// embeddings.
type KNNStrategy struct {
	modelDir string
	embedder ports.Embedder
	logger   *slog.Logger

	model   *KNNModel
	encoder *LabelEncoder
}

func NewKNNStrategy(modelDir string, embedder ports.Embedder, logger *slog.Logger) *KNNStrategy {
	return &KNNStrategy{modelDir: modelDir, embedder: embedder, logger: logger}
}

func (s *KNNStrategy) ModelName() string { return "Embeddings (KNN)" }

func (s *KNNStrategy) ModelFiles() []string {
	return []string{
		filepath.Join(s.modelDir, "knn_model.gob"),
		filepath.Join(s.modelDir, "knn_label_encoder.gob"),
	}
}

func (s *KNNStrategy) Train(ctx context.Context, documents, labels []string) (float64, error) {
	encoder := FitLabelEncoder(labels)
	y := encoder.Encode(labels)
	s.logger.Info("training", "model", s.ModelName(), "classes", encoder.NumClasses(), "documents", len(documents))

	trainIdx, testIdx := StratifiedSplit(labels, DefaultTestSize, SplitSeed)
	trainEmbeddings, err := embedAll(ctx, s.embedder, Select(documents, trainIdx))
	if err != nil {
		return 0, err
	}
	model := &KNNModel{
		Embeddings: trainEmbeddings,
		Labels:     selectInts(y, trainIdx),
		K:          knnNeighbors,
		NumClasses: encoder.NumClasses(),
	}

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
		Model:       s.ModelName(),
		Hyperparams: map[string]string{"k": "5", "weights": "distance", "metric": "cosine"},
		Classes:     encoder.Classes,
	}); err != nil {
		return 0, err
	}

	s.model, s.encoder = model, encoder
	return metrics.Accuracy, nil
}

func (s *KNNStrategy) LoadModel() bool {
	files := s.ModelFiles()
	var model KNNModel
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

func (s *KNNStrategy) Predict(ctx context.Context, documents []string) ([]string, error) {
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
