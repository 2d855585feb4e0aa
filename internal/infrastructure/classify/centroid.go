package classify

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/ports"
)

// CentroidModel holds one mean embedding per class. Prediction is
// cosine similarity to the nearest centroid; there is no classifier to
// fit.
type CentroidModel struct {
	Centroids      [][]float64
	EmbeddingModel string
}

func (m *CentroidModel) PredictOne(embedding []float64) int {
	best, bestSim := 0, -2.0
	for c, centroid := range m.Centroids {
		if centroid == nil {
			continue
		}
		if sim := cosineSimilarity(embedding, centroid); sim > bestSim {
			best, bestSim = c, sim
		}
	}
	return best
}

// CentroidStrategy classifies by nearest class centroid in embedding
// space.
type CentroidStrategy struct {
	modelDir string
	embedder ports.Embedder
	logger   *slog.Logger

	model   *CentroidModel
	encoder *LabelEncoder
}

func NewCentroidStrategy(modelDir string, embedder ports.Embedder, logger *slog.Logger) *CentroidStrategy {
	return &CentroidStrategy{modelDir: modelDir, embedder: embedder, logger: logger}
}

func (s *CentroidStrategy) ModelName() string { return "Embeddings (Centroid)" }

func (s *CentroidStrategy) ModelFiles() []string {
	return []string{
		filepath.Join(s.modelDir, "embeddings_centroids.gob"),
		filepath.Join(s.modelDir, "embeddings_label_encoder.gob"),
	}
}

func (s *CentroidStrategy) Train(ctx context.Context, documents, labels []string) (float64, error) {
	encoder := FitLabelEncoder(labels)
	y := encoder.Encode(labels)
	s.logger.Info("training", "model", s.ModelName(), "classes", encoder.NumClasses(), "documents", len(documents))

	trainIdx, testIdx := StratifiedSplit(labels, DefaultTestSize, SplitSeed)
	trainEmbeddings, err := embedAll(ctx, s.embedder, Select(documents, trainIdx))
	if err != nil {
		return 0, err
	}

	centroids := make([][]float64, encoder.NumClasses())
	counts := make([]int, encoder.NumClasses())
	for i, embedding := range trainEmbeddings {
		class := y[trainIdx[i]]
		if centroids[class] == nil {
			centroids[class] = make([]float64, len(embedding))
		}
		for d, value := range embedding {
			centroids[class][d] += value
		}
		counts[class]++
	}
	for c, centroid := range centroids {
		if counts[c] == 0 {
			continue
		}
		for d := range centroid {
			centroid[d] /= float64(counts[c])
		}
	}
	model := &CentroidModel{Centroids: centroids}

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
		Model:   s.ModelName(),
		Classes: encoder.Classes,
	}); err != nil {
		return 0, err
	}

	s.model, s.encoder = model, encoder
	return metrics.Accuracy, nil
}

func (s *CentroidStrategy) LoadModel() bool {
	files := s.ModelFiles()
	var model CentroidModel
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

func (s *CentroidStrategy) Predict(ctx context.Context, documents []string) ([]string, error) {
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
