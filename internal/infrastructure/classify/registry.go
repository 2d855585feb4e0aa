package classify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/ports"
)

// Strategy keys understood by the default registry.
const (
	KeySVM      = "svm"
	KeySVMGrid  = "svm-grid"
	KeyForest   = "forest"
	KeyBoosting = "boosting"
	KeyCentroid = "centroid"
	KeyKNN      = "knn"
	KeyNeural   = "neural"
	KeyEmbedSVM = "embedsvm"
)

// NewDefaultRegistry registers the full strategy suite. The embedding
// strategies share one embedder client.
func NewDefaultRegistry(embedder ports.Embedder, logger *slog.Logger) *Registry {
	r := NewRegistry()
	r.Register(KeySVM, func(dir string) TrainingStrategy { return NewSVMStrategy(dir, false, logger) })
	r.Register(KeySVMGrid, func(dir string) TrainingStrategy { return NewSVMStrategy(dir, true, logger) })
	r.Register(KeyForest, func(dir string) TrainingStrategy { return NewForestStrategy(dir, logger) })
	r.Register(KeyBoosting, func(dir string) TrainingStrategy { return NewBoostingStrategy(dir, logger) })
	r.Register(KeyCentroid, func(dir string) TrainingStrategy { return NewCentroidStrategy(dir, embedder, logger) })
	r.Register(KeyKNN, func(dir string) TrainingStrategy { return NewKNNStrategy(dir, embedder, logger) })
	r.Register(KeyNeural, func(dir string) TrainingStrategy { return NewNeuralStrategy(dir, embedder, logger) })
	r.Register(KeyEmbedSVM, func(dir string) TrainingStrategy { return NewEmbedSVMStrategy(dir, embedder, true, logger) })
	return r
}

// Classifier adapts a loaded strategy to the serving port.
type Classifier struct {
	strategy TrainingStrategy
}

// LoadClassifier builds a strategy from the registry and loads its
// artifacts, failing when any is missing.
func LoadClassifier(registry *Registry, key, modelDir string) (*Classifier, error) {
	strategy, err := registry.New(key, modelDir)
	if err != nil {
		return nil, err
	}
	if !strategy.LoadModel() {
		return nil, fmt.Errorf("%s: artifacts missing under %s", strategy.ModelName(), modelDir)
	}
	return &Classifier{strategy: strategy}, nil
}

func (c *Classifier) Predict(ctx context.Context, texts []string) ([]string, error) {
	return c.strategy.Predict(ctx, texts)
}
