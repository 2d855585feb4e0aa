// Package classify implements the pluggable learner suite for document
// type and subject prediction: shared TF-IDF features, a deterministic
// stratified split, seven training strategies behind one contract, and
// the comparison harness that ranks them.
package classify

import (
	"context"
	"fmt"
	"sort"
)

// TrainingStrategy is the contract every learner implements. Train
// fits the model, writes its artifacts and returns test-set accuracy.
// LoadModel populates in-memory state from artifacts, reporting false
// when any required file is missing. Predict preserves input order
// and returns one label per document.
type TrainingStrategy interface {
	Train(ctx context.Context, documents, labels []string) (float64, error)
	LoadModel() bool
	Predict(ctx context.Context, documents []string) ([]string, error)
	ModelName() string
	ModelFiles() []string
}

// Registry maps strategy keys (svm, forest, boosting, centroid, knn,
// neural, embedsvm) to constructors bound to a model directory.
type Registry struct {
	factories map[string]func(modelDir string) TrainingStrategy
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]func(string) TrainingStrategy)}
}

func (r *Registry) Register(key string, factory func(modelDir string) TrainingStrategy) {
	r.factories[key] = factory
}

// New builds the strategy registered under key.
func (r *Registry) New(key, modelDir string) (TrainingStrategy, error) {
	factory, ok := r.factories[key]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (known: %v)", key, r.Keys())
	}
	return factory(modelDir), nil
}

func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.factories))
	for key := range r.factories {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
