package classify

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"
)

// ComparisonResult is one model's scorecard on the shared test set.
type ComparisonResult struct {
	Key       string
	ModelName string

	LoadTime     time.Duration
	PredictTime  time.Duration
	PerSample    time.Duration
	Metrics      EvaluationMetrics
	PerLabel     map[string]int
	Skipped      bool
	SkipReason   string
}

// Comparator evaluates trained strategies against one another. It
// rebuilds the test partition exactly as training did, so every model
// faces the identical documents.
type Comparator struct {
	registry  *Registry
	modelRoot string
	logger    *slog.Logger
}

func NewComparator(registry *Registry, modelRoot string, logger *slog.Logger) *Comparator {
	return &Comparator{registry: registry, modelRoot: modelRoot, logger: logger}
}

// Run loads and evaluates each requested strategy. Models with
// incomplete artifacts are reported as skipped, never as errors: one
// unfinished training must not sink the whole comparison.
func (c *Comparator) Run(ctx context.Context, keys []string, documents, labels []string) ([]ComparisonResult, error) {
	_, testIdx := StratifiedSplit(labels, DefaultTestSize, SplitSeed)
	testDocs := Select(documents, testIdx)
	testLabels := Select(labels, testIdx)
	classes := FitLabelEncoder(labels).Classes
	c.logger.Info("comparison run", "models", len(keys), "test_documents", len(testDocs))

	results := make([]ComparisonResult, 0, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		strategy, err := c.registry.New(key, filepath.Join(c.modelRoot, key))
		if err != nil {
			return nil, err
		}
		result := ComparisonResult{Key: key, ModelName: strategy.ModelName()}

		if !ArtifactsComplete(strategy) {
			result.Skipped = true
			result.SkipReason = "missing artifacts"
			c.logger.Warn("model skipped", "model", result.ModelName, "reason", result.SkipReason)
			results = append(results, result)
			continue
		}

		loadStart := time.Now()
		if !strategy.LoadModel() {
			result.Skipped = true
			result.SkipReason = "load failed"
			c.logger.Warn("model skipped", "model", result.ModelName, "reason", result.SkipReason)
			results = append(results, result)
			continue
		}
		result.LoadTime = time.Since(loadStart)

		predictStart := time.Now()
		predicted, err := strategy.Predict(ctx, testDocs)
		if err != nil {
			result.Skipped = true
			result.SkipReason = err.Error()
			c.logger.Warn("model skipped", "model", result.ModelName, "reason", result.SkipReason)
			results = append(results, result)
			continue
		}
		result.PredictTime = time.Since(predictStart)
		if len(testDocs) > 0 {
			result.PerSample = result.PredictTime / time.Duration(len(testDocs))
		}

		result.Metrics = Evaluate(testLabels, predicted, classes)
		result.PerLabel = result.Metrics.PerLabelAccuracy()
		c.logger.Info("model evaluated",
			"model", result.ModelName,
			"accuracy", result.Metrics.Accuracy,
			"macro_f1", result.Metrics.MacroF1,
			"load", result.LoadTime,
			"predict", result.PredictTime)
		results = append(results, result)
	}
	return results, nil
}
