package classify

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
)

// SVMStrategy is the recommended baseline: TF-IDF features into a
// one-vs-rest linear SVM, optionally grid-searching C.
type SVMStrategy struct {
	modelDir      string
	useGridSearch bool
	logger        *slog.Logger

	model      *LinearModel
	vectorizer *TFIDFVectorizer
	encoder    *LabelEncoder
}

func NewSVMStrategy(modelDir string, useGridSearch bool, logger *slog.Logger) *SVMStrategy {
	return &SVMStrategy{modelDir: modelDir, useGridSearch: useGridSearch, logger: logger}
}

func (s *SVMStrategy) ModelName() string {
	if s.useGridSearch {
		return "SVM (Grid Search)"
	}
	return "SVM (Linear)"
}

func (s *SVMStrategy) ModelFiles() []string {
	return []string{
		filepath.Join(s.modelDir, "svm_classifier.gob"),
		filepath.Join(s.modelDir, "svm_vectorizer.gob"),
		filepath.Join(s.modelDir, "svm_label_encoder.gob"),
	}
}

func (s *SVMStrategy) Train(ctx context.Context, documents, labels []string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	encoder := FitLabelEncoder(labels)
	y := encoder.Encode(labels)
	s.logger.Info("training", "model", s.ModelName(), "classes", encoder.NumClasses(), "documents", len(documents))

	vectorizer := NewTFIDFVectorizer()
	matrix := vectorizer.Fit(documents)
	s.logger.Debug("feature matrix built", "features", vectorizer.NumFeatures())

	trainIdx, testIdx := StratifiedSplit(labels, DefaultTestSize, SplitSeed)
	trainX := selectVectors(matrix, trainIdx)
	trainY := selectInts(y, trainIdx)

	c := 1.0
	if s.useGridSearch {
		c = crossValidateC(trainX, trainY, encoder.NumClasses(), vectorizer.NumFeatures(),
			[]float64{0.1, 1, 10}, 3, SplitSeed)
		s.logger.Info("grid search finished", "best_c", c)
	}

	opts := defaultLinearSVMOptions()
	opts.C = c
	model := TrainLinearSVM(trainX, trainY, encoder.NumClasses(), vectorizer.NumFeatures(), opts)

	predicted := model.Predict(selectVectors(matrix, testIdx))
	metrics := Evaluate(Select(labels, testIdx), encoder.Decode(predicted), encoder.Classes)
	s.logger.Info("training finished", "model", s.ModelName(), "accuracy", metrics.Accuracy)

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
		Hyperparams: map[string]string{"kernel": "linear", "C": fmt.Sprintf("%g", c), "class_weight": "balanced"},
		Classes:     encoder.Classes,
	}); err != nil {
		return 0, err
	}

	s.model, s.vectorizer, s.encoder = model, vectorizer, encoder
	return metrics.Accuracy, nil
}

func (s *SVMStrategy) LoadModel() bool {
	files := s.ModelFiles()
	var model LinearModel
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

func (s *SVMStrategy) Predict(ctx context.Context, documents []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.model == nil {
		return nil, fmt.Errorf("%s: model not loaded", s.ModelName())
	}
	predicted := s.model.Predict(s.vectorizer.Transform(documents))
	return s.encoder.Decode(predicted), nil
}
