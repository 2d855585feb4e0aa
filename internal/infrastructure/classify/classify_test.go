package classify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// syntheticCorpus builds a linearly separable two-class corpus with
// enough token repetition to clear min_df.
func syntheticCorpus(perClass int) (docs, labels []string) {
	for i := 0; i < perClass; i++ {
		docs = append(docs, fmt.Sprintf("perro gato animal mascota veterinaria cachorro numero%d", i%3))
		labels = append(labels, "Ciencias Veterinarias")
		docs = append(docs, fmt.Sprintf("inflacion mercado dinero banco economia finanzas numero%d", i%3))
		labels = append(labels, "Economía y Negocios")
	}
	return docs, labels
}

func TestStratifiedSplitDeterministic(t *testing.T) {
	labels := make([]string, 0, 50)
	for i := 0; i < 30; i++ {
		labels = append(labels, "a")
	}
	for i := 0; i < 20; i++ {
		labels = append(labels, "b")
	}

	train1, test1 := StratifiedSplit(labels, 0.2, SplitSeed)
	train2, test2 := StratifiedSplit(labels, 0.2, SplitSeed)

	if len(train1) != len(train2) || len(test1) != len(test2) {
		t.Fatalf("split sizes differ between runs")
	}
	for i := range test1 {
		if test1[i] != test2[i] {
			t.Fatalf("test sets differ at %d: %d vs %d", i, test1[i], test2[i])
		}
	}
	for i := range train1 {
		if train1[i] != train2[i] {
			t.Fatalf("train sets differ at %d", i)
		}
	}
}

func TestStratifiedSplitProportions(t *testing.T) {
	labels := make([]string, 0, 100)
	for i := 0; i < 60; i++ {
		labels = append(labels, "mayor")
	}
	for i := 0; i < 40; i++ {
		labels = append(labels, "menor")
	}
	train, test := StratifiedSplit(labels, 0.2, SplitSeed)

	if len(train)+len(test) != len(labels) {
		t.Fatalf("partition loses rows: %d + %d != %d", len(train), len(test), len(labels))
	}
	seen := make(map[int]bool, len(labels))
	for _, idx := range append(append([]int{}, train...), test...) {
		if seen[idx] {
			t.Fatalf("index %d appears twice", idx)
		}
		seen[idx] = true
	}

	counts := map[string]int{}
	for _, idx := range test {
		counts[labels[idx]]++
	}
	if counts["mayor"] != 12 || counts["menor"] != 8 {
		t.Fatalf("test distribution = %v, want mayor:12 menor:8", counts)
	}
}

func TestTFIDFVectorizer(t *testing.T) {
	docs := []string{
		"el perro ladra fuerte perro",
		"el gato duerme mucho gato",
		"perro y gato juegan juntos",
	}
	v := NewTFIDFVectorizer()
	matrix := v.Fit(docs)

	if len(matrix) != 3 {
		t.Fatalf("matrix rows = %d", len(matrix))
	}
	// Stopwords never enter the vocabulary.
	for _, stop := range []string{"el", "y"} {
		if _, ok := v.Vocabulary[stop]; ok {
			t.Fatalf("stopword %q in vocabulary", stop)
		}
	}
	// min_df=2 drops terms seen in a single document.
	if _, ok := v.Vocabulary["ladra"]; ok {
		t.Fatalf("df=1 term survived min_df")
	}
	if _, ok := v.Vocabulary["perro"]; !ok {
		t.Fatalf("df=2 term missing from vocabulary")
	}
	// Rows are l2-normalized.
	for i, vec := range matrix {
		var norm float64
		for _, value := range vec.Values {
			norm += value * value
		}
		if len(vec.Values) > 0 && math.Abs(norm-1) > 1e-9 {
			t.Fatalf("row %d norm = %f", i, norm)
		}
	}

	// Transform must agree with Fit on the same input.
	again := v.Transform(docs[:1])
	if len(again[0].Indices) != len(matrix[0].Indices) {
		t.Fatalf("transform disagrees with fit")
	}
}

func TestEvaluateMetrics(t *testing.T) {
	truth := []string{"a", "a", "b", "b"}
	predicted := []string{"a", "b", "b", "b"}
	m := Evaluate(truth, predicted, []string{"a", "b"})

	if m.Accuracy != 0.75 {
		t.Fatalf("accuracy = %f", m.Accuracy)
	}
	if m.Confusion[0][0] != 1 || m.Confusion[0][1] != 1 || m.Confusion[1][1] != 2 {
		t.Fatalf("confusion = %v", m.Confusion)
	}
	// a: precision 1, recall 0.5; b: precision 2/3, recall 1.
	wantPrecision := (1.0 + 2.0/3.0) / 2
	if math.Abs(m.MacroPrecision-wantPrecision) > 1e-9 {
		t.Fatalf("macro precision = %f, want %f", m.MacroPrecision, wantPrecision)
	}
}

func TestPerLabelAccuracyClipped(t *testing.T) {
	m := Evaluate([]string{"a", "a"}, []string{"a", "a"}, []string{"a"})
	if got := m.PerLabelAccuracy()["a"]; got != 99 {
		t.Fatalf("perfect label accuracy = %d, want clipped 99", got)
	}
}

func TestSVMStrategyRoundTrip(t *testing.T) {
	docs, labels := syntheticCorpus(20)
	dir := t.TempDir()

	trained := NewSVMStrategy(dir, false, testLogger())
	accuracy, err := trained.Train(context.Background(), docs, labels)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if accuracy < 0.9 {
		t.Fatalf("separable corpus accuracy = %f", accuracy)
	}

	fresh := NewSVMStrategy(dir, false, testLogger())
	if !fresh.LoadModel() {
		t.Fatalf("load failed with all artifacts present")
	}
	predicted, err := fresh.Predict(context.Background(), []string{
		"el veterinaria atiende un cachorro y un gato",
		"el banco ajusta por inflacion el dinero",
	})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(predicted) != 2 {
		t.Fatalf("predict length = %d", len(predicted))
	}
	if predicted[0] != "Ciencias Veterinarias" || predicted[1] != "Economía y Negocios" {
		t.Fatalf("predicted = %v", predicted)
	}
}

func TestSVMLoadModelMissingArtifacts(t *testing.T) {
	s := NewSVMStrategy(t.TempDir(), false, testLogger())
	if s.LoadModel() {
		t.Fatalf("load succeeded with no artifacts")
	}
}

func TestForestStrategyTrains(t *testing.T) {
	docs, labels := syntheticCorpus(15)
	s := NewForestStrategy(t.TempDir(), testLogger())
	accuracy, err := s.Train(context.Background(), docs, labels)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if accuracy < 0.8 {
		t.Fatalf("forest accuracy = %f", accuracy)
	}
}

func TestBoostingStrategyTrains(t *testing.T) {
	docs, labels := syntheticCorpus(15)
	s := NewBoostingStrategy(t.TempDir(), testLogger())
	accuracy, err := s.Train(context.Background(), docs, labels)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if accuracy < 0.8 {
		t.Fatalf("boosting accuracy = %f", accuracy)
	}
}

// stubEmbedder maps each known keyword family onto an axis so classes
// separate cleanly in embedding space.
type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, 4)
		for j, keyword := range []string{"perro", "inflacion", "gato", "dinero"} {
			if contains(text, keyword) {
				vec[j] = 1
			}
		}
		out[i] = vec
	}
	return out, nil
}

func contains(text, keyword string) bool {
	for i := 0; i+len(keyword) <= len(text); i++ {
		if text[i:i+len(keyword)] == keyword {
			return true
		}
	}
	return false
}

func TestCentroidStrategyRoundTrip(t *testing.T) {
	docs, labels := syntheticCorpus(10)
	dir := t.TempDir()

	trained := NewCentroidStrategy(dir, stubEmbedder{}, testLogger())
	accuracy, err := trained.Train(context.Background(), docs, labels)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if accuracy < 0.9 {
		t.Fatalf("centroid accuracy = %f", accuracy)
	}

	fresh := NewCentroidStrategy(dir, stubEmbedder{}, testLogger())
	if !fresh.LoadModel() {
		t.Fatalf("load failed")
	}
	predicted, err := fresh.Predict(context.Background(), []string{"un perro y un gato"})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if predicted[0] != "Ciencias Veterinarias" {
		t.Fatalf("predicted = %v", predicted)
	}
}

func TestKNNStrategyPreservesOrder(t *testing.T) {
	docs, labels := syntheticCorpus(10)
	dir := t.TempDir()

	s := NewKNNStrategy(dir, stubEmbedder{}, testLogger())
	if _, err := s.Train(context.Background(), docs, labels); err != nil {
		t.Fatalf("train: %v", err)
	}

	inputs := []string{
		"inflacion y dinero",
		"perro gato",
		"dinero inflacion banco",
	}
	predicted, err := s.Predict(context.Background(), inputs)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(predicted) != len(inputs) {
		t.Fatalf("length %d, want %d", len(predicted), len(inputs))
	}
	if predicted[0] != "Economía y Negocios" || predicted[1] != "Ciencias Veterinarias" || predicted[2] != "Economía y Negocios" {
		t.Fatalf("predicted = %v", predicted)
	}
}

func TestComparatorSkipsMissingArtifacts(t *testing.T) {
	docs, labels := syntheticCorpus(20)
	root := t.TempDir()
	registry := NewDefaultRegistry(stubEmbedder{}, testLogger())

	// Train only the SVM; the forest stays untrained.
	svm := NewSVMStrategy(root+"/"+KeySVM, false, testLogger())
	if _, err := svm.Train(context.Background(), docs, labels); err != nil {
		t.Fatalf("train svm: %v", err)
	}

	comparator := NewComparator(registry, root, testLogger())
	results, err := comparator.Run(context.Background(), []string{KeySVM, KeyForest}, docs, labels)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d", len(results))
	}
	if results[0].Skipped {
		t.Fatalf("svm skipped: %s", results[0].SkipReason)
	}
	if results[0].Metrics.Accuracy < 0.9 {
		t.Fatalf("svm accuracy = %f", results[0].Metrics.Accuracy)
	}
	if !results[1].Skipped || results[1].SkipReason != "missing artifacts" {
		t.Fatalf("forest result = %+v, want skipped", results[1])
	}
}

func TestWriteComparisonWorkbook(t *testing.T) {
	docs, labels := syntheticCorpus(20)
	root := t.TempDir()
	registry := NewDefaultRegistry(stubEmbedder{}, testLogger())

	svm := NewSVMStrategy(root+"/"+KeySVM, false, testLogger())
	if _, err := svm.Train(context.Background(), docs, labels); err != nil {
		t.Fatalf("train: %v", err)
	}
	comparator := NewComparator(registry, root, testLogger())
	results, err := comparator.Run(context.Background(), []string{KeySVM}, docs, labels)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	path := root + "/comparison.xlsx"
	if err := WriteComparisonWorkbook(path, results); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
}
