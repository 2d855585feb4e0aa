package classify

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"path/filepath"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

const (
	forestTrees    = 100
	forestMaxDepth = 30
)

// TreeNode is one node of a CART decision tree. Leaf nodes carry the
// majority class; internal nodes route on value <= Threshold.
type TreeNode struct {
	Leaf      bool
	Class     int
	Feature   int
	Threshold float64
	Left      *TreeNode
	Right     *TreeNode
}

func (n *TreeNode) classify(vec SparseVector) int {
	node := n
	for !node.Leaf {
		if vec.At(node.Feature) <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Class
}

// Forest is a bag of trees voting by majority.
type Forest struct {
	Trees      []*TreeNode
	NumClasses int
}

func (f *Forest) PredictOne(vec SparseVector) int {
	votes := make([]int, f.NumClasses)
	for _, tree := range f.Trees {
		votes[tree.classify(vec)]++
	}
	winner := 0
	for c := range votes {
		if votes[c] > votes[winner] {
			winner = c
		}
	}
	return winner
}

func (f *Forest) Predict(vectors []SparseVector) []int {
	out := make([]int, len(vectors))
	for i, vec := range vectors {
		out[i] = f.PredictOne(vec)
	}
	return out
}

type treeBuilder struct {
	vectors          []SparseVector
	y                []int
	numClasses       int
	featurePool      []int
	featuresPerSplit int
	rng              *rand.Rand
}

func (b *treeBuilder) build(indices []int, depth int) *TreeNode {
	counts := make([]int, b.numClasses)
	for _, idx := range indices {
		counts[b.y[idx]]++
	}
	majority, pure := majorityClass(counts)
	if pure || depth >= forestMaxDepth || len(indices) < 2 {
		return &TreeNode{Leaf: true, Class: majority}
	}

	bestFeature, bestThreshold, bestGini := -1, 0.0, math.Inf(1)
	for i := 0; i < b.featuresPerSplit; i++ {
		feature := b.featurePool[b.rng.Intn(len(b.featurePool))]
		threshold, gini, ok := b.bestSplit(indices, feature)
		if ok && gini < bestGini {
			bestFeature, bestThreshold, bestGini = feature, threshold, gini
		}
	}
	if bestFeature < 0 {
		return &TreeNode{Leaf: true, Class: majority}
	}

	var left, right []int
	for _, idx := range indices {
		if b.vectors[idx].At(bestFeature) <= bestThreshold {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &TreeNode{Leaf: true, Class: majority}
	}
	return &TreeNode{
		Feature:   bestFeature,
		Threshold: bestThreshold,
		Left:      b.build(left, depth+1),
		Right:     b.build(right, depth+1),
	}
}

// bestSplit scans the distinct values of one feature inside a node and
// returns the threshold with the lowest weighted gini.
func (b *treeBuilder) bestSplit(indices []int, feature int) (float64, float64, bool) {
	values := make([]float64, len(indices))
	for i, idx := range indices {
		values[i] = b.vectors[idx].At(feature)
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if sorted[0] == sorted[len(sorted)-1] {
		return 0, 0, false
	}

	bestThreshold, bestGini, found := 0.0, math.Inf(1), false
	prev := sorted[0]
	for _, value := range sorted[1:] {
		if value == prev {
			continue
		}
		threshold := (prev + value) / 2
		prev = value

		leftCounts := make([]int, b.numClasses)
		rightCounts := make([]int, b.numClasses)
		for i, idx := range indices {
			if values[i] <= threshold {
				leftCounts[b.y[idx]]++
			} else {
				rightCounts[b.y[idx]]++
			}
		}
		gini := weightedGini(leftCounts, rightCounts)
		if gini < bestGini {
			bestThreshold, bestGini, found = threshold, gini, true
		}
	}
	return bestThreshold, bestGini, found
}

func majorityClass(counts []int) (int, bool) {
	best, nonzero := 0, 0
	for c, count := range counts {
		if count > 0 {
			nonzero++
		}
		if count > counts[best] {
			best = c
		}
	}
	return best, nonzero <= 1
}

func weightedGini(left, right []int) float64 {
	gini := func(counts []int) (float64, int) {
		total := 0
		for _, count := range counts {
			total += count
		}
		if total == 0 {
			return 0, 0
		}
		impurity := 1.0
		for _, count := range counts {
			p := float64(count) / float64(total)
			impurity -= p * p
		}
		return impurity, total
	}
	leftGini, leftN := gini(left)
	rightGini, rightN := gini(right)
	total := float64(leftN + rightN)
	return (float64(leftN)*leftGini + float64(rightN)*rightGini) / total
}

// featuresPresent lists every feature index that occurs in the matrix,
// so split sampling never wastes draws on all-zero columns.
func featuresPresent(vectors []SparseVector) []int {
	seen := make(map[int]struct{})
	for _, vec := range vectors {
		for _, idx := range vec.Indices {
			seen[idx] = struct{}{}
		}
	}
	features := make([]int, 0, len(seen))
	for idx := range seen {
		features = append(features, idx)
	}
	sort.Ints(features)
	return features
}

// TrainForest grows trees on bootstrap samples, fanning out across
// CPUs. Each tree gets its own derived seed so the forest is
// reproducible regardless of scheduling.
func TrainForest(ctx context.Context, vectors []SparseVector, y []int, numClasses int, seed int64) (*Forest, error) {
	pool := featuresPresent(vectors)
	perSplit := int(math.Sqrt(float64(len(pool))))
	if perSplit < 1 {
		perSplit = 1
	}

	trees := make([]*TreeNode, forestTrees)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for t := 0; t < forestTrees; t++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(seed + int64(t)))
			sample := make([]int, len(vectors))
			for i := range sample {
				sample[i] = rng.Intn(len(vectors))
			}
			builder := &treeBuilder{
				vectors:          vectors,
				y:                y,
				numClasses:       numClasses,
				featurePool:      pool,
				featuresPerSplit: perSplit,
				rng:              rng,
			}
			trees[t] = builder.build(sample, 0)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Forest{Trees: trees, NumClasses: numClasses}, nil
}

// ForestStrategy wraps a 100-tree random forest over TF-IDF features.
type ForestStrategy struct {
	modelDir string
	logger   *slog.Logger

	forest     *Forest
	vectorizer *TFIDFVectorizer
	encoder    *LabelEncoder
}

func NewForestStrategy(modelDir string, logger *slog.Logger) *ForestStrategy {
	return &ForestStrategy{modelDir: modelDir, logger: logger}
}

func (s *ForestStrategy) ModelName() string { return "Random Forest" }

func (s *ForestStrategy) ModelFiles() []string {
	return []string{
		filepath.Join(s.modelDir, "rf_classifier.gob"),
		filepath.Join(s.modelDir, "rf_vectorizer.gob"),
		filepath.Join(s.modelDir, "rf_label_encoder.gob"),
	}
}

func (s *ForestStrategy) Train(ctx context.Context, documents, labels []string) (float64, error) {
	encoder := FitLabelEncoder(labels)
	y := encoder.Encode(labels)
	s.logger.Info("training", "model", s.ModelName(), "classes", encoder.NumClasses(), "documents", len(documents))

	vectorizer := NewTFIDFVectorizer()
	matrix := vectorizer.Fit(documents)

	trainIdx, testIdx := StratifiedSplit(labels, DefaultTestSize, SplitSeed)
	forest, err := TrainForest(ctx, selectVectors(matrix, trainIdx), selectInts(y, trainIdx), encoder.NumClasses(), SplitSeed)
	if err != nil {
		return 0, err
	}

	predicted := forest.Predict(selectVectors(matrix, testIdx))
	metrics := Evaluate(Select(labels, testIdx), encoder.Decode(predicted), encoder.Classes)
	s.logger.Info("training finished", "model", s.ModelName(), "accuracy", metrics.Accuracy)

	files := s.ModelFiles()
	if err := saveGob(files[0], forest); err != nil {
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
		Hyperparams: map[string]string{"n_estimators": "100", "max_depth": "30"},
		Classes:     encoder.Classes,
	}); err != nil {
		return 0, err
	}

	s.forest, s.vectorizer, s.encoder = forest, vectorizer, encoder
	return metrics.Accuracy, nil
}

func (s *ForestStrategy) LoadModel() bool {
	files := s.ModelFiles()
	var forest Forest
	var vectorizer TFIDFVectorizer
	var encoder LabelEncoder
	if err := loadGob(files[0], &forest); err != nil {
		return false
	}
	if err := loadGob(files[1], &vectorizer); err != nil {
		return false
	}
	if err := loadGob(files[2], &encoder); err != nil {
		return false
	}
	s.forest, s.vectorizer, s.encoder = &forest, &vectorizer, &encoder
	return true
}

func (s *ForestStrategy) Predict(ctx context.Context, documents []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.forest == nil {
		return nil, fmt.Errorf("%s: model not loaded", s.ModelName())
	}
	predicted := s.forest.Predict(s.vectorizer.Transform(documents))
	return s.encoder.Decode(predicted), nil
}
