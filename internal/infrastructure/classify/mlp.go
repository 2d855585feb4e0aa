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

const (
	mlpHidden1   = 256
	mlpHidden2   = 128
	mlpDropout   = 0.3
	mlpLearnRate = 1e-3
	mlpBatchSize = 32
	mlpMaxEpochs = 50
	mlpPatience  = 10
)

// denseLayer is a fully connected layer with Adam state.
type denseLayer struct {
	Weights [][]float64 // out × in
	Bias    []float64

	mW, vW [][]float64
	mB, vB []float64
}

func newDenseLayer(in, out int, rng *rand.Rand) *denseLayer {
	layer := &denseLayer{
		Weights: make([][]float64, out),
		Bias:    make([]float64, out),
		mW:      make([][]float64, out),
		vW:      make([][]float64, out),
		mB:      make([]float64, out),
		vB:      make([]float64, out),
	}
	// He initialization for the ReLU stack.
	scale := math.Sqrt(2 / float64(in))
	for o := range layer.Weights {
		layer.Weights[o] = make([]float64, in)
		layer.mW[o] = make([]float64, in)
		layer.vW[o] = make([]float64, in)
		for i := range layer.Weights[o] {
			layer.Weights[o][i] = rng.NormFloat64() * scale
		}
	}
	return layer
}

func (l *denseLayer) forward(input []float64) []float64 {
	out := make([]float64, len(l.Weights))
	for o, row := range l.Weights {
		sum := l.Bias[o]
		for i, w := range row {
			sum += w * input[i]
		}
		out[o] = sum
	}
	return out
}

// MLPModel is the serving form of the network: weights only, no
// optimizer state.
type MLPModel struct {
	Layers []struct {
		Weights [][]float64
		Bias    []float64
	}
	EmbeddingModel string
}

func (m *MLPModel) PredictOne(embedding []float64) int {
	activation := embedding
	for i, layer := range m.Layers {
		next := make([]float64, len(layer.Weights))
		for o, row := range layer.Weights {
			sum := layer.Bias[o]
			for j, w := range row {
				sum += w * activation[j]
			}
			if i < len(m.Layers)-1 && sum < 0 {
				sum = 0
			}
			next[o] = sum
		}
		activation = next
	}
	return argmaxFloat(activation)
}

// mlpTrainer runs minibatch Adam with dropout and early stopping; the
// best-validation epoch is the checkpoint that survives.
type mlpTrainer struct {
	layers []*denseLayer
	rng    *rand.Rand
	step   int
}

func newMLPTrainer(inputDim, numClasses int, rng *rand.Rand) *mlpTrainer {
	return &mlpTrainer{
		layers: []*denseLayer{
			newDenseLayer(inputDim, mlpHidden1, rng),
			newDenseLayer(mlpHidden1, mlpHidden2, rng),
			newDenseLayer(mlpHidden2, numClasses, rng),
		},
		rng: rng,
	}
}

func (t *mlpTrainer) trainBatch(inputs [][]float64, targets []int) {
	grads := make([]*denseLayer, len(t.layers))
	for i, layer := range t.layers {
		grads[i] = &denseLayer{
			Weights: make([][]float64, len(layer.Weights)),
			Bias:    make([]float64, len(layer.Bias)),
		}
		for o := range grads[i].Weights {
			grads[i].Weights[o] = make([]float64, len(layer.Weights[o]))
		}
	}

	for b, input := range inputs {
		// Forward with dropout masks on the two hidden layers.
		activations := [][]float64{input}
		masks := make([][]bool, len(t.layers)-1)
		for li, layer := range t.layers {
			out := layer.forward(activations[len(activations)-1])
			if li < len(t.layers)-1 {
				masks[li] = make([]bool, len(out))
				for o := range out {
					if out[o] < 0 {
						out[o] = 0
					}
					if t.rng.Float64() < mlpDropout {
						masks[li][o] = true
						out[o] = 0
					} else {
						out[o] /= 1 - mlpDropout
					}
				}
			}
			activations = append(activations, out)
		}

		// Softmax cross-entropy gradient at the output.
		logits := activations[len(activations)-1]
		probs := softmax(logits)
		delta := make([]float64, len(probs))
		copy(delta, probs)
		delta[targets[b]]--

		// Backpropagate.
		for li := len(t.layers) - 1; li >= 0; li-- {
			layer := t.layers[li]
			input := activations[li]
			for o := range layer.Weights {
				grads[li].Bias[o] += delta[o]
				for i := range layer.Weights[o] {
					grads[li].Weights[o][i] += delta[o] * input[i]
				}
			}
			if li == 0 {
				break
			}
			next := make([]float64, len(input))
			for i := range next {
				var sum float64
				for o := range layer.Weights {
					sum += layer.Weights[o][i] * delta[o]
				}
				// Through dropout and ReLU of the previous layer.
				if masks[li-1][i] || activations[li][i] == 0 {
					sum = 0
				} else {
					sum /= 1 - mlpDropout
				}
				next[i] = sum
			}
			delta = next
		}
	}

	t.step++
	scale := 1 / float64(len(inputs))
	for li, layer := range t.layers {
		adamUpdate(layer.Weights, grads[li].Weights, layer.mW, layer.vW, t.step, scale)
		adamUpdateVec(layer.Bias, grads[li].Bias, layer.mB, layer.vB, t.step, scale)
	}
}

const (
	adamBeta1 = 0.9
	adamBeta2 = 0.999
	adamEps   = 1e-8
)

func adamUpdate(weights, grads, m, v [][]float64, step int, scale float64) {
	for o := range weights {
		adamUpdateVec(weights[o], grads[o], m[o], v[o], step, scale)
	}
}

func adamUpdateVec(weights, grads, m, v []float64, step int, scale float64) {
	correction1 := 1 - math.Pow(adamBeta1, float64(step))
	correction2 := 1 - math.Pow(adamBeta2, float64(step))
	for i := range weights {
		g := grads[i] * scale
		m[i] = adamBeta1*m[i] + (1-adamBeta1)*g
		v[i] = adamBeta2*v[i] + (1-adamBeta2)*g*g
		mHat := m[i] / correction1
		vHat := v[i] / correction2
		weights[i] -= mlpLearnRate * mHat / (math.Sqrt(vHat) + adamEps)
	}
}

func softmax(logits []float64) []float64 {
	max := logits[0]
	for _, l := range logits[1:] {
		if l > max {
			max = l
		}
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		out[i] = math.Exp(l - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func (t *mlpTrainer) snapshot(embeddingModel string) *MLPModel {
	model := &MLPModel{EmbeddingModel: embeddingModel}
	for _, layer := range t.layers {
		var saved struct {
			Weights [][]float64
			Bias    []float64
		}
		saved.Weights = make([][]float64, len(layer.Weights))
		for o := range layer.Weights {
			saved.Weights[o] = append([]float64(nil), layer.Weights[o]...)
		}
		saved.Bias = append([]float64(nil), layer.Bias...)
		model.Layers = append(model.Layers, saved)
	}
	return model
}

// NeuralStrategy trains the embedding MLP (input → 256 → 128 → C).
type NeuralStrategy struct {
	modelDir string
	embedder ports.Embedder
	logger   *slog.Logger

	model   *MLPModel
	encoder *LabelEncoder
}

func NewNeuralStrategy(modelDir string, embedder ports.Embedder, logger *slog.Logger) *NeuralStrategy {
	return &NeuralStrategy{modelDir: modelDir, embedder: embedder, logger: logger}
}

func (s *NeuralStrategy) ModelName() string { return "Neural (MLP)" }

func (s *NeuralStrategy) ModelFiles() []string {
	return []string{
		filepath.Join(s.modelDir, "neural_model.gob"),
		filepath.Join(s.modelDir, "neural_label_encoder.gob"),
	}
}

func (s *NeuralStrategy) Train(ctx context.Context, documents, labels []string) (float64, error) {
	encoder := FitLabelEncoder(labels)
	y := encoder.Encode(labels)
	s.logger.Info("training", "model", s.ModelName(), "classes", encoder.NumClasses(), "documents", len(documents))

	trainIdx, testIdx := StratifiedSplit(labels, DefaultTestSize, SplitSeed)
	trainEmbeddings, err := embedAll(ctx, s.embedder, Select(documents, trainIdx))
	if err != nil {
		return 0, err
	}
	trainY := selectInts(y, trainIdx)

	// Hold out 10% of the training partition for early stopping.
	rng := rand.New(rand.NewSource(SplitSeed))
	order := rng.Perm(len(trainEmbeddings))
	nValid := len(order) / 10
	if nValid == 0 && len(order) > 1 {
		nValid = 1
	}
	validIdx, fitIdx := order[:nValid], order[nValid:]

	trainer := newMLPTrainer(len(trainEmbeddings[0]), encoder.NumClasses(), rng)
	var best *MLPModel
	bestAccuracy, badEpochs := -1.0, 0

	for epoch := 0; epoch < mlpMaxEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		rng.Shuffle(len(fitIdx), func(i, j int) { fitIdx[i], fitIdx[j] = fitIdx[j], fitIdx[i] })
		for start := 0; start < len(fitIdx); start += mlpBatchSize {
			end := start + mlpBatchSize
			if end > len(fitIdx) {
				end = len(fitIdx)
			}
			batch := fitIdx[start:end]
			trainer.trainBatch(selectRows(trainEmbeddings, batch), selectInts(trainY, batch))
		}

		checkpoint := trainer.snapshot("")
		correct := 0
		for _, idx := range validIdx {
			if checkpoint.PredictOne(trainEmbeddings[idx]) == trainY[idx] {
				correct++
			}
		}
		accuracy := float64(correct) / float64(len(validIdx))
		if accuracy > bestAccuracy {
			best, bestAccuracy, badEpochs = checkpoint, accuracy, 0
		} else {
			badEpochs++
			if badEpochs >= mlpPatience {
				s.logger.Info("early stopping", "epoch", epoch+1, "best_validation", bestAccuracy)
				break
			}
		}
	}
	if best == nil {
		best = trainer.snapshot("")
	}

	testEmbeddings, err := embedAll(ctx, s.embedder, Select(documents, testIdx))
	if err != nil {
		return 0, err
	}
	predicted := make([]int, len(testEmbeddings))
	for i, embedding := range testEmbeddings {
		predicted[i] = best.PredictOne(embedding)
	}
	metrics := Evaluate(Select(labels, testIdx), encoder.Decode(predicted), encoder.Classes)
	s.logger.Info("training finished", "model", s.ModelName(), "accuracy", metrics.Accuracy)

	files := s.ModelFiles()
	if err := saveGob(files[0], best); err != nil {
		return 0, err
	}
	if err := saveGob(files[1], encoder); err != nil {
		return 0, err
	}
	if err := saveDescriptor(s.modelDir, Descriptor{
		Model: s.ModelName(),
		Hyperparams: map[string]string{
			"hidden":     "256,128",
			"dropout":    "0.3",
			"optimizer":  "adam",
			"lr":         "0.001",
			"batch_size": "32",
			"max_epochs": "50",
			"patience":   "10",
		},
		Classes: encoder.Classes,
	}); err != nil {
		return 0, err
	}

	s.model, s.encoder = best, encoder
	return metrics.Accuracy, nil
}

func (s *NeuralStrategy) LoadModel() bool {
	files := s.ModelFiles()
	var model MLPModel
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

func (s *NeuralStrategy) Predict(ctx context.Context, documents []string) ([]string, error) {
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
