package classify

// EvaluationMetrics summarize one model's performance on the shared
// test set.
type EvaluationMetrics struct {
	Accuracy       float64
	MacroPrecision float64
	MacroRecall    float64
	MacroF1        float64
	// Confusion[i][j] counts documents of true class i predicted as j.
	Confusion [][]int
	Classes   []string
}

// Evaluate computes accuracy, macro-averaged precision/recall/F1 and
// the confusion matrix over aligned truth/prediction slices.
func Evaluate(truth, predicted []string, classes []string) EvaluationMetrics {
	index := make(map[string]int, len(classes))
	for i, class := range classes {
		index[class] = i
	}

	confusion := make([][]int, len(classes))
	for i := range confusion {
		confusion[i] = make([]int, len(classes))
	}

	correct := 0
	for i, want := range truth {
		got := predicted[i]
		if got == want {
			correct++
		}
		wi, wok := index[want]
		gi, gok := index[got]
		if wok && gok {
			confusion[wi][gi]++
		}
	}

	var precisionSum, recallSum, f1Sum float64
	for i := range classes {
		var truePos, predPos, actualPos int
		truePos = confusion[i][i]
		for j := range classes {
			predPos += confusion[j][i]
			actualPos += confusion[i][j]
		}
		var precision, recall float64
		if predPos > 0 {
			precision = float64(truePos) / float64(predPos)
		}
		if actualPos > 0 {
			recall = float64(truePos) / float64(actualPos)
		}
		var f1 float64
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}
		precisionSum += precision
		recallSum += recall
		f1Sum += f1
	}

	n := float64(len(classes))
	metrics := EvaluationMetrics{
		Confusion: confusion,
		Classes:   classes,
	}
	if len(truth) > 0 {
		metrics.Accuracy = float64(correct) / float64(len(truth))
	}
	if n > 0 {
		metrics.MacroPrecision = precisionSum / n
		metrics.MacroRecall = recallSum / n
		metrics.MacroF1 = f1Sum / n
	}
	return metrics
}

// PerLabelAccuracy returns the diagonal of the confusion matrix as
// percentages, clipped to 0..99 for heatmap readability.
func (m EvaluationMetrics) PerLabelAccuracy() map[string]int {
	out := make(map[string]int, len(m.Classes))
	for i, class := range m.Classes {
		total := 0
		for j := range m.Classes {
			total += m.Confusion[i][j]
		}
		percent := 0
		if total > 0 {
			percent = m.Confusion[i][i] * 100 / total
		}
		if percent > 99 {
			percent = 99
		}
		out[class] = percent
	}
	return out
}
