package classify

import (
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
)

// DatasetOptions configure corpus assembly from a text cache.
type DatasetOptions struct {
	MinFrequency int
	MaxPerLabel  int
	Seed         int64
}

func DefaultDatasetOptions() DatasetOptions {
	return DatasetOptions{MinFrequency: 5, MaxPerLabel: 200, Seed: SplitSeed}
}

// BuildDataset reads the .txt cache under txtDir and pairs each file
// with its label from the mapping. Labels below MinFrequency are
// dropped, labels above MaxPerLabel are down-sampled with the seeded
// generator. Text preprocessing here is deliberately minimal
// (whitespace collapse and lowercasing); feature extraction is
// strategy-specific.
func BuildDataset(labelMapping domain.LabelMapping, txtDir string, opts DatasetOptions) ([]domain.LabeledDocument, error) {
	entries, err := os.ReadDir(txtDir)
	if err != nil {
		return nil, domain.WrapError(domain.ErrValidation, "read text cache", err)
	}

	labelFiles := make(map[string][]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".txt") {
			continue
		}
		id := strings.TrimSuffix(name, ".txt")
		label, ok := labelMapping[id]
		if !ok {
			continue
		}
		labelFiles[label] = append(labelFiles[label], name)
	}

	ordered := make([]string, 0, len(labelFiles))
	for label, files := range labelFiles {
		if len(files) < opts.MinFrequency {
			continue
		}
		sort.Strings(files)
		ordered = append(ordered, label)
	}
	sort.Strings(ordered)

	rng := rand.New(rand.NewSource(opts.Seed))
	var dataset []domain.LabeledDocument
	for _, label := range ordered {
		files := labelFiles[label]
		if len(files) > opts.MaxPerLabel {
			rng.Shuffle(len(files), func(i, j int) { files[i], files[j] = files[j], files[i] })
			files = files[:opts.MaxPerLabel]
			sort.Strings(files)
		}
		for _, file := range files {
			raw, err := os.ReadFile(filepath.Join(txtDir, file))
			if err != nil {
				continue
			}
			text := strings.ToLower(strings.Join(strings.Fields(string(raw)), " "))
			if text == "" {
				continue
			}
			dataset = append(dataset, domain.LabeledDocument{
				ID:    strings.TrimSuffix(file, ".txt"),
				Text:  text,
				Label: label,
			})
		}
	}
	return dataset, nil
}

// Columns splits a labeled dataset into its parallel slices.
func Columns(dataset []domain.LabeledDocument) (docs, labels, ids []string) {
	docs = make([]string, len(dataset))
	labels = make([]string, len(dataset))
	ids = make([]string, len(dataset))
	for i, item := range dataset {
		docs[i] = item.Text
		labels[i] = item.Label
		ids[i] = item.ID
	}
	return docs, labels, ids
}
