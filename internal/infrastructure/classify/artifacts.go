package classify

import (
	"encoding/gob"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
)

// Descriptor is the metadata sidecar saved next to every model blob:
// enough to re-create the serving setup without loading the blob.
type Descriptor struct {
	Model          string            `json:"model"`
	EmbeddingModel string            `json:"embedding_model,omitempty"`
	Hyperparams    map[string]string `json:"hyperparams,omitempty"`
	Classes        []string          `json:"classes"`
}

const descriptorFile = "descriptor.json"

func saveDescriptor(modelDir string, descriptor Descriptor) error {
	raw, err := json.MarshalIndent(descriptor, "", "  ")
	if err != nil {
		return domain.WrapError(domain.ErrMissingArtifact, "encode descriptor", err)
	}
	return os.WriteFile(filepath.Join(modelDir, descriptorFile), raw, 0o644)
}

func loadDescriptor(modelDir string) (Descriptor, error) {
	var descriptor Descriptor
	raw, err := os.ReadFile(filepath.Join(modelDir, descriptorFile))
	if err != nil {
		return descriptor, domain.WrapError(domain.ErrMissingArtifact, "read descriptor", err)
	}
	if err := json.Unmarshal(raw, &descriptor); err != nil {
		return descriptor, domain.WrapError(domain.ErrMissingArtifact, "parse descriptor", err)
	}
	return descriptor, nil
}

// saveGob persists one artifact with gob encoding, write-then-replace.
func saveGob(path string, value any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return domain.WrapError(domain.ErrMissingArtifact, "create model dir", err)
	}
	temp := path + ".tmp"
	f, err := os.Create(temp)
	if err != nil {
		return domain.WrapError(domain.ErrMissingArtifact, "create artifact", err)
	}
	if err := gob.NewEncoder(f).Encode(value); err != nil {
		f.Close()
		os.Remove(temp)
		return domain.WrapError(domain.ErrMissingArtifact, "encode artifact", err)
	}
	if err := f.Close(); err != nil {
		return domain.WrapError(domain.ErrMissingArtifact, "close artifact", err)
	}
	return os.Rename(temp, path)
}

func loadGob(path string, value any) error {
	f, err := os.Open(path)
	if err != nil {
		return domain.WrapError(domain.ErrMissingArtifact, "open artifact", err)
	}
	defer f.Close()
	if err := gob.NewDecoder(f).Decode(value); err != nil {
		return domain.WrapError(domain.ErrMissingArtifact, "decode artifact", err)
	}
	return nil
}

// ArtifactsComplete reports whether every file a strategy declares is
// present on disk.
func ArtifactsComplete(strategy TrainingStrategy) bool {
	for _, path := range strategy.ModelFiles() {
		if _, err := os.Stat(path); err != nil {
			return false
		}
	}
	return true
}
