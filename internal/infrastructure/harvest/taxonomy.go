package harvest

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
)

//go:embed taxonomy.yaml
var defaultTaxonomy []byte

// Taxonomy maps the repository's raw subject labels onto the FORD
// science categories the subject classifier is trained on.
type Taxonomy struct {
	mapping map[string]string
}

// LoadTaxonomy reads a mapping file, or the embedded default when path
// is empty.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	raw := defaultTaxonomy
	if path != "" {
		var err error
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, domain.WrapError(domain.ErrValidation, "read taxonomy", err)
		}
	}
	mapping := map[string]string{}
	if err := yaml.Unmarshal(raw, &mapping); err != nil {
		return nil, domain.WrapError(domain.ErrValidation, "parse taxonomy", err)
	}
	if len(mapping) == 0 {
		return nil, domain.WrapError(domain.ErrValidation, "parse taxonomy", fmt.Errorf("empty mapping"))
	}
	return &Taxonomy{mapping: mapping}, nil
}

// Map resolves one raw subject cell. Multi-valued cells keep the first
// entry; qualifiers after :: are discarded. Unmapped labels yield "".
func (t *Taxonomy) Map(rawSubject string) string {
	key := rawSubject
	if i := strings.Index(key, "||"); i >= 0 {
		key = key[:i]
	}
	if i := strings.Index(key, "::"); i >= 0 {
		key = key[:i]
	}
	return t.mapping[strings.TrimSpace(key)]
}

// Labels returns the distinct FORD categories.
func (t *Taxonomy) Labels() []string {
	seen := map[string]bool{}
	var labels []string
	for _, v := range t.mapping {
		if !seen[v] {
			seen[v] = true
			labels = append(labels, v)
		}
	}
	return labels
}
