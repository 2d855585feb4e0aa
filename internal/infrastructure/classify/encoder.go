package classify

import "sort"

// LabelEncoder maps class names to dense integer ids and back. Classes
// sort alphabetically so the encoding is stable across runs.
type LabelEncoder struct {
	Classes []string
	index   map[string]int
}

func FitLabelEncoder(labels []string) *LabelEncoder {
	seen := make(map[string]struct{})
	for _, label := range labels {
		seen[label] = struct{}{}
	}
	classes := make([]string, 0, len(seen))
	for label := range seen {
		classes = append(classes, label)
	}
	sort.Strings(classes)

	encoder := &LabelEncoder{Classes: classes}
	encoder.buildIndex()
	return encoder
}

func (e *LabelEncoder) buildIndex() {
	e.index = make(map[string]int, len(e.Classes))
	for i, class := range e.Classes {
		e.index[class] = i
	}
}

// Encode maps labels to class ids. Unknown labels map to -1.
func (e *LabelEncoder) Encode(labels []string) []int {
	if e.index == nil {
		e.buildIndex()
	}
	encoded := make([]int, len(labels))
	for i, label := range labels {
		if id, ok := e.index[label]; ok {
			encoded[i] = id
		} else {
			encoded[i] = -1
		}
	}
	return encoded
}

// Decode maps class ids back to labels. Out-of-range ids decode to "".
func (e *LabelEncoder) Decode(ids []int) []string {
	labels := make([]string, len(ids))
	for i, id := range ids {
		if id >= 0 && id < len(e.Classes) {
			labels[i] = e.Classes[id]
		}
	}
	return labels
}

func (e *LabelEncoder) NumClasses() int { return len(e.Classes) }
