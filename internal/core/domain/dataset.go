package domain

// LabelMapping assigns one supervision label (subject or type) per
// document id. It doubles as the balancing key during harvesting.
type LabelMapping map[string]string

// LabeledDocument pairs a text view with its supervision label.
type LabeledDocument struct {
	ID    string
	Text  string
	Label string
}

// DatasetSplit holds the stratified partition consumed by the
// classifier suite and the generator trainer. Training/Validation/Test
// are disjoint.
type DatasetSplit struct {
	Training   []LabeledDocument
	Validation []LabeledDocument
	Test       []LabeledDocument
}

// TrainingPair is one generator training item: the assembled prompt and
// the target JSON serialization.
type TrainingPair struct {
	ID     string `json:"id"`
	Input  string `json:"input"`
	Output string `json:"output"`
}
