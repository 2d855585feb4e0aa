package domain

// ExtractOptions controls tagged-text extraction.
type ExtractOptions struct {
	Normalize bool
	OCR       bool
}

// ExtractRequest is the input of the public orchestration operation.
// Data holds the whole file; fresh readers are derived from it for each
// extraction pass. Type, when set by the caller, skips type
// classification.
type ExtractRequest struct {
	Filename    string
	Data        []byte
	Type        string
	Normalize   bool
	OCR         bool
	DeepAnalyze bool
}
