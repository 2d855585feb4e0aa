// Package plaintext passes already-textual uploads through the
// extraction surface, so re-processing a cached .txt view uses the same
// code path as a source document.
package plaintext

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
)

func ExtractPlain(data io.Reader) (string, error) {
	raw, err := io.ReadAll(data)
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "read text document", err)
	}
	if !utf8.Valid(raw) {
		return "", domain.WrapError(domain.ErrFormat, "extract plain", fmt.Errorf("not valid utf-8"))
	}
	return strings.TrimSpace(string(raw)), nil
}

// ExtractTagged wraps each non-empty line as a paragraph. Text files
// carry no font information, so everything is body text.
func ExtractTagged(data io.Reader) (string, error) {
	text, err := ExtractPlain(data)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(line)
		b.WriteString("</p>")
	}
	return b.String(), nil
}
