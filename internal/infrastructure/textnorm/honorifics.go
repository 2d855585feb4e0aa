package textnorm

import (
	"regexp"
	"strings"
)

// honorifics are matched case-insensitively, with optional
// parenthesization, at any word boundary in a name field.
var honorifics = buildHonorificPattern([]string{
	`dr\.?`, `dra\.?`, `lic\.?`, `ing\.?`, `mg\.?`, `phd\.?`,
	`prof\.?`, `sr\.?`, `mr\.?`, `dir\.?`, `codir\.?`,
})

func buildHonorificPattern(titles []string) *regexp.Regexp {
	alternatives := strings.Join(titles, "|")
	return regexp.MustCompile(`(?i)\(?\b(?:` + alternatives + `)\)?(?:\s+|$)`)
}

// StripHonorifics removes professional titles from a person name.
// Idempotent: a name with no titles passes through unchanged.
func StripHonorifics(name string) string {
	cleaned := honorifics.ReplaceAllString(name, "")
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(cleaned, " "))
}

// StripHonorificsList maps StripHonorifics over a list, dropping
// entries that become empty.
func StripHonorificsList(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if cleaned := StripHonorifics(n); cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}
