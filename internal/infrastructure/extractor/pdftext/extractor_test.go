package pdftext

import (
	"strings"
	"testing"

	"github.com/ledongthuc/pdf"
)

func pageOf(num int, words ...word) pageContent {
	return pageContent{num: num, words: words}
}

func TestFontSizeThresholds(t *testing.T) {
	cases := []struct {
		name  string
		sizes []int
		want  FontSizeThresholds
	}{
		{
			name:  "typical document",
			sizes: []int{8, 9, 10, 11, 12, 14, 16, 20},
			want:  FontSizeThresholds{H1: 20, H2: 16, P: 8},
		},
		{
			name:  "single size",
			sizes: []int{12},
			want:  FontSizeThresholds{H1: 12, H2: 12, P: 12},
		},
		{
			name: "no usable sizes",
			want: FontSizeThresholds{H1: 16, H2: 14, P: 9},
		},
		{
			// Sizes at or above the decoration cutoff are ignored; a
			// scanned document with nothing else falls back too.
			name:  "only decoration",
			sizes: []int{64, 72},
			want:  FontSizeThresholds{H1: 16, H2: 14, P: 9},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var words []word
			for _, s := range tc.sizes {
				words = append(words, word{text: "x", size: s})
			}
			got := fontSizeThresholds([]pageContent{pageOf(1, words...)})
			if got != tc.want {
				t.Fatalf("thresholds = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestTagSelection(t *testing.T) {
	thresholds := FontSizeThresholds{H1: 16, H2: 14, P: 9}
	for size, want := range map[int]string{
		20: "h1",
		16: "h1",
		15: "h2",
		14: "h2",
		13: "p",
		9:  "p",
		6:  "p",
	} {
		if got := thresholds.Tag(size); got != want {
			t.Errorf("Tag(%d) = %q, want %q", size, got, want)
		}
	}
}

func TestEmitTaggedGroupsConsecutiveRuns(t *testing.T) {
	thresholds := FontSizeThresholds{H1: 16, H2: 14, P: 9}
	pages := []pageContent{pageOf(1,
		word{text: "Genotoxicidad", size: 16},
		word{text: "en", size: 16},
		word{text: "anfibios", size: 16},
		word{text: "Resumen", size: 14},
		word{text: "El", size: 10},
		word{text: "estudio", size: 10},
	)}

	got := emitTagged(pages, thresholds, MaxTaggedWords, nil)
	want := "<h1>Genotoxicidad en anfibios</h1><h2>Resumen</h2><p>El estudio</p>"
	if got != want {
		t.Fatalf("tagged = %q, want %q", got, want)
	}
}

func TestEmitTaggedClosesRunAtWordCap(t *testing.T) {
	thresholds := FontSizeThresholds{H1: 16, H2: 14, P: 9}
	pages := []pageContent{pageOf(1,
		word{text: "Titulo", size: 16},
		word{text: "uno", size: 10},
		word{text: "dos", size: 10},
		word{text: "tres", size: 10},
		word{text: "cuatro", size: 10},
	)}

	got := emitTagged(pages, thresholds, 3, nil)
	want := "<h1>Titulo</h1><p>uno dos</p>"
	if got != want {
		t.Fatalf("capped tagged = %q, want %q", got, want)
	}
	if strings.Count(got, "<p>") != strings.Count(got, "</p>") {
		t.Fatalf("unbalanced paragraph run in %q", got)
	}
}

func TestEmitTaggedInterleavesImageText(t *testing.T) {
	thresholds := FontSizeThresholds{H1: 16, H2: 14, P: 9}
	pages := []pageContent{
		pageOf(1, word{text: "cuerpo", size: 10}),
		pageOf(2, word{text: "sigue", size: 10}),
	}
	imageBlocks := map[int][]string{1: {"texto de figura"}}

	got := emitTagged(pages, thresholds, MaxTaggedWords, imageBlocks)
	want := "<p>cuerpo</p><img>texto de figura</img><p>sigue</p>"
	if got != want {
		t.Fatalf("tagged = %q, want %q", got, want)
	}
}

func TestAssembleWords(t *testing.T) {
	texts := []pdf.Text{
		{S: "Ti", X: 10, W: 8, Y: 700, FontSize: 15.6},
		{S: "tulo", X: 18, W: 16, Y: 700, FontSize: 16.2},
		{S: " ", X: 34, W: 4, Y: 700, FontSize: 16},
		{S: "cuerpo", X: 38, W: 24, Y: 680, FontSize: 10.1},
		// Wide horizontal gap starts a new word even on the same line.
		{S: "lejos", X: 200, W: 20, Y: 680, FontSize: 10.1},
	}

	got := assembleWords(texts)
	want := []word{
		{text: "Titulo", size: 16},
		{text: "cuerpo", size: 10},
		{text: "lejos", size: 10},
	}
	if len(got) != len(want) {
		t.Fatalf("words = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("word %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
