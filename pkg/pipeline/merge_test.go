package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boldSig() StyleSignature {
	s := PlainSignature()
	s.Bold = true
	return s
}

func italicSig() StyleSignature {
	s := PlainSignature()
	s.Italic = true
	return s
}

func TestMergeBlock(t *testing.T) {
	tests := []struct {
		name  string
		runs  []struct {
			text string
			sig  StyleSignature
		}
		wantTexts []string
	}{
		{
			name: "adjacent same style runs merge",
			runs: []struct {
				text string
				sig  StyleSignature
			}{
				{"Hello ", PlainSignature()},
				{"wor", PlainSignature()},
				{"ld", PlainSignature()},
			},
			wantTexts: []string{"Hello world"},
		},
		{
			name: "style change starts new unit",
			runs: []struct {
				text string
				sig  StyleSignature
			}{
				{"plain ", PlainSignature()},
				{"bold", boldSig()},
			},
			wantTexts: []string{"plain ", "bold"},
		},
		{
			name: "transparent run bridges matching signatures",
			runs: []struct {
				text string
				sig  StyleSignature
			}{
				{"first", boldSig()},
				{" — ", PlainSignature()},
				{"second", boldSig()},
			},
			wantTexts: []string{"first — second"},
		},
		{
			name: "transparent run between differing signatures opens a boundary",
			runs: []struct {
				text string
				sig  StyleSignature
			}{
				{"first", boldSig()},
				{" — ", PlainSignature()},
				{"second", italicSig()},
			},
			wantTexts: []string{"first", " — ", "second"},
		},
		{
			name: "trailing transparent run attaches to the last unit",
			runs: []struct {
				text string
				sig  StyleSignature
			}{
				{"content", boldSig()},
				{"  ", PlainSignature()},
			},
			wantTexts: []string{"content  "},
		},
		{
			name: "trailing transparent runs of differing signatures all attach",
			runs: []struct {
				text string
				sig  StyleSignature
			}{
				{"content", boldSig()},
				{" ", PlainSignature()},
				{"—", italicSig()},
			},
			wantTexts: []string{"content —"},
		},
		{
			name: "only transparent runs keep their own signatures",
			runs: []struct {
				text string
				sig  StyleSignature
			}{
				{"---", boldSig()},
				{"***", italicSig()},
			},
			wantTexts: []string{"---", "***"},
		},
	}

	m := NewMerger()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block := NewMemoryBlock(BlockAttributes{})
			var original strings.Builder
			for _, r := range tt.runs {
				block.AppendRun(r.text, r.sig)
				original.WriteString(r.text)
			}

			units := m.MergeBlock(block)
			require.Len(t, units, len(tt.wantTexts))

			var merged strings.Builder
			for i, u := range units {
				assert.Equal(t, tt.wantTexts[i], u.Text)
				merged.WriteString(u.Text)
			}
			assert.Equal(t, original.String(), merged.String(), "merge must preserve block text")
		})
	}
}

func TestMergeBlockEmptyBlock(t *testing.T) {
	m := NewMerger()
	assert.Nil(t, m.MergeBlock(NewMemoryBlock(BlockAttributes{})))
}

func TestHasCaseBoundary(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"mixed and upper words", "WARNING do not open", true},
		{"all lowercase", "nothing to see here", false},
		{"all uppercase", "DANGER HIGH VOLTAGE", false},
		{"single word never splits", "WARNING", false},
		{"standalone I is not all caps", "I went home", false},
		{"lone initial is not all caps", "J. Smith arrived", false},
		{"acronym inside sentence", "the NASA program", true},
		{"digits only", "12345 67890", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasCaseBoundary(tt.text))
		})
	}
}

func TestSplitByCase(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "upper prefix splits off",
			text: "NOTE this matters",
			want: []string{"NOTE ", "this matters"},
		},
		{
			name: "no boundary stays whole",
			text: "just a sentence",
			want: []string{"just a sentence"},
		},
		{
			name: "upper run in the middle",
			text: "see the FINAL ANSWER below",
			want: []string{"see the ", "FINAL ANSWER ", "below"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitByCase(tt.text)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.text, strings.Join(got, ""), "split must preserve text")
		})
	}
}

func TestSplitUnitsKeepsSignatures(t *testing.T) {
	m := NewMerger()
	units := []Unit{{Text: "read the MANUAL first", Style: boldSig()}}

	out := m.SplitUnits(units)
	require.Len(t, out, 3)
	for _, u := range out {
		assert.Equal(t, boldSig(), u.Style, "segments inherit the signature unchanged")
	}

	var joined strings.Builder
	for _, u := range out {
		joined.WriteString(u.Text)
	}
	assert.Equal(t, units[0].Text, joined.String())
}

func TestMeaningfulText(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Hello world", true},
		{"", false},
		{"   ", false},
		{"----", false},
		{"***", false},
		{"B", false},
		{"42", true},
		{"§ 12 Abs. 3", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MeaningfulText(tt.text), "text: %q", tt.text)
	}
}
