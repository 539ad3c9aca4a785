package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttrTokens(t *testing.T) {
	tests := []struct {
		name string
		sig  StyleSignature
		want string
	}{
		{"plain", PlainSignature(), "PLAIN"},
		{"bold only", boldSig(), "B"},
		{
			"toggles and font",
			StyleSignature{Bold: true, Italic: true, SmallCaps: true, FontName: "Courier New", FontSize: 11, Color: 0xFF0000, Highlight: "yellow"},
			"B,I,SC,F:Courier New,SZ:11,C:16711680,H:yellow",
		},
		{
			"script positions",
			StyleSignature{Subscript: true, Color: -1},
			"SUB",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, attrTokens(tt.sig))
		})
	}
}

func TestEncodeBlockFine(t *testing.T) {
	c := NewCodec()
	units := []Unit{
		{Text: "plain ", Style: PlainSignature()},
		{Text: "bold", Style: boldSig()},
	}

	enc := c.EncodeBlock(0, units, FidelityFine, BlockAttributes{})
	assert.Equal(t, "plain bold", enc.OriginalText)
	assert.Equal(t, "««U1:PLAIN»»plain ««/U1»»««U2:B»»bold««/U2»»", enc.Marked)
	assert.Equal(t, 1, enc.Units[0].ID)
	assert.Equal(t, 2, enc.Units[1].ID)
}

func TestEncodeBlockIDsMonotonicAcrossBlocks(t *testing.T) {
	c := NewCodec()
	a := c.EncodeBlock(0, []Unit{{Text: "one", Style: PlainSignature()}}, FidelityFine, BlockAttributes{})
	b := c.EncodeBlock(1, []Unit{{Text: "two", Style: PlainSignature()}}, FidelityFine, BlockAttributes{})
	assert.Equal(t, 1, a.Units[0].ID)
	assert.Equal(t, 2, b.Units[0].ID)
}

func TestEncodeBlockCoarse(t *testing.T) {
	c := NewCodec()
	enc := c.EncodeBlock(0, []Unit{{Text: "hello ", Style: PlainSignature()}, {Text: "world", Style: boldSig()}}, FidelityCoarse, BlockAttributes{})
	assert.Equal(t, "hello world", enc.Marked, "coarse mode sends bare text")
}

func TestDecodeBlockRoundTrip(t *testing.T) {
	c := NewCodec()
	enc := c.EncodeBlock(0, []Unit{
		{Text: "plain ", Style: PlainSignature()},
		{Text: "bold", Style: boldSig()},
	}, FidelityFine, BlockAttributes{})

	res := c.DecodeBlock(enc, enc.Marked)
	require.Len(t, res.Units, 2)
	assert.Zero(t, res.Degraded)
	assert.Equal(t, "plain ", res.Units[0].Unit.Text)
	assert.Equal(t, "bold", res.Units[1].Unit.Text)
	assert.Equal(t, boldSig(), res.Units[1].Unit.Style, "style comes from the stored signature")
}

func TestDecodeBlockIgnoresResponseAttrs(t *testing.T) {
	c := NewCodec()
	enc := c.EncodeBlock(0, []Unit{{Text: "bold", Style: boldSig()}}, FidelityFine, BlockAttributes{})

	// The transformer garbled the attribute list but kept the id pair.
	res := c.DecodeBlock(enc, "««U1:GARBAGE,X»»fett««/U1»»")
	require.Len(t, res.Units, 1)
	assert.Equal(t, "fett", res.Units[0].Unit.Text)
	assert.Equal(t, boldSig(), res.Units[0].Unit.Style)
	assert.Zero(t, res.Degraded)
}

func TestDecodeBlockLooseCloseTag(t *testing.T) {
	c := NewCodec()
	enc := c.EncodeBlock(0, []Unit{{Text: "bold", Style: boldSig()}}, FidelityFine, BlockAttributes{})

	// Close tag lost its id; the loose rung still recovers the text.
	res := c.DecodeBlock(enc, "««U1:B»»fett««/U»»")
	require.Len(t, res.Units, 1)
	assert.Equal(t, "fett", res.Units[0].Unit.Text)
	assert.Equal(t, 1, res.Repaired)
	assert.Zero(t, res.Degraded)
}

func TestDecodeBlockCountsExtraneousText(t *testing.T) {
	c := NewCodec()
	enc := c.EncodeBlock(0, []Unit{{Text: "hello", Style: PlainSignature()}}, FidelityFine, BlockAttributes{})

	res := c.DecodeBlock(enc, "Sure, here you go: ««U1:PLAIN»»hallo««/U1»» hope that helps!")
	require.Len(t, res.Units, 1)
	assert.Equal(t, "hallo", res.Units[0].Unit.Text)
	assert.Positive(t, res.Extraneous, "chatter outside the marker pair is counted")

	clean := c.DecodeBlock(enc, enc.Marked)
	assert.Zero(t, clean.Extraneous)
}

func TestDecodeBlockMissingCloseTag(t *testing.T) {
	c := NewCodec()
	enc := c.EncodeBlock(0, []Unit{
		{Text: "first", Style: boldSig()},
		{Text: "second", Style: PlainSignature()},
	}, FidelityFine, BlockAttributes{})

	// The response was truncated before the last close tag; the final unit's
	// text runs to the end of the response.
	res := c.DecodeBlock(enc, "««U1:B»»erste««/U1»»««U2:PLAIN»»zweite")
	require.Len(t, res.Units, 2)
	assert.Equal(t, "erste", res.Units[0].Unit.Text)
	assert.Equal(t, "zweite", res.Units[1].Unit.Text)
	assert.True(t, res.Units[1].Repaired)
	assert.Zero(t, res.Degraded)
}

func TestDecodeBlockSingleUnitMarkerless(t *testing.T) {
	c := NewCodec()
	enc := c.EncodeBlock(0, []Unit{{Text: "hello", Style: PlainSignature()}}, FidelityFine, BlockAttributes{})

	res := c.DecodeBlock(enc, "hallo")
	require.Len(t, res.Units, 1)
	assert.Equal(t, "hallo", res.Units[0].Unit.Text)
	assert.Equal(t, 1, res.Repaired)
}

func TestDecodeBlockDegradesToOriginal(t *testing.T) {
	c := NewCodec()
	enc := c.EncodeBlock(0, []Unit{
		{Text: "kept", Style: PlainSignature()},
		{Text: "lost", Style: boldSig()},
	}, FidelityFine, BlockAttributes{})

	res := c.DecodeBlock(enc, "««U1:PLAIN»»behalten««/U1»»")
	require.Len(t, res.Units, 2)
	assert.Equal(t, "behalten", res.Units[0].Unit.Text)
	assert.Equal(t, "lost", res.Units[1].Unit.Text, "missing unit keeps original text")
	assert.True(t, res.Units[1].Degraded)
	assert.Equal(t, 1, res.Degraded)
}

func TestDecodeBlockStripsNestedMarkers(t *testing.T) {
	c := NewCodec()
	enc := c.EncodeBlock(0, []Unit{{Text: "outer", Style: PlainSignature()}}, FidelityFine, BlockAttributes{})

	res := c.DecodeBlock(enc, "««U1:PLAIN»»außen ««U9:B»»innen««/U1»»")
	assert.Equal(t, "außen innen", res.Units[0].Unit.Text)
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"think block removed", "<think>reasoning here</think>result", "result"},
		{"frame delimiters removed", "<<<SEG_0_START>>>text<<<SEG_0_END>>>", "text"},
		{"truncated frame removed", "text <<<SEG_1_STA", "text"},
		{"unit markers survive", "««U1:B»»x««/U1»»", "««U1:B»»x««/U1»»"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestVerifyDelimiterSafety(t *testing.T) {
	clean := NewMemoryDocument()
	clean.AddBlock(BlockAttributes{}).AppendRun("ordinary text", PlainSignature())
	assert.NoError(t, VerifyDelimiterSafety(clean))

	dirty := NewMemoryDocument()
	dirty.AddBlock(BlockAttributes{}).AppendRun("quoted «« text", PlainSignature())
	err := VerifyDelimiterSafety(dirty)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDelimiterCollision)
}

func TestRepairBatch(t *testing.T) {
	c := NewCodec()
	encA := c.EncodeBlock(0, []Unit{{Text: "alpha", Style: PlainSignature()}}, FidelityFine, BlockAttributes{})
	encB := c.EncodeBlock(1, []Unit{{Text: "beta", Style: boldSig()}}, FidelityFine, BlockAttributes{})

	t.Run("complete results untouched", func(t *testing.T) {
		result := &TransformResult{Results: []string{"one", "two"}, Raw: "junk"}
		out := RepairBatch([]BlockEncoding{encA, encB}, result)
		assert.Equal(t, []string{"one", "two"}, out)
	})

	t.Run("missing slot filled by marker count", func(t *testing.T) {
		raw := "chatty preamble\n\n««U2:B»»zwei««/U2»»\n\nmore chatter"
		result := &TransformResult{Results: []string{"««U1:PLAIN»»eins««/U1»»", ""}, Raw: raw}
		out := RepairBatch([]BlockEncoding{encA, encB}, result)
		assert.Equal(t, "««U2:B»»zwei««/U2»»", out[1])
	})

	t.Run("candidates are not consumed twice", func(t *testing.T) {
		raw := "««U1:PLAIN»»eins««/U1»»\n\n««U2:B»»zwei««/U2»»"
		result := &TransformResult{Results: []string{"", ""}, Raw: raw}
		out := RepairBatch([]BlockEncoding{encA, encB}, result)
		assert.Equal(t, "««U1:PLAIN»»eins««/U1»»", out[0])
		assert.Equal(t, "««U2:B»»zwei««/U2»»", out[1])
		assert.NotEqual(t, out[0], out[1])
	})

	t.Run("earlier candidate wins ties", func(t *testing.T) {
		raw := "««U7:B»»first««/U7»»\n\n««U8:B»»second««/U8»»"
		result := &TransformResult{Results: []string{""}, Raw: raw}
		out := RepairBatch([]BlockEncoding{encA}, result)
		assert.Equal(t, "««U7:B»»first««/U7»»", out[0])
	})

	t.Run("coarse slot prefers the closest-shaped candidate", func(t *testing.T) {
		cc := NewCodec()
		enc := cc.EncodeBlock(0, []Unit{{Text: "the quick brown fox", Style: PlainSignature()}}, FidelityCoarse, BlockAttributes{})
		raw := "a completely unrelated and much longer piece of chatter\n\nder schnelle braune Fuchs"
		result := &TransformResult{Results: []string{""}, Raw: raw}
		out := RepairBatch([]BlockEncoding{enc}, result)
		assert.Equal(t, "der schnelle braune Fuchs", out[0])
	})

	t.Run("no candidate leaves slot empty", func(t *testing.T) {
		result := &TransformResult{Results: []string{""}, Raw: ""}
		out := RepairBatch([]BlockEncoding{encA}, result)
		assert.Empty(t, out[0])
	})
}

func TestStripMarkers(t *testing.T) {
	in := "a ««U1:B»»b««/U1»» c"
	assert.Equal(t, "a b c", StripMarkers(in))
}

func TestEncodeDecodeManyUnits(t *testing.T) {
	c := NewCodec()
	var units []Unit
	for i := 0; i < 20; i++ {
		sig := PlainSignature()
		if i%2 == 1 {
			sig.Italic = true
		}
		units = append(units, Unit{Text: fmt.Sprintf("part%d ", i), Style: sig})
	}
	enc := c.EncodeBlock(0, units, FidelityFine, BlockAttributes{})
	res := c.DecodeBlock(enc, enc.Marked)
	assert.Zero(t, res.Degraded)
	for i, du := range res.Units {
		assert.Equal(t, units[i].Text, du.Unit.Text)
	}
}
