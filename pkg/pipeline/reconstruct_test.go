package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodedUnits(units ...Unit) DecodeResult {
	var res DecodeResult
	for _, u := range units {
		res.Units = append(res.Units, DecodedUnit{Unit: u})
	}
	return res
}

func TestApplyFineReusesSlots(t *testing.T) {
	doc := NewMemoryDocument()
	block := doc.AddBlock(BlockAttributes{})
	block.AppendRun("old one", PlainSignature())
	block.AppendRun("old two", boldSig())

	r := NewReconstructor(doc)
	r.ApplyFine(block, decodedUnits(
		Unit{Text: "neu eins", Style: PlainSignature()},
		Unit{Text: "neu zwei", Style: boldSig()},
	))

	runs := block.Runs()
	require.Len(t, runs, 2)
	assert.Equal(t, "neu eins", runs[0].Text())
	assert.Equal(t, "neu zwei", runs[1].Text())
	assert.Equal(t, boldSig(), runs[1].Style())
}

func TestApplyFineAppendsAndTruncates(t *testing.T) {
	doc := NewMemoryDocument()

	t.Run("more units than slots appends", func(t *testing.T) {
		block := doc.AddBlock(BlockAttributes{})
		block.AppendRun("only", PlainSignature())

		r := NewReconstructor(doc)
		r.ApplyFine(block, decodedUnits(
			Unit{Text: "a", Style: PlainSignature()},
			Unit{Text: "b", Style: boldSig()},
			Unit{Text: "c", Style: PlainSignature()},
		))
		assert.Len(t, block.Runs(), 3)
		assert.Equal(t, "abc", block.Text())
	})

	t.Run("fewer units than slots truncates", func(t *testing.T) {
		block := doc.AddBlock(BlockAttributes{})
		block.AppendRun("one", PlainSignature())
		block.AppendRun("two", boldSig())
		block.AppendRun("three", italicSig())

		r := NewReconstructor(doc)
		r.ApplyFine(block, decodedUnits(Unit{Text: "alles", Style: PlainSignature()}))
		require.Len(t, block.Runs(), 1)
		assert.Equal(t, "alles", block.Text())
	})
}

func TestApplyFineResetsStaleToggles(t *testing.T) {
	doc := NewMemoryDocument()
	block := doc.AddBlock(BlockAttributes{})
	block.AppendRun("was bold", boldSig())

	r := NewReconstructor(doc)
	r.ApplyFine(block, decodedUnits(Unit{Text: "plain now", Style: PlainSignature()}))

	assert.False(t, block.Runs()[0].Style().Bold, "reused slot must not keep its old toggle")
}

func TestNormalizeUnknownStyleFallsBack(t *testing.T) {
	doc := NewMemoryDocument()
	doc.RegisterStyle("BodyText")
	block := doc.AddBlock(BlockAttributes{StyleName: "GhostStyle"})
	block.AppendRun("text", PlainSignature())

	r := NewReconstructor(doc)
	r.ApplyFine(block, decodedUnits(Unit{Text: "text", Style: PlainSignature()}))

	assert.Empty(t, block.Attributes().StyleName, "unknown style falls back to default")
}

func TestNormalizeKeepsKnownStyle(t *testing.T) {
	doc := NewMemoryDocument()
	doc.RegisterStyle("BodyText")
	block := doc.AddBlock(BlockAttributes{StyleName: "BodyText"})
	block.AppendRun("text", PlainSignature())

	r := NewReconstructor(doc)
	r.ApplyFine(block, decodedUnits(Unit{Text: "text", Style: PlainSignature()}))

	assert.Equal(t, "BodyText", block.Attributes().StyleName)
}

func TestNormalizeForcesHeadingBold(t *testing.T) {
	doc := NewMemoryDocument()
	doc.RegisterStyle("Heading 1")
	block := doc.AddBlock(BlockAttributes{StyleName: "Heading 1"})
	block.AppendRun("Chapter One", PlainSignature())

	r := NewReconstructor(doc)
	r.ApplyFine(block, decodedUnits(Unit{Text: "Kapitel Eins", Style: PlainSignature()}))

	assert.True(t, block.Runs()[0].Style().Bold, "heading runs are bold after reapplication")
}

func TestApplyCoarse(t *testing.T) {
	doc := NewMemoryDocument()
	r := NewReconstructor(doc)

	t.Run("single run takes the whole text", func(t *testing.T) {
		block := doc.AddBlock(BlockAttributes{})
		block.AppendRun("original", boldSig())
		r.ApplyCoarse(block, "übersetzt")
		require.Len(t, block.Runs(), 1)
		assert.Equal(t, "übersetzt", block.Text())
		assert.Equal(t, boldSig(), block.Runs()[0].Style(), "run style survives")
	})

	t.Run("two runs split proportionally at a word boundary", func(t *testing.T) {
		block := doc.AddBlock(BlockAttributes{})
		block.AppendRun("short ", boldSig())
		block.AppendRun("and the much longer remainder", PlainSignature())
		r.ApplyCoarse(block, "kurz und der viel längere Rest")

		runs := block.Runs()
		require.Len(t, runs, 2)
		assert.Equal(t, "kurz und der viel längere Rest", block.Text())
		assert.NotEmpty(t, runs[0].Text())
		assert.NotEmpty(t, runs[1].Text())
		assert.Less(t, len(runs[0].Text()), len(runs[1].Text()))
	})

	t.Run("case boundary maps segments onto run styles", func(t *testing.T) {
		block := doc.AddBlock(BlockAttributes{})
		block.AppendRun("WARNING ", boldSig())
		block.AppendRun("do not open", PlainSignature())
		r.ApplyCoarse(block, "WARNUNG nicht öffnen")

		runs := block.Runs()
		require.Len(t, runs, 2)
		assert.Equal(t, "WARNUNG ", runs[0].Text())
		assert.Equal(t, "nicht öffnen", runs[1].Text())
	})

	t.Run("many runs collapse into the first", func(t *testing.T) {
		block := doc.AddBlock(BlockAttributes{})
		for i := 0; i < 6; i++ {
			block.AppendRun("x", PlainSignature())
		}
		r.ApplyCoarse(block, "alles in einem")
		require.Len(t, block.Runs(), 1)
		assert.Equal(t, "alles in einem", block.Text())
	})

	t.Run("empty block grows a run", func(t *testing.T) {
		block := doc.AddBlock(BlockAttributes{})
		r.ApplyCoarse(block, "neu")
		assert.Equal(t, "neu", block.Text())
	})
}

func TestApplyCoarseWordDistribution(t *testing.T) {
	doc := NewMemoryDocument()
	r := NewReconstructor(doc)

	block := doc.AddBlock(BlockAttributes{})
	block.AppendRun("one two three", PlainSignature())
	block.AppendRun(" four", boldSig())
	block.AppendRun(" five six", italicSig())
	r.ApplyCoarse(block, "eins zwei drei vier fünf sechs")

	runs := block.Runs()
	require.Len(t, runs, 3)
	for _, run := range runs {
		assert.NotEmpty(t, run.Text(), "every run keeps some words")
	}
	assert.Equal(t, "eins zwei drei vier fünf sechs", block.Text())
}

func TestQuarantineWrapsOriginal(t *testing.T) {
	doc := NewMemoryDocument()
	block := doc.AddBlock(BlockAttributes{})
	block.AppendRun("keep ", PlainSignature())
	block.AppendRun("this", boldSig())

	r := NewReconstructor(doc)
	r.Quarantine(block, "keep this")

	require.Len(t, block.Runs(), 1)
	assert.Equal(t, "<untranslated>keep this</untranslated>", block.Text())
}
