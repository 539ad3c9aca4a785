package cli

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/formatkeep/formatkeep/pkg/pipeline"
)

// renderSummary formats the report as a terminal table.
func renderSummary(report *pipeline.Report) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle("Translation Summary")

	t.AppendRow(table.Row{"Request", report.RequestID})
	t.AppendRow(table.Row{"Duration", report.Duration.Round(10 * time.Millisecond)})
	t.AppendSeparator()
	t.AppendRow(table.Row{"Blocks total", report.TotalBlocks})
	t.AppendRow(table.Row{"Translated", report.TranslatedBlocks})
	t.AppendRow(table.Row{"Skipped", report.SkippedBlocks})
	t.AppendRow(table.Row{"Quarantined", report.QuarantinedBlocks})
	t.AppendSeparator()
	t.AppendRow(table.Row{"Batches", fmt.Sprintf("%d (%d fine, %d coarse)",
		report.Batches, report.FineBatches, report.CoarseBatches)})
	t.AppendRow(table.Row{"Retries", report.Retries})
	t.AppendRow(table.Row{"Degraded units", report.DegradedUnits})
	t.AppendRow(table.Row{"Repaired units", report.RepairedUnits})
	t.AppendRow(table.Row{"Tokens in/out", fmt.Sprintf("%d / %d",
		report.InputTokens, report.OutputTokens)})

	return t.Render()
}
