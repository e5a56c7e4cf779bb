// Package report renders the per-cruise packaging summary: one row per
// archive with original size, compressed size and compression ratio, a totals
// row, and the checksum listing handed to the R2R repository.
package report

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Package is one produced archive as the summary presents it.
type Package struct {
	Name           string
	SourceSize     int64
	CompressedSize int64
	Digest         string
}

const rule = 70

// Render produces the full summary text for a completed packaging run. The
// same text is printed, persisted to the summary file, and emailed.
func Render(cruiseID, outputDir string, packages []Package) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", rule))
	b.WriteString("\n")
	fmt.Fprintf(&b, "R2R Package Summary - %s\n", cruiseID)
	b.WriteString(strings.Repeat("=", rule))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Output Directory: %s\n\n", outputDir)

	b.WriteString(renderTable(packages))
	b.WriteString("\n\n")

	b.WriteString("MD5 Checksums:\n")
	b.WriteString(strings.Repeat("-", rule))
	b.WriteString("\n")
	for _, pkg := range packages {
		fmt.Fprintf(&b, "%s  %s\n", pkg.Digest, pkg.Name)
	}

	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", rule))
	b.WriteString("\n")
	return b.String()
}

func renderTable(packages []Package) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Package", "Original", "Compressed", "Ratio"})

	var totalSource, totalCompressed int64
	for _, pkg := range packages {
		tw.AppendRow(table.Row{
			pkg.Name,
			FormatBytes(pkg.SourceSize),
			FormatBytes(pkg.CompressedSize),
			formatRatio(Ratio(pkg.CompressedSize, pkg.SourceSize)),
		})
		totalSource += pkg.SourceSize
		totalCompressed += pkg.CompressedSize
	}

	tw.AppendFooter(table.Row{
		"TOTAL",
		FormatBytes(totalSource),
		FormatBytes(totalCompressed),
		formatRatio(Ratio(totalCompressed, totalSource)),
	})

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft, AlignFooter: text.AlignLeft},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft, AlignFooter: text.AlignRight},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft, AlignFooter: text.AlignRight},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft, AlignFooter: text.AlignRight},
	})

	return tw.Render()
}

var byteUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FormatBytes renders a byte count scaled by 1024 with two decimal places,
// e.g. "48.83 MB". Counts beyond TB render as PB.
func FormatBytes(n int64) string {
	value := float64(n)
	for _, unit := range byteUnits {
		if value < 1024.0 {
			return fmt.Sprintf("%.2f %s", value, unit)
		}
		value /= 1024.0
	}
	return fmt.Sprintf("%.2f PB", value)
}

// Ratio returns compressed/original as a percentage, 0 when original is zero
// so empty sources never divide by zero.
func Ratio(compressed, source int64) float64 {
	if source <= 0 {
		return 0
	}
	return float64(compressed) / float64(source) * 100
}

func formatRatio(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio)
}
