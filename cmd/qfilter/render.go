package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/theapemachine/qfilter"
	"gonum.org/v1/gonum/mat"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	gridStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			MarginRight(2)
)

func renderResult(res *qfilter.Result) string {
	panels := []string{grid("Original", "", res.Original)}

	if rec := res.Reconstruction; rec != nil {
		panels = append(panels,
			grid("Filtered (ancilla=1)", fmt.Sprintf("%d shots", rec.FilteredShots), rec.Filtered),
			grid("Unfiltered (ancilla=0)", fmt.Sprintf("%d shots", rec.UnfilteredShots), rec.Unfiltered),
		)
	}
	if res.Image != nil {
		panels = append(panels, grid("Negative", fmt.Sprintf("%d shots", res.Metrics.Shots), res.Image))
	}

	header := titleStyle.Render(fmt.Sprintf(
		"%s %s on %s: depth %d, size %d",
		res.Experiment.Transform, res.Experiment.FilterType,
		res.Metrics.Backend, res.Metrics.Depth, res.Metrics.Size,
	))

	return lipgloss.JoinVertical(lipgloss.Left, header, lipgloss.JoinHorizontal(lipgloss.Top, panels...))
}

func grid(title, caption string, m *mat.Dense) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")

	rows, cols := m.Dims()
	for r := 0; r < rows; r++ {
		cells := make([]string, cols)
		for c := 0; c < cols; c++ {
			cells[c] = fmt.Sprintf("%7.2f", m.At(r, c))
		}
		b.WriteString(strings.Join(cells, " "))
		if r < rows-1 {
			b.WriteString("\n")
		}
	}

	if caption != "" {
		b.WriteString("\n")
		b.WriteString(caption)
	}
	return gridStyle.Render(b.String())
}
