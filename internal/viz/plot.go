package viz

import (
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"
)

var seriesColors = []asciigraph.AnsiColor{
	asciigraph.Red, asciigraph.DodgerBlue, asciigraph.Green, asciigraph.Gold,
	asciigraph.Violet, asciigraph.Cyan,
}

// PlotTemperatures draws one curve per facet series on a shared axis and
// appends a legend.
func PlotTemperatures(series [][]float64, labels []string, width, height int) string {
	if len(series) == 0 {
		return ""
	}
	colors := make([]asciigraph.AnsiColor, len(series))
	for i := range colors {
		colors[i] = seriesColors[i%len(seriesColors)]
	}
	graph := asciigraph.PlotMany(series,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Precision(1),
		asciigraph.SeriesColors(colors...),
		asciigraph.Caption("surface temperature (K)"),
	)

	var legend []string
	for i, l := range labels {
		legend = append(legend, fmt.Sprintf("%s%s%s", colors[i%len(colors)], l, asciigraph.Default))
	}
	return graph + "\n" + strings.Join(legend, "  ")
}

// PlotSpectrum draws a power spectrum, skipping the zero-frequency bin.
func PlotSpectrum(ps []float64, width, height int, caption string) string {
	if len(ps) < 2 {
		return ""
	}
	return asciigraph.Plot(ps[1:],
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}
