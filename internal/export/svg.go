// Package export renders saved temperature histories as standalone SVG.
package export

import (
	"fmt"
	"html"
	"strings"

	"gonum.org/v1/gonum/floats"
)

var palette = []string{"#ff5555", "#55aaff", "#55ff88", "#ffcc33", "#cc77ff", "#33dddd"}

// CurvesSVG draws each series against times on shared axes, with a legend
// and the temperature range in the corner. Series shorter than times are
// drawn as far as they go.
func CurvesSVG(times []float64, series [][]float64, labels []string, width, height int) string {
	if len(times) < 2 || len(series) == 0 {
		return ""
	}

	minX, maxX := times[0], times[len(times)-1]
	minY, maxY := floats.Min(series[0]), floats.Max(series[0])
	for _, s := range series[1:] {
		minY = min(minY, floats.Min(s))
		maxY = max(maxY, floats.Max(s))
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	lo, hi := minY, maxY
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeY = maxY - minY

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height))

	for k, s := range series {
		color := palette[k%len(palette)]
		sb.WriteString(fmt.Sprintf(`<path fill="none" stroke="%s" stroke-width="1.5" d="M`, color))
		n := min(len(s), len(times))
		for i := 0; i < n; i++ {
			x := (times[i] - minX) / rangeX * float64(width)
			y := float64(height) - (s[i]-minY)/rangeY*float64(height)
			if i == 0 {
				sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
			} else {
				sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
			}
		}
		sb.WriteString("\"/>\n")

		if k < len(labels) {
			sb.WriteString(fmt.Sprintf(`<text x="8" y="%d" fill="%s" font-family="monospace" font-size="12">%s</text>
`, 16*(k+1), color, html.EscapeString(labels[k])))
		}
	}

	sb.WriteString(fmt.Sprintf(`<text x="%d" y="16" fill="#888899" font-family="monospace" font-size="12" text-anchor="end">%.1f–%.1f K</text>
`, width-8, lo, hi))
	sb.WriteString("</svg>")
	return sb.String()
}
