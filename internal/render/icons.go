package render

import (
	"math"

	"github.com/fogleman/gg"
)

func drawSpeedIcon(dc *gg.Context, x, y, size, lineWidth float64) {
	dc.Push()
	dc.Translate(x, y)
	dc.SetLineWidth(lineWidth)

	startAngle := gg.Radians(165)
	endAngle := gg.Radians(375)
	dc.DrawArc(0, 0, size/2, startAngle, endAngle)
	dc.Stroke()

	needleAngle := gg.Radians(210)
	dc.MoveTo(0, 0)
	dc.LineTo(math.Cos(needleAngle)*size/2.2, math.Sin(needleAngle)*size/2.2)
	dc.Stroke()
	dc.Pop()
}

// drawElevationIcon draws a two-peak mountain outline.
func drawElevationIcon(dc *gg.Context, x, y, size, lineWidth float64) {
	dc.Push()
	dc.Translate(x, y)
	dc.SetLineWidth(lineWidth)
	h := size / 2
	dc.MoveTo(-h, h/2)
	dc.LineTo(-h/3, -h/2)
	dc.LineTo(0, 0)
	dc.LineTo(h/3, -h)
	dc.LineTo(h, h/2)
	dc.Stroke()
	dc.Pop()
}

// drawNorthArrow points at north on a map rotated by bearing degrees.
func drawNorthArrow(dc *gg.Context, x, y, size, bearing float64) {
	dc.Push()
	dc.Translate(x, y)
	dc.Rotate(gg.Radians(-bearing))
	dc.MoveTo(0, -size/2)
	dc.LineTo(size/3, size/2)
	dc.LineTo(0, size/4)
	dc.LineTo(-size/3, size/2)
	dc.ClosePath()
	dc.Fill()
	dc.Pop()
}
