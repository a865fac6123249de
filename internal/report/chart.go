package report

import (
	"fmt"
	"math"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
)

const (
	chartWidth  = 800
	chartHeight = 480

	plotLeft   = 90.0
	plotRight  = 30.0
	plotTop    = 60.0
	plotBottom = 70.0
)

// Chart is one line chart with a horizontal mean reference line.
type Chart struct {
	Title  string
	Values []float64
	// Floor is the smallest upper bound of the y axis.
	Floor float64
}

// Mean returns the arithmetic mean of the values, 0 when there are none.
func (c Chart) Mean() float64 {
	if len(c.Values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range c.Values {
		sum += v
	}
	return sum / float64(len(c.Values))
}

// draw renders the chart into a new context using face for all text.
func (c Chart) draw(face font.Face) *gg.Context {
	dc := gg.NewContext(chartWidth, chartHeight)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.SetFontFace(face)

	x0, x1 := plotLeft, float64(chartWidth)-plotRight
	y0, y1 := plotTop, float64(chartHeight)-plotBottom

	yMax := c.Floor
	for _, v := range c.Values {
		if v > yMax {
			yMax = v
		}
	}
	if yMax <= 0 {
		yMax = 1
	}
	yMax = math.Ceil(yMax * 1.1)

	px := func(i int) float64 {
		if len(c.Values) < 2 {
			return (x0 + x1) / 2
		}
		return x0 + float64(i)*(x1-x0)/float64(len(c.Values)-1)
	}
	py := func(v float64) float64 {
		if v < 0 {
			v = 0
		}
		return y1 - v/yMax*(y1-y0)
	}

	// grid and y ticks
	dc.SetRGB(0.85, 0.85, 0.85)
	dc.SetLineWidth(1)
	ticks := 5
	for i := 0; i <= ticks; i++ {
		v := yMax * float64(i) / float64(ticks)
		y := py(v)
		dc.DrawLine(x0, y, x1, y)
		dc.Stroke()
		dc.SetRGB(0.2, 0.2, 0.2)
		dc.DrawStringAnchored(fmt.Sprintf("%.1f", v), x0-10, y, 1, 0.35)
		dc.SetRGB(0.85, 0.85, 0.85)
	}

	// axes
	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(2)
	dc.DrawLine(x0, y0, x0, y1)
	dc.DrawLine(x0, y1, x1, y1)
	dc.Stroke()

	for i := range c.Values {
		dc.DrawStringAnchored(fmt.Sprintf("%d", i+1), px(i), y1+18, 0.5, 0.5)
	}

	// series
	dc.SetRGB(0.12, 0.47, 0.71)
	dc.SetLineWidth(3)
	for i, v := range c.Values {
		if i == 0 {
			dc.MoveTo(px(i), py(v))
		} else {
			dc.LineTo(px(i), py(v))
		}
	}
	dc.Stroke()
	for i, v := range c.Values {
		dc.DrawCircle(px(i), py(v), 5)
		dc.Fill()
	}

	// mean
	mean := c.Mean()
	dc.SetRGB(0.84, 0.15, 0.16)
	dc.SetLineWidth(2)
	dc.SetDash(10, 6)
	dc.DrawLine(x0, py(mean), x1, py(mean))
	dc.Stroke()
	dc.SetDash()
	dc.DrawStringAnchored(fmt.Sprintf("Average: %.2f", mean), x1, py(mean)-10, 1, 0)

	// labels
	dc.SetRGB(0, 0, 0)
	dc.DrawStringAnchored(c.Title, float64(chartWidth)/2, plotTop/2, 0.5, 0.5)
	dc.DrawStringAnchored("Attempt Number", (x0+x1)/2, float64(chartHeight)-20, 0.5, 0.5)
	dc.Push()
	dc.RotateAbout(gg.Radians(-90), 25, (y0+y1)/2)
	dc.DrawStringAnchored("Score", 25, (y0+y1)/2, 0.5, 0.5)
	dc.Pop()

	return dc
}
