package report

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/gorgonia/nnviz/network"
)

const (
	maxXTicks = 8
	yTicks    = 5

	// minPad is the y padding of a chart whose losses are all zero.
	minPad = 0.0002
)

// Area is a plotting rectangle in image coordinates. Y grows downwards.
type Area struct {
	X0, Y0, X1, Y1 float32
}

// Point is a plotted record.
type Point struct {
	X, Y float32
}

// Tick is an axis tick: its position along the axis and its label.
type Tick struct {
	Pos   float32
	Label string
}

// Chart is the loss per epoch chart of a training log, laid out on an Area.
// The loss domain [Lo, Hi] is the range of the losses, padded by a fifth on either
// side and widened to round tick steps.
type Chart struct {
	Area
	Lo, Hi float32
	Points []Point
	XTicks []Tick
	YTicks []Tick
}

// NewChart lays out records on a. An empty log has no points and no ticks.
// A single record sits in the middle of the x axis.
func NewChart(records []network.EpochRecord, a Area) Chart {
	c := Chart{Area: a}
	if len(records) == 0 {
		return c
	}

	lo, hi := records[0].Loss, records[0].Loss
	for _, r := range records[1:] {
		lo = math32.Min(lo, r.Loss)
		hi = math32.Max(hi, r.Loss)
	}
	pad := (hi - lo) * 0.2
	if pad == 0 {
		pad = math32.Abs(hi) * 0.2
	}
	if pad == 0 {
		pad = minPad
	}
	lo, hi = lo-pad, hi+pad
	step := tickStep(lo, hi, yTicks)
	c.Lo, c.Hi = math32.Floor(lo/step)*step, math32.Ceil(hi/step)*step

	c.Points = make([]Point, len(records))
	for i, r := range records {
		c.Points[i] = Point{X: c.x(i, len(records)), Y: c.y(r.Loss)}
	}

	every, mag := 1, 1
	for (len(records)-1)/every+1 > maxXTicks {
		switch every / mag {
		case 1:
			every = 2 * mag
		case 2:
			every = 5 * mag
		default:
			mag *= 10
			every = mag
		}
	}
	for i := 0; i < len(records); i += every {
		c.XTicks = append(c.XTicks, Tick{Pos: c.x(i, len(records)), Label: fmt.Sprintf("%d", records[i].Epoch)})
	}
	for i := 0; ; i++ {
		v := c.Lo + float32(i)*step
		if v > c.Hi+step/2 {
			break
		}
		c.YTicks = append(c.YTicks, Tick{Pos: c.y(v), Label: fmt.Sprintf("%.4f", v)})
	}
	return c
}

// Latest is the point of the last record.
func (c Chart) Latest() (Point, bool) {
	if len(c.Points) == 0 {
		return Point{}, false
	}
	return c.Points[len(c.Points)-1], true
}

// Base is the y coordinate of the bottom of the loss domain.
func (c Chart) Base() float32 { return c.Y1 }

func (c Chart) x(i, n int) float32 {
	if n == 1 {
		return (c.X0 + c.X1) / 2
	}
	return c.X0 + (c.X1-c.X0)*float32(i)/float32(n-1)
}

func (c Chart) y(loss float32) float32 {
	return c.Y1 - (loss-c.Lo)/(c.Hi-c.Lo)*(c.Y1-c.Y0)
}

// tickStep is a step of 1, 2 or 5 times a power of ten that cuts [lo, hi] into about n pieces.
func tickStep(lo, hi float32, n int) float32 {
	raw := (hi - lo) / float32(n)
	mag := math32.Pow(10, math32.Floor(math32.Log10(raw)))
	switch r := raw / mag; {
	case r >= 7.071:
		return 10 * mag
	case r >= 3.162:
		return 5 * mag
	case r >= 1.414:
		return 2 * mag
	}
	return mag
}
