package frame

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/golang/freetype/raster"
	"github.com/gorgonia/nnviz/network"
	"github.com/gorgonia/nnviz/report"
	"golang.org/x/image/math/fixed"
)

// size and margins of a loss chart
const (
	ChartW = 600
	ChartH = 180

	marginT = 18
	marginR = 30
	marginB = 48
	marginL = 50
)

var (
	AxisColor = color.RGBA{0x27, 0x36, 0x4a, 0xff}
	AxisText  = color.RGBA{0x9b, 0xb3, 0xd1, 0xff}
	AreaFill  = color.RGBA{0x13, 0x1f, 0x32, 0xff}
	LossLine  = color.RGBA{0x22, 0xc5, 0x5e, 0xff}
	Latest    = color.RGBA{0xef, 0x44, 0x44, 0xff}
)

// ChartPalette is the palette of a rendered loss chart.
var ChartPalette = color.Palette{
	Background,
	AxisColor,
	AxisText,
	AreaFill,
	LossLine,
	Latest,
}

// ChartArea is the plotting area of a loss chart.
var ChartArea = report.Area{X0: marginL, Y0: marginT, X1: ChartW - marginR, Y1: ChartH - marginB}

// RenderLossChart draws the loss per epoch of records.
func RenderLossChart(records []network.EpochRecord) *image.Paletted {
	return NewRenderer().RenderLossChart(records)
}

// RenderLossChart draws the loss per epoch of records: the area under the curve, the curve,
// the latest point and both axes. An empty log draws the axes only.
func (r *Renderer) RenderLossChart(records []network.EpochRecord) *image.Paletted {
	c := report.NewChart(records, ChartArea)

	im := image.NewRGBA(image.Rect(0, 0, ChartW, ChartH))
	draw.Draw(im, im.Bounds(), image.NewUniform(Background), image.Point{}, draw.Src)
	ras := raster.NewRasterizer(ChartW, ChartH)
	painter := raster.NewRGBAPainter(im)
	r.Dst = im

	if len(c.Points) > 1 {
		first, last := c.Points[0], c.Points[len(c.Points)-1]
		ras.Clear()
		ras.Start(pt(first.X, c.Base()))
		for _, p := range c.Points {
			ras.Add1(pt(p.X, p.Y))
		}
		ras.Add1(pt(last.X, c.Base()))
		ras.Add1(pt(first.X, c.Base()))
		painter.SetColor(AreaFill)
		ras.Rasterize(painter)

		var path raster.Path
		path.Start(pt(first.X, first.Y))
		for _, p := range c.Points[1:] {
			path.Add1(pt(p.X, p.Y))
		}
		ras.Clear()
		raster.Stroke(ras, path, fix(2), raster.RoundCapper, raster.RoundJoiner)
		painter.SetColor(LossLine)
		ras.Rasterize(painter)
	}

	// axes, on pixel centres so that they stay one solid pixel wide
	x0, y1 := ChartArea.X0-0.5, ChartArea.Y1+0.5
	stroke(ras, painter, x0, y1, ChartArea.X1, y1, 1, AxisColor)
	stroke(ras, painter, x0, ChartArea.Y0, x0, y1, 1, AxisColor)
	r.Face = r.small
	for _, t := range c.XTicks {
		stroke(ras, painter, t.Pos, ChartArea.Y1, t.Pos, ChartArea.Y1+6, 1, AxisColor)
		r.centred(t.Label, t.Pos, ChartArea.Y1+16, AxisText)
	}
	for _, t := range c.YTicks {
		stroke(ras, painter, ChartArea.X0-6, t.Pos, ChartArea.X0, t.Pos, 1, AxisColor)
		r.right(t.Label, ChartArea.X0-8, t.Pos+3, AxisText)
	}
	r.Face = r.value
	r.centred("Epoch", (ChartArea.X0+ChartArea.X1)/2, ChartH-12, AxisText)
	r.Src = image.NewUniform(AxisText)
	r.Dot = fixed.P(4, 12)
	r.DrawString("Loss")

	if p, ok := c.Latest(); ok {
		disc(ras, painter, p.X, p.Y, 5.5, Background)
		disc(ras, painter, p.X, p.Y, 4, Latest)
	}

	retVal := image.NewPaletted(im.Bounds(), ChartPalette)
	draw.Draw(retVal, retVal.Bounds(), im, image.Point{}, draw.Src)
	return retVal
}

func (r *Renderer) right(s string, x, y float32, c color.Color) {
	r.Src = image.NewUniform(c)
	r.Dot = fixed.Point26_6{X: fix(x) - r.MeasureString(s), Y: fix(y)}
	r.DrawString(s)
}
