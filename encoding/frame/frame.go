package frame

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/chewxy/math32"
	"github.com/golang/freetype/raster"
	"github.com/golang/freetype/truetype"
	"github.com/gorgonia/nnviz/network"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/math/fixed"
)

var regular *truetype.Font

func init() {
	var err error
	if regular, err = truetype.Parse(gomono.TTF); err != nil {
		panic(err)
	}
}

var (
	Background = color.RGBA{0x0e, 0x17, 0x26, 0xff}
	EdgeColor  = color.RGBA{0x94, 0xa3, 0xb8, 0xff}
	LabelColor = color.RGBA{0x64, 0x74, 0x8b, 0xff}
	NodeFill   = color.RGBA{0x20, 0xe3, 0xb2, 0xff}
	NodeStroke = color.RGBA{0x01, 0x22, 0x18, 0xff}
	NodeText   = color.RGBA{0x00, 0x19, 0x15, 0xff}
	BiasFill   = color.RGBA{0x1e, 0x29, 0x3b, 0xff}
	TextColor  = color.RGBA{0xe2, 0xe8, 0xf0, 0xff}
	ForwardDot = color.RGBA{0xfa, 0xcc, 0x15, 0xff}
	BackDot    = color.RGBA{0x8b, 0x5c, 0xf6, 0xff}
)

// Palette is the palette of every rendered frame.
var Palette = color.Palette{
	Background,
	EdgeColor,
	LabelColor,
	NodeFill,
	NodeStroke,
	NodeText,
	BiasFill,
	TextColor,
	ForwardDot,
	BackDot,
}

const (
	dotRadius  = 6
	biasRadius = 10
	biasOffset = 28
	strokeW    = 3
)

// Renderer draws frames. A Renderer is not safe for concurrent use.
type Renderer struct {
	font.Drawer
	value, small, caption font.Face
}

// NewRenderer creates a Renderer with the gomono font.
func NewRenderer() *Renderer {
	face := func(size float64) font.Face {
		return truetype.NewFace(regular, &truetype.Options{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
	}
	return &Renderer{
		value:   face(12),
		small:   face(8),
		caption: face(14),
	}
}

// Render draws a single frame.
func Render(ms network.MetaState) *image.Paletted { return NewRenderer().Render(ms) }

// Render draws the diagram of ms: the edges with their weights, the edges of the current
// layer highlighted in the colour of the phase, the nodes with their values and biases, and a caption.
func (r *Renderer) Render(ms network.MetaState) *image.Paletted {
	g := Layout(ms.InputCount(), ms.Layers())
	p := ms.Params()
	tr := ms.Trace()
	phase := ms.Phase()
	cur := ms.CurrentLayer()

	im := image.NewRGBA(image.Rect(0, 0, g.W, g.H))
	draw.Draw(im, im.Bounds(), image.NewUniform(Background), image.Point{}, draw.Src)
	ras := raster.NewRasterizer(g.W, g.H)
	painter := raster.NewRGBAPainter(im)
	r.Dst = im

	for _, e := range g.Edges {
		stroke(ras, painter, e.X1, e.Y1, e.X2, e.Y2, 1, EdgeColor)
	}
	r.Face = r.small
	for _, e := range g.Edges {
		if w, ok := at(p.Weights, e.Layer); ok {
			r.centred(fmt.Sprintf("%.2f", w), (e.X1+e.X2)/2, (e.Y1+e.Y2)/2-4, LabelColor)
		}
	}

	if phase != network.Idle && cur >= 0 && cur < len(g.ByLayer) {
		dot := ForwardDot
		if phase == network.Backward {
			dot = BackDot
		}
		for _, e := range g.ByLayer[cur] {
			stroke(ras, painter, e.X1, e.Y1, e.X2, e.Y2, 2, dot)
			// the dot sits just outside the node it starts travelling from
			x, y, dx, dy := e.X1, e.Y1, e.X2-e.X1, e.Y2-e.Y1
			if phase == network.Backward {
				x, y, dx, dy = e.X2, e.Y2, -dx, -dy
			}
			off := (Radius + dotRadius + strokeW) / math32.Hypot(dx, dy)
			disc(ras, painter, x+dx*off, y+dy*off, dotRadius, dot)
		}
	}

	for _, n := range g.Nodes {
		disc(ras, painter, n.X, n.Y, Radius+strokeW/2.0, NodeStroke)
		disc(ras, painter, n.X, n.Y, Radius-strokeW/2.0, NodeFill)

		var val float32
		var ok bool
		if n.Col == 0 {
			val, ok = at(p.Inputs, n.Idx)
		} else {
			val, ok = at(tr.Activations, n.Col-1)
		}
		if ok {
			r.Face = r.value
			r.centred(fmt.Sprintf("%.2f", val), n.X, n.Y+4, NodeText)
		}
		if n.Col == 0 {
			continue
		}
		if b, ok := at(p.Biases, n.Col-1); ok {
			disc(ras, painter, n.X-biasOffset, n.Y-biasOffset, biasRadius, BiasFill)
			r.Face = r.small
			r.centred(fmt.Sprintf("%.2f", b), n.X-biasOffset, n.Y-biasOffset+4, TextColor)
		}
	}

	r.Face = r.caption
	r.Src = image.NewUniform(TextColor)
	r.Dot = fixed.P(10, 16)
	r.DrawString(caption(ms))

	retVal := image.NewPaletted(im.Bounds(), Palette)
	draw.Draw(retVal, retVal.Bounds(), im, image.Point{}, draw.Src)
	return retVal
}

func caption(ms network.MetaState) string {
	s := fmt.Sprintf("%s  epoch %d  %v", ms.Name(), ms.Epoch(), ms.Phase())
	if ms.Phase() != network.Idle {
		s += fmt.Sprintf("  layer %d", ms.CurrentLayer())
	}
	if tr := ms.Trace(); !tr.Empty() {
		s += fmt.Sprintf("  loss %.4f", tr.Loss)
	}
	return s
}

func (r *Renderer) centred(s string, x, y float32, c color.Color) {
	w := font.MeasureString(r.Face, s)
	r.Src = image.NewUniform(c)
	r.Dot = fixed.Point26_6{X: fix(x) - w/2, Y: fix(y)}
	r.DrawString(s)
}

func at(a []float32, i int) (float32, bool) {
	if i < 0 || i >= len(a) {
		return 0, false
	}
	return a[i], true
}

func fix(x float32) fixed.Int26_6 { return fixed.Int26_6(math32.Floor(x*64 + 0.5)) }

func pt(x, y float32) fixed.Point26_6 { return fixed.Point26_6{X: fix(x), Y: fix(y)} }

func stroke(ras *raster.Rasterizer, p *raster.RGBAPainter, x1, y1, x2, y2, width float32, c color.Color) {
	var path raster.Path
	path.Start(pt(x1, y1))
	path.Add1(pt(x2, y2))
	ras.Clear()
	raster.Stroke(ras, path, fix(width), raster.ButtCapper, raster.BevelJoiner)
	p.SetColor(c)
	ras.Rasterize(p)
}

// disc fills a circle, approximated by 8 quadratic arcs.
func disc(ras *raster.Rasterizer, p *raster.RGBAPainter, cx, cy, rad float32, c color.Color) {
	const n = 8
	step := float32(2 * math32.Pi / n)
	k := rad / math32.Cos(step/2)
	ras.Clear()
	ras.Start(pt(cx+rad, cy))
	for i := 1; i <= n; i++ {
		θ := float32(i) * step
		mid := θ - step/2
		ras.Add2(pt(cx+k*math32.Cos(mid), cy+k*math32.Sin(mid)), pt(cx+rad*math32.Cos(θ), cy+rad*math32.Sin(θ)))
	}
	p.SetColor(c)
	ras.Rasterize(p)
}
