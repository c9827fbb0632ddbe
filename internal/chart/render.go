package chart

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"candlescope/pkg/model"
)

var (
	upColor     = color.RGBA{R: 0x00, G: 0x63, B: 0x40, A: 0xff}
	downColor   = color.RGBA{R: 0xa0, G: 0x21, B: 0x28, A: 0xff}
	markerColor = color.RGBA{R: 0xff, A: 0xff}
	maColors    = []color.Color{
		color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
		color.RGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
		color.RGBA{R: 0x94, G: 0x67, B: 0xbd, A: 0xff},
	}
)

// PNGRenderer draws a price panel above a volume panel
type PNGRenderer struct {
	Width  vg.Length
	Height vg.Length
}

// NewPNGRenderer creates a renderer for images of w x h points
func NewPNGRenderer(w, h float64) *PNGRenderer {
	return &PNGRenderer{Width: vg.Length(w), Height: vg.Length(h)}
}

// Render writes spec to path as PNG
func (r *PNGRenderer) Render(spec Spec, path string) error {
	if len(spec.Candles) == 0 {
		return errors.New("chart has no candles")
	}

	xmin, xmax := timeRange(spec.Candles)
	ticks := plot.TimeTicks{Format: spec.TimeFormat}

	price := plot.New()
	price.Title.Text = spec.Title
	price.Y.Label.Text = "Price"
	price.X.Tick.Marker = ticks
	price.X.Min, price.X.Max = xmin, xmax
	price.Add(plotter.NewGrid())
	price.Add(&candlePlotter{candles: spec.Candles})

	for i, ma := range spec.MovingAverages {
		pts := make(plotter.XYs, 0, len(ma.Values))
		for j, v := range ma.Values {
			if math.IsNaN(v) {
				continue
			}
			pts = append(pts, plotter.XY{X: unix(spec.Candles[j]), Y: v})
		}
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("moving average %d: %w", ma.Window, err)
		}
		line.Color = maColors[i%len(maColors)]
		line.Width = vg.Points(1)
		price.Add(line)
		price.Legend.Add(fmt.Sprintf("MA%d", ma.Window), line)
	}

	if len(spec.Annotations) > 0 {
		pts := make(plotter.XYs, len(spec.Annotations))
		for i, a := range spec.Annotations {
			pts[i] = plotter.XY{X: float64(a.Time.Unix()), Y: a.Price}
		}
		markers, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("pattern markers: %w", err)
		}
		markers.GlyphStyle.Shape = draw.TriangleGlyph{}
		markers.GlyphStyle.Color = markerColor
		markers.GlyphStyle.Radius = vg.Points(4)
		price.Add(markers)
		price.Legend.Add("pattern", markers)
	}
	price.Legend.Top = true
	price.Legend.Left = true

	volume := plot.New()
	volume.Y.Label.Text = "Volume"
	volume.X.Tick.Marker = ticks
	volume.X.Min, volume.X.Max = xmin, xmax
	volume.Add(&volumePlotter{candles: spec.Candles})

	img := vgimg.New(r.Width, r.Height)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      2,
		Cols:      1,
		PadTop:    vg.Points(4),
		PadBottom: vg.Points(4),
		PadLeft:   vg.Points(4),
		PadRight:  vg.Points(8),
		PadY:      vg.Points(4),
	}
	canvases := plot.Align([][]*plot.Plot{{price}, {volume}}, tiles, dc)
	price.Draw(canvases[0][0])
	volume.Draw(canvases[1][0])

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating chart file: %w", err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("writing chart: %w", err)
	}
	return f.Close()
}

func unix(c model.Candle) float64 {
	return float64(c.Time.Unix())
}

func timeRange(candles []model.Candle) (float64, float64) {
	first, last := unix(candles[0]), unix(candles[len(candles)-1])
	pad := 30.0
	if len(candles) > 1 {
		pad = (last - first) / float64(len(candles)-1)
	}
	return first - pad, last + pad
}

// bodyHalfWidth spaces the candle bodies evenly across the canvas
func bodyHalfWidth(c draw.Canvas, n int) vg.Length {
	w := (c.Rectangle.Max.X - c.Rectangle.Min.X) / vg.Length(n+1) * 0.35
	if w > vg.Points(6) {
		w = vg.Points(6)
	}
	if w < vg.Points(0.5) {
		w = vg.Points(0.5)
	}
	return w
}

type candlePlotter struct {
	candles []model.Candle
}

func (p *candlePlotter) Plot(c draw.Canvas, plt *plot.Plot) {
	trX, trY := plt.Transforms(&c)
	half := bodyHalfWidth(c, len(p.candles))

	for _, k := range p.candles {
		if !k.Valid() {
			continue
		}
		col := color.Color(upColor)
		if k.Close < k.Open {
			col = downColor
		}
		x := trX(unix(k))
		c.StrokeLine2(draw.LineStyle{Color: col, Width: vg.Points(0.75)}, x, trY(k.Low), x, trY(k.High))

		bottom, top := trY(math.Min(k.Open, k.Close)), trY(math.Max(k.Open, k.Close))
		if top-bottom < vg.Points(0.5) {
			top = bottom + vg.Points(0.5)
		}
		body := []vg.Point{
			{X: x - half, Y: bottom},
			{X: x + half, Y: bottom},
			{X: x + half, Y: top},
			{X: x - half, Y: top},
		}
		c.FillPolygon(col, c.ClipPolygonXY(body))
	}
}

func (p *candlePlotter) DataRange() (xmin, xmax, ymin, ymax float64) {
	xmin, xmax = math.Inf(1), math.Inf(-1)
	ymin, ymax = math.Inf(1), math.Inf(-1)
	for _, k := range p.candles {
		if !k.Valid() {
			continue
		}
		xmin, xmax = math.Min(xmin, unix(k)), math.Max(xmax, unix(k))
		ymin, ymax = math.Min(ymin, k.Low), math.Max(ymax, k.High+MarkerOffset)
	}
	if math.IsInf(xmin, 1) {
		return 0, 1, 0, 1
	}
	return xmin, xmax, ymin, ymax
}

type volumePlotter struct {
	candles []model.Candle
}

func (p *volumePlotter) Plot(c draw.Canvas, plt *plot.Plot) {
	trX, trY := plt.Transforms(&c)
	half := bodyHalfWidth(c, len(p.candles))
	zero := trY(0)

	for _, k := range p.candles {
		if k.Volume <= 0 {
			continue
		}
		col := color.Color(upColor)
		if k.Close < k.Open {
			col = downColor
		}
		x := trX(unix(k))
		y := trY(float64(k.Volume))
		bar := []vg.Point{
			{X: x - half, Y: zero},
			{X: x + half, Y: zero},
			{X: x + half, Y: y},
			{X: x - half, Y: y},
		}
		c.FillPolygon(col, c.ClipPolygonXY(bar))
	}
}

func (p *volumePlotter) DataRange() (xmin, xmax, ymin, ymax float64) {
	xmin, xmax = math.Inf(1), math.Inf(-1)
	for _, k := range p.candles {
		xmin, xmax = math.Min(xmin, unix(k)), math.Max(xmax, unix(k))
		ymax = math.Max(ymax, float64(k.Volume))
	}
	if ymax == 0 {
		ymax = 1
	}
	return xmin, xmax, 0, ymax
}
