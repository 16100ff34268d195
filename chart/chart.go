// CLAUDE:SUMMARY Rasterizes a coverage time series to PNG: area, line and markers via x/image/vector, labels via basicfont.
// Package chart renders coverage trend series as small PNG line charts.
package chart

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"sort"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// Point is one sample of the series.
type Point struct {
	Time    time.Time
	Percent float64
}

// Renderer draws series at a fixed size.
type Renderer struct {
	Width  int
	Height int
}

// Default dimensions.
const (
	DefaultWidth  = 500
	DefaultHeight = 200
)

// New returns a Renderer. Non-positive dimensions fall back to the defaults.
func New(width, height int) *Renderer {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return &Renderer{Width: width, Height: height}
}

var (
	colBackground = color.White
	colText       = color.Black
	colAxis       = color.NRGBA{R: 0x99, G: 0x99, B: 0x99, A: 0xff}
	colGrid       = color.NRGBA{R: 0xe6, G: 0xe6, B: 0xe6, A: 0xff}
	colLine       = color.NRGBA{R: 0x36, G: 0xa2, B: 0xeb, A: 0xff}
	colArea       = color.NRGBA{R: 0x36, G: 0xa2, B: 0xeb, A: 0x50}
)

const (
	marginLeft   = 34
	marginRight  = 12
	marginTop    = 22
	marginBottom = 18
	lineWidth    = 2
	markerRadius = 3
)

// Render draws points under title and returns the PNG bytes. Points are
// plotted in time order whatever order they arrive in. An empty series
// yields a "no data" frame.
func (r *Renderer) Render(title string, points []Point) ([]byte, error) {
	w, h := r.Width, r.Height
	if w <= marginLeft+marginRight || h <= marginTop+marginBottom {
		return nil, fmt.Errorf("chart: canvas %dx%d too small", w, h)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(colBackground), image.Point{}, draw.Src)
	drawText(img, title, (w-textWidth(title))/2, 14)

	plot := image.Rect(marginLeft, marginTop, w-marginRight, h-marginBottom)

	if len(points) == 0 {
		strokeRect(img, plot, colAxis)
		msg := "no data"
		drawText(img, msg, plot.Min.X+(plot.Dx()-textWidth(msg))/2, plot.Min.Y+plot.Dy()/2+4)
		return encode(img)
	}

	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	yMax := 100.0
	for _, p := range sorted {
		if p.Percent > yMax {
			yMax = math.Ceil(p.Percent/10) * 10
		}
	}

	// Grid and y labels at 0, 50%, 100% of yMax.
	for _, frac := range []float64{0, 0.5, 1} {
		y := float32(plot.Max.Y) - float32(frac)*float32(plot.Dy())
		hline(img, plot.Min.X, plot.Max.X, y, colGrid)
		label := fmt.Sprintf("%g", math.Round(yMax*frac))
		drawText(img, label, plot.Min.X-textWidth(label)-4, int(y)+4)
	}

	t0 := sorted[0].Time
	span := sorted[len(sorted)-1].Time.Sub(t0)
	xy := func(p Point) (float32, float32) {
		x := float32(plot.Min.X) + float32(plot.Dx())/2
		if span > 0 {
			x = float32(plot.Min.X) + float32(float64(p.Time.Sub(t0))/float64(span))*float32(plot.Dx())
		}
		pct := math.Max(0, p.Percent)
		y := float32(plot.Max.Y) - float32(pct/yMax)*float32(plot.Dy())
		return x, y
	}

	// Area under the curve.
	area := vector.NewRasterizer(w, h)
	fx, _ := xy(sorted[0])
	area.MoveTo(fx, float32(plot.Max.Y))
	var lx float32
	for _, p := range sorted {
		x, y := xy(p)
		area.LineTo(x, y)
		lx = x
	}
	area.LineTo(lx, float32(plot.Max.Y))
	area.ClosePath()
	area.Draw(img, img.Bounds(), image.NewUniform(colArea), image.Point{})

	// Line and markers.
	line := vector.NewRasterizer(w, h)
	for i := 1; i < len(sorted); i++ {
		x1, y1 := xy(sorted[i-1])
		x2, y2 := xy(sorted[i])
		segment(line, x1, y1, x2, y2, lineWidth)
	}
	for _, p := range sorted {
		x, y := xy(p)
		diamond(line, x, y, markerRadius)
	}
	line.Draw(img, img.Bounds(), image.NewUniform(colLine), image.Point{})

	strokeRect(img, plot, colAxis)

	first := t0.Format("2006-01-02")
	drawText(img, first, plot.Min.X, h-4)
	if span > 0 {
		last := sorted[len(sorted)-1].Time.Format("2006-01-02")
		drawText(img, last, plot.Max.X-textWidth(last), h-4)
	}

	return encode(img)
}

func encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("chart: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func textWidth(s string) int {
	return font.MeasureString(basicfont.Face7x13, s).Ceil()
}

func drawText(img draw.Image, s string, x, y int) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(colText),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// segment adds a stroke of width wd from (x1,y1) to (x2,y2) as a quad.
func segment(z *vector.Rasterizer, x1, y1, x2, y2, wd float32) {
	dx, dy := x2-x1, y2-y1
	l := float32(math.Hypot(float64(dx), float64(dy)))
	if l == 0 {
		return
	}
	nx, ny := -dy/l*wd/2, dx/l*wd/2
	z.MoveTo(x1+nx, y1+ny)
	z.LineTo(x2+nx, y2+ny)
	z.LineTo(x2-nx, y2-ny)
	z.LineTo(x1-nx, y1-ny)
	z.ClosePath()
}

func diamond(z *vector.Rasterizer, x, y, rad float32) {
	z.MoveTo(x, y-rad)
	z.LineTo(x+rad, y)
	z.LineTo(x, y+rad)
	z.LineTo(x-rad, y)
	z.ClosePath()
}

func hline(img draw.Image, x0, x1 int, y float32, c color.Color) {
	iy := int(y)
	for x := x0; x <= x1; x++ {
		img.Set(x, iy, c)
	}
}

func strokeRect(img draw.Image, r image.Rectangle, c color.Color) {
	for x := r.Min.X; x <= r.Max.X; x++ {
		img.Set(x, r.Min.Y, c)
		img.Set(x, r.Max.Y, c)
	}
	for y := r.Min.Y; y <= r.Max.Y; y++ {
		img.Set(r.Min.X, y, c)
		img.Set(r.Max.X, y, c)
	}
}
