package heikinashi

import (
	"errors"
	"fmt"
	"os"

	"github.com/gyan21/heikenashi/internal/market"
	"github.com/pplcc/plotext"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// DebugPlot stacks sub-plots sharing one time axis into a single png.
type DebugPlot struct {
	plots   []*plot.Plot
	heights []float64
	w       int
	h       int
}

func NewDebugPlot(w, h int) *DebugPlot {
	return &DebugPlot{w: w, h: h}
}

func (d *DebugPlot) Add(p *plot.Plot, height float64) {
	d.plots = append(d.plots, p)
	d.heights = append(d.heights, height)
}

// DrawCloses overlays the raw and derived closes so a divergence between the
// two series (the direction signal) is visible at a glance.
func (d *DebugPlot) DrawCloses(bars []market.Bar, ha []Candle) error {
	p := plot.New()
	p.Title.Text = "Heikin-Ashi"
	p.Y.Label.Text = "Close"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02\n15:04:05"}

	raw := make(plotter.XYs, len(bars))
	for i, b := range bars {
		c, _ := b.Close.Float64()
		raw[i] = plotter.XY{X: float64(b.Time.Unix()), Y: c}
	}
	rawLine, err := plotter.NewLine(raw)
	if err != nil {
		return fmt.Errorf("failed to create raw close graph: %w", err)
	}

	smoothed := make(plotter.XYs, len(ha))
	for i, c := range ha {
		v, _ := c.Close.Float64()
		smoothed[i] = plotter.XY{X: float64(c.Time.Unix()), Y: v}
	}
	haLine, err := plotter.NewLine(smoothed)
	if err != nil {
		return fmt.Errorf("failed to create heikin-ashi close graph: %w", err)
	}
	haLine.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(rawLine, haLine)
	p.Legend.Add("close", rawLine)
	p.Legend.Add("ha close", haLine)
	d.Add(p, 1)

	return nil
}

func (d *DebugPlot) Save(path string) (err error) {
	var axis []*plot.Axis
	for _, p := range d.plots {
		axis = append(axis, &p.X)
	}
	plotext.UniteAxisRanges(axis)

	tbl := plotext.Table{
		RowHeights: d.heights,
		ColWidths:  []float64{1},
	}

	var plots2d [][]*plot.Plot
	for _, p := range d.plots {
		plots2d = append(plots2d, []*plot.Plot{p})
	}

	h := 0.0
	for _, v := range d.heights {
		h += v * float64(d.h)
	}

	img := vgimg.New(vg.Points(float64(d.w)), vg.Points(float64(h)))
	dc := draw.New(img)

	canvases := tbl.Align(plots2d, dc)
	for i, p := range d.plots {
		p.Draw(canvases[i][0])
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create plot file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close plot file: %w", cerr))
		}
	}()

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(f); err != nil {
		return fmt.Errorf("failed to write plot to file: %w", err)
	}

	return nil
}
