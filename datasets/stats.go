package datasets

import (
	"fmt"
	"image/color"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// WriteLabelChart writes a bar chart with the number of samples of each label
// in store. The format follows the extension of path (.png, .svg, .pdf, ...).
func WriteLabelChart(store *LabelStore, path string) error {
	classes := store.Classes()
	if len(classes) == 0 {
		return errors.Errorf("no labels in %s to plot", store.Path())
	}
	counts := store.LabelCounts()
	values := make(plotter.Values, len(classes))
	names := make([]string, len(classes))
	for i, label := range classes {
		values[i] = float64(counts[label])
		names[i] = fmt.Sprintf("%d", label)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Samples per label (%d total)", store.Len())
	p.X.Label.Text = "label"
	p.Y.Label.Text = "samples"

	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return errors.Wrap(err, "failed to create bar chart")
	}
	bars.Color = color.RGBA{R: 20, G: 80, B: 200, A: 220}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.Add(plotter.NewGrid())
	p.NominalX(names...)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "failed to save label chart to %s", path)
	}
	return nil
}
