package rankingexport

import (
	"bytes"
	"fmt"

	rankingdomain "github.com/Black-And-White-Club/maprank/app/modules/ranking/domain"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Palette colours the standings chart.
type Palette struct {
	Background drawing.Color
	Bar        drawing.Color
	Leader     drawing.Color
	Text       drawing.Color
}

var DefaultPalette = Palette{
	Background: drawing.ColorFromHex("1b1f24"),
	Bar:        drawing.ColorFromHex("3b82f6"),
	Leader:     drawing.ColorFromHex("f5b700"),
	Text:       drawing.ColorFromHex("e6edf3"),
}

// DefaultChartTop is how many players the chart shows when top <= 0.
const DefaultChartTop = 10

// RenderChart draws the global top players as a PNG bar chart.
func RenderChart(global rankingdomain.GlobalLeaderboard, top int, palette Palette) ([]byte, error) {
	if top <= 0 {
		top = DefaultChartTop
	}
	rows := global.Rows
	if len(rows) == 0 {
		return renderPlaceholder(palette)
	}
	if len(rows) > top {
		rows = rows[:top]
	}

	bars := make([]chart.Value, len(rows))
	for i, r := range rows {
		color := palette.Bar
		if r.Rank == 1 {
			color = palette.Leader
		}
		bars[i] = chart.Value{
			Label: fmt.Sprintf("#%d %s", r.Rank, r.DisplayName),
			Value: float64(r.Points),
			Style: chart.Style{FillColor: color, StrokeColor: color},
		}
	}

	graph := chart.BarChart{
		Title:      "Global standings",
		TitleStyle: chart.Style{FontColor: palette.Text},
		Width:      max(640, 90*len(bars)),
		Height:     480,
		BarWidth:   48,
		Background: chart.Style{
			FillColor: palette.Background,
			Padding:   chart.Box{Top: 48, Left: 16, Right: 16, Bottom: 16},
		},
		Canvas: chart.Style{FillColor: palette.Background},
		XAxis:  chart.Style{FontColor: palette.Text, StrokeColor: palette.Text},
		YAxis: chart.YAxis{
			Style:          chart.Style{FontColor: palette.Text, StrokeColor: palette.Text},
			ValueFormatter: chart.IntValueFormatter,
		},
		Bars: bars,
	}
	// A single bar, or all-equal points, gives go-chart a zero-height range.
	if len(bars) == 1 || rows[0].Points == rows[len(rows)-1].Points {
		graph.YAxis.Range = &chart.ContinuousRange{Min: 0, Max: float64(rows[0].Points) + 1}
	}

	buf := bytes.NewBuffer(nil)
	if err := graph.Render(chart.PNG, buf); err != nil {
		return nil, fmt.Errorf("render standings chart: %w", err)
	}
	return buf.Bytes(), nil
}

func renderPlaceholder(palette Palette) ([]byte, error) {
	const msg = "No standings yet"
	graph := chart.Chart{
		Width:      400,
		Height:     200,
		Background: chart.Style{FillColor: palette.Background},
		Canvas:     chart.Style{FillColor: palette.Background},
		XAxis:      chart.XAxis{Style: chart.Style{Hidden: true}},
		YAxis:      chart.YAxis{Style: chart.Style{Hidden: true}},
		// go-chart refuses to render without a series.
		Series: []chart.Series{chart.ContinuousSeries{
			XValues: []float64{0, 1},
			YValues: []float64{0, 1},
			Style:   chart.Style{Hidden: true},
		}},
		Elements: []chart.Renderable{
			func(r chart.Renderer, cb chart.Box, _ chart.Style) {
				r.SetFontColor(palette.Text)
				r.SetFontSize(12.0)
				tb := r.MeasureText(msg)
				r.Text(msg, (cb.Width()-tb.Width())/2, (cb.Height()+tb.Height())/2)
			},
		},
	}
	buf := bytes.NewBuffer(nil)
	if err := graph.Render(chart.PNG, buf); err != nil {
		return nil, fmt.Errorf("render placeholder chart: %w", err)
	}
	return buf.Bytes(), nil
}
