// Package series turns a forecast payload into parallel, index-aligned
// plot series ready for a line chart.
package series

import (
	"strings"

	"market-chat-gateway/internal/domain/model"
)

// PlotSeries is the composed chart structure. Every value slice has
// length H+C (historical points then cone points); nil marks indices
// where a series has no value, so the renderer leaves a gap.
type PlotSeries struct {
	Labels          []string   `json:"labels"`
	HistoricalClose []*float64 `json:"historical_close"`
	PredictedTrend  []*float64 `json:"predicted_trend"`
	UpperBound95    []*float64 `json:"upper_bound_95"`
	LowerBound95    []*float64 `json:"lower_bound_95"`
	UpperBound70    []*float64 `json:"upper_bound_70"`
	LowerBound70    []*float64 `json:"lower_bound_70"`
}

// Dataset pairs one value series with its presentation hints. The
// lower member of each confidence band keeps its data (the fill needs
// both edges) but is suppressed from the legend.
type Dataset struct {
	Label        string     `json:"label"`
	Values       []*float64 `json:"values"`
	LegendHidden bool       `json:"legend_hidden"`
	FillToNext   bool       `json:"fill_to_next"`
}

// Compose stitches historical and forecast data into one plottable
// structure. It only reads the payload; the input slices are never
// mutated.
func Compose(p *model.ChartPayload) PlotSeries {
	h, c := len(p.Historical), len(p.Cone)
	n := h + c

	ps := PlotSeries{
		Labels:          make([]string, 0, n),
		HistoricalClose: make([]*float64, n),
		PredictedTrend:  make([]*float64, n),
		UpperBound95:    make([]*float64, n),
		LowerBound95:    make([]*float64, n),
		UpperBound70:    make([]*float64, n),
		LowerBound70:    make([]*float64, n),
	}

	for i, pt := range p.Historical {
		// Historical dates arrive as full timestamps; keep the date part.
		ps.Labels = append(ps.Labels, dateOnly(pt.Date))
		ps.HistoricalClose[i] = ptr(pt.Close)
	}
	for i, pt := range p.Cone {
		ps.Labels = append(ps.Labels, pt.Date)
		ps.PredictedTrend[h+i] = ptr(pt.PredictedPrice)
		ps.UpperBound95[h+i] = ptr(pt.UpperBound95)
		ps.LowerBound95[h+i] = ptr(pt.LowerBound95)
		ps.UpperBound70[h+i] = ptr(pt.UpperBound70)
		ps.LowerBound70[h+i] = ptr(pt.LowerBound70)
	}

	// Bridge the forecast line to the last historical close so the two
	// lines connect with no visual gap. The bands intentionally start
	// at the first cone index only.
	if h > 0 && c > 0 {
		ps.PredictedTrend[h-1] = ptr(p.Historical[h-1].Close)
	}

	return ps
}

// Datasets returns the series in render order with band pairing intact:
// each upper band fills down to the lower band that follows it.
func (ps PlotSeries) Datasets() []Dataset {
	return []Dataset{
		{Label: "Preço Histórico", Values: ps.HistoricalClose},
		{Label: "Previsão (Tendência Linear)", Values: ps.PredictedTrend},
		{Label: "Cone de Incerteza (95%)", Values: ps.UpperBound95, FillToNext: true},
		{Label: "Cone de Incerteza (95%) Lower", Values: ps.LowerBound95, LegendHidden: true},
		{Label: "Cone de Incerteza (70%)", Values: ps.UpperBound70, FillToNext: true},
		{Label: "Cone de Incerteza (70%) Lower", Values: ps.LowerBound70, LegendHidden: true},
	}
}

func dateOnly(s string) string {
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		return s[:i]
	}
	return s
}

func ptr(f float64) *float64 { return &f }
