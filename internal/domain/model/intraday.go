package model

// IntradaySeries is one polling cycle's worth of minute-scale quotes.
// The three slices are index-aligned and equal length.
type IntradaySeries struct {
	TimeLabels []string  `json:"labels"`
	Price      []float64 `json:"price"`
	VWAP       []float64 `json:"vwap"`
}
