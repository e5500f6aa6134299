package model

// HistoricalPoint is one observed daily close.
type HistoricalPoint struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

// ConePoint is one forecast step of the volatility cone. Cone points
// continue chronologically immediately after the last historical date.
type ConePoint struct {
	Date           string  `json:"date"`
	PredictedPrice float64 `json:"predicted_price"`
	UpperBound95   float64 `json:"upper_bound_95"`
	LowerBound95   float64 `json:"lower_bound_95"`
	UpperBound70   float64 `json:"upper_bound_70"`
	LowerBound70   float64 `json:"lower_bound_70"`
}

// ChartPayload is the forecast payload as delivered by the analysis
// backend. Both slices are chronologically ordered and are treated as
// read-only after receipt.
type ChartPayload struct {
	Historical []HistoricalPoint `json:"historical"`
	Cone       []ConePoint       `json:"cone"`
	Analysis   string            `json:"analysis"`
}
