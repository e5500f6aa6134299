// Package routing holds the pure request-routing heuristic. It is kept
// independent of transport code so it can be swapped for a real intent
// classifier later without touching the query path.
package routing

import (
	"net/http"
	"regexp"
	"strings"
)

// forecastKeywords mark a question as a projection request. Portuguese
// first (the primary market), English equivalents alongside.
var forecastKeywords = []string{
	"previsão", "projeção", "volatilidade", "cone", "prever", "futuro",
	"forecast", "projection", "volatility", "predict", "future",
}

// tickerPattern matches a B3-listed instrument: alphanumerics plus the
// exchange suffix, case-insensitive. The same pattern scans user
// queries and assistant answers; the two must never diverge.
var tickerPattern = regexp.MustCompile(`(?i)([A-Z0-9]+\.SA)`)

// QueryRequest is the wire body of a conversational call.
type QueryRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

// Decision describes the backend call a query should become.
type Decision struct {
	Method string
	Path   string
	// Body is nil for direct projection calls (GET carries no body).
	Body *QueryRequest
	// Ticker is set only on direct projection calls, already uppercased.
	Ticker string
}

// Route classifies a raw query. Only a confident match, a forecast
// keyword AND an explicit instrument reference, bypasses the
// general-purpose agent; any ambiguity defers to the backend, which
// may itself decide to run the projection.
func Route(query, sessionID string) Decision {
	lower := strings.ToLower(query)
	keyword := false
	for _, kw := range forecastKeywords {
		if strings.Contains(lower, kw) {
			keyword = true
			break
		}
	}

	if keyword {
		if ticker, ok := ExtractTicker(query); ok {
			return Decision{
				Method: http.MethodGet,
				Path:   "/api/v1/volatility-cone/" + ticker,
				Ticker: ticker,
			}
		}
	}

	return Decision{
		Method: http.MethodPost,
		Path:   "/api/v1/query",
		Body:   &QueryRequest{Question: query, SessionID: sessionID},
	}
}

// ExtractTicker returns the first instrument reference in s, normalized
// to upper case.
func ExtractTicker(s string) (string, bool) {
	m := tickerPattern.FindString(s)
	if m == "" {
		return "", false
	}
	return strings.ToUpper(m), true
}
