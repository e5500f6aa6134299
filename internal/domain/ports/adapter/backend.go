package adapter

import (
	"context"

	"market-chat-gateway/internal/domain/model"
)

// QueryResult is a conversational reply: either a narrative answer, a
// chart payload, or both (the backend agent decides).
type QueryResult struct {
	Answer string
	Chart  *model.ChartPayload
}

// AnalysisBackend abstracts the REST analysis service. Implementations
// must attach the session id to conversational calls and must not
// retry failed requests (resubmission is the user's decision).
type AnalysisBackend interface {
	// Query sends a free-text question to the conversational agent.
	Query(ctx context.Context, question, sessionID string) (*QueryResult, error)
	// VolatilityCone fetches a statistical projection directly,
	// bypassing the agent.
	VolatilityCone(ctx context.Context, ticker string) (*model.ChartPayload, error)
	// Intraday fetches the current minute-scale quote series.
	Intraday(ctx context.Context, ticker string) (*model.IntradaySeries, error)
}
