// File: internal/usecase/conversation_uc.go
package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"market-chat-gateway/internal/conversation"
	"market-chat-gateway/internal/domain"
	"market-chat-gateway/internal/domain/model"
	"market-chat-gateway/internal/domain/ports/adapter"
	"market-chat-gateway/internal/infra/logging"
	"market-chat-gateway/internal/infra/metrics"
	"market-chat-gateway/internal/routing"
	"market-chat-gateway/internal/series"
)

// Compile-time check
var _ ConversationUseCase = (*conversationUC)(nil)

// Realtime is the slice of the subscription controller the use case
// drives: activation on ticker-bearing appends, teardown on session end.
type Realtime interface {
	Activate(sessionID string, msgIndex int, ticker string)
	Deactivate(sessionID string)
}

type ConversationUseCase interface {
	StartSession(ctx context.Context) (*model.Session, error)
	Submit(ctx context.Context, sessionID, question string) (*model.Session, error)
	Transcript(ctx context.Context, sessionID string) (*model.Session, error)
	Plot(ctx context.Context, sessionID string, msgIndex int) (series.PlotSeries, error)
	EndSession(ctx context.Context, sessionID string) error
}

type conversationUC struct {
	store   *conversation.Store
	backend adapter.AnalysisBackend
	rt      Realtime
	log     *zerolog.Logger

	mu   sync.Mutex
	busy map[string]bool
}

func NewConversationUseCase(store *conversation.Store, backend adapter.AnalysisBackend, rt Realtime, logger *zerolog.Logger) *conversationUC {
	l := logger.With().Str("component", "ConversationUC").Logger()
	return &conversationUC{
		store:   store,
		backend: backend,
		rt:      rt,
		log:     &l,
		busy:    make(map[string]bool),
	}
}

func (c *conversationUC) StartSession(ctx context.Context) (*model.Session, error) {
	s := c.store.CreateSession()
	c.log.Info().Str("session_id", s.ID).Msg("session started")
	return s, nil
}

// Submit runs one turn of the primary query path. While a request is
// outstanding for a session, further submits are rejected with
// ErrSessionBusy, so at most one primary request is in flight and
// results land in submission order.
func (c *conversationUC) Submit(ctx context.Context, sessionID, question string) (*model.Session, error) {
	defer logging.TraceDuration(c.log, "ConversationUC.Submit")()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrEmptyQuestion
	}

	c.mu.Lock()
	if c.busy[sessionID] {
		c.mu.Unlock()
		metrics.IncQueryRejectedBusy()
		return nil, domain.ErrSessionBusy
	}
	c.busy[sessionID] = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.busy, sessionID)
		c.mu.Unlock()
	}()

	if _, err := c.store.Append(sessionID, model.NewUserMessage(question)); err != nil {
		return nil, err
	}

	decision := routing.Route(question, sessionID)
	route := "agent"
	if decision.Ticker != "" {
		route = "projection"
	}
	log := logging.With(logging.WithSessID(ctx, sessionID), c.log)
	log.Debug().Str("route", route).Str("path", decision.Path).Msg("query routed")

	start := time.Now()
	reply, err := c.call(ctx, decision)
	metrics.ObserveQuery(route, int(time.Since(start).Milliseconds()), err == nil)
	if err != nil {
		// Failures degrade to a visible assistant message; the user
		// decides whether to resubmit. No automatic retry.
		log.Warn().Err(err).Msg("primary query failed")
		reply = model.NewAssistantMessage(fmt.Sprintf("Desculpe, ocorreu um erro: %v", err))
	}

	snap, err := c.store.Append(sessionID, reply)
	if err != nil {
		return nil, err
	}
	if reply.HasTicker() {
		c.rt.Activate(sessionID, len(snap.Messages)-1, reply.TickerMention)
	}
	return snap, nil
}

// call performs the routed backend request and shapes the assistant
// message: charts carry the analysis text, plain answers are scanned
// for a ticker mention to offer live monitoring.
func (c *conversationUC) call(ctx context.Context, d routing.Decision) (model.Message, error) {
	if d.Ticker != "" {
		chart, err := c.backend.VolatilityCone(ctx, d.Ticker)
		if err != nil {
			return model.Message{}, err
		}
		msg := model.NewAssistantMessage(chart.Analysis)
		msg.Chart = chart
		return msg, nil
	}

	res, err := c.backend.Query(ctx, d.Body.Question, d.Body.SessionID)
	if err != nil {
		return model.Message{}, err
	}
	if res.Chart != nil {
		msg := model.NewAssistantMessage(res.Chart.Analysis)
		msg.Chart = res.Chart
		return msg, nil
	}

	msg := model.NewAssistantMessage(res.Answer)
	if ticker, ok := routing.ExtractTicker(res.Answer); ok {
		msg.TickerMention = ticker
	}
	return msg, nil
}

func (c *conversationUC) Transcript(ctx context.Context, sessionID string) (*model.Session, error) {
	return c.store.Snapshot(sessionID)
}

// Plot composes the chart series for a chart-bearing message at render
// time; the stored payload itself is never mutated.
func (c *conversationUC) Plot(ctx context.Context, sessionID string, msgIndex int) (series.PlotSeries, error) {
	snap, err := c.store.Snapshot(sessionID)
	if err != nil {
		return series.PlotSeries{}, err
	}
	if msgIndex < 0 || msgIndex >= len(snap.Messages) {
		return series.PlotSeries{}, domain.ErrInvalidArgument
	}
	msg := snap.Messages[msgIndex]
	if msg.Chart == nil {
		return series.PlotSeries{}, domain.ErrNoChart
	}
	return series.Compose(msg.Chart), nil
}

// EndSession tears down the session's realtime subscription when the
// owning view goes away. History is kept until the process exits.
func (c *conversationUC) EndSession(ctx context.Context, sessionID string) error {
	if _, err := c.store.Snapshot(sessionID); err != nil {
		return err
	}
	c.rt.Deactivate(sessionID)
	return nil
}
