// Package realtime manages the intraday polling lifecycle. For every
// conversation there is at most one active subscription, the one
// belonging to the most recently appended ticker-bearing message,
// and only that subscription is allowed to poll the intraday endpoint.
package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"market-chat-gateway/internal/domain/model"
	"market-chat-gateway/internal/infra/metrics"
)

// State of one subscription.
type State string

const (
	StateInactive      State = "inactive"
	StateLoading       State = "loading"
	StatePolling       State = "polling"
	StateErrorRetrying State = "error_retrying"
)

// Fetcher is the slice of the analysis backend the controller needs.
type Fetcher interface {
	Intraday(ctx context.Context, ticker string) (*model.IntradaySeries, error)
}

// Cache optionally short-circuits upstream fetches with a recent
// snapshot. A nil cache disables caching.
type Cache interface {
	Get(ctx context.Context, ticker string) (*model.IntradaySeries, bool)
	Store(ctx context.Context, ticker string, s *model.IntradaySeries)
}

// Update is published on every state or data change of a subscription.
type Update struct {
	SessionID    string                `json:"session_id"`
	MessageIndex int                   `json:"message_index"`
	Ticker       string                `json:"ticker"`
	State        State                 `json:"state"`
	Status       string                `json:"status"`
	Series       *model.IntradaySeries `json:"series,omitempty"`
}

// Sink receives updates; the WebSocket hub implements it.
type Sink func(Update)

type subscription struct {
	sessionID string
	msgIndex  int
	ticker    string
	cancel    context.CancelFunc
	done      chan struct{}
	series    *model.IntradaySeries
	state     State
}

// Controller owns all subscriptions. It holds a direct reference to
// each session's active subscription, updated incrementally on every
// ticker-bearing append, so activation never rescans message history.
// The controller only reads conversation state; it never mutates it.
type Controller struct {
	interval     time.Duration
	fetchTimeout time.Duration
	fetcher      Fetcher
	cache        Cache
	sink         Sink
	log          *zerolog.Logger

	mu      sync.Mutex
	ctx     context.Context
	active  map[string]*subscription // session id -> the one polling subscription
	history map[string]map[int]State // session id -> message index -> last known state
}

func NewController(fetcher Fetcher, cache Cache, interval, fetchTimeout time.Duration, sink Sink, logger *zerolog.Logger) *Controller {
	if interval <= 0 {
		interval = time.Minute
	}
	if fetchTimeout <= 0 {
		fetchTimeout = 15 * time.Second
	}
	if sink == nil {
		sink = func(Update) {}
	}
	l := logger.With().Str("component", "RealtimeController").Logger()
	return &Controller{
		interval:     interval,
		fetchTimeout: fetchTimeout,
		fetcher:      fetcher,
		cache:        cache,
		sink:         sink,
		log:          &l,
		active:       make(map[string]*subscription),
		history:      make(map[string]map[int]State),
	}
}

// Start binds the controller to its parent context. Subscriptions
// created afterwards are torn down when ctx is cancelled.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil {
		c.ctx = ctx
	}
}

// Activate makes the subscription for (sessionID, msgIndex, ticker)
// the session's single active one, deactivating whichever subscription
// was active before. The ticker is fixed for the lifetime of the
// subscription instance; activating the same message again is a no-op.
func (c *Controller) Activate(sessionID string, msgIndex int, ticker string) {
	c.mu.Lock()
	if c.ctx == nil {
		c.ctx = context.Background()
	}
	prev := c.active[sessionID]
	if prev != nil && prev.msgIndex == msgIndex && prev.ticker == ticker {
		c.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(c.ctx)
	sub := &subscription{
		sessionID: sessionID,
		msgIndex:  msgIndex,
		ticker:    ticker,
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     StateLoading,
	}
	c.active[sessionID] = sub
	c.setState(sessionID, msgIndex, StateLoading)
	if prev != nil {
		c.setState(sessionID, prev.msgIndex, StateInactive)
	}
	c.mu.Unlock()

	if prev != nil {
		c.stop(prev, "superseded by newer ticker mention")
	} else {
		metrics.IncActiveSubscriptions()
	}

	c.log.Info().Str("session_id", sessionID).Str("ticker", ticker).
		Int("message_index", msgIndex).Msg("subscription activated")
	c.publish(sub, "Carregando dados...", nil)

	go c.run(ctx, sub)
}

// Deactivate tears down the session's active subscription, e.g. when
// the owning view is destroyed. Idempotent.
func (c *Controller) Deactivate(sessionID string) {
	c.mu.Lock()
	sub := c.active[sessionID]
	if sub == nil {
		c.mu.Unlock()
		return
	}
	delete(c.active, sessionID)
	c.setState(sessionID, sub.msgIndex, StateInactive)
	c.mu.Unlock()

	c.stop(sub, "deactivated")
	metrics.DecActiveSubscriptions()
}

// Shutdown deactivates every subscription and waits for their loops to
// exit.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	subs := make([]*subscription, 0, len(c.active))
	for id, sub := range c.active {
		delete(c.active, id)
		c.setState(sub.sessionID, sub.msgIndex, StateInactive)
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	for _, sub := range subs {
		c.stop(sub, "shutdown")
		metrics.DecActiveSubscriptions()
	}
}

// stop cancels the scheduled next fetch and waits for the loop to
// finish. The timer is released on every exit path of run.
func (c *Controller) stop(sub *subscription, reason string) {
	sub.cancel()
	<-sub.done
	c.log.Info().Str("session_id", sub.sessionID).Str("ticker", sub.ticker).
		Str("reason", reason).Msg("subscription stopped")
	c.sink(Update{
		SessionID:    sub.sessionID,
		MessageIndex: sub.msgIndex,
		Ticker:       sub.ticker,
		State:        StateInactive,
		Status:       "Inativo",
	})
}

// Current returns the active subscription's latest snapshot, if any.
func (c *Controller) Current(sessionID string) (ticker string, state State, series *model.IntradaySeries, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub := c.active[sessionID]
	if sub == nil {
		return "", StateInactive, nil, false
	}
	return sub.ticker, sub.state, sub.series, true
}

// States reports the last known state per ticker-bearing message index.
func (c *Controller) States(sessionID string) map[int]State {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[int]State, len(c.history[sessionID]))
	for idx, st := range c.history[sessionID] {
		out[idx] = st
	}
	return out
}

func (c *Controller) setState(sessionID string, msgIndex int, st State) {
	m := c.history[sessionID]
	if m == nil {
		m = make(map[int]State)
		c.history[sessionID] = m
	}
	m[msgIndex] = st
}

// run is the polling loop: one immediate fetch, then one per interval.
// Failures are not fatal and never stop the cycle: there is no backoff
// and no retry ceiling at a one-per-minute cadence (revisit if the
// upstream gains abuse limits).
func (c *Controller) run(ctx context.Context, sub *subscription) {
	defer close(sub.done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.fetchOnce(ctx, sub)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.fetchOnce(ctx, sub)
		}
	}
}

func (c *Controller) fetchOnce(ctx context.Context, sub *subscription) {
	fctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	var series *model.IntradaySeries
	var err error
	if c.cache != nil {
		if cached, ok := c.cache.Get(fctx, sub.ticker); ok {
			series = cached
		}
	}
	if series == nil {
		series, err = c.fetcher.Intraday(fctx, sub.ticker)
		if err == nil && c.cache != nil {
			c.cache.Store(fctx, sub.ticker, series)
		}
	}
	metrics.IncIntradayPoll(err == nil)

	// Stale-write guard: a fetch that was in flight when the
	// subscription got superseded must not surface its result.
	c.mu.Lock()
	if c.active[sub.sessionID] != sub {
		c.mu.Unlock()
		metrics.IncStaleResultDropped()
		return
	}
	var status string
	if err != nil {
		sub.state = StateErrorRetrying
		status = fmt.Sprintf("Erro: %v", err)
	} else {
		sub.state = StatePolling
		sub.series = series
		status = fmt.Sprintf("Dados para %s atualizados", sub.ticker)
	}
	c.setState(sub.sessionID, sub.msgIndex, sub.state)
	c.mu.Unlock()

	if err != nil {
		c.log.Warn().Err(err).Str("ticker", sub.ticker).Msg("intraday fetch failed; retrying next interval")
	}
	c.publish(sub, status, series)
}

// publish snapshots the subscription state under lock and hands the
// sink a consistent Update.
func (c *Controller) publish(sub *subscription, status string, series *model.IntradaySeries) {
	c.mu.Lock()
	st := sub.state
	c.mu.Unlock()
	c.sink(Update{
		SessionID:    sub.sessionID,
		MessageIndex: sub.msgIndex,
		Ticker:       sub.ticker,
		State:        st,
		Status:       status,
		Series:       series,
	})
}
