package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"market-chat-gateway/internal/domain/model"
)

// ---- Fakes ----

type fakeFetcher struct {
	mu      sync.Mutex
	calls   int64
	err     error
	block   chan struct{} // when set, Intraday waits here (ignoring ctx)
	fetched chan string   // receives the ticker of every completed call
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{fetched: make(chan string, 64)}
}

func (f *fakeFetcher) Intraday(ctx context.Context, ticker string) (*model.IntradaySeries, error) {
	if f.block != nil {
		<-f.block
	}
	atomic.AddInt64(&f.calls, 1)
	f.mu.Lock()
	err := f.err
	f.mu.Unlock()
	defer func() { f.fetched <- ticker }()
	if err != nil {
		return nil, err
	}
	return &model.IntradaySeries{
		TimeLabels: []string{"10:00", "10:01"},
		Price:      []float64{30.0, 30.2},
		VWAP:       []float64{29.9, 30.1},
	}, nil
}

func (f *fakeFetcher) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

var _ Fetcher = (*fakeFetcher)(nil)

type updateSink struct {
	mu      sync.Mutex
	updates []Update
}

func (s *updateSink) publish(u Update) {
	s.mu.Lock()
	s.updates = append(s.updates, u)
	s.mu.Unlock()
}

func (s *updateSink) all() []Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Update, len(s.updates))
	copy(out, s.updates)
	return out
}

func newController(t *testing.T, f Fetcher, sink Sink, interval time.Duration) *Controller {
	t.Helper()
	log := zerolog.Nop()
	c := NewController(f, nil, interval, time.Second, sink, &log)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() { c.Shutdown(); cancel() })
	c.Start(ctx)
	return c
}

func waitFetch(t *testing.T, f *fakeFetcher, want string) {
	t.Helper()
	select {
	case got := <-f.fetched:
		if got != want {
			t.Fatalf("fetched ticker %s, want %s", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for fetch of %s", want)
	}
}

// ---- Tests ----

func TestActivate_OnlyNewestSubscriptionPolls(t *testing.T) {
	f := newFakeFetcher()
	sink := &updateSink{}
	c := newController(t, f, sink.publish, time.Hour)

	// Three ticker-bearing messages appended in order.
	c.Activate("s1", 1, "PETR4.SA")
	waitFetch(t, f, "PETR4.SA")
	c.Activate("s1", 3, "VALE3.SA")
	waitFetch(t, f, "VALE3.SA")
	c.Activate("s1", 5, "ITUB4.SA")
	waitFetch(t, f, "ITUB4.SA")

	states := c.States("s1")
	activeCount := 0
	for idx, st := range states {
		if st != StateInactive {
			activeCount++
			if idx != 5 {
				t.Fatalf("active subscription at index %d, want 5", idx)
			}
		}
	}
	if activeCount != 1 {
		t.Fatalf("active subscriptions = %d, want exactly 1", activeCount)
	}

	ticker, _, _, ok := c.Current("s1")
	if !ok || ticker != "ITUB4.SA" {
		t.Fatalf("current = (%s, %v), want ITUB4.SA", ticker, ok)
	}
}

func TestDeactivate_CancelsScheduledFetch(t *testing.T) {
	f := newFakeFetcher()
	interval := 30 * time.Millisecond
	c := newController(t, f, nil, interval)

	c.Activate("s1", 0, "PETR4.SA")
	waitFetch(t, f, "PETR4.SA")

	c.Deactivate("s1")
	before := atomic.LoadInt64(&f.calls)

	// Several intervals elapse; the cancelled timer must never fire.
	time.Sleep(5 * interval)
	if after := atomic.LoadInt64(&f.calls); after != before {
		t.Fatalf("fetches after deactivation: %d -> %d, want no change", before, after)
	}

	if _, _, _, ok := c.Current("s1"); ok {
		t.Fatal("session still reports an active subscription after Deactivate")
	}
}

func TestFetchFailure_RetriesWithoutStopping(t *testing.T) {
	f := newFakeFetcher()
	sink := &updateSink{}
	c := newController(t, f, sink.publish, 20*time.Millisecond)

	f.setErr(errors.New("upstream 503"))
	c.Activate("s1", 0, "PETR4.SA")
	waitFetch(t, f, "PETR4.SA")

	if _, st, _, _ := c.Current("s1"); st != StateErrorRetrying {
		t.Fatalf("state after failed fetch = %s, want %s", st, StateErrorRetrying)
	}

	// Failure does not stop the cycle: the next tick fetches again and
	// recovers once the upstream does.
	f.setErr(nil)
	waitFetch(t, f, "PETR4.SA")

	deadline := time.After(2 * time.Second)
	for {
		if _, st, series, _ := c.Current("s1"); st == StatePolling && series != nil {
			return
		}
		select {
		case <-deadline:
			_, st, _, _ := c.Current("s1")
			t.Fatalf("state = %s, want %s after recovery", st, StatePolling)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStaleInFlightResultIsDiscarded(t *testing.T) {
	f := newFakeFetcher()
	f.block = make(chan struct{})
	sink := &updateSink{}
	c := newController(t, f, sink.publish, time.Hour)

	// First subscription's initial fetch hangs in flight.
	c.Activate("s1", 0, "PETR4.SA")

	// A newer ticker mention supersedes it while the fetch is in flight.
	done := make(chan struct{})
	go func() {
		c.Activate("s1", 2, "VALE3.SA")
		close(done)
	}()

	// Let both the stale fetch and the new subscription's fetch finish.
	time.Sleep(20 * time.Millisecond)
	close(f.block)
	waitFetch(t, f, "PETR4.SA")
	<-done
	waitFetch(t, f, "VALE3.SA")

	// The stale result must never surface: no data-bearing update may
	// exist for the superseded message.
	for _, u := range sink.all() {
		if u.MessageIndex == 0 && u.Series != nil {
			t.Fatalf("stale fetch result was published for the deactivated subscription: %+v", u)
		}
	}

	states := c.States("s1")
	if states[0] != StateInactive {
		t.Fatalf("superseded subscription state = %s, want %s", states[0], StateInactive)
	}
}

func TestActivate_SameMessageIsNoop(t *testing.T) {
	f := newFakeFetcher()
	c := newController(t, f, nil, time.Hour)

	c.Activate("s1", 0, "PETR4.SA")
	waitFetch(t, f, "PETR4.SA")
	c.Activate("s1", 0, "PETR4.SA")

	select {
	case got := <-f.fetched:
		t.Fatalf("re-activating the same message triggered a fetch of %s", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	f := newFakeFetcher()
	c := newController(t, f, nil, time.Hour)

	c.Activate("s1", 0, "PETR4.SA")
	c.Activate("s2", 0, "VALE3.SA")
	// Order of the two initial fetches is not defined.
	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case tk := <-f.fetched:
			got[tk] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for initial fetches")
		}
	}
	if !got["PETR4.SA"] || !got["VALE3.SA"] {
		t.Fatalf("fetched = %v, want both sessions polling", got)
	}

	c.Deactivate("s1")
	if _, _, _, ok := c.Current("s2"); !ok {
		t.Fatal("deactivating one session tore down another")
	}
}
