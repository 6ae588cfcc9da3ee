package confirm

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"fleet-observer/src/logger"
	"fleet-observer/src/models"
	"fleet-observer/src/store"
	"fleet-observer/src/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// fakeDB captures the audit trail and closed trades.
// -----------------------------------------------------------------------------

type fakeDB struct {
	mu     sync.Mutex
	audits []models.MConfirmationEvent
	closed []models.MPosition
}

func (f *fakeDB) Initialize() error { return nil }
func (f *fakeDB) SaveAgentSession(models.MAgentRecord) error { return nil }
func (f *fakeDB) CleanupOldData() error { return nil }
func (f *fakeDB) Close() error { return nil }

func (f *fakeDB) AppendConfirmation(event models.MConfirmationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audits = append(f.audits, event)
	return nil
}

func (f *fakeDB) SaveClosedTrade(position models.MPosition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, position)
	return nil
}

func (f *fakeDB) RecentTrades(scope string, limit int) ([]models.MPosition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.MPosition, 0, limit)
	for i := len(f.closed) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.closed[i])
	}
	return out, nil
}

func (f *fakeDB) auditCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.audits)
}

func (f *fakeDB) closedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.closed)
}

// -----------------------------------------------------------------------------

func newTestIngestor() (*Ingestor, *store.MemoryStore, *fakeDB) {
	cfg := &models.MConfig{
		Name:     "test",
		LogLevel: "ERROR",
		Queue:    models.MQueueConfig{Backend: "memory", BufferSize: 16, PollTimeoutMs: 10},
	}
	mem := store.NewMemoryStore()
	db := &fakeDB{}
	q := transport.NewMemoryQueue(16, 10*time.Millisecond)
	in := NewIngestor(cfg, mem, q, db, logger.NewLogger("ERROR", "test"))
	return in, mem, db
}

func payload(t *testing.T, event models.MConfirmationEvent) []byte {
	t.Helper()
	raw, err := json.Marshal(event)
	require.NoError(t, err)
	return raw
}

func openEvent(ticket int64) models.MConfirmationEvent {
	return models.MConfirmationEvent{
		Ticket:     ticket,
		Instrument: "EURUSD",
		AccountID:  "acc-1",
		Result:     models.ResultOpened,
		Volume:     0.1,
		OpenPrice:  1.1000,
		OpenTime:   1000,
	}
}

func closeEvent(ticket int64, profit float64) models.MConfirmationEvent {
	return models.MConfirmationEvent{
		Ticket:     ticket,
		Instrument: "EURUSD",
		AccountID:  "acc-1",
		Result:     models.ResultClosed,
		ClosePrice: 1.1010,
		Profit:     profit,
		CloseTime:  1600,
	}
}

// -----------------------------------------------------------------------------

func TestOpenThenClose(t *testing.T) {
	in, _, db := newTestIngestor()
	ctx := context.Background()

	require.NoError(t, in.Process(ctx, payload(t, openEvent(42))))

	positions, err := in.OpenPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, int64(42), positions[0].Ticket)
	assert.Equal(t, models.PositionOpen, positions[0].Status)

	require.NoError(t, in.Process(ctx, payload(t, closeEvent(42, 25.0))))

	positions, err = in.OpenPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, positions, "closed ticket leaves the open set")

	require.Equal(t, 1, db.closedCount())
	db.mu.Lock()
	closed := db.closed[0]
	db.mu.Unlock()
	assert.Equal(t, models.PositionClosed, closed.Status)
	assert.Equal(t, int64(600), closed.Duration)
	assert.Equal(t, 1.1000, closed.OpenPrice, "open fields survive into the closed record")

	// Both events were audited regardless of outcome.
	assert.Equal(t, 2, db.auditCount())
}

// -----------------------------------------------------------------------------

func TestCloseUpdatesAllScopes(t *testing.T) {
	in, _, _ := newTestIngestor()
	ctx := context.Background()

	require.NoError(t, in.Process(ctx, payload(t, openEvent(1))))
	require.NoError(t, in.Process(ctx, payload(t, closeEvent(1, 25.0))))

	for _, scope := range []string{ScopeGlobal, ScopeSymbol("EURUSD"), ScopeAccount("acc-1")} {
		stats := in.Stats(ctx, scope)
		assert.Equal(t, int64(1), stats.TotalTrades, scope)
		assert.Equal(t, int64(1), stats.Wins, scope)
		assert.Equal(t, int64(0), stats.Losses, scope)
		assert.InDelta(t, 25.0, stats.TotalProfit, 1e-9, scope)
		assert.InDelta(t, 25.0, stats.LargestWin, 1e-9, scope)

		rate, ok := in.WinRate(ctx, scope)
		require.True(t, ok, scope)
		assert.InDelta(t, 1.0, rate, 1e-9, scope)
	}
}

func TestLossAccounting(t *testing.T) {
	in, _, _ := newTestIngestor()
	ctx := context.Background()

	require.NoError(t, in.Process(ctx, payload(t, openEvent(1))))
	require.NoError(t, in.Process(ctx, payload(t, closeEvent(1, -40.0))))

	ev := closeEvent(2, -10.0)
	ev.CloseTime = 1700
	require.NoError(t, in.Process(ctx, payload(t, openEvent(2))))
	require.NoError(t, in.Process(ctx, payload(t, ev)))

	stats := in.Stats(ctx, ScopeGlobal)
	assert.Equal(t, int64(2), stats.TotalTrades)
	assert.Equal(t, int64(0), stats.Wins)
	assert.Equal(t, int64(2), stats.Losses)
	assert.InDelta(t, 50.0, stats.TotalLoss, 1e-9, "losses accumulate as magnitudes")
	assert.InDelta(t, 40.0, stats.LargestLoss, 1e-9)

	rate, ok := in.WinRate(ctx, ScopeGlobal)
	require.True(t, ok)
	assert.InDelta(t, 0.0, rate, 1e-9)
}

// -----------------------------------------------------------------------------

func TestWinRateNoData(t *testing.T) {
	in, _, _ := newTestIngestor()
	ctx := context.Background()

	_, ok := in.WinRate(ctx, ScopeGlobal)
	assert.False(t, ok, "no trades means no data, not a 0% rate")

	_, ok = in.WinRate(ctx, ScopeSymbol("XAUUSD"))
	assert.False(t, ok)
}

// -----------------------------------------------------------------------------

func TestDuplicateCloseCountsOnce(t *testing.T) {
	in, _, db := newTestIngestor()
	ctx := context.Background()

	require.NoError(t, in.Process(ctx, payload(t, openEvent(7))))

	ev := closeEvent(7, 30.0)
	require.NoError(t, in.Process(ctx, payload(t, ev)))
	// At-least-once transport replays the exact same event.
	require.NoError(t, in.Process(ctx, payload(t, ev)))

	stats := in.Stats(ctx, ScopeGlobal)
	assert.Equal(t, int64(1), stats.TotalTrades)
	assert.Equal(t, int64(1), stats.Wins)
	assert.InDelta(t, 30.0, stats.TotalProfit, 1e-9)

	assert.Equal(t, 1, db.closedCount(), "replay must not rewrite the closed trade")
	// The duplicate still lands in the audit trail.
	assert.Equal(t, 3, db.auditCount())
}

// -----------------------------------------------------------------------------

func TestCloseWithoutOpenIsTolerated(t *testing.T) {
	in, _, db := newTestIngestor()
	ctx := context.Background()

	ev := closeEvent(99, 15.0)
	ev.Volume = 0.2
	require.NoError(t, in.Process(ctx, payload(t, ev)))

	require.Equal(t, 1, db.closedCount())
	db.mu.Lock()
	closed := db.closed[0]
	db.mu.Unlock()
	assert.Equal(t, int64(99), closed.Ticket)
	assert.Equal(t, "EURUSD", closed.Instrument)
	assert.Equal(t, 0.2, closed.Volume, "position rebuilt from the close event")

	stats := in.Stats(ctx, ScopeGlobal)
	assert.Equal(t, int64(1), stats.TotalTrades)
}

// -----------------------------------------------------------------------------

func TestMalformedEventsAreDropped(t *testing.T) {
	in, _, db := newTestIngestor()
	ctx := context.Background()

	t.Run("unparseable payload", func(t *testing.T) {
		require.NoError(t, in.Process(ctx, []byte("{not json")))
	})

	t.Run("missing ticket", func(t *testing.T) {
		ev := closeEvent(0, 10)
		require.NoError(t, in.Process(ctx, payload(t, ev)))
	})

	t.Run("missing instrument", func(t *testing.T) {
		ev := closeEvent(5, 10)
		ev.Instrument = ""
		require.NoError(t, in.Process(ctx, payload(t, ev)))
	})

	t.Run("missing result", func(t *testing.T) {
		ev := closeEvent(5, 10)
		ev.Result = ""
		require.NoError(t, in.Process(ctx, payload(t, ev)))
	})

	// Nothing of the above reached the audit trail or the stats.
	assert.Equal(t, 0, db.auditCount())
	_, ok := in.WinRate(ctx, ScopeGlobal)
	assert.False(t, ok)
}

// -----------------------------------------------------------------------------

func TestRunDrainsQueue(t *testing.T) {
	in, _, _ := newTestIngestor()

	q := in.Queue
	require.NoError(t, q.Publish(context.Background(), payload(t, openEvent(11))))
	require.NoError(t, q.Publish(context.Background(), payload(t, closeEvent(11, 12.5))))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		in.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		rate, ok := in.WinRate(context.Background(), ScopeGlobal)
		return ok && rate == 1.0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ingestor did not stop on cancel")
	}
}

// -----------------------------------------------------------------------------

func TestRecentTradesLimitClamp(t *testing.T) {
	in, _, db := newTestIngestor()
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		ev := closeEvent(i, float64(i))
		ev.CloseTime = 1600 + i
		require.NoError(t, in.Process(ctx, payload(t, ev)))
	}

	trades, err := in.RecentTrades(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, trades, 2)
	assert.Equal(t, int64(3), trades[0].Ticket, "newest first")

	// Out-of-range limits fall back to the default of 50.
	trades, err = in.RecentTrades(ctx, "", -1)
	require.NoError(t, err)
	assert.Len(t, trades, 3)

	assert.Equal(t, 3, db.closedCount())
}
