package storage

import (
	"path/filepath"
	"testing"
	"time"

	"fleet-observer/src/logger"
	"fleet-observer/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *AsyncSQLiteDB {
	t.Helper()
	cfg := &models.MConfig{
		Name:     "test",
		LogLevel: "ERROR",
		Storage: models.MStorageConfig{
			DBType:        "sqlite",
			DBPath:        filepath.Join(t.TempDir(), "test.db"),
			RetentionDays: 90,
		},
	}

	db, err := NewAsyncSQLiteDB(cfg, logger.NewLogger("ERROR", "test"))
	require.NoError(t, err)
	require.NoError(t, db.Initialize())
	t.Cleanup(func() { db.Close() })
	return db
}

func closedTrade(ticket int64, instrument, account string, closeTime int64) models.MPosition {
	return models.MPosition{
		Ticket:     ticket,
		Instrument: instrument,
		AccountID:  account,
		Volume:     0.1,
		OpenPrice:  1.1,
		ClosePrice: 1.101,
		Profit:     10,
		OpenTime:   closeTime - 60,
		CloseTime:  closeTime,
		Duration:   60,
		Status:     models.PositionClosed,
	}
}

// -----------------------------------------------------------------------------

func TestInitializeIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	// A restart re-runs the schema pass against existing tables.
	require.NoError(t, db.createTables())
}

// -----------------------------------------------------------------------------

func TestAppendConfirmation(t *testing.T) {
	db := newTestDB(t)

	event := models.MConfirmationEvent{
		Ticket:     42,
		Instrument: "EURUSD",
		AccountID:  "acc-1",
		Result:     models.ResultClosed,
		Profit:     12.5,
		CloseTime:  1600,
		Raw:        `{"ticket":42}`,
	}
	require.NoError(t, db.AppendConfirmation(event))
	// Append-only: the same event lands twice.
	require.NoError(t, db.AppendConfirmation(event))

	var count int
	require.NoError(t, db.DB.QueryRow("SELECT COUNT(*) FROM confirmations WHERE ticket = 42").Scan(&count))
	assert.Equal(t, 2, count)
}

// -----------------------------------------------------------------------------

func TestRecentTradesScopes(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.SaveClosedTrade(closedTrade(1, "EURUSD", "acc-1", 1000)))
	require.NoError(t, db.SaveClosedTrade(closedTrade(2, "GBPUSD", "acc-1", 2000)))
	require.NoError(t, db.SaveClosedTrade(closedTrade(3, "EURUSD", "acc-2", 3000)))

	t.Run("global newest first", func(t *testing.T) {
		trades, err := db.RecentTrades("global", 10)
		require.NoError(t, err)
		require.Len(t, trades, 3)
		assert.Equal(t, int64(3), trades[0].Ticket)
		assert.Equal(t, int64(1), trades[2].Ticket)
		assert.Equal(t, models.PositionClosed, trades[0].Status)
	})

	t.Run("symbol scope", func(t *testing.T) {
		trades, err := db.RecentTrades("symbol:EURUSD", 10)
		require.NoError(t, err)
		require.Len(t, trades, 2)
		for _, tr := range trades {
			assert.Equal(t, "EURUSD", tr.Instrument)
		}
	})

	t.Run("account scope", func(t *testing.T) {
		trades, err := db.RecentTrades("account:acc-2", 10)
		require.NoError(t, err)
		require.Len(t, trades, 1)
		assert.Equal(t, int64(3), trades[0].Ticket)
	})

	t.Run("limit", func(t *testing.T) {
		trades, err := db.RecentTrades("", 2)
		require.NoError(t, err)
		assert.Len(t, trades, 2)
	})
}

func TestSaveClosedTradeUpsert(t *testing.T) {
	db := newTestDB(t)

	trade := closedTrade(7, "EURUSD", "acc-1", 1000)
	require.NoError(t, db.SaveClosedTrade(trade))

	trade.Profit = 99
	require.NoError(t, db.SaveClosedTrade(trade))

	trades, err := db.RecentTrades("", 10)
	require.NoError(t, err)
	require.Len(t, trades, 1, "same (ticket, close_time) replaces, never duplicates")
	assert.Equal(t, 99.0, trades[0].Profit)
}

// -----------------------------------------------------------------------------

func TestSaveAgentSession(t *testing.T) {
	db := newTestDB(t)

	record := models.MAgentRecord{
		NodeID:         "node-1",
		SessionID:      "sess-1",
		AccountID:      "acc-1",
		SourceName:     "IC-Live",
		Status:         models.StatusDisconnected,
		Balance:        10000,
		ConnectedAt:    1000,
		DisconnectedAt: 2000,
		TotalUptime:    1000,
	}
	require.NoError(t, db.SaveAgentSession(record))

	// Re-archiving the same node (e.g. sweep retry) upserts.
	record.Status = models.StatusTimeout
	require.NoError(t, db.SaveAgentSession(record))

	var status string
	require.NoError(t, db.DB.QueryRow("SELECT status FROM agent_sessions WHERE node_id = 'node-1'").Scan(&status))
	assert.Equal(t, models.StatusTimeout, status)
}

// -----------------------------------------------------------------------------

func TestCleanupOldData(t *testing.T) {
	db := newTestDB(t)

	old := closedTrade(1, "EURUSD", "acc-1", time.Now().UTC().AddDate(0, 0, -120).Unix())
	fresh := closedTrade(2, "EURUSD", "acc-1", time.Now().UTC().Unix())
	require.NoError(t, db.SaveClosedTrade(old))
	require.NoError(t, db.SaveClosedTrade(fresh))

	require.NoError(t, db.CleanupOldData())

	trades, err := db.RecentTrades("", 10)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, int64(2), trades[0].Ticket)
}
