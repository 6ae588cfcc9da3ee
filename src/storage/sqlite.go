package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"fleet-observer/src/logger"
	"fleet-observer/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type AsyncSQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*AsyncSQLiteDB, error) {
	return &AsyncSQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Initialize() error {
	dsn := d.Config.Storage.DBPath

	// Open DB
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

// createTables builds the schema. Tables are created if absent, never
// dropped: the confirmation audit trail has to survive restarts.
func (d *AsyncSQLiteDB) createTables() error {
	// SQLite types: INTEGER for int64, REAL for float64, TEXT for string
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS confirmations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ticket INTEGER,
			instrument TEXT,
			account_id TEXT,
			result TEXT,
			profit REAL,
			close_time INTEGER,
			payload TEXT,
			received_at INTEGER
		);
		`,
		`
		CREATE TABLE IF NOT EXISTS closed_trades (
			ticket INTEGER,
			instrument TEXT,
			account_id TEXT,
			volume REAL,
			open_price REAL,
			close_price REAL,
			profit REAL,
			swap REAL,
			commission REAL,
			open_time INTEGER,
			close_time INTEGER,
			duration INTEGER,
			comment TEXT,
			node_id TEXT,
			PRIMARY KEY (ticket, close_time)
		);
		`,
		`
		CREATE TABLE IF NOT EXISTS agent_sessions (
			node_id TEXT PRIMARY KEY,
			session_id TEXT,
			account_id TEXT,
			source_name TEXT,
			status TEXT,
			balance REAL,
			equity REAL,
			server TEXT,
			agent_version TEXT,
			connected_at INTEGER,
			disconnected_at INTEGER,
			total_uptime INTEGER
		);
		`,
		`CREATE INDEX IF NOT EXISTS idx_closed_trades_close_time ON closed_trades (close_time);`,
		`CREATE INDEX IF NOT EXISTS idx_confirmations_received_at ON confirmations (received_at);`,
	}

	for _, q := range queries {
		if _, err := d.DB.Exec(q); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) AppendConfirmation(event models.MConfirmationEvent) error {
	_, err := d.DB.Exec(`
		INSERT INTO confirmations (ticket, instrument, account_id, result, profit, close_time, payload, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, event.Ticket, event.Instrument, event.AccountID, event.Result, event.Profit, event.CloseTime, event.Raw, time.Now().UTC().Unix())
	return err
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) SaveClosedTrade(p models.MPosition) error {
	_, err := d.DB.Exec(`
		INSERT OR REPLACE INTO closed_trades
			(ticket, instrument, account_id, volume, open_price, close_price, profit, swap, commission, open_time, close_time, duration, comment, node_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.Ticket, p.Instrument, p.AccountID, p.Volume, p.OpenPrice, p.ClosePrice, p.Profit, p.Swap, p.Commission, p.OpenTime, p.CloseTime, p.Duration, p.Comment, p.NodeID)
	return err
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) SaveAgentSession(r models.MAgentRecord) error {
	_, err := d.DB.Exec(`
		INSERT OR REPLACE INTO agent_sessions
			(node_id, session_id, account_id, source_name, status, balance, equity, server, agent_version, connected_at, disconnected_at, total_uptime)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.NodeID, r.SessionID, r.AccountID, r.SourceName, r.Status, r.Balance, r.Equity, r.Server, r.AgentVersion, r.ConnectedAt, r.DisconnectedAt, r.TotalUptime)
	return err
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) RecentTrades(scope string, limit int) ([]models.MPosition, error) {
	query := `
		SELECT ticket, instrument, account_id, volume, open_price, close_price, profit, swap, commission, open_time, close_time, duration, comment, node_id
		FROM closed_trades
	`
	var args []interface{}

	where, arg := scopeFilter(scope)
	if where != "" {
		query += " WHERE " + where
		args = append(args, arg)
	}
	query += " ORDER BY close_time DESC LIMIT ?"
	args = append(args, limit)

	rows, err := d.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) CleanupOldData() error {
	retentionDays := d.Config.Storage.RetentionDays
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Unix()

	if _, err := d.DB.Exec("DELETE FROM confirmations WHERE received_at < ?", cutoff); err != nil {
		d.Logger.Error("Cleanup confirmations error: %v", err)
	}
	if _, err := d.DB.Exec("DELETE FROM closed_trades WHERE close_time < ?", cutoff); err != nil {
		d.Logger.Error("Cleanup closed_trades error: %v", err)
	}
	if _, err := d.DB.Exec("DELETE FROM agent_sessions WHERE disconnected_at > 0 AND disconnected_at < ?", cutoff); err != nil {
		d.Logger.Error("Cleanup agent_sessions error: %v", err)
	}

	d.Logger.Info("Cleanup completed (retention %d days)", retentionDays)
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

// -----------------------------------------------------------------------------
// Shared row helpers (used by both backends)
// -----------------------------------------------------------------------------

// scopeFilter translates a stats scope into a WHERE clause fragment.
func scopeFilter(scope string) (clause string, arg interface{}) {
	switch {
	case scope == "" || scope == "global":
		return "", nil
	case strings.HasPrefix(scope, "symbol:"):
		return "instrument = ?", strings.TrimPrefix(scope, "symbol:")
	case strings.HasPrefix(scope, "account:"):
		return "account_id = ?", strings.TrimPrefix(scope, "account:")
	default:
		// Bare value is treated as an instrument for convenience.
		return "instrument = ?", scope
	}
}

// -----------------------------------------------------------------------------

func scanTrades(rows *sql.Rows) ([]models.MPosition, error) {
	var trades []models.MPosition
	for rows.Next() {
		var p models.MPosition
		if err := rows.Scan(&p.Ticket, &p.Instrument, &p.AccountID, &p.Volume, &p.OpenPrice, &p.ClosePrice,
			&p.Profit, &p.Swap, &p.Commission, &p.OpenTime, &p.CloseTime, &p.Duration, &p.Comment, &p.NodeID); err != nil {
			return nil, err
		}
		p.Status = models.PositionClosed
		trades = append(trades, p)
	}
	return trades, rows.Err()
}
