package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fleet-observer/src/logger"
	"fleet-observer/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	// Schema per binary name, so several observers can share one database.
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable name: %w", err)
	}
	name := filepath.Base(exe)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	return &PostgresDB{
		Config: cfg,
		Schema: name,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	// Create Schema
	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

// createTables builds the schema. Create-if-absent only; the audit trail is
// never dropped.
func (d *PostgresDB) createTables() error {
	queries := []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."confirmations" (
			id BIGSERIAL PRIMARY KEY,
			ticket BIGINT,
			instrument TEXT,
			account_id TEXT,
			result TEXT,
			profit DOUBLE PRECISION,
			close_time BIGINT,
			payload TEXT,
			received_at BIGINT
		);`, d.Schema),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."closed_trades" (
			ticket BIGINT,
			instrument TEXT,
			account_id TEXT,
			volume DOUBLE PRECISION,
			open_price DOUBLE PRECISION,
			close_price DOUBLE PRECISION,
			profit DOUBLE PRECISION,
			swap DOUBLE PRECISION,
			commission DOUBLE PRECISION,
			open_time BIGINT,
			close_time BIGINT,
			duration BIGINT,
			comment TEXT,
			node_id TEXT,
			PRIMARY KEY (ticket, close_time)
		);`, d.Schema),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."agent_sessions" (
			node_id TEXT PRIMARY KEY,
			session_id TEXT,
			account_id TEXT,
			source_name TEXT,
			status TEXT,
			balance DOUBLE PRECISION,
			equity DOUBLE PRECISION,
			server TEXT,
			agent_version TEXT,
			connected_at BIGINT,
			disconnected_at BIGINT,
			total_uptime BIGINT
		);`, d.Schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_closed_trades_close_time ON "%s"."closed_trades" (close_time);`, d.Schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_confirmations_received_at ON "%s"."confirmations" (received_at);`, d.Schema),
	}

	for _, q := range queries {
		if _, err := d.DB.Exec(q); err != nil {
			return fmt.Errorf("failed to create schema objects: %w", err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) AppendConfirmation(event models.MConfirmationEvent) error {
	query := fmt.Sprintf(`
		INSERT INTO "%s"."confirmations" (ticket, instrument, account_id, result, profit, close_time, payload, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, d.Schema)
	_, err := d.DB.Exec(query, event.Ticket, event.Instrument, event.AccountID, event.Result, event.Profit, event.CloseTime, event.Raw, time.Now().UTC().Unix())
	return err
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveClosedTrade(p models.MPosition) error {
	query := fmt.Sprintf(`
		INSERT INTO "%s"."closed_trades"
			(ticket, instrument, account_id, volume, open_price, close_price, profit, swap, commission, open_time, close_time, duration, comment, node_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (ticket, close_time) DO UPDATE SET
			profit = excluded.profit,
			duration = excluded.duration,
			comment = excluded.comment
	`, d.Schema)
	_, err := d.DB.Exec(query, p.Ticket, p.Instrument, p.AccountID, p.Volume, p.OpenPrice, p.ClosePrice, p.Profit, p.Swap, p.Commission, p.OpenTime, p.CloseTime, p.Duration, p.Comment, p.NodeID)
	return err
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveAgentSession(r models.MAgentRecord) error {
	query := fmt.Sprintf(`
		INSERT INTO "%s"."agent_sessions"
			(node_id, session_id, account_id, source_name, status, balance, equity, server, agent_version, connected_at, disconnected_at, total_uptime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (node_id) DO UPDATE SET
			status = excluded.status,
			disconnected_at = excluded.disconnected_at,
			total_uptime = excluded.total_uptime
	`, d.Schema)
	_, err := d.DB.Exec(query, r.NodeID, r.SessionID, r.AccountID, r.SourceName, r.Status, r.Balance, r.Equity, r.Server, r.AgentVersion, r.ConnectedAt, r.DisconnectedAt, r.TotalUptime)
	return err
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) RecentTrades(scope string, limit int) ([]models.MPosition, error) {
	query := fmt.Sprintf(`
		SELECT ticket, instrument, account_id, volume, open_price, close_price, profit, swap, commission, open_time, close_time, duration, comment, node_id
		FROM "%s"."closed_trades"
	`, d.Schema)
	var args []interface{}

	where, arg := scopeFilter(scope)
	if where != "" {
		query += " WHERE " + strings.Replace(where, "?", "$1", 1)
		args = append(args, arg)
		query += " ORDER BY close_time DESC LIMIT $2"
	} else {
		query += " ORDER BY close_time DESC LIMIT $1"
	}
	args = append(args, limit)

	rows, err := d.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) CleanupOldData() error {
	retentionDays := d.Config.Storage.RetentionDays
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Unix()

	tables := []struct{ table, column string }{
		{"confirmations", "received_at"},
		{"closed_trades", "close_time"},
	}
	for _, t := range tables {
		query := fmt.Sprintf(`DELETE FROM "%s"."%s" WHERE %s < $1`, d.Schema, t.table, t.column)
		if _, err := d.DB.Exec(query, cutoff); err != nil {
			d.Logger.Error("Cleanup %s error: %v", t.table, err)
		}
	}

	query := fmt.Sprintf(`DELETE FROM "%s"."agent_sessions" WHERE disconnected_at > 0 AND disconnected_at < $1`, d.Schema)
	if _, err := d.DB.Exec(query, cutoff); err != nil {
		d.Logger.Error("Cleanup agent_sessions error: %v", err)
	}

	d.Logger.Info("Cleanup completed (retention %d days)", retentionDays)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
