package registry

import (
	"context"
	"encoding/json"
	"time"

	"fleet-observer/src/helpers"
	"fleet-observer/src/interfaces"
	"fleet-observer/src/logger"
	"fleet-observer/src/models"
	"fleet-observer/src/store"

	"github.com/google/uuid"
)

// terminalRecordTTL keeps replaced/disconnected/timed-out node records
// readable for a day before the store expires them; the durable archive in
// the database outlives that.
const terminalRecordTTL = 24 * time.Hour

// -----------------------------------------------------------------------------
// Registry tracks the lifecycle of every connected agent. One record is
// "current" per account at any time; at most one record per account carries
// status "active". Lifecycle: active -> {replaced | disconnected | timeout},
// all terminal for that node_id. A re-registration always mints a new one.
// -----------------------------------------------------------------------------

type Registry struct {
	Config *models.MConfig
	Store  interfaces.IStore
	DB     interfaces.IDatabase
	Logger *logger.Logger

	// Now is the clock used for uptime and timeout math. Overridable in tests.
	Now func() time.Time

	timeout time.Duration
}

// -----------------------------------------------------------------------------

func NewRegistry(cfg *models.MConfig, st interfaces.IStore, db interfaces.IDatabase, log *logger.Logger) *Registry {
	return &Registry{
		Config:  cfg,
		Store:   st,
		DB:      db,
		Logger:  log,
		Now:     time.Now,
		timeout: time.Duration(cfg.Registry.HeartbeatTimeoutSeconds) * time.Second,
	}
}

// -----------------------------------------------------------------------------
// Registration
// -----------------------------------------------------------------------------

// Register mints a node for the handshake and returns the stored record. If
// the account already maps to an active node, that node is transitioned to
// "replaced" first, since clients reconnect after network blips faster than
// their old session times out.
func (r *Registry) Register(ctx context.Context, handshake models.MHandshake) (models.MAgentRecord, error) {
	if handshake.AccountID == "" || handshake.SourceName == "" {
		return models.MAgentRecord{}, helpers.NewRejectedInput("handshake missing account_id or source_name")
	}

	now := r.Now()

	// Replace the account's previous node, if any is still live.
	if prevID, err := r.Store.Get(ctx, store.KeyAccount(handshake.AccountID)); err == nil {
		if prev, perr := r.loadNode(ctx, prevID); perr == nil && prev.Status == models.StatusActive {
			r.terminate(ctx, prev, models.StatusReplaced, now)
			r.Logger.Info("Account %s reconnected; node %s replaced", handshake.AccountID, prev.NodeID)
		}
	}

	record := models.MAgentRecord{
		NodeID:          uuid.NewString(),
		AccountID:       handshake.AccountID,
		SourceName:      handshake.SourceName,
		Balance:         handshake.Balance,
		Equity:          handshake.Equity,
		InstrumentInUse: handshake.InstrumentInUse,
		Server:          handshake.Server,
		AgentVersion:    handshake.AgentVersion,
		MagicNumber:     handshake.MagicNumber,
		ConnectedAt:     now.Unix(),
		LastHeartbeat:   now.Unix(),
		Status:          models.StatusActive,
		ConnectionIP:    handshake.ConnectionIP,
		SessionID:       uuid.NewString(),
	}

	if err := r.saveNode(ctx, record, 0); err != nil {
		return models.MAgentRecord{}, err
	}
	if err := r.Store.Set(ctx, store.KeyAccount(handshake.AccountID), record.NodeID); err != nil {
		return models.MAgentRecord{}, err
	}

	r.Logger.Info("Registered node %s for account %s on %s", record.NodeID, record.AccountID, record.SourceName)
	return record, nil
}

// -----------------------------------------------------------------------------

// Heartbeat refreshes a node's liveness window and optional account fields.
// An unknown or already-terminal node gets a warning and false, never an error.
func (r *Registry) Heartbeat(ctx context.Context, hb models.MHeartbeat) bool {
	record, err := r.loadNode(ctx, hb.NodeID)
	if err != nil {
		r.Logger.Warning("Heartbeat from unknown node %s", hb.NodeID)
		return false
	}
	if record.Status != models.StatusActive {
		r.Logger.Warning("Heartbeat from terminal node %s (status %s)", hb.NodeID, record.Status)
		return false
	}

	record.LastHeartbeat = r.Now().Unix()
	if hb.Balance != nil {
		record.Balance = *hb.Balance
	}
	if hb.Equity != nil {
		record.Equity = *hb.Equity
	}
	if hb.InstrumentInUse != "" {
		record.InstrumentInUse = hb.InstrumentInUse
	}

	if err := r.saveNode(ctx, record, 0); err != nil {
		r.Logger.Warning("Failed to persist heartbeat for node %s: %v", hb.NodeID, err)
		return false
	}
	return true
}

// -----------------------------------------------------------------------------

// Disconnect transitions a node to "disconnected" and clears the account
// mapping only if this node still owns it.
func (r *Registry) Disconnect(ctx context.Context, nodeID, reason string) bool {
	record, err := r.loadNode(ctx, nodeID)
	if err != nil {
		r.Logger.Warning("Disconnect for unknown node %s (reason %s)", nodeID, reason)
		return false
	}
	if record.Status != models.StatusActive {
		r.Logger.Warning("Disconnect for terminal node %s (status %s)", nodeID, record.Status)
		return false
	}

	record = r.terminate(ctx, record, models.StatusDisconnected, r.Now())
	r.Logger.Info("Node %s disconnected (reason %s, uptime %ds)", nodeID, reason, record.TotalUptime)
	return true
}

// -----------------------------------------------------------------------------

// SwitchAccount handles a client instance changing trading accounts in place:
// the old node is disconnected (reason account_switch) and a fresh one minted.
func (r *Registry) SwitchAccount(ctx context.Context, oldNodeID string, handshake models.MHandshake) (models.MAgentRecord, error) {
	if !r.Disconnect(ctx, oldNodeID, "account_switch") {
		r.Logger.Warning("Account switch with no live old node %s; registering fresh", oldNodeID)
	}
	return r.Register(ctx, handshake)
}

// -----------------------------------------------------------------------------
// Queries
// -----------------------------------------------------------------------------

// GetActive returns every node currently in the active set.
func (r *Registry) GetActive(ctx context.Context) ([]models.MAgentRecord, error) {
	keys, err := r.Store.Keys(ctx, store.PrefixNode+"*")
	if err != nil {
		return nil, err
	}

	var active []models.MAgentRecord
	for _, key := range keys {
		raw, err := r.Store.Get(ctx, key)
		if err != nil {
			continue
		}
		var record models.MAgentRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			r.Logger.Warning("Corrupt node record at %s: %v", key, err)
			continue
		}
		if record.Status == models.StatusActive {
			active = append(active, record)
		}
	}
	return active, nil
}

// -----------------------------------------------------------------------------

// GetStats aggregates the active fleet: node/account/source counts, summed
// balance and equity, and a per-source breakdown.
func (r *Registry) GetStats(ctx context.Context) (models.MFleetStats, error) {
	active, err := r.GetActive(ctx)
	if err != nil {
		return models.MFleetStats{}, err
	}

	stats := models.MFleetStats{
		PerSource: make(map[string]models.MSourceCensus),
		Timestamp: r.Now().Unix(),
	}
	accounts := make(map[string]struct{})

	for _, record := range active {
		stats.ActiveNodes++
		stats.TotalBalance += record.Balance
		stats.TotalEquity += record.Equity
		accounts[record.AccountID] = struct{}{}

		census := stats.PerSource[record.SourceName]
		census.Nodes++
		census.Balance += record.Balance
		census.Equity += record.Equity
		stats.PerSource[record.SourceName] = census
	}

	stats.UniqueAccounts = len(accounts)
	stats.UniqueSources = len(stats.PerSource)
	return stats, nil
}

// -----------------------------------------------------------------------------
// Internal state handling
// -----------------------------------------------------------------------------

func (r *Registry) loadNode(ctx context.Context, nodeID string) (models.MAgentRecord, error) {
	if nodeID == "" {
		return models.MAgentRecord{}, helpers.NewNotFound("empty node id")
	}
	raw, err := r.Store.Get(ctx, store.KeyNode(nodeID))
	if err != nil {
		return models.MAgentRecord{}, err
	}
	var record models.MAgentRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return models.MAgentRecord{}, &helpers.FleetObserverError{Message: "corrupt node record " + nodeID, Cause: err}
	}
	return record, nil
}

// -----------------------------------------------------------------------------

func (r *Registry) saveNode(ctx context.Context, record models.MAgentRecord, ttl time.Duration) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if ttl > 0 {
		return r.Store.SetWithTTL(ctx, store.KeyNode(record.NodeID), string(payload), ttl)
	}
	return r.Store.Set(ctx, store.KeyNode(record.NodeID), string(payload))
}

// -----------------------------------------------------------------------------

// terminate moves a node to a terminal status, archives it and releases the
// account mapping when this node still owns it. The three writes are not
// transactional; each step alone leaves the registry queryable. Returns the
// terminal record so callers can log final uptime.
func (r *Registry) terminate(ctx context.Context, record models.MAgentRecord, status string, now time.Time) models.MAgentRecord {
	record.Status = status
	record.DisconnectedAt = now.Unix()
	record.TotalUptime = now.Unix() - record.ConnectedAt

	if err := r.saveNode(ctx, record, terminalRecordTTL); err != nil {
		r.Logger.Error("Failed to persist terminal node %s: %v", record.NodeID, err)
	}

	if err := r.DB.SaveAgentSession(record); err != nil {
		r.Logger.Error("Failed to archive session %s: %v", record.NodeID, err)
	}

	// Release the account mapping only while it still points here; a newer
	// registration may already own it.
	if status != models.StatusReplaced {
		if current, err := r.Store.Get(ctx, store.KeyAccount(record.AccountID)); err == nil && current == record.NodeID {
			if err := r.Store.Delete(ctx, store.KeyAccount(record.AccountID)); err != nil {
				r.Logger.Error("Failed to clear account mapping for %s: %v", record.AccountID, err)
			}
		}
	}

	return record
}
