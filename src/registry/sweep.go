package registry

import (
	"context"
	"time"

	"fleet-observer/src/models"
	"fleet-observer/src/utils"
)

// -----------------------------------------------------------------------------
// Background sweep: expires silent agents and logs fleet-wide counts.
// Independent of the request path; every iteration is idempotent, so a
// restart mid-sweep is harmless. Cancellation only through ctx at shutdown.
// -----------------------------------------------------------------------------

// Run blocks until ctx is cancelled, sweeping every SweepIntervalSeconds.
func (r *Registry) Run(ctx context.Context, session *utils.MarketSession) {
	interval := time.Duration(r.Config.Registry.SweepIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.Logger.Info("Registry sweep running every %v (heartbeat timeout %v)", interval, r.timeout)

	for {
		select {
		case <-ticker.C:
			r.SweepOnce(ctx)
			r.logFleet(ctx, session)
		case <-ctx.Done():
			r.Logger.Info("Registry sweep stopped")
			return
		}
	}
}

// -----------------------------------------------------------------------------

// SweepOnce force-transitions every active node whose last heartbeat is older
// than the timeout to status "timeout". Returns the number of expired nodes.
func (r *Registry) SweepOnce(ctx context.Context) int {
	active, err := r.GetActive(ctx)
	if err != nil {
		r.Logger.Error("Sweep could not list active nodes: %v", err)
		return 0
	}

	now := r.Now()
	cutoff := now.Unix() - int64(r.timeout.Seconds())

	expired := 0
	for _, record := range active {
		if record.LastHeartbeat >= cutoff {
			continue
		}
		r.terminate(ctx, record, models.StatusTimeout, now)
		r.Logger.Warning("Node %s (account %s) timed out after %ds of silence",
			record.NodeID, record.AccountID, now.Unix()-record.LastHeartbeat)
		expired++
	}
	return expired
}

// -----------------------------------------------------------------------------

// logFleet reports the census. Info while the market session is open; a
// silent weekend fleet only gets Debug so it does not drown the logs.
func (r *Registry) logFleet(ctx context.Context, session *utils.MarketSession) {
	stats, err := r.GetStats(ctx)
	if err != nil {
		r.Logger.Error("Sweep could not aggregate fleet stats: %v", err)
		return
	}

	logf := r.Logger.Info
	if session != nil && !session.IsOpen(r.Now()) {
		logf = r.Logger.Debug
	}

	logf("Fleet: %d nodes, %d accounts, %d sources, balance %.2f, equity %.2f",
		stats.ActiveNodes, stats.UniqueAccounts, stats.UniqueSources, stats.TotalBalance, stats.TotalEquity)
	for source, census := range stats.PerSource {
		logf("  %s: %d nodes, balance %.2f, equity %.2f", source, census.Nodes, census.Balance, census.Equity)
	}
}
