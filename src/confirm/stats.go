package confirm

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"fleet-observer/src/models"
	"fleet-observer/src/store"
)

// Counter names under stats:<scope>:.
const (
	counterTotalTrades = "total_trades"
	counterWins        = "wins"
	counterLosses      = "losses"
	counterTotalProfit = "total_profit"
	counterTotalLoss   = "total_loss"
	counterLargestWin  = "largest_win"
	counterLargestLoss = "largest_loss"
)

// ScopeGlobal is the fleet-wide stats scope.
const ScopeGlobal = "global"

// -----------------------------------------------------------------------------

func ScopeSymbol(instrument string) string {
	return "symbol:" + instrument
}

func ScopeAccount(accountID string) string {
	return "account:" + accountID
}

// -----------------------------------------------------------------------------

// applyStats increments the win/loss counters of every scope a closed trade
// belongs to. Counters within a scope are individually atomic increments;
// across the three scopes (and across counters) the update is only eventually
// consistent: a crash mid-way leaves them briefly diverged, which aggregate
// reporting tolerates.
func (in *Ingestor) applyStats(ctx context.Context, position models.MPosition) {
	scopes := []string{ScopeGlobal, ScopeSymbol(position.Instrument)}
	if position.AccountID != "" {
		scopes = append(scopes, ScopeAccount(position.AccountID))
	}

	win := position.Profit > 0
	magnitude := position.Profit
	if !win {
		magnitude = -position.Profit
	}

	for _, scope := range scopes {
		in.incr(ctx, scope, counterTotalTrades, 1)
		if win {
			in.incr(ctx, scope, counterWins, 1)
			in.incrFloat(ctx, scope, counterTotalProfit, magnitude)
			in.trackLargest(ctx, scope, counterLargestWin, magnitude)
		} else {
			in.incr(ctx, scope, counterLosses, 1)
			in.incrFloat(ctx, scope, counterTotalLoss, magnitude)
			in.trackLargest(ctx, scope, counterLargestLoss, magnitude)
		}
	}
}

// -----------------------------------------------------------------------------

func (in *Ingestor) incr(ctx context.Context, scope, counter string, n int64) {
	if _, err := in.Store.IncrBy(ctx, store.KeyStat(scope, counter), n); err != nil {
		in.Logger.Error("Stats increment %s/%s failed: %v", scope, counter, err)
	}
}

func (in *Ingestor) incrFloat(ctx context.Context, scope, counter string, f float64) {
	if _, err := in.Store.IncrByFloat(ctx, store.KeyStat(scope, counter), f); err != nil {
		in.Logger.Error("Stats increment %s/%s failed: %v", scope, counter, err)
	}
}

// -----------------------------------------------------------------------------

// trackLargest is a read-compare-set: racy under concurrent closers, and the
// occasional lost update is tolerated the same way cross-key divergence is.
func (in *Ingestor) trackLargest(ctx context.Context, scope, counter string, value float64) {
	key := store.KeyStat(scope, counter)
	current := in.readFloat(ctx, key)
	if value <= current {
		return
	}
	if err := in.Store.Set(ctx, key, strconv.FormatFloat(value, 'f', -1, 64)); err != nil {
		in.Logger.Error("Stats update %s failed: %v", key, err)
	}
}

// -----------------------------------------------------------------------------
// Stats queries
// -----------------------------------------------------------------------------

// WinRate returns wins/total_trades for a scope. The second return is false
// when the scope has no trades at all: "no data" is not 0.0.
func (in *Ingestor) WinRate(ctx context.Context, scope string) (float64, bool) {
	if scope == "" {
		scope = ScopeGlobal
	}
	total := in.readInt(ctx, store.KeyStat(scope, counterTotalTrades))
	if total == 0 {
		return 0, false
	}
	wins := in.readInt(ctx, store.KeyStat(scope, counterWins))
	return float64(wins) / float64(total), true
}

// -----------------------------------------------------------------------------

// Stats reads every counter of one scope.
func (in *Ingestor) Stats(ctx context.Context, scope string) models.MStatsScope {
	if scope == "" {
		scope = ScopeGlobal
	}
	return models.MStatsScope{
		Scope:       scope,
		TotalTrades: in.readInt(ctx, store.KeyStat(scope, counterTotalTrades)),
		Wins:        in.readInt(ctx, store.KeyStat(scope, counterWins)),
		Losses:      in.readInt(ctx, store.KeyStat(scope, counterLosses)),
		TotalProfit: in.readFloat(ctx, store.KeyStat(scope, counterTotalProfit)),
		TotalLoss:   in.readFloat(ctx, store.KeyStat(scope, counterTotalLoss)),
		LargestWin:  in.readFloat(ctx, store.KeyStat(scope, counterLargestWin)),
		LargestLoss: in.readFloat(ctx, store.KeyStat(scope, counterLargestLoss)),
	}
}

// -----------------------------------------------------------------------------

// OpenPositions returns every position currently open, for live-exposure views.
func (in *Ingestor) OpenPositions(ctx context.Context) ([]models.MPosition, error) {
	keys, err := in.Store.Keys(ctx, store.PrefixOpenPos+"*")
	if err != nil {
		return nil, err
	}

	var positions []models.MPosition
	for _, key := range keys {
		raw, err := in.Store.Get(ctx, key)
		if err != nil {
			continue
		}
		var position models.MPosition
		if err := json.Unmarshal([]byte(raw), &position); err != nil {
			in.Logger.Warning("Corrupt position at %s: %v", key, err)
			continue
		}
		positions = append(positions, position)
	}
	return positions, nil
}

// -----------------------------------------------------------------------------

// RecentTrades serves closed-trade history from the durable database.
func (in *Ingestor) RecentTrades(ctx context.Context, scope string, limit int) ([]models.MPosition, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	scope = strings.TrimSpace(scope)
	return in.DB.RecentTrades(scope, limit)
}

// -----------------------------------------------------------------------------

func (in *Ingestor) readInt(ctx context.Context, key string) int64 {
	raw, err := in.Store.Get(ctx, key)
	if err != nil {
		return 0
	}
	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return val
}

func (in *Ingestor) readFloat(ctx context.Context, key string) float64 {
	raw, err := in.Store.Get(ctx, key)
	if err != nil {
		return 0
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return val
}
