package confirm

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"fleet-observer/src/helpers"
	"fleet-observer/src/interfaces"
	"fleet-observer/src/logger"
	"fleet-observer/src/models"
	"fleet-observer/src/store"
)

// dedupTTL bounds how long a (ticket, result, close_time) marker is held.
// Agents re-send unacknowledged confirmations within minutes, not days.
const dedupTTL = 24 * time.Hour

// closedPositionTTL keeps just-closed positions readable from the store; the
// durable closed_trades table is the long-term record.
const closedPositionTTL = 24 * time.Hour

// -----------------------------------------------------------------------------
// Ingestor consumes trade-execution confirmations from the pull transport,
// one JSON event per receive, at-least-once. Every accepted event lands in
// the append-only audit table before anything else; processing failures are
// logged and never abort the loop.
// -----------------------------------------------------------------------------

type Ingestor struct {
	Config *models.MConfig
	Store  interfaces.IStore
	Queue  interfaces.IQueue
	DB     interfaces.IDatabase
	Logger *logger.Logger

	// Now is the clock for receive timestamps. Overridable in tests.
	Now func() time.Time
}

// -----------------------------------------------------------------------------

func NewIngestor(cfg *models.MConfig, st interfaces.IStore, q interfaces.IQueue, db interfaces.IDatabase, log *logger.Logger) *Ingestor {
	return &Ingestor{
		Config: cfg,
		Store:  st,
		Queue:  q,
		DB:     db,
		Logger: log,
		Now:    time.Now,
	}
}

// -----------------------------------------------------------------------------
// Pull loop
// -----------------------------------------------------------------------------

// Run blocks until ctx is cancelled. Nothing that happens to a single event
// can take the loop down.
func (in *Ingestor) Run(ctx context.Context) {
	in.Logger.Info("Confirmation ingestor running")

	for {
		select {
		case <-ctx.Done():
			in.Logger.Info("Confirmation ingestor stopped")
			return
		default:
		}

		payload, err := in.Queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, helpers.ErrQueueEmpty) {
				continue
			}
			if ctx.Err() != nil {
				in.Logger.Info("Confirmation ingestor stopped")
				return
			}
			in.Logger.Error("Receive failed: %v", err)
			// Back off so a dead transport does not spin the loop hot.
			time.Sleep(time.Second)
			continue
		}

		if err := in.Process(ctx, payload); err != nil {
			in.Logger.Error("Event processing failed: %v", err)
		}
	}
}

// -----------------------------------------------------------------------------

// Process handles one raw confirmation payload.
func (in *Ingestor) Process(ctx context.Context, payload []byte) error {
	var event models.MConfirmationEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		in.Logger.Warning("Dropping unparseable confirmation: %v", err)
		return nil
	}
	event.Raw = string(payload)

	if event.Ticket == 0 || event.Instrument == "" || event.Result == "" {
		in.Logger.Warning("Dropping confirmation missing ticket/instrument/result (ticket=%d)", event.Ticket)
		return nil
	}

	// Audit first, outcome of everything downstream notwithstanding.
	if err := in.DB.AppendConfirmation(event); err != nil {
		in.Logger.Error("Audit append failed for ticket %d: %v", event.Ticket, err)
	}

	switch event.Result {
	case models.ResultOpened:
		return in.handleOpen(ctx, event)
	case models.ResultClosed, models.ResultSuccess:
		return in.handleClose(ctx, event)
	default:
		in.Logger.Debug("Ignoring confirmation result '%s' for ticket %d", event.Result, event.Ticket)
		return nil
	}
}

// -----------------------------------------------------------------------------

func (in *Ingestor) handleOpen(ctx context.Context, event models.MConfirmationEvent) error {
	position := models.MPosition{
		Ticket:     event.Ticket,
		Instrument: event.Instrument,
		AccountID:  event.AccountID,
		Volume:     event.Volume,
		OpenPrice:  event.OpenPrice,
		StopLoss:   event.StopLoss,
		TakeProfit: event.TakeProfit,
		OpenTime:   event.OpenTime,
		Status:     models.PositionOpen,
		Comment:    event.Comment,
		NodeID:     event.NodeID,
	}
	if position.OpenTime == 0 {
		position.OpenTime = in.Now().Unix()
	}

	payload, err := json.Marshal(position)
	if err != nil {
		return err
	}
	return in.Store.Set(ctx, store.KeyOpenPosition(event.Ticket), string(payload))
}

// -----------------------------------------------------------------------------

// handleClose marks the ticket closed and updates all three stats scopes in
// the same logical update. Closes are accepted unconditionally: a missing
// open record is tolerated (the open may predate this process) but logged.
func (in *Ingestor) handleClose(ctx context.Context, event models.MConfirmationEvent) error {
	// At-least-once delivery makes duplicate closes routine, and a replayed
	// close must not double-count the stats. Mark before counting.
	fresh, err := in.Store.SetNX(ctx, store.KeyConfirmSeen(event.Ticket, event.Result, event.CloseTime), "1", dedupTTL)
	if err != nil {
		// No dedup without the store, but no stats either; nothing to protect.
		return err
	}
	if !fresh {
		in.Logger.Warning("Duplicate close for ticket %d (close_time %d), skipped", event.Ticket, event.CloseTime)
		return nil
	}

	position := in.resolveOpen(ctx, event)

	position.ClosePrice = event.ClosePrice
	position.Profit = event.Profit
	position.Swap = event.Swap
	position.Commission = event.Commission
	position.CloseTime = event.CloseTime
	if position.CloseTime == 0 {
		position.CloseTime = in.Now().Unix()
	}
	if position.OpenTime > 0 {
		position.Duration = position.CloseTime - position.OpenTime
	}
	position.Status = models.PositionClosed

	if err := in.Store.Delete(ctx, store.KeyOpenPosition(event.Ticket)); err != nil {
		in.Logger.Warning("Could not clear open position %d: %v", event.Ticket, err)
	}
	if payload, err := json.Marshal(position); err == nil {
		if err := in.Store.SetWithTTL(ctx, store.KeyClosedPosition(event.Ticket), string(payload), closedPositionTTL); err != nil {
			in.Logger.Warning("Could not store closed position %d: %v", event.Ticket, err)
		}
	}

	if err := in.DB.SaveClosedTrade(position); err != nil {
		in.Logger.Error("Could not persist closed trade %d: %v", event.Ticket, err)
	}

	in.applyStats(ctx, position)
	return nil
}

// -----------------------------------------------------------------------------

func (in *Ingestor) resolveOpen(ctx context.Context, event models.MConfirmationEvent) models.MPosition {
	raw, err := in.Store.Get(ctx, store.KeyOpenPosition(event.Ticket))
	if err == nil {
		var position models.MPosition
		if uerr := json.Unmarshal([]byte(raw), &position); uerr == nil {
			return position
		}
		in.Logger.Warning("Corrupt open position %d, rebuilding from close event", event.Ticket)
	} else {
		in.Logger.Warning("Close for ticket %d with no open record", event.Ticket)
	}

	return models.MPosition{
		Ticket:     event.Ticket,
		Instrument: event.Instrument,
		AccountID:  event.AccountID,
		Volume:     event.Volume,
		OpenPrice:  event.OpenPrice,
		OpenTime:   event.OpenTime,
		Comment:    event.Comment,
		NodeID:     event.NodeID,
	}
}
