package ticks

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"fleet-observer/src/classifier"
	"fleet-observer/src/helpers"
	"fleet-observer/src/interfaces"
	"fleet-observer/src/logger"
	"fleet-observer/src/models"
	"fleet-observer/src/store"
	"fleet-observer/src/utils"
)

// manipulationFactor is the spread-abuse threshold: a spread is flagged when
// it exceeds factor * baseline(instrument) * profile.multiplier. Exactly at
// the threshold is NOT manipulation.
const manipulationFactor = 1.5

// latencySamples is the rolling window of per-source batch latencies.
const latencySamples = 100

// -----------------------------------------------------------------------------
// Processor ingests source-tagged tick batches and serves the aggregated
// cross-source views. All tick state lives in the shared store; the processor
// itself only keeps observability samples.
// -----------------------------------------------------------------------------

type Processor struct {
	Config     *models.MConfig
	Store      interfaces.IStore
	Classifier *classifier.SourceClassifier
	Session    *utils.MarketSession
	Logger     *logger.Logger

	supported map[string]struct{}
	tickTTL   time.Duration

	mu        sync.Mutex
	latency   map[string]*utils.RingBuffer // per source, ms
	detectors []interfaces.ISweepDetector
}

// -----------------------------------------------------------------------------

func NewProcessor(cfg *models.MConfig, st interfaces.IStore, cl *classifier.SourceClassifier, session *utils.MarketSession, log *logger.Logger) *Processor {
	supported := make(map[string]struct{}, len(cfg.Ingest.Instruments))
	for _, inst := range cfg.Ingest.Instruments {
		supported[inst] = struct{}{}
	}

	return &Processor{
		Config:     cfg,
		Store:      st,
		Classifier: cl,
		Session:    session,
		Logger:     log,
		supported:  supported,
		tickTTL:    time.Duration(cfg.Ingest.TickTTLSeconds) * time.Second,
		latency:    make(map[string]*utils.RingBuffer),
	}
}

// -----------------------------------------------------------------------------

// RegisterDetector plugs a liquidity-scan detector into GetSpreadAnalysis.
func (p *Processor) RegisterDetector(d interfaces.ISweepDetector) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.detectors = append(p.detectors, d)
	p.Logger.Info("Registered sweep detector: %s", d.Name())
}

// -----------------------------------------------------------------------------
// Ingestion
// -----------------------------------------------------------------------------

// Ingest validates one batch and writes the accepted ticks to the store.
// Batch-level failures (wrong source tag) reject the whole batch; a bad tick
// inside a valid batch is skipped, never fails the batch. Store write
// failures degrade to validate-only: logged, the caller still gets a result.
func (p *Processor) Ingest(ctx context.Context, batch models.MTickBatch) (models.MIngestResult, error) {
	if batch.SourceTag != p.Config.Ingest.LiveSourceTag {
		return models.MIngestResult{}, helpers.NewForbiddenSource("forbidden source tag from agent %s", batch.AgentUUID)
	}
	if batch.SourceName == "" {
		return models.MIngestResult{}, helpers.NewRejectedInput("batch missing source name")
	}

	start := time.Now()
	profile := p.Classifier.Classify(batch.SourceName)

	accepted := 0
	manipulations := 0
	degraded := false

	for _, raw := range batch.Ticks {
		if _, ok := p.supported[raw.Instrument]; !ok {
			p.Logger.Debug("Skipping unsupported instrument '%s' from %s", raw.Instrument, batch.SourceName)
			continue
		}
		if raw.Bid <= 0 || raw.Ask <= 0 {
			p.Logger.Debug("Skipping non-positive quote for %s from %s (bid=%f ask=%f)", raw.Instrument, batch.SourceName, raw.Bid, raw.Ask)
			continue
		}

		tick := p.enrich(raw, batch, profile)
		if tick.ManipulationFlag {
			manipulations++
		}
		accepted++

		if err := p.writeTick(ctx, tick); err != nil {
			// Validate-only degradation: the agent is not penalized for a
			// sick store, and the loop keeps validating the rest.
			if !degraded {
				p.Logger.Warning("Store write failed, degrading batch from %s to validate-only: %v", batch.SourceName, err)
				degraded = true
			}
		}
	}

	elapsed := float64(time.Since(start).Microseconds()) / 1000.0
	p.recordLatency(batch.SourceName, elapsed)

	return models.MIngestResult{
		Status:            "ok",
		AcceptedCount:     accepted,
		SourceName:        batch.SourceName,
		ProcessingTimeMs:  elapsed,
		ManipulationCount: manipulations,
		AgentUUID:         batch.AgentUUID,
	}, nil
}

// -----------------------------------------------------------------------------

func (p *Processor) enrich(raw models.MRawTick, batch models.MTickBatch, profile models.MSourceProfile) models.MTick {
	baseline := p.Config.Ingest.SpreadBaseline[raw.Instrument]

	// observed_at is the agent's event time; last_update is ours, stamped at
	// write time, so readers can tell staleness from clock skew.
	now := time.Now().Unix()
	observed := raw.ObservedAt
	if observed == 0 {
		observed = now
	}

	return models.MTick{
		Instrument:       raw.Instrument,
		Bid:              raw.Bid,
		Ask:              raw.Ask,
		Spread:           raw.Spread,
		Volume:           raw.Volume,
		ObservedAt:       observed,
		LastUpdate:       now,
		SourceName:       batch.SourceName,
		SourceServer:     batch.SourceServer,
		AgentUUID:        batch.AgentUUID,
		SourceType:       profile.Type,
		ManipulationFlag: raw.Spread > manipulationFactor*baseline*profile.SpreadMultiplier,
	}
}

// -----------------------------------------------------------------------------

// writeTick stores the instrument's latest value (last-write-wins, no
// cross-source ordering) and appends to the capped per-source history. The
// two keys are independent; a failure in between leaves them briefly
// diverged, which the store contract tolerates.
func (p *Processor) writeTick(ctx context.Context, tick models.MTick) error {
	payload, err := json.Marshal(tick)
	if err != nil {
		return err
	}

	if err := p.Store.SetWithTTL(ctx, store.KeyTickLatest(tick.Instrument), string(payload), p.tickTTL); err != nil {
		return err
	}

	return p.appendHistory(ctx, tick)
}

// -----------------------------------------------------------------------------

// appendHistory read-modify-writes the per-source buffer. Concurrent agents
// on the same source can race here; losing one history entry is acceptable,
// the latest view never depends on it.
func (p *Processor) appendHistory(ctx context.Context, tick models.MTick) error {
	key := store.KeyTickHistory(tick.SourceName, tick.Instrument)

	var history []models.MTick
	existing, err := p.Store.Get(ctx, key)
	if err == nil {
		if uerr := json.Unmarshal([]byte(existing), &history); uerr != nil {
			p.Logger.Warning("Corrupt history at %s, resetting: %v", key, uerr)
			history = nil
		}
	} else if !helpers.IsNotFound(err) {
		return err
	}

	history = append(history, tick)
	if depth := p.Config.Ingest.HistoryDepth; len(history) > depth {
		history = history[len(history)-depth:]
	}

	payload, err := json.Marshal(history)
	if err != nil {
		return err
	}
	return p.Store.SetWithTTL(ctx, key, string(payload), p.tickTTL)
}

// -----------------------------------------------------------------------------

func (p *Processor) recordLatency(sourceName string, elapsedMs float64) {
	p.mu.Lock()
	buf, ok := p.latency[sourceName]
	if !ok {
		buf = utils.NewRingBuffer(latencySamples)
		p.latency[sourceName] = buf
	}
	buf.Append(elapsedMs)
	median := buf.Median()
	p.mu.Unlock()

	if median > p.Config.Ingest.TargetBatchMs {
		p.Logger.Warning("Median batch latency for %s is %.2fms (target %.2fms)", sourceName, median, p.Config.Ingest.TargetBatchMs)
	}
}

// -----------------------------------------------------------------------------
// Queries
// -----------------------------------------------------------------------------

// GetAll returns the latest non-expired tick per instrument across all
// sources. Expired keys are simply absent from the store scan.
func (p *Processor) GetAll(ctx context.Context) (map[string]models.MTick, error) {
	keys, err := p.Store.Keys(ctx, store.PrefixTickLatest+"*")
	if err != nil {
		return nil, err
	}

	result := make(map[string]models.MTick, len(keys))
	for _, key := range keys {
		raw, err := p.Store.Get(ctx, key)
		if err != nil {
			// Expired between scan and read; nothing to report.
			continue
		}
		var tick models.MTick
		if err := json.Unmarshal([]byte(raw), &tick); err != nil {
			p.Logger.Warning("Corrupt tick at %s: %v", key, err)
			continue
		}
		result[tick.Instrument] = tick
	}
	return result, nil
}

// -----------------------------------------------------------------------------

// GetSpreadAnalysis reports every source's current spread per instrument and
// the best-execution source (minimum spread), then feeds the view to any
// registered sweep detectors.
func (p *Processor) GetSpreadAnalysis(ctx context.Context) (map[string]models.MSpreadAnalysis, error) {
	keys, err := p.Store.Keys(ctx, store.PrefixTickHistory+"*")
	if err != nil {
		return nil, err
	}

	view := make(map[string]models.MSpreadAnalysis)
	for _, key := range keys {
		sourceName, instrument, ok := splitHistoryKey(key)
		if !ok {
			continue
		}

		raw, err := p.Store.Get(ctx, key)
		if err != nil {
			continue
		}
		var history []models.MTick
		if err := json.Unmarshal([]byte(raw), &history); err != nil || len(history) == 0 {
			continue
		}
		head := history[len(history)-1]

		analysis := view[instrument]
		analysis.Instrument = instrument
		analysis.Sources = append(analysis.Sources, models.MSourceSpread{
			SourceName:       sourceName,
			Spread:           head.Spread,
			ManipulationFlag: head.ManipulationFlag,
			ObservedAt:       head.ObservedAt,
		})
		view[instrument] = analysis
	}

	// Best execution = minimum current spread.
	for instrument, analysis := range view {
		best := ""
		bestSpread := 0.0
		for _, src := range analysis.Sources {
			if best == "" || src.Spread < bestSpread {
				best = src.SourceName
				bestSpread = src.Spread
			}
		}
		analysis.BestExecutionSource = best
		view[instrument] = analysis
	}

	p.runDetectors(view)
	return view, nil
}

// -----------------------------------------------------------------------------

func (p *Processor) runDetectors(view map[string]models.MSpreadAnalysis) {
	p.mu.Lock()
	detectors := make([]interfaces.ISweepDetector, len(p.detectors))
	copy(detectors, p.detectors)
	p.mu.Unlock()

	for _, d := range detectors {
		for _, alert := range d.Scan(view) {
			p.Logger.Warning("Sweep alert [%s] %s/%s: %s (%.5f)", d.Name(), alert.Instrument, alert.SourceName, alert.Detail, alert.Value)
		}
	}
}

// -----------------------------------------------------------------------------

// Health reports store connectivity, live instrument count, per-source
// average batch latency and the market session state (open, thin liquidity).
func (p *Processor) Health(ctx context.Context) models.MHealth {
	now := time.Now()
	health := models.MHealth{
		Status:        "ok",
		AvgLatencyMs:  make(map[string]float64),
		MarketOpen:    p.Session.IsOpen(now),
		ThinLiquidity: p.Session.IsThinLiquidity(now),
		Timestamp:     now.Unix(),
	}

	if err := p.Store.Ping(ctx); err != nil {
		health.Status = "degraded"
		health.StoreConnected = false
	} else {
		health.StoreConnected = true
		if keys, err := p.Store.Keys(ctx, store.PrefixTickLatest+"*"); err == nil {
			health.LiveInstruments = len(keys)
		}
	}

	p.mu.Lock()
	for source, buf := range p.latency {
		health.AvgLatencyMs[source] = buf.Average()
	}
	p.mu.Unlock()

	return health
}

// -----------------------------------------------------------------------------

// splitHistoryKey parses "tick:history:<source>:<instrument>". Source names
// never contain a colon, instruments neither; the last segment wins.
func splitHistoryKey(key string) (sourceName, instrument string, ok bool) {
	rest := strings.TrimPrefix(key, store.PrefixTickHistory)
	idx := strings.LastIndex(rest, ":")
	if idx <= 0 || idx == len(rest)-1 {
		return "", "", false
	}
	return rest[:idx], rest[idx+1:], true
}
