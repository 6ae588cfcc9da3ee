package ticks

import "fleet-observer/src/models"

// -----------------------------------------------------------------------------
// NoopDetector is the bundled sweep/liquidity-gap detector: it scans nothing
// and alerts on nothing. Concrete detection logic plugs in through
// interfaces.ISweepDetector without touching the processor.
// -----------------------------------------------------------------------------

type NoopDetector struct{}

func (NoopDetector) Name() string {
	return "noop"
}

func (NoopDetector) Scan(view map[string]models.MSpreadAnalysis) []models.MSweepAlert {
	return nil
}
