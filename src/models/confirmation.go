package models

// Confirmation results accepted by the ingestor.
const (
	ResultOpened  = "opened"
	ResultClosed  = "closed"
	ResultSuccess = "success"
)

// Position statuses.
const (
	PositionOpen   = "open"
	PositionClosed = "closed"
)

// -----------------------------------------------------------------------------
// Confirmation Structures
// -----------------------------------------------------------------------------

// MConfirmationEvent is one trade-execution confirmation pulled off the queue.
type MConfirmationEvent struct {
	Ticket     int64   `json:"ticket"`
	Instrument string  `json:"instrument"`
	AccountID  string  `json:"account_id"`
	Result     string  `json:"result"`
	Volume     float64 `json:"volume"`
	OpenPrice  float64 `json:"open_price"`
	ClosePrice float64 `json:"close_price"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	Profit     float64 `json:"profit"`
	Swap       float64 `json:"swap"`
	Commission float64 `json:"commission"`
	OpenTime   int64   `json:"open_time"`
	CloseTime  int64   `json:"close_time"`
	Comment    string  `json:"comment"`
	NodeID     string  `json:"node_id"`
	Raw        string  `json:"-"` // verbatim payload, persisted to the audit log
}

// -----------------------------------------------------------------------------

// MPosition is the open/closed state derived from confirmations, keyed by ticket.
type MPosition struct {
	Ticket     int64   `json:"ticket"`
	Instrument string  `json:"instrument"`
	AccountID  string  `json:"account_id"`
	Volume     float64 `json:"volume"`
	OpenPrice  float64 `json:"open_price"`
	ClosePrice float64 `json:"close_price"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	Profit     float64 `json:"profit"`
	Swap       float64 `json:"swap"`
	Commission float64 `json:"commission"`
	OpenTime   int64   `json:"open_time"`
	CloseTime  int64   `json:"close_time"`
	Duration   int64   `json:"duration"` // seconds, set on close
	Status     string  `json:"status"`
	Comment    string  `json:"comment"`
	NodeID     string  `json:"node_id"`
}

// -----------------------------------------------------------------------------

// MStatsScope holds the win/loss counters of one scope
// (global, symbol:<instrument> or account:<account_id>).
type MStatsScope struct {
	Scope       string  `json:"scope"`
	TotalTrades int64   `json:"total_trades"`
	Wins        int64   `json:"wins"`
	Losses      int64   `json:"losses"`
	TotalProfit float64 `json:"total_profit"`
	TotalLoss   float64 `json:"total_loss"`
	LargestWin  float64 `json:"largest_win"`
	LargestLoss float64 `json:"largest_loss"`
}
