package domain

import "time"

// Quote is an ephemeral market snapshot for a single instrument, refreshed on
// every poll.
type Quote struct {
	Symbol    string
	Price     float64
	ChangePct float64
	Volume    int64
	DayHigh   float64
	DayLow    float64
	Timestamp time.Time
}

// DailyBar is one day's session summary, used as backtest input and for
// synthesizing intraday bars.
type DailyBar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// HistoricalDay pairs a day's regime report with its session data for replay.
// Intraday bars are optional; when absent the backtest synthesizes them.
type HistoricalDay struct {
	Report   *RegimeReport
	Session  DailyBar
	Zone     CompositeZone
	Intraday []IntradayBar
}

// IntradayBar is a single fixed-interval price observation within a session.
type IntradayBar struct {
	Time  time.Time
	Price float64
}
