package charts

// Direction of a breakout event
const (
	DirectionBullish = "bullish"
	DirectionBearish = "bearish"
)

// Labels for consolidation breakouts. Plain SMA crosses carry no label.
const (
	LabelConsolUp   = "CONSOL+"
	LabelConsolDown = "CONSOL-"
)

// BreakoutEvent marks a detected breakout or breakdown at one bar.
type BreakoutEvent struct {
	Index     int     `json:"index"`
	Direction string  `json:"direction"`
	Price     float64 `json:"price"`
	Label     string  `json:"label,omitempty"`
}

// ChartStats summarizes the loaded series for the dashboard header.
// Fields are nil when there is not enough history to compute them.
type ChartStats struct {
	Symbol      string   `json:"symbol"`
	RSI14       *float64 `json:"rsi_14"`
	Volatility  *float64 `json:"volatility"`
	MaxDrawdown *float64 `json:"max_drawdown"`
	Sharpe      *float64 `json:"sharpe"`
}
