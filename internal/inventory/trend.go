package inventory

import "time"

// Direction of a period-over-period change.
type Direction string

const (
	DirectionUp      Direction = "up"
	DirectionDown    Direction = "down"
	DirectionNeutral Direction = "neutral"
)

// Trend compares completed workflows in the recent window with the period before it.
type Trend struct {
	Recent      int       `json:"recent"`
	Previous    int       `json:"previous"`
	Change      float64   `json:"change"`
	Direction   Direction `json:"direction"`
	HasPrevious bool      `json:"hasPrevious"`
}

// Summary is the dashboard projection. Nothing in it is stored.
type Summary struct {
	TotalProducts    int       `json:"totalProducts"`
	LowStockProducts int       `json:"lowStockProducts"`
	PendingWorkflows int       `json:"pendingWorkflows"`
	Inbound          int       `json:"inbound"`
	Outbound         int       `json:"outbound"`
	InboundTrend     Trend     `json:"inboundTrend"`
	OutboundTrend    Trend     `json:"outboundTrend"`
	TotalCBM         float64   `json:"totalCbm"`
	GeneratedAt      time.Time `json:"generatedAt"`
}

// ComputeTrend counts completed workflows of typ created in [now-window, now]
// as recent and in [now-lookback, now-window) as previous. With no previous
// activity the trend is neutral and HasPrevious is false.
func ComputeTrend(txs []Transaction, typ TransactionType, now time.Time, lookback, window time.Duration) Trend {
	recentStart := now.Add(-window)
	previousStart := now.Add(-lookback)
	var t Trend
	for _, tx := range txs {
		if tx.Type != typ || tx.Status != StatusCompleted || tx.CreatedAt.After(now) {
			continue
		}
		switch {
		case !tx.CreatedAt.Before(recentStart):
			t.Recent++
		case !tx.CreatedAt.Before(previousStart):
			t.Previous++
		}
	}
	if t.Previous == 0 {
		t.Direction = DirectionNeutral
		return t
	}
	t.HasPrevious = true
	t.Change = float64(t.Recent-t.Previous) / float64(t.Previous) * 100
	switch {
	case t.Change > 0:
		t.Direction = DirectionUp
	case t.Change < 0:
		t.Direction = DirectionDown
	default:
		t.Direction = DirectionNeutral
	}
	return t
}

// Summarize builds the dashboard figures for the given lookback and window.
func Summarize(products []Product, txs []Transaction, now time.Time, lookback, window time.Duration) Summary {
	s := Summary{TotalProducts: len(products), GeneratedAt: now}
	for _, p := range products {
		if p.IsLowStock() {
			s.LowStockProducts++
		}
		s.TotalCBM += p.CBM
	}
	since := now.Add(-lookback)
	for _, tx := range txs {
		if tx.IsPending() {
			s.PendingWorkflows++
		}
		if tx.Status != StatusCompleted || tx.CreatedAt.Before(since) || tx.CreatedAt.After(now) {
			continue
		}
		switch tx.Type {
		case TransactionTypeInbound:
			s.Inbound++
		case TransactionTypeOutbound:
			s.Outbound++
		}
	}
	s.InboundTrend = ComputeTrend(txs, TransactionTypeInbound, now, lookback, window)
	s.OutboundTrend = ComputeTrend(txs, TransactionTypeOutbound, now, lookback, window)
	return s
}
