package domain

// Signal is an ephemeral entry instruction produced by a signal provider.
// It is consumed by the engine in the same cycle and never persisted.
type Signal struct {
	Side       Side
	StopLoss   float64
	TakeProfit float64 // 0 means no target (time-based exit only)
}
