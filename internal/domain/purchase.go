package domain

import "time"

// Purchase is an immutable record of a single purchase made by a user.
// Sequence is assigned at ingestion and defines the authoritative total order.
type Purchase struct {
	OccurredAt time.Time
	Sequence   uint64
	Amount     float64
}

// Verdict is the outcome of classifying one purchase against its network.
type Verdict struct {
	Anomalous         bool
	Mean              float64
	StdDev            float64
	SufficientHistory bool
	NeighborhoodSize  int
	WindowSize        int
}

// FlaggedPurchase captures an anomalous purchase together with the statistics
// of the network window it was compared against.
type FlaggedPurchase struct {
	UserID   UserID
	Purchase Purchase
	Mean     float64
	StdDev   float64
	Line     string
}
