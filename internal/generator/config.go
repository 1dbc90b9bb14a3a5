package generator

// Config drives the synthetic feed generator.
type Config struct {
	NumUsers        int
	NumBatchEvents  int
	NumStreamEvents int
	Degree          int
	Window          int
	// FriendshipShare is the fraction of events that change a friendship
	// rather than record a purchase.
	FriendshipShare float64
	UnfriendChance  float64
	SpikeChance     float64
	Seed            int64
}

// DefaultConfig returns settings that produce a small but well connected network.
func DefaultConfig() Config {
	return Config{
		NumUsers:        1000,
		NumBatchEvents:  50000,
		NumStreamEvents: 5000,
		Degree:          2,
		Window:          50,
		FriendshipShare: 0.2,
		UnfriendChance:  0.1,
		SpikeChance:     0.01,
		Seed:            42,
	}
}
