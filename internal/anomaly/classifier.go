// Package anomaly classifies purchases against the recent purchases of the
// buyer's social network.
package anomaly

import (
	"math"

	"github.com/vanshika/purchasewatch/backend/internal/domain"
	"github.com/vanshika/purchasewatch/backend/internal/network"
)

// DefaultSigmas is the number of standard deviations above the mean a
// purchase must exceed to be flagged.
const DefaultSigmas = 3.0

// minWindow is the smallest window that yields a usable statistic.
const minWindow = 2

// Graph is the view of the social network the classifier needs.
type Graph interface {
	User(id domain.UserID) (*network.UserRecord, bool)
	Neighborhood(origin domain.UserID) []domain.UserID
	MergeRecentPurchases(ids []domain.UserID) []domain.Purchase
}

// Classifier flags purchases that exceed the network mean by more than a
// configured number of standard deviations.
type Classifier struct {
	graph  Graph
	sigmas float64
}

// NewClassifier constructs a Classifier. A non-positive sigmas falls back to DefaultSigmas.
func NewClassifier(graph Graph, sigmas float64) *Classifier {
	if sigmas <= 0 || math.IsNaN(sigmas) {
		sigmas = DefaultSigmas
	}
	return &Classifier{graph: graph, sigmas: sigmas}
}

// Classify evaluates purchase, which must already be recorded for userID.
// The buyer is never part of its own comparison window.
func (c *Classifier) Classify(userID domain.UserID, purchase domain.Purchase) domain.Verdict {
	rec, ok := c.graph.User(userID)
	if !ok || rec.FriendCount() == 0 {
		return domain.Verdict{}
	}

	neighborhood := c.graph.Neighborhood(userID)
	window := c.graph.MergeRecentPurchases(neighborhood)

	verdict := domain.Verdict{
		NeighborhoodSize: len(neighborhood),
		WindowSize:       len(window),
	}
	if len(window) < minWindow {
		return verdict
	}

	verdict.SufficientHistory = true
	verdict.Mean, verdict.StdDev = MeanStdDev(window)
	verdict.Anomalous = purchase.Amount > verdict.Mean+c.sigmas*verdict.StdDev
	return verdict
}

// MeanStdDev returns the population mean and standard deviation of the
// purchase amounts. Rounding that drives the variance below zero is clamped.
func MeanStdDev(purchases []domain.Purchase) (mean, stddev float64) {
	if len(purchases) == 0 {
		return 0, 0
	}

	var sum, sumSquares float64
	for _, p := range purchases {
		sum += p.Amount
		sumSquares += p.Amount * p.Amount
	}
	n := float64(len(purchases))
	mean = sum / n

	variance := sumSquares/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}
