package network

import (
	"fmt"
	"strings"

	"github.com/vanshika/purchasewatch/backend/internal/domain"
)

// Ordering decides which of two purchases is the more recent one.
type Ordering int

const (
	// OrderBySequence treats arrival order as recency. This is the default.
	OrderBySequence Ordering = iota
	// OrderByTimestamp orders by purchase timestamp and falls back to
	// arrival order when two timestamps are equal.
	OrderByTimestamp
)

// ParseOrdering maps a configuration value onto an Ordering.
func ParseOrdering(value string) (Ordering, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "sequence":
		return OrderBySequence, nil
	case "timestamp":
		return OrderByTimestamp, nil
	default:
		return OrderBySequence, fmt.Errorf("unknown ordering %q", value)
	}
}

func (o Ordering) String() string {
	if o == OrderByTimestamp {
		return "timestamp"
	}
	return "sequence"
}

// Newer reports whether a is more recent than b.
func (o Ordering) Newer(a, b domain.Purchase) bool {
	if o == OrderByTimestamp && !a.OccurredAt.Equal(b.OccurredAt) {
		return a.OccurredAt.After(b.OccurredAt)
	}
	return a.Sequence > b.Sequence
}

// History is a bounded, most-recent-first list of purchases.
type History struct {
	items []domain.Purchase
}

// Len returns the number of retained purchases.
func (h *History) Len() int {
	return len(h.items)
}

// Items returns a copy of the retained purchases, newest first.
func (h *History) Items() []domain.Purchase {
	return append([]domain.Purchase(nil), h.items...)
}

// insert places p at its position under ord and evicts the oldest entries
// beyond capacity. Under OrderBySequence p is always the newest entry.
func (h *History) insert(p domain.Purchase, capacity int, ord Ordering) {
	pos := 0
	for pos < len(h.items) && !ord.Newer(p, h.items[pos]) {
		pos++
	}

	h.items = append(h.items, domain.Purchase{})
	copy(h.items[pos+1:], h.items[pos:])
	h.items[pos] = p

	if len(h.items) > capacity {
		clear(h.items[capacity:])
		h.items = h.items[:capacity]
	}
}
