// Package network holds the in-memory social graph used for purchase anomaly
// detection: users, their friendships, their bounded purchase histories and the
// traversal and merge primitives that operate on them.
//
// A Graph has a single writer and is not safe for concurrent use.
package network

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/vanshika/purchasewatch/backend/internal/domain"
)

var (
	// ErrSelfFriendship is returned when both endpoints of a friendship event are the same user.
	ErrSelfFriendship = errors.New("user cannot befriend or unfriend itself")
	// ErrNotConfigured is returned when a purchase arrives before the degree and window are set.
	ErrNotConfigured = errors.New("network degree and window are not configured")
	// ErrAlreadyConfigured is returned when Configure is called more than once.
	ErrAlreadyConfigured = errors.New("network degree and window are already configured")
	// ErrInvalidSettings is returned for a non-positive degree or window.
	ErrInvalidSettings = errors.New("degree and window must be positive")
	// ErrInvalidAmount is returned for negative or non-finite purchase amounts.
	ErrInvalidAmount = errors.New("purchase amount must be a non-negative number")
	// ErrMissingTimestamp is returned under OrderByTimestamp for a purchase
	// without a usable timestamp.
	ErrMissingTimestamp = errors.New("purchase timestamp is required for timestamp ordering")
)

// UserRecord holds a user's direct friends and recent purchases.
type UserRecord struct {
	friends map[domain.UserID]struct{}
	history History
}

func newUserRecord() *UserRecord {
	return &UserRecord{friends: make(map[domain.UserID]struct{})}
}

// FriendCount returns the number of direct friends.
func (u *UserRecord) FriendCount() int {
	return len(u.friends)
}

// Friends returns the direct friends in ascending order.
func (u *UserRecord) Friends() []domain.UserID {
	ids := make([]domain.UserID, 0, len(u.friends))
	for id := range u.friends {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// History returns a copy of the user's retained purchases, newest first.
func (u *UserRecord) History() []domain.Purchase {
	return u.history.Items()
}

// Graph maps user identities to their records and owns the run-wide settings:
// the degree limit D, the window size T and the purchase sequence counter.
type Graph struct {
	users        map[domain.UserID]*UserRecord
	degree       int
	window       int
	configured   bool
	lastSequence uint64
	ordering     Ordering
	logger       *slog.Logger
}

// New constructs an empty, unconfigured Graph. A nil logger discards output.
func New(logger *slog.Logger, ordering Ordering) *Graph {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Graph{
		users:    make(map[domain.UserID]*UserRecord),
		ordering: ordering,
		logger:   logger,
	}
}

// Configure sets the degree limit and window size. It may be called once.
func (g *Graph) Configure(degree, window int) error {
	if g.configured {
		return ErrAlreadyConfigured
	}
	if degree < 1 || window < 1 {
		return fmt.Errorf("%w: D=%d T=%d", ErrInvalidSettings, degree, window)
	}
	g.degree = degree
	g.window = window
	g.configured = true
	return nil
}

// Configured reports whether Configure has succeeded.
func (g *Graph) Configured() bool { return g.configured }

// Degree returns D.
func (g *Graph) Degree() int { return g.degree }

// Window returns T.
func (g *Graph) Window() int { return g.window }

// Ordering returns the recency policy used for histories and merges.
func (g *Graph) Ordering() Ordering { return g.ordering }

// Len returns the number of known users.
func (g *Graph) Len() int { return len(g.users) }

// PurchaseCount returns the number of purchases recorded so far.
func (g *Graph) PurchaseCount() uint64 { return g.lastSequence }

// EnsureUser returns the record for id, creating it on first reference.
func (g *Graph) EnsureUser(id domain.UserID) *UserRecord {
	rec, ok := g.users[id]
	if !ok {
		rec = newUserRecord()
		g.users[id] = rec
	}
	return rec
}

// User returns the record for id if it exists.
func (g *Graph) User(id domain.UserID) (*UserRecord, bool) {
	rec, ok := g.users[id]
	return rec, ok
}

// AddFriendship links a and b in both directions. Existing links are left as is.
func (g *Graph) AddFriendship(a, b domain.UserID) error {
	left, right := g.EnsureUser(a), g.EnsureUser(b)
	if a == b {
		return fmt.Errorf("%w: %s", ErrSelfFriendship, a)
	}
	left.friends[b] = struct{}{}
	right.friends[a] = struct{}{}
	return nil
}

// RemoveFriendship unlinks a and b in both directions. Removing a link that
// does not exist is a no-op.
func (g *Graph) RemoveFriendship(a, b domain.UserID) error {
	left, right := g.EnsureUser(a), g.EnsureUser(b)
	if a == b {
		return fmt.Errorf("%w: %s", ErrSelfFriendship, a)
	}
	delete(left.friends, b)
	delete(right.friends, a)
	return nil
}

// RecordPurchase assigns the next sequence number to a purchase by id and adds
// it to the user's history, evicting the oldest entry beyond the window. A zero
// occurredAt is accepted unless the graph orders by timestamp.
func (g *Graph) RecordPurchase(id domain.UserID, occurredAt time.Time, amount float64) (domain.Purchase, error) {
	if !g.configured {
		return domain.Purchase{}, ErrNotConfigured
	}
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return domain.Purchase{}, fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	if g.ordering == OrderByTimestamp && occurredAt.IsZero() {
		return domain.Purchase{}, ErrMissingTimestamp
	}

	rec := g.EnsureUser(id)
	g.lastSequence++
	p := domain.Purchase{
		OccurredAt: occurredAt,
		Sequence:   g.lastSequence,
		Amount:     amount,
	}
	rec.history.insert(p, g.window, g.ordering)
	return p, nil
}

// Friendships returns every friendship once, ordered by (A, B).
func (g *Graph) Friendships() []domain.Friendship {
	var edges []domain.Friendship
	for id, rec := range g.users {
		for friend := range rec.friends {
			if id < friend {
				edges = append(edges, domain.Friendship{A: id, B: friend})
			}
		}
	}
	slices.SortFunc(edges, func(x, y domain.Friendship) int {
		if x.A != y.A {
			return cmp.Compare(x.A, y.A)
		}
		return cmp.Compare(x.B, y.B)
	})
	return edges
}
