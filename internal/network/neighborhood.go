package network

import "github.com/vanshika/purchasewatch/backend/internal/domain"

type frontierEntry struct {
	id   domain.UserID
	hops int
}

// Neighborhood returns the users reachable from origin within D friendship
// edges, excluding origin. The result is in breadth-first discovery order.
//
// Identities referenced by an edge but missing from the graph are logged and
// not expanded.
func (g *Graph) Neighborhood(origin domain.UserID) []domain.UserID {
	visited := map[domain.UserID]struct{}{origin: {}}
	queue := []frontierEntry{{id: origin, hops: 0}}
	var members []domain.UserID

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		rec, ok := g.users[current.id]
		if !ok {
			g.logger.Warn("neighborhood references unknown user",
				"user_id", current.id.String(),
				"origin", origin.String(),
			)
			continue
		}
		if current.hops >= g.degree {
			continue
		}

		for friend := range rec.friends {
			if _, seen := visited[friend]; seen {
				continue
			}
			visited[friend] = struct{}{}
			members = append(members, friend)
			queue = append(queue, frontierEntry{id: friend, hops: current.hops + 1})
		}
	}

	return members
}
