package network

import "github.com/vanshika/purchasewatch/backend/internal/domain"

// MergeRecentPurchases folds the histories of ids into the T most recent
// purchases across all of them, newest first. The accumulator is truncated to
// T after every merge, so memory stays bounded by the window rather than by
// the size of the neighbourhood.
func (g *Graph) MergeRecentPurchases(ids []domain.UserID) []domain.Purchase {
	if g.window <= 0 {
		return nil
	}

	var acc []domain.Purchase
	scratch := make([]domain.Purchase, 0, g.window)
	for _, id := range ids {
		rec, ok := g.users[id]
		if !ok || rec.history.Len() == 0 {
			continue
		}
		scratch = mergeNewestFirst(scratch[:0], acc, rec.history.items, g.window, g.ordering)
		acc, scratch = scratch, acc
	}
	return acc
}

// mergeNewestFirst appends to dst up to limit purchases taken from a and b,
// both already ordered newest first under ord.
func mergeNewestFirst(dst, a, b []domain.Purchase, limit int, ord Ordering) []domain.Purchase {
	i, j := 0, 0
	for len(dst) < limit && (i < len(a) || j < len(b)) {
		switch {
		case j >= len(b):
			dst = append(dst, a[i])
			i++
		case i >= len(a):
			dst = append(dst, b[j])
			j++
		case ord.Newer(b[j], a[i]):
			dst = append(dst, b[j])
			j++
		default:
			dst = append(dst, a[i])
			i++
		}
	}
	return dst
}
