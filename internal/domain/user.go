package domain

import "strconv"

// UserID identifies a member of the social network.
type UserID uint64

func (id UserID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseUserID converts the textual identity carried by events.
func ParseUserID(s string) (UserID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return UserID(v), nil
}

// Friendship is an undirected edge, normalised so that A < B.
type Friendship struct {
	A UserID
	B UserID
}

// NewFriendship orders the endpoints of an edge.
func NewFriendship(a, b UserID) Friendship {
	if b < a {
		a, b = b, a
	}
	return Friendship{A: a, B: b}
}
