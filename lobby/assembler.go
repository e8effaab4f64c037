package lobby

import (
	"fmt"
	"lobby-pilot/fault"
	"lobby-pilot/winapi"
	"math/rand/v2"
	"slices"
)

// MinMembers is the smallest number of locatable accounts that forms two teams.
const MinMembers = 4

// RectFunc resolves a member's current window rectangle.
type RectFunc func(m Member) (winapi.Rect, bool)

// CanonicalOrder orders the valid, locatable members by the left edge of their
// window. Equal left edges keep account-list order.
func CanonicalOrder(members []Member, rectOf RectFunc) []Member {
	type placed struct {
		member Member
		left   int
	}

	entries := make([]placed, 0, len(members))
	for _, m := range members {
		if m == nil || !m.Valid() {
			continue
		}
		rect, ok := rectOf(m)
		if !ok {
			continue
		}
		entries = append(entries, placed{member: m, left: rect.Left})
	}

	slices.SortStableFunc(entries, func(a, b placed) int {
		return a.left - b.left
	})

	ordered := make([]Member, 0, len(entries))
	for _, e := range entries {
		ordered = append(ordered, e.member)
	}
	return ordered
}

// Partition splits an ordered member list into two teams: 0 leads A, 1 joins
// A, 2 leads B, 3 joins B, then even indexes join A and odd indexes join B.
func Partition(ordered []Member) (*Team, *Team, error) {
	if len(ordered) < MinMembers {
		return nil, nil, fmt.Errorf("%w: have %d, need %d", fault.ErrAssembly, len(ordered), MinMembers)
	}

	a := &Team{Leader: ordered[0], Bots: []Member{ordered[1]}}
	b := &Team{Leader: ordered[2], Bots: []Member{ordered[3]}}

	for i := MinMembers; i < len(ordered); i++ {
		if i%2 == 0 {
			a.Bots = append(a.Bots, ordered[i])
		} else {
			b.Bots = append(b.Bots, ordered[i])
		}
	}
	return a, b, nil
}

// ShufflePartition randomizes the members and cuts the result in half, each
// half led by its first member. The randomized order is returned alongside.
func ShufflePartition(members []Member, rng *rand.Rand) (*Team, *Team, []Member, error) {
	if len(members) < MinMembers {
		return nil, nil, nil, fmt.Errorf("%w: have %d, need %d", fault.ErrAssembly, len(members), MinMembers)
	}

	shuffled := slices.Clone(members)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	mid := len(shuffled) / 2
	a := &Team{Leader: shuffled[0], Bots: slices.Clone(shuffled[1:mid])}
	b := &Team{Leader: shuffled[mid], Bots: slices.Clone(shuffled[mid+1:])}
	return a, b, shuffled, nil
}
