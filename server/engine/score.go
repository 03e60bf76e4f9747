package engine

import "strconv"

// Score totals a hand in card order. Face cards count 10, numeric ranks their
// face value. An ace counts 11 unless the running total already exceeds 10
// when the ace is reached, in which case it counts 1. An ace is never
// re-valued by a later card, so the total depends on hand order: [10 A A]
// scores 22, not 12.
func Score(hand []Card) int {
	points := 0
	for _, c := range hand {
		switch c.Rank {
		case "J", "Q", "K":
			points += 10
		case "A":
			if points > 10 {
				points++
			} else {
				points += 11
			}
		default:
			n, _ := strconv.Atoi(c.Rank)
			points += n
		}
	}
	return points
}
