package engine

import (
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Card is a rank/suit pair with no identity beyond its value.
type Card struct {
	Rank string
	Suit string
}

var (
	Ranks = []string{"2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "A"}
	Suits = []string{"spades", "diamonds", "clubs", "hearts"}
)

// ErrEmptyDeck reports a draw against an exhausted deck. A single 52-card
// hand never reaches it, but the condition stays checked.
var ErrEmptyDeck = errors.New("deck is empty")

// NewDeck returns the full 52-card set in a uniform random order.
// A zero seed falls back to the clock.
func NewDeck(seed int64) []Card {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	r := rand.New(rand.NewSource(seed))
	deck := make([]Card, 0, 52)
	for _, s := range Suits {
		for _, rk := range Ranks {
			deck = append(deck, Card{Rank: rk, Suit: s})
		}
	}
	for i := len(deck) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
	return deck
}

// String renders the compact stored form, e.g. "10s" or "Ah".
func (c Card) String() string { return c.Rank + c.Suit[:1] }

// ParseCard reads the form produced by Card.String.
func ParseCard(s string) (Card, error) {
	if len(s) < 2 {
		return Card{}, fmt.Errorf("bad card %q", s)
	}
	rank := s[:len(s)-1]
	ok := false
	for _, rk := range Ranks {
		if rk == rank {
			ok = true
			break
		}
	}
	if !ok {
		return Card{}, fmt.Errorf("bad card rank %q", s)
	}
	for _, suit := range Suits {
		if suit[0] == s[len(s)-1] {
			return Card{Rank: rank, Suit: suit}, nil
		}
	}
	return Card{}, fmt.Errorf("bad card suit %q", s)
}

// Strings flattens a hand for text[] persistence.
func Strings(hand []Card) []string {
	out := make([]string, len(hand))
	for i, c := range hand {
		out[i] = c.String()
	}
	return out
}

// ParseHand is the inverse of Strings.
func ParseHand(ss []string) ([]Card, error) {
	out := make([]Card, len(ss))
	for i, s := range ss {
		c, err := ParseCard(s)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}
