package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deckFor builds a deck whose draws come out in the given rank order. Draws
// pop from the end of the deck, so the list is reversed into place.
func deckFor(ranks ...string) []Card {
	deck := make([]Card, len(ranks))
	for i, r := range ranks {
		deck[len(ranks)-1-i] = Card{Rank: r, Suit: "spades"}
	}
	return deck
}

func newRound(bet int) *Round {
	return &Round{ID: "a1", PlayerID: "p1", Bet: bet}
}

// Deal order is two cards to the player, then two to the dealer.

func TestDealNaturalBlackjackPaysThreeToTwo(t *testing.T) {
	r := newRound(50)
	effects, err := r.Deal(deckFor("10", "A", "9", "9"))
	require.NoError(t, err)

	assert.Equal(t, 21, r.PlayerPoints)
	assert.Equal(t, 18, r.DealerPoints)
	assert.True(t, r.PlayerBlackjack)
	assert.True(t, r.PlayerWin)
	assert.False(t, r.DealerWin)
	assert.True(t, r.EndGame)
	assert.Equal(t, NextNew, r.NextActions)
	assert.Equal(t, []Effect{{PlayerID: "p1", Delta: 75}}, effects)
}

func TestDealDoubleBlackjackIsAPush(t *testing.T) {
	r := newRound(50)
	effects, err := r.Deal(deckFor("A", "10", "A", "K"))
	require.NoError(t, err)

	assert.True(t, r.GamePush)
	assert.True(t, r.PlayerBlackjack)
	assert.True(t, r.DealerBlackjack)
	assert.False(t, r.PlayerWin)
	assert.False(t, r.DealerWin)
	assert.True(t, r.EndGame)
	assert.Equal(t, NextNew, r.NextActions)
	assert.Empty(t, effects)
}

func TestDealContinuesWhenNobodyHas21(t *testing.T) {
	r := newRound(10)
	effects, err := r.Deal(deckFor("5", "9", "9", "9"))
	require.NoError(t, err)

	assert.Equal(t, 14, r.PlayerPoints)
	assert.Equal(t, 18, r.DealerPoints)
	assert.False(t, r.EndGame)
	assert.Equal(t, NextHitStand, r.NextActions)
	assert.Empty(t, effects)
	assert.Len(t, r.PlayerHand, 2)
	assert.Len(t, r.DealerHand, 2)
}

func TestDealRejectsMidRound(t *testing.T) {
	r := newRound(10)
	_, err := r.Deal(deckFor("5", "9", "9", "9"))
	require.NoError(t, err)

	_, err = r.Deal(NewDeck(1))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDealRejectsBadBet(t *testing.T) {
	for _, bet := range []int{0, -5} {
		r := newRound(bet)
		_, err := r.Deal(NewDeck(1))
		assert.ErrorIs(t, err, ErrInvalidBet)
	}
}

func TestDealResetsResolvedRound(t *testing.T) {
	r := newRound(50)
	_, err := r.Deal(deckFor("10", "A", "9", "9"))
	require.NoError(t, err)
	require.True(t, r.EndGame)

	effects, err := r.Deal(deckFor("5", "9", "9", "9"))
	require.NoError(t, err)

	assert.False(t, r.PlayerBlackjack)
	assert.False(t, r.PlayerWin)
	assert.False(t, r.EndGame)
	assert.Equal(t, NextHitStand, r.NextActions)
	assert.Empty(t, effects)
	assert.Len(t, r.PlayerHand, 2)
}

func TestHitBustLosesTheBet(t *testing.T) {
	r := newRound(25)
	_, err := r.Deal(deckFor("10", "9", "9", "9", "5"))
	require.NoError(t, err)

	effects, err := r.Hit()
	require.NoError(t, err)

	assert.Equal(t, 24, r.PlayerPoints)
	assert.True(t, r.PlayerBust)
	assert.True(t, r.DealerWin)
	assert.True(t, r.EndGame)
	assert.Equal(t, NextNew, r.NextActions)
	assert.Equal(t, []Effect{{PlayerID: "p1", Delta: -25}}, effects)
}

func TestHitToTwentyOneWins(t *testing.T) {
	r := newRound(25)
	_, err := r.Deal(deckFor("10", "5", "9", "8", "6"))
	require.NoError(t, err)

	effects, err := r.Hit()
	require.NoError(t, err)

	assert.Equal(t, 21, r.PlayerPoints)
	assert.True(t, r.PlayerWin)
	assert.False(t, r.PlayerBlackjack) // three cards, not a natural
	assert.True(t, r.EndGame)
	assert.Equal(t, []Effect{{PlayerID: "p1", Delta: 25}}, effects)
}

func TestHitToTwentyOneRevealsDealerBlackjack(t *testing.T) {
	r := newRound(25)
	_, err := r.Deal(deckFor("10", "5", "A", "K", "6"))
	require.NoError(t, err)
	require.Equal(t, NextHitStand, r.NextActions)

	effects, err := r.Hit()
	require.NoError(t, err)

	assert.True(t, r.DealerBlackjack)
	assert.True(t, r.DealerWin)
	assert.False(t, r.PlayerWin)
	assert.True(t, r.EndGame)
	assert.Equal(t, []Effect{{PlayerID: "p1", Delta: -25}}, effects)
}

func TestHitUnderTwentyOneContinues(t *testing.T) {
	r := newRound(10)
	_, err := r.Deal(deckFor("5", "5", "9", "9", "2"))
	require.NoError(t, err)

	effects, err := r.Hit()
	require.NoError(t, err)

	assert.Equal(t, 12, r.PlayerPoints)
	assert.False(t, r.EndGame)
	assert.Equal(t, NextHitStand, r.NextActions)
	assert.Empty(t, effects)
	assert.Len(t, r.PlayerHand, 3)
}

func TestHitOnEmptyDeck(t *testing.T) {
	r := newRound(10)
	r.NextActions = NextHitStand
	r.PlayerHand = hand("5", "5")
	r.PlayerPoints = 10

	_, err := r.Hit()
	assert.ErrorIs(t, err, ErrEmptyDeck)
}

func TestStandDealerBlackjackWins(t *testing.T) {
	r := newRound(30)
	_, err := r.Deal(deckFor("5", "5", "A", "10"))
	require.NoError(t, err)
	require.Equal(t, NextHitStand, r.NextActions)

	effects, err := r.Stand()
	require.NoError(t, err)

	assert.True(t, r.DealerBlackjack)
	assert.True(t, r.DealerWin)
	assert.True(t, r.EndGame)
	assert.Equal(t, []Effect{{PlayerID: "p1", Delta: -30}}, effects)
}

func TestStandPlayerAheadOfPatDealer(t *testing.T) {
	r := newRound(30)
	_, err := r.Deal(deckFor("10", "9", "10", "8"))
	require.NoError(t, err)

	effects, err := r.Stand()
	require.NoError(t, err)

	assert.True(t, r.PlayerWin)
	assert.False(t, r.DealerWin)
	assert.True(t, r.EndGame)
	assert.Len(t, r.DealerHand, 2) // dealer over 17 never draws
	assert.Equal(t, []Effect{{PlayerID: "p1", Delta: 30}}, effects)
}

func TestStandDealerAheadWinsWithoutDrawing(t *testing.T) {
	r := newRound(30)
	_, err := r.Deal(deckFor("5", "9", "9", "8"))
	require.NoError(t, err)

	effects, err := r.Stand()
	require.NoError(t, err)

	assert.True(t, r.DealerWin)
	assert.True(t, r.EndGame)
	assert.Len(t, r.DealerHand, 2)
	assert.Equal(t, []Effect{{PlayerID: "p1", Delta: -30}}, effects)
}

func TestStandDealerDrawsAndBusts(t *testing.T) {
	r := newRound(30)
	_, err := r.Deal(deckFor("10", "9", "9", "8", "10"))
	require.NoError(t, err)

	effects, err := r.Stand()
	require.NoError(t, err)

	assert.Equal(t, 27, r.DealerPoints)
	assert.True(t, r.DealerBust)
	assert.True(t, r.PlayerWin)
	assert.True(t, r.EndGame)
	assert.Equal(t, []Effect{{PlayerID: "p1", Delta: 30}}, effects)
}

func TestStandDealerDrawsToTwentyOne(t *testing.T) {
	r := newRound(30)
	_, err := r.Deal(deckFor("10", "8", "5", "9", "7"))
	require.NoError(t, err)

	effects, err := r.Stand()
	require.NoError(t, err)

	assert.Equal(t, 21, r.DealerPoints)
	assert.True(t, r.DealerWin)
	assert.False(t, r.DealerBlackjack) // drawn 21, not a natural
	assert.Equal(t, []Effect{{PlayerID: "p1", Delta: -30}}, effects)
}

func TestStandDealerOvertakesPlayer(t *testing.T) {
	r := newRound(30)
	_, err := r.Deal(deckFor("10", "8", "5", "9", "5"))
	require.NoError(t, err)

	effects, err := r.Stand()
	require.NoError(t, err)

	assert.Equal(t, 19, r.DealerPoints)
	assert.True(t, r.DealerWin)
	assert.Equal(t, []Effect{{PlayerID: "p1", Delta: -30}}, effects)
}

func TestStandDealerKeepsDrawingWhileBehind(t *testing.T) {
	r := newRound(30)
	_, err := r.Deal(deckFor("10", "9", "2", "5", "5", "4", "10"))
	require.NoError(t, err)

	effects, err := r.Stand()
	require.NoError(t, err)

	// 7 -> 12 -> 16 -> 26: two quiet draws before the bust.
	assert.Len(t, r.DealerHand, 5)
	assert.True(t, r.DealerBust)
	assert.True(t, r.PlayerWin)
	assert.Equal(t, []Effect{{PlayerID: "p1", Delta: 30}}, effects)
}

// Every stand resolves with exactly one winner, and its effect matches the
// flags, whatever the shuffle.
func TestStandAlwaysResolvesOneWinner(t *testing.T) {
	for seed := int64(1); seed <= 64; seed++ {
		r := newRound(10)
		_, err := r.Deal(NewDeck(seed))
		require.NoError(t, err, "seed %d", seed)
		if r.EndGame {
			continue // natural or push straight off the deal
		}

		effects, err := r.Stand()
		require.NoError(t, err, "seed %d", seed)
		require.True(t, r.EndGame, "seed %d", seed)
		require.Equal(t, NextNew, r.NextActions, "seed %d", seed)
		require.NotEqual(t, r.PlayerWin, r.DealerWin, "seed %d: want exactly one winner", seed)

		require.Len(t, effects, 1, "seed %d", seed)
		if r.PlayerWin {
			require.Equal(t, Effect{PlayerID: "p1", Delta: 10}, effects[0], "seed %d", seed)
		} else {
			require.Equal(t, Effect{PlayerID: "p1", Delta: -10}, effects[0], "seed %d", seed)
		}
	}
}

func TestTerminalRoundRejectsFurtherActions(t *testing.T) {
	r := newRound(50)
	_, err := r.Deal(deckFor("10", "A", "9", "9"))
	require.NoError(t, err)
	require.True(t, r.EndGame)

	snapshot := *r
	_, err = r.Hit()
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = r.Stand()
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, snapshot, *r)
}

func TestActionsBeforeDealAreRejected(t *testing.T) {
	r := newRound(10)
	_, err := r.Hit()
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = r.Stand()
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

// The documented end-to-end scenario: bet 50, player dealt 10+A against a
// dealer 18 — a natural that moves a 5000 wallet to 5075.
func TestNaturalBlackjackScenario(t *testing.T) {
	balance := 5000
	r := newRound(50)

	effects, err := r.Deal(deckFor("10", "A", "9", "9"))
	require.NoError(t, err)
	for _, e := range effects {
		balance += e.Delta
	}

	assert.Equal(t, 5075, balance)
	assert.True(t, r.PlayerBlackjack)
	assert.True(t, r.PlayerWin)
	assert.Equal(t, NextNew, r.NextActions)
}
