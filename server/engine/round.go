// Package engine holds the blackjack game state machine. A Round is mutated
// in memory by Deal/Hit/Stand and only ever persisted after a method returns
// without error; on error the caller must discard the round, not save it.
package engine

import (
	"errors"
	"time"
)

var (
	// ErrInvalidTransition rejects an action that does not match the round's
	// next_actions state. The round is left untouched.
	ErrInvalidTransition = errors.New("invalid transition")

	ErrInvalidBet = errors.New("bet must be at least 1")
)

// Round is the persisted state of one blackjack hand.
type Round struct {
	ID           string
	PlayerID     string
	ActionTime   time.Time
	ActionType   string
	PlayerAction string
	NextActions  string
	Bet          int

	Deck       []Card
	PlayerHand []Card
	DealerHand []Card

	PlayerPoints int
	DealerPoints int

	PlayerBlackjack bool
	DealerBlackjack bool
	PlayerBust      bool
	DealerBust      bool
	GamePush        bool
	PlayerWin       bool
	DealerWin       bool
	EndGame         bool

	// Revision guards the stored record against concurrent writers.
	Revision int
}

// Deal starts a hand against a freshly shuffled deck: two cards each, player
// first. The round must be untouched or already resolved; resolved rounds are
// reset for the next hand. A natural 21 pays 3:2 unless the dealer also holds
// 21, which is a push.
func (r *Round) Deal(deck []Card) ([]Effect, error) {
	if r.NextActions != NextNone && r.NextActions != NextNew {
		return nil, ErrInvalidTransition
	}
	if r.Bet < 1 {
		return nil, ErrInvalidBet
	}

	r.reset()
	r.ActionType = ActionDeal
	r.PlayerAction = ActionDeal
	r.Deck = deck
	for i := 0; i < 2; i++ {
		if err := r.draw(&r.PlayerHand); err != nil {
			return nil, err
		}
	}
	for i := 0; i < 2; i++ {
		if err := r.draw(&r.DealerHand); err != nil {
			return nil, err
		}
	}
	r.PlayerPoints = Score(r.PlayerHand)
	r.DealerPoints = Score(r.DealerHand)

	switch {
	case r.PlayerPoints == 21 && r.DealerPoints == 21:
		r.end()
		r.PlayerBlackjack = true
		r.DealerBlackjack = true
		r.GamePush = true
		return nil, nil
	case r.PlayerPoints == 21:
		r.end()
		r.PlayerBlackjack = true
		r.PlayerWin = true
		return []Effect{{PlayerID: r.PlayerID, Delta: r.Bet * 3 / 2}}, nil
	default:
		// Player under 21; a two-card dealer hand cannot exceed 21 either.
		r.NextActions = NextHitStand
		return nil, nil
	}
}

// Hit draws one card for the player and resolves the hand if that closes the
// round.
func (r *Round) Hit() ([]Effect, error) {
	if r.EndGame || r.NextActions != NextHitStand {
		return nil, ErrInvalidTransition
	}
	if err := r.draw(&r.PlayerHand); err != nil {
		return nil, err
	}
	r.ActionType = ActionHit
	r.PlayerAction = ActionHit
	r.PlayerPoints = Score(r.PlayerHand)

	switch {
	case r.PlayerPoints == 21 && r.DealerPoints == 21:
		// The dealt dealer hand already held 21; revealing it now is a
		// dealer blackjack.
		r.end()
		r.DealerBlackjack = true
		r.DealerWin = true
		return r.debit(), nil
	case r.PlayerPoints > 21:
		r.end()
		r.PlayerBust = true
		r.DealerWin = true
		return r.debit(), nil
	case r.PlayerPoints < 21:
		r.NextActions = NextHitStand
		return nil, nil
	default: // player hit to 21, dealer below it
		r.end()
		r.PlayerWin = true
		return r.credit(), nil
	}
}

// Stand reveals the dealer total and plays the dealer out.
func (r *Round) Stand() ([]Effect, error) {
	if r.EndGame || r.NextActions != NextHitStand {
		return nil, ErrInvalidTransition
	}
	r.ActionType = ActionStand
	r.PlayerAction = ActionStand

	switch {
	case r.DealerPoints == 21:
		r.end()
		r.DealerBlackjack = true
		r.DealerWin = true
		return r.debit(), nil
	case r.DealerPoints > 17 && r.PlayerPoints > r.DealerPoints:
		r.end()
		r.PlayerWin = true
		return r.credit(), nil
	case r.DealerPoints > r.PlayerPoints:
		r.end()
		r.DealerWin = true
		return r.debit(), nil
	}

	// Dealer sits at or under 17 without beating the player: draw until the
	// hand resolves. Every card adds a positive contribution, so the total
	// only grows and the bust branch bounds the loop.
	for r.DealerPoints < 21 {
		if err := r.draw(&r.DealerHand); err != nil {
			return nil, err
		}
		r.DealerPoints = Score(r.DealerHand)
		switch {
		case r.DealerPoints > 21:
			r.end()
			r.DealerBust = true
			r.PlayerWin = true
			return r.credit(), nil
		case r.DealerPoints == 21:
			r.end()
			r.DealerWin = true
			return r.debit(), nil
		case r.DealerPoints > r.PlayerPoints:
			r.end()
			r.DealerWin = true
			return r.debit(), nil
		}
	}
	// Unreachable: every loop exit returns above.
	return nil, nil
}

// draw pops the top of the deck onto a hand.
func (r *Round) draw(hand *[]Card) error {
	if len(r.Deck) == 0 {
		return ErrEmptyDeck
	}
	c := r.Deck[len(r.Deck)-1]
	r.Deck = r.Deck[:len(r.Deck)-1]
	*hand = append(*hand, c)
	return nil
}

func (r *Round) end() {
	r.EndGame = true
	r.NextActions = NextNew
}

func (r *Round) credit() []Effect { return []Effect{{PlayerID: r.PlayerID, Delta: r.Bet}} }
func (r *Round) debit() []Effect  { return []Effect{{PlayerID: r.PlayerID, Delta: -r.Bet}} }

func (r *Round) reset() {
	r.Deck = nil
	r.PlayerHand = nil
	r.DealerHand = nil
	r.PlayerPoints = 0
	r.DealerPoints = 0
	r.PlayerBlackjack = false
	r.DealerBlackjack = false
	r.PlayerBust = false
	r.DealerBust = false
	r.GamePush = false
	r.PlayerWin = false
	r.DealerWin = false
	r.EndGame = false
	r.NextActions = NextNone
}
