package engine

// Player actions accepted over the API.
const (
	ActionDeal  = "deal"
	ActionHit   = "hit"
	ActionStand = "stand"
)

// next_actions states of a round.
const (
	NextNone     = ""          // fresh record, nothing dealt yet
	NextHitStand = "hit/stand" // player to act
	NextNew      = "new"       // round resolved, start a new one
)

// Effect is a wallet mutation the engine asks its caller to apply. The engine
// never touches a balance itself; the store commits the round state and its
// effects in one transaction.
type Effect struct {
	PlayerID string
	Delta    int // signed chips
}
