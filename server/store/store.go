package store

import (
	"context"
	"embed"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"blackjack-table/server/engine"
)

//go:embed schema.sql
var schema embed.FS

var (
	// ErrNotFound maps pgx.ErrNoRows for callers that don't want to import pgx.
	ErrNotFound = errors.New("not found")
	// ErrConflict reports that a round was written by someone else between
	// load and commit.
	ErrConflict = errors.New("round was modified concurrently")
)

type DB struct{ *pgxpool.Pool }

func Open(dsn string) (*DB, error) {
	p, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, err
	}
	return &DB{p}, nil
}

func (db *DB) Close(ctx context.Context)      { db.Pool.Close() }
func (db *DB) Ping(ctx context.Context) error { return db.Pool.Ping(ctx) }

func Migrate(ctx context.Context, db *DB) error {
	sqlBytes, err := schema.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, string(sqlBytes))
	return err
}

/* -----------------------------
   Players
------------------------------*/

type Player struct {
	WalletID      string    `json:"wallet_id"`
	WalletBalance int       `json:"wallet_balance"`
	CreatedAt     time.Time `json:"created_at"`
}

func (db *DB) CreatePlayer(ctx context.Context, balance int) (Player, error) {
	p := Player{WalletID: uuid.NewString(), WalletBalance: balance}
	err := db.QueryRow(ctx, `
        INSERT INTO players(wallet_id, wallet_balance)
        VALUES ($1,$2)
        RETURNING created_at
    `, p.WalletID, p.WalletBalance).Scan(&p.CreatedAt)
	return p, err
}

func (db *DB) GetPlayer(ctx context.Context, id string) (Player, error) {
	var p Player
	err := db.QueryRow(ctx, `
        SELECT wallet_id, wallet_balance, created_at FROM players WHERE wallet_id = $1
    `, id).Scan(&p.WalletID, &p.WalletBalance, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Player{}, ErrNotFound
	}
	return p, err
}

func (db *DB) ListPlayers(ctx context.Context) ([]Player, error) {
	rows, err := db.Query(ctx, `
        SELECT wallet_id, wallet_balance, created_at
          FROM players
         ORDER BY created_at DESC
         LIMIT 200
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Player{}
	for rows.Next() {
		var p Player
		if err := rows.Scan(&p.WalletID, &p.WalletBalance, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (db *DB) SetPlayerBalance(ctx context.Context, id string, balance int) error {
	tag, err := db.Exec(ctx, `
        UPDATE players SET wallet_balance = $2 WHERE wallet_id = $1
    `, id, balance)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) DeletePlayer(ctx context.Context, id string) error {
	tag, err := db.Exec(ctx, `DELETE FROM players WHERE wallet_id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

/* -----------------------------
   Game actions
------------------------------*/

const roundCols = `action_id, player_id, action_time, action_type, player_action, next_actions,
       player_hand, dealer_hand, action_deck, bet, player_points, dealer_points,
       player_blackjack, dealer_blackjack, player_bust, dealer_bust,
       game_push, player_win, dealer_win, end_game_action, revision`

// CreateAction inserts a fresh, undealt round for a player.
func (db *DB) CreateAction(ctx context.Context, playerID string, bet int) (engine.Round, error) {
	r := engine.Round{ID: uuid.NewString(), PlayerID: playerID, Bet: bet}
	err := db.QueryRow(ctx, `
        INSERT INTO game_actions(action_id, player_id, bet)
        VALUES ($1,$2,$3)
        RETURNING action_time, revision
    `, r.ID, r.PlayerID, r.Bet).Scan(&r.ActionTime, &r.Revision)
	if err != nil {
		return engine.Round{}, err
	}
	return r, nil
}

func (db *DB) GetAction(ctx context.Context, id string) (engine.Round, error) {
	row := db.QueryRow(ctx, `SELECT `+roundCols+` FROM game_actions WHERE action_id = $1`, id)
	return scanRound(row)
}

// ListActions returns recent rounds, optionally filtered to one player.
func (db *DB) ListActions(ctx context.Context, playerID string) ([]engine.Round, error) {
	rows, err := db.Query(ctx, `
        SELECT `+roundCols+`
          FROM game_actions
         WHERE $1 = '' OR player_id::text = $1
         ORDER BY action_time DESC
         LIMIT 200
    `, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []engine.Round{}
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (db *DB) DeleteAction(ctx context.Context, id string) error {
	tag, err := db.Exec(ctx, `DELETE FROM game_actions WHERE action_id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRound(row pgx.Row) (engine.Round, error) {
	var r engine.Round
	var ph, dh, dk []string
	err := row.Scan(&r.ID, &r.PlayerID, &r.ActionTime, &r.ActionType, &r.PlayerAction, &r.NextActions,
		&ph, &dh, &dk, &r.Bet, &r.PlayerPoints, &r.DealerPoints,
		&r.PlayerBlackjack, &r.DealerBlackjack, &r.PlayerBust, &r.DealerBust,
		&r.GamePush, &r.PlayerWin, &r.DealerWin, &r.EndGame, &r.Revision)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return engine.Round{}, ErrNotFound
		}
		return engine.Round{}, err
	}
	if r.PlayerHand, err = engine.ParseHand(ph); err != nil {
		return engine.Round{}, err
	}
	if r.DealerHand, err = engine.ParseHand(dh); err != nil {
		return engine.Round{}, err
	}
	if r.Deck, err = engine.ParseHand(dk); err != nil {
		return engine.Round{}, err
	}
	return r, nil
}

// CommitRound persists one resolved engine step atomically: the action row,
// every balance effect, and an audit log entry. The update is guarded by the
// revision the round was loaded at, so two writers racing on the same record
// cannot both win.
func (db *DB) CommitRound(ctx context.Context, r *engine.Round, effects []engine.Effect) error {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // safe if already committed

	tag, err := tx.Exec(ctx, `
        UPDATE game_actions
           SET action_type = $2,
               player_action = $3,
               next_actions = $4,
               player_hand = $5,
               dealer_hand = $6,
               action_deck = $7,
               player_points = $8,
               dealer_points = $9,
               player_blackjack = $10,
               dealer_blackjack = $11,
               player_bust = $12,
               dealer_bust = $13,
               game_push = $14,
               player_win = $15,
               dealer_win = $16,
               end_game_action = $17,
               action_time = now(),
               revision = revision + 1
         WHERE action_id = $1 AND revision = $18
    `, r.ID, r.ActionType, r.PlayerAction, r.NextActions,
		engine.Strings(r.PlayerHand), engine.Strings(r.DealerHand), engine.Strings(r.Deck),
		r.PlayerPoints, r.DealerPoints,
		r.PlayerBlackjack, r.DealerBlackjack, r.PlayerBust, r.DealerBust,
		r.GamePush, r.PlayerWin, r.DealerWin, r.EndGame, r.Revision)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}

	delta := 0
	for _, e := range effects {
		delta += e.Delta
		tag, err := tx.Exec(ctx, `
            UPDATE players SET wallet_balance = wallet_balance + $2 WHERE wallet_id = $1
        `, e.PlayerID, e.Delta)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
	}

	if _, err := tx.Exec(ctx, `
        INSERT INTO game_logs(action_id, player_id, action_type, player_points, dealer_points, outcome, balance_delta)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
    `, r.ID, r.PlayerID, r.ActionType, r.PlayerPoints, r.DealerPoints, outcome(r), delta); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	r.Revision++
	return nil
}

// outcome labels a round state for the audit feed.
func outcome(r *engine.Round) string {
	switch {
	case r.GamePush:
		return "push"
	case r.PlayerBust:
		return "player_bust"
	case r.DealerBust:
		return "dealer_bust"
	case r.DealerBlackjack:
		return "dealer_blackjack"
	case r.PlayerBlackjack:
		return "player_blackjack"
	case r.PlayerWin:
		return "player_win"
	case r.DealerWin:
		return "dealer_win"
	default:
		return "in_play"
	}
}

/* -----------------------------
   Aggregates & audit feed
------------------------------*/

type LeaderboardRow struct {
	WalletID      string `json:"wallet_id"`
	WalletBalance int    `json:"wallet_balance"`
	Rounds        int    `json:"rounds"`
	Wins          int    `json:"wins"`
	Losses        int    `json:"losses"`
	Pushes        int    `json:"pushes"`
}

// Leaderboard ranks players by balance with career round tallies.
func (db *DB) Leaderboard(ctx context.Context) ([]LeaderboardRow, error) {
	rows, err := db.Query(ctx, `
        SELECT p.wallet_id,
               p.wallet_balance,
               COUNT(*) FILTER (WHERE a.end_game_action)::int AS rounds,
               COUNT(*) FILTER (WHERE a.player_win)::int      AS wins,
               COUNT(*) FILTER (WHERE a.dealer_win)::int      AS losses,
               COUNT(*) FILTER (WHERE a.game_push)::int       AS pushes
          FROM players p
          LEFT JOIN game_actions a ON a.player_id = p.wallet_id
         GROUP BY p.wallet_id, p.wallet_balance
         ORDER BY p.wallet_balance DESC
         LIMIT 200
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LeaderboardRow{}
	for rows.Next() {
		var x LeaderboardRow
		if err := rows.Scan(&x.WalletID, &x.WalletBalance, &x.Rounds, &x.Wins, &x.Losses, &x.Pushes); err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, rows.Err()
}

type GameLog struct {
	ID           int64     `json:"id"`
	ActionID     string    `json:"action_id"`
	PlayerID     string    `json:"player_id"`
	ActionType   string    `json:"action_type"`
	PlayerPoints int       `json:"player_points"`
	DealerPoints int       `json:"dealer_points"`
	Outcome      string    `json:"outcome"`
	BalanceDelta int       `json:"balance_delta"`
	CreatedAt    time.Time `json:"created_at"`
}

// TailLogs returns audit rows after sinceID, optionally for one player.
// The live SSE feed polls this.
func (db *DB) TailLogs(ctx context.Context, playerID string, sinceID int64) ([]GameLog, error) {
	rows, err := db.Query(ctx, `
        SELECT id, action_id, player_id, action_type, player_points, dealer_points,
               outcome, balance_delta, created_at
          FROM game_logs
         WHERE id > $1 AND ($2 = '' OR player_id::text = $2)
         ORDER BY id
    `, sinceID, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []GameLog
	for rows.Next() {
		var g GameLog
		if err := rows.Scan(&g.ID, &g.ActionID, &g.PlayerID, &g.ActionType, &g.PlayerPoints,
			&g.DealerPoints, &g.Outcome, &g.BalanceDelta, &g.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
