package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"blackjack-table/server/engine"
	"blackjack-table/server/store"
)

func Router(db *store.DB, logger *log.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger(logger))

	r.Get("/api/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/api/players", func(r chi.Router) {
		r.Get("/", listPlayers(db))
		r.Post("/", createPlayer(db))
		r.Get("/{id}", getPlayer(db))
		r.Put("/{id}", updatePlayer(db))
		r.Delete("/{id}", deletePlayer(db))
	})

	r.Route("/api/gameactions", func(r chi.Router) {
		r.Get("/", listActions(db))
		r.Post("/", createAction(db))
		r.Get("/{id}", getAction(db))
		r.Patch("/{id}", patchAction(db, logger))
		r.Delete("/{id}", deleteAction(db))
	})

	r.Get("/api/leaderboard", leaderboard(db))
	r.Get("/api/live", liveFeed(db))

	return r
}

// roundView is the wire shape of a round. The remaining deck stays
// server-side: exposing it would reveal every upcoming card.
type roundView struct {
	ActionID        string    `json:"action_id"`
	Player          string    `json:"player"`
	ActionTime      time.Time `json:"action_time"`
	ActionType      string    `json:"action_type"`
	PlayerAction    string    `json:"player_action"`
	NextActions     string    `json:"next_actions"`
	Bet             int       `json:"bet"`
	PlayerHand      []string  `json:"player_hand"`
	DealerHand      []string  `json:"dealer_hand"`
	PlayerPoints    int       `json:"player_points"`
	DealerPoints    int       `json:"dealer_points"`
	PlayerBlackjack bool      `json:"player_blackjack"`
	DealerBlackjack bool      `json:"dealer_blackjack"`
	PlayerBust      bool      `json:"player_bust"`
	DealerBust      bool      `json:"dealer_bust"`
	GamePush        bool      `json:"game_push"`
	PlayerWin       bool      `json:"player_win"`
	DealerWin       bool      `json:"dealer_win"`
	EndGameAction   bool      `json:"end_game_action"`
}

func viewRound(r engine.Round) roundView {
	return roundView{
		ActionID:        r.ID,
		Player:          r.PlayerID,
		ActionTime:      r.ActionTime,
		ActionType:      r.ActionType,
		PlayerAction:    r.PlayerAction,
		NextActions:     r.NextActions,
		Bet:             r.Bet,
		PlayerHand:      engine.Strings(r.PlayerHand),
		DealerHand:      engine.Strings(r.DealerHand),
		PlayerPoints:    r.PlayerPoints,
		DealerPoints:    r.DealerPoints,
		PlayerBlackjack: r.PlayerBlackjack,
		DealerBlackjack: r.DealerBlackjack,
		PlayerBust:      r.PlayerBust,
		DealerBust:      r.DealerBust,
		GamePush:        r.GamePush,
		PlayerWin:       r.PlayerWin,
		DealerWin:       r.DealerWin,
		EndGameAction:   r.EndGame,
	}
}

/* -----------------------------
   Players
------------------------------*/

func listPlayers(db *store.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		players, err := db.ListPlayers(req.Context())
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"rows": players})
	}
}

func createPlayer(db *store.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			WalletBalance *int `json:"wallet_balance"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			httpError(w, http.StatusBadRequest, "bad request body")
			return
		}
		balance := 5000 // house default for a fresh wallet
		if body.WalletBalance != nil {
			balance = *body.WalletBalance
		}
		if balance < 0 {
			httpError(w, http.StatusBadRequest, "wallet_balance must not be negative")
			return
		}
		p, err := db.CreatePlayer(req.Context(), balance)
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

func getPlayer(db *store.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		p, err := db.GetPlayer(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func updatePlayer(db *store.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		var body struct {
			WalletBalance *int `json:"wallet_balance"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.WalletBalance == nil {
			httpError(w, http.StatusBadRequest, "wallet_balance is required")
			return
		}
		if *body.WalletBalance < 0 {
			httpError(w, http.StatusBadRequest, "wallet_balance must not be negative")
			return
		}
		if err := db.SetPlayerBalance(req.Context(), id, *body.WalletBalance); err != nil {
			storeError(w, err)
			return
		}
		p, err := db.GetPlayer(req.Context(), id)
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func deletePlayer(db *store.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := db.DeletePlayer(req.Context(), chi.URLParam(req, "id")); err != nil {
			storeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

/* -----------------------------
   Game actions
------------------------------*/

func listActions(db *store.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		rounds, err := db.ListActions(req.Context(), req.URL.Query().Get("player"))
		if err != nil {
			storeError(w, err)
			return
		}
		views := make([]roundView, len(rounds))
		for i, r := range rounds {
			views[i] = viewRound(r)
		}
		writeJSON(w, http.StatusOK, map[string]any{"rows": views})
	}
}

func createAction(db *store.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Player string `json:"player"`
			Bet    int    `json:"bet"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Player == "" {
			httpError(w, http.StatusBadRequest, "player and bet are required")
			return
		}
		if body.Bet < 1 {
			httpError(w, http.StatusBadRequest, "bet must be at least 1")
			return
		}
		if _, err := db.GetPlayer(req.Context(), body.Player); err != nil {
			storeError(w, err)
			return
		}
		round, err := db.CreateAction(req.Context(), body.Player, body.Bet)
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, viewRound(round))
	}
}

func getAction(db *store.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		round, err := db.GetAction(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, viewRound(round))
	}
}

// patchAction applies one player transition: load the round, run the engine,
// commit state plus balance effects in a single transaction.
func patchAction(db *store.DB, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		var body struct {
			PlayerAction string `json:"player_action"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			httpError(w, http.StatusBadRequest, "bad request body")
			return
		}

		round, err := db.GetAction(req.Context(), id)
		if err != nil {
			storeError(w, err)
			return
		}
		if round.EndGame {
			// Resolved rounds never change again.
			w.WriteHeader(http.StatusNotModified)
			return
		}

		var effects []engine.Effect
		switch body.PlayerAction {
		case engine.ActionDeal:
			effects, err = round.Deal(engine.NewDeck(0))
		case engine.ActionHit:
			effects, err = round.Hit()
		case engine.ActionStand:
			effects, err = round.Stand()
		default:
			httpError(w, http.StatusBadRequest, fmt.Sprintf("unknown player_action %q", body.PlayerAction))
			return
		}
		switch {
		case errors.Is(err, engine.ErrInvalidTransition):
			httpError(w, http.StatusConflict,
				fmt.Sprintf("%s not allowed, next actions: %q", body.PlayerAction, round.NextActions))
			return
		case errors.Is(err, engine.ErrInvalidBet):
			httpError(w, http.StatusBadRequest, err.Error())
			return
		case err != nil:
			logger.Error("engine step", "action", id, "err", err)
			httpError(w, http.StatusInternalServerError, err.Error())
			return
		}

		if err := db.CommitRound(req.Context(), &round, effects); err != nil {
			if errors.Is(err, store.ErrConflict) {
				httpError(w, http.StatusConflict, "round was modified concurrently")
				return
			}
			logger.Error("commit round", "action", id, "err", err)
			httpError(w, http.StatusInternalServerError, "commit failed")
			return
		}
		writeJSON(w, http.StatusOK, viewRound(round))
	}
}

func deleteAction(db *store.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := db.DeleteAction(req.Context(), chi.URLParam(req, "id")); err != nil {
			storeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

/* -----------------------------
   Aggregates & live feed
------------------------------*/

func leaderboard(db *store.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		rows, err := db.Leaderboard(req.Context())
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
	}
}

// liveFeed streams committed round outcomes over SSE, tailing game_logs.
func liveFeed(db *store.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()
		q := req.URL.Query()
		playerID := q.Get("player_id")
		var sinceID int64
		if s := q.Get("since"); s != "" {
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				sinceID = n
			}
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		flusher, ok := w.(http.Flusher)
		if !ok {
			httpError(w, http.StatusInternalServerError, "stream unsupported")
			return
		}

		enc := json.NewEncoder(w)
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				batch, err := db.TailLogs(ctx, playerID, sinceID)
				if err != nil {
					return
				}
				for _, row := range batch {
					w.Write([]byte("event: round\n"))
					w.Write([]byte("data: "))
					_ = enc.Encode(row)
					w.Write([]byte("\n"))
					sinceID = row.ID
				}
				if len(batch) > 0 {
					flusher.Flush()
				}
			}
		}
	}
}

/* -----------------------------
   Helpers
------------------------------*/

func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, req)
			logger.Debug("http", "method", req.Method, "path", req.URL.Path, "dur", time.Since(start))
		})
	}
}

func storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not found")
		return
	}
	httpError(w, http.StatusInternalServerError, err.Error())
}

func httpError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
