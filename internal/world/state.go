package world

import (
	"context"
	"time"

	"skirmish/internal/proto"
	"skirmish/logging"
	loggingmatch "skirmish/logging/match"
)

// advanceStateLocked runs the match state machine. At most one transition
// fires per call:
//
//	Lobby      -> InProgress  two or more players, all ready
//	InProgress -> GameOver    via the win check in shootLocked
//	GameOver   -> Lobby       restart delay elapsed
func (w *World) advanceStateLocked(now time.Time) {
	switch w.state {
	case proto.StateLobby:
		if w.allReadyLocked() {
			w.startMatchLocked()
		}
	case proto.StateInProgress:
		w.respawnLocked(now)
	case proto.StateGameOver:
		if now.Sub(w.gameOverAt) >= w.config.RestartDelay() {
			w.returnToLobbyLocked()
		}
	}
}

func (w *World) allReadyLocked() bool {
	if len(w.players) < 2 {
		return false
	}
	for _, p := range w.players {
		if !p.Ready {
			return false
		}
	}
	return true
}

func (w *World) startMatchLocked() {
	for _, p := range w.sortedPlayersLocked() {
		p.resetStats()
		w.randomSpawnLocked(p)
	}
	w.winner = 0
	w.transitionLocked(proto.StateInProgress)
}

func (w *World) endMatchLocked(winner uint32, now time.Time) {
	w.winner = winner
	w.gameOverAt = now
	w.transitionLocked(proto.StateGameOver)
}

func (w *World) returnToLobbyLocked() {
	for _, p := range w.players {
		p.Ready = false
	}
	w.winner = 0
	w.transitionLocked(proto.StateLobby)
}

func (w *World) transitionLocked(next proto.MatchState) {
	prev := w.state
	w.state = next
	w.broadcastLocked(w.stateMessageLocked())
	loggingmatch.StateChanged(context.Background(), w.publisher, w.tick, loggingmatch.StateChangedPayload{
		From:    prev.String(),
		To:      next.String(),
		Winner:  w.winner,
		Players: len(w.players),
	}, nil)
}

// respawnLocked revives every dead player whose respawn delay has elapsed.
func (w *World) respawnLocked(now time.Time) {
	delay := w.config.RespawnDelay()
	for _, p := range w.sortedPlayersLocked() {
		if p.alive() || now.Sub(p.DiedAt) < delay {
			continue
		}
		deadFor := now.Sub(p.DiedAt)
		p.Health = MaxHealth
		p.DiedAt = time.Time{}
		w.randomSpawnLocked(p)
		w.broadcastLocked(proto.PlayerRespawn{ID: p.ID, Position: p.Position, Health: int32(p.Health)})
		loggingmatch.Respawn(context.Background(), w.publisher, w.tick, logging.PlayerRef(p.ID), loggingmatch.RespawnPayload{
			X:       p.Position.X(),
			Y:       p.Position.Y(),
			Z:       p.Position.Z(),
			DeadFor: deadFor.Milliseconds(),
		}, nil)
	}
}
