// Package topics defines the arena's bus topics and wire message types.
package topics

import (
	"github.com/imfiit/arena/internal/modules/arena/battle"
	"github.com/imfiit/arena/internal/modules/arena/events"
	"github.com/imfiit/arena/internal/pubsub"
)

var (
	// BattleEnded carries the persistence-ready summary of a finished
	// battle. It is published once per battle.
	BattleEnded = pubsub.NewEvent[battle.Summary]("arena.battle.ended",
		"Summary of a finished battle: participants, winner, log and rewards")

	// ProfileDelta carries one player's stat change from a finished battle.
	ProfileDelta = pubsub.NewEvent[events.ProfileDelta]("arena.profile.delta",
		"Stat increments for one player after a battle")
)

// Inbound frame types accepted from players.
const (
	RoomCreate    = "room.create"
	RoomJoin      = "room.join"
	RoomLeave     = "room.leave"
	RoomSetReady  = "room.setReady"
	RoomList      = "room.list"
	BattleAction  = "battle.action"
	BattleForfeit = "battle.forfeit"
)

// Inbound lists every inbound type, for the websocket whitelist.
var Inbound = []string{
	RoomCreate, RoomJoin, RoomLeave, RoomSetReady, RoomList, BattleAction, BattleForfeit,
}

// Outbound battle frame types. Room frames use the lobby event kinds.
const (
	BattleStarted     = "battle.started"
	BattleTurn        = "battle.turn"
	BattleTick        = "battle.tick"
	BattleTurnTimeout = "battle.turnTimeout"
	BattleEndedFrame  = "battle.ended"
)
