// Package topicmgr keeps the catalogue of pub/sub topics used by the server.
//
// Topics are declared once at package level, usually through pubsub.NewEvent,
// and registered with the Default manager so that tooling such as
// `arena-cli topics list` can describe the bus without starting the server.
//
//	var BattleEnded = pubsub.NewEvent[events.BattleEnded]("arena.battle.ended", "A battle finished")
//
// Framework topics (websocket plumbing) have no module; module topics are
// prefixed with their module name.
package topicmgr
