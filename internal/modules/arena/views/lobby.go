// Package views renders the arena's HTML pages with gomponents. The lobby
// polls its room list with htmx; live battle traffic stays on the
// websocket.
package views

import (
	"fmt"
	"strings"

	g "maragu.dev/gomponents"
	hx "maragu.dev/gomponents-htmx"
	c "maragu.dev/gomponents/components"
	. "maragu.dev/gomponents/html"

	"github.com/imfiit/arena/internal/domain"
	"github.com/imfiit/arena/internal/modules/arena/history"
	"github.com/imfiit/arena/internal/modules/arena/lobby"
	"github.com/imfiit/arena/internal/view"
)

const (
	htmxSrc      = "https://unpkg.com/htmx.org@2.0.4"
	roomsPath    = "/arena/lobby/rooms"
	pollInterval = "every 3s"
)

// LobbyData is everything the lobby page shows.
type LobbyData struct {
	Player  domain.Player
	Profile history.Profile
	Rooms   []lobby.Room
	Recent  []history.Record
	Flash   view.FlashData
}

// Page wraps body in the arena layout.
func Page(title string, body ...g.Node) g.Node {
	return c.HTML5(c.HTML5Props{
		Title:    title + " - Arena",
		Language: "en",
		Head: []g.Node{
			Script(Src(htmxSrc), Defer()),
		},
		Body: []g.Node{
			Main(Class("container mx-auto p-6"), g.Group(body)),
		},
	})
}

// Lobby is the signed-in player's landing page.
func Lobby(d LobbyData) g.Node {
	return Page("Lobby",
		Flashes(d.Flash),
		H1(Class("text-3xl font-bold mb-4"), g.Textf("Welcome, %s", d.Player.Name)),
		ProfileCard(d.Player, d.Profile),
		H2(Class("text-xl font-semibold mt-6 mb-2"), g.Text("Open rooms")),
		RoomList(d.Rooms),
		H2(Class("text-xl font-semibold mt-6 mb-2"), g.Text("Recent battles")),
		RecentBattles(d.Player.ID, d.Recent),
	)
}

// Flashes renders queued one-shot messages.
func Flashes(f view.FlashData) g.Node {
	if f.Empty() {
		return nil
	}
	return Div(ID("flashes"),
		g.Map(f.Success, func(m string) g.Node {
			return Div(Class("p-2 mb-2 bg-green-100 text-green-800 rounded"), g.Text(m))
		}),
		g.Map(f.Error, func(m string) g.Node {
			return Div(Class("p-2 mb-2 bg-red-100 text-red-800 rounded"), g.Text(m))
		}),
	)
}

// ProfileCard shows level, stats and accumulated rewards.
func ProfileCard(p domain.Player, prof history.Profile) g.Node {
	return Div(Class("p-4 bg-gray-50 rounded shadow"), ID("profile"),
		Dl(Class("grid grid-cols-2 gap-2"),
			stat("Level", p.Level),
			stat("Strength", p.Strength),
			stat("Endurance", p.Endurance),
			stat("XP", prof.XP),
			stat("Coins", prof.Coins),
			Dt(g.Text("Record")),
			Dd(g.Textf("%d-%d-%d", prof.Wins, prof.Losses, prof.Draws)),
		),
	)
}

func stat(label string, v int) g.Node {
	return g.Group{Dt(g.Text(label)), Dd(g.Textf("%d", v))}
}

// RoomList is the polled fragment of public rooms. It replaces itself on
// every poll.
func RoomList(rooms []lobby.Room) g.Node {
	return Div(ID("room-list"),
		hx.Get(roomsPath),
		hx.Trigger(pollInterval),
		hx.Swap("outerHTML"),
		g.If(len(rooms) == 0, P(Class("text-gray-500"), g.Text("No open rooms. Create one to start."))),
		g.If(len(rooms) > 0, Table(Class("w-full text-left"),
			THead(Tr(Th(g.Text("Host")), Th(g.Text("Players")), Th(g.Text("Stake")), Th(g.Text("Status")))),
			TBody(g.Map(rooms, roomRow)),
		)),
	)
}

func roomRow(r lobby.Room) g.Node {
	return Tr(ID("room-"+r.ID), Data("room-id", r.ID),
		Td(g.Text(hostName(r))),
		Td(g.Textf("%d/%d", len(r.Members), r.Capacity)),
		Td(g.Textf("%d", r.Stake)),
		Td(g.Text(string(r.Status))),
	)
}

func hostName(r lobby.Room) string {
	for _, m := range r.Members {
		if m.ID == r.HostID {
			return m.Name
		}
	}
	return r.HostID
}

// RecentBattles lists records from playerID's point of view.
func RecentBattles(playerID string, recs []history.Record) g.Node {
	if len(recs) == 0 {
		return P(Class("text-gray-500"), g.Text("No battles yet."))
	}
	return Ul(ID("recent-battles"),
		g.Map(recs, func(r history.Record) g.Node {
			return Li(
				A(Href("/arena/replays/"+r.BattleID), g.Text(outcome(playerID, r))),
				g.Textf(" in %d turns (%s)", r.TotalTurns, strings.ReplaceAll(string(r.Reason), "_", " ")),
			)
		}),
	)
}

func outcome(playerID string, r history.Record) string {
	switch {
	case r.Draw:
		return "Draw"
	case r.WinnerID == playerID:
		return "Victory"
	case r.WinnerID == "":
		return "No result"
	}
	return fmt.Sprintf("Defeat by %s", r.WinnerID)
}
