package views

import (
	"fmt"

	g "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"

	"github.com/imfiit/arena/internal/modules/arena/battle"
	"github.com/imfiit/arena/internal/modules/arena/history"
)

// Replay renders an archived battle turn by turn.
func Replay(r history.Replay) g.Node {
	names := make(map[string]string, len(r.Participants))
	for _, p := range r.Participants {
		names[p.ID] = p.Name
	}
	title := "Replay"
	if len(r.Participants) == 2 {
		title = fmt.Sprintf("%s vs %s", r.Participants[0].Name, r.Participants[1].Name)
	}

	return Page(title,
		H1(Class("text-2xl font-bold mb-2"), g.Text(title)),
		P(Class("text-sm text-gray-500 mb-4"),
			g.Textf("Seed %d, %s", r.Seed, string(r.Reason)),
			g.If(r.WinnerID != "", g.Textf(", won by %s", nameOr(names, r.WinnerID))),
		),
		Ol(ID("battle-log"), Class("font-mono"),
			g.Map(r.Log, func(rec battle.TurnRecord) g.Node {
				return Li(TurnLine(rec, names))
			}),
		),
	)
}

// TurnLine describes one log entry.
func TurnLine(rec battle.TurnRecord, names map[string]string) g.Node {
	actor := nameOr(names, rec.ActorID)
	var text string
	switch {
	case rec.Cause == battle.CauseForfeit:
		text = fmt.Sprintf("%s forfeits", actor)
	case rec.Cause == battle.CauseDisconnect:
		text = fmt.Sprintf("%s disconnected", actor)
	case rec.Note != "":
		text = fmt.Sprintf("%s tries %s, %s", actor, rec.Action, rec.Note)
	case !rec.Hit:
		text = fmt.Sprintf("%s uses %s and misses", actor, rec.Action)
	case rec.Damage == 0:
		text = fmt.Sprintf("%s uses %s", actor, rec.Action)
	default:
		text = fmt.Sprintf("%s hits with %s for %d", actor, rec.Action, rec.Damage)
	}

	class := "p-1 border-b"
	if rec.Critical {
		class += " text-red-500"
	}
	return Span(Class(class),
		g.Textf("#%d ", rec.Turn),
		g.Text(text),
		g.If(rec.Critical, g.Text(" (critical)")),
		g.If(rec.Blocked, g.Text(" (blocked)")),
		g.If(rec.Cause == battle.CauseTimeout, g.Text(" (timed out)")),
	)
}

func nameOr(names map[string]string, id string) string {
	if n, ok := names[id]; ok && n != "" {
		return n
	}
	return id
}
