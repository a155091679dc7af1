package telegram

import (
	"time"

	"nutrisnap/api/internal/session"
)

// render turns controller updates into chat messages. Chat messages are
// append-only, so each settled operation renders only the part it changed,
// in arrival order. Only the newest snapshot by Seq carries a keyboard.
func (r *Router) render(cs *chatSession, chatID int64, u session.Update) {
	s := u.State
	latest := cs.newest(u.Seq)
	reply := func(text string) {
		if latest {
			r.sendWithKeyboard(chatID, text, s)
			return
		}
		r.send(chatID, text)
	}

	if u.Phase == session.PhaseStarted {
		if u.Action == session.ActionAnalyze {
			r.send(chatID, "Analyzing…")
		}
		return
	}
	if u.Err != nil {
		r.SendError(chatID, u.Err)
		return
	}

	switch u.Action {
	case session.ActionSelect:
		reply(formatSelected(s.Image))
	case session.ActionAnalyze:
		if s.Result != nil {
			reply(formatResult(s.Result))
		}
	case session.ActionHistory:
		reply(formatHistory(s.History, time.Local))
	case session.ActionVerify:
		if u.Stale || s.Result == nil || s.Result.NutritionLookup == nil {
			return
		}
		reply(formatLookup(s.Result.NutritionLookup))
	case session.ActionReset:
		reply("Cleared. Send a new photo to start over.")
	}
}
