package telegram

import (
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"nutrisnap/api/internal/session"
)

func TestRenderKeyboardOnlyFromNewestSnapshot(t *testing.T) {
	bot := newFakeBot("")
	r := &Router{Bot: bot}
	cs := &chatSession{}

	newer := session.Update{Seq: 2, Action: session.ActionReset, Phase: session.PhaseSettled}
	older := session.Update{Seq: 1, Action: session.ActionReset, Phase: session.PhaseSettled,
		State: session.Snapshot{CanExport: true}}

	r.render(cs, 1, newer)
	m := bot.next(t).(tgbotapi.MessageConfig)
	if m.ReplyMarkup == nil {
		t.Error("newest update sent without keyboard")
	}

	r.render(cs, 1, older)
	m = bot.next(t).(tgbotapi.MessageConfig)
	if m.ReplyMarkup != nil {
		t.Errorf("late update carried keyboard %#v", m.ReplyMarkup)
	}
	if m.Text != "Cleared. Send a new photo to start over." {
		t.Errorf("late update text = %q", m.Text)
	}

	r.render(cs, 1, session.Update{Seq: 3, Action: session.ActionReset, Phase: session.PhaseSettled})
	if m := bot.next(t).(tgbotapi.MessageConfig); m.ReplyMarkup == nil {
		t.Error("keyboard not restored for the next update")
	}
}

func TestRenderErrorsAndStartedPhase(t *testing.T) {
	bot := newFakeBot("")
	r := &Router{Bot: bot}
	cs := &chatSession{}

	r.render(cs, 1, session.Update{Seq: 1, Action: session.ActionAnalyze, Phase: session.PhaseStarted})
	if got := bot.nextText(t); got != "Analyzing…" {
		t.Errorf("started = %q", got)
	}
	r.render(cs, 1, session.Update{Seq: 2, Action: session.ActionHistory, Phase: session.PhaseStarted})
	bot.quiet(t)

	r.render(cs, 1, session.Update{Seq: 3, Action: session.ActionAnalyze, Phase: session.PhaseSettled,
		Err: errors.New("Prediction failed: 500")})
	if got := bot.nextText(t); got != "⚠️ Prediction failed: 500" {
		t.Errorf("error = %q", got)
	}

	r.render(cs, 1, session.Update{Seq: 4, Action: session.ActionVerify, Phase: session.PhaseSettled, Stale: true})
	bot.quiet(t)
}
