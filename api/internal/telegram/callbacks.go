package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (r *Router) handleCallback(cb tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	cid := cb.Message.Chat.ID
	_, _ = r.Bot.Request(tgbotapi.NewCallback(cb.ID, "")) // ack

	cs := r.session(cid)
	ctx := context.Background()
	switch cb.Data {
	case cbAnalyze:
		r.onAnalyze(ctx, cid, cs)
	case cbHistory:
		cs.Ctl.LoadHistory(ctx, 0)
	case cbVerify:
		r.onVerify(ctx, cid, cs)
	case cbExport:
		r.onExport(cid, cs)
	case cbReset:
		cs.Ctl.Reset()
	}
}
