package telegram

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"nutrisnap/api/internal/gateway"
	"nutrisnap/api/internal/logx"
	"nutrisnap/api/internal/session"
)

// BotAPI is the part of *tgbotapi.BotAPI the router uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Router is the chat view over per-chat session controllers: uploads select
// the image, buttons and commands trigger operations, updates are rendered
// back as messages.
type Router struct {
	Bot          BotAPI
	Gateway      gateway.Gateway
	HistoryLimit int

	// Download fetches Telegram files; defaults to a 60s client.
	Download *http.Client

	sessions sync.Map // chatID -> *chatSession
}

func (r *Router) HandleUpdate(upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		r.handleCallback(*upd.CallbackQuery)
		return
	}
	if upd.Message == nil || upd.Message.Chat == nil {
		return
	}
	msg := upd.Message

	if msg.IsCommand() {
		r.HandleCommand(msg)
		return
	}
	switch {
	case len(msg.Photo) > 0:
		r.acceptPhoto(*msg)
	case msg.Document != nil:
		r.acceptDocument(*msg)
	}
}

func (r *Router) HandleCommand(msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	cs := r.session(cid)
	ctx := context.Background()

	switch msg.Command() {
	case "start", "help":
		r.sendWithKeyboard(cid, startText, cs.Ctl.Snapshot())
	case "analyze":
		r.onAnalyze(ctx, cid, cs)
	case "history":
		limit := 0
		if n, err := strconv.Atoi(strings.TrimSpace(msg.CommandArguments())); err == nil && n > 0 {
			limit = n
		}
		cs.Ctl.LoadHistory(ctx, limit)
	case "verify":
		r.onVerify(ctx, cid, cs)
	case "export":
		r.onExport(cid, cs)
	case "reset":
		cs.Ctl.Reset()
	default:
		r.send(cid, "Unknown command. Try /help.")
	}
}

func (r *Router) onAnalyze(ctx context.Context, chatID int64, cs *chatSession) {
	s := cs.Ctl.Snapshot()
	if !s.CanAnalyze {
		if s.Busy {
			r.send(chatID, "Still analyzing the previous photo.")
		} else {
			r.send(chatID, "Send a food photo first.")
		}
		return
	}
	cs.Ctl.Analyze(ctx)
}

func (r *Router) onVerify(ctx context.Context, chatID int64, cs *chatSession) {
	if !cs.Ctl.Snapshot().CanVerify {
		r.send(chatID, "Nothing to verify yet.")
		return
	}
	cs.Ctl.VerifyNutrition(ctx)
}

func (r *Router) onExport(chatID int64, cs *chatSession) {
	art, err := cs.Ctl.Export()
	if err != nil {
		r.SendError(chatID, err)
		return
	}
	if art == nil {
		r.send(chatID, "Nothing to download yet.")
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: art.Name, Bytes: art.Data})
	if _, err := r.Bot.Send(doc); err != nil {
		logx.Error().Err(err).Int64("chat", chatID).Msg("send export")
	}
}

func (r *Router) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := r.Bot.Send(msg); err != nil {
		logx.Error().Err(err).Int64("chat", chatID).Msg("send message")
	}
}

func (r *Router) sendWithKeyboard(chatID int64, text string, s session.Snapshot) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = makeKeyboard(s)
	if _, err := r.Bot.Send(msg); err != nil {
		logx.Error().Err(err).Int64("chat", chatID).Msg("send message")
	}
}

func (r *Router) SendError(chatID int64, err error) {
	r.send(chatID, "⚠️ "+esc(err.Error()))
}

func (r *Router) httpClient() *http.Client {
	if r.Download != nil {
		return r.Download
	}
	return &http.Client{Timeout: 60 * time.Second}
}
