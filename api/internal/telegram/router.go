package telegram

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"alpd/api/internal/plate"
	"alpd/api/internal/session"
	"alpd/api/internal/store"
)

const maxMessageLen = 3900

// Bot is the part of *tgbotapi.BotAPI the router uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Router struct {
	Bot        Bot
	Engines    *plate.Engines
	EngManager *EngineManager
	Sessions   *session.Manager
	DB         Pinger // optional, checked by /health
}

// NewRouter wires one session per chat; each session recognizes with the chat's
// current engine. repo may be nil.
func NewRouter(bot Bot, engines *plate.Engines, def plate.Engine, repo *store.RecognitionRepo) *Router {
	r := &Router{
		Bot:        bot,
		Engines:    engines,
		EngManager: NewEngineManager(def),
	}
	var opts []session.Option
	if repo != nil {
		opts = append(opts, session.WithRecorder(chatRecorder{repo: repo, em: r.EngManager}))
	}
	r.Sessions = session.NewManagerFunc(func(key string) session.Recognizer {
		return chatRecognizer{m: r.EngManager, chatID: chatIDFromKey(key)}
	}, opts...)
	return r
}

func sessionKey(chatID int64) string { return strconv.FormatInt(chatID, 10) }

func chatIDFromKey(key string) int64 {
	id, _ := strconv.ParseInt(key, 10, 64)
	return id
}

func (r *Router) session(chatID int64) *session.Session {
	return r.Sessions.Get(sessionKey(chatID))
}

// HandleUpdate is safe to call from many goroutines; the chat's session serializes analyses.
func (r *Router) HandleUpdate(upd tgbotapi.Update) {
	if upd.Message == nil {
		return
	}
	msg := upd.Message
	cid := msg.Chat.ID

	switch {
	case msg.IsCommand():
		r.HandleCommand(msg)
	case len(msg.Photo) > 0:
		ph := msg.Photo[len(msg.Photo)-1]
		r.acceptImage(context.Background(), cid, ph.FileID, "")
	case msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/"):
		r.acceptImage(context.Background(), cid, msg.Document.FileID, msg.Document.MimeType)
	default:
		r.send(cid, "Send me a photo of a vehicle and I will read its license plate. /help")
	}
}

func (r *Router) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, truncate(text, maxMessageLen))
	if _, err := r.Bot.Send(msg); err != nil {
		log.Printf("telegram: send to %d: %v", chatID, err)
	}
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}

func (r *Router) sendMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := r.Bot.Send(msg); err != nil {
		log.Printf("telegram: send to %d: %v", chatID, err)
	}
}

func (r *Router) SendError(chatID int64, err error) {
	r.send(chatID, fmt.Sprintf("Analysis failed: %s", plate.UserMessage(err)))
}

// chatRecorder labels each logged recognition with the engine the chat used.
type chatRecorder struct {
	repo *store.RecognitionRepo
	em   *EngineManager
}

func (c chatRecorder) Record(ctx context.Context, sessionID string, item plate.HistoryItem) error {
	eng := c.em.Get(chatIDFromKey(sessionID))
	return c.repo.RecordAs(ctx, eng.Name(), eng.GetModel(), sessionID, item)
}
