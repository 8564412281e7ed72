package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"alpd/api/internal/session"
)

const helpText = `Send a photo of a vehicle (as a photo or an image file) and I will read its license plate.

Commands:
/history - last 6 results
/show N - show history entry N again
/reset - clear the current image
/engine [gemini|anthropic|openai|ollama] - show or switch the recognition engine
/health - service status`

func (r *Router) HandleCommand(msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	args := strings.Fields(msg.CommandArguments())
	switch msg.Command() {
	case "start", "help":
		r.send(cid, helpText)
	case "history":
		r.send(cid, formatHistory(r.session(cid).History()))
	case "show":
		r.handleShow(cid, args)
	case "reset":
		r.session(cid).Reset()
		r.send(cid, "Cleared. Your history is kept, see /history.")
	case "engine":
		r.handleEngine(cid, args)
	case "health":
		r.handleHealth(cid)
	default:
		r.send(cid, "Unknown command. /help")
	}
}

func (r *Router) handleShow(cid int64, args []string) {
	sess := r.session(cid)
	items := sess.History()
	if len(items) == 0 {
		r.send(cid, "History is empty.")
		return
	}
	if len(args) == 0 {
		r.send(cid, "Usage: /show N (1 is the newest)")
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(items) {
		r.send(cid, fmt.Sprintf("No history entry %s. Pick 1..%d.", args[0], len(items)))
		return
	}
	item, err := sess.LoadFromHistory(items[n-1].ID)
	if err != nil {
		if errors.Is(err, session.ErrBusy) {
			r.send(cid, busyText)
			return
		}
		r.send(cid, err.Error())
		return
	}
	if err := r.sendHistoryPhoto(cid, item.ImageURL, formatResult(item.Result)); err != nil {
		r.sendMarkdown(cid, formatResult(item.Result))
	}
}

func (r *Router) handleEngine(cid int64, args []string) {
	if len(args) == 0 {
		cur := r.EngManager.Get(cid)
		r.send(cid, fmt.Sprintf("Current engine: %s (%s)\nUsage: /engine gemini | anthropic | openai | ollama", cur.Name(), cur.GetModel()))
		return
	}
	eng, err := r.Engines.GetEngine(args[0])
	if err != nil {
		r.send(cid, "❌ "+err.Error())
		return
	}
	r.EngManager.Set(cid, eng)
	r.send(cid, fmt.Sprintf("✅ Engine: %s (%s).", eng.Name(), eng.GetModel()))
}

func (r *Router) handleHealth(cid int64) {
	eng := r.EngManager.Get(cid)
	status := fmt.Sprintf("✅ OK\nEngine: %s (%s)", eng.Name(), eng.GetModel())
	if r.DB != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := r.DB.PingContext(ctx); err != nil {
			status += "\n⚠️ recognition log: " + err.Error()
		} else {
			status += "\nRecognition log: ok"
		}
	}
	r.send(cid, status)
}
