package gateway

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/microcosm-cc/bluemonday"

	"github.com/rahul/gridpilot/internal/session"
	"github.com/rahul/gridpilot/internal/status"
)

const callbackRun = "run"

// SessionFactory opens the session backing one chat.
type SessionFactory func(chatID int64) *session.Session

// TelegramGateway renders sessions as chat messages with one Run button per
// operation.
type TelegramGateway struct {
	Bot        *tgbotapi.BotAPI
	NewSession SessionFactory

	sanitizer *bluemonday.Policy

	mu       sync.Mutex
	sessions map[int64]*session.Session
}

func NewTelegramGateway(token string, factory SessionFactory) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	return &TelegramGateway{
		Bot:        bot,
		NewSession: factory,
		sanitizer:  bluemonday.StrictPolicy(),
		sessions:   make(map[int64]*session.Session),
	}, nil
}

func (tg *TelegramGateway) session(chatID int64) *session.Session {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	s, ok := tg.sessions[chatID]
	if !ok {
		s = tg.NewSession(chatID)
		tg.sessions[chatID] = s
	}
	return s
}

func (tg *TelegramGateway) reset(chatID int64) {
	tg.mu.Lock()
	s, ok := tg.sessions[chatID]
	delete(tg.sessions, chatID)
	tg.mu.Unlock()
	if ok {
		s.Close()
	}
}

func (tg *TelegramGateway) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := tg.Bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return tg.Stop()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			// Runs and sends may overlap; the session guards both.
			go tg.handle(ctx, update)
		}
	}
}

func (tg *TelegramGateway) handle(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		tg.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		tg.handleMessage(ctx, update.Message)
	}
}

func (tg *TelegramGateway) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	chatID := m.Chat.ID
	if m.From != nil {
		log.Printf("[%s] %s", m.From.UserName, m.Text)
	}

	switch m.Command() {
	case "start":
		tg.send(tgbotapi.NewMessage(chatID, "Describe what you want done in the workbook. Proposed operations come with a Run button."))
		return
	case "reset":
		tg.reset(chatID)
		tg.send(tgbotapi.NewMessage(chatID, "Conversation cleared."))
		return
	}
	if strings.TrimSpace(m.Text) == "" {
		return
	}

	s := tg.session(chatID)
	msgs, err := s.SendTurn(ctx, m.Text)
	if errors.Is(err, session.ErrBusy) {
		tg.send(tgbotapi.NewMessage(chatID, "Still working on your previous message..."))
		return
	}
	if err != nil {
		log.Printf("chat %d: %v", chatID, err)
		return
	}

	if banner := s.Banner(); banner != "" {
		tg.send(tgbotapi.NewMessage(chatID, "⚠️ "+banner))
		s.DismissBanner()
	}

	for _, msg := range msgs {
		if msg.Role != session.RoleAgent {
			continue
		}
		out := tgbotapi.NewMessage(chatID, tg.render(msg))
		out.ParseMode = tgbotapi.ModeHTML
		if kb, ok := keyboard(s, msg); ok {
			out.ReplyMarkup = kb
		}
		tg.send(out)
	}
}

func (tg *TelegramGateway) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if q.Message == nil {
		return
	}
	chatID := q.Message.Chat.ID
	msgID, idx, ok := parseRunData(q.Data)
	if !ok {
		tg.request(tgbotapi.NewCallback(q.ID, "Unknown action"))
		return
	}

	s := tg.session(chatID)
	tg.request(tgbotapi.NewCallback(q.ID, "Running..."))

	st, err := s.RunOperation(ctx, msgID, idx)
	tg.refreshKeyboard(s, chatID, q.Message.MessageID, msgID)

	switch {
	case errors.Is(err, session.ErrAlreadyRunning), errors.Is(err, session.ErrNoSnippet):
		return
	case errors.Is(err, session.ErrUnknownOperation):
		tg.send(tgbotapi.NewMessage(chatID, "That operation is no longer available."))
	case st == status.Error:
		out := tgbotapi.NewMessage(chatID, fmt.Sprintf("❌ Operation %d failed: <code>%s</code>", idx+1, html.EscapeString(s.ErrorOf(msgID, idx))))
		out.ParseMode = tgbotapi.ModeHTML
		tg.send(out)
	case st == status.Success:
		text := fmt.Sprintf("✅ Operation %d applied.", idx+1)
		if c, ok := s.ChangesOf(msgID, idx); ok && !c.Empty() {
			text += "\n<pre>" + html.EscapeString(c.String()) + "</pre>"
		}
		out := tgbotapi.NewMessage(chatID, text)
		out.ParseMode = tgbotapi.ModeHTML
		tg.send(out)
	}
}

func (tg *TelegramGateway) refreshKeyboard(s *session.Session, chatID int64, telegramMsgID int, msgID string) {
	msg, ok := s.Message(msgID)
	if !ok {
		return
	}
	kb, ok := keyboard(s, msg)
	if !ok {
		return
	}
	tg.request(tgbotapi.NewEditMessageReplyMarkup(chatID, telegramMsgID, kb))
}

// render formats an agent message as Telegram HTML: sanitized narrative
// followed by one numbered card per operation.
func (tg *TelegramGateway) render(msg session.Message) string {
	var b strings.Builder
	b.WriteString(tg.sanitizer.Sanitize(msg.Text))
	if msg.ErrorNote != "" {
		b.WriteString("\n\n<i>" + html.EscapeString(msg.ErrorNote) + "</i>")
	}
	for i, op := range msg.Operations {
		fmt.Fprintf(&b, "\n\n<b>%d. %s</b>", i+1, html.EscapeString(op.Description))
		if op.HasSnippet() {
			b.WriteString("\n<pre>" + html.EscapeString(op.Snippet) + "</pre>")
		}
	}
	return b.String()
}

func (tg *TelegramGateway) send(c tgbotapi.Chattable) {
	if _, err := tg.Bot.Send(c); err != nil {
		log.Printf("telegram send: %v", err)
	}
}

func (tg *TelegramGateway) request(c tgbotapi.Chattable) {
	if _, err := tg.Bot.Request(c); err != nil {
		log.Printf("telegram request: %v", err)
	}
}

// Send delivers plain text to a chat.
func (tg *TelegramGateway) Send(chatID string, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}
	_, err = tg.Bot.Send(tgbotapi.NewMessage(id, text))
	return err
}

func (tg *TelegramGateway) Stop() error {
	tg.Bot.StopReceivingUpdates()
	tg.mu.Lock()
	defer tg.mu.Unlock()
	for id, s := range tg.sessions {
		s.Close()
		delete(tg.sessions, id)
	}
	return nil
}

// keyboard builds one button per runnable operation, labelled with its status.
func keyboard(s *session.Session, msg session.Message) (tgbotapi.InlineKeyboardMarkup, bool) {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, op := range msg.Operations {
		if !op.HasSnippet() {
			continue
		}
		label := buttonLabel(s.StatusOf(msg.ID, i), i)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, runData(msg.ID, i)),
		))
	}
	if len(rows) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), true
}

func buttonLabel(st status.Status, idx int) string {
	n := idx + 1
	switch st {
	case status.Executing:
		return fmt.Sprintf("⏳ Running %d", n)
	case status.Success:
		return fmt.Sprintf("✅ Run %d again", n)
	case status.Error:
		return fmt.Sprintf("❌ Retry %d", n)
	default:
		return fmt.Sprintf("▶️ Run %d", n)
	}
}

func runData(msgID string, idx int) string {
	return fmt.Sprintf("%s:%s:%d", callbackRun, msgID, idx)
}

func parseRunData(data string) (msgID string, idx int, ok bool) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0] != callbackRun || parts[1] == "" {
		return "", 0, false
	}
	idx, err := strconv.Atoi(parts[2])
	if err != nil || idx < 0 {
		return "", 0, false
	}
	return parts[1], idx, true
}
