// Package telegram выводит экраны мини-приложения в чат Telegram и
// направляет обновления бота в машины состояний по одной на чат.
package telegram

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/tarot-miniapp/internal/lib/sl"
	"github.com/magabrotheeeer/tarot-miniapp/internal/navigation"
)

// Sender часть *tgbotapi.BotAPI, которой пользуется пакет.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type pendingInput int

const (
	pendingNone pendingInput = iota
	pendingQuestion
	pendingCredential
)

// ChatRenderer реализует navigation.Renderer для одного чата.
// Свободный текст чата направляется в ожидающий ввод: вопрос или PIN.
type ChatRenderer struct {
	chatID int64
	bot    Sender
	log    *slog.Logger

	mu       sync.Mutex
	d        navigation.Dispatcher
	queued   []navigation.Action
	pending  pendingInput
	regionID int
}

// maxQueued нажатия, сохраняемые до запуска машины.
const maxQueued = 8

// NewChatRenderer создаёт Renderer для чата chatID.
func NewChatRenderer(chatID int64, bot Sender, log *slog.Logger) *ChatRenderer {
	return &ChatRenderer{
		chatID: chatID,
		bot:    bot,
		log:    log.With(sl.Chat(chatID)),
	}
}

// Bind реализует navigation.Renderer.
// Нажатия, пришедшие до Bind, передаются d в порядке поступления.
func (r *ChatRenderer) Bind(d navigation.Dispatcher) {
	r.mu.Lock()
	r.d = d
	queued := r.queued
	r.queued = nil
	r.mu.Unlock()

	for _, a := range queued {
		d.Dispatch(a)
	}
}

// Render реализует navigation.Renderer: каждый экран новое сообщение.
func (r *ChatRenderer) Render(_ context.Context, s navigation.Screen) error {
	const op = "telegram.Render"

	r.mu.Lock()
	r.regionID = 0
	if s.Kind() == navigation.KindQuestionInput {
		r.pending = pendingQuestion
	} else {
		r.pending = pendingNone
	}
	r.mu.Unlock()

	v := screenView(s)
	msg := tgbotapi.NewMessage(r.chatID, truncate(v.text))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if v.keyboard != nil {
		msg.ReplyMarkup = *v.keyboard
	}
	if _, err := r.bot.Send(msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Patch реализует navigation.Renderer. Область толкования отдельное сообщение:
// индикатор загрузки отправляется, а затем редактируется результатом.
func (r *ChatRenderer) Patch(_ context.Context, p navigation.Patch) error {
	const op = "telegram.Patch"

	var text string
	switch p.State {
	case navigation.PatchLoading:
		text = "⏳ " + html.EscapeString(p.Message)
	case navigation.PatchReady:
		text = "🔮 <b>Толкование</b>\n\n" + p.Markup
	case navigation.PatchFailed:
		text = "⚠️ Не удалось получить толкование: " + html.EscapeString(p.Message)
	}
	text = truncate(text)

	var keyboard *tgbotapi.InlineKeyboardMarkup
	if p.State != navigation.PatchLoading {
		kb := backToMenu()
		keyboard = &kb
	}

	r.mu.Lock()
	regionID := r.regionID
	r.mu.Unlock()

	if regionID != 0 {
		edit := tgbotapi.NewEditMessageText(r.chatID, regionID, text)
		edit.ParseMode = tgbotapi.ModeHTML
		edit.DisableWebPagePreview = true
		edit.ReplyMarkup = keyboard
		if _, err := r.bot.Send(edit); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}

	msg := tgbotapi.NewMessage(r.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}
	sent, err := r.bot.Send(msg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if p.State == navigation.PatchLoading {
		r.mu.Lock()
		r.regionID = sent.MessageID
		r.mu.Unlock()
	}
	return nil
}

// Prompt реализует navigation.Renderer: следующий текст чата станет ответом.
func (r *ChatRenderer) Prompt(_ context.Context, req navigation.PromptRequest) error {
	const op = "telegram.Prompt"

	r.mu.Lock()
	if req.Purpose == navigation.PromptCredential {
		r.pending = pendingCredential
	}
	r.mu.Unlock()

	msg := tgbotapi.NewMessage(r.chatID, "🔐 "+html.EscapeString(req.Text))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.ForceReply{ForceReply: true, InputFieldPlaceholder: "PIN"}
	if _, err := r.bot.Send(msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// HandleText направляет свободный текст в ожидающий ввод.
func (r *ChatRenderer) HandleText(text string) {
	r.mu.Lock()
	pending, d := r.pending, r.d
	r.pending = pendingNone
	r.mu.Unlock()

	if d == nil {
		return
	}
	switch pending {
	case pendingQuestion:
		d.Dispatch(navigation.Action{Kind: navigation.ActionSubmitQuestion, Text: text})
	case pendingCredential:
		d.Dispatch(navigation.Action{Kind: navigation.ActionCredential, Text: text})
	default:
		if _, err := r.bot.Send(tgbotapi.NewMessage(r.chatID, textOutsideFlow)); err != nil {
			r.log.Warn("hint not sent", sl.Err(err))
		}
	}
}

// HandleCallback разбирает данные inline-кнопки и передаёт действие машине.
// Пока сессия запускается, действие откладывается до Bind и queued равно true.
func (r *ChatRenderer) HandleCallback(data string) (queued bool, err error) {
	const op = "telegram.HandleCallback"

	a, err := navigation.ParseAction(data)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	r.mu.Lock()
	d := r.d
	if a.Kind == navigation.ActionSubmitQuestion {
		r.pending = pendingNone
	}
	if d == nil {
		if len(r.queued) < maxQueued {
			r.queued = append(r.queued, a)
		}
		r.mu.Unlock()
		return true, nil
	}
	r.mu.Unlock()

	d.Dispatch(a)
	return false, nil
}
