package telegram

import (
	"context"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/tarot-miniapp/internal/lib/sl"
	"github.com/magabrotheeeer/tarot-miniapp/internal/models"
	"github.com/magabrotheeeer/tarot-miniapp/internal/navigation"
	"github.com/magabrotheeeer/tarot-miniapp/internal/session"
)

// Bootstrapper запускает сессию пользователя.
type Bootstrapper interface {
	Bootstrap(ctx context.Context, identity models.Identity) (*session.Session, error)
}

// Runner машина состояний сессии.
type Runner interface {
	Run(ctx context.Context) error
}

// MachineFactory создаёт машину для запущенной сессии и Renderer чата.
type MachineFactory func(s *session.Session, r navigation.Renderer) Runner

type chatSession struct {
	renderer *ChatRenderer
	cancel   context.CancelFunc
}

// Router держит по одной сессии на чат и направляет в неё обновления бота.
// /start и кнопка перезапуска с экрана ошибки создают сессию заново.
type Router struct {
	bot        Sender
	boot       Bootstrapper
	newMachine MachineFactory
	log        *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	chats map[int64]*chatSession
}

// NewRouter создаёт Router. Сессии живут до отмены ctx или Shutdown.
func NewRouter(ctx context.Context, bot Sender, boot Bootstrapper, newMachine MachineFactory, log *slog.Logger) *Router {
	ctx, cancel := context.WithCancel(ctx)
	return &Router{
		bot:        bot,
		boot:       boot,
		newMachine: newMachine,
		log:        log,
		ctx:        ctx,
		cancel:     cancel,
		chats:      make(map[int64]*chatSession),
	}
}

// Run читает обновления long polling до закрытия канала или отмены ctx.
func (r *Router) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			r.HandleUpdate(u)
		}
	}
}

// HandleUpdate обрабатывает одно обновление бота.
func (r *Router) HandleUpdate(u tgbotapi.Update) {
	switch {
	case u.CallbackQuery != nil:
		r.handleCallback(u.CallbackQuery)
	case u.Message != nil:
		r.handleMessage(u.Message)
	}
}

func (r *Router) handleMessage(msg *tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID

	if msg.IsCommand() && msg.Command() == "start" {
		r.start(chatID, identity(msg.From))
		return
	}
	cs := r.session(chatID)
	if cs == nil {
		r.start(chatID, identity(msg.From))
		return
	}
	cs.renderer.HandleText(msg.Text)
}

func (r *Router) handleCallback(q *tgbotapi.CallbackQuery) {
	if q.Message == nil || q.Message.Chat == nil {
		r.answer(q.ID, "")
		return
	}
	chatID := q.Message.Chat.ID

	cs := r.session(chatID)
	if q.Data == reloadData || cs == nil {
		r.answer(q.ID, loadingNotice)
		r.start(chatID, identity(q.From))
		return
	}

	queued, err := cs.renderer.HandleCallback(q.Data)
	if err != nil {
		r.log.Warn("unknown callback", sl.Chat(chatID), sl.Err(err))
	}
	if queued {
		r.answer(q.ID, loadingNotice)
		return
	}
	r.answer(q.ID, "")
}

// answer убирает индикатор ожидания с нажатой кнопки, text показывается всплывающей подсказкой.
func (r *Router) answer(callbackID, text string) {
	if _, err := r.bot.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		r.log.Warn("callback not answered", sl.Err(err))
	}
}

func (r *Router) session(chatID int64) *chatSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chats[chatID]
}

// start заменяет сессию чата новой: запуск и машина работают в отдельной горутине.
func (r *Router) start(chatID int64, id models.Identity) {
	log := r.log.With(sl.Chat(chatID), slog.Int64("telegram_user_id", id.ID))

	ctx, cancel := context.WithCancel(r.ctx)
	cs := &chatSession{
		renderer: NewChatRenderer(chatID, r.bot, r.log),
		cancel:   cancel,
	}

	r.mu.Lock()
	if old, ok := r.chats[chatID]; ok {
		old.cancel()
	}
	r.chats[chatID] = cs
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()

		if err := cs.renderer.Render(ctx, navigation.Loading{Message: "Загрузка..."}); err != nil {
			log.Warn("loading screen not sent", sl.Err(err))
		}

		s, err := r.boot.Bootstrap(ctx, id)
		if err != nil {
			log.Error("session bootstrap failed", sl.Err(err))
			if err := cs.renderer.Render(ctx, navigation.Error{Message: navigation.Message(err)}); err != nil {
				log.Warn("error screen not sent", sl.Err(err))
			}
			return
		}

		log.Info("session started", slog.Int("user_id", s.User.ID), slog.Int("project_id", s.Project.ID))
		if err := r.newMachine(s, cs.renderer).Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("session stopped", sl.Err(err))
		}
	}()
}

// Shutdown останавливает все сессии и ждёт их завершения.
func (r *Router) Shutdown() {
	r.cancel()
	r.wg.Wait()
}

// identity личность пользователя Telegram. Без отправителя используется тестовая.
func identity(u *tgbotapi.User) models.Identity {
	if u == nil {
		return models.TestIdentity
	}
	return models.Identity{ID: u.ID, Username: u.UserName}
}
