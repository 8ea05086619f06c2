// Package navigation реализует машину состояний мини-приложения:
// экраны, переходы между ними и сценарий карты дня.
//
// Всё состояние машины меняется только в горутине Run. Вызовы бэкенда идут
// в отдельных горутинах и возвращают результат в цикл с номером поколения
// экрана, для которого были запущены. Ответ для устаревшего поколения не
// перерисовывает экран, но платные последствия (списание баланса) применяются.
package navigation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/tarot-miniapp/internal/dailycache"
	"github.com/magabrotheeeer/tarot-miniapp/internal/events"
	"github.com/magabrotheeeer/tarot-miniapp/internal/lib/sl"
	"github.com/magabrotheeeer/tarot-miniapp/internal/models"
	"github.com/magabrotheeeer/tarot-miniapp/internal/session"
)

// Gateway вызовы бэкенда, которые делает машина.
type Gateway interface {
	ListSpreads(ctx context.Context, projectID int) ([]models.Spread, error)
	DrawCards(ctx context.Context, userID, spreadID int, question string) (*models.DrawnCardSet, error)
	FetchInterpretation(ctx context.Context, userID, spreadID, interpretationID int, question string) (*models.Interpretation, error)
	ListPackages(ctx context.Context, projectID int) ([]models.Package, error)
	CreateTestPayment(ctx context.Context, userID, projectID, packageID int, pin string) (*models.PaymentResult, error)
	ListInterpretations(ctx context.Context, userID int) ([]models.Interpretation, error)
}

// Options параметры машины. Нулевые значения заменяются значениями по умолчанию.
type Options struct {
	Now                 func() time.Time
	Location            *time.Location
	CardOfDayName       string
	PaymentSuccessDelay time.Duration
	Markdown            MarkdownFunc
	Metrics             *Metrics
}

func (o Options) withDefaults() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.CardOfDayName == "" {
		o.CardOfDayName = "Карта дня"
	}
	if o.PaymentSuccessDelay <= 0 {
		o.PaymentSuccessDelay = 2 * time.Second
	}
	if o.Markdown == nil {
		o.Markdown = func(text string) string { return text }
	}
	return o
}

// state текущий экран и временный контекст перехода.
type state struct {
	screen   Kind
	spreads  []models.Spread
	spread   *models.Spread
	question string
	drawn    *models.DrawnCardSet
	packages []models.Package
	pkg      *models.Package
	history  []models.Interpretation
	index    int
}

// codDraw вытягивание карты дня, ещё не вернувшееся в цикл.
type codDraw struct {
	day string
	tok uint64
}

// Machine машина состояний одной сессии.
type Machine struct {
	gw       Gateway
	renderer Renderer
	store    dailycache.Store
	pub      events.Publisher
	log      *slog.Logger
	opts     Options

	project models.Project
	user    models.User
	theme   models.Theme

	st  state
	gen uint64
	cod *codDraw

	inbox    chan func(ctx context.Context)
	done     chan struct{}
	doneOnce sync.Once
}

// New создаёт машину для запущенной сессии. pub может быть nil.
func New(s *session.Session, gw Gateway, r Renderer, store dailycache.Store, pub events.Publisher, log *slog.Logger, opts Options) *Machine {
	if pub == nil {
		pub = events.Noop{}
	}
	return &Machine{
		gw:       gw,
		renderer: r,
		store:    store,
		pub:      pub,
		log:      log.With(slog.Int("user_id", s.User.ID), slog.Int("project_id", s.Project.ID)),
		opts:     opts.withDefaults(),
		project:  s.Project,
		user:     s.User,
		theme:    s.Theme,
		inbox:    make(chan func(ctx context.Context), 64),
		done:     make(chan struct{}),
	}
}

// Run показывает меню и обрабатывает действия до отмены ctx.
func (m *Machine) Run(ctx context.Context) error {
	const op = "navigation.Run"
	defer m.doneOnce.Do(func() { close(m.done) })

	m.renderer.Bind(m)
	m.goMenu(ctx)

	for {
		select {
		case <-ctx.Done():
			m.log.Debug("machine stopped", slog.String("op", op))
			return ctx.Err()
		case fn := <-m.inbox:
			fn(ctx)
		}
	}
}

// Done закрывается после остановки Run.
func (m *Machine) Done() <-chan struct{} {
	return m.done
}

// Dispatch реализует Dispatcher. Безопасен для вызова из любой горутины.
func (m *Machine) Dispatch(a Action) {
	m.post(func(ctx context.Context) { m.handle(ctx, a) })
}

func (m *Machine) post(fn func(ctx context.Context)) {
	select {
	case m.inbox <- fn:
	case <-m.done:
	}
}

// async выполняет call вне цикла и передаёт результат в done внутри цикла.
func async[T any](ctx context.Context, m *Machine, call func(ctx context.Context) (T, error), done func(ctx context.Context, v T, err error)) {
	go func() {
		v, err := call(ctx)
		m.post(func(ctx context.Context) { done(ctx, v, err) })
	}()
}

// enter переходит на экран k и возвращает его поколение.
func (m *Machine) enter(k Kind) uint64 {
	m.gen++
	m.st.screen = k
	m.opts.Metrics.transition(k)
	return m.gen
}

// current сообщает, что поколение tok всё ещё отображается.
func (m *Machine) current(tok uint64) bool {
	return tok == m.gen
}

func (m *Machine) discard(op string, tok uint64) {
	m.opts.Metrics.staleResponse()
	m.log.Debug("stale response discarded",
		slog.String("op", op),
		slog.Uint64("token", tok),
		slog.Uint64("current", m.gen),
	)
}

func (m *Machine) render(ctx context.Context, s Screen) {
	if err := m.renderer.Render(ctx, s); err != nil {
		m.log.Warn("render failed", slog.String("screen", string(s.Kind())), sl.Err(err))
	}
}

func (m *Machine) patch(ctx context.Context, p Patch) {
	if err := m.renderer.Patch(ctx, p); err != nil {
		m.log.Warn("patch failed", slog.String("region", string(p.Region)), sl.Err(err))
	}
}

// fail показывает экран ошибки и сбрасывает временный контекст.
func (m *Machine) fail(ctx context.Context, op string, err error) {
	m.log.Error("transition failed", slog.String("op", op), sl.Err(err))
	m.enter(KindError)
	m.st = state{screen: KindError}
	m.render(ctx, Error{Message: Message(err)})
}

func (m *Machine) publish(key string, e events.Event) {
	e.Key = key
	e.UserID = m.user.ID
	e.ProjectID = m.project.ID
	e.Balance = m.user.Balance
	e.OccurredAt = m.opts.Now()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.pub.Publish(ctx, e); err != nil {
			m.log.Warn("event publish failed", slog.String("key", key), sl.Err(err))
		}
	}()
}

// Snapshot возвращает текущий экран и копию пользователя, прочитанные в цикле.
func (m *Machine) Snapshot(ctx context.Context) (Kind, models.User, error) {
	type snap struct {
		kind Kind
		user models.User
	}
	res := make(chan snap, 1)
	m.post(func(context.Context) { res <- snap{kind: m.st.screen, user: m.user} })
	select {
	case s := <-res:
		return s.kind, s.user, nil
	case <-m.done:
		return "", models.User{}, context.Canceled
	case <-ctx.Done():
		return "", models.User{}, ctx.Err()
	}
}

func (m *Machine) handle(ctx context.Context, a Action) {
	const op = "navigation.handle"
	m.log.Debug("action", slog.String("op", op), slog.String("kind", string(a.Kind)), slog.Int("id", a.ID))

	switch a.Kind {
	case ActionMenu:
		m.goMenu(ctx)
	case ActionSpreads:
		m.showSpreads(ctx)
	case ActionSelectSpread:
		m.selectSpread(ctx, a.ID)
	case ActionSubmitQuestion:
		m.submitQuestion(ctx, a.Text)
	case ActionPackages:
		m.showPackages(ctx)
	case ActionBuyPackage:
		m.buyPackage(ctx, a.ID)
	case ActionCredential:
		m.submitCredential(ctx, a.Text)
	case ActionHistory:
		m.showHistory(ctx)
	case ActionHistoryEntry:
		m.showHistoryEntry(ctx, a.ID)
	case ActionCardOfDay:
		m.showCardOfDay(ctx)
	default:
		m.log.Warn("unknown action", slog.String("op", op), slog.String("kind", string(a.Kind)))
	}
}
