// Package session поднимает сессию пользователя: выбирает проект и
// находит или создаёт профиль пользователя в нём.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/tarot-miniapp/internal/lib/sl"
	"github.com/magabrotheeeer/tarot-miniapp/internal/models"
	"github.com/magabrotheeeer/tarot-miniapp/internal/tenant"
)

var (
	// ErrNoProjectsAvailable бэкенд вернул пустой список проектов.
	ErrNoProjectsAvailable = errors.New("no projects available")
	// ErrUserBootstrapFailed не удалось ни найти, ни создать пользователя.
	ErrUserBootstrapFailed = errors.New("user bootstrap failed")
)

// Gateway вызовы бэкенда, нужные для запуска сессии.
type Gateway interface {
	ListProjects(ctx context.Context) ([]models.Project, error)
	ThemeSettings(ctx context.Context, projectID int) (models.Theme, error)
	FindUser(ctx context.Context, telegramUserID int64, projectID int) (*models.User, error)
	CreateUser(ctx context.Context, identity models.Identity, projectID int) (*models.User, error)
}

// Session результат запуска: выбранный проект, пользователь и тема оформления.
type Session struct {
	Project models.Project
	User    models.User
	Theme   models.Theme
}

// Bootstrapper запускает сессии. Повторов не делает.
type Bootstrapper struct {
	gw     Gateway
	tenant tenant.Context
	log    *slog.Logger
}

// NewBootstrapper создаёт Bootstrapper с явным контекстом выбора проекта.
func NewBootstrapper(gw Gateway, tc tenant.Context, log *slog.Logger) *Bootstrapper {
	return &Bootstrapper{
		gw:     gw,
		tenant: tc,
		log:    log,
	}
}

// Bootstrap получает проекты, выбирает проект, находит или создаёт пользователя
// и подгружает тему. Ошибка темы не прерывает запуск.
func (b *Bootstrapper) Bootstrap(ctx context.Context, identity models.Identity) (*Session, error) {
	const op = "session.Bootstrap"

	log := b.log.With(
		slog.String("op", op),
		slog.Int64("telegram_user_id", identity.ID),
	)

	projects, err := b.gw.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(projects) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNoProjectsAvailable)
	}

	project, rule, err := tenant.Resolve(projects, b.tenant)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Debug("project resolved",
		slog.Int("project_id", project.ID),
		slog.String("rule", string(rule)),
	)

	user, err := b.upsertUser(ctx, log, identity, project.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	theme, err := b.gw.ThemeSettings(ctx, project.ID)
	if err != nil {
		log.Warn("theme settings unavailable, using defaults", sl.Err(err))
		theme = models.DefaultTheme()
	}

	log.Info("session started",
		slog.Int("project_id", project.ID),
		slog.Int("user_id", user.ID),
		slog.Int("balance", user.Balance),
	)

	return &Session{
		Project: project,
		User:    *user,
		Theme:   theme.WithDefaults(),
	}, nil
}

// upsertUser ошибка поиска и пустой результат трактуются одинаково: пользователь создаётся.
func (b *Bootstrapper) upsertUser(ctx context.Context, log *slog.Logger, identity models.Identity, projectID int) (*models.User, error) {
	user, err := b.gw.FindUser(ctx, identity.ID, projectID)
	if err != nil {
		log.Debug("user lookup failed, creating", sl.Err(err))
	}
	if err == nil && user != nil {
		return user, nil
	}

	user, err = b.gw.CreateUser(ctx, identity, projectID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUserBootstrapFailed, err)
	}
	return user, nil
}
