// Package app собирает зависимости мини-приложения и управляет его жизненным циклом.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/tarot-miniapp/internal/config"
	"github.com/magabrotheeeer/tarot-miniapp/internal/events"
	"github.com/magabrotheeeer/tarot-miniapp/internal/gateway"
	"github.com/magabrotheeeer/tarot-miniapp/internal/lib/jwt"
	"github.com/magabrotheeeer/tarot-miniapp/internal/lib/sl"
	"github.com/magabrotheeeer/tarot-miniapp/internal/navigation"
	"github.com/magabrotheeeer/tarot-miniapp/internal/session"
	"github.com/magabrotheeeer/tarot-miniapp/internal/telegram"
	"github.com/magabrotheeeer/tarot-miniapp/internal/tenant"
)

// Режимы получения обновлений бота.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

type App struct {
	cfg    *config.Config
	server *http.Server
	logger *slog.Logger
	bot    *tgbotapi.BotAPI
	router *telegram.Router
	store  *dailyStore
	pub    events.Publisher
	amqp   interface{ Close() error }
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.New"

	if cfg.Mode != ModePolling && cfg.Mode != ModeWebhook {
		return nil, fmt.Errorf("%s: unknown telegram mode %q", op, cfg.Mode)
	}
	loc, err := cfg.LoadLocation()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	gwOpts := []gateway.Option{
		gateway.WithMetrics(gateway.NewMetrics(registry)),
		gateway.WithRateLimit(cfg.RateLimit, cfg.Burst),
	}
	if cfg.ServiceSecret != "" {
		gwOpts = append(gwOpts, gateway.WithTokenMaker(jwt.NewJWTMaker(cfg.ServiceSecret, "tarot-miniapp", cfg.ServiceTokenTTL)))
	}
	gw := gateway.NewClient(cfg.BaseURL, cfg.Backend.Timeout, logger, gwOpts...)

	store, err := newDailyStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a := &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
		pub:    events.Noop{},
	}

	if cfg.URL != "" {
		conn, err := events.Connect(cfg.URL, cfg.RabbitMQ.MaxRetries, cfg.RetryDelay)
		if err != nil {
			a.closeResources()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		pub, err := events.NewAMQPPublisher(conn, cfg.Exchange)
		if err != nil {
			_ = conn.Close()
			a.closeResources()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.pub = pub
		a.amqp = conn
	} else {
		logger.Info("rabbitmq url is empty, domain events are not published")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	a.bot = bot
	logger.Info("authorized telegram bot", slog.String("username", bot.Self.UserName))

	boot := session.NewBootstrapper(gw, tenant.Context{
		ExplicitID:   cfg.ProjectID,
		ExplicitName: cfg.ProjectName,
		DefaultName:  cfg.DefaultName,
	}, logger)

	navOpts := navigation.Options{
		Location:            loc,
		CardOfDayName:       cfg.CardOfDayName,
		PaymentSuccessDelay: cfg.PaymentSuccessDelay,
		Markdown:            telegram.Markdown,
		Metrics:             navigation.NewMetrics(registry),
	}
	newMachine := func(s *session.Session, r navigation.Renderer) telegram.Runner {
		return navigation.New(s, gw, r, store, a.pub, logger, navOpts)
	}
	a.router = telegram.NewRouter(ctx, bot, boot, newMachine, logger)

	routes := Routes{
		Driver:   cfg.Driver,
		Check:    store.check,
		Registry: registry,
	}
	if cfg.Mode == ModeWebhook {
		routes.Updates = a.router
		routes.WebhookSecret = cfg.WebhookSecret
		routes.Limiter = rate.NewLimiter(rate.Limit(100), 200)
	}
	router := chi.NewRouter()
	RegisterRoutes(router, logger, routes)

	a.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return a, nil
}

func (a *App) Run(ctx context.Context) error {
	const op = "app.Run"

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	switch a.cfg.Mode {
	case ModeWebhook:
		if err := a.setWebhook(); err != nil {
			a.shutdown()
			return fmt.Errorf("%s: %w", op, err)
		}
	default:
		if _, err := a.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			a.logger.Warn("failed to delete webhook", sl.Err(err))
		}
		u := tgbotapi.NewUpdate(0)
		u.Timeout = int(a.cfg.PollTimeout.Seconds())
		go a.router.Run(ctx, a.bot.GetUpdatesChan(u))
		a.logger.Info("long polling started")
	}

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
	}
	a.shutdown()
	return err
}

// setWebhook регистрирует вебхук вместе с секретом, который Telegram
// возвращает в заголовке каждого запроса.
func (a *App) setWebhook() error {
	params := tgbotapi.Params{"url": a.cfg.WebhookURL}
	params.AddNonEmpty("secret_token", a.cfg.WebhookSecret)
	if _, err := a.bot.MakeRequest("setWebhook", params); err != nil {
		return err
	}
	a.logger.Info("webhook registered", slog.String("url", a.cfg.WebhookURL))
	return nil
}

func (a *App) shutdown() {
	a.logger.Info("shutting down gracefully")
	if a.cfg.Mode != ModeWebhook {
		a.bot.StopReceivingUpdates()
	}

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.server.Shutdown(timeoutCtx); err != nil {
		a.logger.Error("http server shutdown failed", sl.Err(err))
	}

	a.router.Shutdown()
	a.closeResources()
}

func (a *App) closeResources() {
	if p, ok := a.pub.(*events.AMQPPublisher); ok {
		if err := p.Close(); err != nil {
			a.logger.Warn("failed to close amqp channel", sl.Err(err))
		}
	}
	if a.amqp != nil {
		if err := a.amqp.Close(); err != nil {
			a.logger.Warn("failed to close amqp connection", sl.Err(err))
		}
	}
	if err := a.store.close(); err != nil {
		a.logger.Warn("failed to close daily cache", sl.Err(err))
	}
}
