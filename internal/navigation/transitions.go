package navigation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/tarot-miniapp/internal/events"
	"github.com/magabrotheeeer/tarot-miniapp/internal/lib/sl"
	"github.com/magabrotheeeer/tarot-miniapp/internal/models"
)

const credentialPromptText = "Введите PIN-код для тестовой оплаты"

// goMenu безусловный возврат в меню. Проект и пользователь сохраняются.
func (m *Machine) goMenu(ctx context.Context) {
	m.enter(KindMenu)
	m.st = state{screen: KindMenu}
	m.render(ctx, Menu{Project: m.project, User: m.user, Theme: m.theme})
}

func (m *Machine) showSpreads(ctx context.Context) {
	const op = "navigation.showSpreads"

	tok := m.enter(KindSpreads)
	m.st = state{screen: KindSpreads}
	m.render(ctx, Loading{Message: "Загрузка раскладов..."})

	projectID := m.project.ID
	async(ctx, m, func(ctx context.Context) ([]models.Spread, error) {
		return m.gw.ListSpreads(ctx, projectID)
	}, func(ctx context.Context, spreads []models.Spread, err error) {
		if !m.current(tok) {
			m.discard(op, tok)
			return
		}
		if err != nil {
			m.fail(ctx, op, err)
			return
		}
		visible := make([]models.Spread, 0, len(spreads))
		for _, s := range spreads {
			if !s.IsCardOfDay(m.opts.CardOfDayName) {
				visible = append(visible, s)
			}
		}
		if len(visible) == 0 {
			m.fail(ctx, op, ErrEmptySpreadSet)
			return
		}
		m.st.spreads = visible
		m.render(ctx, Spreads{Spreads: visible})
	})
}

func (m *Machine) selectSpread(ctx context.Context, spreadID int) {
	const op = "navigation.selectSpread"

	if m.st.screen != KindSpreads {
		m.log.Debug("spread selected outside spreads screen", slog.String("op", op))
		return
	}
	var chosen *models.Spread
	for i := range m.st.spreads {
		if m.st.spreads[i].ID == spreadID {
			chosen = &m.st.spreads[i]
			break
		}
	}
	if chosen == nil {
		m.fail(ctx, op, fmt.Errorf("%w: spread %d", ErrUnknownSelection, spreadID))
		return
	}

	spread := *chosen
	m.enter(KindQuestionInput)
	m.st = state{screen: KindQuestionInput, spread: &spread}
	m.render(ctx, QuestionInput{Spread: spread})
}

func (m *Machine) submitQuestion(ctx context.Context, text string) {
	const op = "navigation.submitQuestion"

	if m.st.screen != KindQuestionInput || m.st.spread == nil {
		m.log.Debug("question outside question screen", slog.String("op", op))
		return
	}
	if m.user.Balance <= 0 {
		m.fail(ctx, op, ErrInsufficientBalance)
		return
	}

	spread := *m.st.spread
	question := strings.TrimSpace(text)
	tok := m.enter(KindCardsResult)
	m.st = state{screen: KindCardsResult, spread: &spread, question: question}
	m.render(ctx, Loading{Message: "Тасуем колоду..."})

	userID := m.user.ID
	async(ctx, m, func(ctx context.Context) (*models.DrawnCardSet, error) {
		return m.gw.DrawCards(ctx, userID, spread.ID, question)
	}, func(ctx context.Context, drawn *models.DrawnCardSet, err error) {
		if err != nil {
			if !m.current(tok) {
				m.discard(op, tok)
				return
			}
			m.fail(ctx, op, err)
			return
		}

		// Вытягивание уже оплачено на бэкенде, баланс уменьшается даже для устаревшего экрана.
		m.user.Balance--
		m.opts.Metrics.draw("reading")
		m.publish(events.KeyReadingDrawn, events.Event{SpreadID: spread.ID})

		if !m.current(tok) {
			m.discard(op, tok)
			return
		}
		m.st.drawn = drawn
		m.render(ctx, CardsResult{
			Spread:   spread,
			Question: question,
			Drawn:    *drawn,
			Balance:  m.user.Balance,
		})
		m.loadInterpretation(ctx, tok, spread.ID, drawn.InterpretationID, question, nil)
	})
}

// loadInterpretation запрашивает толкование и обновляет его область на экране tok.
// onReady вызывается в цикле после успешного получения, даже если экран сменился.
func (m *Machine) loadInterpretation(ctx context.Context, tok uint64, spreadID, interpretationID int, question string, onReady func(ctx context.Context, it models.Interpretation)) {
	const op = "navigation.loadInterpretation"

	m.patch(ctx, Patch{Region: RegionInterpretation, State: PatchLoading, Message: "Получаем толкование..."})

	userID := m.user.ID
	async(ctx, m, func(ctx context.Context) (*models.Interpretation, error) {
		return m.gw.FetchInterpretation(ctx, userID, spreadID, interpretationID, question)
	}, func(ctx context.Context, it *models.Interpretation, err error) {
		if err == nil && onReady != nil {
			onReady(ctx, *it)
		}
		if !m.current(tok) {
			m.discard(op, tok)
			return
		}
		if err != nil {
			m.log.Error("interpretation failed", slog.String("op", op), sl.Err(err))
			m.patch(ctx, Patch{Region: RegionInterpretation, State: PatchFailed, Message: Message(err)})
			return
		}
		m.patch(ctx, Patch{Region: RegionInterpretation, State: PatchReady, Markup: m.opts.Markdown(it.AIResponse)})
	})
}

func (m *Machine) showPackages(ctx context.Context) {
	const op = "navigation.showPackages"

	tok := m.enter(KindPackages)
	m.st = state{screen: KindPackages}
	m.render(ctx, Loading{Message: "Загрузка пакетов..."})

	projectID := m.project.ID
	async(ctx, m, func(ctx context.Context) ([]models.Package, error) {
		return m.gw.ListPackages(ctx, projectID)
	}, func(ctx context.Context, pkgs []models.Package, err error) {
		if !m.current(tok) {
			m.discard(op, tok)
			return
		}
		if err != nil {
			m.fail(ctx, op, err)
			return
		}
		active := make([]models.Package, 0, len(pkgs))
		for _, p := range pkgs {
			if p.IsActive {
				active = append(active, p)
			}
		}
		if len(active) == 0 {
			m.fail(ctx, op, ErrEmptyPackageSet)
			return
		}
		m.st.packages = active
		m.render(ctx, Packages{Packages: active, Balance: m.user.Balance})
	})
}

func (m *Machine) buyPackage(ctx context.Context, packageID int) {
	const op = "navigation.buyPackage"

	if m.st.screen != KindPackages {
		m.log.Debug("package selected outside packages screen", slog.String("op", op))
		return
	}
	var chosen *models.Package
	for i := range m.st.packages {
		if m.st.packages[i].ID == packageID {
			chosen = &m.st.packages[i]
			break
		}
	}
	if chosen == nil {
		m.fail(ctx, op, fmt.Errorf("%w: package %d", ErrUnknownSelection, packageID))
		return
	}

	pkg := *chosen
	m.st.pkg = &pkg
	if err := m.renderer.Prompt(ctx, PromptRequest{Purpose: PromptCredential, Text: credentialPromptText}); err != nil {
		m.fail(ctx, op, err)
	}
}

func (m *Machine) submitCredential(ctx context.Context, pin string) {
	const op = "navigation.submitCredential"

	if m.st.screen != KindPackages || m.st.pkg == nil {
		m.log.Debug("credential without pending purchase", slog.String("op", op))
		return
	}
	pin = strings.TrimSpace(pin)
	if pin == "" {
		m.fail(ctx, op, ErrMissingCredential)
		return
	}

	pkg := *m.st.pkg
	tok := m.enter(KindPaymentSuccess)
	m.st = state{screen: KindPaymentSuccess, pkg: &pkg}
	m.render(ctx, Loading{Message: "Обработка платежа..."})

	userID, projectID := m.user.ID, m.project.ID
	async(ctx, m, func(ctx context.Context) (*models.PaymentResult, error) {
		return m.gw.CreateTestPayment(ctx, userID, projectID, pkg.ID, pin)
	}, func(ctx context.Context, res *models.PaymentResult, err error) {
		if err != nil {
			if !m.current(tok) {
				m.discard(op, tok)
				return
			}
			m.fail(ctx, op, err)
			return
		}

		m.user.Balance = res.NewBalance
		if res.SubscriptionEnd != nil {
			m.user.SubscriptionEnd = res.SubscriptionEnd
		}
		m.publish(events.KeyPaymentCompleted, events.Event{PackageID: pkg.ID})

		if !m.current(tok) {
			m.discard(op, tok)
			return
		}
		m.render(ctx, PaymentSuccess{
			Package:         pkg,
			Balance:         m.user.Balance,
			SubscriptionEnd: m.user.SubscriptionEnd,
		})
		m.after(m.opts.PaymentSuccessDelay, func(ctx context.Context) {
			if m.current(tok) {
				m.goMenu(ctx)
			}
		})
	})
}

// after выполняет fn в цикле через d.
func (m *Machine) after(d time.Duration, fn func(ctx context.Context)) {
	go func() {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			m.post(fn)
		case <-m.done:
		}
	}()
}

func (m *Machine) showHistory(ctx context.Context) {
	const op = "navigation.showHistory"

	tok := m.enter(KindHistory)
	m.st = state{screen: KindHistory}
	m.render(ctx, Loading{Message: "Загрузка истории..."})

	userID := m.user.ID
	async(ctx, m, func(ctx context.Context) ([]models.Interpretation, error) {
		return m.gw.ListInterpretations(ctx, userID)
	}, func(ctx context.Context, items []models.Interpretation, err error) {
		if !m.current(tok) {
			m.discard(op, tok)
			return
		}
		if err != nil {
			m.fail(ctx, op, err)
			return
		}
		if len(items) == 0 {
			m.fail(ctx, op, ErrEmptyHistorySet)
			return
		}
		m.st.history = items
		m.render(ctx, History{Entries: items})
	})
}

// showHistoryEntry локальная проекция уже загруженной истории, без запросов.
func (m *Machine) showHistoryEntry(ctx context.Context, index int) {
	const op = "navigation.showHistoryEntry"

	if m.st.screen != KindHistory && m.st.screen != KindHistoryDetail {
		m.log.Debug("history entry outside history", slog.String("op", op))
		return
	}
	if index < 0 || index >= len(m.st.history) {
		m.fail(ctx, op, fmt.Errorf("%w: history entry %d", ErrUnknownSelection, index))
		return
	}

	entry := m.st.history[index]
	m.enter(KindHistoryDetail)
	m.st.screen = KindHistoryDetail
	m.st.index = index
	m.render(ctx, HistoryDetail{
		Index:  index,
		Entry:  entry,
		Cards:  entry.Cards(),
		Markup: m.opts.Markdown(entry.AIResponse),
	})
}
