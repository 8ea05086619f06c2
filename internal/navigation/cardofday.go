package navigation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/tarot-miniapp/internal/dailycache"
	"github.com/magabrotheeeer/tarot-miniapp/internal/events"
	"github.com/magabrotheeeer/tarot-miniapp/internal/lib/sl"
	"github.com/magabrotheeeer/tarot-miniapp/internal/models"
)

// codOutcome результат вытягивания карты дня вне цикла.
type codOutcome struct {
	rec        models.DailyCardRecord
	drawn      bool
	persistErr error
}

// showCardOfDay не больше одного платного вытягивания на пользователя за
// календарный день: существующая запись показывается без обращения к бэкенду,
// даже если баланс уже нулевой.
func (m *Machine) showCardOfDay(ctx context.Context) {
	const op = "navigation.showCardOfDay"

	day := m.today()
	tok := m.enter(KindCardOfDayLoading)
	m.st = state{screen: KindCardOfDayLoading}

	if m.cod != nil && m.cod.day == day {
		// Вытягивание за этот день уже идёт, результат покажется на новом экране.
		m.cod.tok = tok
		m.render(ctx, CardOfDayLoading{})
		return
	}

	userID := m.user.ID
	async(ctx, m, func(ctx context.Context) (*models.DailyCardRecord, error) {
		return m.store.Lookup(ctx, userID, day)
	}, func(ctx context.Context, rec *models.DailyCardRecord, err error) {
		if !m.current(tok) {
			m.discard(op, tok)
			return
		}
		if err != nil {
			m.fail(ctx, op, err)
			return
		}
		if rec != nil {
			m.log.Debug("card of day served from cache", slog.String("op", op), slog.String("day", day))
			m.showDailyRecord(ctx, tok, *rec, true)
			return
		}
		m.drawCardOfDay(ctx, tok, day)
	})
}

func (m *Machine) drawCardOfDay(ctx context.Context, tok uint64, day string) {
	const op = "navigation.drawCardOfDay"

	if m.cod != nil && m.cod.day == day {
		m.cod.tok = tok
		m.render(ctx, CardOfDayLoading{})
		return
	}
	if m.user.Balance <= 0 {
		m.fail(ctx, op, ErrInsufficientBalance)
		return
	}

	m.render(ctx, CardOfDayLoading{})
	m.cod = &codDraw{day: day, tok: tok}

	userID, projectID, name := m.user.ID, m.project.ID, m.opts.CardOfDayName
	async(ctx, m, func(ctx context.Context) (codOutcome, error) {
		spreads, err := m.gw.ListSpreads(ctx, projectID)
		if err != nil {
			return codOutcome{}, err
		}
		var spread *models.Spread
		for i := range spreads {
			if spreads[i].IsCardOfDay(name) {
				spread = &spreads[i]
				break
			}
		}
		if spread == nil {
			return codOutcome{}, fmt.Errorf("%w: %q", ErrCardOfDaySpreadMissing, name)
		}

		drawn, err := m.gw.DrawCards(ctx, userID, spread.ID, "")
		if err != nil {
			return codOutcome{}, err
		}

		out := codOutcome{
			drawn: true,
			rec: models.DailyCardRecord{
				UserID:     userID,
				Date:       day,
				SpreadID:   spread.ID,
				SpreadName: spread.Name,
				Drawn:      *drawn,
			},
		}
		// Запись сохраняется до показа результата.
		created, err := m.store.Create(ctx, out.rec)
		if err != nil {
			out.persistErr = err
			return out, nil
		}
		if !created {
			existing, err := m.store.Lookup(ctx, userID, day)
			if err == nil && existing != nil {
				out.rec = *existing
			}
		}
		return out, nil
	}, func(ctx context.Context, out codOutcome, err error) {
		if m.cod != nil && m.cod.day == day {
			tok = m.cod.tok
			m.cod = nil
		}

		if out.drawn {
			m.user.Balance--
			m.opts.Metrics.draw("card_of_day")
			m.publish(events.KeyCardOfDayDrawn, events.Event{SpreadID: out.rec.SpreadID})
		}
		if out.persistErr != nil {
			m.log.Error("card of day not persisted", slog.String("op", op), slog.String("day", day), sl.Err(out.persistErr))
		}

		if !m.current(tok) {
			m.discard(op, tok)
			return
		}
		if err != nil {
			m.fail(ctx, op, err)
			return
		}
		m.showDailyRecord(ctx, tok, out.rec, false)
	})
}

// showDailyRecord показывает карту дня и догружает толкование, если его нет в записи.
func (m *Machine) showDailyRecord(ctx context.Context, tok uint64, rec models.DailyCardRecord, cached bool) {
	const op = "navigation.showDailyRecord"

	m.st.screen = KindCardOfDayResult
	drawn := rec.Drawn
	m.st.drawn = &drawn
	m.render(ctx, CardOfDayResult{Record: rec, Cached: cached, Balance: m.user.Balance})

	if rec.Interpretation != nil {
		m.patch(ctx, Patch{
			Region: RegionInterpretation,
			State:  PatchReady,
			Markup: m.opts.Markdown(rec.Interpretation.AIResponse),
		})
		return
	}

	userID, day := rec.UserID, rec.Date
	m.loadInterpretation(ctx, tok, rec.SpreadID, rec.Drawn.InterpretationID, "", func(ctx context.Context, it models.Interpretation) {
		async(ctx, m, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, m.store.SaveInterpretation(ctx, userID, day, it)
		}, func(_ context.Context, _ struct{}, err error) {
			if err != nil && !errors.Is(err, context.Canceled) {
				m.log.Warn("card of day interpretation not persisted", slog.String("op", op), sl.Err(err))
			}
		})
	})
}

func (m *Machine) today() string {
	return dailycache.Day(m.opts.Now(), m.opts.Location)
}
