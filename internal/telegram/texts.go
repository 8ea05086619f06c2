package telegram

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/tarot-miniapp/internal/models"
	"github.com/magabrotheeeer/tarot-miniapp/internal/navigation"
)

const (
	// reloadData перезапуск сессии с экрана ошибки.
	reloadData = "reload"

	maxMessageLen = 4000
	// closingReserve место под многоточие и закрывающие теги.
	closingReserve = 64
	maxEntityLen   = 10

	questionText    = "✍️ Напишите вопрос к раскладу «%s» одним сообщением или нажмите «Без вопроса»."
	cardOfDayWait   = "🌞 Тянем карту дня..."
	textOutsideFlow = "Воспользуйтесь кнопками меню."
	loadingNotice   = "Загрузка..."
)

func button(text string, a navigation.Action) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(text, a.Encode())
}

func menuRow() []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(button("🏠 Меню", navigation.Action{Kind: navigation.ActionMenu}))
}

func menuKeyboard(theme models.Theme) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(button(theme.ButtonEmoji+" Расклады", navigation.Action{Kind: navigation.ActionSpreads})),
		tgbotapi.NewInlineKeyboardRow(button("🌞 Карта дня", navigation.Action{Kind: navigation.ActionCardOfDay})),
		tgbotapi.NewInlineKeyboardRow(
			button("📜 История", navigation.Action{Kind: navigation.ActionHistory}),
			button("💎 Пакеты", navigation.Action{Kind: navigation.ActionPackages}),
		),
	)
}

func backToMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(menuRow())
}

func reloadKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔄 Начать заново", reloadData)),
	)
}

// view текст и клавиатура экрана.
type view struct {
	text     string
	keyboard *tgbotapi.InlineKeyboardMarkup
}

func withKeyboard(text string, kb tgbotapi.InlineKeyboardMarkup) view {
	return view{text: text, keyboard: &kb}
}

// screenView строит сообщение для экрана.
func screenView(s navigation.Screen) view {
	switch s := s.(type) {
	case navigation.Menu:
		return withKeyboard(menuText(s), menuKeyboard(s.Theme))
	case navigation.Loading:
		return view{text: "⏳ " + html.EscapeString(s.Message)}
	case navigation.Spreads:
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(s.Spreads)+1)
		for _, sp := range s.Spreads {
			label := fmt.Sprintf("%s (%d %s)", sp.Name, sp.NumCards, cardsWord(sp.NumCards))
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				button(label, navigation.Action{Kind: navigation.ActionSelectSpread, ID: sp.ID}),
			))
		}
		rows = append(rows, menuRow())
		return withKeyboard("🔮 <b>Выберите расклад</b>", tgbotapi.NewInlineKeyboardMarkup(rows...))
	case navigation.QuestionInput:
		text := fmt.Sprintf(questionText, html.EscapeString(s.Spread.Name))
		if s.Spread.Description != "" {
			text = "<i>" + html.EscapeString(s.Spread.Description) + "</i>\n\n" + text
		}
		return withKeyboard(text, tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(button("➡️ Без вопроса", navigation.Action{Kind: navigation.ActionSubmitQuestion})),
			menuRow(),
		))
	case navigation.CardsResult:
		var b strings.Builder
		fmt.Fprintf(&b, "🃏 <b>%s</b>\n", html.EscapeString(s.Spread.Name))
		if s.Question != "" {
			fmt.Fprintf(&b, "❓ %s\n", html.EscapeString(s.Question))
		}
		b.WriteString("\n")
		writeCards(&b, s.Drawn.Cards)
		fmt.Fprintf(&b, "\nОсталось раскладов: %d", s.Balance)
		return view{text: b.String()}
	case navigation.Packages:
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(s.Packages)+1)
		var b strings.Builder
		fmt.Fprintf(&b, "💎 <b>Пакеты</b>\nВаш баланс: %d\n\n", s.Balance)
		for _, p := range s.Packages {
			fmt.Fprintf(&b, "• %s\n", html.EscapeString(packageLine(p)))
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				button(fmt.Sprintf("%s — %s ₽", p.Name, p.Price.StringFixed(2)), navigation.Action{Kind: navigation.ActionBuyPackage, ID: p.ID}),
			))
		}
		rows = append(rows, menuRow())
		return withKeyboard(b.String(), tgbotapi.NewInlineKeyboardMarkup(rows...))
	case navigation.PaymentSuccess:
		text := fmt.Sprintf("✅ <b>Оплата прошла успешно!</b>\nПакет: %s\nБаланс: %d",
			html.EscapeString(s.Package.Name), s.Balance)
		if s.SubscriptionEnd != nil {
			text += "\nПодписка до: " + s.SubscriptionEnd.Format("02.01.2006")
		}
		return view{text: text}
	case navigation.History:
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(s.Entries)+1)
		for i, e := range s.Entries {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				button(historyLabel(e), navigation.Action{Kind: navigation.ActionHistoryEntry, ID: i}),
			))
		}
		rows = append(rows, menuRow())
		return withKeyboard("📜 <b>История раскладов</b>", tgbotapi.NewInlineKeyboardMarkup(rows...))
	case navigation.HistoryDetail:
		var b strings.Builder
		fmt.Fprintf(&b, "🃏 <b>%s</b>\n", html.EscapeString(s.Entry.SpreadName))
		if s.Entry.UserQuestion != "" {
			fmt.Fprintf(&b, "❓ %s\n", html.EscapeString(s.Entry.UserQuestion))
		}
		b.WriteString("\n")
		writeCards(&b, s.Cards)
		if s.Markup != "" {
			b.WriteString("\n" + s.Markup)
		}
		return withKeyboard(b.String(), tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(button("⬅️ История", navigation.Action{Kind: navigation.ActionHistory})),
			menuRow(),
		))
	case navigation.CardOfDayLoading:
		return view{text: cardOfDayWait}
	case navigation.CardOfDayResult:
		var b strings.Builder
		b.WriteString("🌞 <b>Карта дня</b>")
		if s.Cached {
			b.WriteString(" (уже вытянута сегодня)")
		}
		b.WriteString("\n\n")
		writeCards(&b, s.Record.Drawn.Cards)
		return view{text: b.String()}
	case navigation.Error:
		return withKeyboard("⚠️ "+html.EscapeString(s.Message), reloadKeyboard())
	default:
		return view{text: "…"}
	}
}

func menuText(s navigation.Menu) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>%s</b>\n%s\n\n", s.Theme.ButtonEmoji, html.EscapeString(s.Theme.Title), html.EscapeString(s.Theme.WelcomeText))
	fmt.Fprintf(&b, "Осталось раскладов: %d", s.User.Balance)
	if s.User.SubscriptionEnd != nil {
		fmt.Fprintf(&b, "\nПодписка до: %s", s.User.SubscriptionEnd.Format("02.01.2006"))
	}
	return b.String()
}

func writeCards(b *strings.Builder, cards []models.DrawnCard) {
	for i, c := range cards {
		orientation := "прямая"
		if c.IsReversed {
			orientation = "перевёрнутая"
		}
		fmt.Fprintf(b, "%d. <b>%s</b> (%s)", i+1, html.EscapeString(c.Name), orientation)
		if c.ImageURL != "" {
			fmt.Fprintf(b, ` <a href="%s">🖼</a>`, html.EscapeString(c.ImageURL))
		}
		b.WriteString("\n")
	}
}

func packageLine(p models.Package) string {
	switch {
	case p.IsSubscription() && p.SubscriptionDays != nil:
		return fmt.Sprintf("%s: подписка на %d дн., %s ₽", p.Name, *p.SubscriptionDays, p.Price.StringFixed(2))
	case p.NumReadings != nil:
		return fmt.Sprintf("%s: %d %s, %s ₽", p.Name, *p.NumReadings, readingsWord(*p.NumReadings), p.Price.StringFixed(2))
	default:
		return fmt.Sprintf("%s: %s ₽", p.Name, p.Price.StringFixed(2))
	}
}

func historyLabel(e models.Interpretation) string {
	if e.CreatedAt.IsZero() {
		return e.SpreadName
	}
	return e.CreatedAt.Format("02.01.2006") + " — " + e.SpreadName
}

// plural выбирает форму слова для числа n: одна, две-четыре, пять и больше.
func plural(n int, one, few, many string) string {
	n %= 100
	if n >= 11 && n <= 14 {
		return many
	}
	switch n % 10 {
	case 1:
		return one
	case 2, 3, 4:
		return few
	default:
		return many
	}
}

func cardsWord(n int) string    { return plural(n, "карта", "карты", "карт") }
func readingsWord(n int) string { return plural(n, "расклад", "расклада", "раскладов") }

// truncate обрезает HTML до лимита сообщения Telegram. Теги и сущности
// не разрезаются, незакрытые теги закрываются после многоточия.
func truncate(text string) string {
	if utf8.RuneCountInString(text) <= maxMessageLen {
		return text
	}

	var b strings.Builder
	var open []string
	n := 0
	limit := maxMessageLen - closingReserve
scan:
	for i := 0; i < len(text); {
		tok := htmlToken(text[i:])
		c := utf8.RuneCountInString(tok)
		if n+c > limit {
			break scan
		}
		if strings.HasPrefix(tok, "<") {
			name := tagName(tok)
			switch {
			case strings.HasPrefix(tok, "</"):
				if len(open) > 0 && open[len(open)-1] == name {
					open = open[:len(open)-1]
				}
			case !strings.HasSuffix(tok, "/>"):
				open = append(open, name)
			}
		}
		b.WriteString(tok)
		n += c
		i += len(tok)
	}

	b.WriteString("…")
	for i := len(open) - 1; i >= 0; i-- {
		b.WriteString("</" + open[i] + ">")
	}
	return b.String()
}

// htmlToken первый неделимый фрагмент s: тег, сущность или одна руна.
func htmlToken(s string) string {
	switch s[0] {
	case '<':
		if end := strings.IndexByte(s, '>'); end >= 0 {
			return s[:end+1]
		}
		return s
	case '&':
		if end := strings.IndexByte(s, ';'); end > 0 && end <= maxEntityLen {
			return s[:end+1]
		}
	}
	_, size := utf8.DecodeRuneInString(s)
	return s[:size]
}

func tagName(tag string) string {
	name := strings.TrimLeft(tag, "</")
	if end := strings.IndexAny(name, " />"); end >= 0 {
		name = name[:end]
	}
	return name
}
