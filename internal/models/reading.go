package models

import "time"

// DrawnCard одна вытянутая карта.
type DrawnCard struct {
	Name       string `json:"card_name" validate:"required"`
	ImageURL   string `json:"image_url,omitempty"`
	IsReversed bool   `json:"is_reversed"`
}

// DrawnCardSet упорядоченный набор карт одного расклада и идентификатор
// интерпретации, по которому потом запрашивается толкование.
type DrawnCardSet struct {
	Cards            []DrawnCard `json:"cards" validate:"required,min=1,dive"`
	InterpretationID int         `json:"interpretation_id" validate:"required"`
}

// CardUsage признак ориентации карты в ответе бэкенда.
type CardUsage struct {
	IsReversed bool `json:"is_reversed"`
}

// Interpretation AI-толкование расклада. Неизменяемо после получения.
type Interpretation struct {
	ID              int         `json:"id"`
	Spread          int         `json:"spread,omitempty"`
	SpreadName      string      `json:"spread_name"`
	AIResponse      string      `json:"ai_response"`
	AIServiceStatus string      `json:"ai_service_status,omitempty"`
	CardsNames      []string    `json:"cards_names"`
	CardsImages     []string    `json:"cards_images"`
	CardsUsed       []CardUsage `json:"cards_used,omitempty"`
	UserQuestion    string      `json:"user_question,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

// Cards восстанавливает карты для повторного показа (история).
func (i Interpretation) Cards() []DrawnCard {
	return ZipCards(i.CardsNames, i.CardsImages, i.CardsUsed)
}

// ZipCards собирает карты из параллельных массивов ответа бэкенда.
// Отсутствующие изображения и ориентации заполняются нулевыми значениями.
func ZipCards(names, images []string, used []CardUsage) []DrawnCard {
	cards := make([]DrawnCard, 0, len(names))
	for i, name := range names {
		card := DrawnCard{Name: name}
		if i < len(images) {
			card.ImageURL = images[i]
		}
		if i < len(used) {
			card.IsReversed = used[i].IsReversed
		}
		cards = append(cards, card)
	}
	return cards
}

// DailyCardRecord запись карты дня для пары (пользователь, календарная дата).
type DailyCardRecord struct {
	UserID         int             `json:"user_id"`
	Date           string          `json:"date"`
	SpreadID       int             `json:"spread_id"`
	SpreadName     string          `json:"spread_name"`
	Drawn          DrawnCardSet    `json:"drawn"`
	Interpretation *Interpretation `json:"-"`
}
