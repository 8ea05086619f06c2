package models

import "strings"

// Spread шаблон расклада с фиксированным количеством карт.
type Spread struct {
	ID          int    `json:"id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	NumCards    int    `json:"num_cards" validate:"gt=0"`
}

// IsCardOfDay сообщает, является ли расклад вариантом "карта дня".
// Сравнение по вхождению имени без учёта регистра.
func (s Spread) IsCardOfDay(cardOfDayName string) bool {
	if cardOfDayName == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s.Name), strings.ToLower(cardOfDayName))
}
