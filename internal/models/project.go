// Package models содержит доменные структуры мини-приложения: проекты (тенанты),
// пользователей, расклады, пакеты, вытянутые карты, интерпретации и записи
// карты дня. Структуры совпадают с JSON-представлением REST API бэкенда.
package models

// ProjectStatusActive статус активного проекта.
const ProjectStatusActive = "active"

// Project представляет настроенное пространство контента на бэкенде.
type Project struct {
	ID     int            `json:"id" validate:"required"`
	Name   string         `json:"name"`
	Status string         `json:"status"`
	Design map[string]any `json:"design,omitempty"`
}

// IsActive сообщает, активен ли проект.
func (p Project) IsActive() bool {
	return p.Status == ProjectStatusActive
}

// Theme настройки оформления проекта.
type Theme struct {
	Title       string `json:"title,omitempty"`
	WelcomeText string `json:"welcome_text,omitempty"`
	ButtonEmoji string `json:"button_emoji,omitempty"`
}

// DefaultTheme используется, когда настройки темы получить не удалось.
func DefaultTheme() Theme {
	return Theme{
		Title:       "Таро",
		WelcomeText: "Добро пожаловать! Выберите действие:",
		ButtonEmoji: "🔮",
	}
}

// WithDefaults заполняет пустые поля значениями темы по умолчанию.
func (t Theme) WithDefaults() Theme {
	def := DefaultTheme()
	if t.Title == "" {
		t.Title = def.Title
	}
	if t.WelcomeText == "" {
		t.WelcomeText = def.WelcomeText
	}
	if t.ButtonEmoji == "" {
		t.ButtonEmoji = def.ButtonEmoji
	}
	return t
}
