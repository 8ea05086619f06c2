// Package events публикует доменные события мини-приложения.
// Публикация best-effort: ошибка никогда не влияет на пользовательский сценарий.
package events

import (
	"context"
	"time"
)

// Ключи маршрутизации.
const (
	KeyReadingDrawn     = "reading.drawn"
	KeyCardOfDayDrawn   = "card_of_day.drawn"
	KeyPaymentCompleted = "payment.completed"
)

// Event доменное событие.
type Event struct {
	Key        string    `json:"-"`
	UserID     int       `json:"user_id"`
	ProjectID  int       `json:"project_id"`
	SpreadID   int       `json:"spread_id,omitempty"`
	PackageID  int       `json:"package_id,omitempty"`
	Balance    int       `json:"balance"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher публикует события.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Noop публикатор, когда брокер не настроен.
type Noop struct{}

// Publish ничего не делает.
func (Noop) Publish(context.Context, Event) error { return nil }
