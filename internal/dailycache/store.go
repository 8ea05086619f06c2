// Package dailycache хранит карту дня: не больше одной записи на пользователя
// за календарный день. На каждый день две записи: вытянутые карты и толкование,
// адресуемые (пространство имён, id пользователя, ISO-дата).
package dailycache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/tarot-miniapp/internal/models"
)

// Пространства имён ключей.
const (
	NamespaceCard           = "card_of_day"
	NamespaceInterpretation = "card_of_day_interpretation"
)

// ErrRecordMissing толкование сохраняется для дня, у которого нет записи карт.
var ErrRecordMissing = errors.New("daily card record missing")

// Store хранилище карты дня.
type Store interface {
	// Lookup возвращает запись за день вместе с толкованием, если оно есть.
	// Возвращает nil без ошибки, если записи нет.
	Lookup(ctx context.Context, userID int, day string) (*models.DailyCardRecord, error)
	// Create атомарно создаёт запись карт. false, если запись за этот день уже есть.
	Create(ctx context.Context, rec models.DailyCardRecord) (bool, error)
	// SaveInterpretation сохраняет толкование для существующей записи.
	SaveInterpretation(ctx context.Context, userID int, day string, it models.Interpretation) error
}

// Key ключ записи в пространстве имён ns.
func Key(ns string, userID int, day string) string {
	return fmt.Sprintf("%s:%d:%s", ns, userID, day)
}

// Day календарная дата t в часовом поясе loc в формате ISO.
func Day(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(time.DateOnly)
}
