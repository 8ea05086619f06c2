package models

import (
	"fmt"
	"strings"
	"time"
)

// Identity идентичность пользователя, переданная хостом (Telegram).
type Identity struct {
	ID       int64
	Username string
}

// TestIdentity используется при локальном запуске, когда хост не передал пользователя.
var TestIdentity = Identity{ID: 123456789, Username: "test_user"}

// User представляет профиль пользователя в конкретном проекте.
// Клиент хранит копию и оптимистично уменьшает Balance при платных операциях.
type User struct {
	ID              int    `json:"id" validate:"required"`
	TelegramUserID  int64  `json:"telegram_user_id"`
	Username        string `json:"username"`
	Project         int    `json:"project"`
	Balance         int    `json:"balance" validate:"gte=0"`
	SubscriptionEnd *Date  `json:"subscription_end,omitempty"`
}

// Date календарная дата в формате ISO (2006-01-02), как её отдаёт бэкенд.
type Date struct {
	time.Time
}

// String возвращает дату в формате ISO.
func (d Date) String() string {
	return d.Format(time.DateOnly)
}

// MarshalJSON кодирует дату строкой ISO.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON принимает ISO-дату или RFC3339 метку времени.
func (d *Date) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		return nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return fmt.Errorf("models.Date: invalid date %q: %w", raw, err)
	}
	d.Time = t
	return nil
}
