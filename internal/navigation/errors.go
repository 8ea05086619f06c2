package navigation

import (
	"errors"

	"github.com/magabrotheeeer/tarot-miniapp/internal/gateway"
	"github.com/magabrotheeeer/tarot-miniapp/internal/session"
	"github.com/magabrotheeeer/tarot-miniapp/internal/tenant"
)

var (
	ErrEmptySpreadSet         = errors.New("empty spread set")
	ErrEmptyPackageSet        = errors.New("empty package set")
	ErrEmptyHistorySet        = errors.New("empty history set")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrCardOfDaySpreadMissing = errors.New("card of day spread missing")
	ErrMissingCredential      = errors.New("missing credential")
	ErrUnknownSelection       = errors.New("unknown selection")
)

// Message текст ошибки для пользователя. Ошибки бэкенда выводятся как есть.
func Message(err error) string {
	var apiErr *gateway.APIError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.Is(err, ErrInsufficientBalance):
		return "Недостаточно раскладов. Пополните баланс."
	case errors.Is(err, ErrEmptySpreadSet):
		return "Расклады не найдены"
	case errors.Is(err, ErrEmptyPackageSet):
		return "Пакеты не найдены"
	case errors.Is(err, ErrEmptyHistorySet):
		return "История раскладов пуста"
	case errors.Is(err, ErrCardOfDaySpreadMissing):
		return "Расклад «Карта дня» не найден"
	case errors.Is(err, ErrMissingCredential):
		return "PIN-код не введён"
	case errors.Is(err, ErrUnknownSelection):
		return "Выбранный элемент не найден"
	case errors.Is(err, session.ErrNoProjectsAvailable), errors.Is(err, tenant.ErrEmptyProjectSet):
		return "Проекты не найдены"
	case errors.Is(err, session.ErrUserBootstrapFailed):
		return "Не удалось создать пользователя"
	case errors.Is(err, gateway.ErrTransport):
		return "Ошибка соединения с сервером"
	default:
		return "Произошла ошибка"
	}
}
