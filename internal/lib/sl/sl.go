// Package sl содержит вспомогательные функции для работы с логгером slog:
// единообразные атрибуты для ошибок, операций и идентификаторов сессии.
package sl

import "log/slog"

// Err возвращает slog.Attr с ключом "error" и текстом ошибки.
//
// Пример:
//
//	log.Error("failed to draw cards", sl.Err(err))
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}

// Op возвращает атрибут с именем операции вида "package.Func".
func Op(op string) slog.Attr {
	return slog.String("op", op)
}

// Chat возвращает атрибут с идентификатором чата Telegram.
func Chat(chatID int64) slog.Attr {
	return slog.Int64("chat_id", chatID)
}
