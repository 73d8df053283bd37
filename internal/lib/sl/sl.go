// Package sl содержит вспомогательные функции для работы с логгером slog.
// Основная цель — единообразно формировать структурированные поля лога.
package sl

import "log/slog"

// Err возвращает slog.Attr с ключом "error" и значением текста ошибки.
//
// Пример:
//
//	log.Error("failed to grant premium", sl.Err(err))
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// UID возвращает атрибут с идентификатором пользователя.
func UID(uid string) slog.Attr {
	return slog.String("uid", uid)
}

// SubID возвращает атрибут с идентификатором записи подписки.
func SubID(id string) slog.Attr {
	return slog.String("subscription_id", id)
}
