package utils

import (
	"context"
	"time"
)

// RequestTimeout - ограничение времени на обработку одного запроса к хранилищу
const RequestTimeout = 5 * time.Second

// GetContext возвращает контекст с таймаутом для запросов к хранилищу
func GetContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), RequestTimeout)
}
