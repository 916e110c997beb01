package service

import (
	"context"
	"fmt"

	"fx_bot/pkg/logger"
)

// Notifier: исходящие уведомления оператору. Ошибка отправки не должна ломать торговый цикл.
type Notifier interface {
	Send(ctx context.Context, msg string) error
	SendF(ctx context.Context, format string, args ...any) error
}

// Log: заглушка без токена, всё пишет в лог.
type Log struct{}

func NewLog() *Log { return &Log{} }

func (Log) Send(_ context.Context, msg string) error {
	logger.Info("[NOTIFY] %s", msg)
	return nil
}

func (l Log) SendF(ctx context.Context, format string, args ...any) error {
	return l.Send(ctx, fmt.Sprintf(format, args...))
}
