package models

import "github.com/pkg/errors"

// Виды ошибок, по которым принимаются решения. Заворачиваем через errors.Wrap, проверяем errors.Is.
var (
	// ErrTransientFeed: не получили цену/позиции/свечи (в т.ч. таймаут). Пропускаем единицу работы.
	ErrTransientFeed = errors.New("transient feed error")
	// ErrOrderRejected: брокер отклонил открытие/закрытие.
	ErrOrderRejected = errors.New("order rejected")
	// ErrConnectivityLost: брокер недоступен.
	ErrConnectivityLost = errors.New("connectivity lost")
	// ErrModelUnavailable: у модели нет мнения (мало истории / нет модели). Это не ошибка.
	ErrModelUnavailable = errors.New("model unavailable")
)

type ConnState string

const (
	StateConnected    ConnState = "CONNECTED"
	StateDisconnected ConnState = "DISCONNECTED"
)
