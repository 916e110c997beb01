package service

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"

	"fx_bot/internal/models"
	health "fx_bot/internal/modules/health/service"
	"fx_bot/internal/state"
	"fx_bot/pkg/logger"
)

const pollTimeout = 30 * time.Second

type Positions interface {
	OpenPositions(ctx context.Context) ([]models.OpenPosition, error)
}

type Outcomes interface {
	Outcomes(ctx context.Context, instrument models.Instrument, limit int) ([]models.TradeOutcome, error)
}

type Status interface {
	Snapshot() health.Snapshot
}

type PositionState interface {
	Snapshot(now time.Time) state.Snapshot
}

type Deps struct {
	Positions Positions
	Outcomes  Outcomes
	Status    Status
	State     PositionState
}

// Telegram: уведомления в один чат и команды /positions, /stats, /status из него же.
type Telegram struct {
	bot         *tgbot.BotAPI
	chatID      int64
	deps        Deps
	callTimeout time.Duration

	wg sync.WaitGroup
}

type Config struct {
	Token       string
	ChatID      int64
	Endpoint    string // пусто: api.telegram.org
	CallTimeout time.Duration
}

func NewTelegram(cfg Config, deps Deps) (*Telegram, error) {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 5 * time.Second
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = tgbot.APIEndpoint
	}
	// таймаут клиента длиннее long-polling (30s), иначе getUpdates обрывается
	client := &http.Client{Timeout: pollTimeout + cfg.CallTimeout}
	b, err := tgbot.NewBotAPIWithClient(cfg.Token, cfg.Endpoint, client)
	if err != nil {
		return nil, errors.Wrap(err, "telegram: init bot")
	}
	return &Telegram{bot: b, chatID: cfg.ChatID, deps: deps, callTimeout: cfg.CallTimeout}, nil
}

func (t *Telegram) Send(ctx context.Context, msg string) error {
	if t.chatID == 0 {
		return errors.New("telegram: chat_id not configured")
	}
	return t.send(ctx, tgbot.NewMessage(t.chatID, msg))
}

func (t *Telegram) SendF(ctx context.Context, format string, args ...any) error {
	return t.Send(ctx, fmt.Sprintf(format, args...))
}

// sendPre отправляет таблицу моноширинным блоком.
func (t *Telegram) sendPre(ctx context.Context, text string) error {
	msg := tgbot.NewMessage(t.chatID, "<pre>"+escapeHTML(text)+"</pre>")
	msg.ParseMode = tgbot.ModeHTML
	return t.send(ctx, msg)
}

// send не ждёт дольше callTimeout или ctx. Сам запрос ограничен таймаутом http-клиента.
func (t *Telegram) send(ctx context.Context, c tgbot.Chattable) error {
	ctx, cancel := context.WithTimeout(ctx, t.callTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := t.bot.Send(c)
		done <- err
	}()

	select {
	case err := <-done:
		return errors.Wrap(err, "telegram: send")
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "telegram: send")
	}
}

// Start: long-polling команд, до Stop.
func (t *Telegram) Start(ctx context.Context) {
	u := tgbot.NewUpdate(0)
	u.Timeout = int(pollTimeout / time.Second)
	u.AllowedUpdates = []string{"message"}
	updates := t.bot.GetUpdatesChan(u)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for upd := range updates {
			t.handleUpdate(ctx, upd)
		}
	}()
}

func (t *Telegram) Stop() {
	t.bot.StopReceivingUpdates()
	t.wg.Wait()
}

func (t *Telegram) handleUpdate(ctx context.Context, upd tgbot.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil || !msg.IsCommand() {
		return
	}
	// чужие чаты игнорируем
	if msg.Chat.ID != t.chatID {
		logger.Warn("[TELEGRAM] команда /%s из чужого чата %d", msg.Command(), msg.Chat.ID)
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, t.callTimeout)
	defer cancel()

	var (
		text string
		err  error
	)
	switch msg.Command() {
	case "positions":
		text, err = t.positions(callCtx)
	case "stats":
		text, err = t.stats(callCtx)
	case "status":
		text = renderStatus(t.deps.Status.Snapshot(), t.deps.State.Snapshot(time.Now()))
	default:
		err = t.Send(ctx, "Команды: /positions, /stats, /status")
		if err != nil {
			logger.Error("[TELEGRAM] %v", err)
		}
		return
	}
	if err != nil {
		logger.Error("[TELEGRAM] /%s: %v", msg.Command(), err)
		_ = t.SendF(ctx, "❗️ /%s: %v", msg.Command(), err)
		return
	}
	if err := t.sendPre(ctx, text); err != nil {
		logger.Error("[TELEGRAM] /%s: %v", msg.Command(), err)
	}
}

func (t *Telegram) positions(ctx context.Context) (string, error) {
	list, err := t.deps.Positions.OpenPositions(ctx)
	if err != nil {
		return "", err
	}
	return renderPositions(list, t.deps.State.Snapshot(time.Now())), nil
}

func (t *Telegram) stats(ctx context.Context) (string, error) {
	list, err := t.deps.Outcomes.Outcomes(ctx, "", statsLimit)
	if err != nil {
		return "", err
	}
	return renderStats(list), nil
}
