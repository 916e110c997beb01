package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go/ext"
	"github.com/pkg/errors"

	"fx_bot/internal/entry"
	"fx_bot/internal/exit"
	"fx_bot/internal/metrics"
	"fx_bot/internal/models"
	"fx_bot/pkg/logger"
	"fx_bot/pkg/tracing"
)

const (
	JobEntry         = "entry"
	JobRisk          = "risk"
	JobProfitMonitor = "profit_monitor"
	JobHeartbeat     = "heartbeat"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type ExitEngine interface {
	RunCycle(ctx context.Context) (exit.Result, error)
}

type EntryEngine interface {
	Evaluate(ctx context.Context, trigger entry.Trigger) (entry.Result, error)
	TryConditional(ctx context.Context) (entry.Result, error)
}

type ProfitMonitor interface {
	RunCycle(ctx context.Context) error
}

type Notifier interface {
	Send(ctx context.Context, msg string) error
}

// Health получает состояние для /readyz и /healthz.
type Health interface {
	SetReady(v bool)
	SetBrokerConnected(v bool)
	TouchJob(job string, at time.Time)
}

type Config struct {
	EntryInterval     time.Duration
	RiskInterval      time.Duration
	MonitorInterval   time.Duration
	HeartbeatInterval time.Duration
	ReconnectDelay    time.Duration
	CallTimeout       time.Duration
}

func (c Config) withDefaults() Config {
	if c.EntryInterval <= 0 {
		c.EntryInterval = 5 * time.Minute
	}
	if c.RiskInterval <= 0 {
		c.RiskInterval = time.Minute
	}
	if c.MonitorInterval <= 0 {
		c.MonitorInterval = time.Minute
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 15 * time.Second
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 5 * time.Second
	}
	return c
}

type job struct {
	name  string
	every time.Duration
	gated bool // при DISCONNECTED вызов пропускается
	fn    func(ctx context.Context) error
}

// Supervisor гоняет задачи по расписанию и держит состояние связи с брокером.
type Supervisor struct {
	cfg      Config
	clock    Clock
	pinger   Pinger
	exit     ExitEngine
	entry    EntryEngine
	monitor  ProfitMonitor
	notifier Notifier
	health   Health

	mu          sync.Mutex
	state       models.ConnState
	transitions int

	jobs []job
}

func NewSupervisor(
	cfg Config,
	clock Clock,
	pinger Pinger,
	exitEngine ExitEngine,
	entryEngine EntryEngine,
	monitor ProfitMonitor,
	notifier Notifier,
	health Health,
) *Supervisor {
	if clock == nil {
		clock = RealClock()
	}
	cfg = cfg.withDefaults()
	s := &Supervisor{
		cfg:      cfg,
		clock:    clock,
		pinger:   pinger,
		exit:     exitEngine,
		entry:    entryEngine,
		monitor:  monitor,
		notifier: notifier,
		health:   health,
		state:    models.StateConnected,
	}
	s.jobs = []job{
		{name: JobEntry, every: cfg.EntryInterval, gated: true, fn: s.runEntry},
		{name: JobRisk, every: cfg.RiskInterval, gated: true, fn: s.runRisk},
		{name: JobProfitMonitor, every: cfg.MonitorInterval, gated: true, fn: s.runMonitor},
		{name: JobHeartbeat, every: cfg.HeartbeatInterval, fn: s.heartbeat},
	}
	return s
}

func (s *Supervisor) State() models.ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) Connected() bool { return s.State() == models.StateConnected }

// Transitions: сколько раз менялось состояние связи.
func (s *Supervisor) Transitions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitions
}

// setState возвращает true, если состояние действительно поменялось.
func (s *Supervisor) setState(st models.ConnState) bool {
	s.mu.Lock()
	if s.state == st {
		s.mu.Unlock()
		return false
	}
	s.state = st
	s.transitions++
	s.mu.Unlock()

	connected := st == models.StateConnected
	metrics.SetConnected(connected)
	if s.health != nil {
		s.health.SetBrokerConnected(connected)
	}
	return true
}

// Run запускает все задачи (каждая сразу выполняется один раз) и ждёт отмены ctx.
func (s *Supervisor) Run(ctx context.Context) {
	logger.Info("[SUPERVISOR] старт: entry=%s risk=%s monitor=%s heartbeat=%s",
		s.cfg.EntryInterval, s.cfg.RiskInterval, s.cfg.MonitorInterval, s.cfg.HeartbeatInterval)
	if s.health != nil {
		s.health.SetReady(true)
		s.health.SetBrokerConnected(s.Connected())
	}

	var wg sync.WaitGroup
	for _, j := range s.jobs {
		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			s.loop(ctx, j)
		}(j)
	}
	wg.Wait()

	if s.health != nil {
		s.health.SetReady(false)
	}
	logger.Info("[SUPERVISOR] остановлен")
}

func (s *Supervisor) loop(ctx context.Context, j job) {
	for {
		s.invoke(ctx, j)
		if err := s.clock.Sleep(ctx, j.every); err != nil {
			return
		}
	}
}

// invoke: граница задачи: ошибки и паники не выходят наружу.
func (s *Supervisor) invoke(ctx context.Context, j job) {
	if ctx.Err() != nil {
		return
	}
	if j.gated && !s.Connected() {
		logger.Info("[SUPERVISOR] ⏸️ %s пропущен: нет связи с брокером", j.name)
		metrics.RecordJobSkipped(j.name, "disconnected")
		return
	}

	span, spanCtx := tracing.StartSpan(ctx, "job."+j.name)
	defer span.Finish()

	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			ext.Error.Set(span, true)
			metrics.RecordJobError(j.name)
			logger.Error("[SUPERVISOR] %s: паника: %v", j.name, r)
		}
		metrics.ObserveJob(j.name, time.Since(started))
		if s.health != nil {
			s.health.TouchJob(j.name, s.clock.Now())
		}
	}()

	if err := j.fn(spanCtx); err != nil {
		if errors.Is(err, exit.ErrBusy) {
			metrics.RecordJobSkipped(j.name, "busy")
			logger.Info("[SUPERVISOR] %s пропущен: предыдущий цикл ещё идёт", j.name)
			return
		}
		ext.Error.Set(span, true)
		span.LogKV("error", err.Error())
		metrics.RecordJobError(j.name)
		logger.Error("[SUPERVISOR] %s: %v", j.name, err)
	}
}

func (s *Supervisor) runEntry(ctx context.Context) error {
	res, err := s.entry.Evaluate(ctx, entry.TriggerScheduled)
	if err != nil {
		return err
	}
	if res.Skipped == entry.SkipBusy {
		metrics.RecordJobSkipped(JobEntry, "busy")
	}
	return nil
}

// runRisk: сначала выход по открытым позициям, затем условный вход.
func (s *Supervisor) runRisk(ctx context.Context) error {
	res, err := s.exit.RunCycle(ctx)
	if err != nil {
		return err
	}
	if len(res.Closed) > 0 || len(res.Failed) > 0 {
		logger.Info("[SUPERVISOR] risk: evaluated=%d closed=%d failed=%d skipped=%d",
			res.Evaluated, len(res.Closed), len(res.Failed), len(res.Skipped))
	}

	if _, err := s.entry.TryConditional(ctx); err != nil {
		return errors.Wrap(err, "conditional entry")
	}
	return nil
}

func (s *Supervisor) runMonitor(ctx context.Context) error {
	return s.monitor.RunCycle(ctx)
}

// heartbeat проверяет связь; при потере переходит в DISCONNECTED и крутит переподключение,
// пока Ping не пройдёт.
func (s *Supervisor) heartbeat(ctx context.Context) error {
	if s.Connected() {
		err := s.ping(ctx)
		if err == nil {
			return nil
		}
		metrics.RecordFeedError("ping")
		if s.setState(models.StateDisconnected) {
			logger.Warn("[HEARTBEAT] связь с брокером потеряна: %v", err)
			s.notify(ctx, fmt.Sprintf("🔌 Связь с брокером потеряна: %v", err))
		}
	}
	return s.reconnect(ctx)
}

func (s *Supervisor) reconnect(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		if err := s.clock.Sleep(ctx, s.cfg.ReconnectDelay); err != nil {
			return nil
		}
		err := s.ping(ctx)
		if err == nil {
			if s.setState(models.StateConnected) {
				logger.Info("[HEARTBEAT] связь восстановлена (попытка %d)", attempt)
				s.notify(ctx, "✅ Связь с брокером восстановлена")
			}
			return nil
		}
		logger.Warn("[HEARTBEAT] переподключение, попытка %d: %v", attempt, err)
	}
}

func (s *Supervisor) ping(ctx context.Context) error {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()
	return s.pinger.Ping(callCtx)
}

func (s *Supervisor) notify(ctx context.Context, msg string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		logger.Warn("[SUPERVISOR] notify: %v", err)
	}
}
