package state

import (
	"sync"
	"time"

	"fx_bot/internal/models"
)

// Rules: пороги выхода в пипсах.
type Rules struct {
	TakeProfitPips      float64
	ActivationThreshold float64
	TrailingGap         float64
}

type profitEntry struct {
	pips      float64
	updatedAt time.Time
}

// Store: общее состояние риска: пики по сделкам, кулдауны по инструментам и кеш прибыли.
// Всё под одним мьютексом: решение по сделке и обновление её пика видны другим задачам как один шаг.
type Store struct {
	mu sync.Mutex

	peaks       map[string]float64 // trade_id -> пик прибыли в пипсах
	tradeInst   map[string]models.Instrument
	cooldownTil map[models.Instrument]time.Time
	profits     map[models.Instrument]profitEntry
}

func New() *Store {
	return &Store{
		peaks:       make(map[string]float64),
		tradeInst:   make(map[string]models.Instrument),
		cooldownTil: make(map[models.Instrument]time.Time),
		profits:     make(map[models.Instrument]profitEntry),
	}
}

// RecordPeak: монотонный максимум, возвращает новый пик.
func (s *Store) RecordPeak(tradeID string, pips float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordPeak(tradeID, pips)
}

func (s *Store) recordPeak(tradeID string, pips float64) float64 {
	old, ok := s.peaks[tradeID]
	if !ok || pips > old {
		s.peaks[tradeID] = pips
		return pips
	}
	return old
}

func (s *Store) Peak(tradeID string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.peaks[tradeID]
	return p, ok
}

// Clear удаляет пик сделки и её привязку к инструменту.
func (s *Store) Clear(tradeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peaks, tradeID)
	delete(s.tradeInst, tradeID)
}

func (s *Store) SetCooldown(inst models.Instrument, until time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cooldownTil[inst] = until
}

// InCooldown: кулдаун истёк, как только now >= until.
func (s *Store) InCooldown(inst models.Instrument, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.cooldownTil[inst]
	if !ok {
		return false
	}
	if !now.Before(until) {
		delete(s.cooldownTil, inst)
		return false
	}
	return true
}

// Evaluate: атомарный шаг ExitDecisionEngine: тейк-профит, затем пик, затем трейлинг.
// На тейк-профите пик не трогаем: сделка закрывается, трейлинг в этом цикле не оценивается.
func (s *Store) Evaluate(tradeID string, inst models.Instrument, profit float64, r Rules) models.ExitDecision {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tradeInst[tradeID] = inst
	oldPeak, hadPeak := s.peaks[tradeID]

	if profit >= r.TakeProfitPips {
		return models.ExitDecision{
			Action:     models.ExitClose,
			Reason:     models.CloseTakeProfit,
			ProfitPips: profit,
			PeakPips:   oldPeak,
		}
	}

	peak := s.recordPeak(tradeID, profit)
	dec := models.ExitDecision{
		Action:     models.ExitHold,
		ProfitPips: profit,
		PeakPips:   peak,
		Activated:  peak >= r.ActivationThreshold && (!hadPeak || oldPeak < r.ActivationThreshold),
	}

	// "взведённость" выводим из самого пика: он не убывает до закрытия
	if peak >= r.ActivationThreshold && peak-profit >= r.TrailingGap {
		dec.Action = models.ExitClose
		dec.Reason = models.CloseTrailingStop
	}
	return dec
}

// MarkClosed фиксирует успешное закрытие: чистит пик и кеш прибыли, ставит кулдаун.
func (s *Store) MarkClosed(tradeID string, inst models.Instrument, cooldownUntil time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peaks, tradeID)
	delete(s.tradeInst, tradeID)
	delete(s.profits, inst)
	s.cooldownTil[inst] = cooldownUntil
}

// SetProfit пишет последнюю посчитанную прибыль по инструменту.
func (s *Store) SetProfit(inst models.Instrument, pips float64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profits[inst] = profitEntry{pips: pips, updatedAt: at}
}

// Profit отдаёт только свежую запись (не старше maxAge).
func (s *Store) Profit(inst models.Instrument, now time.Time, maxAge time.Duration) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.profits[inst]
	if !ok {
		return 0, false
	}
	if maxAge > 0 && now.Sub(e.updatedAt) > maxAge {
		return 0, false
	}
	return e.pips, true
}

func (s *Store) ClearProfit(inst models.Instrument) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profits, inst)
}

// Prune выкидывает пики сделок, которых больше нет у брокера (закрыты SL/TP на стороне брокера),
// и кеш прибыли по инструментам без открытых сделок. Возвращает удалённые trade_id.
func (s *Store) Prune(open []models.OpenPosition) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	openIDs := make(map[string]struct{}, len(open))
	openInst := make(map[models.Instrument]struct{}, len(open))
	for _, p := range open {
		openIDs[p.TradeID] = struct{}{}
		openInst[p.Instrument] = struct{}{}
	}

	var removed []string
	for id := range s.peaks {
		if _, ok := openIDs[id]; ok {
			continue
		}
		delete(s.peaks, id)
		removed = append(removed, id)
	}
	for id := range s.tradeInst {
		if _, ok := openIDs[id]; !ok {
			delete(s.tradeInst, id)
		}
	}
	for inst := range s.profits {
		if _, ok := openInst[inst]; !ok {
			delete(s.profits, inst)
		}
	}
	return removed
}

// Snapshot: копия состояния для health и /status.
type Snapshot struct {
	Peaks     map[string]float64              `json:"peaks"`
	Cooldowns map[models.Instrument]time.Time `json:"cooldowns"`
	Profits   map[models.Instrument]float64   `json:"profits"`
}

func (s *Store) Snapshot(now time.Time) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Snapshot{
		Peaks:     make(map[string]float64, len(s.peaks)),
		Cooldowns: make(map[models.Instrument]time.Time, len(s.cooldownTil)),
		Profits:   make(map[models.Instrument]float64, len(s.profits)),
	}
	for k, v := range s.peaks {
		out.Peaks[k] = v
	}
	for k, v := range s.cooldownTil {
		if now.Before(v) {
			out.Cooldowns[k] = v
		}
	}
	for k, v := range s.profits {
		out.Profits[k] = v.pips
	}
	return out
}
