package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"fx_bot/internal/models"
	health "fx_bot/internal/modules/health/service"
	"fx_bot/internal/state"
)

const statsLimit = 20

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	return t
}

func renderPositions(list []models.OpenPosition, st state.Snapshot) string {
	if len(list) == 0 {
		return "📭 Открытых позиций нет"
	}
	t := newTable()
	t.SetTitle("📊 Открытые позиции")
	t.AppendHeader(table.Row{"Trade", "Pair", "Side", "Units", "Entry", "P/L USD", "Peak"})
	for _, p := range list {
		peak := "-"
		if v, ok := st.Peaks[p.TradeID]; ok {
			peak = fmt.Sprintf("%.1f", v)
		}
		t.AppendRow(table.Row{
			p.TradeID, p.Instrument, strings.ToUpper(string(p.Side)),
			fmt.Sprintf("%.0f", p.Units), fmt.Sprintf("%.5f", p.EntryPrice),
			fmt.Sprintf("%.2f", p.UnrealizedPL), peak,
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	return t.Render()
}

func renderStats(list []models.TradeOutcome) string {
	if len(list) == 0 {
		return "📭 Закрытых сделок пока нет"
	}
	var wins int
	var pips, usd float64
	t := newTable()
	t.SetTitle(fmt.Sprintf("📈 Последние %d сделок", len(list)))
	t.AppendHeader(table.Row{"Closed", "Pair", "Pips", "USD"})
	for _, o := range list {
		if o.FinalProfitPips > 0 {
			wins++
		}
		pips += o.FinalProfitPips
		usd += o.FinalProfitUSD
		t.AppendRow(table.Row{
			o.CloseTime.UTC().Format("01-02 15:04"), o.Instrument,
			fmt.Sprintf("%.1f", o.FinalProfitPips), fmt.Sprintf("%.2f", o.FinalProfitUSD),
		})
	}
	t.AppendFooter(table.Row{
		fmt.Sprintf("win %d/%d", wins, len(list)), "",
		fmt.Sprintf("%.1f", pips), fmt.Sprintf("%.2f", usd),
	})
	return t.Render()
}

func renderStatus(h health.Snapshot, st state.Snapshot) string {
	var b strings.Builder
	conn := "✅ CONNECTED"
	if !h.BrokerConnected {
		conn = "🔌 DISCONNECTED"
	}
	fmt.Fprintf(&b, "Брокер: %s\nUptime: %s\n", conn, time.Duration(h.UptimeSec)*time.Second)

	jobs := make([]string, 0, len(h.LastJobs))
	for name := range h.LastJobs {
		jobs = append(jobs, name)
	}
	sort.Strings(jobs)
	for _, name := range jobs {
		fmt.Fprintf(&b, "  %s: %s\n", name, h.LastJobs[name].UTC().Format(time.RFC3339))
	}

	ids := make([]string, 0, len(st.Peaks))
	for id := range st.Peaks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	fmt.Fprintf(&b, "Пики (%d):\n", len(ids))
	for _, id := range ids {
		fmt.Fprintf(&b, "  %s: %.1f pips\n", id, st.Peaks[id])
	}

	insts := make([]string, 0, len(st.Cooldowns))
	for inst := range st.Cooldowns {
		insts = append(insts, string(inst))
	}
	sort.Strings(insts)
	fmt.Fprintf(&b, "Cooldown (%d):\n", len(insts))
	for _, inst := range insts {
		fmt.Fprintf(&b, "  %s до %s\n", inst, st.Cooldowns[models.Instrument(inst)].UTC().Format("15:04:05"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func escapeHTML(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}
