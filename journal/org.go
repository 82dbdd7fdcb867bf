package journal

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rustyeddy/papertrade/trade"
)

// FormatEntryOrg renders a position and its explanation as an Org-mode block.
// Structured facts go in the PROPERTIES drawer; the explanation text fills
// the narrative headings.
func FormatEntryOrg(e Entry) string {
	p := e.Position
	heading := fmt.Sprintf("** %s %s (%s) %s", p.Side, p.Symbol, shortID(p.ID), p.Status)

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":ID: %s\n", p.ID)
	fmt.Fprintf(&b, ":SYMBOL: %s\n", p.Symbol)
	fmt.Fprintf(&b, ":SIDE: %s\n", p.Side)
	fmt.Fprintf(&b, ":QTY: %.0f\n", p.Qty)
	fmt.Fprintf(&b, ":ENTRY_PRICE: %s\n", price(p.EntryPrice))
	fmt.Fprintf(&b, ":STOP_PRICE: %s\n", price(p.StopPrice))
	fmt.Fprintf(&b, ":TP_PRICE: %s\n", price(p.TPPrice))
	fmt.Fprintf(&b, ":ENTRY_TIME: %s\n", p.EntryTS.UTC().Format(time.RFC3339))
	if p.ExitTS != nil {
		fmt.Fprintf(&b, ":EXIT_TIME: %s\n", p.ExitTS.UTC().Format(time.RFC3339))
	}
	if p.ExitPrice != nil {
		fmt.Fprintf(&b, ":EXIT_PRICE: %s\n", price(*p.ExitPrice))
	}
	if p.PnLGBP != nil {
		fmt.Fprintf(&b, ":PNL_GBP: %.2f\n", *p.PnLGBP)
	}
	if p.RMultiple != nil {
		fmt.Fprintf(&b, ":R_MULTIPLE: %.2f\n", *p.RMultiple)
	}
	fmt.Fprintf(&b, ":STRATEGY: %s\n", p.StrategyID)
	fmt.Fprintf(&b, ":METHOD: %s\n", p.MethodName)
	if p.BrokerTradeID != "" {
		fmt.Fprintf(&b, ":BROKER_TRADE_ID: %s\n", p.BrokerTradeID)
	}
	b.WriteString(":END:\n")
	b.WriteString("\n")

	var x trade.Explanation
	if e.Explanation != nil {
		x = *e.Explanation
	}
	section(&b, "Entry", x.PlainEnglishEntry)
	section(&b, "In plain words", x.BeginnerFriendlyEntry)
	exit := ""
	if x.ExitReason != nil {
		exit = *x.ExitReason
	}
	section(&b, "Exit", exit)
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// FormatEntriesOrg renders multiple entries separated by blank lines.
func FormatEntriesOrg(entries []Entry) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(FormatEntryOrg(e))
	}
	return b.String()
}

// FormatStats is a one-screen summary of closed positions.
func FormatStats(s Stats) string {
	pf := "n/a"
	if s.GrossLoss > 0 {
		pf = fmt.Sprintf("%.2f", s.ProfitFactor)
	}
	return fmt.Sprintf("closed: %d  wins: %d  losses: %d  win rate: %.0f%%\n"+
		"gross profit: £%.2f  gross loss: £%.2f  profit factor: %s\n"+
		"net: £%.2f  total R: %.2f  avg R: %.2f\n",
		s.Closed, s.Wins, s.Losses, s.WinRate()*100,
		s.GrossProfit, s.GrossLoss, pf,
		s.GrossProfit-s.GrossLoss, s.TotalR, s.AvgR())
}

func section(b *strings.Builder, title, body string) {
	fmt.Fprintf(b, "*** %s\n", title)
	if strings.TrimSpace(body) == "" {
		body = "- "
	}
	b.WriteString(body)
	b.WriteString("\n\n")
}

func price(p float64) string {
	if math.IsNaN(p) || p == 0 {
		return "-"
	}
	return fmt.Sprintf("%.5f", p)
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}
