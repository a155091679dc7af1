package telegram

import (
	"encoding/json"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"nutrisnap/api/internal/nutrition"
	"nutrisnap/api/internal/session"
	"nutrisnap/api/internal/util"
)

const startText = "<b>NutriSnap</b>\n" +
	"Send a food photo. I classify it and estimate calories and macros.\n" +
	"Commands: /analyze, /history [n], /verify, /export, /reset"

const (
	cbAnalyze = "analyze"
	cbHistory = "history"
	cbVerify  = "verify"
	cbExport  = "export"
	cbReset   = "reset"
)

// makeKeyboard shows only the buttons whose operation is reachable.
func makeKeyboard(s session.Snapshot) tgbotapi.InlineKeyboardMarkup {
	var first, second []tgbotapi.InlineKeyboardButton
	if s.CanAnalyze {
		first = append(first, tgbotapi.NewInlineKeyboardButtonData("Analyze", cbAnalyze))
	}
	first = append(first, tgbotapi.NewInlineKeyboardButtonData("Load history", cbHistory))
	if s.CanVerify {
		second = append(second, tgbotapi.NewInlineKeyboardButtonData("Verify nutrition", cbVerify))
	}
	if s.CanExport {
		second = append(second, tgbotapi.NewInlineKeyboardButtonData("Download JSON", cbExport))
	}
	second = append(second, tgbotapi.NewInlineKeyboardButtonData("Reset", cbReset))

	return tgbotapi.NewInlineKeyboardMarkup(first, second)
}

// esc escapes text for HTML parse mode.
func esc(s string) string {
	return html.EscapeString(s)
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatSelected(img *nutrition.Image) string {
	if img == nil {
		return "No photo selected."
	}
	kb := (img.Size + 512) / 1024
	return fmt.Sprintf("Selected: <b>%s</b> (%d KB)", esc(img.Name), kb)
}

func formatResult(a *nutrition.Analysis) string {
	var b strings.Builder
	b.WriteString("<b>Result</b>\n")
	rows := [][2]string{
		{"Food", a.Food},
		{"Confidence", strconv.FormatFloat(a.Confidence*100, 'f', 1, 64) + "%"},
		{"Calories", num(a.Calories) + " kcal"},
		{"Serving", num(a.ServingG) + " g"},
		{"Protein", num(a.ProteinG) + " g"},
		{"Carbs", num(a.CarbsG) + " g"},
		{"Fat", num(a.FatG) + " g"},
		{"Latency", num(a.InferenceMS) + " ms"},
		{"Record ID", a.RecordID.String()},
	}
	for _, r := range rows {
		fmt.Fprintf(&b, "%s: <b>%s</b>\n", r[0], esc(r[1]))
	}
	if a.NutritionLookup != nil {
		b.WriteString("\n")
		b.WriteString(formatLookup(a.NutritionLookup))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatLookup(l nutrition.Lookup) string {
	js, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		js = []byte(fmt.Sprint(l))
	}
	return "<b>Nutrition (DB lookup)</b>\n<pre>" + esc(util.Truncate(string(js), 3000)) + "</pre>"
}

// formatHistory renders entries in the order the server sent them.
func formatHistory(entries []nutrition.HistoryEntry, loc *time.Location) string {
	if len(entries) == 0 {
		return "No history yet."
	}
	var b strings.Builder
	b.WriteString("<b>History</b>\n<pre>")
	fmt.Fprintf(&b, "%-16s %-10s %6s %6s %6s %6s %5s %s\n", "When", "Food", "kcal", "P", "C", "F", "Conf", "File")
	for _, h := range entries {
		when := h.Timestamp.String()
		if t, ok := h.Timestamp.Time(); ok {
			when = t.In(loc).Format("2006-01-02 15:04")
		}
		file := "-"
		if h.FileName != nil && *h.FileName != "" {
			file = *h.FileName
		}
		line := fmt.Sprintf("%-16s %-10s %6s %6s %6s %6s %5s %s",
			when, util.Truncate(h.Food, 10), num(h.Calories), num(h.ProteinG), num(h.CarbsG), num(h.FatG),
			strconv.FormatFloat(h.Confidence*100, 'f', 0, 64)+"%", util.Truncate(file, 24))
		b.WriteString(esc(line))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n") + "</pre>"
}
