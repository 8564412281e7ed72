package telegram

import (
	"fmt"
	"strings"

	"alpd/api/internal/plate"
)

// formatResult renders a result as legacy Markdown.
func formatResult(res plate.DetectionResult) string {
	num := strings.TrimSpace(res.PlateNumber)
	if num == "" {
		num = "(not found)"
	}
	var b strings.Builder
	b.WriteString("🚘 *Plate:* `" + strings.ReplaceAll(num, "`", "'") + "`\n")
	b.WriteString("*Confidence:* " + orDash(res.Confidence) + "\n")
	b.WriteString("*Vehicle:* " + orDash(res.VehicleDescription))
	if r := strings.TrimSpace(res.Region); r != "" {
		b.WriteString("\n*Region:* " + esc(r))
	}
	return b.String()
}

// formatHistory lists items newest first, numbered for /show.
func formatHistory(items []plate.HistoryItem) string {
	if len(items) == 0 {
		return "History is empty. Send a photo to start."
	}
	var b strings.Builder
	b.WriteString("Recent scans (newest first):\n")
	for i, it := range items {
		num := strings.TrimSpace(it.Result.PlateNumber)
		if num == "" {
			num = "(not found)"
		}
		fmt.Fprintf(&b, "%d. %s · %s · %s\n", i+1, num, dash(it.Result.Confidence), it.Timestamp.Format("Jan 2 15:04"))
	}
	b.WriteString("\n/show N to see an entry again.")
	return b.String()
}

func orDash(s string) string { return esc(dash(s)) }

func dash(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "—"
	}
	return s
}

// esc escapes legacy Markdown control characters.
func esc(s string) string {
	s = strings.ReplaceAll(s, "`", "'")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "[", "\\[")
	return s
}
