package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"kharcha/internal/core"
	"kharcha/internal/forecast"
)

// Theme colors
var (
	ColorBorder    = lipgloss.Color("#3A3A3A")
	ColorTextMuted = lipgloss.Color("#8A8A8A")
	ColorText      = lipgloss.Color("#F5F5F0")
	ColorAccent    = lipgloss.Color("#FF9933")
	ColorGreen     = lipgloss.Color("#138808")
	ColorRed       = lipgloss.Color("#D14D41")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorText).
			Align(lipgloss.Center)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent)

	valueStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	mutedStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	upStyle = lipgloss.NewStyle().
		Foreground(ColorRed)

	downStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	borderStyle = lipgloss.NewStyle().
			Foreground(ColorBorder)
)

// Table is a bordered text table. The first column is left-aligned and the
// rest right-aligned.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// RenderTitle renders a centered title in a rounded box.
func RenderTitle(title string) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Width(55).
		Align(lipgloss.Center).
		Padding(0, 1)
	return box.Render(titleStyle.Render(title))
}

// RenderTable renders t. A table with no headers and no rows renders as
// the empty string.
func RenderTable(t Table) string {
	if len(t.Rows) == 0 && len(t.Headers) == 0 {
		return ""
	}

	cols := len(t.Headers)
	if cols == 0 {
		cols = len(t.Rows[0])
	}
	widths := make([]int, cols)
	for i, h := range t.Headers {
		widths[i] = max(widths[i], lipgloss.Width(h))
	}
	for _, row := range t.Rows {
		for i := 0; i < cols && i < len(row); i++ {
			widths[i] = max(widths[i], lipgloss.Width(row[i]))
		}
	}

	var b strings.Builder
	if t.Title != "" {
		b.WriteString("  ")
		b.WriteString(headerStyle.Render(t.Title))
		b.WriteString("\n")
	}

	rule := func(left, mid, right string) {
		b.WriteString(borderStyle.Render(left))
		for i, w := range widths {
			b.WriteString(borderStyle.Render(strings.Repeat("─", w+2)))
			if i < cols-1 {
				b.WriteString(borderStyle.Render(mid))
			}
		}
		b.WriteString(borderStyle.Render(right))
		b.WriteString("\n")
	}
	line := func(cells []string, style lipgloss.Style) {
		b.WriteString(borderStyle.Render("│"))
		for i := 0; i < cols; i++ {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			b.WriteString(style.Render(" " + pad(cell, widths[i], i > 0) + " "))
			if i < cols-1 {
				b.WriteString(borderStyle.Render("│"))
			}
		}
		b.WriteString(borderStyle.Render("│"))
		b.WriteString("\n")
	}

	rule("╭", "┬", "╮")
	if len(t.Headers) > 0 {
		line(t.Headers, headerStyle)
		rule("├", "┼", "┤")
	}
	for _, row := range t.Rows {
		if len(row) == 1 && row[0] == "---" {
			rule("├", "┼", "┤")
			continue
		}
		line(row, valueStyle)
	}
	rule("╰", "┴", "╯")
	return b.String()
}

// pad fills s to width display columns.
func pad(s string, width int, right bool) string {
	gap := width - lipgloss.Width(s)
	if gap <= 0 {
		return s
	}
	if right {
		return strings.Repeat(" ", gap) + s
	}
	return s + strings.Repeat(" ", gap)
}

// RenderSparkline draws values as a row of block characters scaled to the
// largest value.
func RenderSparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	blocks := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	top := values[0]
	for _, v := range values[1:] {
		top = max(top, v)
	}
	if top <= 0 {
		top = 1
	}

	var b strings.Builder
	for _, v := range values {
		idx := int(v / top * float64(len(blocks)-1))
		idx = min(max(idx, 0), len(blocks)-1)
		b.WriteRune(blocks[idx])
	}
	return b.String()
}

// RenderTrend renders a multiplier as a signed percentage, red when
// spending rises.
func RenderTrend(multiplier float64) string {
	pct := (multiplier - 1) * 100
	s := fmt.Sprintf("%+.1f%%", pct)
	switch {
	case pct > 0:
		return upStyle.Render(s)
	case pct < 0:
		return downStyle.Render(s)
	default:
		return mutedStyle.Render(s)
	}
}

func UsersTable(users []core.User) Table {
	t := Table{Title: "Users", Headers: []string{"ID", "Username", "Email", "Aadhar", "Joined"}}
	for _, u := range users {
		aadhar := u.Aadhar
		if len(aadhar) >= 4 {
			aadhar = "XXXX XXXX " + aadhar[len(aadhar)-4:]
		}
		t.Rows = append(t.Rows, []string{
			strconv.FormatInt(u.ID, 10), u.Username, u.Email, aadhar, u.CreatedAt.Format("2006-01-02"),
		})
	}
	return t
}

func CategoriesTable(cats []core.Category) Table {
	t := Table{Title: "Categories", Headers: []string{"Name", "ID", "Color"}}
	for _, c := range cats {
		t.Rows = append(t.Rows, []string{c.Name, strconv.FormatInt(c.ID, 10), c.Color})
	}
	return t
}

// ExpensesTable lists expenses with a closing total row.
func ExpensesTable(list []core.Expense) Table {
	t := Table{Title: "Expenses", Headers: []string{"Date", "Category", "Description", "Amount"}}
	var total core.Money
	for _, e := range list {
		t.Rows = append(t.Rows, []string{e.Date.String(), e.Category, e.Description, core.FormatRupees(e.Amount)})
		total = total.Add(e.Amount)
	}
	if len(list) > 0 {
		t.Rows = append(t.Rows, []string{"---"}, []string{"Total", "", strconv.Itoa(len(list)) + " items", core.FormatRupees(total)})
	}
	return t
}

// PredictionTable breaks a prediction down by category.
func PredictionTable(p core.Prediction) Table {
	t := Table{
		Title:   fmt.Sprintf("Forecast for %s  (confidence %.2f%%, sentiment x%.4f)", p.Month, p.Confidence, p.SentimentFactor),
		Headers: []string{"Category", "Mean", "Trend", "Months", "Predicted"},
	}
	for _, c := range p.Breakdown {
		t.Rows = append(t.Rows, []string{
			c.Category, core.FormatRupees(c.Mean), RenderTrend(c.Trend), strconv.Itoa(c.Months), core.FormatRupees(c.Predicted),
		})
	}
	t.Rows = append(t.Rows, []string{"---"}, []string{"Total", "", "", "", core.FormatRupees(p.Total)})
	return t
}

// SentimentTable lists the headlines behind a sentiment and the factor
// they produce under cfg.
func SentimentTable(month core.Month, s forecast.Sentiment, cfg forecast.Config) Table {
	t := Table{
		Title:   fmt.Sprintf("News sentiment for %s from %s (factor x%.4f)", month, s.Source, s.Factor(cfg)),
		Headers: []string{"Headline", "Impact"},
	}
	for _, h := range s.Headlines {
		t.Rows = append(t.Rows, []string{h.Title, fmt.Sprintf("%+.2f", h.Impact)})
	}
	return t
}
