package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/BTreeMap/SehaCoach/internal/flow"
	"github.com/BTreeMap/SehaCoach/internal/models"
)

var (
	accent = lipgloss.Color("#2E7D32")
	muted  = lipgloss.Color("#9E9E9E")

	coachLabel = lipgloss.NewStyle().Bold(true).Foreground(accent)
	userLabel  = lipgloss.NewStyle().Bold(true).Foreground(muted)
	chipStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1).
			MarginRight(1)
	keyStyle = lipgloss.NewStyle().Foreground(muted).Width(12)
)

// renderer prints coach output either through glamour and lipgloss or as plain text.
type renderer struct {
	w     io.Writer
	md    *glamour.TermRenderer
	plain bool
}

func newRenderer(w io.Writer, style string, width int, plain bool) (*renderer, error) {
	if plain {
		return &renderer{w: w, plain: true}, nil
	}
	styleOpt := glamour.WithAutoStyle()
	if style != "" && style != "auto" {
		styleOpt = glamour.WithStylePath(style)
	}
	md, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		return nil, err
	}
	return &renderer{w: w, md: md}, nil
}

// Reply prints one coach message with its quick replies.
func (r *renderer) Reply(reply models.Reply) {
	if r.plain {
		fmt.Fprintln(r.w, flow.FormatReply(reply))
		return
	}
	fmt.Fprintln(r.w, coachLabel.Render("الكوتش"))
	fmt.Fprint(r.w, r.markdown(reply.Text))
	if chips := r.chips(reply.Options); chips != "" {
		fmt.Fprintln(r.w, chips)
	}
}

// Message prints one history entry.
func (r *renderer) Message(m models.ChatMessage) {
	if m.Sender == models.SenderBot {
		r.Reply(models.Reply{Text: m.Text, Options: m.Options})
		return
	}
	if r.plain {
		fmt.Fprintln(r.w, "> "+m.Text)
		return
	}
	fmt.Fprintln(r.w, userLabel.Render("أنت")+" "+m.Text)
}

func (r *renderer) markdown(text string) string {
	out, err := r.md.Render(text)
	if err != nil {
		return text + "\n"
	}
	return out
}

func (r *renderer) chips(options []string) string {
	if len(options) == 0 {
		return ""
	}
	rendered := make([]string, len(options))
	for i, opt := range options {
		rendered[i] = chipStyle.Render(fmt.Sprintf("%d. %s", i+1, opt))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

// Profile prints the profile as an aligned key/value list.
func (r *renderer) Profile(p models.UserProfile) {
	rows := [][2]string{
		{"الاسم", p.Name},
		{"الجنس", string(p.Gender)},
		{"العمر", intOrDash(p.Age)},
		{"الطول", floatOrDash(p.Height, "سم")},
		{"الوزن", floatOrDash(p.Weight, "كجم")},
		{"الهدف", string(p.Goal)},
		{"النشاط", string(p.ActivityLevel)},
		{"الأسلوب", string(p.CoachTone)},
		{"النقاط", fmt.Sprint(p.Points)},
		{"المستوى", fmt.Sprint(p.Level)},
		{"وجبات", fmt.Sprint(len(p.LoggedMeals))},
	}
	if len(p.Injuries) > 0 {
		rows = append(rows, [2]string{"إصابات", strings.Join(p.Injuries, "، ")})
	}
	if len(p.Allergies) > 0 {
		rows = append(rows, [2]string{"حساسية", strings.Join(p.Allergies, "، ")})
	}
	for _, row := range rows {
		value := row[1]
		if value == "" {
			value = "-"
		}
		if r.plain {
			fmt.Fprintf(r.w, "%s: %s\n", row[0], value)
			continue
		}
		fmt.Fprintln(r.w, keyStyle.Render(row[0])+value)
	}
}

func intOrDash(n int) string {
	if n == 0 {
		return ""
	}
	return fmt.Sprint(n)
}

func floatOrDash(f float64, unit string) string {
	if f == 0 {
		return ""
	}
	return fmt.Sprintf("%g %s", f, unit)
}
