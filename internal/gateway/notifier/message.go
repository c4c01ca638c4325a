package notifier

import (
	"strings"
	"time"
)

const maxMessageLen = 3800

// Alert is a titled message with optional key/value details.
type Alert struct {
	Icon    string
	Title   string
	Venue   string
	Details []Detail
	At      time.Time
}

type Detail struct {
	Key   string
	Value string
}

// Markdown renders the alert for Telegram. Details go into a code block so
// identifiers are not mangled by Markdown.
func (a Alert) Markdown() string {
	var b strings.Builder
	if header := strings.TrimSpace(a.Icon + " " + a.Title); header != "" {
		b.WriteString("*" + escape(header) + "*\n")
	}
	lines := make([]string, 0, len(a.Details)+1)
	if a.Venue != "" {
		lines = append(lines, "venue: "+a.Venue)
	}
	for _, d := range a.Details {
		if v := strings.TrimSpace(d.Value); v != "" {
			lines = append(lines, d.Key+": "+v)
		}
	}
	if len(lines) > 0 {
		b.WriteString("```\n")
		for _, line := range lines {
			b.WriteString(strings.ReplaceAll(line, "```", "'''"))
			b.WriteString("\n")
		}
		b.WriteString("```\n")
	}
	if !a.At.IsZero() {
		b.WriteString(a.At.UTC().Format(time.RFC3339))
	}
	out := strings.TrimSpace(b.String())
	if len(out) > maxMessageLen {
		out = out[:maxMessageLen] + "..."
	}
	return out
}

func escape(s string) string {
	return strings.NewReplacer("*", "\\*", "_", "\\_", "`", "'").Replace(s)
}
