package formatters

import (
	"fmt"
	"strings"
)

type style struct {
	name     string
	markdown bool
}

var (
	plain    = style{name: "text"}
	markdown = style{name: "markdown", markdown: true}
)

// writer emits the same structure as plain text or markdown.
type writer struct {
	strings.Builder
	style style
}

func (w *writer) heading(level int, title string) {
	if w.style.markdown {
		if w.Len() > 0 && !strings.HasSuffix(w.String(), "\n\n") {
			w.WriteString("\n")
		}
		fmt.Fprintf(w, "%s %s\n\n", strings.Repeat("#", level), title)
		return
	}
	switch level {
	case 1:
		fmt.Fprintf(w, "=== %s ===\n\n", strings.ToUpper(title))
	case 2:
		fmt.Fprintf(w, "%s:\n", title)
	default:
		fmt.Fprintf(w, "%s\n", title)
	}
}

func (w *writer) field(label, value string) {
	if w.style.markdown {
		fmt.Fprintf(w, "**%s:** %s\n\n", label, value)
		return
	}
	fmt.Fprintf(w, "%s: %s\n", label, value)
}

func (w *writer) line(s string) {
	w.WriteString(s)
	w.WriteString("\n")
}

func (w *writer) raw(s string) {
	w.WriteString(strings.TrimRight(s, "\n"))
	w.WriteString("\n")
}

func (w *writer) blank() {
	if !w.style.markdown {
		w.WriteString("\n")
	}
}

func (w *writer) bullet(s string) {
	fmt.Fprintf(w, "- %s\n", s)
}

func (w *writer) list(items []string) {
	if len(items) == 0 {
		w.line("(none)")
		return
	}
	for _, item := range items {
		w.bullet(item)
	}
}

func (w *writer) numbered(items []string) {
	for i, item := range items {
		fmt.Fprintf(w, "%d. %s\n", i+1, item)
	}
}
