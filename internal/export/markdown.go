package export

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/dgallion1/wrnotes/internal/notebook"
)

// Markdown renders the notes as a Markdown document. Chapter depth maps to
// heading level below the book title, capped at h6.
func Markdown(b *notebook.BookNotes) []byte {
	var buf bytes.Buffer

	title := b.BookTitle
	if title == "" {
		title = b.BookID
	}
	fmt.Fprintf(&buf, "# %s\n\n", title)
	for _, line := range summaryLines(b) {
		fmt.Fprintf(&buf, "- %s\n", line)
	}
	buf.WriteString("\n")

	for _, s := range outline(b) {
		level := min(s.Depth+1, 6)
		fmt.Fprintf(&buf, "%s %s\n\n", strings.Repeat("#", level), s.Title)
		for _, h := range s.Highlights {
			buf.WriteString(quote(h.Text))
			buf.WriteString("\n")
		}
		for _, n := range s.Notes {
			buf.WriteString(n.Content)
			buf.WriteString("\n\n")
			if n.HighlightText != "" {
				buf.WriteString(quote(n.HighlightText))
				buf.WriteString("\n")
			}
		}
	}
	return append(bytes.TrimRight(buf.Bytes(), "\n"), '\n')
}

func summaryLines(b *notebook.BookNotes) []string {
	var lines []string
	if b.BookInfo.Author != "" {
		lines = append(lines, "Author: "+b.BookInfo.Author)
	}
	if b.BookInfo.Translator != "" {
		lines = append(lines, "Translator: "+b.BookInfo.Translator)
	}
	lines = append(lines,
		fmt.Sprintf("Progress: %d%%", b.ReadingStatus.Progress),
		"Reading time: "+b.ReadingStatus.ReadingTimeFormatted,
		fmt.Sprintf("Highlights: %d", b.TotalHighlights),
		fmt.Sprintf("Notes: %d", b.TotalNotes),
	)
	if b.LastUpdated != "" {
		lines = append(lines, "Exported: "+b.LastUpdated)
	}
	return lines
}

// quote turns text into a blockquote, one quoted line per input line.
func quote(text string) string {
	var buf strings.Builder
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		buf.WriteString("> ")
		buf.WriteString(strings.TrimRight(line, " \t\r"))
		buf.WriteString("\n")
	}
	return buf.String()
}

var md = goldmark.New(goldmark.WithExtensions(extension.Linkify))

// HTML renders the Markdown export through goldmark into a standalone page.
// Raw HTML inside annotations is omitted, not passed through.
func HTML(b *notebook.BookNotes) ([]byte, error) {
	var body bytes.Buffer
	if err := md.Convert(Markdown(b), &body); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}

	title := b.BookTitle
	if title == "" {
		title = b.BookID
	}
	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>%s</title>\n", html.EscapeString(title))
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}
