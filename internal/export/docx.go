package export

import (
	"bytes"
	"fmt"

	"github.com/fumiama/go-docx"

	"github.com/dgallion1/wrnotes/internal/notebook"
)

// DOCX renders the notes as a Word document. Chapters become HeadingN
// paragraphs, highlights italic paragraphs and notes plain paragraphs.
func DOCX(b *notebook.BookNotes) ([]byte, error) {
	w := docx.New().WithDefaultTheme()

	title := b.BookTitle
	if title == "" {
		title = b.BookID
	}
	w.AddParagraph().Style("Title").AddText(title).Bold().Size("36")
	for _, line := range summaryLines(b) {
		w.AddParagraph().AddText(line).Size("20").Color("595959")
	}

	for _, s := range outline(b) {
		level := min(s.Depth, 6)
		w.AddParagraph().Style(fmt.Sprintf("Heading%d", level)).AddText(s.Title).Bold().Size(headingSize(level))
		for _, h := range s.Highlights {
			w.AddParagraph().AddText(h.Text).Italic()
		}
		for _, n := range s.Notes {
			w.AddParagraph().AddText(n.Content)
			if n.HighlightText != "" {
				w.AddParagraph().AddText(n.HighlightText).Italic().Color("808080")
			}
		}
	}

	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write docx: %w", err)
	}
	return buf.Bytes(), nil
}

// headingSize is the font size in half-points for a heading level.
func headingSize(level int) string {
	switch level {
	case 1:
		return "32"
	case 2:
		return "28"
	case 3:
		return "26"
	}
	return "24"
}
