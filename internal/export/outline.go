package export

import (
	"github.com/dgallion1/wrnotes/internal/doctree"
	"github.com/dgallion1/wrnotes/internal/notebook"
)

// UncategorizedTitle heads annotations that belong to no listed chapter.
const UncategorizedTitle = "Uncategorized"

// section is one heading of an export with the annotations under it.
// Depth starts at 1 for top-level chapters.
type section struct {
	Title      string
	Depth      int
	Highlights []doctree.Highlight
	Notes      []doctree.Note
}

// outline linearizes the notes into headings in reading order. Organized
// notes follow the chapter tree; flat notes are grouped by chapter title in
// order of first appearance.
func outline(b *notebook.BookNotes) []section {
	var out []section
	if b.Organized() {
		var visit func(nodes []*doctree.Node, depth int)
		visit = func(nodes []*doctree.Node, depth int) {
			for _, n := range nodes {
				out = append(out, section{Title: n.Title, Depth: depth, Highlights: n.Highlights, Notes: n.Notes})
				visit(n.Children, depth+1)
			}
		}
		visit(b.Chapters, 1)
		if u := b.Uncategorized; len(u.Highlights) > 0 || len(u.Notes) > 0 {
			out = append(out, section{Title: UncategorizedTitle, Depth: 1, Highlights: u.Highlights, Notes: u.Notes})
		}
		return out
	}

	pos := make(map[string]int)
	at := func(title string) *section {
		i, ok := pos[title]
		if !ok {
			i = len(out)
			pos[title] = i
			out = append(out, section{Title: title, Depth: 1})
		}
		return &out[i]
	}
	for _, h := range b.Highlights {
		s := at(h.ChapterTitle)
		s.Highlights = append(s.Highlights, h.Highlight)
	}
	for _, n := range b.Notes {
		s := at(n.ChapterTitle)
		s.Notes = append(s.Notes, n.Note)
	}
	return out
}
