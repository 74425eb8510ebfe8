package importer

import (
	"encoding/json"
	"strings"
)

// QuickNote marks annotations typed without a text selection.
const QuickNote = "quick_note"

// Entry is an annotation as reported per book.
type Entry struct {
	Text      string          `json:"text"`
	Note      string          `json:"note"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
	Type      string          `json:"type,omitempty"`
}

// Book groups the annotations of one imported book.
type Book struct {
	BookTitle  string  `json:"book_title"`
	Highlights []Entry `json:"highlights"`
}

// Summary is the grouped view of imported annotations.
type Summary struct {
	TotalBooks      int    `json:"total_books"`
	TotalHighlights int    `json:"total_highlights"`
	Books           []Book `json:"books"`
}

// BookTitle returns the book part of a "book - chapter - author" title.
func BookTitle(title string) string {
	first, _, _ := strings.Cut(title, " - ")
	if t := strings.TrimSpace(first); t != "" {
		return t
	}
	return title
}

// Group buckets highlights by book title in first-seen order. A non-empty
// keyword keeps only books whose title contains it, ignoring case.
func Group(all []Highlight, keyword string) Summary {
	keyword = strings.ToLower(strings.TrimSpace(keyword))

	out := Summary{Books: []Book{}}
	index := make(map[string]int)
	for _, h := range all {
		title := BookTitle(h.Title)
		if keyword != "" && !strings.Contains(strings.ToLower(title), keyword) {
			continue
		}
		i, ok := index[title]
		if !ok {
			i = len(out.Books)
			index[title] = i
			out.Books = append(out.Books, Book{BookTitle: title, Highlights: []Entry{}})
		}
		e := Entry{Text: h.Text, Note: h.Note, Timestamp: h.Timestamp}
		if h.Type == QuickNote {
			e.Type = QuickNote
		}
		out.Books[i].Highlights = append(out.Books[i].Highlights, e)
		out.TotalHighlights++
	}
	out.TotalBooks = len(out.Books)
	return out
}
