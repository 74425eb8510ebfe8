package doctree

import "time"

// UnknownChapterTitle labels flat annotations whose chapter is not in the listing.
const UnknownChapterTitle = "unknown chapter"

// Bucket holds annotations that matched no chapter.
type Bucket struct {
	Highlights []Highlight `json:"highlights"`
	Notes      []Note      `json:"notes"`
}

// Placement is the populated, pruned forest plus everything that did not fit it.
type Placement struct {
	Chapters      []*Node `json:"chapters"`
	Uncategorized Bucket  `json:"uncategorized"`
}

// Place routes highlights and notes into the forest by chapter uid and prunes
// every chapter left without annotations. When styleFilter is non-nil only
// highlights with that colour style are kept.
func Place(forest []*Node, highlights []HighlightRecord, notes []NoteRecord, styleFilter *int) Placement {
	lookup := make(map[string]*Node)
	Walk(forest, func(n *Node) { lookup[n.UID.String()] = n })

	out := Placement{
		Uncategorized: Bucket{Highlights: []Highlight{}, Notes: []Note{}},
	}

	for _, h := range highlights {
		if !h.Valid() {
			continue
		}
		if styleFilter != nil && h.ColorStyle != *styleFilter {
			continue
		}
		item := normalizeHighlight(h)
		if n, ok := lookup[h.ChapterUID.String()]; ok {
			n.Highlights = append(n.Highlights, item)
		} else {
			out.Uncategorized.Highlights = append(out.Uncategorized.Highlights, item)
		}
	}

	for _, r := range notes {
		if !r.Valid() {
			continue
		}
		item := normalizeNote(r)
		if n, ok := lookup[r.ChapterUID.String()]; ok {
			n.Notes = append(n.Notes, item)
		} else {
			out.Uncategorized.Notes = append(out.Uncategorized.Notes, item)
		}
	}

	out.Chapters = Prune(forest)
	return out
}

// Prune drops every node that has no highlights, no notes and no surviving child.
func Prune(nodes []*Node) []*Node {
	kept := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		n.Children = Prune(n.Children)
		n.level, n.idx = 0, 0
		if len(n.Highlights) > 0 || len(n.Notes) > 0 || len(n.Children) > 0 {
			kept = append(kept, n)
		}
	}
	return kept
}

// FlatHighlight is a highlight reported outside the chapter tree.
type FlatHighlight struct {
	Highlight
	ChapterUID   UID    `json:"chapter_uid"`
	ChapterTitle string `json:"chapter_title"`
}

// FlatNote is a note reported outside the chapter tree.
type FlatNote struct {
	Note
	ChapterUID   UID    `json:"chapter_uid"`
	ChapterTitle string `json:"chapter_title"`
}

// Flatten normalizes annotations without building a tree, tagging each with
// its chapter title from chapters.
func Flatten(chapters map[string]ChapterRecord, highlights []HighlightRecord, notes []NoteRecord, styleFilter *int) ([]FlatHighlight, []FlatNote) {
	title := func(uid UID) string {
		if rec, ok := chapters[uid.String()]; ok {
			return rec.Title
		}
		return UnknownChapterTitle
	}

	flatH := make([]FlatHighlight, 0, len(highlights))
	for _, h := range highlights {
		if !h.Valid() {
			continue
		}
		if styleFilter != nil && h.ColorStyle != *styleFilter {
			continue
		}
		flatH = append(flatH, FlatHighlight{
			Highlight:    normalizeHighlight(h),
			ChapterUID:   h.ChapterUID,
			ChapterTitle: title(h.ChapterUID),
		})
	}

	flatN := make([]FlatNote, 0, len(notes))
	for _, r := range notes {
		if !r.Valid() {
			continue
		}
		flatN = append(flatN, FlatNote{
			Note:         normalizeNote(r),
			ChapterUID:   r.ChapterUID,
			ChapterTitle: title(r.ChapterUID),
		})
	}
	return flatH, flatN
}

func normalizeHighlight(h HighlightRecord) Highlight {
	style := h.ColorStyle
	if style == 0 {
		style = h.Style
	}
	return Highlight{
		Text:       h.MarkText,
		Style:      style,
		CreateTime: FormatUnix(h.CreateTime),
	}
}

func normalizeNote(r NoteRecord) Note {
	return Note{
		Content:       r.Content,
		HighlightText: r.Abstract,
		CreateTime:    FormatUnix(r.CreateTime),
	}
}

// TimeLayout is RFC 3339 in UTC with millisecond precision.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatUnix renders a unix-seconds timestamp with TimeLayout.
func FormatUnix(sec int64) string {
	return time.Unix(sec, 0).UTC().Format(TimeLayout)
}
