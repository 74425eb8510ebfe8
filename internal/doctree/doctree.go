package doctree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// ReviewChapterUID is the sentinel chapter that collects book-level reviews.
// Real chapter uids never reach this value.
const ReviewChapterUID UID = 1000000

// ReviewChapterTitle is the title WeRead uses for the review section.
const ReviewChapterTitle = "点评"

// UID identifies a chapter. Upstream sends it as either a JSON number or string.
type UID int64

func (u *UID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*u = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*u = 0
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("chapter uid %q: %w", s, err)
		}
		*u = UID(n)
		return nil
	}
	var f json.Number
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	n, err := f.Int64()
	if err != nil {
		fl, ferr := f.Float64()
		if ferr != nil {
			return fmt.Errorf("chapter uid %s: %w", f, err)
		}
		n = int64(fl)
	}
	*u = UID(n)
	return nil
}

// String renders the uid as the lookup key used everywhere chapters are indexed.
func (u UID) String() string {
	return strconv.FormatInt(int64(u), 10)
}

// ChapterRecord is one entry of a book's flat chapter listing.
type ChapterRecord struct {
	UID        UID    `json:"chapterUid"`
	Idx        int    `json:"chapterIdx"`
	Level      int    `json:"level"`
	Title      string `json:"title"`
	UpdateTime int64  `json:"updateTime,omitempty"`
	ReadAhead  int    `json:"readAhead,omitempty"`
}

// ReviewChapter returns the synthetic end-of-book chapter.
func ReviewChapter() ChapterRecord {
	return ChapterRecord{
		UID:        ReviewChapterUID,
		Idx:        int(ReviewChapterUID),
		Level:      1,
		Title:      ReviewChapterTitle,
		UpdateTime: 1683825006,
	}
}

// Records flattens a uid-keyed chapter set into a slice ordered by index, then uid.
func Records(set map[string]ChapterRecord) []ChapterRecord {
	out := make([]ChapterRecord, 0, len(set))
	for _, rec := range set {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Idx != out[j].Idx {
			return out[i].Idx < out[j].Idx
		}
		return out[i].UID < out[j].UID
	})
	return out
}

// HighlightRecord is a raw bookmark ("划线") as returned by the bookmark list.
type HighlightRecord struct {
	BookmarkID string `json:"bookmarkId,omitempty"`
	ChapterUID UID    `json:"chapterUid"`
	MarkText   string `json:"markText"`
	ColorStyle int    `json:"colorStyle"`
	Style      int    `json:"style"`
	Type       int    `json:"type,omitempty"`
	Range      string `json:"range,omitempty"`
	CreateTime int64  `json:"createTime"`
}

// Valid reports whether the record carries enough data to be placed.
func (h HighlightRecord) Valid() bool {
	return h.MarkText != "" && h.ChapterUID != 0
}

// NoteRecord is a raw review ("想法") attached to a book or chapter.
type NoteRecord struct {
	ReviewID   string `json:"reviewId,omitempty"`
	ChapterUID UID    `json:"chapterUid"`
	Content    string `json:"content"`
	Abstract   string `json:"abstract"`
	Type       int    `json:"type"`
	Range      string `json:"range,omitempty"`
	CreateTime int64  `json:"createTime"`
}

// Valid reports whether the record carries enough data to be placed.
func (n NoteRecord) Valid() bool {
	return n.Content != "" && n.ChapterUID != 0
}

// Node is a chapter in the rebuilt tree with the annotations placed into it.
type Node struct {
	UID        UID         `json:"uid"`
	Title      string      `json:"title"`
	Children   []*Node     `json:"children"`
	Highlights []Highlight `json:"highlights"`
	Notes      []Note      `json:"notes"`

	// Only meaningful while building.
	level int
	idx   int
}

// Highlight is the normalized form of a placed bookmark.
type Highlight struct {
	Text       string `json:"text"`
	Style      int    `json:"style"`
	CreateTime string `json:"create_time"`
}

// Note is the normalized form of a placed review.
type Note struct {
	Content       string `json:"content"`
	HighlightText string `json:"highlight_text"`
	CreateTime    string `json:"create_time"`
}
