package notebook

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/wrnotes/internal/doctree"
	"github.com/dgallion1/wrnotes/internal/weread"
)

// NotesRequest selects how a book's annotations are reported.
type NotesRequest struct {
	BookID            string
	IncludeChapters   bool
	OrganizeByChapter bool
	// Style keeps only highlights of this colour when set.
	Style *int
	// Refresh drops the cached book info and chapters first.
	Refresh bool
}

// NotesBookInfo is the store metadata shown with a book's notes.
type NotesBookInfo struct {
	Author      string  `json:"author"`
	Translator  string  `json:"translator"`
	Publisher   string  `json:"publisher"`
	PublishTime string  `json:"publish_time"`
	WordCount   int64   `json:"word_count"`
	Rating      float64 `json:"rating"`
	Category    string  `json:"category"`
}

// ReadingStatus is the user's progress through a book.
type ReadingStatus struct {
	Progress             int64  `json:"progress"`
	ReadingTime          int64  `json:"reading_time"`
	ReadingTimeFormatted string `json:"reading_time_formatted"`
	StartReadingTime     string `json:"start_reading_time"`
	HasStartedReading    bool   `json:"has_started_reading"`
	LastReadTime         string `json:"last_read_time"`
	FinishReading        bool   `json:"finish_reading"`
}

// BookNotes is every highlight and note of a book, either placed into the
// chapter tree or listed flat.
type BookNotes struct {
	BookID          string        `json:"book_id"`
	BookTitle       string        `json:"book_title"`
	BookInfo        NotesBookInfo `json:"book_info"`
	ReadingStatus   ReadingStatus `json:"reading_status"`
	TotalHighlights int           `json:"total_highlights"`
	TotalNotes      int           `json:"total_notes"`
	LastUpdated     string        `json:"last_updated"`

	Chapters      []*doctree.Node `json:"chapters,omitempty"`
	Uncategorized *doctree.Bucket `json:"uncategorized,omitempty"`

	Highlights []doctree.FlatHighlight `json:"highlights,omitempty"`
	Notes      []doctree.FlatNote      `json:"notes,omitempty"`
}

// Organized reports whether the notes were placed into chapters.
func (b *BookNotes) Organized() bool { return b.Uncategorized != nil }

// BookNotes gathers a book's metadata, progress, chapters and annotations
// concurrently and arranges the annotations as requested.
func (s *Service) BookNotes(ctx context.Context, req NotesRequest) (*BookNotes, error) {
	req.BookID = strings.TrimSpace(req.BookID)
	if req.BookID == "" {
		return nil, &weread.ValidationError{Field: "book_id", Message: "must not be empty"}
	}
	if req.Refresh {
		s.invalidate(ctx, req.BookID)
	}

	var (
		info     *weread.BookInfo
		progress *weread.Progress
		chapters map[string]doctree.ChapterRecord
		marks    []doctree.HighlightRecord
		reviews  []doctree.NoteRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { info, err = s.bookInfo(gctx, req.BookID); return err })
	g.Go(func() (err error) { progress, err = s.up.Progress(gctx, req.BookID); return err })
	g.Go(func() (err error) { marks, err = s.up.Bookmarks(gctx, req.BookID); return err })
	g.Go(func() (err error) { reviews, err = s.up.Reviews(gctx, req.BookID); return err })
	if req.IncludeChapters {
		g.Go(func() (err error) { chapters, err = s.chapters(gctx, req.BookID); return err })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	p := progress.Book
	out := &BookNotes{
		BookID:    req.BookID,
		BookTitle: info.Title,
		BookInfo: NotesBookInfo{
			Author:      info.Author,
			Translator:  info.Translator,
			Publisher:   info.Publisher,
			PublishTime: info.PublishTime,
			WordCount:   int64(info.TotalWords),
			Rating:      info.Rating(),
			Category:    info.Category,
		},
		ReadingStatus: ReadingStatus{
			Progress:             int64(p.Progress),
			ReadingTime:          int64(p.ReadingTime),
			ReadingTimeFormatted: FormatReadingTime(int64(p.ReadingTime)),
			StartReadingTime:     isoTime(int64(p.StartReadingTime)),
			HasStartedReading:    p.StartReadingTime > 0,
			LastReadTime:         isoTime(int64(p.UpdateTime)),
			FinishReading:        info.FinishReading.Bool(),
		},
		TotalHighlights: len(marks),
		TotalNotes:      len(reviews),
		LastUpdated:     s.now().UTC().Format(doctree.TimeLayout),
	}

	if req.OrganizeByChapter {
		forest := doctree.Build(doctree.Records(chapters))
		placed := doctree.Place(forest, marks, reviews, req.Style)
		out.Chapters = placed.Chapters
		out.Uncategorized = &placed.Uncategorized
	} else {
		out.Highlights, out.Notes = doctree.Flatten(chapters, marks, reviews, req.Style)
	}

	s.logger.Debug("book notes assembled",
		"book_id", req.BookID,
		"highlights", out.TotalHighlights,
		"notes", out.TotalNotes,
		"organized", req.OrganizeByChapter,
	)
	return out, nil
}
