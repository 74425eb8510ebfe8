package notebook

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/wrnotes/internal/weread"
)

const DefaultSearchMax = 5

// SearchRequest finds shelf books by keyword.
type SearchRequest struct {
	Keyword string
	// Exact compares title, author and translator whole instead of by
	// substring. Categories and booklists always match by substring.
	Exact   bool
	Details bool
	Max     int
}

// SearchReadingStatus is the detailed reading state of a matched book.
type SearchReadingStatus struct {
	Progress             int64  `json:"progress"`
	ReadingTime          int64  `json:"reading_time"`
	ReadingTimeFormatted string `json:"reading_time_formatted"`
	StartReadingTime     string `json:"start_reading_time"`
	HasStartedReading    bool   `json:"has_started_reading"`
	LastReadTime         string `json:"last_read_time"`
	NoteCount            int64  `json:"note_count"`
	BookmarkCount        int64  `json:"bookmark_count"`
	ReviewCount          int64  `json:"review_count"`
}

// SearchBookInfo is store metadata of a matched book.
type SearchBookInfo struct {
	WordCount   int64   `json:"word_count"`
	Price       float64 `json:"price"`
	Rating      float64 `json:"rating"`
	RatingCount int64   `json:"rating_count"`
	Description string  `json:"description"`
	Publisher   string  `json:"publisher"`
	ISBN        string  `json:"isbn"`
	Category    string  `json:"category"`
}

// SearchHit is one matched book. Detail fields are only set when details
// were requested; the brief progress fields only when they were not.
type SearchHit struct {
	BookID        string `json:"book_id"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	Translator    string `json:"translator"`
	Format        string `json:"format"`
	IsImported    bool   `json:"is_imported"`
	FinishReading bool   `json:"finish_reading"`
	Paid          bool   `json:"paid"`

	Progress             *int64 `json:"progress,omitempty"`
	ReadingTimeFormatted string `json:"reading_time_formatted,omitempty"`

	Cover         string               `json:"cover,omitempty"`
	Categories    []string             `json:"categories,omitempty"`
	BookLists     []string             `json:"book_lists,omitempty"`
	PublishInfo   string               `json:"publish_info,omitempty"`
	ReadingStatus *SearchReadingStatus `json:"reading_status,omitempty"`
	BookInfo      *SearchBookInfo      `json:"book_info,omitempty"`
}

// SearchResult lists matched books in shelf order.
type SearchResult struct {
	TotalMatches int         `json:"total_matches"`
	Books        []SearchHit `json:"books"`
}

// Search matches the keyword against title, author, translator, store
// categories and booklist names. With details, book info and progress are
// fetched for every match with bounded concurrency.
func (s *Service) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	keyword := strings.ToLower(strings.TrimSpace(req.Keyword))
	if keyword == "" {
		return nil, &weread.ValidationError{Field: "keyword", Message: "must not be empty"}
	}
	if req.Max <= 0 {
		req.Max = DefaultSearchMax
	}

	shelf, err := s.up.ShelfSync(ctx)
	if err != nil {
		return nil, err
	}
	nb, err := s.up.Notebooks(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexShelf(shelf, nb)

	var matched []weread.ShelfBook
	for _, b := range shelf.Books {
		if matches(b, shelf.Archive, keyword, req.Exact) {
			matched = append(matched, b)
			if len(matched) == req.Max {
				break
			}
		}
	}

	hits := make([]SearchHit, len(matched))
	for i, b := range matched {
		hits[i] = SearchHit{
			BookID:        b.BookID,
			Title:         b.Title,
			Author:        b.Author,
			Translator:    b.Translator,
			Format:        b.Format,
			IsImported:    b.Imported(),
			FinishReading: b.FinishReading == 1,
			Paid:          b.Paid == 1,
		}
		if !req.Details {
			p := idx.progress[b.BookID]
			progress := int64(p.Progress)
			hits[i].Progress = &progress
			hits[i].ReadingTimeFormatted = FormatReadingTime(int64(p.ReadingTime))
		}
	}

	if req.Details {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.detailConcurrency)
		for i, b := range matched {
			g.Go(func() error {
				return s.fillDetails(gctx, &hits[i], b, shelf.Archive, idx)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	return &SearchResult{TotalMatches: len(hits), Books: hits}, nil
}

func matches(b weread.ShelfBook, lists []weread.Archive, keyword string, exact bool) bool {
	fields := []string{b.Title, b.Author, b.Translator}
	for _, f := range fields {
		f = strings.ToLower(f)
		if exact && f == keyword {
			return true
		}
		if !exact && strings.Contains(f, keyword) {
			return true
		}
	}
	for _, c := range b.Categories {
		if strings.Contains(strings.ToLower(c.Title), keyword) {
			return true
		}
	}
	for _, a := range lists {
		if strings.Contains(strings.ToLower(a.Name), keyword) && a.Contains(b.BookID) {
			return true
		}
	}
	return false
}

func (s *Service) fillDetails(ctx context.Context, hit *SearchHit, b weread.ShelfBook, lists []weread.Archive, idx shelfIndex) error {
	info, err := s.bookInfo(ctx, b.BookID)
	if err != nil {
		return err
	}
	read, err := s.up.Progress(ctx, b.BookID)
	if err != nil {
		return err
	}

	hit.Cover = b.Cover
	hit.Categories = []string{}
	for _, c := range b.Categories {
		hit.Categories = append(hit.Categories, c.Title)
	}
	hit.BookLists = []string{}
	for _, a := range lists {
		if a.Contains(b.BookID) {
			hit.BookLists = append(hit.BookLists, a.Name)
		}
	}
	publishDate := b.PublishTime
	if len(publishDate) > 10 {
		publishDate = publishDate[:10]
	}
	hit.PublishInfo = strings.TrimSpace(b.Publisher + " " + publishDate)

	shelfP := idx.progress[b.BookID]
	n := idx.notebooks[b.BookID]
	progress := int64(firstNonZero(read.Book.Progress, shelfP.Progress))
	readingTime := int64(firstNonZero(read.Book.ReadingTime, shelfP.ReadingTime))
	lastRead := isoTime(int64(firstNonZero(read.Book.UpdateTime, shelfP.UpdateTime)))

	hit.ReadingStatus = &SearchReadingStatus{
		Progress:             progress,
		ReadingTime:          readingTime,
		ReadingTimeFormatted: FormatReadingTime(readingTime),
		StartReadingTime:     isoTime(int64(read.Book.StartReadingTime)),
		HasStartedReading:    read.Book.StartReadingTime > 0,
		LastReadTime:         lastRead,
		NoteCount:            int64(n.NoteCount),
		BookmarkCount:        int64(n.BookmarkCount),
		ReviewCount:          int64(n.ReviewCount),
	}
	hit.BookInfo = &SearchBookInfo{
		WordCount:   int64(info.TotalWords),
		Price:       info.Price,
		Rating:      info.Rating(),
		RatingCount: int64(info.NewRatingCount),
		Description: info.Intro,
		Publisher:   info.Publisher,
		ISBN:        info.ISBN,
		Category:    info.Category,
	}
	return nil
}

func firstNonZero(vals ...weread.Num) weread.Num {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}
