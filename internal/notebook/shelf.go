package notebook

import (
	"context"
	"sort"

	"github.com/dgallion1/wrnotes/internal/weread"
)

const DefaultShelfLimit = 100

// ReadingCounts splits the shelf by reading state.
type ReadingCounts struct {
	Unread   int `json:"unread_books"`
	Reading  int `json:"reading_books"`
	Finished int `json:"finished_books"`
}

// SourceCounts splits the shelf by where books came from.
type SourceCounts struct {
	Imported int `json:"imported_books"`
	WeRead   int `json:"weread_books"`
}

// CategoryCount is the number of shelf books in a store category.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// CategoryStats counts shelf books per store category.
type CategoryStats struct {
	Counts map[string]int  `json:"category_stats"`
	Main   []CategoryCount `json:"main_categories"`
}

// ShelfStats summarizes the whole shelf.
type ShelfStats struct {
	TotalBooks     int           `json:"total_books"`
	ReadingStatus  ReadingCounts `json:"reading_status"`
	BookSource     SourceCounts  `json:"book_source"`
	PaidBooks      int           `json:"paid_books"`
	BooksWithNotes int           `json:"books_with_notes"`
	Categories     CategoryStats `json:"categories"`
}

// BooklistCount is the size of one booklist.
type BooklistCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// BooklistStats summarizes the user's booklists.
type BooklistStats struct {
	Total    int            `json:"total_categories"`
	Largest  *BooklistCount `json:"largest_category"`
	Smallest *BooklistCount `json:"smallest_category"`
}

// Booklist is a user-defined list of shelf books.
type Booklist struct {
	Name      string `json:"name"`
	ID        int64  `json:"id"`
	BookCount int    `json:"book_count"`
}

// ShelfEntry is a condensed shelf book.
type ShelfEntry struct {
	BookID               string `json:"book_id"`
	Title                string `json:"title"`
	Author               string `json:"author"`
	FinishReading        bool   `json:"finish_reading"`
	Progress             int64  `json:"progress"`
	ReadingTimeFormatted string `json:"reading_time_formatted"`
	NoteCount            int64  `json:"note_count"`
	BookmarkCount        int64  `json:"bookmark_count"`
}

func (e ShelfEntry) activity() int64 {
	return e.NoteCount + e.BookmarkCount + e.Progress
}

// Bookshelf is the shelf overview.
type Bookshelf struct {
	Stats         ShelfStats    `json:"stats"`
	BooklistStats BooklistStats `json:"booklist_stats"`
	Booklists     []Booklist    `json:"booklists"`
	Books         []ShelfEntry  `json:"books"`
}

type shelfIndex struct {
	progress  map[string]weread.BookProgress
	notebooks map[string]weread.NotebookEntry
}

func indexShelf(shelf *weread.Shelf, nb *weread.Notebooks) shelfIndex {
	idx := shelfIndex{
		progress:  make(map[string]weread.BookProgress, len(shelf.BookProgress)),
		notebooks: make(map[string]weread.NotebookEntry),
	}
	for _, p := range shelf.BookProgress {
		if _, ok := idx.progress[p.BookID]; !ok {
			idx.progress[p.BookID] = p
		}
	}
	for _, e := range nb.Books {
		if _, ok := idx.notebooks[e.BookID]; !ok {
			idx.notebooks[e.BookID] = e
		}
	}
	return idx
}

// Bookshelf returns shelf statistics and up to limit books ordered by
// activity (notes plus highlights plus progress).
func (s *Service) Bookshelf(ctx context.Context, limit int) (*Bookshelf, error) {
	if limit <= 0 {
		limit = DefaultShelfLimit
	}
	shelf, err := s.up.ShelfSync(ctx)
	if err != nil {
		return nil, err
	}
	nb, err := s.up.Notebooks(ctx)
	if err != nil {
		return nil, err
	}
	return summarizeShelf(shelf, nb, limit), nil
}

func summarizeShelf(shelf *weread.Shelf, nb *weread.Notebooks, limit int) *Bookshelf {
	if nb == nil {
		nb = &weread.Notebooks{}
	}
	idx := indexShelf(shelf, nb)
	out := &Bookshelf{
		Stats: ShelfStats{
			TotalBooks:     len(shelf.Books),
			BooksWithNotes: len(nb.Books),
			Categories:     CategoryStats{Counts: map[string]int{}},
		},
		Booklists: []Booklist{},
		Books:     make([]ShelfEntry, 0, len(shelf.Books)),
	}

	for _, b := range shelf.Books {
		p, hasProgress := idx.progress[b.BookID]
		switch {
		case b.FinishReading == 1:
			out.Stats.ReadingStatus.Finished++
		case hasProgress && p.Progress > 0:
			out.Stats.ReadingStatus.Reading++
		default:
			out.Stats.ReadingStatus.Unread++
		}
		if b.Imported() {
			out.Stats.BookSource.Imported++
		}
		if b.Paid == 1 {
			out.Stats.PaidBooks++
		}
		for _, c := range b.Categories {
			title := c.Title
			if title == "" {
				title = "unknown"
			}
			out.Stats.Categories.Counts[title]++
		}

		n := idx.notebooks[b.BookID]
		out.Books = append(out.Books, ShelfEntry{
			BookID:               b.BookID,
			Title:                b.Title,
			Author:               b.Author,
			FinishReading:        b.FinishReading == 1,
			Progress:             int64(p.Progress),
			ReadingTimeFormatted: FormatReadingTime(int64(p.ReadingTime)),
			NoteCount:            int64(n.NoteCount),
			BookmarkCount:        int64(n.BookmarkCount),
		})
	}
	out.Stats.BookSource.WeRead = out.Stats.TotalBooks - out.Stats.BookSource.Imported
	out.Stats.Categories.Main = topCategories(out.Stats.Categories.Counts, 5)

	sizes := make([]BooklistCount, 0, len(shelf.Archive))
	for _, a := range shelf.Archive {
		out.Booklists = append(out.Booklists, Booklist{Name: a.Name, ID: int64(a.ArchiveID), BookCount: len(a.BookIDs)})
		sizes = append(sizes, BooklistCount{Name: a.Name, Count: len(a.BookIDs)})
	}
	sort.SliceStable(sizes, func(i, j int) bool { return sizes[i].Count > sizes[j].Count })
	out.BooklistStats.Total = len(sizes)
	if len(sizes) > 0 {
		largest, smallest := sizes[0], sizes[len(sizes)-1]
		out.BooklistStats.Largest = &largest
		out.BooklistStats.Smallest = &smallest
	}

	sort.SliceStable(out.Books, func(i, j int) bool {
		return out.Books[i].activity() > out.Books[j].activity()
	})
	if len(out.Books) > limit {
		out.Books = out.Books[:limit]
	}
	return out
}

func topCategories(counts map[string]int, n int) []CategoryCount {
	all := make([]CategoryCount, 0, len(counts))
	for c, k := range counts {
		all = append(all, CategoryCount{Category: c, Count: k})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Count != all[j].Count {
			return all[i].Count > all[j].Count
		}
		return all[i].Category < all[j].Category
	})
	if len(all) > n {
		all = all[:n]
	}
	return all
}
