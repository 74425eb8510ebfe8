package weread

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/dgallion1/wrnotes/internal/doctree"
)

const (
	pathNotebooks   = "/api/user/notebook"
	pathShelfSync   = "/web/shelf/sync"
	pathBookInfo    = "/api/book/info"
	pathBookmarks   = "/web/book/bookmarklist"
	pathChapters    = "/web/book/chapterInfos"
	pathReviews     = "/web/review/list"
	pathBestReviews = "/web/review/list/best"
	pathProgress    = "/web/book/getProgress"
)

func requireBookID(bookID string) error {
	if strings.TrimSpace(bookID) == "" {
		return &ValidationError{Field: "book_id", Message: "must not be empty"}
	}
	return nil
}

func bookQuery(bookID string) url.Values {
	return url.Values{"bookId": {bookID}}
}

// Notebooks lists the books that have highlights or notes.
func (c *Client) Notebooks(ctx context.Context) (*Notebooks, error) {
	var out Notebooks
	if err := c.get(ctx, pathNotebooks, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ShelfSync returns every book on the shelf with progress and booklists.
func (c *Client) ShelfSync(ctx context.Context) (*Shelf, error) {
	var out Shelf
	if err := c.get(ctx, pathShelfSync, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BookInfo returns store details for a book.
func (c *Client) BookInfo(ctx context.Context, bookID string) (*BookInfo, error) {
	if err := requireBookID(bookID); err != nil {
		return nil, err
	}
	var out BookInfo
	if err := c.get(ctx, pathBookInfo, bookQuery(bookID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Bookmarks returns every highlight of a book as listed, including ones
// without text or chapter.
func (c *Client) Bookmarks(ctx context.Context, bookID string) ([]doctree.HighlightRecord, error) {
	if err := requireBookID(bookID); err != nil {
		return nil, err
	}
	var out bookmarkList
	if err := c.get(ctx, pathBookmarks, bookQuery(bookID), &out); err != nil {
		return nil, err
	}
	if out.Updated == nil {
		return []doctree.HighlightRecord{}, nil
	}
	return out.Updated, nil
}

// Reviews returns the user's own notes on a book. Book-level reviews are
// attached to the review chapter.
func (c *Client) Reviews(ctx context.Context, bookID string) ([]doctree.NoteRecord, error) {
	if err := requireBookID(bookID); err != nil {
		return nil, err
	}
	q := bookQuery(bookID)
	q.Set("listType", "4")
	q.Set("maxIdx", "0")
	q.Set("count", "0")
	q.Set("listMode", "2")
	q.Set("syncKey", "0")

	var out reviewList
	if err := c.get(ctx, pathReviews, q, &out); err != nil {
		return nil, err
	}
	notes := make([]doctree.NoteRecord, 0, len(out.Reviews))
	for _, r := range out.Reviews {
		if r.Review == nil {
			continue
		}
		n := *r.Review
		if n.Type == 4 && n.ChapterUID == 0 {
			n.ChapterUID = doctree.ReviewChapterUID
		}
		notes = append(notes, n)
	}
	return notes, nil
}

// BestReviewsQuery pages through popular reviews.
type BestReviewsQuery struct {
	Count   int
	MaxIdx  int
	SyncKey int64
}

// BestReviews returns a page of popular public reviews.
func (c *Client) BestReviews(ctx context.Context, bookID string, q BestReviewsQuery) (*BestReviews, error) {
	if err := requireBookID(bookID); err != nil {
		return nil, err
	}
	if q.Count < 0 || q.MaxIdx < 0 {
		return nil, &ValidationError{Field: "count", Message: "must not be negative"}
	}
	if q.Count == 0 {
		q.Count = 10
	}
	vals := bookQuery(bookID)
	vals.Set("synckey", strconv.FormatInt(q.SyncKey, 10))
	vals.Set("maxIdx", strconv.Itoa(q.MaxIdx))
	vals.Set("count", strconv.Itoa(q.Count))

	var out BestReviews
	if err := c.get(ctx, pathBestReviews, vals, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Progress returns the reading state of a book.
func (c *Client) Progress(ctx context.Context, bookID string) (*Progress, error) {
	if err := requireBookID(bookID); err != nil {
		return nil, err
	}
	var out Progress
	if err := c.get(ctx, pathProgress, bookQuery(bookID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}
