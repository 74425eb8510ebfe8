package weread

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/dgallion1/wrnotes/internal/doctree"
)

// Num is an integer that upstream sometimes sends as a bool or a string.
type Num int64

func (n *Num) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0, bytes.Equal(b, []byte("null")), bytes.Equal(b, []byte("false")):
		*n = 0
		return nil
	case bytes.Equal(b, []byte("true")):
		*n = 1
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*n = Num(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = Num(f)
	return nil
}

// Bool reports whether the value is non-zero.
func (n Num) Bool() bool { return n != 0 }

// Category is a store category attached to a shelf book.
type Category struct {
	CategoryID Num    `json:"categoryId,omitempty"`
	Title      string `json:"title"`
}

// ShelfBook is a book as listed on the shelf.
type ShelfBook struct {
	BookID        string     `json:"bookId"`
	Title         string     `json:"title"`
	Author        string     `json:"author"`
	Translator    string     `json:"translator"`
	Cover         string     `json:"cover"`
	Format        string     `json:"format"`
	Publisher     string     `json:"publisher"`
	PublishTime   string     `json:"publishTime"`
	Categories    []Category `json:"categories"`
	FinishReading Num        `json:"finishReading"`
	Paid          Num        `json:"paid"`
}

// Imported reports whether the book was uploaded by the user rather than bought.
func (b ShelfBook) Imported() bool {
	return len(b.BookID) >= 3 && b.BookID[:3] == "CB_"
}

// BookProgress is the shelf's per-book progress summary.
type BookProgress struct {
	BookID      string `json:"bookId"`
	Progress    Num    `json:"progress"`
	ReadingTime Num    `json:"readingTime"`
	UpdateTime  Num    `json:"updateTime"`
}

// Archive is a user-defined booklist.
type Archive struct {
	ArchiveID Num      `json:"archiveId"`
	Name      string   `json:"name"`
	BookIDs   []string `json:"bookIds"`
}

// Contains reports whether bookID is in the booklist.
func (a Archive) Contains(bookID string) bool {
	for _, id := range a.BookIDs {
		if id == bookID {
			return true
		}
	}
	return false
}

// Shelf is the full bookshelf sync.
type Shelf struct {
	Books        []ShelfBook    `json:"books"`
	BookProgress []BookProgress `json:"bookProgress"`
	Archive      []Archive      `json:"archive"`
}

// NotebookEntry is a book that has highlights or notes.
type NotebookEntry struct {
	BookID        string    `json:"bookId"`
	Book          ShelfBook `json:"book"`
	NoteCount     Num       `json:"noteCount"`
	BookmarkCount Num       `json:"bookmarkCount"`
	ReviewCount   Num       `json:"reviewCount"`
	Sort          Num       `json:"sort"`
}

// Notebooks lists the books that carry annotations.
type Notebooks struct {
	Books []NotebookEntry `json:"books"`
}

// BookInfo is the store detail of a book.
type BookInfo struct {
	BookID         string  `json:"bookId"`
	Title          string  `json:"title"`
	Author         string  `json:"author"`
	Translator     string  `json:"translator"`
	Publisher      string  `json:"publisher"`
	PublishTime    string  `json:"publishTime"`
	Intro          string  `json:"intro"`
	ISBN           string  `json:"isbn"`
	Category       string  `json:"category"`
	Cover          string  `json:"cover"`
	TotalWords     Num     `json:"totalWords"`
	Price          float64 `json:"price"`
	NewRating      Num     `json:"newRating"`
	NewRatingCount Num     `json:"newRatingCount"`
	FinishReading  Num     `json:"finishReading"`
}

// Rating converts the per-mille store rating to a 0-10 scale.
func (b BookInfo) Rating() float64 {
	return float64(b.NewRating) / 100
}

// ProgressDetail is the reading state of one book.
type ProgressDetail struct {
	Progress         Num `json:"progress"`
	ReadingTime      Num `json:"readingTime"`
	StartReadingTime Num `json:"startReadingTime"`
	UpdateTime       Num `json:"updateTime"`
	ChapterUID       Num `json:"chapterUid"`
}

// Progress wraps the reading state returned by getProgress.
type Progress struct {
	BookID string         `json:"bookId"`
	Book   ProgressDetail `json:"book"`
}

// ReviewAuthor is the public profile attached to a review.
type ReviewAuthor struct {
	Name string `json:"name"`
}

// ReviewBody is a single public review.
type ReviewBody struct {
	Content             string       `json:"content"`
	HTMLContent         string       `json:"htmlContent"`
	Star                Num          `json:"star"`
	NewRatingLevel      Num          `json:"newRatingLevel"`
	Liked               Num          `json:"liked"`
	Comments            Num          `json:"comments"`
	CreateTime          Num          `json:"createTime"`
	NotVisibleToFriends Num          `json:"notVisibleToFriends"`
	Author              ReviewAuthor `json:"author"`
}

// ReviewEnvelope pairs a review with its id and like count.
type ReviewEnvelope struct {
	ReviewID   string      `json:"reviewId"`
	LikesCount Num         `json:"likesCount"`
	Review     *ReviewBody `json:"review"`
}

// BestReviewItem is one entry of the popular review list.
type BestReviewItem struct {
	Idx    Num             `json:"idx"`
	IsTop  Num             `json:"isTop"`
	Review *ReviewEnvelope `json:"review"`
}

// BestReviews is a page of popular reviews.
type BestReviews struct {
	Reviews []BestReviewItem `json:"reviews"`
	HasMore Num              `json:"reviewsHasMore"`
	SyncKey Num              `json:"synckey"`
	Total   Num              `json:"reviewsCnt"`
}

type bookmarkList struct {
	Updated []doctree.HighlightRecord `json:"updated"`
}

type reviewList struct {
	Reviews []struct {
		Review *doctree.NoteRecord `json:"review"`
	} `json:"reviews"`
}
