package notebook

import (
	"context"
	"strings"

	"github.com/dgallion1/wrnotes/internal/importer"
	"github.com/dgallion1/wrnotes/internal/weread"
)

// Review is a popular public review of a book.
type Review struct {
	ReviewID       string  `json:"review_id"`
	Content        string  `json:"content"`
	Rating         float64 `json:"rating"`
	Likes          int64   `json:"likes"`
	Comments       int64   `json:"comments"`
	CreatedTime    string  `json:"created_time"`
	AuthorNickname string  `json:"author_nickname"`
	IsSpoiler      bool    `json:"is_spoiler"`
	IsTop          bool    `json:"is_top"`
}

// BestReviews is a page of popular reviews with book context.
type BestReviews struct {
	BookID       string   `json:"book_id"`
	BookTitle    string   `json:"book_title"`
	BookAuthor   string   `json:"book_author"`
	TotalReviews int64    `json:"total_reviews"`
	HasMore      bool     `json:"has_more"`
	SyncKey      int64    `json:"sync_key"`
	Reviews      []Review `json:"reviews"`
}

// BestReviews returns a page of popular reviews, skipping entries without text.
func (s *Service) BestReviews(ctx context.Context, bookID string, q weread.BestReviewsQuery) (*BestReviews, error) {
	bookID = strings.TrimSpace(bookID)
	if bookID == "" {
		return nil, &weread.ValidationError{Field: "book_id", Message: "must not be empty"}
	}
	info, err := s.bookInfo(ctx, bookID)
	if err != nil {
		return nil, err
	}
	page, err := s.up.BestReviews(ctx, bookID, q)
	if err != nil {
		return nil, err
	}

	out := &BestReviews{
		BookID:       bookID,
		BookTitle:    info.Title,
		BookAuthor:   info.Author,
		TotalReviews: int64(page.Total),
		HasMore:      page.HasMore.Bool(),
		SyncKey:      int64(page.SyncKey),
		Reviews:      []Review{},
	}
	for _, item := range page.Reviews {
		if item.Review == nil || item.Review.Review == nil {
			continue
		}
		r := item.Review.Review
		content := r.Content
		if content == "" {
			content = r.HTMLContent
		}
		if content == "" {
			continue
		}
		likes := int64(r.Liked)
		if likes == 0 {
			likes = int64(item.Review.LikesCount)
		}
		out.Reviews = append(out.Reviews, Review{
			ReviewID:       item.Review.ReviewID,
			Content:        content,
			Rating:         reviewRating(r),
			Likes:          likes,
			Comments:       int64(r.Comments),
			CreatedTime:    isoTime(int64(r.CreateTime)),
			AuthorNickname: r.Author.Name,
			IsSpoiler:      r.NotVisibleToFriends.Bool(),
			IsTop:          item.Idx == 1 || item.IsTop.Bool(),
		})
	}
	return out, nil
}

// reviewRating maps a review onto five stars. Star is out of 100; the
// coarse rating levels are good, fair and poor.
func reviewRating(r *weread.ReviewBody) float64 {
	if r.Star != 0 {
		return float64(r.Star) / 20
	}
	switch r.NewRatingLevel {
	case 1:
		return 5
	case 2:
		return 3
	case 3:
		return 1
	}
	return 0
}

// Imported returns annotations of imported books from the highlighter,
// grouped by book and optionally filtered by title keyword.
func (s *Service) Imported(ctx context.Context, keyword string) (importer.Summary, error) {
	all, err := s.highlighter.Highlights(ctx, importer.DefaultDomain)
	if err != nil {
		return importer.Summary{}, err
	}
	return importer.Group(all, keyword), nil
}
