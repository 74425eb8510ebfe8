package notebook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/wrnotes/internal/cache"
	"github.com/dgallion1/wrnotes/internal/doctree"
	"github.com/dgallion1/wrnotes/internal/importer"
	"github.com/dgallion1/wrnotes/internal/weread"
)

// Upstream is the subset of *weread.Client the service reads from.
type Upstream interface {
	Notebooks(ctx context.Context) (*weread.Notebooks, error)
	ShelfSync(ctx context.Context) (*weread.Shelf, error)
	BookInfo(ctx context.Context, bookID string) (*weread.BookInfo, error)
	Bookmarks(ctx context.Context, bookID string) ([]doctree.HighlightRecord, error)
	Reviews(ctx context.Context, bookID string) ([]doctree.NoteRecord, error)
	BestReviews(ctx context.Context, bookID string, q weread.BestReviewsQuery) (*weread.BestReviews, error)
	Progress(ctx context.Context, bookID string) (*weread.Progress, error)
	Chapters(ctx context.Context, bookID string) (map[string]doctree.ChapterRecord, error)
}

// Cache stores upstream documents per book. *cache.Redis satisfies it.
type Cache interface {
	Get(ctx context.Context, kind, bookID string, out any) (bool, error)
	Set(ctx context.Context, kind, bookID string, v any) error
	Invalidate(ctx context.Context, bookID string) error
}

// Highlighter lists annotations of imported books. *importer.Client satisfies it.
type Highlighter interface {
	Highlights(ctx context.Context, domain string) ([]importer.Highlight, error)
}

// Options configures a Service. Nil Cache disables caching.
type Options struct {
	Cache             Cache
	Highlighter       Highlighter
	Logger            *slog.Logger
	DetailConcurrency int
}

// Service turns raw upstream data into the views served to callers.
type Service struct {
	up                Upstream
	cache             Cache
	highlighter       Highlighter
	logger            *slog.Logger
	detailConcurrency int
	now               func() time.Time
}

func NewService(up Upstream, opts Options) *Service {
	s := &Service{
		up:                up,
		cache:             opts.Cache,
		highlighter:       opts.Highlighter,
		logger:            opts.Logger,
		detailConcurrency: opts.DetailConcurrency,
		now:               time.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.highlighter == nil {
		s.highlighter = importer.NewClient(importer.DefaultURL)
	}
	if s.detailConcurrency <= 0 {
		s.detailConcurrency = 4
	}
	return s
}

func (s *Service) bookInfo(ctx context.Context, bookID string) (*weread.BookInfo, error) {
	var info weread.BookInfo
	if s.cached(ctx, cache.KindBookInfo, bookID, &info) {
		return &info, nil
	}
	got, err := s.up.BookInfo(ctx, bookID)
	if err != nil {
		return nil, err
	}
	s.store(ctx, cache.KindBookInfo, bookID, got)
	return got, nil
}

func (s *Service) chapters(ctx context.Context, bookID string) (map[string]doctree.ChapterRecord, error) {
	var set map[string]doctree.ChapterRecord
	if s.cached(ctx, cache.KindChapters, bookID, &set) && len(set) > 0 {
		return set, nil
	}
	got, err := s.up.Chapters(ctx, bookID)
	if err != nil {
		return nil, err
	}
	s.store(ctx, cache.KindChapters, bookID, got)
	return got, nil
}

func (s *Service) cached(ctx context.Context, kind, bookID string, out any) bool {
	if s.cache == nil {
		return false
	}
	ok, err := s.cache.Get(ctx, kind, bookID, out)
	if err != nil {
		s.logger.Warn("cache read failed", "kind", kind, "book_id", bookID, "error", err)
		return false
	}
	return ok
}

func (s *Service) store(ctx context.Context, kind, bookID string, v any) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, kind, bookID, v); err != nil {
		s.logger.Warn("cache write failed", "kind", kind, "book_id", bookID, "error", err)
	}
}

func (s *Service) invalidate(ctx context.Context, bookID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, bookID); err != nil {
		s.logger.Warn("cache invalidate failed", "book_id", bookID, "error", err)
	}
}

// FormatReadingTime renders seconds as hours and minutes, e.g. "2h5m".
func FormatReadingTime(seconds int64) string {
	if seconds <= 0 {
		return "0m"
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	switch {
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("%dh%dm", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dm", minutes)
}

func isoTime(sec int64) string {
	if sec <= 0 {
		return ""
	}
	return doctree.FormatUnix(sec)
}
