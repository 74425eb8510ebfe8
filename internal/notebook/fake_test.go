package notebook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/dgallion1/wrnotes/internal/doctree"
	"github.com/dgallion1/wrnotes/internal/importer"
	"github.com/dgallion1/wrnotes/internal/weread"
)

type fakeUpstream struct {
	mu    sync.Mutex
	calls map[string]int

	shelf     *weread.Shelf
	notebooks *weread.Notebooks
	info      map[string]*weread.BookInfo
	progress  map[string]*weread.Progress
	chapters  map[string]doctree.ChapterRecord
	marks     []doctree.HighlightRecord
	reviews   []doctree.NoteRecord
	best      *weread.BestReviews
	errs      map[string]error
}

func (f *fakeUpstream) hit(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[name]++
	return f.errs[name]
}

func (f *fakeUpstream) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeUpstream) Notebooks(context.Context) (*weread.Notebooks, error) {
	if err := f.hit("notebooks"); err != nil {
		return nil, err
	}
	if f.notebooks == nil {
		return &weread.Notebooks{}, nil
	}
	return f.notebooks, nil
}

func (f *fakeUpstream) ShelfSync(context.Context) (*weread.Shelf, error) {
	if err := f.hit("shelf"); err != nil {
		return nil, err
	}
	if f.shelf == nil {
		return &weread.Shelf{}, nil
	}
	return f.shelf, nil
}

func (f *fakeUpstream) BookInfo(_ context.Context, id string) (*weread.BookInfo, error) {
	if err := f.hit("info"); err != nil {
		return nil, err
	}
	if info, ok := f.info[id]; ok {
		return info, nil
	}
	return &weread.BookInfo{BookID: id}, nil
}

func (f *fakeUpstream) Bookmarks(context.Context, string) ([]doctree.HighlightRecord, error) {
	if err := f.hit("bookmarks"); err != nil {
		return nil, err
	}
	return f.marks, nil
}

func (f *fakeUpstream) Reviews(context.Context, string) ([]doctree.NoteRecord, error) {
	if err := f.hit("reviews"); err != nil {
		return nil, err
	}
	return f.reviews, nil
}

func (f *fakeUpstream) BestReviews(context.Context, string, weread.BestReviewsQuery) (*weread.BestReviews, error) {
	if err := f.hit("best"); err != nil {
		return nil, err
	}
	if f.best == nil {
		return &weread.BestReviews{}, nil
	}
	return f.best, nil
}

func (f *fakeUpstream) Progress(_ context.Context, id string) (*weread.Progress, error) {
	if err := f.hit("progress"); err != nil {
		return nil, err
	}
	if p, ok := f.progress[id]; ok {
		return p, nil
	}
	return &weread.Progress{BookID: id}, nil
}

func (f *fakeUpstream) Chapters(context.Context, string) (map[string]doctree.ChapterRecord, error) {
	if err := f.hit("chapters"); err != nil {
		return nil, err
	}
	out := make(map[string]doctree.ChapterRecord, len(f.chapters))
	for k, v := range f.chapters {
		out[k] = v
	}
	return out, nil
}

// memCache round-trips through JSON like the redis cache does.
type memCache struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func (m *memCache) Get(_ context.Context, kind, bookID string, out any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.docs[kind+":"+bookID]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, out)
}

func (m *memCache) Set(_ context.Context, kind, bookID string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.docs == nil {
		m.docs = map[string][]byte{}
	}
	m.docs[kind+":"+bookID] = b
	return nil
}

func (m *memCache) Invalidate(_ context.Context, bookID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.docs {
		if strings.HasSuffix(k, ":"+bookID) {
			delete(m.docs, k)
		}
	}
	return nil
}

type fakeHighlighter struct {
	items []importer.Highlight
	err   error
}

func (f *fakeHighlighter) Highlights(context.Context, string) ([]importer.Highlight, error) {
	return f.items, f.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
