package weread

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgallion1/wrnotes/internal/cookie"
	"github.com/dgallion1/wrnotes/internal/doctree"
	"github.com/dgallion1/wrnotes/internal/retry"
)

type fakeSource struct {
	calls   atomic.Int32
	cookies []string
	err     error
	gate    chan struct{}
}

func (s *fakeSource) Resolve(ctx context.Context) (string, error) {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	n := int(s.calls.Add(1))
	if s.err != nil {
		return "", s.err
	}
	if n <= len(s.cookies) {
		return s.cookies[n-1], nil
	}
	return "wr_vid=1; wr_skey=default", nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func newTestClient(t *testing.T, h http.Handler, src CookieSource) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(src, Options{
		BaseURL:     srv.URL,
		HTTPClient:  srv.Client(),
		Retry:       retry.Policy{MaxAttempts: 3, Sleep: noSleep},
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		WarmupSleep: noSleep,
	})
}

func TestClient_ReusesCookieUntilExpiry(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/user/notebook", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"books":[{"bookId":"b1","noteCount":2,"bookmarkCount":"3"}]}`)
	})
	src := &fakeSource{}
	c := newTestClient(t, mux, src)

	for i := 0; i < 3; i++ {
		nb, err := c.Notebooks(context.Background())
		if err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
		if len(nb.Books) != 1 || nb.Books[0].BookmarkCount != 3 {
			t.Errorf("unexpected notebooks %+v", nb)
		}
	}
	if got := src.calls.Load(); got != 1 {
		t.Errorf("expected 1 resolution, got %d", got)
	}
	if c.State() != Ready {
		t.Errorf("expected ready, got %s", c.State())
	}
}

func TestClient_SessionExpiryReResolves(t *testing.T) {
	var hits atomic.Int32
	var mu sync.Mutex
	var seen []string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/user/notebook", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("Cookie"))
		mu.Unlock()
		if hits.Add(1) == 1 {
			_, _ = io.WriteString(w, `{"errcode":-2012,"errmsg":"login timeout"}`)
			return
		}
		_, _ = io.WriteString(w, `{"books":[]}`)
	})
	src := &fakeSource{cookies: []string{"old", "new"}}
	c := newTestClient(t, mux, src)

	_, err := c.Notebooks(context.Background())
	if !IsSessionExpired(err) {
		t.Fatalf("expected session expiry, got %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("expected expiry not to be retried, got %d hits", hits.Load())
	}
	if c.State() != Uninitialized {
		t.Errorf("expected uninitialized after expiry, got %s", c.State())
	}

	if _, err := c.Notebooks(context.Background()); err != nil {
		t.Fatalf("unexpected error after re-resolve: %v", err)
	}
	if src.calls.Load() != 2 {
		t.Errorf("expected 2 resolutions, got %d", src.calls.Load())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != "old" || seen[1] != "new" {
		t.Errorf("expected cookies [old new], got %v", seen)
	}
}

func TestClient_LoginRequiredCodeAlsoExpires(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/web/shelf/sync", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"errcode":-2010,"errmsg":"user not exist"}`)
	})
	c := newTestClient(t, mux, &fakeSource{})
	if _, err := c.ShelfSync(context.Background()); !IsSessionExpired(err) {
		t.Fatalf("expected session expiry, got %v", err)
	}
	if c.State() != Uninitialized {
		t.Errorf("expected uninitialized, got %s", c.State())
	}
}

func TestClient_UnrelatedCodeKeepsSession(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/book/info", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, `{"errcode":-1,"errmsg":"busy"}`)
	})
	src := &fakeSource{}
	c := newTestClient(t, mux, src)

	_, err := c.BookInfo(context.Background(), "b1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != -1 {
		t.Fatalf("expected APIError -1, got %v", err)
	}
	if IsSessionExpired(err) {
		t.Error("expected -1 not to count as expiry")
	}
	if hits.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", hits.Load())
	}
	if c.State() != Ready {
		t.Errorf("expected session kept, got %s", c.State())
	}
	if src.calls.Load() != 1 {
		t.Errorf("expected 1 resolution, got %d", src.calls.Load())
	}
}

func TestClient_ConcurrentInitResolvesOnce(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/user/notebook", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"books":[]}`)
	})
	src := &fakeSource{gate: make(chan struct{})}
	c := newTestClient(t, mux, src)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Notebooks(context.Background())
			errs <- err
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if got := src.calls.Load(); got != 1 {
		t.Errorf("expected 1 resolution for %d callers, got %d", callers, got)
	}
}

func TestClient_CancelledCallerLeavesResolutionRunning(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/user/notebook", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"books":[]}`)
	})
	src := &fakeSource{gate: make(chan struct{}), cookies: []string{"wr_vid=1; wr_skey=vault"}}
	c := newTestClient(t, mux, src)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.Notebooks(ctx)
		first <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	if err := <-first; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled for the cancelled caller, got %v", err)
	}

	second := make(chan error, 1)
	go func() {
		_, err := c.Notebooks(context.Background())
		second <- err
	}()
	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	if err := <-second; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := src.calls.Load(); got != 1 {
		t.Errorf("expected 1 resolution, got %d", got)
	}
	sess, err := c.session(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.cookie != "wr_vid=1; wr_skey=vault" {
		t.Errorf("expected vault cookie, got %q", sess.cookie)
	}
}

func TestClient_NoCredential(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) { hits.Add(1) })
	src := &fakeSource{err: &cookie.NoCredentialError{Tried: []string{"env cookie"}}}
	c := newTestClient(t, mux, src)

	_, err := c.Notebooks(context.Background())
	var nc *cookie.NoCredentialError
	if !errors.As(err, &nc) {
		t.Fatalf("expected NoCredentialError, got %v", err)
	}
	if hits.Load() != 0 {
		t.Errorf("expected no request, got %d", hits.Load())
	}
	if c.State() != Uninitialized {
		t.Errorf("expected uninitialized, got %s", c.State())
	}
}

func TestClient_ValidationBeforeIO(t *testing.T) {
	src := &fakeSource{}
	c := newTestClient(t, http.NotFoundHandler(), src)

	for name, call := range map[string]func() error{
		"info":      func() error { _, err := c.BookInfo(context.Background(), " "); return err },
		"bookmarks": func() error { _, err := c.Bookmarks(context.Background(), ""); return err },
		"reviews":   func() error { _, err := c.Reviews(context.Background(), ""); return err },
		"progress":  func() error { _, err := c.Progress(context.Background(), ""); return err },
		"chapters":  func() error { _, err := c.Chapters(context.Background(), ""); return err },
		"best": func() error {
			_, err := c.BestReviews(context.Background(), "b1", BestReviewsQuery{Count: -1})
			return err
		},
	} {
		var vErr *ValidationError
		if err := call(); !errors.As(err, &vErr) {
			t.Errorf("%s: expected ValidationError, got %v", name, err)
		}
	}
	if src.calls.Load() != 0 {
		t.Errorf("expected no resolution, got %d", src.calls.Load())
	}
}

func TestClient_ErrorStatusRetried(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/web/book/getProgress", func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "bad gateway", http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"bookId":"b1","book":{"progress":42,"readingTime":3700}}`)
	})
	c := newTestClient(t, mux, &fakeSource{})

	p, err := c.Progress(context.Background(), "b1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Book.Progress != 42 || p.Book.ReadingTime != 3700 {
		t.Errorf("unexpected progress %+v", p.Book)
	}
	if hits.Load() != 3 {
		t.Errorf("expected 3 hits, got %d", hits.Load())
	}
}

func TestClient_MalformedNotRetried(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/web/shelf/sync", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, `<html>maintenance</html>`)
	})
	c := newTestClient(t, mux, &fakeSource{})

	_, err := c.ShelfSync(context.Background())
	var mErr *MalformedResponseError
	if !errors.As(err, &mErr) {
		t.Fatalf("expected MalformedResponseError, got %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("expected a single attempt, got %d", hits.Load())
	}
}

func TestClient_GetAddsQueryAndTimestamp(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/web/review/list/best", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("_") == "" {
			t.Error("expected cache-busting timestamp")
		}
		if q.Get("bookId") != "b1" || q.Get("count") != "10" || q.Get("maxIdx") != "0" || q.Get("synckey") != "0" {
			t.Errorf("unexpected query %v", q)
		}
		if r.Header.Get("Cookie") == "" {
			t.Error("expected cookie header")
		}
		_, _ = io.WriteString(w, `{"reviews":[],"reviewsHasMore":1,"synckey":99,"reviewsCnt":12}`)
	})
	c := newTestClient(t, mux, &fakeSource{})

	page, err := c.BestReviews(context.Background(), "b1", BestReviewsQuery{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !page.HasMore.Bool() || page.SyncKey != 99 || page.Total != 12 {
		t.Errorf("unexpected page %+v", page)
	}
}

func TestClient_ReviewsAttachBookReviewsToReviewChapter(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/web/review/list", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("listType") != "4" || r.URL.Query().Get("listMode") != "2" {
			t.Errorf("unexpected query %v", r.URL.Query())
		}
		_, _ = io.WriteString(w, `{"reviews":[
			{"review":{"reviewId":"r1","chapterUid":12,"content":"chapter thought","type":1}},
			{"review":{"reviewId":"r2","content":"whole book","type":4}},
			{"other":true}
		]}`)
	})
	c := newTestClient(t, mux, &fakeSource{})

	notes, err := c.Reviews(context.Background(), "b1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(notes))
	}
	if notes[0].ChapterUID != 12 {
		t.Errorf("expected chapter 12 kept, got %d", notes[0].ChapterUID)
	}
	if notes[1].ChapterUID != doctree.ReviewChapterUID {
		t.Errorf("expected book review on review chapter, got %d", notes[1].ChapterUID)
	}
}

func TestClient_BookmarksKeepEveryRecord(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/web/book/bookmarklist", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"updated":[
			{"bookmarkId":"a","chapterUid":"3","markText":"kept","colorStyle":1,"createTime":1700000000},
			{"bookmarkId":"b","chapterUid":3,"markText":""},
			{"bookmarkId":"c","markText":"no chapter"}
		]}`)
	})
	c := newTestClient(t, mux, &fakeSource{})

	marks, err := c.Bookmarks(context.Background(), "b1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(marks) != 3 {
		t.Fatalf("expected all 3 bookmarks, got %+v", marks)
	}
	if marks[0].MarkText != "kept" || marks[0].ChapterUID != 3 {
		t.Errorf("unexpected first bookmark %+v", marks[0])
	}
	if marks[1].Valid() || marks[2].Valid() {
		t.Errorf("expected the incomplete records to be reported invalid, got %+v", marks[1:])
	}
}

func TestInvalidate_StaleGenerationIgnored(t *testing.T) {
	c := New(&fakeSource{}, Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	old, err := c.session(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.invalidate(old.gen, CodeSessionExpired)

	fresh, err := c.session(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.invalidate(old.gen, CodeSessionExpired)
	if c.State() != Ready {
		t.Errorf("expected stale invalidation to be ignored, got %s", c.State())
	}
	if fresh.gen == old.gen {
		t.Error("expected a new generation after re-resolve")
	}
}

func TestIsRetryable(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  error
		want bool
	}{
		{"network", &NetworkError{Path: "/x", Err: errors.New("reset")}, true},
		{"api", &APIError{Code: -1}, true},
		{"expired", &APIError{Code: CodeSessionExpired}, false},
		{"login", &APIError{Code: CodeLoginRequired}, false},
		{"malformed", &MalformedResponseError{Path: "/x"}, false},
		{"validation", &ValidationError{Field: "book_id"}, false},
		{"cancelled", context.Canceled, false},
		{"nil", nil, false},
	} {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}
