package weread

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"

	"github.com/dgallion1/wrnotes/internal/doctree"
	"github.com/dgallion1/wrnotes/internal/retry"
)

// Chapters returns the chapter listing of a book keyed by uid string, with
// the review chapter appended.
//
// The endpoint rejects requests that do not look like a browser session, so
// the landing page and notebook list are fetched first and the call is
// delayed by one to three seconds. Failures of those steps are only logged.
func (c *Client) Chapters(ctx context.Context, bookID string) (map[string]doctree.ChapterRecord, error) {
	if err := requireBookID(bookID); err != nil {
		return nil, err
	}
	sess, err := c.session(ctx)
	if err != nil {
		return nil, err
	}

	c.warmUp(ctx, sess)
	if err := c.warmupSleep(ctx, warmupDelay()); err != nil {
		return nil, err
	}

	req := request{
		method: http.MethodPost,
		path:   pathChapters,
		body:   map[string][]string{"bookIds": {bookID}},
		header: http.Header{
			"Accept":         {"application/json, text/plain, */*"},
			"Origin":         {c.baseURL},
			"Referer":        {c.baseURL + "/web/reader/" + bookID},
			"Sec-Fetch-Dest": {"empty"},
			"Sec-Fetch-Mode": {"cors"},
			"Sec-Fetch-Site": {"same-origin"},
		},
	}

	recs, err := retry.Do(ctx, c.policy, func(ctx context.Context) ([]doctree.ChapterRecord, error) {
		resp, err := c.send(ctx, sess, req)
		if err != nil {
			return nil, err
		}
		if resp.status >= 200 && resp.status <= 299 {
			if recs, ok := normalizeChapters(resp.body); ok {
				return recs, nil
			}
		}
		if apiErr := apiError(pathChapters, resp.body, true); apiErr != nil {
			return nil, c.fail(sess, apiErr)
		}
		if resp.status < 200 || resp.status > 299 {
			return nil, &NetworkError{Path: pathChapters, StatusCode: resp.status, Err: errors.New(truncate(string(resp.body), 200))}
		}
		return nil, &MalformedResponseError{Path: pathChapters, Body: string(resp.body)}
	})
	if err != nil {
		c.logger.Warn("chapter listing failed", "book_id", bookID, "error", err)
		return nil, err
	}

	recs = append(recs, doctree.ReviewChapter())
	out := make(map[string]doctree.ChapterRecord, len(recs))
	for _, rec := range recs {
		out[rec.UID.String()] = rec
	}
	return out, nil
}

func (c *Client) warmUp(ctx context.Context, sess session) {
	log := c.logger.With("step", "warmup")

	resp, err := c.send(ctx, sess, request{
		method: http.MethodGet,
		path:   "/",
		header: http.Header{
			"Accept":         {"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
			"Sec-Fetch-Dest": {"document"},
			"Sec-Fetch-Mode": {"navigate"},
		},
	})
	switch {
	case err != nil:
		log.Warn("landing page unreachable", "error", err)
	case resp.status >= 400:
		log.Warn("landing page returned error status", "status", resp.status)
	default:
		log.Debug("landing page visited", "title", pageTitle(bytes.NewReader(resp.body)))
	}

	if _, err := c.Notebooks(ctx); err != nil {
		log.Warn("notebook list failed during warm-up", "error", err)
	}
}

func pageTitle(r io.Reader) string {
	doc, err := html.Parse(r)
	if err != nil {
		return ""
	}
	return findTitle(doc)
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}

type chapterBatch struct {
	Updated    json.RawMessage `json:"updated"`
	ChapterUID doctree.UID     `json:"chapterUid"`
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func (b chapterBatch) records() ([]doctree.ChapterRecord, bool) {
	if !isArray(b.Updated) {
		return nil, false
	}
	var recs []doctree.ChapterRecord
	if err := json.Unmarshal(b.Updated, &recs); err != nil {
		return nil, false
	}
	return recs, true
}

// normalizeChapters accepts the four shapes the chapter endpoint has been
// seen to return:
//
//	{"data": [{"updated": [...]}]}
//	{"updated": [...]}
//	[{"updated": [...]}]
//	[{"chapterUid": ...}, ...]
func normalizeChapters(body []byte) ([]doctree.ChapterRecord, bool) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, false
	}

	switch body[0] {
	case '{':
		var obj struct {
			Data    json.RawMessage `json:"data"`
			Updated json.RawMessage `json:"updated"`
		}
		if err := json.Unmarshal(body, &obj); err != nil {
			return nil, false
		}
		if isArray(obj.Data) {
			var batches []chapterBatch
			if err := json.Unmarshal(obj.Data, &batches); err == nil && len(batches) == 1 {
				if recs, ok := batches[0].records(); ok {
					return recs, true
				}
			}
		}
		return chapterBatch{Updated: obj.Updated}.records()

	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil || len(items) == 0 {
			return nil, false
		}
		var first chapterBatch
		if err := json.Unmarshal(items[0], &first); err != nil {
			return nil, false
		}
		if recs, ok := first.records(); ok {
			return recs, true
		}
		if first.ChapterUID != 0 {
			var recs []doctree.ChapterRecord
			if err := json.Unmarshal(body, &recs); err != nil {
				return nil, false
			}
			return recs, true
		}
	}
	return nil, false
}
