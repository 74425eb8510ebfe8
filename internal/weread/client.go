package weread

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dgallion1/wrnotes/internal/retry"
)

const (
	DefaultBaseURL = "https://weread.qq.com"
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/135.0.0.0 Safari/537.36"
	maxBodyBytes   = 16 << 20

	// resolveTimeout bounds a shared cookie resolution.
	resolveTimeout = 30 * time.Second
)

// CookieSource produces a session cookie. *cookie.Resolver satisfies it.
type CookieSource interface {
	Resolve(ctx context.Context) (string, error)
}

// State is the lifecycle of the session cookie.
type State int

const (
	Uninitialized State = iota
	Initializing
	Ready
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	}
	return "unknown"
}

// Options configures a Client. Zero fields take defaults.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Retry      retry.Policy
	Logger     *slog.Logger
	Stats      *Stats

	// WarmupSleep pauses between the warm-up requests and the chapter call.
	WarmupSleep func(ctx context.Context, d time.Duration) error
}

// Client talks to WeRead with a lazily resolved cookie that is dropped
// whenever the server reports the session expired.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	source      CookieSource
	policy      retry.Policy
	logger      *slog.Logger
	stats       *Stats
	warmupSleep func(ctx context.Context, d time.Duration) error

	group singleflight.Group

	mu     sync.Mutex
	state  State
	cookie string
	gen    uint64
}

type session struct {
	cookie string
	gen    uint64
}

func New(source CookieSource, opts Options) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		httpClient:  opts.HTTPClient,
		source:      source,
		policy:      opts.Retry,
		logger:      opts.Logger,
		stats:       opts.Stats,
		warmupSleep: opts.WarmupSleep,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if c.policy.MaxAttempts == 0 && c.policy.BaseDelay == 0 {
		c.policy = retry.Default()
	}
	if c.policy.Retryable == nil {
		c.policy.Retryable = IsRetryable
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.stats == nil {
		c.stats = NewStats(time.Hour)
	}
	if c.warmupSleep == nil {
		c.warmupSleep = retry.Sleep
	}
	return c
}

// State reports where the session is in its lifecycle.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns the latency recorder for upstream calls.
func (c *Client) Stats() *Stats { return c.stats }

// session returns the current cookie, resolving it first if needed.
// Concurrent callers share one resolution, which outlives any single
// caller's cancellation; each caller still stops waiting when its own
// context is done.
func (c *Client) session(ctx context.Context) (session, error) {
	c.mu.Lock()
	if c.state == Ready {
		s := session{cookie: c.cookie, gen: c.gen}
		c.mu.Unlock()
		return s, nil
	}
	c.state = Initializing
	c.mu.Unlock()

	ch := c.group.DoChan("session", func() (any, error) {
		c.mu.Lock()
		if c.state == Ready {
			s := session{cookie: c.cookie, gen: c.gen}
			c.mu.Unlock()
			return s, nil
		}
		c.mu.Unlock()

		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
		defer cancel()
		ck, err := c.source.Resolve(rctx)

		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			c.state = Uninitialized
			return nil, err
		}
		c.gen++
		c.cookie = ck
		c.state = Ready
		c.logger.Info("weread session ready", "generation", c.gen)
		return session{cookie: ck, gen: c.gen}, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return session{}, res.Err
		}
		return res.Val.(session), nil
	case <-ctx.Done():
		return session{}, ctx.Err()
	}
}

// invalidate drops the cookie, unless a newer one has replaced it already.
func (c *Client) invalidate(gen uint64, code int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen || c.state != Ready {
		return
	}
	c.state = Uninitialized
	c.cookie = ""
	c.logger.Warn("weread session expired, cookie will be re-resolved", "code", code, "generation", gen)
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	header http.Header
}

type response struct {
	status int
	body   []byte
}

// send performs one HTTP exchange. Only transport failures are errors here.
func (c *Client) send(ctx context.Context, sess session, req request) (response, error) {
	u := c.baseURL + req.path
	q := url.Values{}
	for k, v := range req.query {
		q[k] = v
	}
	if req.method == http.MethodGet {
		q.Set("_", strconv.FormatInt(time.Now().UnixMilli(), 10))
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var body io.Reader
	if req.body != nil {
		b, err := json.Marshal(req.body)
		if err != nil {
			return response{}, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, body)
	if err != nil {
		return response{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Cookie", sess.cookie)
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json;charset=UTF-8")
	}
	for k, v := range req.header {
		httpReq.Header[k] = v
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.stats.Record(req.path, time.Since(start).Milliseconds(), true)
		if ctx.Err() != nil {
			return response{}, ctx.Err()
		}
		return response{}, &NetworkError{Path: req.path, Err: err}
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	c.stats.Record(req.path, time.Since(start).Milliseconds(), err != nil || resp.StatusCode >= 400)
	if err != nil {
		return response{}, &NetworkError{Path: req.path, StatusCode: resp.StatusCode, Err: err}
	}
	return response{status: resp.StatusCode, body: b}, nil
}

type envelope struct {
	ErrCode    int    `json:"errcode"`
	ErrMsg     string `json:"errmsg"`
	ErrCodeAlt int    `json:"errCode"`
	ErrMsgAlt  string `json:"errMsg"`
}

// apiError extracts an error code from an object body. Either spelling of
// the field is honoured; preferCamel picks which wins when both are set.
func apiError(path string, body []byte, preferCamel bool) *APIError {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil
	}
	lower := &APIError{Path: path, Code: env.ErrCode, Message: env.ErrMsg}
	camel := &APIError{Path: path, Code: env.ErrCodeAlt, Message: env.ErrMsgAlt}
	first, second := lower, camel
	if preferCamel {
		first, second = camel, lower
	}
	if first.Code != 0 {
		return first
	}
	if second.Code != 0 {
		return second
	}
	return nil
}

// fail turns an upstream error code into an error, dropping the session
// when the code says it expired.
func (c *Client) fail(sess session, apiErr *APIError) error {
	if apiErr.SessionExpired() {
		c.invalidate(sess.gen, apiErr.Code)
	}
	return apiErr
}

// call sends req with retries and decodes the JSON reply into out.
func (c *Client) call(ctx context.Context, req request, out any) error {
	sess, err := c.session(ctx)
	if err != nil {
		return err
	}
	_, err = retry.Do(ctx, c.policy, func(ctx context.Context) (struct{}, error) {
		resp, err := c.send(ctx, sess, req)
		if err != nil {
			return struct{}{}, err
		}
		if apiErr := apiError(req.path, resp.body, false); apiErr != nil {
			return struct{}{}, c.fail(sess, apiErr)
		}
		if resp.status < 200 || resp.status > 299 {
			return struct{}{}, &NetworkError{
				Path:       req.path,
				StatusCode: resp.status,
				Err:        errors.New(truncate(string(resp.body), 200)),
			}
		}
		if out == nil {
			return struct{}{}, nil
		}
		if err := json.Unmarshal(resp.body, out); err != nil {
			return struct{}{}, &MalformedResponseError{Path: req.path, Body: string(resp.body), Err: err}
		}
		return struct{}{}, nil
	})
	if err != nil {
		c.logger.Warn("weread request failed", "path", req.path, "error", err)
	}
	return err
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.call(ctx, request{method: http.MethodGet, path: path, query: query}, out)
}

func warmupDelay() time.Duration {
	return time.Duration(1000+rand.Int64N(2000)) * time.Millisecond
}
