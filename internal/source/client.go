// Package source fetches pages of top-level comments from the post's
// AJAX comment widget.
package source

import (
	"context"
	"encoding/json"
	"net/http/cookiejar"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/closure-tracker/internal/model"
	"github.com/sells-group/closure-tracker/internal/resilience"
)

const loadMoreAction = "wpdLoadMoreComments"

// Options configures a Client.
type Options struct {
	Endpoint    string         // admin-ajax URL the widget posts to
	PostURL     string         // public post page, fetched once to prime cookies
	PostID      int            // WordPress post id
	UserAgent   string         // sent on every request
	Location    *time.Location // civil zone rendered dates are in
	Timeout     time.Duration  // per request; zero keeps the transport default
	RatePerSec  float64        // zero disables pacing
	MaxAttempts int            // one or less disables retry
}

// Client is a primed session against the comment endpoint. It is not safe
// for concurrent use.
type Client struct {
	http    *resty.Client
	opts    Options
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient builds a session and primes it by loading the post page once.
// The returned client is ready for FetchPage.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.Endpoint == "" {
		return nil, eris.New("source: endpoint is required")
	}
	if opts.PostURL == "" {
		return nil, eris.New("source: post url is required")
	}
	if opts.Location == nil {
		return nil, eris.New("source: location is required")
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, eris.Wrap(err, "source: cookie jar")
	}

	hc := resty.New()
	hc.SetCookieJar(jar)
	if opts.UserAgent != "" {
		hc.SetHeader("User-Agent", opts.UserAgent)
	}
	if opts.Timeout > 0 {
		hc.SetTimeout(opts.Timeout)
	}

	c := &Client{
		http:  hc,
		opts:  opts,
		retry: resilience.FromAttempts(opts.MaxAttempts, "source", "request"),
	}
	if opts.RatePerSec > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), 1)
	}

	if err := c.prime(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) prime(ctx context.Context) error {
	_, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*resty.Response, error) {
		return c.do(ctx, c.http.R().SetContext(ctx), resty.MethodGet, c.opts.PostURL)
	})
	if err != nil {
		return eris.Wrap(err, "source: prime session")
	}
	zap.L().Debug("source: session primed", zap.String("url", c.opts.PostURL))
	return nil
}

// FetchPage returns one page of top-level comments, newest first. An empty
// cursor requests the newest page; otherwise cursor is the id of the last
// comment on the previous page.
func (c *Client) FetchPage(ctx context.Context, cursor string) ([]model.Comment, error) {
	fields := map[string]string{
		"postId":  strconv.Itoa(c.opts.PostID),
		"action":  loadMoreAction,
		"sorting": "newest",
		"wpdType": "",
	}
	if cursor != "" {
		fields["lastParentId"] = cursor
	}

	resp, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*resty.Response, error) {
		req := c.http.R().SetContext(ctx).SetMultipartFormData(fields)
		return c.do(ctx, req, resty.MethodPost, c.opts.Endpoint)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "source: fetch page after %q", cursor)
	}

	html, err := decodeCommentList(resp.Body())
	if err != nil {
		return nil, err
	}
	return ParseComments(html, c.opts.Location)
}

func (c *Client) do(ctx context.Context, req *resty.Request, method, url string) (*resty.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "source: rate limit wait")
		}
	}

	resp, err := req.Execute(method, url)
	if err != nil {
		return nil, eris.Wrapf(err, "source: %s %s", method, url)
	}
	if !resp.IsSuccess() {
		serr := &StatusError{
			Method:     method,
			URL:        url,
			StatusCode: resp.StatusCode(),
			Body:       truncate(resp.String(), 512),
		}
		return nil, resilience.MarkHTTP(serr, serr.StatusCode)
	}
	return resp, nil
}

// decodeCommentList pulls data.comment_list out of the widget's JSON reply.
func decodeCommentList(body []byte) (string, error) {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", eris.Wrapf(ErrMalformedResponse, "source: decode body: %v", err)
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return "", eris.Wrap(ErrMalformedResponse, "source: response has no data")
	}

	var data struct {
		CommentList *string `json:"comment_list"`
	}
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return "", eris.Wrapf(ErrMalformedResponse, "source: decode data: %v", err)
	}
	if data.CommentList == nil {
		return "", eris.Wrap(ErrMalformedResponse, "source: data has no comment_list")
	}
	return *data.CommentList, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
