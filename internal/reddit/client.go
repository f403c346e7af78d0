package reddit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"tower_bot/internal/config"
	"tower_bot/internal/logging"
	"tower_bot/internal/models"
	"tower_bot/internal/transport"
)

const scopes = "privatemessages read submit identity"

var (
	ErrAuthentication   = errors.New("reddit authentication failed")
	ErrNotAuthenticated = errors.New("reddit client is not authenticated")
	ErrEmptyRecipient   = errors.New("empty recipient")
)

// RejectedError carries the errors Reddit reported in an api_type=json response.
type RejectedError struct {
	Errors [][]any
}

func (e *RejectedError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, item := range e.Errors {
		encoded, _ := json.Marshal(item)
		parts = append(parts, string(encoded))
	}
	return "reddit rejected request: " + strings.Join(parts, ", ")
}

type Client struct {
	cfg         config.RedditConfig
	http        *transport.Client
	logger      logging.Logger
	accessToken string
}

func NewClient(cfg config.RedditConfig, httpClient *transport.Client, logger logging.Logger) *Client {
	return &Client{cfg: cfg, http: httpClient, logger: logger}
}

// Authenticate performs the password grant. Reddit answers bad credentials with
// 200 and an "error" field, so an empty token is also a failure.
func (c *Client) Authenticate(ctx context.Context) error {
	form := url.Values{
		"grant_type": {"password"},
		"username":   {c.cfg.Username},
		"password":   {c.cfg.Password},
		"scope":      {scopes},
	}
	payload := form.Encode()

	var out struct {
		AccessToken string `json:"access_token"`
		Scope       string `json:"scope"`
		Error       string `json:"error"`
	}
	_, err := c.http.DoJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AuthURL, strings.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}, &out)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	if out.AccessToken == "" {
		return fmt.Errorf("%w: %s", ErrAuthentication, strings.TrimSpace(out.Error+" no access token returned"))
	}

	c.accessToken = out.AccessToken
	c.logger.WithField("scope", out.Scope).Info("Authenticated with Reddit")
	return nil
}

type listing struct {
	Data struct {
		Children []struct {
			Kind string    `json:"kind"`
			Data thingData `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type thingData struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Selftext   string  `json:"selftext"`
	Subject    string  `json:"subject"`
	Body       string  `json:"body"`
	Author     string  `json:"author"`
	CreatedUTC float64 `json:"created_utc"`
	WasComment bool    `json:"was_comment"`
	Permalink  string  `json:"permalink"`
}

// FetchRecent returns the newest posts of the configured subreddit or the newest
// inbox messages.
func (c *Client) FetchRecent(ctx context.Context, stream models.Stream, limit int) ([]models.FeedItem, error) {
	var path string
	switch stream {
	case models.StreamPosts:
		path = "/r/" + url.PathEscape(c.cfg.Subreddit) + "/new"
	case models.StreamMessages:
		path = "/message/inbox"
	default:
		return nil, fmt.Errorf("unknown stream %q", stream)
	}

	var out listing
	if err := c.getJSON(ctx, path, url.Values{"limit": {strconv.Itoa(limit)}}, &out); err != nil {
		return nil, err
	}

	items := make([]models.FeedItem, 0, len(out.Data.Children))
	for _, child := range out.Data.Children {
		d := child.Data
		item := models.FeedItem{
			ID:        d.ID,
			CreatedAt: int64(d.CreatedUTC),
			Author:    d.Author,
			IsComment: d.WasComment,
		}
		if d.Permalink != "" {
			item.URL = "https://www.reddit.com" + d.Permalink
		}
		switch stream {
		case models.StreamPosts:
			item.RawText = unescape(d.Title)
			item.Body = unescape(d.Selftext)
		case models.StreamMessages:
			item.Subject = unescape(d.Subject)
			item.Body = unescape(d.Body)
			item.RawText = item.Body
		}
		items = append(items, item)
	}
	return items, nil
}

// Reply comments on a post. thing ids for posts carry the t3_ prefix.
func (c *Client) Reply(ctx context.Context, postID, text string) error {
	return c.postForm(ctx, "/api/comment", url.Values{
		"api_type": {"json"},
		"thing_id": {"t3_" + postID},
		"text":     {text},
	})
}

// SendPrivateMessage composes a PM. Reddit reports rejections inside a 200 body.
func (c *Client) SendPrivateMessage(ctx context.Context, recipient, subject, text string) error {
	if strings.TrimSpace(recipient) == "" {
		return ErrEmptyRecipient
	}
	return c.postForm(ctx, "/api/compose", url.Values{
		"api_type": {"json"},
		"to":       {recipient},
		"subject":  {subject},
		"text":     {text},
	})
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	if c.accessToken == "" {
		return ErrNotAuthenticated
	}
	endpoint := strings.TrimRight(c.cfg.APIURL, "/") + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	_, err := c.http.DoJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		c.authorize(req)
		return req, nil
	}, out)
	return err
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values) error {
	if c.accessToken == "" {
		return ErrNotAuthenticated
	}
	endpoint := strings.TrimRight(c.cfg.APIURL, "/") + path
	payload := []byte(form.Encode())

	var out struct {
		JSON struct {
			Errors [][]any `json:"errors"`
		} `json:"json"`
	}
	_, err := c.http.DoJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		c.authorize(req)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}, &out)
	if err != nil {
		return err
	}
	if len(out.JSON.Errors) > 0 {
		return &RejectedError{Errors: out.JSON.Errors}
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "bearer "+c.accessToken)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
}

var markupEscaper = strings.NewReplacer("<", "&lt;", ">", "&gt;")

// unescape decodes the HTML entities Reddit applies to titles and bodies
// (&amp; &lt; &gt;). Raw angle brackets are kept as literal text.
func unescape(s string) string {
	if !strings.ContainsRune(s, '&') {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<div>" + markupEscaper.Replace(s) + "</div>"))
	if err != nil {
		return s
	}
	return doc.Find("div").First().Text()
}
