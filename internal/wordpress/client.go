// Package wordpress talks to the tower's WordPress REST API: users, floor posts,
// media and the spiral-tower plugin endpoints.
package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tower_bot/internal/config"
	"tower_bot/internal/logging"
	"tower_bot/internal/models"
	"tower_bot/internal/transport"
)

const (
	floorNumberMeta = "_floor_number"
	thumbnailMeta   = "_thumbnail_id"
	userSearchLimit = 10
)

var ErrNotFound = errors.New("not found")

type Client struct {
	cfg    config.WordPressConfig
	http   *transport.Client
	logger logging.Logger
	now    func() time.Time
}

func NewClient(cfg config.WordPressConfig, httpClient *transport.Client, logger logging.Logger) *Client {
	return &Client{cfg: cfg, http: httpClient, logger: logger, now: time.Now}
}

type user struct {
	ID       int64  `json:"id"`
	Slug     string `json:"slug"`
	Username string `json:"username"`
}

// FindUser searches users and returns the one whose slug or username equals
// username, case-insensitively. ErrNotFound when none does.
func (c *Client) FindUser(ctx context.Context, username string) (models.Account, error) {
	query := url.Values{
		"search":   {username},
		"per_page": {strconv.Itoa(userSearchLimit)},
	}
	var users []user
	if err := c.call(ctx, http.MethodGet, "/wp/v2/users?"+query.Encode(), nil, &users); err != nil {
		return models.Account{}, fmt.Errorf("search users: %w", err)
	}
	want := strings.ToLower(username)
	for _, u := range users {
		if strings.ToLower(u.Slug) == want || strings.ToLower(u.Username) == want {
			return models.Account{ID: u.ID, Username: username}, nil
		}
	}
	return models.Account{}, ErrNotFound
}

func (c *Client) CreateUser(ctx context.Context, username, password string) (models.Account, error) {
	payload := map[string]any{
		"username": username,
		"email":    username + "@" + c.cfg.EmailDomain,
		"password": password,
		"roles":    []string{c.cfg.Role},
	}
	var created user
	if err := c.call(ctx, http.MethodPost, "/wp/v2/users", payload, &created); err != nil {
		return models.Account{}, fmt.Errorf("create user %s: %w", username, err)
	}
	if created.ID == 0 {
		return models.Account{}, fmt.Errorf("create user %s: response carried no id", username)
	}
	return models.Account{ID: created.ID, Username: username}, nil
}

func (c *Client) UpdatePassword(ctx context.Context, userID int64, password string) error {
	path := "/wp/v2/users/" + strconv.FormatInt(userID, 10)
	if err := c.call(ctx, http.MethodPost, path, map[string]any{"password": password}, nil); err != nil {
		return fmt.Errorf("update password for user %d: %w", userID, err)
	}
	return nil
}

// FloorExists asks the plugin whether a floor already carries number.
func (c *Client) FloorExists(ctx context.Context, number string) (bool, error) {
	var out struct {
		Exists     bool            `json:"exists"`
		MatchingID json.RawMessage `json:"matching_id"`
	}
	path := "/spiral-tower/v1/check-floor-number/" + url.PathEscape(number)
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return false, fmt.Errorf("check floor %s: %w", number, err)
	}
	if out.Exists {
		c.logger.WithFields(logging.Fields{
			"floor_number": number,
			"matching_id":  string(out.MatchingID),
		}).Debug("Floor number already taken")
	}
	return out.Exists, nil
}

// FloorDraft is the input for CreateFloor. AuthorID 0 leaves the author unset.
type FloorDraft struct {
	Title    string
	Content  string
	Number   string
	AuthorID int64
}

type floorResponse struct {
	ID            int64  `json:"id"`
	Link          string `json:"link"`
	FeaturedMedia int64  `json:"featured_media"`
}

func (c *Client) CreateFloor(ctx context.Context, draft FloorDraft) (models.ContentRecord, error) {
	payload := map[string]any{
		"title":        draft.Title,
		"content":      draft.Content,
		"status":       "publish",
		"floor_number": draft.Number,
		"meta":         map[string]any{floorNumberMeta: draft.Number},
	}
	if draft.AuthorID > 0 {
		payload["author"] = draft.AuthorID
	}

	var out floorResponse
	if err := c.call(ctx, http.MethodPost, "/wp/v2/floor", payload, &out); err != nil {
		return models.ContentRecord{}, fmt.Errorf("create floor %s: %w", draft.Number, err)
	}
	if out.ID == 0 {
		return models.ContentRecord{}, fmt.Errorf("create floor %s: response carried no id", draft.Number)
	}
	return models.ContentRecord{ID: out.ID, Link: out.Link, FloorNumber: draft.Number}, nil
}

// PatchMeta re-sends meta on an existing floor; some sites drop custom fields on create.
func (c *Client) PatchMeta(ctx context.Context, floorID int64, meta map[string]any) error {
	if err := c.call(ctx, http.MethodPost, floorPath(floorID), map[string]any{"meta": meta}, nil); err != nil {
		return fmt.Errorf("patch meta on floor %d: %w", floorID, err)
	}
	return nil
}

// FloorNumberMeta is the meta map PatchMeta needs to pin the floor number.
func FloorNumberMeta(number string) map[string]any {
	return map[string]any{floorNumberMeta: number}
}

// SetFeaturedMedia uses the standard featured_media field.
func (c *Client) SetFeaturedMedia(ctx context.Context, floorID, attachmentID int64) error {
	return c.call(ctx, http.MethodPost, floorPath(floorID), map[string]any{"featured_media": attachmentID}, nil)
}

// WriteThumbnailMeta writes _thumbnail_id through the post's meta field.
func (c *Client) WriteThumbnailMeta(ctx context.Context, floorID, attachmentID int64) error {
	payload := map[string]any{"meta": map[string]any{thumbnailMeta: attachmentID}}
	return c.call(ctx, http.MethodPost, floorPath(floorID), payload, nil)
}

// ReplaceThumbnailMeta overwrites the raw _thumbnail_id row through the plugin.
func (c *Client) ReplaceThumbnailMeta(ctx context.Context, floorID, attachmentID int64) error {
	payload := map[string]any{
		"key":     thumbnailMeta,
		"value":   strconv.FormatInt(attachmentID, 10),
		"replace": true,
	}
	path := "/spiral-tower/v1/floor/" + strconv.FormatInt(floorID, 10) + "/meta"
	return c.call(ctx, http.MethodPost, path, payload, nil)
}

// FeaturedMedia reads back the attachment currently set on a floor.
func (c *Client) FeaturedMedia(ctx context.Context, floorID int64) (int64, error) {
	var out floorResponse
	if err := c.call(ctx, http.MethodGet, floorPath(floorID), nil, &out); err != nil {
		return 0, err
	}
	return out.FeaturedMedia, nil
}

func floorPath(id int64) string {
	return "/wp/v2/floor/" + strconv.FormatInt(id, 10)
}

func (c *Client) endpoint(path string) string {
	return strings.TrimRight(c.cfg.URL, "/") + path
}

func (c *Client) call(ctx context.Context, method, path string, payload, out any) error {
	var body []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", path, err)
		}
		body = encoded
	}
	target := c.endpoint(path)

	_, err := c.http.DoJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(c.cfg.User, c.cfg.Password)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, nil
	}, out)
	return err
}
