package workflow

import (
	"context"
	"errors"

	"tower_bot/internal/logging"
	"tower_bot/internal/models"
	"tower_bot/internal/wordpress"
)

type sentMessage struct {
	To, Subject, Text string
}

type fakeFeed struct {
	replies  map[string][]string
	messages []sentMessage
	pmErr    error
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{replies: map[string][]string{}}
}

func (f *fakeFeed) Reply(_ context.Context, postID, text string) error {
	f.replies[postID] = append(f.replies[postID], text)
	return nil
}

func (f *fakeFeed) SendPrivateMessage(_ context.Context, to, subject, text string) error {
	if f.pmErr != nil {
		return f.pmErr
	}
	f.messages = append(f.messages, sentMessage{To: to, Subject: subject, Text: text})
	return nil
}

func (f *fakeFeed) subjects() []string {
	out := make([]string, 0, len(f.messages))
	for _, m := range f.messages {
		out = append(out, m.Subject)
	}
	return out
}

type fakeCMS struct {
	calls []string

	users         map[string]models.Account
	findErr       error
	createUserErr error
	updateErr     error
	floors        map[string]bool
	existsErr     error
	createErr     error
	link          string
	uploadErr     error
	failing       map[string]bool
	featured      int64

	drafts    []wordpress.FloorDraft
	passwords map[int64]string
}

func newFakeCMS() *fakeCMS {
	return &fakeCMS{
		users:     map[string]models.Account{},
		floors:    map[string]bool{},
		failing:   map[string]bool{},
		passwords: map[int64]string{},
		link:      "https://tower.test/floor/x/",
	}
}

func (c *fakeCMS) FindUser(_ context.Context, username string) (models.Account, error) {
	c.calls = append(c.calls, "FindUser")
	if c.findErr != nil {
		return models.Account{}, c.findErr
	}
	if acc, ok := c.users[username]; ok {
		return acc, nil
	}
	return models.Account{}, wordpress.ErrNotFound
}

func (c *fakeCMS) CreateUser(_ context.Context, username, password string) (models.Account, error) {
	c.calls = append(c.calls, "CreateUser")
	if c.createUserErr != nil {
		return models.Account{}, c.createUserErr
	}
	acc := models.Account{ID: int64(100 + len(c.users)), Username: username}
	c.users[username] = acc
	c.passwords[acc.ID] = password
	return acc, nil
}

func (c *fakeCMS) UpdatePassword(_ context.Context, userID int64, password string) error {
	c.calls = append(c.calls, "UpdatePassword")
	if c.updateErr != nil {
		return c.updateErr
	}
	c.passwords[userID] = password
	return nil
}

func (c *fakeCMS) FloorExists(_ context.Context, number string) (bool, error) {
	c.calls = append(c.calls, "FloorExists")
	return c.floors[number], c.existsErr
}

func (c *fakeCMS) CreateFloor(_ context.Context, draft wordpress.FloorDraft) (models.ContentRecord, error) {
	c.calls = append(c.calls, "CreateFloor")
	if c.createErr != nil {
		return models.ContentRecord{}, c.createErr
	}
	c.drafts = append(c.drafts, draft)
	c.floors[draft.Number] = true
	return models.ContentRecord{ID: 500, Link: c.link, FloorNumber: draft.Number}, nil
}

func (c *fakeCMS) PatchMeta(_ context.Context, _ int64, _ map[string]any) error {
	c.calls = append(c.calls, "PatchMeta")
	return nil
}

func (c *fakeCMS) UploadImage(_ context.Context, _ string, _ int64) (int64, error) {
	c.calls = append(c.calls, "UploadImage")
	if c.uploadErr != nil {
		return 0, c.uploadErr
	}
	return 77, nil
}

func (c *fakeCMS) strategy(name string, attachmentID int64) error {
	c.calls = append(c.calls, name)
	if c.failing[name] {
		return errors.New(name + " rejected")
	}
	c.featured = attachmentID
	return nil
}

func (c *fakeCMS) SetFeaturedMedia(_ context.Context, _, attachmentID int64) error {
	return c.strategy("set-thumbnail", attachmentID)
}

func (c *fakeCMS) WriteThumbnailMeta(_ context.Context, _, attachmentID int64) error {
	return c.strategy("meta-write", attachmentID)
}

func (c *fakeCMS) ReplaceThumbnailMeta(_ context.Context, _, attachmentID int64) error {
	return c.strategy("meta-replace", attachmentID)
}

func (c *fakeCMS) FeaturedMedia(_ context.Context, _ int64) (int64, error) {
	return c.featured, nil
}

func (c *fakeCMS) called(name string) bool {
	for _, call := range c.calls {
		if call == name {
			return true
		}
	}
	return false
}

type fakeImages struct {
	prompts []string
	err     error
}

func (f *fakeImages) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return "https://img.test/1.png", nil
}

func newTestOrchestrator(feed *fakeFeed, cms *fakeCMS, images *fakeImages, settings Settings) *Orchestrator {
	o := New(feed, cms, images, settings, logging.Discard())
	o.passphrase = func() string { return "cat-gold-ring" }
	return o
}
