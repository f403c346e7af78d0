// Package workflow sequences the external calls for each matched intent. Handlers
// never return errors: failures are logged, reported to the user by private
// message where the user can act on them, and summarized as an Outcome.
package workflow

import (
	"context"
	"strings"

	"tower_bot/internal/logging"
	"tower_bot/internal/matcher"
	"tower_bot/internal/models"
	"tower_bot/internal/passphrase"
	"tower_bot/internal/wordpress"
)

type Outcome string

const (
	OutcomeCreated        Outcome = "created"
	OutcomeDuplicate      Outcome = "duplicate"
	OutcomeFailed         Outcome = "failed"
	OutcomeAccountExists  Outcome = "account_exists"
	OutcomeAccountCreated Outcome = "account_created"
	OutcomePasswordReset  Outcome = "password_reset"
	OutcomeNotFound       Outcome = "not_found"
	OutcomeIgnored        Outcome = "ignored"
)

// Feed is the Reddit side: public replies and private messages.
type Feed interface {
	Reply(ctx context.Context, postID, text string) error
	SendPrivateMessage(ctx context.Context, recipient, subject, text string) error
}

// CMS is the WordPress side. FindUser reports a missing user with
// wordpress.ErrNotFound.
type CMS interface {
	FindUser(ctx context.Context, username string) (models.Account, error)
	CreateUser(ctx context.Context, username, password string) (models.Account, error)
	UpdatePassword(ctx context.Context, userID int64, password string) error
	FloorExists(ctx context.Context, number string) (bool, error)
	CreateFloor(ctx context.Context, draft wordpress.FloorDraft) (models.ContentRecord, error)
	PatchMeta(ctx context.Context, floorID int64, meta map[string]any) error
	UploadImage(ctx context.Context, sourceURL string, floorID int64) (int64, error)
	SetFeaturedMedia(ctx context.Context, floorID, attachmentID int64) error
	WriteThumbnailMeta(ctx context.Context, floorID, attachmentID int64) error
	ReplaceThumbnailMeta(ctx context.Context, floorID, attachmentID int64) error
	FeaturedMedia(ctx context.Context, floorID int64) (int64, error)
}

type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Settings struct {
	LoginURL          string
	FloorFallbackURL  string
	AdminRecipient    string
	ImagePromptSuffix string
}

type Orchestrator struct {
	feed       Feed
	cms        CMS
	images     ImageGenerator
	settings   Settings
	logger     logging.Logger
	passphrase func() string
}

func New(feed Feed, cms CMS, images ImageGenerator, settings Settings, logger logging.Logger) *Orchestrator {
	return &Orchestrator{
		feed:       feed,
		cms:        cms,
		images:     images,
		settings:   settings,
		logger:     logger,
		passphrase: func() string { return passphrase.Generate(nil) },
	}
}

// Handle dispatches on the intent variant.
func (o *Orchestrator) Handle(ctx context.Context, intent matcher.Intent) Outcome {
	switch in := intent.(type) {
	case matcher.NewFloor:
		return o.HandleNewFloor(ctx, in)
	case matcher.Command:
		return o.HandleCommand(ctx, in)
	default:
		return OutcomeIgnored
	}
}

// DeriveUsername maps a Reddit handle to the WordPress username: lower case,
// underscores removed.
func DeriveUsername(handle string) string {
	return strings.ToLower(strings.ReplaceAll(handle, "_", ""))
}

func (o *Orchestrator) notify(ctx context.Context, recipient, subject, text string) bool {
	log := o.logger.WithFields(logging.Fields{"recipient": recipient, "subject": subject})
	if err := o.feed.SendPrivateMessage(ctx, recipient, subject, text); err != nil {
		log.WithError(err).Warn("Private message not delivered")
		return false
	}
	log.Info("Private message sent")
	return true
}

func (o *Orchestrator) reply(ctx context.Context, postID, text string) {
	log := o.logger.WithField("item_id", postID)
	if err := o.feed.Reply(ctx, postID, text); err != nil {
		log.WithError(err).Warn("Reply not posted")
		return
	}
	log.Info("Reply posted")
}
