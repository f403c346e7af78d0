package workflow

import (
	"context"

	"tower_bot/internal/logging"
	"tower_bot/internal/matcher"
	"tower_bot/internal/models"
	"tower_bot/internal/wordpress"
)

// HandleNewFloor claims a floor: duplicate check, author account, floor post,
// generated featured image, then notifications. Only a failed floor create stops
// the notifications.
func (o *Orchestrator) HandleNewFloor(ctx context.Context, floor matcher.NewFloor) Outcome {
	item := floor.Item
	log := o.logger.WithFields(logging.Fields{
		"item_id":      item.ID,
		"floor_number": floor.Number,
		"author":       item.Author,
	})

	exists, err := o.cms.FloorExists(ctx, floor.Number)
	if err != nil {
		log.WithError(err).Warn("Floor number check failed, treating floor as available")
	}
	if exists {
		log.Info("Floor number already claimed")
		o.reply(ctx, item.ID, duplicateFloorReply)
		return OutcomeDuplicate
	}

	var account models.Account
	if item.Author != "" {
		if acc, ok := o.resolveAccount(ctx, log, item.Author); ok {
			account = acc
		}
	}

	content := item.Body
	if content == "" {
		content = placeholderContent(floor.Name)
	}
	record, err := o.cms.CreateFloor(ctx, wordpress.FloorDraft{
		Title:    floor.Name,
		Content:  content,
		Number:   floor.Number,
		AuthorID: account.ID,
	})
	if err != nil {
		log.WithError(err).Error("Floor creation failed")
		return OutcomeFailed
	}
	log = log.WithField("floor_id", record.ID)
	log.Info("Floor created")

	if err := o.cms.PatchMeta(ctx, record.ID, wordpress.FloorNumberMeta(floor.Number)); err != nil {
		log.WithError(err).Warn("Floor number meta patch failed")
	}

	o.attachImage(ctx, log, record, content)

	link := record.Link
	if link == "" {
		link = o.settings.FloorFallbackURL
	}
	if item.Author != "" {
		o.notify(ctx, item.Author, floorCreatedSubject, floorCreatedMessage(floor, link))
	}
	o.reply(ctx, item.ID, floorCreatedReply(floor.Name, link))
	if o.settings.AdminRecipient != "" {
		o.notify(ctx, o.settings.AdminRecipient, adminSummarySubject, adminSummaryMessage(floor, account, record.Link))
	}
	return OutcomeCreated
}

// resolveAccount finds the author's account or creates one. A lookup error is
// treated like a missing user; the create call rejects real duplicates.
func (o *Orchestrator) resolveAccount(ctx context.Context, log logging.Entry, handle string) (models.Account, bool) {
	if account, ok := o.lookup(ctx, log, DeriveUsername(handle)); ok {
		return account, true
	}
	return o.createAccount(ctx, handle)
}

// attachImage generates and uploads the featured image. Every failure here is
// logged and swallowed.
func (o *Orchestrator) attachImage(ctx context.Context, log logging.Entry, record models.ContentRecord, content string) {
	prompt := content
	if o.settings.ImagePromptSuffix != "" {
		prompt += " " + o.settings.ImagePromptSuffix
	}
	imageURL, err := o.images.Generate(ctx, prompt)
	if err != nil {
		log.WithError(err).Warn("Image generation failed, skipping upload")
		return
	}
	attachmentID, err := o.cms.UploadImage(ctx, imageURL, record.ID)
	if err != nil {
		log.WithError(err).Warn("Image upload failed")
		return
	}
	log = log.WithField("attachment_id", attachmentID)

	if name, ok := o.setFeaturedImage(ctx, log, record.ID, attachmentID); ok {
		log.WithField("strategy", name).Info("Featured image set")
		return
	}
	log.Error("All featured image strategies failed")
}

type featuredImageStrategy struct {
	name  string
	apply func(ctx context.Context, floorID, attachmentID int64) error
}

func (o *Orchestrator) featuredImageStrategies() []featuredImageStrategy {
	return []featuredImageStrategy{
		{name: "set-thumbnail", apply: o.cms.SetFeaturedMedia},
		{name: "meta-write", apply: o.cms.WriteThumbnailMeta},
		{name: "meta-replace", apply: o.cms.ReplaceThumbnailMeta},
	}
}

// setFeaturedImage tries each strategy in order. A strategy succeeds only when the
// floor reads back the attachment afterwards.
func (o *Orchestrator) setFeaturedImage(ctx context.Context, log logging.Entry, floorID, attachmentID int64) (string, bool) {
	for _, strategy := range o.featuredImageStrategies() {
		stepLog := log.WithField("strategy", strategy.name)
		if err := strategy.apply(ctx, floorID, attachmentID); err != nil {
			stepLog.WithError(err).Debug("Featured image strategy failed")
			continue
		}
		current, err := o.cms.FeaturedMedia(ctx, floorID)
		if err != nil {
			stepLog.WithError(err).Debug("Featured image read-back failed")
			continue
		}
		if current == attachmentID {
			return strategy.name, true
		}
		stepLog.WithField("current", current).Debug("Featured image not applied")
	}
	return "", false
}
