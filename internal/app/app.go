package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tower_bot/internal/config"
	"tower_bot/internal/imagegen"
	"tower_bot/internal/logging"
	"tower_bot/internal/matcher"
	"tower_bot/internal/metrics"
	"tower_bot/internal/models"
	"tower_bot/internal/poller"
	"tower_bot/internal/reddit"
	"tower_bot/internal/transport"
	"tower_bot/internal/watermark"
	"tower_bot/internal/wordpress"
	"tower_bot/internal/workflow"
)

// ErrAuthentication is the only error that stops a run.
var ErrAuthentication = reddit.ErrAuthentication

// Feed is everything the run needs from Reddit.
type Feed interface {
	Authenticate(ctx context.Context) error
	poller.Fetcher
}

type Handler interface {
	Handle(ctx context.Context, intent matcher.Intent) workflow.Outcome
}

// HistoryStore records one document per run.
type HistoryStore interface {
	SaveRunHistory(ctx context.Context, history *models.RunHistory) error
}

type Deps struct {
	Feed       Feed
	Handler    Handler
	Watermarks *watermark.Store
	History    HistoryStore
	Metrics    *metrics.Recorder
}

type BotApp struct {
	config     *config.BotConfig
	logger     logging.Logger
	feed       Feed
	poller     *poller.Poller
	handler    Handler
	watermarks *watermark.Store
	history    HistoryStore
	metrics    *metrics.Recorder
	now        func() time.Time
}

// NewBotApp wires the production clients from cfg.
func NewBotApp(ctx context.Context, cfg *config.BotConfig, logger logging.Logger) (*BotApp, error) {
	backend, err := watermark.Open(ctx, cfg.State)
	if err != nil {
		return nil, fmt.Errorf("open %s state backend: %w", cfg.State.Backend, err)
	}

	apiTransport := transport.New(transport.Options{
		Timeout:    cfg.HTTPTimeout(),
		MaxRetries: cfg.Logic.MaxRetries,
		UserAgent:  cfg.Reddit.UserAgent,
	})
	imageTransport := transport.New(transport.Options{
		Timeout:    cfg.ImageTimeout(),
		MaxRetries: cfg.Logic.MaxRetries,
		UserAgent:  cfg.Reddit.UserAgent,
	})

	feed := reddit.NewClient(cfg.Reddit, apiTransport, logger)
	cms := wordpress.NewClient(cfg.WordPress, apiTransport, logger)
	images := imagegen.NewClient(cfg.OpenAI, imageTransport, logger)

	orchestrator := workflow.New(feed, cms, images, workflow.Settings{
		LoginURL:          cfg.Site.LoginURL,
		FloorFallbackURL:  cfg.Site.FloorFallbackURL,
		AdminRecipient:    cfg.Reddit.AdminRecipient,
		ImagePromptSuffix: cfg.OpenAI.AdditionalPrompt,
	}, logger)

	deps := Deps{
		Feed:       feed,
		Handler:    orchestrator,
		Watermarks: watermark.NewStore(backend, logger),
	}
	if cfg.State.History {
		if history, ok := backend.(HistoryStore); ok {
			deps.History = history
		}
	}
	if cfg.Metrics.PushgatewayURL != "" {
		deps.Metrics = metrics.NewRecorder()
	}
	return New(cfg, logger, deps), nil
}

func New(cfg *config.BotConfig, logger logging.Logger, deps Deps) *BotApp {
	return &BotApp{
		config:     cfg,
		logger:     logger,
		feed:       deps.Feed,
		poller:     poller.New(deps.Feed, cfg.Logic.PageSize),
		handler:    deps.Handler,
		watermarks: deps.Watermarks,
		history:    deps.History,
		metrics:    deps.Metrics,
		now:        time.Now,
	}
}

// Run authenticates, then processes posts and messages in that order. Per-item
// and per-stream failures are logged; only authentication failure is returned.
func (a *BotApp) Run(ctx context.Context) error {
	started := a.now()
	run := &models.RunHistory{
		ID:        uuid.NewString(),
		StartedAt: started.Unix(),
	}
	log := a.logger.WithField("run_id", run.ID)
	log.WithFields(logging.Fields{
		"subreddit": a.config.Reddit.Subreddit,
		"page_size": a.config.Logic.PageSize,
		"state":     a.config.State.Backend,
	}).Info("Starting run")

	if err := a.feed.Authenticate(ctx); err != nil {
		log.WithError(err).Error("Authentication failed, nothing else can run")
		run.Status = "auth_failed"
		a.finish(ctx, log, run, started, false)
		if errors.Is(err, ErrAuthentication) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrAuthentication, err)
	}

	for _, stream := range []models.Stream{models.StreamPosts, models.StreamMessages} {
		summary := a.processStream(ctx, log, stream, run)
		run.Streams = append(run.Streams, summary)
	}

	run.Status = "success"
	a.finish(ctx, log, run, started, true)
	return nil
}

// processStream reads the watermark once, handles every new item and writes the
// watermark at most once, only when the candidate moved forward.
func (a *BotApp) processStream(ctx context.Context, runLog logging.Entry, stream models.Stream, run *models.RunHistory) models.StreamSummary {
	log := runLog.WithField("stream", stream)
	previous, err := a.watermarks.Get(ctx, stream)
	if err != nil {
		// Without a trusted watermark nothing is handled or written.
		log.WithError(err).Warn("Watermark read failed, stream skipped until next run")
		return models.StreamSummary{Stream: string(stream), Error: err.Error()}
	}
	summary := models.StreamSummary{Stream: string(stream), Previous: previous, Candidate: previous}

	result, err := a.poller.Poll(ctx, stream, previous)
	if err != nil {
		log.WithError(err).Warn("Fetch failed, stream skipped until next run")
		summary.Error = err.Error()
		a.recordWatermark(stream, previous)
		return summary
	}
	summary.Fetched = result.Fetched
	summary.New = len(result.Items)
	summary.Candidate = result.Candidate
	log.WithFields(logging.Fields{
		"fetched":   result.Fetched,
		"new":       len(result.Items),
		"watermark": previous,
	}).Info("Polled stream")

	for _, item := range result.Items {
		itemLog := log.WithFields(logging.Fields{"item_id": item.ID, "author": item.Author})
		intent := matcher.Match(stream, item)
		if intent == nil {
			itemLog.Debug("No match")
			continue
		}
		summary.Matched++

		outcome := a.handler.Handle(ctx, intent)
		itemLog.WithField("outcome", outcome).Info("Handled item")
		run.Items = append(run.Items, models.ItemOutcome{
			Stream:  string(stream),
			ItemID:  item.ID,
			Author:  item.Author,
			Intent:  intentName(intent),
			Outcome: string(outcome),
		})
		if a.metrics != nil {
			a.metrics.Item(string(stream), string(outcome))
		}
	}

	final := previous
	if result.Advanced(previous) {
		if err := a.watermarks.Set(ctx, stream, result.Candidate); err != nil {
			log.WithError(err).Error("Watermark not advanced")
		} else {
			summary.Advanced = true
			final = result.Candidate
		}
	} else {
		log.WithField("watermark", previous).Info("No newer items, watermark kept")
	}
	a.recordWatermark(stream, final)
	return summary
}

func (a *BotApp) recordWatermark(stream models.Stream, value int64) {
	if a.metrics != nil {
		a.metrics.Watermark(string(stream), value)
	}
}

func (a *BotApp) finish(ctx context.Context, log logging.Entry, run *models.RunHistory, started time.Time, success bool) {
	finished := a.now()
	run.FinishedAt = finished.Unix()
	run.Duration = int(finished.Sub(started).Milliseconds())

	if a.history != nil {
		if err := a.history.SaveRunHistory(ctx, run); err != nil {
			log.WithError(err).Warn("Run history not saved")
		}
	}
	if a.metrics != nil {
		a.metrics.Finish(success, finished.Sub(started))
		if err := a.metrics.Push(ctx, a.config.Metrics.PushgatewayURL, a.config.Metrics.Job); err != nil {
			log.WithError(err).Warn("Metrics push failed")
		}
	}
	log.WithFields(logging.Fields{
		"status":      run.Status,
		"duration_ms": run.Duration,
	}).Info("Run finished")
}

// Close releases the state backend.
func (a *BotApp) Close() error {
	return a.watermarks.Close()
}

func intentName(intent matcher.Intent) string {
	switch in := intent.(type) {
	case matcher.NewFloor:
		return "new_floor"
	case matcher.Command:
		return in.Kind.String()
	default:
		return "unknown"
	}
}
